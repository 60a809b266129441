package store

import (
	"context"
	"fmt"
	"time"

	"epatra/internal/utils"
	"epatra/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const roleTableName = "epatra.roles"

var roleColumns = utils.StructTagValues(types.Role{})

type RoleRepository struct {
	pool *pgxpool.Pool
}

func NewRoleRepository(pool *pgxpool.Pool) *RoleRepository {
	return &RoleRepository{pool: pool}
}

func (r *RoleRepository) Roles(ctx context.Context) ([]*types.Role, error) {
	roles, err := selectMany[types.Role](ctx, r.pool, psql().
		Select(roleColumns...).
		From(roleTableName).
		OrderBy("name ASC"))
	return roles, utils.ErrorWrapOrNil(err, "failed to fetch roles")
}

func (r *RoleRepository) Role(ctx context.Context, id string) (*types.Role, error) {
	return selectOne[types.Role](ctx, r.pool, roleByIDQuery(id), types.ErrRoleNotFound)
}

func roleByIDQuery(id string) sq.SelectBuilder {
	return psql().Select(roleColumns...).From(roleTableName).Where(sq.Eq{"id": id}).Limit(1)
}

// ActiveRolesByNames resolves the role names asserted in an access token.
func (r *RoleRepository) ActiveRolesByNames(ctx context.Context, names []string) ([]*types.Role, error) {
	if len(names) == 0 {
		return []*types.Role{}, nil
	}

	roles, err := selectMany[types.Role](ctx, r.pool, psql().
		Select(roleColumns...).
		From(roleTableName).
		Where(sq.Eq{"name": names, "is_active": true}))
	return roles, utils.ErrorWrapOrNil(err, "failed to fetch roles by name")
}

func (r *RoleRepository) CreateRole(ctx context.Context, role *types.Role, actor types.AuditContext) error {
	if err := role.Validate(); err != nil {
		return err
	}

	now := time.Now()
	role.ID = utils.NanoID()
	role.CreatedAt = now
	role.UpdatedAt = now
	if role.Permissions == nil {
		role.Permissions = []string{}
	}

	return withAudit(ctx, r.pool, func(tx pgx.Tx) (*types.AuditLogEntry, error) {
		_, err := exec(ctx, tx, psql().Insert(roleTableName).SetMap(utils.StructToMap(role)))
		if isUniqueViolation(err) {
			return nil, types.NewValidationError("name", "a role with this name already exists")
		}
		if err != nil {
			return nil, fmt.Errorf("failed to insert role %s: %w", role.Name, err)
		}

		return actor.Entry(types.AuditActionCreateRole, types.EntityRole, role.ID, nil, role), nil
	})
}

// UpdateRole replaces the editable attributes of a role.
func (r *RoleRepository) UpdateRole(ctx context.Context, id string, role *types.Role, actor types.AuditContext) error {
	if err := role.Validate(); err != nil {
		return err
	}

	return withAudit(ctx, r.pool, func(tx pgx.Tx) (*types.AuditLogEntry, error) {
		current, err := selectOne[types.Role](ctx, tx, roleByIDQuery(id).Suffix("FOR UPDATE"), types.ErrRoleNotFound)
		if err != nil {
			return nil, err
		}

		role.ID = id
		role.CreatedAt = current.CreatedAt
		role.UpdatedAt = time.Now()
		if role.Permissions == nil {
			role.Permissions = []string{}
		}

		_, err = exec(ctx, tx, psql().Update(roleTableName).
			Set("name", role.Name).
			Set("display_name", role.DisplayName).
			Set("description", role.Description).
			Set("permissions", role.Permissions).
			Set("is_active", role.IsActive).
			Set("updated_at", role.UpdatedAt).
			Where(sq.Eq{"id": id}))
		if isUniqueViolation(err) {
			return nil, types.NewValidationError("name", "a role with this name already exists")
		}
		if err != nil {
			return nil, fmt.Errorf("failed to update role %s: %w", id, err)
		}

		return actor.Entry(types.AuditActionUpdateRole, types.EntityRole, id, current, role), nil
	})
}

// DeactivateRole is the delete operation for roles; rows are kept so audit
// history that names them stays meaningful.
func (r *RoleRepository) DeactivateRole(ctx context.Context, id string, actor types.AuditContext) error {
	return withAudit(ctx, r.pool, func(tx pgx.Tx) (*types.AuditLogEntry, error) {
		affected, err := exec(ctx, tx, psql().Update(roleTableName).
			Set("is_active", false).
			Set("updated_at", time.Now()).
			Where(sq.Eq{"id": id}))
		if err != nil {
			return nil, fmt.Errorf("failed to deactivate role %s: %w", id, err)
		}
		if affected == 0 {
			return nil, types.ErrRoleNotFound
		}

		return actor.Entry(types.AuditActionDeactivateRole, types.EntityRole, id, nil, nil), nil
	})
}

// UpsertRole is used by the seeder and keeps the fixed id of each seed role.
func (r *RoleRepository) UpsertRole(ctx context.Context, role *types.Role) error {
	now := time.Now()
	role.CreatedAt = now
	role.UpdatedAt = now

	query, args, err := psql().
		Insert(roleTableName).
		SetMap(utils.StructToMap(role)).
		Suffix("ON CONFLICT (id) DO UPDATE SET display_name = EXCLUDED.display_name, description = EXCLUDED.description, permissions = EXCLUDED.permissions, is_active = EXCLUDED.is_active, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate upsert role query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to upsert role")
}
