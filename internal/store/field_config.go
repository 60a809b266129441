package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"epatra/internal/utils"
	"epatra/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const fieldConfigTableName = "epatra.field_configurations"

var fieldConfigColumns = utils.StructTagValues(types.FieldConfiguration{})

type FieldConfigRepository struct {
	pool *pgxpool.Pool
}

func NewFieldConfigRepository(pool *pgxpool.Pool) *FieldConfigRepository {
	return &FieldConfigRepository{pool: pool}
}

func (r *FieldConfigRepository) FieldConfigs(ctx context.Context, activeOnly bool) ([]*types.FieldConfiguration, error) {
	q := psql().Select(fieldConfigColumns...).From(fieldConfigTableName)
	if activeOnly {
		q = q.Where(sq.Eq{"is_active": true})
	}

	fields, err := selectMany[types.FieldConfiguration](ctx, r.pool, q.OrderBy("display_order ASC", "name ASC"))
	return fields, utils.ErrorWrapOrNil(err, "failed to fetch field configurations")
}

func (r *FieldConfigRepository) FieldConfig(ctx context.Context, id string) (*types.FieldConfiguration, error) {
	return selectOne[types.FieldConfiguration](ctx, r.pool, fieldConfigByIDQuery(id), types.ErrFieldConfigNotFound)
}

func fieldConfigByIDQuery(id string) sq.SelectBuilder {
	return psql().Select(fieldConfigColumns...).From(fieldConfigTableName).Where(sq.Eq{"id": id}).Limit(1)
}

func (r *FieldConfigRepository) CreateFieldConfig(ctx context.Context, field *types.FieldConfiguration, actor types.AuditContext) error {
	if err := field.Validate(); err != nil {
		return err
	}

	now := time.Now()
	field.ID = utils.NanoID()
	field.CreatedAt = now
	field.UpdatedAt = now

	return withAudit(ctx, r.pool, func(tx pgx.Tx) (*types.AuditLogEntry, error) {
		_, err := exec(ctx, tx, psql().Insert(fieldConfigTableName).SetMap(utils.StructToMap(field)))
		if isUniqueViolation(err) {
			return nil, types.NewValidationError("name", "a field with this name already exists")
		}
		if err != nil {
			return nil, fmt.Errorf("failed to insert field configuration %s: %w", field.Name, err)
		}

		return actor.Entry(types.AuditActionCreateFieldConfig, types.EntityFieldConfig, field.ID, nil, field), nil
	})
}

func (r *FieldConfigRepository) UpdateFieldConfig(ctx context.Context, id string, field *types.FieldConfiguration, actor types.AuditContext) error {
	if err := field.Validate(); err != nil {
		return err
	}

	return withAudit(ctx, r.pool, func(tx pgx.Tx) (*types.AuditLogEntry, error) {
		current, err := selectOne[types.FieldConfiguration](ctx, tx, fieldConfigByIDQuery(id).Suffix("FOR UPDATE"), types.ErrFieldConfigNotFound)
		if err != nil {
			return nil, err
		}

		field.ID = id
		field.CreatedAt = current.CreatedAt
		field.UpdatedAt = time.Now()

		values := utils.StructToMap(field)
		delete(values, "id")
		delete(values, "created_at")

		_, err = exec(ctx, tx, psql().Update(fieldConfigTableName).SetMap(values).Where(sq.Eq{"id": id}))
		if isUniqueViolation(err) {
			return nil, types.NewValidationError("name", "a field with this name already exists")
		}
		if err != nil {
			return nil, fmt.Errorf("failed to update field configuration %s: %w", id, err)
		}

		return actor.Entry(types.AuditActionUpdateFieldConfig, types.EntityFieldConfig, id, current, field), nil
	})
}

func (r *FieldConfigRepository) DeleteFieldConfig(ctx context.Context, id string, actor types.AuditContext) error {
	return withAudit(ctx, r.pool, func(tx pgx.Tx) (*types.AuditLogEntry, error) {
		current, err := selectOne[types.FieldConfiguration](ctx, tx, fieldConfigByIDQuery(id).Suffix("FOR UPDATE"), types.ErrFieldConfigNotFound)
		if err != nil {
			return nil, err
		}

		_, err = exec(ctx, tx, psql().Delete(fieldConfigTableName).Where(sq.Eq{"id": id}))
		if err != nil {
			return nil, fmt.Errorf("failed to delete field configuration %s: %w", id, err)
		}

		return actor.Entry(types.AuditActionDeleteFieldConfig, types.EntityFieldConfig, id, current, nil), nil
	})
}

// UpsertFieldConfig is used by the seeder.
func (r *FieldConfigRepository) UpsertFieldConfig(ctx context.Context, field *types.FieldConfiguration) error {
	now := time.Now()
	field.CreatedAt = now
	field.UpdatedAt = now

	fieldMap := utils.StructToMap(field)

	updateMap := make(map[string]any)
	for k, v := range fieldMap {
		if k != "id" && k != "created_at" {
			updateMap[k] = v
		}
	}

	query, args, err := psql().
		Insert(fieldConfigTableName).
		SetMap(fieldMap).
		Suffix("ON CONFLICT (id) DO UPDATE SET " + buildUpdateClause(updateMap)).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate upsert field configuration query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to upsert field configuration")
}

// buildUpdateClause creates the SET clause for ON CONFLICT DO UPDATE
// e.g., "label = EXCLUDED.label, required = EXCLUDED.required, ..."
func buildUpdateClause(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var clause string
	for i, field := range keys {
		if i > 0 {
			clause += ", "
		}
		clause += fmt.Sprintf("%s = EXCLUDED.%s", field, field)
	}
	return clause
}
