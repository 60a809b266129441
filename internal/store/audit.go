package store

import (
	"context"
	"fmt"
	"time"

	"epatra/internal/utils"
	"epatra/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
)

const auditTableName = "epatra.audit_logs"

var auditColumns = utils.StructTagValues(types.AuditLogEntry{})

const defaultAuditLimit = 500

type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

// Append records a standalone entry. Mutations that own their entry write it
// through insertAuditEntry inside their own transaction instead.
func (r *AuditRepository) Append(ctx context.Context, entry *types.AuditLogEntry) error {
	return insertAuditEntry(ctx, r.pool, entry)
}

func insertAuditEntry(ctx context.Context, q Querier, entry *types.AuditLogEntry) error {
	entry.ID = utils.NanoID()
	entry.CreatedAt = time.Now()

	_, err := exec(ctx, q, psql().Insert(auditTableName).SetMap(utils.StructToMap(entry)))
	if err != nil {
		return fmt.Errorf("failed to append audit entry %s for %s %s: %w", entry.Action, entry.EntityType, entry.EntityID, err)
	}

	return nil
}

func (r *AuditRepository) Entries(ctx context.Context, filter types.AuditFilter) ([]*types.AuditLogEntry, error) {
	entries, err := selectMany[types.AuditLogEntry](ctx, r.pool, auditEntriesQuery(filter))
	return entries, utils.ErrorWrapOrNil(err, "failed to query audit log")
}

func auditEntriesQuery(filter types.AuditFilter) sq.SelectBuilder {
	q := psql().Select(auditColumns...).From(auditTableName)

	if filter.UserID != "" {
		q = q.Where(sq.Eq{"user_id": filter.UserID})
	}
	if filter.Action != "" {
		q = q.Where(sq.Eq{"action": filter.Action})
	}
	if filter.EntityID != "" {
		q = q.Where(sq.Eq{"entity_id": filter.EntityID})
	}

	limit := filter.Limit
	if limit == 0 || limit > defaultAuditLimit {
		limit = defaultAuditLimit
	}

	return q.OrderBy("created_at DESC", "id DESC").Limit(limit)
}
