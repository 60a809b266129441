package store

import (
	"context"

	"epatra/internal/utils"
	"epatra/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AnalyticsRepository struct {
	pool *pgxpool.Pool
}

func NewAnalyticsRepository(pool *pgxpool.Pool) *AnalyticsRepository {
	return &AnalyticsRepository{pool: pool}
}

func (r *AnalyticsRepository) DocumentStats(ctx context.Context) (*types.DocumentStats, error) {
	query, args, err := documentStatsQuery().ToSql()
	if err != nil {
		return nil, utils.ErrorWrapOrNil(err, "failed to generate document stats query")
	}

	var stats = new(types.DocumentStats)
	err = pgxscan.Get(ctx, r.pool, stats, query, args...)
	if err != nil {
		return nil, utils.ErrorWrapOrNil(err, "failed to compute document stats")
	}

	return stats, nil
}

func documentStatsQuery() sq.SelectBuilder {
	return psql().
		Select(
			"count(*) AS total",
			"count(*) FILTER (WHERE status = 'pending') AS pending",
			"count(*) FILTER (WHERE status = 'processing') AS processing",
			"count(*) FILTER (WHERE status = 'processed') AS processed",
			"count(*) FILTER (WHERE status = 'failed') AS failed",
			"round(avg(ocr_confidence)::numeric, 2)::float8 AS average_confidence",
		).
		From(documentTableName).
		Where(sq.Eq{"deleted_at": nil})
}
