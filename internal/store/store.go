package store

import (
	"context"
	"errors"
	"fmt"

	"epatra/internal/utils"
	"epatra/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func psql() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

// withAudit runs fn in a transaction and appends the entry it returns before
// committing, so a mutation never exists without its audit trace.
func withAudit(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) (*types.AuditLogEntry, error)) error {
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		entry, err := fn(tx)
		if err != nil {
			return err
		}
		if entry == nil {
			return nil
		}
		return insertAuditEntry(ctx, tx, entry)
	})
}

func selectOne[T any](ctx context.Context, q Querier, builder sq.Sqlizer, notFound error) (*T, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate query: %w", err)
	}

	var out = new(T)
	err = pgxscan.Get(ctx, q, out, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, notFound
		}
		return nil, err
	}

	return out, nil
}

func selectMany[T any](ctx context.Context, q Querier, builder sq.Sqlizer) ([]*T, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate query: %w", err)
	}

	var out = make([]*T, 0)
	err = pgxscan.Select(ctx, q, &out, query, args...)
	return out, utils.ErrorWrapOrNil(err, "failed to select rows")
}

func exec(ctx context.Context, q Querier, builder sq.Sqlizer) (int64, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to generate query: %w", err)
	}

	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func returning(columns []string) string {
	out := "RETURNING "
	for i, c := range columns {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
