package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"epatra/internal/utils"
	"epatra/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const documentTableName = "epatra.documents"

var documentColumns = utils.StructTagValues(types.Document{})

type DocumentRepository struct {
	pool *pgxpool.Pool
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{pool: pool}
}

// CreateDocument assigns id, timestamps and the pending status, then inserts
// the document and its audit entry together.
func (r *DocumentRepository) CreateDocument(ctx context.Context, doc *types.Document, actor types.AuditContext) error {
	prepareNewDocument(doc, time.Now())
	if err := doc.Validate(); err != nil {
		return err
	}

	return withAudit(ctx, r.pool, func(tx pgx.Tx) (*types.AuditLogEntry, error) {
		query, args, err := psql().Insert(documentTableName).SetMap(utils.StructToMap(doc)).ToSql()
		if err != nil {
			return nil, fmt.Errorf("failed to generate insert document query: %w", err)
		}

		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return nil, fmt.Errorf("failed to insert document: %w", err)
		}

		return actor.Entry(types.AuditActionCreateDocument, types.EntityDocument, doc.ID, nil, doc), nil
	})
}

func prepareNewDocument(doc *types.Document, now time.Time) {
	doc.ID = utils.NanoID()
	doc.Status = types.DocumentStatusPending
	doc.CreatedAt = now
	doc.UpdatedAt = now
	doc.DeletedAt = nil
}

func (r *DocumentRepository) Document(ctx context.Context, id string) (*types.Document, error) {
	return selectOne[types.Document](ctx, r.pool, documentByIDQuery(id), types.ErrDocumentNotFound)
}

func documentByIDQuery(id string) sq.SelectBuilder {
	return psql().
		Select(documentColumns...).
		From(documentTableName).
		Where(sq.Eq{"id": id, "deleted_at": nil}).
		Limit(1)
}

func (r *DocumentRepository) Documents(ctx context.Context, filter types.DocumentFilter) ([]*types.Document, error) {
	docs, err := selectMany[types.Document](ctx, r.pool, documentsQuery(filter))
	return docs, utils.ErrorWrapOrNil(err, "failed to list documents")
}

// documentsQuery ANDs every set filter; search matches subject or topic
// case-insensitively.
func documentsQuery(filter types.DocumentFilter) sq.SelectBuilder {
	q := psql().
		Select(documentColumns...).
		From(documentTableName).
		Where(sq.Eq{"deleted_at": nil})

	if filter.Status != "" {
		q = q.Where(sq.Eq{"status": filter.Status})
	}

	if filter.LetterType != "" {
		q = q.Where(sq.Eq{"letter_type": filter.LetterType})
	}

	if filter.Search != "" {
		pattern := "%" + escapeLike(filter.Search) + "%"
		q = q.Where(sq.Or{
			sq.ILike{"subject": pattern},
			sq.ILike{"topic": pattern},
		})
	}

	return q.OrderBy("created_at DESC", "id DESC")
}

func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, c := range s {
		if c == '%' || c == '_' || c == '\\' {
			out = append(out, '\\')
		}
		out = append(out, c)
	}
	return string(out)
}

// UpdateDocument applies a whitelisted patch under a row lock and records the
// before and after snapshots.
func (r *DocumentRepository) UpdateDocument(ctx context.Context, id string, update *types.DocumentUpdate, actor types.AuditContext) (*types.Document, error) {
	var updated *types.Document

	err := withAudit(ctx, r.pool, func(tx pgx.Tx) (*types.AuditLogEntry, error) {
		current, err := selectOne[types.Document](ctx, tx, documentByIDQuery(id).Suffix("FOR UPDATE"), types.ErrDocumentNotFound)
		if err != nil {
			return nil, err
		}

		updated, err = selectOne[types.Document](ctx, tx, documentUpdateQuery(id, update, actor.UserID, time.Now()), types.ErrDocumentNotFound)
		if err != nil {
			return nil, fmt.Errorf("failed to update document %s: %w", id, err)
		}

		return actor.Entry(types.AuditActionUpdateDocument, types.EntityDocument, id, current, updated), nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func documentUpdateQuery(id string, update *types.DocumentUpdate, processedBy string, now time.Time) sq.UpdateBuilder {
	q := psql().Update(documentTableName)

	for column, value := range utils.StructToMap(update.LetterFields) {
		if v := value.(*string); v != nil {
			q = q.Set(column, *v)
		}
	}

	if update.OCRText != nil {
		q = q.Set("ocr_text", *update.OCRText)
	}

	if processedBy != "" {
		q = q.Set("processed_by", processedBy)
	}

	return q.
		Set("updated_at", sq.Expr("GREATEST(updated_at, ?)", now)).
		Where(sq.Eq{"id": id, "deleted_at": nil}).
		Suffix(returning(documentColumns))
}

// TransitionDocument moves a document between statuses. The update only
// matches while the row is still in t.From, so a stale or skipped transition
// affects nothing and is reported as ErrInvalidTransition.
func (r *DocumentRepository) TransitionDocument(ctx context.Context, t *types.DocumentTransition) (*types.Document, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	var updated *types.Document

	err := withAudit(ctx, r.pool, func(tx pgx.Tx) (*types.AuditLogEntry, error) {
		var err error
		updated, err = selectOne[types.Document](ctx, tx, transitionQuery(t, time.Now()), types.ErrDocumentNotFound)
		if errors.Is(err, types.ErrDocumentNotFound) {
			if _, lookupErr := selectOne[types.Document](ctx, tx, documentByIDQuery(t.DocumentID), types.ErrDocumentNotFound); lookupErr != nil {
				return nil, lookupErr
			}
			return nil, fmt.Errorf("%w: document %s is not %s", types.ErrInvalidTransition, t.DocumentID, t.From)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to transition document %s: %w", t.DocumentID, err)
		}

		return t.Audit, nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func transitionQuery(t *types.DocumentTransition, now time.Time) sq.UpdateBuilder {
	q := psql().Update(documentTableName).
		Set("status", t.To).
		Set("updated_at", sq.Expr("GREATEST(updated_at, ?)", now))

	if e := t.Enrichment; e != nil {
		if e.OCRText != nil {
			q = q.Set("ocr_text", *e.OCRText)
		}
		if e.OCRConfidence != nil {
			q = q.Set("ocr_confidence", *e.OCRConfidence)
		}
		if e.ExtractedData != nil {
			q = q.Set("extracted_data", e.ExtractedData)

			if t.FillMetadata {
				for column, value := range utils.StructToMap(e.ExtractedData.Letter()) {
					if v := value.(*string); v != nil {
						q = q.Set(column, sq.Expr(fmt.Sprintf("COALESCE(%s, ?)", column), *v))
					}
				}
			}
		}
		if e.AIAnalysis != nil {
			q = q.Set("ai_analysis", e.AIAnalysis)
		}
	}

	if t.ProcessedBy != nil {
		q = q.Set("processed_by", *t.ProcessedBy)
	}

	return q.
		Where(sq.Eq{"id": t.DocumentID, "status": t.From, "deleted_at": nil}).
		Suffix(returning(documentColumns))
}

// DeleteDocument soft-deletes so audit and communication rows keep a valid
// history. The file itself stays in blob storage.
func (r *DocumentRepository) DeleteDocument(ctx context.Context, id string, actor types.AuditContext) error {
	return withAudit(ctx, r.pool, func(tx pgx.Tx) (*types.AuditLogEntry, error) {
		now := time.Now()
		affected, err := exec(ctx, tx, psql().Update(documentTableName).
			Set("deleted_at", now).
			Set("updated_at", sq.Expr("GREATEST(updated_at, ?)", now)).
			Where(sq.Eq{"id": id, "deleted_at": nil}))
		if err != nil {
			return nil, fmt.Errorf("failed to delete document %s: %w", id, err)
		}
		if affected == 0 {
			return nil, types.ErrDocumentNotFound
		}

		return actor.Entry(types.AuditActionDeleteDocument, types.EntityDocument, id, nil, nil), nil
	})
}
