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

const communicationTableName = "epatra.communication_logs"

var communicationColumns = utils.StructTagValues(types.CommunicationLog{})

type CommunicationRepository struct {
	pool *pgxpool.Pool
}

func NewCommunicationRepository(pool *pgxpool.Pool) *CommunicationRepository {
	return &CommunicationRepository{pool: pool}
}

func (r *CommunicationRepository) CreateCommunication(ctx context.Context, c *types.CommunicationLog, actor types.AuditContext) error {
	if err := c.Validate(); err != nil {
		return err
	}

	now := time.Now()
	c.ID = utils.NanoID()
	c.CreatedAt = now
	c.UpdatedAt = now
	if c.Status == "" {
		c.Status = types.DeliveryQueued
	}

	return withAudit(ctx, r.pool, func(tx pgx.Tx) (*types.AuditLogEntry, error) {
		_, err := exec(ctx, tx, psql().Insert(communicationTableName).SetMap(utils.StructToMap(c)))
		if err != nil {
			return nil, fmt.Errorf("failed to insert communication: %w", err)
		}

		return actor.Entry(types.AuditActionSendCommunication, types.EntityCommunication, c.ID, nil, c), nil
	})
}

func (r *CommunicationRepository) Communication(ctx context.Context, id string) (*types.CommunicationLog, error) {
	return selectOne[types.CommunicationLog](ctx, r.pool, communicationByIDQuery(id), types.ErrCommunicationNotFound)
}

func communicationByIDQuery(id string) sq.SelectBuilder {
	return psql().
		Select(communicationColumns...).
		From(communicationTableName).
		Where(sq.Eq{"id": id}).
		Limit(1)
}

func (r *CommunicationRepository) Communications(ctx context.Context, filter types.CommunicationFilter) ([]*types.CommunicationLog, error) {
	q := psql().Select(communicationColumns...).From(communicationTableName)

	if filter.Channel != "" {
		q = q.Where(sq.Eq{"channel": filter.Channel})
	}
	if filter.Status != "" {
		q = q.Where(sq.Eq{"status": filter.Status})
	}
	if filter.DocumentID != "" {
		q = q.Where(sq.Eq{"document_id": filter.DocumentID})
	}

	out, err := selectMany[types.CommunicationLog](ctx, r.pool, q.OrderBy("created_at DESC"))
	return out, utils.ErrorWrapOrNil(err, "failed to list communications")
}

// UpdateDeliveryStatus records the outcome reported by a sender or a provider
// callback. The update only matches while the stored status may advance to
// status, so a late report cannot undo a final outcome.
func (r *CommunicationRepository) UpdateDeliveryStatus(ctx context.Context, id string, status types.DeliveryStatus, providerMessageID, errorMessage *string, actor types.AuditContext) (*types.CommunicationLog, error) {
	if !status.Valid() {
		return nil, types.NewValidationError("status", "unknown delivery status")
	}

	var updated *types.CommunicationLog

	err := withAudit(ctx, r.pool, func(tx pgx.Tx) (*types.AuditLogEntry, error) {
		var err error
		updated, err = selectOne[types.CommunicationLog](ctx, tx, deliveryStatusQuery(id, status, providerMessageID, errorMessage, time.Now()), types.ErrCommunicationNotFound)
		if errors.Is(err, types.ErrCommunicationNotFound) {
			current, lookupErr := selectOne[types.CommunicationLog](ctx, tx, communicationByIDQuery(id), types.ErrCommunicationNotFound)
			if lookupErr != nil {
				return nil, lookupErr
			}
			return nil, fmt.Errorf("%w: communication %s is already %s", types.ErrInvalidTransition, id, current.Status)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to update communication %s: %w", id, err)
		}

		return actor.Entry(types.AuditActionCommunicationUpdated, types.EntityCommunication, id, nil, map[string]any{"status": status}), nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func deliveryStatusQuery(id string, status types.DeliveryStatus, providerMessageID, errorMessage *string, now time.Time) sq.UpdateBuilder {
	q := psql().Update(communicationTableName).
		Set("status", status).
		Set("updated_at", sq.Expr("GREATEST(updated_at, ?)", now))
	if providerMessageID != nil {
		q = q.Set("provider_message_id", *providerMessageID)
	}
	if errorMessage != nil {
		q = q.Set("error_message", *errorMessage)
	}

	return q.
		Where(sq.Eq{"id": id, "status": status.Predecessors()}).
		Suffix(returning(communicationColumns))
}
