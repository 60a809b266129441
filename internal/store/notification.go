package store

import (
	"context"
	"time"

	"epatra/internal/utils"
	"epatra/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
)

const notificationTableName = "epatra.notifications"

var notificationColumns = utils.StructTagValues(types.Notification{})

type NotificationRepository struct {
	pool *pgxpool.Pool
}

func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

func (r *NotificationRepository) CreateNotification(ctx context.Context, n *types.Notification) error {
	n.ID = utils.NanoID()
	n.CreatedAt = time.Now()

	_, err := exec(ctx, r.pool, psql().Insert(notificationTableName).SetMap(utils.StructToMap(n)))
	return utils.ErrorWrapOrNil(err, "failed to create notification")
}

func (r *NotificationRepository) NotificationsForUser(ctx context.Context, userID string, unreadOnly bool) ([]*types.Notification, error) {
	q := psql().
		Select(notificationColumns...).
		From(notificationTableName).
		Where(sq.Eq{"user_id": userID})
	if unreadOnly {
		q = q.Where(sq.Eq{"read_at": nil})
	}

	out, err := selectMany[types.Notification](ctx, r.pool, q.OrderBy("created_at DESC").Limit(100))
	return out, utils.ErrorWrapOrNil(err, "failed to list notifications")
}

// MarkNotificationRead is scoped by user so nobody can acknowledge another
// user's notification.
func (r *NotificationRepository) MarkNotificationRead(ctx context.Context, userID, id string) error {
	affected, err := exec(ctx, r.pool, psql().
		Update(notificationTableName).
		Set("read_at", sq.Expr("COALESCE(read_at, ?)", time.Now())).
		Where(sq.Eq{"id": id, "user_id": userID}))
	if err != nil {
		return utils.ErrorWrapOrNil(err, "failed to mark notification read")
	}
	if affected == 0 {
		return types.ErrNotificationNotFound
	}
	return nil
}
