package moderation

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Notifications stores per-user notifications. MarkRead is scoped to the
// owning user so a notification id leaked to another account is useless.
type Notifications interface {
	Create(ctx context.Context, record *Notification) (*Notification, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Notification) (*Notification, error)
	ListUnread(ctx context.Context, userID uuid.UUID) ([]*Notification, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID) error
}

// NotificationsRepository implements Notifications using Bun.
type NotificationsRepository struct {
	db  *bun.DB
	now func() time.Time
}

// NewNotificationsRepository creates a new repository.
func NewNotificationsRepository(db *bun.DB) *NotificationsRepository {
	return &NotificationsRepository{db: db, now: time.Now}
}

var _ Notifications = (*NotificationsRepository)(nil)

// Create inserts a notification.
func (r *NotificationsRepository) Create(ctx context.Context, record *Notification) (*Notification, error) {
	return r.CreateTx(ctx, r.db, record)
}

// CreateTx inserts a notification inside the caller's transaction.
func (r *NotificationsRepository) CreateTx(ctx context.Context, tx bun.IDB, record *Notification) (*Notification, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	_, err := tx.NewInsert().
		Model(record).
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	return record, nil
}

// ListUnread returns the user's unread notifications, oldest first.
func (r *NotificationsRepository) ListUnread(ctx context.Context, userID uuid.UUID) ([]*Notification, error) {
	var records []*Notification
	err := r.db.NewSelect().
		Model(&records).
		Where("user_id = ? AND read = ?", userID, false).
		Order("ntf.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// MarkRead flags the user's own notification as read.
func (r *NotificationsRepository) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	readAt := r.now()
	res, err := r.db.NewUpdate().
		Model((*Notification)(nil)).
		Set("read = ?", true).
		Set("read_at = ?", readAt).
		Where("id = ? AND user_id = ?", id, userID).
		Exec(ctx)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if affected == 0 {
		return goerrors.New("notification not found", goerrors.CategoryNotFound).
			WithCode(goerrors.CodeNotFound).
			WithMetadata(map[string]any{
				"notification_id": id.String(),
				"user_id":         userID.String(),
			})
	}

	return nil
}
