package repository

import (
	"context"
	"time"

	"github.com/educreche/notify-gateway/internal/model"
	"github.com/jmoiron/sqlx"
)

type NotificationsRepository interface {
	Insert(ctx context.Context, tx *sqlx.Tx, n model.Notification) error
	InsertBatch(ctx context.Context, tx *sqlx.Tx, ns []model.Notification) error

	// ExistsSince reports whether any notification of the category was created
	// at or after the cutoff; backs the one-alert-per-hour dedup guard when
	// Redis is unavailable.
	ExistsSince(ctx context.Context, category model.NotificationCategory, since time.Time) (bool, error)
}

type NotificationsRepositoryImpl struct {
	db *sqlx.DB
}

func NewNotificationsRepository(db *sqlx.DB) *NotificationsRepositoryImpl {
	return &NotificationsRepositoryImpl{db: db}
}

var _ NotificationsRepository = (*NotificationsRepositoryImpl)(nil)

func (r *NotificationsRepositoryImpl) withTx(ctx context.Context, tx *sqlx.Tx, fn func(*sqlx.Tx) error) error {
	if tx != nil {
		return fn(tx)
	}
	t, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = t.Rollback() }()
	if err := fn(t); err != nil {
		return err
	}
	return t.Commit()
}

func (r *NotificationsRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, n model.Notification) error {
	return r.InsertBatch(ctx, tx, []model.Notification{n})
}

func (r *NotificationsRepositoryImpl) InsertBatch(ctx context.Context, tx *sqlx.Tx, ns []model.Notification) error {
	if len(ns) == 0 {
		return nil
	}
	const q = `
		INSERT INTO notifications (id, account_id, category, title, body, created_at)
		VALUES (?, ?, ?, ?, ?, NOW())
	`
	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		for _, n := range ns {
			if _, err := tx.ExecContext(ctx, q, n.ID, n.AccountID, n.Category.String(), n.Title, n.Body); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *NotificationsRepositoryImpl) ExistsSince(ctx context.Context, category model.NotificationCategory, since time.Time) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM notifications WHERE category = ? AND created_at >= ?
	`, category.String(), since)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
