package repository

import (
	"context"
	"database/sql"

	"github.com/educreche/notify-gateway/internal/model"
	"github.com/jmoiron/sqlx"
)

type InvoicesRepository interface {
	GetByAsaasPaymentID(ctx context.Context, paymentID string) (*model.Invoice, error)
	UpdateStatus(ctx context.Context, tx *sqlx.Tx, id string, status model.PaymentStatus) error
	Insert(ctx context.Context, tx *sqlx.Tx, inv model.Invoice) error
}

type InvoicesRepositoryImpl struct {
	db *sqlx.DB
}

func NewInvoicesRepository(db *sqlx.DB) *InvoicesRepositoryImpl {
	return &InvoicesRepositoryImpl{db: db}
}

var _ InvoicesRepository = (*InvoicesRepositoryImpl)(nil)

func (r *InvoicesRepositoryImpl) withTx(ctx context.Context, tx *sqlx.Tx, fn func(*sqlx.Tx) error) error {
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

func (r *InvoicesRepositoryImpl) GetByAsaasPaymentID(ctx context.Context, paymentID string) (*model.Invoice, error) {
	var inv model.Invoice
	err := r.db.GetContext(ctx, &inv, `
		SELECT id, family_account_id, asaas_payment_id, subscription_id,
		       amount_cents, due_date, status, created_at, updated_at
		  FROM invoices
		 WHERE asaas_payment_id = ? LIMIT 1
	`, paymentID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *InvoicesRepositoryImpl) UpdateStatus(ctx context.Context, tx *sqlx.Tx, id string, status model.PaymentStatus) error {
	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE invoices SET status = ?, updated_at = NOW() WHERE id = ?
		`, status.String(), id)
		return err
	})
}

func (r *InvoicesRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, inv model.Invoice) error {
	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO invoices
			    (id, family_account_id, asaas_payment_id, subscription_id,
			     amount_cents, due_date, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, NOW(), NOW())
		`,
			inv.ID, inv.FamilyAccountID, inv.AsaasPaymentID, inv.SubscriptionID,
			inv.AmountCents, inv.DueDate, inv.Status.String(),
		)
		return err
	})
}
