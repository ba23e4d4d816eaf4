package model

import "time"

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentPaid       PaymentStatus = "paid"
	PaymentOverdue    PaymentStatus = "overdue"
	PaymentRefunded   PaymentStatus = "refunded"
	PaymentRefunding  PaymentStatus = "refunding"
	PaymentChargeback PaymentStatus = "chargeback"
)

func (s PaymentStatus) String() string { return string(s) }

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentOverdue, PaymentRefunded, PaymentRefunding, PaymentChargeback:
		return true
	}
	return false
}

// Invoice is a reconciliation target: its status tracks the remote payment
// status reported by the gateway. AsaasPaymentID is the webhook correlation key.
type Invoice struct {
	ID              string        `db:"id"`
	FamilyAccountID int64         `db:"family_account_id"`
	AsaasPaymentID  *string       `db:"asaas_payment_id"`
	SubscriptionID  *string       `db:"subscription_id"`
	AmountCents     int64         `db:"amount_cents"`
	DueDate         time.Time     `db:"due_date"`
	Status          PaymentStatus `db:"status"`
	CreatedAt       time.Time     `db:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at"`
}

// Subscription backs the unknown-payment fallback: a webhook for a payment we
// have no invoice for is accepted when its subscription id matches a row here.
type Subscription struct {
	ID                  string    `db:"id"`
	FamilyAccountID     int64     `db:"family_account_id"`
	AsaasSubscriptionID string    `db:"asaas_subscription_id"`
	AmountCents         int64     `db:"amount_cents"`
	Active              bool      `db:"active"`
	CreatedAt           time.Time `db:"created_at"`
}
