package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/educreche/notify-gateway/internal/model"
	"github.com/educreche/notify-gateway/internal/repository"
	"github.com/educreche/notify-gateway/internal/util"
	"github.com/jmoiron/sqlx"
)

// AsaasWebhookPayload is the provider callback shape. Only the fields the
// reconciliation touches are modeled; everything else is ignored.
type AsaasWebhookPayload struct {
	Event   string        `json:"event"`
	Payment *AsaasPayment `json:"payment"`
}

type AsaasPayment struct {
	ID           string  `json:"id"`
	Subscription string  `json:"subscription"`
	Status       string  `json:"status"`
	Value        float64 `json:"value"`
	DueDate      string  `json:"dueDate"` // "2006-01-02"
}

// asaasStatusMap is the fixed lookup from provider status codes to internal
// payment status. Unmapped codes fold to pending so no event is silently lost.
var asaasStatusMap = map[string]model.PaymentStatus{
	"RECEIVED":                     model.PaymentPaid,
	"CONFIRMED":                    model.PaymentPaid,
	"RECEIVED_IN_CASH":             model.PaymentPaid,
	"OVERDUE":                      model.PaymentOverdue,
	"REFUNDED":                     model.PaymentRefunded,
	"REFUND_REQUESTED":             model.PaymentRefunding,
	"REFUND_IN_PROGRESS":           model.PaymentRefunding,
	"CHARGEBACK_REQUESTED":         model.PaymentChargeback,
	"CHARGEBACK_DISPUTE":           model.PaymentChargeback,
	"AWAITING_CHARGEBACK_REVERSAL": model.PaymentChargeback,
}

// MapAsaasStatus resolves a provider status code; unknown codes map to
// pending.
func MapAsaasStatus(code string) model.PaymentStatus {
	if st, ok := asaasStatusMap[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return st
	}
	return model.PaymentPending
}

// Outcome classifies one webhook application.
type Outcome string

const (
	OutcomeApplied     Outcome = "applied"     // status changed, notification created
	OutcomeUnchanged   Outcome = "unchanged"   // duplicate delivery, no-op
	OutcomeSynthesized Outcome = "synthesized" // unknown payment, invoice created from subscription
	OutcomeOrphaned    Outcome = "orphaned"    // unknown payment, no subscription match; logged and dropped
	OutcomeIgnored     Outcome = "ignored"     // payload carries nothing to reconcile
)

type AsaasResult struct {
	Outcome   Outcome
	InvoiceID string
	Status    model.PaymentStatus
}

// AsaasReconciler applies payment webhooks to invoices idempotently. The
// local status is authoritative between deliveries; only verified provider
// events move it.
type AsaasReconciler struct {
	db            *sqlx.DB
	invoices      repository.InvoicesRepository
	subscriptions repository.SubscriptionsRepository
	notifications repository.NotificationsRepository
}

func NewAsaasReconciler(
	db *sqlx.DB,
	invoices repository.InvoicesRepository,
	subscriptions repository.SubscriptionsRepository,
	notifications repository.NotificationsRepository,
) *AsaasReconciler {
	return &AsaasReconciler{
		db:            db,
		invoices:      invoices,
		subscriptions: subscriptions,
		notifications: notifications,
	}
}

func (r *AsaasReconciler) Process(ctx context.Context, p AsaasWebhookPayload) (AsaasResult, error) {
	if p.Payment == nil || p.Payment.ID == "" {
		return AsaasResult{Outcome: OutcomeIgnored}, nil
	}

	newStatus := MapAsaasStatus(p.Payment.Status)

	inv, err := r.invoices.GetByAsaasPaymentID(ctx, p.Payment.ID)
	if err != nil {
		return AsaasResult{}, err
	}

	if inv == nil {
		return r.handleUnknownPayment(ctx, p.Payment, newStatus)
	}

	// Overwrite to the same value is a natural no-op; the notification is
	// edge-triggered so a repeated identical delivery creates nothing.
	if inv.Status == newStatus {
		return AsaasResult{Outcome: OutcomeUnchanged, InvoiceID: inv.ID, Status: newStatus}, nil
	}

	err = r.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := r.invoices.UpdateStatus(ctx, tx, inv.ID, newStatus); err != nil {
			return err
		}
		return r.notifications.Insert(ctx, tx, model.Notification{
			ID:        util.New(),
			AccountID: inv.FamilyAccountID,
			Category:  model.CategoryPayment,
			Title:     "Pagamento atualizado",
			Body:      fmt.Sprintf("Fatura %s mudou para %s", inv.ID, newStatus),
		})
	})
	if err != nil {
		return AsaasResult{}, err
	}
	return AsaasResult{Outcome: OutcomeApplied, InvoiceID: inv.ID, Status: newStatus}, nil
}

// handleUnknownPayment synthesizes an invoice when the payment belongs to a
// known recurring subscription; otherwise the event is dropped without error
// so the provider never sees a failing endpoint.
func (r *AsaasReconciler) handleUnknownPayment(ctx context.Context, p *AsaasPayment, status model.PaymentStatus) (AsaasResult, error) {
	if p.Subscription == "" {
		return AsaasResult{Outcome: OutcomeOrphaned}, nil
	}

	sub, err := r.subscriptions.GetByAsaasSubscriptionID(ctx, p.Subscription)
	if err != nil {
		return AsaasResult{}, err
	}
	if sub == nil {
		return AsaasResult{Outcome: OutcomeOrphaned}, nil
	}

	dueDate, err := time.Parse("2006-01-02", p.DueDate)
	if err != nil {
		dueDate = time.Now()
	}

	paymentID := p.ID
	inv := model.Invoice{
		ID:              util.New(),
		FamilyAccountID: sub.FamilyAccountID,
		AsaasPaymentID:  &paymentID,
		SubscriptionID:  &sub.ID,
		AmountCents:     int64(p.Value * 100),
		DueDate:         dueDate,
		Status:          status,
	}

	err = r.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := r.invoices.Insert(ctx, tx, inv); err != nil {
			return err
		}
		return r.notifications.Insert(ctx, tx, model.Notification{
			ID:        util.New(),
			AccountID: sub.FamilyAccountID,
			Category:  model.CategoryPayment,
			Title:     "Nova cobrança",
			Body:      fmt.Sprintf("Fatura %s criada com status %s", inv.ID, status),
		})
	})
	if err != nil {
		return AsaasResult{}, err
	}
	return AsaasResult{Outcome: OutcomeSynthesized, InvoiceID: inv.ID, Status: status}, nil
}

func (r *AsaasReconciler) inTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if r.db == nil {
		return fn(nil)
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
