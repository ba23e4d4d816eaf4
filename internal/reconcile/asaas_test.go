package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/educreche/notify-gateway/internal/model"
	"github.com/jmoiron/sqlx"
)

type fakeInvoices struct {
	byPaymentID map[string]*model.Invoice
	updated     []struct {
		id     string
		status model.PaymentStatus
	}
	inserted []model.Invoice
}

func (f *fakeInvoices) GetByAsaasPaymentID(ctx context.Context, paymentID string) (*model.Invoice, error) {
	return f.byPaymentID[paymentID], nil
}

func (f *fakeInvoices) UpdateStatus(ctx context.Context, tx *sqlx.Tx, id string, status model.PaymentStatus) error {
	f.updated = append(f.updated, struct {
		id     string
		status model.PaymentStatus
	}{id, status})
	return nil
}

func (f *fakeInvoices) Insert(ctx context.Context, tx *sqlx.Tx, inv model.Invoice) error {
	f.inserted = append(f.inserted, inv)
	return nil
}

type fakeSubscriptions struct {
	byID map[string]*model.Subscription
}

func (f *fakeSubscriptions) GetByAsaasSubscriptionID(ctx context.Context, id string) (*model.Subscription, error) {
	return f.byID[id], nil
}

type fakeNotifications struct {
	created     []model.Notification
	existsSince bool
}

func (f *fakeNotifications) Insert(ctx context.Context, tx *sqlx.Tx, n model.Notification) error {
	f.created = append(f.created, n)
	return nil
}

func (f *fakeNotifications) InsertBatch(ctx context.Context, tx *sqlx.Tx, ns []model.Notification) error {
	f.created = append(f.created, ns...)
	return nil
}

func (f *fakeNotifications) ExistsSince(ctx context.Context, category model.NotificationCategory, since time.Time) (bool, error) {
	return f.existsSince, nil
}

func newAsaasFixture() (*AsaasReconciler, *fakeInvoices, *fakeSubscriptions, *fakeNotifications) {
	inv := &fakeInvoices{byPaymentID: map[string]*model.Invoice{}}
	subs := &fakeSubscriptions{byID: map[string]*model.Subscription{}}
	noti := &fakeNotifications{}
	return NewAsaasReconciler(nil, inv, subs, noti), inv, subs, noti
}

func TestMapAsaasStatus(t *testing.T) {
	cases := []struct {
		code string
		want model.PaymentStatus
	}{
		{"RECEIVED", model.PaymentPaid},
		{"CONFIRMED", model.PaymentPaid},
		{"RECEIVED_IN_CASH", model.PaymentPaid},
		{"OVERDUE", model.PaymentOverdue},
		{"REFUNDED", model.PaymentRefunded},
		{"REFUND_REQUESTED", model.PaymentRefunding},
		{"REFUND_IN_PROGRESS", model.PaymentRefunding},
		{"CHARGEBACK_REQUESTED", model.PaymentChargeback},
		{"CHARGEBACK_DISPUTE", model.PaymentChargeback},
		{"AWAITING_CHARGEBACK_REVERSAL", model.PaymentChargeback},
		{" received ", model.PaymentPaid},
		{"SOMETHING_NEW", model.PaymentPending},
		{"", model.PaymentPending},
	}

	for _, c := range cases {
		if got := MapAsaasStatus(c.code); got != c.want {
			t.Errorf("MapAsaasStatus(%q) = %s, want %s", c.code, got, c.want)
		}
	}
}

func TestAsaasIgnoresEmptyPayment(t *testing.T) {
	r, _, _, _ := newAsaasFixture()

	res, err := r.Process(context.Background(), AsaasWebhookPayload{Event: "PAYMENT_RECEIVED"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Outcome != OutcomeIgnored {
		t.Errorf("outcome = %s, want ignored", res.Outcome)
	}
}

func TestAsaasAppliesStatusChange(t *testing.T) {
	r, inv, _, noti := newAsaasFixture()
	inv.byPaymentID["pay_1"] = &model.Invoice{ID: "inv_1", FamilyAccountID: 42, Status: model.PaymentPending}

	res, err := r.Process(context.Background(), AsaasWebhookPayload{
		Event:   "PAYMENT_RECEIVED",
		Payment: &AsaasPayment{ID: "pay_1", Status: "RECEIVED"},
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if res.Outcome != OutcomeApplied || res.Status != model.PaymentPaid {
		t.Fatalf("result = %+v", res)
	}
	if len(inv.updated) != 1 || inv.updated[0].status != model.PaymentPaid {
		t.Fatalf("updates = %+v", inv.updated)
	}
	if len(noti.created) != 1 || noti.created[0].AccountID != 42 {
		t.Fatalf("notifications = %+v", noti.created)
	}
	if noti.created[0].Category != model.CategoryPayment {
		t.Errorf("category = %s", noti.created[0].Category)
	}
}

func TestAsaasDuplicateDeliveryIsNoOp(t *testing.T) {
	r, inv, _, noti := newAsaasFixture()
	inv.byPaymentID["pay_1"] = &model.Invoice{ID: "inv_1", Status: model.PaymentPaid}

	res, err := r.Process(context.Background(), AsaasWebhookPayload{
		Event:   "PAYMENT_RECEIVED",
		Payment: &AsaasPayment{ID: "pay_1", Status: "CONFIRMED"},
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if res.Outcome != OutcomeUnchanged {
		t.Fatalf("outcome = %s, want unchanged", res.Outcome)
	}
	if len(inv.updated) != 0 {
		t.Error("identical overwrite must not touch the row")
	}
	if len(noti.created) != 0 {
		t.Error("notification is edge-triggered; duplicate delivery created one")
	}
}

func TestAsaasSynthesizesInvoiceFromSubscription(t *testing.T) {
	r, inv, subs, noti := newAsaasFixture()
	subs.byID["sub_9"] = &model.Subscription{ID: "s_local", FamilyAccountID: 7, AsaasSubscriptionID: "sub_9"}

	res, err := r.Process(context.Background(), AsaasWebhookPayload{
		Event: "PAYMENT_OVERDUE",
		Payment: &AsaasPayment{
			ID:           "pay_new",
			Subscription: "sub_9",
			Status:       "OVERDUE",
			Value:        899.0,
			DueDate:      "2026-09-10",
		},
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if res.Outcome != OutcomeSynthesized {
		t.Fatalf("outcome = %s, want synthesized", res.Outcome)
	}
	if len(inv.inserted) != 1 {
		t.Fatalf("inserted %d invoices, want 1", len(inv.inserted))
	}

	created := inv.inserted[0]
	if created.FamilyAccountID != 7 || created.Status != model.PaymentOverdue {
		t.Errorf("invoice = %+v", created)
	}
	if created.AsaasPaymentID == nil || *created.AsaasPaymentID != "pay_new" {
		t.Error("synthesized invoice must carry the payment id for future deliveries")
	}
	if created.AmountCents != 89900 {
		t.Errorf("amount_cents = %d, want 89900", created.AmountCents)
	}
	if len(noti.created) != 1 {
		t.Errorf("notifications = %+v", noti.created)
	}
}

func TestAsaasOrphanedPaymentIsDroppedWithoutError(t *testing.T) {
	r, inv, _, noti := newAsaasFixture()

	res, err := r.Process(context.Background(), AsaasWebhookPayload{
		Event:   "PAYMENT_RECEIVED",
		Payment: &AsaasPayment{ID: "pay_x", Subscription: "sub_unknown", Status: "RECEIVED"},
	})
	if err != nil {
		t.Fatalf("orphaned payment must not error: %v", err)
	}

	if res.Outcome != OutcomeOrphaned {
		t.Fatalf("outcome = %s, want orphaned", res.Outcome)
	}
	if len(inv.inserted) != 0 || len(noti.created) != 0 {
		t.Error("orphaned event must not persist anything")
	}
}
