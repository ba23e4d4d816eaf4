package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/educreche/notify-gateway/internal/health"
	"github.com/educreche/notify-gateway/internal/model"
	"github.com/educreche/notify-gateway/internal/reconcile"
	"github.com/educreche/notify-gateway/internal/repository"
	"github.com/educreche/notify-gateway/internal/retry"
	"github.com/jmoiron/sqlx"
	echo "github.com/labstack/echo/v4"
)

// ---- fakes ----

type fakeMessageLog struct {
	eligible   []model.MessageRecord
	created    []model.MessageRecord
	dispatched []string
	failures   int
	permanents int
}

func (f *fakeMessageLog) SelectEligible(ctx context.Context, channel model.Channel, limit int, staleClaim time.Duration) ([]model.MessageRecord, error) {
	return f.eligible, nil
}

func (f *fakeMessageLog) Claim(ctx context.Context, id string, expectedRetryCount int, staleClaim time.Duration) (bool, error) {
	return true, nil
}

func (f *fakeMessageLog) RecordSuccess(ctx context.Context, rec *model.MessageRecord, providerMessageID string, providerContactID *string) error {
	f.dispatched = append(f.dispatched, rec.ID)
	rec.Status = model.StatusSent
	return nil
}

func (f *fakeMessageLog) RecordFailure(ctx context.Context, rec *model.MessageRecord, sendErr string) (model.MessageStatus, error) {
	f.failures++
	rec.RetryCount++
	if rec.RetryCount >= model.MaxRetries {
		rec.Status = model.StatusFailedPermanent
		return model.StatusFailedPermanent, nil
	}
	rec.Status = model.StatusError
	return model.StatusError, nil
}

func (f *fakeMessageLog) FailPermanently(ctx context.Context, rec *model.MessageRecord, reason string) error {
	f.permanents++
	rec.Status = model.StatusFailedPermanent
	return nil
}

func (f *fakeMessageLog) Create(ctx context.Context, channel model.Channel, recipient, subject, body, template string) (*model.MessageRecord, error) {
	rec := model.MessageRecord{
		ID:        "rec-1",
		Channel:   channel,
		Recipient: recipient,
		Subject:   subject,
		Body:      body,
		Template:  template,
		Status:    model.StatusPending,
	}
	f.created = append(f.created, rec)
	return &rec, nil
}

type fakeWAChannel struct {
	configured  bool
	resolveErr  error
	dispatchErr error
}

func (c *fakeWAChannel) Name() model.Channel { return model.ChannelWhatsApp }

func (c *fakeWAChannel) Configured() bool { return c.configured }

func (c *fakeWAChannel) ResolveContact(ctx context.Context, rec *model.MessageRecord) (string, error) {
	if c.resolveErr != nil {
		return "", c.resolveErr
	}
	return "ct_1", nil
}

func (c *fakeWAChannel) Dispatch(ctx context.Context, rec *model.MessageRecord, contactID string) (string, error) {
	if c.dispatchErr != nil {
		return "", c.dispatchErr
	}
	return "wam_1", nil
}

type fakeInvoices struct {
	byPaymentID map[string]*model.Invoice
	updates     int
}

func (f *fakeInvoices) GetByAsaasPaymentID(ctx context.Context, paymentID string) (*model.Invoice, error) {
	return f.byPaymentID[paymentID], nil
}

func (f *fakeInvoices) UpdateStatus(ctx context.Context, tx *sqlx.Tx, id string, status model.PaymentStatus) error {
	f.updates++
	return nil
}

func (f *fakeInvoices) Insert(ctx context.Context, tx *sqlx.Tx, inv model.Invoice) error { return nil }

type fakeSubscriptions struct{}

func (fakeSubscriptions) GetByAsaasSubscriptionID(ctx context.Context, id string) (*model.Subscription, error) {
	return nil, nil
}

type fakeNotifications struct{ created int }

func (f *fakeNotifications) Insert(ctx context.Context, tx *sqlx.Tx, n model.Notification) error {
	f.created++
	return nil
}

func (f *fakeNotifications) InsertBatch(ctx context.Context, tx *sqlx.Tx, ns []model.Notification) error {
	f.created += len(ns)
	return nil
}

func (f *fakeNotifications) ExistsSince(ctx context.Context, category model.NotificationCategory, since time.Time) (bool, error) {
	return false, nil
}

type fakeContracts struct {
	byToken map[string]*model.Contract
}

func (f *fakeContracts) GetByDocToken(ctx context.Context, docToken string) (*model.Contract, error) {
	return f.byToken[docToken], nil
}

func (f *fakeContracts) UpdateStatus(ctx context.Context, tx *sqlx.Tx, id string, status model.SignatureStatus) error {
	return nil
}

type fakeAccounts struct{ admins []model.Account }

func (f *fakeAccounts) GetByID(ctx context.Context, id int64) (*model.Account, error) {
	return nil, nil
}

func (f *fakeAccounts) ListAdmins(ctx context.Context) ([]model.Account, error) {
	return f.admins, nil
}

type fakeStats struct{ stats repository.HealthStats }

func (f fakeStats) Stats(ctx context.Context, channel model.Channel, since time.Time) (repository.HealthStats, error) {
	return f.stats, nil
}

type fakeCHAudit struct {
	rows []repository.AuditEventRow

	lastLimit  int
	lastOffset int
}

func (f *fakeCHAudit) InsertBatch(ctx context.Context, events []model.MessageEvent) error {
	return nil
}

func (f *fakeCHAudit) List(ctx context.Context, channel model.Channel, status model.MessageStatus, recipient string, limit, offset int) ([]repository.AuditEventRow, error) {
	f.lastLimit = limit
	f.lastOffset = offset
	return f.rows, nil
}

// ---- helpers ----

func doJSON(handler echo.HandlerFunc, method, target, body string, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	e := echo.New()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	_ = handler(c)

	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

// ---- retry sweep endpoint ----

func TestRetrySweepHandler(t *testing.T) {
	log := &fakeMessageLog{eligible: []model.MessageRecord{
		{ID: "a", Channel: model.ChannelWhatsApp, Recipient: "5511999990001", Body: "oi", Status: model.StatusError},
		{ID: "b", Channel: model.ChannelWhatsApp, Recipient: "", Body: "", Status: model.StatusError},
	}}
	sweeper := retry.NewSweeper(log, &fakeWAChannel{configured: true}, retry.Config{InterSendDelay: time.Millisecond})

	rec, out := doJSON(retrySweepHandler(sweeper), http.MethodPost, "/v1/retry-failed-whatsapp", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if out["success"] != true {
		t.Errorf("success = %v", out["success"])
	}
	if out["processed"] != float64(2) || out["successCount"] != float64(1) || out["failCount"] != float64(1) {
		t.Errorf("counts = %v", out)
	}
	if s, _ := out["requestId"].(string); s == "" {
		t.Error("missing requestId")
	}
}

func TestRetrySweepHandlerProviderUnconfigured(t *testing.T) {
	sweeper := retry.NewSweeper(&fakeMessageLog{}, &fakeWAChannel{configured: false}, retry.Config{})

	rec, out := doJSON(retrySweepHandler(sweeper), http.MethodPost, "/v1/retry-failed-whatsapp", "", nil)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500 on missing credentials", rec.Code)
	}
	if out["success"] != false {
		t.Errorf("success = %v", out["success"])
	}
}

// ---- webhooks ----

func newTestAsaasReconciler(inv *fakeInvoices, noti *fakeNotifications) *reconcile.AsaasReconciler {
	return reconcile.NewAsaasReconciler(nil, inv, fakeSubscriptions{}, noti)
}

func TestAsaasWebhookRejectsBadToken(t *testing.T) {
	h := asaasWebhookHandler(newTestAsaasReconciler(&fakeInvoices{}, &fakeNotifications{}), "secret")

	rec, _ := doJSON(h, http.MethodPost, "/v1/asaas-webhook", `{}`, map[string]string{"asaas-access-token": "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAsaasWebhookAcksMalformedBody(t *testing.T) {
	h := asaasWebhookHandler(newTestAsaasReconciler(&fakeInvoices{}, &fakeNotifications{}), "")

	rec, out := doJSON(h, http.MethodPost, "/v1/asaas-webhook", `{not json`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; providers disable endpoints that error on bad payloads", rec.Code)
	}
	if out["received"] != true {
		t.Errorf("body = %v", out)
	}
}

func TestAsaasWebhookAppliesPayment(t *testing.T) {
	inv := &fakeInvoices{byPaymentID: map[string]*model.Invoice{
		"pay_1": {ID: "inv_1", FamilyAccountID: 5, Status: model.PaymentPending},
	}}
	noti := &fakeNotifications{}
	h := asaasWebhookHandler(newTestAsaasReconciler(inv, noti), "secret")

	rec, out := doJSON(h, http.MethodPost, "/v1/asaas-webhook",
		`{"event":"PAYMENT_RECEIVED","payment":{"id":"pay_1","status":"RECEIVED"}}`,
		map[string]string{"asaas-access-token": "secret"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if out["received"] != true {
		t.Errorf("body = %v", out)
	}
	if inv.updates != 1 || noti.created != 1 {
		t.Errorf("updates=%d notifications=%d", inv.updates, noti.created)
	}
}

func TestZapSignWebhookReturnsContractID(t *testing.T) {
	contracts := &fakeContracts{byToken: map[string]*model.Contract{
		"tok_1": {ID: "c_1", SignerAccountID: 9, Status: model.SignaturePending},
	}}
	r := reconcile.NewZapSignReconciler(nil, contracts, &fakeAccounts{}, &fakeNotifications{})
	h := zapsignWebhookHandler(r, "secret")

	rec, out := doJSON(h, http.MethodPost, "/v1/zapsign-webhook",
		`{"event_type":"doc_signed","token":"tok_1"}`,
		map[string]string{"Authorization": "Bearer secret"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if out["success"] != true || out["contractId"] != "c_1" {
		t.Errorf("body = %v", out)
	}
}

func TestZapSignWebhookOrphanStillAcks(t *testing.T) {
	r := reconcile.NewZapSignReconciler(nil, &fakeContracts{byToken: map[string]*model.Contract{}}, &fakeAccounts{}, &fakeNotifications{})
	h := zapsignWebhookHandler(r, "")

	rec, out := doJSON(h, http.MethodPost, "/v1/zapsign-webhook", `{"event_type":"doc_signed","token":"tok_unknown"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for orphaned token", rec.Code)
	}
	if out["received"] != true {
		t.Errorf("body = %v", out)
	}
}

// ---- invite resend ----

func TestResendInviteUnconfiguredProvider(t *testing.T) {
	h := resendInviteHandler(&fakeMessageLog{}, &fakeWAChannel{configured: false})

	rec, _ := doJSON(h, http.MethodPost, "/v1/resend-invite-whatsapp", `{"inviteType":"parent","inviteCode":"ABC","phone":"11999990001"}`, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want fail-fast 500", rec.Code)
	}
}

func TestResendInviteValidation(t *testing.T) {
	h := resendInviteHandler(&fakeMessageLog{}, &fakeWAChannel{configured: true})

	rec, _ := doJSON(h, http.MethodPost, "/v1/resend-invite-whatsapp", `{"inviteType":"parent","inviteCode":"","phone":""}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestResendInviteSent(t *testing.T) {
	log := &fakeMessageLog{}
	h := resendInviteHandler(log, &fakeWAChannel{configured: true})

	rec, out := doJSON(h, http.MethodPost, "/v1/resend-invite-whatsapp",
		`{"inviteType":"parent","inviteCode":"ABC123","phone":"(11) 99999-0001","parentName":"Ana"}`, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if out["success"] != true {
		t.Errorf("body = %v", out)
	}

	if len(log.created) != 1 {
		t.Fatalf("created %d records", len(log.created))
	}
	created := log.created[0]
	if created.Recipient != "5511999990001" {
		t.Errorf("recipient = %q, want normalized phone", created.Recipient)
	}
	if created.Template != "invite_parent" {
		t.Errorf("template = %q", created.Template)
	}
	if !strings.Contains(created.Body, "ABC123") || !strings.Contains(created.Body, "Ana") {
		t.Errorf("body = %q", created.Body)
	}
}

func TestResendInvitePreEnrollmentTemplate(t *testing.T) {
	log := &fakeMessageLog{}
	h := resendInviteHandler(log, &fakeWAChannel{configured: true})

	doJSON(h, http.MethodPost, "/v1/resend-invite-whatsapp",
		`{"inviteType":"parent","inviteCode":"ABC","phone":"11999990001","isPreEnrollment":true}`, nil)

	if len(log.created) != 1 || log.created[0].Template != "invite_pre_enrollment" {
		t.Fatalf("created = %+v", log.created)
	}
}

func TestResendInviteTransientFailureQueues(t *testing.T) {
	log := &fakeMessageLog{}
	h := resendInviteHandler(log, &fakeWAChannel{configured: true, dispatchErr: context.DeadlineExceeded})

	rec, out := doJSON(h, http.MethodPost, "/v1/resend-invite-whatsapp",
		`{"inviteType":"employee","inviteCode":"XYZ","phone":"11999990001"}`, nil)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 when the sweep takes over", rec.Code)
	}
	if out["message"] != "invite queued for retry" {
		t.Errorf("body = %v", out)
	}
	if log.failures != 1 {
		t.Errorf("failures recorded = %d", log.failures)
	}
}

// ---- email health endpoint ----

func newTestMonitor(stats repository.HealthStats) *health.Monitor {
	return health.NewMonitor(fakeStats{stats: stats}, &fakeNotifications{}, &fakeAccounts{admins: []model.Account{{ID: 1}}}, nil, health.Config{})
}

func TestEmailHealthHandlerHealthy(t *testing.T) {
	h := emailHealthHandler(newTestMonitor(repository.HealthStats{Total: 100, Sent: 99, Errored: 1}))

	rec, out := doJSON(h, http.MethodPost, "/v1/check-email-health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if out["healthStatus"] != "healthy" || out["alertCreated"] != false {
		t.Errorf("body = %v", out)
	}

	cfg, _ := out["config"].(map[string]any)
	if cfg["errorRateThreshold"] != 0.20 || cfg["minEmailsForAlert"] != float64(5) || cfg["timeWindowMinutes"] != float64(60) {
		t.Errorf("config defaults = %v", cfg)
	}
}

func TestEmailHealthHandlerWarningWithOverrides(t *testing.T) {
	h := emailHealthHandler(newTestMonitor(repository.HealthStats{Total: 10, Sent: 7, Errored: 3}))

	rec, out := doJSON(h, http.MethodPost, "/v1/check-email-health",
		`{"errorRateThreshold":0.25,"timeWindowMinutes":120}`, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if out["healthStatus"] != "warning" || out["alertCreated"] != true {
		t.Errorf("body = %v", out)
	}

	cfg, _ := out["config"].(map[string]any)
	if cfg["errorRateThreshold"] != 0.25 || cfg["timeWindowMinutes"] != float64(120) {
		t.Errorf("overridden config = %v", cfg)
	}
}

// ---- reports ----

func TestListDeliveryEventsHandler(t *testing.T) {
	ch := &fakeCHAudit{rows: []repository.AuditEventRow{{MessageID: "m1", Channel: "email", Status: "sent"}}}
	h := listDeliveryEventsHandler(ch)

	rec, out := doJSON(h, http.MethodGet, "/v1/reports/messages?limit=20&offset=40&channel=email", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ch.lastLimit != 20 || ch.lastOffset != 40 {
		t.Errorf("limit/offset passed = %d/%d", ch.lastLimit, ch.lastOffset)
	}
	if out["count"] != float64(1) {
		t.Errorf("body = %v", out)
	}
}
