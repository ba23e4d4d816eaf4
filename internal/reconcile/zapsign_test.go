package reconcile

import (
	"context"
	"testing"

	"github.com/educreche/notify-gateway/internal/model"
	"github.com/jmoiron/sqlx"
)

type fakeContracts struct {
	byToken map[string]*model.Contract
	updated []struct {
		id     string
		status model.SignatureStatus
	}
}

func (f *fakeContracts) GetByDocToken(ctx context.Context, docToken string) (*model.Contract, error) {
	return f.byToken[docToken], nil
}

func (f *fakeContracts) UpdateStatus(ctx context.Context, tx *sqlx.Tx, id string, status model.SignatureStatus) error {
	f.updated = append(f.updated, struct {
		id     string
		status model.SignatureStatus
	}{id, status})
	return nil
}

type fakeAccounts struct {
	admins []model.Account
}

func (f *fakeAccounts) GetByID(ctx context.Context, id int64) (*model.Account, error) {
	for i := range f.admins {
		if f.admins[i].ID == id {
			return &f.admins[i], nil
		}
	}
	return nil, nil
}

func (f *fakeAccounts) ListAdmins(ctx context.Context) ([]model.Account, error) {
	return f.admins, nil
}

func newZapSignFixture() (*ZapSignReconciler, *fakeContracts, *fakeAccounts, *fakeNotifications) {
	contracts := &fakeContracts{byToken: map[string]*model.Contract{}}
	accounts := &fakeAccounts{}
	noti := &fakeNotifications{}
	return NewZapSignReconciler(nil, contracts, accounts, noti), contracts, accounts, noti
}

func TestMapZapSignEvent(t *testing.T) {
	cases := []struct {
		event string
		want  model.SignatureStatus
		ok    bool
	}{
		{"doc_signed", model.SignatureSigned, true},
		{"doc_refused", model.SignatureRefused, true},
		{"doc_expired", model.SignatureExpired, true},
		{" DOC_SIGNED ", model.SignatureSigned, true},
		{"doc_viewed", "", false},
		{"", "", false},
	}

	for _, c := range cases {
		got, ok := MapZapSignEvent(c.event)
		if ok != c.ok || got != c.want {
			t.Errorf("MapZapSignEvent(%q) = %s, %v", c.event, got, ok)
		}
	}
}

func TestZapSignIgnoresUnrecognizedEvents(t *testing.T) {
	r, contracts, _, _ := newZapSignFixture()
	contracts.byToken["tok_1"] = &model.Contract{ID: "c_1", Status: model.SignaturePending}

	res, err := r.Process(context.Background(), ZapSignWebhookPayload{EventType: "doc_viewed", Token: "tok_1"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Outcome != OutcomeIgnored {
		t.Errorf("outcome = %s, want ignored", res.Outcome)
	}
	if len(contracts.updated) != 0 {
		t.Error("unrecognized event must not touch the contract")
	}
}

func TestZapSignOrphanedToken(t *testing.T) {
	r, _, _, _ := newZapSignFixture()

	res, err := r.Process(context.Background(), ZapSignWebhookPayload{EventType: "doc_signed", Token: "tok_missing"})
	if err != nil {
		t.Fatalf("orphaned token must not error: %v", err)
	}
	if res.Outcome != OutcomeOrphaned {
		t.Errorf("outcome = %s, want orphaned", res.Outcome)
	}
}

func TestZapSignAppliesAndFansOut(t *testing.T) {
	r, contracts, accounts, noti := newZapSignFixture()
	contracts.byToken["tok_1"] = &model.Contract{ID: "c_1", SignerAccountID: 10, Status: model.SignaturePending}
	accounts.admins = []model.Account{{ID: 1, Role: model.RoleAdmin}, {ID: 2, Role: model.RoleAdmin}}

	res, err := r.Process(context.Background(), ZapSignWebhookPayload{EventType: "doc_signed", Token: "tok_1"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if res.Outcome != OutcomeApplied || res.ContractID != "c_1" || res.Status != model.SignatureSigned {
		t.Fatalf("result = %+v", res)
	}
	if len(contracts.updated) != 1 || contracts.updated[0].status != model.SignatureSigned {
		t.Fatalf("updates = %+v", contracts.updated)
	}

	// signer + 2 admins
	if len(noti.created) != 3 {
		t.Fatalf("created %d notifications, want 3", len(noti.created))
	}
	if noti.created[0].AccountID != 10 {
		t.Errorf("first notification goes to the signer, got account %d", noti.created[0].AccountID)
	}
	for _, n := range noti.created {
		if n.Category != model.CategorySignature {
			t.Errorf("category = %s", n.Category)
		}
	}
}

func TestZapSignDeduplicatesSigningAdmin(t *testing.T) {
	r, contracts, accounts, noti := newZapSignFixture()
	contracts.byToken["tok_1"] = &model.Contract{ID: "c_1", SignerAccountID: 1, Status: model.SignaturePending}
	accounts.admins = []model.Account{{ID: 1, Role: model.RoleAdmin}, {ID: 2, Role: model.RoleAdmin}}

	if _, err := r.Process(context.Background(), ZapSignWebhookPayload{EventType: "doc_refused", Token: "tok_1"}); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if len(noti.created) != 2 {
		t.Fatalf("created %d notifications, want 2 (signer is also an admin)", len(noti.created))
	}
}

func TestZapSignDuplicateDeliveryIsNoOp(t *testing.T) {
	r, contracts, _, noti := newZapSignFixture()
	contracts.byToken["tok_1"] = &model.Contract{ID: "c_1", Status: model.SignatureSigned}

	res, err := r.Process(context.Background(), ZapSignWebhookPayload{EventType: "doc_signed", Token: "tok_1"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Outcome != OutcomeUnchanged {
		t.Fatalf("outcome = %s, want unchanged", res.Outcome)
	}
	if len(contracts.updated) != 0 || len(noti.created) != 0 {
		t.Error("duplicate delivery must be a no-op")
	}
}
