package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/educreche/notify-gateway/internal/model"
	"github.com/educreche/notify-gateway/internal/repository"
	"github.com/educreche/notify-gateway/internal/util"
	"github.com/jmoiron/sqlx"
)

// ZapSignWebhookPayload is the e-signature callback shape.
type ZapSignWebhookPayload struct {
	EventType string `json:"event_type"`
	Token     string `json:"token"` // document token, the correlation key
	Status    string `json:"status"`
}

// zapSignEventMap: recognized events map 1:1 to target states; any other
// event type is acknowledged but ignored.
var zapSignEventMap = map[string]model.SignatureStatus{
	"doc_signed":  model.SignatureSigned,
	"doc_refused": model.SignatureRefused,
	"doc_expired": model.SignatureExpired,
}

// MapZapSignEvent resolves an event type; ok=false means not recognized.
func MapZapSignEvent(eventType string) (model.SignatureStatus, bool) {
	st, ok := zapSignEventMap[strings.ToLower(strings.TrimSpace(eventType))]
	return st, ok
}

type ZapSignResult struct {
	Outcome    Outcome
	ContractID string
	Status     model.SignatureStatus
}

// ZapSignReconciler applies signature webhooks to contracts. On a recognized
// transition both the signing party and every operator account get notified.
type ZapSignReconciler struct {
	db            *sqlx.DB
	contracts     repository.ContractsRepository
	accounts      repository.AccountsRepository
	notifications repository.NotificationsRepository
}

func NewZapSignReconciler(
	db *sqlx.DB,
	contracts repository.ContractsRepository,
	accounts repository.AccountsRepository,
	notifications repository.NotificationsRepository,
) *ZapSignReconciler {
	return &ZapSignReconciler{
		db:            db,
		contracts:     contracts,
		accounts:      accounts,
		notifications: notifications,
	}
}

func (r *ZapSignReconciler) Process(ctx context.Context, p ZapSignWebhookPayload) (ZapSignResult, error) {
	if p.Token == "" {
		return ZapSignResult{Outcome: OutcomeIgnored}, nil
	}

	newStatus, ok := MapZapSignEvent(p.EventType)
	if !ok {
		return ZapSignResult{Outcome: OutcomeIgnored}, nil
	}

	contract, err := r.contracts.GetByDocToken(ctx, p.Token)
	if err != nil {
		return ZapSignResult{}, err
	}
	if contract == nil {
		return ZapSignResult{Outcome: OutcomeOrphaned}, nil
	}

	if contract.Status == newStatus {
		return ZapSignResult{Outcome: OutcomeUnchanged, ContractID: contract.ID, Status: newStatus}, nil
	}

	admins, err := r.accounts.ListAdmins(ctx)
	if err != nil {
		return ZapSignResult{}, err
	}

	body := fmt.Sprintf("Contrato %s mudou para %s", contract.ID, newStatus)
	batch := []model.Notification{{
		ID:        util.New(),
		AccountID: contract.SignerAccountID,
		Category:  model.CategorySignature,
		Title:     "Assinatura atualizada",
		Body:      body,
	}}
	for _, a := range admins {
		if a.ID == contract.SignerAccountID {
			continue
		}
		batch = append(batch, model.Notification{
			ID:        util.New(),
			AccountID: a.ID,
			Category:  model.CategorySignature,
			Title:     "Assinatura atualizada",
			Body:      body,
		})
	}

	err = r.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := r.contracts.UpdateStatus(ctx, tx, contract.ID, newStatus); err != nil {
			return err
		}
		return r.notifications.InsertBatch(ctx, tx, batch)
	})
	if err != nil {
		return ZapSignResult{}, err
	}
	return ZapSignResult{Outcome: OutcomeApplied, ContractID: contract.ID, Status: newStatus}, nil
}

func (r *ZapSignReconciler) inTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
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
