package model

import "time"

type SignatureStatus string

const (
	SignaturePending SignatureStatus = "pending"
	SignatureSigned  SignatureStatus = "signed"
	SignatureRefused SignatureStatus = "refused"
	SignatureExpired SignatureStatus = "expired"
)

func (s SignatureStatus) String() string { return string(s) }

func (s SignatureStatus) Valid() bool {
	switch s {
	case SignaturePending, SignatureSigned, SignatureRefused, SignatureExpired:
		return true
	}
	return false
}

// Contract is the e-signature reconciliation target. ZapSignDocToken is the
// webhook correlation key; SignerAccountID receives the transition notification.
type Contract struct {
	ID              string          `db:"id"`
	FamilyAccountID int64           `db:"family_account_id"`
	SignerAccountID int64           `db:"signer_account_id"`
	ZapSignDocToken *string         `db:"zapsign_doc_token"`
	Status          SignatureStatus `db:"status"`
	SignedAt        *time.Time      `db:"signed_at"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}
