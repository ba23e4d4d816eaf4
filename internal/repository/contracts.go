package repository

import (
	"context"
	"database/sql"

	"github.com/educreche/notify-gateway/internal/model"
	"github.com/jmoiron/sqlx"
)

type ContractsRepository interface {
	GetByDocToken(ctx context.Context, docToken string) (*model.Contract, error)
	UpdateStatus(ctx context.Context, tx *sqlx.Tx, id string, status model.SignatureStatus) error
}

type ContractsRepositoryImpl struct {
	db *sqlx.DB
}

func NewContractsRepository(db *sqlx.DB) *ContractsRepositoryImpl {
	return &ContractsRepositoryImpl{db: db}
}

var _ ContractsRepository = (*ContractsRepositoryImpl)(nil)

func (r *ContractsRepositoryImpl) GetByDocToken(ctx context.Context, docToken string) (*model.Contract, error) {
	var c model.Contract
	err := r.db.GetContext(ctx, &c, `
		SELECT id, family_account_id, signer_account_id, zapsign_doc_token,
		       status, signed_at, created_at, updated_at
		  FROM contracts
		 WHERE zapsign_doc_token = ? LIMIT 1
	`, docToken)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ContractsRepositoryImpl) UpdateStatus(ctx context.Context, tx *sqlx.Tx, id string, status model.SignatureStatus) error {
	run := func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE contracts
			   SET status = ?,
			       signed_at = IF(? = 'signed', NOW(), signed_at),
			       updated_at = NOW()
			 WHERE id = ?
		`, status.String(), status.String(), id)
		return err
	}
	if tx != nil {
		return run(tx)
	}
	t, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = t.Rollback() }()
	if err := run(t); err != nil {
		return err
	}
	return t.Commit()
}
