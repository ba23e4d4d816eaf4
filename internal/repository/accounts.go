package repository

import (
	"context"
	"database/sql"

	"github.com/educreche/notify-gateway/internal/model"
	"github.com/jmoiron/sqlx"
)

type AccountsRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Account, error)
	ListAdmins(ctx context.Context) ([]model.Account, error)
}

type AccountsRepositoryImpl struct {
	db *sqlx.DB
}

func NewAccountsRepository(db *sqlx.DB) *AccountsRepositoryImpl {
	return &AccountsRepositoryImpl{db: db}
}

var _ AccountsRepository = (*AccountsRepositoryImpl)(nil)

func (r *AccountsRepositoryImpl) GetByID(ctx context.Context, id int64) (*model.Account, error) {
	var a model.Account
	err := r.db.GetContext(ctx, &a, `
		SELECT id, name, email, phone, role, created_at
		  FROM accounts
		 WHERE id = ? LIMIT 1
	`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AccountsRepositoryImpl) ListAdmins(ctx context.Context) ([]model.Account, error) {
	var rows []model.Account
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, name, email, phone, role, created_at
		  FROM accounts
		 WHERE role = 'admin'
		 ORDER BY id ASC
	`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
