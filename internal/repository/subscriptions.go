package repository

import (
	"context"
	"database/sql"

	"github.com/educreche/notify-gateway/internal/model"
	"github.com/jmoiron/sqlx"
)

type SubscriptionsRepository interface {
	GetByAsaasSubscriptionID(ctx context.Context, subscriptionID string) (*model.Subscription, error)
}

type SubscriptionsRepositoryImpl struct {
	db *sqlx.DB
}

func NewSubscriptionsRepository(db *sqlx.DB) *SubscriptionsRepositoryImpl {
	return &SubscriptionsRepositoryImpl{db: db}
}

var _ SubscriptionsRepository = (*SubscriptionsRepositoryImpl)(nil)

func (r *SubscriptionsRepositoryImpl) GetByAsaasSubscriptionID(ctx context.Context, subscriptionID string) (*model.Subscription, error) {
	var s model.Subscription
	err := r.db.GetContext(ctx, &s, `
		SELECT id, family_account_id, asaas_subscription_id, amount_cents, active, created_at
		  FROM subscriptions
		 WHERE asaas_subscription_id = ? LIMIT 1
	`, subscriptionID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
