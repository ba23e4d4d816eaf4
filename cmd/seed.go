package cmd

import (
	"fmt"
	"log"

	"github.com/educreche/notify-gateway/internal/config"
	"github.com/educreche/notify-gateway/internal/db"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with demo accounts and subscriptions",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		sqlDB, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.MySQLOpts{
			MaxOpenConns:    cfg.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.MySQL.MaxIdleConns,
			ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
			PingTimeout:     cfg.MySQL.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		log.Println(">> Seeding demo accounts...")
		if err := seedAccounts(sqlDB); err != nil {
			return fmt.Errorf("seed accounts: %w", err)
		}

		log.Println(">> Seeding demo subscriptions...")
		if err := seedSubscriptions(sqlDB); err != nil {
			return fmt.Errorf("seed subscriptions: %w", err)
		}

		log.Println(">> Seed complete")
		return nil
	},
}

func seedAccounts(sqlDB *sqlx.DB) error {
	rows := []struct {
		name, email, phone, role string
	}{
		{"Direção", "direcao@creche.example", "5511999990001", "admin"},
		{"Secretaria", "secretaria@creche.example", "5511999990002", "admin"},
		{"Ana Silva", "ana@familia.example", "5511999990010", "guardian"},
	}

	for _, r := range rows {
		_, err := sqlDB.Exec(`
			INSERT INTO accounts (name, email, phone, role, created_at)
			VALUES (?, ?, ?, ?, NOW())
			ON DUPLICATE KEY UPDATE name = VALUES(name)
		`, r.name, r.email, r.phone, r.role)
		if err != nil {
			return err
		}
	}
	return nil
}

func seedSubscriptions(sqlDB *sqlx.DB) error {
	var guardianID int64
	if err := sqlDB.Get(&guardianID, `SELECT id FROM accounts WHERE role = 'guardian' ORDER BY id LIMIT 1`); err != nil {
		return err
	}

	_, err := sqlDB.Exec(`
		INSERT INTO subscriptions (id, family_account_id, asaas_subscription_id, amount_cents, active, created_at)
		VALUES ('01SEEDSUBSCRIPTION00000000', ?, 'sub_demo_123', 89900, 1, NOW())
		ON DUPLICATE KEY UPDATE active = VALUES(active)
	`, guardianID)
	return err
}
