package model

import "time"

type NotificationCategory string

const (
	CategoryPayment        NotificationCategory = "payment"
	CategorySignature      NotificationCategory = "signature"
	CategoryDeliveryHealth NotificationCategory = "delivery_health"
)

func (c NotificationCategory) String() string { return string(c) }

// Notification is the sink for both user-facing status notices and operator
// alerts. Rows are create/read only; dedup guards query by category + age.
type Notification struct {
	ID        string               `db:"id"`
	AccountID int64                `db:"account_id"`
	Category  NotificationCategory `db:"category"`
	Title     string               `db:"title"`
	Body      string               `db:"body"`
	ReadAt    *time.Time           `db:"read_at"`
	CreatedAt time.Time            `db:"created_at"`
}

type AccountRole string

const (
	RoleAdmin    AccountRole = "admin"
	RoleStaff    AccountRole = "staff"
	RoleGuardian AccountRole = "guardian"
)

// Account is read-only here: the gateway only needs ids/roles/phones to fan
// out notifications and validate invite resends.
type Account struct {
	ID        int64       `db:"id"`
	Name      string      `db:"name"`
	Email     string      `db:"email"`
	Phone     *string     `db:"phone"`
	Role      AccountRole `db:"role"`
	CreatedAt time.Time   `db:"created_at"`
}
