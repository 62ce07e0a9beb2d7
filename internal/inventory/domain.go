// Package inventory implements the consumable-inventory allocator: exam
// PIN stock, airtime receiving numbers, their allocation orders, and the
// compensating-credit path for orders that cannot be served.
package inventory

import "time"

// Exam PIN slot statuses. A used PIN is immutable except for audit fields.
const (
	PINStatusUnused = "unused"
	PINStatusUsed   = "used"
)

// Receiving-number statuses. Exhausted numbers are skipped by allocation
// until the daily usage counter is reset.
const (
	NumberStatusActive    = "active"
	NumberStatusExhausted = "exhausted"
)

// PIN order statuses. Orders are created already paid; they either receive
// a PIN or fail and get refunded.
const (
	PinOrderPaid      = "paid"
	PinOrderCompleted = "completed"
	PinOrderFailed    = "failed"
)

// Cash order statuses for the two-phase airtime-to-cash flow.
const (
	CashOrderPending     = "pending"
	CashOrderAirtimeSent = "airtime_sent"
	CashOrderCompleted   = "completed"
	CashOrderRejected    = "rejected"
)

// Actor types recorded in the order status history.
const (
	ActorUser     = "user"
	ActorOperator = "operator"
	ActorSystem   = "system"
)

type ExamPIN struct {
	PinID        string     `db:"pin_id"`
	ExamType     string     `db:"exam_type"`
	PinCode      string     `db:"pin_code"`
	SerialNumber string     `db:"serial_number"`
	Status       string     `db:"status"`
	OrderID      *string    `db:"order_id"`
	UsedBy       *string    `db:"used_by"`
	CreatedAt    time.Time  `db:"created_at"`
	UsedAt       *time.Time `db:"used_at"`
}

type CashNumber struct {
	NumberID    string    `db:"number_id"`
	Network     string    `db:"network"`
	PhoneNumber string    `db:"phone_number"`
	DailyLimit  int64     `db:"daily_limit"`
	UsedToday   int64     `db:"used_today"`
	Priority    int       `db:"priority"`
	Status      string    `db:"status"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

type PinOrder struct {
	OrderID       string    `db:"order_id"`
	RequesterID   string    `db:"requester_id"`
	ExamType      string    `db:"exam_type"`
	Amount        int64     `db:"amount"`
	Status        string    `db:"status"`
	PinRef        *string   `db:"pin_ref"`
	FailureReason *string   `db:"failure_reason"`
	Refunded      bool      `db:"refunded"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

type CashOrder struct {
	OrderID       string    `db:"order_id"`
	RequesterID   string    `db:"requester_id"`
	Network       string    `db:"network"`
	Amount        int64     `db:"amount"`
	Status        string    `db:"status"`
	NumberRef     *string   `db:"number_ref"`
	FailureReason *string   `db:"failure_reason"`
	Refunded      bool      `db:"refunded"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// StatusEntry is one append-only audit record of an order transition.
type StatusEntry struct {
	HistoryID      string    `db:"history_id"`
	OrderID        string    `db:"order_id"`
	ActorType      string    `db:"actor_type"`
	ActorID        string    `db:"actor_id"`
	PreviousStatus string    `db:"previous_status"`
	NewStatus      string    `db:"new_status"`
	Note           string    `db:"note"`
	CreatedAt      time.Time `db:"created_at"`
}

// WalletCredit is a compensating credit for an order that ended without a
// delivered resource. At most one credit exists per order.
type WalletCredit struct {
	CreditID    string    `db:"credit_id"`
	OrderID     string    `db:"order_id"`
	RequesterID string    `db:"requester_id"`
	Amount      int64     `db:"amount"`
	Reason      string    `db:"reason"`
	CreatedAt   time.Time `db:"created_at"`
}
