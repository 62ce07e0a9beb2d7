package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Mhixter/arapointx-sub002/shared/postgresql"
)

// Storage is the PostgreSQL-backed inventory store. Allocation runs inside
// short transactions with row-level locks; no network I/O happens while a
// lock is held.
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

func NewStorage(pg *postgresql.Client, logger *slog.Logger) *Storage {
	return &Storage{
		db:     pg.GetDB(),
		logger: logger,
	}
}

// AllocatePIN consumes the oldest unused PIN for the exam type and binds it
// to the order. Returns ErrOutOfStock when no unused PIN exists.
func (s *Storage) AllocatePIN(ctx context.Context, examType, orderID, userID string) (*ExamPIN, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin allocation: %w", err)
	}
	defer tx.Rollback()

	var pin ExamPIN
	selectQuery := `
		SELECT pin_id, exam_type, pin_code, serial_number, status,
		       order_id, used_by, created_at, used_at
		FROM exam_pins
		WHERE exam_type = $1 AND status = $2
		ORDER BY created_at ASC, pin_id ASC
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	`

	err = tx.GetContext(ctx, &pin, selectQuery, examType, PINStatusUnused)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOutOfStock
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select pin: %w", err)
	}

	now := time.Now()
	updateQuery := `
		UPDATE exam_pins
		SET status = $1, order_id = $2, used_by = $3, used_at = $4
		WHERE pin_id = $5
	`

	if _, err := tx.ExecContext(ctx, updateQuery, PINStatusUsed, orderID, userID, now, pin.PinID); err != nil {
		return nil, fmt.Errorf("failed to mark pin used: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit allocation: %w", err)
	}

	pin.Status = PINStatusUsed
	pin.OrderID = &orderID
	pin.UsedBy = &userID
	pin.UsedAt = &now
	return &pin, nil
}

// AllocateNumber picks the least-utilized active receiving number that can
// absorb the amount. The row is locked for the pick so two concurrent
// allocations never hand out the same number; the daily usage counter is
// untouched here and moves only when the transfer is confirmed.
func (s *Storage) AllocateNumber(ctx context.Context, network string, amount int64) (*CashNumber, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin allocation: %w", err)
	}
	defer tx.Rollback()

	var number CashNumber
	query := `
		SELECT number_id, network, phone_number, daily_limit, used_today,
		       priority, status, created_at, updated_at
		FROM cash_numbers
		WHERE network = $1 AND status = $2 AND daily_limit - used_today >= $3
		ORDER BY priority ASC, used_today ASC
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	`

	err = tx.GetContext(ctx, &number, query, network, NumberStatusActive, amount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOutOfStock
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select receiving number: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit allocation: %w", err)
	}

	return &number, nil
}

func (s *Storage) CreatePinOrder(ctx context.Context, order *PinOrder) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin create order: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO pin_orders (
			order_id, requester_id, exam_type, amount,
			status, refunded, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = tx.ExecContext(ctx, query,
		order.OrderID, order.RequesterID, order.ExamType, order.Amount,
		order.Status, order.Refunded, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create pin order: %w", err)
	}

	if err := appendHistoryTx(ctx, tx, order.OrderID, ActorUser, order.RequesterID, "", order.Status, "order placed"); err != nil {
		return err
	}

	return tx.Commit()
}

// CompletePinOrder records the delivered PIN. The conditional update fails
// with ErrInvalidTransition if the order already left the paid state.
func (s *Storage) CompletePinOrder(ctx context.Context, orderID, pinRef string) error {
	return s.transitionPinOrder(ctx, orderID, PinOrderPaid, PinOrderCompleted, ActorSystem, "", "pin delivered", func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE pin_orders SET pin_ref = $1 WHERE order_id = $2`, pinRef, orderID)
		return err
	})
}

func (s *Storage) FailPinOrder(ctx context.Context, orderID, reason string) error {
	return s.transitionPinOrder(ctx, orderID, PinOrderPaid, PinOrderFailed, ActorSystem, "", reason, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE pin_orders SET failure_reason = $1 WHERE order_id = $2`, reason, orderID)
		return err
	})
}

func (s *Storage) transitionPinOrder(ctx context.Context, orderID, from, to, actorType, actorID, note string, extra func(*sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transition: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE pin_orders
		SET status = $1, updated_at = $2
		WHERE order_id = $3 AND status = $4
	`, to, time.Now(), orderID, from)
	if err != nil {
		return fmt.Errorf("failed to transition pin order: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return s.classifyMiss(ctx, "pin_orders", orderID)
	}

	if extra != nil {
		if err := extra(tx); err != nil {
			return fmt.Errorf("failed to update pin order fields: %w", err)
		}
	}

	if err := appendHistoryTx(ctx, tx, orderID, actorType, actorID, from, to, note); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Storage) GetPinOrder(ctx context.Context, orderID, requesterID string) (*PinOrder, error) {
	var order PinOrder
	query := `
		SELECT order_id, requester_id, exam_type, amount, status,
		       pin_ref, failure_reason, refunded, created_at, updated_at
		FROM pin_orders
		WHERE order_id = $1 AND requester_id = $2
	`

	err := s.db.GetContext(ctx, &order, query, orderID, requesterID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pin order: %w", err)
	}

	return &order, nil
}

func (s *Storage) CreateCashOrder(ctx context.Context, order *CashOrder) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin create order: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO cash_orders (
			order_id, requester_id, network, amount, status,
			number_ref, refunded, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = tx.ExecContext(ctx, query,
		order.OrderID, order.RequesterID, order.Network, order.Amount,
		order.Status, order.NumberRef, order.Refunded, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create cash order: %w", err)
	}

	if err := appendHistoryTx(ctx, tx, order.OrderID, ActorUser, order.RequesterID, "", order.Status, "cash request placed"); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Storage) GetCashOrder(ctx context.Context, orderID, requesterID string) (*CashOrder, error) {
	var order CashOrder
	query := `
		SELECT order_id, requester_id, network, amount, status,
		       number_ref, failure_reason, refunded, created_at, updated_at
		FROM cash_orders
		WHERE order_id = $1 AND requester_id = $2
	`

	err := s.db.GetContext(ctx, &order, query, orderID, requesterID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cash order: %w", err)
	}

	return &order, nil
}

// GetCashOrderByID is the operator-facing read without requester scoping.
func (s *Storage) GetCashOrderByID(ctx context.Context, orderID string) (*CashOrder, error) {
	var order CashOrder
	query := `
		SELECT order_id, requester_id, network, amount, status,
		       number_ref, failure_reason, refunded, created_at, updated_at
		FROM cash_orders
		WHERE order_id = $1
	`

	err := s.db.GetContext(ctx, &order, query, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cash order: %w", err)
	}

	return &order, nil
}

// ConfirmTransfer is the user-confirmation step of the two-phase flow. The
// receiving number's daily usage moves here, not at allocation time, and
// only if the number still has capacity for the full amount.
func (s *Storage) ConfirmTransfer(ctx context.Context, orderID, requesterID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin confirm: %w", err)
	}
	defer tx.Rollback()

	var order CashOrder
	err = tx.GetContext(ctx, &order, `
		SELECT order_id, requester_id, network, amount, status,
		       number_ref, failure_reason, refunded, created_at, updated_at
		FROM cash_orders
		WHERE order_id = $1 AND requester_id = $2
		FOR UPDATE
	`, orderID, requesterID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrOrderNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load cash order: %w", err)
	}

	if !ValidCashOrderTransition(order.Status, CashOrderAirtimeSent) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, CashOrderAirtimeSent)
	}
	if order.NumberRef == nil {
		return fmt.Errorf("cash order %s has no receiving number", orderID)
	}

	// Capacity may have been consumed by other orders since allocation;
	// the increment only lands if the full amount still fits.
	result, err := tx.ExecContext(ctx, `
		UPDATE cash_numbers
		SET used_today = used_today + $1,
		    status = CASE
		        WHEN used_today + $1 >= daily_limit THEN $2
		        ELSE status
		    END,
		    updated_at = $3
		WHERE number_id = $4 AND status = $5 AND daily_limit - used_today >= $1
	`, order.Amount, NumberStatusExhausted, time.Now(), *order.NumberRef, NumberStatusActive)
	if err != nil {
		return fmt.Errorf("failed to consume number capacity: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return ErrOutOfStock
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE cash_orders SET status = $1, updated_at = $2 WHERE order_id = $3
	`, CashOrderAirtimeSent, time.Now(), orderID); err != nil {
		return fmt.Errorf("failed to transition cash order: %w", err)
	}

	if err := appendHistoryTx(ctx, tx, orderID, ActorUser, requesterID, order.Status, CashOrderAirtimeSent, "transfer confirmed by user"); err != nil {
		return err
	}

	return tx.Commit()
}

// TransitionCashOrder applies an operator transition (complete or reject)
// with the usual conditional-update guard and history append.
func (s *Storage) TransitionCashOrder(ctx context.Context, orderID, from, to, operatorID, note string) error {
	if !ValidCashOrderTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transition: %w", err)
	}
	defer tx.Rollback()

	var (
		query string
		args  []interface{}
	)
	if to == CashOrderRejected {
		query = `
			UPDATE cash_orders
			SET status = $1, failure_reason = $2, updated_at = $3
			WHERE order_id = $4 AND status = $5
		`
		args = []interface{}{to, note, time.Now(), orderID, from}
	} else {
		query = `
			UPDATE cash_orders
			SET status = $1, updated_at = $2
			WHERE order_id = $3 AND status = $4
		`
		args = []interface{}{to, time.Now(), orderID, from}
	}

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to transition cash order: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return s.classifyMiss(ctx, "cash_orders", orderID)
	}

	if err := appendHistoryTx(ctx, tx, orderID, ActorOperator, operatorID, from, to, note); err != nil {
		return err
	}

	return tx.Commit()
}

// InsertCredit records a compensating credit. The UNIQUE constraint on
// order_id makes this the refund-at-most-once guard: the bool reports
// whether this call actually inserted the credit.
func (s *Storage) InsertCredit(ctx context.Context, credit *WalletCredit) (bool, error) {
	query := `
		INSERT INTO wallet_credits (
			credit_id, order_id, requester_id, amount, reason, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (order_id) DO NOTHING
	`

	result, err := s.db.ExecContext(ctx, query,
		credit.CreditID, credit.OrderID, credit.RequesterID,
		credit.Amount, credit.Reason, credit.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert credit: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return rows > 0, nil
}

func (s *Storage) MarkPinOrderRefunded(ctx context.Context, orderID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE pin_orders SET refunded = TRUE, updated_at = $1 WHERE order_id = $2`,
		time.Now(), orderID)
	if err != nil {
		return fmt.Errorf("failed to mark pin order refunded: %w", err)
	}
	return nil
}

func (s *Storage) MarkCashOrderRefunded(ctx context.Context, orderID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE cash_orders SET refunded = TRUE, updated_at = $1 WHERE order_id = $2`,
		time.Now(), orderID)
	if err != nil {
		return fmt.Errorf("failed to mark cash order refunded: %w", err)
	}
	return nil
}

// ListHistory returns the audit trail for an order, oldest first.
func (s *Storage) ListHistory(ctx context.Context, orderID string) ([]StatusEntry, error) {
	var entries []StatusEntry
	query := `
		SELECT history_id, order_id, actor_type, actor_id,
		       previous_status, new_status, note, created_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY created_at ASC, history_id ASC
	`

	if err := s.db.SelectContext(ctx, &entries, query, orderID); err != nil {
		return nil, fmt.Errorf("failed to list order history: %w", err)
	}

	return entries, nil
}

// classifyMiss distinguishes a missing order from one in the wrong state
// after a zero-row conditional update.
func (s *Storage) classifyMiss(ctx context.Context, table, orderID string) error {
	var exists bool
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE order_id = $1)`, table)
	if err := s.db.GetContext(ctx, &exists, query, orderID); err != nil {
		return fmt.Errorf("failed to check order existence: %w", err)
	}
	if !exists {
		return ErrOrderNotFound
	}
	return ErrInvalidTransition
}

func appendHistoryTx(ctx context.Context, tx *sqlx.Tx, orderID, actorType, actorID, previous, next, note string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO order_status_history (
			history_id, order_id, actor_type, actor_id,
			previous_status, new_status, note, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, uuid.New().String(), orderID, actorType, actorID, previous, next, note, time.Now())
	if err != nil {
		return fmt.Errorf("failed to append status history: %w", err)
	}
	return nil
}
