package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence surface the allocation flows need. Satisfied by
// *Storage in production and by in-memory fakes in tests.
type Store interface {
	AllocatePIN(ctx context.Context, examType, orderID, userID string) (*ExamPIN, error)
	AllocateNumber(ctx context.Context, network string, amount int64) (*CashNumber, error)

	CreatePinOrder(ctx context.Context, order *PinOrder) error
	CompletePinOrder(ctx context.Context, orderID, pinRef string) error
	FailPinOrder(ctx context.Context, orderID, reason string) error
	GetPinOrder(ctx context.Context, orderID, requesterID string) (*PinOrder, error)

	CreateCashOrder(ctx context.Context, order *CashOrder) error
	GetCashOrder(ctx context.Context, orderID, requesterID string) (*CashOrder, error)
	GetCashOrderByID(ctx context.Context, orderID string) (*CashOrder, error)
	ConfirmTransfer(ctx context.Context, orderID, requesterID string) error
	TransitionCashOrder(ctx context.Context, orderID, from, to, operatorID, note string) error

	InsertCredit(ctx context.Context, credit *WalletCredit) (bool, error)
	MarkPinOrderRefunded(ctx context.Context, orderID string) error
	MarkCashOrderRefunded(ctx context.Context, orderID string) error
}

// Service drives the purchase and airtime-to-cash flows: order lifecycle,
// allocation, and compensating credits. It never debits wallets; the debit
// happens upstream and this layer only refunds it when an order dies
// without a delivered resource.
type Service struct {
	store  Store
	logger *slog.Logger
}

func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
	}
}

// PurchasePIN records a paid order and tries to serve it from stock. On
// OutOfStock the order is failed and the debit refunded before the error
// is returned, so the caller only has to surface it.
func (s *Service) PurchasePIN(ctx context.Context, requesterID, examType string, amount int64) (*PinOrder, *ExamPIN, error) {
	now := time.Now()
	order := &PinOrder{
		OrderID:     uuid.New().String(),
		RequesterID: requesterID,
		ExamType:    examType,
		Amount:      amount,
		Status:      PinOrderPaid,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.CreatePinOrder(ctx, order); err != nil {
		return nil, nil, fmt.Errorf("failed to record pin order: %w", err)
	}

	pin, err := s.store.AllocatePIN(ctx, examType, order.OrderID, requesterID)
	if errors.Is(err, ErrOutOfStock) {
		if failErr := s.store.FailPinOrder(ctx, order.OrderID, "out of stock"); failErr != nil {
			s.logger.Error("Failed to fail pin order after stock miss",
				slog.String("order_id", order.OrderID),
				slog.Any("error", failErr),
			)
		}
		if refundErr := s.refundPinOrder(ctx, order, "out of stock"); refundErr != nil {
			return nil, nil, refundErr
		}
		order.Status = PinOrderFailed
		order.Refunded = true
		return order, nil, ErrOutOfStock
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to allocate pin: %w", err)
	}

	if err := s.store.CompletePinOrder(ctx, order.OrderID, pin.PinID); err != nil {
		return nil, nil, fmt.Errorf("failed to complete pin order: %w", err)
	}

	order.Status = PinOrderCompleted
	order.PinRef = &pin.PinID
	return order, pin, nil
}

// RequestCash allocates a receiving number and records a pending order.
// The number's daily usage is untouched until the user confirms.
func (s *Service) RequestCash(ctx context.Context, requesterID, network string, amount int64) (*CashOrder, *CashNumber, error) {
	number, err := s.store.AllocateNumber(ctx, network, amount)
	if err != nil {
		if errors.Is(err, ErrOutOfStock) {
			return nil, nil, ErrOutOfStock
		}
		return nil, nil, fmt.Errorf("failed to allocate receiving number: %w", err)
	}

	now := time.Now()
	order := &CashOrder{
		OrderID:     uuid.New().String(),
		RequesterID: requesterID,
		Network:     network,
		Amount:      amount,
		Status:      CashOrderPending,
		NumberRef:   &number.NumberID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.CreateCashOrder(ctx, order); err != nil {
		return nil, nil, fmt.Errorf("failed to record cash order: %w", err)
	}

	return order, number, nil
}

// ConfirmTransfer moves a cash order pending -> airtime_sent and consumes the
// receiving number's capacity.
func (s *Service) ConfirmTransfer(ctx context.Context, orderID, requesterID string) error {
	return s.store.ConfirmTransfer(ctx, orderID, requesterID)
}

// CompleteCashOrder is the operator acknowledging the cash was paid out.
func (s *Service) CompleteCashOrder(ctx context.Context, orderID, operatorID string) error {
	return s.store.TransitionCashOrder(ctx, orderID, CashOrderAirtimeSent, CashOrderCompleted, operatorID, "cash paid")
}

// RejectCashOrder is the operator declining the order. An order rejected
// after the user already sent airtime gets a compensating credit; a
// never-confirmed pending order does not, because nothing was received.
func (s *Service) RejectCashOrder(ctx context.Context, orderID, operatorID, reason string) error {
	order, err := s.store.GetCashOrderByID(ctx, orderID)
	if err != nil {
		return err
	}

	if err := s.store.TransitionCashOrder(ctx, orderID, order.Status, CashOrderRejected, operatorID, reason); err != nil {
		return err
	}

	if order.Status != CashOrderAirtimeSent {
		return nil
	}

	inserted, err := s.store.InsertCredit(ctx, &WalletCredit{
		CreditID:    uuid.New().String(),
		OrderID:     orderID,
		RequesterID: order.RequesterID,
		Amount:      order.Amount,
		Reason:      reason,
		CreatedAt:   time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to refund cash order: %w", err)
	}

	if inserted {
		if err := s.store.MarkCashOrderRefunded(ctx, orderID); err != nil {
			return err
		}
		s.logger.Info("Cash order refunded",
			slog.String("order_id", orderID),
			slog.Int64("amount", order.Amount),
		)
	}

	return nil
}

func (s *Service) refundPinOrder(ctx context.Context, order *PinOrder, reason string) error {
	inserted, err := s.store.InsertCredit(ctx, &WalletCredit{
		CreditID:    uuid.New().String(),
		OrderID:     order.OrderID,
		RequesterID: order.RequesterID,
		Amount:      order.Amount,
		Reason:      reason,
		CreatedAt:   time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to refund pin order: %w", err)
	}

	if inserted {
		if err := s.store.MarkPinOrderRefunded(ctx, order.OrderID); err != nil {
			return err
		}
		s.logger.Info("Pin order refunded",
			slog.String("order_id", order.OrderID),
			slog.Int64("amount", order.Amount),
		)
	}

	return nil
}

// GetPinOrder and GetCashOrder are requester-scoped reads.
func (s *Service) GetPinOrder(ctx context.Context, orderID, requesterID string) (*PinOrder, error) {
	return s.store.GetPinOrder(ctx, orderID, requesterID)
}

func (s *Service) GetCashOrder(ctx context.Context, orderID, requesterID string) (*CashOrder, error) {
	return s.store.GetCashOrder(ctx, orderID, requesterID)
}
