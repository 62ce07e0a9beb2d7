package inventory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mhixter/arapointx-sub002/shared/logger"
)

// memInventory is an in-memory Store mirroring the SQL implementation's
// locking semantics with a single mutex. lockedNumbers mirrors the row locks
// a number allocation holds until its transaction commits; allocateHold, when
// set, runs inside that lock window so tests can overlap allocations.
type memInventory struct {
	mu            sync.Mutex
	pins          []*ExamPIN
	numbers       []*CashNumber
	lockedNumbers map[string]bool
	pinOrders     map[string]*PinOrder
	cashOrders    map[string]*CashOrder
	credits       map[string]*WalletCredit // keyed by order_id
	history       []StatusEntry
	allocateHold  func()
}

func newMemInventory() *memInventory {
	return &memInventory{
		lockedNumbers: make(map[string]bool),
		pinOrders:     make(map[string]*PinOrder),
		cashOrders:    make(map[string]*CashOrder),
		credits:       make(map[string]*WalletCredit),
	}
}

func (m *memInventory) addPIN(examType, code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pins = append(m.pins, &ExamPIN{
		PinID:     fmt.Sprintf("pin-%d", len(m.pins)+1),
		ExamType:  examType,
		PinCode:   code,
		Status:    PINStatusUnused,
		CreatedAt: time.Now().Add(time.Duration(len(m.pins)) * time.Millisecond),
	})
}

func (m *memInventory) addNumber(network, phone string, dailyLimit, usedToday int64, priority int) *CashNumber {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := &CashNumber{
		NumberID:    fmt.Sprintf("num-%d", len(m.numbers)+1),
		Network:     network,
		PhoneNumber: phone,
		DailyLimit:  dailyLimit,
		UsedToday:   usedToday,
		Priority:    priority,
		Status:      NumberStatusActive,
	}
	m.numbers = append(m.numbers, n)
	return n
}

func (m *memInventory) AllocatePIN(_ context.Context, examType, orderID, userID string) (*ExamPIN, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.pins {
		if p.ExamType == examType && p.Status == PINStatusUnused {
			now := time.Now()
			p.Status = PINStatusUsed
			p.OrderID = &orderID
			p.UsedBy = &userID
			p.UsedAt = &now
			copied := *p
			return &copied, nil
		}
	}
	return nil, ErrOutOfStock
}

func (m *memInventory) AllocateNumber(_ context.Context, network string, amount int64) (*CashNumber, error) {
	m.mu.Lock()

	var best *CashNumber
	for _, n := range m.numbers {
		if m.lockedNumbers[n.NumberID] || n.Network != network || n.Status != NumberStatusActive {
			continue
		}
		if !CanServe(n.DailyLimit, n.UsedToday, amount) {
			continue
		}
		if best == nil ||
			n.Priority < best.Priority ||
			(n.Priority == best.Priority && n.UsedToday < best.UsedToday) {
			best = n
		}
	}
	if best == nil {
		m.mu.Unlock()
		return nil, ErrOutOfStock
	}

	// The row stays locked until the allocation commits; a concurrent
	// allocation skips it and picks the next eligible number
	m.lockedNumbers[best.NumberID] = true
	copied := *best
	m.mu.Unlock()

	if m.allocateHold != nil {
		m.allocateHold()
	}

	m.mu.Lock()
	delete(m.lockedNumbers, best.NumberID)
	m.mu.Unlock()
	return &copied, nil
}

func (m *memInventory) CreatePinOrder(_ context.Context, order *PinOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *order
	m.pinOrders[order.OrderID] = &copied
	m.history = append(m.history, StatusEntry{
		OrderID: order.OrderID, ActorType: ActorUser, ActorID: order.RequesterID,
		NewStatus: order.Status, CreatedAt: time.Now(),
	})
	return nil
}

func (m *memInventory) CompletePinOrder(_ context.Context, orderID, pinRef string) error {
	return m.transitionPin(orderID, PinOrderPaid, PinOrderCompleted, func(o *PinOrder) {
		o.PinRef = &pinRef
	})
}

func (m *memInventory) FailPinOrder(_ context.Context, orderID, reason string) error {
	return m.transitionPin(orderID, PinOrderPaid, PinOrderFailed, func(o *PinOrder) {
		o.FailureReason = &reason
	})
}

func (m *memInventory) transitionPin(orderID, from, to string, set func(*PinOrder)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.pinOrders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	if o.Status != from {
		return ErrInvalidTransition
	}
	o.Status = to
	set(o)
	m.history = append(m.history, StatusEntry{
		OrderID: orderID, ActorType: ActorSystem,
		PreviousStatus: from, NewStatus: to, CreatedAt: time.Now(),
	})
	return nil
}

func (m *memInventory) GetPinOrder(_ context.Context, orderID, requesterID string) (*PinOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.pinOrders[orderID]
	if !ok || o.RequesterID != requesterID {
		return nil, ErrOrderNotFound
	}
	copied := *o
	return &copied, nil
}

func (m *memInventory) CreateCashOrder(_ context.Context, order *CashOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *order
	m.cashOrders[order.OrderID] = &copied
	m.history = append(m.history, StatusEntry{
		OrderID: order.OrderID, ActorType: ActorUser, ActorID: order.RequesterID,
		NewStatus: order.Status, CreatedAt: time.Now(),
	})
	return nil
}

func (m *memInventory) GetCashOrder(_ context.Context, orderID, requesterID string) (*CashOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.cashOrders[orderID]
	if !ok || o.RequesterID != requesterID {
		return nil, ErrOrderNotFound
	}
	copied := *o
	return &copied, nil
}

func (m *memInventory) GetCashOrderByID(_ context.Context, orderID string) (*CashOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.cashOrders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	copied := *o
	return &copied, nil
}

func (m *memInventory) ConfirmTransfer(_ context.Context, orderID, requesterID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.cashOrders[orderID]
	if !ok || o.RequesterID != requesterID {
		return ErrOrderNotFound
	}
	if !ValidCashOrderTransition(o.Status, CashOrderAirtimeSent) {
		return ErrInvalidTransition
	}

	var number *CashNumber
	for _, n := range m.numbers {
		if o.NumberRef != nil && n.NumberID == *o.NumberRef {
			number = n
			break
		}
	}
	if number == nil || number.Status != NumberStatusActive ||
		!CanServe(number.DailyLimit, number.UsedToday, o.Amount) {
		return ErrOutOfStock
	}

	number.UsedToday += o.Amount
	if number.UsedToday >= number.DailyLimit {
		number.Status = NumberStatusExhausted
	}
	prev := o.Status
	o.Status = CashOrderAirtimeSent
	m.history = append(m.history, StatusEntry{
		OrderID: orderID, ActorType: ActorUser, ActorID: requesterID,
		PreviousStatus: prev, NewStatus: CashOrderAirtimeSent, CreatedAt: time.Now(),
	})
	return nil
}

func (m *memInventory) TransitionCashOrder(_ context.Context, orderID, from, to, operatorID, note string) error {
	if !ValidCashOrderTransition(from, to) {
		return ErrInvalidTransition
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.cashOrders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	if o.Status != from {
		return ErrInvalidTransition
	}
	o.Status = to
	if to == CashOrderRejected {
		o.FailureReason = &note
	}
	m.history = append(m.history, StatusEntry{
		OrderID: orderID, ActorType: ActorOperator, ActorID: operatorID,
		PreviousStatus: from, NewStatus: to, Note: note, CreatedAt: time.Now(),
	})
	return nil
}

func (m *memInventory) InsertCredit(_ context.Context, credit *WalletCredit) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.credits[credit.OrderID]; exists {
		return false, nil
	}
	copied := *credit
	m.credits[credit.OrderID] = &copied
	return true, nil
}

func (m *memInventory) MarkPinOrderRefunded(_ context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.pinOrders[orderID]; ok {
		o.Refunded = true
	}
	return nil
}

func (m *memInventory) MarkCashOrderRefunded(_ context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.cashOrders[orderID]; ok {
		o.Refunded = true
	}
	return nil
}

func newTestService(store Store) *Service {
	return NewService(store, logger.NewDefault().Logger)
}

func TestPurchasePIN_Success(t *testing.T) {
	store := newMemInventory()
	store.addPIN("waec", "1234-5678")

	svc := newTestService(store)
	order, pin, err := svc.PurchasePIN(context.Background(), "user-1", "waec", 3500)

	require.NoError(t, err)
	assert.Equal(t, PinOrderCompleted, order.Status)
	require.NotNil(t, pin)
	assert.Equal(t, "1234-5678", pin.PinCode)
	assert.Equal(t, PINStatusUsed, pin.Status)
	assert.False(t, order.Refunded)
	assert.Empty(t, store.credits)
}

func TestPurchasePIN_OutOfStockRefundsOnce(t *testing.T) {
	store := newMemInventory()

	svc := newTestService(store)
	order, pin, err := svc.PurchasePIN(context.Background(), "user-1", "waec", 3500)

	require.ErrorIs(t, err, ErrOutOfStock)
	assert.Nil(t, pin)
	assert.Equal(t, PinOrderFailed, order.Status)
	assert.True(t, order.Refunded)

	require.Len(t, store.credits, 1)
	credit := store.credits[order.OrderID]
	require.NotNil(t, credit)
	assert.Equal(t, int64(3500), credit.Amount, "credit must equal the original debit")
}

func TestPurchasePIN_ContendedStock(t *testing.T) {
	// 2 unused PINs, 3 concurrent buyers: exactly 2 get distinct codes,
	// 1 gets OutOfStock and a refund.
	store := newMemInventory()
	store.addPIN("waec", "AAAA-1111")
	store.addPIN("waec", "BBBB-2222")

	svc := newTestService(store)

	const buyers = 3
	var wg sync.WaitGroup
	type outcome struct {
		pin *ExamPIN
		err error
	}
	outcomes := make(chan outcome, buyers)

	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, pin, err := svc.PurchasePIN(context.Background(), fmt.Sprintf("user-%d", n), "waec", 3500)
			outcomes <- outcome{pin: pin, err: err}
		}(i)
	}

	wg.Wait()
	close(outcomes)

	var codes []string
	misses := 0
	for o := range outcomes {
		if o.err != nil {
			require.ErrorIs(t, o.err, ErrOutOfStock)
			misses++
			continue
		}
		codes = append(codes, o.pin.PinCode)
	}

	assert.Equal(t, 1, misses)
	require.Len(t, codes, 2)
	sort.Strings(codes)
	assert.Equal(t, []string{"AAAA-1111", "BBBB-2222"}, codes, "no code may be issued twice")
	assert.Len(t, store.credits, 1, "only the losing order is refunded")
}

func TestRefund_ExactlyOnceUnderConcurrentCallers(t *testing.T) {
	store := newMemInventory()
	svc := newTestService(store)

	order := &PinOrder{
		OrderID:     "order-1",
		RequesterID: "user-1",
		Amount:      5000,
		Status:      PinOrderFailed,
	}

	const callers = 10
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = svc.refundPinOrder(context.Background(), order, "out of stock")
		}()
	}
	wg.Wait()

	require.Len(t, store.credits, 1)
	assert.Equal(t, int64(5000), store.credits["order-1"].Amount)
}

func TestRequestCash_SelectsLeastUtilizedNumber(t *testing.T) {
	store := newMemInventory()
	store.addNumber("mtn", "0801", 1000, 400, 1)
	preferred := store.addNumber("mtn", "0802", 1000, 100, 1)
	store.addNumber("mtn", "0803", 1000, 0, 2) // lower priority loses despite being idle

	svc := newTestService(store)
	order, number, err := svc.RequestCash(context.Background(), "user-1", "mtn", 200)

	require.NoError(t, err)
	assert.Equal(t, preferred.NumberID, number.NumberID)
	assert.Equal(t, CashOrderPending, order.Status)
	require.NotNil(t, order.NumberRef)
	assert.Equal(t, preferred.NumberID, *order.NumberRef)
	// Allocation alone never consumes capacity
	assert.Equal(t, int64(100), store.numbers[1].UsedToday)
}

func TestRequestCash_OverlappingAllocationsGetDistinctNumbers(t *testing.T) {
	store := newMemInventory()
	store.addNumber("mtn", "0801", 1000, 0, 1)
	store.addNumber("mtn", "0802", 1000, 0, 1)
	svc := newTestService(store)

	// The first allocation pauses inside its lock window; the second runs
	// to completion while that row is still locked and must skip it.
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls int32
	store.allocateHold = func() {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(entered)
			<-release
		}
	}

	type result struct {
		order *CashOrder
		err   error
	}
	results := make(chan result, 2)

	go func() {
		order, _, err := svc.RequestCash(context.Background(), "user-1", "mtn", 100)
		results <- result{order: order, err: err}
	}()
	<-entered

	go func() {
		order, _, err := svc.RequestCash(context.Background(), "user-2", "mtn", 100)
		results <- result{order: order, err: err}
	}()

	second := <-results
	close(release)
	first := <-results

	require.NoError(t, first.err)
	require.NoError(t, second.err)
	require.NotNil(t, first.order.NumberRef)
	require.NotNil(t, second.order.NumberRef)
	assert.NotEqual(t, *first.order.NumberRef, *second.order.NumberRef,
		"concurrent allocations must not share a receiving number")
}

func TestRequestCash_CapacityScenario(t *testing.T) {
	// dailyLimit=1000, usedToday=900: 150 cannot be served, 50 can, and
	// usedToday only moves at confirmation.
	store := newMemInventory()
	store.addNumber("mtn", "0801", 1000, 900, 1)
	svc := newTestService(store)

	_, _, err := svc.RequestCash(context.Background(), "user-1", "mtn", 150)
	require.ErrorIs(t, err, ErrOutOfStock)

	order, _, err := svc.RequestCash(context.Background(), "user-1", "mtn", 50)
	require.NoError(t, err)
	assert.Equal(t, int64(900), store.numbers[0].UsedToday, "allocation must not consume capacity")

	require.NoError(t, svc.ConfirmTransfer(context.Background(), order.OrderID, "user-1"))
	assert.Equal(t, int64(950), store.numbers[0].UsedToday)
	assert.Equal(t, NumberStatusActive, store.numbers[0].Status)
}

func TestConfirmTransfer_ExhaustsNumberAtCap(t *testing.T) {
	store := newMemInventory()
	store.addNumber("mtn", "0801", 1000, 900, 1)
	svc := newTestService(store)

	order, _, err := svc.RequestCash(context.Background(), "user-1", "mtn", 100)
	require.NoError(t, err)
	require.NoError(t, svc.ConfirmTransfer(context.Background(), order.OrderID, "user-1"))

	assert.Equal(t, int64(1000), store.numbers[0].UsedToday)
	assert.Equal(t, NumberStatusExhausted, store.numbers[0].Status)

	// The exhausted number no longer serves allocations
	_, _, err = svc.RequestCash(context.Background(), "user-2", "mtn", 1)
	assert.ErrorIs(t, err, ErrOutOfStock)
}

func TestCashOrder_OperatorCompleteAfterConfirm(t *testing.T) {
	store := newMemInventory()
	store.addNumber("mtn", "0801", 1000, 0, 1)
	svc := newTestService(store)

	order, _, err := svc.RequestCash(context.Background(), "user-1", "mtn", 300)
	require.NoError(t, err)

	// Operator cannot complete before the user confirms
	err = svc.CompleteCashOrder(context.Background(), order.OrderID, "op-1")
	require.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, svc.ConfirmTransfer(context.Background(), order.OrderID, "user-1"))
	require.NoError(t, svc.CompleteCashOrder(context.Background(), order.OrderID, "op-1"))

	got, err := svc.GetCashOrder(context.Background(), order.OrderID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, CashOrderCompleted, got.Status)
	assert.Empty(t, store.credits)
}

func TestCashOrder_RejectAfterAirtimeSentRefundsOnce(t *testing.T) {
	store := newMemInventory()
	store.addNumber("mtn", "0801", 1000, 0, 1)
	svc := newTestService(store)

	order, _, err := svc.RequestCash(context.Background(), "user-1", "mtn", 300)
	require.NoError(t, err)
	require.NoError(t, svc.ConfirmTransfer(context.Background(), order.OrderID, "user-1"))

	require.NoError(t, svc.RejectCashOrder(context.Background(), order.OrderID, "op-1", "transfer not received"))

	got, err := svc.GetCashOrder(context.Background(), order.OrderID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, CashOrderRejected, got.Status)
	assert.True(t, got.Refunded)
	require.Len(t, store.credits, 1)
	assert.Equal(t, int64(300), store.credits[order.OrderID].Amount)
}

func TestCashOrder_RejectPendingDoesNotRefund(t *testing.T) {
	store := newMemInventory()
	store.addNumber("mtn", "0801", 1000, 0, 1)
	svc := newTestService(store)

	order, _, err := svc.RequestCash(context.Background(), "user-1", "mtn", 300)
	require.NoError(t, err)

	require.NoError(t, svc.RejectCashOrder(context.Background(), order.OrderID, "op-1", "stale request"))

	got, err := svc.GetCashOrder(context.Background(), order.OrderID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, CashOrderRejected, got.Status)
	assert.False(t, got.Refunded, "nothing was received, nothing to refund")
	assert.Empty(t, store.credits)
}

func TestOrderHistory_AppendsEveryTransition(t *testing.T) {
	store := newMemInventory()
	store.addNumber("mtn", "0801", 1000, 0, 1)
	svc := newTestService(store)

	order, _, err := svc.RequestCash(context.Background(), "user-1", "mtn", 300)
	require.NoError(t, err)
	require.NoError(t, svc.ConfirmTransfer(context.Background(), order.OrderID, "user-1"))
	require.NoError(t, svc.CompleteCashOrder(context.Background(), order.OrderID, "op-1"))

	var trail []string
	for _, e := range store.history {
		if e.OrderID == order.OrderID {
			trail = append(trail, e.NewStatus)
		}
	}
	assert.Equal(t, []string{CashOrderPending, CashOrderAirtimeSent, CashOrderCompleted}, trail)
}
