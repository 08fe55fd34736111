package payment

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/ticketengine/pkg/fanout"
	"github.com/MarkoPoloResearchLab/ticketengine/pkg/identity"
	"github.com/MarkoPoloResearchLab/ticketengine/pkg/ledger"
)

const testServerKey = "SB-Mid-server-test"

type stubState struct {
	orders       map[string]TicketOrder
	balances     map[string]ledger.Tickets
	transactions []ledger.Transaction
}

func (state *stubState) clone() stubState {
	orders := make(map[string]TicketOrder, len(state.orders))
	for id, order := range state.orders {
		orders[id] = order
	}
	balances := make(map[string]ledger.Tickets, len(state.balances))
	for userID, balance := range state.balances {
		balances[userID] = balance
	}
	transactions := make([]ledger.Transaction, len(state.transactions))
	copy(transactions, state.transactions)
	return stubState{orders: orders, balances: balances, transactions: transactions}
}

// stubStore keeps orders and the ticket ledger in one state guarded by one mutex, so a credit made
// through LedgerStore joins the payment unit of work.
type stubStore struct {
	mutex       *sync.Mutex
	state       *stubState
	inTx        bool
	createError error
}

func newStubStore(test *testing.T) *stubStore {
	test.Helper()
	return &stubStore{
		mutex: &sync.Mutex{},
		state: &stubState{orders: map[string]TicketOrder{}, balances: map[string]ledger.Tickets{}},
	}
}

func (store *stubStore) lock() func() {
	if store.inTx {
		return func() {}
	}
	store.mutex.Lock()
	return store.mutex.Unlock
}

func (store *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	if store.inTx {
		return fn(ctx, store)
	}
	store.mutex.Lock()
	defer store.mutex.Unlock()
	snapshot := store.state.clone()
	if err := fn(ctx, &stubStore{mutex: store.mutex, state: store.state, inTx: true}); err != nil {
		*store.state = snapshot
		return err
	}
	return nil
}

func (store *stubStore) CreateTicketOrder(_ context.Context, order TicketOrder) error {
	unlock := store.lock()
	defer unlock()
	if store.createError != nil {
		return store.createError
	}
	store.state.orders[order.ID] = order
	return nil
}

func (store *stubStore) GetTicketOrder(_ context.Context, id string) (TicketOrder, error) {
	unlock := store.lock()
	defer unlock()
	order, ok := store.state.orders[id]
	if !ok {
		return TicketOrder{}, ErrUnknownTicketOrder
	}
	return order, nil
}

func (store *stubStore) FindTicketOrderByExternalID(_ context.Context, externalID string) (TicketOrder, error) {
	unlock := store.lock()
	defer unlock()
	for _, order := range store.state.orders {
		if order.MidtransOrderID == externalID {
			return order, nil
		}
	}
	return TicketOrder{}, ErrUnknownTicketOrder
}

func (store *stubStore) ListTicketOrders(_ context.Context, userID ledger.UserID, limit int) ([]TicketOrder, error) {
	unlock := store.lock()
	defer unlock()
	var result []TicketOrder
	for _, order := range store.state.orders {
		if order.UserID == userID {
			result = append(result, order)
		}
	}
	sort.Slice(result, func(left, right int) bool { return result[left].CreatedAt.After(result[right].CreatedAt) })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (store *stubStore) ResolveTicketOrder(_ context.Context, id string, resolution Resolution) error {
	unlock := store.lock()
	defer unlock()
	order, ok := store.state.orders[id]
	if !ok {
		return ErrUnknownTicketOrder
	}
	if order.Status != OrderStatusPending {
		return ErrTicketOrderClosed
	}
	order.Status = resolution.Status
	order.PaymentStatusRaw = resolution.RawStatus
	order.PaidAt = resolution.PaidAt
	store.state.orders[id] = order
	return nil
}

func (store *stubStore) RecordPaymentStatus(_ context.Context, id string, rawStatus string) error {
	unlock := store.lock()
	defer unlock()
	order, ok := store.state.orders[id]
	if !ok {
		return ErrUnknownTicketOrder
	}
	order.PaymentStatusRaw = rawStatus
	store.state.orders[id] = order
	return nil
}

func (store *stubStore) LedgerStore() ledger.Store {
	return &stubLedgerStore{parent: store}
}

func (store *stubStore) order(id string) TicketOrder {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.state.orders[id]
}

func (store *stubStore) balanceOf(userID string) ledger.Tickets {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.state.balances[userID]
}

func (store *stubStore) transactionCount(userID string, transactionType ledger.TransactionType) int {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	count := 0
	for _, transaction := range store.state.transactions {
		if transaction.UserID.String() == userID && transaction.Type == transactionType {
			count++
		}
	}
	return count
}

type stubLedgerStore struct {
	parent *stubStore
}

func (store *stubLedgerStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore ledger.Store) error) error {
	return store.parent.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		return fn(ctx, txStore.LedgerStore())
	})
}

func (store *stubLedgerStore) GetOrCreateBalance(_ context.Context, userID ledger.UserID) (ledger.Tickets, error) {
	unlock := store.parent.lock()
	defer unlock()
	return store.parent.state.balances[userID.String()], nil
}

func (store *stubLedgerStore) AddToBalance(_ context.Context, userID ledger.UserID, quantity ledger.Quantity) (ledger.Tickets, error) {
	unlock := store.parent.lock()
	defer unlock()
	store.parent.state.balances[userID.String()] += quantity.Credit()
	return store.parent.state.balances[userID.String()], nil
}

func (store *stubLedgerStore) SubtractFromBalance(_ context.Context, userID ledger.UserID, quantity ledger.Quantity) (ledger.Tickets, error) {
	unlock := store.parent.lock()
	defer unlock()
	if store.parent.state.balances[userID.String()] < quantity.Credit() {
		return 0, ledger.ErrInsufficientFunds
	}
	store.parent.state.balances[userID.String()] += quantity.Debit()
	return store.parent.state.balances[userID.String()], nil
}

func (store *stubLedgerStore) InsertTransaction(_ context.Context, transaction ledger.Transaction) error {
	unlock := store.parent.lock()
	defer unlock()
	for _, existing := range store.parent.state.transactions {
		if transaction.ReferenceID != "" && existing.Type == transaction.Type && existing.ReferenceID == transaction.ReferenceID {
			return ledger.ErrDuplicateReference
		}
	}
	store.parent.state.transactions = append(store.parent.state.transactions, transaction)
	return nil
}

func (store *stubLedgerStore) ListTransactions(_ context.Context, userID ledger.UserID, _ int) ([]ledger.Transaction, error) {
	unlock := store.parent.lock()
	defer unlock()
	var result []ledger.Transaction
	for _, transaction := range store.parent.state.transactions {
		if transaction.UserID == userID {
			result = append(result, transaction)
		}
	}
	return result, nil
}

func (store *stubLedgerStore) SumTransactions(_ context.Context, userID ledger.UserID) (ledger.Tickets, error) {
	unlock := store.parent.lock()
	defer unlock()
	var sum ledger.Tickets
	for _, transaction := range store.parent.state.transactions {
		if transaction.UserID == userID {
			sum += transaction.Amount
		}
	}
	return sum, nil
}

type recordingFanout struct {
	mutex   sync.Mutex
	signals []fanout.Signal
}

func (recorder *recordingFanout) Notify(_ context.Context, signal fanout.Signal) {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	recorder.signals = append(recorder.signals, signal)
}

func (recorder *recordingFanout) count() int {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	return len(recorder.signals)
}

func fixedClock() time.Time {
	return time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
}

func mustVerifier(test *testing.T) SignatureVerifier {
	test.Helper()
	verifier, err := NewSignatureVerifier(testServerKey)
	if err != nil {
		test.Fatalf("verifier: %v", err)
	}
	return verifier
}

func mustService(test *testing.T, store Store, gateway Gateway, options ...ServiceOption) *Service {
	test.Helper()
	ledgerService, err := ledger.NewService(store.LedgerStore(), fixedClock)
	if err != nil {
		test.Fatalf("ledger: %v", err)
	}
	options = append([]ServiceOption{WithClock(fixedClock)}, options...)
	service, err := NewService(store, ledgerService, gateway, mustVerifier(test), options...)
	if err != nil {
		test.Fatalf("payment service: %v", err)
	}
	return service
}

func mustActor(test *testing.T, userID string, role identity.Role) identity.Actor {
	test.Helper()
	actor, err := identity.NewActor(userID, role)
	if err != nil {
		test.Fatalf("actor: %v", err)
	}
	return actor
}

func signedNotification(test *testing.T, orderID string, status string, grossAmount string) Notification {
	test.Helper()
	notification := Notification{
		OrderID:           orderID,
		TransactionStatus: status,
		StatusCode:        "200",
		GrossAmount:       grossAmount,
	}
	notification.SignatureKey = mustVerifier(test).Sign(notification.OrderID, notification.StatusCode, notification.GrossAmount)
	return notification
}
