package ledger

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"
)

type stubState struct {
	balances     map[string]Tickets
	transactions []Transaction
}

func (state *stubState) clone() stubState {
	balances := make(map[string]Tickets, len(state.balances))
	for userID, balance := range state.balances {
		balances[userID] = balance
	}
	transactions := make([]Transaction, len(state.transactions))
	copy(transactions, state.transactions)
	return stubState{balances: balances, transactions: transactions}
}

// stubStore serializes units of work behind one mutex and restores a snapshot on failure.
type stubStore struct {
	mutex       *sync.Mutex
	state       *stubState
	inTx        bool
	insertError error
	sequence    *int
}

func newStubStore(test *testing.T) *stubStore {
	test.Helper()
	sequence := 0
	return &stubStore{
		mutex:    &sync.Mutex{},
		state:    &stubState{balances: map[string]Tickets{}},
		sequence: &sequence,
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
	transactionStore := &stubStore{
		mutex:       store.mutex,
		state:       store.state,
		inTx:        true,
		insertError: store.insertError,
		sequence:    store.sequence,
	}
	if err := fn(ctx, transactionStore); err != nil {
		*store.state = snapshot
		return err
	}
	return nil
}

func (store *stubStore) GetOrCreateBalance(_ context.Context, userID UserID) (Tickets, error) {
	unlock := store.lock()
	defer unlock()
	balance, ok := store.state.balances[userID.String()]
	if !ok {
		store.state.balances[userID.String()] = 0
	}
	return balance, nil
}

func (store *stubStore) AddToBalance(_ context.Context, userID UserID, quantity Quantity) (Tickets, error) {
	unlock := store.lock()
	defer unlock()
	store.state.balances[userID.String()] += quantity.Credit()
	return store.state.balances[userID.String()], nil
}

func (store *stubStore) SubtractFromBalance(_ context.Context, userID UserID, quantity Quantity) (Tickets, error) {
	unlock := store.lock()
	defer unlock()
	current := store.state.balances[userID.String()]
	if current < quantity.Credit() {
		return 0, ErrInsufficientFunds
	}
	store.state.balances[userID.String()] = current + quantity.Debit()
	return store.state.balances[userID.String()], nil
}

func (store *stubStore) InsertTransaction(_ context.Context, transaction Transaction) error {
	unlock := store.lock()
	defer unlock()
	if store.insertError != nil {
		return store.insertError
	}
	for _, existing := range store.state.transactions {
		if transaction.ReferenceID != "" && existing.Type == transaction.Type && existing.ReferenceID == transaction.ReferenceID {
			return ErrDuplicateReference
		}
	}
	*store.sequence++
	transaction.ID = time.Unix(int64(*store.sequence), 0).UTC().Format("150405")
	store.state.transactions = append(store.state.transactions, transaction)
	return nil
}

func (store *stubStore) ListTransactions(_ context.Context, userID UserID, limit int) ([]Transaction, error) {
	unlock := store.lock()
	defer unlock()
	var result []Transaction
	for index := len(store.state.transactions) - 1; index >= 0 && len(result) < limit; index-- {
		if store.state.transactions[index].UserID == userID {
			result = append(result, store.state.transactions[index])
		}
	}
	return result, nil
}

func (store *stubStore) SumTransactions(_ context.Context, userID UserID) (Tickets, error) {
	unlock := store.lock()
	defer unlock()
	var sum Tickets
	for _, transaction := range store.state.transactions {
		if transaction.UserID == userID {
			sum += transaction.Amount
		}
	}
	return sum, nil
}

func (store *stubStore) balanceOf(userID UserID) Tickets {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.state.balances[userID.String()]
}

func (store *stubStore) transactionsOf(userID UserID) []Transaction {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	var result []Transaction
	for _, transaction := range store.state.transactions {
		if transaction.UserID == userID {
			result = append(result, transaction)
		}
	}
	sort.SliceStable(result, func(left, right int) bool { return result[left].ID < result[right].ID })
	return result
}

func fixedClock() time.Time {
	return time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
}

func mustNewService(test *testing.T, store Store, options ...ServiceOption) *Service {
	test.Helper()
	service, err := NewService(store, fixedClock, options...)
	if err != nil {
		test.Fatalf("service init failed: %v", err)
	}
	return service
}

func mustUserID(test *testing.T, raw string) UserID {
	test.Helper()
	userID, err := NewUserID(raw)
	if err != nil {
		test.Fatalf("user id: %v", err)
	}
	return userID
}

func mustQuantity(test *testing.T, raw int64) Quantity {
	test.Helper()
	quantity, err := NewQuantity(raw)
	if err != nil {
		test.Fatalf("quantity: %v", err)
	}
	return quantity
}
