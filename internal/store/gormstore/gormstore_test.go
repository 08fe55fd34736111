package gormstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/ticketengine/pkg/ledger"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openTestStore returns a migrated in-memory database. One connection keeps every caller on the same
// in-memory database and serializes transactions the way row locks would on postgres.
func openTestStore(test *testing.T) *Store {
	test.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		test.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		test.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	test.Cleanup(func() { _ = sqlDB.Close() })
	if err := Migrate(db); err != nil {
		test.Fatalf("migrate: %v", err)
	}
	return New(db)
}

func fixedClock() time.Time {
	return time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
}

// steppingClock advances one second per call so listing order is deterministic.
func steppingClock() func() time.Time {
	var mutex sync.Mutex
	current := fixedClock()
	return func() time.Time {
		mutex.Lock()
		defer mutex.Unlock()
		current = current.Add(time.Second)
		return current
	}
}

func mustLedgerService(test *testing.T, store *Store) *ledger.Service {
	test.Helper()
	service, err := ledger.NewService(store.Ledger(), steppingClock())
	if err != nil {
		test.Fatalf("ledger service: %v", err)
	}
	return service
}

func mustUserID(test *testing.T, raw string) ledger.UserID {
	test.Helper()
	userID, err := ledger.NewUserID(raw)
	if err != nil {
		test.Fatalf("user id: %v", err)
	}
	return userID
}

func mustQuantity(test *testing.T, raw int64) ledger.Quantity {
	test.Helper()
	quantity, err := ledger.NewQuantity(raw)
	if err != nil {
		test.Fatalf("quantity: %v", err)
	}
	return quantity
}

func TestLedgerStoreCreditDebitAndAudit(test *testing.T) {
	test.Parallel()
	store := openTestStore(test)
	service := mustLedgerService(test, store)
	ctx := context.Background()
	userID := mustUserID(test, "driver-a")

	balance, err := service.Balance(ctx, userID)
	if err != nil || balance != 0 {
		test.Fatalf("expected lazily created zero balance, got %d (%v)", balance, err)
	}
	if _, err := service.Credit(ctx, userID, mustQuantity(test, 10), ledger.TransactionPurchase, "", "order-1"); err != nil {
		test.Fatalf("credit: %v", err)
	}
	balance, err = service.Debit(ctx, userID, mustQuantity(test, 3), "job")
	if err != nil || balance != 7 {
		test.Fatalf("expected balance 7, got %d (%v)", balance, err)
	}
	if _, err := service.Debit(ctx, userID, mustQuantity(test, 8), "job"); !errors.Is(err, ledger.ErrInsufficientFunds) {
		test.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	audit, err := service.Audit(ctx, userID)
	if err != nil {
		test.Fatalf("audit: %v", err)
	}
	if audit.Balance != 7 || !audit.Consistent() {
		test.Fatalf("unexpected audit: %+v", audit)
	}
	transactions, err := service.ListTransactions(ctx, userID, 10)
	if err != nil {
		test.Fatalf("list: %v", err)
	}
	if len(transactions) != 2 || transactions[0].Type != ledger.TransactionConsume || transactions[1].ReferenceID != "order-1" {
		test.Fatalf("unexpected transactions: %+v", transactions)
	}
}

func TestLedgerStoreConcurrentDebitsSpendOnce(test *testing.T) {
	test.Parallel()
	store := openTestStore(test)
	service := mustLedgerService(test, store)
	ctx := context.Background()
	userID := mustUserID(test, "driver-a")
	if _, err := service.Credit(ctx, userID, mustQuantity(test, 10), ledger.TransactionPurchase, "", ""); err != nil {
		test.Fatalf("credit: %v", err)
	}

	var waitGroup sync.WaitGroup
	errs := make([]error, 2)
	for index, amount := range []int64{3, 8} {
		waitGroup.Add(1)
		go func(index int, amount int64) {
			defer waitGroup.Done()
			_, errs[index] = service.Debit(ctx, userID, mustQuantity(test, amount), "")
		}(index, amount)
	}
	waitGroup.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, ledger.ErrInsufficientFunds) {
			test.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		test.Fatalf("expected exactly one debit, got %d", succeeded)
	}
	audit, err := service.Audit(ctx, userID)
	if err != nil {
		test.Fatalf("audit: %v", err)
	}
	if (audit.Balance != 7 && audit.Balance != 2) || !audit.Consistent() {
		test.Fatalf("unexpected audit: %+v", audit)
	}
	transactions, err := service.ListTransactions(ctx, userID, 10)
	if err != nil {
		test.Fatalf("list: %v", err)
	}
	if len(transactions) != 2 {
		test.Fatalf("expected purchase plus one consume, got %d", len(transactions))
	}
}

func TestLedgerStoreRejectsDuplicateReference(test *testing.T) {
	test.Parallel()
	store := openTestStore(test)
	ctx := context.Background()
	ledgerStore := store.Ledger()
	userID := mustUserID(test, "driver-a")
	transaction := ledger.Transaction{UserID: userID, Type: ledger.TransactionPurchase, Amount: 5, ReferenceID: "order-1", CreatedAt: fixedClock()}

	if err := ledgerStore.InsertTransaction(ctx, transaction); err != nil {
		test.Fatalf("first insert: %v", err)
	}
	if err := ledgerStore.InsertTransaction(ctx, transaction); !errors.Is(err, ledger.ErrDuplicateReference) {
		test.Fatalf("expected ErrDuplicateReference, got %v", err)
	}
	unreferenced := ledger.Transaction{UserID: userID, Type: ledger.TransactionConsume, Amount: -1, CreatedAt: fixedClock()}
	for index := 0; index < 2; index++ {
		if err := ledgerStore.InsertTransaction(ctx, unreferenced); err != nil {
			test.Fatalf("unreferenced insert %d: %v", index, err)
		}
	}
}

func TestLedgerStoreRollsBackBalanceWithFailedTransaction(test *testing.T) {
	test.Parallel()
	store := openTestStore(test)
	service := mustLedgerService(test, store)
	ctx := context.Background()
	userID := mustUserID(test, "driver-a")

	if _, err := service.Credit(ctx, userID, mustQuantity(test, 5), ledger.TransactionPurchase, "", "order-1"); err != nil {
		test.Fatalf("credit: %v", err)
	}
	if _, err := service.Credit(ctx, userID, mustQuantity(test, 5), ledger.TransactionPurchase, "", "order-1"); !errors.Is(err, ledger.ErrDuplicateReference) {
		test.Fatalf("expected ErrDuplicateReference, got %v", err)
	}
	balance, err := service.Balance(ctx, userID)
	if err != nil || balance != 5 {
		test.Fatalf("expected balance 5 after rollback, got %d (%v)", balance, err)
	}
}
