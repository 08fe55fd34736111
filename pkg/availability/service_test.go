package availability

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/ticketengine/pkg/identity"
	"github.com/MarkoPoloResearchLab/ticketengine/pkg/ledger"
)

type stubStore struct {
	mutex    sync.Mutex
	records  map[string]Record
	profiles map[string]ProfileStatus
	balances map[string]ledger.Tickets
	saves    int
}

func newStubStore(test *testing.T) *stubStore {
	test.Helper()
	return &stubStore{records: map[string]Record{}, profiles: map[string]ProfileStatus{}, balances: map[string]ledger.Tickets{}}
}

func (store *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	return fn(ctx, store)
}

func (store *stubStore) GetOrCreateAvailability(_ context.Context, userID string, role identity.Role) (Record, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	key := string(role) + "/" + userID
	record, ok := store.records[key]
	if !ok {
		record = NewRecord(userID, role)
		store.records[key] = record
	}
	return record, nil
}

func (store *stubStore) SaveAvailability(_ context.Context, record Record) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.records[string(record.Role)+"/"+record.UserID] = record
	store.saves++
	return nil
}

func (store *stubStore) GetProfileStatus(_ context.Context, userID string, role identity.Role) (ProfileStatus, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	status, ok := store.profiles[string(role)+"/"+userID]
	if !ok {
		return "", ErrProfileNotFound
	}
	return status, nil
}

func (store *stubStore) LedgerStore() ledger.Store {
	return balanceOnlyStore{parent: store}
}

// balanceOnlyStore serves the balance read the gate performs.
type balanceOnlyStore struct {
	ledger.Store
	parent *stubStore
}

func (store balanceOnlyStore) GetOrCreateBalance(_ context.Context, userID ledger.UserID) (ledger.Tickets, error) {
	store.parent.mutex.Lock()
	defer store.parent.mutex.Unlock()
	return store.parent.balances[userID.String()], nil
}

func fixedClock() time.Time {
	return time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
}

func mustService(test *testing.T, store *stubStore) *Service {
	test.Helper()
	ledgerService, err := ledger.NewService(store.LedgerStore(), fixedClock)
	if err != nil {
		test.Fatalf("ledger: %v", err)
	}
	service, err := NewService(store, ledgerService, WithClock(fixedClock))
	if err != nil {
		test.Fatalf("availability: %v", err)
	}
	return service
}

func statusPointer(status Status) *Status { return &status }
func stringPointer(value string) *string  { return &value }
func floatPointer(value float64) *float64 { return &value }

func TestStoreWithZeroBalanceCannotGoActive(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	store.profiles["STORE/store-1"] = ProfileApproved
	service := mustService(test, store)
	actor := identity.Actor{UserID: "store-1", Role: identity.RoleStore}

	_, err := service.SetAvailability(context.Background(), actor, Patch{Status: statusPointer(StatusActive)})
	if !errors.Is(err, ErrInsufficientTickets) {
		test.Fatalf("expected ErrInsufficientTickets, got %v", err)
	}
	if store.saves != 0 {
		test.Fatalf("expected nothing saved, got %d saves", store.saves)
	}

	if _, err := service.SetAvailability(context.Background(), actor, Patch{Note: stringPointer("closed for holiday")}); err != nil {
		test.Fatalf("inactive store updates must pass without tickets: %v", err)
	}

	store.balances["store-1"] = 1
	record, err := service.SetAvailability(context.Background(), actor, Patch{Status: statusPointer(StatusActive)})
	if err != nil {
		test.Fatalf("expected activation with one ticket, got %v", err)
	}
	if record.Status != StatusActive {
		test.Fatalf("expected ACTIVE, got %s", record.Status)
	}
}

func TestDriverAvailabilityIsNotBalanceGated(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	store.profiles["DRIVER/driver-1"] = ProfileApproved
	service := mustService(test, store)

	record, err := service.SetAvailability(context.Background(), identity.Actor{UserID: "driver-1", Role: identity.RoleDriver}, Patch{Status: statusPointer(StatusActive)})
	if err != nil {
		test.Fatalf("driver activation: %v", err)
	}
	if record.Status != StatusActive {
		test.Fatalf("expected ACTIVE, got %s", record.Status)
	}
}

func TestSetAvailabilityRequiresApprovedProfile(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	store.profiles["DRIVER/driver-2"] = ProfilePending
	service := mustService(test, store)

	if _, err := service.SetAvailability(context.Background(), identity.Actor{UserID: "driver-2", Role: identity.RoleDriver}, Patch{}); !errors.Is(err, ErrProfileNotApproved) {
		test.Fatalf("expected ErrProfileNotApproved, got %v", err)
	}
	if _, err := service.SetAvailability(context.Background(), identity.Actor{UserID: "driver-3", Role: identity.RoleDriver}, Patch{}); !errors.Is(err, ErrProfileNotFound) {
		test.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
	if _, err := service.SetAvailability(context.Background(), identity.Actor{UserID: "customer-1", Role: identity.RoleCustomer}, Patch{}); !errors.Is(err, identity.ErrForbidden) {
		test.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestGeolocationIsWriteOnce(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	store.profiles["DRIVER/driver-1"] = ProfileApproved
	service := mustService(test, store)
	actor := identity.Actor{UserID: "driver-1", Role: identity.RoleDriver}

	if _, err := service.SetAvailability(context.Background(), actor, Patch{
		LocationURL: stringPointer("https://maps.example/a"),
		Latitude:    floatPointer(-6.2),
		Longitude:   floatPointer(106.8),
		Note:        stringPointer("first"),
	}); err != nil {
		test.Fatalf("first patch: %v", err)
	}
	record, err := service.SetAvailability(context.Background(), actor, Patch{
		LocationURL: stringPointer("https://maps.example/b"),
		Latitude:    floatPointer(1.0),
		Longitude:   floatPointer(2.0),
		Note:        stringPointer("second"),
		Region:      stringPointer("north campus"),
	})
	if err != nil {
		test.Fatalf("second patch: %v", err)
	}
	if *record.LocationURL != "https://maps.example/a" || *record.Latitude != -6.2 || *record.Longitude != 106.8 {
		test.Fatalf("geolocation must not change: %+v", record)
	}
	if record.Note != "second" || record.Region != "north campus" {
		test.Fatalf("other fields must update: %+v", record)
	}
}

func TestMergeIgnoresStoreFieldsForDrivers(test *testing.T) {
	test.Parallel()
	patch := Patch{OpenDays: stringPointer("Mon-Fri"), OpenTime: stringPointer("08:00")}
	driver := Merge(NewRecord("driver-1", identity.RoleDriver), patch)
	if driver.OpenDays != "" || driver.OpenTime != "" {
		test.Fatalf("driver must not carry opening hours: %+v", driver)
	}
	storeRecord := Merge(NewRecord("store-1", identity.RoleStore), patch)
	if storeRecord.OpenDays != "Mon-Fri" || storeRecord.OpenTime != "08:00" {
		test.Fatalf("store must carry opening hours: %+v", storeRecord)
	}
}

func TestPatchValidation(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name     string
		patch    Patch
		expected error
	}{
		{name: "unknown status", patch: Patch{Status: statusPointer(Status("BUSY"))}, expected: ErrInvalidStatus},
		{name: "latitude", patch: Patch{Latitude: floatPointer(91)}, expected: ErrInvalidPatch},
		{name: "longitude", patch: Patch{Longitude: floatPointer(-181)}, expected: ErrInvalidPatch},
		{name: "open time", patch: Patch{OpenTime: stringPointer("8am")}, expected: ErrInvalidPatch},
	}
	for _, testCase := range testCases {
		if err := testCase.patch.Validate(); !errors.Is(err, testCase.expected) {
			test.Fatalf("%s: expected %v, got %v", testCase.name, testCase.expected, err)
		}
	}
}

func TestGetAvailabilityCreatesDefaults(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustService(test, store)
	record, err := service.GetAvailability(context.Background(), identity.Actor{UserID: "store-9", Role: identity.RoleStore})
	if err != nil {
		test.Fatalf("get: %v", err)
	}
	if record.Status != StatusInactive || record.LocationURL != nil {
		test.Fatalf("unexpected defaults: %+v", record)
	}
}
