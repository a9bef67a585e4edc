package billing

import (
	"errors"
	"testing"
	"time"

	"github.com/depinlaunch/web-backend/models"
)

type memStore struct {
	users     map[uint]*models.User
	creds     map[uint]bool
	instances map[uint]int
	billed    map[string]float64
	ledger    []models.Transaction
}

func newMemStore() *memStore {
	return &memStore{
		users:     map[uint]*models.User{},
		creds:     map[uint]bool{},
		instances: map[uint]int{},
		billed:    map[string]float64{},
	}
}

func (m *memStore) key(userID uint, date string) string {
	return date + "/" + string(rune('0'+userID))
}

func (m *memStore) UserByID(userID uint) (*models.User, error) {
	u, ok := m.users[userID]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) AllUsers() ([]models.User, error) {
	var out []models.User
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out, nil
}

func (m *memStore) AdjustBalance(userID uint, amount float64, txType models.TransactionType, description string) error {
	u, ok := m.users[userID]
	if !ok {
		return errors.New("not found")
	}
	u.Balance += amount
	m.ledger = append(m.ledger, models.Transaction{
		UserID: userID, Amount: amount, Type: txType, Description: description,
	})
	return nil
}

func (m *memStore) HasCredentials(userID uint) (bool, error) {
	return m.creds[userID], nil
}

func (m *memStore) ActiveInstanceCount(userID uint) (int, error) {
	return m.instances[userID], nil
}

func (m *memStore) BilledOn(userID uint, date string) (bool, error) {
	_, ok := m.billed[m.key(userID, date)]
	return ok, nil
}

func (m *memStore) RecordBillingLog(userID uint, date string, totalFee float64) error {
	m.billed[m.key(userID, date)] = totalFee
	return nil
}

func TestAuthorize(t *testing.T) {
	store := newMemStore()
	store.users[1] = &models.User{ID: 1, Balance: 3.5}
	store.users[2] = &models.User{ID: 2, Balance: 0}
	store.users[3] = &models.User{ID: 3, Balance: -0.45}

	if d := Authorize(store, 1); !d.Allowed || d.Balance != 3.5 {
		t.Errorf("positive balance = %+v, want allowed", d)
	}
	if d := Authorize(store, 2); d.Allowed {
		t.Errorf("zero balance = %+v, want denied", d)
	}
	if d := Authorize(store, 3); d.Allowed || d.Reason == "" {
		t.Errorf("negative balance = %+v, want denied with reason", d)
	}
	if d := Authorize(store, 99); d.Allowed {
		t.Errorf("unknown user = %+v, want denied", d)
	}
}

func TestCalculateDailyCost(t *testing.T) {
	store := newMemStore()
	store.users[1] = &models.User{ID: 1}
	store.creds[1] = true
	store.instances[1] = 3

	cost, err := CalculateDailyCost(store, 1)
	if err != nil {
		t.Fatalf("CalculateDailyCost: %v", err)
	}
	want := BaseDailyFee + 3*InstanceDailyFee
	if cost != want {
		t.Errorf("cost = %v, want %v", cost, want)
	}

	store.users[2] = &models.User{ID: 2}
	cost, err = CalculateDailyCost(store, 2)
	if err != nil {
		t.Fatalf("CalculateDailyCost: %v", err)
	}
	if cost != 0 {
		t.Errorf("idle user cost = %v, want 0", cost)
	}
}

func TestRunDailyIsIdempotent(t *testing.T) {
	store := newMemStore()
	store.users[1] = &models.User{ID: 1, Balance: 10}
	store.creds[1] = true
	store.instances[1] = 2
	store.users[2] = &models.User{ID: 2, Balance: 5}

	day := time.Date(2026, 8, 28, 4, 0, 0, 0, time.UTC)
	charged, err := RunDaily(store, day)
	if err != nil {
		t.Fatalf("RunDaily: %v", err)
	}
	if charged != 1 {
		t.Errorf("charged = %d, want 1 (idle user owes nothing)", charged)
	}
	wantBalance := 10 - (BaseDailyFee + 2*InstanceDailyFee)
	if store.users[1].Balance != wantBalance {
		t.Errorf("balance = %v, want %v", store.users[1].Balance, wantBalance)
	}

	// Same day again: nothing new is charged.
	charged, err = RunDaily(store, day)
	if err != nil {
		t.Fatalf("second RunDaily: %v", err)
	}
	if charged != 0 {
		t.Errorf("second run charged %d users", charged)
	}
	if store.users[1].Balance != wantBalance {
		t.Errorf("balance moved on re-run: %v", store.users[1].Balance)
	}

	// Next day bills again.
	charged, _ = RunDaily(store, day.Add(24*time.Hour))
	if charged != 1 {
		t.Errorf("next day charged = %d, want 1", charged)
	}
}

func TestRunDailyCanDriveBalanceNegative(t *testing.T) {
	store := newMemStore()
	store.users[1] = &models.User{ID: 1, Balance: 0.10}
	store.creds[1] = true

	if _, err := RunDaily(store, time.Now()); err != nil {
		t.Fatalf("RunDaily: %v", err)
	}
	if store.users[1].Balance >= 0 {
		t.Errorf("balance = %v, want negative after fee exceeds funds", store.users[1].Balance)
	}
	if d := Authorize(store, 1); d.Allowed {
		t.Error("negative balance still authorized")
	}
}

func TestAddBalanceWritesLedger(t *testing.T) {
	store := newMemStore()
	store.users[1] = &models.User{ID: 1}

	if err := AddBalance(store, 1, 25, "top up"); err != nil {
		t.Fatalf("AddBalance: %v", err)
	}
	if err := AddBalance(store, 1, -5, "correction"); err != nil {
		t.Fatalf("AddBalance negative: %v", err)
	}
	if err := AddBalance(store, 1, 0, "noop"); err == nil {
		t.Error("zero amount accepted")
	}

	if store.users[1].Balance != 20 {
		t.Errorf("balance = %v, want 20", store.users[1].Balance)
	}
	if len(store.ledger) != 2 {
		t.Fatalf("ledger has %d entries, want 2", len(store.ledger))
	}
	if store.ledger[0].Type != models.TxDeposit || store.ledger[1].Type != models.TxRefund {
		t.Errorf("ledger types = %v, %v", store.ledger[0].Type, store.ledger[1].Type)
	}
}
