// Package billing is the balance gate and the daily fee run. It sits outside
// the fleet core: handlers call Authorize at action entry points, nothing
// inside reconcile or probe knows balances exist.
package billing

import (
	"fmt"
	"log"
	"time"

	"github.com/depinlaunch/web-backend/models"
)

// Fee schedule, per user per day.
const (
	// BaseDailyFee is charged to every user holding at least one credential.
	BaseDailyFee = 0.25
	// InstanceDailyFee is charged per active instance.
	InstanceDailyFee = 0.20
)

// Store is the record-store surface billing uses.
type Store interface {
	UserByID(userID uint) (*models.User, error)
	AllUsers() ([]models.User, error)
	AdjustBalance(userID uint, amount float64, txType models.TransactionType, description string) error
	HasCredentials(userID uint) (bool, error)
	ActiveInstanceCount(userID uint) (int, error)
	BilledOn(userID uint, date string) (bool, error)
	RecordBillingLog(userID uint, date string, totalFee float64) error
}

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool    `json:"allowed"`
	Balance float64 `json:"balance"`
	Reason  string  `json:"reason,omitempty"`
}

// Authorize is the single gate for paid actions: the user must exist and hold
// a positive balance. Admins are not exempt; they top up like everyone else.
func Authorize(store Store, userID uint) Decision {
	user, err := store.UserByID(userID)
	if err != nil {
		return Decision{Reason: "account not found"}
	}
	if user.Balance <= 0 {
		return Decision{Balance: user.Balance, Reason: "insufficient balance, please top up"}
	}
	return Decision{Allowed: true, Balance: user.Balance}
}

// AddBalance credits (or, with a negative amount, debits) a user and writes
// the ledger entry.
func AddBalance(store Store, userID uint, amount float64, description string) error {
	if amount == 0 {
		return fmt.Errorf("amount must be non-zero")
	}
	txType := models.TxDeposit
	if amount < 0 {
		txType = models.TxRefund
	}
	if description == "" {
		description = "balance adjustment"
	}
	return store.AdjustBalance(userID, amount, txType, description)
}

// CalculateDailyCost computes one user's daily fee: the base fee applies when
// the user holds any credential, plus a per-instance fee for each active
// machine. Users with no credentials and no instances owe nothing.
func CalculateDailyCost(store Store, userID uint) (float64, error) {
	hasCreds, err := store.HasCredentials(userID)
	if err != nil {
		return 0, err
	}
	instances, err := store.ActiveInstanceCount(userID)
	if err != nil {
		return 0, err
	}

	total := 0.0
	if hasCreds {
		total += BaseDailyFee
	}
	total += float64(instances) * InstanceDailyFee
	return total, nil
}

// RunDaily charges every user the daily fee for the given day. A user already
// billed for that date is skipped, so the pass can be re-run safely. Balances
// may go negative; the gate blocks further paid actions until topped up.
// Returns the number of users charged.
func RunDaily(store Store, day time.Time) (int, error) {
	users, err := store.AllUsers()
	if err != nil {
		return 0, err
	}
	date := day.Format("2006-01-02")

	charged := 0
	for _, user := range users {
		billed, err := store.BilledOn(user.ID, date)
		if err != nil {
			log.Printf("Billing check failed for user %d: %v", user.ID, err)
			continue
		}
		if billed {
			continue
		}

		fee, err := CalculateDailyCost(store, user.ID)
		if err != nil {
			log.Printf("Cost calculation failed for user %d: %v", user.ID, err)
			continue
		}
		if fee == 0 {
			continue
		}

		desc := fmt.Sprintf("Daily fee for %s", date)
		if err := store.AdjustBalance(user.ID, -fee, models.TxDailyFee, desc); err != nil {
			log.Printf("Failed to charge user %d: %v", user.ID, err)
			continue
		}
		if err := store.RecordBillingLog(user.ID, date, fee); err != nil {
			log.Printf("Failed to record billing log for user %d: %v", user.ID, err)
			continue
		}
		charged++
	}
	return charged, nil
}
