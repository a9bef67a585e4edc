package database

import (
	"github.com/depinlaunch/web-backend/models"
	"gorm.io/gorm"
)

// UserByID fetches one user.
func (s *Store) UserByID(userID uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// AllUsers returns every user profile, newest first.
func (s *Store) AllUsers() ([]models.User, error) {
	var users []models.User
	err := s.db.Order("created_at DESC").Find(&users).Error
	return users, err
}

// AdjustBalance applies a signed delta to the user's balance and records the
// matching ledger entry in one transaction.
func (s *Store) AdjustBalance(userID uint, amount float64, txType models.TransactionType, description string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).Where("id = ?", userID).
			Update("balance", gorm.Expr("balance + ?", amount)).Error; err != nil {
			return err
		}
		return tx.Create(&models.Transaction{
			UserID:      userID,
			Amount:      amount,
			Type:        txType,
			Description: description,
		}).Error
	})
}

// HasCredentials reports whether the user has any stored cloud credentials.
func (s *Store) HasCredentials(userID uint) (bool, error) {
	var count int64
	err := s.db.Model(&models.Credential{}).Where("user_id = ?", userID).Count(&count).Error
	return count > 0, err
}

// ActiveInstanceCount counts the user's non-terminated instances.
func (s *Store) ActiveInstanceCount(userID uint) (int, error) {
	var count int64
	err := s.db.Model(&models.Instance{}).
		Where("user_id = ? AND status <> ?", userID, models.StatusTerminated).
		Count(&count).Error
	return int(count), err
}

// BilledOn reports whether the daily fee was already charged for the date.
func (s *Store) BilledOn(userID uint, date string) (bool, error) {
	var count int64
	err := s.db.Model(&models.BillingLog{}).
		Where("user_id = ? AND date = ?", userID, date).Count(&count).Error
	return count > 0, err
}

// RecordBillingLog marks the date as billed.
func (s *Store) RecordBillingLog(userID uint, date string, totalFee float64) error {
	return s.db.Create(&models.BillingLog{UserID: userID, Date: date, TotalFee: totalFee}).Error
}

// RecentTransactions returns the latest ledger entries across all users.
func (s *Store) RecentTransactions(limit int) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := s.db.Preload("User").Order("created_at DESC").Limit(limit).Find(&txs).Error
	return txs, err
}
