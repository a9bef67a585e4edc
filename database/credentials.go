package database

import (
	"time"

	"github.com/depinlaunch/web-backend/models"
)

// CredentialsForUser returns all credentials owned by the user.
func (s *Store) CredentialsForUser(userID uint) ([]models.Credential, error) {
	var creds []models.Credential
	err := s.db.Where("user_id = ?", userID).Order("created_at").Find(&creds).Error
	return creds, err
}

// CredentialByID returns one credential, scoped to its owner.
func (s *Store) CredentialByID(userID, credentialID uint) (*models.Credential, error) {
	var cred models.Credential
	err := s.db.Where("user_id = ? AND id = ?", userID, credentialID).First(&cred).Error
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

// CreateCredential inserts a new credential row.
func (s *Store) CreateCredential(cred *models.Credential) error {
	return s.db.Create(cred).Error
}

// UpdateCredential applies field updates to one credential, scoped to its
// owner.
func (s *Store) UpdateCredential(userID, credentialID uint, updates map[string]interface{}) error {
	return s.db.Model(&models.Credential{}).
		Where("user_id = ? AND id = ?", userID, credentialID).
		Updates(updates).Error
}

// DeleteCredential removes a credential. Instance records under it are kept;
// the status view shows them under an unknown account until rescanned or
// re-imported.
func (s *Store) DeleteCredential(userID, credentialID uint) error {
	return s.db.Where("user_id = ? AND id = ?", userID, credentialID).
		Delete(&models.Credential{}).Error
}

// UpdateCredentialCheck persists the outcome of a health/quota check.
// limit and used may be nil when the check did not reach the quota step.
func (s *Store) UpdateCredentialCheck(credentialID uint, status models.CredentialStatus, limit, used *int) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":       status,
		"last_checked": &now,
	}
	if limit != nil {
		updates["vcpu_limit"] = *limit
	}
	if used != nil {
		updates["vcpu_used"] = *used
	}
	return s.db.Model(&models.Credential{}).Where("id = ?", credentialID).Updates(updates).Error
}
