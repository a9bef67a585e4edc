package database

import (
	"time"

	"github.com/depinlaunch/web-backend/models"
)

// UserByEmail finds one user by login email.
func (s *Store) UserByEmail(email string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateUser inserts a new user account.
func (s *Store) CreateUser(user *models.User) error {
	return s.db.Create(user).Error
}

// UpdateUserRole changes a user's role.
func (s *Store) UpdateUserRole(userID uint, role models.Role) error {
	return s.db.Model(&models.User{}).Where("id = ?", userID).Update("role", role).Error
}

// CreateSession inserts a refresh session row.
func (s *Store) CreateSession(sess *models.Session) error {
	return s.db.Create(sess).Error
}

// SessionByID fetches one session.
func (s *Store) SessionByID(sessionID uint) (*models.Session, error) {
	var sess models.Session
	if err := s.db.First(&sess, sessionID).Error; err != nil {
		return nil, err
	}
	return &sess, nil
}

// SessionByRefreshToken fetches the session backing a refresh token.
func (s *Store) SessionByRefreshToken(token string) (*models.Session, error) {
	var sess models.Session
	if err := s.db.Where("refresh_token = ?", token).First(&sess).Error; err != nil {
		return nil, err
	}
	return &sess, nil
}

// DeleteSession removes a session row.
func (s *Store) DeleteSession(sessionID uint) error {
	return s.db.Delete(&models.Session{}, sessionID).Error
}

// TouchSession bumps the session's last-activity timestamp.
func (s *Store) TouchSession(sessionID uint) error {
	return s.db.Model(&models.Session{}).Where("id = ?", sessionID).
		Update("last_activity", time.Now()).Error
}
