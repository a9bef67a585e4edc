// Package auth implements registration, login and refresh-token rotation.
// Access tokens are short-lived JWTs; refresh tokens are opaque and backed by
// a session row so they can be revoked server-side.
package auth

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/depinlaunch/web-backend/database"
	"github.com/depinlaunch/web-backend/models"
)

// Handlers serves the /auth endpoints.
type Handlers struct {
	store  *database.Store
	jwtKey []byte
}

// NewHandlers wires the auth handlers.
func NewHandlers(store *database.Store, jwtSecret string) *Handlers {
	return &Handlers{store: store, jwtKey: []byte(jwtSecret)}
}

// JWTKey exposes the signing key for the auth middleware.
func (h *Handlers) JWTKey() []byte {
	return h.jwtKey
}

// LoginResponse represents the response for login requests
type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	Role         string `json:"role"`
	Email        string `json:"email"`
}

// Register handles user registration
func (h *Handlers) Register(c *gin.Context) {
	var userData struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=6"`
	}
	if err := c.ShouldBindJSON(&userData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.store.UserByEmail(userData.Email); err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "User with this email already exists"})
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(userData.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not hash password"})
		return
	}

	// New accounts always start as plain users; roles are promoted by an
	// admin, never self-assigned.
	newUser := models.User{
		Email:    userData.Email,
		Password: string(hashedPassword),
		Role:     models.RoleUser,
	}
	if err := h.store.CreateUser(&newUser); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create user"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"email":   newUser.Email,
		"role":    string(newUser.Role),
	})
}

// Login handles user login
func (h *Handlers) Login(c *gin.Context) {
	var credentials struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&credentials); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	user, err := h.store.UserByEmail(credentials.Email)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("Error querying user: %v", err)
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(credentials.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	accessToken, refreshToken, err := h.generateTokens(user)
	if err != nil {
		log.Printf("Failed to generate tokens for %s: %v", user.Email, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not generate tokens"})
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(AccessTokenExpiry.Seconds()),
		Role:         string(user.Role),
		Email:        user.Email,
	})
}

// Refresh rotates a refresh token: the old session must exist and be alive,
// and is replaced by a fresh one.
func (h *Handlers) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	sess, err := h.store.SessionByRefreshToken(req.RefreshToken)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid refresh token"})
			return
		}
		log.Printf("Error querying session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if expired, reason := SessionExpired(sess, time.Now()); expired {
		if err := h.store.DeleteSession(sess.ID); err != nil {
			log.Printf("Failed to delete expired session %d: %v", sess.ID, err)
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": reason})
		return
	}

	user, err := h.store.UserByID(sess.UserID)
	if err != nil {
		log.Printf("Error retrieving user for session %d: %v", sess.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error retrieving user info"})
		return
	}

	if err := h.store.DeleteSession(sess.ID); err != nil {
		log.Printf("Failed to rotate session %d: %v", sess.ID, err)
	}
	accessToken, refreshToken, err := h.generateTokens(user)
	if err != nil {
		log.Printf("Failed to generate new tokens: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not generate new tokens"})
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(AccessTokenExpiry.Seconds()),
		Role:         string(user.Role),
		Email:        user.Email,
	})
}

// Check confirms the caller's token is valid; the auth middleware has already
// done the work by the time this runs.
func (h *Handlers) Check(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"user_id": c.GetUint("user_id"),
		"email":   c.GetString("email"),
		"role":    c.GetString("role"),
	})
}

// generateTokens creates a session row and the matching token pair.
func (h *Handlers) generateTokens(user *models.User) (string, string, error) {
	refreshToken := uuid.NewString()
	sess := models.Session{
		UserID:       user.ID,
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().Add(RefreshTokenExpiry),
		LastActivity: time.Now(),
	}
	if err := h.store.CreateSession(&sess); err != nil {
		return "", "", err
	}

	accessToken, err := GenerateAccessToken(h.jwtKey, user.ID, user.Email, string(user.Role), sess.ID)
	if err != nil {
		if derr := h.store.DeleteSession(sess.ID); derr != nil {
			log.Printf("Failed to clean up session %d: %v", sess.ID, derr)
		}
		return "", "", err
	}
	return accessToken, refreshToken, nil
}
