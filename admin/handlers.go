// Package admin serves the operator endpoints: user management, the ledger
// view and the daily billing run.
package admin

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/depinlaunch/web-backend/billing"
	"github.com/depinlaunch/web-backend/database"
	"github.com/depinlaunch/web-backend/models"
)

// Handlers serves /admin.
type Handlers struct {
	store *database.Store
}

// NewHandlers wires the admin handlers.
func NewHandlers(store *database.Store) *Handlers {
	return &Handlers{store: store}
}

// ListUsers returns every account.
func (h *Handlers) ListUsers(c *gin.Context) {
	users, err := h.store.AllUsers()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not load users"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// AdjustBalance credits or debits one user through the ledger. Balances are
// never set directly; every change leaves a transaction.
func (h *Handlers) AdjustBalance(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}
	var req struct {
		Amount      float64 `json:"amount" binding:"required"`
		Description string  `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := billing.AddBalance(h.store, uint(userID), req.Amount, req.Description); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not adjust balance"})
		return
	}
	user, err := h.store.UserByID(uint(userID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Balance adjusted but could not reload user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Balance adjusted", "balance": user.Balance})
}

// UpdateRole promotes or demotes one user.
func (h *Handlers) UpdateRole(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}
	var req struct {
		Role string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	role := models.Role(req.Role)
	if role != models.RoleUser && role != models.RoleAdmin {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Role must be user or admin"})
		return
	}

	if err := h.store.UpdateUserRole(uint(userID), role); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not update role"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Role updated", "role": role})
}

// Transactions returns the latest ledger entries across all users.
func (h *Handlers) Transactions(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	txs, err := h.store.RecentTransactions(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not load transactions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

// RunBilling charges today's daily fee to every user not yet billed today.
// Safe to call more than once per day.
func (h *Handlers) RunBilling(c *gin.Context) {
	charged, err := billing.RunDaily(h.store, time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"charged": charged})
}
