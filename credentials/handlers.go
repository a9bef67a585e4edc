// Package credentials serves the cloud-credential endpoints: CRUD, bulk
// import and the account health sweep. Secret keys are fernet-encrypted
// before they touch the record store and never returned by any endpoint.
package credentials

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/depinlaunch/web-backend/database"
	"github.com/depinlaunch/web-backend/fleet"
	"github.com/depinlaunch/web-backend/middleware"
	"github.com/depinlaunch/web-backend/models"
	"github.com/depinlaunch/web-backend/secrets"
)

// Handlers serves /credentials.
type Handlers struct {
	store *database.Store
	codec *secrets.Codec
	fleet *fleet.Service
}

// NewHandlers wires the credential handlers.
func NewHandlers(store *database.Store, codec *secrets.Codec, fleetSvc *fleet.Service) *Handlers {
	return &Handlers{store: store, codec: codec, fleet: fleetSvc}
}

// List returns the caller's credentials. Encrypted secrets are excluded by
// the model's JSON tags.
func (h *Handlers) List(c *gin.Context) {
	creds, err := h.store.CredentialsForUser(middleware.UserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not load credentials"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"credentials": creds})
}

// Create stores one new credential.
func (h *Handlers) Create(c *gin.Context) {
	var req struct {
		AliasName string `json:"alias_name" binding:"required"`
		AccessKey string `json:"access_key_id" binding:"required"`
		SecretKey string `json:"secret_key" binding:"required"`
		ProxyURL  string `json:"proxy_url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	encrypted, err := h.codec.Encrypt(req.SecretKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not protect secret key"})
		return
	}
	cred := models.Credential{
		UserID:             middleware.UserID(c),
		AliasName:          req.AliasName,
		AccessKeyID:        req.AccessKey,
		SecretKeyEncrypted: encrypted,
		ProxyURL:           req.ProxyURL,
		Status:             models.CredentialActive,
	}
	if err := h.store.CreateCredential(&cred); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create credential"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"credential": cred})
}

// Update edits alias, proxy or key material of one credential.
func (h *Handlers) Update(c *gin.Context) {
	credID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid credential ID"})
		return
	}
	var req struct {
		AliasName string  `json:"alias_name"`
		AccessKey string  `json:"access_key_id"`
		SecretKey string  `json:"secret_key"`
		ProxyURL  *string `json:"proxy_url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updates := map[string]interface{}{}
	if req.AliasName != "" {
		updates["alias_name"] = req.AliasName
	}
	if req.AccessKey != "" {
		updates["access_key_id"] = req.AccessKey
	}
	if req.ProxyURL != nil {
		updates["proxy_url"] = *req.ProxyURL
	}
	if req.SecretKey != "" {
		encrypted, err := h.codec.Encrypt(req.SecretKey)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not protect secret key"})
			return
		}
		updates["secret_key_encrypted"] = encrypted
		// New keys start over: last check no longer applies.
		updates["status"] = models.CredentialActive
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nothing to update"})
		return
	}

	if err := h.store.UpdateCredential(middleware.UserID(c), uint(credID), updates); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not update credential"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Credential updated"})
}

// Delete removes one credential. Instance records under it are kept and show
// as unknown-account until terminated or rescanned under a re-imported key.
func (h *Handlers) Delete(c *gin.Context) {
	credID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid credential ID"})
		return
	}
	if err := h.store.DeleteCredential(middleware.UserID(c), uint(credID)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not delete credential"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Credential deleted"})
}

// BatchImport accepts newline-separated "alias,access_key,secret_key[,proxy]"
// lines. Bad lines are reported per line number; good lines are imported.
func (h *Handlers) BatchImport(c *gin.Context) {
	var req struct {
		Lines string `json:"lines" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := middleware.UserID(c)
	imported := 0
	var failures []string
	for n, line := range strings.Split(req.Lines, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) < 3 || len(parts) > 4 {
			failures = append(failures, fmt.Sprintf("line %d: expected alias,access_key,secret_key[,proxy]", n+1))
			continue
		}
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if parts[0] == "" || parts[1] == "" || parts[2] == "" {
			failures = append(failures, fmt.Sprintf("line %d: empty field", n+1))
			continue
		}

		encrypted, err := h.codec.Encrypt(parts[2])
		if err != nil {
			failures = append(failures, fmt.Sprintf("line %d: could not protect secret", n+1))
			continue
		}
		cred := models.Credential{
			UserID:             userID,
			AliasName:          parts[0],
			AccessKeyID:        parts[1],
			SecretKeyEncrypted: encrypted,
			Status:             models.CredentialActive,
		}
		if len(parts) == 4 {
			cred.ProxyURL = parts[3]
		}
		if err := h.store.CreateCredential(&cred); err != nil {
			failures = append(failures, fmt.Sprintf("line %d: %v", n+1, err))
			continue
		}
		imported++
	}

	c.JSON(http.StatusOK, gin.H{
		"imported": imported,
		"failed":   len(failures),
		"failures": failures,
	})
}

// CheckAll runs the account health and quota sweep over every credential.
func (h *Handlers) CheckAll(c *gin.Context) {
	result, err := h.fleet.CheckCredentials(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}
