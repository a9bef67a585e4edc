// Package instances serves the fleet endpoints: the merged dashboard view
// and the batch launch/install/terminate/refresh operations. Paid actions go
// through the billing gate before any provider call.
package instances

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/depinlaunch/web-backend/billing"
	"github.com/depinlaunch/web-backend/database"
	"github.com/depinlaunch/web-backend/fleet"
	"github.com/depinlaunch/web-backend/middleware"
	"github.com/depinlaunch/web-backend/projects"
)

// Prober runs single-instance probes for the detect and health endpoints.
type Prober = fleet.Prober

// Handlers serves /instances and /projects.
type Handlers struct {
	store  *database.Store
	fleet  *fleet.Service
	prober Prober
	codec  fleet.Codec
}

// NewHandlers wires the instance handlers.
func NewHandlers(store *database.Store, fleetSvc *fleet.Service, prober Prober, codec fleet.Codec) *Handlers {
	return &Handlers{store: store, fleet: fleetSvc, prober: prober, codec: codec}
}

// gate enforces the balance check for paid actions. Returns false after
// writing the response when the caller is not allowed.
func (h *Handlers) gate(c *gin.Context) bool {
	decision := billing.Authorize(h.store, middleware.UserID(c))
	if !decision.Allowed {
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":   decision.Reason,
			"balance": decision.Balance,
		})
		return false
	}
	return true
}

// List returns the merged dashboard view: every instance with its freshest
// lifecycle state, derived states included.
func (h *Handlers) List(c *gin.Context) {
	views, unitErrs, err := h.fleet.RefreshStatuses(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not load instances"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"instances": views, "errors": unitErrs})
}

// Scan reconciles every (credential, region) pair with live inventory.
func (h *Handlers) Scan(c *gin.Context) {
	if !h.gate(c) {
		return
	}
	summary, err := h.fleet.ScanAll(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Launch starts one instance per selected credential.
func (h *Handlers) Launch(c *gin.Context) {
	var req struct {
		CredentialIDs []uint              `json:"credential_ids" binding:"required,min=1"`
		Spec          fleet.LaunchRequest `json:"spec" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.gate(c) {
		return
	}

	result, err := h.fleet.BatchLaunch(c.Request.Context(), middleware.UserID(c), req.CredentialIDs, req.Spec)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// Install runs a project's install script across the selected instances.
func (h *Handlers) Install(c *gin.Context) {
	var req struct {
		Project string                `json:"project" binding:"required"`
		Params  map[string]string     `json:"params"`
		Targets []fleet.InstallTarget `json:"targets" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.gate(c) {
		return
	}

	result, err := h.fleet.BatchInstall(c.Request.Context(), middleware.UserID(c), req.Project, req.Params, req.Targets)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// Terminate terminates the selected instances and removes their records.
func (h *Handlers) Terminate(c *gin.Context) {
	var req struct {
		InstanceIDs []string `json:"instance_ids" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.gate(c) {
		return
	}

	result, err := h.fleet.BatchTerminate(c.Request.Context(), middleware.UserID(c), req.InstanceIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// DeepRefresh probes every running instance for installed projects and
// workload health.
func (h *Handlers) DeepRefresh(c *gin.Context) {
	if !h.gate(c) {
		return
	}
	result, err := h.fleet.DeepRefresh(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// instanceKey loads one instance and its decrypted SSH key for the
// single-instance probe endpoints.
func (h *Handlers) instanceKey(c *gin.Context) (addr string, pem []byte, instanceID string, ok bool) {
	instanceID = c.Param("id")
	userID := middleware.UserID(c)

	inst, err := h.store.InstanceByProviderID(userID, instanceID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Instance not found"})
		return "", nil, "", false
	}
	if inst.IPAddress == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "Instance has no public address"})
		return "", nil, "", false
	}
	if inst.PrivateKeyEncrypted == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "Instance has no stored key"})
		return "", nil, "", false
	}
	keyPEM, err := h.codec.Decrypt(inst.PrivateKeyEncrypted)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not decrypt instance key"})
		return "", nil, "", false
	}
	return inst.IPAddress, []byte(keyPEM), instanceID, true
}

// Detect probes one instance for installed projects and persists any newly
// found flags.
func (h *Handlers) Detect(c *gin.Context) {
	addr, pem, instanceID, ok := h.instanceKey(c)
	if !ok {
		return
	}

	det := h.prober.Detect(addr, pem)
	if len(det.Flags) > 0 {
		if err := h.store.SetProjectFlags(middleware.UserID(c), instanceID, det.Flags); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not persist detected projects"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"flags": det.Flags, "message": det.Message})
}

// Health runs the liveness check for one instance, hinted by its stored
// flags, and persists the outcome.
func (h *Handlers) Health(c *gin.Context) {
	addr, pem, instanceID, ok := h.instanceKey(c)
	if !ok {
		return
	}
	userID := middleware.UserID(c)

	inst, err := h.store.InstanceByProviderID(userID, instanceID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Instance not found"})
		return
	}
	health := h.prober.CheckHealth(addr, pem, inst.Flags())
	status := health.Message
	if health.Healthy {
		status = "Healthy"
	}
	if err := h.store.UpdateInstanceHealth(userID, instanceID, status); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not persist health status"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"healthy": health.Healthy, "message": health.Message})
}

// Projects lists the installable project registry for the launch/install UI.
func (h *Handlers) Projects(c *gin.Context) {
	type entry struct {
		Name        string   `json:"name"`
		Description string   `json:"description"`
		Params      []string `json:"params"`
	}
	var out []entry
	for _, name := range projects.Names() {
		def, _ := projects.Get(name)
		out = append(out, entry{Name: def.Name, Description: def.Description, Params: def.Params})
	}
	c.JSON(http.StatusOK, gin.H{"projects": out})
}
