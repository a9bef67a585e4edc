package models

import (
	"time"

	"github.com/depinlaunch/web-backend/projects"
)

// Provider lifecycle states as reported by the cloud API, plus the derived
// display-only state for instances under a suspended credential.
const (
	StatusPending          = "pending"
	StatusRunning          = "running"
	StatusStopping         = "stopping"
	StatusStopped          = "stopped"
	StatusShuttingDown     = "shutting-down"
	StatusTerminated       = "terminated"
	StatusAccountSuspended = "account-suspended"
)

// HealthUnknown is the health status of an instance that has never been
// deep-checked.
const HealthUnknown = "Unknown"

// Instance represents one provider-managed machine. Exactly one row exists
// per provider instance ID per owner. Project flags are only ever set to
// true by the probe; a failed probe never clears them.
type Instance struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	UserID       uint   `gorm:"not null;index;uniqueIndex:idx_owner_instance" json:"user_id"`
	CredentialID uint   `gorm:"index" json:"credential_id"`
	InstanceID   string `gorm:"uniqueIndex:idx_owner_instance;not null" json:"instance_id"`
	Region       string `gorm:"not null" json:"region"`
	IPAddress    string `json:"ip_address"`
	Status       string `gorm:"default:pending" json:"status"`
	HealthStatus string `gorm:"default:Unknown" json:"health_status"`

	ProjTitan    bool `json:"proj_titan"`
	ProjNexus    bool `json:"proj_nexus"`
	ProjShardeum bool `json:"proj_shardeum"`
	ProjBabylon  bool `json:"proj_babylon"`
	ProjMeson    bool `json:"proj_meson"`
	ProjProxy    bool `json:"proj_proxy"`

	// PrivateKeyEncrypted is the fernet-wrapped SSH private key created at
	// launch. Empty for instances discovered by reconciliation.
	PrivateKeyEncrypted string `json:"-"`

	InstanceType string    `json:"instance_type"`
	VcpuCount    int       `json:"vcpu_count"`
	MemoryGB     float64   `json:"memory_gb"`
	DiskInfo     string    `json:"disk_info"`
	OSName       string    `json:"os_name"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Credential Credential `json:"credential,omitempty"`
}

// TableName overrides the table name for Instance
func (Instance) TableName() string {
	return "instances"
}

// Flags lists the project flags currently set on the record.
func (i *Instance) Flags() []projects.Flag {
	var flags []projects.Flag
	if i.ProjTitan {
		flags = append(flags, projects.FlagTitan)
	}
	if i.ProjNexus {
		flags = append(flags, projects.FlagNexus)
	}
	if i.ProjShardeum {
		flags = append(flags, projects.FlagShardeum)
	}
	if i.ProjBabylon {
		flags = append(flags, projects.FlagBabylon)
	}
	if i.ProjMeson {
		flags = append(flags, projects.FlagMeson)
	}
	if i.ProjProxy {
		flags = append(flags, projects.FlagProxy)
	}
	return flags
}
