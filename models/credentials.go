package models

import (
	"time"

	"gorm.io/gorm"
)

// CredentialStatus is the health state of a stored cloud credential.
type CredentialStatus string

const (
	CredentialActive    CredentialStatus = "active"
	CredentialSuspended CredentialStatus = "suspended"
	CredentialError     CredentialStatus = "error"
)

// VcpuUnknown marks a credential whose usage could not be derived from the
// record store but which the provider reports as having running instances.
const VcpuUnknown = -1

// Credential holds one cloud account key pair owned by a single user.
// SecretKeyEncrypted is a fernet token; the plaintext secret only exists in
// memory for the duration of one provider call.
type Credential struct {
	ID                 uint             `gorm:"primaryKey" json:"id"`
	UserID             uint             `gorm:"not null;index" json:"user_id"`
	AliasName          string           `gorm:"not null" json:"alias_name"`
	AccessKeyID        string           `gorm:"not null" json:"access_key_id"`
	SecretKeyEncrypted string           `gorm:"not null" json:"-"`
	ProxyURL           string           `json:"proxy_url,omitempty"`
	Status             CredentialStatus `gorm:"default:active;not null" json:"status"`
	LastChecked        *time.Time       `json:"last_checked,omitempty"`
	VcpuLimit          int              `json:"vcpu_limit"`
	VcpuUsed           int              `json:"vcpu_used"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
	DeletedAt          gorm.DeletedAt   `gorm:"index" json:"-"`

	User User `json:"user,omitempty"`
}

// TableName overrides the table name for Credential
func (Credential) TableName() string {
	return "credentials"
}
