package database

import (
	"github.com/depinlaunch/web-backend/models"
	"github.com/depinlaunch/web-backend/projects"
)

// InstancesByCredentialRegion returns the persisted record set for one
// (credential, region) pair.
func (s *Store) InstancesByCredentialRegion(userID, credentialID uint, region string) ([]models.Instance, error) {
	var instances []models.Instance
	err := s.db.Where("user_id = ? AND credential_id = ? AND region = ?", userID, credentialID, region).
		Find(&instances).Error
	return instances, err
}

// InstancesForUser returns every instance row owned by the user, newest first.
func (s *Store) InstancesForUser(userID uint) ([]models.Instance, error) {
	var instances []models.Instance
	err := s.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&instances).Error
	return instances, err
}

// InsertInstance creates a new instance record.
func (s *Store) InsertInstance(inst *models.Instance) error {
	return s.db.Create(inst).Error
}

// UpdateInstanceStatus sets the stored lifecycle status for one instance.
func (s *Store) UpdateInstanceStatus(userID uint, instanceID, status string) error {
	return s.db.Model(&models.Instance{}).
		Where("user_id = ? AND instance_id = ?", userID, instanceID).
		Update("status", status).Error
}

// UpdateInstanceHealth sets the probe-derived health status.
func (s *Store) UpdateInstanceHealth(userID uint, instanceID, health string) error {
	return s.db.Model(&models.Instance{}).
		Where("user_id = ? AND instance_id = ?", userID, instanceID).
		Update("health_status", health).Error
}

// UpdateInstanceFacts stores probed machine properties. Zero-valued fields
// are skipped so a partial read never erases known facts.
func (s *Store) UpdateInstanceFacts(userID uint, instanceID string, memoryGB float64, diskInfo, osName string) error {
	updates := map[string]interface{}{}
	if memoryGB > 0 {
		updates["memory_gb"] = memoryGB
	}
	if diskInfo != "" {
		updates["disk_info"] = diskInfo
	}
	if osName != "" {
		updates["os_name"] = osName
	}
	if len(updates) == 0 {
		return nil
	}
	return s.db.Model(&models.Instance{}).
		Where("user_id = ? AND instance_id = ?", userID, instanceID).
		Updates(updates).Error
}

// DeleteInstance removes the record permanently. Terminated instances are
// pruned, not archived.
func (s *Store) DeleteInstance(userID uint, instanceID string) error {
	return s.db.Unscoped().
		Where("user_id = ? AND instance_id = ?", userID, instanceID).
		Delete(&models.Instance{}).Error
}

// SetProjectFlags marks the given project flags true. Flags are never
// cleared here: absence of detection must not wipe real state.
func (s *Store) SetProjectFlags(userID uint, instanceID string, flags []projects.Flag) error {
	if len(flags) == 0 {
		return nil
	}
	updates := map[string]interface{}{}
	for _, f := range flags {
		if col := f.Column(); col != "" {
			updates[col] = true
		}
	}
	if len(updates) == 0 {
		return nil
	}
	return s.db.Model(&models.Instance{}).
		Where("user_id = ? AND instance_id = ?", userID, instanceID).
		Updates(updates).Error
}

// InstanceByProviderID returns one instance record by its provider ID,
// scoped to its owner.
func (s *Store) InstanceByProviderID(userID uint, instanceID string) (*models.Instance, error) {
	var inst models.Instance
	err := s.db.Where("user_id = ? AND instance_id = ?", userID, instanceID).First(&inst).Error
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

// RunningVcpuUsage sums the vCPU counts of non-terminated instances recorded
// under one credential.
func (s *Store) RunningVcpuUsage(credentialID uint) (int, error) {
	var total int64
	err := s.db.Model(&models.Instance{}).
		Where("credential_id = ? AND status IN ?", credentialID,
			[]string{models.StatusPending, models.StatusRunning}).
		Select("COALESCE(SUM(vcpu_count), 0)").Scan(&total).Error
	return int(total), err
}
