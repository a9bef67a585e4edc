// Package reconcile keeps the persisted instance records consistent with the
// provider's live inventory, one (credential, region) pair at a time.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/depinlaunch/web-backend/cloud"
	"github.com/depinlaunch/web-backend/models"
)

// Store is the slice of the record store the reconciler writes to.
type Store interface {
	InstancesByCredentialRegion(userID, credentialID uint, region string) ([]models.Instance, error)
	InsertInstance(inst *models.Instance) error
	UpdateInstanceStatus(userID uint, instanceID, status string) error
	DeleteInstance(userID uint, instanceID string) error
}

// Inventory is the single provider read the reconciler performs.
type Inventory interface {
	ListInstances(ctx context.Context, keys cloud.Keys, region string) ([]cloud.LiveInstance, error)
}

// ErrCredentialSuspended marks a pair skipped because the credential's last
// health check found the account suspended.
var ErrCredentialSuspended = errors.New("credential suspended, skipping")

// Result counts the changes one reconciliation pass applied. Deletions count
// toward Updated.
type Result struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// Reconciler diffs live inventory against stored records and applies
// insert/update/delete to converge the two.
type Reconciler struct {
	store     Store
	inventory Inventory
	regions   map[string]bool
}

// New builds a reconciler limited to the given supported regions.
func New(store Store, inventory Inventory, regions []string) *Reconciler {
	supported := make(map[string]bool, len(regions))
	for _, r := range regions {
		supported[r] = true
	}
	return &Reconciler{store: store, inventory: inventory, regions: supported}
}

// Reconcile converges the stored record set for one (credential, region)
// pair with the provider's live inventory:
//
//   - live instance with no local record: inserted, unless terminated
//   - live state differs from stored: stored state updated, unless the live
//     state is terminated, in which case the record is deleted
//   - local record the provider no longer reports at all: deleted
//
// New records always start with all project flags false; inventory never
// implies installed software. A listing failure leaves the store untouched.
func (r *Reconciler) Reconcile(ctx context.Context, cred models.Credential, keys cloud.Keys, region string) (Result, error) {
	if !r.regions[region] {
		return Result{}, fmt.Errorf("region %s not supported", region)
	}
	if cred.Status == models.CredentialSuspended {
		return Result{}, ErrCredentialSuspended
	}

	live, err := r.inventory.ListInstances(ctx, keys, region)
	if err != nil {
		return Result{}, fmt.Errorf("list instances for %s/%s: %w", cred.AliasName, region, err)
	}

	local, err := r.store.InstancesByCredentialRegion(cred.UserID, cred.ID, region)
	if err != nil {
		return Result{}, fmt.Errorf("load records for %s/%s: %w", cred.AliasName, region, err)
	}

	localByID := make(map[string]models.Instance, len(local))
	for _, inst := range local {
		localByID[inst.InstanceID] = inst
	}

	var result Result
	seen := make(map[string]bool, len(live))
	for _, l := range live {
		seen[l.ID] = true

		stored, exists := localByID[l.ID]
		if !exists {
			if l.State == models.StatusTerminated {
				continue
			}
			inst := &models.Instance{
				UserID:       cred.UserID,
				CredentialID: cred.ID,
				InstanceID:   l.ID,
				Region:       region,
				IPAddress:    l.PublicIP,
				Status:       l.State,
				HealthStatus: models.HealthUnknown,
				InstanceType: l.InstanceType,
			}
			if err := r.store.InsertInstance(inst); err != nil {
				log.Printf("Failed to insert discovered instance %s: %v", l.ID, err)
				continue
			}
			result.Created++
			continue
		}

		if l.State == models.StatusTerminated {
			// Terminated instances are pruned, not archived.
			if err := r.store.DeleteInstance(cred.UserID, l.ID); err != nil {
				log.Printf("Failed to delete terminated instance %s: %v", l.ID, err)
				continue
			}
			result.Updated++
			continue
		}

		if l.State != stored.Status {
			if err := r.store.UpdateInstanceStatus(cred.UserID, l.ID, l.State); err != nil {
				log.Printf("Failed to update instance %s status: %v", l.ID, err)
				continue
			}
			result.Updated++
		}
	}

	// Records the provider no longer reports at all. A single missed listing
	// deletes the record; the next launch or scan recreates it if the
	// instance still exists.
	for _, inst := range local {
		if seen[inst.InstanceID] {
			continue
		}
		if err := r.store.DeleteInstance(cred.UserID, inst.InstanceID); err != nil {
			log.Printf("Failed to delete unlisted instance %s: %v", inst.InstanceID, err)
			continue
		}
		result.Updated++
	}

	return result, nil
}
