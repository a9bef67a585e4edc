package fleet

import (
	"context"
	"fmt"
	"log"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/depinlaunch/web-backend/cloud"
	"github.com/depinlaunch/web-backend/models"
	"github.com/depinlaunch/web-backend/projects"
)

// LaunchRequest describes one launch applied across a set of credentials.
type LaunchRequest struct {
	Region       string `json:"region"`
	InstanceType string `json:"instance_type"`
	OSCode       string `json:"os"`
	VolumeSizeGB int32  `json:"volume_size_gb"`
	VolumeType   string `json:"volume_type"`
	NameTag      string `json:"name_tag"`
	// VcpuCount is the instance type's vCPU count, used for the capacity
	// pre-check and recorded on the row.
	VcpuCount int `json:"vcpu_count"`
}

// BatchLaunch starts one instance per credential. Each unit pre-checks vCPU
// headroom, launches, then persists the record with the fernet-wrapped key.
// A launch that succeeded at the provider but failed to persist is reported
// as a failure with the instance ID in the message, so it can be recovered by
// the next scan.
func (s *Service) BatchLaunch(ctx context.Context, userID uint, credentialIDs []uint, req LaunchRequest) (BatchResult, error) {
	if req.Region == "" || req.InstanceType == "" || req.OSCode == "" {
		return BatchResult{}, fmt.Errorf("region, instance_type and os are required")
	}
	if _, err := cloud.ResolveAMI(req.OSCode, req.Region); err != nil {
		return BatchResult{}, err
	}

	details := make([]Detail, len(credentialIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(poolSize(s.pools.Launch))
	for i, credID := range credentialIDs {
		i, credID := i, credID
		g.Go(func() error {
			cred, err := s.store.CredentialByID(userID, credID)
			if err != nil {
				details[i] = Detail{Key: fmt.Sprintf("credential-%d", credID), Message: "credential not found"}
				return nil
			}
			key := cred.AliasName
			if cred.Status == models.CredentialSuspended {
				details[i] = Detail{Key: key, Message: "credential suspended"}
				return nil
			}
			keys, err := s.keysFor(*cred)
			if err != nil {
				details[i] = Detail{Key: key, Message: err.Error()}
				return nil
			}

			capacity, err := s.provider.CheckCapacity(gctx, keys, req.Region)
			if err != nil {
				details[i] = Detail{Key: key, Message: fmt.Sprintf("capacity check failed: %v", err)}
				return nil
			}
			if capacity.Available < req.VcpuCount {
				details[i] = Detail{Key: key, Message: fmt.Sprintf(
					"insufficient vCPU capacity: %d available, %d required", capacity.Available, req.VcpuCount)}
				return nil
			}

			launched, err := s.provider.Launch(gctx, keys, cloud.LaunchSpec{
				Region:       req.Region,
				InstanceType: req.InstanceType,
				OSCode:       req.OSCode,
				VolumeSizeGB: req.VolumeSizeGB,
				VolumeType:   req.VolumeType,
				NameTag:      req.NameTag,
			})
			if err != nil {
				details[i] = Detail{Key: key, Message: fmt.Sprintf("launch failed: %v", err)}
				return nil
			}

			encKey, err := s.codec.Encrypt(launched.PrivateKey)
			if err != nil {
				details[i] = Detail{Key: key, Message: fmt.Sprintf(
					"launched %s but could not protect its key: %v", launched.InstanceID, err)}
				return nil
			}
			inst := &models.Instance{
				UserID:              userID,
				CredentialID:        cred.ID,
				InstanceID:          launched.InstanceID,
				Region:              req.Region,
				IPAddress:           launched.PublicIP,
				Status:              models.StatusRunning,
				HealthStatus:        models.HealthUnknown,
				PrivateKeyEncrypted: encKey,
				InstanceType:        req.InstanceType,
				VcpuCount:           req.VcpuCount,
				OSName:              req.OSCode,
			}
			if req.VolumeSizeGB > 0 {
				inst.DiskInfo = strings.TrimSpace(fmt.Sprintf("%dGB %s", req.VolumeSizeGB, req.VolumeType))
			}
			if launched.PublicIP == "" {
				inst.Status = models.StatusPending
			}
			if err := s.store.InsertInstance(inst); err != nil {
				details[i] = Detail{Key: key, Message: fmt.Sprintf(
					"launched %s but failed to persist record: %v", launched.InstanceID, err)}
				return nil
			}
			details[i] = Detail{Key: key, OK: true, Message: launched.InstanceID}
			return nil
		})
	}
	g.Wait()

	var result BatchResult
	result.tally(details)
	return result, nil
}

// InstallTarget is one instance to install onto, with optional per-instance
// parameter overrides (e.g. a distinct wallet address per machine).
type InstallTarget struct {
	InstanceID string            `json:"instance_id"`
	Params     map[string]string `json:"params,omitempty"`
}

// BatchInstall renders the project's script per target and runs it over SSH.
// Parameter validation happens before any connection; a target with missing
// parameters fails without network traffic. The project's flag is set only
// after the script ran to completion.
func (s *Service) BatchInstall(ctx context.Context, userID uint, projectName string, baseParams map[string]string, targets []InstallTarget) (BatchResult, error) {
	def, ok := projects.Get(projectName)
	if !ok {
		return BatchResult{}, fmt.Errorf("unknown project %q", projectName)
	}

	details := make([]Detail, len(targets))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(poolSize(s.pools.Install))
	for i, target := range targets {
		i, target := i, target
		g.Go(func() error {
			params := make(map[string]string, len(baseParams)+len(target.Params))
			for k, v := range baseParams {
				params[k] = v
			}
			for k, v := range target.Params {
				params[k] = v
			}
			script, err := def.Render(params)
			if err != nil {
				details[i] = Detail{Key: target.InstanceID, Message: err.Error()}
				return nil
			}

			inst, err := s.store.InstanceByProviderID(userID, target.InstanceID)
			if err != nil {
				details[i] = Detail{Key: target.InstanceID, Message: "instance not found"}
				return nil
			}
			if inst.IPAddress == "" {
				details[i] = Detail{Key: target.InstanceID, Message: "instance has no public address"}
				return nil
			}
			pem, err := s.instanceKey(*inst)
			if err != nil {
				details[i] = Detail{Key: target.InstanceID, Message: err.Error()}
				return nil
			}

			outcome := s.prober.Install(inst.IPAddress, pem, script)
			if !outcome.OK {
				details[i] = Detail{Key: target.InstanceID, Message: outcome.Output}
				return nil
			}
			if def.Flag != "" {
				if err := s.store.SetProjectFlags(userID, target.InstanceID, []projects.Flag{def.Flag}); err != nil {
					log.Printf("Failed to persist %s flag for %s: %v", def.Flag, target.InstanceID, err)
				}
			}
			details[i] = Detail{Key: target.InstanceID, OK: true, Message: "installed"}
			return nil
		})
	}
	g.Wait()

	var result BatchResult
	result.tally(details)
	return result, nil
}

// BatchTerminate terminates instances at the provider and removes their
// records. The record is only deleted after the provider accepted the
// termination.
func (s *Service) BatchTerminate(ctx context.Context, userID uint, instanceIDs []string) (BatchResult, error) {
	details := make([]Detail, len(instanceIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(poolSize(s.pools.Terminate))
	for i, id := range instanceIDs {
		i, id := i, id
		g.Go(func() error {
			inst, err := s.store.InstanceByProviderID(userID, id)
			if err != nil {
				details[i] = Detail{Key: id, Message: "instance not found"}
				return nil
			}
			cred, err := s.store.CredentialByID(userID, inst.CredentialID)
			if err != nil {
				details[i] = Detail{Key: id, Message: "owning credential not found"}
				return nil
			}
			keys, err := s.keysFor(*cred)
			if err != nil {
				details[i] = Detail{Key: id, Message: err.Error()}
				return nil
			}
			if err := s.provider.Terminate(gctx, keys, inst.Region, id); err != nil {
				details[i] = Detail{Key: id, Message: fmt.Sprintf("terminate failed: %v", err)}
				return nil
			}
			if err := s.store.DeleteInstance(userID, id); err != nil {
				details[i] = Detail{Key: id, Message: fmt.Sprintf("terminated but record not removed: %v", err)}
				return nil
			}
			details[i] = Detail{Key: id, OK: true, Message: "terminated"}
			return nil
		})
	}
	g.Wait()

	var result BatchResult
	result.tally(details)
	return result, nil
}

// CheckCredentials verifies every credential's account health and, for
// healthy accounts, refreshes the vCPU quota and usage. Usage comes from the
// record store; when the store says zero but the provider still reports
// running machines, usage is marked unknown rather than trusted.
func (s *Service) CheckCredentials(ctx context.Context, userID uint) (BatchResult, error) {
	creds, err := s.store.CredentialsForUser(userID)
	if err != nil {
		return BatchResult{}, err
	}

	region := s.primaryRegion()
	details := make([]Detail, len(creds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(poolSize(s.pools.CredentialCheck))
	for i, cred := range creds {
		i, cred := i, cred
		g.Go(func() error {
			keys, err := s.keysFor(cred)
			if err != nil {
				details[i] = Detail{Key: cred.AliasName, Message: err.Error()}
				return nil
			}

			report := s.provider.CheckAccountHealth(gctx, keys, region)
			if report.Status != models.CredentialActive {
				if err := s.store.UpdateCredentialCheck(cred.ID, report.Status, nil, nil); err != nil {
					log.Printf("Failed to persist check for %s: %v", cred.AliasName, err)
				}
				details[i] = Detail{Key: cred.AliasName, Message: report.Message}
				return nil
			}

			limit, err := s.provider.GetVcpuQuota(gctx, keys, region)
			if err != nil {
				// Health passed; quota is best-effort.
				if uerr := s.store.UpdateCredentialCheck(cred.ID, models.CredentialActive, nil, nil); uerr != nil {
					log.Printf("Failed to persist check for %s: %v", cred.AliasName, uerr)
				}
				details[i] = Detail{Key: cred.AliasName, OK: true,
					Message: fmt.Sprintf("account OK, quota unavailable: %v", err)}
				return nil
			}

			used, err := s.store.RunningVcpuUsage(cred.ID)
			if err != nil {
				used = models.VcpuUnknown
			} else if used == 0 {
				if hasLive, lerr := s.provider.HasRunningInstances(gctx, keys, region); lerr == nil && hasLive {
					used = models.VcpuUnknown
				}
			}

			if err := s.store.UpdateCredentialCheck(cred.ID, models.CredentialActive, &limit, &used); err != nil {
				log.Printf("Failed to persist check for %s: %v", cred.AliasName, err)
			}
			details[i] = Detail{Key: cred.AliasName, OK: true, Message: report.Message}
			return nil
		})
	}
	g.Wait()

	var result BatchResult
	result.tally(details)
	return result, nil
}
