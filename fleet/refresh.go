package fleet

import (
	"context"
	"fmt"
	"log"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/depinlaunch/web-backend/models"
	"github.com/depinlaunch/web-backend/reconcile"
)

// StatusUnknownAccount is the display status for instances whose credential
// record no longer exists.
const StatusUnknownAccount = "unknown account"

// ScanSummary aggregates a full reconciliation sweep.
type ScanSummary struct {
	Created int         `json:"created"`
	Updated int         `json:"updated"`
	Errors  []UnitError `json:"errors,omitempty"`
}

// ScanAll reconciles every non-suspended (credential, region) pair the user
// owns. Unit failures are reported, never fatal; totals cover the units that
// completed.
func (s *Service) ScanAll(ctx context.Context, userID uint) (ScanSummary, error) {
	creds, err := s.store.CredentialsForUser(userID)
	if err != nil {
		return ScanSummary{}, err
	}

	type unit struct {
		cred   models.Credential
		region string
	}
	var units []unit
	for _, c := range creds {
		if c.Status == models.CredentialSuspended {
			continue
		}
		for _, r := range s.regions {
			units = append(units, unit{cred: c, region: r})
		}
	}

	// Each unit writes only its own slot, so the merge is deterministic no
	// matter which goroutine finishes first.
	results := make([]reconcile.Result, len(units))
	failures := make([]UnitError, len(units))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(poolSize(s.pools.Status))
	for i, u := range units {
		i, u := i, u
		g.Go(func() error {
			key := fmt.Sprintf("%s/%s", u.cred.AliasName, u.region)
			keys, err := s.keysFor(u.cred)
			if err != nil {
				failures[i] = UnitError{Unit: key, Message: err.Error()}
				return nil
			}
			res, err := s.reconciler.Reconcile(gctx, u.cred, keys, u.region)
			if err != nil {
				failures[i] = UnitError{Unit: key, Message: err.Error()}
				return nil
			}
			results[i] = res
			return nil
		})
	}
	g.Wait()

	var summary ScanSummary
	for i := range units {
		summary.Created += results[i].Created
		summary.Updated += results[i].Updated
		if failures[i].Unit != "" {
			summary.Errors = append(summary.Errors, failures[i])
		}
	}
	return summary, nil
}

// RefreshStatuses returns the user's instances with up-to-date lifecycle
// states, one batched provider read per (credential, region) group. Changed
// states are persisted. Instances under a suspended credential show the
// derived account-suspended state without any provider call; instances whose
// credential is gone show an unknown-account alias.
func (s *Service) RefreshStatuses(ctx context.Context, userID uint) ([]models.Instance, []UnitError, error) {
	insts, err := s.store.InstancesForUser(userID)
	if err != nil {
		return nil, nil, err
	}
	creds, err := s.store.CredentialsForUser(userID)
	if err != nil {
		return nil, nil, err
	}
	credByID := make(map[uint]models.Credential, len(creds))
	for _, c := range creds {
		credByID[c.ID] = c
	}

	views := make([]models.Instance, len(insts))
	copy(views, insts)

	type groupKey struct {
		credentialID uint
		region       string
	}
	groups := make(map[groupKey][]int)
	for i, inst := range insts {
		cred, ok := credByID[inst.CredentialID]
		if !ok {
			views[i].Status = StatusUnknownAccount
			continue
		}
		if cred.Status == models.CredentialSuspended {
			// Display-only: the stored state is kept for when the account
			// comes back.
			views[i].Status = models.StatusAccountSuspended
			continue
		}
		k := groupKey{credentialID: inst.CredentialID, region: inst.Region}
		groups[k] = append(groups[k], i)
	}

	type groupUnit struct {
		key     groupKey
		indices []int
	}
	var units []groupUnit
	for k, idx := range groups {
		units = append(units, groupUnit{key: k, indices: idx})
	}

	failures := make([]UnitError, len(units))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(poolSize(s.pools.Status))
	for i, u := range units {
		i, u := i, u
		g.Go(func() error {
			cred := credByID[u.key.credentialID]
			unitName := fmt.Sprintf("%s/%s", cred.AliasName, u.key.region)

			keys, err := s.keysFor(cred)
			if err != nil {
				failures[i] = UnitError{Unit: unitName, Message: err.Error()}
				return nil
			}
			ids := make([]string, len(u.indices))
			for n, idx := range u.indices {
				ids[n] = insts[idx].InstanceID
			}
			statuses, err := s.provider.DescribeStatuses(gctx, keys, u.key.region, ids)
			if err != nil {
				failures[i] = UnitError{Unit: unitName, Message: err.Error()}
				return nil
			}
			for _, idx := range u.indices {
				state, ok := statuses[insts[idx].InstanceID]
				if !ok || state == insts[idx].Status {
					continue
				}
				views[idx].Status = state
				if err := s.store.UpdateInstanceStatus(userID, insts[idx].InstanceID, state); err != nil {
					log.Printf("Failed to persist status for %s: %v", insts[idx].InstanceID, err)
				}
			}
			return nil
		})
	}
	g.Wait()

	var errsOut []UnitError
	for _, f := range failures {
		if f.Unit != "" {
			errsOut = append(errsOut, f)
		}
	}
	sort.Slice(errsOut, func(i, j int) bool { return errsOut[i].Unit < errsOut[j].Unit })
	return views, errsOut, nil
}

// DeepRefresh probes every running instance that has an address and a stored
// key: detection first, so flags reflect what is actually installed, then a
// liveness check hinted by the merged flag set, then a best-effort read of
// machine facts (memory, disk, OS). Flags only ever move to true.
func (s *Service) DeepRefresh(ctx context.Context, userID uint) (BatchResult, error) {
	insts, err := s.store.InstancesForUser(userID)
	if err != nil {
		return BatchResult{}, err
	}

	var targets []models.Instance
	for _, inst := range insts {
		if inst.Status != models.StatusRunning || inst.IPAddress == "" || inst.PrivateKeyEncrypted == "" {
			continue
		}
		targets = append(targets, inst)
	}

	details := make([]Detail, len(targets))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(poolSize(s.pools.Probe))
	for i, inst := range targets {
		i, inst := i, inst
		g.Go(func() error {
			pem, err := s.instanceKey(inst)
			if err != nil {
				details[i] = Detail{Key: inst.InstanceID, Message: err.Error()}
				return nil
			}

			det := s.prober.Detect(inst.IPAddress, pem)
			if len(det.Flags) > 0 {
				if err := s.store.SetProjectFlags(userID, inst.InstanceID, det.Flags); err != nil {
					log.Printf("Failed to persist flags for %s: %v", inst.InstanceID, err)
				}
			}

			hints := mergeFlags(inst.Flags(), det.Flags)
			health := s.prober.CheckHealth(inst.IPAddress, pem, hints)
			status := health.Message
			if health.Healthy {
				status = "Healthy"
			}
			if err := s.store.UpdateInstanceHealth(userID, inst.InstanceID, status); err != nil {
				log.Printf("Failed to persist health for %s: %v", inst.InstanceID, err)
			}

			if facts, err := s.prober.GatherFacts(inst.IPAddress, pem); err == nil {
				if err := s.store.UpdateInstanceFacts(userID, inst.InstanceID, facts.MemoryGB, facts.DiskInfo, facts.OSName); err != nil {
					log.Printf("Failed to persist facts for %s: %v", inst.InstanceID, err)
				}
			}

			details[i] = Detail{Key: inst.InstanceID, OK: health.Healthy, Message: health.Message}
			return nil
		})
	}
	g.Wait()

	var result BatchResult
	result.tally(details)
	return result, nil
}
