// Package fleet is the aggregation layer: it fans dashboard operations out
// over (credential, region) pairs and instances with bounded worker pools,
// tolerates per-unit failure, and merges results deterministically by key.
package fleet

import (
	"context"
	"fmt"
	"sort"

	"github.com/depinlaunch/web-backend/cloud"
	"github.com/depinlaunch/web-backend/config"
	"github.com/depinlaunch/web-backend/models"
	"github.com/depinlaunch/web-backend/probe"
	"github.com/depinlaunch/web-backend/projects"
	"github.com/depinlaunch/web-backend/reconcile"
)

// Store is the record-store surface the fleet layer uses. *database.Store
// implements it; tests use an in-memory fake.
type Store interface {
	CredentialsForUser(userID uint) ([]models.Credential, error)
	CredentialByID(userID, credentialID uint) (*models.Credential, error)
	UpdateCredentialCheck(credentialID uint, status models.CredentialStatus, limit, used *int) error
	RunningVcpuUsage(credentialID uint) (int, error)

	InstancesForUser(userID uint) ([]models.Instance, error)
	InstanceByProviderID(userID uint, instanceID string) (*models.Instance, error)
	InsertInstance(inst *models.Instance) error
	UpdateInstanceStatus(userID uint, instanceID, status string) error
	UpdateInstanceHealth(userID uint, instanceID, health string) error
	UpdateInstanceFacts(userID uint, instanceID string, memoryGB float64, diskInfo, osName string) error
	DeleteInstance(userID uint, instanceID string) error
	SetProjectFlags(userID uint, instanceID string, flags []projects.Flag) error
}

// Provider is the cloud adapter surface. *cloud.Service implements it.
type Provider interface {
	DescribeStatuses(ctx context.Context, keys cloud.Keys, region string, instanceIDs []string) (map[string]string, error)
	Launch(ctx context.Context, keys cloud.Keys, spec cloud.LaunchSpec) (*cloud.Launched, error)
	Terminate(ctx context.Context, keys cloud.Keys, region, instanceID string) error
	CheckAccountHealth(ctx context.Context, keys cloud.Keys, region string) cloud.HealthReport
	GetVcpuQuota(ctx context.Context, keys cloud.Keys, region string) (int, error)
	HasRunningInstances(ctx context.Context, keys cloud.Keys, region string) (bool, error)
	CheckCapacity(ctx context.Context, keys cloud.Keys, region string) (cloud.Capacity, error)
}

// Prober is the remote-probe surface. *probe.Prober implements it.
type Prober interface {
	Detect(addr string, privateKeyPEM []byte) probe.Detection
	CheckHealth(addr string, privateKeyPEM []byte, hints []projects.Flag) probe.Health
	Install(addr string, privateKeyPEM []byte, script string) probe.InstallOutcome
	GatherFacts(addr string, privateKeyPEM []byte) (probe.Facts, error)
}

// Reconciler converges one (credential, region) pair.
type Reconciler interface {
	Reconcile(ctx context.Context, cred models.Credential, keys cloud.Keys, region string) (reconcile.Result, error)
}

// Codec decrypts stored secrets transiently per unit of work.
type Codec interface {
	Decrypt(token string) (string, error)
	Encrypt(plaintext string) (string, error)
}

// UnitError is one failed unit of a fan-out, identified by a stable key such
// as "alias/region" or an instance ID.
type UnitError struct {
	Unit    string `json:"unit"`
	Message string `json:"message"`
}

// Detail is one unit's outcome in a batch operation.
type Detail struct {
	Key     string `json:"key"`
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// BatchResult aggregates a batch operation. Details are sorted by key so the
// merge is independent of completion order.
type BatchResult struct {
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Details   []Detail `json:"details"`
}

func (r *BatchResult) tally(details []Detail) {
	sort.Slice(details, func(i, j int) bool { return details[i].Key < details[j].Key })
	for _, d := range details {
		if d.Key == "" {
			continue
		}
		if d.OK {
			r.Succeeded++
		} else {
			r.Failed++
		}
		r.Details = append(r.Details, d)
	}
}

// Service runs fleet-wide operations. All fan-outs are bounded by the
// configured pool sizes.
type Service struct {
	store      Store
	provider   Provider
	prober     Prober
	reconciler Reconciler
	codec      Codec
	regions    []string
	pools      config.Pools
}

// New wires the fleet service.
func New(store Store, provider Provider, prober Prober, reconciler Reconciler, codec Codec, regions []string, pools config.Pools) *Service {
	return &Service{
		store:      store,
		provider:   provider,
		prober:     prober,
		reconciler: reconciler,
		codec:      codec,
		regions:    regions,
		pools:      pools,
	}
}

// poolSize clamps a configured pool size to a sane floor.
func poolSize(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

// primaryRegion is the region used for account-level checks that are not
// region-specific.
func (s *Service) primaryRegion() string {
	if len(s.regions) > 0 {
		return s.regions[0]
	}
	return "us-east-1"
}

// keysFor decrypts one credential's secret into transient key material.
func (s *Service) keysFor(cred models.Credential) (cloud.Keys, error) {
	secret, err := s.codec.Decrypt(cred.SecretKeyEncrypted)
	if err != nil {
		return cloud.Keys{}, fmt.Errorf("decrypt secret for %s: %w", cred.AliasName, err)
	}
	return cloud.Keys{
		AccessKeyID:     cred.AccessKeyID,
		SecretAccessKey: secret,
		ProxyURL:        cred.ProxyURL,
	}, nil
}

// instanceKey decrypts one instance's stored SSH private key.
func (s *Service) instanceKey(inst models.Instance) ([]byte, error) {
	if inst.PrivateKeyEncrypted == "" {
		return nil, fmt.Errorf("instance %s has no stored key", inst.InstanceID)
	}
	pem, err := s.codec.Decrypt(inst.PrivateKeyEncrypted)
	if err != nil {
		return nil, fmt.Errorf("decrypt key for %s: %w", inst.InstanceID, err)
	}
	return []byte(pem), nil
}

// mergeFlags unions two flag sets, preserving first-seen order.
func mergeFlags(a, b []projects.Flag) []projects.Flag {
	seen := make(map[projects.Flag]bool, len(a)+len(b))
	var out []projects.Flag
	for _, f := range append(append([]projects.Flag{}, a...), b...) {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}
