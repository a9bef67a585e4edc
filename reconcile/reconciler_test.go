package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/depinlaunch/web-backend/cloud"
	"github.com/depinlaunch/web-backend/models"
)

type fakeStore struct {
	records []models.Instance
}

func (s *fakeStore) InstancesByCredentialRegion(userID, credentialID uint, region string) ([]models.Instance, error) {
	var out []models.Instance
	for _, r := range s.records {
		if r.UserID == userID && r.CredentialID == credentialID && r.Region == region {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeStore) InsertInstance(inst *models.Instance) error {
	s.records = append(s.records, *inst)
	return nil
}

func (s *fakeStore) UpdateInstanceStatus(userID uint, instanceID, status string) error {
	for i := range s.records {
		if s.records[i].UserID == userID && s.records[i].InstanceID == instanceID {
			s.records[i].Status = status
			return nil
		}
	}
	return errors.New("no such record")
}

func (s *fakeStore) DeleteInstance(userID uint, instanceID string) error {
	for i := range s.records {
		if s.records[i].UserID == userID && s.records[i].InstanceID == instanceID {
			s.records = append(s.records[:i], s.records[i+1:]...)
			return nil
		}
	}
	return errors.New("no such record")
}

func (s *fakeStore) find(instanceID string) (models.Instance, bool) {
	for _, r := range s.records {
		if r.InstanceID == instanceID {
			return r, true
		}
	}
	return models.Instance{}, false
}

type fakeInventory struct {
	live []cloud.LiveInstance
	err  error
}

func (inv *fakeInventory) ListInstances(ctx context.Context, keys cloud.Keys, region string) ([]cloud.LiveInstance, error) {
	return inv.live, inv.err
}

var testCred = models.Credential{
	ID:        7,
	UserID:    3,
	AliasName: "acct-a",
	Status:    models.CredentialActive,
}

func TestReconcileMixedDrift(t *testing.T) {
	// i-1 matches, i-2 changed state, i-3 is new, i-4 is gone.
	store := &fakeStore{records: []models.Instance{
		{UserID: 3, CredentialID: 7, InstanceID: "i-1", Region: "us-east-1", Status: models.StatusRunning},
		{UserID: 3, CredentialID: 7, InstanceID: "i-2", Region: "us-east-1", Status: models.StatusPending},
		{UserID: 3, CredentialID: 7, InstanceID: "i-4", Region: "us-east-1", Status: models.StatusRunning},
	}}
	inv := &fakeInventory{live: []cloud.LiveInstance{
		{ID: "i-1", State: models.StatusRunning, PublicIP: "1.1.1.1"},
		{ID: "i-2", State: models.StatusRunning, PublicIP: "2.2.2.2"},
		{ID: "i-3", State: models.StatusRunning, PublicIP: "3.3.3.3", InstanceType: "t3.micro"},
	}}
	r := New(store, inv, []string{"us-east-1"})

	result, err := r.Reconcile(context.Background(), testCred, cloud.Keys{}, "us-east-1")
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if result.Created != 1 {
		t.Errorf("Created = %d, want 1", result.Created)
	}
	// One status change plus one unlisted-record deletion.
	if result.Updated != 2 {
		t.Errorf("Updated = %d, want 2", result.Updated)
	}

	if got, ok := store.find("i-2"); !ok || got.Status != models.StatusRunning {
		t.Errorf("i-2 = %+v, want running record", got)
	}
	created, ok := store.find("i-3")
	if !ok {
		t.Fatal("discovered instance i-3 was not inserted")
	}
	if created.InstanceType != "t3.micro" || created.IPAddress != "3.3.3.3" {
		t.Errorf("i-3 record = %+v", created)
	}
	if created.ProjTitan || created.ProjNexus || created.ProjShardeum || created.ProjBabylon || created.ProjMeson || created.ProjProxy {
		t.Error("discovered instance has project flags set")
	}
	if created.HealthStatus != models.HealthUnknown {
		t.Errorf("i-3 health = %q, want %q", created.HealthStatus, models.HealthUnknown)
	}
	if _, ok := store.find("i-4"); ok {
		t.Error("unlisted record i-4 survived reconciliation")
	}
}

func TestReconcileOrphanDeletionCountsAsUpdate(t *testing.T) {
	// Local {i-1: running, i-2: stopped}; provider {i-1: running, i-3: running}.
	// i-2 is pruned as orphaned, i-3 inserted, i-1 untouched.
	store := &fakeStore{records: []models.Instance{
		{UserID: 3, CredentialID: 7, InstanceID: "i-1", Region: "us-east-1", Status: models.StatusRunning},
		{UserID: 3, CredentialID: 7, InstanceID: "i-2", Region: "us-east-1", Status: models.StatusStopped},
	}}
	inv := &fakeInventory{live: []cloud.LiveInstance{
		{ID: "i-1", State: models.StatusRunning},
		{ID: "i-3", State: models.StatusRunning},
	}}
	r := New(store, inv, []string{"us-east-1"})

	result, err := r.Reconcile(context.Background(), testCred, cloud.Keys{}, "us-east-1")
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if result.Created != 1 || result.Updated != 1 {
		t.Errorf("result = %+v, want {1 1}", result)
	}
	if _, ok := store.find("i-2"); ok {
		t.Error("orphaned i-2 survived")
	}
	if _, ok := store.find("i-3"); !ok {
		t.Error("discovered i-3 not inserted")
	}
	if got, _ := store.find("i-1"); got.Status != models.StatusRunning {
		t.Errorf("i-1 = %+v, want untouched running record", got)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	store := &fakeStore{}
	inv := &fakeInventory{live: []cloud.LiveInstance{
		{ID: "i-1", State: models.StatusRunning},
		{ID: "i-2", State: models.StatusStopped},
	}}
	r := New(store, inv, []string{"us-east-1"})

	first, err := r.Reconcile(context.Background(), testCred, cloud.Keys{}, "us-east-1")
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}
	if first.Created != 2 || first.Updated != 0 {
		t.Errorf("first pass = %+v, want {2 0}", first)
	}

	second, err := r.Reconcile(context.Background(), testCred, cloud.Keys{}, "us-east-1")
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if second.Created != 0 || second.Updated != 0 {
		t.Errorf("second pass = %+v, want {0 0}", second)
	}
}

func TestReconcilePrunesTerminated(t *testing.T) {
	store := &fakeStore{records: []models.Instance{
		{UserID: 3, CredentialID: 7, InstanceID: "i-1", Region: "us-east-1", Status: models.StatusShuttingDown},
	}}
	inv := &fakeInventory{live: []cloud.LiveInstance{
		{ID: "i-1", State: models.StatusTerminated},
		// Terminated and never recorded: stays invisible.
		{ID: "i-9", State: models.StatusTerminated},
	}}
	r := New(store, inv, []string{"us-east-1"})

	result, err := r.Reconcile(context.Background(), testCred, cloud.Keys{}, "us-east-1")
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if result.Created != 0 || result.Updated != 1 {
		t.Errorf("result = %+v, want {0 1}", result)
	}
	if len(store.records) != 0 {
		t.Errorf("store still holds %d records", len(store.records))
	}
}

func TestReconcileDeletesUnlistedRecord(t *testing.T) {
	// A record the provider stops reporting is pruned outright, even though
	// a transiently incomplete listing would also look like this.
	store := &fakeStore{records: []models.Instance{
		{UserID: 3, CredentialID: 7, InstanceID: "i-ghost", Region: "us-east-1", Status: models.StatusRunning},
	}}
	inv := &fakeInventory{}
	r := New(store, inv, []string{"us-east-1"})

	result, err := r.Reconcile(context.Background(), testCred, cloud.Keys{}, "us-east-1")
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if result.Updated != 1 {
		t.Errorf("Updated = %d, want 1", result.Updated)
	}
	if _, ok := store.find("i-ghost"); ok {
		t.Error("unlisted record survived")
	}
}

func TestReconcileListingFailureLeavesStoreAlone(t *testing.T) {
	store := &fakeStore{records: []models.Instance{
		{UserID: 3, CredentialID: 7, InstanceID: "i-1", Region: "us-east-1", Status: models.StatusRunning},
	}}
	inv := &fakeInventory{err: errors.New("throttled")}
	r := New(store, inv, []string{"us-east-1"})

	if _, err := r.Reconcile(context.Background(), testCred, cloud.Keys{}, "us-east-1"); err == nil {
		t.Fatal("Reconcile succeeded despite listing failure")
	}
	if len(store.records) != 1 {
		t.Errorf("store changed on listing failure: %d records", len(store.records))
	}
}

func TestReconcileSkipsSuspendedCredential(t *testing.T) {
	store := &fakeStore{}
	inv := &fakeInventory{live: []cloud.LiveInstance{{ID: "i-1", State: models.StatusRunning}}}
	r := New(store, inv, []string{"us-east-1"})

	cred := testCred
	cred.Status = models.CredentialSuspended
	_, err := r.Reconcile(context.Background(), cred, cloud.Keys{}, "us-east-1")
	if !errors.Is(err, ErrCredentialSuspended) {
		t.Errorf("err = %v, want ErrCredentialSuspended", err)
	}
	if len(store.records) != 0 {
		t.Error("suspended credential still produced records")
	}
}

func TestReconcileRejectsUnsupportedRegion(t *testing.T) {
	r := New(&fakeStore{}, &fakeInventory{}, []string{"us-east-1"})
	if _, err := r.Reconcile(context.Background(), testCred, cloud.Keys{}, "mars-central-1"); err == nil {
		t.Error("unsupported region accepted")
	}
}
