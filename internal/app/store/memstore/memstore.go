// Package memstore is an in-process backend for the organization, admin,
// tenant-collection, and journal stores. It backs the "memory" store
// backend and the lifecycle tests; data does not survive a restart.
package memstore

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dalemusser/tenanthub/internal/domain/apperr"
	"github.com/dalemusser/tenanthub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Backend owns the shared state. All four stores lock the same mutex, so a
// single store call is atomic with respect to every other.
type Backend struct {
	mu          sync.Mutex
	orgs        map[primitive.ObjectID]models.Organization
	admins      map[primitive.ObjectID]models.Administrator
	collections map[string][]map[string]any
	ops         map[primitive.ObjectID]models.LifecycleOp

	Orgs    *OrgStore
	Admins  *AdminStore
	Tenants *TenantStore
	Journal *JournalStore
}

func New() *Backend {
	b := &Backend{
		orgs:        make(map[primitive.ObjectID]models.Organization),
		admins:      make(map[primitive.ObjectID]models.Administrator),
		collections: make(map[string][]map[string]any),
		ops:         make(map[primitive.ObjectID]models.LifecycleOp),
	}
	b.Orgs = &OrgStore{b: b}
	b.Admins = &AdminStore{b: b}
	b.Tenants = &TenantStore{b: b}
	b.Journal = &JournalStore{b: b}
	return b
}

/*─────────────────────────────────────────────────────────────────────────────*
| Organizations                                                                 |
*─────────────────────────────────────────────────────────────────────────────*/

type OrgStore struct{ b *Backend }

var errDupOrg = apperr.New(apperr.ErrConflict, "organization already exists")

func (s *OrgStore) nameTaken(name string, except primitive.ObjectID) bool {
	for id, o := range s.b.orgs {
		if id != except && o.Name == name {
			return true
		}
	}
	return false
}

func (s *OrgStore) Create(_ context.Context, org models.Organization) (models.Organization, error) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if s.nameTaken(org.Name, primitive.NilObjectID) {
		return models.Organization{}, errDupOrg
	}
	now := time.Now().UTC()
	org.ID = primitive.NewObjectID()
	org.Version = 1
	org.CreatedAt = now
	org.UpdatedAt = now
	if org.Connection.Extra == nil {
		org.Connection.Extra = map[string]string{}
	}
	s.b.orgs[org.ID] = org
	return org, nil
}

func (s *OrgStore) GetByID(_ context.Context, id primitive.ObjectID) (models.Organization, error) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	org, ok := s.b.orgs[id]
	if !ok {
		return models.Organization{}, apperr.New(apperr.ErrNotFound, "organization not found")
	}
	return org, nil
}

func (s *OrgStore) GetByName(_ context.Context, name string) (models.Organization, error) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	for _, o := range s.b.orgs {
		if o.Name == name {
			return o, nil
		}
	}
	return models.Organization{}, apperr.New(apperr.ErrNotFound, "organization not found")
}

func (s *OrgStore) ExistsByName(ctx context.Context, name string) (bool, error) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	return s.nameTaken(name, primitive.NilObjectID), nil
}

func (s *OrgStore) SetAdmin(_ context.Context, id, adminID primitive.ObjectID) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	org, ok := s.b.orgs[id]
	if !ok {
		return apperr.New(apperr.ErrNotFound, "organization not found")
	}
	org.AdminID = &adminID
	org.Version++
	org.UpdatedAt = time.Now().UTC()
	s.b.orgs[id] = org
	return nil
}

func (s *OrgStore) CommitRename(_ context.Context, id primitive.ObjectID, version int64, name, collection string) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	org, ok := s.b.orgs[id]
	if !ok || org.Version != version {
		return fmt.Errorf("commit rename of %s at version %d: %w", id.Hex(), version, apperr.ErrStaleVersion)
	}
	if s.nameTaken(name, id) {
		return errDupOrg
	}
	org.Name = name
	org.CollectionName = collection
	org.Connection.CollectionName = collection
	org.Version++
	org.UpdatedAt = time.Now().UTC()
	s.b.orgs[id] = org
	return nil
}

func (s *OrgStore) Delete(_ context.Context, id primitive.ObjectID) (int64, error) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if _, ok := s.b.orgs[id]; !ok {
		return 0, nil
	}
	delete(s.b.orgs, id)
	return 1, nil
}

func (s *OrgStore) List(_ context.Context) ([]models.Organization, error) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	out := make([]models.Organization, 0, len(s.b.orgs))
	for _, o := range s.b.orgs {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Administrators                                                                |
*─────────────────────────────────────────────────────────────────────────────*/

type AdminStore struct{ b *Backend }

func (s *AdminStore) Create(_ context.Context, a models.Administrator) (models.Administrator, error) {
	if a.OrganizationID.IsZero() {
		return models.Administrator{}, fmt.Errorf("administrator requires an organization_id")
	}
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	now := time.Now().UTC()
	a.ID = primitive.NewObjectID()
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	if a.Role == "" {
		a.Role = models.RoleAdmin
	}
	a.CreatedAt = now
	a.UpdatedAt = now
	s.b.admins[a.ID] = a
	return a, nil
}

func (s *AdminStore) GetByID(_ context.Context, id primitive.ObjectID) (models.Administrator, error) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	a, ok := s.b.admins[id]
	if !ok {
		return models.Administrator{}, apperr.New(apperr.ErrNotFound, "administrator not found")
	}
	return a, nil
}

func (s *AdminStore) FindByEmail(_ context.Context, email string) ([]models.Administrator, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	var out []models.Administrator
	for _, a := range s.b.admins {
		if a.Email == email {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *AdminStore) UpdateCredentials(_ context.Context, id primitive.ObjectID, email, passwordHash string) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	a, ok := s.b.admins[id]
	if !ok {
		return apperr.New(apperr.ErrNotFound, "administrator not found")
	}
	if email != "" {
		a.Email = strings.ToLower(strings.TrimSpace(email))
	}
	if passwordHash != "" {
		a.PasswordHash = passwordHash
	}
	a.UpdatedAt = time.Now().UTC()
	s.b.admins[id] = a
	return nil
}

func (s *AdminStore) DeleteByOrganization(_ context.Context, orgID primitive.ObjectID) (int64, error) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	var n int64
	for id, a := range s.b.admins {
		if a.OrganizationID == orgID {
			delete(s.b.admins, id)
			n++
		}
	}
	return n, nil
}

func (s *AdminStore) CountByOrganization(_ context.Context, orgID primitive.ObjectID) (int64, error) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	var n int64
	for _, a := range s.b.admins {
		if a.OrganizationID == orgID {
			n++
		}
	}
	return n, nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Tenant collections                                                            |
*─────────────────────────────────────────────────────────────────────────────*/

type TenantStore struct{ b *Backend }

func (s *TenantStore) Create(_ context.Context, name string) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if _, ok := s.b.collections[name]; ok {
		return fmt.Errorf("create %s: %w", name, apperr.ErrCollectionExists)
	}
	s.b.collections[name] = []map[string]any{}
	return nil
}

func (s *TenantStore) Drop(_ context.Context, name string) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	delete(s.b.collections, name)
	return nil
}

func (s *TenantStore) Exists(_ context.Context, name string) (bool, error) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	_, ok := s.b.collections[name]
	return ok, nil
}

func (s *TenantStore) Count(_ context.Context, name string) (int64, error) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	return int64(len(s.b.collections[name])), nil
}

// Copy appends every document of from to to. Like the database, it creates
// to only when at least one document is written.
func (s *TenantStore) Copy(_ context.Context, from, to string) (int64, error) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	src := s.b.collections[from]
	if len(src) == 0 {
		return 0, nil
	}
	dst := s.b.collections[to]
	for _, d := range src {
		dst = append(dst, cloneDoc(d))
	}
	s.b.collections[to] = dst
	return int64(len(src)), nil
}

func (s *TenantStore) List(_ context.Context, prefix string) ([]string, error) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	var out []string
	for name := range s.b.collections {
		if strings.HasPrefix(name, prefix) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Insert appends docs to the named collection, creating it if needed.
func (s *TenantStore) Insert(name string, docs ...map[string]any) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	c := s.b.collections[name]
	if c == nil {
		c = []map[string]any{}
	}
	for _, d := range docs {
		c = append(c, cloneDoc(d))
	}
	s.b.collections[name] = c
}

// Docs returns a copy of the documents in the named collection.
func (s *TenantStore) Docs(name string) []map[string]any {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	out := make([]map[string]any, 0, len(s.b.collections[name]))
	for _, d := range s.b.collections[name] {
		out = append(out, cloneDoc(d))
	}
	return out
}

func cloneDoc(d map[string]any) map[string]any {
	out := make(map[string]any, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

/*─────────────────────────────────────────────────────────────────────────────*
| Journal                                                                       |
*─────────────────────────────────────────────────────────────────────────────*/

type JournalStore struct{ b *Backend }

func (s *JournalStore) Begin(_ context.Context, op models.LifecycleOp) (models.LifecycleOp, error) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	now := time.Now().UTC()
	op.ID = primitive.NewObjectID()
	op.Step = models.StepStarted
	op.Status = models.OpRunning
	op.StartedAt = now
	op.UpdatedAt = now
	s.b.ops[op.ID] = op
	return op, nil
}

func (s *JournalStore) Advance(_ context.Context, id primitive.ObjectID, p models.OpProgress) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	op, ok := s.b.ops[id]
	if !ok {
		return apperr.New(apperr.ErrNotFound, "lifecycle op %s not found", id.Hex())
	}
	op.Step = p.Step
	if p.OrganizationID != nil {
		v := *p.OrganizationID
		op.OrganizationID = &v
	}
	if p.AdminID != nil {
		v := *p.AdminID
		op.AdminID = &v
	}
	if p.CreatedCollection != nil {
		op.CreatedCollection = *p.CreatedCollection
	}
	op.UpdatedAt = time.Now().UTC()
	s.b.ops[id] = op
	return nil
}

func (s *JournalStore) Finish(_ context.Context, id primitive.ObjectID, status string, cause error) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	op, ok := s.b.ops[id]
	if !ok {
		return apperr.New(apperr.ErrNotFound, "lifecycle op %s not found", id.Hex())
	}
	op.Status = status
	if cause != nil {
		op.Error = cause.Error()
	}
	op.UpdatedAt = time.Now().UTC()
	s.b.ops[id] = op
	return nil
}

func (s *JournalStore) Get(_ context.Context, id primitive.ObjectID) (models.LifecycleOp, error) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	op, ok := s.b.ops[id]
	if !ok {
		return models.LifecycleOp{}, apperr.New(apperr.ErrNotFound, "lifecycle op %s not found", id.Hex())
	}
	return op, nil
}

func (s *JournalStore) ListOpen(_ context.Context, olderThan time.Time) ([]models.LifecycleOp, error) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	var out []models.LifecycleOp
	for _, op := range s.b.ops {
		if op.Status == models.OpRunning && !op.UpdatedAt.After(olderThan) {
			out = append(out, op)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}

func (s *JournalStore) PurgeFinished(_ context.Context, olderThan time.Time) (int64, error) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	var n int64
	for id, op := range s.b.ops {
		if op.Status != models.OpRunning && !op.UpdatedAt.After(olderThan) {
			delete(s.b.ops, id)
			n++
		}
	}
	return n, nil
}

// Ops returns every journal entry in the order they were begun.
func (s *JournalStore) Ops() []models.LifecycleOp {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	out := make([]models.LifecycleOp, 0, len(s.b.ops))
	for _, op := range s.b.ops {
		out = append(out, op)
	}
	// ObjectIDs from one process increase monotonically.
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0 })
	return out
}
