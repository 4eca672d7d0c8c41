package tenancy_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/tenanthub/internal/app/store/memstore"
	"github.com/dalemusser/tenanthub/internal/app/system/authutil"
	"github.com/dalemusser/tenanthub/internal/app/system/tokens"
	"github.com/dalemusser/tenanthub/internal/app/tenancy"
	"github.com/dalemusser/tenanthub/internal/domain/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap/zaptest"
)

const testPassword = "longpass1"

// flakyOrgs, flakyAdmins, and flakyTenants wrap the in-memory stores so a
// test can make a single step fail.
type flakyOrgs struct {
	*memstore.OrgStore
	setAdminErr error
	commitErr   error
}

func (s *flakyOrgs) SetAdmin(ctx context.Context, id, adminID primitive.ObjectID) error {
	if s.setAdminErr != nil {
		return s.setAdminErr
	}
	return s.OrgStore.SetAdmin(ctx, id, adminID)
}

func (s *flakyOrgs) CommitRename(ctx context.Context, id primitive.ObjectID, version int64, name, coll string) error {
	if s.commitErr != nil {
		return s.commitErr
	}
	return s.OrgStore.CommitRename(ctx, id, version, name, coll)
}

type flakyAdmins struct {
	*memstore.AdminStore
	createErr error
	deleteErr error
	// deadlines records the context deadline each write saw.
	mu        sync.Mutex
	deadlines []time.Time
}

func (s *flakyAdmins) sawDeadline(ctx context.Context) {
	d, _ := ctx.Deadline()
	s.mu.Lock()
	s.deadlines = append(s.deadlines, d)
	s.mu.Unlock()
}

func (s *flakyAdmins) UpdateCredentials(ctx context.Context, id primitive.ObjectID, email, passwordHash string) error {
	s.sawDeadline(ctx)
	return s.AdminStore.UpdateCredentials(ctx, id, email, passwordHash)
}

func (s *flakyAdmins) Create(ctx context.Context, a models.Administrator) (models.Administrator, error) {
	s.sawDeadline(ctx)
	if s.createErr != nil {
		return models.Administrator{}, s.createErr
	}
	return s.AdminStore.Create(ctx, a)
}

func (s *flakyAdmins) DeleteByOrganization(ctx context.Context, orgID primitive.ObjectID) (int64, error) {
	s.sawDeadline(ctx)
	if s.deleteErr != nil {
		return 0, s.deleteErr
	}
	return s.AdminStore.DeleteByOrganization(ctx, orgID)
}

type flakyTenants struct {
	*memstore.TenantStore
	createErr error
	dropErr   map[string]error
	// lossy makes Copy silently skip the last document.
	lossy bool
}

func (s *flakyTenants) Create(ctx context.Context, name string) error {
	if s.createErr != nil {
		return s.createErr
	}
	return s.TenantStore.Create(ctx, name)
}

func (s *flakyTenants) Drop(ctx context.Context, name string) error {
	if err := s.dropErr[name]; err != nil {
		return err
	}
	return s.TenantStore.Drop(ctx, name)
}

func (s *flakyTenants) Copy(ctx context.Context, from, to string) (int64, error) {
	if !s.lossy {
		return s.TenantStore.Copy(ctx, from, to)
	}
	docs := s.Docs(from)
	if len(docs) > 0 {
		docs = docs[:len(docs)-1]
	}
	if len(docs) > 0 {
		s.Insert(to, docs...)
	}
	return int64(len(docs)), nil
}

type env struct {
	mgr     *tenancy.Manager
	auth    *tenancy.Authenticator
	issuer  *tokens.Issuer
	mem     *memstore.Backend
	orgs    *flakyOrgs
	admins  *flakyAdmins
	tenants *flakyTenants
	reg     *prometheus.Registry
}

func newEnv(t *testing.T) *env {
	t.Helper()

	mem := memstore.New()
	e := &env{
		mem:     mem,
		orgs:    &flakyOrgs{OrgStore: mem.Orgs},
		admins:  &flakyAdmins{AdminStore: mem.Admins},
		tenants: &flakyTenants{TenantStore: mem.Tenants, dropErr: map[string]error{}},
		reg:     prometheus.NewRegistry(),
	}
	hasher := authutil.NewHasher(4) // bcrypt.MinCost keeps tests fast
	log := zaptest.NewLogger(t)

	e.mgr = tenancy.NewManager(tenancy.Deps{
		DBName:  "master_db",
		Orgs:    e.orgs,
		Admins:  e.admins,
		Tenants: e.tenants,
		Journal: mem.Journal,
		Hasher:  hasher,
		Metrics: tenancy.NewMetrics(e.reg),
		Logger:  log,
	})

	issuer, err := tokens.NewIssuer("test-secret", "tenanthub-test")
	require.NoError(t, err)
	e.issuer = issuer
	e.auth = tenancy.NewAuthenticator(e.admins, hasher, issuer, time.Hour, log)
	return e
}

func ctx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return c
}

// create provisions name with a default admin and returns its id.
func (e *env) create(t *testing.T, name, email string) primitive.ObjectID {
	t.Helper()
	v, err := e.mgr.Create(ctx(t), tenancy.CreateInput{Name: name, Email: email, Password: testPassword})
	require.NoError(t, err)
	id, err := primitive.ObjectIDFromHex(v.ID)
	require.NoError(t, err)
	return id
}

func (e *env) seed(coll string, n int) {
	docs := make([]map[string]any, n)
	for i := range docs {
		docs[i] = map[string]any{"_id": primitive.NewObjectID(), "seq": i}
	}
	e.mem.Tenants.Insert(coll, docs...)
}

func (e *env) count(t *testing.T, coll string) int64 {
	t.Helper()
	n, err := e.mem.Tenants.Count(ctx(t), coll)
	require.NoError(t, err)
	return n
}

func (e *env) exists(t *testing.T, coll string) bool {
	t.Helper()
	ok, err := e.mem.Tenants.Exists(ctx(t), coll)
	require.NoError(t, err)
	return ok
}

func (e *env) reconcile(t *testing.T, opts tenancy.ReconcileOptions) tenancy.ReconcileReport {
	t.Helper()
	report, err := e.mgr.Reconcile(ctx(t), opts)
	require.NoError(t, err)
	return report
}

func lastOp(t *testing.T, mem *memstore.Backend) models.LifecycleOp {
	t.Helper()
	ops := mem.Journal.Ops()
	require.NotEmpty(t, ops)
	return ops[len(ops)-1]
}

// opsTotal reads tenanthub_lifecycle_ops_total{op,outcome} from the registry.
func (e *env) opsTotal(op, outcome string) float64 {
	mfs, err := e.reg.Gather()
	if err != nil {
		return -1
	}
	for _, mf := range mfs {
		if mf.GetName() != "tenanthub_lifecycle_ops_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["op"] == op && labels["outcome"] == outcome {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}
