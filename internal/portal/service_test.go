package portal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"teranga-build/portal/portal-backend/internal/cache"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// countingBackend records how often each list query reaches the fixture store.
type countingBackend struct {
	*FixtureRepository
	mu    sync.Mutex
	calls map[string]int
}

func (b *countingBackend) count(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls[name]++
}

func (b *countingBackend) Calls(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[name]
}

func (b *countingBackend) ListMaterials(ctx context.Context) ([]Material, error) {
	b.count("ListMaterials")
	return b.FixtureRepository.ListMaterials(ctx)
}

func (b *countingBackend) ListMaterialsBySupplier(ctx context.Context, supplierID string) ([]Material, error) {
	b.count("ListMaterialsBySupplier")
	return b.FixtureRepository.ListMaterialsBySupplier(ctx, supplierID)
}

func (b *countingBackend) ListChecklistItems(ctx context.Context, projectID string) ([]ChecklistItem, error) {
	b.count("ListChecklistItems:" + projectID)
	return b.FixtureRepository.ListChecklistItems(ctx, projectID)
}

func (b *countingBackend) ListProjectsForUser(ctx context.Context, userID string, userType UserType) ([]Project, error) {
	b.count("ListProjectsForUser")
	return b.FixtureRepository.ListProjectsForUser(ctx, userID, userType)
}

func (b *countingBackend) SearchProfiles(ctx context.Context, query string, limit int) ([]Profile, error) {
	b.count("SearchProfiles")
	return b.FixtureRepository.SearchProfiles(ctx, query, limit)
}

func newTestService(t *testing.T) (*Service, *countingBackend, *testClock) {
	t.Helper()
	clock := &testClock{t: time.Date(2024, 5, 15, 9, 0, 0, 0, time.UTC)}
	backend := &countingBackend{FixtureRepository: NewFixtureRepository(), calls: map[string]int{}}
	svc := NewService(backend, zap.NewNop(), Options{
		Cache:   cache.New(cache.Options{TTL: 30 * time.Second, Now: clock.now}),
		Now:     clock.now,
		Fixture: true,
	})
	return svc, backend, clock
}

func TestReadIsServedFromCacheWithinTTL(t *testing.T) {
	svc, backend, clock := newTestService(t)
	ctx := context.Background()

	first := svc.GetMaterials(ctx)
	require.Len(t, first, 12)
	second := svc.GetMaterials(ctx)

	assert.Equal(t, 1, backend.Calls("ListMaterials"))
	assert.Same(t, &first[0], &second[0])

	clock.advance(31 * time.Second)
	svc.GetMaterials(ctx)
	assert.Equal(t, 2, backend.Calls("ListMaterials"))
}

// cancelAwareBackend fails a list query when its context is already done,
// the way a database driver does.
type cancelAwareBackend struct {
	*FixtureRepository
}

func (b *cancelAwareBackend) ListMaterials(ctx context.Context) ([]Material, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b.FixtureRepository.ListMaterials(ctx)
}

func TestSharedFetchIgnoresCallerCancellation(t *testing.T) {
	svc := NewService(&cancelAwareBackend{FixtureRepository: NewFixtureRepository()}, zap.NewNop(), Options{Fixture: true})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	materials := svc.GetMaterials(ctx)
	require.Len(t, materials, 12)

	// The result was cached for callers that did not cancel.
	assert.Len(t, svc.GetMaterials(context.Background()), 12)
}

func TestMaterialWriteInvalidatesWholeFamily(t *testing.T) {
	svc, backend, _ := newTestService(t)
	ctx := context.Background()

	svc.GetMaterials(ctx)
	svc.GetMaterialsBySupplier(ctx, "demo-supplier-1")

	created := svc.CreateMaterial(ctx, &Material{Name: "Chaux hydraulique", Price: 5200, Unit: "sac", SupplierID: "demo-supplier-1"})
	require.NotNil(t, created)
	assert.NotEmpty(t, created.ID)

	materials := svc.GetMaterials(ctx)
	bySupplier := svc.GetMaterialsBySupplier(ctx, "demo-supplier-1")
	assert.Equal(t, 2, backend.Calls("ListMaterials"))
	assert.Equal(t, 2, backend.Calls("ListMaterialsBySupplier"))
	assert.Len(t, materials, 13)
	assert.Len(t, bySupplier, 4)
}

func TestChecklistCreateInvalidatesOnlyThatProject(t *testing.T) {
	svc, backend, _ := newTestService(t)
	ctx := context.Background()

	svc.GetProjectChecklist(ctx, "demo-project-1")
	svc.GetProjectChecklist(ctx, "demo-project-2")

	created := svc.CreateChecklistItem(ctx, &ChecklistItem{ProjectID: "demo-project-2", Title: "Implantation", OrderIndex: 1})
	require.NotNil(t, created)
	assert.Equal(t, PriorityMedium, created.Priority)

	svc.GetProjectChecklist(ctx, "demo-project-1")
	items := svc.GetProjectChecklist(ctx, "demo-project-2")

	assert.Equal(t, 1, backend.Calls("ListChecklistItems:demo-project-1"))
	assert.Equal(t, 2, backend.Calls("ListChecklistItems:demo-project-2"))
	assert.Len(t, items, 1)
}

func TestCreateStampsTimestamps(t *testing.T) {
	svc, _, clock := newTestService(t)

	project := svc.CreateProject(context.Background(), &Project{Name: "Duplex Saly", ClientID: "demo-client-1"})
	require.NotNil(t, project)
	assert.Equal(t, clock.now(), project.CreatedAt)
	assert.Equal(t, clock.now(), project.UpdatedAt)
	assert.Equal(t, ProjectStatusPlanning, project.Status)
}

func TestProjectsForUserFollowRole(t *testing.T) {
	svc, backend, _ := newTestService(t)
	ctx := context.Background()

	clientProjects := svc.GetProjectsForUser(ctx, "demo-client-1", UserTypeClient)
	require.Len(t, clientProjects, 2)
	assert.Equal(t, "demo-project-1", clientProjects[0].ID)
	require.NotNil(t, clientProjects[0].Professional)
	assert.Equal(t, "BTP Excellence", *clientProjects[0].Professional.CompanyName)

	assert.Len(t, svc.GetProjectsForUser(ctx, "demo-pro-1", UserTypeProfessional), 1)
	assert.Empty(t, svc.GetProjectsForUser(ctx, "demo-pro-2", UserTypeProfessional))
	assert.Equal(t, 3, backend.Calls("ListProjectsForUser"))

	require.NotNil(t, svc.CreateProject(ctx, &Project{Name: "Duplex Saly", ClientID: "demo-client-1"}))
	again := svc.GetProjectsForUser(ctx, "demo-client-1", UserTypeClient)
	assert.Len(t, again, 3)
	assert.Equal(t, 4, backend.Calls("ListProjectsForUser"))
}

func TestSearchUsers(t *testing.T) {
	svc, backend, _ := newTestService(t)
	ctx := context.Background()

	assert.Empty(t, svc.SearchUsers(ctx, "ab"))
	assert.Empty(t, svc.SearchUsers(ctx, "  fa  "))
	assert.Equal(t, 0, backend.Calls("SearchProfiles"))

	found := svc.SearchUsers(ctx, "SALL")
	require.Len(t, found, 1)
	assert.Equal(t, "demo-pro-1", found[0].ID)

	for i := 0; i < 5; i++ {
		require.NotNil(t, svc.UpdateProfile(ctx, fmt.Sprintf("extra-%d", i), ProfileUpdate{}))
	}
	assert.Len(t, svc.SearchUsers(ctx, "demo"), SearchLimit)
}

func TestDeleteProjectLeavesDependents(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	require.True(t, svc.DeleteProject(ctx, "demo-project-1"))
	assert.Nil(t, svc.GetProject(ctx, "demo-project-1"))
	assert.Len(t, svc.GetProjectChecklist(ctx, "demo-project-1"), 12)
	assert.Len(t, svc.GetProjectExpenses(ctx, "demo-project-1"), 2)

	assert.False(t, svc.DeleteProject(ctx, "demo-project-1"))
}

func TestUpdateDroneStatusClearsAssignment(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	svc.GetDrones(ctx)
	require.True(t, svc.UpdateDroneStatus(ctx, "demo-drone-2", DroneAvailable, nil))

	for _, d := range svc.GetDrones(ctx) {
		if d.ID == "demo-drone-2" {
			assert.Equal(t, DroneAvailable, d.Status)
			assert.Nil(t, d.ProjectID)
		}
	}
	assert.False(t, svc.UpdateDroneStatus(ctx, "missing", DroneOffline, nil))
}

func TestProfileUpdateRefreshesCachedProfile(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	before := svc.GetProfile(ctx, "demo-client-1")
	require.NotNil(t, before)

	updated := svc.UpdateProfile(ctx, "demo-client-1", ProfileUpdate{Phone: str("+221 70 000 0000")})
	require.NotNil(t, updated)

	after := svc.GetProfile(ctx, "demo-client-1")
	assert.Equal(t, "+221 70 000 0000", *after.Phone)
	assert.Equal(t, "Amadou Diallo", *after.FullName)
}

func TestUnknownProfileFallsBackToDemoProfile(t *testing.T) {
	svc, _, _ := newTestService(t)

	p := svc.GetProfile(context.Background(), "someone")
	require.NotNil(t, p)
	assert.Equal(t, "someone", p.ID)
	assert.Equal(t, UserTypeClient, p.UserType)
}

func TestExpireInvitations(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	inv := svc.CreateProjectInvitation(ctx, &ProjectInvitation{
		ProjectID: "demo-project-1", InvitedBy: "demo-client-1", InvitedEmail: "archi@example.sn", Role: RoleViewer,
	})
	require.NotNil(t, inv)
	assert.Equal(t, InvitationPending, inv.Status)
	assert.Equal(t, clock.now().Add(DefaultInvitationTTL), inv.ExpiresAt)

	assert.Equal(t, 0, svc.ExpireInvitations(ctx))
	clock.advance(8 * 24 * time.Hour)
	assert.Equal(t, 1, svc.ExpireInvitations(ctx))
	assert.Equal(t, 0, svc.ExpireInvitations(ctx))
}

// =====================================================
// Failure surfacing
// =====================================================

type failingBackend struct {
	Backend
	mock.Mock
}

func (b *failingBackend) ListMaterials(ctx context.Context) ([]Material, error) {
	args := b.Called(ctx)
	return nil, args.Error(1)
}

func (b *failingBackend) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	args := b.Called(ctx, userID)
	return nil, args.Error(1)
}

func (b *failingBackend) CreateProject(ctx context.Context, project *Project) error {
	return b.Called(ctx, project).Error(0)
}

func (b *failingBackend) UpdateProject(ctx context.Context, id string, update ProjectUpdate, at time.Time) error {
	return b.Called(ctx, id, update, at).Error(0)
}

func TestBackendFailuresSurfaceAsEmptyResults(t *testing.T) {
	boom := errors.New("connection refused")
	backend := &failingBackend{}
	backend.On("ListMaterials", mock.Anything).Return(nil, boom)
	backend.On("GetProfile", mock.Anything, "u1").Return(nil, boom)
	backend.On("CreateProject", mock.Anything, mock.Anything).Return(boom)
	backend.On("UpdateProject", mock.Anything, "p1", mock.Anything, mock.Anything).Return(ErrNotFound)

	svc := NewService(backend, zap.NewNop(), Options{})
	ctx := context.Background()

	materials := svc.GetMaterials(ctx)
	assert.NotNil(t, materials)
	assert.Empty(t, materials)
	assert.Nil(t, svc.GetProfile(ctx, "u1"))
	assert.Nil(t, svc.CreateProject(ctx, &Project{Name: "x", ClientID: "c"}))
	assert.False(t, svc.UpdateProject(ctx, "p1", ProjectUpdate{}))

	svc.GetMaterials(ctx)
	backend.AssertNumberOfCalls(t, "ListMaterials", 2)
}
