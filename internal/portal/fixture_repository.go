package portal

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// FixtureRepository is the in-memory Backend used when no live backend is
// configured. It is seeded with the demo dataset and keeps writes for the
// lifetime of the process.
type FixtureRepository struct {
	mu   sync.RWMutex
	data *dataset
}

// NewFixtureRepository creates a repository seeded with the demo dataset.
func NewFixtureRepository() *FixtureRepository {
	return &FixtureRepository{data: seedDataset()}
}

var _ Backend = (*FixtureRepository)(nil)

func fixtureID(entity string) string {
	return "demo-" + entity + "-" + uuid.NewString()
}

func cloneStrings(a pq.StringArray) pq.StringArray {
	if a == nil {
		return nil
	}
	return append(pq.StringArray{}, a...)
}

func newestFirst[T any](items []T, created func(T) time.Time) []T {
	out := append([]T{}, items...)
	sort.SliceStable(out, func(i, j int) bool { return created(out[i]).After(created(out[j])) })
	return out
}

func filter[T any](items []T, keep func(T) bool) []T {
	out := []T{}
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

func indexOf[T any](items []T, match func(T) bool) int {
	for i, item := range items {
		if match(item) {
			return i
		}
	}
	return -1
}

func (r *FixtureRepository) profileLocked(id string) *Profile {
	if i := indexOf(r.data.profiles, func(p Profile) bool { return p.ID == id }); i >= 0 {
		p := r.data.profiles[i]
		return &p
	}
	return nil
}

// =====================================================
// Profiles
// =====================================================

// demoProfile stands in for users that are not part of the dataset.
func demoProfile(userID string) Profile {
	created := ts("2024-01-01T00:00:00Z")
	return Profile{
		ID:          userID,
		Email:       "demo@terangabuild.com",
		FullName:    str("Utilisateur Démo"),
		UserType:    UserTypeClient,
		CompanyName: str("TerangaBuild Demo"),
		Phone:       str("+221 77 123 4567"),
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

func (r *FixtureRepository) GetProfile(_ context.Context, userID string) (*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p := r.profileLocked(userID); p != nil {
		return p, nil
	}
	p := demoProfile(userID)
	return &p, nil
}

func (r *FixtureRepository) UpdateProfile(_ context.Context, userID string, update ProfileUpdate, at time.Time) (*Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := indexOf(r.data.profiles, func(p Profile) bool { return p.ID == userID })
	if i < 0 {
		r.data.profiles = append(r.data.profiles, demoProfile(userID))
		i = len(r.data.profiles) - 1
	}
	update.apply(&r.data.profiles[i])
	r.data.profiles[i].UpdatedAt = at
	p := r.data.profiles[i]
	return &p, nil
}

func (r *FixtureRepository) SearchProfiles(_ context.Context, query string, limit int) ([]Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	q := strings.ToLower(query)
	contains := func(s *string) bool { return s != nil && strings.Contains(strings.ToLower(*s), q) }
	found := filter(newestFirst(r.data.profiles, func(p Profile) time.Time { return p.CreatedAt }), func(p Profile) bool {
		return contains(p.FullName) || contains(&p.Email) || contains(p.CompanyName)
	})
	if len(found) > limit {
		found = found[:limit]
	}
	return found, nil
}

func (r *FixtureRepository) ListProfessionals(_ context.Context) ([]Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return filter(newestFirst(r.data.profiles, func(p Profile) time.Time { return p.CreatedAt }), func(p Profile) bool {
		return p.UserType == UserTypeProfessional
	}), nil
}

// =====================================================
// Projects
// =====================================================

func (r *FixtureRepository) withSummaries(p Project) Project {
	p.Client = r.profileLocked(p.ClientID).Summary()
	if p.ProfessionalID != nil {
		p.Professional = r.profileLocked(*p.ProfessionalID).Summary()
	}
	return p
}

func (r *FixtureRepository) projectsLocked(keep func(Project) bool) []Project {
	out := filter(newestFirst(r.data.projects, func(p Project) time.Time { return p.CreatedAt }), keep)
	for i := range out {
		out[i] = r.withSummaries(out[i])
	}
	return out
}

func (r *FixtureRepository) ListProjects(_ context.Context) ([]Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.projectsLocked(func(Project) bool { return true }), nil
}

func (r *FixtureRepository) ListProjectsForUser(_ context.Context, userID string, userType UserType) ([]Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.projectsLocked(func(p Project) bool {
		if userType == UserTypeProfessional {
			return p.ProfessionalID != nil && *p.ProfessionalID == userID
		}
		return p.ClientID == userID
	}), nil
}

func (r *FixtureRepository) GetProject(_ context.Context, id string) (*Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i := indexOf(r.data.projects, func(p Project) bool { return p.ID == id })
	if i < 0 {
		return nil, ErrNotFound
	}
	p := r.withSummaries(r.data.projects[i])
	return &p, nil
}

func (r *FixtureRepository) CreateProject(_ context.Context, project *Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if project.ID == "" {
		project.ID = fixtureID("project")
	}
	stored := *project
	stored.Client, stored.Professional = nil, nil
	r.data.projects = append([]Project{stored}, r.data.projects...)
	return nil
}

func (r *FixtureRepository) UpdateProject(_ context.Context, id string, update ProjectUpdate, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := indexOf(r.data.projects, func(p Project) bool { return p.ID == id })
	if i < 0 {
		return ErrNotFound
	}
	update.apply(&r.data.projects[i])
	r.data.projects[i].UpdatedAt = at
	return nil
}

func (r *FixtureRepository) DeleteProject(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := indexOf(r.data.projects, func(p Project) bool { return p.ID == id })
	if i < 0 {
		return ErrNotFound
	}
	r.data.projects = append(r.data.projects[:i], r.data.projects[i+1:]...)
	return nil
}

// =====================================================
// Checklist
// =====================================================

func (r *FixtureRepository) ListChecklistItems(_ context.Context, projectID string) ([]ChecklistItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := filter(r.data.checklist, func(c ChecklistItem) bool { return c.ProjectID == projectID })
	sort.SliceStable(items, func(i, j int) bool { return items[i].OrderIndex < items[j].OrderIndex })
	for i := range items {
		items[i].Dependencies = cloneStrings(items[i].Dependencies)
	}
	return items, nil
}

func (r *FixtureRepository) GetChecklistItem(_ context.Context, id string) (*ChecklistItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i := indexOf(r.data.checklist, func(c ChecklistItem) bool { return c.ID == id })
	if i < 0 {
		return nil, ErrNotFound
	}
	item := r.data.checklist[i]
	item.Dependencies = cloneStrings(item.Dependencies)
	return &item, nil
}

func (r *FixtureRepository) CreateChecklistItem(_ context.Context, item *ChecklistItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if item.ID == "" {
		item.ID = fixtureID("checklist")
	}
	stored := *item
	stored.Dependencies = cloneStrings(item.Dependencies)
	r.data.checklist = append(r.data.checklist, stored)
	return nil
}

func (r *FixtureRepository) UpdateChecklistItem(_ context.Context, id string, update ChecklistItemUpdate, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := indexOf(r.data.checklist, func(c ChecklistItem) bool { return c.ID == id })
	if i < 0 {
		return ErrNotFound
	}
	update.apply(&r.data.checklist[i])
	r.data.checklist[i].UpdatedAt = at
	return nil
}

func (r *FixtureRepository) DeleteChecklistItem(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := indexOf(r.data.checklist, func(c ChecklistItem) bool { return c.ID == id })
	if i < 0 {
		return ErrNotFound
	}
	r.data.checklist = append(r.data.checklist[:i], r.data.checklist[i+1:]...)
	return nil
}

// =====================================================
// Expenses
// =====================================================

func (r *FixtureRepository) ListExpenses(_ context.Context, projectID string) ([]ProjectExpense, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return filter(newestFirst(r.data.expenses, func(e ProjectExpense) time.Time { return e.CreatedAt }), func(e ProjectExpense) bool {
		return e.ProjectID == projectID
	}), nil
}

func (r *FixtureRepository) GetExpense(_ context.Context, id string) (*ProjectExpense, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i := indexOf(r.data.expenses, func(e ProjectExpense) bool { return e.ID == id })
	if i < 0 {
		return nil, ErrNotFound
	}
	e := r.data.expenses[i]
	return &e, nil
}

func (r *FixtureRepository) CreateExpense(_ context.Context, expense *ProjectExpense) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if expense.ID == "" {
		expense.ID = fixtureID("expense")
	}
	r.data.expenses = append([]ProjectExpense{*expense}, r.data.expenses...)
	return nil
}

func (r *FixtureRepository) DeleteExpense(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := indexOf(r.data.expenses, func(e ProjectExpense) bool { return e.ID == id })
	if i < 0 {
		return ErrNotFound
	}
	r.data.expenses = append(r.data.expenses[:i], r.data.expenses[i+1:]...)
	return nil
}

// =====================================================
// Materials & orders
// =====================================================

func (r *FixtureRepository) materialsLocked(keep func(Material) bool) []Material {
	out := filter(newestFirst(r.data.materials, func(m Material) time.Time { return m.CreatedAt }), keep)
	for i := range out {
		out[i].Supplier = r.profileLocked(out[i].SupplierID).Summary()
	}
	return out
}

func (r *FixtureRepository) ListMaterials(_ context.Context) ([]Material, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.materialsLocked(func(Material) bool { return true }), nil
}

func (r *FixtureRepository) ListMaterialsBySupplier(_ context.Context, supplierID string) ([]Material, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.materialsLocked(func(m Material) bool { return m.SupplierID == supplierID }), nil
}

func (r *FixtureRepository) CreateMaterial(_ context.Context, material *Material) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if material.ID == "" {
		material.ID = fixtureID("material")
	}
	stored := *material
	stored.Supplier = nil
	r.data.materials = append([]Material{stored}, r.data.materials...)
	return nil
}

func (r *FixtureRepository) UpdateMaterial(_ context.Context, id string, update MaterialUpdate, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := indexOf(r.data.materials, func(m Material) bool { return m.ID == id })
	if i < 0 {
		return ErrNotFound
	}
	update.apply(&r.data.materials[i])
	r.data.materials[i].UpdatedAt = at
	return nil
}

func (r *FixtureRepository) DeleteMaterial(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := indexOf(r.data.materials, func(m Material) bool { return m.ID == id })
	if i < 0 {
		return ErrNotFound
	}
	r.data.materials = append(r.data.materials[:i], r.data.materials[i+1:]...)
	return nil
}

func (r *FixtureRepository) ordersLocked(keep func(Order) bool) []Order {
	out := filter(newestFirst(r.data.orders, func(o Order) time.Time { return o.CreatedAt }), keep)
	for i := range out {
		if out[i].MaterialID != nil {
			if j := indexOf(r.data.materials, func(m Material) bool { return m.ID == *out[i].MaterialID }); j >= 0 {
				out[i].MaterialName = str(r.data.materials[j].Name)
			}
		}
		if out[i].ProjectID != nil {
			if j := indexOf(r.data.projects, func(p Project) bool { return p.ID == *out[i].ProjectID }); j >= 0 {
				out[i].ProjectName = str(r.data.projects[j].Name)
			}
		}
	}
	return out
}

func (r *FixtureRepository) ListOrdersForProject(_ context.Context, projectID string) ([]Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.ordersLocked(func(o Order) bool { return o.ProjectID != nil && *o.ProjectID == projectID }), nil
}

func (r *FixtureRepository) ListOrdersForUser(_ context.Context, userID string, userType UserType) ([]Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	managed := map[string]bool{}
	for _, p := range r.data.projects {
		if p.ProfessionalID != nil && *p.ProfessionalID == userID {
			managed[p.ID] = true
		}
	}
	return r.ordersLocked(func(o Order) bool {
		if userType == UserTypeProfessional {
			return o.SupplierID == userID || (o.ProjectID != nil && managed[*o.ProjectID])
		}
		return o.ClientID == userID
	}), nil
}

func (r *FixtureRepository) CreateOrder(_ context.Context, order *Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if order.ID == "" {
		order.ID = fixtureID("order")
	}
	stored := *order
	stored.MaterialName, stored.ProjectName = nil, nil
	r.data.orders = append([]Order{stored}, r.data.orders...)
	return nil
}

// =====================================================
// Project members & invitations
// =====================================================

func (r *FixtureRepository) ListProjectUsers(_ context.Context, projectID string) ([]ProjectUser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := filter(newestFirst(r.data.users, func(u ProjectUser) time.Time { return u.CreatedAt }), func(u ProjectUser) bool {
		return u.ProjectID == projectID
	})
	for i := range out {
		out[i].Permissions = cloneStrings(out[i].Permissions)
		out[i].User = r.profileLocked(out[i].UserID).Summary()
	}
	return out, nil
}

func (r *FixtureRepository) AddProjectUser(_ context.Context, pu *ProjectUser) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if pu.ID == "" {
		pu.ID = fixtureID("project-user")
	}
	stored := *pu
	stored.Permissions = cloneStrings(pu.Permissions)
	stored.User = nil
	r.data.users = append([]ProjectUser{stored}, r.data.users...)
	return nil
}

func (r *FixtureRepository) RemoveProjectUser(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := indexOf(r.data.users, func(u ProjectUser) bool { return u.ID == id })
	if i < 0 {
		return ErrNotFound
	}
	r.data.users = append(r.data.users[:i], r.data.users[i+1:]...)
	return nil
}

func (r *FixtureRepository) CreateInvitation(_ context.Context, inv *ProjectInvitation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if inv.ID == "" {
		inv.ID = fixtureID("invitation")
	}
	stored := *inv
	stored.Permissions = cloneStrings(inv.Permissions)
	r.data.invitations = append([]ProjectInvitation{stored}, r.data.invitations...)
	return nil
}

func (r *FixtureRepository) ExpireInvitations(_ context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	expired := 0
	for i := range r.data.invitations {
		inv := &r.data.invitations[i]
		if inv.Status == InvitationPending && inv.ExpiresAt.Before(now) {
			inv.Status = InvitationExpired
			inv.UpdatedAt = now
			expired++
		}
	}
	return expired, nil
}

// =====================================================
// Site monitoring
// =====================================================

func (r *FixtureRepository) ListDrones(_ context.Context) ([]Drone, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return newestFirst(r.data.drones, func(d Drone) time.Time { return d.CreatedAt }), nil
}

func (r *FixtureRepository) UpdateDroneStatus(_ context.Context, id string, status DroneStatus, projectID *string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := indexOf(r.data.drones, func(d Drone) bool { return d.ID == id })
	if i < 0 {
		return ErrNotFound
	}
	r.data.drones[i].Status = status
	r.data.drones[i].ProjectID = projectID
	r.data.drones[i].UpdatedAt = at
	return nil
}

func (r *FixtureRepository) ListSensorsForProject(_ context.Context, projectID string) ([]IoTSensor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return filter(newestFirst(r.data.sensors, func(s IoTSensor) time.Time { return s.CreatedAt }), func(s IoTSensor) bool {
		return s.ProjectID == projectID
	}), nil
}

func (r *FixtureRepository) CreateIoTThreshold(_ context.Context, threshold *IoTThreshold) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if threshold.ID == "" {
		threshold.ID = fixtureID("threshold")
	}
	r.data.thresholds = append([]IoTThreshold{*threshold}, r.data.thresholds...)
	return nil
}

func (r *FixtureRepository) ListActivities(_ context.Context, projectID string) ([]ProjectActivity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return filter(newestFirst(r.data.activities, func(a ProjectActivity) time.Time { return a.CreatedAt }), func(a ProjectActivity) bool {
		return a.ProjectID == projectID
	}), nil
}

func (r *FixtureRepository) CreateActivity(_ context.Context, activity *ProjectActivity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if activity.ID == "" {
		activity.ID = fixtureID("activity")
	}
	r.data.activities = append([]ProjectActivity{*activity}, r.data.activities...)
	return nil
}
