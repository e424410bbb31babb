package portal

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"teranga-build/portal/portal-backend/internal/cache"
	"teranga-build/portal/portal-backend/internal/progress"
)

// Cache entity families. A write invalidates by family, optionally narrowed
// to a parameter subset.
const (
	entityProfile       = "profile"
	entityProfessionals = "professionals"
	entityProjects      = "projects"
	entityProject       = "project"
	entityChecklist     = "checklist"
	entityMaterials     = "materials"
	entityOrders        = "orders"
	entityDrones        = "drones"
	entitySensors       = "iot_sensors"
	entityActivities    = "project_activities"
	entityExpenses      = "project_expenses"
	entityProjectUsers  = "project_users"
)

const (
	// MinSearchLength is the shortest trimmed query that reaches the backend.
	MinSearchLength = 3
	// SearchLimit caps user search results.
	SearchLimit = 10
	// DefaultInvitationTTL is applied to invitations created without an expiry.
	DefaultInvitationTTL = 7 * 24 * time.Hour
)

// Options configures a Service.
type Options struct {
	Cache         *cache.TTLCache
	Now           func() time.Time
	Fixture       bool
	InvitationTTL time.Duration
}

// Service is the data-access façade of the portal. Reads go through a short
// lived cache; writes stamp timestamps, persist through the Backend and drop
// the cache families they affect. Failures are logged and surface as nil,
// false or an empty collection.
type Service struct {
	backend       Backend
	cache         *cache.TTLCache
	engine        *progress.Engine
	logger        *zap.Logger
	now           func() time.Time
	fixture       bool
	invitationTTL time.Duration
	group         singleflight.Group
}

// NewService creates the façade over backend.
func NewService(backend Backend, logger *zap.Logger, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Cache == nil {
		opts.Cache = cache.New(cache.Options{Now: opts.Now})
	}
	if opts.InvitationTTL <= 0 {
		opts.InvitationTTL = DefaultInvitationTTL
	}
	return &Service{
		backend:       backend,
		cache:         opts.Cache,
		engine:        progress.NewEngine(opts.Now),
		logger:        logger,
		now:           opts.Now,
		fixture:       opts.Fixture,
		invitationTTL: opts.InvitationTTL,
	}
}

// Mode reports "fixture" or "live".
func (s *Service) Mode() string {
	if s.fixture {
		return "fixture"
	}
	return "live"
}

// CacheStats exposes the read cache counters.
func (s *Service) CacheStats() cache.Stats {
	return s.cache.GetStats()
}

// ChecklistProgress is the completion percentage of items.
func (s *Service) ChecklistProgress(items []ChecklistItem) int {
	return progress.ChecklistProgress(items)
}

// ScheduleDelay classifies project against the service clock.
func (s *Service) ScheduleDelay(project *Project) progress.Delay {
	return s.engine.ScheduleDelay(project.Schedule())
}

// query serves key from the cache or fetches, stores and returns it.
// Concurrent misses on the same key share one backend call, which runs
// detached from the first caller's cancellation so it cannot fail the others.
func query[T any](ctx context.Context, s *Service, key cache.Key, op string, fetch func(context.Context) (T, error)) (T, bool) {
	if v, ok := s.cache.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, true
		}
	}

	v, err, _ := s.group.Do(key.String(), func() (interface{}, error) {
		result, err := fetch(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		s.cache.Set(key, result)
		return result, nil
	})
	if err != nil {
		s.logger.Error("Failed to "+op, zap.String("key", key.String()), zap.Error(err))
		var zero T
		return zero, false
	}
	return v.(T), true
}

// list is query for collections: failures and nil results become empty.
func list[T any](ctx context.Context, s *Service, key cache.Key, op string, fetch func(context.Context) ([]T, error)) []T {
	items, ok := query(ctx, s, key, op, func(ctx context.Context) ([]T, error) {
		items, err := fetch(ctx)
		if err == nil && items == nil {
			items = []T{}
		}
		return items, err
	})
	if !ok {
		return []T{}
	}
	return items
}

func (s *Service) failed(op string, err error, fields ...zap.Field) {
	s.logger.Error("Failed to "+op, append(fields, zap.Error(err))...)
}

// =====================================================
// Profiles
// =====================================================

func (s *Service) GetProfile(ctx context.Context, userID string) *Profile {
	p, _ := query(ctx, s, cache.NewKey(entityProfile, "user_id", userID), "get profile",
		func(ctx context.Context) (*Profile, error) { return s.backend.GetProfile(ctx, userID) })
	return p
}

func (s *Service) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) *Profile {
	p, err := s.backend.UpdateProfile(ctx, userID, update, s.now())
	if err != nil {
		s.failed("update profile", err, zap.String("user_id", userID))
		return nil
	}
	s.cache.Invalidate(entityProfile, map[string]string{"user_id": userID})
	s.cache.Invalidate(entityProfessionals, nil)
	s.cache.Invalidate(entityProjects, nil)
	return p
}

func (s *Service) GetProfessionals(ctx context.Context) []Profile {
	return list(ctx, s, cache.NewKey(entityProfessionals), "list professionals", s.backend.ListProfessionals)
}

// SearchUsers matches name, email or company. Queries shorter than
// MinSearchLength characters return nothing without a backend call.
func (s *Service) SearchUsers(ctx context.Context, q string) []Profile {
	q = strings.TrimSpace(q)
	if utf8.RuneCountInString(q) < MinSearchLength {
		return []Profile{}
	}
	users, err := s.backend.SearchProfiles(ctx, q, SearchLimit)
	if err != nil {
		s.failed("search users", err, zap.String("query", q))
		return []Profile{}
	}
	if users == nil {
		users = []Profile{}
	}
	return users
}

// =====================================================
// Projects
// =====================================================

func (s *Service) GetProjectsForUser(ctx context.Context, userID string, userType UserType) []Project {
	key := cache.NewKey(entityProjects, "user_id", userID, "user_type", string(userType))
	return list(ctx, s, key, "list projects", func(ctx context.Context) ([]Project, error) {
		return s.backend.ListProjectsForUser(ctx, userID, userType)
	})
}

// AllProjects bypasses the cache; it serves background sweeps.
func (s *Service) AllProjects(ctx context.Context) []Project {
	projects, err := s.backend.ListProjects(ctx)
	if err != nil {
		s.failed("list all projects", err)
		return []Project{}
	}
	return projects
}

func (s *Service) GetProject(ctx context.Context, id string) *Project {
	p, _ := query(ctx, s, cache.NewKey(entityProject, "project_id", id), "get project",
		func(ctx context.Context) (*Project, error) { return s.backend.GetProject(ctx, id) })
	return p
}

func (s *Service) CreateProject(ctx context.Context, project *Project) *Project {
	now := s.now()
	project.CreatedAt, project.UpdatedAt = now, now
	if project.Status == "" {
		project.Status = ProjectStatusPlanning
	}
	if err := s.backend.CreateProject(ctx, project); err != nil {
		s.failed("create project", err, zap.String("name", project.Name))
		return nil
	}
	s.cache.Invalidate(entityProjects, nil)
	return project
}

func (s *Service) UpdateProject(ctx context.Context, id string, update ProjectUpdate) bool {
	if err := s.backend.UpdateProject(ctx, id, update, s.now()); err != nil {
		s.failed("update project", err, zap.String("project_id", id))
		return false
	}
	s.invalidateProject(id)
	return true
}

// DeleteProject removes the project record only; its checklist, expenses and
// other dependents are left in place.
func (s *Service) DeleteProject(ctx context.Context, id string) bool {
	if err := s.backend.DeleteProject(ctx, id); err != nil {
		s.failed("delete project", err, zap.String("project_id", id))
		return false
	}
	s.invalidateProject(id)
	return true
}

func (s *Service) invalidateProject(id string) {
	s.cache.Invalidate(entityProjects, nil)
	s.cache.Invalidate(entityProject, map[string]string{"project_id": id})
}

// =====================================================
// Checklist
// =====================================================

func (s *Service) GetProjectChecklist(ctx context.Context, projectID string) []ChecklistItem {
	items, ok := s.projectChecklist(ctx, projectID)
	if !ok || items == nil {
		return []ChecklistItem{}
	}
	return items
}

// projectChecklist distinguishes a failed read from an empty checklist so
// progress is never recomputed over a missing list.
func (s *Service) projectChecklist(ctx context.Context, projectID string) ([]ChecklistItem, bool) {
	key := cache.NewKey(entityChecklist, "project_id", projectID)
	return query(ctx, s, key, "list checklist", func(ctx context.Context) ([]ChecklistItem, error) {
		items, err := s.backend.ListChecklistItems(ctx, projectID)
		if err == nil && items == nil {
			items = []ChecklistItem{}
		}
		return items, err
	})
}

// GetChecklistItem reads one item straight from the backend.
func (s *Service) GetChecklistItem(ctx context.Context, id string) *ChecklistItem {
	item, err := s.backend.GetChecklistItem(ctx, id)
	if err != nil {
		s.failed("get checklist item", err, zap.String("item_id", id))
		return nil
	}
	return item
}

func (s *Service) CreateChecklistItem(ctx context.Context, item *ChecklistItem) *ChecklistItem {
	now := s.now()
	item.CreatedAt, item.UpdatedAt = now, now
	if item.Priority == "" {
		item.Priority = PriorityMedium
	}
	if err := s.backend.CreateChecklistItem(ctx, item); err != nil {
		s.failed("create checklist item", err, zap.String("project_id", item.ProjectID))
		return nil
	}
	s.cache.Invalidate(entityChecklist, map[string]string{"project_id": item.ProjectID})
	return item
}

func (s *Service) UpdateChecklistItem(ctx context.Context, id string, update ChecklistItemUpdate) bool {
	if err := s.backend.UpdateChecklistItem(ctx, id, update, s.now()); err != nil {
		s.failed("update checklist item", err, zap.String("item_id", id))
		return false
	}
	s.cache.Invalidate(entityChecklist, nil)
	return true
}

func (s *Service) DeleteChecklistItem(ctx context.Context, id string) bool {
	if err := s.backend.DeleteChecklistItem(ctx, id); err != nil {
		s.failed("delete checklist item", err, zap.String("item_id", id))
		return false
	}
	s.cache.Invalidate(entityChecklist, nil)
	return true
}

// =====================================================
// Expenses
// =====================================================

func (s *Service) GetProjectExpenses(ctx context.Context, projectID string) []ProjectExpense {
	key := cache.NewKey(entityExpenses, "project_id", projectID)
	return list(ctx, s, key, "list expenses", func(ctx context.Context) ([]ProjectExpense, error) {
		return s.backend.ListExpenses(ctx, projectID)
	})
}

func (s *Service) GetExpense(ctx context.Context, id string) *ProjectExpense {
	e, err := s.backend.GetExpense(ctx, id)
	if err != nil {
		s.failed("get expense", err, zap.String("expense_id", id))
		return nil
	}
	return e
}

func (s *Service) CreateProjectExpense(ctx context.Context, expense *ProjectExpense) *ProjectExpense {
	now := s.now()
	expense.CreatedAt, expense.UpdatedAt = now, now
	if expense.Date.IsZero() {
		expense.Date = now
	}
	if err := s.backend.CreateExpense(ctx, expense); err != nil {
		s.failed("create expense", err, zap.String("project_id", expense.ProjectID))
		return nil
	}
	s.cache.Invalidate(entityExpenses, nil)
	return expense
}

func (s *Service) DeleteProjectExpense(ctx context.Context, expenseID, projectID string) bool {
	if err := s.backend.DeleteExpense(ctx, expenseID); err != nil {
		s.failed("delete expense", err, zap.String("expense_id", expenseID))
		return false
	}
	s.cache.Invalidate(entityExpenses, map[string]string{"project_id": projectID})
	return true
}

// =====================================================
// Materials & orders
// =====================================================

func (s *Service) GetMaterials(ctx context.Context) []Material {
	return list(ctx, s, cache.NewKey(entityMaterials), "list materials", s.backend.ListMaterials)
}

func (s *Service) GetMaterialsBySupplier(ctx context.Context, supplierID string) []Material {
	key := cache.NewKey(entityMaterials, "supplier_id", supplierID)
	return list(ctx, s, key, "list supplier materials", func(ctx context.Context) ([]Material, error) {
		return s.backend.ListMaterialsBySupplier(ctx, supplierID)
	})
}

func (s *Service) CreateMaterial(ctx context.Context, material *Material) *Material {
	now := s.now()
	material.CreatedAt, material.UpdatedAt = now, now
	if err := s.backend.CreateMaterial(ctx, material); err != nil {
		s.failed("create material", err, zap.String("supplier_id", material.SupplierID))
		return nil
	}
	s.cache.Invalidate(entityMaterials, nil)
	return material
}

func (s *Service) UpdateMaterial(ctx context.Context, id string, update MaterialUpdate) bool {
	if err := s.backend.UpdateMaterial(ctx, id, update, s.now()); err != nil {
		s.failed("update material", err, zap.String("material_id", id))
		return false
	}
	s.cache.Invalidate(entityMaterials, nil)
	return true
}

func (s *Service) DeleteMaterial(ctx context.Context, id string) bool {
	if err := s.backend.DeleteMaterial(ctx, id); err != nil {
		s.failed("delete material", err, zap.String("material_id", id))
		return false
	}
	s.cache.Invalidate(entityMaterials, nil)
	return true
}

func (s *Service) GetOrdersForProject(ctx context.Context, projectID string) []Order {
	key := cache.NewKey(entityOrders, "project_id", projectID)
	return list(ctx, s, key, "list project orders", func(ctx context.Context) ([]Order, error) {
		return s.backend.ListOrdersForProject(ctx, projectID)
	})
}

func (s *Service) GetOrdersForUser(ctx context.Context, userID string, userType UserType) []Order {
	key := cache.NewKey(entityOrders, "user_id", userID, "user_type", string(userType))
	return list(ctx, s, key, "list user orders", func(ctx context.Context) ([]Order, error) {
		return s.backend.ListOrdersForUser(ctx, userID, userType)
	})
}

func (s *Service) CreateOrder(ctx context.Context, order *Order) *Order {
	now := s.now()
	order.CreatedAt, order.UpdatedAt = now, now
	if order.Status == "" {
		order.Status = OrderPending
	}
	if err := s.backend.CreateOrder(ctx, order); err != nil {
		s.failed("create order", err, zap.String("order_number", order.OrderNumber))
		return nil
	}
	s.cache.Invalidate(entityOrders, nil)
	return order
}

// =====================================================
// Project members & invitations
// =====================================================

func (s *Service) GetProjectUsers(ctx context.Context, projectID string) []ProjectUser {
	key := cache.NewKey(entityProjectUsers, "project_id", projectID)
	return list(ctx, s, key, "list project users", func(ctx context.Context) ([]ProjectUser, error) {
		return s.backend.ListProjectUsers(ctx, projectID)
	})
}

func (s *Service) AddProjectUser(ctx context.Context, pu *ProjectUser) *ProjectUser {
	now := s.now()
	pu.CreatedAt, pu.UpdatedAt = now, now
	if err := s.backend.AddProjectUser(ctx, pu); err != nil {
		s.failed("add project user", err, zap.String("project_id", pu.ProjectID), zap.String("user_id", pu.UserID))
		return nil
	}
	s.cache.Invalidate(entityProjectUsers, nil)
	return pu
}

func (s *Service) RemoveProjectUser(ctx context.Context, id string) bool {
	if err := s.backend.RemoveProjectUser(ctx, id); err != nil {
		s.failed("remove project user", err, zap.String("project_user_id", id))
		return false
	}
	s.cache.Invalidate(entityProjectUsers, nil)
	return true
}

// CreateProjectInvitation stores a pending invitation. Invitations without
// an expiry get the configured invitation TTL.
func (s *Service) CreateProjectInvitation(ctx context.Context, inv *ProjectInvitation) *ProjectInvitation {
	now := s.now()
	inv.CreatedAt, inv.UpdatedAt = now, now
	if inv.Status == "" {
		inv.Status = InvitationPending
	}
	if inv.ExpiresAt.IsZero() {
		inv.ExpiresAt = now.Add(s.invitationTTL)
	}
	if err := s.backend.CreateInvitation(ctx, inv); err != nil {
		s.failed("create invitation", err, zap.String("project_id", inv.ProjectID))
		return nil
	}
	return inv
}

// ExpireInvitations marks overdue pending invitations as expired and returns
// how many changed.
func (s *Service) ExpireInvitations(ctx context.Context) int {
	n, err := s.backend.ExpireInvitations(ctx, s.now())
	if err != nil {
		s.failed("expire invitations", err)
		return 0
	}
	return n
}

// =====================================================
// Site monitoring
// =====================================================

func (s *Service) GetDrones(ctx context.Context) []Drone {
	return list(ctx, s, cache.NewKey(entityDrones), "list drones", s.backend.ListDrones)
}

// UpdateDroneStatus sets the drone status and its project assignment; a nil
// projectID clears the assignment.
func (s *Service) UpdateDroneStatus(ctx context.Context, id string, status DroneStatus, projectID *string) bool {
	if err := s.backend.UpdateDroneStatus(ctx, id, status, projectID, s.now()); err != nil {
		s.failed("update drone status", err, zap.String("drone_id", id))
		return false
	}
	s.cache.Invalidate(entityDrones, nil)
	return true
}

func (s *Service) GetIoTSensorsForProject(ctx context.Context, projectID string) []IoTSensor {
	key := cache.NewKey(entitySensors, "project_id", projectID)
	return list(ctx, s, key, "list sensors", func(ctx context.Context) ([]IoTSensor, error) {
		return s.backend.ListSensorsForProject(ctx, projectID)
	})
}

func (s *Service) CreateIoTThreshold(ctx context.Context, threshold *IoTThreshold) *IoTThreshold {
	now := s.now()
	threshold.CreatedAt, threshold.UpdatedAt = now, now
	if err := s.backend.CreateIoTThreshold(ctx, threshold); err != nil {
		s.failed("create threshold", err, zap.String("project_id", threshold.ProjectID))
		return nil
	}
	return threshold
}

func (s *Service) GetProjectActivities(ctx context.Context, projectID string) []ProjectActivity {
	key := cache.NewKey(entityActivities, "project_id", projectID)
	return list(ctx, s, key, "list activities", func(ctx context.Context) ([]ProjectActivity, error) {
		return s.backend.ListActivities(ctx, projectID)
	})
}

func (s *Service) LogActivity(ctx context.Context, activity *ProjectActivity) *ProjectActivity {
	now := s.now()
	activity.CreatedAt, activity.UpdatedAt = now, now
	if err := s.backend.CreateActivity(ctx, activity); err != nil {
		s.failed("log activity", err, zap.String("project_id", activity.ProjectID))
		return nil
	}
	s.cache.Invalidate(entityActivities, map[string]string{"project_id": activity.ProjectID})
	return activity
}
