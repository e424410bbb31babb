package portal

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by a Backend when the addressed record does not exist.
var ErrNotFound = errors.New("record not found")

// Backend is the persistence contract shared by the Postgres repository and
// the in-memory fixture repository. Create methods assign the record id when
// it is empty; timestamps are stamped by the caller. Lists are ordered by
// created_at descending unless stated otherwise.
type Backend interface {
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	UpdateProfile(ctx context.Context, userID string, update ProfileUpdate, at time.Time) (*Profile, error)
	SearchProfiles(ctx context.Context, query string, limit int) ([]Profile, error)
	ListProfessionals(ctx context.Context) ([]Profile, error)

	ListProjects(ctx context.Context) ([]Project, error)
	ListProjectsForUser(ctx context.Context, userID string, userType UserType) ([]Project, error)
	GetProject(ctx context.Context, id string) (*Project, error)
	CreateProject(ctx context.Context, project *Project) error
	UpdateProject(ctx context.Context, id string, update ProjectUpdate, at time.Time) error
	DeleteProject(ctx context.Context, id string) error

	// ListChecklistItems orders by order_index ascending.
	ListChecklistItems(ctx context.Context, projectID string) ([]ChecklistItem, error)
	GetChecklistItem(ctx context.Context, id string) (*ChecklistItem, error)
	CreateChecklistItem(ctx context.Context, item *ChecklistItem) error
	UpdateChecklistItem(ctx context.Context, id string, update ChecklistItemUpdate, at time.Time) error
	DeleteChecklistItem(ctx context.Context, id string) error

	ListExpenses(ctx context.Context, projectID string) ([]ProjectExpense, error)
	GetExpense(ctx context.Context, id string) (*ProjectExpense, error)
	CreateExpense(ctx context.Context, expense *ProjectExpense) error
	DeleteExpense(ctx context.Context, id string) error

	ListMaterials(ctx context.Context) ([]Material, error)
	ListMaterialsBySupplier(ctx context.Context, supplierID string) ([]Material, error)
	CreateMaterial(ctx context.Context, material *Material) error
	UpdateMaterial(ctx context.Context, id string, update MaterialUpdate, at time.Time) error
	DeleteMaterial(ctx context.Context, id string) error

	ListOrdersForProject(ctx context.Context, projectID string) ([]Order, error)
	ListOrdersForUser(ctx context.Context, userID string, userType UserType) ([]Order, error)
	CreateOrder(ctx context.Context, order *Order) error

	ListProjectUsers(ctx context.Context, projectID string) ([]ProjectUser, error)
	AddProjectUser(ctx context.Context, pu *ProjectUser) error
	RemoveProjectUser(ctx context.Context, id string) error

	CreateInvitation(ctx context.Context, inv *ProjectInvitation) error
	// ExpireInvitations marks pending invitations past their expiry as expired.
	ExpireInvitations(ctx context.Context, now time.Time) (int, error)

	ListDrones(ctx context.Context) ([]Drone, error)
	UpdateDroneStatus(ctx context.Context, id string, status DroneStatus, projectID *string, at time.Time) error

	ListSensorsForProject(ctx context.Context, projectID string) ([]IoTSensor, error)
	CreateIoTThreshold(ctx context.Context, threshold *IoTThreshold) error

	ListActivities(ctx context.Context, projectID string) ([]ProjectActivity, error)
	CreateActivity(ctx context.Context, activity *ProjectActivity) error
}
