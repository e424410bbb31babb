package portal

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"

	"teranga-build/portal/portal-backend/internal/progress"
)

// UserType distinguishes project owners from building professionals.
type UserType string

const (
	UserTypeClient       UserType = "client"
	UserTypeProfessional UserType = "professional"
)

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

const (
	ProjectStatusPlanning   ProjectStatus = "planning"
	ProjectStatusInProgress ProjectStatus = "in_progress"
	ProjectStatusCompleted  ProjectStatus = "completed"
	ProjectStatusOnHold     ProjectStatus = "on_hold"
)

// Priority of a checklist item.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// ExpenseCategory classifies a project expense.
type ExpenseCategory string

const (
	ExpenseMaterials ExpenseCategory = "materials"
	ExpenseLabor     ExpenseCategory = "labor"
	ExpenseEquipment ExpenseCategory = "equipment"
	ExpenseOther     ExpenseCategory = "other"
)

// OrderStatus of a material order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderPreparing OrderStatus = "preparing"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

type SensorStatus string

const (
	SensorNormal   SensorStatus = "normal"
	SensorWarning  SensorStatus = "warning"
	SensorCritical SensorStatus = "critical"
)

type DroneStatus string

const (
	DroneAvailable   DroneStatus = "available"
	DroneInFlight    DroneStatus = "in_flight"
	DroneMaintenance DroneStatus = "maintenance"
	DroneOffline     DroneStatus = "offline"
)

type ProjectRole string

const (
	RoleOwner        ProjectRole = "owner"
	RoleManager      ProjectRole = "manager"
	RoleContributor  ProjectRole = "contributor"
	RoleViewer       ProjectRole = "viewer"
	RoleProfessional ProjectRole = "professional"
)

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
	InvitationExpired  InvitationStatus = "expired"
)

// =====================================================
// Records
// =====================================================

// Profile is a portal user.
type Profile struct {
	ID          string    `json:"id" db:"id" gorm:"primaryKey;type:text"`
	Email       string    `json:"email" db:"email" gorm:"not null;index"`
	FullName    *string   `json:"full_name,omitempty" db:"full_name"`
	UserType    UserType  `json:"user_type" db:"user_type" gorm:"type:varchar(20);not null"`
	CompanyName *string   `json:"company_name,omitempty" db:"company_name"`
	Phone       *string   `json:"phone,omitempty" db:"phone"`
	AvatarURL   *string   `json:"avatar_url,omitempty" db:"avatar_url"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

func (Profile) TableName() string { return "profiles" }

// ProfileSummary is the embedded view of a profile on other records.
type ProfileSummary struct {
	ID          string  `json:"id"`
	FullName    *string `json:"full_name,omitempty"`
	Email       string  `json:"email"`
	CompanyName *string `json:"company_name,omitempty"`
	Phone       *string `json:"phone,omitempty"`
}

func (p *Profile) Summary() *ProfileSummary {
	if p == nil {
		return nil
	}
	return &ProfileSummary{ID: p.ID, FullName: p.FullName, Email: p.Email, CompanyName: p.CompanyName, Phone: p.Phone}
}

// Project is a construction project owned by a client.
type Project struct {
	ID             string        `json:"id" db:"id" gorm:"primaryKey;type:text"`
	Name           string        `json:"name" db:"name" gorm:"not null"`
	Description    *string       `json:"description,omitempty" db:"description"`
	Status         ProjectStatus `json:"status" db:"status" gorm:"type:varchar(20);not null;default:planning"`
	Progress       int           `json:"progress" db:"progress" gorm:"not null;default:0"`
	Budget         *float64      `json:"budget,omitempty" db:"budget"`
	Spent          *float64      `json:"spent,omitempty" db:"spent"`
	Location       *string       `json:"location,omitempty" db:"location"`
	ClientID       string        `json:"client_id" db:"client_id" gorm:"type:text;not null;index"`
	ProfessionalID *string       `json:"professional_id,omitempty" db:"professional_id" gorm:"type:text;index"`
	StartDate      *time.Time    `json:"start_date,omitempty" db:"start_date" gorm:"type:date"`
	EndDate        *time.Time    `json:"end_date,omitempty" db:"end_date" gorm:"type:date"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at" db:"updated_at"`

	Client       *ProfileSummary `json:"client,omitempty" db:"-" gorm:"-"`
	Professional *ProfileSummary `json:"professional,omitempty" db:"-" gorm:"-"`
}

func (Project) TableName() string { return "projects" }

// Schedule returns the temporal view used by the delay engine.
func (p *Project) Schedule() progress.Schedule {
	return progress.Schedule{StartDate: p.StartDate, EndDate: p.EndDate, Progress: p.Progress}
}

// SpentAmount returns Spent or 0 when unset.
func (p *Project) SpentAmount() float64 {
	if p.Spent == nil {
		return 0
	}
	return *p.Spent
}

// ChecklistItem is one step of a project checklist.
type ChecklistItem struct {
	ID                string         `json:"id" db:"id" gorm:"primaryKey;type:text"`
	ProjectID         string         `json:"project_id" db:"project_id" gorm:"type:text;not null;index"`
	TemplateID        *string        `json:"template_id,omitempty" db:"template_id"`
	Title             string         `json:"title" db:"title" gorm:"not null"`
	Description       *string        `json:"description,omitempty" db:"description"`
	OrderIndex        int            `json:"order_index" db:"order_index" gorm:"not null;default:0"`
	EstimatedDuration *int           `json:"estimated_duration,omitempty" db:"estimated_duration"`
	Dependencies      pq.StringArray `json:"dependencies" db:"dependencies" gorm:"type:text[]"`
	IsCompleted       bool           `json:"is_completed" db:"is_completed" gorm:"not null;default:false"`
	CompletedAt       *time.Time     `json:"completed_at,omitempty" db:"completed_at"`
	CompletedBy       *string        `json:"completed_by,omitempty" db:"completed_by"`
	DueDate           *time.Time     `json:"due_date,omitempty" db:"due_date" gorm:"type:date"`
	Priority          Priority       `json:"priority" db:"priority" gorm:"type:varchar(20);not null;default:medium"`
	CreatedAt         time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at" db:"updated_at"`
}

func (ChecklistItem) TableName() string { return "project_checklist_items" }

func (c ChecklistItem) Completed() bool         { return c.IsCompleted }
func (c ChecklistItem) StepID() string          { return c.ID }
func (c ChecklistItem) Prerequisites() []string { return c.Dependencies }

// ProjectExpense is a ledger line of a project.
type ProjectExpense struct {
	ID          string          `json:"id" db:"id" gorm:"primaryKey;type:text"`
	ProjectID   string          `json:"project_id" db:"project_id" gorm:"type:text;not null;index"`
	Description string          `json:"description" db:"description" gorm:"not null"`
	Amount      float64         `json:"amount" db:"amount" gorm:"not null"`
	Category    ExpenseCategory `json:"category" db:"category" gorm:"type:varchar(20);not null"`
	Date        time.Time       `json:"date" db:"date" gorm:"type:date;not null"`
	CreatedBy   string          `json:"created_by" db:"created_by" gorm:"type:text;not null"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

func (ProjectExpense) TableName() string { return "project_expenses" }

// Material is a catalog entry offered by a supplier.
type Material struct {
	ID            string    `json:"id" db:"id" gorm:"primaryKey;type:text"`
	Name          string    `json:"name" db:"name" gorm:"not null"`
	Description   *string   `json:"description,omitempty" db:"description"`
	Price         float64   `json:"price" db:"price" gorm:"not null"`
	Unit          string    `json:"unit" db:"unit" gorm:"not null"`
	StockQuantity int       `json:"stock_quantity" db:"stock_quantity" gorm:"not null;default:0"`
	SupplierID    string    `json:"supplier_id" db:"supplier_id" gorm:"type:text;not null;index"`
	Category      *string   `json:"category,omitempty" db:"category"`
	Rating        float64   `json:"rating" db:"rating" gorm:"not null;default:0"`
	ImageURL      *string   `json:"image_url,omitempty" db:"image_url"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`

	Supplier *ProfileSummary `json:"supplier,omitempty" db:"-" gorm:"-"`
}

func (Material) TableName() string { return "materials" }

// Order is a material purchase.
type Order struct {
	ID          string      `json:"id" db:"id" gorm:"primaryKey;type:text"`
	OrderNumber string      `json:"order_number" db:"order_number" gorm:"not null;uniqueIndex"`
	ClientID    string      `json:"client_id" db:"client_id" gorm:"type:text;not null;index"`
	SupplierID  string      `json:"supplier_id" db:"supplier_id" gorm:"type:text;not null;index"`
	ProjectID   *string     `json:"project_id,omitempty" db:"project_id" gorm:"type:text;index"`
	MaterialID  *string     `json:"material_id,omitempty" db:"material_id" gorm:"type:text"`
	Quantity    int         `json:"quantity" db:"quantity" gorm:"not null"`
	UnitPrice   float64     `json:"unit_price" db:"unit_price" gorm:"not null"`
	TotalPrice  float64     `json:"total_price" db:"total_price" gorm:"not null"`
	Status      OrderStatus `json:"status" db:"status" gorm:"type:varchar(20);not null;default:pending"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`

	MaterialName *string `json:"material_name,omitempty" db:"-" gorm:"-"`
	ProjectName  *string `json:"project_name,omitempty" db:"-" gorm:"-"`
}

func (Order) TableName() string { return "orders" }

// ProjectUser grants a profile a role on a project.
type ProjectUser struct {
	ID          string         `json:"id" db:"id" gorm:"primaryKey;type:text"`
	ProjectID   string         `json:"project_id" db:"project_id" gorm:"type:text;not null;index"`
	UserID      string         `json:"user_id" db:"user_id" gorm:"type:text;not null;index"`
	Role        ProjectRole    `json:"role" db:"role" gorm:"type:varchar(20);not null"`
	Permissions pq.StringArray `json:"permissions" db:"permissions" gorm:"type:text[]"`
	InvitedBy   *string        `json:"invited_by,omitempty" db:"invited_by"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`

	User *ProfileSummary `json:"user,omitempty" db:"-" gorm:"-"`
}

func (ProjectUser) TableName() string { return "project_users" }

// ProjectInvitation is a pending grant addressed to an email.
type ProjectInvitation struct {
	ID            string           `json:"id" db:"id" gorm:"primaryKey;type:text"`
	ProjectID     string           `json:"project_id" db:"project_id" gorm:"type:text;not null;index"`
	InvitedBy     string           `json:"invited_by" db:"invited_by" gorm:"type:text;not null"`
	InvitedEmail  string           `json:"invited_email" db:"invited_email" gorm:"not null;index"`
	InvitedUserID *string          `json:"invited_user_id,omitempty" db:"invited_user_id"`
	Role          ProjectRole      `json:"role" db:"role" gorm:"type:varchar(20);not null"`
	Permissions   pq.StringArray   `json:"permissions" db:"permissions" gorm:"type:text[]"`
	Status        InvitationStatus `json:"status" db:"status" gorm:"type:varchar(20);not null;default:pending;index"`
	Message       *string          `json:"message,omitempty" db:"message"`
	ExpiresAt     time.Time        `json:"expires_at" db:"expires_at" gorm:"not null"`
	RespondedAt   *time.Time       `json:"responded_at,omitempty" db:"responded_at"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at" db:"updated_at"`
}

func (ProjectInvitation) TableName() string { return "project_invitations" }

// IoTSensor is the latest reading of a site sensor.
type IoTSensor struct {
	ID         string       `json:"id" db:"id" gorm:"primaryKey;type:text"`
	ProjectID  string       `json:"project_id" db:"project_id" gorm:"type:text;not null;index"`
	SensorType string       `json:"sensor_type" db:"sensor_type" gorm:"not null"`
	Location   string       `json:"location" db:"location"`
	Value      float64      `json:"value" db:"value"`
	Unit       string       `json:"unit" db:"unit"`
	Status     SensorStatus `json:"status" db:"status" gorm:"type:varchar(20);not null;default:normal"`
	CreatedAt  time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at" db:"updated_at"`
}

func (IoTSensor) TableName() string { return "iot_sensors" }

// IoTThreshold configures alert bounds for a sensor type on a project.
type IoTThreshold struct {
	ID         string         `json:"id" db:"id" gorm:"primaryKey;type:text"`
	ProjectID  string         `json:"project_id" db:"project_id" gorm:"type:text;not null;index"`
	SensorType string         `json:"sensor_type" db:"sensor_type" gorm:"not null"`
	MinValue   *float64       `json:"min_value,omitempty" db:"min_value"`
	MaxValue   *float64       `json:"max_value,omitempty" db:"max_value"`
	Config     datatypes.JSON `json:"config,omitempty" db:"config" gorm:"type:jsonb"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at" db:"updated_at"`
}

func (IoTThreshold) TableName() string { return "iot_thresholds" }

// Drone is a site survey drone.
type Drone struct {
	ID           string      `json:"id" db:"id" gorm:"primaryKey;type:text"`
	Name         string      `json:"name" db:"name" gorm:"not null"`
	Model        *string     `json:"model,omitempty" db:"model"`
	Status       DroneStatus `json:"status" db:"status" gorm:"type:varchar(20);not null;default:available"`
	BatteryLevel int         `json:"battery_level" db:"battery_level"`
	Altitude     *float64    `json:"altitude,omitempty" db:"altitude"`
	ProjectID    *string     `json:"project_id,omitempty" db:"project_id" gorm:"type:text;index"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"`
}

func (Drone) TableName() string { return "drones" }

// ProjectActivity is an entry of the project timeline.
type ProjectActivity struct {
	ID           string    `json:"id" db:"id" gorm:"primaryKey;type:text"`
	ProjectID    string    `json:"project_id" db:"project_id" gorm:"type:text;not null;index"`
	ActivityType string    `json:"activity_type" db:"activity_type" gorm:"not null"`
	Description  string    `json:"description" db:"description"`
	UserID       string    `json:"user_id" db:"user_id" gorm:"type:text"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

func (ProjectActivity) TableName() string { return "project_activities" }

// AllModels lists every persisted record type, in migration order.
func AllModels() []interface{} {
	return []interface{}{
		&Profile{},
		&Project{},
		&ChecklistItem{},
		&ProjectExpense{},
		&Material{},
		&Order{},
		&ProjectUser{},
		&ProjectInvitation{},
		&IoTSensor{},
		&IoTThreshold{},
		&Drone{},
		&ProjectActivity{},
	}
}

// =====================================================
// Patches
// =====================================================

// ProfileUpdate holds the profile fields a user may change.
type ProfileUpdate struct {
	FullName    *string `json:"full_name"`
	CompanyName *string `json:"company_name"`
	Phone       *string `json:"phone"`
	AvatarURL   *string `json:"avatar_url"`
}

func (u ProfileUpdate) apply(p *Profile) {
	if u.FullName != nil {
		p.FullName = u.FullName
	}
	if u.CompanyName != nil {
		p.CompanyName = u.CompanyName
	}
	if u.Phone != nil {
		p.Phone = u.Phone
	}
	if u.AvatarURL != nil {
		p.AvatarURL = u.AvatarURL
	}
}

func (u ProfileUpdate) columns() []column {
	var cols []column
	cols = appendIf(cols, "full_name", u.FullName)
	cols = appendIf(cols, "company_name", u.CompanyName)
	cols = appendIf(cols, "phone", u.Phone)
	cols = appendIf(cols, "avatar_url", u.AvatarURL)
	return cols
}

// ProjectUpdate is a partial project change; nil fields are left untouched.
type ProjectUpdate struct {
	Name           *string        `json:"name"`
	Description    *string        `json:"description"`
	Status         *ProjectStatus `json:"status"`
	Progress       *int           `json:"progress"`
	Budget         *float64       `json:"budget"`
	Spent          *float64       `json:"spent"`
	Location       *string        `json:"location"`
	ProfessionalID *string        `json:"professional_id"`
	StartDate      *time.Time     `json:"start_date"`
	EndDate        *time.Time     `json:"end_date"`
}

func (u ProjectUpdate) apply(p *Project) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Description != nil {
		p.Description = u.Description
	}
	if u.Status != nil {
		p.Status = *u.Status
	}
	if u.Progress != nil {
		p.Progress = *u.Progress
	}
	if u.Budget != nil {
		p.Budget = u.Budget
	}
	if u.Spent != nil {
		p.Spent = u.Spent
	}
	if u.Location != nil {
		p.Location = u.Location
	}
	if u.ProfessionalID != nil {
		p.ProfessionalID = u.ProfessionalID
	}
	if u.StartDate != nil {
		p.StartDate = u.StartDate
	}
	if u.EndDate != nil {
		p.EndDate = u.EndDate
	}
}

func (u ProjectUpdate) columns() []column {
	var cols []column
	cols = appendIf(cols, "name", u.Name)
	cols = appendIf(cols, "description", u.Description)
	cols = appendIf(cols, "status", u.Status)
	cols = appendIf(cols, "progress", u.Progress)
	cols = appendIf(cols, "budget", u.Budget)
	cols = appendIf(cols, "spent", u.Spent)
	cols = appendIf(cols, "location", u.Location)
	cols = appendIf(cols, "professional_id", u.ProfessionalID)
	cols = appendIf(cols, "start_date", u.StartDate)
	cols = appendIf(cols, "end_date", u.EndDate)
	return cols
}

// Completion sets or clears the completion state of a checklist item.
// CompletedAt and CompletedBy travel together with IsCompleted.
type Completion struct {
	IsCompleted bool
	At          *time.Time
	By          *string
}

// ChecklistItemUpdate is a partial checklist item change.
type ChecklistItemUpdate struct {
	Title             *string     `json:"title"`
	Description       *string     `json:"description"`
	OrderIndex        *int        `json:"order_index"`
	EstimatedDuration *int        `json:"estimated_duration"`
	Priority          *Priority   `json:"priority"`
	DueDate           *time.Time  `json:"due_date"`
	Dependencies      []string    `json:"dependencies"`
	Completion        *Completion `json:"-"`
}

func (u ChecklistItemUpdate) apply(c *ChecklistItem) {
	if u.Title != nil {
		c.Title = *u.Title
	}
	if u.Description != nil {
		c.Description = u.Description
	}
	if u.OrderIndex != nil {
		c.OrderIndex = *u.OrderIndex
	}
	if u.EstimatedDuration != nil {
		c.EstimatedDuration = u.EstimatedDuration
	}
	if u.Priority != nil {
		c.Priority = *u.Priority
	}
	if u.DueDate != nil {
		c.DueDate = u.DueDate
	}
	if u.Dependencies != nil {
		c.Dependencies = pq.StringArray(u.Dependencies)
	}
	if u.Completion != nil {
		c.IsCompleted = u.Completion.IsCompleted
		c.CompletedAt = u.Completion.At
		c.CompletedBy = u.Completion.By
	}
}

func (u ChecklistItemUpdate) columns() []column {
	var cols []column
	cols = appendIf(cols, "title", u.Title)
	cols = appendIf(cols, "description", u.Description)
	cols = appendIf(cols, "order_index", u.OrderIndex)
	cols = appendIf(cols, "estimated_duration", u.EstimatedDuration)
	cols = appendIf(cols, "priority", u.Priority)
	cols = appendIf(cols, "due_date", u.DueDate)
	if u.Dependencies != nil {
		cols = append(cols, column{"dependencies", pq.StringArray(u.Dependencies)})
	}
	if u.Completion != nil {
		cols = append(cols,
			column{"is_completed", u.Completion.IsCompleted},
			column{"completed_at", u.Completion.At},
			column{"completed_by", u.Completion.By},
		)
	}
	return cols
}

// MaterialUpdate is a partial catalog entry change.
type MaterialUpdate struct {
	Name          *string  `json:"name"`
	Description   *string  `json:"description"`
	Price         *float64 `json:"price"`
	Unit          *string  `json:"unit"`
	StockQuantity *int     `json:"stock_quantity"`
	Category      *string  `json:"category"`
	ImageURL      *string  `json:"image_url"`
}

func (u MaterialUpdate) apply(m *Material) {
	if u.Name != nil {
		m.Name = *u.Name
	}
	if u.Description != nil {
		m.Description = u.Description
	}
	if u.Price != nil {
		m.Price = *u.Price
	}
	if u.Unit != nil {
		m.Unit = *u.Unit
	}
	if u.StockQuantity != nil {
		m.StockQuantity = *u.StockQuantity
	}
	if u.Category != nil {
		m.Category = u.Category
	}
	if u.ImageURL != nil {
		m.ImageURL = u.ImageURL
	}
}

func (u MaterialUpdate) columns() []column {
	var cols []column
	cols = appendIf(cols, "name", u.Name)
	cols = appendIf(cols, "description", u.Description)
	cols = appendIf(cols, "price", u.Price)
	cols = appendIf(cols, "unit", u.Unit)
	cols = appendIf(cols, "stock_quantity", u.StockQuantity)
	cols = appendIf(cols, "category", u.Category)
	cols = appendIf(cols, "image_url", u.ImageURL)
	return cols
}

// column is one SET assignment of a partial update.
type column struct {
	name  string
	value interface{}
}

func appendIf[T any](cols []column, name string, v *T) []column {
	if v == nil {
		return cols
	}
	return append(cols, column{name, *v})
}
