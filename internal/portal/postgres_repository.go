package portal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// PostgresRepository is the live Backend.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a repository over an open connection pool.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

var _ Backend = (*PostgresRepository)(nil)

const (
	profileColumns = `id, email, full_name, user_type, company_name, phone, avatar_url, created_at, updated_at`

	projectSelect = `
		SELECT pr.id, pr.name, pr.description, pr.status, pr.progress, pr.budget, pr.spent,
			pr.location, pr.client_id, pr.professional_id, pr.start_date, pr.end_date,
			pr.created_at, pr.updated_at,
			c.email AS client_email, c.full_name AS client_full_name,
			c.company_name AS client_company_name, c.phone AS client_phone,
			pf.email AS professional_email, pf.full_name AS professional_full_name,
			pf.company_name AS professional_company_name, pf.phone AS professional_phone
		FROM projects pr
		LEFT JOIN profiles c ON c.id = pr.client_id
		LEFT JOIN profiles pf ON pf.id = pr.professional_id`

	checklistColumns = `id, project_id, template_id, title, description, order_index, estimated_duration,
		dependencies, is_completed, completed_at, completed_by, due_date, priority, created_at, updated_at`

	expenseColumns = `id, project_id, description, amount, category, date, created_by, created_at, updated_at`

	materialSelect = `
		SELECT m.id, m.name, m.description, m.price, m.unit, m.stock_quantity, m.supplier_id,
			m.category, m.rating, m.image_url, m.created_at, m.updated_at,
			s.email AS supplier_email, s.full_name AS supplier_full_name,
			s.company_name AS supplier_company_name, s.phone AS supplier_phone
		FROM materials m
		LEFT JOIN profiles s ON s.id = m.supplier_id`

	orderSelect = `
		SELECT o.id, o.order_number, o.client_id, o.supplier_id, o.project_id, o.material_id,
			o.quantity, o.unit_price, o.total_price, o.status, o.created_at, o.updated_at,
			m.name AS material_name, pr.name AS project_name
		FROM orders o
		LEFT JOIN materials m ON m.id = o.material_id
		LEFT JOIN projects pr ON pr.id = o.project_id`

	projectUserSelect = `
		SELECT pu.id, pu.project_id, pu.user_id, pu.role, pu.permissions, pu.invited_by,
			pu.created_at, pu.updated_at,
			u.email AS user_email, u.full_name AS user_full_name,
			u.company_name AS user_company_name, u.phone AS user_phone
		FROM project_users pu
		LEFT JOIN profiles u ON u.id = pu.user_id`
)

// summaryColumns receives the joined profile columns of one embedded summary.
type summaryColumns struct {
	Email       *string
	FullName    *string
	CompanyName *string
	Phone       *string
}

func (s summaryColumns) summary(id string) *ProfileSummary {
	if s.Email == nil {
		return nil
	}
	return &ProfileSummary{ID: id, Email: *s.Email, FullName: s.FullName, CompanyName: s.CompanyName, Phone: s.Phone}
}

type projectRow struct {
	Project
	ClientEmail             *string `db:"client_email"`
	ClientFullName          *string `db:"client_full_name"`
	ClientCompanyName       *string `db:"client_company_name"`
	ClientPhone             *string `db:"client_phone"`
	ProfessionalEmail       *string `db:"professional_email"`
	ProfessionalFullName    *string `db:"professional_full_name"`
	ProfessionalCompanyName *string `db:"professional_company_name"`
	ProfessionalPhone       *string `db:"professional_phone"`
}

func (r projectRow) toProject() Project {
	p := r.Project
	p.Client = summaryColumns{r.ClientEmail, r.ClientFullName, r.ClientCompanyName, r.ClientPhone}.summary(p.ClientID)
	if p.ProfessionalID != nil {
		p.Professional = summaryColumns{
			r.ProfessionalEmail, r.ProfessionalFullName, r.ProfessionalCompanyName, r.ProfessionalPhone,
		}.summary(*p.ProfessionalID)
	}
	return p
}

type materialRow struct {
	Material
	SupplierEmail       *string `db:"supplier_email"`
	SupplierFullName    *string `db:"supplier_full_name"`
	SupplierCompanyName *string `db:"supplier_company_name"`
	SupplierPhone       *string `db:"supplier_phone"`
}

type orderRow struct {
	Order
	JoinedMaterialName *string `db:"material_name"`
	JoinedProjectName  *string `db:"project_name"`
}

type projectUserRow struct {
	ProjectUser
	UserEmail       *string `db:"user_email"`
	UserFullName    *string `db:"user_full_name"`
	UserCompanyName *string `db:"user_company_name"`
	UserPhone       *string `db:"user_phone"`
}

// =====================================================
// Profiles
// =====================================================

func (r *PostgresRepository) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	var p Profile
	err := r.db.GetContext(ctx, &p, "SELECT "+profileColumns+" FROM profiles WHERE id = $1", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &p, nil
}

func (r *PostgresRepository) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate, at time.Time) (*Profile, error) {
	if err := r.update(ctx, "profiles", userID, update.columns(), at); err != nil {
		return nil, err
	}
	return r.GetProfile(ctx, userID)
}

func (r *PostgresRepository) SearchProfiles(ctx context.Context, query string, limit int) ([]Profile, error) {
	pattern := "%" + escapeLike(query) + "%"
	var profiles []Profile
	err := r.db.SelectContext(ctx, &profiles, `
		SELECT `+profileColumns+` FROM profiles
		WHERE full_name ILIKE $1 OR email ILIKE $1 OR company_name ILIKE $1
		ORDER BY created_at DESC
		LIMIT $2`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search profiles: %w", err)
	}
	return profiles, nil
}

func (r *PostgresRepository) ListProfessionals(ctx context.Context) ([]Profile, error) {
	var profiles []Profile
	err := r.db.SelectContext(ctx, &profiles,
		"SELECT "+profileColumns+" FROM profiles WHERE user_type = $1 ORDER BY created_at DESC", UserTypeProfessional)
	if err != nil {
		return nil, fmt.Errorf("failed to list professionals: %w", err)
	}
	return profiles, nil
}

// =====================================================
// Projects
// =====================================================

func (r *PostgresRepository) selectProjects(ctx context.Context, where string, args ...interface{}) ([]Project, error) {
	var rows []projectRow
	query := projectSelect + " " + where + " ORDER BY pr.created_at DESC"
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	projects := make([]Project, len(rows))
	for i, row := range rows {
		projects[i] = row.toProject()
	}
	return projects, nil
}

func (r *PostgresRepository) ListProjects(ctx context.Context) ([]Project, error) {
	projects, err := r.selectProjects(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, nil
}

func (r *PostgresRepository) ListProjectsForUser(ctx context.Context, userID string, userType UserType) ([]Project, error) {
	where := "WHERE pr.client_id = $1"
	if userType == UserTypeProfessional {
		where = "WHERE pr.professional_id = $1"
	}
	projects, err := r.selectProjects(ctx, where, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects for user: %w", err)
	}
	return projects, nil
}

func (r *PostgresRepository) GetProject(ctx context.Context, id string) (*Project, error) {
	projects, err := r.selectProjects(ctx, "WHERE pr.id = $1", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	if len(projects) == 0 {
		return nil, ErrNotFound
	}
	return &projects[0], nil
}

func (r *PostgresRepository) CreateProject(ctx context.Context, project *Project) error {
	if project.ID == "" {
		project.ID = uuid.NewString()
	}
	query := `
		INSERT INTO projects (
			id, name, description, status, progress, budget, spent, location,
			client_id, professional_id, start_date, end_date, created_at, updated_at
		) VALUES (
			:id, :name, :description, :status, :progress, :budget, :spent, :location,
			:client_id, :professional_id, :start_date, :end_date, :created_at, :updated_at
		)`
	if _, err := r.db.NamedExecContext(ctx, query, project); err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UpdateProject(ctx context.Context, id string, update ProjectUpdate, at time.Time) error {
	return r.update(ctx, "projects", id, update.columns(), at)
}

func (r *PostgresRepository) DeleteProject(ctx context.Context, id string) error {
	return r.delete(ctx, "projects", id)
}

// =====================================================
// Checklist
// =====================================================

func (r *PostgresRepository) ListChecklistItems(ctx context.Context, projectID string) ([]ChecklistItem, error) {
	var items []ChecklistItem
	err := r.db.SelectContext(ctx, &items,
		"SELECT "+checklistColumns+" FROM project_checklist_items WHERE project_id = $1 ORDER BY order_index ASC", projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list checklist items: %w", err)
	}
	return items, nil
}

func (r *PostgresRepository) GetChecklistItem(ctx context.Context, id string) (*ChecklistItem, error) {
	var item ChecklistItem
	err := r.db.GetContext(ctx, &item, "SELECT "+checklistColumns+" FROM project_checklist_items WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get checklist item: %w", err)
	}
	return &item, nil
}

func (r *PostgresRepository) CreateChecklistItem(ctx context.Context, item *ChecklistItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	query := `
		INSERT INTO project_checklist_items (
			id, project_id, template_id, title, description, order_index, estimated_duration,
			dependencies, is_completed, completed_at, completed_by, due_date, priority, created_at, updated_at
		) VALUES (
			:id, :project_id, :template_id, :title, :description, :order_index, :estimated_duration,
			:dependencies, :is_completed, :completed_at, :completed_by, :due_date, :priority, :created_at, :updated_at
		)`
	if _, err := r.db.NamedExecContext(ctx, query, item); err != nil {
		return fmt.Errorf("failed to create checklist item: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UpdateChecklistItem(ctx context.Context, id string, update ChecklistItemUpdate, at time.Time) error {
	return r.update(ctx, "project_checklist_items", id, update.columns(), at)
}

func (r *PostgresRepository) DeleteChecklistItem(ctx context.Context, id string) error {
	return r.delete(ctx, "project_checklist_items", id)
}

// =====================================================
// Expenses
// =====================================================

func (r *PostgresRepository) ListExpenses(ctx context.Context, projectID string) ([]ProjectExpense, error) {
	var expenses []ProjectExpense
	err := r.db.SelectContext(ctx, &expenses,
		"SELECT "+expenseColumns+" FROM project_expenses WHERE project_id = $1 ORDER BY created_at DESC", projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	return expenses, nil
}

func (r *PostgresRepository) GetExpense(ctx context.Context, id string) (*ProjectExpense, error) {
	var e ProjectExpense
	err := r.db.GetContext(ctx, &e, "SELECT "+expenseColumns+" FROM project_expenses WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	return &e, nil
}

func (r *PostgresRepository) CreateExpense(ctx context.Context, expense *ProjectExpense) error {
	if expense.ID == "" {
		expense.ID = uuid.NewString()
	}
	query := `
		INSERT INTO project_expenses (
			id, project_id, description, amount, category, date, created_by, created_at, updated_at
		) VALUES (
			:id, :project_id, :description, :amount, :category, :date, :created_by, :created_at, :updated_at
		)`
	if _, err := r.db.NamedExecContext(ctx, query, expense); err != nil {
		return fmt.Errorf("failed to create expense: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteExpense(ctx context.Context, id string) error {
	return r.delete(ctx, "project_expenses", id)
}

// =====================================================
// Materials & orders
// =====================================================

func (r *PostgresRepository) selectMaterials(ctx context.Context, where string, args ...interface{}) ([]Material, error) {
	var rows []materialRow
	if err := r.db.SelectContext(ctx, &rows, materialSelect+" "+where+" ORDER BY m.created_at DESC", args...); err != nil {
		return nil, err
	}
	materials := make([]Material, len(rows))
	for i, row := range rows {
		m := row.Material
		m.Supplier = summaryColumns{row.SupplierEmail, row.SupplierFullName, row.SupplierCompanyName, row.SupplierPhone}.summary(m.SupplierID)
		materials[i] = m
	}
	return materials, nil
}

func (r *PostgresRepository) ListMaterials(ctx context.Context) ([]Material, error) {
	materials, err := r.selectMaterials(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list materials: %w", err)
	}
	return materials, nil
}

func (r *PostgresRepository) ListMaterialsBySupplier(ctx context.Context, supplierID string) ([]Material, error) {
	materials, err := r.selectMaterials(ctx, "WHERE m.supplier_id = $1", supplierID)
	if err != nil {
		return nil, fmt.Errorf("failed to list supplier materials: %w", err)
	}
	return materials, nil
}

func (r *PostgresRepository) CreateMaterial(ctx context.Context, material *Material) error {
	if material.ID == "" {
		material.ID = uuid.NewString()
	}
	query := `
		INSERT INTO materials (
			id, name, description, price, unit, stock_quantity, supplier_id, category, rating,
			image_url, created_at, updated_at
		) VALUES (
			:id, :name, :description, :price, :unit, :stock_quantity, :supplier_id, :category, :rating,
			:image_url, :created_at, :updated_at
		)`
	if _, err := r.db.NamedExecContext(ctx, query, material); err != nil {
		return fmt.Errorf("failed to create material: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UpdateMaterial(ctx context.Context, id string, update MaterialUpdate, at time.Time) error {
	return r.update(ctx, "materials", id, update.columns(), at)
}

func (r *PostgresRepository) DeleteMaterial(ctx context.Context, id string) error {
	return r.delete(ctx, "materials", id)
}

func (r *PostgresRepository) selectOrders(ctx context.Context, where string, args ...interface{}) ([]Order, error) {
	var rows []orderRow
	if err := r.db.SelectContext(ctx, &rows, orderSelect+" "+where+" ORDER BY o.created_at DESC", args...); err != nil {
		return nil, err
	}
	orders := make([]Order, len(rows))
	for i, row := range rows {
		o := row.Order
		o.MaterialName = row.JoinedMaterialName
		o.ProjectName = row.JoinedProjectName
		orders[i] = o
	}
	return orders, nil
}

func (r *PostgresRepository) ListOrdersForProject(ctx context.Context, projectID string) ([]Order, error) {
	orders, err := r.selectOrders(ctx, "WHERE o.project_id = $1", projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list project orders: %w", err)
	}
	return orders, nil
}

// ListOrdersForUser returns a client's own orders, or for a professional the
// orders they supply plus the orders of projects they run.
func (r *PostgresRepository) ListOrdersForUser(ctx context.Context, userID string, userType UserType) ([]Order, error) {
	where := "WHERE o.client_id = $1"
	if userType == UserTypeProfessional {
		where = "WHERE o.supplier_id = $1 OR pr.professional_id = $1"
	}
	orders, err := r.selectOrders(ctx, where, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user orders: %w", err)
	}
	return orders, nil
}

func (r *PostgresRepository) CreateOrder(ctx context.Context, order *Order) error {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	query := `
		INSERT INTO orders (
			id, order_number, client_id, supplier_id, project_id, material_id, quantity,
			unit_price, total_price, status, created_at, updated_at
		) VALUES (
			:id, :order_number, :client_id, :supplier_id, :project_id, :material_id, :quantity,
			:unit_price, :total_price, :status, :created_at, :updated_at
		)`
	if _, err := r.db.NamedExecContext(ctx, query, order); err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// =====================================================
// Project members & invitations
// =====================================================

func (r *PostgresRepository) ListProjectUsers(ctx context.Context, projectID string) ([]ProjectUser, error) {
	var rows []projectUserRow
	err := r.db.SelectContext(ctx, &rows, projectUserSelect+" WHERE pu.project_id = $1 ORDER BY pu.created_at DESC", projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list project users: %w", err)
	}
	users := make([]ProjectUser, len(rows))
	for i, row := range rows {
		pu := row.ProjectUser
		pu.User = summaryColumns{row.UserEmail, row.UserFullName, row.UserCompanyName, row.UserPhone}.summary(pu.UserID)
		users[i] = pu
	}
	return users, nil
}

func (r *PostgresRepository) AddProjectUser(ctx context.Context, pu *ProjectUser) error {
	if pu.ID == "" {
		pu.ID = uuid.NewString()
	}
	query := `
		INSERT INTO project_users (
			id, project_id, user_id, role, permissions, invited_by, created_at, updated_at
		) VALUES (
			:id, :project_id, :user_id, :role, :permissions, :invited_by, :created_at, :updated_at
		)`
	if _, err := r.db.NamedExecContext(ctx, query, pu); err != nil {
		return fmt.Errorf("failed to add project user: %w", err)
	}
	return nil
}

func (r *PostgresRepository) RemoveProjectUser(ctx context.Context, id string) error {
	return r.delete(ctx, "project_users", id)
}

func (r *PostgresRepository) CreateInvitation(ctx context.Context, inv *ProjectInvitation) error {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	query := `
		INSERT INTO project_invitations (
			id, project_id, invited_by, invited_email, invited_user_id, role, permissions,
			status, message, expires_at, responded_at, created_at, updated_at
		) VALUES (
			:id, :project_id, :invited_by, :invited_email, :invited_user_id, :role, :permissions,
			:status, :message, :expires_at, :responded_at, :created_at, :updated_at
		)`
	if _, err := r.db.NamedExecContext(ctx, query, inv); err != nil {
		return fmt.Errorf("failed to create invitation: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ExpireInvitations(ctx context.Context, now time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE project_invitations SET status = $1, updated_at = $2
		WHERE status = $3 AND expires_at < $2`, InvitationExpired, now, InvitationPending)
	if err != nil {
		return 0, fmt.Errorf("failed to expire invitations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return int(n), nil
}

// =====================================================
// Site monitoring
// =====================================================

func (r *PostgresRepository) ListDrones(ctx context.Context) ([]Drone, error) {
	var drones []Drone
	err := r.db.SelectContext(ctx, &drones, `
		SELECT id, name, model, status, battery_level, altitude, project_id, created_at, updated_at
		FROM drones ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list drones: %w", err)
	}
	return drones, nil
}

func (r *PostgresRepository) UpdateDroneStatus(ctx context.Context, id string, status DroneStatus, projectID *string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE drones SET status = $1, project_id = $2, updated_at = $3 WHERE id = $4",
		status, projectID, at, id)
	if err != nil {
		return fmt.Errorf("failed to update drone status: %w", err)
	}
	return affected(res)
}

func (r *PostgresRepository) ListSensorsForProject(ctx context.Context, projectID string) ([]IoTSensor, error) {
	var sensors []IoTSensor
	err := r.db.SelectContext(ctx, &sensors, `
		SELECT id, project_id, sensor_type, location, value, unit, status, created_at, updated_at
		FROM iot_sensors WHERE project_id = $1 ORDER BY created_at DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sensors: %w", err)
	}
	return sensors, nil
}

func (r *PostgresRepository) CreateIoTThreshold(ctx context.Context, threshold *IoTThreshold) error {
	if threshold.ID == "" {
		threshold.ID = uuid.NewString()
	}
	query := `
		INSERT INTO iot_thresholds (
			id, project_id, sensor_type, min_value, max_value, config, created_at, updated_at
		) VALUES (
			:id, :project_id, :sensor_type, :min_value, :max_value, :config, :created_at, :updated_at
		)`
	if _, err := r.db.NamedExecContext(ctx, query, threshold); err != nil {
		return fmt.Errorf("failed to create threshold: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListActivities(ctx context.Context, projectID string) ([]ProjectActivity, error) {
	var activities []ProjectActivity
	err := r.db.SelectContext(ctx, &activities, `
		SELECT id, project_id, activity_type, description, user_id, created_at, updated_at
		FROM project_activities WHERE project_id = $1 ORDER BY created_at DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	return activities, nil
}

func (r *PostgresRepository) CreateActivity(ctx context.Context, activity *ProjectActivity) error {
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	query := `
		INSERT INTO project_activities (
			id, project_id, activity_type, description, user_id, created_at, updated_at
		) VALUES (
			:id, :project_id, :activity_type, :description, :user_id, :created_at, :updated_at
		)`
	if _, err := r.db.NamedExecContext(ctx, query, activity); err != nil {
		return fmt.Errorf("failed to create activity: %w", err)
	}
	return nil
}

// =====================================================
// Helpers
// =====================================================

// update applies a partial update and stamps updated_at.
func (r *PostgresRepository) update(ctx context.Context, table, id string, cols []column, at time.Time) error {
	cols = append(cols, column{"updated_at", at})

	sets := make([]string, len(cols))
	args := make([]interface{}, 0, len(cols)+1)
	for i, col := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", col.name, i+1)
		args = append(args, col.value)
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d", table, strings.Join(sets, ", "), len(args))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", table, err)
	}
	return affected(res)
}

func (r *PostgresRepository) delete(ctx context.Context, table, id string) error {
	res, err := r.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", table), id)
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	return affected(res)
}

func affected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
