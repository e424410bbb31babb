package portal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"teranga-build/portal/portal-backend/internal/auth"
	"teranga-build/portal/portal-backend/pkg/workflows"
)

// Handler serves the portal REST API.
type Handler struct {
	service *Service
	tracker *Tracker
	logger  *zap.Logger
}

// NewHandler creates a portal handler
func NewHandler(service *Service, tracker *Tracker, logger *zap.Logger) *Handler {
	return &Handler{service: service, tracker: tracker, logger: logger}
}

// RegisterRoutes registers portal routes on an authenticated group
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/me/profile", h.getProfile)
	router.PUT("/me/profile", h.updateProfile)
	router.GET("/professionals", h.listProfessionals)
	router.GET("/users/search", h.searchUsers)

	projects := router.Group("/projects")
	{
		projects.GET("", h.listProjects)
		projects.POST("", h.createProject)
		projects.GET("/:id", h.getProject)
		projects.GET("/:id/overview", h.getOverview)
		projects.PUT("/:id", h.updateProject)
		projects.DELETE("/:id", h.deleteProject)
		projects.PUT("/:id/status", h.changeStatus)

		// Checklist
		projects.GET("/:id/checklist", h.listChecklist)
		projects.POST("/:id/checklist", h.createChecklistItem)

		// Expenses
		projects.GET("/:id/expenses", h.listExpenses)
		projects.POST("/:id/expenses", h.createExpense)
		projects.DELETE("/:id/expenses/:expenseId", h.deleteExpense)

		// Members
		projects.GET("/:id/users", h.listProjectUsers)
		projects.POST("/:id/users", h.addProjectUser)
		projects.DELETE("/:id/users/:memberId", h.removeProjectUser)
		projects.POST("/:id/invitations", h.invite)

		// Monitoring
		projects.GET("/:id/orders", h.listProjectOrders)
		projects.GET("/:id/sensors", h.listSensors)
		projects.POST("/:id/thresholds", h.createThreshold)
		projects.GET("/:id/activities", h.listActivities)
		projects.POST("/:id/activities", h.logActivity)
	}

	checklist := router.Group("/checklist")
	{
		checklist.PUT("/:itemId", h.updateChecklistItem)
		checklist.POST("/:itemId/toggle", h.toggleChecklistItem)
		checklist.DELETE("/:itemId", h.deleteChecklistItem)
	}

	materials := router.Group("/materials")
	{
		materials.GET("", h.listMaterials)
		materials.POST("", h.createMaterial)
		materials.PUT("/:id", h.updateMaterial)
		materials.DELETE("/:id", h.deleteMaterial)
	}

	router.GET("/orders", h.listOrders)
	router.POST("/orders", h.createOrder)

	router.GET("/drones", h.listDrones)
	router.PUT("/drones/:id/status", h.updateDroneStatus)
}

// =====================================================
// Profiles
// =====================================================

func (h *Handler) getProfile(c *gin.Context) {
	session := h.session(c)
	profile := h.service.GetProfile(c.Request.Context(), session.UserID)
	if profile == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) updateProfile(c *gin.Context) {
	var req ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	profile := h.service.UpdateProfile(c.Request.Context(), h.session(c).UserID, req)
	if profile == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update profile"})
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) listProfessionals(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.GetProfessionals(c.Request.Context()))
}

func (h *Handler) searchUsers(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.SearchUsers(c.Request.Context(), c.Query("q")))
}

// =====================================================
// Projects
// =====================================================

type createProjectRequest struct {
	Name           string     `json:"name" binding:"required"`
	Description    *string    `json:"description"`
	Location       *string    `json:"location"`
	Budget         *float64   `json:"budget" binding:"omitempty,gte=0"`
	ClientID       string     `json:"client_id"`
	ProfessionalID *string    `json:"professional_id"`
	StartDate      *time.Time `json:"start_date"`
	EndDate        *time.Time `json:"end_date"`
}

func (h *Handler) listProjects(c *gin.Context) {
	session := h.session(c)
	c.JSON(http.StatusOK, h.service.GetProjectsForUser(c.Request.Context(), session.UserID, UserType(session.UserType)))
}

func (h *Handler) createProject(c *gin.Context) {
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session := h.session(c)
	project := &Project{
		Name:           req.Name,
		Description:    req.Description,
		Location:       req.Location,
		Budget:         req.Budget,
		ClientID:       req.ClientID,
		ProfessionalID: req.ProfessionalID,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
	}
	if UserType(session.UserType) == UserTypeProfessional {
		if project.ProfessionalID == nil {
			project.ProfessionalID = &session.UserID
		}
	} else {
		project.ClientID = session.UserID
	}
	if project.ClientID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "client_id is required"})
		return
	}

	created := h.service.CreateProject(c.Request.Context(), project)
	if created == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create project"})
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) getProject(c *gin.Context) {
	project := h.service.GetProject(c.Request.Context(), c.Param("id"))
	if project == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *Handler) getOverview(c *gin.Context) {
	overview, err := h.tracker.Overview(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, overview)
}

type updateProjectRequest struct {
	Name           *string        `json:"name" binding:"omitempty,min=1"`
	Description    *string        `json:"description"`
	Status         *ProjectStatus `json:"status" binding:"omitempty,oneof=planning in_progress completed on_hold"`
	Progress       *int           `json:"progress" binding:"omitempty,gte=0,lte=100"`
	Budget         *float64       `json:"budget" binding:"omitempty,gte=0"`
	Spent          *float64       `json:"spent" binding:"omitempty,gte=0"`
	Location       *string        `json:"location"`
	ProfessionalID *string        `json:"professional_id"`
	StartDate      *time.Time     `json:"start_date"`
	EndDate        *time.Time     `json:"end_date"`
}

// fields returns the non-status part of the request; status goes through the tracker.
func (r updateProjectRequest) fields() ProjectUpdate {
	return ProjectUpdate{
		Name:           r.Name,
		Description:    r.Description,
		Progress:       r.Progress,
		Budget:         r.Budget,
		Spent:          r.Spent,
		Location:       r.Location,
		ProfessionalID: r.ProfessionalID,
		StartDate:      r.StartDate,
		EndDate:        r.EndDate,
	}
}

func (h *Handler) updateProject(c *gin.Context) {
	var req updateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	id := c.Param("id")
	if req.Status != nil && !h.applyStatus(c, id, *req.Status) {
		return
	}
	if update := req.fields(); update != (ProjectUpdate{}) {
		if !h.service.UpdateProject(ctx, id, update) {
			c.JSON(http.StatusNotFound, gin.H{"error": "project not updated"})
			return
		}
	}

	project := h.service.GetProject(ctx, id)
	if project == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *Handler) deleteProject(c *gin.Context) {
	if !h.service.DeleteProject(c.Request.Context(), c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "project not deleted"})
		return
	}
	c.Status(http.StatusNoContent)
}

type changeStatusRequest struct {
	Status ProjectStatus `json:"status" binding:"required,oneof=planning in_progress completed on_hold"`
}

func (h *Handler) changeStatus(c *gin.Context) {
	var req changeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := c.Param("id")
	if !h.applyStatus(c, id, req.Status) {
		return
	}
	c.JSON(http.StatusOK, h.service.GetProject(c.Request.Context(), id))
}

// applyStatus moves the project through the tracker and writes the error
// response when it refuses. A refused transition lists the allowed ones.
func (h *Handler) applyStatus(c *gin.Context, id string, status ProjectStatus) bool {
	ctx := c.Request.Context()
	err := h.tracker.ChangeStatus(ctx, id, status, h.session(c).UserID)
	if err == nil {
		return true
	}
	if errors.Is(err, workflows.ErrInvalidTransition) {
		if project := h.service.GetProject(ctx, id); project != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "allowed": h.tracker.NextStatuses(project.Status)})
			return false
		}
	}
	h.writeError(c, err)
	return false
}

// =====================================================
// Checklist
// =====================================================

type createChecklistItemRequest struct {
	Title             string     `json:"title" binding:"required"`
	Description       *string    `json:"description"`
	OrderIndex        int        `json:"order_index"`
	EstimatedDuration *int       `json:"estimated_duration" binding:"omitempty,gte=0"`
	Priority          Priority   `json:"priority" binding:"omitempty,oneof=low medium high critical"`
	DueDate           *time.Time `json:"due_date"`
	Dependencies      []string   `json:"dependencies"`
	TemplateID        *string    `json:"template_id"`
}

type checklistResponse struct {
	Item     *ChecklistItem `json:"item,omitempty"`
	Progress int            `json:"progress"`
}

func (h *Handler) listChecklist(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.GetProjectChecklist(c.Request.Context(), c.Param("id")))
}

func (h *Handler) createChecklistItem(c *gin.Context) {
	var req createChecklistItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item, pct, err := h.tracker.AddChecklistItem(c.Request.Context(), &ChecklistItem{
		ProjectID:         c.Param("id"),
		TemplateID:        req.TemplateID,
		Title:             req.Title,
		Description:       req.Description,
		OrderIndex:        req.OrderIndex,
		EstimatedDuration: req.EstimatedDuration,
		Priority:          req.Priority,
		DueDate:           req.DueDate,
		Dependencies:      append([]string{}, req.Dependencies...),
	})
	if item == nil {
		h.writeError(c, err)
		return
	}
	h.partial(c, err)
	c.JSON(http.StatusCreated, checklistResponse{Item: item, Progress: pct})
}

func (h *Handler) updateChecklistItem(c *gin.Context) {
	var req ChecklistItemUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := c.Param("itemId")
	if !h.service.UpdateChecklistItem(c.Request.Context(), id, req) {
		c.JSON(http.StatusNotFound, gin.H{"error": "checklist item not updated"})
		return
	}
	c.JSON(http.StatusOK, h.service.GetChecklistItem(c.Request.Context(), id))
}

func (h *Handler) toggleChecklistItem(c *gin.Context) {
	item, pct, err := h.tracker.ToggleChecklistItem(c.Request.Context(), c.Param("itemId"), h.session(c).UserID)
	if item == nil {
		h.writeError(c, err)
		return
	}
	h.partial(c, err)
	c.JSON(http.StatusOK, checklistResponse{Item: item, Progress: pct})
}

func (h *Handler) deleteChecklistItem(c *gin.Context) {
	pct, err := h.tracker.DeleteChecklistItem(c.Request.Context(), c.Param("itemId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, checklistResponse{Progress: pct})
}

// =====================================================
// Expenses
// =====================================================

type createExpenseRequest struct {
	Description string          `json:"description" binding:"required"`
	Amount      float64         `json:"amount" binding:"required,gt=0"`
	Category    ExpenseCategory `json:"category" binding:"required,oneof=materials labor equipment other"`
	Date        *time.Time      `json:"date"`
}

func (h *Handler) listExpenses(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.GetProjectExpenses(c.Request.Context(), c.Param("id")))
}

func (h *Handler) createExpense(c *gin.Context) {
	var req createExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	expense := &ProjectExpense{
		ProjectID:   c.Param("id"),
		Description: req.Description,
		Amount:      req.Amount,
		Category:    req.Category,
		CreatedBy:   h.session(c).UserID,
	}
	if req.Date != nil {
		expense.Date = *req.Date
	}

	created, err := h.tracker.AddExpense(c.Request.Context(), expense)
	if created == nil {
		h.writeError(c, err)
		return
	}
	h.partial(c, err)
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) deleteExpense(c *gin.Context) {
	if err := h.tracker.RemoveExpense(c.Request.Context(), c.Param("id"), c.Param("expenseId")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// =====================================================
// Members & invitations
// =====================================================

type addProjectUserRequest struct {
	UserID      string      `json:"user_id" binding:"required"`
	Role        ProjectRole `json:"role" binding:"required,oneof=owner manager contributor viewer professional"`
	Permissions []string    `json:"permissions"`
}

type inviteRequest struct {
	Email       string      `json:"email" binding:"required,email"`
	Role        ProjectRole `json:"role" binding:"required,oneof=manager contributor viewer professional"`
	Permissions []string    `json:"permissions"`
	Message     *string     `json:"message"`
}

func (h *Handler) listProjectUsers(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.GetProjectUsers(c.Request.Context(), c.Param("id")))
}

func (h *Handler) addProjectUser(c *gin.Context) {
	var req addProjectUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	invitedBy := h.session(c).UserID
	member := h.service.AddProjectUser(c.Request.Context(), &ProjectUser{
		ProjectID:   c.Param("id"),
		UserID:      req.UserID,
		Role:        req.Role,
		Permissions: append([]string{}, req.Permissions...),
		InvitedBy:   &invitedBy,
	})
	if member == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add project user"})
		return
	}
	c.JSON(http.StatusCreated, member)
}

func (h *Handler) removeProjectUser(c *gin.Context) {
	if !h.service.RemoveProjectUser(c.Request.Context(), c.Param("memberId")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "project user not removed"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) invite(c *gin.Context) {
	var req inviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	inv, err := h.tracker.Invite(c.Request.Context(), &ProjectInvitation{
		ProjectID:    c.Param("id"),
		InvitedBy:    h.session(c).UserID,
		InvitedEmail: strings.ToLower(strings.TrimSpace(req.Email)),
		Role:         req.Role,
		Permissions:  append([]string{}, req.Permissions...),
		Message:      req.Message,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, inv)
}

// =====================================================
// Materials & orders
// =====================================================

type createMaterialRequest struct {
	Name          string  `json:"name" binding:"required"`
	Description   *string `json:"description"`
	Price         float64 `json:"price" binding:"gte=0"`
	Unit          string  `json:"unit" binding:"required"`
	StockQuantity int     `json:"stock_quantity" binding:"gte=0"`
	Category      *string `json:"category"`
	ImageURL      *string `json:"image_url"`
}

type createOrderRequest struct {
	SupplierID string  `json:"supplier_id" binding:"required"`
	ProjectID  *string `json:"project_id"`
	MaterialID *string `json:"material_id"`
	Quantity   int     `json:"quantity" binding:"required,gt=0"`
	UnitPrice  float64 `json:"unit_price" binding:"gte=0"`
}

func (h *Handler) listMaterials(c *gin.Context) {
	if supplierID := c.Query("supplier_id"); supplierID != "" {
		c.JSON(http.StatusOK, h.service.GetMaterialsBySupplier(c.Request.Context(), supplierID))
		return
	}
	c.JSON(http.StatusOK, h.service.GetMaterials(c.Request.Context()))
}

func (h *Handler) createMaterial(c *gin.Context) {
	var req createMaterialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	material := h.service.CreateMaterial(c.Request.Context(), &Material{
		Name:          req.Name,
		Description:   req.Description,
		Price:         req.Price,
		Unit:          req.Unit,
		StockQuantity: req.StockQuantity,
		SupplierID:    h.session(c).UserID,
		Category:      req.Category,
		ImageURL:      req.ImageURL,
	})
	if material == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create material"})
		return
	}
	c.JSON(http.StatusCreated, material)
}

func (h *Handler) updateMaterial(c *gin.Context) {
	var req MaterialUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.service.UpdateMaterial(c.Request.Context(), c.Param("id"), req) {
		c.JSON(http.StatusNotFound, gin.H{"error": "material not updated"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) deleteMaterial(c *gin.Context) {
	if !h.service.DeleteMaterial(c.Request.Context(), c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "material not deleted"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listOrders(c *gin.Context) {
	session := h.session(c)
	c.JSON(http.StatusOK, h.service.GetOrdersForUser(c.Request.Context(), session.UserID, UserType(session.UserType)))
}

func (h *Handler) listProjectOrders(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.GetOrdersForProject(c.Request.Context(), c.Param("id")))
}

func (h *Handler) createOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order := h.service.CreateOrder(c.Request.Context(), &Order{
		OrderNumber: newOrderNumber(time.Now()),
		ClientID:    h.session(c).UserID,
		SupplierID:  req.SupplierID,
		ProjectID:   req.ProjectID,
		MaterialID:  req.MaterialID,
		Quantity:    req.Quantity,
		UnitPrice:   req.UnitPrice,
		TotalPrice:  float64(req.Quantity) * req.UnitPrice,
	})
	if order == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create order"})
		return
	}
	c.JSON(http.StatusCreated, order)
}

func newOrderNumber(now time.Time) string {
	return fmt.Sprintf("CMD-%d-%s", now.Year(), strings.ToUpper(uuid.NewString()[:8]))
}

// =====================================================
// Site monitoring
// =====================================================

type droneStatusRequest struct {
	Status    DroneStatus `json:"status" binding:"required,oneof=available in_flight maintenance offline"`
	ProjectID *string     `json:"project_id"`
}

type createThresholdRequest struct {
	SensorType string          `json:"sensor_type" binding:"required"`
	MinValue   *float64        `json:"min_value"`
	MaxValue   *float64        `json:"max_value"`
	Config     json.RawMessage `json:"config"`
}

type logActivityRequest struct {
	ActivityType string `json:"activity_type" binding:"required"`
	Description  string `json:"description" binding:"required"`
}

func (h *Handler) listDrones(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.GetDrones(c.Request.Context()))
}

func (h *Handler) updateDroneStatus(c *gin.Context) {
	var req droneStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.service.UpdateDroneStatus(c.Request.Context(), c.Param("id"), req.Status, req.ProjectID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "drone not updated"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listSensors(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.GetIoTSensorsForProject(c.Request.Context(), c.Param("id")))
}

func (h *Handler) createThreshold(c *gin.Context) {
	var req createThresholdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.MinValue != nil && req.MaxValue != nil && *req.MinValue > *req.MaxValue {
		c.JSON(http.StatusBadRequest, gin.H{"error": "min_value exceeds max_value"})
		return
	}

	threshold := h.service.CreateIoTThreshold(c.Request.Context(), &IoTThreshold{
		ProjectID:  c.Param("id"),
		SensorType: req.SensorType,
		MinValue:   req.MinValue,
		MaxValue:   req.MaxValue,
		Config:     datatypes.JSON(req.Config),
	})
	if threshold == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create threshold"})
		return
	}
	c.JSON(http.StatusCreated, threshold)
}

func (h *Handler) listActivities(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.GetProjectActivities(c.Request.Context(), c.Param("id")))
}

func (h *Handler) logActivity(c *gin.Context) {
	var req logActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	activity := h.service.LogActivity(c.Request.Context(), &ProjectActivity{
		ProjectID:    c.Param("id"),
		ActivityType: req.ActivityType,
		Description:  req.Description,
		UserID:       h.session(c).UserID,
	})
	if activity == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to log activity"})
		return
	}
	c.JSON(http.StatusCreated, activity)
}

// =====================================================
// Helper Methods
// =====================================================

// session returns the caller; routes are mounted behind auth.Middleware.
func (h *Handler) session(c *gin.Context) auth.Session {
	s, _ := auth.SessionFrom(c)
	return s
}

// partial logs a follow-up step that failed after the primary write landed.
func (h *Handler) partial(c *gin.Context, err error) {
	if err != nil {
		h.logger.Warn("Derived update failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, workflows.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
