package export

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"teranga-build/portal/portal-backend/internal/portal"
)

// Handler serves ledger and report downloads.
type Handler struct {
	service *portal.Service
	tracker *portal.Tracker
	now     func() time.Time
	logger  *zap.Logger
}

// NewHandler creates an export handler
func NewHandler(service *portal.Service, tracker *portal.Tracker, logger *zap.Logger) *Handler {
	return &Handler{service: service, tracker: tracker, now: time.Now, logger: logger}
}

// RegisterRoutes registers export routes on an authenticated group
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/projects/:id/expenses/export", h.exportLedger)
	router.GET("/projects/:id/report", h.projectReport)
}

// exportLedger handles GET /projects/:id/expenses/export?format=csv|xlsx|pdf
func (h *Handler) exportLedger(c *gin.Context) {
	format, err := ParseFormat(c.Query("format"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	project := h.service.GetProject(ctx, c.Param("id"))
	if project == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		return
	}
	ledger := NewLedger(*project, h.service.GetProjectExpenses(ctx, project.ID), h.now())

	var buf bytes.Buffer
	if err := ledger.Render(&buf, format); err != nil {
		h.logger.Error("Failed to render ledger",
			zap.String("project_id", project.ID),
			zap.String("format", string(format)),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export expenses"})
		return
	}
	h.send(c, ledger.Filename(format), format, &buf)
}

// projectReport handles GET /projects/:id/report
func (h *Handler) projectReport(c *gin.Context) {
	overview, err := h.tracker.Overview(c.Request.Context(), c.Param("id"))
	if errors.Is(err, portal.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to load project overview", zap.String("project_id", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build report"})
		return
	}

	now := h.now()
	var buf bytes.Buffer
	if err := WriteProjectReport(&buf, overview, now); err != nil {
		h.logger.Error("Failed to render report", zap.String("project_id", overview.Project.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build report"})
		return
	}
	filename := fmt.Sprintf("rapport-%s-%s.pdf", overview.Project.ID, now.Format("20060102"))
	h.send(c, filename, FormatPDF, &buf)
}

func (h *Handler) send(c *gin.Context, filename string, format Format, buf *bytes.Buffer) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}
