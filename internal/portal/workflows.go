package portal

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"teranga-build/portal/portal-backend/internal/progress"
	"teranga-build/portal/portal-backend/pkg/workflows"
)

var (
	// ErrWriteFailed means the façade rejected a write; the cause is logged.
	ErrWriteFailed = errors.New("write failed")
	// ErrInvalidAmount is returned for non-positive expense amounts.
	ErrInvalidAmount = errors.New("amount must be positive")
)

// InvitationNotifier is told about every invitation the tracker creates.
type InvitationNotifier interface {
	InvitationCreated(ctx context.Context, inv *ProjectInvitation, project *Project) error
}

// TrackerOptions configures a Tracker.
type TrackerOptions struct {
	StrictStatusTransitions bool
	Notifier                InvitationNotifier
}

// Tracker runs the multi-step project workflows on top of the façade and
// keeps the derived project fields (progress, spent) in step with the
// checklist and expense ledger.
type Tracker struct {
	service  *Service
	states   *workflows.StateMachine
	strict   bool
	notifier InvitationNotifier
	logger   *zap.Logger
}

// NewTracker creates a tracker over service.
func NewTracker(service *Service, logger *zap.Logger, opts TrackerOptions) *Tracker {
	return &Tracker{
		service:  service,
		states:   workflows.NewStateMachine(),
		strict:   opts.StrictStatusTransitions,
		notifier: opts.Notifier,
		logger:   logger,
	}
}

// =====================================================
// Checklist
// =====================================================

// RecomputeProgress derives project progress from its checklist and persists it.
func (t *Tracker) RecomputeProgress(ctx context.Context, projectID string) (int, error) {
	items, ok := t.service.projectChecklist(ctx, projectID)
	if !ok {
		return 0, fmt.Errorf("failed to read checklist of %s: %w", projectID, ErrWriteFailed)
	}
	pct := progress.ChecklistProgress(items)
	if !t.service.UpdateProject(ctx, projectID, ProjectUpdate{Progress: &pct}) {
		return 0, fmt.Errorf("failed to store progress of %s: %w", projectID, ErrWriteFailed)
	}
	return pct, nil
}

// ToggleChecklistItem flips the completion of an item on behalf of actorID
// and returns the updated item with the new project progress. Declared
// dependencies are not checked.
func (t *Tracker) ToggleChecklistItem(ctx context.Context, itemID, actorID string) (*ChecklistItem, int, error) {
	item := t.service.GetChecklistItem(ctx, itemID)
	if item == nil {
		return nil, 0, ErrNotFound
	}

	completion := &Completion{IsCompleted: !item.IsCompleted}
	if completion.IsCompleted {
		at := t.service.now()
		completion.At, completion.By = &at, &actorID
	}
	update := ChecklistItemUpdate{Completion: completion}
	if !t.service.UpdateChecklistItem(ctx, itemID, update) {
		return nil, 0, ErrWriteFailed
	}
	update.apply(item)

	pct, err := t.RecomputeProgress(ctx, item.ProjectID)
	if err != nil {
		return item, 0, err
	}
	t.logger.Debug("Checklist item toggled",
		zap.String("item_id", itemID),
		zap.Bool("completed", item.IsCompleted),
		zap.Int("progress", pct))
	return item, pct, nil
}

// AddChecklistItem appends an item and refreshes project progress.
func (t *Tracker) AddChecklistItem(ctx context.Context, item *ChecklistItem) (*ChecklistItem, int, error) {
	created := t.service.CreateChecklistItem(ctx, item)
	if created == nil {
		return nil, 0, ErrWriteFailed
	}
	pct, err := t.RecomputeProgress(ctx, created.ProjectID)
	return created, pct, err
}

// DeleteChecklistItem removes an item and recomputes progress over the rest.
func (t *Tracker) DeleteChecklistItem(ctx context.Context, itemID string) (int, error) {
	item := t.service.GetChecklistItem(ctx, itemID)
	if item == nil {
		return 0, ErrNotFound
	}
	if !t.service.DeleteChecklistItem(ctx, itemID) {
		return 0, ErrWriteFailed
	}
	return t.RecomputeProgress(ctx, item.ProjectID)
}

// =====================================================
// Expenses
// =====================================================

// AddExpense records an expense and adds its amount to the project spent total.
func (t *Tracker) AddExpense(ctx context.Context, expense *ProjectExpense) (*ProjectExpense, error) {
	if expense.Amount <= 0 || math.IsNaN(expense.Amount) {
		return nil, ErrInvalidAmount
	}
	project := t.service.GetProject(ctx, expense.ProjectID)
	if project == nil {
		return nil, ErrNotFound
	}

	created := t.service.CreateProjectExpense(ctx, expense)
	if created == nil {
		return nil, ErrWriteFailed
	}
	spent := project.SpentAmount() + created.Amount
	if !t.service.UpdateProject(ctx, project.ID, ProjectUpdate{Spent: &spent}) {
		return created, fmt.Errorf("failed to update spent of %s: %w", project.ID, ErrWriteFailed)
	}
	return created, nil
}

// RemoveExpense deletes an expense and subtracts its amount from the project
// spent total, never going below zero.
func (t *Tracker) RemoveExpense(ctx context.Context, projectID, expenseID string) error {
	expense := t.service.GetExpense(ctx, expenseID)
	if expense == nil || expense.ProjectID != projectID {
		return ErrNotFound
	}
	project := t.service.GetProject(ctx, projectID)
	if project == nil {
		return ErrNotFound
	}

	if !t.service.DeleteProjectExpense(ctx, expenseID, projectID) {
		return ErrWriteFailed
	}
	spent := math.Max(0, project.SpentAmount()-expense.Amount)
	if !t.service.UpdateProject(ctx, projectID, ProjectUpdate{Spent: &spent}) {
		return fmt.Errorf("failed to update spent of %s: %w", projectID, ErrWriteFailed)
	}
	return nil
}

// =====================================================
// Status & overview
// =====================================================

// ChangeStatus moves a project to status. The lifecycle is only enforced
// when strict transitions are enabled.
func (t *Tracker) ChangeStatus(ctx context.Context, projectID string, status ProjectStatus, actorID string) error {
	project := t.service.GetProject(ctx, projectID)
	if project == nil {
		return ErrNotFound
	}
	from := project.Status
	if t.strict {
		if err := t.states.Validate(string(from), string(status)); err != nil {
			return err
		}
	}
	if !t.service.UpdateProject(ctx, projectID, ProjectUpdate{Status: &status}) {
		return ErrWriteFailed
	}

	if from != status {
		t.service.LogActivity(ctx, &ProjectActivity{
			ProjectID:    projectID,
			ActivityType: "status_change",
			Description:  fmt.Sprintf("Statut : %s → %s", StatusLabel(string(from)), StatusLabel(string(status))),
			UserID:       actorID,
		})
	}
	return nil
}

// NextStatuses lists the statuses a project in status may move to under the
// strict lifecycle.
func (t *Tracker) NextStatuses(status ProjectStatus) []ProjectStatus {
	allowed := t.states.GetAllowedTransitions(string(status))
	next := make([]ProjectStatus, len(allowed))
	for i, s := range allowed {
		next[i] = ProjectStatus(s)
	}
	return next
}

// ChecklistEntry is a checklist item with its open prerequisites.
type ChecklistEntry struct {
	ChecklistItem
	BlockedBy []string `json:"blocked_by,omitempty"`
}

// ProjectOverview is the dashboard view of one project.
type ProjectOverview struct {
	Project           *Project         `json:"project"`
	StatusLabel       string           `json:"status_label"`
	StatusColor       string           `json:"status_color"`
	ChecklistProgress int              `json:"checklist_progress"`
	Delay             progress.Delay   `json:"delay"`
	Budget            string           `json:"budget_label,omitempty"`
	Spent             string           `json:"spent_label"`
	Checklist         []ChecklistEntry `json:"checklist"`
	NextStatuses      []ProjectStatus  `json:"next_statuses"`
}

// Overview assembles the project, its checklist progress and schedule delay.
func (t *Tracker) Overview(ctx context.Context, projectID string) (*ProjectOverview, error) {
	project := t.service.GetProject(ctx, projectID)
	if project == nil {
		return nil, ErrNotFound
	}
	items := t.service.GetProjectChecklist(ctx, projectID)

	entries := make([]ChecklistEntry, len(items))
	for i, item := range items {
		entries[i] = ChecklistEntry{ChecklistItem: item}
		if !item.IsCompleted {
			entries[i].BlockedBy = progress.UnmetDependencies(items, item.ID)
		}
	}

	overview := &ProjectOverview{
		Project:           project,
		StatusLabel:       StatusLabel(string(project.Status)),
		StatusColor:       StatusColor(string(project.Status)),
		ChecklistProgress: progress.ChecklistProgress(items),
		Delay:             t.service.ScheduleDelay(project),
		Spent:             FormatCurrency(project.SpentAmount()),
		Checklist:         entries,
		NextStatuses:      t.NextStatuses(project.Status),
	}
	if project.Budget != nil {
		overview.Budget = FormatCurrency(*project.Budget)
	}
	return overview, nil
}

// DelayedProject pairs a project with its delay classification.
type DelayedProject struct {
	Project Project
	Delay   progress.Delay
}

// DelayedProjects scans every active project against the schedule.
func (t *Tracker) DelayedProjects(ctx context.Context) []DelayedProject {
	var delayed []DelayedProject
	for _, p := range t.service.AllProjects(ctx) {
		if p.Status == ProjectStatusCompleted || p.Status == ProjectStatusOnHold {
			continue
		}
		if d := t.service.ScheduleDelay(&p); d.IsDelayed {
			delayed = append(delayed, DelayedProject{Project: p, Delay: d})
		}
	}
	return delayed
}

// =====================================================
// Invitations
// =====================================================

// Invite stores an invitation and notifies the invitee. A failed
// notification is logged and does not undo the invitation.
func (t *Tracker) Invite(ctx context.Context, inv *ProjectInvitation) (*ProjectInvitation, error) {
	project := t.service.GetProject(ctx, inv.ProjectID)
	if project == nil {
		return nil, ErrNotFound
	}
	created := t.service.CreateProjectInvitation(ctx, inv)
	if created == nil {
		return nil, ErrWriteFailed
	}
	if t.notifier != nil {
		if err := t.notifier.InvitationCreated(ctx, created, project); err != nil {
			t.logger.Warn("Failed to send invitation",
				zap.String("invitation_id", created.ID),
				zap.String("email", created.InvitedEmail),
				zap.Error(err))
		}
	}
	return created, nil
}
