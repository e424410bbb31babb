package portal

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"teranga-build/portal/portal-backend/pkg/workflows"
)

func newTestTracker(t *testing.T, opts TrackerOptions) (*Tracker, *Service) {
	t.Helper()
	svc, _, _ := newTestService(t)
	return NewTracker(svc, zap.NewNop(), opts), svc
}

func spentOf(t *testing.T, svc *Service, projectID string) float64 {
	t.Helper()
	p := svc.GetProject(context.Background(), projectID)
	require.NotNil(t, p)
	return p.SpentAmount()
}

func TestExpenseLedgerKeepsSpentInStep(t *testing.T) {
	tracker, svc := newTestTracker(t, TrackerOptions{})
	ctx := context.Background()

	start := 500000.0
	require.True(t, svc.UpdateProject(ctx, "demo-project-1", ProjectUpdate{Spent: &start}))

	expense, err := tracker.AddExpense(ctx, &ProjectExpense{
		ProjectID: "demo-project-1", Description: "Location bétonnière", Amount: 100000,
		Category: ExpenseEquipment, CreatedBy: "demo-pro-1",
	})
	require.NoError(t, err)
	assert.Equal(t, 600000.0, spentOf(t, svc, "demo-project-1"))
	assert.Len(t, svc.GetProjectExpenses(ctx, "demo-project-1"), 3)

	require.NoError(t, tracker.RemoveExpense(ctx, "demo-project-1", expense.ID))
	assert.Equal(t, 500000.0, spentOf(t, svc, "demo-project-1"))

	// demo-expense-2 is 850000, more than what is left
	require.NoError(t, tracker.RemoveExpense(ctx, "demo-project-1", "demo-expense-2"))
	assert.Equal(t, 0.0, spentOf(t, svc, "demo-project-1"))
}

func TestAddExpenseRejectsBadInput(t *testing.T) {
	tracker, _ := newTestTracker(t, TrackerOptions{})
	ctx := context.Background()

	_, err := tracker.AddExpense(ctx, &ProjectExpense{ProjectID: "demo-project-1", Amount: 0})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = tracker.AddExpense(ctx, &ProjectExpense{ProjectID: "missing", Amount: 10})
	assert.ErrorIs(t, err, ErrNotFound)

	err = tracker.RemoveExpense(ctx, "demo-project-2", "demo-expense-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestToggleSetsAndClearsCompletionTogether(t *testing.T) {
	tracker, svc := newTestTracker(t, TrackerOptions{})
	ctx := context.Background()

	item, pct, err := tracker.ToggleChecklistItem(ctx, "demo-checklist-8", "demo-pro-2")
	require.NoError(t, err)
	assert.True(t, item.IsCompleted)
	require.NotNil(t, item.CompletedAt)
	require.NotNil(t, item.CompletedBy)
	assert.Equal(t, "demo-pro-2", *item.CompletedBy)
	assert.Equal(t, 67, pct)

	p := svc.GetProject(ctx, "demo-project-1")
	assert.Equal(t, 67, p.Progress)

	item, pct, err = tracker.ToggleChecklistItem(ctx, "demo-checklist-8", "demo-pro-2")
	require.NoError(t, err)
	assert.False(t, item.IsCompleted)
	assert.Nil(t, item.CompletedAt)
	assert.Nil(t, item.CompletedBy)
	assert.Equal(t, 58, pct)

	stored := svc.GetChecklistItem(ctx, "demo-checklist-8")
	assert.False(t, stored.IsCompleted)
	assert.Nil(t, stored.CompletedAt)

	_, _, err = tracker.ToggleChecklistItem(ctx, "missing", "demo-pro-2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProgressDependsOnlyOnFinalChecklist(t *testing.T) {
	ctx := context.Background()

	first, svc1 := newTestTracker(t, TrackerOptions{})
	_, _, err := first.ToggleChecklistItem(ctx, "demo-checklist-8", "demo-pro-1")
	require.NoError(t, err)
	_, _, err = first.ToggleChecklistItem(ctx, "demo-checklist-9", "demo-pro-1")
	require.NoError(t, err)
	_, err = first.DeleteChecklistItem(ctx, "demo-checklist-10")
	require.NoError(t, err)

	second, svc2 := newTestTracker(t, TrackerOptions{})
	_, err = second.DeleteChecklistItem(ctx, "demo-checklist-10")
	require.NoError(t, err)
	_, _, err = second.ToggleChecklistItem(ctx, "demo-checklist-9", "demo-pro-1")
	require.NoError(t, err)
	_, _, err = second.ToggleChecklistItem(ctx, "demo-checklist-8", "demo-pro-1")
	require.NoError(t, err)

	// 9 of 11 completed
	assert.Equal(t, 82, svc1.GetProject(ctx, "demo-project-1").Progress)
	assert.Equal(t, 82, svc2.GetProject(ctx, "demo-project-1").Progress)
}

func TestDeletingLastItemResetsProgress(t *testing.T) {
	tracker, svc := newTestTracker(t, TrackerOptions{})
	ctx := context.Background()

	created, pct, err := tracker.AddChecklistItem(ctx, &ChecklistItem{ProjectID: "demo-project-2", Title: "Implantation", OrderIndex: 1})
	require.NoError(t, err)
	assert.Equal(t, 0, pct)

	_, pct, err = tracker.ToggleChecklistItem(ctx, created.ID, "demo-pro-1")
	require.NoError(t, err)
	assert.Equal(t, 100, pct)

	pct, err = tracker.DeleteChecklistItem(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, pct)
	assert.Equal(t, 0, svc.GetProject(ctx, "demo-project-2").Progress)
}

func TestChangeStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("strict rejects illegal transition", func(t *testing.T) {
		tracker, svc := newTestTracker(t, TrackerOptions{StrictStatusTransitions: true})

		err := tracker.ChangeStatus(ctx, "demo-project-1", ProjectStatusPlanning, "demo-client-1")
		assert.True(t, errors.Is(err, workflows.ErrInvalidTransition))
		assert.Equal(t, ProjectStatusInProgress, svc.GetProject(ctx, "demo-project-1").Status)

		require.NoError(t, tracker.ChangeStatus(ctx, "demo-project-1", ProjectStatusOnHold, "demo-client-1"))
		assert.Equal(t, ProjectStatusOnHold, svc.GetProject(ctx, "demo-project-1").Status)
	})

	t.Run("lenient accepts any status and logs activity", func(t *testing.T) {
		tracker, svc := newTestTracker(t, TrackerOptions{})

		require.NoError(t, tracker.ChangeStatus(ctx, "demo-project-1", ProjectStatusPlanning, "demo-client-1"))
		assert.Equal(t, ProjectStatusPlanning, svc.GetProject(ctx, "demo-project-1").Status)

		activities := svc.GetProjectActivities(ctx, "demo-project-1")
		require.Len(t, activities, 3)
		assert.Equal(t, "status_change", activities[0].ActivityType)
		assert.Contains(t, activities[0].Description, "En cours")
		assert.Contains(t, activities[0].Description, "Planification")
	})

	t.Run("unknown project", func(t *testing.T) {
		tracker, _ := newTestTracker(t, TrackerOptions{})
		assert.ErrorIs(t, tracker.ChangeStatus(ctx, "missing", ProjectStatusCompleted, "x"), ErrNotFound)
	})
}

func TestOverview(t *testing.T) {
	tracker, _ := newTestTracker(t, TrackerOptions{})

	overview, err := tracker.Overview(context.Background(), "demo-project-1")
	require.NoError(t, err)

	assert.Equal(t, "En cours", overview.StatusLabel)
	assert.Equal(t, "bg-blue-100 text-blue-800", overview.StatusColor)
	assert.Equal(t, 58, overview.ChecklistProgress)
	assert.False(t, overview.Delay.IsDelayed)
	assert.Equal(t, "45\u202f000\u202f000\u00a0F CFA", overview.Budget)
	assert.Equal(t, "29\u202f250\u202f000\u00a0F CFA", overview.Spent)

	require.Len(t, overview.Checklist, 12)
	assert.Empty(t, overview.Checklist[7].BlockedBy)
	assert.Equal(t, []string{"demo-checklist-8"}, overview.Checklist[8].BlockedBy)
	assert.ElementsMatch(t, []ProjectStatus{ProjectStatusCompleted, ProjectStatusOnHold}, overview.NextStatuses)

	_, err = tracker.Overview(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNextStatuses(t *testing.T) {
	tracker, _ := newTestTracker(t, TrackerOptions{})

	assert.Equal(t, []ProjectStatus{ProjectStatusInProgress}, tracker.NextStatuses(ProjectStatusOnHold))
	assert.Empty(t, tracker.NextStatuses(ProjectStatusCompleted))
	assert.Empty(t, tracker.NextStatuses("archived"))
}

func TestDelayedProjects(t *testing.T) {
	tracker, svc := newTestTracker(t, TrackerOptions{})
	ctx := context.Background()

	delayed := tracker.DelayedProjects(ctx)
	require.Len(t, delayed, 1)
	assert.Equal(t, "demo-project-2", delayed[0].Project.ID)
	assert.True(t, delayed[0].Delay.IsDelayed)
	assert.Equal(t, 30, delayed[0].Delay.DelayDays)

	onHold := ProjectStatusOnHold
	require.True(t, svc.UpdateProject(ctx, "demo-project-2", ProjectUpdate{Status: &onHold}))
	assert.Empty(t, tracker.DelayedProjects(ctx))
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) InvitationCreated(ctx context.Context, inv *ProjectInvitation, project *Project) error {
	return m.Called(ctx, inv, project).Error(0)
}

func TestInviteNotifiesAndSurvivesNotifierFailure(t *testing.T) {
	notifier := &mockNotifier{}
	notifier.On("InvitationCreated", mock.Anything,
		mock.MatchedBy(func(inv *ProjectInvitation) bool { return inv.InvitedEmail == "archi@example.sn" }),
		mock.MatchedBy(func(p *Project) bool { return p.ID == "demo-project-1" }),
	).Return(errors.New("ses throttled"))

	tracker, _ := newTestTracker(t, TrackerOptions{Notifier: notifier})

	inv, err := tracker.Invite(context.Background(), &ProjectInvitation{
		ProjectID: "demo-project-1", InvitedBy: "demo-client-1", InvitedEmail: "archi@example.sn", Role: RoleContributor,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, inv.ID)
	assert.Equal(t, InvitationPending, inv.Status)
	notifier.AssertExpectations(t)

	_, err = tracker.Invite(context.Background(), &ProjectInvitation{ProjectID: "missing", InvitedEmail: "x@y.sn"})
	assert.ErrorIs(t, err, ErrNotFound)
	notifier.AssertNumberOfCalls(t, "InvitationCreated", 1)
}
