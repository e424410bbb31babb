package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"teranga-build/portal/portal-backend/internal/portal"
)

type mockArchiver struct {
	mock.Mock
}

func (m *mockArchiver) ArchiveLedgers(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func newScheduler(t *testing.T, now time.Time, archiver LedgerArchiver, cfg Config) (*Scheduler, *portal.Service) {
	t.Helper()
	clock := func() time.Time { return now }
	svc := portal.NewService(portal.NewFixtureRepository(), zap.NewNop(), portal.Options{Now: clock, Fixture: true})
	tracker := portal.NewTracker(svc, zap.NewNop(), portal.TrackerOptions{})
	cfg.Registerer = prometheus.NewRegistry()
	s, err := NewScheduler(svc, tracker, archiver, zap.NewNop(), cfg)
	require.NoError(t, err)
	return s, svc
}

func TestSweepDelaysSetsGauge(t *testing.T) {
	s, _ := newScheduler(t, time.Date(2024, 5, 15, 9, 0, 0, 0, time.UTC), nil, Config{})

	delayed := s.SweepDelays(context.Background())
	require.Len(t, delayed, 1)
	assert.Equal(t, "demo-project-2", delayed[0].Project.ID)
	assert.Equal(t, 1.0, testutil.ToFloat64(s.delayedProjects))
}

func TestSweepInvitations(t *testing.T) {
	now := time.Date(2024, 5, 15, 9, 0, 0, 0, time.UTC)
	s, svc := newScheduler(t, now, nil, Config{})
	ctx := context.Background()

	require.NotNil(t, svc.CreateProjectInvitation(ctx, &portal.ProjectInvitation{
		ProjectID: "demo-project-1", InvitedEmail: "late@example.sn", Role: portal.RoleViewer,
		ExpiresAt: now.Add(-time.Hour),
	}))
	require.NotNil(t, svc.CreateProjectInvitation(ctx, &portal.ProjectInvitation{
		ProjectID: "demo-project-1", InvitedEmail: "fresh@example.sn", Role: portal.RoleViewer,
	}))

	assert.Equal(t, 1, s.SweepInvitations(ctx))
	assert.Equal(t, 0, s.SweepInvitations(ctx))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.expiredInvitations))
}

func TestArchiveLedgersCountsFailures(t *testing.T) {
	archiver := &mockArchiver{}
	archiver.On("ArchiveLedgers", mock.Anything).Return(1, errors.New("bucket unreachable")).Once()
	archiver.On("ArchiveLedgers", mock.Anything).Return(2, nil).Once()

	s, _ := newScheduler(t, time.Now(), archiver, Config{LedgerArchive: "0 30 2 * * *"})
	assert.Len(t, s.cron.Entries(), 1)

	s.archiveLedgers(context.Background())
	s.archiveLedgers(context.Background())

	assert.Equal(t, 3.0, testutil.ToFloat64(s.archivedLedgers))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.sweepFailures.WithLabelValues("ledger_archive")))
	archiver.AssertExpectations(t)
}

func TestNewSchedulerRejectsBadSpec(t *testing.T) {
	svc := portal.NewService(portal.NewFixtureRepository(), zap.NewNop(), portal.Options{Fixture: true})
	tracker := portal.NewTracker(svc, zap.NewNop(), portal.TrackerOptions{})

	_, err := NewScheduler(svc, tracker, nil, zap.NewNop(), Config{DelaySweep: "every day"})
	assert.Error(t, err)

	s, err := NewScheduler(svc, tracker, nil, zap.NewNop(), Config{DelaySweep: "0 0 6 * * *", LedgerArchive: "0 30 2 * * *"})
	require.NoError(t, err)
	assert.Len(t, s.cron.Entries(), 1)

	require.NoError(t, s.Start())
	assert.Error(t, s.Start())
	s.Stop()
}

func TestRunAllSkipsMissingArchiver(t *testing.T) {
	s, _ := newScheduler(t, time.Date(2024, 5, 15, 9, 0, 0, 0, time.UTC), nil, Config{})
	assert.NotPanics(t, func() { s.RunAll(context.Background()) })
	assert.Equal(t, 1.0, testutil.ToFloat64(s.delayedProjects))

	archiver := &mockArchiver{}
	archiver.On("ArchiveLedgers", mock.Anything).Return(1, nil).Once()
	s, _ = newScheduler(t, time.Date(2024, 5, 15, 9, 0, 0, 0, time.UTC), archiver, Config{})
	s.RunAll(context.Background())
	assert.Equal(t, 1.0, testutil.ToFloat64(s.archivedLedgers))
	archiver.AssertExpectations(t)
}
