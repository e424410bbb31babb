// Package jobs runs the portal's periodic sweeps.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"teranga-build/portal/portal-backend/internal/portal"
)

// LedgerArchiver copies expense ledgers to long-term storage.
type LedgerArchiver interface {
	ArchiveLedgers(ctx context.Context) (int, error)
}

// Config holds the cron specs (with seconds) of each sweep. An empty spec
// disables that sweep.
type Config struct {
	DelaySweep      string
	InvitationSweep string
	LedgerArchive   string
	Timeout         time.Duration
	Registerer      prometheus.Registerer
}

// Scheduler runs the sweeps on cron schedules.
type Scheduler struct {
	cron     *cron.Cron
	service  *portal.Service
	tracker  *portal.Tracker
	archiver LedgerArchiver
	timeout  time.Duration
	logger   *zap.Logger
	mu       sync.Mutex
	running  bool

	delayedProjects    prometheus.Gauge
	expiredInvitations prometheus.Counter
	archivedLedgers    prometheus.Counter
	sweepFailures      *prometheus.CounterVec
}

// NewScheduler registers the configured sweeps. archiver may be nil.
func NewScheduler(service *portal.Service, tracker *portal.Tracker, archiver LedgerArchiver, logger *zap.Logger, cfg Config) (*Scheduler, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	s := &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		service:  service,
		tracker:  tracker,
		archiver: archiver,
		timeout:  cfg.Timeout,
		logger:   logger,
		delayedProjects: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "portal_delayed_projects",
			Help: "Active projects trailing their schedule at the last sweep.",
		}),
		expiredInvitations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_expired_invitations_total",
			Help: "Invitations moved to expired by the sweep.",
		}),
		archivedLedgers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_archived_ledgers_total",
			Help: "Expense ledgers copied to the archive bucket.",
		}),
		sweepFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_sweep_failures_total",
			Help: "Sweeps that ended with an error.",
		}, []string{"sweep"}),
	}
	if cfg.Registerer != nil {
		cfg.Registerer.MustRegister(s.delayedProjects, s.expiredInvitations, s.archivedLedgers, s.sweepFailures)
	}

	jobs := []struct {
		name string
		spec string
		run  func(context.Context)
	}{
		{"delay_sweep", cfg.DelaySweep, func(ctx context.Context) { s.SweepDelays(ctx) }},
		{"invitation_sweep", cfg.InvitationSweep, func(ctx context.Context) { s.SweepInvitations(ctx) }},
		{"ledger_archive", cfg.LedgerArchive, s.archiveLedgers},
	}
	for _, job := range jobs {
		if job.spec == "" || (job.name == "ledger_archive" && archiver == nil) {
			continue
		}
		if _, err := s.cron.AddFunc(job.spec, s.wrap(job.name, job.run)); err != nil {
			return nil, fmt.Errorf("invalid %s schedule %q: %w", job.name, job.spec, err)
		}
		logger.Info("Scheduled sweep", zap.String("sweep", job.name), zap.String("spec", job.spec))
	}
	return s, nil
}

func (s *Scheduler) wrap(name string, run func(context.Context)) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		start := time.Now()
		run(ctx)
		s.logger.Debug("Sweep finished", zap.String("sweep", name), zap.Duration("took", time.Since(start)))
	}
}

// Start starts the cron loop.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.logger.Info("Starting job scheduler", zap.Int("jobs", len(s.cron.Entries())))
	s.cron.Start()
	return nil
}

// Stop waits for running sweeps to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.logger.Info("Stopping job scheduler")
	<-s.cron.Stop().Done()
	s.running = false
}

// RunAll runs every sweep once, in order, outside the cron loop.
func (s *Scheduler) RunAll(ctx context.Context) {
	s.SweepDelays(ctx)
	s.SweepInvitations(ctx)
	if s.archiver != nil {
		s.archiveLedgers(ctx)
	}
}

// SweepDelays logs every active project that trails its schedule.
func (s *Scheduler) SweepDelays(ctx context.Context) []portal.DelayedProject {
	delayed := s.tracker.DelayedProjects(ctx)
	s.delayedProjects.Set(float64(len(delayed)))
	for _, d := range delayed {
		s.logger.Warn("Project behind schedule",
			zap.String("project_id", d.Project.ID),
			zap.String("name", d.Project.Name),
			zap.Int("progress", d.Project.Progress),
			zap.Float64("time_progress", d.Delay.TimeProgress),
			zap.Int("delay_days", d.Delay.DelayDays))
	}
	return delayed
}

// SweepInvitations expires overdue pending invitations.
func (s *Scheduler) SweepInvitations(ctx context.Context) int {
	n := s.service.ExpireInvitations(ctx)
	if n > 0 {
		s.expiredInvitations.Add(float64(n))
		s.logger.Info("Expired invitations", zap.Int("count", n))
	}
	return n
}

func (s *Scheduler) archiveLedgers(ctx context.Context) {
	n, err := s.archiver.ArchiveLedgers(ctx)
	s.archivedLedgers.Add(float64(n))
	if err != nil {
		s.sweepFailures.WithLabelValues("ledger_archive").Inc()
		s.logger.Error("Failed to archive ledgers", zap.Int("archived", n), zap.Error(err))
		return
	}
	s.logger.Info("Archived expense ledgers", zap.Int("count", n))
}
