// Package progress derives project completion and schedule signals from
// checklist and date data. Nothing here performs I/O; callers persist results.
package progress

import (
	"math"
	"time"
)

// DelayTolerance is the number of percentage points a project may trail its
// time-elapsed expectation before it is reported as delayed.
const DelayTolerance = 5.0

// Completable is implemented by checklist items.
type Completable interface {
	Completed() bool
}

// Step is a checklist item that declares prerequisite steps by identity.
type Step interface {
	Completable
	StepID() string
	Prerequisites() []string
}

// Schedule is the temporal view of a project used for delay estimation.
type Schedule struct {
	StartDate *time.Time
	EndDate   *time.Time
	Progress  int
}

// Delay is the schedule-delay classification of a project.
type Delay struct {
	IsDelayed    bool    `json:"is_delayed"`
	DelayDays    int     `json:"delay_days"`
	TimeProgress float64 `json:"time_progress"`
}

// Engine computes schedule signals against an injectable clock.
type Engine struct {
	now func() time.Time
}

// NewEngine creates an engine. A nil clock means time.Now.
func NewEngine(now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{now: now}
}

// ChecklistProgress returns round-half-up(100 × completed / total), or 0 for
// an empty checklist.
func ChecklistProgress[T Completable](items []T) int {
	total := len(items)
	if total == 0 {
		return 0
	}
	completed := 0
	for _, item := range items {
		if item.Completed() {
			completed++
		}
	}
	// exact integer half-up: floor((200c + t) / 2t)
	return (200*completed + total) / (2 * total)
}

// ScheduleDelay compares actual progress to linear expected progress over the
// schedule window. Missing dates yield the zero Delay.
func (e *Engine) ScheduleDelay(s Schedule) Delay {
	if s.StartDate == nil || s.EndDate == nil {
		return Delay{}
	}

	start, end, now := *s.StartDate, *s.EndDate, e.now()
	total := end.Sub(start)

	var timeProgress float64
	if total <= 0 {
		if !now.Before(end) {
			timeProgress = 100
		}
	} else {
		elapsed := now.Sub(start)
		timeProgress = clamp(float64(elapsed)/float64(total)*100, 0, 100)
	}

	expected := timeProgress
	actual := float64(s.Progress)
	if !(actual < expected-DelayTolerance) {
		return Delay{TimeProgress: timeProgress}
	}

	totalDays := 0.0
	if total > 0 {
		totalDays = total.Hours() / 24
	}
	return Delay{
		IsDelayed:    true,
		DelayDays:    int(math.Round((expected - actual) / 100 * totalDays)),
		TimeProgress: timeProgress,
	}
}

// UnmetDependencies lists the prerequisites of the step with the given id that
// exist in items and are not completed yet. Unknown prerequisite ids are
// ignored. The result is informational; completion is never gated on it.
func UnmetDependencies[T Step](items []T, id string) []string {
	byID := make(map[string]T, len(items))
	for _, item := range items {
		byID[item.StepID()] = item
	}
	target, ok := byID[id]
	if !ok {
		return nil
	}

	var unmet []string
	for _, dep := range target.Prerequisites() {
		if prereq, found := byID[dep]; found && !prereq.Completed() {
			unmet = append(unmet, dep)
		}
	}
	return unmet
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
