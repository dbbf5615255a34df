package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/arnavshah/route-planner-api/pkg/models"
	"github.com/google/uuid"
)

// Logger receives warnings about stops that could not be materialized
type Logger interface {
	Printf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// TemplateSource returns the current contents of a slot
type TemplateSource interface {
	Slot(slot int) (models.Template, error)
}

// BranchChecker reports which of the given branches still exist
type BranchChecker interface {
	ExistingBranchIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]struct{}, error)
}

// JobRepository stores the jobs of a day
type JobRepository interface {
	// ReplaceForDay deletes every job scheduled in [from, to) and inserts jobs, atomically
	ReplaceForDay(ctx context.Context, from, to time.Time, jobs []models.Job) error
	DeleteRange(ctx context.Context, from, to time.Time) (int64, error)
}

// AssignmentRepository stores which slot each date uses
type AssignmentRepository interface {
	List(ctx context.Context) ([]models.Assignment, error)
	Upsert(ctx context.Context, a *models.Assignment) error
	DeleteDate(ctx context.Context, date string) (int64, error)
}

// Plan is the result of checking a slot against the directory for one date
type Plan struct {
	Date    time.Time     `json:"-"`
	Slot    int           `json:"slot"`
	Valid   []models.Stop `json:"valid"`
	Dropped []models.Stop `json:"dropped"`
}

// Result is what Assign wrote
type Result struct {
	Assignment models.Assignment `json:"assignment"`
	Jobs       []models.Job      `json:"jobs"`
	Dropped    []models.Stop     `json:"dropped"`
}

// Materializer turns a template slot into dated jobs and tracks which slot
// each date is assigned to
type Materializer struct {
	templates   TemplateSource
	branches    BranchChecker
	jobs        JobRepository
	assignments AssignmentRepository
	loc         *time.Location
	logger      Logger

	mu     sync.RWMutex
	byDate map[string]int
}

// Option configures a Materializer
type Option func(*Materializer)

// WithLogger sets where dropped-stop warnings go
func WithLogger(l Logger) Option {
	return func(m *Materializer) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithLocation sets the zone calendar dates are interpreted in. Defaults to UTC.
func WithLocation(loc *time.Location) Option {
	return func(m *Materializer) {
		if loc != nil {
			m.loc = loc
		}
	}
}

func NewMaterializer(templates TemplateSource, branches BranchChecker, jobs JobRepository, assignments AssignmentRepository, opts ...Option) *Materializer {
	m := &Materializer{
		templates:   templates,
		branches:    branches,
		jobs:        jobs,
		assignments: assignments,
		loc:         time.UTC,
		logger:      nopLogger{},
		byDate:      make(map[string]int),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Location returns the zone dates are interpreted in
func (m *Materializer) Location() *time.Location {
	return m.loc
}

// Prefill replaces the date map with existing assignments
func (m *Materializer) Prefill(assignments []models.Assignment) {
	byDate := make(map[string]int, len(assignments))
	for _, a := range assignments {
		byDate[a.Date] = a.TemplateSlot
	}
	m.mu.Lock()
	m.byDate = byDate
	m.mu.Unlock()
}

// Load reads all assignments from the store into the date map
func (m *Materializer) Load(ctx context.Context) error {
	list, err := m.assignments.List(ctx)
	if err != nil {
		return fmt.Errorf("load assignments: %w", err)
	}
	m.Prefill(list)
	return nil
}

// SlotFor returns the slot assigned to a YYYY-MM-DD date
func (m *Materializer) SlotFor(date string) (int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	slot, ok := m.byDate[date]
	return slot, ok
}

// Assignments returns a copy of the date map
func (m *Materializer) Assignments() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]int, len(m.byDate))
	for d, s := range m.byDate {
		out[d] = s
	}
	return out
}

// Dates returns the assigned dates in order
func (m *Materializer) Dates() []string {
	m.mu.RLock()
	dates := make([]string, 0, len(m.byDate))
	for d := range m.byDate {
		dates = append(dates, d)
	}
	m.mu.RUnlock()
	sort.Strings(dates)
	return dates
}

func (m *Materializer) day(date time.Time) time.Time {
	y, mo, d := date.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, m.loc)
}

// Plan checks a slot for a date without writing anything. Stops whose branch
// no longer exists are dropped with a warning.
func (m *Materializer) Plan(ctx context.Context, date time.Time, slot int) (Plan, error) {
	day := m.day(date)
	tpl, err := m.templates.Slot(slot)
	if err != nil {
		return Plan{}, err
	}
	if len(tpl.Stops) == 0 {
		return Plan{}, models.Invalid(models.ErrEmptyStops, "%s has no stops", tpl.Name)
	}

	seen := make(map[uuid.UUID]struct{})
	var ids []uuid.UUID
	for _, s := range tpl.Stops {
		if _, ok := seen[s.BranchID]; !ok {
			seen[s.BranchID] = struct{}{}
			ids = append(ids, s.BranchID)
		}
	}
	existing, err := m.branches.ExistingBranchIDs(ctx, ids)
	if err != nil {
		return Plan{}, fmt.Errorf("check branches for %s: %w", tpl.Name, err)
	}

	plan := Plan{Date: day, Slot: slot}
	for _, s := range tpl.Stops {
		if _, ok := existing[s.BranchID]; ok {
			plan.Valid = append(plan.Valid, s)
			continue
		}
		m.logger.Printf("Warning: %s on %s: skipping stop at %s, branch %s (%s) no longer exists",
			tpl.Name, models.FormatDate(day), s.Time, s.BranchName, s.BranchID)
		plan.Dropped = append(plan.Dropped, s)
	}
	if len(plan.Valid) == 0 {
		return Plan{}, models.Invalid(models.ErrEmptyStops, "no stop in %s references an existing branch", tpl.Name)
	}
	return plan, nil
}

// Assign materializes a slot onto a date, replacing any jobs already on it.
// Nothing is deleted unless at least one stop can be materialized.
func (m *Materializer) Assign(ctx context.Context, date time.Time, slot int) (Result, error) {
	plan, err := m.Plan(ctx, date, slot)
	if err != nil {
		return Result{}, err
	}

	jobs := make([]models.Job, 0, len(plan.Valid))
	for _, s := range plan.Valid {
		at, err := models.At(plan.Date, s.Time)
		if err != nil {
			return Result{}, fmt.Errorf("stop %s: %w", s.Key(), err)
		}
		jobs = append(jobs, models.Job{
			BranchID:    s.BranchID,
			EmployeeID:  s.EmployeeID,
			ScheduledAt: at,
			Status:      models.JobStatusPending,
		})
	}

	from, to := models.DayBounds(plan.Date)
	if err := m.jobs.ReplaceForDay(ctx, from, to, jobs); err != nil {
		return Result{}, fmt.Errorf("write jobs for %s: %w", models.FormatDate(plan.Date), err)
	}

	first := plan.Valid[0].EmployeeID
	a := &models.Assignment{
		Date:            models.FormatDate(plan.Date),
		TemplateSlot:    slot,
		FirstEmployeeID: &first,
	}
	if err := m.assignments.Upsert(ctx, a); err != nil {
		return Result{}, fmt.Errorf("save assignment for %s: %w", a.Date, err)
	}

	m.mu.Lock()
	m.byDate[a.Date] = slot
	m.mu.Unlock()

	return Result{Assignment: *a, Jobs: jobs, Dropped: plan.Dropped}, nil
}

// Unassign removes the jobs and the assignment of a date. An unassigned date
// is not an error.
func (m *Materializer) Unassign(ctx context.Context, date time.Time) error {
	day := m.day(date)
	key := models.FormatDate(day)
	from, to := models.DayBounds(day)

	_, jobErr := m.jobs.DeleteRange(ctx, from, to)
	if jobErr != nil {
		jobErr = fmt.Errorf("delete jobs for %s: %w", key, jobErr)
	}
	_, asgErr := m.assignments.DeleteDate(ctx, key)
	if asgErr != nil {
		asgErr = fmt.Errorf("delete assignment for %s: %w", key, asgErr)
	} else {
		m.mu.Lock()
		delete(m.byDate, key)
		m.mu.Unlock()
	}
	return errors.Join(jobErr, asgErr)
}
