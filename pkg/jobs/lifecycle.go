package jobs

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/arnavshah/route-planner-api/pkg/models"
	"github.com/google/uuid"
)

// Logger receives best-effort failures
type Logger interface {
	Printf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// Repository is the job store
type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Job, error)
	// MarkCompleted moves a pending job to completed. It fails with
	// models.ErrJobCompleted if the job is not pending.
	MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time, note *string) error
	AttachReceipt(ctx context.Context, id uuid.UUID, ref string) error
	ListForEmployee(ctx context.Context, employeeID uuid.UUID, from, to time.Time) ([]models.Job, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ObjectStore keeps receipt images and returns a public reference
type ObjectStore interface {
	Put(ctx context.Context, name string, data []byte) (string, error)
}

// Compressor shrinks an image. It returns the input when it cannot do better.
type Compressor interface {
	Compress(data []byte) []byte
}

// CompleteRequest is one completion from the field
type CompleteRequest struct {
	JobID   uuid.UUID
	Receipt []byte
	Note    string
}

// CompleteResult holds the completed job and the refreshed list of its day
type CompleteResult struct {
	Job           models.Job   `json:"job"`
	Jobs          []models.Job `json:"jobs"`
	ReceiptStored bool         `json:"receipt_stored"`
}

// Lifecycle moves jobs from pending to completed
type Lifecycle struct {
	repo       Repository
	store      ObjectStore
	compressor Compressor
	loc        *time.Location
	logger     Logger
	now        func() time.Time
}

// Option configures a Lifecycle
type Option func(*Lifecycle)

func WithLogger(l Logger) Option {
	return func(lc *Lifecycle) {
		if l != nil {
			lc.logger = l
		}
	}
}

// WithLocation sets the zone that defines a job's day
func WithLocation(loc *time.Location) Option {
	return func(lc *Lifecycle) {
		if loc != nil {
			lc.loc = loc
		}
	}
}

// WithClock overrides the completion timestamp source
func WithClock(now func() time.Time) Option {
	return func(lc *Lifecycle) {
		if now != nil {
			lc.now = now
		}
	}
}

// NewLifecycle creates a Lifecycle. store and compressor may be nil, in which
// case receipts are dropped or stored as sent.
func NewLifecycle(repo Repository, store ObjectStore, compressor Compressor, opts ...Option) *Lifecycle {
	lc := &Lifecycle{
		repo:       repo,
		store:      store,
		compressor: compressor,
		loc:        time.UTC,
		logger:     nopLogger{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(lc)
	}
	return lc
}

// Complete marks a job completed, then tries to keep its receipt. Only the
// completion write can fail the call.
func (l *Lifecycle) Complete(ctx context.Context, req CompleteRequest) (CompleteResult, error) {
	job, err := l.repo.Get(ctx, req.JobID)
	if err != nil {
		return CompleteResult{}, err
	}
	if job.Status == models.JobStatusCompleted {
		return CompleteResult{}, models.Invalid(models.ErrJobCompleted, "job %s is already completed", job.ID)
	}

	receipt := req.Receipt
	if len(receipt) > 0 && l.compressor != nil {
		receipt = l.compress(receipt)
	}

	var note *string
	if n := strings.TrimSpace(req.Note); n != "" {
		note = &n
	}
	completedAt := l.now().UTC()
	if err := l.repo.MarkCompleted(ctx, job.ID, completedAt, note); err != nil {
		return CompleteResult{}, err
	}

	stored := false
	if len(receipt) > 0 {
		stored = l.attachReceipt(ctx, job.ID, receipt, completedAt)
	}

	from, to := models.DayBounds(job.ScheduledAt.In(l.loc))
	list, err := l.repo.ListForEmployee(ctx, job.EmployeeID, from, to)
	if err != nil {
		return CompleteResult{}, fmt.Errorf("job %s completed, reload failed: %w", job.ID, err)
	}

	res := CompleteResult{Jobs: list, ReceiptStored: stored}
	found := false
	for _, j := range list {
		if j.ID == job.ID {
			res.Job = j
			found = true
			break
		}
	}
	if !found {
		updated, err := l.repo.Get(ctx, job.ID)
		if err != nil {
			return CompleteResult{}, fmt.Errorf("job %s completed, reload failed: %w", job.ID, err)
		}
		res.Job = *updated
	}
	return res, nil
}

func (l *Lifecycle) compress(data []byte) (out []byte) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Printf("Warning: receipt compression panicked: %v", r)
			out = data
		}
	}()
	return l.compressor.Compress(data)
}

// attachReceipt stores the image and links it to the job. Failures are logged.
func (l *Lifecycle) attachReceipt(ctx context.Context, id uuid.UUID, data []byte, at time.Time) (ok bool) {
	if l.store == nil {
		l.logger.Printf("Warning: no receipt store configured, dropping receipt for job %s", id)
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			l.logger.Printf("Warning: storing receipt for job %s panicked: %v", id, r)
			ok = false
		}
	}()

	ref, err := l.store.Put(ctx, ReceiptName(id, data, at), data)
	if err != nil {
		l.logger.Printf("Warning: storing receipt for job %s: %v", id, err)
		return false
	}
	if err := l.repo.AttachReceipt(ctx, id, ref); err != nil {
		l.logger.Printf("Warning: linking receipt %s to job %s: %v", ref, id, err)
		return false
	}
	return true
}

// ReceiptName builds the object name for a receipt from its job, content and time
func ReceiptName(id uuid.UUID, data []byte, at time.Time) string {
	ext := ".bin"
	switch http.DetectContentType(data) {
	case "image/jpeg":
		ext = ".jpg"
	case "image/png":
		ext = ".png"
	case "image/gif":
		ext = ".gif"
	case "image/webp":
		ext = ".webp"
	}
	return fmt.Sprintf("%s-%d%s", id, at.Unix(), ext)
}

// Delete removes a job regardless of status
func (l *Lifecycle) Delete(ctx context.Context, id uuid.UUID) error {
	return l.repo.Delete(ctx, id)
}
