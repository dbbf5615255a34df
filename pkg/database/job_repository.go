package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arnavshah/route-planner-api/pkg/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type JobRepository interface {
	// Atomically delete every job in [from, to) and insert jobs
	ReplaceForDay(ctx context.Context, from, to time.Time, jobs []models.Job) error
	DeleteRange(ctx context.Context, from, to time.Time) (int64, error)
	ListRange(ctx context.Context, from, to time.Time) ([]models.Job, error)
	ListForEmployee(ctx context.Context, employeeID uuid.UUID, from, to time.Time) ([]models.Job, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Job, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time, note *string) error
	AttachReceipt(ctx context.Context, id uuid.UUID, ref string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// GormJobRepository stores scheduled_at in UTC so range queries compare
// consistently on every driver
type GormJobRepository struct {
	db *gorm.DB
}

func NewGormJobRepository(db *gorm.DB) *GormJobRepository {
	return &GormJobRepository{db: db}
}

func inRange(db *gorm.DB, from, to time.Time) *gorm.DB {
	return db.Where("scheduled_at >= ? AND scheduled_at < ?", from.UTC(), to.UTC())
}

func (r *GormJobRepository) ReplaceForDay(ctx context.Context, from, to time.Time, jobs []models.Job) error {
	ctx, commit := afterCommit(ctx)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := inRange(tx, from, to).Delete(&models.Job{}).Error; err != nil {
			return err
		}
		if len(jobs) == 0 {
			return nil
		}
		for i := range jobs {
			jobs[i].ScheduledAt = jobs[i].ScheduledAt.UTC()
		}
		return tx.Create(&jobs).Error
	})
	if err != nil {
		return err
	}
	commit()
	return nil
}

func (r *GormJobRepository) DeleteRange(ctx context.Context, from, to time.Time) (int64, error) {
	res := inRange(r.db.WithContext(ctx), from, to).Delete(&models.Job{})
	return res.RowsAffected, res.Error
}

func (r *GormJobRepository) ListRange(ctx context.Context, from, to time.Time) ([]models.Job, error) {
	var out []models.Job
	err := inRange(r.db.WithContext(ctx).Model(&models.Job{}), from, to).
		Order("scheduled_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormJobRepository) ListForEmployee(ctx context.Context, employeeID uuid.UUID, from, to time.Time) ([]models.Job, error) {
	var out []models.Job
	err := inRange(r.db.WithContext(ctx).Model(&models.Job{}), from, to).
		Where("employee_id = ?", employeeID).
		Order("scheduled_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormJobRepository) Get(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	var j models.Job
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("job %s: %w", id, models.ErrNotFound)
		}
		return nil, err
	}
	return &j, nil
}

// MarkCompleted only touches a pending job, so two devices completing the
// same job cannot both succeed
func (r *GormJobRepository) MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time, note *string) error {
	updates := map[string]any{
		"status":       models.JobStatusCompleted,
		"completed_at": at.UTC(),
	}
	if note != nil {
		updates["note"] = *note
	}
	res := r.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("id = ? AND status = ?", id, models.JobStatusPending).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return models.Invalid(models.ErrJobCompleted, "job %s is already completed", id)
}

func (r *GormJobRepository) AttachReceipt(ctx context.Context, id uuid.UUID, ref string) error {
	res := r.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("id = ?", id).
		Update("receipt_url", ref)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("job %s: %w", id, models.ErrNotFound)
	}
	return nil
}

func (r *GormJobRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&models.Job{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("job %s: %w", id, models.ErrNotFound)
	}
	return nil
}
