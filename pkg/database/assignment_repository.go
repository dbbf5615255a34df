package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/arnavshah/route-planner-api/pkg/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AssignmentRepository interface {
	List(ctx context.Context) ([]models.Assignment, error)
	Get(ctx context.Context, date string) (*models.Assignment, error)
	Upsert(ctx context.Context, a *models.Assignment) error
	DeleteDate(ctx context.Context, date string) (int64, error)
}

type GormAssignmentRepository struct {
	db *gorm.DB
}

func NewGormAssignmentRepository(db *gorm.DB) *GormAssignmentRepository {
	return &GormAssignmentRepository{db: db}
}

func (r *GormAssignmentRepository) List(ctx context.Context) ([]models.Assignment, error) {
	var out []models.Assignment
	if err := r.db.WithContext(ctx).Order("date ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormAssignmentRepository) Get(ctx context.Context, date string) (*models.Assignment, error) {
	var a models.Assignment
	if err := r.db.WithContext(ctx).First(&a, "date = ?", date).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("assignment %s: %w", date, models.ErrNotFound)
		}
		return nil, err
	}
	return &a, nil
}

// Upsert keeps one row per date and reloads a with the stored row
func (r *GormAssignmentRepository) Upsert(ctx context.Context, a *models.Assignment) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"template_slot", "first_employee_id", "updated_at"}),
	}).Create(a).Error
	if err != nil {
		return err
	}
	stored, err := r.Get(ctx, a.Date)
	if err != nil {
		return err
	}
	*a = *stored
	return nil
}

func (r *GormAssignmentRepository) DeleteDate(ctx context.Context, date string) (int64, error) {
	res := r.db.WithContext(ctx).Delete(&models.Assignment{}, "date = ?", date)
	return res.RowsAffected, res.Error
}
