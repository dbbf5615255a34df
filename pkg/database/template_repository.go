package database

import (
	"context"
	"time"

	"github.com/arnavshah/route-planner-api/pkg/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TemplateRepository interface {
	List(ctx context.Context) ([]models.TemplateRecord, error)
	Upsert(ctx context.Context, rec *models.TemplateRecord) error
}

type GormTemplateRepository struct {
	db *gorm.DB
}

func NewGormTemplateRepository(db *gorm.DB) *GormTemplateRepository {
	return &GormTemplateRepository{db: db}
}

func (r *GormTemplateRepository) List(ctx context.Context) ([]models.TemplateRecord, error) {
	var out []models.TemplateRecord
	if err := r.db.WithContext(ctx).Order("slot ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Upsert replaces the stop list of rec.Slot in one statement. It updates by
// id when one is known and otherwise inserts, resolving a concurrent insert
// of the same slot in favour of this write. rec is reloaded afterwards.
func (r *GormTemplateRepository) Upsert(ctx context.Context, rec *models.TemplateRecord) error {
	db := r.db.WithContext(ctx)

	if rec.ID != uuid.Nil {
		res := db.Model(&models.TemplateRecord{}).
			Where("id = ?", rec.ID).
			Updates(map[string]any{
				"name":       rec.Name,
				"stops":      rec.Stops,
				"updated_at": time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return db.First(rec, "id = ?", rec.ID).Error
		}
		// row was removed underneath us, fall through to insert
		rec.ID = uuid.Nil
	}

	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slot"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "stops", "updated_at"}),
	}).Create(rec).Error
	if err != nil {
		return err
	}

	slot := rec.Slot
	*rec = models.TemplateRecord{}
	return db.First(rec, "slot = ?", slot).Error
}
