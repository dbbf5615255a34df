package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/arnavshah/route-planner-api/pkg/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DirectoryRepository stores employees, clients and their branches
type DirectoryRepository interface {
	ListEmployees(ctx context.Context, activeOnly bool) ([]models.Employee, error)
	GetEmployee(ctx context.Context, id uuid.UUID) (*models.Employee, error)
	CreateEmployee(ctx context.Context, e *models.Employee) error
	SetEmployeeActive(ctx context.Context, id uuid.UUID, active bool) error

	ListClients(ctx context.Context) ([]models.Client, error)
	GetClient(ctx context.Context, id uuid.UUID) (*models.Client, error)
	CreateClient(ctx context.Context, c *models.Client) error

	CreateBranch(ctx context.Context, b *models.Branch) error
	GetBranches(ctx context.Context, ids []uuid.UUID) ([]models.Branch, error)
	DeleteBranch(ctx context.Context, id uuid.UUID) error
	ExistingBranchIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]struct{}, error)
}

type GormDirectoryRepository struct {
	db *gorm.DB
}

func NewGormDirectoryRepository(db *gorm.DB) *GormDirectoryRepository {
	return &GormDirectoryRepository{db: db}
}

func notFound(what string, id uuid.UUID, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %s: %w", what, id, models.ErrNotFound)
	}
	return fmt.Errorf("get %s %s: %w", what, id, err)
}

func (r *GormDirectoryRepository) ListEmployees(ctx context.Context, activeOnly bool) ([]models.Employee, error) {
	var out []models.Employee
	q := r.db.WithContext(ctx).Model(&models.Employee{})
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	if err := q.Order("name ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormDirectoryRepository) GetEmployee(ctx context.Context, id uuid.UUID) (*models.Employee, error) {
	var e models.Employee
	if err := r.db.WithContext(ctx).First(&e, "id = ?", id).Error; err != nil {
		return nil, notFound("employee", id, err)
	}
	return &e, nil
}

func (r *GormDirectoryRepository) CreateEmployee(ctx context.Context, e *models.Employee) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *GormDirectoryRepository) SetEmployeeActive(ctx context.Context, id uuid.UUID, active bool) error {
	res := r.db.WithContext(ctx).
		Model(&models.Employee{}).
		Where("id = ?", id).
		Update("active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("employee %s: %w", id, models.ErrNotFound)
	}
	return nil
}

func (r *GormDirectoryRepository) ListClients(ctx context.Context) ([]models.Client, error) {
	var out []models.Client
	err := r.db.WithContext(ctx).
		Preload("Branches", func(db *gorm.DB) *gorm.DB { return db.Order("name ASC") }).
		Order("name ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormDirectoryRepository) GetClient(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	var c models.Client
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, notFound("client", id, err)
	}
	return &c, nil
}

func (r *GormDirectoryRepository) CreateClient(ctx context.Context, c *models.Client) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *GormDirectoryRepository) CreateBranch(ctx context.Context, b *models.Branch) error {
	if _, err := r.GetClient(ctx, b.ClientID); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(b).Error
}

func (r *GormDirectoryRepository) GetBranches(ctx context.Context, ids []uuid.UUID) ([]models.Branch, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []models.Branch
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteBranch removes a branch. Template stops and jobs that reference it
// are left alone and skipped when the template is next materialized.
func (r *GormDirectoryRepository) DeleteBranch(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&models.Branch{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("branch %s: %w", id, models.ErrNotFound)
	}
	return nil
}

func (r *GormDirectoryRepository) ExistingBranchIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]struct{}, error) {
	out := make(map[uuid.UUID]struct{}, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var found []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Branch{}).
		Where("id IN ?", ids).
		Pluck("id", &found).Error
	if err != nil {
		return nil, err
	}
	for _, id := range found {
		out[id] = struct{}{}
	}
	return out, nil
}
