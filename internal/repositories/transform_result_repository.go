package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"timelens/internal/models/db_models"
)

type TransformResultRepository interface {
	WithTx(tx *gorm.DB) TransformResultRepository
	Insert(ctx context.Context, result *db_models.TransformResult) error
	FindByIDForUser(ctx context.Context, id, userID string) (*db_models.TransformResult, error)
	ListByUser(ctx context.Context, userID string, page, pageSize int) ([]db_models.TransformResult, int64, error)
}

type transformResultRepository struct {
	db *gorm.DB
}

func NewTransformResultRepository(db *gorm.DB) TransformResultRepository {
	return &transformResultRepository{db: db}
}

func (r *transformResultRepository) WithTx(tx *gorm.DB) TransformResultRepository {
	return &transformResultRepository{db: tx}
}

func (r *transformResultRepository) Insert(ctx context.Context, result *db_models.TransformResult) error {
	return r.db.WithContext(ctx).Create(result).Error
}

func (r *transformResultRepository) FindByIDForUser(ctx context.Context, id, userID string) (*db_models.TransformResult, error) {
	var result db_models.TransformResult
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (r *transformResultRepository) ListByUser(ctx context.Context, userID string, page, pageSize int) ([]db_models.TransformResult, int64, error) {
	var (
		results []db_models.TransformResult
		total   int64
	)

	byUser := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&db_models.TransformResult{}).Where("user_id = ?", userID)
	}
	if err := byUser().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := byUser().Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&results).Error
	return results, total, err
}
