package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"timelens/internal/models/db_models"
)

type SubscriptionRepository interface {
	WithTx(tx *gorm.DB) SubscriptionRepository
	FindByID(ctx context.Context, id string) (*db_models.Subscription, error)
	InsertIfAbsent(ctx context.Context, sub *db_models.Subscription) (bool, error)
	SupersedeActive(ctx context.Context, userID, keepID string, endDate int64) (int64, error)
	UpdateGuarded(ctx context.Context, id string, fromStatus db_models.SubscriptionStatus, maxLastEventAt int64, fields map[string]interface{}) (bool, error)
	ListByUser(ctx context.Context, userID string) ([]db_models.Subscription, error)
}

type subscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) WithTx(tx *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: tx}
}

func (r *subscriptionRepository) FindByID(ctx context.Context, id string) (*db_models.Subscription, error) {
	var sub db_models.Subscription
	err := r.db.WithContext(ctx).First(&sub, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

// InsertIfAbsent inserts sub unless a row with the same provider id exists.
func (r *subscriptionRepository) InsertIfAbsent(ctx context.Context, sub *db_models.Subscription) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(sub)
	return res.RowsAffected > 0, res.Error
}

// SupersedeActive cancels every other active subscription of the user.
func (r *subscriptionRepository) SupersedeActive(ctx context.Context, userID, keepID string, endDate int64) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&db_models.Subscription{}).
		Where("user_id = ? AND id <> ? AND status = ?", userID, keepID, db_models.SubStatusActive).
		Updates(map[string]interface{}{
			"status":   db_models.SubStatusCancelled,
			"end_date": endDate,
		})
	return res.RowsAffected, res.Error
}

// UpdateGuarded applies fields only if the row still has fromStatus and no
// newer event has been applied in between.
func (r *subscriptionRepository) UpdateGuarded(ctx context.Context, id string, fromStatus db_models.SubscriptionStatus, maxLastEventAt int64, fields map[string]interface{}) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&db_models.Subscription{}).
		Where("id = ? AND status = ? AND last_event_at <= ?", id, fromStatus, maxLastEventAt).
		Updates(fields)
	return res.RowsAffected > 0, res.Error
}

func (r *subscriptionRepository) ListByUser(ctx context.Context, userID string) ([]db_models.Subscription, error) {
	var subs []db_models.Subscription
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("start_date DESC, created_at DESC").
		Find(&subs).Error
	return subs, err
}
