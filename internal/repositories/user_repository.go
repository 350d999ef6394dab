package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"timelens/internal/models/db_models"
)

type UserRepository interface {
	WithTx(tx *gorm.DB) UserRepository
	Insert(ctx context.Context, user *db_models.User) error
	FindByID(ctx context.Context, id string) (*db_models.User, error)
	FindByEmail(ctx context.Context, email string) (*db_models.User, error)
	FindByBillingCustomerID(ctx context.Context, customerID string) (*db_models.User, error)
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error
	MarkPastDue(ctx context.Context, id string, subscriptionID *string) (bool, error)
	FindLapsedCancellations(ctx context.Context, now int64, limit int) ([]db_models.User, error)
	RevertLapsedToFree(ctx context.Context, id string, now int64) (bool, error)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) WithTx(tx *gorm.DB) UserRepository {
	return &userRepository{db: tx}
}

func (r *userRepository) Insert(ctx context.Context, user *db_models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) first(ctx context.Context, query string, args ...interface{}) (*db_models.User, error) {
	var user db_models.User
	err := r.db.WithContext(ctx).Where(query, args...).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByID(ctx context.Context, id string) (*db_models.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*db_models.User, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *userRepository) FindByBillingCustomerID(ctx context.Context, customerID string) (*db_models.User, error) {
	return r.first(ctx, "billing_customer_id = ?", customerID)
}

func (r *userRepository) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&db_models.User{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// MarkPastDue moves an active user to past_due. With a subscription id the
// charge must belong to the user's current subscription.
func (r *userRepository) MarkPastDue(ctx context.Context, id string, subscriptionID *string) (bool, error) {
	q := r.db.WithContext(ctx).
		Model(&db_models.User{}).
		Where("id = ? AND subscription_status = ?", id, db_models.SubStatusActive)
	if subscriptionID != nil && *subscriptionID != "" {
		q = q.Where("current_subscription_id = ?", *subscriptionID)
	}
	res := q.Update("subscription_status", db_models.SubStatusPastDue)
	return res.RowsAffected > 0, res.Error
}

// FindLapsedCancellations lists paid users whose cancelled subscription has
// run past its end date.
func (r *userRepository) FindLapsedCancellations(ctx context.Context, now int64, limit int) ([]db_models.User, error) {
	var users []db_models.User
	err := r.db.WithContext(ctx).
		Where("subscription_status = ? AND current_plan <> ?", db_models.SubStatusCancelled, db_models.PlanFree).
		Where("subscription_end_date IS NULL OR subscription_end_date <= ?", now).
		Order("id").
		Limit(limit).
		Find(&users).Error
	return users, err
}

// RevertLapsedToFree moves the user to free only if the lapse still holds.
func (r *userRepository) RevertLapsedToFree(ctx context.Context, id string, now int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&db_models.User{}).
		Where("id = ? AND subscription_status = ?", id, db_models.SubStatusCancelled).
		Where("subscription_end_date IS NULL OR subscription_end_date <= ?", now).
		Update("current_plan", db_models.PlanFree)
	return res.RowsAffected > 0, res.Error
}
