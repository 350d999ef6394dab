package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	dbm "timelens/internal/models/db_models"
)

type DashboardRepository interface {
	CountUsers(ctx context.Context) (int64, error)
	CountUsersCreatedBetween(ctx context.Context, start, end time.Time) (int64, error)
	CountTransformsBetween(ctx context.Context, start, end time.Time) (int64, error)

	UsersByPlan(ctx context.Context) ([]GroupCount, error)
	UsersByStatus(ctx context.Context) ([]GroupCount, error)
	SubscriptionsByStatus(ctx context.Context) ([]GroupCount, error)
	// BillablePlans counts users whose paid plan is still being charged.
	BillablePlans(ctx context.Context) ([]GroupCount, error)

	TransactionsBetween(ctx context.Context, status dbm.TransactionStatus, start, end time.Time) ([]AmountRow, error)
	RecentPaidTransactions(ctx context.Context, limit int) ([]RecentPaymentRow, error)
}

type dashboardRepository struct {
	db *gorm.DB
}

func NewDashboardRepository(db *gorm.DB) DashboardRepository {
	return &dashboardRepository{db: db}
}

// ---------- Row helpers ----------
type GroupCount struct {
	Key   string `gorm:"column:key"`
	Count int64  `gorm:"column:count"`
}

type AmountRow struct {
	CreatedAt   int64 `gorm:"column:created_at"`
	AmountCents int64 `gorm:"column:amount_cents"`
}

type RecentPaymentRow struct {
	ID              string `gorm:"column:id"`
	CreatedAt       int64  `gorm:"column:created_at"`
	AmountCents     int64  `gorm:"column:amount_cents"`
	Currency        string `gorm:"column:currency"`
	TransactionType string `gorm:"column:transaction_type"`
	Email           string `gorm:"column:email"`
}

// ---------- Counts ----------
func (r *dashboardRepository) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&dbm.User{}).Count(&n).Error
	return n, err
}

func (r *dashboardRepository) CountUsersCreatedBetween(ctx context.Context, start, end time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&dbm.User{}).
		Where("created_at BETWEEN ? AND ?", start.Unix(), end.Unix()).
		Count(&n).Error
	return n, err
}

func (r *dashboardRepository) CountTransformsBetween(ctx context.Context, start, end time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&dbm.TransformResult{}).
		Where("created_at BETWEEN ? AND ?", start.Unix(), end.Unix()).
		Count(&n).Error
	return n, err
}

// ---------- Distributions ----------
func (r *dashboardRepository) groupCount(ctx context.Context, model interface{}, column string, scopes ...func(*gorm.DB) *gorm.DB) ([]GroupCount, error) {
	var rows []GroupCount
	err := r.db.WithContext(ctx).
		Model(model).
		Scopes(scopes...).
		Select(column + " AS key, COUNT(*) AS count").
		Group(column).
		Order("count DESC").
		Find(&rows).Error
	return rows, err
}

func (r *dashboardRepository) UsersByPlan(ctx context.Context) ([]GroupCount, error) {
	return r.groupCount(ctx, &dbm.User{}, "current_plan")
}

func (r *dashboardRepository) UsersByStatus(ctx context.Context) ([]GroupCount, error) {
	return r.groupCount(ctx, &dbm.User{}, "subscription_status")
}

func (r *dashboardRepository) SubscriptionsByStatus(ctx context.Context) ([]GroupCount, error) {
	return r.groupCount(ctx, &dbm.Subscription{}, "status")
}

func (r *dashboardRepository) BillablePlans(ctx context.Context) ([]GroupCount, error) {
	return r.groupCount(ctx, &dbm.User{}, "current_plan", func(db *gorm.DB) *gorm.DB {
		return db.
			Where("current_plan IN ?", []dbm.PlanType{dbm.PlanBasic, dbm.PlanPro}).
			Where("subscription_status IN ?", []dbm.SubscriptionStatus{dbm.SubStatusActive, dbm.SubStatusPastDue})
	})
}

// ---------- Transactions ----------
func (r *dashboardRepository) TransactionsBetween(ctx context.Context, status dbm.TransactionStatus, start, end time.Time) ([]AmountRow, error) {
	var rows []AmountRow
	err := r.db.WithContext(ctx).
		Model(&dbm.Transaction{}).
		Select("created_at, amount_cents").
		Where("status = ?", status).
		Where("created_at BETWEEN ? AND ?", start.Unix(), end.Unix()).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *dashboardRepository) RecentPaidTransactions(ctx context.Context, limit int) ([]RecentPaymentRow, error) {
	var rows []RecentPaymentRow
	err := r.db.WithContext(ctx).
		Table("transactions t").
		Select(`
			t.id,
			t.created_at,
			t.amount_cents,
			t.currency,
			t.transaction_type,
			u.email`).
		Joins("LEFT JOIN users u ON u.id = t.user_id").
		Where("t.status = ?", dbm.TxnStatusPaid).
		Order("t.created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
