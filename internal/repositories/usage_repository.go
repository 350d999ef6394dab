package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"timelens/internal/models/db_models"
)

// CounterSeed is what a new (user, day) counter row is created with.
type CounterSeed struct {
	UserID    string
	UsageDate string
	PlanType  db_models.PlanType
	Limit     int
}

type UsageTotals struct {
	Total      int64 `gorm:"column:total"`
	ActiveDays int64 `gorm:"column:active_days"`
}

type UsageRepository interface {
	WithTx(tx *gorm.DB) UsageRepository
	GetOrCreate(ctx context.Context, seed CounterSeed) (*db_models.UsageCounter, error)
	Find(ctx context.Context, userID, day string) (*db_models.UsageCounter, error)
	Increment(ctx context.Context, seed CounterSeed) error
	IncrementWithinLimit(ctx context.Context, seed CounterSeed) (bool, error)
	TotalsSince(ctx context.Context, userID, fromDay string) (UsageTotals, error)
	ListSince(ctx context.Context, userID, fromDay string) ([]db_models.UsageCounter, error)
}

type usageRepository struct {
	db *gorm.DB
}

func NewUsageRepository(db *gorm.DB) UsageRepository {
	return &usageRepository{db: db}
}

func (r *usageRepository) WithTx(tx *gorm.DB) UsageRepository {
	return &usageRepository{db: tx}
}

var usageConflictColumns = []clause.Column{{Name: "user_id"}, {Name: "usage_date"}}

func newCounter(seed CounterSeed, count int) *db_models.UsageCounter {
	return &db_models.UsageCounter{
		UserID:               seed.UserID,
		UsageDate:            seed.UsageDate,
		TransformationsCount: count,
		PlanType:             seed.PlanType,
		DailyLimit:           seed.Limit,
	}
}

// GetOrCreate returns the day's counter, creating it with the seed snapshot
// when absent. A concurrent creator wins silently.
func (r *usageRepository) GetOrCreate(ctx context.Context, seed CounterSeed) (*db_models.UsageCounter, error) {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: usageConflictColumns, DoNothing: true}).
		Create(newCounter(seed, 0)).Error
	if err != nil {
		return nil, err
	}
	counter, err := r.Find(ctx, seed.UserID, seed.UsageDate)
	if err != nil {
		return nil, err
	}
	if counter == nil {
		return nil, errors.New("usage counter missing after upsert")
	}
	return counter, nil
}

func (r *usageRepository) Find(ctx context.Context, userID, day string) (*db_models.UsageCounter, error) {
	var counter db_models.UsageCounter
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND usage_date = ?", userID, day).
		First(&counter).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &counter, nil
}

func incrementSet() clause.Set {
	return clause.Set{{
		Column: clause.Column{Name: "transformations_count"},
		Value:  gorm.Expr("usage_counters.transformations_count + 1"),
	}}
}

// Increment adds one to the day's counter, creating it at 1.
func (r *usageRepository) Increment(ctx context.Context, seed CounterSeed) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: usageConflictColumns, DoUpdates: incrementSet()}).
		Create(newCounter(seed, 1)).Error
}

// IncrementWithinLimit adds one only while the day is under its limit. The
// limit is the larger of the row's snapshot and seed.Limit, so an upgrade
// widens today's quota and a downgrade does not shrink it. It reports false
// when the counter is already at that limit.
func (r *usageRepository) IncrementWithinLimit(ctx context.Context, seed CounterSeed) (bool, error) {
	if seed.Limit < 0 {
		return true, r.Increment(ctx, seed)
	}
	if seed.Limit == 0 {
		return false, nil
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   usageConflictColumns,
			DoUpdates: incrementSet(),
			Where: clause.Where{Exprs: []clause.Expression{
				gorm.Expr("usage_counters.daily_limit < 0 OR usage_counters.transformations_count < usage_counters.daily_limit OR usage_counters.transformations_count < ?", seed.Limit),
			}},
		}).
		Create(newCounter(seed, 1))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *usageRepository) TotalsSince(ctx context.Context, userID, fromDay string) (UsageTotals, error) {
	var totals UsageTotals
	err := r.db.WithContext(ctx).
		Model(&db_models.UsageCounter{}).
		Select("COALESCE(SUM(transformations_count), 0) AS total, COUNT(*) AS active_days").
		Where("user_id = ? AND usage_date >= ? AND transformations_count > 0", userID, fromDay).
		Scan(&totals).Error
	return totals, err
}

func (r *usageRepository) ListSince(ctx context.Context, userID, fromDay string) ([]db_models.UsageCounter, error) {
	var rows []db_models.UsageCounter
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND usage_date >= ?", userID, fromDay).
		Order("usage_date DESC").
		Find(&rows).Error
	return rows, err
}
