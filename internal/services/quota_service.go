package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"timelens/internal/models/response_models"
	"timelens/internal/repositories"
	"timelens/pkg/utils"
)

const maxHistoryDays = 90

type QuotaServiceInterface interface {
	CanTransform(ctx context.Context, userID string) (response_models.QuotaStatus, error)
	CommitUsage(ctx context.Context, userID string) error
	CommitUsageWithinLimit(ctx context.Context, tx *gorm.DB, userID string) error
	UsageStats(ctx context.Context, userID string) (response_models.UsageStats, error)
	UsageHistory(ctx context.Context, userID string, days int) ([]response_models.UsageDay, error)
}

type QuotaService struct {
	userRepo  repositories.UserRepository
	usageRepo repositories.UsageRepository
	plans     PlanServiceInterface
	clock     *utils.DayClock
	log       *zap.Logger
}

func NewQuotaService(
	userRepo repositories.UserRepository,
	usageRepo repositories.UsageRepository,
	plans PlanServiceInterface,
	clock *utils.DayClock,
	log *zap.Logger,
) QuotaServiceInterface {
	return &QuotaService{
		userRepo:  userRepo,
		usageRepo: usageRepo,
		plans:     plans,
		clock:     clock,
		log:       log,
	}
}

// seedFor resolves today's counter seed from the user's effective plan.
func (q *QuotaService) seedFor(ctx context.Context, users repositories.UserRepository, userID string) (repositories.CounterSeed, error) {
	user, err := users.FindByID(ctx, userID)
	if err != nil {
		return repositories.CounterSeed{}, fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}
	if user == nil {
		return repositories.CounterSeed{}, utils.ErrNotFound
	}

	plan := user.EffectivePlan(q.clock.Now().Unix())
	limit, err := q.plans.DailyLimit(plan)
	if err != nil {
		return repositories.CounterSeed{}, err
	}

	return repositories.CounterSeed{
		UserID:    userID,
		UsageDate: q.clock.Today(),
		PlanType:  plan,
		Limit:     limit,
	}, nil
}

// dayLimit is the larger of the row snapshot and the live plan limit.
func dayLimit(snapshot, current int) int {
	if snapshot < 0 || current < 0 {
		return UnlimitedDaily
	}
	if current > snapshot {
		return current
	}
	return snapshot
}

func (q *QuotaService) CanTransform(ctx context.Context, userID string) (response_models.QuotaStatus, error) {
	seed, err := q.seedFor(ctx, q.userRepo, userID)
	if err != nil {
		return response_models.QuotaStatus{}, err
	}
	if seed.Limit == UnlimitedDaily {
		return response_models.QuotaStatus{Allowed: true, Remaining: -1, Limit: -1}, nil
	}

	counter, err := q.usageRepo.GetOrCreate(ctx, seed)
	if err != nil {
		return response_models.QuotaStatus{}, fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}

	limit := dayLimit(counter.DailyLimit, seed.Limit)
	if limit == UnlimitedDaily {
		return response_models.QuotaStatus{Allowed: true, Remaining: -1, Limit: -1}, nil
	}
	remaining := limit - counter.TransformationsCount
	if remaining < 0 {
		remaining = 0
	}
	return response_models.QuotaStatus{Allowed: remaining > 0, Remaining: remaining, Limit: limit}, nil
}

// CommitUsage unconditionally counts one transformation for today.
func (q *QuotaService) CommitUsage(ctx context.Context, userID string) error {
	seed, err := q.seedFor(ctx, q.userRepo, userID)
	if err != nil {
		return err
	}
	if err := q.usageRepo.Increment(ctx, seed); err != nil {
		return fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}
	return nil
}

// CommitUsageWithinLimit counts one transformation inside tx, failing with a
// QuotaExceededError when the day is already exhausted.
func (q *QuotaService) CommitUsageWithinLimit(ctx context.Context, tx *gorm.DB, userID string) error {
	usage := q.usageRepo.WithTx(tx)
	seed, err := q.seedFor(ctx, q.userRepo.WithTx(tx), userID)
	if err != nil {
		return err
	}

	ok, err := usage.IncrementWithinLimit(ctx, seed)
	if err != nil {
		return fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}
	if ok {
		return nil
	}

	limit := seed.Limit
	if counter, err := usage.Find(ctx, userID, seed.UsageDate); err == nil && counter != nil {
		limit = dayLimit(counter.DailyLimit, seed.Limit)
	}
	q.log.Info("quota commit rejected", zap.String("user_id", userID), zap.Int("limit", limit))
	return &utils.QuotaExceededError{Remaining: 0, Limit: limit}
}

func (q *QuotaService) UsageStats(ctx context.Context, userID string) (response_models.UsageStats, error) {
	status, err := q.CanTransform(ctx, userID)
	if err != nil {
		return response_models.UsageStats{}, err
	}
	seed, err := q.seedFor(ctx, q.userRepo, userID)
	if err != nil {
		return response_models.UsageStats{}, err
	}

	today, err := q.usageRepo.Find(ctx, userID, seed.UsageDate)
	if err != nil {
		return response_models.UsageStats{}, fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}
	month, err := q.usageRepo.TotalsSince(ctx, userID, q.clock.StartOfMonth())
	if err != nil {
		return response_models.UsageStats{}, fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}
	lifetime, err := q.usageRepo.TotalsSince(ctx, userID, "")
	if err != nil {
		return response_models.UsageStats{}, fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}

	stats := response_models.UsageStats{
		Plan:           string(seed.PlanType),
		Unlimited:      status.Limit == UnlimitedDaily,
		TodayLimit:     status.Limit,
		TodayRemaining: status.Remaining,
		MonthCount:     month.Total,
		LifetimeCount:  lifetime.Total,
	}
	if today != nil {
		stats.TodayCount = today.TransformationsCount
	}
	if month.ActiveDays > 0 {
		stats.MonthDailyAvg = float64(month.Total) / float64(month.ActiveDays)
	}
	return stats, nil
}

func (q *QuotaService) UsageHistory(ctx context.Context, userID string, days int) ([]response_models.UsageDay, error) {
	if days <= 0 {
		days = 7
	}
	if days > maxHistoryDays {
		days = maxHistoryDays
	}

	user, err := q.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}
	if user == nil {
		return nil, utils.ErrNotFound
	}

	rows, err := q.usageRepo.ListSince(ctx, userID, q.clock.DaysAgo(days-1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}

	out := make([]response_models.UsageDay, 0, len(rows))
	for _, r := range rows {
		out = append(out, response_models.UsageDay{
			Date:       r.UsageDate,
			Count:      r.TransformationsCount,
			Plan:       string(r.PlanType),
			DailyLimit: r.DailyLimit,
		})
	}
	return out, nil
}
