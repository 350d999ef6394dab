package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"timelens/internal/models/db_models"
	"timelens/internal/testutil"
	"timelens/pkg/utils"
)

func commitInTx(t *testing.T, f *fixture, userID string) error {
	t.Helper()
	return f.db.Transaction(func(tx *gorm.DB) error {
		return f.quota.CommitUsageWithinLimit(context.Background(), tx, userID)
	})
}

func TestCanTransform_FreePlanExhaustsAfterTwo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.SeedUser(t, f.db, db_models.PlanFree)
	uid := user.ID.String()

	status, err := f.quota.CanTransform(ctx, uid)
	require.NoError(t, err)
	assert.True(t, status.Allowed)
	assert.Equal(t, 2, status.Remaining)
	assert.Equal(t, 2, status.Limit)

	require.NoError(t, commitInTx(t, f, uid))
	require.NoError(t, commitInTx(t, f, uid))

	status, err = f.quota.CanTransform(ctx, uid)
	require.NoError(t, err)
	assert.False(t, status.Allowed)
	assert.Equal(t, 0, status.Remaining)
	assert.Equal(t, 2, status.Limit)

	err = commitInTx(t, f, uid)
	var quotaErr *utils.QuotaExceededError
	require.True(t, errors.As(err, &quotaErr))
	assert.Equal(t, 0, quotaErr.Remaining)
	assert.Equal(t, 2, quotaErr.Limit)
	assert.ErrorIs(t, err, utils.ErrQuotaExceeded)
}

func TestCanTransform_ProIsUnlimited(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.SeedUser(t, f.db, db_models.PlanPro)
	uid := user.ID.String()

	for i := 0; i < 60; i++ {
		require.NoError(t, commitInTx(t, f, uid))
	}

	status, err := f.quota.CanTransform(ctx, uid)
	require.NoError(t, err)
	assert.True(t, status.Allowed)
	assert.Equal(t, -1, status.Remaining)
	assert.Equal(t, -1, status.Limit)

	stats, err := f.quota.UsageStats(ctx, uid)
	require.NoError(t, err)
	assert.True(t, stats.Unlimited)
	assert.Equal(t, 60, stats.TodayCount)
	assert.EqualValues(t, 60, stats.LifetimeCount)
}

func TestCommitUsageWithinLimit_BasicLastSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.SeedUser(t, f.db, db_models.PlanBasic)
	uid := user.ID.String()

	// touch today's counter, then put it at 49
	_, err := f.quota.CanTransform(ctx, uid)
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&db_models.UsageCounter{}).
		Where("user_id = ?", uid).
		Update("transformations_count", 49).Error)

	status, err := f.quota.CanTransform(ctx, uid)
	require.NoError(t, err)
	assert.True(t, status.Allowed)
	assert.Equal(t, 1, status.Remaining)
	assert.Equal(t, 50, status.Limit)

	require.NoError(t, commitInTx(t, f, uid))

	status, err = f.quota.CanTransform(ctx, uid)
	require.NoError(t, err)
	assert.False(t, status.Allowed)
	assert.Equal(t, 0, status.Remaining)

	assert.ErrorIs(t, commitInTx(t, f, uid), utils.ErrQuotaExceeded)
}

func TestCanTransform_UpgradeWidensToday(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.SeedUser(t, f.db, db_models.PlanFree)
	uid := user.ID.String()

	require.NoError(t, commitInTx(t, f, uid))
	require.NoError(t, commitInTx(t, f, uid))

	require.NoError(t, f.userRepo.UpdateFields(ctx, uid, map[string]interface{}{"current_plan": db_models.PlanBasic}))

	status, err := f.quota.CanTransform(ctx, uid)
	require.NoError(t, err)
	assert.True(t, status.Allowed)
	assert.Equal(t, 48, status.Remaining)
	assert.Equal(t, 50, status.Limit)
	require.NoError(t, commitInTx(t, f, uid))
}

func TestCanTransform_DowngradeKeepsTodaySnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.SeedUser(t, f.db, db_models.PlanBasic)
	uid := user.ID.String()

	for i := 0; i < 5; i++ {
		require.NoError(t, commitInTx(t, f, uid))
	}
	require.NoError(t, f.userRepo.UpdateFields(ctx, uid, map[string]interface{}{"current_plan": db_models.PlanFree}))

	status, err := f.quota.CanTransform(ctx, uid)
	require.NoError(t, err)
	assert.True(t, status.Allowed)
	assert.Equal(t, 45, status.Remaining)
	assert.Equal(t, 50, status.Limit)
}

func TestCanTransform_LapsedCancellationUsesFreeLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.SeedUser(t, f.db, db_models.PlanBasic)
	uid := user.ID.String()

	require.NoError(t, f.userRepo.UpdateFields(ctx, uid, map[string]interface{}{
		"subscription_status":   db_models.SubStatusCancelled,
		"subscription_end_date": testNow.Unix() - 60,
	}))

	status, err := f.quota.CanTransform(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, 2, status.Limit)

	require.NoError(t, f.userRepo.UpdateFields(ctx, uid, map[string]interface{}{
		"subscription_end_date": testNow.Unix() + 3600,
	}))
	// counter snapshot stays at 2; the live limit is 50 again
	status, err = f.quota.CanTransform(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, 50, status.Limit)
}

func TestCanTransform_UnknownUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.quota.CanTransform(context.Background(), "6f1c1a9e-0000-4000-8000-000000000000")
	assert.ErrorIs(t, err, utils.ErrNotFound)
}

func TestUsageHistory_ClampsDaysAndOrdersNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.SeedUser(t, f.db, db_models.PlanBasic)
	uid := user.ID.String()

	for _, day := range []string{"2026-10-15", "2026-10-16", "2026-09-01"} {
		require.NoError(t, f.db.Create(&db_models.UsageCounter{
			UserID: uid, UsageDate: day, TransformationsCount: 3, PlanType: db_models.PlanBasic, DailyLimit: 50,
		}).Error)
	}
	require.NoError(t, commitInTx(t, f, uid))

	history, err := f.quota.UsageHistory(ctx, uid, 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "2026-10-17", history[0].Date)
	assert.Equal(t, 1, history[0].Count)
	assert.Equal(t, "2026-10-15", history[2].Date)

	history, err = f.quota.UsageHistory(ctx, uid, 365)
	require.NoError(t, err)
	assert.Len(t, history, 4)

	stats, err := f.quota.UsageStats(ctx, uid)
	require.NoError(t, err)
	assert.EqualValues(t, 7, stats.MonthCount)
	assert.InDelta(t, 7.0/3.0, stats.MonthDailyAvg, 0.001)
	assert.EqualValues(t, 10, stats.LifetimeCount)
	assert.Equal(t, 49, stats.TodayRemaining)
}
