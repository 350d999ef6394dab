package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"timelens/internal/models/db_models"
	"timelens/internal/testutil"
	mem "timelens/pkg/memcache"
)

func TestReconcile_RunOnceRevertsLapsedPlans(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lapsed := testutil.SeedUser(t, f.db, db_models.PlanPro)
	require.NoError(t, f.userRepo.UpdateFields(ctx, lapsed.ID.String(), map[string]interface{}{
		"subscription_status":   db_models.SubStatusCancelled,
		"subscription_end_date": testNow.Unix() - 60,
	}))
	running := testutil.SeedUser(t, f.db, db_models.PlanBasic)
	require.NoError(t, f.userRepo.UpdateFields(ctx, running.ID.String(), map[string]interface{}{
		"subscription_status":   db_models.SubStatusCancelled,
		"subscription_end_date": testNow.Unix() + 3600,
	}))

	seen := mem.NewSeenEvents()
	seen.MarkSeen("evt_old", -time.Second)
	seen.MarkSeen("evt_fresh", time.Hour)

	r := NewReconcileService(testConfig(), f.subs, seen, zap.NewNop())
	reverted, err := r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, reverted)

	plan, _ := requireUserPlan(t, f, lapsed.ID.String())
	assert.Equal(t, string(db_models.PlanFree), plan)
	plan, _ = requireUserPlan(t, f, running.ID.String())
	assert.Equal(t, string(db_models.PlanBasic), plan)

	assert.True(t, seen.Seen("evt_fresh"))
	assert.Zero(t, seen.Sweep())

	reverted, err = r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, reverted)
}

func TestReconcile_StartStop(t *testing.T) {
	f := newFixture(t)
	r := NewReconcileService(testConfig(), f.subs, mem.NewSeenEvents(), zap.NewNop())
	require.NoError(t, r.Start())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, r.Stop(ctx))
}

func TestReconcile_InvalidSchedule(t *testing.T) {
	f := newFixture(t)
	cfg := testConfig()
	cfg.Quota.ReconcileCron = "every now and then"
	r := NewReconcileService(cfg, f.subs, mem.NewSeenEvents(), zap.NewNop())
	require.Error(t, r.Start())
}
