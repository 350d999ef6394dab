package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timelens/internal/models/db_models"
	"timelens/internal/testutil"
	"timelens/pkg/utils"
)

func createSub(t *testing.T, f *fixture, userID, subID string, plan db_models.PlanType, eventAt int64) bool {
	t.Helper()
	created, err := f.subs.CreateSubscription(context.Background(), CreateSubscriptionInput{
		SubscriptionID:    subID,
		UserID:            userID,
		Plan:              plan,
		BillingCustomerID: "cus_" + subID,
		StartDate:         eventAt,
		NextBillingDate:   utils.Int64Ptr(eventAt + 30*86400),
		EventAt:           eventAt,
		Metadata:          map[string]string{"provider": "fake"},
	})
	require.NoError(t, err)
	return created
}

func TestCreateSubscription_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	user := testutil.SeedUser(t, f.db, db_models.PlanFree)
	uid := user.ID.String()

	assert.True(t, createSub(t, f, uid, "sub_1", db_models.PlanBasic, 100))
	assert.False(t, createSub(t, f, uid, "sub_1", db_models.PlanBasic, 100))

	var count int64
	require.NoError(t, f.db.Model(&db_models.Subscription{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	u, err := f.userRepo.FindByID(context.Background(), uid)
	require.NoError(t, err)
	assert.Equal(t, db_models.PlanBasic, u.CurrentPlan)
	assert.Equal(t, db_models.SubStatusActive, u.SubscriptionStatus)
	require.NotNil(t, u.CurrentSubscriptionID)
	assert.Equal(t, "sub_1", *u.CurrentSubscriptionID)
	require.NotNil(t, u.BillingCustomerID)
	assert.Equal(t, "cus_sub_1", *u.BillingCustomerID)
}

func TestCreateSubscription_SupersedesPrevious(t *testing.T) {
	f := newFixture(t)
	user := testutil.SeedUser(t, f.db, db_models.PlanFree)
	uid := user.ID.String()

	createSub(t, f, uid, "sub_old", db_models.PlanBasic, 100)
	createSub(t, f, uid, "sub_new", db_models.PlanPro, 200)

	old, err := f.subs.subRepo.FindByID(context.Background(), "sub_old")
	require.NoError(t, err)
	assert.Equal(t, db_models.SubStatusCancelled, old.Status)

	plan, status := requireUserPlan(t, f, uid)
	assert.Equal(t, "pro", plan)
	assert.Equal(t, "active", status)
}

func TestCreateSubscription_LateOlderSubscriptionIsHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.SeedUser(t, f.db, db_models.PlanFree)
	uid := user.ID.String()

	assert.True(t, createSub(t, f, uid, "sub_new", db_models.PlanPro, 2000))
	assert.True(t, createSub(t, f, uid, "sub_old", db_models.PlanBasic, 1000))

	u, err := f.userRepo.FindByID(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, db_models.PlanPro, u.CurrentPlan)
	assert.Equal(t, db_models.SubStatusActive, u.SubscriptionStatus)
	require.NotNil(t, u.CurrentSubscriptionID)
	assert.Equal(t, "sub_new", *u.CurrentSubscriptionID)
	require.NotNil(t, u.BillingCustomerID)
	assert.Equal(t, "cus_sub_new", *u.BillingCustomerID)

	current, err := f.subs.subRepo.FindByID(ctx, "sub_new")
	require.NoError(t, err)
	assert.Equal(t, db_models.SubStatusActive, current.Status)

	history, err := f.subs.SubscriptionHistory(ctx, uid)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "sub_new", history[0].ID)
	assert.Equal(t, "sub_old", history[1].ID)

	// the late subscription's own cancellation leaves the user on sub_new
	require.NoError(t, f.subs.UpdateSubscriptionStatus(ctx, UpdateStatusInput{
		SubscriptionID: "sub_old",
		Status:         db_models.SubStatusCancelled,
		EventAt:        2100,
	}))
	plan, status := requireUserPlan(t, f, uid)
	assert.Equal(t, "pro", plan)
	assert.Equal(t, "active", status)
}

func TestCreateSubscription_UnknownUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.subs.CreateSubscription(context.Background(), CreateSubscriptionInput{
		SubscriptionID: "sub_x",
		UserID:         "6f1c1a9e-0000-4000-8000-000000000000",
		Plan:           db_models.PlanBasic,
	})
	assert.ErrorIs(t, err, utils.ErrNotFound)
}

func TestUpdateSubscriptionStatus_Transitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.SeedUser(t, f.db, db_models.PlanFree)
	uid := user.ID.String()
	createSub(t, f, uid, "sub_1", db_models.PlanBasic, 100)

	require.NoError(t, f.subs.UpdateSubscriptionStatus(ctx, UpdateStatusInput{
		SubscriptionID: "sub_1", Status: db_models.SubStatusPastDue, EventAt: 200,
	}))
	_, status := requireUserPlan(t, f, uid)
	assert.Equal(t, "past_due", status)

	// older event arriving late
	err := f.subs.UpdateSubscriptionStatus(ctx, UpdateStatusInput{
		SubscriptionID: "sub_1", Status: db_models.SubStatusActive, EventAt: 150,
	})
	assert.ErrorIs(t, err, utils.ErrStaleEvent)
	_, status = requireUserPlan(t, f, uid)
	assert.Equal(t, "past_due", status)

	require.NoError(t, f.subs.UpdateSubscriptionStatus(ctx, UpdateStatusInput{
		SubscriptionID: "sub_1", Status: db_models.SubStatusActive, EventAt: 250,
	}))

	end := testNow.Unix() + 86400
	require.NoError(t, f.subs.UpdateSubscriptionStatus(ctx, UpdateStatusInput{
		SubscriptionID: "sub_1", Status: db_models.SubStatusCancelled, EndDate: &end, EventAt: 300,
	}))
	u, err := f.userRepo.FindByID(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, db_models.SubStatusCancelled, u.SubscriptionStatus)
	require.NotNil(t, u.SubscriptionEndDate)
	assert.Equal(t, end, *u.SubscriptionEndDate)
	assert.Equal(t, db_models.PlanBasic, u.EffectivePlan(testNow.Unix()))

	err = f.subs.UpdateSubscriptionStatus(ctx, UpdateStatusInput{
		SubscriptionID: "sub_1", Status: db_models.SubStatusActive, EventAt: 400,
	})
	assert.ErrorIs(t, err, utils.ErrInvalidTransition)

	err = f.subs.UpdateSubscriptionStatus(ctx, UpdateStatusInput{
		SubscriptionID: "sub_missing", Status: db_models.SubStatusActive, EventAt: 400,
	})
	assert.ErrorIs(t, err, utils.ErrNotFound)
}

func TestUpdateSubscriptionStatus_SupersededDoesNotTouchUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.SeedUser(t, f.db, db_models.PlanFree)
	uid := user.ID.String()
	createSub(t, f, uid, "sub_a", db_models.PlanBasic, 100)
	createSub(t, f, uid, "sub_b", db_models.PlanPro, 200)

	// sub_a is cancelled by supersession; a late cancel event for it is a no-op refresh
	require.NoError(t, f.subs.UpdateSubscriptionStatus(ctx, UpdateStatusInput{
		SubscriptionID: "sub_a", Status: db_models.SubStatusCancelled, EventAt: 300,
	}))
	plan, status := requireUserPlan(t, f, uid)
	assert.Equal(t, "pro", plan)
	assert.Equal(t, "active", status)
}

func TestCanUpgradeToPlan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pro := testutil.SeedUser(t, f.db, db_models.PlanPro)
	check, err := f.subs.CanUpgradeToPlan(ctx, pro.ID.String(), "basic")
	require.NoError(t, err)
	assert.False(t, check.Allowed)
	assert.Equal(t, "Cannot upgrade to this plan", check.Reason)

	check, err = f.subs.CanUpgradeToPlan(ctx, pro.ID.String(), "pro")
	require.NoError(t, err)
	assert.Equal(t, "Already on this plan", check.Reason)

	free := testutil.SeedUser(t, f.db, db_models.PlanFree)
	check, err = f.subs.CanUpgradeToPlan(ctx, free.ID.String(), "pro")
	require.NoError(t, err)
	assert.True(t, check.Allowed)
	assert.Empty(t, check.Reason)

	marked, err := f.userRepo.MarkPastDue(ctx, free.ID.String(), nil)
	require.NoError(t, err)
	require.True(t, marked)
	check, err = f.subs.CanUpgradeToPlan(ctx, free.ID.String(), "basic")
	require.NoError(t, err)
	assert.Equal(t, "Payment is past due", check.Reason)

	_, err = f.subs.CanUpgradeToPlan(ctx, free.ID.String(), "platinum")
	assert.ErrorIs(t, err, utils.ErrInvalidRequest)
}

func TestCanDowngradeToPlan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	basic := testutil.SeedUser(t, f.db, db_models.PlanBasic)

	check, err := f.subs.CanDowngradeToPlan(ctx, basic.ID.String(), "free")
	require.NoError(t, err)
	assert.True(t, check.Allowed)

	check, err = f.subs.CanDowngradeToPlan(ctx, basic.ID.String(), "pro")
	require.NoError(t, err)
	assert.Equal(t, "Cannot downgrade to this plan", check.Reason)
}

func TestCancelSubscription(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	paid := testutil.SeedUser(t, f.db, db_models.PlanFree)
	createSub(t, f, paid.ID.String(), "sub_1", db_models.PlanBasic, 100)

	res, err := f.subs.CancelSubscription(ctx, paid.ID.String())
	require.NoError(t, err)
	assert.True(t, res.Pending)
	assert.Equal(t, []string{"sub_1"}, f.billing.cancelled)
	_, status := requireUserPlan(t, f, paid.ID.String())
	assert.Equal(t, "active", status)

	free := testutil.SeedUser(t, f.db, db_models.PlanFree)
	res, err = f.subs.CancelSubscription(ctx, free.ID.String())
	require.NoError(t, err)
	assert.False(t, res.Pending)
	_, status = requireUserPlan(t, f, free.ID.String())
	assert.Equal(t, "cancelled", status)
}

func TestExpireLapsed_RevertsEndedPlans(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lapsed := testutil.SeedUser(t, f.db, db_models.PlanBasic)
	require.NoError(t, f.userRepo.UpdateFields(ctx, lapsed.ID.String(), map[string]interface{}{
		"subscription_status":   db_models.SubStatusCancelled,
		"subscription_end_date": testNow.Unix() - 10,
	}))
	pending := testutil.SeedUser(t, f.db, db_models.PlanPro)
	require.NoError(t, f.userRepo.UpdateFields(ctx, pending.ID.String(), map[string]interface{}{
		"subscription_status":   db_models.SubStatusCancelled,
		"subscription_end_date": testNow.Unix() + 3600,
	}))

	n, err := f.subs.ExpireLapsed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	plan, _ := requireUserPlan(t, f, lapsed.ID.String())
	assert.Equal(t, "free", plan)
	plan, _ = requireUserPlan(t, f, pending.ID.String())
	assert.Equal(t, "pro", plan)

	history, err := f.subs.SubscriptionHistory(ctx, lapsed.ID.String())
	require.NoError(t, err)
	assert.Empty(t, history)
}
