package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbm "timelens/internal/models/db_models"
	"timelens/internal/testutil"
	"timelens/pkg/utils"
)

func recordInput(eventID, userID string, status dbm.TransactionStatus, typ dbm.TransactionType, cents int64) RecordEventInput {
	sub := "sub_1"
	return RecordEventInput{
		EventID:        eventID,
		UserID:         userID,
		SubscriptionID: &sub,
		OrderID:        "in_" + eventID,
		AmountCents:    cents,
		Currency:       "usd",
		Status:         status,
		Type:           typ,
		Payload:        []byte(`{"id":"` + eventID + `"}`),
	}
}

func TestRecordEvent_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.SeedUser(t, f.db, dbm.PlanBasic)
	in := recordInput("evt_1", user.ID.String(), dbm.TxnStatusPaid, dbm.TxnTypeSubscriptionStart, 999)

	recorded, err := f.txns.RecordEvent(ctx, in)
	require.NoError(t, err)
	assert.True(t, recorded)

	recorded, err = f.txns.RecordEvent(ctx, in)
	require.NoError(t, err)
	assert.False(t, recorded)

	var count int64
	require.NoError(t, f.db.Model(&dbm.Transaction{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestRecordEvent_FailedChargeMarksPastDue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.SeedUser(t, f.db, dbm.PlanBasic)
	require.NoError(t, f.userRepo.UpdateFields(ctx, user.ID.String(), map[string]interface{}{"current_subscription_id": "sub_1"}))

	recorded, err := f.txns.RecordEvent(ctx, recordInput("evt_fail", user.ID.String(), dbm.TxnStatusFailed, dbm.TxnTypeRecurring, 999))
	require.NoError(t, err)
	assert.True(t, recorded)

	_, status := requireUserPlan(t, f, user.ID.String())
	assert.Equal(t, "past_due", status)

	failed, err := f.txns.FailedTransactions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "evt_fail", failed[0].ID)
	assert.Equal(t, "failed", failed[0].Status)
}

func TestRecordEvent_FailedChargeLeavesCancelledUserAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.SeedUser(t, f.db, dbm.PlanPro)
	id := user.ID.String()
	require.NoError(t, f.userRepo.UpdateFields(ctx, id, map[string]interface{}{
		"current_subscription_id": "sub_1",
		"subscription_status":     dbm.SubStatusCancelled,
		"subscription_end_date":   testNow.Unix() - 3600,
	}))

	recorded, err := f.txns.RecordEvent(ctx, recordInput("evt_late_fail", id, dbm.TxnStatusFailed, dbm.TxnTypeRecurring, 1999))
	require.NoError(t, err)
	assert.True(t, recorded)

	_, status := requireUserPlan(t, f, id)
	assert.Equal(t, "cancelled", status)

	quota, err := f.quota.CanTransform(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, quota.Limit)

	reverted, err := f.subs.ExpireLapsed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, reverted)
	plan, _ := requireUserPlan(t, f, id)
	assert.Equal(t, "free", plan)
}

func TestRecordEvent_FailedChargeForOtherSubscriptionIsIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.SeedUser(t, f.db, dbm.PlanPro)
	require.NoError(t, f.userRepo.UpdateFields(ctx, user.ID.String(), map[string]interface{}{"current_subscription_id": "sub_2"}))

	_, err := f.txns.RecordEvent(ctx, recordInput("evt_old_sub", user.ID.String(), dbm.TxnStatusFailed, dbm.TxnTypeRecurring, 999))
	require.NoError(t, err)

	_, status := requireUserPlan(t, f, user.ID.String())
	assert.Equal(t, "active", status)
}

func TestRecordEvent_RequiresIDs(t *testing.T) {
	f := newFixture(t)
	_, err := f.txns.RecordEvent(context.Background(), RecordEventInput{UserID: "u"})
	assert.ErrorIs(t, err, utils.ErrInvalidRequest)
}

func TestRefundOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.SeedUser(t, f.db, dbm.PlanBasic)

	_, err := f.txns.RecordEvent(ctx, recordInput("evt_paid", user.ID.String(), dbm.TxnStatusPaid, dbm.TxnTypeRecurring, 999))
	require.NoError(t, err)

	require.NoError(t, f.txns.RefundOrder(ctx, "in_evt_paid"))

	txns, err := f.txns.UserTransactions(ctx, user.ID.String(), 10)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "refunded", txns[0].Status)

	// replayed refund is a no-op
	require.NoError(t, f.txns.RefundOrder(ctx, "in_evt_paid"))
	assert.ErrorIs(t, f.txns.RefundOrder(ctx, "in_missing"), utils.ErrNotFound)
}

func TestUpdateTransactionStatus_RejectsIllegalMoves(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.SeedUser(t, f.db, dbm.PlanBasic)
	_, err := f.txns.RecordEvent(ctx, recordInput("evt_p", user.ID.String(), dbm.TxnStatusPending, dbm.TxnTypeRecurring, 999))
	require.NoError(t, err)

	assert.ErrorIs(t, f.txns.UpdateTransactionStatus(ctx, "evt_p", dbm.TxnStatusRefunded), utils.ErrInvalidTransition)
	require.NoError(t, f.txns.UpdateTransactionStatus(ctx, "evt_p", dbm.TxnStatusPaid))
	require.NoError(t, f.txns.UpdateTransactionStatus(ctx, "evt_p", dbm.TxnStatusPaid))
	assert.ErrorIs(t, f.txns.UpdateTransactionStatus(ctx, "evt_nope", dbm.TxnStatusPaid), utils.ErrNotFound)
}

func TestRevenueAnalytics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.SeedUser(t, f.db, dbm.PlanBasic)
	uid := user.ID.String()

	for _, in := range []RecordEventInput{
		recordInput("e1", uid, dbm.TxnStatusPaid, dbm.TxnTypeSubscriptionStart, 999),
		recordInput("e2", uid, dbm.TxnStatusPaid, dbm.TxnTypeRecurring, 999),
		recordInput("e3", uid, dbm.TxnStatusPaid, dbm.TxnTypeUpgrade, 1000),
		recordInput("e4", uid, dbm.TxnStatusFailed, dbm.TxnTypeRecurring, 1999),
	} {
		_, err := f.txns.RecordEvent(ctx, in)
		require.NoError(t, err)
	}
	// pin rows inside the current month of the test clock
	require.NoError(t, f.db.Model(&dbm.Transaction{}).Where("1 = 1").Update("created_at", testNow.Unix()).Error)

	res, err := f.txns.RevenueAnalytics(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "month", res.Period)
	assert.EqualValues(t, 2998, res.TotalCents)
	assert.EqualValues(t, 999, res.MRRCents)
	assert.EqualValues(t, 3, res.Transactions)
	assert.EqualValues(t, 1000, res.ByType["upgrade"])

	_, err = f.txns.RevenueAnalytics(ctx, "decade")
	assert.ErrorIs(t, err, utils.ErrInvalidRequest)
}
