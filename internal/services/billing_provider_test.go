package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeStripeSubscription_ExpandedCustomer(t *testing.T) {
	raw := []byte(`{
		"id": "sub_9",
		"object": "subscription",
		"customer": {"id": "cus_9", "object": "customer"},
		"status": "active",
		"start_date": 1700000000,
		"cancel_at_period_end": true,
		"metadata": {"user_id": "u-9"},
		"items": {"object": "list", "data": [
			{"id": "si_9", "object": "subscription_item", "current_period_end": 1702592000,
			 "price": {"id": "price_pro", "object": "price"}}
		]}
	}`)

	sub, err := decodeStripeSubscription(raw)
	require.NoError(t, err)
	assert.Equal(t, "sub_9", sub.ID)
	assert.Equal(t, "cus_9", sub.CustomerID)
	assert.Equal(t, "active", sub.Status)
	assert.Equal(t, "price_pro", sub.PriceID)
	assert.EqualValues(t, 1702592000, sub.CurrentPeriodEnd)
	assert.True(t, sub.CancelAtPeriodEnd)
	assert.Equal(t, "u-9", sub.UserID)
}

func TestDecodeStripeInvoice_ParentAndPricing(t *testing.T) {
	raw := []byte(`{
		"id": "in_9",
		"object": "invoice",
		"customer": "cus_9",
		"billing_reason": "subscription_cycle",
		"currency": "usd",
		"amount_paid": 999,
		"amount_due": 1500,
		"parent": {"type": "subscription_details", "subscription_details": {
			"subscription": {"id": "sub_9", "object": "subscription"},
			"metadata": {"user_id": "u-9"}
		}},
		"lines": {"object": "list", "data": [
			{"id": "il_1", "object": "line_item", "pricing": {"type": "price_details", "price_details": {"price": "price_basic"}}}
		]}
	}`)

	paid, err := decodeStripeInvoice(raw, true)
	require.NoError(t, err)
	assert.Equal(t, "in_9", paid.ID)
	assert.Equal(t, "cus_9", paid.CustomerID)
	assert.Equal(t, "sub_9", paid.SubscriptionID)
	assert.Equal(t, "price_basic", paid.PriceID)
	assert.Equal(t, "subscription_cycle", paid.BillingReason)
	assert.Equal(t, "u-9", paid.UserID)
	assert.EqualValues(t, 999, paid.AmountCents)

	failed, err := decodeStripeInvoice(raw, false)
	require.NoError(t, err)
	assert.EqualValues(t, 1500, failed.AmountCents)
}

func TestDecodeStripeCharge_InvoiceReference(t *testing.T) {
	order, err := decodeStripeCharge([]byte(`{"id": "ch_1", "object": "charge", "customer": "cus_1",
		"invoice": "in_1", "currency": "usd", "amount_refunded": 500}`))
	require.NoError(t, err)
	assert.Equal(t, "in_1", order.ID)
	assert.Equal(t, "cus_1", order.CustomerID)
	assert.EqualValues(t, 500, order.AmountCents)

	order, err = decodeStripeCharge([]byte(`{"id": "ch_2", "object": "charge",
		"invoice": {"id": "in_2", "object": "invoice"}}`))
	require.NoError(t, err)
	assert.Equal(t, "in_2", order.ID)
	assert.Empty(t, order.CustomerID)
}
