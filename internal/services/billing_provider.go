package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"

	"timelens/internal/config"
)

// BillingEventType is the provider-neutral name of a webhook event.
type BillingEventType string

const (
	EventSubscriptionCreated  BillingEventType = "subscription.created"
	EventSubscriptionUpdated  BillingEventType = "subscription.updated"
	EventSubscriptionCanceled BillingEventType = "subscription.canceled"
	EventOrderPaid            BillingEventType = "order.paid"
	EventOrderFailed          BillingEventType = "order.failed"
	EventOrderRefunded        BillingEventType = "order.refunded"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrUnsupportedEvent = errors.New("unsupported billing event")
)

type BillingSubscription struct {
	ID                string
	CustomerID        string
	PriceID           string
	Status            string
	StartDate         int64
	CurrentPeriodEnd  int64
	CanceledAt        int64
	EndedAt           int64
	CancelAtPeriodEnd bool
	UserID            string
}

type BillingOrder struct {
	ID             string
	CustomerID     string
	SubscriptionID string
	PriceID        string
	BillingReason  string
	Currency       string
	AmountCents    int64
	UserID         string
}

// BillingEvent is a verified, decoded webhook event.
type BillingEvent struct {
	ID           string
	Type         BillingEventType
	ProviderType string
	CreatedAt    int64
	Subscription *BillingSubscription
	Order        *BillingOrder
	Raw          []byte
}

type BillingProvider interface {
	Name() string
	ParseWebhook(payload []byte, signature string) (*BillingEvent, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
}

type StripeBillingProvider struct {
	webhookSecret string
}

func NewStripeBillingProvider(cfg config.Config) BillingProvider {
	stripe.Key = cfg.Billing.SecretKey
	return &StripeBillingProvider{webhookSecret: cfg.Billing.WebhookSecret}
}

func (p *StripeBillingProvider) Name() string { return "stripe" }

// CancelSubscription schedules cancellation at the end of the paid period.
// The local state follows when customer.subscription.deleted arrives.
func (p *StripeBillingProvider) CancelSubscription(ctx context.Context, subscriptionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(true)}
	if _, err := subscription.Update(subscriptionID, params); err != nil {
		return fmt.Errorf("stripe: cancel subscription %s: %w", subscriptionID, err)
	}
	return nil
}

var stripeEventTypes = map[string]BillingEventType{
	"customer.subscription.created": EventSubscriptionCreated,
	"customer.subscription.updated": EventSubscriptionUpdated,
	"customer.subscription.deleted": EventSubscriptionCanceled,
	"invoice.paid":                  EventOrderPaid,
	"invoice.payment_failed":        EventOrderFailed,
	"charge.refunded":               EventOrderRefunded,
}

func (p *StripeBillingProvider) ParseWebhook(payload []byte, signature string) (*BillingEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	providerType := string(event.Type)
	canonical, ok := stripeEventTypes[providerType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEvent, providerType)
	}

	out := &BillingEvent{
		ID:           event.ID,
		Type:         canonical,
		ProviderType: providerType,
		CreatedAt:    event.Created,
		Raw:          payload,
	}
	if event.Data == nil {
		return nil, fmt.Errorf("stripe: event %s has no data", event.ID)
	}
	raw := event.Data.Raw

	switch canonical {
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionCanceled:
		sub, err := decodeStripeSubscription(raw)
		if err != nil {
			return nil, err
		}
		out.Subscription = sub
	case EventOrderPaid, EventOrderFailed:
		order, err := decodeStripeInvoice(raw, canonical == EventOrderPaid)
		if err != nil {
			return nil, err
		}
		out.Order = order
	case EventOrderRefunded:
		order, err := decodeStripeCharge(raw)
		if err != nil {
			return nil, err
		}
		out.Order = order
	}
	return out, nil
}

func decodeStripeSubscription(raw []byte) (*BillingSubscription, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, fmt.Errorf("stripe: decode subscription: %w", err)
	}
	out := &BillingSubscription{
		ID:                sub.ID,
		Status:            string(sub.Status),
		StartDate:         sub.StartDate,
		CanceledAt:        sub.CanceledAt,
		EndedAt:           sub.EndedAt,
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		UserID:            sub.Metadata["user_id"],
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0] != nil {
		item := sub.Items.Data[0]
		out.CurrentPeriodEnd = item.CurrentPeriodEnd
		if item.Price != nil {
			out.PriceID = item.Price.ID
		}
	}
	return out, nil
}

func decodeStripeInvoice(raw []byte, paid bool) (*BillingOrder, error) {
	var inv stripe.Invoice
	if err := json.Unmarshal(raw, &inv); err != nil {
		return nil, fmt.Errorf("stripe: decode invoice: %w", err)
	}

	out := &BillingOrder{
		ID:            inv.ID,
		BillingReason: string(inv.BillingReason),
		Currency:      string(inv.Currency),
		AmountCents:   inv.AmountDue,
		UserID:        inv.Metadata["user_id"],
	}
	if paid {
		out.AmountCents = inv.AmountPaid
	}
	if inv.Customer != nil {
		out.CustomerID = inv.Customer.ID
	}
	if inv.Parent != nil && inv.Parent.SubscriptionDetails != nil {
		details := inv.Parent.SubscriptionDetails
		if details.Subscription != nil {
			out.SubscriptionID = details.Subscription.ID
		}
		if out.UserID == "" {
			out.UserID = details.Metadata["user_id"]
		}
	}
	if inv.Lines != nil && len(inv.Lines.Data) > 0 {
		if line := inv.Lines.Data[0]; line != nil && line.Pricing != nil && line.Pricing.PriceDetails != nil {
			out.PriceID = line.Pricing.PriceDetails.Price
		}
	}
	return out, nil
}

// stripeChargeInvoice reads charge.invoice, which the SDK's Charge type
// does not carry.
type stripeChargeInvoice struct {
	Invoice *stripe.Invoice `json:"invoice"`
}

func decodeStripeCharge(raw []byte) (*BillingOrder, error) {
	var ch stripe.Charge
	if err := json.Unmarshal(raw, &ch); err != nil {
		return nil, fmt.Errorf("stripe: decode charge: %w", err)
	}
	var ref stripeChargeInvoice
	if err := json.Unmarshal(raw, &ref); err != nil {
		return nil, fmt.Errorf("stripe: decode charge invoice: %w", err)
	}

	out := &BillingOrder{
		Currency:    string(ch.Currency),
		AmountCents: ch.AmountRefunded,
		UserID:      ch.Metadata["user_id"],
	}
	if ref.Invoice != nil {
		out.ID = ref.Invoice.ID
	}
	if ch.Customer != nil {
		out.CustomerID = ch.Customer.ID
	}
	return out, nil
}
