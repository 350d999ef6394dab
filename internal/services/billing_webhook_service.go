package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"timelens/internal/infra"
	dbm "timelens/internal/models/db_models"
	"timelens/internal/repositories"
	mem "timelens/pkg/memcache"
	"timelens/pkg/utils"
)

const seenEventTTL = 24 * time.Hour

var (
	errUnknownOwner = errors.New("billing event does not map to a user")
	errUnmappedPlan = errors.New("billing price does not map to a plan")
)

type BillingWebhookServiceInterface interface {
	// HandleWebhook verifies and applies one provider webhook. It returns
	// ErrInvalidSignature for unverifiable payloads and an error only when
	// the provider should retry.
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

type BillingWebhookService struct {
	provider      BillingProvider
	subscriptions SubscriptionServiceInterface
	transactions  TransactionServiceInterface
	plans         PlanServiceInterface
	userRepo      repositories.UserRepository
	seen          mem.SeenEventStore
	metrics       *infra.Metrics
	log           *zap.Logger
}

func NewBillingWebhookService(
	provider BillingProvider,
	subscriptions SubscriptionServiceInterface,
	transactions TransactionServiceInterface,
	plans PlanServiceInterface,
	userRepo repositories.UserRepository,
	seen mem.SeenEventStore,
	metrics *infra.Metrics,
	log *zap.Logger,
) BillingWebhookServiceInterface {
	return &BillingWebhookService{
		provider:      provider,
		subscriptions: subscriptions,
		transactions:  transactions,
		plans:         plans,
		userRepo:      userRepo,
		seen:          seen,
		metrics:       metrics,
		log:           log,
	}
}

func (w *BillingWebhookService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := w.provider.ParseWebhook(payload, signature)
	if err != nil {
		if errors.Is(err, ErrUnsupportedEvent) {
			w.log.Debug("ignoring unsupported billing event", zap.Error(err))
			w.metrics.WebhookEvents.WithLabelValues("unsupported", "ignored").Inc()
			return nil
		}
		if errors.Is(err, ErrInvalidSignature) {
			w.metrics.WebhookEvents.WithLabelValues("unknown", "rejected").Inc()
			return err
		}
		// verified but undecodable: retrying will not help
		w.log.Warn("malformed billing event", zap.Error(err))
		w.metrics.WebhookEvents.WithLabelValues("unknown", "dropped").Inc()
		return nil
	}

	log := w.log.With(
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("provider_type", event.ProviderType))

	if w.seen.Seen(event.ID) {
		log.Debug("billing event already processed")
		w.metrics.WebhookEvents.WithLabelValues(string(event.Type), "duplicate").Inc()
		return nil
	}

	err = w.dispatch(ctx, event)
	switch {
	case err == nil:
		w.seen.MarkSeen(event.ID, seenEventTTL)
		w.metrics.WebhookEvents.WithLabelValues(string(event.Type), "applied").Inc()
		return nil
	case isDroppable(err):
		log.Warn("billing event dropped", zap.Error(err))
		w.seen.MarkSeen(event.ID, seenEventTTL)
		w.metrics.WebhookEvents.WithLabelValues(string(event.Type), "dropped").Inc()
		return nil
	default:
		log.Error("billing event failed", zap.Error(err))
		w.metrics.WebhookEvents.WithLabelValues(string(event.Type), "failed").Inc()
		return err
	}
}

// isDroppable reports errors that a provider retry cannot fix.
func isDroppable(err error) bool {
	return errors.Is(err, utils.ErrNotFound) ||
		errors.Is(err, utils.ErrStaleEvent) ||
		errors.Is(err, utils.ErrInvalidTransition) ||
		errors.Is(err, utils.ErrInvalidRequest) ||
		errors.Is(err, errUnknownOwner) ||
		errors.Is(err, errUnmappedPlan)
}

func (w *BillingWebhookService) dispatch(ctx context.Context, event *BillingEvent) error {
	switch event.Type {
	case EventSubscriptionCreated:
		return w.onSubscriptionCreated(ctx, event)
	case EventSubscriptionUpdated, EventSubscriptionCanceled:
		return w.onSubscriptionChanged(ctx, event)
	case EventOrderPaid:
		return w.onOrder(ctx, event, dbm.TxnStatusPaid)
	case EventOrderFailed:
		return w.onOrder(ctx, event, dbm.TxnStatusFailed)
	case EventOrderRefunded:
		return w.onRefund(ctx, event)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedEvent, event.Type)
	}
}

// resolveUser finds the owner by explicit metadata first, then by the
// provider customer reference.
func (w *BillingWebhookService) resolveUser(ctx context.Context, userID, customerID string) (*dbm.User, error) {
	if _, perr := uuid.Parse(userID); perr == nil {
		user, err := w.userRepo.FindByID(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
		}
		if user != nil {
			return user, nil
		}
	}
	if customerID != "" {
		user, err := w.userRepo.FindByBillingCustomerID(ctx, customerID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
		}
		if user != nil {
			return user, nil
		}
	}
	return nil, fmt.Errorf("%w: user=%q customer=%q", errUnknownOwner, userID, customerID)
}

func (w *BillingWebhookService) onSubscriptionCreated(ctx context.Context, event *BillingEvent) error {
	sub := event.Subscription
	plan, ok := w.plans.PlanForPrice(sub.PriceID)
	if !ok {
		return fmt.Errorf("%w: %q", errUnmappedPlan, sub.PriceID)
	}
	user, err := w.resolveUser(ctx, sub.UserID, sub.CustomerID)
	if err != nil {
		return err
	}

	start := sub.StartDate
	if start == 0 {
		start = event.CreatedAt
	}
	var next *int64
	if sub.CurrentPeriodEnd > 0 {
		next = utils.Int64Ptr(sub.CurrentPeriodEnd)
	}

	_, err = w.subscriptions.CreateSubscription(ctx, CreateSubscriptionInput{
		SubscriptionID:    sub.ID,
		UserID:            user.ID.String(),
		Plan:              plan,
		BillingCustomerID: sub.CustomerID,
		StartDate:         start,
		NextBillingDate:   next,
		EventAt:           event.CreatedAt,
		Metadata:          map[string]string{"provider": w.provider.Name(), "price_id": sub.PriceID},
	})
	return err
}

// mapProviderStatus folds provider statuses into the local state machine.
// ok is false for statuses that carry no entitlement change.
func mapProviderStatus(status string) (dbm.SubscriptionStatus, bool) {
	switch strings.ToLower(status) {
	case "active", "trialing":
		return dbm.SubStatusActive, true
	case "past_due", "unpaid":
		return dbm.SubStatusPastDue, true
	case "canceled", "cancelled", "incomplete_expired":
		return dbm.SubStatusCancelled, true
	default:
		return "", false
	}
}

func (w *BillingWebhookService) onSubscriptionChanged(ctx context.Context, event *BillingEvent) error {
	sub := event.Subscription

	status := dbm.SubStatusCancelled
	if event.Type == EventSubscriptionUpdated {
		var ok bool
		status, ok = mapProviderStatus(sub.Status)
		if !ok {
			w.log.Debug("subscription status carries no entitlement change",
				zap.String("subscription_id", sub.ID), zap.String("status", sub.Status))
			return nil
		}
	}

	in := UpdateStatusInput{
		SubscriptionID: sub.ID,
		Status:         status,
		EventAt:        event.CreatedAt,
	}
	if sub.CurrentPeriodEnd > 0 && status != dbm.SubStatusCancelled {
		in.NextBillingDate = utils.Int64Ptr(sub.CurrentPeriodEnd)
	}
	if plan, ok := w.plans.PlanForPrice(sub.PriceID); ok {
		in.Plan = &plan
	}

	switch {
	case status == dbm.SubStatusCancelled && sub.EndedAt > 0:
		in.EndDate = utils.Int64Ptr(sub.EndedAt)
	case status == dbm.SubStatusCancelled && sub.CanceledAt > 0:
		in.EndDate = utils.Int64Ptr(sub.CanceledAt)
	case sub.CancelAtPeriodEnd && sub.CurrentPeriodEnd > 0:
		in.EndDate = utils.Int64Ptr(sub.CurrentPeriodEnd)
	}

	return w.subscriptions.UpdateSubscriptionStatus(ctx, in)
}

func (w *BillingWebhookService) onOrder(ctx context.Context, event *BillingEvent, status dbm.TransactionStatus) error {
	order := event.Order
	user, err := w.resolveUser(ctx, order.UserID, order.CustomerID)
	if err != nil {
		return err
	}

	var subID *string
	if order.SubscriptionID != "" {
		id := order.SubscriptionID
		subID = &id
	}

	_, err = w.transactions.RecordEvent(ctx, RecordEventInput{
		EventID:        event.ID,
		UserID:         user.ID.String(),
		SubscriptionID: subID,
		OrderID:        order.ID,
		AmountCents:    order.AmountCents,
		Currency:       order.Currency,
		Status:         status,
		Type:           w.transactionType(user, order),
		Payload:        event.Raw,
	})
	return err
}

// transactionType classifies a charge from the provider billing reason,
// falling back to whether it belongs to a subscription.
func (w *BillingWebhookService) transactionType(user *dbm.User, order *BillingOrder) dbm.TransactionType {
	switch order.BillingReason {
	case "subscription_create":
		return dbm.TxnTypeSubscriptionStart
	case "subscription_cycle":
		return dbm.TxnTypeRecurring
	case "subscription_update":
		if plan, ok := w.plans.PlanForPrice(order.PriceID); ok {
			if plan.Rank() >= user.CurrentPlan.Rank() {
				return dbm.TxnTypeUpgrade
			}
			return dbm.TxnTypeDowngrade
		}
		if order.AmountCents >= w.plans.PriceCents(user.CurrentPlan) {
			return dbm.TxnTypeUpgrade
		}
		return dbm.TxnTypeDowngrade
	}
	if order.SubscriptionID != "" {
		return dbm.TxnTypeSubscriptionStart
	}
	return dbm.TxnTypeRecurring
}

func (w *BillingWebhookService) onRefund(ctx context.Context, event *BillingEvent) error {
	if event.Order.ID == "" {
		return utils.InvalidRequest("refund does not reference an order")
	}
	return w.transactions.RefundOrder(ctx, event.Order.ID)
}
