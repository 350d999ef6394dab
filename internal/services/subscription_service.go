package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"timelens/internal/models/db_models"
	"timelens/internal/models/response_models"
	"timelens/internal/repositories"
	"timelens/pkg/utils"
)

const (
	reasonAlreadyOnPlan   = "Already on this plan"
	reasonCannotUpgrade   = "Cannot upgrade to this plan"
	reasonCannotDowngrade = "Cannot downgrade to this plan"
	reasonPastDue         = "Payment is past due"

	guardedUpdateAttempts = 3
	lapseSweepBatch       = 200
)

// subscriptionTransitions lists the statuses reachable from each status.
// Same-state entries are idempotent refreshes.
var subscriptionTransitions = map[db_models.SubscriptionStatus][]db_models.SubscriptionStatus{
	db_models.SubStatusActive:    {db_models.SubStatusActive, db_models.SubStatusPastDue, db_models.SubStatusCancelled},
	db_models.SubStatusPastDue:   {db_models.SubStatusPastDue, db_models.SubStatusActive, db_models.SubStatusCancelled},
	db_models.SubStatusCancelled: {db_models.SubStatusCancelled},
}

func canTransition(from, to db_models.SubscriptionStatus) bool {
	for _, s := range subscriptionTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type CreateSubscriptionInput struct {
	SubscriptionID    string
	UserID            string
	Plan              db_models.PlanType
	BillingCustomerID string
	StartDate         int64
	NextBillingDate   *int64
	EventAt           int64
	Metadata          map[string]string
}

type UpdateStatusInput struct {
	SubscriptionID  string
	Status          db_models.SubscriptionStatus
	Plan            *db_models.PlanType
	NextBillingDate *int64
	EndDate         *int64
	EventAt         int64
}

type SubscriptionServiceInterface interface {
	CreateSubscription(ctx context.Context, in CreateSubscriptionInput) (bool, error)
	UpdateSubscriptionStatus(ctx context.Context, in UpdateStatusInput) error
	CancelSubscription(ctx context.Context, userID string) (response_models.CancelSubscriptionResponse, error)
	CanUpgradeToPlan(ctx context.Context, userID, target string) (response_models.PlanChangeCheck, error)
	CanDowngradeToPlan(ctx context.Context, userID, target string) (response_models.PlanChangeCheck, error)
	GetUserSubscription(ctx context.Context, userID string) (response_models.SubscriptionStatusResponse, error)
	SubscriptionHistory(ctx context.Context, userID string) ([]response_models.SubscriptionHistoryItem, error)
	ExpireLapsed(ctx context.Context) (int, error)
}

type SubscriptionService struct {
	db       *gorm.DB
	userRepo repositories.UserRepository
	subRepo  repositories.SubscriptionRepository
	billing  BillingProvider
	now      func() int64
	log      *zap.Logger
}

func NewSubscriptionService(
	db *gorm.DB,
	userRepo repositories.UserRepository,
	subRepo repositories.SubscriptionRepository,
	billing BillingProvider,
	log *zap.Logger,
) SubscriptionServiceInterface {
	return &SubscriptionService{
		db:       db,
		userRepo: userRepo,
		subRepo:  subRepo,
		billing:  billing,
		now:      utils.NowUnixSeconds,
		log:      log,
	}
}

// CreateSubscription records a new provider subscription and makes it the
// user's current one, unless the current one is newer. Replays of the same
// subscription id change nothing.
func (s *SubscriptionService) CreateSubscription(ctx context.Context, in CreateSubscriptionInput) (bool, error) {
	if in.SubscriptionID == "" || in.UserID == "" || !in.Plan.Valid() {
		return false, utils.InvalidRequest("subscription id, user id and a valid plan are required")
	}

	var meta datatypes.JSON
	if len(in.Metadata) > 0 {
		raw, err := json.Marshal(in.Metadata)
		if err != nil {
			return false, fmt.Errorf("marshal metadata: %w", err)
		}
		meta = raw
	}

	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := s.userRepo.WithTx(tx)
		subs := s.subRepo.WithTx(tx)

		user, err := users.FindByID(ctx, in.UserID)
		if err != nil {
			return err
		}
		if user == nil {
			return utils.ErrNotFound
		}

		inserted, err := subs.InsertIfAbsent(ctx, &db_models.Subscription{
			ID:                in.SubscriptionID,
			UserID:            in.UserID,
			PlanType:          in.Plan,
			Status:            db_models.SubStatusActive,
			BillingCustomerID: in.BillingCustomerID,
			StartDate:         in.StartDate,
			NextBillingDate:   in.NextBillingDate,
			LastEventAt:       in.EventAt,
			Metadata:          meta,
		})
		if err != nil {
			return err
		}
		if !inserted {
			return nil
		}
		created = true

		newer, err := newerCurrent(ctx, subs, user, in)
		if err != nil {
			return err
		}
		if newer != nil {
			s.log.Info("older subscription recorded as history",
				zap.String("subscription_id", in.SubscriptionID),
				zap.String("current_subscription_id", newer.ID),
				zap.String("user_id", in.UserID))
			return nil
		}

		superseded, err := subs.SupersedeActive(ctx, in.UserID, in.SubscriptionID, in.StartDate)
		if err != nil {
			return err
		}
		if superseded > 0 {
			s.log.Info("superseded previous subscriptions",
				zap.String("user_id", in.UserID), zap.Int64("count", superseded))
		}

		fields := map[string]interface{}{
			"current_plan":            in.Plan,
			"subscription_status":     db_models.SubStatusActive,
			"current_subscription_id": in.SubscriptionID,
			"subscription_start_date": in.StartDate,
			"next_billing_date":       in.NextBillingDate,
			"subscription_end_date":   nil,
		}
		if in.BillingCustomerID != "" {
			fields["billing_customer_id"] = in.BillingCustomerID
		}
		return users.UpdateFields(ctx, in.UserID, fields)
	})
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) || errors.Is(err, utils.ErrInvalidRequest) {
			return false, err
		}
		return false, fmt.Errorf("%w: create subscription: %v", utils.ErrDatabaseError, err)
	}

	if created {
		s.log.Info("subscription created",
			zap.String("subscription_id", in.SubscriptionID),
			zap.String("user_id", in.UserID),
			zap.String("plan", string(in.Plan)))
	}
	return created, nil
}

// newerCurrent returns the user's current subscription when it started after
// the incoming one, or started with it but has seen a later event.
func newerCurrent(ctx context.Context, subs repositories.SubscriptionRepository, user *db_models.User, in CreateSubscriptionInput) (*db_models.Subscription, error) {
	if user.CurrentSubscriptionID == nil || *user.CurrentSubscriptionID == in.SubscriptionID {
		return nil, nil
	}
	current, err := subs.FindByID(ctx, *user.CurrentSubscriptionID)
	if err != nil || current == nil {
		return nil, err
	}
	if current.StartDate > in.StartDate || (current.StartDate == in.StartDate && current.LastEventAt > in.EventAt) {
		return current, nil
	}
	return nil, nil
}

// UpdateSubscriptionStatus applies a provider status change. Unknown ids
// yield ErrNotFound, events older than the last applied one ErrStaleEvent,
// and transitions out of the table ErrInvalidTransition.
func (s *SubscriptionService) UpdateSubscriptionStatus(ctx context.Context, in UpdateStatusInput) error {
	if _, ok := subscriptionTransitions[in.Status]; !ok {
		return utils.InvalidRequest("unknown subscription status " + string(in.Status))
	}

	for attempt := 0; attempt < guardedUpdateAttempts; attempt++ {
		applied, err := s.tryUpdateStatus(ctx, in)
		if err != nil {
			return err
		}
		if applied {
			return nil
		}
		s.log.Debug("subscription changed concurrently, re-reading",
			zap.String("subscription_id", in.SubscriptionID), zap.Int("attempt", attempt+1))
	}
	return fmt.Errorf("%w: subscription %s kept changing concurrently", utils.ErrDatabaseError, in.SubscriptionID)
}

func (s *SubscriptionService) tryUpdateStatus(ctx context.Context, in UpdateStatusInput) (bool, error) {
	applied := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := s.userRepo.WithTx(tx)
		subs := s.subRepo.WithTx(tx)

		sub, err := subs.FindByID(ctx, in.SubscriptionID)
		if err != nil {
			return err
		}
		if sub == nil {
			return utils.ErrNotFound
		}
		if in.EventAt < sub.LastEventAt {
			return utils.ErrStaleEvent
		}
		if !canTransition(sub.Status, in.Status) {
			return fmt.Errorf("%w: %s -> %s", utils.ErrInvalidTransition, sub.Status, in.Status)
		}

		fields := map[string]interface{}{
			"status":        in.Status,
			"last_event_at": in.EventAt,
		}
		if in.NextBillingDate != nil {
			fields["next_billing_date"] = *in.NextBillingDate
		}
		if in.Plan != nil && in.Plan.Valid() {
			fields["plan_type"] = *in.Plan
		}
		endDate := in.EndDate
		if in.Status == db_models.SubStatusCancelled && endDate == nil {
			endDate = utils.Int64Ptr(s.now())
		}
		if endDate != nil {
			fields["end_date"] = *endDate
		}

		ok, err := subs.UpdateGuarded(ctx, sub.ID, sub.Status, in.EventAt, fields)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		applied = true

		user, err := users.FindByID(ctx, sub.UserID)
		if err != nil {
			return err
		}
		if user == nil || user.CurrentSubscriptionID == nil || *user.CurrentSubscriptionID != sub.ID {
			return nil
		}

		userFields := map[string]interface{}{"subscription_status": in.Status}
		if in.NextBillingDate != nil {
			userFields["next_billing_date"] = *in.NextBillingDate
		}
		if in.Plan != nil && in.Plan.Valid() {
			userFields["current_plan"] = *in.Plan
		}
		if endDate != nil {
			userFields["subscription_end_date"] = *endDate
		}
		if in.Status == db_models.SubStatusActive && endDate == nil {
			userFields["subscription_end_date"] = nil
		}
		return users.UpdateFields(ctx, user.ID.String(), userFields)
	})
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) || errors.Is(err, utils.ErrStaleEvent) || errors.Is(err, utils.ErrInvalidTransition) {
			return false, err
		}
		return false, fmt.Errorf("%w: update subscription: %v", utils.ErrDatabaseError, err)
	}

	if applied {
		s.log.Info("subscription status updated",
			zap.String("subscription_id", in.SubscriptionID),
			zap.String("status", string(in.Status)))
	}
	return applied, nil
}

// CancelSubscription cancels a free user locally and asks the provider to
// cancel a paid subscription at period end.
func (s *SubscriptionService) CancelSubscription(ctx context.Context, userID string) (response_models.CancelSubscriptionResponse, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return response_models.CancelSubscriptionResponse{}, err
	}

	if user.CurrentPlan.IsPaid() && user.CurrentSubscriptionID != nil && user.SubscriptionStatus != db_models.SubStatusCancelled {
		if err := s.billing.CancelSubscription(ctx, *user.CurrentSubscriptionID); err != nil {
			return response_models.CancelSubscriptionResponse{}, fmt.Errorf("cancel at provider: %w", err)
		}
		s.log.Info("cancellation requested at provider",
			zap.String("user_id", userID), zap.String("subscription_id", *user.CurrentSubscriptionID))
		return response_models.CancelSubscriptionResponse{Pending: true}, nil
	}

	err = s.userRepo.UpdateFields(ctx, userID, map[string]interface{}{
		"subscription_status":   db_models.SubStatusCancelled,
		"subscription_end_date": s.now(),
	})
	if err != nil {
		return response_models.CancelSubscriptionResponse{}, fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}
	return response_models.CancelSubscriptionResponse{Pending: false}, nil
}

func (s *SubscriptionService) findUser(ctx context.Context, userID string) (*db_models.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}
	if user == nil {
		return nil, utils.ErrNotFound
	}
	return user, nil
}

func parsePlan(target string) (db_models.PlanType, error) {
	plan := db_models.PlanType(target)
	if !plan.Valid() {
		return "", utils.InvalidRequest("unknown plan " + target)
	}
	return plan, nil
}

func (s *SubscriptionService) CanUpgradeToPlan(ctx context.Context, userID, target string) (response_models.PlanChangeCheck, error) {
	plan, err := parsePlan(target)
	if err != nil {
		return response_models.PlanChangeCheck{}, err
	}
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return response_models.PlanChangeCheck{}, err
	}

	switch {
	case user.CurrentPlan == plan:
		return response_models.PlanChangeCheck{Reason: reasonAlreadyOnPlan}, nil
	case plan.Rank() <= user.CurrentPlan.Rank():
		return response_models.PlanChangeCheck{Reason: reasonCannotUpgrade}, nil
	case user.SubscriptionStatus == db_models.SubStatusPastDue:
		return response_models.PlanChangeCheck{Reason: reasonPastDue}, nil
	}
	return response_models.PlanChangeCheck{Allowed: true}, nil
}

func (s *SubscriptionService) CanDowngradeToPlan(ctx context.Context, userID, target string) (response_models.PlanChangeCheck, error) {
	plan, err := parsePlan(target)
	if err != nil {
		return response_models.PlanChangeCheck{}, err
	}
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return response_models.PlanChangeCheck{}, err
	}

	switch {
	case user.CurrentPlan == plan:
		return response_models.PlanChangeCheck{Reason: reasonAlreadyOnPlan}, nil
	case plan.Rank() >= user.CurrentPlan.Rank():
		return response_models.PlanChangeCheck{Reason: reasonCannotDowngrade}, nil
	}
	return response_models.PlanChangeCheck{Allowed: true}, nil
}

func (s *SubscriptionService) GetUserSubscription(ctx context.Context, userID string) (response_models.SubscriptionStatusResponse, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return response_models.SubscriptionStatusResponse{}, err
	}
	return response_models.SubscriptionStatusResponse{
		UserID:                user.ID.String(),
		Plan:                  string(user.CurrentPlan),
		EffectivePlan:         string(user.EffectivePlan(s.now())),
		Status:                string(user.SubscriptionStatus),
		BillingCustomerID:     user.BillingCustomerID,
		SubscriptionStartDate: utils.FromUnixSeconds(user.SubscriptionStartDate),
		SubscriptionEndDate:   utils.FromUnixSeconds(user.SubscriptionEndDate),
		NextBillingDate:       utils.FromUnixSeconds(user.NextBillingDate),
	}, nil
}

func (s *SubscriptionService) SubscriptionHistory(ctx context.Context, userID string) ([]response_models.SubscriptionHistoryItem, error) {
	if _, err := s.findUser(ctx, userID); err != nil {
		return nil, err
	}
	subs, err := s.subRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}

	out := make([]response_models.SubscriptionHistoryItem, 0, len(subs))
	for _, sub := range subs {
		start := sub.StartDate
		out = append(out, response_models.SubscriptionHistoryItem{
			ID:              sub.ID,
			Plan:            string(sub.PlanType),
			Status:          string(sub.Status),
			StartDate:       utils.FromUnixSeconds(&start),
			NextBillingDate: utils.FromUnixSeconds(sub.NextBillingDate),
			EndDate:         utils.FromUnixSeconds(sub.EndDate),
		})
	}
	return out, nil
}

// ExpireLapsed moves users whose cancelled paid plan has ended back to free.
func (s *SubscriptionService) ExpireLapsed(ctx context.Context) (int, error) {
	now := s.now()
	users, err := s.userRepo.FindLapsedCancellations(ctx, now, lapseSweepBatch)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}

	reverted := 0
	for _, u := range users {
		ok, err := s.userRepo.RevertLapsedToFree(ctx, u.ID.String(), now)
		if err != nil {
			s.log.Error("failed to revert lapsed plan", zap.String("user_id", u.ID.String()), zap.Error(err))
			continue
		}
		if ok {
			reverted++
		}
	}
	if reverted > 0 {
		s.log.Info("reverted lapsed subscriptions to free", zap.Int("count", reverted))
	}
	return reverted, nil
}
