package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	dbm "timelens/internal/models/db_models"
	"timelens/internal/models/response_models"
	"timelens/internal/repositories"
	"timelens/pkg/utils"
)

const (
	RevenuePeriodMonth = "month"
	RevenuePeriodYear  = "year"

	defaultTransactionLimit = 50
	maxTransactionLimit     = 200
)

type RecordEventInput struct {
	EventID        string
	UserID         string
	SubscriptionID *string
	OrderID        string
	AmountCents    int64
	Currency       string
	Status         dbm.TransactionStatus
	Type           dbm.TransactionType
	Payload        []byte
}

type TransactionServiceInterface interface {
	RecordEvent(ctx context.Context, in RecordEventInput) (bool, error)
	UpdateTransactionStatus(ctx context.Context, id string, status dbm.TransactionStatus) error
	RefundOrder(ctx context.Context, orderID string) error
	RevenueAnalytics(ctx context.Context, period string) (response_models.RevenueAnalytics, error)
	UserTransactions(ctx context.Context, userID string, limit int) ([]response_models.TransactionResponse, error)
	FailedTransactions(ctx context.Context, limit int) ([]response_models.TransactionResponse, error)
}

type TransactionService struct {
	db       *gorm.DB
	txnRepo  repositories.TransactionRepository
	userRepo repositories.UserRepository
	clock    *utils.DayClock
	log      *zap.Logger
}

func NewTransactionService(
	db *gorm.DB,
	txnRepo repositories.TransactionRepository,
	userRepo repositories.UserRepository,
	clock *utils.DayClock,
	log *zap.Logger,
) TransactionServiceInterface {
	return &TransactionService{
		db:       db,
		txnRepo:  txnRepo,
		userRepo: userRepo,
		clock:    clock,
		log:      log,
	}
}

// RecordEvent stores one billing charge keyed by its provider event id. A
// replayed id is a no-op and reports false. A newly recorded failed charge
// marks its owner past_due in the same transaction.
func (t *TransactionService) RecordEvent(ctx context.Context, in RecordEventInput) (bool, error) {
	if in.EventID == "" || in.UserID == "" {
		return false, utils.InvalidRequest("event id and user id are required")
	}
	if in.Currency == "" {
		in.Currency = "usd"
	}

	recorded := false
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := t.txnRepo.WithTx(tx).InsertIfAbsent(ctx, &dbm.Transaction{
			ID:              in.EventID,
			UserID:          in.UserID,
			SubscriptionID:  in.SubscriptionID,
			OrderID:         in.OrderID,
			AmountCents:     in.AmountCents,
			Currency:        in.Currency,
			Status:          in.Status,
			TransactionType: in.Type,
			Payload:         datatypes.JSON(in.Payload),
		})
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		recorded = true

		if in.Status != dbm.TxnStatusFailed {
			return nil
		}
		marked, err := t.userRepo.WithTx(tx).MarkPastDue(ctx, in.UserID, in.SubscriptionID)
		if err != nil {
			return err
		}
		if !marked {
			t.log.Info("failed charge left subscription status unchanged",
				zap.String("event_id", in.EventID), zap.String("user_id", in.UserID))
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: record transaction: %v", utils.ErrDatabaseError, err)
	}

	if recorded {
		t.log.Info("transaction recorded",
			zap.String("event_id", in.EventID),
			zap.String("user_id", in.UserID),
			zap.String("status", string(in.Status)),
			zap.Int64("amount_cents", in.AmountCents))
	} else {
		t.log.Debug("duplicate transaction event ignored", zap.String("event_id", in.EventID))
	}
	return recorded, nil
}

// UpdateTransactionStatus moves a recorded transaction along
// pending -> paid|failed or paid -> refunded.
func (t *TransactionService) UpdateTransactionStatus(ctx context.Context, id string, status dbm.TransactionStatus) error {
	txn, err := t.txnRepo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}
	if txn == nil {
		return utils.ErrNotFound
	}
	if txn.Status == status {
		return nil
	}
	if !txn.Status.CanTransitionTo(status) {
		return fmt.Errorf("%w: transaction %s -> %s", utils.ErrInvalidTransition, txn.Status, status)
	}

	ok, err := t.txnRepo.UpdateStatusGuarded(ctx, id, txn.Status, status)
	if err != nil {
		return fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}
	if !ok {
		return fmt.Errorf("%w: transaction %s changed concurrently", utils.ErrInvalidTransition, id)
	}
	return nil
}

// RefundOrder marks the paid transaction of a provider order as refunded.
func (t *TransactionService) RefundOrder(ctx context.Context, orderID string) error {
	txn, err := t.txnRepo.FindPaidByOrderID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}
	if txn == nil {
		return utils.ErrNotFound
	}
	return t.UpdateTransactionStatus(ctx, txn.ID, dbm.TxnStatusRefunded)
}

func (t *TransactionService) periodStart(period string) (time.Time, error) {
	now := t.clock.Now()
	switch period {
	case "", RevenuePeriodMonth:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()), nil
	case RevenuePeriodYear:
		return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location()), nil
	default:
		return time.Time{}, utils.InvalidRequest("period must be month or year")
	}
}

func (t *TransactionService) RevenueAnalytics(ctx context.Context, period string) (response_models.RevenueAnalytics, error) {
	start, err := t.periodStart(period)
	if err != nil {
		return response_models.RevenueAnalytics{}, err
	}
	if period == "" {
		period = RevenuePeriodMonth
	}

	rows, err := t.txnRepo.SumPaidByTypeSince(ctx, start.Unix())
	if err != nil {
		return response_models.RevenueAnalytics{}, fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}

	out := response_models.RevenueAnalytics{
		Period: period,
		Since:  start.Unix(),
		ByType: make(map[string]int64, len(rows)),
	}
	for _, r := range rows {
		out.ByType[string(r.TransactionType)] += r.Sum
		out.TotalCents += r.Sum
		out.Transactions += r.Count
		if r.TransactionType == dbm.TxnTypeRecurring {
			out.MRRCents += r.Sum
		}
	}
	return out, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultTransactionLimit
	}
	if limit > maxTransactionLimit {
		return maxTransactionLimit
	}
	return limit
}

func (t *TransactionService) UserTransactions(ctx context.Context, userID string, limit int) ([]response_models.TransactionResponse, error) {
	txns, err := t.txnRepo.ListByUser(ctx, userID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}
	return toTransactionResponses(txns), nil
}

func (t *TransactionService) FailedTransactions(ctx context.Context, limit int) ([]response_models.TransactionResponse, error) {
	txns, err := t.txnRepo.ListByStatus(ctx, dbm.TxnStatusFailed, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}
	return toTransactionResponses(txns), nil
}

func toTransactionResponses(txns []dbm.Transaction) []response_models.TransactionResponse {
	out := make([]response_models.TransactionResponse, 0, len(txns))
	for _, t := range txns {
		out = append(out, response_models.TransactionResponse{
			ID:              t.ID,
			UserID:          t.UserID,
			SubscriptionID:  t.SubscriptionID,
			AmountCents:     t.AmountCents,
			Currency:        t.Currency,
			Status:          string(t.Status),
			TransactionType: string(t.TransactionType),
			CreatedAt:       t.CreatedAt,
		})
	}
	return out
}
