package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	dbm "timelens/internal/models/db_models"
)

// TypeSum is a revenue bucket per transaction type.
type TypeSum struct {
	TransactionType dbm.TransactionType `gorm:"column:transaction_type"`
	Sum             int64               `gorm:"column:sum"`
	Count           int64               `gorm:"column:count"`
}

type TransactionRepository interface {
	WithTx(tx *gorm.DB) TransactionRepository
	InsertIfAbsent(ctx context.Context, txn *dbm.Transaction) (bool, error)
	FindByID(ctx context.Context, id string) (*dbm.Transaction, error)
	FindPaidByOrderID(ctx context.Context, orderID string) (*dbm.Transaction, error)
	UpdateStatusGuarded(ctx context.Context, id string, from, to dbm.TransactionStatus) (bool, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]dbm.Transaction, error)
	ListByStatus(ctx context.Context, status dbm.TransactionStatus, limit int) ([]dbm.Transaction, error)
	SumPaidByTypeSince(ctx context.Context, since int64) ([]TypeSum, error)
}

type transactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) WithTx(tx *gorm.DB) TransactionRepository {
	return &transactionRepository{db: tx}
}

// InsertIfAbsent records txn keyed by the provider event id. A replayed
// event inserts nothing and reports false.
func (r *transactionRepository) InsertIfAbsent(ctx context.Context, txn *dbm.Transaction) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(txn)
	return res.RowsAffected > 0, res.Error
}

func (r *transactionRepository) FindByID(ctx context.Context, id string) (*dbm.Transaction, error) {
	var txn dbm.Transaction
	err := r.db.WithContext(ctx).First(&txn, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

func (r *transactionRepository) FindPaidByOrderID(ctx context.Context, orderID string) (*dbm.Transaction, error) {
	var txn dbm.Transaction
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status IN ?", orderID, []dbm.TransactionStatus{dbm.TxnStatusPaid, dbm.TxnStatusRefunded}).
		Order("created_at DESC").
		First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

func (r *transactionRepository) UpdateStatusGuarded(ctx context.Context, id string, from, to dbm.TransactionStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&dbm.Transaction{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	return res.RowsAffected > 0, res.Error
}

func (r *transactionRepository) ListByUser(ctx context.Context, userID string, limit int) ([]dbm.Transaction, error) {
	var txns []dbm.Transaction
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&txns).Error
	return txns, err
}

func (r *transactionRepository) ListByStatus(ctx context.Context, status dbm.TransactionStatus, limit int) ([]dbm.Transaction, error) {
	var txns []dbm.Transaction
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at DESC").
		Limit(limit).
		Find(&txns).Error
	return txns, err
}

func (r *transactionRepository) SumPaidByTypeSince(ctx context.Context, since int64) ([]TypeSum, error) {
	var rows []TypeSum
	err := r.db.WithContext(ctx).
		Model(&dbm.Transaction{}).
		Select("transaction_type, COALESCE(SUM(amount_cents), 0) AS sum, COUNT(*) AS count").
		Where("status = ? AND created_at >= ?", dbm.TxnStatusPaid, since).
		Group("transaction_type").
		Scan(&rows).Error
	return rows, err
}
