// Package testutil holds shared fixtures for package tests.
package testutil

import (
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"timelens/internal/infra"
	"timelens/internal/models/db_models"
)

// NewDB opens a private in-memory SQLite database with the full schema.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, infra.AutoMigrate(db))
	return db
}

// SeedUser inserts a user on plan with an active subscription status.
func SeedUser(t *testing.T, db *gorm.DB, plan db_models.PlanType) *db_models.User {
	t.Helper()

	id := uuid.New()
	user := &db_models.User{
		BaseModel:          db_models.BaseModel{ID: id},
		Name:               "user-" + id.String()[:8],
		Email:              id.String() + "@example.com",
		PasswordHash:       "x",
		Role:               "user",
		CurrentPlan:        plan,
		SubscriptionStatus: db_models.SubStatusActive,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}
