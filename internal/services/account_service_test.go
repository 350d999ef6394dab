package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"timelens/internal/models/request_models"
	"timelens/internal/repositories"
	"timelens/internal/testutil"
	"timelens/pkg/utils"
)

func newTestAccountService(t *testing.T) (AccountServiceInterface, *utils.TokenIssuer) {
	t.Helper()
	db := testutil.NewDB(t)
	tokens := utils.NewTokenIssuer("test-secret")
	return NewAccountService(repositories.NewUserRepository(db), tokens, zap.NewNop()), tokens
}

func TestAccount_RegisterAndLogin(t *testing.T) {
	svc, tokens := newTestAccountService(t)
	ctx := context.Background()

	acc, err := svc.CreateAccount(ctx, request_models.SignUpRequest{
		DisplayName: "  Ada  ",
		Email:       "Ada@Example.COM ",
		Password:    "hunter22",
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada", acc.Name)
	assert.Equal(t, "ada@example.com", acc.Email)
	assert.Equal(t, "free", acc.Plan)
	assert.Equal(t, RoleUser, acc.Role)

	login, err := svc.Login(ctx, request_models.LoginRequest{Email: "ADA@example.com", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, "free", login.Plan)

	claims, err := tokens.ValidateToken(login.Token)
	require.NoError(t, err)
	assert.Equal(t, acc.ID, claims.Subject)
	assert.Equal(t, RoleUser, claims.Role)

	me, err := svc.GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, acc, me)
}

func TestAccount_DuplicateEmail(t *testing.T) {
	svc, _ := newTestAccountService(t)
	ctx := context.Background()
	req := request_models.SignUpRequest{DisplayName: "Ada", Email: "ada@example.com", Password: "hunter22"}

	_, err := svc.CreateAccount(ctx, req)
	require.NoError(t, err)

	req.Email = "ADA@example.com"
	_, err = svc.CreateAccount(ctx, req)
	require.ErrorIs(t, err, utils.ErrEmailAlreadyExists)
}

func TestAccount_BadCredentials(t *testing.T) {
	svc, _ := newTestAccountService(t)
	ctx := context.Background()
	_, err := svc.CreateAccount(ctx, request_models.SignUpRequest{DisplayName: "Ada", Email: "ada@example.com", Password: "hunter22"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, request_models.LoginRequest{Email: "ada@example.com", Password: "wrong-pass"})
	require.ErrorIs(t, err, utils.ErrInvalidCredentials)

	_, err = svc.Login(ctx, request_models.LoginRequest{Email: "nobody@example.com", Password: "hunter22"})
	require.ErrorIs(t, err, utils.ErrInvalidCredentials)
}

func TestAccount_GetUnknown(t *testing.T) {
	svc, _ := newTestAccountService(t)
	_, err := svc.GetAccount(context.Background(), "5b0d7c1e-8d47-4a63-9a2b-3f0c1d2e4f5a")
	require.ErrorIs(t, err, utils.ErrNotFound)
}
