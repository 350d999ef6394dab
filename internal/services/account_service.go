package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"timelens/internal/models/db_models"
	"timelens/internal/models/request_models"
	"timelens/internal/models/response_models"
	"timelens/internal/repositories"
	"timelens/pkg/utils"
)

const RoleUser = "user"

type AccountServiceInterface interface {
	Login(ctx context.Context, request request_models.LoginRequest) (response_models.AccountLoginResponse, error)
	CreateAccount(ctx context.Context, request request_models.SignUpRequest) (response_models.AccountResponse, error)
	GetAccount(ctx context.Context, userID string) (response_models.AccountResponse, error)
}

type AccountService struct {
	userRepo repositories.UserRepository
	tokens   *utils.TokenIssuer
	log      *zap.Logger
}

func NewAccountService(userRepo repositories.UserRepository, tokens *utils.TokenIssuer, log *zap.Logger) AccountServiceInterface {
	return &AccountService{
		userRepo: userRepo,
		tokens:   tokens,
		log:      log,
	}
}

func (a *AccountService) Login(ctx context.Context, request request_models.LoginRequest) (response_models.AccountLoginResponse, error) {
	user, err := a.userRepo.FindByEmail(ctx, normalizeEmail(request.Email))
	if err != nil {
		return response_models.AccountLoginResponse{}, fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}
	if user == nil {
		return response_models.AccountLoginResponse{}, utils.ErrInvalidCredentials
	}

	if err := utils.ComparePasswords(user.PasswordHash, request.Password); err != nil {
		return response_models.AccountLoginResponse{}, utils.ErrInvalidCredentials
	}

	token, err := a.tokens.CreateToken(user.ID, user.Role)
	if err != nil {
		return response_models.AccountLoginResponse{}, fmt.Errorf("issue token: %w", err)
	}

	return response_models.AccountLoginResponse{
		Token: token,
		Plan:  string(user.EffectivePlan(utils.NowUnixSeconds())),
	}, nil
}

// CreateAccount registers a user on the free plan.
func (a *AccountService) CreateAccount(ctx context.Context, request request_models.SignUpRequest) (response_models.AccountResponse, error) {
	email := normalizeEmail(request.Email)

	existing, err := a.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return response_models.AccountResponse{}, fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}
	if existing != nil {
		return response_models.AccountResponse{}, utils.ErrEmailAlreadyExists
	}

	hashed, err := utils.HashPassword(request.Password)
	if err != nil {
		return response_models.AccountResponse{}, fmt.Errorf("hash password: %w", err)
	}

	user := &db_models.User{
		Name:               strings.TrimSpace(request.DisplayName),
		Email:              email,
		PasswordHash:       hashed,
		Role:               RoleUser,
		CurrentPlan:        db_models.PlanFree,
		SubscriptionStatus: db_models.SubStatusActive,
	}
	if err := a.userRepo.Insert(ctx, user); err != nil {
		return response_models.AccountResponse{}, fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}

	a.log.Info("account created", zap.String("user_id", user.ID.String()))
	return toAccountResponse(user), nil
}

func (a *AccountService) GetAccount(ctx context.Context, userID string) (response_models.AccountResponse, error) {
	user, err := a.userRepo.FindByID(ctx, userID)
	if err != nil {
		return response_models.AccountResponse{}, fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}
	if user == nil {
		return response_models.AccountResponse{}, utils.ErrNotFound
	}
	return toAccountResponse(user), nil
}

func toAccountResponse(user *db_models.User) response_models.AccountResponse {
	return response_models.AccountResponse{
		ID:    user.ID.String(),
		Name:  user.Name,
		Email: user.Email,
		Role:  user.Role,
		Plan:  string(user.EffectivePlan(utils.NowUnixSeconds())),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
