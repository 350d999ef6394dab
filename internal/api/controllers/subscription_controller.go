package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"timelens/internal/models/request_models"
	"timelens/internal/services"
	"timelens/pkg/middleware"
	"timelens/pkg/utils"
)

type SubscriptionController struct {
	subscriptionService services.SubscriptionServiceInterface
	transactionService  services.TransactionServiceInterface
}

func NewSubscriptionController(
	subscriptionService services.SubscriptionServiceInterface,
	transactionService services.TransactionServiceInterface,
) *SubscriptionController {
	return &SubscriptionController{
		subscriptionService: subscriptionService,
		transactionService:  transactionService,
	}
}

// GetSubscription godoc
// @Summary Subscription state
// @Description action=status (default), history, transactions, can-upgrade or can-downgrade (with plan)
// @Tags Subscription
// @Produce json
// @Param action query string false "status | history | transactions | can-upgrade | can-downgrade"
// @Param plan query string false "Target plan for can-upgrade / can-downgrade"
// @Success 200 {object} utils.APIResponse
// @Failure 400 {object} utils.APIResponse
// @Security BearerAuth
// @Router /subscription [get]
func (s *SubscriptionController) GetSubscription(c *gin.Context) {
	var q request_models.SubscriptionQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid query parameters")
		return
	}

	ctx := c.Request.Context()
	userID := c.GetString(middleware.ContextUserID)

	var (
		data interface{}
		err  error
	)
	switch q.Action {
	case "", "status":
		data, err = s.subscriptionService.GetUserSubscription(ctx, userID)
	case "history":
		data, err = s.subscriptionService.SubscriptionHistory(ctx, userID)
	case "transactions":
		data, err = s.transactionService.UserTransactions(ctx, userID, 0)
	case "can-upgrade", "can-downgrade":
		if q.Plan == "" {
			utils.RespondError(c, http.StatusBadRequest, "plan is required")
			return
		}
		if q.Action == "can-upgrade" {
			data, err = s.subscriptionService.CanUpgradeToPlan(ctx, userID, q.Plan)
		} else {
			data, err = s.subscriptionService.CanDowngradeToPlan(ctx, userID, q.Plan)
		}
	default:
		utils.RespondError(c, http.StatusBadRequest, "action must be one of: status, history, transactions, can-upgrade, can-downgrade")
		return
	}
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, data, "Subscription fetched successfully")
}

// CancelSubscription godoc
// @Summary Cancel my subscription
// @Description Paid subscriptions are cancelled at period end with the billing provider; the tier is kept until then.
// @Tags Subscription
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /subscription/cancel [post]
func (s *SubscriptionController) CancelSubscription(c *gin.Context) {
	res, err := s.subscriptionService.CancelSubscription(c.Request.Context(), c.GetString(middleware.ContextUserID))
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, res, "Subscription cancellation requested")
}
