package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"timelens/internal/models/request_models"
	"timelens/internal/services"
	"timelens/pkg/middleware"
	"timelens/pkg/utils"
)

type UsageController struct {
	quotaService services.QuotaServiceInterface
	planService  services.PlanServiceInterface
}

func NewUsageController(quotaService services.QuotaServiceInterface, planService services.PlanServiceInterface) *UsageController {
	return &UsageController{
		quotaService: quotaService,
		planService:  planService,
	}
}

// GetUsage godoc
// @Summary Quota and usage
// @Description action=check returns the current quota, stats returns today/month/lifetime counts, history returns per-day usage
// @Tags Usage
// @Produce json
// @Param action query string false "check | stats | history (default check)"
// @Param days query int false "History window in days (default 7, max 90)"
// @Success 200 {object} utils.APIResponse
// @Failure 400 {object} utils.APIResponse
// @Security BearerAuth
// @Router /usage [get]
func (u *UsageController) GetUsage(c *gin.Context) {
	var q request_models.UsageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid query parameters")
		return
	}

	ctx := c.Request.Context()
	userID := c.GetString(middleware.ContextUserID)

	switch q.Action {
	case "", "check":
		status, err := u.quotaService.CanTransform(ctx, userID)
		if err != nil {
			utils.HandleServiceError(c, err)
			return
		}
		utils.RespondSuccess(c, status, "Quota fetched successfully")
	case "stats":
		stats, err := u.quotaService.UsageStats(ctx, userID)
		if err != nil {
			utils.HandleServiceError(c, err)
			return
		}
		utils.RespondSuccess(c, stats, "Usage stats fetched successfully")
	case "history":
		history, err := u.quotaService.UsageHistory(ctx, userID, q.Days)
		if err != nil {
			utils.HandleServiceError(c, err)
			return
		}
		utils.RespondSuccess(c, history, "Usage history fetched successfully")
	default:
		utils.RespondError(c, http.StatusBadRequest, "action must be one of: check, stats, history")
	}
}

// GetPlans godoc
// @Summary Plan catalogue
// @Tags Usage
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Router /plans [get]
func (u *UsageController) GetPlans(c *gin.Context) {
	utils.RespondSuccess(c, u.planService.GetPlans(), "Plans fetched successfully")
}
