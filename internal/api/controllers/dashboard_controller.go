package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"timelens/internal/models/response_models"
	"timelens/internal/services"
	"timelens/pkg/utils"
)

type DashboardController struct {
	dashboardService   services.DashboardService
	transactionService services.TransactionServiceInterface
}

func NewDashboardController(
	dashboardService services.DashboardService,
	transactionService services.TransactionServiceInterface,
) *DashboardController {
	return &DashboardController{
		dashboardService:   dashboardService,
		transactionService: transactionService,
	}
}

// GetDashboard godoc
// @Summary Get dashboard report
// @Description Fetch KPI blocks, revenue series, plan mix, subscription status counts and recent payments
// @Tags Admin
// @Produce json
// @Param start    query string false "RFC3339 start (e.g. 2026-10-01T00:00:00Z)"
// @Param end      query string false "RFC3339 end   (e.g. 2026-10-19T23:59:59Z)"
// @Param last_days query int   false "Relative lookback in days (mutually exclusive with start/end). Default 30"
// @Param interval query string false "Bucket size: day | week | month (default: day)"
// @Param tz       query string false "IANA timezone for bucketing (default: quota timezone)"
// @Param currency query string false "ISO 4217 currency code for labeling (default: usd)"
// @Success 200 {object} utils.APIResponse
// @Failure 400 {object} utils.APIResponse
// @Security BearerAuth
// @Router /admin/dashboard [get]
func (p *DashboardController) GetDashboard(c *gin.Context) {
	interval := c.DefaultQuery("interval", services.IntervalDay)
	if !services.ValidInterval(interval) {
		utils.RespondError(c, http.StatusBadRequest, "interval must be one of: day, week, month")
		return
	}

	var start, end time.Time
	startStr := c.Query("start")
	endStr := c.Query("end")
	lastDaysStr := c.Query("last_days")

	if lastDaysStr != "" && (startStr != "" || endStr != "") {
		utils.RespondError(c, http.StatusBadRequest, "provide either last_days or start/end (not both)")
		return
	}

	switch {
	case lastDaysStr != "":
		d, convErr := strconv.Atoi(lastDaysStr)
		if convErr != nil || d <= 0 {
			utils.RespondError(c, http.StatusBadRequest, "last_days must be a positive integer")
			return
		}
		end = time.Now().UTC()
		start = end.AddDate(0, 0, -d)
	default:
		var err error
		if startStr != "" {
			if start, err = time.Parse(time.RFC3339, startStr); err != nil {
				utils.RespondError(c, http.StatusBadRequest, "start must be RFC3339 (e.g. 2026-10-01T00:00:00Z)")
				return
			}
		}
		if endStr != "" {
			if end, err = time.Parse(time.RFC3339, endStr); err != nil {
				utils.RespondError(c, http.StatusBadRequest, "end must be RFC3339 (e.g. 2026-10-19T23:59:59Z)")
				return
			}
		}
	}

	tr := response_models.TimeRange{
		Start:    start,
		End:      end,
		Interval: interval,
		Timezone: c.Query("tz"),
	}

	report, err := p.dashboardService.BuildDashboard(c.Request.Context(), tr, c.DefaultQuery("currency", "usd"))
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, report, "Dashboard data fetched successfully")
}

// GetRevenue godoc
// @Summary Revenue analytics
// @Description Paid revenue since the start of the current month or year, split by transaction type
// @Tags Admin
// @Produce json
// @Param period query string false "month | year (default month)"
// @Success 200 {object} utils.APIResponse
// @Failure 400 {object} utils.APIResponse
// @Security BearerAuth
// @Router /admin/revenue [get]
func (p *DashboardController) GetRevenue(c *gin.Context) {
	res, err := p.transactionService.RevenueAnalytics(c.Request.Context(), c.Query("period"))
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, res, "Revenue analytics fetched successfully")
}

// GetFailedTransactions godoc
// @Summary Recent failed charges
// @Tags Admin
// @Produce json
// @Param limit query int false "Max rows (default 50, max 200)"
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /admin/transactions/failed [get]
func (p *DashboardController) GetFailedTransactions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	res, err := p.transactionService.FailedTransactions(c.Request.Context(), limit)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, res, "Failed transactions fetched successfully")
}
