package controllers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"timelens/internal/services"
	"timelens/pkg/utils"
)

const maxWebhookBytes = 1 << 16

type BillingWebhookController struct {
	webhookService services.BillingWebhookServiceInterface
}

func NewBillingWebhookController(webhookService services.BillingWebhookServiceInterface) *BillingWebhookController {
	return &BillingWebhookController{
		webhookService: webhookService,
	}
}

// HandleWebhook godoc
// @Summary Billing provider webhook
// @Description Verifies the Stripe-Signature header and applies subscription and charge events. Non-2xx responses make the provider retry.
// @Tags Billing
// @Accept json
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Failure 400 {object} utils.APIResponse
// @Failure 500 {object} utils.APIResponse
// @Router /webhooks/billing [post]
func (b *BillingWebhookController) HandleWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
	if err != nil {
		utils.RespondError(c, http.StatusServiceUnavailable, "Unable to read request body")
		return
	}

	err = b.webhookService.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	switch {
	case err == nil:
		utils.RespondSuccess(c, gin.H{"received": true}, "Webhook processed")
	case errors.Is(err, services.ErrInvalidSignature):
		utils.RespondError(c, http.StatusBadRequest, "Invalid webhook signature")
	default:
		utils.HandleServiceError(c, err)
	}
}
