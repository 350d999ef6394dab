package services

import (
	"timelens/internal/config"
	"timelens/internal/models/db_models"
	"timelens/internal/models/response_models"
	"timelens/pkg/utils"
)

// UnlimitedDaily marks a plan without a daily cap.
const UnlimitedDaily = -1

type planDef struct {
	name       string
	dailyLimit int
	priceCents int64
}

var planCatalog = map[db_models.PlanType]planDef{
	db_models.PlanFree:  {name: "Free", dailyLimit: 2, priceCents: 0},
	db_models.PlanBasic: {name: "Basic", dailyLimit: 50, priceCents: 999},
	db_models.PlanPro:   {name: "Pro", dailyLimit: UnlimitedDaily, priceCents: 1999},
}

type PlanServiceInterface interface {
	GetPlans() []response_models.PlanInfo
	DailyLimit(plan db_models.PlanType) (int, error)
	PriceCents(plan db_models.PlanType) int64
	PlanForPrice(priceID string) (db_models.PlanType, bool)
}

type PlanService struct {
	prices map[string]db_models.PlanType
}

func NewPlanService(cfg config.Config) PlanServiceInterface {
	prices := make(map[string]db_models.PlanType)
	if cfg.Billing.PriceBasic != "" {
		prices[cfg.Billing.PriceBasic] = db_models.PlanBasic
	}
	if cfg.Billing.PricePro != "" {
		prices[cfg.Billing.PricePro] = db_models.PlanPro
	}
	return &PlanService{prices: prices}
}

func (p *PlanService) GetPlans() []response_models.PlanInfo {
	out := make([]response_models.PlanInfo, 0, len(planCatalog))
	for _, plan := range []db_models.PlanType{db_models.PlanFree, db_models.PlanBasic, db_models.PlanPro} {
		def := planCatalog[plan]
		out = append(out, response_models.PlanInfo{
			Code:       string(plan),
			Name:       def.name,
			DailyLimit: def.dailyLimit,
			PriceCents: def.priceCents,
			Currency:   "USD",
			Period:     "month",
		})
	}
	return out
}

func (p *PlanService) DailyLimit(plan db_models.PlanType) (int, error) {
	def, ok := planCatalog[plan]
	if !ok {
		return 0, utils.InvalidRequest("unknown plan " + string(plan))
	}
	return def.dailyLimit, nil
}

func (p *PlanService) PriceCents(plan db_models.PlanType) int64 {
	return planCatalog[plan].priceCents
}

// PlanForPrice maps a billing-provider price id to a plan.
func (p *PlanService) PlanForPrice(priceID string) (db_models.PlanType, bool) {
	plan, ok := p.prices[priceID]
	return plan, ok
}
