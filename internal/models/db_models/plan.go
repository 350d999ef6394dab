package db_models

type PlanType string

const (
	PlanFree  PlanType = "free"
	PlanBasic PlanType = "basic"
	PlanPro   PlanType = "pro"
)

// Rank orders plans free < basic < pro. Unknown plans rank -1.
func (p PlanType) Rank() int {
	switch p {
	case PlanFree:
		return 0
	case PlanBasic:
		return 1
	case PlanPro:
		return 2
	default:
		return -1
	}
}

func (p PlanType) Valid() bool { return p.Rank() >= 0 }

func (p PlanType) IsPaid() bool { return p == PlanBasic || p == PlanPro }
