package db_models

// UsageCounter counts transformations per (user, calendar day). The limit
// is a snapshot of the plan limit when the row was created; -1 = unlimited.
type UsageCounter struct {
	BaseModel
	UserID               string   `gorm:"type:uuid;not null;uniqueIndex:idx_usage_user_day,priority:1"`
	UsageDate            string   `gorm:"size:10;not null;uniqueIndex:idx_usage_user_day,priority:2"` // YYYY-MM-DD
	TransformationsCount int      `gorm:"not null"`
	PlanType             PlanType `gorm:"size:16;not null"`
	DailyLimit           int      `gorm:"not null"`
}

func (UsageCounter) TableName() string { return "usage_counters" }
