package db_models

type TransformResult struct {
	BaseModel
	UserID        string `gorm:"type:uuid;not null;index"`
	OriginalPath  string `gorm:"not null"`
	OriginalURL   string `gorm:"not null"`
	GeneratedPath string `gorm:"not null"`
	GeneratedURL  string `gorm:"not null"`
	Theme         string `gorm:"size:64;not null"`
	Prompt        string
}
