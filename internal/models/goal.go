package models

import "time"

type Goal struct {
	UserID    string  `gorm:"column:user_id;type:uuid;primaryKey" json:"user_id"`
	DailyKcal float64 `gorm:"column:daily_kcal;type:double precision" json:"daily_kcal"`

	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (Goal) TableName() string { return "goals" }
