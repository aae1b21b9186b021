package models

import "time"

const (
	MealTypeBreakfast = "breakfast"
	MealTypeLunch     = "lunch"
	MealTypeDinner    = "dinner"
	MealTypeSnack     = "snack"
)

func ValidMealType(t string) bool {
	switch t {
	case MealTypeBreakfast, MealTypeLunch, MealTypeDinner, MealTypeSnack:
		return true
	}
	return false
}

type Meal struct {
	ID     string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID string `gorm:"column:user_id;type:uuid;index" json:"user_id"`

	MealDate time.Time `gorm:"column:meal_date;type:date" json:"meal_date"`
	MealType string    `gorm:"column:meal_type;type:text" json:"meal_type"`

	Kcal    float64 `gorm:"column:kcal;type:double precision" json:"kcal"`
	Protein float64 `gorm:"column:protein_g;type:double precision" json:"protein_g"`
	Carbs   float64 `gorm:"column:carbs_g;type:double precision" json:"carbs_g"`
	Fats    float64 `gorm:"column:fats_g;type:double precision" json:"fats_g"`

	Description string  `gorm:"column:description;type:text" json:"description"`
	EstimateID  *string `gorm:"column:estimate_id;type:uuid" json:"estimate_id,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (Meal) TableName() string { return "meals" }
