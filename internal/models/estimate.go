package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

const (
	EstimateStatusDone   = "done"
	EstimateStatusFailed = "failed"
)

// Estimate is one vision-model result covering one or more photos of a
// single meal. PhotoIDs keeps the full batch for meal-photo linking;
// PhotoID stays the first id of the batch and doubles as the job id
// callers were handed at dispatch time.
type Estimate struct {
	ID      string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	PhotoID string `gorm:"column:photo_id;type:uuid;index" json:"photo_id"`

	PhotoIDs pq.StringArray `gorm:"column:photo_ids;type:text[]" json:"photo_ids"`

	KcalMin    float64 `gorm:"column:kcal_min;type:double precision" json:"kcal_min"`
	KcalMax    float64 `gorm:"column:kcal_max;type:double precision" json:"kcal_max"`
	KcalMean   float64 `gorm:"column:kcal_mean;type:double precision" json:"kcal_mean"`
	Confidence float64 `gorm:"column:confidence;type:double precision" json:"confidence"`

	// Macronutrient totals in grams.
	Protein float64 `gorm:"column:protein_g;type:double precision" json:"protein_g"`
	Carbs   float64 `gorm:"column:carbs_g;type:double precision" json:"carbs_g"`
	Fats    float64 `gorm:"column:fats_g;type:double precision" json:"fats_g"`

	// Per-item breakdown as returned by the vision provider.
	Items datatypes.JSON `gorm:"column:items;type:jsonb" json:"items"`

	Status string `gorm:"column:status;type:text" json:"status"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (Estimate) TableName() string { return "estimates" }
