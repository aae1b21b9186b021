package vision

import "context"

// ImageRef carries both addressing forms of one stored photo. HTTP
// providers consume SignedURL; Vertex reads GSURI straight from the
// bucket.
type ImageRef struct {
	SignedURL string
	GSURI     string
}

type FoodItem struct {
	Label   string  `json:"label"`
	Portion string  `json:"portion,omitempty"`
	Kcal    float64 `json:"kcal"`
	Protein float64 `json:"protein_g"`
	Carbs   float64 `json:"carbs_g"`
	Fats    float64 `json:"fats_g"`
}

type Result struct {
	KcalMin    float64    `json:"kcal_min"`
	KcalMax    float64    `json:"kcal_max"`
	KcalMean   float64    `json:"kcal_mean"`
	Confidence float64    `json:"confidence"`
	Protein    float64    `json:"protein_g"`
	Carbs      float64    `json:"carbs_g"`
	Fats       float64    `json:"fats_g"`
	Items      []FoodItem `json:"items"`
}

// Provider estimates one meal from 1..5 photos in a single call.
type Provider interface {
	EstimateMeal(ctx context.Context, images []ImageRef, description string) (*Result, error)
}
