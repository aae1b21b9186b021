package vision

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

func buildPrompt(photoCount int, description string) string {
	var b strings.Builder
	b.WriteString("You are a nutritionist. Estimate the calories and macronutrients of the meal shown in ")
	if photoCount == 1 {
		b.WriteString("the photo")
	} else {
		b.WriteString(strconv.Itoa(photoCount))
		b.WriteString(" photos of the same meal (different angles or dishes, count each dish once)")
	}
	b.WriteString(".\n")
	if description != "" {
		b.WriteString("The user describes the meal as: ")
		b.WriteString(description)
		b.WriteString("\n")
	}
	b.WriteString(`Respond with a single JSON object, no prose, in this exact shape:
{"kcal_min": number, "kcal_max": number, "kcal_mean": number, "confidence": number between 0 and 1, "macronutrients": {"protein_g": number, "carbs_g": number, "fats_g": number}, "items": [{"label": string, "portion": string, "kcal": number, "protein_g": number, "carbs_g": number, "fats_g": number}]}`)
	return b.String()
}

type rawEstimate struct {
	KcalMin    float64 `json:"kcal_min"`
	KcalMax    float64 `json:"kcal_max"`
	KcalMean   float64 `json:"kcal_mean"`
	Confidence float64 `json:"confidence"`
	Macros     struct {
		Protein float64 `json:"protein_g"`
		Carbs   float64 `json:"carbs_g"`
		Fats    float64 `json:"fats_g"`
	} `json:"macronutrients"`
	Items []FoodItem `json:"items"`
}

// parseResult decodes a model reply, tolerating markdown fences and
// filling kcal_mean when the model omits it.
func parseResult(text string) (*Result, error) {
	text = stripFences(text)
	if text == "" {
		return nil, errors.New("empty model response")
	}

	var raw rawEstimate
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("decode estimate json: %w", err)
	}

	r := &Result{
		KcalMin:    clampNonNegative(raw.KcalMin),
		KcalMax:    clampNonNegative(raw.KcalMax),
		KcalMean:   clampNonNegative(raw.KcalMean),
		Confidence: raw.Confidence,
		Protein:    clampNonNegative(raw.Macros.Protein),
		Carbs:      clampNonNegative(raw.Macros.Carbs),
		Fats:       clampNonNegative(raw.Macros.Fats),
		Items:      raw.Items,
	}

	if r.KcalMax < r.KcalMin {
		r.KcalMin, r.KcalMax = r.KcalMax, r.KcalMin
	}
	if r.KcalMean == 0 && (r.KcalMin > 0 || r.KcalMax > 0) {
		r.KcalMean = (r.KcalMin + r.KcalMax) / 2
	}
	if r.Confidence < 0 {
		r.Confidence = 0
	}
	if r.Confidence > 1 {
		r.Confidence = 1
	}
	return r, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
	}
	return strings.TrimSpace(s)
}

func clampNonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
