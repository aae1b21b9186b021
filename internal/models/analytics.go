package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Inline delivery SLA targets reported by the analytics summary.
const (
	SLAAckTargetMS          = 3000
	SLAResultTargetMS       = 12000
	SLAAccuracyTolerancePct = 5.0
)

// InlineAnalyticsDaily is one rollup row per (date, chat_type).
// Latency averages roll incrementally over delivered jobs; the p95
// field is a running maximum kept as a cheap percentile proxy.
type InlineAnalyticsDaily struct {
	Date     time.Time `gorm:"column:date;type:date;primaryKey" json:"date"`
	ChatType string    `gorm:"column:chat_type;type:text;primaryKey" json:"chat_type"`

	Requests          int64 `gorm:"column:requests;type:bigint" json:"requests"`
	Delivered         int64 `gorm:"column:delivered;type:bigint" json:"delivered"`
	Failed            int64 `gorm:"column:failed;type:bigint" json:"failed"`
	PermissionBlocked int64 `gorm:"column:permission_blocked;type:bigint" json:"permission_blocked"`

	TriggerCounts  datatypes.JSON `gorm:"column:trigger_counts;type:jsonb" json:"trigger_counts"`
	FailureReasons datatypes.JSON `gorm:"column:failure_reasons;type:jsonb" json:"failure_reasons"`

	AvgAckLatencyMS    float64 `gorm:"column:avg_ack_latency_ms;type:double precision" json:"avg_ack_latency_ms"`
	AvgResultLatencyMS float64 `gorm:"column:avg_result_latency_ms;type:double precision" json:"avg_result_latency_ms"`
	P95ResultLatencyMS int64   `gorm:"column:p95_result_latency_ms;type:bigint" json:"p95_result_latency_ms"`

	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (InlineAnalyticsDaily) TableName() string { return "inline_analytics_daily" }

// InlineOutcome is one terminal inline-job result folded into the
// day's rollup row.
type InlineOutcome struct {
	Date        time.Time
	ChatType    string
	TriggerType string

	Delivered         bool
	PermissionBlocked bool
	FailureReason     string

	AckLatencyMS    int64
	ResultLatencyMS int64
}

// Apply folds one outcome into the row. Latency rollups only move on
// delivered jobs: avg' = (avg*(n-1) + L) / n over the delivered count.
func (a *InlineAnalyticsDaily) Apply(o InlineOutcome) {
	a.Requests++
	a.TriggerCounts = bumpJSONCounter(a.TriggerCounts, o.TriggerType)

	if o.PermissionBlocked {
		a.PermissionBlocked++
	}

	if o.Delivered {
		a.Delivered++
		n := float64(a.Delivered)
		a.AvgAckLatencyMS = (a.AvgAckLatencyMS*(n-1) + float64(o.AckLatencyMS)) / n
		a.AvgResultLatencyMS = (a.AvgResultLatencyMS*(n-1) + float64(o.ResultLatencyMS)) / n
		if o.ResultLatencyMS > a.P95ResultLatencyMS {
			a.P95ResultLatencyMS = o.ResultLatencyMS
		}
		return
	}

	a.Failed++
	if o.FailureReason != "" {
		a.FailureReasons = bumpJSONCounter(a.FailureReasons, o.FailureReason)
	}
}

func bumpJSONCounter(raw datatypes.JSON, key string) datatypes.JSON {
	if key == "" {
		return raw
	}
	m := map[string]int64{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &m)
	}
	m[key]++
	b, _ := json.Marshal(m)
	return datatypes.JSON(b)
}
