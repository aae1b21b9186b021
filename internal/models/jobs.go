package models

import "time"

// Trigger types for inline interactions.
const (
	TriggerInlineQuery  = "inline_query"
	TriggerReplyMention = "reply_mention"
	TriggerTaggedPhoto  = "tagged_photo"
)

// Chat-type buckets. Every group-like Telegram chat subtype collapses
// to ChatTypeGroup; the private/group split is all analytics needs.
const (
	ChatTypePrivate = "private"
	ChatTypeGroup   = "group"
)

// EstimateJob is the serialized payload on the estimate:jobs queue.
// PhotoID is the legacy single-photo shape still accepted by the
// worker; new producers always fill PhotoIDs.
type EstimateJob struct {
	PhotoID     string    `json:"photo_id,omitempty"`
	PhotoIDs    []string  `json:"photo_ids,omitempty"`
	Description string    `json:"description,omitempty"`
	QueuedAt    time.Time `json:"queued_at"`
}

// AllPhotoIDs normalizes the legacy and current job shapes.
func (j *EstimateJob) AllPhotoIDs() []string {
	if len(j.PhotoIDs) > 0 {
		return j.PhotoIDs
	}
	if j.PhotoID != "" {
		return []string{j.PhotoID}
	}
	return nil
}

// InlineJob is the serialized payload on the inline:jobs queue. Raw
// chat/user ids are carried for delivery; their HMAC hashes are what
// the throttle and analytics layers key on.
type InlineJob struct {
	JobID       string `json:"job_id"`
	TriggerType string `json:"trigger_type"`
	ChatType    string `json:"chat_type"`

	ChatID     int64  `json:"chat_id,omitempty"`
	ChatIDHash string `json:"chat_id_hash,omitempty"`
	ThreadID   int    `json:"thread_id,omitempty"`

	ReplyToMessageID int    `json:"reply_to_message_id,omitempty"`
	InlineMessageID  string `json:"inline_message_id,omitempty"`
	OriginMessageID  int    `json:"origin_message_id,omitempty"`

	FileID  string `json:"file_id"`
	Caption string `json:"caption,omitempty"`

	UserID     int64  `json:"user_id,omitempty"`
	UserIDHash string `json:"user_id_hash,omitempty"`

	RequestedAt  time.Time `json:"requested_at"`
	AckLatencyMS int64     `json:"ack_latency_ms,omitempty"`

	// Free-form consent/retention markers, e.g. privacy_notice,
	// consent_scope, failure_dm_required.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// HasDeliveryTarget reports whether the job can be delivered at all.
func (j *InlineJob) HasDeliveryTarget() bool {
	return j.InlineMessageID != "" || j.ChatID != 0
}

// MetaBool reads a boolean metadata flag, tolerating absent keys and
// non-boolean values.
func (j *InlineJob) MetaBool(key string) bool {
	if j.Metadata == nil {
		return false
	}
	v, ok := j.Metadata[key]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}
