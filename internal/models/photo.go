package models

import "time"

const (
	PhotoStatusUploaded  = "uploaded"
	PhotoStatusEstimated = "estimated"
	PhotoStatusFailed    = "failed"
)

type Photo struct {
	ID     string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID string `gorm:"column:user_id;type:uuid;index" json:"user_id"`

	ObjectKey   string `gorm:"column:object_key;type:text" json:"object_key"`
	ContentType string `gorm:"column:content_type;type:text" json:"content_type"`

	// Position within a multi-photo meal, starting at 0.
	DisplayOrder int    `gorm:"column:display_order;type:integer" json:"display_order"`
	MediaGroupID string `gorm:"column:media_group_id;type:text" json:"media_group_id,omitempty"`

	Status string `gorm:"column:status;type:text" json:"status"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (Photo) TableName() string { return "photos" }
