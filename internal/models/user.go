package models

import "time"

// User rows live in the Supabase-managed users table; one row per
// Telegram account, created lazily on first contact with the bot.
type User struct {
	ID         string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	TelegramID int64  `gorm:"column:telegram_id;type:bigint;uniqueIndex" json:"telegram_id"`
	Username   string `gorm:"column:username;type:text" json:"username"`
	Language   string `gorm:"column:language;type:text" json:"language"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (User) TableName() string { return "users" }
