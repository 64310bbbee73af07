package models

import "time"

// KVEntry is one key-value blob, used when carts live in the database instead
// of redis.
type KVEntry struct {
	Key       string     `gorm:"column:key;type:text;primaryKey"`
	Value     []byte     `gorm:"column:value;not null"`
	ExpiresAt *time.Time `gorm:"column:expires_at"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (KVEntry) TableName() string {
	return "kv_entries"
}
