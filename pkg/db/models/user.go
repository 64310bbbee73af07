package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
)

// User represents a shopper or the back-office admin. Orders are not embedded;
// they are always queried by user_id.
type User struct {
	ID          uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	Email       string         `gorm:"column:email;type:text;not null;uniqueIndex:users_email_key"`
	Name        string         `gorm:"column:name;not null"`
	Role        enums.UserRole `gorm:"column:role;type:text;not null;default:'user'"`
	LastLoginAt *time.Time     `gorm:"column:last_login_at"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
