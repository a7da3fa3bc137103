package models

import (
	"time"

	"github.com/google/uuid"
)

// Account is the canonical identity entity. The token balance is mutated
// only through the ledger service's conditional updates, never by saving
// this struct directly.
type Account struct {
	ID           uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email        string     `gorm:"type:text;not null;uniqueIndex"`
	PasswordHash string     `gorm:"column:password_hash;not null"`
	DisplayName  string     `gorm:"column:display_name;not null"`
	Locale       string     `gorm:"column:locale;not null;default:'en'"`
	TokenBalance int64      `gorm:"column:token_balance;not null;default:0"`
	IsActive     bool       `gorm:"column:is_active;not null;default:true"`
	LastLoginAt  *time.Time `gorm:"column:last_login_at"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
