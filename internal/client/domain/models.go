// Package domain contains persistence models for resold-API clients.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Client is one customer of the resold completion/embedding API.
// Billing toggles Active: invoicing deactivates the client, a receipt
// upload reactivates it.
type Client struct {
	ID           snowflake.ID `json:"id" gorm:"primaryKey"`
	Name         string       `json:"name" gorm:"type:text;not null"`
	Email        string       `json:"email" gorm:"type:text;not null;uniqueIndex"`
	MonthlyLimit float64      `json:"monthly_limit" gorm:"not null;default:2000"`
	UploadTokens int64        `json:"upload_tokens" gorm:"not null;default:0"`
	Active       bool         `json:"active" gorm:"not null;default:true"`
	CreatedAt    time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Client) TableName() string { return "clients" }

// APIKey maps one hashed capability key to a client. Only the sha256 of
// the raw key is ever stored.
type APIKey struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	ClientID  snowflake.ID `json:"client_id" gorm:"not null;index"`
	KeyHash   string       `json:"-" gorm:"type:text;not null;uniqueIndex"`
	Active    bool         `json:"active" gorm:"not null;default:true"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (APIKey) TableName() string { return "api_keys" }

// ClientPatch lists the mutable client fields for partial updates. Nil
// means "leave unchanged".
type ClientPatch struct {
	Name         *string  `json:"name"`
	Email        *string  `json:"email"`
	MonthlyLimit *float64 `json:"monthly_limit"`
	Active       *bool    `json:"active"`
}

// Empty reports whether the patch changes nothing.
func (p ClientPatch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.MonthlyLimit == nil && p.Active == nil
}
