// Package domain contains the resold AI model price list.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/nextlevelcode/meterbill/internal/pricing"
	"github.com/shopspring/decimal"
)

// ModelPrice is one resellable model with its provider prices. Prices
// are quoted in the unit of the family: per 1K tokens for OpenAI-style
// providers, per 1M for Gemini-style ones.
type ModelPrice struct {
	ID          snowflake.ID    `json:"id" gorm:"primaryKey"`
	ModelName   string          `json:"model_name" gorm:"type:text;not null;uniqueIndex"`
	Family      pricing.Family  `json:"family" gorm:"type:text;not null"`
	TokenLimit  int64           `json:"token_limit" gorm:"not null;default:0"`
	InputPrice  decimal.Decimal `json:"input_price" gorm:"type:numeric(12,6);not null;default:0"`
	OutputPrice decimal.Decimal `json:"output_price" gorm:"type:numeric(12,6);not null;default:0"`
	CreatedAt   time.Time       `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time       `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ModelPrice) TableName() string { return "model_prices" }
