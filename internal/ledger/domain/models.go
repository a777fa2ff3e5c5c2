// Package domain contains the append-only usage and upload records the
// billing engine aggregates over.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/nextlevelcode/meterbill/internal/pricing"
	"github.com/shopspring/decimal"
)

// UsageRecord is one billable inference call. Rows are immutable once
// written; cost is computed at request time from the model price list.
type UsageRecord struct {
	ID           snowflake.ID    `json:"id" gorm:"primaryKey"`
	ClientID     snowflake.ID    `json:"client_id" gorm:"not null;index"`
	Endpoint     string          `json:"endpoint" gorm:"type:text"`
	InputTokens  int64           `json:"input_tokens" gorm:"not null;default:0"`
	OutputTokens int64           `json:"output_tokens" gorm:"not null;default:0"`
	TotalTokens  int64           `json:"total_tokens" gorm:"not null;default:0"`
	Model        string          `json:"model" gorm:"type:text;not null"`
	Family       pricing.Family  `json:"family" gorm:"type:text;not null"`
	Cost         decimal.Decimal `json:"cost" gorm:"type:numeric(12,6);not null;default:0"`
	CreatedAt    time.Time       `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP;index"`
}

// TableName sets the database table name.
func (UsageRecord) TableName() string { return "usage_records" }

// UploadRecord is one billable knowledge-base ingestion batch.
type UploadRecord struct {
	ID              snowflake.ID    `json:"id" gorm:"primaryKey"`
	ClientID        snowflake.ID    `json:"client_id" gorm:"not null;index"`
	EmbeddingTokens int64           `json:"embedding_tokens" gorm:"not null;default:0"`
	Model           string          `json:"model" gorm:"type:text;not null"`
	Family          pricing.Family  `json:"family" gorm:"type:text;not null"`
	UploadCost      decimal.Decimal `json:"upload_cost" gorm:"type:numeric(12,6);not null;default:0"`
	CreatedAt       time.Time       `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP;index"`
}

// TableName sets the database table name.
func (UploadRecord) TableName() string { return "upload_records" }

// Summary is the read-side aggregation of a client's unbilled activity.
type Summary struct {
	RequestRecords []UsageRecord   `json:"request_records"`
	RequestCost    decimal.Decimal `json:"request_cost"`
	UploadRecords  []UploadRecord  `json:"upload_records"`
	UploadCost     decimal.Decimal `json:"upload_cost"`
	FlatFee        decimal.Decimal `json:"flat_fee"`
	// ClientAmount is request cost + upload cost + flat fee, quantized
	// half-up to two decimal places.
	ClientAmount decimal.Decimal `json:"client_amount"`
}
