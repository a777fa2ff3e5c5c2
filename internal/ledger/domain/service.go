package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrUnknownModel      = errors.New("unknown_model")
	ErrNegativeTokens    = errors.New("negative_token_count")
	ErrAggregationFailed = errors.New("ledger_aggregation_failed")
)

type RecordUsageRequest struct {
	ClientID     snowflake.ID `json:"client_id"`
	Endpoint     string       `json:"endpoint"`
	Model        string       `json:"model" binding:"required"`
	InputTokens  int64        `json:"input_tokens"`
	OutputTokens int64        `json:"output_tokens"`
}

type RecordUploadRequest struct {
	ClientID        snowflake.ID `json:"client_id"`
	Model           string       `json:"model" binding:"required"`
	EmbeddingTokens int64        `json:"embedding_tokens"`
}

type Service interface {
	// RecordUsage prices one inference call and appends it atomically.
	RecordUsage(ctx context.Context, req RecordUsageRequest) (*UsageRecord, error)
	// RecordUpload prices one ingestion batch and appends it atomically.
	RecordUpload(ctx context.Context, req RecordUploadRequest) (*UploadRecord, error)
	// Aggregate sums the client's activity since its last paid billing
	// cycle over a consistent snapshot.
	Aggregate(ctx context.Context, clientID snowflake.ID) (*Summary, error)
}
