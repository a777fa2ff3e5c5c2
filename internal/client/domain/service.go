package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrClientNotFound = errors.New("client_not_found")
	ErrEmailTaken     = errors.New("email_taken")
	ErrInvalidAPIKey  = errors.New("invalid_api_key")
	ErrEmptyPatch     = errors.New("empty_patch")
)

type CreateClientRequest struct {
	Name         string  `json:"name" binding:"required"`
	Email        string  `json:"email" binding:"required,email"`
	MonthlyLimit float64 `json:"monthly_limit"`
}

type Service interface {
	Create(ctx context.Context, req CreateClientRequest) (*Client, error)
	Get(ctx context.Context, id snowflake.ID) (*Client, error)
	Patch(ctx context.Context, id snowflake.ID, patch ClientPatch) (*Client, error)
	// Delete removes the client and every dependent row in one
	// transaction: keys, usage records, upload records, billings.
	Delete(ctx context.Context, id snowflake.ID) error
	SetActive(ctx context.Context, id snowflake.ID, active bool) error

	// CreateKey mints a raw API key, stores only its hash, and returns
	// the raw key exactly once.
	CreateKey(ctx context.Context, clientID snowflake.ID) (string, error)
	// Authenticate resolves a raw API key to its active client.
	Authenticate(ctx context.Context, rawKey string) (*Client, error)
}
