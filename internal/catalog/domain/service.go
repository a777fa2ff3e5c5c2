package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrModelNotFound   = errors.New("model_not_found")
	ErrModelNameTaken  = errors.New("model_name_taken")
	ErrUnpricedFamily  = errors.New("unpriced_model_family")
	ErrNegativePricing = errors.New("negative_model_price")
)

type CreateModelRequest struct {
	ModelName   string          `json:"model_name" binding:"required"`
	TokenLimit  int64           `json:"token_limit"`
	InputPrice  decimal.Decimal `json:"input_price"`
	OutputPrice decimal.Decimal `json:"output_price"`
}

type Service interface {
	Create(ctx context.Context, req CreateModelRequest) (*ModelPrice, error)
	GetByName(ctx context.Context, modelName string) (*ModelPrice, error)
	List(ctx context.Context) ([]ModelPrice, error)
}
