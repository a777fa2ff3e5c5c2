// Package seed bootstraps the model price list so a fresh install can
// meter usage without manual catalog setup.
package seed

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/nextlevelcode/meterbill/internal/catalog/domain"
	"github.com/nextlevelcode/meterbill/internal/pricing"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type defaultModel struct {
	name        string
	tokenLimit  int64
	inputPrice  string
	outputPrice string
}

// Prices are quoted in the unit of the family: per 1K tokens for
// OpenAI models, per 1M for Gemini.
var defaultModels = []defaultModel{
	{name: "gpt-4o", tokenLimit: 128_000, inputPrice: "0.0025", outputPrice: "0.01"},
	{name: "gpt-4o-mini", tokenLimit: 128_000, inputPrice: "0.00015", outputPrice: "0.0006"},
	{name: "text-embedding-3-small", tokenLimit: 8_191, inputPrice: "0.00002", outputPrice: "0"},
	{name: "gemini-1.5-pro", tokenLimit: 2_000_000, inputPrice: "1.25", outputPrice: "5"},
	{name: "gemini-1.5-flash", tokenLimit: 1_000_000, inputPrice: "0.075", outputPrice: "0.30"},
}

// EnsureDefaultModels inserts the built-in price list, skipping any
// model an operator already configured.
func EnsureDefaultModels(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range defaultModels {
			var count int64
			if err := tx.Model(&catalogdomain.ModelPrice{}).
				Where("model_name = ?", m.name).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				continue
			}

			row := &catalogdomain.ModelPrice{
				ID:          node.Generate(),
				ModelName:   m.name,
				Family:      pricing.ResolveFamily(m.name),
				TokenLimit:  m.tokenLimit,
				InputPrice:  decimal.RequireFromString(m.inputPrice),
				OutputPrice: decimal.RequireFromString(m.outputPrice),
			}
			if err := tx.Create(row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
