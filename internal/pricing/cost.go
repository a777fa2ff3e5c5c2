package pricing

import "github.com/shopspring/decimal"

var (
	perThousand = decimal.NewFromInt(1_000)
	perMillion  = decimal.NewFromInt(1_000_000)
)

// CostPer1K prices a completion for providers quoted per 1.000 tokens.
func CostPer1K(inputTokens, outputTokens int64, inputPrice, outputPrice decimal.Decimal) decimal.Decimal {
	in := decimal.NewFromInt(inputTokens).Div(perThousand).Mul(inputPrice)
	out := decimal.NewFromInt(outputTokens).Div(perThousand).Mul(outputPrice)
	return in.Add(out)
}

// CostPer1M prices a completion for providers quoted per 1.000.000 tokens.
func CostPer1M(inputTokens, outputTokens int64, inputPrice, outputPrice decimal.Decimal) decimal.Decimal {
	in := decimal.NewFromInt(inputTokens).Div(perMillion).Mul(inputPrice)
	out := decimal.NewFromInt(outputTokens).Div(perMillion).Mul(outputPrice)
	return in.Add(out)
}

// CompletionCost picks the divisor from the model family.
func CompletionCost(family Family, inputTokens, outputTokens int64, inputPrice, outputPrice decimal.Decimal) decimal.Decimal {
	if family == FamilyGemini {
		return CostPer1M(inputTokens, outputTokens, inputPrice, outputPrice)
	}
	return CostPer1K(inputTokens, outputTokens, inputPrice, outputPrice)
}

// UploadCost prices a knowledge-base ingestion batch. Gemini-family
// models are quoted per 1M embedding tokens, everything else per 1K.
func UploadCost(embeddingTokens int64, price decimal.Decimal, family Family) decimal.Decimal {
	divisor := perThousand
	if family == FamilyGemini {
		divisor = perMillion
	}
	return decimal.NewFromInt(embeddingTokens).Div(divisor).Mul(price)
}
