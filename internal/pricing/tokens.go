package pricing

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// wordFactor approximates tokens per whitespace-separated word when no
// tokenizer is available.
const wordFactor = 1.3

// CountTokens estimates how many tokens text consumes for model. Gemini
// models use the coarse characters/4 heuristic; other families use the
// model's subword encoding. The function never fails: any tokenizer
// error degrades to round(words * 1.3).
func CountTokens(text, model string) int {
	if text == "" {
		return 0
	}

	if ResolveFamily(model) == FamilyGemini {
		return utf8.RuneCountInString(text) / 4
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return fallbackCount(text)
	}
	return len(enc.Encode(text, nil, nil))
}

func fallbackCount(text string) int {
	words := len(strings.Fields(text))
	return int(math.Round(float64(words) * wordFactor))
}
