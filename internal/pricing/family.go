// Package pricing maps token counts and provider prices to monetary
// cost. All money flows through shopspring decimals; float64 never
// touches a price.
package pricing

import "strings"

// Family tags the provider pricing model of an AI model. It is resolved
// once at ingestion and carried on every usage record so that cost and
// tokenizer selection never re-parse the model name.
type Family string

const (
	// FamilyOpenAI models are priced per 1K tokens.
	FamilyOpenAI Family = "openai"
	// FamilyGemini models are priced per 1M tokens.
	FamilyGemini  Family = "gemini"
	FamilyUnknown Family = "unknown"
)

// ResolveFamily classifies a model identifier by its provider prefix.
func ResolveFamily(model string) Family {
	name := strings.ToLower(strings.TrimSpace(model))
	switch {
	case strings.HasPrefix(name, "gpt-"), strings.HasPrefix(name, "text-embedding-"), strings.HasPrefix(name, "o1"), strings.HasPrefix(name, "o3"):
		return FamilyOpenAI
	case strings.HasPrefix(name, "gemini-"), strings.Contains(name, "gemini"):
		return FamilyGemini
	default:
		return FamilyUnknown
	}
}

// Valid reports whether the family participates in billing.
func (f Family) Valid() bool {
	return f == FamilyOpenAI || f == FamilyGemini
}
