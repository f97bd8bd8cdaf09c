package ports

import (
	"context"
	"time"
)

// QuoteRequest is the structured input of the quote prompt
type QuoteRequest struct {
	ClientName string  `json:"clientName"`
	MRR        float64 `json:"mrr"`
	Industry   string  `json:"industry"`
}

// QuoteResult is the schema-validated output of the quote prompt
type QuoteResult struct {
	Quote       string    `json:"quote"`
	Provider    string    `json:"provider"`
	Model       string    `json:"model,omitempty"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// QuoteGenerator drafts a sales quote with an external text-generation service
type QuoteGenerator interface {
	GenerateQuote(ctx context.Context, req QuoteRequest) (QuoteResult, error)
}

// AIProviderFactory provides the AI services of one provider
type AIProviderFactory interface {
	Quotes() QuoteGenerator
	Provider() string
	IsHealthy(ctx context.Context) error
}

// AIConfig configures an AI provider
type AIConfig struct {
	Provider    string
	APIKey      string
	BaseURL     string
	QuoteModel  string
	MaxTokens   int
	Temperature float64
	TimeoutMs   int
	MockLatency time.Duration
}
