package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/opsdeck/opsdeck/internal/ports"
)

// MockQuoteService drafts deterministic quotes without calling out; used in development and tests
type MockQuoteService struct {
	latency time.Duration
}

// NewMockQuoteService creates a mock quote service
func NewMockQuoteService(config ports.AIConfig) *MockQuoteService {
	return &MockQuoteService{latency: config.MockLatency}
}

// GenerateQuote renders a fixed template around the request
func (m *MockQuoteService) GenerateQuote(ctx context.Context, req ports.QuoteRequest) (ports.QuoteResult, error) {
	if m.latency > 0 {
		select {
		case <-time.After(m.latency):
		case <-ctx.Done():
			return ports.QuoteResult{}, ctx.Err()
		}
	}

	industry := strings.ToLower(req.Industry)
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s team,\n\n", req.ClientName)
	fmt.Fprintf(&b, "Thank you for considering us as your managed service partner. Based on your current monthly recurring revenue of %s, ", formatAmount(req.MRR))
	fmt.Fprintf(&b, "we have put together a proposal tailored to the realities of the %s industry. ", industry)
	b.WriteString("Our engagement covers round-the-clock monitoring of your infrastructure, proactive patch management, ")
	b.WriteString("endpoint protection and a dedicated service desk that answers within fifteen minutes during business hours. ")
	fmt.Fprintf(&b, "Because %s businesses depend on predictable uptime, every plan includes quarterly business reviews, ", industry)
	b.WriteString("a documented disaster recovery runbook and license optimisation that typically recovers a meaningful share of software spend in the first year. ")
	b.WriteString("Onboarding takes four weeks and follows a fixed checklist so nothing slips between teams. ")
	fmt.Fprintf(&b, "Pricing scales with the %s revenue you already generate, which keeps our incentives aligned with your growth: ", formatAmount(req.MRR))
	b.WriteString("as you add users and locations, the per-seat rate falls rather than rises. ")
	b.WriteString("We also assign a named technical account manager who learns your environment and owns every escalation end to end. ")
	b.WriteString("We would welcome a short call to walk through the scope, answer questions from your finance and IT leads, and agree on a start date that suits you.\n\n")
	b.WriteString("Kind regards,\nThe Solutions Team")

	return ports.QuoteResult{
		Quote:       b.String(),
		Provider:    "mock",
		Model:       "mock-quote",
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// MockAIProviderFactory creates mock AI service instances
type MockAIProviderFactory struct {
	aiConfig ports.AIConfig
}

// NewMockAIProviderFactory creates a new mock AI provider factory
func NewMockAIProviderFactory(config ports.AIConfig) ports.AIProviderFactory {
	return &MockAIProviderFactory{aiConfig: config}
}

// Quotes returns a mock quote service
func (f *MockAIProviderFactory) Quotes() ports.QuoteGenerator {
	return NewMockQuoteService(f.aiConfig)
}

// Provider returns the current provider type
func (f *MockAIProviderFactory) Provider() string {
	return "mock"
}

// IsHealthy always succeeds
func (f *MockAIProviderFactory) IsHealthy(ctx context.Context) error {
	return nil
}

// NewProviderFactory picks the provider named in config, falling back to the mock for unknown names
func NewProviderFactory(config ports.AIConfig) ports.AIProviderFactory {
	switch config.Provider {
	case "openai":
		if config.APIKey != "" {
			return NewOpenAIAdapter(config)
		}
	}
	return NewMockAIProviderFactory(config)
}
