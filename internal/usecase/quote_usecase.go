package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/opsdeck/opsdeck/internal/domain"
	"github.com/opsdeck/opsdeck/internal/infra/logger"
	"github.com/opsdeck/opsdeck/internal/infra/metrics"
	"github.com/opsdeck/opsdeck/internal/ports"
)

// QuoteUseCase drafts sales quotes. Each call makes exactly one generation attempt.
type QuoteUseCase struct {
	ai  ports.AIProviderFactory
	log logger.Logger
}

// NewQuoteUseCase creates a new quote use case
func NewQuoteUseCase(ai ports.AIProviderFactory, log logger.Logger) *QuoteUseCase {
	return &QuoteUseCase{ai: ai, log: log}
}

// Generate validates the form and asks the provider for a draft.
// Provider failures are reported as domain.ErrGenerationFailed or domain.ErrMalformedOutput.
func (uc *QuoteUseCase) Generate(ctx context.Context, form QuoteForm) (*ports.QuoteResult, error) {
	if err := ValidateForm(&form); err != nil {
		return nil, err
	}
	if uc.ai == nil {
		return nil, fmt.Errorf("%w: no AI provider configured", domain.ErrGenerationFailed)
	}

	provider := uc.ai.Provider()
	start := time.Now()
	result, err := uc.ai.Quotes().GenerateQuote(ctx, ports.QuoteRequest{
		ClientName: strings.TrimSpace(form.ClientName),
		MRR:        form.MRR,
		Industry:   strings.TrimSpace(form.Industry),
	})
	logger.LogPerformance(ctx, uc.log, "generate_quote", time.Since(start), map[string]interface{}{"provider": provider})

	if err == nil && strings.TrimSpace(result.Quote) == "" {
		err = fmt.Errorf("%w: quote is empty", domain.ErrMalformedOutput)
	}
	if err != nil {
		metrics.QuoteRequests.WithLabelValues(provider, "failed").Inc()
		uc.log.Error(ctx, "Quote generation failed", err, map[string]interface{}{
			"provider": provider,
			"client":   form.ClientName,
		})
		if errors.Is(err, domain.ErrGenerationFailed) || errors.Is(err, domain.ErrMalformedOutput) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}

	metrics.QuoteRequests.WithLabelValues(provider, "generated").Inc()
	return &result, nil
}
