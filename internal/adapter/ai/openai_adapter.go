package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/opsdeck/opsdeck/internal/domain"
	"github.com/opsdeck/opsdeck/internal/ports"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultQuoteModel    = "gpt-4o-mini"
)

// OpenAIAdapter provides AI services backed by the OpenAI chat completions API
type OpenAIAdapter struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
	config  ports.AIConfig
}

// NewOpenAIAdapter creates a new OpenAI adapter
func NewOpenAIAdapter(config ports.AIConfig) ports.AIProviderFactory {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	if config.QuoteModel == "" {
		config.QuoteModel = defaultQuoteModel
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 600
	}
	if config.TimeoutMs == 0 {
		config.TimeoutMs = 30000
	}

	return &OpenAIAdapter{
		apiKey:  config.APIKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   config.QuoteModel,
		client:  &http.Client{Timeout: time.Duration(config.TimeoutMs) * time.Millisecond},
		config:  config,
	}
}

// Quotes returns the quote drafting service
func (o *OpenAIAdapter) Quotes() ports.QuoteGenerator {
	return &OpenAIQuoteService{
		apiKey:      o.apiKey,
		baseURL:     o.baseURL,
		model:       o.model,
		maxTokens:   o.config.MaxTokens,
		temperature: o.config.Temperature,
		httpClient:  o.client,
	}
}

// Provider returns the current provider type
func (o *OpenAIAdapter) Provider() string {
	return "openai"
}

// IsHealthy checks that the API is reachable with the configured key
func (o *OpenAIAdapter) IsHealthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("OpenAI API health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("OpenAI API returned status: %d", resp.StatusCode)
	}
	return nil
}

// OpenAIQuoteService drafts quotes with a single JSON-mode chat completion
type OpenAIQuoteService struct {
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
}

const quoteSystemPrompt = "You are a sales expert for a Managed Service Provider. " +
	`Reply with a JSON object of the form {"quote": "<text>"} and nothing else.`

// BuildQuotePrompt renders the user prompt for a quote request
func BuildQuotePrompt(req ports.QuoteRequest) string {
	return fmt.Sprintf(`Generate a quote for a potential client based on their monthly recurring revenue (MRR), industry, and client name.

Client Name: %s
MRR: %s
Industry: %s

Provide a detailed and attractive quote that highlights the value proposition of our services. Make the quote around 200 words.`,
		req.ClientName, formatAmount(req.MRR), req.Industry)
}

// GenerateQuote sends one request; failures are not retried
func (s *OpenAIQuoteService) GenerateQuote(ctx context.Context, req ports.QuoteRequest) (ports.QuoteResult, error) {
	requestBody := map[string]interface{}{
		"model": s.model,
		"messages": []map[string]string{
			{"role": "system", "content": quoteSystemPrompt},
			{"role": "user", "content": BuildQuotePrompt(req)},
		},
		"response_format": map[string]string{"type": "json_object"},
		"max_tokens":      s.maxTokens,
		"temperature":     s.temperature,
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return ports.QuoteResult{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat/completions", bytes.NewBuffer(jsonBody))
	if err != nil {
		return ports.QuoteResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return ports.QuoteResult{}, fmt.Errorf("%w: failed to call OpenAI API: %v", domain.ErrGenerationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return ports.QuoteResult{}, fmt.Errorf("%w: OpenAI API error: %d - %s", domain.ErrGenerationFailed, resp.StatusCode, string(body))
	}

	var response struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return ports.QuoteResult{}, fmt.Errorf("%w: failed to decode response: %v", domain.ErrGenerationFailed, err)
	}
	if len(response.Choices) == 0 {
		return ports.QuoteResult{}, fmt.Errorf("%w: no choices in response", domain.ErrMalformedOutput)
	}

	quote, err := ParseQuoteOutput(response.Choices[0].Message.Content)
	if err != nil {
		return ports.QuoteResult{}, err
	}

	model := response.Model
	if model == "" {
		model = s.model
	}
	return ports.QuoteResult{
		Quote:       quote,
		Provider:    "openai",
		Model:       model,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// ParseQuoteOutput validates model output against the {"quote": string} schema
func ParseQuoteOutput(content string) (string, error) {
	var output struct {
		Quote *string `json:"quote"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &output); err != nil {
		return "", fmt.Errorf("%w: output is not a JSON object", domain.ErrMalformedOutput)
	}
	if output.Quote == nil {
		return "", fmt.Errorf("%w: missing quote field", domain.ErrMalformedOutput)
	}
	quote := strings.TrimSpace(*output.Quote)
	if quote == "" {
		return "", fmt.Errorf("%w: quote is empty", domain.ErrMalformedOutput)
	}
	return quote, nil
}

func formatAmount(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}
