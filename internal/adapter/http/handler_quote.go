package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/opsdeck/opsdeck/internal/adapter/http/response"
	"github.com/opsdeck/opsdeck/internal/ports"
	"github.com/opsdeck/opsdeck/internal/usecase"
)

type quoteUseCase interface {
	Generate(ctx context.Context, form usecase.QuoteForm) (*ports.QuoteResult, error)
}

// QuoteHandler serves the AI quote generator
type QuoteHandler struct {
	quotes quoteUseCase
	ai     ports.AIProviderFactory
}

// NewQuoteHandler creates a new quote handler
func NewQuoteHandler(quotes quoteUseCase, ai ports.AIProviderFactory) *QuoteHandler {
	return &QuoteHandler{quotes: quotes, ai: ai}
}

// RegisterRoutes registers quote routes. limit wraps the generation endpoint.
func (h *QuoteHandler) RegisterRoutes(router *mux.Router, limit func(http.Handler) http.Handler) {
	router.Handle("/quotes", limit(http.HandlerFunc(h.GenerateQuote))).Methods("POST")
	router.HandleFunc("/ai/health", h.HealthCheck).Methods("GET")
}

// GenerateQuote handles POST /quotes
func (h *QuoteHandler) GenerateQuote(w http.ResponseWriter, r *http.Request) {
	var form usecase.QuoteForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	result, err := h.quotes.Generate(r.Context(), form)
	if err != nil {
		response.AppError(w, err)
		return
	}
	response.Success(w, http.StatusOK, "Quote generated successfully", result)
}

// HealthCheck handles GET /ai/health
func (h *QuoteHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if h.ai == nil {
		response.Error(w, http.StatusServiceUnavailable, "UNAVAILABLE", "No AI provider configured")
		return
	}
	info := map[string]string{"provider": h.ai.Provider()}
	if err := h.ai.IsHealthy(r.Context()); err != nil {
		response.WriteJSON(w, http.StatusServiceUnavailable, response.Envelope{
			Status:  false,
			Message: err.Error(),
			Data:    info,
			Code:    "UNAVAILABLE",
		})
		return
	}
	response.Success(w, http.StatusOK, "AI provider is healthy", info)
}
