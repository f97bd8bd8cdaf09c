package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/opsdeck/opsdeck/internal/adapter/http/response"
	"github.com/opsdeck/opsdeck/internal/domain"
	"github.com/opsdeck/opsdeck/internal/usecase"
)

type onboardingUseCase interface {
	CreateOrganization(ctx context.Context, form usecase.OnboardingForm) (*domain.Organization, error)
}

type seedUseCase interface {
	Seed(ctx context.Context) (*usecase.SeedSummary, error)
}

// OnboardingHandler creates organizations and loads sample data into them
type OnboardingHandler struct {
	onboarding onboardingUseCase
	seed       seedUseCase
}

// NewOnboardingHandler creates a new onboarding handler
func NewOnboardingHandler(onboarding onboardingUseCase, seed seedUseCase) *OnboardingHandler {
	return &OnboardingHandler{onboarding: onboarding, seed: seed}
}

// RegisterRoutes registers POST /orgs on the authenticated router and POST /seed on the organization router
func (h *OnboardingHandler) RegisterRoutes(api, org *mux.Router) {
	api.HandleFunc("/orgs", h.CreateOrganization).Methods("POST")
	org.HandleFunc("/seed", h.Seed).Methods("POST")
}

func (h *OnboardingHandler) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	var form usecase.OnboardingForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	org, err := h.onboarding.CreateOrganization(r.Context(), form)
	if err != nil {
		response.AppError(w, err)
		return
	}
	response.Success(w, http.StatusCreated, "Organization created successfully", org)
}

func (h *OnboardingHandler) Seed(w http.ResponseWriter, r *http.Request) {
	summary, err := h.seed.Seed(r.Context())
	if err != nil {
		response.AppError(w, err)
		return
	}
	response.Success(w, http.StatusOK, "Sample data loaded successfully", summary)
}
