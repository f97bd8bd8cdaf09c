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

type settingsUseCase interface {
	GetOrganization(ctx context.Context) (*domain.Organization, error)
	UpdateSettings(ctx context.Context, form usecase.SettingsForm) (*domain.Organization, error)
	ListMembers(ctx context.Context) ([]domain.Membership, error)
	InviteMember(ctx context.Context, form usecase.InviteForm) (*domain.Membership, error)
	ChangeRole(ctx context.Context, uid string, form usecase.RoleForm) (*domain.Membership, error)
}

// SettingsHandler serves organization settings and memberships
type SettingsHandler struct {
	settings settingsUseCase
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(settings settingsUseCase) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// RegisterRoutes registers settings routes on an organization-scoped router
func (h *SettingsHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/settings", h.GetSettings).Methods("GET")
	router.HandleFunc("/settings", h.UpdateSettings).Methods("PATCH")
	router.HandleFunc("/members", h.ListMembers).Methods("GET")
	router.HandleFunc("/members", h.InviteMember).Methods("POST")
	router.HandleFunc("/members/{uid}/role", h.ChangeRole).Methods("PUT")
}

func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	org, err := h.settings.GetOrganization(r.Context())
	if err != nil {
		response.AppError(w, err)
		return
	}
	response.Success(w, http.StatusOK, "Organization retrieved successfully", org)
}

func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var form usecase.SettingsForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	org, err := h.settings.UpdateSettings(r.Context(), form)
	if err != nil {
		response.AppError(w, err)
		return
	}
	response.Success(w, http.StatusOK, "Settings updated successfully", org)
}

func (h *SettingsHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.settings.ListMembers(r.Context())
	if err != nil {
		response.AppError(w, err)
		return
	}
	response.Success(w, http.StatusOK, "Members retrieved successfully", members)
}

func (h *SettingsHandler) InviteMember(w http.ResponseWriter, r *http.Request) {
	var form usecase.InviteForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	member, err := h.settings.InviteMember(r.Context(), form)
	if err != nil {
		response.AppError(w, err)
		return
	}
	response.Success(w, http.StatusCreated, "Member invited successfully", member)
}

func (h *SettingsHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	var form usecase.RoleForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	member, err := h.settings.ChangeRole(r.Context(), mux.Vars(r)["uid"], form)
	if err != nil {
		response.AppError(w, err)
		return
	}
	response.Success(w, http.StatusOK, "Role updated successfully", member)
}
