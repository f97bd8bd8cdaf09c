package http

import (
	"context"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/opsdeck/opsdeck/internal/adapter/http/response"
	"github.com/opsdeck/opsdeck/internal/domain"
	"github.com/opsdeck/opsdeck/pkg/apperror"
)

const maxBodyBytes = 1 << 20

type entityUseCase interface {
	Create(ctx context.Context, kind domain.EntityKind, body []byte) (*domain.Document, error)
	List(ctx context.Context, kind domain.EntityKind, filters ...domain.Filter) ([]domain.Document, error)
	Get(ctx context.Context, kind domain.EntityKind, id string) (*domain.Document, error)
}

// EntityHandler serves the tenant collections
type EntityHandler struct {
	entities entityUseCase
}

// NewEntityHandler creates a new entity handler
func NewEntityHandler(entities entityUseCase) *EntityHandler {
	return &EntityHandler{entities: entities}
}

// RegisterRoutes registers collection routes on an organization-scoped router
func (h *EntityHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/collections/{kind}", h.ListDocuments).Methods("GET")
	router.HandleFunc("/collections/{kind}", h.CreateDocument).Methods("POST")
	router.HandleFunc("/collections/{kind}/{id}", h.GetDocument).Methods("GET")
}

// ListDocuments handles GET /collections/{kind}?where=field,op,value
func (h *EntityHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindFromRequest(w, r)
	if !ok {
		return
	}
	filters, err := filtersFromRequest(r)
	if err != nil {
		response.AppError(w, err)
		return
	}

	docs, err := h.entities.List(r.Context(), kind, filters...)
	if err != nil {
		response.AppError(w, err)
		return
	}
	response.Success(w, http.StatusOK, "Documents retrieved successfully", docs)
}

// CreateDocument handles POST /collections/{kind}
func (h *EntityHandler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindFromRequest(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	doc, err := h.entities.Create(r.Context(), kind, body)
	if err != nil {
		response.AppError(w, err)
		return
	}
	response.Success(w, http.StatusCreated, "Document created successfully", doc)
}

// GetDocument handles GET /collections/{kind}/{id}
func (h *EntityHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindFromRequest(w, r)
	if !ok {
		return
	}

	doc, err := h.entities.Get(r.Context(), kind, mux.Vars(r)["id"])
	if err != nil {
		response.AppError(w, err)
		return
	}
	response.Success(w, http.StatusOK, "Document retrieved successfully", doc)
}

func kindFromRequest(w http.ResponseWriter, r *http.Request) (domain.EntityKind, bool) {
	kind, ok := domain.ParseEntityKind(mux.Vars(r)["kind"])
	if !ok {
		response.AppError(w, apperror.NewNotFound("Unknown collection"))
		return "", false
	}
	return kind, true
}

func filtersFromRequest(r *http.Request) ([]domain.Filter, error) {
	raw := r.URL.Query()["where"]
	filters := make([]domain.Filter, 0, len(raw))
	for _, w := range raw {
		f, err := domain.ParseFilter(w)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	return filters, nil
}
