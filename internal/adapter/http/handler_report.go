package http

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/opsdeck/opsdeck/internal/adapter/http/response"
	"github.com/opsdeck/opsdeck/internal/usecase"
	"github.com/opsdeck/opsdeck/pkg/apperror"
)

type reportUseCase interface {
	Dashboard(ctx context.Context) (*usecase.DashboardReport, error)
	Financials(ctx context.Context) (*usecase.FinancialReport, error)
	Software(ctx context.Context) (*usecase.SoftwareReport, error)
	Utilization(ctx context.Context) (*usecase.UtilizationReport, error)
	LeadFunnel(ctx context.Context) (*usecase.LeadFunnelReport, error)
}

// ReportHandler serves the aggregated dashboard reports
type ReportHandler struct {
	reports reportUseCase
}

// NewReportHandler creates a new report handler
func NewReportHandler(reports reportUseCase) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// RegisterRoutes registers report routes on an organization-scoped router
func (h *ReportHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/reports/{report}", h.GetReport).Methods("GET")
}

// GetReport handles GET /reports/{report}
func (h *ReportHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		data interface{}
		err  error
	)
	switch mux.Vars(r)["report"] {
	case "dashboard":
		data, err = h.reports.Dashboard(ctx)
	case "financials":
		data, err = h.reports.Financials(ctx)
	case "software":
		data, err = h.reports.Software(ctx)
	case "utilization":
		data, err = h.reports.Utilization(ctx)
	case "leads":
		data, err = h.reports.LeadFunnel(ctx)
	default:
		response.AppError(w, apperror.NewNotFound("Unknown report"))
		return
	}
	if err != nil {
		response.AppError(w, err)
		return
	}
	response.Success(w, http.StatusOK, "Report generated successfully", data)
}
