package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/opsdeck/opsdeck/internal/adapter/http/response"
	"github.com/opsdeck/opsdeck/internal/domain"
	"github.com/opsdeck/opsdeck/internal/infra/logger"
	"github.com/opsdeck/opsdeck/internal/infra/sse"
	"github.com/opsdeck/opsdeck/internal/ports"
	"github.com/opsdeck/opsdeck/internal/tenant"
)

const faultBuffer = 16

// FaultHandler streams a caller's own permission faults within one organization.
// Faults carry the denied request data, so they are never shown to other users.
// Faults raised while nobody is connected are gone.
type FaultHandler struct {
	bridge    ports.FaultBridge
	log       logger.Logger
	heartbeat time.Duration
}

// NewFaultHandler creates a new fault handler
func NewFaultHandler(bridge ports.FaultBridge, log logger.Logger, heartbeat time.Duration) *FaultHandler {
	return &FaultHandler{bridge: bridge, log: log, heartbeat: heartbeat}
}

// RegisterRoutes registers the fault stream on an organization-scoped router
func (h *FaultHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/faults/stream", h.StreamFaults).Methods("GET")
}

// StreamFaults handles GET /faults/stream
func (h *FaultHandler) StreamFaults(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, _ := tenant.OrgFromContext(ctx)

	// non-members may subscribe; their denied writes are exactly what they need to see
	principal, ok := tenant.PrincipalFromContext(ctx)
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	events := make(chan sse.Event, faultBuffer)
	unsubscribe := h.bridge.Subscribe(func(fault domain.PermissionFault) {
		if fault.OrganizationID != orgID || fault.UserID != principal.UserID {
			return
		}
		select {
		case events <- sse.NewEvent(ports.PermissionFaultEvent, fault):
		default:
			h.log.Warn(ctx, "Fault stream is behind, dropping fault", map[string]interface{}{"path": fault.Path})
		}
	})
	defer unsubscribe()

	stream, err := sse.Open(w)
	if err != nil {
		response.InternalServerError(w, err.Error())
		return
	}
	h.log.Info(ctx, "Fault stream opened", map[string]interface{}{"organization_id": orgID})
	if err := stream.Pump(ctx, events, h.heartbeat); err != nil {
		h.log.Debug(ctx, "Fault stream closed by client", map[string]interface{}{"error": err.Error()})
	}
}
