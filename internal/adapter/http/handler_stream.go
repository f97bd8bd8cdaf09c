package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/opsdeck/opsdeck/internal/adapter/http/response"
	"github.com/opsdeck/opsdeck/internal/domain"
	"github.com/opsdeck/opsdeck/internal/infra/logger"
	"github.com/opsdeck/opsdeck/internal/infra/sse"
	"github.com/opsdeck/opsdeck/internal/ports"
	"github.com/opsdeck/opsdeck/internal/realtime"
	"github.com/opsdeck/opsdeck/internal/tenant"
)

// Stream event types
const (
	EventLoading  = "loading"
	EventSnapshot = "snapshot"
	EventError    = "error"
)

// StreamHandler pushes live query results over Server-Sent Events.
// Each request owns one watcher; the stream ends when the client leaves or the subscription fails.
type StreamHandler struct {
	store     ports.DocumentStore
	log       logger.Logger
	heartbeat time.Duration
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(store ports.DocumentStore, log logger.Logger, heartbeat time.Duration) *StreamHandler {
	return &StreamHandler{store: store, log: log, heartbeat: heartbeat}
}

// RegisterRoutes registers stream routes on an organization-scoped router.
// They must be registered before the plain collection routes.
func (h *StreamHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/stream", h.StreamOrganization).Methods("GET")
	router.HandleFunc("/collections/{kind}/stream", h.StreamCollection).Methods("GET")
	router.HandleFunc("/collections/{kind}/{id}/stream", h.StreamDocument).Methods("GET")
}

// StreamCollection handles GET /collections/{kind}/stream?where=field,op,value
func (h *StreamHandler) StreamCollection(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindFromRequest(w, r)
	if !ok {
		return
	}
	filters, err := filtersFromRequest(r)
	if err != nil {
		response.AppError(w, err)
		return
	}
	orgID, _ := tenant.OrgFromContext(r.Context())

	events := newLatestEvents()
	watcher := realtime.NewCollectionWatcher(h.store, h.log, func(st realtime.QueryState) {
		events.push(stateEvent(st.Data, st.Loading, st.Err))
	})
	defer watcher.Stop()

	if err := watcher.Watch(r.Context(), domain.CollectionPath(orgID, kind), filters...); err != nil {
		response.AppError(w, err)
		return
	}
	h.pump(w, r, events)
}

// StreamDocument handles GET /collections/{kind}/{id}/stream
func (h *StreamHandler) StreamDocument(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindFromRequest(w, r)
	if !ok {
		return
	}
	orgID, _ := tenant.OrgFromContext(r.Context())
	h.streamDocument(w, r, domain.CollectionPath(orgID, kind), mux.Vars(r)["id"])
}

// StreamOrganization handles GET /stream, the organization document itself
func (h *StreamHandler) StreamOrganization(w http.ResponseWriter, r *http.Request) {
	orgID, _ := tenant.OrgFromContext(r.Context())
	h.streamDocument(w, r, domain.OrganizationsCollection, orgID)
}

func (h *StreamHandler) streamDocument(w http.ResponseWriter, r *http.Request, collection, id string) {
	events := newLatestEvents()
	watcher := realtime.NewDocumentWatcher(h.store, h.log, func(st realtime.DocumentState) {
		events.push(stateEvent(st.Data, st.Loading, st.Err))
	})
	defer watcher.Stop()

	if err := watcher.Watch(r.Context(), collection, id); err != nil {
		response.AppError(w, err)
		return
	}
	h.pump(w, r, events)
}

func (h *StreamHandler) pump(w http.ResponseWriter, r *http.Request, events *latestEvents) {
	stream, err := sse.Open(w)
	if err != nil {
		response.InternalServerError(w, err.Error())
		return
	}
	if err := stream.Pump(r.Context(), events.ch, h.heartbeat); err != nil {
		h.log.Debug(r.Context(), "Stream closed by client", map[string]interface{}{"error": err.Error()})
	}
}

func stateEvent(data interface{}, loading bool, err error) sse.Event {
	switch {
	case err != nil:
		return sse.NewEvent(EventError, data).WithError(err)
	case loading:
		return sse.NewEvent(EventLoading, nil)
	}
	return sse.NewEvent(EventSnapshot, data)
}

// latestEvents hands states from a watcher to a slower writer. Only the newest pending state
// is kept since every state is a full snapshot. An error state is terminal and closes the channel.
type latestEvents struct {
	mu     sync.Mutex
	ch     chan sse.Event
	closed bool
}

func newLatestEvents() *latestEvents {
	return &latestEvents{ch: make(chan sse.Event, 1)}
}

func (l *latestEvents) push(ev sse.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	select {
	case <-l.ch:
	default:
	}
	l.ch <- ev
	if ev.Type == EventError {
		l.closed = true
		close(l.ch)
	}
}
