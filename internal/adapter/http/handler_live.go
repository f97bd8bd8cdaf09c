package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/opsdeck/opsdeck/internal/domain"
	"github.com/opsdeck/opsdeck/internal/infra/logger"
	"github.com/opsdeck/opsdeck/internal/ports"
	"github.com/opsdeck/opsdeck/internal/realtime"
	"github.com/opsdeck/opsdeck/internal/tenant"
)

const (
	liveWriteWait  = 10 * time.Second
	livePongWait   = 60 * time.Second
	livePingPeriod = (livePongWait * 9) / 10
)

// LiveRequest is a client message on the live socket
type LiveRequest struct {
	Op         string   `json:"op"` // watch, stop
	ID         string   `json:"id"`
	Collection string   `json:"collection"`
	Doc        string   `json:"doc,omitempty"`
	Where      []string `json:"where,omitempty"`
}

// LiveMessage is a server message on the live socket
type LiveMessage struct {
	ID      string      `json:"id"`
	Type    string      `json:"type"`
	Data    interface{} `json:"data,omitempty"`
	Loading bool        `json:"loading"`
	Error   string      `json:"error,omitempty"`
}

// LiveHandler multiplexes many live queries over one websocket.
// Every watch id owns its own watcher; re-watching an id replaces its subscription.
type LiveHandler struct {
	store    ports.DocumentStore
	log      logger.Logger
	upgrader websocket.Upgrader
}

// NewLiveHandler creates a new live handler. An empty origin list or "*" accepts any origin.
func NewLiveHandler(store ports.DocumentStore, log logger.Logger, allowedOrigins []string) *LiveHandler {
	return &LiveHandler{
		store: store,
		log:   log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// RegisterRoutes registers the socket on an organization-scoped router
func (h *LiveHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/live", h.Serve).Methods("GET")
}

// Serve upgrades the connection and runs the session until the client leaves
func (h *LiveHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(r.Context(), "Websocket upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	orgID, _ := tenant.OrgFromContext(ctx)
	session := &liveSession{
		ctx:   ctx,
		conn:  conn,
		store: h.store,
		log:   h.log,
		orgID: orgID,
		subs:  make(map[string]interface{ Stop() }),
	}
	defer func() {
		cancel()
		session.stopAll()
		conn.Close()
	}()

	go session.keepAlive()
	session.readLoop()
}

type liveSession struct {
	ctx   context.Context
	conn  *websocket.Conn
	store ports.DocumentStore
	log   logger.Logger
	orgID string

	writeMu sync.Mutex
	mu      sync.Mutex
	subs    map[string]interface{ Stop() }
}

func (s *liveSession) readLoop() {
	s.conn.SetReadLimit(maxBodyBytes)
	s.conn.SetReadDeadline(time.Now().Add(livePongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(livePongWait))
	})

	for {
		var req LiveRequest
		if err := s.conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn(s.ctx, "Live socket closed unexpectedly", map[string]interface{}{"error": err.Error()})
			}
			return
		}

		switch req.Op {
		case "watch":
			s.watch(req)
		case "stop":
			s.stop(req.ID)
		default:
			s.send(LiveMessage{ID: req.ID, Type: EventError, Error: "unknown op " + req.Op})
		}
	}
}

func (s *liveSession) keepAlive() {
	ticker := time.NewTicker(livePingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteWait)); err != nil {
				return
			}
		}
	}
}

func (s *liveSession) watch(req LiveRequest) {
	if req.ID == "" {
		s.send(LiveMessage{Type: EventError, Error: "watch requires an id"})
		return
	}
	kind, ok := domain.ParseEntityKind(req.Collection)
	if !ok {
		s.send(LiveMessage{ID: req.ID, Type: EventError, Error: "unknown collection " + req.Collection})
		return
	}
	filters := make([]domain.Filter, 0, len(req.Where))
	for _, raw := range req.Where {
		f, err := domain.ParseFilter(raw)
		if err != nil {
			s.send(LiveMessage{ID: req.ID, Type: EventError, Error: err.Error()})
			return
		}
		filters = append(filters, f)
	}

	s.stop(req.ID)
	collection := domain.CollectionPath(s.orgID, kind)
	id := req.ID

	// open failures are already delivered to the client as an error state
	if req.Doc != "" {
		w := realtime.NewDocumentWatcher(s.store, s.log, func(st realtime.DocumentState) {
			s.send(liveMessage(id, st.Data, st.Loading, st.Err))
		})
		s.track(id, w)
		_ = w.Watch(s.ctx, collection, req.Doc)
		return
	}
	w := realtime.NewCollectionWatcher(s.store, s.log, func(st realtime.QueryState) {
		s.send(liveMessage(id, st.Data, st.Loading, st.Err))
	})
	s.track(id, w)
	_ = w.Watch(s.ctx, collection, filters...)
}

func (s *liveSession) track(id string, w interface{ Stop() }) {
	s.mu.Lock()
	s.subs[id] = w
	s.mu.Unlock()
}

func (s *liveSession) stop(id string) {
	s.mu.Lock()
	w, ok := s.subs[id]
	delete(s.subs, id)
	s.mu.Unlock()
	if ok {
		w.Stop()
	}
}

func (s *liveSession) stopAll() {
	s.mu.Lock()
	subs := s.subs
	s.subs = make(map[string]interface{ Stop() })
	s.mu.Unlock()
	for _, w := range subs {
		w.Stop()
	}
}

func (s *liveSession) send(msg LiveMessage) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
	if err := s.conn.WriteJSON(msg); err != nil {
		s.log.Debug(s.ctx, "Live socket write failed", map[string]interface{}{"id": msg.ID, "error": err.Error()})
	}
}

func liveMessage(id string, data interface{}, loading bool, err error) LiveMessage {
	msg := LiveMessage{ID: id, Type: EventSnapshot, Data: data, Loading: loading}
	if err != nil {
		msg.Type = EventError
		msg.Error = err.Error()
	}
	return msg
}
