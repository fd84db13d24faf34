package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"

	"gamefeed-service/config"
	"gamefeed-service/database"
	"gamefeed-service/logger"
	"gamefeed-service/models"
	"gamefeed-service/services"
)

type Server struct {
	config     *config.Config
	store      services.DeltaStore
	sim        *services.SimulationGenerator
	dispatcher *Dispatcher
	limiter    *services.SlidingWindowLimiter
	archive    *database.EventArchive
	httpServer *http.Server
	upgrader   websocket.Upgrader
}

// NewServer wires the HTTP surface. archive may be nil when no
// database is configured; the history endpoint then serves empty.
func NewServer(cfg *config.Config, store services.DeltaStore, sim *services.SimulationGenerator, opsFeeds []services.OpsFeed, limiter *services.SlidingWindowLimiter, archive *database.EventArchive) *Server {
	return &Server{
		config:     cfg,
		store:      store,
		sim:        sim,
		dispatcher: NewDispatcher(cfg, store, opsFeeds),
		limiter:    limiter,
		archive:    archive,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // wildcard origin, same as the REST surface
			},
		},
	}
}

func (s *Server) Start() error {
	router := mux.NewRouter()

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/snapshot", s.handleSnapshot).Methods("GET")
	api.HandleFunc("/stream", s.handleStream).Methods("GET")
	api.HandleFunc("/events", s.handleEventHistory).Methods("GET")
	api.HandleFunc("/command", s.handleCommand).Methods("POST")
	api.HandleFunc("/dev/inject", s.handleDevInject).Methods("POST")

	router.HandleFunc("/ws", s.handleWebSocket)

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	s.httpServer = &http.Server{
		Addr:        ":" + s.config.Port,
		Handler:     c.Handler(router),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: it would sever long-lived streams.
		IdleTimeout: 60 * time.Second,
	}

	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		logger.Errorf("Server shutdown error: %v", err)
	}
}

// handleHealth is the liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "ok",
		"demo":   s.config.DemoMode(),
		"time":   time.Now().Unix(),
	})
}

// handleSnapshot returns the last persisted snapshot. In demo mode the
// simulated roster backs it; otherwise an absent snapshot degrades to
// an empty one.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	var snapshot *models.Snapshot

	if s.config.DemoMode() {
		snapshot = s.sim.Snapshot()
	} else {
		stored, err := s.store.LoadSnapshot(r.Context())
		if err != nil {
			logger.Errorf("[API] snapshot read failed: %v", err)
		}
		snapshot = stored
	}
	if snapshot == nil {
		snapshot = models.EmptySnapshot(models.SourceLive)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snapshot)
}

// handleEventHistory serves archived events when a database is wired.
func (s *Server) handleEventHistory(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if s.archive == nil {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"events": []database.ArchivedEvent{},
		})
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	kind := r.URL.Query().Get("kind")

	events, err := s.archive.RecentEvents(limit, kind)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []database.ArchivedEvent{}
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"events": events,
	})
}

// commandRequest is the agent's fire-and-forget assignment op.
type commandRequest struct {
	Action    string   `json:"action"`
	WorkerIDs []string `json:"workerIds"`
	TargetID  string   `json:"targetId"`
}

// handleCommand accepts a best-effort command from the client agent.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var cmd commandRequest
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, "malformed command", http.StatusBadRequest)
		return
	}
	if cmd.Action == "" {
		cmd.Action = "assign"
	}

	logger.Printf("[API] command %s: %d worker(s) -> %s", cmd.Action, len(cmd.WorkerIDs), cmd.TargetID)
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"accepted": true,
	})
}

// injectRequest is the dev-only raw event injection shape.
type injectRequest struct {
	Kind        models.EventKind    `json:"type"`
	Payload     json.RawMessage     `json:"payload,omitempty"`
	GameContext *models.GameContext `json:"gameContext,omitempty"`
}

// handleDevInject appends an event batch directly to the delta store.
// Rejected outright in production.
func (s *Server) handleDevInject(w http.ResponseWriter, r *http.Request) {
	if s.config.IsProduction() {
		http.Error(w, "not available in production", http.StatusForbidden)
		return
	}

	var req injectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed event", http.StatusBadRequest)
		return
	}

	event := models.Event{
		ID:          uuid.NewString(),
		Kind:        req.Kind,
		Timestamp:   time.Now(),
		Source:      models.EventSourceOps,
		Priority:    models.PriorityFor(req.Kind),
		Payload:     req.Payload,
		GameContext: req.GameContext,
	}

	if err := s.store.AppendBatch(r.Context(), []models.Event{event}); err != nil {
		logger.Errorf("[API] inject write failed: %v", err)
		http.Error(w, "store write failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"injected": event.ID,
	})
}
