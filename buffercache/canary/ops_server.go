package canary

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/qiubz/rethinkdb/buffercache/balancer"
	"github.com/qiubz/rethinkdb/buffercache/eviction"
	"github.com/qiubz/rethinkdb/common/log"
	"github.com/qiubz/rethinkdb/common/log/tag"
)

// OpsServer exposes the canary's operational surface: prometheus metrics,
// a health probe and a JSON view of the balancer state.
type OpsServer struct {
	bal      *balancer.Balancer
	trackers []*eviction.Tracker
	metrics  http.Handler
	logger   log.Logger

	router   *mux.Router
	server   *http.Server
	listener net.Listener
}

// NewOpsServer creates the server. metrics serves /metrics and may be nil,
// in which case the route is not registered.
func NewOpsServer(
	cfg Config,
	bal *balancer.Balancer,
	trackers []*eviction.Tracker,
	metrics http.Handler,
	logger log.Logger,
) *OpsServer {
	s := &OpsServer{
		bal:      bal,
		trackers: trackers,
		metrics:  metrics,
		logger:   logger.WithTags(tag.ComponentOpsServer),
		router:   mux.NewRouter(),
	}
	s.routes()
	s.server = &http.Server{
		Addr:    cfg.ListenAddress,
		Handler: s.router,
	}
	return s
}

func (s *OpsServer) routes() {
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics).Methods("GET")
	}
	s.router.HandleFunc("/health", s.handleHealth()).Methods("GET")
	s.router.HandleFunc("/readahead", s.handleReadAhead()).Methods("GET")
	s.router.HandleFunc("/partitions", s.handlePartitions()).Methods("GET")
}

// Start binds the listen address and serves in the background. It returns
// once the address is bound, so callers can rely on Addr afterwards.
func (s *OpsServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.logger.Info("Starting ops server", tag.Address(ln.Addr().String()))

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Ops server failed", tag.Error(err))
		}
	}()
	return nil
}

func (s *OpsServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping ops server")
	return s.server.Shutdown(ctx)
}

// Addr returns the bound address. Only valid after Start.
func (s *OpsServer) Addr() string {
	if s.listener == nil {
		return s.server.Addr
	}
	return s.listener.Addr().String()
}

func (s *OpsServer) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"status": "ok",
		})
	}
}

func (s *OpsServer) handleReadAhead() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"readAheadOK": s.bal.IsReadAheadOK(),
		})
	}
}

func (s *OpsServer) handlePartitions() http.HandlerFunc {
	type partition struct {
		ID           string `json:"id"`
		Shard        int    `json:"shard"`
		MemoryLimit  uint64 `json:"memoryLimit"`
		InMemorySize uint64 `json:"inMemorySize"`
		BytesLoaded  uint64 `json:"bytesLoaded"`
	}
	type view struct {
		TotalCacheSize uint64      `json:"totalCacheSize"`
		ReadAheadOK    bool        `json:"readAheadOK"`
		Partitions     []partition `json:"partitions"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		out := view{
			TotalCacheSize: s.bal.TotalCacheSize(),
			ReadAheadOK:    s.bal.IsReadAheadOK(),
			Partitions:     make([]partition, 0, len(s.trackers)),
		}
		for _, tr := range s.trackers {
			out.Partitions = append(out.Partitions, partition{
				ID:           tr.ID(),
				Shard:        tr.Shard(),
				MemoryLimit:  tr.MemoryLimit(),
				InMemorySize: tr.InMemorySize(),
				BytesLoaded:  tr.BytesLoaded(),
			})
		}
		writeJSON(w, out)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
