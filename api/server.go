// Package api implements the local HTTP boundary a client uses to submit
// signed envelopes and read node state: the one entry point into the
// validate-apply pipeline other than the gossip relay.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	cerrors "github.com/clawnet/clawnet/core/errors"
	"github.com/clawnet/clawnet/core/state"
	ctypes "github.com/clawnet/clawnet/core/types"
	"github.com/clawnet/clawnet/gossip"
	"github.com/clawnet/clawnet/observability"
)

const maxEnvelopeBytes = 1 << 16 // 64 KiB; generous for any single signed event payload

// Server wires HTTP handlers to a store, relay, and syncer.
type Server struct {
	store  *state.Store
	relay  *gossip.Relay
	syncer *gossip.Syncer
}

// NewServer constructs a Server.
func NewServer(store *state.Store, relay *gossip.Relay, syncer *gossip.Syncer) *Server {
	return &Server{store: store, relay: relay, syncer: syncer}
}

// Register attaches this server's routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/v1/envelopes", s.instrumented("envelopes", "submit", s.handleSubmit))
	mux.HandleFunc("/v1/snapshot", s.instrumented("state", "snapshot", s.handleSnapshot))
	mux.HandleFunc("/v1/sync/range", s.instrumented("sync", "range", s.handleSyncRange))
	mux.HandleFunc("/v1/sync/snapshot-chunk", s.instrumented("sync", "snapshot-chunk", s.handleSyncSnapshotChunk))
}

func (s *Server) instrumented(module, method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		observability.ModuleMetrics().Observe(module, method, rec.status, time.Since(start))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var env ctypes.Envelope
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEnvelopeBytes)).Decode(&env); err != nil {
		http.Error(w, "malformed envelope: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.relay.Submit(r.Context(), &env); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"hash": env.Hash})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snap)
}

func (s *Server) handleSyncRange(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	req := gossip.RangeSyncRequest{FromHash: r.URL.Query().Get("from"), Limit: limit}
	resp, err := s.syncer.AnswerRangeSync(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleSyncSnapshotChunk(w http.ResponseWriter, r *http.Request) {
	offset, _ := strconv.ParseInt(r.URL.Query().Get("offset"), 10, 64)
	size, _ := strconv.ParseInt(r.URL.Query().Get("size"), 10, 64)
	req := gossip.SnapshotChunkRequest{
		SnapshotHash: r.URL.Query().Get("hash"),
		Offset:       offset,
		Size:         size,
	}
	resp, err := s.syncer.AnswerSnapshotChunk(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func writeError(w http.ResponseWriter, err error) {
	ce, ok := cerrors.As(err)
	if !ok {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	code := cerrors.MapHTTPCode(ce.Kind)
	status := http.StatusUnprocessableEntity
	switch code {
	case cerrors.CodeUnauthorized:
		status = http.StatusUnauthorized
	case cerrors.CodeNotFound:
		status = http.StatusNotFound
	case cerrors.CodeRateLimited:
		status = http.StatusTooManyRequests
	case cerrors.CodeNonceConflict, cerrors.CodeStaleResource:
		status = http.StatusConflict
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"code": string(code), "message": ce.Error()})
}
