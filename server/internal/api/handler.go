package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pulsebridge/pulsebridge/pkg/pulsev1"
	"github.com/pulsebridge/pulsebridge/pkg/types"
	"github.com/pulsebridge/pulsebridge/server/internal/alerts"
	"github.com/pulsebridge/pulsebridge/server/internal/store"
)

// maxBodyBytes caps a PUT body. A reading payload is a few dozen bytes.
const maxBodyBytes = 64 << 10

// Options configures a Handler.
type Options struct {
	// RTDBPath is the collection served under /db/. Defaults to "heartrate".
	RTDBPath string

	// WriteAuth wraps the write endpoints. Nil leaves them open.
	WriteAuth func(http.Handler) http.Handler

	// Alerts evaluates readings written over /db/ and backs
	// GET /api/v1/alerts. May be nil.
	Alerts *alerts.Engine
}

// Handler is the HTTP handler for /api/v1/* and the /db/ endpoints.
type Handler struct {
	store  *store.Store
	alerts *alerts.Engine
	path   string
	mux    *http.ServeMux
}

// New creates a Handler wired to the given reading store and registers all routes.
func New(st *store.Store, opts Options) http.Handler {
	if opts.RTDBPath == "" {
		opts.RTDBPath = "heartrate"
	}
	h := &Handler{store: st, alerts: opts.Alerts, path: opts.RTDBPath, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/readings", h.listReadings)
	h.mux.HandleFunc("/api/v1/readings/", h.getReading) // subtree, extracts {key}
	h.mux.HandleFunc("/api/v1/latest", h.latest)
	h.mux.HandleFunc("/api/v1/alerts", h.listAlerts)

	var db http.Handler = http.HandlerFunc(h.db)
	if opts.WriteAuth != nil {
		db = writesOnly(opts.WriteAuth(db), db)
	}
	h.mux.Handle("/db/", db)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// writesOnly routes PUT requests through guarded and everything else through open.
func writesOnly(guarded, open http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			guarded.ServeHTTP(w, r)
			return
		}
		open.ServeHTTP(w, r)
	})
}

// --- /api/v1 ----------------------------------------------------------------

// health returns GET /api/v1/health: live reading count and the newest key.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	resp := HealthResponse{Status: "empty", ReadingCount: len(h.store.List())}
	if e, ok := h.store.Latest(); ok {
		resp.Status = "ok"
		resp.LatestKey = e.Record.Key
		resp.LatestAt = e.UpdatedAt.UTC().Format(time.RFC3339)
	}
	jsonResp(w, http.StatusOK, resp)
}

// listReadings returns GET /api/v1/readings: all live readings ordered by key.
func (h *Handler) listReadings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	entries := h.store.List()
	out := make([]ReadingResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toReadingResponse(e))
	}
	jsonResp(w, http.StatusOK, out)
}

// getReading returns GET /api/v1/readings/{key}.
func (h *Handler) getReading(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	key := strings.TrimPrefix(r.URL.Path, "/api/v1/readings/")
	if key == "" {
		h.listReadings(w, r)
		return
	}

	e, ok := h.store.Get(key)
	if !ok {
		jsonErr(w, http.StatusNotFound, "reading not found")
		return
	}
	jsonResp(w, http.StatusOK, toReadingResponse(e))
}

// latest returns GET /api/v1/latest: the most recently stored reading.
func (h *Handler) latest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	e, ok := h.store.Latest()
	if !ok {
		jsonErr(w, http.StatusNotFound, "no readings")
		return
	}
	jsonResp(w, http.StatusOK, toReadingResponse(e))
}

// listAlerts returns GET /api/v1/alerts: firing alerts plus those resolved
// within the last hour, newest first.
func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.alerts == nil {
		jsonResp(w, http.StatusOK, []alerts.Alert{})
		return
	}
	jsonResp(w, http.StatusOK, h.alerts.Active())
}

// --- /db (Realtime Database REST shape) -------------------------------------

// db serves:
//
//	PUT /db/{path}/{key}.json  store {"bpm","timestamp"} under key, echo it back
//	GET /db/{path}/{key}.json  the stored payload, or null
//	GET /db/{path}.json        map of key to payload, or null when empty
func (h *Handler) db(w http.ResponseWriter, r *http.Request) {
	rest, ok := strings.CutSuffix(strings.TrimPrefix(r.URL.Path, "/db/"), ".json")
	if !ok {
		jsonErr(w, http.StatusNotFound, "not found")
		return
	}

	collection, key, hasKey := strings.Cut(rest, "/")
	if collection != h.path || (hasKey && (key == "" || strings.Contains(key, "/"))) {
		jsonErr(w, http.StatusNotFound, "not found")
		return
	}

	switch {
	case r.Method == http.MethodPut && hasKey:
		h.putRecord(w, r, key)
	case r.Method == http.MethodGet && hasKey:
		e, ok := h.store.Get(key)
		if !ok {
			jsonResp(w, http.StatusOK, nil)
			return
		}
		jsonResp(w, http.StatusOK, e.Record)
	case r.Method == http.MethodGet:
		entries := h.store.List()
		if len(entries) == 0 {
			jsonResp(w, http.StatusOK, nil)
			return
		}
		out := make(map[string]types.Record, len(entries))
		for _, e := range entries {
			out[e.Record.Key] = e.Record
		}
		jsonResp(w, http.StatusOK, out)
	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) putRecord(w http.ResponseWriter, r *http.Request, key string) {
	var rec types.Record
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&rec); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	rec.Key = key
	if rec.Timestamp == "" {
		rec.Timestamp = key
	}
	if err := rec.Validate(); err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}

	agentID := r.Header.Get(pulsev1.AgentIDHeader)
	if _, err := h.store.Put(r.Context(), rec, agentID); err != nil {
		slog.Error("api: store put failed", "key", key, "err", err)
		jsonErr(w, http.StatusInternalServerError, "store failed")
		return
	}

	slog.Debug("api: reading stored", "key", key, "bpm", rec.BPM, "agent_id", agentID)
	if h.alerts != nil {
		h.alerts.Evaluate(rec, agentID)
	}
	jsonResp(w, http.StatusOK, rec)
}

// BuildStream assembles the payload the WebSocket stream broadcasts.
func BuildStream(st *store.Store) StreamResponse {
	resp := StreamResponse{
		ReadingCount: len(st.List()),
		GeneratedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	if e, ok := st.Latest(); ok {
		r := toReadingResponse(e)
		resp.Latest = &r
	}
	return resp
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

// toReadingResponse maps a store.Entry to its JSON representation.
func toReadingResponse(e store.Entry) ReadingResponse {
	return ReadingResponse{
		Key:        e.Record.Key,
		BPM:        e.Record.BPM,
		Timestamp:  e.Record.Timestamp,
		AgentID:    e.AgentID,
		ReceivedAt: e.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
