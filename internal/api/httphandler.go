package api

import (
	"bedrock/internal/ports"
	"bedrock/internal/registry"
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

const pingTimeout = 5 * time.Second

type Handler struct {
	SQL      *registry.SQLRegistry
	KV       *registry.KVRegistry
	Gatherer prometheus.Gatherer
}

// NewHandler accepts nil for either registry. A nil gatherer serves the
// default Prometheus registry.
func NewHandler(sql *registry.SQLRegistry, kv *registry.KVRegistry, g prometheus.Gatherer) *Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return &Handler{SQL: sql, KV: kv, Gatherer: g}
}

// Router serves /health, /clients and /metrics. The JSON endpoints accept a
// JMESPath "query" parameter that narrows the response.
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/clients", h.handleClients)
	mux.Handle("/metrics", promhttp.HandlerFor(h.Gatherer, promhttp.HandlerOpts{}))
	return mux
}

// ClientHealth is the health of one registered client.
type ClientHealth struct {
	Kind  string `json:"kind"`
	ID    string `json:"id"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type HealthReport struct {
	Status  string         `json:"status"`
	Clients []ClientHealth `json:"clients"`
}

func (h *Handler) clients() []ports.Client {
	var out []ports.Client
	if h.KV != nil {
		for _, c := range h.KV.Clients() {
			out = append(out, c)
		}
	}
	if h.SQL != nil {
		for _, c := range h.SQL.Clients() {
			out = append(out, c)
		}
	}
	return out
}

// handleHealth pings every client concurrently and answers 503 if any fails.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	clients := h.clients()
	report := HealthReport{Status: "ok", Clients: make([]ClientHealth, len(clients))}
	var wg sync.WaitGroup
	for i, c := range clients {
		wg.Add(1)
		go func(i int, c ports.Client) {
			defer wg.Done()
			ch := ClientHealth{Kind: c.Kind(), ID: c.ID(), OK: true}
			if err := c.Ping(ctx); err != nil {
				ch.OK = false
				ch.Error = err.Error()
			}
			report.Clients[i] = ch
		}(i, c)
	}
	wg.Wait()

	code := http.StatusOK
	for _, ch := range report.Clients {
		if !ch.OK {
			report.Status = "degraded"
			code = http.StatusServiceUnavailable
			log.WithFields(log.Fields{"kind": ch.Kind, "id": ch.ID}).Warn("client health check failed: " + ch.Error)
		}
	}
	body, err := project(r, report)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := writeJSON(w, code, body); err != nil {
		http.Error(w, "failed to write response", http.StatusInternalServerError)
	}
}

func (h *Handler) handleClients(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	out := map[string][]string{"kv": {}, "sql": {}}
	if h.KV != nil {
		out["kv"] = h.KV.IDs()
	}
	if h.SQL != nil {
		out["sql"] = h.SQL.IDs()
	}
	body, err := project(r, out)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := writeJSON(w, http.StatusOK, body); err != nil {
		http.Error(w, "failed to write response", http.StatusInternalServerError)
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(v)
}
