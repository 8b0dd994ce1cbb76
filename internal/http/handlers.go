package http

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/envlens/envmonitor-service/internal/coordinator"
	"github.com/envlens/envmonitor-service/internal/freshness"
	"github.com/envlens/envmonitor-service/internal/lifecycle"
	"github.com/envlens/envmonitor-service/internal/models"
	"github.com/envlens/envmonitor-service/internal/traffic"
)

// HealthConfig holds thresholds for the health handler.
type HealthConfig struct {
	DegradedWindow   time.Duration
	DegradedErrorPct int
	// CachePing, when set, is called to check cache reachability. Used when
	// backend is memcached.
	CachePing func() error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	coord        *coordinator.Coordinator
	healthConfig *HealthConfig
	logger       *zap.Logger

	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(coord *coordinator.Coordinator, healthConfig *HealthConfig, logger *zap.Logger) *Handler {
	return &Handler{
		coord:        coord,
		healthConfig: healthConfig,
		logger:       logger,
	}
}

// domainView is one domain's status with its freshness verdict attached.
type domainView struct {
	models.DomainStatus
	Freshness freshness.Verdict `json:"freshness"`
}

func viewOf(st models.DomainStatus) domainView {
	ts := time.Time{}
	if st.LastTimestamp != nil {
		ts = *st.LastTimestamp
	}
	return domainView{DomainStatus: st, Freshness: freshness.Classify(ts)}
}

// GetDashboard handles GET /api/dashboard.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	snapshot := h.coord.Snapshot()
	domains := make(map[string]domainView, len(snapshot))
	for domain, st := range snapshot {
		domains[string(domain)] = viewOf(st)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"domains":   domains,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// GetDomain handles GET /api/domains/{domain}.
func (h *Handler) GetDomain(w http.ResponseWriter, r *http.Request) {
	domain, ok := models.ParseDomain(mux.Vars(r)["domain"])
	if !ok {
		writeError(w, r, http.StatusNotFound, "UNKNOWN_DOMAIN", "unknown domain: "+mux.Vars(r)["domain"])
		return
	}
	st, err := h.coord.Status(domain)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "UNKNOWN_DOMAIN", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, viewOf(st))
}

// PostRefresh handles POST /api/refresh. ?force=true clears the cache first
// so every chain re-fetches from its sources.
func (h *Handler) PostRefresh(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"

	err := h.coord.FetchAll(r.Context(), force)
	snapshot := h.coord.Snapshot()
	succeeded := 0
	for _, st := range snapshot {
		if st.State == models.StateSuccess {
			succeeded++
		}
	}

	resp := map[string]interface{}{
		"ok":        err == nil,
		"force":     force,
		"domains":   len(snapshot),
		"succeeded": succeeded,
	}
	if err != nil {
		if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
			logger.Debug("refresh cycle errors", zap.Error(err))
		}
		resp["message"] = "some domains failed to refresh"
		// Partial failure still returned as 200: the dashboard keeps showing
		// every domain's own state.
	}
	writeJSON(w, http.StatusOK, resp)
}

// PostRefreshDomain handles POST /api/refresh/{domain}.
func (h *Handler) PostRefreshDomain(w http.ResponseWriter, r *http.Request) {
	domain, ok := models.ParseDomain(mux.Vars(r)["domain"])
	if !ok {
		writeError(w, r, http.StatusNotFound, "UNKNOWN_DOMAIN", "unknown domain: "+mux.Vars(r)["domain"])
		return
	}

	if err := h.coord.RefreshOne(r.Context(), domain); err != nil {
		st, stErr := h.coord.Status(domain)
		if stErr != nil {
			writeError(w, r, http.StatusNotFound, "UNKNOWN_DOMAIN", stErr.Error())
			return
		}
		// The refresh failed but the domain record is intact; report it with
		// the upstream-unavailable code so the client can distinguish.
		writeJSON(w, http.StatusBadGateway, map[string]interface{}{
			"error": map[string]string{
				"code":      "REFRESH_FAILED",
				"message":   st.LastError,
				"requestId": correlationID(r),
			},
			"domain": viewOf(st),
		})
		return
	}

	st, err := h.coord.Status(domain)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "UNKNOWN_DOMAIN", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, viewOf(st))
}

// GetCacheStats handles GET /api/cache/stats.
func (h *Handler) GetCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.coord.CacheStats(r.Context())
	if err != nil {
		writeError(w, r, http.StatusServiceUnavailable, "CACHE_UNAVAILABLE", "cache stats unavailable")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status && h.logger != nil {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := make(map[string]string)
	for domain, st := range h.coord.Snapshot() {
		if st.State == models.StateError || st.State == models.StateNoData {
			checks[string(domain)] = "unhealthy"
		} else {
			checks[string(domain)] = "healthy"
		}
	}
	if h.healthConfig != nil && h.healthConfig.CachePing != nil {
		if h.healthConfig.CachePing() == nil {
			checks["cache"] = "healthy"
		} else {
			checks["cache"] = "unhealthy"
		}
	}

	resp := map[string]interface{}{
		"status":    result.status,
		"service":   "envmonitor-service",
		"version":   "dev",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if result.reason != "" {
		resp["reason"] = result.reason
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(result.statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

// computeHealthStatus evaluates health conditions in priority order:
// shutting-down > degraded by per-domain error rate > healthy.
func (h *Handler) computeHealthStatus() healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if h.healthConfig != nil && h.healthConfig.DegradedWindow > 0 && h.healthConfig.DegradedErrorPct > 0 {
		domain, rate := traffic.WorstErrorRate(h.healthConfig.DegradedWindow)
		if domain != "" && rate*100 >= float64(h.healthConfig.DegradedErrorPct) {
			return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate:" + domain}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func correlationID(r *http.Request) string {
	if v := r.Context().Value("correlation_id"); v != nil {
		return v.(string)
	}
	return ""
}

// writeError writes an error response in the standard error format with code,
// message, and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": correlationID(r),
		},
	})
}
