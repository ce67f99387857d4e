package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"household-inventory-api/pkg/clock"
	"household-inventory-api/pkg/response"

	"github.com/go-chi/chi/v5"
)

// SweepRunner triggers a named background sweep.
type SweepRunner interface {
	RunNow(ctx context.Context, name string) (interface{}, error)
}

// StatsSource reports backend statistics.
type StatsSource interface {
	GetStoreStats(ctx context.Context) (map[string]interface{}, error)
}

// AdminHandler handles operator endpoints.
type AdminHandler struct {
	sweeps    SweepRunner
	store     StatsSource
	storeType string
	clock     clock.Clock
	startTime time.Time
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(sweeps SweepRunner, store StatsSource, storeType string, clk clock.Clock) *AdminHandler {
	return &AdminHandler{
		sweeps:    sweeps,
		store:     store,
		storeType: storeType,
		clock:     clk,
		startTime: clk.Now(),
	}
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	now := h.clock.Now()
	stats := map[string]interface{}{
		"uptime_seconds": int64(now.Sub(h.startTime).Seconds()),
		"uptime_human":   now.Sub(h.startTime).Round(time.Second).String(),
		"server_time":    now.Format(time.RFC3339),
		"store_type":     h.storeType,
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]interface{}{
		"alloc_mb":      float64(memStats.Alloc) / 1024 / 1024,
		"sys_mb":        float64(memStats.Sys) / 1024 / 1024,
		"heap_inuse_mb": float64(memStats.HeapInuse) / 1024 / 1024,
		"num_gc":        memStats.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}

	if h.store != nil {
		storeStats, err := h.store.GetStoreStats(r.Context())
		if err == nil {
			storeStats["status"] = "connected"
			stats["store"] = storeStats
		} else {
			stats["store"] = map[string]interface{}{
				"status": "error",
				"error":  err.Error(),
			}
		}
	}

	stats["runtime"] = map[string]interface{}{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, stats)
}

// RunSweep handles POST /api/v1/admin/sweeps/{sweep}
func (h *AdminHandler) RunSweep(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "sweep")
	report, err := h.sweeps.RunNow(r.Context(), name)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, map[string]interface{}{
		"sweep":  name,
		"report": report,
	})
}
