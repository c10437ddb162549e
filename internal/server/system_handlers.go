package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/fundsentry/internal/database"
)

// SystemHandlers serves process- and host-level monitoring endpoints.
type SystemHandlers struct {
	store       *database.Store
	startupTime time.Time
	log         zerolog.Logger
}

// NewSystemHandlers creates new system handlers
func NewSystemHandlers(store *database.Store, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		store:       store,
		startupTime: time.Now(),
		log:         log.With().Str("handler", "system").Logger(),
	}
}

// HandleStatus handles GET /api/system/status
func (h *SystemHandlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	data := map[string]interface{}{
		"uptime_seconds": int(time.Since(h.startupTime).Seconds()),
		"store_path":     h.store.Path(),
	}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		data["cpu_percent"] = percents[0]
	} else if err != nil {
		h.log.Debug().Err(err).Msg("CPU stats unavailable")
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		data["memory_percent"] = vm.UsedPercent
		data["memory_used_mb"] = vm.Used / 1024 / 1024
	} else {
		h.log.Debug().Err(err).Msg("Memory stats unavailable")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode system status")
	}
}
