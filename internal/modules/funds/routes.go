package funds

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts the fund endpoints on the given router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/funds", func(r chi.Router) {
		r.Post("/returns/batch", h.HandleBatchReturns)
		r.Get("/search", h.HandleSearch)
		r.Get("/filters", h.HandleFilterOptions)
		r.Get("/top", h.HandleTopPerformers)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/score", h.HandleFundScore)
			r.Get("/returns", h.HandlePeriodReturns)
			r.Get("/risk", h.HandleRiskMetrics)
			r.Get("/report", h.HandleReport)
			r.Get("/toptier", h.HandleTopTier)
		})
	})

	r.Route("/cache", func(r chi.Router) {
		r.Get("/status", h.HandleCacheStatus)
	})
}
