package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers chart routes under the market prefix
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/history/{symbol}", h.HandleGetHistory)
	r.Get("/indicators/{symbol}", h.HandleGetIndicators)
	r.Get("/sparklines", h.HandleGetSparklines)
}
