package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aristath/tradesim/internal/catalog"
	"github.com/aristath/tradesim/internal/domain"
	"github.com/aristath/tradesim/internal/persistence"
	"github.com/rs/zerolog"
)

// writeJSON writes a JSON response
func writeJSON(log zerolog.Logger, w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func writeError(log zerolog.Logger, w http.ResponseWriter, status int, message string) {
	writeJSON(log, w, status, map[string]string{"error": message})
}

// statusForError maps simulator errors to HTTP statuses
func statusForError(err error) int {
	var notFound *catalog.SymbolNotFoundError
	var loadErr *domain.StateLoadError
	switch {
	case errors.As(err, &notFound), errors.Is(err, persistence.ErrNoState):
		return http.StatusNotFound
	case errors.As(err, &loadErr):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
