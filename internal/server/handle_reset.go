package server

import (
	"errors"
	"net/http"

	"github.com/europakollen/capitalquiz/internal/gazetteer"
)

func handleReset(m *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := m.Reset(r.Context())
		if errors.Is(err, gazetteer.ErrUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "no capital data available")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
