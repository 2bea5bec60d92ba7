package server

import (
	"errors"
	"net/http"

	"github.com/europakollen/capitalquiz/internal/gazetteer"
)

type StartRequest struct {
	// Fresh skips restoring the saved session and starts over.
	Fresh bool `json:"fresh"`
}

type StartResponse struct {
	Resumed bool              `json:"resumed"`
	Round   RoundResponse     `json:"round"`
	State   GameStateResponse `json:"state"`
}

func handleStart(m *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StartRequest
		if r.ContentLength > 0 {
			if err := readJSON(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
		}

		resp, err := m.Start(r.Context(), req.Fresh)
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
