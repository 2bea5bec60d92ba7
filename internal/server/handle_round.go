package server

import (
	"errors"
	"net/http"

	"github.com/europakollen/capitalquiz/internal/quiz"
)

// CapitalInfo is one selectable marker on the map.
type CapitalInfo struct {
	City    string  `json:"city"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// RoundResponse is the presentation call: the city to prompt for and the
// markers to place. The correct capital is hidden among the choices.
type RoundResponse struct {
	PromptCity string        `json:"promptCity"`
	Choices    []CapitalInfo `json:"choices"`
}

func handleRound(m *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := m.Round()
		if errors.Is(err, ErrNoSession) || errors.Is(err, quiz.ErrNotAwaitingAnswer) {
			writeError(w, http.StatusConflict, "no round presented")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
