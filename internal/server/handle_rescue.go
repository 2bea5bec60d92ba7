package server

import (
	"errors"
	"net/http"

	"github.com/europakollen/capitalquiz/internal/quiz"
)

type RescueRequest struct {
	Accept bool `json:"accept"`
}

type RescueResponse struct {
	Accepted      bool              `json:"accepted"`
	CurrentStreak int               `json:"currentStreak"`
	RescueTokens  int               `json:"rescueTokens"`
	NextRoundInMs int64             `json:"nextRoundInMs"`
	State         GameStateResponse `json:"state"`
}

func handleRescue(m *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RescueRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		resp, err := m.Rescue(req.Accept)
		switch {
		case errors.Is(err, ErrNoSession):
			writeError(w, http.StatusConflict, "no active session")
			return
		case errors.Is(err, quiz.ErrNoOfferPending):
			// Late responses after an expiry or a double submit land here.
			writeError(w, http.StatusConflict, "no rescue offer pending")
			return
		case err != nil:
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
