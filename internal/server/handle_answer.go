package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/europakollen/capitalquiz/internal/quiz"
)

// AnswerRequest is the activation callback from the map surface: exactly
// one previously presented marker.
type AnswerRequest struct {
	City string `json:"city"`
}

type RescueOfferInfo struct {
	AtRiskStreak int   `json:"atRiskStreak"`
	ExpiresInMs  int64 `json:"expiresInMs"`
}

type AnswerResponse struct {
	IsCorrect     bool        `json:"isCorrect"`
	ActivatedCity string      `json:"activatedCity"`
	Correct       CapitalInfo `json:"correct"`
	TokenGranted  bool        `json:"tokenGranted,omitempty"`
	// RescueOffer is present when the wrong answer opened a shield offer;
	// the next round waits for /api/game/rescue or the offer's expiry.
	RescueOffer   *RescueOfferInfo  `json:"rescueOffer,omitempty"`
	NextRoundInMs int64             `json:"nextRoundInMs,omitempty"`
	State         GameStateResponse `json:"state"`
}

func handleAnswer(m *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AnswerRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.City = strings.TrimSpace(req.City)
		if req.City == "" {
			writeError(w, http.StatusBadRequest, "city is required")
			return
		}

		resp, err := m.Answer(req.City)
		switch {
		case errors.Is(err, ErrNoSession):
			writeError(w, http.StatusConflict, "no active session")
			return
		case errors.Is(err, quiz.ErrNotAwaitingAnswer):
			// The formal contract behind "block clicks during feedback".
			writeError(w, http.StatusConflict, "no answer expected right now")
			return
		case errors.Is(err, quiz.ErrUnknownChoice):
			writeError(w, http.StatusBadRequest, "city was not among the presented choices")
			return
		case err != nil:
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
