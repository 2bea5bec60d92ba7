package server

import (
	"errors"
	"net/http"
)

// GameStateResponse is the HUD and menu view of the session.
type GameStateResponse struct {
	Phase             string  `json:"phase"`
	Score             int     `json:"score"`
	QuestionsAnswered int     `json:"questionsAnswered"`
	Accuracy          float64 `json:"accuracy"`
	CurrentStreak     int     `json:"currentStreak"`
	BestStreak        int     `json:"bestStreak"`
	DifficultyLevel   int     `json:"difficultyLevel"`
	RescueTokens      int     `json:"rescueTokens"`
	QuestionIndex     int     `json:"questionIndex"`
	TotalCapitals     int     `json:"totalCapitals"`
	PendingRescue     bool    `json:"pendingRescueOffer"`
}

func handleState(m *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := m.State()
		if errors.Is(err, ErrNoSession) {
			writeError(w, http.StatusConflict, "no active session")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
