package quiz

import "github.com/europakollen/capitalquiz/internal/gazetteer"

// State is everything that survives a restart. It is mutated only by the
// Session; every other component receives it by value or through the
// persistence codec.
type State struct {
	Score             int  `json:"score"`
	QuestionsAnswered int  `json:"questionsAnswered"`
	CurrentStreak     int  `json:"currentStreak"`
	BestStreak        int  `json:"bestStreak"`
	DifficultyLevel   int  `json:"difficultyLevel"`
	RescueTokens      int  `json:"rescueTokens"`
	ConsecutiveErrors int  `json:"consecutiveErrors"`
	QuestionIndex     int  `json:"questionIndex"`
	PendingRescue     bool `json:"pendingRescueOffer"`

	// PerformanceWindow holds the most recent pass/fail outcomes, oldest
	// first, capped at Rules.WindowSize. Only the sliding-window policy
	// reads it, but it is always maintained so the policy can be switched
	// without losing history.
	PerformanceWindow []bool `json:"performanceWindow"`

	// QuestionOrder is the shuffled copy of the gazetteer consumed one
	// entry per round. When QuestionIndex runs off the end the order is
	// reshuffled and the index reset (a new epoch).
	QuestionOrder []gazetteer.Capital `json:"questionOrder"`
}

// clone returns a deep copy so callers cannot alias the session's slices.
func (s State) clone() State {
	out := s
	out.PerformanceWindow = append([]bool(nil), s.PerformanceWindow...)
	out.QuestionOrder = append([]gazetteer.Capital(nil), s.QuestionOrder...)
	return out
}

// pushOutcome appends one pass/fail result, evicting the oldest entry once
// the window is full.
func (s *State) pushOutcome(pass bool, windowSize int) {
	s.PerformanceWindow = append(s.PerformanceWindow, pass)
	if windowSize > 0 && len(s.PerformanceWindow) > windowSize {
		s.PerformanceWindow = s.PerformanceWindow[len(s.PerformanceWindow)-windowSize:]
	}
}
