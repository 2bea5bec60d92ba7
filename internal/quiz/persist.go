package quiz

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/europakollen/capitalquiz/internal/gazetteer"
)

// StateKey is the storage key for the persisted session blob. The version
// suffix changes whenever the field set does, so an incompatible historical
// schema is never misread as current.
const StateKey = "session:v2"

// ErrInvalidState means a persisted blob failed validation beyond what
// clamping can repair. Callers discard the blob and start fresh.
var ErrInvalidState = errors.New("quiz: invalid persisted state")

// MarshalState serializes a session state for the key-value store.
func MarshalState(s State) ([]byte, error) {
	return json.Marshal(s)
}

// persistedState mirrors State with pointers on the required fields so a
// missing field is distinguishable from a zero.
type persistedState struct {
	Score             *int                 `json:"score"`
	QuestionsAnswered *int                 `json:"questionsAnswered"`
	CurrentStreak     *int                 `json:"currentStreak"`
	BestStreak        *int                 `json:"bestStreak"`
	DifficultyLevel   *int                 `json:"difficultyLevel"`
	QuestionIndex     *int                 `json:"questionIndex"`
	QuestionOrder     *[]gazetteer.Capital `json:"questionOrder"`

	RescueTokens      int    `json:"rescueTokens"`
	ConsecutiveErrors int    `json:"consecutiveErrors"`
	PendingRescue     bool   `json:"pendingRescueOffer"`
	PerformanceWindow []bool `json:"performanceWindow"`
}

// UnmarshalState decodes and validates a persisted blob against the current
// gazetteer and rules.
//
// Recoverable deviations are repaired: an out-of-range difficulty level is
// clamped into [MinChoices, MaxChoices], an out-of-range question index is
// clamped into the order's bounds, an oversized performance window is
// truncated to its newest entries and a best streak below the current
// streak is raised to it. Everything non-recoverable — malformed JSON,
// missing required fields, negative counters, a score exceeding the
// questions answered, an empty or structurally broken question order, or an
// order referencing cities absent from the current gazetteer — rejects the
// whole blob with ErrInvalidState.
func UnmarshalState(data []byte, g *gazetteer.Gazetteer, rules Rules) (State, error) {
	var p persistedState
	if err := json.Unmarshal(data, &p); err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}

	if p.Score == nil || p.QuestionsAnswered == nil || p.CurrentStreak == nil ||
		p.BestStreak == nil || p.DifficultyLevel == nil || p.QuestionIndex == nil ||
		p.QuestionOrder == nil {
		return State{}, fmt.Errorf("%w: missing required field", ErrInvalidState)
	}

	s := State{
		Score:             *p.Score,
		QuestionsAnswered: *p.QuestionsAnswered,
		CurrentStreak:     *p.CurrentStreak,
		BestStreak:        *p.BestStreak,
		DifficultyLevel:   *p.DifficultyLevel,
		QuestionIndex:     *p.QuestionIndex,
		QuestionOrder:     *p.QuestionOrder,
		RescueTokens:      p.RescueTokens,
		ConsecutiveErrors: p.ConsecutiveErrors,
		PendingRescue:     p.PendingRescue,
		PerformanceWindow: p.PerformanceWindow,
	}

	if s.Score < 0 || s.QuestionsAnswered < 0 || s.CurrentStreak < 0 ||
		s.BestStreak < 0 || s.RescueTokens < 0 || s.ConsecutiveErrors < 0 {
		return State{}, fmt.Errorf("%w: negative counter", ErrInvalidState)
	}
	if s.Score > s.QuestionsAnswered {
		return State{}, fmt.Errorf("%w: score exceeds questions answered", ErrInvalidState)
	}
	if len(s.QuestionOrder) == 0 {
		return State{}, fmt.Errorf("%w: empty question order", ErrInvalidState)
	}
	for _, c := range s.QuestionOrder {
		if !c.Valid() {
			return State{}, fmt.Errorf("%w: malformed capital %q in question order", ErrInvalidState, c.City)
		}
		// A save from an edited gazetteer is discarded wholesale rather
		// than repaired; see UnmarshalState docs.
		if _, ok := g.Lookup(c.City); !ok {
			return State{}, fmt.Errorf("%w: city %q not in current gazetteer", ErrInvalidState, c.City)
		}
	}

	s.DifficultyLevel = rules.clampDifficulty(s.DifficultyLevel)
	if s.QuestionIndex < 0 || s.QuestionIndex >= len(s.QuestionOrder) {
		s.QuestionIndex = 0
	}
	if s.BestStreak < s.CurrentStreak {
		s.BestStreak = s.CurrentStreak
	}
	if rules.WindowSize > 0 && len(s.PerformanceWindow) > rules.WindowSize {
		s.PerformanceWindow = s.PerformanceWindow[len(s.PerformanceWindow)-rules.WindowSize:]
	}

	return s, nil
}
