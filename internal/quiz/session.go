// Package quiz implements the quiz session engine: question sequencing,
// distractor selection, adaptive difficulty, the rescue-token economy and
// the round state machine. It has zero external dependencies — everything
// here is pure Go. Timers, persistence and transport live in the callers.
package quiz

import (
	"errors"
	"math/rand/v2"

	"github.com/europakollen/capitalquiz/internal/gazetteer"
)

// Phase is the session's position in the round lifecycle.
type Phase string

const (
	// PhaseIdle: no round presented yet (before the first Present or
	// right after an Advance).
	PhaseIdle Phase = "idle"
	// PhaseAwaitingAnswer: a round is on the table and exactly one
	// activation will be accepted.
	PhaseAwaitingAnswer Phase = "awaiting_answer"
	// PhaseOfferingRescue: a wrong answer is held open while the player
	// decides whether to spend a rescue token.
	PhaseOfferingRescue Phase = "offering_rescue"
	// PhaseAdvancing: the round is resolved and the session waits for
	// the scheduled Advance.
	PhaseAdvancing Phase = "advancing"
)

var (
	// ErrNotAwaitingAnswer rejects activations outside PhaseAwaitingAnswer.
	// This is the contract behind "ignore clicks during feedback".
	ErrNotAwaitingAnswer = errors.New("quiz: no answer expected in current phase")
	// ErrUnknownChoice rejects an activation that does not reference one
	// of the presented choices.
	ErrUnknownChoice = errors.New("quiz: activated city was not presented")
	// ErrNoOfferPending rejects rescue responses when no offer is open.
	ErrNoOfferPending = errors.New("quiz: no rescue offer pending")
	// ErrNotAdvancing rejects an Advance for a round that is not resolved.
	ErrNotAdvancing = errors.New("quiz: session is not ready to advance")
	// ErrNoValidTarget means an entire epoch contained no presentable
	// capital. With a validated gazetteer this cannot happen; it is kept
	// as a guard against corrupt restored state.
	ErrNoValidTarget = errors.New("quiz: no valid answer target in question order")
)

// Outcome describes the resolution of one activation.
type Outcome struct {
	Correct bool
	// Activated is the capital the player picked, Target the one asked
	// for. On a correct answer they are the same record.
	Activated gazetteer.Capital
	Target    gazetteer.Capital
	// TokenGranted is set when this answer pushed the streak onto a
	// token milestone.
	TokenGranted bool
	// RescueOffered is set when the session moved to PhaseOfferingRescue
	// instead of finalizing the miss. AtRiskStreak is the streak that a
	// declined offer will reset.
	RescueOffered bool
	AtRiskStreak  int
	// DifficultyChanged reports a level adjustment made while resolving
	// this answer. It stays false on the rescue-offer path, where the
	// difficulty recomputation is deferred to the offer's resolution.
	DifficultyChanged bool
}

// RescueResolution describes how a pending offer ended.
type RescueResolution struct {
	Accepted bool
	// StreakPreserved is the streak after resolution: unchanged on
	// accept, zero on decline.
	StreakPreserved   int
	TokensLeft        int
	DifficultyChanged bool
}

// Session is the state machine owning all mutable quiz state. It is not
// safe for concurrent use; callers serialize access.
type Session struct {
	gaz    *gazetteer.Gazetteer
	rng    *rand.Rand
	rules  Rules
	policy DifficultyPolicy

	state State
	phase Phase
	round Round
}

// NewSession starts a fresh session: counters zeroed, difficulty at its
// minimum, the initial token grant applied and a newly shuffled question
// order.
func NewSession(g *gazetteer.Gazetteer, rules Rules, policy DifficultyPolicy, rng *rand.Rand) *Session {
	s := &Session{gaz: g, rng: rng, rules: rules, policy: policy, phase: PhaseIdle}
	s.state = s.freshState()
	return s
}

// Restore adopts previously persisted state. The caller is responsible for
// validating it first (see UnmarshalState); Restore itself only clears a
// rescue offer that cannot survive a restart, without penalty.
func Restore(g *gazetteer.Gazetteer, rules Rules, policy DifficultyPolicy, rng *rand.Rand, state State) *Session {
	state.PendingRescue = false
	return &Session{
		gaz:    g,
		rng:    rng,
		rules:  rules,
		policy: policy,
		state:  state.clone(),
		phase:  PhaseIdle,
	}
}

func (s *Session) freshState() State {
	order := s.gaz.All()
	s.rng.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})
	return State{
		DifficultyLevel: s.rules.MinChoices,
		RescueTokens:    s.rules.InitialTokens,
		QuestionOrder:   order,
	}
}

// State returns a deep copy of the current counters and question order.
func (s *Session) State() State { return s.state.clone() }

// Phase returns the current lifecycle phase.
func (s *Session) Phase() Phase { return s.phase }

// Round returns the currently presented round. Only meaningful in
// PhaseAwaitingAnswer and later phases of the same round.
func (s *Session) Round() Round { return s.round }

// Reset discards all progress and starts over, initial grants included.
func (s *Session) Reset() {
	s.state = s.freshState()
	s.phase = PhaseIdle
	s.round = Round{}
}

// Present selects the next target from the question order, composes the
// choice set and moves to PhaseAwaitingAnswer. Structurally invalid
// entries are skipped silently; running off the end of the order starts a
// new epoch (reshuffle, index 0).
func (s *Session) Present() (Round, error) {
	if s.phase != PhaseIdle {
		return Round{}, ErrNotAdvancing
	}
	if len(s.state.QuestionOrder) == 0 {
		return Round{}, gazetteer.ErrUnavailable
	}

	// One full pass over the order is the most skipping can ever need;
	// beyond that every entry is broken.
	for tries := 0; tries <= len(s.state.QuestionOrder); tries++ {
		if s.state.QuestionIndex < 0 || s.state.QuestionIndex >= len(s.state.QuestionOrder) {
			s.rolloverEpoch()
		}
		target := s.state.QuestionOrder[s.state.QuestionIndex]
		if !target.Valid() {
			s.state.QuestionIndex++
			continue
		}
		s.round = composeRound(s.gaz, s.rng, target, s.state.DifficultyLevel)
		s.phase = PhaseAwaitingAnswer
		return s.round, nil
	}
	return Round{}, ErrNoValidTarget
}

func (s *Session) rolloverEpoch() {
	s.rng.Shuffle(len(s.state.QuestionOrder), func(i, j int) {
		s.state.QuestionOrder[i], s.state.QuestionOrder[j] = s.state.QuestionOrder[j], s.state.QuestionOrder[i]
	})
	s.state.QuestionIndex = 0
}

// Answer resolves one activation against the presented round. Outside
// PhaseAwaitingAnswer the activation is rejected with ErrNotAwaitingAnswer
// and no state changes.
func (s *Session) Answer(city string) (Outcome, error) {
	if s.phase != PhaseAwaitingAnswer {
		return Outcome{}, ErrNotAwaitingAnswer
	}
	if !s.round.contains(city) {
		return Outcome{}, ErrUnknownChoice
	}

	target := s.round.Prompt
	activated, _ := s.gaz.Lookup(city)
	out := Outcome{
		Correct:   city == target.City,
		Activated: activated,
		Target:    target,
	}

	s.state.QuestionsAnswered++

	if out.Correct {
		s.state.Score++
		s.state.CurrentStreak++
		if s.state.CurrentStreak > s.state.BestStreak {
			s.state.BestStreak = s.state.CurrentStreak
		}
		s.state.ConsecutiveErrors = 0
		if s.rules.TokenMilestone > 0 && s.state.CurrentStreak%s.rules.TokenMilestone == 0 {
			s.state.RescueTokens++
			out.TokenGranted = true
		}
		s.state.pushOutcome(true, s.rules.WindowSize)
		out.DifficultyChanged = s.adjustDifficulty(true)
		s.phase = PhaseAdvancing
		return out, nil
	}

	// A wrong answer with a spendable token and a streak worth saving
	// holds the round open for the rescue decision. All error accounting
	// waits for the resolution so an accepted rescue forgives the miss
	// entirely.
	if s.state.RescueTokens > 0 && s.state.CurrentStreak > 0 {
		s.state.PendingRescue = true
		s.phase = PhaseOfferingRescue
		out.RescueOffered = true
		out.AtRiskStreak = s.state.CurrentStreak
		return out, nil
	}

	s.finalizeMiss()
	out.DifficultyChanged = s.adjustDifficulty(false)
	s.phase = PhaseAdvancing
	return out, nil
}

// finalizeMiss applies the streak and error accounting of an unforgiven
// wrong answer.
func (s *Session) finalizeMiss() {
	s.state.CurrentStreak = 0
	s.state.ConsecutiveErrors++
	s.state.pushOutcome(false, s.rules.WindowSize)
}

// ResolveRescue settles a pending offer. Accepting spends one token,
// keeps the streak and wipes the error from the difficulty accounting;
// declining (and, in the caller, a timeout) finalizes the miss normally.
func (s *Session) ResolveRescue(accept bool) (RescueResolution, error) {
	if s.phase != PhaseOfferingRescue || !s.state.PendingRescue {
		return RescueResolution{}, ErrNoOfferPending
	}

	res := RescueResolution{Accepted: accept}
	if accept {
		s.state.RescueTokens--
		s.state.ConsecutiveErrors = 0
	} else {
		s.finalizeMiss()
	}
	res.DifficultyChanged = s.adjustDifficulty(false)
	res.StreakPreserved = s.state.CurrentStreak
	res.TokensLeft = s.state.RescueTokens

	s.state.PendingRescue = false
	s.phase = PhaseAdvancing
	return res, nil
}

// Advance consumes the resolved round and moves the index forward. The
// next Present starts the following round.
func (s *Session) Advance() error {
	if s.phase != PhaseAdvancing || s.state.PendingRescue {
		return ErrNotAdvancing
	}
	s.state.QuestionIndex++
	s.phase = PhaseIdle
	s.round = Round{}
	return nil
}

func (s *Session) adjustDifficulty(correct bool) bool {
	before := s.state.DifficultyLevel
	s.policy.Adjust(&s.state, s.rules, correct)
	s.state.DifficultyLevel = s.rules.clampDifficulty(s.state.DifficultyLevel)
	return s.state.DifficultyLevel != before
}
