package server

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/europakollen/capitalquiz/internal/gazetteer"
	"github.com/europakollen/capitalquiz/internal/quiz"
	"github.com/europakollen/capitalquiz/internal/store"
)

// ErrNoSession is returned by game operations before Start has been called.
var ErrNoSession = errors.New("no active session")

// Timing holds the presentation delays around the engine: how long feedback
// stays on screen before the next round, and how long a rescue offer waits
// before it times out (timeout counts as a decline).
type Timing struct {
	CorrectDelay   time.Duration
	IncorrectDelay time.Duration
	RescueTimeout  time.Duration
}

// Manager owns the single quiz session. It is the one writer: it serializes
// access to the engine, runs the advancement and rescue-offer timers, saves
// state after every mutation and fans events out through the broker.
//
// Timer callbacks validate a generation counter under the lock before
// acting, so a timer that lost a race with an explicit resolution (or a
// reset) is a no-op instead of a stale transition.
type Manager struct {
	logger *slog.Logger
	gaz    *gazetteer.Gazetteer
	store  store.Store
	broker *Broker
	rules  quiz.Rules
	policy quiz.DifficultyPolicy
	timing Timing

	mu           sync.Mutex
	sess         *quiz.Session
	rng          *rand.Rand
	gen          int
	advanceTimer *time.Timer
	rescueTimer  *time.Timer
}

func NewManager(logger *slog.Logger, gaz *gazetteer.Gazetteer, st store.Store, broker *Broker, rules quiz.Rules, policy quiz.DifficultyPolicy, timing Timing) *Manager {
	return &Manager{
		logger: logger,
		gaz:    gaz,
		store:  st,
		broker: broker,
		rules:  rules,
		policy: policy,
		timing: timing,
		rng:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// Start begins a session and presents the first round. Unless fresh is set
// it tries to restore the saved session; an invalid or unreadable save is
// discarded silently and the game starts over.
func (m *Manager) Start(ctx context.Context, fresh bool) (StartResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.gen++
	m.stopTimersLocked()

	resumed := false
	m.sess = nil
	if !fresh {
		if sess := m.restoreLocked(ctx); sess != nil {
			m.sess = sess
			resumed = true
		}
	}
	if m.sess == nil {
		m.sess = quiz.NewSession(m.gaz, m.rules, m.policy, m.rng)
	}

	round, err := m.presentLocked()
	if err != nil {
		return StartResponse{}, err
	}
	m.persistLocked()

	return StartResponse{
		Resumed: resumed,
		Round:   round,
		State:   m.stateLocked(),
	}, nil
}

// restoreLocked loads and validates the saved blob. Any failure short of a
// clean "nothing saved" is logged and treated as no save.
func (m *Manager) restoreLocked(ctx context.Context) *quiz.Session {
	data, err := m.store.Load(ctx, quiz.StateKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		m.logger.Error("loading saved session", "error", err)
		return nil
	}

	state, err := quiz.UnmarshalState(data, m.gaz, m.rules)
	if err != nil {
		m.logger.Warn("discarding invalid saved session", "error", err)
		if derr := m.store.Delete(ctx, quiz.StateKey); derr != nil {
			m.logger.Error("deleting invalid saved session", "error", derr)
		}
		return nil
	}
	return quiz.Restore(m.gaz, m.rules, m.policy, m.rng, state)
}

// Reset destroys the saved blob and starts over from scratch: best streak
// and rescue tokens revert to their initial values.
func (m *Manager) Reset(ctx context.Context) (StartResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.gen++
	m.stopTimersLocked()

	if err := m.store.Delete(ctx, quiz.StateKey); err != nil {
		m.logger.Error("deleting saved session", "error", err)
	}

	m.sess = quiz.NewSession(m.gaz, m.rules, m.policy, m.rng)
	m.broker.Publish(Event{Type: "session_reset"})

	round, err := m.presentLocked()
	if err != nil {
		return StartResponse{}, err
	}
	m.persistLocked()

	return StartResponse{Round: round, State: m.stateLocked()}, nil
}

// State reports the HUD and menu statistics.
func (m *Manager) State() (GameStateResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return GameStateResponse{}, ErrNoSession
	}
	return m.stateLocked(), nil
}

// Round returns the currently presented round.
func (m *Manager) Round() (RoundResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return RoundResponse{}, ErrNoSession
	}
	round := m.sess.Round()
	if round.Prompt.City == "" {
		return RoundResponse{}, quiz.ErrNotAwaitingAnswer
	}
	return roundResponse(round), nil
}

// Answer resolves one marker activation. Activations arriving outside the
// awaiting-answer phase fail with quiz.ErrNotAwaitingAnswer and change
// nothing.
func (m *Manager) Answer(city string) (AnswerResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return AnswerResponse{}, ErrNoSession
	}

	out, err := m.sess.Answer(city)
	if err != nil {
		return AnswerResponse{}, err
	}

	m.gen++
	m.persistLocked()

	m.broker.Publish(Event{
		Type:           "answer_result",
		ActivatedCity:  out.Activated.City,
		CorrectCity:    out.Target.City,
		CorrectCountry: out.Target.Country,
		IsCorrect:      out.Correct,
		Streak:         m.sess.State().CurrentStreak,
		TokenGranted:   out.TokenGranted,
	})
	if out.DifficultyChanged {
		m.broker.Publish(Event{Type: "difficulty_changed", DifficultyLevel: m.sess.State().DifficultyLevel})
	}

	resp := AnswerResponse{
		IsCorrect:     out.Correct,
		ActivatedCity: out.Activated.City,
		Correct:       capitalInfo(out.Target),
		TokenGranted:  out.TokenGranted,
		State:         m.stateLocked(),
	}

	if out.RescueOffered {
		resp.RescueOffer = &RescueOfferInfo{
			AtRiskStreak: out.AtRiskStreak,
			ExpiresInMs:  m.timing.RescueTimeout.Milliseconds(),
		}
		m.broker.Publish(Event{Type: "rescue_offered", AtRiskStreak: out.AtRiskStreak})
		m.startRescueTimerLocked()
		return resp, nil
	}

	delay := m.timing.CorrectDelay
	if !out.Correct {
		delay = m.timing.IncorrectDelay
	}
	resp.NextRoundInMs = delay.Milliseconds()
	m.scheduleAdvanceLocked(delay)
	return resp, nil
}

// Rescue settles the pending offer with an explicit accept or decline.
func (m *Manager) Rescue(accept bool) (RescueResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return RescueResponse{}, ErrNoSession
	}

	res, err := m.sess.ResolveRescue(accept)
	if err != nil {
		return RescueResponse{}, err
	}
	return m.finishRescueLocked(res, false), nil
}

// finishRescueLocked runs the shared tail of an offer resolution: cancel
// the expiry timer, persist, notify and schedule the next round.
func (m *Manager) finishRescueLocked(res quiz.RescueResolution, timedOut bool) RescueResponse {
	m.gen++
	m.stopRescueTimerLocked()
	m.persistLocked()

	m.broker.Publish(Event{
		Type:     "rescue_resolved",
		Accepted: res.Accepted,
		TimedOut: timedOut,
		Streak:   res.StreakPreserved,
	})
	if res.DifficultyChanged {
		m.broker.Publish(Event{Type: "difficulty_changed", DifficultyLevel: m.sess.State().DifficultyLevel})
	}

	m.scheduleAdvanceLocked(m.timing.IncorrectDelay)
	return RescueResponse{
		Accepted:      res.Accepted,
		CurrentStreak: res.StreakPreserved,
		RescueTokens:  res.TokensLeft,
		NextRoundInMs: m.timing.IncorrectDelay.Milliseconds(),
		State:         m.stateLocked(),
	}
}

func (m *Manager) startRescueTimerLocked() {
	gen := m.gen
	d := m.timing.RescueTimeout
	if d <= 0 {
		d = time.Nanosecond
	}
	m.rescueTimer = time.AfterFunc(d, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if gen != m.gen || m.sess == nil {
			return
		}
		res, err := m.sess.ResolveRescue(false)
		if err != nil {
			return
		}
		m.finishRescueLocked(res, true)
	})
}

// scheduleAdvanceLocked arms the advance timer for the just-resolved round.
// A non-positive delay advances synchronously, which keeps tests
// deterministic.
func (m *Manager) scheduleAdvanceLocked(d time.Duration) {
	gen := m.gen
	if d <= 0 {
		m.advanceLocked(gen)
		return
	}
	m.advanceTimer = time.AfterFunc(d, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.advanceLocked(gen)
	})
}

func (m *Manager) advanceLocked(gen int) {
	if gen != m.gen || m.sess == nil {
		return
	}
	if err := m.sess.Advance(); err != nil {
		// A pending rescue offer blocks advancement; its resolution will
		// reschedule.
		return
	}
	if _, err := m.presentLocked(); err != nil {
		m.logger.Error("presenting next round", "error", err)
		return
	}
	m.persistLocked()
}

func (m *Manager) presentLocked() (RoundResponse, error) {
	round, err := m.sess.Present()
	if err != nil {
		return RoundResponse{}, err
	}
	m.broker.Publish(Event{
		Type:        "round_presented",
		PromptCity:  round.Prompt.City,
		ChoiceCount: len(round.Choices),
	})
	return roundResponse(round), nil
}

// persistLocked saves the session after a state change. Storage failures
// are logged and swallowed: the in-memory session stays authoritative and
// the next state change retries naturally.
func (m *Manager) persistLocked() {
	data, err := quiz.MarshalState(m.sess.State())
	if err != nil {
		m.logger.Error("encoding session state", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.store.Save(ctx, quiz.StateKey, data); err != nil {
		m.logger.Error("saving session state", "error", err)
	}
}

func (m *Manager) stopTimersLocked() {
	if m.advanceTimer != nil {
		m.advanceTimer.Stop()
		m.advanceTimer = nil
	}
	m.stopRescueTimerLocked()
}

func (m *Manager) stopRescueTimerLocked() {
	if m.rescueTimer != nil {
		m.rescueTimer.Stop()
		m.rescueTimer = nil
	}
}

func (m *Manager) stateLocked() GameStateResponse {
	s := m.sess.State()
	accuracy := 0.0
	if s.QuestionsAnswered > 0 {
		accuracy = float64(s.Score) / float64(s.QuestionsAnswered)
	}
	return GameStateResponse{
		Phase:             string(m.sess.Phase()),
		Score:             s.Score,
		QuestionsAnswered: s.QuestionsAnswered,
		Accuracy:          accuracy,
		CurrentStreak:     s.CurrentStreak,
		BestStreak:        s.BestStreak,
		DifficultyLevel:   s.DifficultyLevel,
		RescueTokens:      s.RescueTokens,
		QuestionIndex:     s.QuestionIndex,
		TotalCapitals:     len(s.QuestionOrder),
		PendingRescue:     s.PendingRescue,
	}
}

func capitalInfo(c gazetteer.Capital) CapitalInfo {
	return CapitalInfo{City: c.City, Country: c.Country, Lat: c.Lat, Lon: c.Lon}
}

func roundResponse(r quiz.Round) RoundResponse {
	choices := make([]CapitalInfo, 0, len(r.Choices))
	for _, c := range r.Choices {
		choices = append(choices, capitalInfo(c))
	}
	return RoundResponse{PromptCity: r.Prompt.City, Choices: choices}
}
