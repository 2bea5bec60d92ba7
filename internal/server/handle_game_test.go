package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/europakollen/capitalquiz/internal/gazetteer"
	"github.com/europakollen/capitalquiz/internal/quiz"
	"github.com/europakollen/capitalquiz/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testGazetteer(t *testing.T, n int) *gazetteer.Gazetteer {
	t.Helper()
	caps := make([]gazetteer.Capital, 0, n)
	for i := 0; i < n; i++ {
		caps = append(caps, gazetteer.Capital{
			City:    fmt.Sprintf("City%02d", i),
			Country: fmt.Sprintf("Country%02d", i),
			Lat:     float64(i),
			Lon:     float64(i),
		})
	}
	g, err := gazetteer.New(caps)
	if err != nil {
		t.Fatalf("gazetteer.New: %v", err)
	}
	return g
}

// newTestManager builds a manager over the given store. Zero advance delays
// make advancement synchronous; the rescue timeout stays long so offers wait
// for an explicit resolution unless a test shortens it.
func newTestManager(t *testing.T, st store.Store, timing Timing) *Manager {
	t.Helper()
	return NewManager(discardLogger(), testGazetteer(t, 12), st, NewBroker(),
		quiz.DefaultRules(), quiz.SlidingWindowPolicy{}, timing)
}

func gameRouter(m *Manager) *chi.Mux {
	r := chi.NewRouter()
	r.Route("/api/game", func(r chi.Router) {
		r.Post("/start", handleStart(m))
		r.Get("/state", handleState(m))
		r.Get("/round", handleRound(m))
		r.Post("/answer", handleAnswer(m))
		r.Post("/rescue", handleRescue(m))
		r.Post("/reset", handleReset(m))
	})
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshaling request: %v", err)
		}
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if out != nil && w.Code == http.StatusOK {
		if err := json.NewDecoder(w.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s %s: %v", method, path, err)
		}
	}
	return w
}

// answerWrongCity picks a distractor from the current round and activates it.
func answerWrongCity(t *testing.T, r http.Handler) AnswerResponse {
	t.Helper()
	var round RoundResponse
	if w := doJSON(t, r, http.MethodGet, "/api/game/round", nil, &round); w.Code != http.StatusOK {
		t.Fatalf("round: %d: %s", w.Code, w.Body.String())
	}
	for _, c := range round.Choices {
		if c.City != round.PromptCity {
			var resp AnswerResponse
			if w := doJSON(t, r, http.MethodPost, "/api/game/answer", AnswerRequest{City: c.City}, &resp); w.Code != http.StatusOK {
				t.Fatalf("answer: %d: %s", w.Code, w.Body.String())
			}
			return resp
		}
	}
	t.Fatal("round had no distractor")
	return AnswerResponse{}
}

func TestStartFresh(t *testing.T) {
	m := newTestManager(t, store.NewMemory(), Timing{RescueTimeout: time.Hour})
	r := gameRouter(m)

	var resp StartResponse
	w := doJSON(t, r, http.MethodPost, "/api/game/start", StartRequest{Fresh: true}, &resp)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	if resp.Resumed {
		t.Error("fresh start reported resumed")
	}
	if resp.Round.PromptCity == "" {
		t.Error("expected a presented round")
	}
	if got := len(resp.Round.Choices); got != 3 {
		t.Errorf("expected 3 choices at the starting difficulty, got %d", got)
	}
	if resp.State.Phase != "awaiting_answer" {
		t.Errorf("phase = %q, want awaiting_answer", resp.State.Phase)
	}
	if resp.State.RescueTokens != 1 {
		t.Errorf("RescueTokens = %d, want the initial grant", resp.State.RescueTokens)
	}
	if resp.State.TotalCapitals != 12 {
		t.Errorf("TotalCapitals = %d, want 12", resp.State.TotalCapitals)
	}
}

func TestStateAndRoundBeforeStart(t *testing.T) {
	m := newTestManager(t, store.NewMemory(), Timing{})
	r := gameRouter(m)

	if w := doJSON(t, r, http.MethodGet, "/api/game/state", nil, nil); w.Code != http.StatusConflict {
		t.Errorf("state: expected 409, got %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodGet, "/api/game/round", nil, nil); w.Code != http.StatusConflict {
		t.Errorf("round: expected 409, got %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodPost, "/api/game/answer", AnswerRequest{City: "City00"}, nil); w.Code != http.StatusConflict {
		t.Errorf("answer: expected 409, got %d", w.Code)
	}
}

func TestCorrectAnswerAdvances(t *testing.T) {
	m := newTestManager(t, store.NewMemory(), Timing{RescueTimeout: time.Hour})
	r := gameRouter(m)

	var start StartResponse
	doJSON(t, r, http.MethodPost, "/api/game/start", StartRequest{Fresh: true}, &start)

	var resp AnswerResponse
	w := doJSON(t, r, http.MethodPost, "/api/game/answer", AnswerRequest{City: start.Round.PromptCity}, &resp)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !resp.IsCorrect {
		t.Error("expected isCorrect=true")
	}
	if resp.Correct.City != start.Round.PromptCity {
		t.Errorf("correct.city = %q, want %q", resp.Correct.City, start.Round.PromptCity)
	}
	if resp.State.Score != 1 || resp.State.CurrentStreak != 1 {
		t.Errorf("score %d streak %d, want 1 and 1", resp.State.Score, resp.State.CurrentStreak)
	}

	// Zero delay: the next round is already presented.
	var state GameStateResponse
	doJSON(t, r, http.MethodGet, "/api/game/state", nil, &state)
	if state.Phase != "awaiting_answer" {
		t.Errorf("phase = %q, want awaiting_answer", state.Phase)
	}
	if state.QuestionIndex != 1 {
		t.Errorf("QuestionIndex = %d, want 1", state.QuestionIndex)
	}
	var round RoundResponse
	if w := doJSON(t, r, http.MethodGet, "/api/game/round", nil, &round); w.Code != http.StatusOK {
		t.Fatalf("round after advance: %d", w.Code)
	}
}

func TestAnswerValidation(t *testing.T) {
	m := newTestManager(t, store.NewMemory(), Timing{RescueTimeout: time.Hour})
	r := gameRouter(m)
	doJSON(t, r, http.MethodPost, "/api/game/start", StartRequest{Fresh: true}, nil)

	if w := doJSON(t, r, http.MethodPost, "/api/game/answer", AnswerRequest{City: "   "}, nil); w.Code != http.StatusBadRequest {
		t.Errorf("blank city: expected 400, got %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodPost, "/api/game/answer", AnswerRequest{City: "Shangri-La"}, nil); w.Code != http.StatusBadRequest {
		t.Errorf("unknown city: expected 400, got %d", w.Code)
	}
}

func TestAnswerBlockedDuringFeedback(t *testing.T) {
	// Long delays: the session stays in the advancing phase after an answer.
	m := newTestManager(t, store.NewMemory(), Timing{
		CorrectDelay:   time.Hour,
		IncorrectDelay: time.Hour,
		RescueTimeout:  time.Hour,
	})
	r := gameRouter(m)

	var start StartResponse
	doJSON(t, r, http.MethodPost, "/api/game/start", StartRequest{Fresh: true}, &start)

	var first AnswerResponse
	doJSON(t, r, http.MethodPost, "/api/game/answer", AnswerRequest{City: start.Round.PromptCity}, &first)
	if first.NextRoundInMs != time.Hour.Milliseconds() {
		t.Errorf("NextRoundInMs = %d, want %d", first.NextRoundInMs, time.Hour.Milliseconds())
	}

	// A second activation during feedback is rejected and changes nothing.
	w := doJSON(t, r, http.MethodPost, "/api/game/answer", AnswerRequest{City: start.Round.PromptCity}, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
	var state GameStateResponse
	doJSON(t, r, http.MethodGet, "/api/game/state", nil, &state)
	if state.QuestionsAnswered != 1 {
		t.Errorf("QuestionsAnswered = %d, dropped activation must not count", state.QuestionsAnswered)
	}
}

func TestRescueDeclineFlow(t *testing.T) {
	m := newTestManager(t, store.NewMemory(), Timing{RescueTimeout: time.Hour})
	r := gameRouter(m)

	var start StartResponse
	doJSON(t, r, http.MethodPost, "/api/game/start", StartRequest{Fresh: true}, &start)

	// Build a streak, then miss.
	doJSON(t, r, http.MethodPost, "/api/game/answer", AnswerRequest{City: start.Round.PromptCity}, nil)
	miss := answerWrongCity(t, r)

	if miss.IsCorrect {
		t.Fatal("expected a miss")
	}
	if miss.RescueOffer == nil {
		t.Fatal("expected a rescue offer")
	}
	if miss.RescueOffer.AtRiskStreak != 1 {
		t.Errorf("AtRiskStreak = %d, want 1", miss.RescueOffer.AtRiskStreak)
	}
	if !miss.State.PendingRescue || miss.State.Phase != "offering_rescue" {
		t.Errorf("state = %+v, want pending offer", miss.State)
	}

	// The offer blocks both answers and advancement.
	if w := doJSON(t, r, http.MethodPost, "/api/game/answer", AnswerRequest{City: start.Round.PromptCity}, nil); w.Code != http.StatusConflict {
		t.Errorf("answer during offer: expected 409, got %d", w.Code)
	}

	var resp RescueResponse
	w := doJSON(t, r, http.MethodPost, "/api/game/rescue", RescueRequest{Accept: false}, &resp)
	if w.Code != http.StatusOK {
		t.Fatalf("rescue: %d: %s", w.Code, w.Body.String())
	}
	if resp.Accepted || resp.CurrentStreak != 0 {
		t.Errorf("decline: accepted=%v streak=%d", resp.Accepted, resp.CurrentStreak)
	}
	if resp.RescueTokens != 1 {
		t.Errorf("decline spent a token: %d", resp.RescueTokens)
	}

	var state GameStateResponse
	doJSON(t, r, http.MethodGet, "/api/game/state", nil, &state)
	if state.CurrentStreak != 0 || state.BestStreak != 1 {
		t.Errorf("streak %d best %d after decline", state.CurrentStreak, state.BestStreak)
	}
	if state.Phase != "awaiting_answer" {
		t.Errorf("phase = %q, want next round presented", state.Phase)
	}
}

func TestRescueAcceptFlow(t *testing.T) {
	m := newTestManager(t, store.NewMemory(), Timing{RescueTimeout: time.Hour})
	r := gameRouter(m)

	var start StartResponse
	doJSON(t, r, http.MethodPost, "/api/game/start", StartRequest{Fresh: true}, &start)
	doJSON(t, r, http.MethodPost, "/api/game/answer", AnswerRequest{City: start.Round.PromptCity}, nil)
	answerWrongCity(t, r)

	var resp RescueResponse
	w := doJSON(t, r, http.MethodPost, "/api/game/rescue", RescueRequest{Accept: true}, &resp)
	if w.Code != http.StatusOK {
		t.Fatalf("rescue: %d: %s", w.Code, w.Body.String())
	}
	if !resp.Accepted || resp.CurrentStreak != 1 {
		t.Errorf("accept: accepted=%v streak=%d, want true and 1", resp.Accepted, resp.CurrentStreak)
	}
	if resp.RescueTokens != 0 {
		t.Errorf("RescueTokens = %d, want 0 after spending", resp.RescueTokens)
	}

	// A second resolution is a conflict.
	if w := doJSON(t, r, http.MethodPost, "/api/game/rescue", RescueRequest{Accept: true}, nil); w.Code != http.StatusConflict {
		t.Errorf("double resolve: expected 409, got %d", w.Code)
	}
}

func TestRescueWithoutOffer(t *testing.T) {
	m := newTestManager(t, store.NewMemory(), Timing{RescueTimeout: time.Hour})
	r := gameRouter(m)
	doJSON(t, r, http.MethodPost, "/api/game/start", StartRequest{Fresh: true}, nil)

	if w := doJSON(t, r, http.MethodPost, "/api/game/rescue", RescueRequest{Accept: true}, nil); w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", w.Code)
	}
}

func TestRescueTimeoutCountsAsDecline(t *testing.T) {
	m := newTestManager(t, store.NewMemory(), Timing{RescueTimeout: 10 * time.Millisecond})
	r := gameRouter(m)

	var start StartResponse
	doJSON(t, r, http.MethodPost, "/api/game/start", StartRequest{Fresh: true}, &start)
	doJSON(t, r, http.MethodPost, "/api/game/answer", AnswerRequest{City: start.Round.PromptCity}, nil)
	answerWrongCity(t, r)

	// Wait for the expiry to auto-decline and present the next round.
	deadline := time.Now().Add(2 * time.Second)
	var state GameStateResponse
	for {
		doJSON(t, r, http.MethodGet, "/api/game/state", nil, &state)
		if !state.PendingRescue && state.Phase == "awaiting_answer" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("offer never expired: %+v", state)
		}
		time.Sleep(5 * time.Millisecond)
	}

	if state.CurrentStreak != 0 {
		t.Errorf("streak = %d, want 0 after timeout", state.CurrentStreak)
	}
	if state.RescueTokens != 1 {
		t.Errorf("RescueTokens = %d, timeout must not spend the token", state.RescueTokens)
	}

	// The late explicit response loses the race cleanly.
	if w := doJSON(t, r, http.MethodPost, "/api/game/rescue", RescueRequest{Accept: true}, nil); w.Code != http.StatusConflict {
		t.Errorf("late rescue: expected 409, got %d", w.Code)
	}
}

func TestResumeFromSavedSession(t *testing.T) {
	shared := store.NewMemory()

	m1 := newTestManager(t, shared, Timing{RescueTimeout: time.Hour})
	r1 := gameRouter(m1)
	var start StartResponse
	doJSON(t, r1, http.MethodPost, "/api/game/start", StartRequest{Fresh: true}, &start)
	doJSON(t, r1, http.MethodPost, "/api/game/answer", AnswerRequest{City: start.Round.PromptCity}, nil)

	// A second service instance over the same store picks the game up.
	m2 := newTestManager(t, shared, Timing{RescueTimeout: time.Hour})
	r2 := gameRouter(m2)
	var resumed StartResponse
	w := doJSON(t, r2, http.MethodPost, "/api/game/start", nil, &resumed)
	if w.Code != http.StatusOK {
		t.Fatalf("resume: %d: %s", w.Code, w.Body.String())
	}
	if !resumed.Resumed {
		t.Fatal("expected resumed=true")
	}
	if resumed.State.Score != 1 || resumed.State.CurrentStreak != 1 {
		t.Errorf("resumed score %d streak %d, want 1 and 1", resumed.State.Score, resumed.State.CurrentStreak)
	}

	// fresh=true ignores the save.
	var fresh StartResponse
	doJSON(t, r2, http.MethodPost, "/api/game/start", StartRequest{Fresh: true}, &fresh)
	if fresh.Resumed || fresh.State.Score != 0 {
		t.Errorf("fresh start: resumed=%v score=%d", fresh.Resumed, fresh.State.Score)
	}
}

func TestStartDiscardsCorruptSave(t *testing.T) {
	st := store.NewMemory()
	if err := st.Save(context.Background(), quiz.StateKey, []byte("{garbage")); err != nil {
		t.Fatalf("seeding corrupt save: %v", err)
	}

	m := newTestManager(t, st, Timing{RescueTimeout: time.Hour})
	r := gameRouter(m)

	var resp StartResponse
	w := doJSON(t, r, http.MethodPost, "/api/game/start", nil, &resp)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if resp.Resumed {
		t.Error("corrupt save must not resume")
	}
	if resp.State.Score != 0 {
		t.Errorf("score = %d, want a clean start", resp.State.Score)
	}
}

func TestReset(t *testing.T) {
	m := newTestManager(t, store.NewMemory(), Timing{RescueTimeout: time.Hour})
	r := gameRouter(m)

	var start StartResponse
	doJSON(t, r, http.MethodPost, "/api/game/start", StartRequest{Fresh: true}, &start)
	doJSON(t, r, http.MethodPost, "/api/game/answer", AnswerRequest{City: start.Round.PromptCity}, nil)

	var resp StartResponse
	w := doJSON(t, r, http.MethodPost, "/api/game/reset", nil, &resp)
	if w.Code != http.StatusOK {
		t.Fatalf("reset: %d: %s", w.Code, w.Body.String())
	}
	if resp.State.Score != 0 || resp.State.BestStreak != 0 {
		t.Errorf("score %d best %d after reset, want zeros", resp.State.Score, resp.State.BestStreak)
	}
	if resp.State.RescueTokens != 1 {
		t.Errorf("RescueTokens = %d, want the initial grant back", resp.State.RescueTokens)
	}
	if resp.Round.PromptCity == "" {
		t.Error("reset must present a round")
	}
}

func TestAccuracyReported(t *testing.T) {
	m := newTestManager(t, store.NewMemory(), Timing{RescueTimeout: time.Hour})
	r := gameRouter(m)

	var start StartResponse
	doJSON(t, r, http.MethodPost, "/api/game/start", StartRequest{Fresh: true}, &start)
	if start.State.Accuracy != 0 {
		t.Errorf("accuracy = %v before any answer, want 0", start.State.Accuracy)
	}

	doJSON(t, r, http.MethodPost, "/api/game/answer", AnswerRequest{City: start.Round.PromptCity}, nil)
	answerWrongCity(t, r)
	doJSON(t, r, http.MethodPost, "/api/game/rescue", RescueRequest{Accept: false}, nil)

	var state GameStateResponse
	doJSON(t, r, http.MethodGet, "/api/game/state", nil, &state)
	if state.Accuracy != 0.5 {
		t.Errorf("accuracy = %v, want 0.5", state.Accuracy)
	}
}
