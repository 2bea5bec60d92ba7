package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "CapitalQuiz API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Session engine for the capital-finding map quiz.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the health status of the blob store backends.")
	getHealthz.AddRespStructure(map[string]struct {
		Status string `json:"status"`
	}{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(getHealthz)

	// POST /api/game/start
	postStart, _ := r.NewOperationContext(http.MethodPost, "/api/game/start")
	postStart.SetSummary("Start or continue a session")
	postStart.SetDescription("Restores the saved session unless fresh is set; an invalid save silently falls back to a new game. Presents the first round.")
	postStart.AddReqStructure(StartRequest{})
	postStart.AddRespStructure(StartResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postStart.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(postStart)

	// GET /api/game/state
	getState, _ := r.NewOperationContext(http.MethodGet, "/api/game/state")
	getState.SetSummary("Get session statistics")
	getState.SetDescription("Score, streaks, difficulty, rescue tokens and lifecycle phase.")
	getState.AddRespStructure(GameStateResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getState.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(getState)

	// GET /api/game/round
	getRound, _ := r.NewOperationContext(http.MethodGet, "/api/game/round")
	getRound.SetSummary("Get the presented round")
	getRound.SetDescription("The city to prompt for and the markers to place on the map.")
	getRound.AddRespStructure(RoundResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getRound.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(getRound)

	// POST /api/game/answer
	postAnswer, _ := r.NewOperationContext(http.MethodPost, "/api/game/answer")
	postAnswer.SetSummary("Activate a marker")
	postAnswer.SetDescription("Resolves the round. Activations outside the awaiting-answer phase are rejected with 409. A wrong answer may open a rescue offer.")
	postAnswer.AddReqStructure(AnswerRequest{})
	postAnswer.AddRespStructure(AnswerResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postAnswer.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postAnswer.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(postAnswer)

	// POST /api/game/rescue
	postRescue, _ := r.NewOperationContext(http.MethodPost, "/api/game/rescue")
	postRescue.SetSummary("Resolve a rescue offer")
	postRescue.SetDescription("Accept spends one token and preserves the streak; decline resets it. An expired offer counts as declined and late responses get 409.")
	postRescue.AddReqStructure(RescueRequest{})
	postRescue.AddRespStructure(RescueResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postRescue.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(postRescue)

	// POST /api/game/reset
	postReset, _ := r.NewOperationContext(http.MethodPost, "/api/game/reset")
	postReset.SetSummary("Reset the session")
	postReset.SetDescription("Destroys the saved session and starts from scratch, initial token grant included.")
	postReset.AddRespStructure(StartResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(postReset)

	// GET /api/game/events
	getEvents, _ := r.NewOperationContext(http.MethodGet, "/api/game/events")
	getEvents.SetSummary("SSE event stream")
	getEvents.SetDescription("Server-Sent Events stream of round, answer, rescue and difficulty notifications.")
	getEvents.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	_ = r.AddOperation(getEvents)

	// GET /ws/game
	getWS, _ := r.NewOperationContext(http.MethodGet, "/ws/game")
	getWS.SetSummary("Websocket event stream")
	getWS.SetDescription("Upgrades to a websocket carrying the same events as the SSE stream.")
	getWS.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols),
		openapi.WithContentType("text/plain"))
	_ = r.AddOperation(getWS)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		json.NewEncoder(w).Encode(spec)
	}
}
