package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandleOpenAPI(t *testing.T) {
	h := handleOpenAPI()

	req := httptest.NewRequest(http.MethodGet, "/openapi.json", nil)
	rec := httptest.NewRecorder()
	h(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Errorf("content type = %q", ct)
	}

	body := rec.Body.String()
	if !strings.Contains(body, `"openapi"`) {
		t.Error("body does not look like an OpenAPI document")
	}
	for _, path := range []string{
		"/api/game/start",
		"/api/game/state",
		"/api/game/round",
		"/api/game/answer",
		"/api/game/rescue",
		"/api/game/reset",
		"/api/game/events",
		"/ws/game",
		"/healthz",
	} {
		if !strings.Contains(body, `"`+path+`"`) {
			t.Errorf("path %s missing from document", path)
		}
	}
}
