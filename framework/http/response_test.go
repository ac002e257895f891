package http_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	gohttp "github.com/km-arc/coreapi/framework/http"
)

// ── helpers ──────────────────────────────────────────────────────────────────

func newResponse(t *testing.T) (*gohttp.Response, *httptest.ResponseRecorder) {
	t.Helper()
	rr := httptest.NewRecorder()
	return gohttp.NewResponse(rr), rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&m); err != nil {
		t.Fatalf("decodeJSON: %v", err)
	}
	return m
}

// ── JSON ──────────────────────────────────────────────────────────────────────

func TestResponse_JSON(t *testing.T) {
	res, rr := newResponse(t)
	res.JSON(http.StatusOK, map[string]any{"key": "val"})

	if rr.Code != http.StatusOK {
		t.Errorf("status: got %d want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q want application/json", ct)
	}
	if m := decodeJSON(t, rr); m["key"] != "val" {
		t.Errorf("body key: got %v want val", m["key"])
	}
}

func TestResponse_Success(t *testing.T) {
	res, rr := newResponse(t)
	res.Success(map[string]any{"id": "1"})

	data, ok := decodeJSON(t, rr)["data"].(map[string]any)
	if !ok {
		t.Fatal("expected data envelope")
	}
	if data["id"] != "1" {
		t.Errorf("data.id: got %v want 1", data["id"])
	}
}

func TestResponse_Created(t *testing.T) {
	res, rr := newResponse(t)
	res.Created(map[string]any{"id": "7"}, "/api/notes/7")

	if rr.Code != http.StatusCreated {
		t.Errorf("status: got %d want 201", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/api/notes/7" {
		t.Errorf("Location: got %q", loc)
	}
}

func TestResponse_NoContent(t *testing.T) {
	res, rr := newResponse(t)
	res.NoContent()

	if rr.Code != http.StatusNoContent {
		t.Errorf("status: got %d want 204", rr.Code)
	}
	if rr.Body.Len() != 0 {
		t.Errorf("expected empty body, got %q", rr.Body.String())
	}
}

// ── Errors ────────────────────────────────────────────────────────────────────

func TestResponse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		write   func(*gohttp.Response)
		status  int
		message string
	}{
		{"Error", func(r *gohttp.Response) { r.Error(http.StatusConflict, "Conflict.") }, 409, "Conflict."},
		{"NotFound", func(r *gohttp.Response) { r.NotFound() }, 404, "Not found."},
		{"NotFound custom", func(r *gohttp.Response) { r.NotFound("No such note.") }, 404, "No such note."},
		{"ServerError", func(r *gohttp.Response) { r.ServerError() }, 500, "Server Error."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, rr := newResponse(t)
			tt.write(res)
			if rr.Code != tt.status {
				t.Errorf("status: got %d want %d", rr.Code, tt.status)
			}
			if m := decodeJSON(t, rr); m["message"] != tt.message {
				t.Errorf("message: got %v want %q", m["message"], tt.message)
			}
		})
	}
}

func TestResponse_Unauthorized(t *testing.T) {
	res, rr := newResponse(t)
	res.Unauthorized()

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d want 401", rr.Code)
	}
	if h := rr.Header().Get("WWW-Authenticate"); h != "Bearer" {
		t.Errorf("WWW-Authenticate: got %q want Bearer", h)
	}
	if m := decodeJSON(t, rr); m["message"] != "Unauthenticated." {
		t.Errorf("message: got %v", m["message"])
	}
}

func TestResponse_Raw(t *testing.T) {
	res, rr := newResponse(t)
	if res.Raw() != rr {
		t.Error("Raw() should return the wrapped ResponseWriter")
	}
}
