package routing_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/km-arc/coreapi/framework/routing"
)

// ── helpers ──────────────────────────────────────────────────────────────────

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func do(t *testing.T, router *routing.Router, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

// ── HTTP verbs ────────────────────────────────────────────────────────────────

func TestRouter_Verbs(t *testing.T) {
	r := routing.New()
	r.Get("/notes", okHandler)
	r.Post("/notes", okHandler)
	r.Put("/notes/{id}", okHandler)
	r.Patch("/notes/{id}", okHandler)
	r.Delete("/notes/{id}", okHandler)

	tests := []struct {
		method, path string
	}{
		{http.MethodGet, "/notes"},
		{http.MethodPost, "/notes"},
		{http.MethodPut, "/notes/1"},
		{http.MethodPatch, "/notes/1"},
		{http.MethodDelete, "/notes/1"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			if rr := do(t, r, tt.method, tt.path); rr.Code != http.StatusOK {
				t.Errorf("got %d want 200", rr.Code)
			}
		})
	}
}

func TestRouter_Any(t *testing.T) {
	r := routing.New()
	r.Any("/ping", okHandler)

	for _, method := range []string{"GET", "POST", "PUT", "PATCH", "DELETE"} {
		rr := do(t, r, method, "/ping")
		if rr.Code != http.StatusOK {
			t.Errorf("ANY %s /ping: got %d want 200", method, rr.Code)
		}
	}
}

// ── 404 for unregistered routes ──────────────────────────────────────────────

func TestRouter_NotFound(t *testing.T) {
	r := routing.New()
	rr := do(t, r, http.MethodGet, "/not-registered")
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
}

// ── Route params ─────────────────────────────────────────────────────────────

func TestRouter_Param(t *testing.T) {
	r := routing.New()
	r.Get("/files/{id}", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(routing.Param(req, "id")))
	})

	rr := do(t, r, http.MethodGet, "/files/42")
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d want 200", rr.Code)
	}
	if rr.Body.String() != "42" {
		t.Errorf("got body %q want %q", rr.Body.String(), "42")
	}
}

// ── Prefix / Group ───────────────────────────────────────────────────────────

func TestRouter_Prefix(t *testing.T) {
	r := routing.New()
	r.Prefix("/api", func(api *routing.Router) {
		api.Get("/notes", okHandler)
	})

	if rr := do(t, r, http.MethodGet, "/api/notes"); rr.Code != http.StatusOK {
		t.Errorf("GET /api/notes: got %d want 200", rr.Code)
	}
	if rr := do(t, r, http.MethodGet, "/notes"); rr.Code != http.StatusNotFound {
		t.Errorf("GET /notes: expected 404, got %d", rr.Code)
	}
}

func TestRouter_Group_Middleware(t *testing.T) {
	called := false
	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			next.ServeHTTP(w, r)
		})
	}

	r := routing.New()
	r.Group(func(g *routing.Router) {
		g.Middleware(mw)
		g.Get("/protected", okHandler)
	})

	do(t, r, http.MethodGet, "/protected")
	if !called {
		t.Error("expected middleware to be called")
	}
}

// ── Resource routes ───────────────────────────────────────────────────────────

type stubController struct{}

func (s *stubController) Index(w http.ResponseWriter, r *http.Request)   { w.WriteHeader(200) }
func (s *stubController) Store(w http.ResponseWriter, r *http.Request)   { w.WriteHeader(201) }
func (s *stubController) Show(w http.ResponseWriter, r *http.Request)    { w.WriteHeader(200) }
func (s *stubController) Update(w http.ResponseWriter, r *http.Request)  { w.WriteHeader(200) }
func (s *stubController) Destroy(w http.ResponseWriter, r *http.Request) { w.WriteHeader(204) }

func TestRouter_Resource(t *testing.T) {
	r := routing.New()
	r.Resource("/notes", &stubController{})

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{"GET", "/notes", 200},
		{"POST", "/notes", 201},
		{"GET", "/notes/1", 200},
		{"PUT", "/notes/1", 200},
		{"PATCH", "/notes/1", 200},
		{"DELETE", "/notes/1", 204},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rr := do(t, r, tt.method, tt.path)
			if rr.Code != tt.want {
				t.Errorf("got %d want %d", rr.Code, tt.want)
			}
		})
	}
}

// ── Inventory ────────────────────────────────────────────────────────────────

func TestRouter_Routes(t *testing.T) {
	r := routing.New()
	r.Prefix("/api", func(api *routing.Router) {
		api.Get("/notes/{id}", okHandler)
		api.Post("/notes", okHandler)
	})
	r.Get("/health", okHandler)

	got := r.Routes()
	want := []routing.Route{
		{Method: "POST", Pattern: "/api/notes"},
		{Method: "GET", Pattern: "/api/notes/{id}"},
		{Method: "GET", Pattern: "/health"},
	}

	if len(got) != len(want) {
		t.Fatalf("got %d routes want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("route %d: got %+v want %+v", i, got[i], want[i])
		}
	}
}

func TestRouter_RoutesDoesNotMutate(t *testing.T) {
	r := routing.New()
	r.Get("/ping", okHandler)

	_ = r.Routes()
	_ = r.Routes()

	if n := len(r.Routes()); n != 1 {
		t.Errorf("got %d routes want 1", n)
	}
	if rr := do(t, r, http.MethodGet, "/ping"); rr.Code != http.StatusOK {
		t.Errorf("GET /ping: got %d want 200", rr.Code)
	}
}

// ── Handler() returns http.Handler ───────────────────────────────────────────

func TestRouter_HandlerInterface(t *testing.T) {
	r := routing.New()
	r.Get("/ping", okHandler)
	var _ http.Handler = r.Handler()
}
