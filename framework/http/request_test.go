package http_test

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	gohttp "github.com/km-arc/coreapi/framework/http"
)

// ── helpers ──────────────────────────────────────────────────────────────────

func newJSONRequest(t *testing.T, body string) *gohttp.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return gohttp.NewRequest(req)
}

// ── Bind ─────────────────────────────────────────────────────────────────────

func TestRequest_Bind(t *testing.T) {
	type note struct {
		Title string `json:"title"`
	}
	var n note
	if err := newJSONRequest(t, `{"title":"hello"}`).Bind(&n); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if n.Title != "hello" {
		t.Errorf("Title: got %q want hello", n.Title)
	}
}

func TestRequest_Bind_EmptyBody(t *testing.T) {
	var v map[string]any
	err := newJSONRequest(t, "").Bind(&v)
	if !errors.Is(err, gohttp.ErrEmptyBody) {
		t.Errorf("expected ErrEmptyBody, got %v", err)
	}
}

func TestRequest_Bind_InvalidJSON(t *testing.T) {
	var v map[string]any
	if err := newJSONRequest(t, "{not json").Bind(&v); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestRequest_Bind_RejectsXML(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("<note/>"))
	r.Header.Set("Content-Type", "application/xml")

	var v map[string]any
	err := gohttp.NewRequest(r).Bind(&v)
	if !errors.Is(err, gohttp.ErrUnsupportedMediaType) {
		t.Errorf("expected ErrUnsupportedMediaType, got %v", err)
	}
}

// ── Input helpers ────────────────────────────────────────────────────────────

func TestRequest_Query(t *testing.T) {
	req := gohttp.NewRequest(httptest.NewRequest(http.MethodGet, "/?page=2", nil))
	if got := req.Query("page"); got != "2" {
		t.Errorf("Query(page): got %q want 2", got)
	}
	if got := req.Query("size", "20"); got != "20" {
		t.Errorf("Query(size) fallback: got %q want 20", got)
	}
}

func TestRequest_BearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc.def", "abc.def"},
		{"bearer abc.def", "abc.def"},
		{"Basic dXNlcg==", ""},
		{"Bearer ", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if got := gohttp.NewRequest(r).BearerToken(); got != tt.want {
				t.Errorf("got %q want %q", got, tt.want)
			}
		})
	}
}

func TestRequest_WantsJSON(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Accept", "application/json")
	if !gohttp.NewRequest(r).WantsJSON() {
		t.Error("expected WantsJSON with Accept: application/json")
	}

	plain := httptest.NewRequest(http.MethodGet, "/", nil)
	if gohttp.NewRequest(plain).WantsJSON() {
		t.Error("expected WantsJSON false without headers")
	}
}

func TestRequest_MethodAndPath(t *testing.T) {
	req := gohttp.NewRequest(httptest.NewRequest(http.MethodDelete, "/api/notes/1", nil))
	if req.Method() != http.MethodDelete {
		t.Errorf("Method: got %q", req.Method())
	}
	if req.Path() != "/api/notes/1" {
		t.Errorf("Path: got %q", req.Path())
	}
}

// ── Multipart file upload ─────────────────────────────────────────────────────

func TestRequest_File(t *testing.T) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", "report.pdf")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write([]byte("%PDF-1.4"))
	_ = w.Close()

	r := httptest.NewRequest(http.MethodPost, "/", &buf)
	r.Header.Set("Content-Type", w.FormDataContentType())

	fh, err := gohttp.NewRequest(r).File("file")
	if err != nil {
		t.Fatalf("File error: %v", err)
	}
	if fh.Filename != "report.pdf" {
		t.Errorf("Filename: got %q want report.pdf", fh.Filename)
	}
	if fh.Size != int64(len("%PDF-1.4")) {
		t.Errorf("Size: got %d", fh.Size)
	}
}
