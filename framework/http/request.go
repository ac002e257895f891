package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

const (
	maxMemory   = 32 << 20 // 32 MB of multipart form kept in memory
	maxJSONBody = 1 << 20
)

// ErrEmptyBody is returned by Bind when the request has no body.
var ErrEmptyBody = errors.New("empty request body")

// ErrUnsupportedMediaType is returned by Bind for anything but JSON. The
// API speaks JSON only.
var ErrUnsupportedMediaType = errors.New("unsupported media type")

// Request wraps *http.Request with input helpers.
type Request struct {
	raw *http.Request
}

// NewRequest wraps a standard *http.Request.
func NewRequest(r *http.Request) *Request {
	return &Request{raw: r}
}

// Raw returns the underlying *http.Request.
func (req *Request) Raw() *http.Request { return req.raw }

// ── Binding ──────────────────────────────────────────────────────────────────

// Bind decodes a JSON body into v. A missing Content-Type is treated as
// JSON; any other media type is rejected.
func (req *Request) Bind(v any) error {
	ct := req.ContentType()
	if ct != "" && !strings.Contains(ct, "application/json") {
		return fmt.Errorf("%w: %s", ErrUnsupportedMediaType, ct)
	}
	if req.raw.Body == nil {
		return ErrEmptyBody
	}
	defer req.raw.Body.Close()

	body, err := io.ReadAll(io.LimitReader(req.raw.Body, maxJSONBody))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return ErrEmptyBody
	}
	return json.Unmarshal(body, v)
}

// ── Input helpers ────────────────────────────────────────────────────────────

// Query returns a query-string value.
func (req *Request) Query(key string, fallback ...string) string {
	v := req.raw.URL.Query().Get(key)
	if v == "" && len(fallback) > 0 {
		return fallback[0]
	}
	return v
}

// RouteParam returns a URL route parameter (chi).
func (req *Request) RouteParam(key string) string {
	return chi.URLParam(req.raw, key)
}

// Header returns a request header value.
func (req *Request) Header(key string) string {
	return req.raw.Header.Get(key)
}

// BearerToken extracts the token from Authorization: Bearer <token>. The
// scheme is matched case-insensitively.
func (req *Request) BearerToken() string {
	auth := req.raw.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

// Method returns the HTTP method.
func (req *Request) Method() string { return req.raw.Method }

// Path returns the URL path.
func (req *Request) Path() string { return req.raw.URL.Path }

// ContentType returns the Content-Type header value.
func (req *Request) ContentType() string {
	return req.raw.Header.Get("Content-Type")
}

// WantsJSON reports whether the client asked for JSON explicitly.
func (req *Request) WantsJSON() bool {
	return strings.Contains(req.raw.Header.Get("Accept"), "application/json") ||
		strings.Contains(req.ContentType(), "application/json")
}

// ── File uploads ─────────────────────────────────────────────────────────────

// File returns an uploaded file by field name.
func (req *Request) File(key string) (*multipart.FileHeader, error) {
	if err := req.raw.ParseMultipartForm(maxMemory); err != nil {
		return nil, err
	}
	_, fh, err := req.raw.FormFile(key)
	return fh, err
}
