package pipeline

import (
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"runtime/debug"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	gohttp "github.com/km-arc/coreapi/framework/http"
)

// Failure is a handler error raised through Fail.
type Failure struct {
	Err error
}

func (f *Failure) Error() string { return f.Err.Error() }
func (f *Failure) Unwrap() error { return f.Err }

// Fail aborts the current request with err. The developer exception page
// renders it in development; elsewhere the client sees an opaque 500.
//
//	if err != nil {
//	    pipeline.Fail(err)
//	}
func Fail(err error) {
	panic(&Failure{Err: err})
}

// asError turns a recovered value into an error.
func asError(rec any) error {
	switch v := rec.(type) {
	case *Failure:
		return v.Err
	case error:
		return v
	default:
		return fmt.Errorf("panic: %v", v)
	}
}

// Recover answers any escaped panic with {"message":"Server Error."} and
// logs the detail server-side only.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.ErrorContext(r.Context(), "unhandled error",
					"err", asError(rec),
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				if ww.Status() == 0 {
					gohttp.NewResponse(ww).ServerError()
				}
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// ── Developer exception page ──────────────────────────────────────────────────

// Diagnostic is what the developer exception page shows.
type Diagnostic struct {
	Error   string              `json:"error"`
	Chain   []string            `json:"chain,omitempty"`
	Stack   string              `json:"stack"`
	Method  string              `json:"method"`
	Path    string              `json:"path"`
	Query   string              `json:"query,omitempty"`
	Headers map[string][]string `json:"headers"`
}

// DeveloperExceptions renders failures with full detail: the error, its
// wrapped chain, the stack and the request. Development only.
func DeveloperExceptions(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				err := asError(rec)
				d := diagnose(err, debug.Stack(), r)
				logger.ErrorContext(r.Context(), "unhandled error", "err", err, "method", r.Method, "path", r.URL.Path)
				if ww.Status() != 0 {
					return
				}
				if gohttp.NewRequest(r).WantsJSON() {
					gohttp.NewResponse(ww).JSON(http.StatusInternalServerError, gohttp.Envelope{
						"message":   "Server Error.",
						"exception": d,
					})
					return
				}
				ww.Header().Set("Content-Type", "text/html; charset=utf-8")
				ww.WriteHeader(http.StatusInternalServerError)
				_ = page.Execute(ww, d)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

func diagnose(err error, stack []byte, r *http.Request) Diagnostic {
	d := Diagnostic{
		Error:   err.Error(),
		Stack:   string(stack),
		Method:  r.Method,
		Path:    r.URL.Path,
		Query:   r.URL.RawQuery,
		Headers: map[string][]string{},
	}
	for inner := errors.Unwrap(err); inner != nil; inner = errors.Unwrap(inner) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", inner, inner))
	}
	keys := make([]string, 0, len(r.Header))
	for k := range r.Header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.EqualFold(k, "Authorization") || strings.EqualFold(k, "Cookie") {
			d.Headers[k] = []string{"[redacted]"}
			continue
		}
		d.Headers[k] = r.Header[k]
	}
	return d
}

var page = template.Must(template.New("exception").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Unhandled error</title>
<style>body{font-family:sans-serif;margin:2em}pre{background:#f4f4f4;padding:1em;overflow:auto}</style>
</head>
<body>
<h1>An unhandled error occurred while processing the request.</h1>
<h2>{{.Error}}</h2>
{{if .Chain}}<h3>Caused by</h3><ul>{{range .Chain}}<li>{{.}}</li>{{end}}</ul>{{end}}
<h3>Request</h3>
<p>{{.Method}} {{.Path}}{{if .Query}}?{{.Query}}{{end}}</p>
<table>{{range $k, $v := .Headers}}<tr><td>{{$k}}</td><td>{{range $v}}{{.}} {{end}}</td></tr>{{end}}</table>
<h3>Stack</h3>
<pre>{{.Stack}}</pre>
</body>
</html>
`))
