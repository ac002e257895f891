// Package docs describes the dispatch routes as a Swagger 2.0 document and
// serves it alongside the swagger-ui viewer.
package docs

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/go-openapi/spec"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/km-arc/coreapi/framework/config"
	"github.com/km-arc/coreapi/framework/routing"
)

// Descriptor identifies one API document.
type Descriptor struct {
	Name    string // path segment, e.g. "v1"
	Title   string // e.g. "My APIs"
	Version string // e.g. "v1"
}

// FromConfig reads the descriptor from the swagger configuration.
func FromConfig(cfg config.SwaggerConfig) Descriptor {
	return Descriptor{Name: cfg.Name, Title: cfg.Title, Version: cfg.Version}
}

// ViewerLabel is how the viewer lists the document: "My APIs V1".
func (d Descriptor) ViewerLabel() string {
	return d.Title + " " + strings.ToUpper(d.Version)
}

var paramRe = regexp.MustCompile(`\{([^}:]+)(:[^}]*)?\}`)

// Describe builds the document for routes. Patterns under any of the
// excluded prefixes are left out.
func Describe(d Descriptor, routes []routing.Route, exclude ...string) *spec.Swagger {
	doc := &spec.Swagger{SwaggerProps: spec.SwaggerProps{
		Swagger:  "2.0",
		Info:     &spec.Info{InfoProps: spec.InfoProps{Title: d.Title, Version: d.Version}},
		Consumes: []string{"application/json"},
		Produces: []string{"application/json"},
		Paths:    &spec.Paths{Paths: map[string]spec.PathItem{}},
	}}

next:
	for _, rt := range routes {
		if strings.Contains(rt.Pattern, "*") {
			continue
		}
		for _, prefix := range exclude {
			if prefix != "" && strings.HasPrefix(rt.Pattern, prefix) {
				continue next
			}
		}
		path := paramRe.ReplaceAllString(rt.Pattern, "{$1}")
		item := doc.Paths.Paths[path]
		op := operation(rt.Method, rt.Pattern)
		if !setOperation(&item, rt.Method, op) {
			continue
		}
		doc.Paths.Paths[path] = item
	}
	return doc
}

func operation(method, pattern string) *spec.Operation {
	op := spec.NewOperation(operationID(method, pattern)).
		WithSummary(method + " " + paramRe.ReplaceAllString(pattern, "{$1}")).
		WithProduces("application/json").
		RespondsWith(http.StatusOK, spec.NewResponse().WithDescription("OK"))
	for _, m := range paramRe.FindAllStringSubmatch(pattern, -1) {
		op.AddParam(spec.PathParam(m[1]).Typed("string", ""))
	}
	return op
}

// operationID turns "GET /api/notes/{id}" into "getApiNotesId".
func operationID(method, pattern string) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(method))
	for _, seg := range strings.Split(paramRe.ReplaceAllString(pattern, "$1"), "/") {
		seg = strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return r
			}
			return -1
		}, seg)
		if seg == "" {
			continue
		}
		b.WriteString(strings.ToUpper(seg[:1]) + seg[1:])
	}
	return b.String()
}

func setOperation(item *spec.PathItem, method string, op *spec.Operation) bool {
	switch method {
	case http.MethodGet:
		item.Get = op
	case http.MethodPost:
		item.Post = op
	case http.MethodPut:
		item.Put = op
	case http.MethodPatch:
		item.Patch = op
	case http.MethodDelete:
		item.Delete = op
	case http.MethodHead:
		item.Head = op
	case http.MethodOptions:
		item.Options = op
	default:
		return false
	}
	return true
}

// ── Handler ──────────────────────────────────────────────────────────────────

// Handler serves the document at {prefix}/{name}/swagger.json and the
// viewer under {prefix}/. The document is generated on first request from
// the route inventory and cached.
type Handler struct {
	desc    Descriptor
	prefix  string
	exclude []string
	routes  func() []routing.Route

	once sync.Once
	body []byte
	err  error

	ui http.Handler
}

// NewHandler returns a Handler mounted at prefix (e.g. "/swagger").
// Routes under exclude are not documented.
func NewHandler(d Descriptor, prefix string, routes func() []routing.Route, exclude ...string) *Handler {
	prefix = "/" + strings.Trim(prefix, "/")
	h := &Handler{
		desc:    d,
		prefix:  prefix,
		exclude: append([]string{prefix}, exclude...),
		routes:  routes,
	}
	// The urls list labels the document in the viewer's selector.
	urls, _ := json.Marshal([]map[string]string{{"url": h.DocumentPath(), "name": d.ViewerLabel()}})
	h.ui = httpSwagger.Handler(
		httpSwagger.URL(h.DocumentPath()),
		httpSwagger.DocExpansion("list"),
		httpSwagger.DomID("swagger-ui"),
		httpSwagger.UIConfig(map[string]string{"urls": string(urls)}),
	)
	return h
}

// DocumentPath is where the JSON document is served.
func (h *Handler) DocumentPath() string {
	return h.prefix + "/" + h.desc.Name + "/swagger.json"
}

// ViewerPath is where the viewer is served.
func (h *Handler) ViewerPath() string { return h.prefix + "/" }

// Owns reports whether path belongs to the documentation surface.
func (h *Handler) Owns(path string) bool {
	return path == h.prefix || strings.HasPrefix(path, h.prefix+"/")
}

// Document returns the encoded document, generating it once.
func (h *Handler) Document() ([]byte, error) {
	h.once.Do(func() {
		h.body, h.err = json.Marshal(Describe(h.desc, h.routes(), h.exclude...))
	})
	return h.body, h.err
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == h.DocumentPath():
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		body, err := h.Document()
		if err != nil {
			panic(err)
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write(body)
	case r.URL.Path == h.prefix:
		http.Redirect(w, r, h.ViewerPath(), http.StatusMovedPermanently)
	default:
		h.ui.ServeHTTP(w, r)
	}
}

// Middleware serves the documentation surface and passes every other
// request on.
func (h *Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Owns(r.URL.Path) {
			h.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
