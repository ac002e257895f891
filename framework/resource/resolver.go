// Package resource composes file lookup backends (a directory on disk, an
// embedded filesystem) into one fallback-ordered lookup.
package resource

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
	"time"
)

// ErrNotFound is returned when no backend holds the requested name. It is
// an expected outcome, not a failure.
var ErrNotFound = errors.New("resource: not found")

// Provider reads named resources.
type Provider interface {
	Lookup(name string) (*Resource, error)
}

// Resource is the content of a named file and the backend it came from.
type Resource struct {
	Name    string
	Backend string
	Content []byte
	ModTime time.Time
}

// Backend is one lookup source.
type Backend struct {
	Name string
	FS   fs.FS
}

// Dir is a backend rooted at a directory on disk. A missing directory
// simply never matches.
func Dir(root string) Backend {
	return Backend{Name: "disk:" + root, FS: os.DirFS(root)}
}

// Embedded is a backend over an embedded filesystem, re-rooted at sub
// (e.g. "public" for a //go:embed public directive).
func Embedded(fsys fs.FS, sub string) (Backend, error) {
	if sub == "" || sub == "." {
		return Backend{Name: "embedded", FS: fsys}, nil
	}
	subFS, err := fs.Sub(fsys, sub)
	if err != nil {
		return Backend{}, fmt.Errorf("embedded backend %q: %w", sub, err)
	}
	return Backend{Name: "embedded:" + sub, FS: subFS}, nil
}

// FS is a backend over any fs.FS.
func FS(name string, fsys fs.FS) Backend {
	return Backend{Name: name, FS: fsys}
}

// Resolver queries its backends in registration order and returns the
// first hit. It is read-only and safe for concurrent use.
type Resolver struct {
	backends []Backend
}

// New returns a resolver over backends, highest priority first.
func New(backends ...Backend) *Resolver {
	return &Resolver{backends: append([]Backend(nil), backends...)}
}

// Backends returns the backend names in lookup order.
func (r *Resolver) Backends() []string {
	names := make([]string, len(r.backends))
	for i, b := range r.backends {
		names[i] = b.Name
	}
	return names
}

// Lookup returns the named resource from the first backend that has it.
// Names are slash-separated and may start with "/". Directories and names
// escaping the backend root are never matched.
func (r *Resolver) Lookup(name string) (*Resource, error) {
	clean, ok := normalize(name)
	if !ok {
		return nil, ErrNotFound
	}
	for _, b := range r.backends {
		info, err := fs.Stat(b.FS, clean)
		if err != nil {
			// ENOTDIR, ENAMETOOLONG and friends come back as *fs.PathError:
			// the name does not exist in this backend.
			var pathErr *fs.PathError
			if errors.As(err, &pathErr) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) {
				continue
			}
			return nil, fmt.Errorf("resource %s in %s: %w", clean, b.Name, err)
		}
		if info.IsDir() {
			continue
		}
		content, err := fs.ReadFile(b.FS, clean)
		if err != nil {
			return nil, fmt.Errorf("reading %s from %s: %w", clean, b.Name, err)
		}
		return &Resource{Name: clean, Backend: b.Name, Content: content, ModTime: info.ModTime()}, nil
	}
	return nil, ErrNotFound
}

// Open implements fs.FS with the same fallback order, so a Resolver can be
// handed to http.FS or template.ParseFS.
func (r *Resolver) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	for _, b := range r.backends {
		f, err := b.FS.Open(name)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}

func normalize(name string) (string, bool) {
	name = strings.TrimPrefix(name, "/")
	if name == "" || strings.Contains(name, "\\") {
		return "", false
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == ".." {
			return "", false
		}
	}
	clean := path.Clean(name)
	if clean == "." || !fs.ValidPath(clean) {
		return "", false
	}
	return clean, true
}
