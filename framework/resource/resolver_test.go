package resource_test

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/coreapi/framework/resource"
)

func diskBackend(t *testing.T, files map[string]string) resource.Backend {
	t.Helper()
	root := t.TempDir()
	for name, body := range files {
		full := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(body), 0o644))
	}
	return resource.Dir(root)
}

func embeddedBackend() resource.Backend {
	return resource.FS("embedded", fstest.MapFS{
		"css/site.css":     {Data: []byte("body{}")},
		"index.html":       {Data: []byte("<h1>embedded</h1>")},
		"only-embedded.js": {Data: []byte("console.log(1)")},
	})
}

func TestLookup_FirstBackendWins(t *testing.T) {
	r := resource.New(
		diskBackend(t, map[string]string{"index.html": "<h1>disk</h1>"}),
		embeddedBackend(),
	)

	res, err := r.Lookup("/index.html")
	require.NoError(t, err)
	assert.Equal(t, "<h1>disk</h1>", string(res.Content))
	assert.Contains(t, res.Backend, "disk:")
}

func TestLookup_FallsBackToLaterBackend(t *testing.T) {
	r := resource.New(
		diskBackend(t, map[string]string{"index.html": "<h1>disk</h1>"}),
		embeddedBackend(),
	)

	res, err := r.Lookup("only-embedded.js")
	require.NoError(t, err)
	assert.Equal(t, "embedded", res.Backend)
	assert.Equal(t, "console.log(1)", string(res.Content))
}

func TestLookup_OrderIsStable(t *testing.T) {
	a := resource.FS("a", fstest.MapFS{"x.txt": {Data: []byte("a")}})
	b := resource.FS("b", fstest.MapFS{"x.txt": {Data: []byte("b")}})

	for i := 0; i < 10; i++ {
		res, err := resource.New(a, b).Lookup("x.txt")
		require.NoError(t, err)
		assert.Equal(t, "a", string(res.Content))
	}
	res, err := resource.New(b, a).Lookup("x.txt")
	require.NoError(t, err)
	assert.Equal(t, "b", string(res.Content))
}

func TestLookup_NotFound(t *testing.T) {
	r := resource.New(diskBackend(t, nil), embeddedBackend())

	tests := []string{
		"missing.txt",
		"",
		"/",
		"css",             // directory
		"../etc/passwd",   // escapes root
		"css/../../x.txt", // escapes root
	}
	for _, name := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := r.Lookup(name)
			assert.ErrorIs(t, err, resource.ErrNotFound)
		})
	}
}

func TestLookup_MissingDirectoryNeverMatches(t *testing.T) {
	r := resource.New(resource.Dir(filepath.Join(t.TempDir(), "nope")), embeddedBackend())

	res, err := r.Lookup("css/site.css")
	require.NoError(t, err)
	assert.Equal(t, "embedded", res.Backend)
}

func TestLookup_DiskPathErrorsAreMisses(t *testing.T) {
	r := resource.New(
		diskBackend(t, map[string]string{"index.html": "<h1>disk</h1>", "css": "not a directory"}),
		embeddedBackend(),
	)

	for _, name := range []string{
		"index.html/anything",          // ENOTDIR
		"/" + strings.Repeat("a", 300), // ENAMETOOLONG
	} {
		_, err := r.Lookup(name)
		assert.ErrorIs(t, err, resource.ErrNotFound, name)
	}

	res, err := r.Lookup("css/site.css")
	require.NoError(t, err, "a file shadowing a directory on disk does not hide later backends")
	assert.Equal(t, "embedded", res.Backend)
}

func TestEmbedded_Sub(t *testing.T) {
	fsys := fstest.MapFS{"public/app.js": {Data: []byte("js")}}
	b, err := resource.Embedded(fsys, "public")
	require.NoError(t, err)

	res, err := resource.New(b).Lookup("app.js")
	require.NoError(t, err)
	assert.Equal(t, "embedded:public", res.Backend)
}

func TestOpen_ImplementsFS(t *testing.T) {
	r := resource.New(diskBackend(t, map[string]string{"a.txt": "disk"}), embeddedBackend())

	f, err := r.Open("a.txt")
	require.NoError(t, err)
	body, err := io.ReadAll(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, "disk", string(body))

	_, err = r.Open("nope.txt")
	assert.ErrorIs(t, err, os.ErrNotExist)

	assert.Equal(t, []string{r.Backends()[0], "embedded"}, r.Backends())
}
