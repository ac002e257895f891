package controllers

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/km-arc/coreapi/app/models"
	"github.com/km-arc/coreapi/app/repositories"
	"github.com/km-arc/coreapi/framework/app"
	"github.com/km-arc/coreapi/framework/container"
	gohttp "github.com/km-arc/coreapi/framework/http"
	"github.com/km-arc/coreapi/framework/pipeline"
)

// MaxUploadSize is the largest accepted file.
const MaxUploadSize = 10 << 20

// UploadsController receives and serves uploaded files.
type UploadsController struct {
	app.Controller
}

func (c *UploadsController) repository(r *http.Request) repositories.UploadedFileRepository {
	repo, err := container.Resolve[repositories.UploadedFileRepository](scope(r))
	if err != nil {
		pipeline.Fail(err)
	}
	return repo
}

// Index lists uploaded files without their content.
func (c *UploadsController) Index(w http.ResponseWriter, r *http.Request) {
	res := c.Response(w)
	files, err := c.repository(r).List(r.Context())
	if err != nil {
		respondError(res, err)
		return
	}
	if files == nil {
		files = []models.UploadedFile{}
	}
	res.Success(files)
}

// upload is one received file.
type upload struct {
	name        string
	contentType string
	content     []byte
}

// receive reads the "file" field of a multipart request. On a client
// error it writes the response and returns false.
func (c *UploadsController) receive(res *gohttp.Response, w http.ResponseWriter, r *http.Request) (upload, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize+1<<20)

	fh, err := c.Request(r).File("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			res.Error(http.StatusRequestEntityTooLarge, "File too large.")
			return upload{}, false
		}
		res.Error(http.StatusBadRequest, "Expected a multipart upload with a \"file\" field.")
		return upload{}, false
	}
	if fh.Size > MaxUploadSize {
		res.Error(http.StatusRequestEntityTooLarge, "File too large.")
		return upload{}, false
	}
	f, err := fh.Open()
	if err != nil {
		pipeline.Fail(err)
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		pipeline.Fail(err)
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(content)
	}
	return upload{name: fh.Filename, contentType: contentType, content: content}, true
}

// stored answers the outcome of Add or Replace; ok reports success.
func stored(res *gohttp.Response, err error) (ok bool) {
	switch {
	case err == nil:
		return true
	case errors.Is(err, repositories.ErrEmptyFile):
		res.Error(http.StatusBadRequest, "Uploaded file is empty.")
	default:
		respondError(res, err)
	}
	return false
}

// Store accepts a multipart upload in the "file" field.
func (c *UploadsController) Store(w http.ResponseWriter, r *http.Request) {
	res := c.Response(w)
	in, ok := c.receive(res, w, r)
	if !ok {
		return
	}
	f, err := c.repository(r).Add(r.Context(), in.name, in.contentType, in.content)
	if !stored(res, err) {
		return
	}
	res.Created(f.Meta(), "/api/uploads/"+f.ID)
}

// Update replaces the content of an existing file with a new multipart
// upload.
func (c *UploadsController) Update(w http.ResponseWriter, r *http.Request) {
	res := c.Response(w)
	in, ok := c.receive(res, w, r)
	if !ok {
		return
	}
	f, err := c.repository(r).Replace(r.Context(), c.Request(r).RouteParam("id"), in.name, in.contentType, in.content)
	if !stored(res, err) {
		return
	}
	res.Success(f.Meta())
}

// Show returns the metadata of one file.
func (c *UploadsController) Show(w http.ResponseWriter, r *http.Request) {
	res := c.Response(w)
	f, err := c.repository(r).Get(r.Context(), c.Request(r).RouteParam("id"))
	if err != nil {
		respondError(res, err)
		return
	}
	res.Success(f.Meta())
}

// Download streams the stored content.
func (c *UploadsController) Download(w http.ResponseWriter, r *http.Request) {
	f, err := c.repository(r).Get(r.Context(), c.Request(r).RouteParam("id"))
	if err != nil {
		respondError(c.Response(w), err)
		return
	}
	w.Header().Set("Content-Type", f.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(int64(len(f.Content)), 10))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": f.FileName}))
	_, _ = w.Write(f.Content)
}

// Destroy deletes a file.
func (c *UploadsController) Destroy(w http.ResponseWriter, r *http.Request) {
	res := c.Response(w)
	if err := c.repository(r).Remove(r.Context(), c.Request(r).RouteParam("id")); err != nil {
		respondError(res, err)
		return
	}
	res.NoContent()
}
