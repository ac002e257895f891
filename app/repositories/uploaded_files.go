// Package repositories holds the entity-specific persistence contracts
// built on the generic entity service.
package repositories

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/km-arc/coreapi/app/models"
	"github.com/km-arc/coreapi/framework/container"
	"github.com/km-arc/coreapi/framework/service"
)

// ErrEmptyFile is returned when an upload has no content.
var ErrEmptyFile = errors.New("uploaded file is empty")

// UploadedFileRepository stores uploaded files.
type UploadedFileRepository interface {
	Add(ctx context.Context, name, contentType string, content []byte) (models.UploadedFile, error)
	Replace(ctx context.Context, id, name, contentType string, content []byte) (models.UploadedFile, error)
	Get(ctx context.Context, id string) (models.UploadedFile, error)
	List(ctx context.Context) ([]models.UploadedFile, error)
	Remove(ctx context.Context, id string) error
}

// Register binds UploadedFileRepository, scoped, on top of
// Service[UploadedFile].
func Register(c *container.Container) {
	container.Bind[UploadedFileRepository](c, container.Scoped, NewUploadedFileRepository,
		container.DependsOnFamily(service.Family))
}

type uploadedFiles struct {
	files service.Service[models.UploadedFile]
	now   func() time.Time
}

// NewUploadedFileRepository resolves the entity service from r.
func NewUploadedFileRepository(r container.Resolver) (*uploadedFiles, error) {
	files, err := service.For[models.UploadedFile](r)
	if err != nil {
		return nil, err
	}
	return &uploadedFiles{files: files, now: time.Now}, nil
}

func (u *uploadedFiles) file(name, contentType string, content []byte) (models.UploadedFile, error) {
	if len(content) == 0 {
		return models.UploadedFile{}, ErrEmptyFile
	}
	sum := sha256.Sum256(content)
	return models.UploadedFile{
		FileName:    path.Base(name),
		ContentType: contentType,
		Size:        int64(len(content)),
		SHA256:      hex.EncodeToString(sum[:]),
		UploadedAt:  u.now().UTC(),
		Content:     content,
	}, nil
}

func (u *uploadedFiles) Add(ctx context.Context, name, contentType string, content []byte) (models.UploadedFile, error) {
	f, err := u.file(name, contentType, content)
	if err != nil {
		return models.UploadedFile{}, err
	}
	id, err := u.files.Add(ctx, f)
	if err != nil {
		return models.UploadedFile{}, fmt.Errorf("storing %s: %w", f.FileName, err)
	}
	if err := u.files.Save(ctx); err != nil {
		return models.UploadedFile{}, err
	}
	f.ID = id
	return f, nil
}

// Replace swaps the content of an existing file, keeping its id.
func (u *uploadedFiles) Replace(ctx context.Context, id, name, contentType string, content []byte) (models.UploadedFile, error) {
	f, err := u.file(name, contentType, content)
	if err != nil {
		return models.UploadedFile{}, err
	}
	if err := u.files.Update(ctx, id, f); err != nil {
		return models.UploadedFile{}, err
	}
	if err := u.files.Save(ctx); err != nil {
		return models.UploadedFile{}, err
	}
	f.ID = id
	return f, nil
}

func (u *uploadedFiles) Get(ctx context.Context, id string) (models.UploadedFile, error) {
	return u.files.Find(ctx, id)
}

func (u *uploadedFiles) List(ctx context.Context) ([]models.UploadedFile, error) {
	all, err := u.files.All(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		all[i] = all[i].Meta()
	}
	return all, nil
}

func (u *uploadedFiles) Remove(ctx context.Context, id string) error {
	if err := u.files.Delete(ctx, id); err != nil {
		return err
	}
	return u.files.Save(ctx)
}
