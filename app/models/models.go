// Package models holds the entities the API stores.
package models

import "time"

// Note is a short text document.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (n *Note) SetID(id string) { n.ID = id }
func (Note) EntitySet() string  { return "notes" }

// UploadedFile is a file received through the uploads endpoint. Content is
// omitted from listings.
type UploadedFile struct {
	ID          string    `json:"id"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	SHA256      string    `json:"sha256"`
	UploadedAt  time.Time `json:"uploaded_at"`
	Content     []byte    `json:"content,omitempty"`
}

func (f *UploadedFile) SetID(id string) { f.ID = id }
func (UploadedFile) EntitySet() string  { return "uploaded_files" }

// Meta returns f without its content.
func (f UploadedFile) Meta() UploadedFile {
	f.Content = nil
	return f
}
