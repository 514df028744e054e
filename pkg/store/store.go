package store

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"filehost/pkg/models"
)

// Incoming is one file part of an upload request, not yet written anywhere.
type Incoming struct {
	FieldName    string
	OriginalName string
	MimeType     string
	Size         int64
	Open         func() (io.ReadCloser, error)
}

// FromBytes builds an Incoming backed by an in-memory buffer.
func FromBytes(field, name, mimeType string, data []byte) *Incoming {
	return &Incoming{
		FieldName:    field,
		OriginalName: name,
		MimeType:     mimeType,
		Size:         int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// Stored describes bytes that reached durable storage.
type Stored struct {
	StorageName string `json:"storage_name"`
	Path        string `json:"path"`
	Size        int64  `json:"size"`
}

// Content is an open handle on stored bytes. Callers must Close it.
type Content struct {
	io.ReadCloser
	Path string
	Size int64
}

// Store defines the content store operations. It is the only component that
// touches the filesystem namespace for uploaded bytes.
type Store interface {
	// EnsureDir creates the destination directory if it is absent.
	EnsureDir() error

	// Save writes the incoming file under a freshly generated storage name.
	// Partially written bytes are removed on failure.
	Save(ctx context.Context, in *Incoming) (*Stored, error)

	// Open returns a reader over the bytes stored under name.
	// Returns FileNotFoundError if the bytes are gone.
	Open(ctx context.Context, name string) (*Content, error)

	// Exists checks whether bytes are stored under name.
	Exists(ctx context.Context, name string) (bool, error)

	// Path returns the filesystem location for name.
	Path(name string) string

	// Remove deletes the bytes stored under name.
	Remove(ctx context.Context, name string) error

	// Usage reports disk usage of the storage directory.
	Usage() (*models.StorageInfo, error)
}

// FileNotFoundError is returned when no bytes are stored under a name.
type FileNotFoundError struct {
	Name string
}

func (e FileNotFoundError) Error() string {
	return "file not found"
}

// InvalidNameError is returned when a storage name could escape the storage directory.
type InvalidNameError struct {
	Name string
}

func (e InvalidNameError) Error() string {
	return "invalid storage name"
}

// FileTooLargeError is returned when more bytes arrive than the size ceiling allows,
// even if the declared size passed admission.
type FileTooLargeError struct {
	Name  string
	Limit int64
}

func (e FileTooLargeError) Error() string {
	return fmt.Sprintf("file %s exceeds the %d byte limit", e.Name, e.Limit)
}
