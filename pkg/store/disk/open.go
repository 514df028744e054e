package disk

import (
	"context"
	"os"

	"filehost/pkg/log"
	"filehost/pkg/store"
)

// Open returns a reader over the bytes stored under name.
func (s *Store) Open(_ context.Context, name string) (*store.Content, error) {
	path := s.Path(name)
	if path == "" {
		log.Warn().Str("storage_name", name).Msg("Invalid storage name")
		return nil, store.InvalidNameError{Name: name}
	}

	//nolint:gosec // path is validated to stay inside the storage directory
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, store.FileNotFoundError{Name: name}
	}
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("Failed to open stored file")
		return nil, err
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		log.Error().Err(err).Str("path", path).Msg("Failed to stat stored file")
		return nil, err
	}
	if !info.Mode().IsRegular() {
		_ = file.Close()
		return nil, store.FileNotFoundError{Name: name}
	}

	return &store.Content{ReadCloser: file, Path: path, Size: info.Size()}, nil
}
