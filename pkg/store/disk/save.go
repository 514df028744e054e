package disk

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"filehost/pkg/log"
	"filehost/pkg/store"
)

// Save writes the incoming file under a generated storage name.
func (s *Store) Save(ctx context.Context, in *store.Incoming) (*store.Stored, error) {
	if err := s.EnsureDir(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, err := in.Open()
	if err != nil {
		log.Error().Err(err).Str("original_name", in.OriginalName).Msg("Failed to open uploaded file")
		return nil, err
	}
	defer func() {
		if err := src.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close source file")
		}
	}()

	dst, name, err := s.createUnique(in)
	if err != nil {
		return nil, err
	}
	targetPath := dst.Name()

	written, err := s.copyLimited(dst, src, in.OriginalName)
	if err == nil {
		err = dst.Sync()
	}
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		if removeErr := os.Remove(targetPath); removeErr != nil {
			log.Error().Err(removeErr).Str("target_path", targetPath).Msg("Failed to remove target file after write error")
		}
		log.Error().Err(err).Str("target_path", targetPath).Msg("Failed to save file")
		return nil, err
	}

	log.Debug().
		Str("storage_name", name).
		Str("original_name", in.OriginalName).
		Int64("size", written).
		Msg("File written to storage")

	return &store.Stored{StorageName: name, Path: targetPath, Size: written}, nil
}

// createUnique opens a new file with O_EXCL so an existing file is never overwritten.
func (s *Store) createUnique(in *store.Incoming) (*os.File, string, error) {
	var lastErr error
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		name := store.GenerateName(in.FieldName, in.OriginalName, time.Now())
		path := s.Path(name)

		//nolint:gosec // path is built from a generated name, not user input
		dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
		if err == nil {
			return dst, name, nil
		}
		if !errors.Is(err, os.ErrExist) {
			log.Error().Err(err).Str("target_path", path).Msg("Failed to create destination file")
			return nil, "", err
		}
		log.Warn().Str("storage_name", name).Msg("Storage name collision, regenerating")
		lastErr = err
	}
	return nil, "", lastErr
}

// copyLimited copies src to dst and fails once more than maxFileSize bytes arrive.
func (s *Store) copyLimited(dst io.Writer, src io.Reader, originalName string) (int64, error) {
	if s.maxFileSize <= 0 {
		return io.Copy(dst, src)
	}

	written, err := io.Copy(dst, io.LimitReader(src, s.maxFileSize+1))
	if err != nil {
		return written, err
	}
	if written > s.maxFileSize {
		return written, store.FileTooLargeError{Name: originalName, Limit: s.maxFileSize}
	}
	return written, nil
}
