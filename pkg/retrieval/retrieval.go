// Package retrieval resolves storage names to stored bytes.
package retrieval

import (
	"context"
	"errors"
	"io"

	"filehost/pkg/apperr"
	"filehost/pkg/hasher"
	"filehost/pkg/log"
	"filehost/pkg/metadata"
	"filehost/pkg/models"
	"filehost/pkg/store"
)

// ReasonNoHash is reported by Verify for records stored without a digest.
const ReasonNoHash = "no hash recorded"

// FileLookup is the subset of the metadata store retrieval needs.
type FileLookup interface {
	GetFileByFilename(ctx context.Context, storageName string) (*models.FileRecord, error)
}

// Object is an open stored file together with its record. Callers must Close it.
type Object struct {
	io.ReadCloser
	Record *models.FileRecord
	// Size is the size on disk, which is what gets streamed.
	Size int64
}

// Service serves stored files.
type Service struct {
	files   FileLookup
	content store.Store
}

// New creates a retrieval service.
func New(files FileLookup, content store.Store) *Service {
	return &Service{files: files, content: content}
}

// Open looks up the record for storageName and opens its bytes.
// A record whose bytes are gone yields NotFoundError with KindContent.
func (s *Service) Open(ctx context.Context, storageName string) (*Object, error) {
	rec, err := s.lookup(ctx, storageName)
	if err != nil {
		return nil, err
	}

	content, err := s.content.Open(ctx, rec.StorageName)
	if err != nil {
		var missing store.FileNotFoundError
		if errors.As(err, &missing) {
			log.Warn().
				Int64("file_id", rec.ID).
				Str("storage_name", rec.StorageName).
				Str("storage_path", rec.StoragePath).
				Msg("File record has no stored content")
			return nil, apperr.NotFoundError{Kind: apperr.KindContent, Key: storageName}
		}
		return nil, apperr.StorageError{Op: "open", Err: err}
	}

	if content.Size != rec.FileSize {
		log.Warn().
			Str("storage_name", rec.StorageName).
			Int64("recorded_size", rec.FileSize).
			Int64("stored_size", content.Size).
			Msg("Stored size differs from record")
	}

	return &Object{ReadCloser: content, Record: rec, Size: content.Size}, nil
}

// Info returns the descriptor of a stored file without touching its bytes.
func (s *Service) Info(ctx context.Context, storageName string) (*models.FileDescriptor, error) {
	rec, err := s.lookup(ctx, storageName)
	if err != nil {
		return nil, err
	}
	d := rec.Descriptor()
	return &d, nil
}

// Verify rehashes the stored bytes and compares them with the recorded digest.
func (s *Service) Verify(ctx context.Context, storageName string) (*models.Verification, error) {
	rec, err := s.lookup(ctx, storageName)
	if err != nil {
		return nil, err
	}

	result := &models.Verification{StorageName: rec.StorageName, Expected: rec.FileHash}
	if rec.FileHash == "" {
		result.Reason = ReasonNoHash
		return result, nil
	}

	exists, err := s.content.Exists(ctx, rec.StorageName)
	if err != nil {
		return nil, apperr.StorageError{Op: "stat", Err: err}
	}
	if !exists {
		return nil, apperr.NotFoundError{Kind: apperr.KindContent, Key: storageName}
	}

	ok, actual, err := hasher.Verify(ctx, s.content.Path(rec.StorageName), rec.FileHash)
	if err != nil {
		return nil, err
	}

	result.Actual = actual
	result.Verified = ok
	if !ok {
		result.Reason = "digest mismatch"
		log.Warn().
			Str("storage_name", rec.StorageName).
			Str("expected", rec.FileHash).
			Str("actual", actual).
			Msg("Stored content does not match recorded digest")
	}
	return result, nil
}

func (s *Service) lookup(ctx context.Context, storageName string) (*models.FileRecord, error) {
	if !store.ValidateName(storageName) {
		return nil, apperr.ValidationError{Reason: "invalid file name"}
	}

	rec, err := s.files.GetFileByFilename(ctx, storageName)
	if errors.Is(err, metadata.ErrFileNotFound) {
		return nil, apperr.NotFoundError{Kind: apperr.KindFile, Key: storageName}
	}
	if err != nil {
		log.Error().Err(err).Str("storage_name", storageName).Msg("Failed to look up file")
		return nil, apperr.StorageError{Op: "get file", Err: err}
	}
	return rec, nil
}
