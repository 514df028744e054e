// Package upload runs the per-request upload pipeline: authorize the caller,
// admit the batch, then store, hash and record each file in turn.
package upload

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"filehost/pkg/apperr"
	"filehost/pkg/hasher"
	"filehost/pkg/log"
	"filehost/pkg/metadata"
	"filehost/pkg/models"
	"filehost/pkg/store"
)

// ReasonUserIDRequired is returned when the caller identifier is absent or not a positive integer.
const ReasonUserIDRequired = "user id is required"

// MetadataStore is the subset of the metadata store the upload pipeline needs.
type MetadataStore interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	CreateFile(ctx context.Context, rec *models.FileRecord) (*models.FileRecord, error)
	GetFilesByUserID(ctx context.Context, userID int64) ([]models.FileRecord, error)
}

// HashFunc digests the bytes stored at path.
type HashFunc func(ctx context.Context, path string) (string, error)

// Request is one upload call.
type Request struct {
	UserID string
	Files  []*store.Incoming
}

// Service orchestrates uploads.
type Service struct {
	meta    MetadataStore
	content store.Store
	policy  store.Policy
	hash    HashFunc
}

// New creates an upload service. Files are digested with hasher.HashFile.
func New(meta MetadataStore, content store.Store, policy store.Policy) *Service {
	return &Service{
		meta:    meta,
		content: content,
		policy:  policy,
		hash:    hasher.HashFile,
	}
}

// WithHashFunc replaces the digest function.
func (s *Service) WithHashFunc(fn HashFunc) *Service {
	s.hash = fn
	return s
}

// Upload stores every file of the request and returns one descriptor per file, in request order.
//
// Nothing is written unless the caller exists and the whole batch passes admission.
// A store or hash failure removes the failing file's bytes. A metadata failure after
// the bytes landed leaves them on disk unrecorded; files recorded earlier in the same
// batch stay recorded.
func (s *Service) Upload(ctx context.Context, req Request) ([]models.FileDescriptor, error) {
	user, err := s.authorize(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	if err := s.policy.Admit(req.Files); err != nil {
		log.Debug().Int64("user_id", user.ID).Int("files", len(req.Files)).Err(err).Msg("Upload rejected")
		return nil, err
	}

	descriptors := make([]models.FileDescriptor, 0, len(req.Files))
	for _, in := range req.Files {
		rec, err := s.uploadOne(ctx, user.ID, in)
		if err != nil {
			log.Warn().
				Int64("user_id", user.ID).
				Int("recorded", len(descriptors)).
				Int("requested", len(req.Files)).
				Msg("Upload batch aborted")
			return nil, err
		}
		descriptors = append(descriptors, rec.Descriptor())
	}

	log.Info().Int64("user_id", user.ID).Int("files", len(descriptors)).Msg("Upload completed")
	return descriptors, nil
}

func (s *Service) uploadOne(ctx context.Context, userID int64, in *store.Incoming) (*models.FileRecord, error) {
	stored, err := s.content.Save(ctx, in)
	if err != nil {
		var tooLarge store.FileTooLargeError
		if errors.As(err, &tooLarge) {
			return nil, apperr.ValidationError{Reason: tooLarge.Error()}
		}
		log.Error().Err(err).Str("original_name", in.OriginalName).Msg("Failed to store file")
		return nil, apperr.StorageError{Op: "save", Err: err}
	}

	digest, err := s.hash(ctx, stored.Path)
	if err != nil {
		s.discard(ctx, stored)
		var integrityErr apperr.IntegrityError
		if errors.As(err, &integrityErr) {
			return nil, integrityErr
		}
		return nil, apperr.IntegrityError{Path: stored.Path, Err: err}
	}

	rec, err := s.meta.CreateFile(ctx, &models.FileRecord{
		UserID:       userID,
		OriginalName: in.OriginalName,
		StorageName:  stored.StorageName,
		StoragePath:  stored.Path,
		FileSize:     stored.Size,
		MimeType:     in.MimeType,
		FileHash:     digest,
	})
	if err != nil {
		log.Warn().
			Err(err).
			Str("storage_path", stored.Path).
			Str("storage_name", stored.StorageName).
			Msg("orphaned storage file")
		if errors.Is(err, metadata.ErrUserNotFound) {
			return nil, apperr.NotFoundError{Kind: apperr.KindUser, Key: strconv.FormatInt(userID, 10)}
		}
		return nil, apperr.StorageError{Op: "record", Err: err}
	}

	log.Debug().
		Int64("file_id", rec.ID).
		Str("storage_name", rec.StorageName).
		Int64("size", rec.FileSize).
		Str("hash", rec.FileHash).
		Msg("File recorded")
	return rec, nil
}

// discard removes bytes that will never be recorded.
func (s *Service) discard(ctx context.Context, stored *store.Stored) {
	if err := s.content.Remove(context.WithoutCancel(ctx), stored.StorageName); err != nil {
		log.Warn().Err(err).Str("storage_path", stored.Path).Msg("Failed to remove unrecorded file")
	}
}

// ListFiles returns the descriptors of a user's files, newest first.
func (s *Service) ListFiles(ctx context.Context, userID string) ([]models.FileDescriptor, error) {
	user, err := s.authorize(ctx, userID)
	if err != nil {
		return nil, err
	}

	records, err := s.meta.GetFilesByUserID(ctx, user.ID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to list files")
		return nil, apperr.StorageError{Op: "list", Err: err}
	}

	descriptors := make([]models.FileDescriptor, 0, len(records))
	for i := range records {
		descriptors = append(descriptors, records[i].Descriptor())
	}
	return descriptors, nil
}

func (s *Service) authorize(ctx context.Context, rawID string) (*models.User, error) {
	id, err := ParseUserID(rawID)
	if err != nil {
		return nil, err
	}

	user, err := s.meta.GetUserByID(ctx, id)
	if errors.Is(err, metadata.ErrUserNotFound) {
		return nil, apperr.NotFoundError{Kind: apperr.KindUser, Key: rawID}
	}
	if err != nil {
		log.Error().Err(err).Int64("user_id", id).Msg("Failed to look up user")
		return nil, apperr.StorageError{Op: "get user", Err: err}
	}
	return user, nil
}

// ParseUserID converts a client-supplied user id into a row id.
func ParseUserID(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, apperr.ValidationError{Reason: ReasonUserIDRequired}
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.ValidationError{Reason: "invalid user id"}
	}
	return id, nil
}
