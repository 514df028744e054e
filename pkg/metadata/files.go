package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"filehost/pkg/models"
)

const fileColumns = `id, user_id, original_name, storage_name, storage_path, file_size, mime_type, file_hash, uploaded_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// CreateFile records stored bytes for a user. UploadedAt defaults to now.
func (s *Store) CreateFile(ctx context.Context, rec *models.FileRecord) (*models.FileRecord, error) {
	if rec == nil || rec.StorageName == "" || rec.StoragePath == "" || rec.OriginalName == "" {
		return nil, fmt.Errorf("%w: original name, storage name and storage path are required", ErrInvalidInput)
	}

	created := *rec
	if created.UploadedAt.IsZero() {
		created.UploadedAt = time.Now().UTC()
	}

	hash := sql.NullString{String: created.FileHash, Valid: created.FileHash != ""}

	err := s.db.QueryRowContext(ctx,
		s.rebind(`INSERT INTO files (user_id, original_name, storage_name, storage_path, file_size, mime_type, file_hash, uploaded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		created.UserID, created.OriginalName, created.StorageName, created.StoragePath,
		created.FileSize, created.MimeType, hash, created.UploadedAt,
	).Scan(&created.ID)
	if err != nil {
		switch {
		case isForeignKeyViolation(err):
			return nil, ErrUserNotFound
		case isUniqueViolation(err):
			return nil, ErrDuplicateFile
		}
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}

	return &created, nil
}

// GetFilesByUserID lists a user's files, most recent first.
func (s *Store) GetFilesByUserID(ctx context.Context, userID int64) ([]models.FileRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT `+fileColumns+` FROM files WHERE user_id = ? ORDER BY uploaded_at DESC, id DESC`),
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	defer func() { _ = rows.Close() }()

	files := []models.FileRecord{}
	for rows.Next() {
		rec, scanErr := scanFile(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrDatabaseError, scanErr)
		}
		files = append(files, *rec)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}

	return files, nil
}

// GetFileByFilename retrieves a file record by its storage name.
func (s *Store) GetFileByFilename(ctx context.Context, storageName string) (*models.FileRecord, error) {
	row := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT `+fileColumns+` FROM files WHERE storage_name = ?`),
		storageName,
	)

	rec, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	return rec, nil
}

func scanFile(row rowScanner) (*models.FileRecord, error) {
	var (
		rec  models.FileRecord
		hash sql.NullString
	)
	err := row.Scan(&rec.ID, &rec.UserID, &rec.OriginalName, &rec.StorageName, &rec.StoragePath,
		&rec.FileSize, &rec.MimeType, &hash, &rec.UploadedAt)
	if err != nil {
		return nil, err
	}
	if hash.Valid {
		rec.FileHash = hash.String
	}
	return &rec, nil
}
