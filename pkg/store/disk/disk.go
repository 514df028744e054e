// Package disk implements store.Store on a local directory.
package disk

import (
	"context"
	"os"
	"path/filepath"
	"syscall"

	"filehost/pkg/log"
	"filehost/pkg/models"
	"filehost/pkg/store"
)

const (
	dirPerm  = 0750
	filePerm = 0640
	// Attempts at an O_EXCL create before giving up on name generation.
	maxNameAttempts = 3
)

var _ store.Store = (*Store)(nil)

// Store keeps every uploaded file flat in one directory.
type Store struct {
	dir         string
	maxFileSize int64
}

// New creates a disk store rooted at dir. A maxFileSize of 0 disables the write-time ceiling.
func New(dir string, maxFileSize int64) *Store {
	return &Store{
		dir:         dir,
		maxFileSize: maxFileSize,
	}
}

// Dir returns the storage directory.
func (s *Store) Dir() string {
	return s.dir
}

// EnsureDir creates the storage directory if it is absent.
func (s *Store) EnsureDir() error {
	if err := os.MkdirAll(s.dir, dirPerm); err != nil {
		log.Error().Err(err).Str("storage_dir", s.dir).Msg("Failed to create storage directory")
		return err
	}
	return nil
}

// Path returns the location of name inside the storage directory, or "" for an invalid name.
func (s *Store) Path(name string) string {
	if !store.ValidateName(name) {
		return ""
	}
	return filepath.Join(s.dir, name)
}

// Exists checks if bytes are stored under name.
func (s *Store) Exists(_ context.Context, name string) (bool, error) {
	path := s.Path(name)
	if path == "" {
		return false, store.InvalidNameError{Name: name}
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// Remove deletes the bytes stored under name.
func (s *Store) Remove(_ context.Context, name string) error {
	path := s.Path(name)
	if path == "" {
		return store.InvalidNameError{Name: name}
	}

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return store.FileNotFoundError{Name: name}
		}
		log.Error().Err(err).Str("path", path).Msg("Failed to remove stored file")
		return err
	}
	return nil
}

// Usage reports disk usage for the filesystem holding the storage directory.
func (s *Store) Usage() (*models.StorageInfo, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(s.dir, &stat); err != nil {
		return nil, err
	}

	blockSize := uint64(stat.Bsize) // #nosec G115 - syscall values are system dependent
	total := stat.Blocks * blockSize
	available := stat.Bavail * blockSize

	return &models.StorageInfo{
		Dir:       s.dir,
		Total:     total,
		Used:      total - available,
		Available: available,
	}, nil
}
