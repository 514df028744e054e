// Package hasher computes content digests over bytes as they sit on disk.
//
// The digest is MD5: it guards against write corruption and silent drift
// between metadata and storage, it is not a security control.
package hasher

import (
	"context"
	"crypto/md5" //nolint:gosec // integrity checksum, not a security boundary
	"encoding/hex"
	"io"
	"os"

	"filehost/pkg/apperr"
	"filehost/pkg/log"
)

const digestLength = md5.Size * 2

// HashFile re-reads path from disk and returns its lowercase hex MD5.
func HashFile(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", apperr.IntegrityError{Path: path, Err: err}
	}

	//nolint:gosec // path comes from the content store, not from the client
	file, err := os.Open(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("Failed to open file for hashing")
		return "", apperr.IntegrityError{Path: path, Err: err}
	}
	defer func() {
		if err := file.Close(); err != nil {
			log.Error().Err(err).Str("path", path).Msg("Failed to close hashed file")
		}
	}()

	return HashReader(ctx, file, path)
}

// HashReader digests everything r yields. name is only used for error context.
func HashReader(ctx context.Context, r io.Reader, name string) (string, error) {
	h := md5.New() //nolint:gosec // see package doc
	if _, err := io.Copy(h, contextReader{ctx: ctx, r: r}); err != nil {
		log.Error().Err(err).Str("path", name).Msg("Failed to hash file")
		return "", apperr.IntegrityError{Path: name, Err: err}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify recomputes the digest of path and compares it with expected.
func Verify(ctx context.Context, path, expected string) (bool, string, error) {
	actual, err := HashFile(ctx, path)
	if err != nil {
		return false, "", err
	}
	return actual == expected, actual, nil
}

// ValidateDigest checks if s looks like a digest produced by this package.
func ValidateDigest(s string) bool {
	if len(s) != digestLength {
		return false
	}
	for _, char := range s {
		if (char < '0' || char > '9') && (char < 'a' || char > 'f') {
			return false
		}
	}
	return true
}

// contextReader stops a long copy once the request goes away.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
