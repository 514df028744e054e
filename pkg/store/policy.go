package store

import (
	"fmt"
	"mime"
	"strings"

	"filehost/pkg/apperr"
)

// ReasonNoFiles is the validation reason for an empty upload batch.
const ReasonNoFiles = "no files uploaded"

// AllowedType is one accepted (extension, MIME type) pair.
type AllowedType struct {
	Extension string
	MimeType  string
}

// DefaultAllowedTypes covers the image and document formats the service accepts.
var DefaultAllowedTypes = []AllowedType{
	{".jpg", "image/jpeg"},
	{".jpeg", "image/jpeg"},
	{".png", "image/png"},
	{".gif", "image/gif"},
	{".pdf", "application/pdf"},
	{".txt", "text/plain"},
	{".doc", "application/msword"},
	{".docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
}

// Policy holds the admission limits checked before any byte is written.
type Policy struct {
	MaxFileSize  int64
	MaxFileCount int
	AllowedTypes []AllowedType
}

// NewPolicy returns a policy using DefaultAllowedTypes.
func NewPolicy(maxFileSize int64, maxFileCount int) Policy {
	return Policy{
		MaxFileSize:  maxFileSize,
		MaxFileCount: maxFileCount,
		AllowedTypes: DefaultAllowedTypes,
	}
}

// Allowed reports whether the extension of name and the declared MIME type form an allowed pair.
func (p Policy) Allowed(name, mimeType string) bool {
	ext := Extension(name)
	if ext == "" {
		return false
	}
	mediaType := normalizeMime(mimeType)
	for _, allowed := range p.AllowedTypes {
		if allowed.Extension == ext && allowed.MimeType == mediaType {
			return true
		}
	}
	return false
}

// Admit validates a whole batch. One bad file rejects the batch.
func (p Policy) Admit(files []*Incoming) error {
	if len(files) == 0 {
		return apperr.ValidationError{Reason: ReasonNoFiles}
	}
	if p.MaxFileCount > 0 && len(files) > p.MaxFileCount {
		return apperr.ValidationError{
			Reason: fmt.Sprintf("too many files: %d exceeds the limit of %d", len(files), p.MaxFileCount),
		}
	}

	for _, in := range files {
		if in == nil || in.Open == nil {
			return apperr.ValidationError{Reason: "malformed file part"}
		}
		if strings.TrimSpace(in.OriginalName) == "" {
			return apperr.ValidationError{Reason: "file name is required"}
		}
		if p.MaxFileSize > 0 && in.Size > p.MaxFileSize {
			return apperr.ValidationError{
				Reason: fmt.Sprintf("file %s exceeds the %d byte limit", in.OriginalName, p.MaxFileSize),
			}
		}
		if !p.Allowed(in.OriginalName, in.MimeType) {
			return apperr.ValidationError{
				Reason: fmt.Sprintf("file type not allowed: %s (%s)", in.OriginalName, in.MimeType),
			}
		}
	}
	return nil
}

func normalizeMime(mimeType string) string {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(mimeType))
	}
	return mediaType
}
