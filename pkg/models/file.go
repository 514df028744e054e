package models

import "time"

// FileRecord is a files row linking stored bytes to their owner.
// FileHash is empty when hashing was skipped.
type FileRecord struct {
	ID           int64
	UserID       int64
	OriginalName string
	StorageName  string
	StoragePath  string
	FileSize     int64
	MimeType     string
	FileHash     string
	UploadedAt   time.Time
}

// FileDescriptor is the client-facing view of a FileRecord.
type FileDescriptor struct {
	ID           int64     `json:"id"`
	OriginalName string    `json:"original_name"`
	StorageName  string    `json:"storage_name"`
	Size         int64     `json:"size"`
	MimeType     string    `json:"mime_type"`
	Hash         string    `json:"hash,omitempty"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// Descriptor converts the record into its client-facing form.
func (r *FileRecord) Descriptor() FileDescriptor {
	return FileDescriptor{
		ID:           r.ID,
		OriginalName: r.OriginalName,
		StorageName:  r.StorageName,
		Size:         r.FileSize,
		MimeType:     r.MimeType,
		Hash:         r.FileHash,
		UploadedAt:   r.UploadedAt,
	}
}

// FileListResponse wraps a list of descriptors.
type FileListResponse struct {
	Files []FileDescriptor `json:"files"`
}

// Verification reports whether the bytes on disk still match the recorded digest.
type Verification struct {
	StorageName string `json:"storage_name"`
	Expected    string `json:"expected,omitempty"`
	Actual      string `json:"actual,omitempty"`
	Verified    bool   `json:"verified"`
	Reason      string `json:"reason,omitempty"`
}

// StorageInfo is disk usage of the upload directory, reported by the health endpoint.
type StorageInfo struct {
	Dir       string `json:"dir"`
	Total     uint64 `json:"total"`
	Used      uint64 `json:"used"`
	Available uint64 `json:"available"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status   string       `json:"status"`
	Version  string       `json:"version"`
	Database string       `json:"database"`
	Storage  *StorageInfo `json:"storage,omitempty"`
}
