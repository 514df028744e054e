package store

import (
	"encoding/binary"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultFieldName = "file"
	maxNameLength    = 255
	maxExtLength     = 16
)

// GenerateName builds a storage name of the form <field>-<unix nanos>-<random><ext>.
// The random part comes from a v4 UUID so concurrent uploads never need to coordinate.
func GenerateName(field, originalName string, now time.Time) string {
	var b strings.Builder
	b.WriteString(sanitizeField(field))
	b.WriteByte('-')
	b.WriteString(strconv.FormatInt(now.UnixNano(), 10))
	b.WriteByte('-')
	b.WriteString(strconv.FormatUint(randomSuffix(), 10))
	b.WriteString(Extension(originalName))
	return b.String()
}

// randomSuffix takes the low half of a v4 UUID, 62 random bits.
func randomSuffix() uint64 {
	id := uuid.New()
	return binary.BigEndian.Uint64(id[8:])
}

// Extension returns the lowercased extension of name including the dot,
// or "" when it has none or it is not plain alphanumeric.
func Extension(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) < 2 || len(ext) > maxExtLength {
		return ""
	}
	for _, char := range ext[1:] {
		if (char < 'a' || char > 'z') && (char < '0' || char > '9') {
			return ""
		}
	}
	return ext
}

func sanitizeField(field string) string {
	var b strings.Builder
	for _, char := range field {
		switch {
		case char >= 'a' && char <= 'z', char >= 'A' && char <= 'Z', char >= '0' && char <= '9', char == '_':
			b.WriteRune(char)
		}
	}
	if b.Len() == 0 {
		return defaultFieldName
	}
	return b.String()
}

// ValidateName reports whether name is a plain file name that stays inside the
// storage directory.
func ValidateName(name string) bool {
	if name == "" || len(name) > maxNameLength || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return false
	}
	return filepath.Base(name) == name
}
