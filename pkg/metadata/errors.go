package metadata

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateUser is returned when a username or email is already taken.
	ErrDuplicateUser = errors.New("user already exists")

	// ErrDuplicateUsername narrows ErrDuplicateUser to the username column.
	ErrDuplicateUsername = fmt.Errorf("%w: username taken", ErrDuplicateUser)

	// ErrDuplicateEmail narrows ErrDuplicateUser to the email column.
	ErrDuplicateEmail = fmt.Errorf("%w: email taken", ErrDuplicateUser)

	// ErrUserNotFound is returned when the requested user does not exist,
	// including a file insert whose user_id references nobody.
	ErrUserNotFound = errors.New("user not found")

	// ErrFileNotFound is returned when no file record has the requested storage name.
	ErrFileNotFound = errors.New("file not found")

	// ErrDuplicateFile is returned when a storage name is recorded twice.
	ErrDuplicateFile = errors.New("file record already exists")

	// ErrInvalidInput is returned for empty required fields.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedDriver is returned by Open for drivers other than sqlite and pgx.
	ErrUnsupportedDriver = errors.New("unsupported database driver")

	// ErrDatabaseError is returned when a database operation fails.
	ErrDatabaseError = errors.New("database error")
)
