package device

import (
	"errors"
	"fmt"
)

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrNotFound) {
//	    // token unknown, safe to create
//	}
//	if errors.Is(err, device.ErrStorage) {
//	    // store unavailable, retry at a higher layer
//	}
var (
	// ErrNotFound is returned when a token or entity does not exist.
	ErrNotFound = errors.New("device: not found")

	// ErrSpecificationNotFound is returned when a specification token does
	// not resolve to a stored specification.
	ErrSpecificationNotFound = fmt.Errorf("%w: specification", ErrNotFound)

	// ErrInvalidToken matches structured errors with the
	// InvalidSpecificationToken code.
	ErrInvalidToken = errors.New("device: invalid specification token")

	// ErrDuplicateToken matches structured errors with the
	// DuplicateSpecificationToken code.
	ErrDuplicateToken = errors.New("device: duplicate specification token")

	// ErrIntegrity is returned when a stored row has an unexpected shape:
	// a missing or repeated content column, an undecodable payload or a
	// malformed row key.
	ErrIntegrity = errors.New("device: integrity violation")

	// ErrStorage wraps store transport, read, write and scan failures.
	ErrStorage = errors.New("device: storage failure")

	// ErrInvalidSpecification is returned when a create or update request
	// fails validation.
	ErrInvalidSpecification = errors.New("device: invalid specification")

	// ErrInvalidCommand is returned when a command create request fails
	// validation.
	ErrInvalidCommand = errors.New("device: invalid command")

	// ErrInvalidName is returned when a name is empty or too long.
	ErrInvalidName = errors.New("device: invalid name")

	// ErrMalformedRowKey is returned when a row key cannot be decoded.
	ErrMalformedRowKey = errors.New("device: malformed row key")
)

// ErrorCode identifies a structured domain error.
type ErrorCode string

// Error codes.
const (
	InvalidSpecificationToken   ErrorCode = "InvalidDeviceSpecificationToken"
	DuplicateSpecificationToken ErrorCode = "DuplicateDeviceSpecificationToken"
)

// ErrorLevel is the severity attached to a structured error.
type ErrorLevel string

// Error levels.
const (
	LevelError   ErrorLevel = "ERROR"
	LevelWarning ErrorLevel = "WARNING"
	LevelInfo    ErrorLevel = "INFO"
)

// Error is a structured domain error carrying a code and severity.
type Error struct {
	Code  ErrorCode
	Level ErrorLevel
	Token string
	Err   error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("device: %s (%s)", e.Code, e.Level)
	if e.Token != "" {
		msg += fmt.Sprintf(": token %q", e.Token)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches the sentinel that corresponds to the error's code.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrInvalidToken:
		return e.Code == InvalidSpecificationToken
	case ErrDuplicateToken:
		return e.Code == DuplicateSpecificationToken
	}
	return false
}

func (e *Error) Unwrap() error {
	return e.Err
}

func invalidToken(token string, cause error) error {
	return &Error{Code: InvalidSpecificationToken, Level: LevelError, Token: token, Err: cause}
}

func duplicateToken(token string) error {
	return &Error{Code: DuplicateSpecificationToken, Level: LevelError, Token: token}
}

// Outcome labels an operation result for metrics: "ok", "not_found",
// "invalid", "duplicate", "integrity", "storage" or "error".
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrDuplicateToken):
		return "duplicate"
	case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidSpecification), errors.Is(err, ErrInvalidCommand), errors.Is(err, ErrInvalidName):
		return "invalid"
	case errors.Is(err, ErrIntegrity):
		return "integrity"
	case errors.Is(err, ErrStorage):
		return "storage"
	}
	return "error"
}
