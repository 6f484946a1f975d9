package share

import (
	"errors"
	"fmt"
)

// Error taxonomy. All validation failures wrap one of these sentinels and
// are raised before any persistent mutation; the engine never leaves a
// partially written share behind a validation failure. The single
// exception is remote share creation, which writes first and compensates
// when the remote peer cannot be notified.
var (
	ErrUnknownBackend     = errors.New("unknown item type backend")
	ErrInvalidBackend     = errors.New("invalid item type backend")
	ErrSourceNotFound     = errors.New("item source not found")
	ErrPermissionExceeded = errors.New("permissions exceed granted permissions")
	ErrPolicyViolation    = errors.New("sharing policy violation")
	ErrExpirationInvalid  = errors.New("invalid expiration date")
	ErrRemoteUnreachable  = errors.New("remote server unreachable")

	ErrShareNotFound = errors.New("share not found")
)

func violationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPolicyViolation, fmt.Sprintf(format, args...))
}

func exceededf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPermissionExceeded, fmt.Sprintf(format, args...))
}

func expirationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrExpirationInvalid, fmt.Sprintf(format, args...))
}
