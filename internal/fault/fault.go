// Package fault defines the domain failure taxonomy shared by the settings
// controllers, the publisher and the CLI. Every user-surfaced failure carries
// a stable code suitable for CLI exit codes and API status mapping, plus the
// offending key/scope and, where relevant, the expected and actual version
// stamps.
package fault

import (
	"errors"
	"fmt"
	"strings"

	"github.com/KhaosKoder/khaos-settings/internal/rowversion"
)

// Code identifies one domain failure condition. The numeric values are
// stable and double as CLI exit codes.
type Code int

const (
	// CodeNone marks the zero value; it is never attached to an error.
	CodeNone Code = iota
	// CodeConcurrencyConflict is raised when a supplied version stamp no
	// longer matches the stored row.
	CodeConcurrencyConflict
	// CodeMissingRowVersion is raised when an update is attempted without a
	// version stamp, or a stamp is asserted against a nonexistent row.
	CodeMissingRowVersion
	// CodeRollbackConflict is raised when the live row drifted away from the
	// history entry a rollback targets.
	CodeRollbackConflict
	// CodeValidationFailure is raised on malformed requests or corrupt
	// history entries.
	CodeValidationFailure
	// CodeDecryptionFailure is raised when an encrypted value cannot be
	// decrypted.
	CodeDecryptionFailure
	// CodeNotFound is raised when a referenced row does not exist.
	CodeNotFound
	// CodeDuplicateKey is raised when an insert loses a race against another
	// insert of the identical scope and key.
	CodeDuplicateKey
	// CodeInvalidArgument is raised on out-of-range or malformed arguments.
	CodeInvalidArgument
)

// String returns the stable name of the code.
func (c Code) String() string {
	switch c {
	case CodeConcurrencyConflict:
		return "ConcurrencyConflict"
	case CodeMissingRowVersion:
		return "MissingRowVersion"
	case CodeRollbackConflict:
		return "RollbackConflict"
	case CodeValidationFailure:
		return "ValidationFailure"
	case CodeDecryptionFailure:
		return "DecryptionFailure"
	case CodeNotFound:
		return "NotFound"
	case CodeDuplicateKey:
		return "DuplicateKey"
	case CodeInvalidArgument:
		return "InvalidArgument"
	case CodeNone:
		return "None"
	default:
		return fmt.Sprintf("Code(%d)", int(c))
	}
}

// Error is a user-surfaced domain failure.
type Error struct {
	Code          Code
	Message       string
	Key           string
	ApplicationID string
	InstanceID    string
	// ExpectedVersion and ActualVersion hold the hex display form of the
	// version stamps involved in a concurrency or rollback conflict.
	ExpectedVersion string
	ActualVersion   string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(e.Code.String())
	b.WriteString(": ")
	b.WriteString(e.Message)

	if e.Key != "" {
		fmt.Fprintf(&b, " (key=%q", e.Key)

		if e.ApplicationID != "" {
			fmt.Fprintf(&b, " application=%q", e.ApplicationID)
		}

		if e.InstanceID != "" {
			fmt.Fprintf(&b, " instance=%q", e.InstanceID)
		}

		b.WriteString(")")
	}

	if e.ExpectedVersion != "" || e.ActualVersion != "" {
		fmt.Fprintf(&b, " expected=%s actual=%s", orNone(e.ExpectedVersion), orNone(e.ActualVersion))
	}

	return b.String()
}

// Is matches errors by code, so callers can test conditions with errors.Is
// against the package sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)

	return ok && t.Code == e.Code
}

// Sentinels for errors.Is matching. They carry no detail themselves.
var (
	ErrConcurrencyConflict = &Error{Code: CodeConcurrencyConflict}
	ErrMissingRowVersion   = &Error{Code: CodeMissingRowVersion}
	ErrRollbackConflict    = &Error{Code: CodeRollbackConflict}
	ErrValidationFailure   = &Error{Code: CodeValidationFailure}
	ErrDecryptionFailure   = &Error{Code: CodeDecryptionFailure}
	ErrNotFound            = &Error{Code: CodeNotFound}
	ErrDuplicateKey        = &Error{Code: CodeDuplicateKey}
	ErrInvalidArgument     = &Error{Code: CodeInvalidArgument}
)

// ConcurrencyConflict reports a stale version stamp on key, carrying both
// stamps for diagnostics.
func ConcurrencyConflict(key, appID, instID string, expected, actual []byte) *Error {
	return &Error{
		Code:            CodeConcurrencyConflict,
		Message:         "version stamp does not match the stored row",
		Key:             key,
		ApplicationID:   appID,
		InstanceID:      instID,
		ExpectedVersion: rowversion.ToHex(expected),
		ActualVersion:   rowversion.ToHex(actual),
	}
}

// MissingRowVersion reports an update without a version stamp, or a stamp
// asserted against a row that does not exist.
func MissingRowVersion(key, appID, instID string) *Error {
	return &Error{
		Code:          CodeMissingRowVersion,
		Message:       "an update requires the current version stamp of the row",
		Key:           key,
		ApplicationID: appID,
		InstanceID:    instID,
	}
}

// RollbackConflict reports that the live row no longer matches the targeted
// history entry.
func RollbackConflict(key, appID, instID string, expected, actual []byte) *Error {
	return &Error{
		Code:            CodeRollbackConflict,
		Message:         "the row changed since the targeted history entry",
		Key:             key,
		ApplicationID:   appID,
		InstanceID:      instID,
		ExpectedVersion: rowversion.ToHex(expected),
		ActualVersion:   rowversion.ToHex(actual),
	}
}

// ValidationFailure reports a malformed request or a corrupt history entry.
func ValidationFailure(key, msg string) *Error {
	return &Error{Code: CodeValidationFailure, Message: msg, Key: key}
}

// DecryptionFailure reports that the value stored under key could not be
// decrypted.
func DecryptionFailure(key string, cause error) *Error {
	return &Error{
		Code:    CodeDecryptionFailure,
		Message: fmt.Sprintf("decrypt failed: %v", cause),
		Key:     key,
	}
}

// NotFound reports a missing row.
func NotFound(key, appID, instID string) *Error {
	return &Error{
		Code:          CodeNotFound,
		Message:       "setting not found",
		Key:           key,
		ApplicationID: appID,
		InstanceID:    instID,
	}
}

// DuplicateKey reports a lost insert race for scope+key.
func DuplicateKey(key, appID, instID string) *Error {
	return &Error{
		Code:          CodeDuplicateKey,
		Message:       "a setting with this key already exists in the scope",
		Key:           key,
		ApplicationID: appID,
		InstanceID:    instID,
	}
}

// InvalidArgument reports an out-of-range or malformed argument.
func InvalidArgument(msg string) *Error {
	return &Error{Code: CodeInvalidArgument, Message: msg}
}

// CodeOf extracts the domain code from err, or CodeNone for non-domain
// errors.
func CodeOf(err error) Code {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}

	return CodeNone
}

func orNone(s string) string {
	if s == "" {
		return "<none>"
	}

	return s
}
