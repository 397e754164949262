// Package errors defines the shared error vocabulary of shelfkeep and small
// helpers for wrapping errors with context.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Common error types.
var (
	// Manifest errors.
	ErrCorruptManifest = fmt.Errorf("manifest is corrupt")
	ErrManifestVersion = fmt.Errorf("unsupported manifest format version")
	ErrUnknownItem     = fmt.Errorf("item not found")

	// Catalog errors.
	ErrAuthExpired      = fmt.Errorf("authentication expired, run 'shelfkeep login' again")
	ErrTransientNetwork = fmt.Errorf("transient network error")

	// Download errors.
	ErrFetchFailed  = fmt.Errorf("download failed")
	ErrSizeMismatch = fmt.Errorf("size mismatch")

	// Verification errors.
	ErrChecksumMismatch = fmt.Errorf("checksum mismatch")
	ErrArchiveCorrupt   = fmt.Errorf("archive failed integrity test")

	// Filesystem errors.
	ErrInvalidPath = fmt.Errorf("invalid path")

	// Config errors.
	ErrEmptyConfigPath  = fmt.Errorf("config file path cannot be empty")
	ErrConfigParse      = fmt.Errorf("failed to parse config")
	ErrConfigValidation = fmt.Errorf("invalid configuration")
	ErrConfigKey        = fmt.Errorf("unknown configuration key")

	// Session errors.
	ErrNoSession = fmt.Errorf("no stored session, run 'shelfkeep login' first")

	// Hook errors.
	ErrHookExecution = fmt.Errorf("error executing hook")
	ErrHookScript    = fmt.Errorf("hook script error")
)

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// Wrap wraps an error with additional context.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf wraps an error with additional formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
