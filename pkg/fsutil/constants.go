package fsutil

// File and directory permission constants.
// These follow standard Unix permission conventions and are used consistently
// throughout the application.
const (
	// FileModeDefault is the default mode for downloaded and generated files.
	FileModeDefault = 0o644 // -rw-r--r--

	// FileModeSecure is used for sensitive files such as the stored session.
	FileModeSecure = 0o600 // -rw-------

	// DirModeDefault is the default mode for item directories.
	DirModeDefault = 0o755 // drwxr-xr-x

	// DirModeSecure is used for configuration and state directories.
	DirModeSecure = 0o750 // drwxr-x---
)
