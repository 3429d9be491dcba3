package errors

import "fmt"

// Common error types.
var (
	// Config errors.
	ErrEmptyConfigPath    = fmt.Errorf("config file path cannot be empty")
	ErrConfigParse        = fmt.Errorf("failed to parse config")
	ErrConfigValidation   = fmt.Errorf("invalid configuration")
	ErrConfigEncode       = fmt.Errorf("failed to encode config")
	ErrConfigDirectory    = fmt.Errorf("failed to create config directory")
	ErrConfigFileCreate   = fmt.Errorf("failed to create config file")
	ErrConfigFileRename   = fmt.Errorf("failed to rename config file")
	ErrConfigMarshal      = fmt.Errorf("failed to marshal config")
	ErrUnknownConfigKey   = fmt.Errorf("unknown configuration key")
	ErrConfigFileExists   = fmt.Errorf("configuration file already exists")
	ErrConflictingOptions = fmt.Errorf("fetch-all and remove-old cannot be combined")

	// Sync preconditions. These abort a sync before any fetching starts.
	ErrNoChannelLabel         = fmt.Errorf("no channel label specified")
	ErrAuthenticationRejected = fmt.Errorf("authentication rejected by catalog")
	ErrSystemIDMissing        = fmt.Errorf("system id file not readable")
	ErrUnknownChannel         = fmt.Errorf("channel not offered by catalog")
	ErrDirLocked              = fmt.Errorf("save path is locked by another sync")

	// Catalog errors.
	ErrCatalogFault           = fmt.Errorf("catalog returned a fault")
	ErrCatalogResponse        = fmt.Errorf("unexpected catalog response")
	ErrUnsupportedDumpVersion = fmt.Errorf("unsupported catalog dump version")
	ErrRepodataNotFound       = fmt.Errorf("repodata file not found")
	ErrResponseTooLarge       = fmt.Errorf("response exceeds size limit")
	ErrRepoMetadata           = fmt.Errorf("invalid repository metadata")

	// Fetch errors. Attached to per-item results, never fatal to a sync.
	ErrDownloadFailed      = fmt.Errorf("download failed")
	ErrUnauthorized        = fmt.Errorf("unauthorized")
	ErrSizeMismatch        = fmt.Errorf("size mismatch")
	ErrFileHashMismatch    = fmt.Errorf("checksum mismatch")
	ErrUnsupportedChecksum = fmt.Errorf("unsupported checksum type")
	ErrUnsafePath          = fmt.Errorf("file name escapes the save path")

	// Pool errors.
	ErrPoolNotStarted = fmt.Errorf("worker pool was not started")
	ErrPoolStarted    = fmt.Errorf("worker pool already started")

	// Hook errors.
	ErrHookExecution = fmt.Errorf("error executing hook")
	ErrHookScript    = fmt.Errorf("hook script error")
	ErrHookLoad      = fmt.Errorf("failed to load hook")

	// Repository metadata errors.
	ErrRepoToolFailed = fmt.Errorf("repository metadata tool failed")
)

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
