package cmd

import "errors"

// Define static errors
var (
	ErrNoConfig          = errors.New("no configuration given; use --config or --env-prefix")
	ErrSectionMissing    = errors.New("configuration section not found")
	ErrUnsupportedFormat = errors.New("unsupported output format")
	ErrTargetRequired    = errors.New("--target is required")
	ErrLibraryNotFound   = errors.New("library not in catalog")
)
