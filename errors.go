package configprocessor

import (
	"errors"
)

// Processor errors
var (
	// Processing errors
	ErrTargetNil       = errors.New("target is nil")
	ErrTargetNotPtr    = errors.New("target must be a non-nil pointer")
	ErrSectionNil      = errors.New("configuration section is nil")
	ErrCatalogNil      = errors.New("catalog is nil")
	ErrUnknownStrategy = errors.New("unknown catalog strategy")
	ErrNoProbeDirs     = errors.New("directory strategy requires probe directories")
	ErrNoManifest      = errors.New("manifest strategy requires a manifest path")

	// Runtime helper errors
	ErrValueMissing   = errors.New("configuration value is missing")
	ErrValueType      = errors.New("configuration value has an unexpected type")
	ErrNoDirective    = errors.New("section yields no directive")
	ErrRuntimeCatalog = errors.New("runtime catalog could not be built")

	// Config validation errors
	ErrConfigNil                  = errors.New("config is nil")
	ErrConfigNotPointer           = errors.New("config must be a pointer")
	ErrConfigNotStruct            = errors.New("config must be a struct")
	ErrConfigRequiredFieldMissing = errors.New("required field is missing")
	ErrConfigValidationFailed     = errors.New("config validation failed")
	ErrUnsupportedTypeForDefault  = errors.New("unsupported type for default value")
	ErrDefaultValueParseError     = errors.New("failed to parse default value")
	ErrDefaultValueOverflowsInt   = errors.New("default value overflows int")
	ErrDefaultValueOverflowsUint  = errors.New("default value overflows uint")
	ErrDefaultValueOverflowsFloat = errors.New("default value overflows float")
	ErrUnsupportedFormatType      = errors.New("unsupported format type")

	// Observer errors
	ErrObserverNil               = errors.New("observer is nil")
	ErrObserverIDEmpty           = errors.New("observer id is empty")
	ErrNoSubjectForEventEmission = errors.New("no subject available for event emission")
)
