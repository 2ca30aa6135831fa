package feeders

import (
	"errors"
	"fmt"
)

// Static error definitions for feeders

// File feeder errors
var (
	ErrFeederPathEmpty      = errors.New("feeder path is empty")
	ErrUnsupportedFormat    = errors.New("unsupported configuration format")
	ErrUnsupportedValueType = errors.New("unsupported configuration value type")
)

// HCL feeder errors
var (
	ErrHCLParse = errors.New("failed to parse HCL file")
	ErrHCLEval  = errors.New("failed to evaluate HCL attribute")
)

// Env feeder errors
var (
	ErrEnvEmptyPrefixAndSuffix = errors.New("env: prefix or suffix cannot be empty")
)

func wrapReadError(feeder, path string, err error) error {
	return fmt.Errorf("%s: failed to read %s: %w", feeder, path, err)
}

func wrapDecodeError(feeder, path string, err error) error {
	return fmt.Errorf("%s: failed to decode %s: %w", feeder, path, err)
}

func wrapValueTypeError(key string, got any) error {
	return fmt.Errorf("%w at %q: %T", ErrUnsupportedValueType, key, got)
}
