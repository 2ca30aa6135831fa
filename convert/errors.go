package convert

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/GoCodeAlone/configprocessor/catalog"
)

// Static errors for value conversion
var (
	ErrNumericDuration    = errors.New("durations must be written as strings such as \"00:01:30\" or \"90s\", not bare numbers")
	ErrInvalidDuration    = errors.New("invalid duration")
	ErrUnknownEnumValue   = errors.New("unknown enum value")
	ErrMemberNotFound     = errors.New("static member not found")
	ErrAmbiguousMember    = errors.New("static member reference is ambiguous")
	ErrNonStaticMember    = errors.New("member reference syntax only denotes static members")
	ErrNotInstantiable    = errors.New("type cannot be instantiated for the target")
	ErrUnsupportedTarget  = errors.New("unsupported conversion target")
	ErrLibraryNotFound    = errors.New("library not found")
	ErrCatalogUnavailable = errors.New("no catalog available for type name conversion")
	ErrScalarExpected     = errors.New("a scalar value is required")
)

// ConversionError reports a failed conversion of one configuration value.
type ConversionError struct {
	Path  string
	Value string
	Type  reflect.Type
	Err   error
}

func (e *ConversionError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("cannot convert configuration section %q to %s: %v", e.Path, catalog.TypeString(e.Type), e.Err)
	}
	return fmt.Sprintf("cannot convert %q at %q to %s: %v", e.Value, e.Path, catalog.TypeString(e.Type), e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }
