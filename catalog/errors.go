package catalog

import (
	"errors"
	"fmt"
)

// Static errors for the catalog
var (
	ErrLibraryNameEmpty   = errors.New("library name is empty")
	ErrLibraryRegistered  = errors.New("library already registered")
	ErrNotAFunction       = errors.New("registered value is not a function")
	ErrParamCount         = errors.New("parameter name count does not match function arity")
	ErrUnknownParam       = errors.New("unknown parameter")
	ErrNotAnInterface     = errors.New("registered value is not an interface pointer")
	ErrNotAVariable       = errors.New("registered value is not a pointer to a variable")
	ErrPropertyShape      = errors.New("property getter must take no arguments and return one value")
	ErrEnumValueType      = errors.New("enum value has the wrong type")
	ErrGenericArity       = errors.New("generic arity must be positive")
	ErrTypeNotFound       = errors.New("type not found")
	ErrAmbiguousType      = errors.New("type name is ambiguous")
	ErrTypeSyntax         = errors.New("invalid type name")
	ErrTypeArgumentCount  = errors.New("wrong number of type arguments")
	ErrStaticScopeMissing = errors.New("no type or holder with static members")
	ErrManifestFormat     = errors.New("unsupported manifest format")
	ErrNoStrategy         = errors.New("catalog strategy is nil")
)

// TypeNotFoundError reports a type name that could not be resolved.
type TypeNotFoundError struct {
	Name string
}

func (e *TypeNotFoundError) Error() string {
	return fmt.Sprintf("type not found: %q", e.Name)
}

func (e *TypeNotFoundError) Unwrap() error { return ErrTypeNotFound }
