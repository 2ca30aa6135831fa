package resolve

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/GoCodeAlone/configprocessor/catalog"
)

// Static errors for method resolution
var (
	ErrMethodNotFound       = errors.New("no method matches the configuration entry")
	ErrAmbiguousMethod      = errors.New("configuration entry matches more than one method")
	ErrNilTarget            = errors.New("target is nil")
	ErrRootUnavailable      = errors.New("no root configuration available for parameter")
	ErrCannotSatisfy        = errors.New("parameter cannot be satisfied from configuration")
	ErrNoInstance           = errors.New("parameter type cannot be instantiated")
	ErrTargetNotAddressable = errors.New("target must be a pointer to set properties")
	ErrArgumentCount        = errors.New("wrong number of arguments")
)

// MethodNotFoundError reports a directive no candidate method accepts.
type MethodNotFoundError struct {
	MethodName     string
	Path           string
	Target         reflect.Type
	NameCandidates []string
	Arguments      []string
	Candidates     []*Method
}

func (e *MethodNotFoundError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "no method found for %q at %q on %s (tried %s) with arguments [%s]",
		e.MethodName, e.Path, catalog.TypeString(e.Target), strings.Join(e.NameCandidates, ", "), strings.Join(e.Arguments, ", "))
	writeCandidates(&b, e.Candidates)
	return b.String()
}

func (e *MethodNotFoundError) Unwrap() error { return ErrMethodNotFound }

// AmbiguousMethodError reports a directive that more than one candidate
// accepts equally well.
type AmbiguousMethodError struct {
	MethodName string
	Path       string
	Stage      string
	Candidates []*Method
}

func (e *AmbiguousMethodError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%q at %q is ambiguous (%s)", e.MethodName, e.Path, e.Stage)
	writeCandidates(&b, e.Candidates)
	return b.String()
}

func (e *AmbiguousMethodError) Unwrap() error { return ErrAmbiguousMethod }

func writeCandidates(b *strings.Builder, candidates []*Method) {
	if len(candidates) == 0 {
		b.WriteString("; no candidate methods")
		return
	}
	b.WriteString("; candidates:")
	for _, m := range candidates {
		b.WriteString("\n  ")
		b.WriteString(m.Signature())
	}
}

// NotFound is passed to the not-found handler. Setting Handled suppresses the
// error.
type NotFound struct {
	MethodName     string
	Path           string
	Target         reflect.Type
	NameCandidates []string
	Arguments      map[string]string
	Candidates     []*Method
	Handled        bool

	err error
}

// Err returns the error raised when the notification stays unhandled.
func (n *NotFound) Err() error { return n.err }

// NotFoundHandler observes and may handle unresolved directives.
type NotFoundHandler func(n *NotFound)
