// Package directive converts configuration sections into method call
// directives.
//
// Three notations are understood. Array notation lists calls as elements
// carrying a Name and optional Args:
//
//	"Sinks": [ { "Name": "AddConsole", "Args": { "Theme": "dark" } }, "AddDebug" ]
//
// Object notation uses the key as the method name. A false value disables
// the call, true makes a call without arguments, any other scalar is the
// single argument and a section supplies named arguments:
//
//	"Sinks": { "AddConsole": { "Theme": "dark" }, "AddDebug": true, "AddFile": "app.log" }
//
// Method names may carry type arguments, either inline as Append<T1|T2> or
// as Append`2 with the list given by a TypeArguments argument.
package directive

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/GoCodeAlone/configprocessor/config"
)

// Reserved configuration keys
const (
	NameKey          = "Name"
	ArgsKey          = "Args"
	TypeArgumentsKey = "TypeArguments"
)

// Static errors for directive parsing
var (
	ErrMissingName       = errors.New("array element has no method name")
	ErrMethodNameSyntax  = errors.New("invalid method name")
	ErrTypeArgumentCount = errors.New("type argument count does not match generic arity")
)

// MissingNameError reports an array element without a Name key.
type MissingNameError struct {
	Path string
}

func (e *MissingNameError) Error() string {
	return fmt.Sprintf("configuration section %q is an array element without a %q key", e.Path, NameKey)
}

func (e *MissingNameError) Unwrap() error { return ErrMissingName }

// TypeScope resolves type names.
type TypeScope interface {
	ResolveType(name string) (reflect.Type, error)
}

// TypeResolver resolves a type argument once a generic method is chosen.
type TypeResolver func(scope TypeScope) (reflect.Type, error)

// NamedType returns a resolver for a textual type name.
func NamedType(name string) TypeResolver {
	return func(scope TypeScope) (reflect.Type, error) {
		return scope.ResolveType(name)
	}
}

// Argument is a supplied argument. An empty Name marks a positional value.
type Argument struct {
	Name    string
	Section config.Section
}

// Directive is one configuration entry that becomes a single method call.
type Directive struct {
	// MethodName is the bare method name without type arguments.
	MethodName string
	// Key is the configuration key or Name value the directive came from.
	Key string
	// TypeNames are the textual type arguments.
	TypeNames []string
	// TypeArguments resolve TypeNames.
	TypeArguments []TypeResolver
	// Source is the section the directive was built from.
	Source config.Section
	// ArgsSection holds the arguments: the Args sub-section or Source.
	ArgsSection config.Section
	// Arguments are the supplied arguments in configuration order.
	Arguments []Argument
	// ArrayElement reports that the directive came from array notation.
	ArrayElement bool
}

// ArgumentNames returns the supplied argument names in order.
func (d *Directive) ArgumentNames() []string {
	out := make([]string, len(d.Arguments))
	for i, a := range d.Arguments {
		out[i] = a.Name
	}
	return out
}

// Argument returns the supplied argument called name, case-insensitively.
func (d *Directive) Argument(name string) (Argument, bool) {
	for _, a := range d.Arguments {
		if strings.EqualFold(a.Name, name) {
			return a, true
		}
	}
	return Argument{}, false
}

// IsGeneric reports whether the directive supplies type arguments.
func (d *Directive) IsGeneric() bool { return len(d.TypeArguments) > 0 }

// ResolveTypeArguments resolves every type argument against scope.
func (d *Directive) ResolveTypeArguments(scope TypeScope) ([]reflect.Type, error) {
	out := make([]reflect.Type, len(d.TypeArguments))
	for i, r := range d.TypeArguments {
		t, err := r(scope)
		if err != nil {
			return nil, fmt.Errorf("type argument %q of %s: %w", d.TypeNames[i], d.MethodName, err)
		}
		out[i] = t
	}
	return out, nil
}

func (d *Directive) String() string {
	var b strings.Builder
	b.WriteString(d.MethodName)
	if len(d.TypeNames) > 0 {
		b.WriteString("<" + strings.Join(d.TypeNames, "|") + ">")
	}
	b.WriteString("(")
	for i, a := range d.Arguments {
		if i > 0 {
			b.WriteString(", ")
		}
		name := a.Name
		if name == "" {
			name = "_"
		}
		b.WriteString(name)
		if v, ok := a.Section.Value(); ok && !config.HasChildren(a.Section) {
			b.WriteString("=" + strconv.Quote(v))
		}
	}
	b.WriteString(")")
	return b.String()
}

// IsPositionalSequence reports whether names are exactly "0", "1", ... in
// order. An empty list is not a sequence.
func IsPositionalSequence(names []string) bool {
	if len(names) == 0 {
		return false
	}
	for i, n := range names {
		if n != strconv.Itoa(i) {
			return false
		}
	}
	return true
}

// ParseMethodName splits "Name<T1|T2>" into the bare name and type names.
// "Name`N" yields the bare name and arity N with no type names; the caller
// supplies the list from the TypeArguments argument.
func ParseMethodName(raw string) (name string, typeNames []string, arity int, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil, 0, fmt.Errorf("%w: empty", ErrMethodNameSyntax)
	}
	if open := strings.IndexByte(raw, '<'); open >= 0 {
		if open == 0 || !strings.HasSuffix(raw, ">") {
			return "", nil, 0, fmt.Errorf("%w: %s", ErrMethodNameSyntax, raw)
		}
		typeNames, err = splitTypeList(raw[open+1 : len(raw)-1])
		if err != nil {
			return "", nil, 0, fmt.Errorf("%w: %s", ErrMethodNameSyntax, raw)
		}
		return raw[:open], typeNames, len(typeNames), nil
	}
	if tick := strings.IndexByte(raw, '`'); tick >= 0 {
		n, convErr := strconv.Atoi(raw[tick+1:])
		if tick == 0 || convErr != nil || n <= 0 {
			return "", nil, 0, fmt.Errorf("%w: %s", ErrMethodNameSyntax, raw)
		}
		return raw[:tick], nil, n, nil
	}
	return raw, nil, 0, nil
}

// splitTypeList splits on top-level '|' so nested generic arguments such as
// Box<a|b> stay intact.
func splitTypeList(s string) ([]string, error) {
	var (
		out   []string
		depth int
		start int
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<', '[':
			depth++
		case '>', ']':
			depth--
			if depth < 0 {
				return nil, ErrMethodNameSyntax
			}
		case '|':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, ErrMethodNameSyntax
	}
	out = append(out, strings.TrimSpace(s[start:]))
	for _, n := range out {
		if n == "" {
			return nil, ErrMethodNameSyntax
		}
	}
	return out, nil
}
