// Package dyntype synthesizes named placeholder types at runtime.
//
// A configuration value such as "@x" or "!x@Parent" asks for a new type called
// x instead of a lookup of an existing one. The synthesized type is a struct
// carrying a marker field whose tag records the name:
//
//	struct {
//		Dynamic struct{} `dynamic:"x"`
//	}
//
// When a closed parent type is given it is held in a field named Base. When
// the parent is an open generic, the parent is instantiated over the marker
// type and its constructors are forwarded. The marker tag then also names the
// generic, so "@x" and "@x@Parent" are distinct types:
//
//	struct {
//		Dynamic struct{} `dynamic:"x" parent:"Parent"`
//	}
package dyntype

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// Field and tag names used by synthesized types.
const (
	MarkerField = "Dynamic"
	BaseField   = "Base"
	Tag         = "dynamic"
	ParentTag   = "parent"
)

// Sigils that mark a type name as a request for a synthesized type.
const (
	SigilAt   = '@'
	SigilBang = '!'
)

// Static errors for dynamic type synthesis
var (
	ErrEmptyName           = errors.New("dynamic type name is empty")
	ErrVariadicConstructor = errors.New("variadic constructors are not supported for dynamic types")
	ErrConstructorShape    = errors.New("constructor must be a function returning the parent type")
	ErrNoConstructor       = errors.New("no constructor accepts the given arguments")
	ErrParentType          = errors.New("unsupported dynamic type parent")
)

var markerType = reflect.TypeOf(struct{}{})

// OpenGeneric is a generic parent type with one type parameter. Close
// instantiates it over arg and returns the closed type plus its constructor
// functions.
type OpenGeneric struct {
	Name  string
	Close func(arg reflect.Type) (reflect.Type, []any, error)
}

// Type is a synthesized type.
type Type struct {
	Name   string
	Type   reflect.Type
	Parent reflect.Type

	constructors []reflect.Value
}

// Constructors returns the forwarded parent constructors.
func (t *Type) Constructors() []reflect.Value {
	return t.constructors
}

// New creates an instance. With forwarded constructors the first one whose
// parameters accept args is called and its result returned; otherwise a zero
// value of the synthesized type is returned.
func (t *Type) New(args ...any) (reflect.Value, error) {
	if len(t.constructors) == 0 {
		if len(args) > 0 {
			return reflect.Value{}, fmt.Errorf("%w: %s takes no arguments", ErrNoConstructor, t.Name)
		}
		return reflect.New(t.Type).Elem(), nil
	}
	for _, ctor := range t.constructors {
		in, ok := forwardArgs(ctor.Type(), args)
		if !ok {
			continue
		}
		out := ctor.Call(in)
		if len(out) == 2 && !out[1].IsNil() {
			err, _ := out[1].Interface().(error)
			return reflect.Value{}, fmt.Errorf("constructing %s: %w", t.Name, err)
		}
		return out[0], nil
	}
	return reflect.Value{}, fmt.Errorf("%w: %s", ErrNoConstructor, t.Name)
}

func forwardArgs(ft reflect.Type, args []any) ([]reflect.Value, bool) {
	if ft.NumIn() != len(args) {
		return nil, false
	}
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		pt := ft.In(i)
		if a == nil {
			switch pt.Kind() {
			case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
				in[i] = reflect.Zero(pt)
				continue
			}
			return nil, false
		}
		v := reflect.ValueOf(a)
		if !v.Type().AssignableTo(pt) {
			return nil, false
		}
		in[i] = v
	}
	return in, true
}

type cacheKey struct {
	name   string
	parent any
}

// Factory creates and memoizes synthesized types. Requests with the same name
// and parent return the identical *Type.
type Factory struct {
	mu    sync.Mutex
	cache map[cacheKey]*Type
}

// NewFactory creates an empty factory.
func NewFactory() *Factory {
	return &Factory{cache: make(map[cacheKey]*Type)}
}

// Default is the process-wide factory.
var Default = NewFactory()

// Create returns the synthesized type called name. parent may be nil, a
// reflect.Type, or an *OpenGeneric.
func (f *Factory) Create(name string, parent any) (*Type, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	switch parent.(type) {
	case nil, reflect.Type, *OpenGeneric:
	default:
		return nil, fmt.Errorf("%w: %T", ErrParentType, parent)
	}
	key := cacheKey{name: name, parent: parent}

	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.cache[key]; ok {
		return t, nil
	}

	var (
		t   *Type
		err error
	)
	switch p := parent.(type) {
	case nil:
		t = &Type{Name: name, Type: reflect.StructOf([]reflect.StructField{marker(name, "")})}
	case reflect.Type:
		t = &Type{
			Name: name,
			Type: reflect.StructOf([]reflect.StructField{
				marker(name, ""),
				{Name: BaseField, Type: p},
			}),
			Parent: p,
		}
	case *OpenGeneric:
		t, err = closeOpen(name, p)
	}
	if err != nil {
		return nil, err
	}
	f.cache[key] = t
	return t, nil
}

func marker(name, parent string) reflect.StructField {
	tag := fmt.Sprintf(`%s:%q`, Tag, name)
	if parent != "" {
		tag += fmt.Sprintf(` %s:%q`, ParentTag, parent)
	}
	return reflect.StructField{
		Name: MarkerField,
		Type: markerType,
		Tag:  reflect.StructTag(tag),
	}
}

func closeOpen(name string, open *OpenGeneric) (*Type, error) {
	if open == nil || open.Close == nil {
		return nil, fmt.Errorf("%w: open generic without Close", ErrParentType)
	}
	parent := open.Name
	if parent == "" {
		parent = "?"
	}
	self := reflect.StructOf([]reflect.StructField{marker(name, parent)})
	closed, ctors, err := open.Close(self)
	if err != nil {
		return nil, fmt.Errorf("closing %s over %s: %w", open.Name, name, err)
	}
	t := &Type{Name: name, Type: self, Parent: closed}
	for _, c := range ctors {
		cv := reflect.ValueOf(c)
		if cv.Kind() != reflect.Func {
			return nil, fmt.Errorf("%w: got %T", ErrConstructorShape, c)
		}
		ct := cv.Type()
		if ct.IsVariadic() {
			return nil, fmt.Errorf("%w: %s constructor %s", ErrVariadicConstructor, open.Name, ct)
		}
		if !returnsParent(ct, closed) {
			return nil, fmt.Errorf("%w: %s returns %s", ErrConstructorShape, ct, closed)
		}
		t.constructors = append(t.constructors, cv)
	}
	return t, nil
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

func returnsParent(ct, parent reflect.Type) bool {
	switch ct.NumOut() {
	case 1:
	case 2:
		if ct.Out(1) != errorType {
			return false
		}
	default:
		return false
	}
	out := ct.Out(0)
	return out == parent || (out.Kind() == reflect.Pointer && out.Elem() == parent)
}

// NameOf returns the synthesized name of t.
func NameOf(t reflect.Type) (string, bool) {
	if t == nil {
		return "", false
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct || t.NumField() == 0 {
		return "", false
	}
	f := t.Field(0)
	if f.Name != MarkerField || f.Type != markerType {
		return "", false
	}
	return f.Tag.Lookup(Tag)
}

// IsDynamic reports whether t was synthesized by a Factory.
func IsDynamic(t reflect.Type) bool {
	_, ok := NameOf(t)
	return ok
}

// ParseSigil splits a sigil type name. "@x" yields ("x", ""), "!x@Parent"
// yields ("x", "Parent"). ok is false when s does not start with a sigil.
func ParseSigil(s string) (name, parent string, ok bool) {
	if s == "" || (s[0] != SigilAt && s[0] != SigilBang) {
		return "", "", false
	}
	rest := s[1:]
	if i := strings.IndexAny(rest, string([]rune{SigilAt, SigilBang})); i >= 0 {
		return rest[:i], rest[i+1:], true
	}
	return rest, "", true
}
