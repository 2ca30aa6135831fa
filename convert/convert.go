// Package convert turns configuration values into typed Go values.
//
// Rules are applied in order: configuration sections, arrays and slices,
// maps and Add containers, strings (with connection string lookup and
// environment expansion), empty values, pointers, enums, type and library
// names, numbers and durations, builder flags, static member references and
// type instantiation for interfaces and funcs, and finally object binding.
package convert

import (
	"encoding"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/golobby/cast"
	"github.com/shopspring/decimal"

	"github.com/GoCodeAlone/configprocessor/catalog"
	"github.com/GoCodeAlone/configprocessor/config"
)

// ConnectionStringName is the argument name that triggers a named
// connection string lookup.
const ConnectionStringName = "ConnectionString"

var (
	sectionType         = reflect.TypeOf((*config.Section)(nil)).Elem()
	rootType            = reflect.TypeOf((*config.Root)(nil))
	stringType          = reflect.TypeOf("")
	durationType        = reflect.TypeOf(time.Duration(0))
	decimalType         = reflect.TypeOf(decimal.Decimal{})
	reflectTypeType     = reflect.TypeOf((*reflect.Type)(nil)).Elem()
	libraryType         = reflect.TypeOf((*catalog.Library)(nil))
	errorType           = reflect.TypeOf((*error)(nil)).Elem()
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
)

// Argument is a configuration value to convert.
type Argument struct {
	// Name is the parameter or argument name. "ConnectionString" triggers a
	// connection string lookup for string targets.
	Name string
	// Key is the key of the directive the value belongs to.
	Key string
	// Section holds the value.
	Section config.Section
}

// Catalog is the part of *catalog.Catalog used by conversions.
type Catalog interface {
	ResolveType(name string) (reflect.Type, error)
	Enum(t reflect.Type) (*catalog.EnumDef, bool)
	Library(name string) (*catalog.Library, bool)
	LookupMembers(typeName, member string) (*catalog.StaticScope, []*catalog.Member, error)
	Constructors(t reflect.Type) []reflect.Value
}

// ObjectBinder binds a configuration section to a complex target. handled is
// false when the binder does not apply and the default decoding should run.
type ObjectBinder func(arg Argument, target reflect.Type) (value reflect.Value, handled bool, err error)

// Converter converts configuration values.
type Converter struct {
	Catalog Catalog
	Root    *config.Root
	Binder  ObjectBinder
	// LookupEnv resolves environment references, defaulting to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// Convert converts arg to a value of type t. An absent or empty scalar yields
// the zero value of t.
func (c *Converter) Convert(arg Argument, t reflect.Type) (reflect.Value, error) {
	s := arg.Section
	if s == nil {
		return reflect.Zero(t), nil
	}
	if err := config.CheckMixed(s); err != nil {
		return reflect.Value{}, err //nolint:wrapcheck // already carries the path
	}

	switch {
	case t == sectionType:
		return reflect.ValueOf(&s).Elem(), nil
	case t == rootType:
		return reflect.ValueOf(c.root(s)), nil
	}

	if !config.HasChildren(s) {
		value, _ := s.Value()
		v, err := c.convertScalar(arg, value, t)
		if err != nil {
			return reflect.Value{}, c.wrap(s, value, t, err)
		}
		return v, nil
	}

	v, err := c.convertSection(arg, t)
	if err != nil {
		return reflect.Value{}, c.wrap(s, "", t, err)
	}
	return v, nil
}

// CanConvert reports whether Convert succeeds. It is used for trial
// conversions where failure means "not viable".
func (c *Converter) CanConvert(arg Argument, t reflect.Type) bool {
	_, err := c.Convert(arg, t)
	return err == nil
}

// ConvertString converts a literal string such as a map key.
func (c *Converter) ConvertString(value string, t reflect.Type) (reflect.Value, error) {
	return c.convertScalar(Argument{}, value, t)
}

func (c *Converter) wrap(s config.Section, value string, t reflect.Type, err error) error {
	var ce *ConversionError
	if errors.As(err, &ce) {
		return err
	}
	return &ConversionError{Path: s.Path(), Value: value, Type: t, Err: err}
}

func (c *Converter) root(s config.Section) *config.Root {
	if c.Root != nil {
		return c.Root
	}
	return s.Root()
}

func (c *Converter) convertSection(arg Argument, t reflect.Type) (reflect.Value, error) {
	s := arg.Section
	switch t.Kind() {
	case reflect.Array:
		children := s.Children()
		out := reflect.New(t).Elem()
		for i, child := range children {
			if i >= t.Len() {
				return reflect.Value{}, fmt.Errorf("%w: %d elements for %s", ErrUnsupportedTarget, len(children), t)
			}
			v, err := c.Convert(Argument{Name: child.Key(), Key: arg.Key, Section: child}, t.Elem())
			if err != nil {
				return reflect.Value{}, err
			}
			out.Index(i).Set(v)
		}
		return out, nil
	case reflect.Slice:
		children := s.Children()
		out := reflect.MakeSlice(t, 0, len(children))
		for _, child := range children {
			v, err := c.Convert(Argument{Name: child.Key(), Key: arg.Key, Section: child}, t.Elem())
			if err != nil {
				return reflect.Value{}, err
			}
			out = reflect.Append(out, v)
		}
		return out, nil
	case reflect.Map:
		out := reflect.MakeMap(t)
		for _, child := range s.Children() {
			k, err := c.convertScalar(Argument{}, child.Key(), t.Key())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("map key %q: %w", child.Key(), err)
			}
			v, err := c.Convert(Argument{Name: child.Key(), Key: arg.Key, Section: child}, t.Elem())
			if err != nil {
				return reflect.Value{}, err
			}
			out.SetMapIndex(k, v)
		}
		return out, nil
	case reflect.Interface:
		if t.NumMethod() == 0 {
			return reflect.ValueOf(plain(s)), nil
		}
	}
	if adder, ok := AddMethod(t); ok {
		return c.convertContainer(arg, t, adder)
	}
	return c.bindObject(arg, t)
}

// AddMethod returns the Add method of a container type or of its pointer.
// The method takes one element, or a key and a value.
func AddMethod(t reflect.Type) (reflect.Method, bool) {
	candidates := []reflect.Type{t}
	if t.Kind() != reflect.Pointer {
		candidates = append(candidates, reflect.PointerTo(t))
	}
	for _, ct := range candidates {
		if m, ok := ct.MethodByName("Add"); ok && (m.Type.NumIn() == 2 || m.Type.NumIn() == 3) {
			return m, true
		}
	}
	return reflect.Method{}, false
}

func (c *Converter) convertContainer(arg Argument, t reflect.Type, add reflect.Method) (reflect.Value, error) {
	container, err := c.Instantiate(t)
	if err != nil {
		return reflect.Value{}, err
	}
	recv := container
	if add.Type.In(0) != t {
		// the method is declared on the pointer
		ptr := reflect.New(t)
		ptr.Elem().Set(container)
		recv = ptr
	}
	for _, child := range arg.Section.Children() {
		in := []reflect.Value{recv}
		if add.Type.NumIn() == 3 {
			k, err := c.convertScalar(Argument{}, child.Key(), add.Type.In(1))
			if err != nil {
				return reflect.Value{}, fmt.Errorf("container key %q: %w", child.Key(), err)
			}
			in = append(in, k)
		}
		elemType := add.Type.In(add.Type.NumIn() - 1)
		v, err := c.Convert(Argument{Name: child.Key(), Key: arg.Key, Section: child}, elemType)
		if err != nil {
			return reflect.Value{}, err
		}
		out := add.Func.Call(append(in, v))
		if len(out) > 0 && out[len(out)-1].Type() == errorType && !out[len(out)-1].IsNil() {
			return reflect.Value{}, out[len(out)-1].Interface().(error) //nolint:forcetypeassert // checked above
		}
	}
	if recv.Type() != t {
		return recv.Elem(), nil
	}
	return recv, nil
}

// Instantiate creates a value of t using a registered constructor without
// parameters, else a zero value with nil maps allocated for pointers.
func (c *Converter) Instantiate(t reflect.Type) (reflect.Value, error) {
	if c.Catalog != nil {
		for _, ctor := range c.Catalog.Constructors(t) {
			ct := ctor.Type()
			if ct.NumIn() != 0 || ct.NumOut() == 0 {
				continue
			}
			out := ctor.Call(nil)
			if len(out) == 2 && !out[1].IsNil() {
				return reflect.Value{}, out[1].Interface().(error) //nolint:forcetypeassert // constructor contract
			}
			v := out[0]
			switch {
			case v.Type() == t:
				return v, nil
			case v.Type().Kind() == reflect.Pointer && v.Type().Elem() == t:
				return v.Elem(), nil
			case t.Kind() == reflect.Pointer && v.Type() == t.Elem():
				p := reflect.New(t.Elem())
				p.Elem().Set(v)
				return p, nil
			}
		}
	}
	switch t.Kind() {
	case reflect.Pointer:
		return reflect.New(t.Elem()), nil
	case reflect.Map:
		return reflect.MakeMap(t), nil
	case reflect.Slice:
		return reflect.MakeSlice(t, 0, 0), nil
	case reflect.Interface, reflect.Func, reflect.Chan:
		return reflect.Value{}, fmt.Errorf("%w: %s", ErrNotInstantiable, t)
	}
	return reflect.New(t).Elem(), nil
}

func (c *Converter) convertScalar(arg Argument, value string, t reflect.Type) (reflect.Value, error) {
	// string targets
	if t == stringType {
		if strings.EqualFold(arg.Name, ConnectionStringName) || strings.EqualFold(arg.Key, ConnectionStringName) {
			if arg.Section != nil {
				if cs, ok := c.root(arg.Section).ConnectionString(value); ok {
					return reflect.ValueOf(cs), nil
				}
			}
			return reflect.ValueOf(value), nil
		}
		return reflect.ValueOf(c.expand(value)), nil
	}

	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return reflect.Zero(t), nil
	}

	switch t.Kind() {
	case reflect.Slice:
		if t.Elem() == reflect.TypeOf(byte(0)) {
			return reflect.ValueOf([]byte(c.expand(value))).Convert(t), nil
		}
		elem, err := c.convertScalar(arg, value, t.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.Append(reflect.MakeSlice(t, 0, 1), elem), nil
	case reflect.Array:
		elem, err := c.convertScalar(arg, value, t.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		out := reflect.New(t).Elem()
		if t.Len() > 0 {
			out.Index(0).Set(elem)
		}
		return out, nil
	case reflect.Map:
		return reflect.Value{}, fmt.Errorf("%w: map from scalar", ErrUnsupportedTarget)
	case reflect.Pointer:
		if t != libraryType {
			inner, err := c.convertScalar(arg, value, t.Elem())
			if err != nil {
				return reflect.Value{}, err
			}
			if inner.Kind() == reflect.Pointer && inner.Type() == t {
				return inner, nil
			}
			p := reflect.New(t.Elem())
			p.Elem().Set(inner)
			return p, nil
		}
	}

	if c.Catalog != nil {
		if enum, ok := c.Catalog.Enum(t); ok {
			return parseEnum(enum, trimmed, t)
		}
	}

	switch t {
	case reflectTypeType:
		if c.Catalog == nil {
			return reflect.Value{}, ErrCatalogUnavailable
		}
		rt, err := c.Catalog.ResolveType(trimmed)
		if err != nil {
			return reflect.Value{}, err //nolint:wrapcheck // catalog errors name the type
		}
		return reflect.ValueOf(&rt).Elem(), nil
	case libraryType:
		if c.Catalog == nil {
			return reflect.Value{}, ErrCatalogUnavailable
		}
		if lib, ok := c.Catalog.Library(trimmed); ok {
			return reflect.ValueOf(lib), nil
		}
		if lib, ok := catalog.Lookup(trimmed); ok {
			return reflect.ValueOf(lib), nil
		}
		return reflect.Value{}, fmt.Errorf("%w: %s", ErrLibraryNotFound, trimmed)
	case durationType:
		d, err := ParseDuration(trimmed)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(d), nil
	case decimalType:
		d, err := decimal.NewFromString(trimmed)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("invalid decimal: %w", err)
		}
		return reflect.ValueOf(d), nil
	}

	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		if reflect.PointerTo(t).Implements(textUnmarshalerType) {
			return unmarshalText(trimmed, t)
		}
		raw := trimmed
		if t.Kind() == reflect.String {
			raw = c.expand(value)
		}
		v, err := cast.FromType(raw, t)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("invalid %s: %w", t.Kind(), err)
		}
		return reflect.ValueOf(v).Convert(t), nil
	}

	if reflect.PointerTo(t).Implements(textUnmarshalerType) {
		return unmarshalText(trimmed, t)
	}

	if _, ok := BuilderElem(t); ok {
		if b, err := strconv.ParseBool(trimmed); err == nil {
			if !b {
				return reflect.Zero(t), nil
			}
			return NoopBuilder(t), nil
		}
	}

	switch t.Kind() {
	case reflect.Interface:
		if t.NumMethod() == 0 {
			return reflect.ValueOf(&value).Elem().Convert(t), nil
		}
		return c.resolveReference(trimmed, t)
	case reflect.Func:
		return c.resolveReference(trimmed, t)
	}

	return c.bindObject(Argument{Name: arg.Name, Key: arg.Key, Section: arg.Section}, t)
}

func (c *Converter) expand(value string) string {
	if c.LookupEnv != nil {
		return config.ExpandWith(value, c.LookupEnv)
	}
	return config.ExpandWith(value, os.LookupEnv)
}

func parseEnum(enum *catalog.EnumDef, value string, t reflect.Type) (reflect.Value, error) {
	if v, ok := enum.Parse(value); ok {
		return v, nil
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return reflect.ValueOf(n).Convert(t), nil
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if n, err := strconv.ParseUint(value, 10, 64); err == nil {
			return reflect.ValueOf(n).Convert(t), nil
		}
	}
	return reflect.Value{}, fmt.Errorf("%w: %q (expected one of %s)", ErrUnknownEnumValue, value, strings.Join(enum.Names, ", "))
}

func unmarshalText(value string, t reflect.Type) (reflect.Value, error) {
	p := reflect.New(t)
	if err := p.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(value)); err != nil { //nolint:forcetypeassert // checked by caller
		return reflect.Value{}, fmt.Errorf("invalid %s: %w", t, err)
	}
	return p.Elem(), nil
}

// BuilderElem reports whether t is a builder function, func(T) or
// func(T) error, and returns T.
func BuilderElem(t reflect.Type) (reflect.Type, bool) {
	if t.Kind() != reflect.Func || t.NumIn() != 1 || t.IsVariadic() {
		return nil, false
	}
	switch t.NumOut() {
	case 0:
		return t.In(0), true
	case 1:
		if t.Out(0) == errorType {
			return t.In(0), true
		}
	}
	return nil, false
}

// NoopBuilder returns a builder of type t that does nothing.
func NoopBuilder(t reflect.Type) reflect.Value {
	return reflect.MakeFunc(t, func([]reflect.Value) []reflect.Value {
		out := make([]reflect.Value, t.NumOut())
		for i := range out {
			out[i] = reflect.Zero(t.Out(i))
		}
		return out
	})
}

// bindObject is the last rule: the injected binder, then mapstructure.
func (c *Converter) bindObject(arg Argument, t reflect.Type) (reflect.Value, error) {
	if c.Binder != nil && arg.Section != nil {
		v, handled, err := c.Binder(arg, t)
		if err != nil {
			return reflect.Value{}, err
		}
		if handled {
			return v, nil
		}
	}
	var input any
	if arg.Section != nil {
		input = plain(arg.Section)
	}
	out := reflect.New(t)
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out.Interface(),
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			durationHook,
			mapstructure.TextUnmarshallerHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return reflect.Value{}, fmt.Errorf("%w: %s: %w", ErrUnsupportedTarget, t, err)
	}
	if err := decoder.Decode(input); err != nil {
		return reflect.Value{}, fmt.Errorf("decoding %s: %w", t, err)
	}
	return out.Elem(), nil
}

// durationHook applies ParseDuration so object binding accepts the same
// spellings as direct arguments.
func durationHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != durationType || from.Kind() != reflect.String {
		return data, nil
	}
	s, _ := data.(string)
	if strings.TrimSpace(s) == "" {
		return time.Duration(0), nil
	}
	return ParseDuration(s)
}

// plain converts a section to string, []any or map[string]any.
func plain(s config.Section) any {
	children := s.Children()
	if len(children) == 0 {
		v, _ := s.Value()
		return v
	}
	keys := make([]string, len(children))
	for i, c := range children {
		keys[i] = c.Key()
	}
	if isSequence(keys) {
		out := make([]any, len(children))
		for i, c := range children {
			out[i] = plain(c)
		}
		return out
	}
	out := make(map[string]any, len(children))
	for _, c := range children {
		out[c.Key()] = plain(c)
	}
	return out
}

func isSequence(keys []string) bool {
	for i, k := range keys {
		if k != strconv.Itoa(i) {
			return false
		}
	}
	return len(keys) > 0
}

// Plain exposes the plain form of a section.
func Plain(s config.Section) any { return plain(s) }
