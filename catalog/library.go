package catalog

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/GoCodeAlone/configprocessor/dyntype"
)

// Library is a unit of registration, normally one Go package. It owns the
// types, holders and generic definitions eligible for configuration binding.
type Library struct {
	Name         string
	Dependencies []string

	types    []*TypeDef
	generics []*GenericTypeDef
	holders  []*Holder
	errs     []error
}

// NewLibrary starts the registration of a library named by its package path.
func NewLibrary(name string) *Library {
	lib := &Library{Name: name}
	if name == "" {
		lib.errs = append(lib.errs, ErrLibraryNameEmpty)
	}
	return lib
}

// Package returns the last segment of the library path.
func (l *Library) Package() string {
	if i := strings.LastIndex(l.Name, "/"); i >= 0 {
		return l.Name[i+1:]
	}
	return l.Name
}

// DependsOn records libraries that are included whenever this one is.
func (l *Library) DependsOn(names ...string) *Library {
	l.Dependencies = append(l.Dependencies, names...)
	return l
}

// Err returns the accumulated registration errors.
func (l *Library) Err() error {
	return errors.Join(l.errs...)
}

// Types returns the registered types.
func (l *Library) Types() []*TypeDef { return l.types }

// Holders returns the registered function holders.
func (l *Library) Holders() []*Holder { return l.holders }

// GenericTypes returns the registered generic types.
func (l *Library) GenericTypes() []*GenericTypeDef { return l.generics }

func (l *Library) addType(name string, t reflect.Type, kind TypeKind) *TypeDef {
	if name == "" {
		name = t.Name()
	}
	def := &TypeDef{
		Name:    name,
		Library: l.Name,
		Type:    t,
		Kind:    kind,
		Methods: make(map[string]*MethodSpec),
	}
	l.types = append(l.types, def)
	return def
}

// Type registers the type of v. Pass a zero value, e.g. Type(Options{}).
func (l *Library) Type(v any) *TypeBuilder {
	return l.TypeAs("", v)
}

// TypeAs registers the type of v under an explicit name.
func (l *Library) TypeAs(name string, v any) *TypeBuilder {
	t := reflect.TypeOf(v)
	if t == nil {
		l.errs = append(l.errs, fmt.Errorf("%w: nil type", ErrTypeSyntax))
		return &TypeBuilder{lib: l, def: &TypeDef{Methods: map[string]*MethodSpec{}}}
	}
	return &TypeBuilder{lib: l, def: l.addType(name, t, KindStruct)}
}

// Interface registers an interface type given as a nil pointer, e.g.
// Interface((*Registry)(nil)).
func (l *Library) Interface(ptr any) *TypeBuilder {
	t := reflect.TypeOf(ptr)
	if t == nil || t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Interface {
		l.errs = append(l.errs, fmt.Errorf("%w: %T", ErrNotAnInterface, ptr))
		return &TypeBuilder{lib: l, def: &TypeDef{Methods: map[string]*MethodSpec{}}}
	}
	return &TypeBuilder{lib: l, def: l.addType("", t.Elem(), KindInterface)}
}

// Enum registers a named value table for the type of zero. Every value in
// names must have that type.
func (l *Library) Enum(zero any, names map[string]any) *TypeBuilder {
	t := reflect.TypeOf(zero)
	def := l.addType("", t, KindEnum)
	enum := &EnumDef{Type: t, values: make(map[string]reflect.Value, len(names))}
	for n, v := range names {
		rv := reflect.ValueOf(v)
		if rv.Type() != t {
			l.errs = append(l.errs, fmt.Errorf("%w: %s.%s is %T", ErrEnumValueType, t, n, v))
			continue
		}
		enum.Names = append(enum.Names, n)
		enum.values[strings.ToLower(n)] = rv
	}
	slices.Sort(enum.Names)
	def.Enum = enum
	return &TypeBuilder{lib: l, def: def}
}

// GenericType registers a generic type with the given arity.
func (l *Library) GenericType(name string, arity int, instantiate func(types []reflect.Type) (reflect.Type, []any, error)) *Library {
	if arity <= 0 {
		l.errs = append(l.errs, fmt.Errorf("%w: %s", ErrGenericArity, name))
		return l
	}
	def := &GenericTypeDef{Name: name, Library: l.Name, Arity: arity, Instantiate: instantiate}
	if arity == 1 {
		def.open = &dyntype.OpenGeneric{
			Name: qualify(l.Name, name),
			Close: func(arg reflect.Type) (reflect.Type, []any, error) {
				return instantiate([]reflect.Type{arg})
			},
		}
	}
	l.generics = append(l.generics, def)
	return l
}

// Holder starts a named group of package-level functions and values, the
// equivalent of a static class.
func (l *Library) Holder(name string) *Holder {
	for _, h := range l.holders {
		if h.Name == name {
			return h
		}
	}
	h := &Holder{Name: name, lib: l}
	l.holders = append(l.holders, h)
	return h
}

// TypeBuilder adds details to a registered type.
type TypeBuilder struct {
	lib *Library
	def *TypeDef
}

// Def returns the definition being built.
func (b *TypeBuilder) Def() *TypeDef { return b.def }

// Method names the parameters of an instance method, excluding the receiver.
func (b *TypeBuilder) Method(name string, params ...string) *TypeBuilder {
	b.def.Methods[name] = &MethodSpec{Name: name, Params: params}
	return b
}

// MethodDefault sets the default value of a method parameter.
func (b *TypeBuilder) MethodDefault(method, param string, value any) *TypeBuilder {
	spec, ok := b.def.Methods[method]
	if !ok || !slices.ContainsFunc(spec.Params, func(p string) bool { return strings.EqualFold(p, param) }) {
		b.lib.errs = append(b.lib.errs, fmt.Errorf("%w: %s.%s", ErrUnknownParam, method, param))
		return b
	}
	if spec.Defaults == nil {
		spec.Defaults = make(map[string]any)
	}
	spec.Defaults[param] = value
	return b
}

// Constructor registers a constructor function returning the type or a
// pointer to it, optionally with an error.
func (b *TypeBuilder) Constructor(fn any) *TypeBuilder {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		b.lib.errs = append(b.lib.errs, fmt.Errorf("%w: constructor of %s", ErrNotAFunction, b.def.Name))
		return b
	}
	b.def.Constructors = append(b.def.Constructors, v)
	return b
}

// Static registers a static member reachable through Type::Member.
func (b *TypeBuilder) Static(name string, v any) *TypeBuilder {
	m, err := newMember(name, b.def.Name, v)
	if err != nil {
		b.lib.errs = append(b.lib.errs, err)
		return b
	}
	b.def.statics = append(b.def.statics, m)
	return b
}

func newMember(name, owner string, v any) (*Member, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Func:
		return &Member{Name: name, Owner: owner, Kind: MemberFunc, Value: rv, Expr: FuncExpr(rv)}, nil
	case reflect.Pointer:
		return &Member{Name: name, Owner: owner, Kind: MemberVar, Value: rv}, nil
	}
	return nil, fmt.Errorf("%w: %s.%s is %T", ErrNotAVariable, owner, name, v)
}

// Holder groups package-level functions and values under a name.
type Holder struct {
	Name     string
	lib      *Library
	funcs    []*Func
	generics []*GenericFunc
	members  []*Member
}

// QualifiedName returns "pkg.Holder".
func (h *Holder) QualifiedName() string { return qualify(h.lib.Name, h.Name) }

// Funcs returns the registered functions.
func (h *Holder) Funcs() []*Func { return h.funcs }

// Generics returns the registered generic functions.
func (h *Holder) Generics() []*GenericFunc { return h.generics }

// Members returns the static members, including every registered function.
func (h *Holder) Members() []*Member { return h.members }

// Func registers fn. Use Params to name its parameters.
func (h *Holder) Func(name string, fn any) *FuncBuilder {
	f, err := newFunc(name, h.Name, h.lib.Name, fn, nil, nil)
	if err != nil {
		h.lib.errs = append(h.lib.errs, err)
		return &FuncBuilder{holder: h, fn: &Func{Name: name}, member: &Member{}}
	}
	m := &Member{Name: name, Owner: h.Name, Kind: MemberFunc, Value: f.Value, Expr: f.Expr}
	h.funcs = append(h.funcs, f)
	h.members = append(h.members, m)
	return &FuncBuilder{holder: h, fn: f, member: m}
}

// Generic registers a generic function with the given arity.
func (h *Holder) Generic(name string, arity int, instantiate func(types []reflect.Type) (any, error)) *GenericBuilder {
	g := &GenericFunc{
		Name:        name,
		Holder:      h.Name,
		Library:     h.lib.Name,
		Arity:       arity,
		Instantiate: instantiate,
		Expr:        h.lib.Name + "." + name,
	}
	if arity <= 0 {
		h.lib.errs = append(h.lib.errs, fmt.Errorf("%w: %s", ErrGenericArity, name))
		return &GenericBuilder{holder: h, fn: g}
	}
	h.generics = append(h.generics, g)
	return &GenericBuilder{holder: h, fn: g}
}

// Var registers a pointer to a package-level variable.
func (h *Holder) Var(name string, ptr any) *Holder {
	rv := reflect.ValueOf(ptr)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		h.lib.errs = append(h.lib.errs, fmt.Errorf("%w: %s.%s", ErrNotAVariable, h.Name, name))
		return h
	}
	h.members = append(h.members, &Member{Name: name, Owner: h.Name, Kind: MemberVar, Value: rv, Expr: h.lib.Name + "." + name})
	return h
}

// Property registers a getter function.
func (h *Holder) Property(name string, getter any) *Holder {
	rv := reflect.ValueOf(getter)
	if rv.Kind() != reflect.Func || rv.Type().NumIn() != 0 || rv.Type().NumOut() != 1 {
		h.lib.errs = append(h.lib.errs, fmt.Errorf("%w: %s.%s", ErrPropertyShape, h.Name, name))
		return h
	}
	h.members = append(h.members, &Member{Name: name, Owner: h.Name, Kind: MemberProperty, Value: rv, Expr: FuncExpr(rv)})
	return h
}

// FuncBuilder adds details to a registered function.
type FuncBuilder struct {
	holder *Holder
	fn     *Func
	member *Member
}

// Params names the function parameters in order.
func (b *FuncBuilder) Params(names ...string) *FuncBuilder {
	if b.fn.Value.IsValid() && len(names) != len(b.fn.Params) {
		b.holder.lib.errs = append(b.holder.lib.errs,
			fmt.Errorf("%w: %s has %d parameters, %d names given", ErrParamCount, b.fn.Name, len(b.fn.Params), len(names)))
		return b
	}
	for i := range b.fn.Params {
		b.fn.Params[i].Name = names[i]
	}
	return b
}

// Default sets a parameter default.
func (b *FuncBuilder) Default(param string, value any) *FuncBuilder {
	i := paramIndex(b.fn.Params, param)
	if i < 0 {
		b.holder.lib.errs = append(b.holder.lib.errs, fmt.Errorf("%w: %s.%s", ErrUnknownParam, b.fn.Name, param))
		return b
	}
	b.fn.Params[i].HasDefault = true
	b.fn.Params[i].Default = value
	return b
}

// Expr overrides the expression used by generated code.
func (b *FuncBuilder) Expr(expr string) *FuncBuilder {
	b.fn.Expr = expr
	b.member.Expr = expr
	return b
}

// Func continues registration on the same holder.
func (b *FuncBuilder) Func(name string, fn any) *FuncBuilder { return b.holder.Func(name, fn) }

// GenericBuilder adds details to a registered generic function.
type GenericBuilder struct {
	holder *Holder
	fn     *GenericFunc
}

// Params names the parameters of the instantiated function.
func (b *GenericBuilder) Params(names ...string) *GenericBuilder {
	b.fn.ParamNames = names
	return b
}

// Default sets a parameter default.
func (b *GenericBuilder) Default(param string, value any) *GenericBuilder {
	if b.fn.Defaults == nil {
		b.fn.Defaults = make(map[string]any)
	}
	b.fn.Defaults[param] = value
	return b
}

// Expr overrides the expression naming the uninstantiated function.
func (b *GenericBuilder) Expr(expr string) *GenericBuilder {
	b.fn.Expr = expr
	return b
}

// registrationTable is the process-wide set of registered libraries.
type registrationTable struct {
	mu         sync.RWMutex
	libs       map[string]*Library
	generation uint64
}

var registry = &registrationTable{libs: make(map[string]*Library)}

// Register adds lib to the process-wide table.
func Register(lib *Library) error {
	if err := lib.Err(); err != nil {
		return fmt.Errorf("library %s: %w", lib.Name, err)
	}
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if _, ok := registry.libs[lib.Name]; ok {
		return fmt.Errorf("%w: %s", ErrLibraryRegistered, lib.Name)
	}
	registry.libs[lib.Name] = lib
	registry.generation++
	return nil
}

// MustRegister is like Register but panics on error. Intended for init.
func MustRegister(lib *Library) *Library {
	if err := Register(lib); err != nil {
		panic(err)
	}
	return lib
}

// Unregister removes a library. It exists for tests.
func Unregister(name string) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if _, ok := registry.libs[name]; ok {
		delete(registry.libs, name)
		registry.generation++
	}
}

// Lookup returns a registered library by name.
func Lookup(name string) (*Library, bool) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	lib, ok := registry.libs[name]
	return lib, ok
}

// Registered returns every registered library ordered by name.
func Registered() []*Library {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	out := make([]*Library, 0, len(registry.libs))
	for _, lib := range registry.libs {
		out = append(out, lib)
	}
	slices.SortFunc(out, func(a, b *Library) int { return strings.Compare(a.Name, b.Name) })
	return out
}

func generation() uint64 {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	return registry.generation
}

// libraryOf returns the registered library that declares t.
func libraryOf(t reflect.Type) (*Library, bool) {
	for _, lib := range Registered() {
		for _, def := range lib.types {
			if def.Type == t {
				return lib, true
			}
		}
	}
	// fall back to the package path of named types
	pkg := t.PkgPath()
	if t.Kind() == reflect.Pointer {
		pkg = t.Elem().PkgPath()
	}
	if pkg == "" {
		return nil, false
	}
	return Lookup(pkg)
}
