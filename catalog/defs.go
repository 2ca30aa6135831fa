package catalog

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"

	"github.com/GoCodeAlone/configprocessor/dyntype"
)

// Param describes one function parameter.
type Param struct {
	Name       string
	Type       reflect.Type
	HasDefault bool
	Default    any
}

// DefaultValue returns the default as a value of the parameter type.
func (p Param) DefaultValue() reflect.Value {
	if !p.HasDefault || p.Default == nil {
		return reflect.Zero(p.Type)
	}
	v := reflect.ValueOf(p.Default)
	if v.Type().AssignableTo(p.Type) {
		return v
	}
	if v.Type().ConvertibleTo(p.Type) {
		return v.Convert(p.Type)
	}
	return reflect.Zero(p.Type)
}

// Func is a registered package-level function. When the first parameter
// accepts the configured target the function is an extension candidate.
type Func struct {
	Name    string
	Holder  string
	Library string
	Params  []Param
	Value   reflect.Value
	// Expr is the Go expression naming the function in generated code.
	Expr string
	// TypeArgs holds the type arguments of a closed generic.
	TypeArgs []reflect.Type
}

// Type returns the function type.
func (f *Func) Type() reflect.Type { return f.Value.Type() }

// Signature renders the function with parameter names for diagnostics.
func (f *Func) Signature() string {
	var b strings.Builder
	if f.Holder != "" {
		b.WriteString(f.Holder)
		b.WriteByte('.')
	}
	b.WriteString(f.Name)
	if len(f.TypeArgs) > 0 {
		b.WriteByte('[')
		for i, t := range f.TypeArgs {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(TypeString(t))
		}
		b.WriteByte(']')
	}
	b.WriteString(FormatParams(f.Params))
	return b.String()
}

// FormatParams renders "(name type, ...)".
func FormatParams(params []Param) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = p.Name + " " + TypeString(p.Type)
		if p.HasDefault {
			parts[i] += fmt.Sprintf(" = %v", p.Default)
		}
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// TypeString renders t, naming synthesized types by their sigil form.
func TypeString(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	if name, ok := dyntype.NameOf(t); ok && t.Kind() == reflect.Struct {
		return "@" + name
	}
	return t.String()
}

// GenericFunc is a registered generic function. Instantiate closes it over
// concrete type arguments and returns the instantiated function value.
// A failed instantiation (for example a violated constraint) returns an error.
type GenericFunc struct {
	Name        string
	Holder      string
	Library     string
	Arity       int
	ParamNames  []string
	Defaults    map[string]any
	Instantiate func(types []reflect.Type) (any, error)
	// Expr is the Go expression naming the uninstantiated function.
	Expr string
}

// Close instantiates the function over types.
func (g *GenericFunc) Close(types []reflect.Type) (*Func, error) {
	if len(types) != g.Arity {
		return nil, fmt.Errorf("%w: %s expects %d, got %d", ErrTypeArgumentCount, g.Name, g.Arity, len(types))
	}
	fn, err := g.Instantiate(types)
	if err != nil {
		return nil, fmt.Errorf("instantiating %s: %w", g.Name, err)
	}
	f, err := newFunc(g.Name, g.Holder, g.Library, fn, g.ParamNames, g.Defaults)
	if err != nil {
		return nil, err
	}
	f.Expr = g.Expr
	f.TypeArgs = types
	return f, nil
}

func newFunc(name, holder, library string, fn any, paramNames []string, defaults map[string]any) (*Func, error) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return nil, fmt.Errorf("%w: %s is %T", ErrNotAFunction, name, fn)
	}
	ft := v.Type()
	names := paramNames
	if len(names) == 0 {
		names = positionalNames(ft.NumIn())
	}
	if len(names) != ft.NumIn() {
		return nil, fmt.Errorf("%w: %s has %d parameters, %d names given", ErrParamCount, name, ft.NumIn(), len(names))
	}
	params := make([]Param, ft.NumIn())
	for i := range params {
		params[i] = Param{Name: names[i], Type: ft.In(i)}
	}
	for pn, def := range defaults {
		i := paramIndex(params, pn)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownParam, name, pn)
		}
		params[i].HasDefault = true
		params[i].Default = def
	}
	return &Func{
		Name:    name,
		Holder:  holder,
		Library: library,
		Params:  params,
		Value:   v,
		Expr:    FuncExpr(v),
	}, nil
}

func positionalNames(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("arg%d", i)
	}
	return out
}

func paramIndex(params []Param, name string) int {
	for i, p := range params {
		if strings.EqualFold(p.Name, name) {
			return i
		}
	}
	return -1
}

// FuncExpr derives "import/path.Name" for a package-level function.
func FuncExpr(v reflect.Value) string {
	rf := runtime.FuncForPC(v.Pointer())
	if rf == nil {
		return ""
	}
	name := rf.Name()
	// closures and method values are not addressable from generated code
	if strings.Contains(name, ".func") || strings.HasSuffix(name, "-fm") {
		return ""
	}
	return name
}

// MemberKind distinguishes the members reachable through Type::Member.
type MemberKind int

// Member kinds
const (
	MemberFunc MemberKind = iota
	MemberVar
	MemberProperty
	MemberMethod
)

func (k MemberKind) String() string {
	switch k {
	case MemberFunc:
		return "func"
	case MemberVar:
		return "var"
	case MemberProperty:
		return "property"
	case MemberMethod:
		return "method"
	}
	return "unknown"
}

// Member is a named member of a type or holder.
type Member struct {
	Name  string
	Owner string
	Kind  MemberKind
	// Value is the function for MemberFunc and MemberMethod, a pointer to the
	// variable for MemberVar and the getter for MemberProperty.
	Value reflect.Value
	Expr  string
}

// Static reports whether the member can be reached without an instance.
func (m *Member) Static() bool { return m.Kind != MemberMethod }

// Type returns the type of the value Get produces.
func (m *Member) Type() reflect.Type {
	switch m.Kind {
	case MemberVar:
		return m.Value.Type().Elem()
	case MemberProperty:
		return m.Value.Type().Out(0)
	}
	return m.Value.Type()
}

// Get returns the member value.
func (m *Member) Get() reflect.Value {
	switch m.Kind {
	case MemberVar:
		return m.Value.Elem()
	case MemberProperty:
		return m.Value.Call(nil)[0]
	}
	return m.Value
}

// MethodSpec supplies the parameter names of an instance method, which
// reflection cannot recover.
type MethodSpec struct {
	Name     string
	Params   []string
	Defaults map[string]any
}

// EnumDef is a named value table for an enum-like type.
type EnumDef struct {
	Type   reflect.Type
	Names  []string
	values map[string]reflect.Value
}

// Parse looks up name case-insensitively.
func (e *EnumDef) Parse(name string) (reflect.Value, bool) {
	v, ok := e.values[strings.ToLower(strings.TrimSpace(name))]
	return v, ok
}

// Name returns the registered name of v.
func (e *EnumDef) Name(v reflect.Value) (string, bool) {
	for _, n := range e.Names {
		if e.values[strings.ToLower(n)].Equal(v) {
			return n, true
		}
	}
	return "", false
}

// GenericTypeDef is a registered generic type such as Pipeline[T].
type GenericTypeDef struct {
	Name        string
	Library     string
	Arity       int
	Instantiate func(types []reflect.Type) (reflect.Type, []any, error)

	open *dyntype.OpenGeneric
}

// Open returns the single-parameter form used as a dynamic type parent.
func (g *GenericTypeDef) Open() (*dyntype.OpenGeneric, bool) {
	if g.Arity != 1 {
		return nil, false
	}
	return g.open, true
}

// TypeKind classifies registered types.
type TypeKind int

// Type kinds
const (
	KindStruct TypeKind = iota
	KindInterface
	KindEnum
)

func (k TypeKind) String() string {
	switch k {
	case KindStruct:
		return "struct"
	case KindInterface:
		return "interface"
	case KindEnum:
		return "enum"
	}
	return "unknown"
}

// TypeDef is a registered type.
type TypeDef struct {
	Name         string
	Library      string
	Type         reflect.Type
	Kind         TypeKind
	Methods      map[string]*MethodSpec
	Constructors []reflect.Value
	Enum         *EnumDef

	statics []*Member
}

// QualifiedName returns "pkg.Name" using the last segment of the library path.
func (t *TypeDef) QualifiedName() string {
	return qualify(t.Library, t.Name)
}

// FullName returns "library/path.Name".
func (t *TypeDef) FullName() string {
	return t.Library + "." + t.Name
}

// Method returns the registered spec for an instance method.
func (t *TypeDef) Method(name string) (*MethodSpec, bool) {
	for n, m := range t.Methods {
		if strings.EqualFold(n, name) {
			return m, true
		}
	}
	return nil, false
}

// Statics returns the static members registered on the type.
func (t *TypeDef) Statics() []*Member { return t.statics }

func qualify(library, name string) string {
	pkg := library
	if i := strings.LastIndex(pkg, "/"); i >= 0 {
		pkg = pkg[i+1:]
	}
	return pkg + "." + name
}
