// Package catalog holds the libraries eligible for configuration binding.
//
// Libraries register their types, function holders and generic definitions
// in a process-wide table, usually from an init function:
//
//	var lib = catalog.NewLibrary("example.com/widgets")
//
//	func init() {
//		lib.Holder("Extensions").
//			Func("AddWidget", AddWidget).Params("registry", "name", "size").
//			Default("size", 1)
//		catalog.MustRegister(lib)
//	}
//
// A Catalog is an immutable snapshot of the libraries selected by a Strategy
// plus marker types, the entry module and a Using list. Snapshots are cached
// process-wide.
package catalog

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/GoCodeAlone/configprocessor/dyntype"
)

// Catalog is an immutable snapshot of selected libraries.
type Catalog struct {
	libraries []*Library
	byName    map[string]*Library

	typeNames    map[string][]*TypeDef
	typeOf       map[reflect.Type]*TypeDef
	genericTypes map[string][]*GenericTypeDef
	holders      map[string][]*Holder
	interfaces   []*TypeDef

	factory *dyntype.Factory
}

// New builds a catalog directly from libraries, bypassing discovery.
func New(libs ...*Library) *Catalog {
	c := &Catalog{
		byName:       make(map[string]*Library),
		typeNames:    make(map[string][]*TypeDef),
		typeOf:       make(map[reflect.Type]*TypeDef),
		genericTypes: make(map[string][]*GenericTypeDef),
		holders:      make(map[string][]*Holder),
		factory:      dyntype.Default,
	}
	sorted := slices.Clone(libs)
	slices.SortFunc(sorted, func(a, b *Library) int { return strings.Compare(a.Name, b.Name) })
	for _, lib := range sorted {
		if _, dup := c.byName[lib.Name]; dup {
			continue
		}
		c.byName[lib.Name] = lib
		c.libraries = append(c.libraries, lib)
		for _, def := range lib.types {
			for _, key := range nameKeys(lib, def.Name) {
				c.typeNames[key] = append(c.typeNames[key], def)
			}
			if _, seen := c.typeOf[def.Type]; !seen {
				c.typeOf[def.Type] = def
			}
			if def.Kind == KindInterface {
				c.interfaces = append(c.interfaces, def)
			}
		}
		for _, g := range lib.generics {
			for _, key := range nameKeys(lib, g.Name) {
				c.genericTypes[key] = append(c.genericTypes[key], g)
			}
		}
		for _, h := range lib.holders {
			for _, key := range nameKeys(lib, h.Name) {
				c.holders[key] = append(c.holders[key], h)
			}
		}
	}
	return c
}

// nameKeys returns the lookup keys of a name: full, qualified and short.
func nameKeys(lib *Library, name string) []string {
	return []string{lib.Name + "." + name, qualify(lib.Name, name), name}
}

// Libraries returns the selected libraries ordered by name.
func (c *Catalog) Libraries() []*Library { return c.libraries }

// Library returns a selected library by name, falling back to its package
// name when unique.
func (c *Catalog) Library(name string) (*Library, bool) {
	if lib, ok := c.byName[name]; ok {
		return lib, true
	}
	var found *Library
	for _, lib := range c.libraries {
		if strings.EqualFold(lib.Name, name) || strings.EqualFold(lib.Package(), name) {
			if found != nil {
				return nil, false
			}
			found = lib
		}
	}
	return found, found != nil
}

// Factory returns the dynamic type factory used for sigil type names.
func (c *Catalog) Factory() *dyntype.Factory { return c.factory }

// TypeDef returns the registration of t.
func (c *Catalog) TypeDef(t reflect.Type) (*TypeDef, bool) {
	def, ok := c.typeOf[t]
	return def, ok
}

// Enum returns the enum table of t.
func (c *Catalog) Enum(t reflect.Type) (*EnumDef, bool) {
	def, ok := c.typeOf[t]
	if !ok || def.Enum == nil {
		return nil, false
	}
	return def.Enum, true
}

// Interfaces returns the registered interface types.
func (c *Catalog) Interfaces() []*TypeDef { return c.interfaces }

// MethodSpec returns the parameter names of method name on t, taken from the
// registration of t or of a registered interface t implements.
func (c *Catalog) MethodSpec(t reflect.Type, name string) (*MethodSpec, bool) {
	for _, candidate := range []reflect.Type{t, derefType(t)} {
		if def, ok := c.typeOf[candidate]; ok {
			if spec, ok := def.Method(name); ok {
				return spec, true
			}
		}
	}
	for _, iface := range c.interfaces {
		if !t.Implements(iface.Type) {
			continue
		}
		if spec, ok := iface.Method(name); ok {
			return spec, true
		}
	}
	return nil, false
}

// Funcs returns every registered function whose name matches one of names
// case-insensitively, in library and registration order.
func (c *Catalog) Funcs(names []string) []*Func {
	var out []*Func
	for _, lib := range c.libraries {
		for _, h := range lib.holders {
			for _, f := range h.funcs {
				if containsFold(names, f.Name) {
					out = append(out, f)
				}
			}
		}
	}
	return out
}

// Generics returns every registered generic function whose name matches one
// of names case-insensitively.
func (c *Catalog) Generics(names []string) []*GenericFunc {
	var out []*GenericFunc
	for _, lib := range c.libraries {
		for _, h := range lib.holders {
			for _, g := range h.generics {
				if containsFold(names, g.Name) {
					out = append(out, g)
				}
			}
		}
	}
	return out
}

// Constructors returns the registered constructors of t or *t.
func (c *Catalog) Constructors(t reflect.Type) []reflect.Value {
	for _, candidate := range []reflect.Type{t, derefType(t)} {
		if def, ok := c.typeOf[candidate]; ok && len(def.Constructors) > 0 {
			return def.Constructors
		}
	}
	return nil
}

// StaticScope is the set of members reachable through "Name::Member".
type StaticScope struct {
	Name    string
	Type    reflect.Type
	Members []*Member
}

// LookupMembers returns the members called member in the scope named by
// typeName. Holders are searched first, then registered types. For types the
// result also includes instance methods so callers can reject them.
func (c *Catalog) LookupMembers(typeName, member string) (*StaticScope, []*Member, error) {
	scope, err := c.staticScope(typeName)
	if err != nil {
		return nil, nil, err
	}
	var out []*Member
	for _, m := range scope.Members {
		if m.Name == member {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		for _, m := range scope.Members {
			if strings.EqualFold(m.Name, member) {
				out = append(out, m)
			}
		}
	}
	return scope, out, nil
}

func (c *Catalog) staticScope(name string) (*StaticScope, error) {
	if hs := c.lookupHolders(name); len(hs) == 1 {
		return &StaticScope{Name: hs[0].QualifiedName(), Members: hs[0].members}, nil
	} else if len(hs) > 1 {
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousType, name)
	}
	t, err := c.ResolveType(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrStaticScopeMissing, name, err)
	}
	scope := &StaticScope{Name: name, Type: t}
	if def, ok := c.typeOf[t]; ok {
		scope.Members = append(scope.Members, def.statics...)
		for _, spec := range def.Methods {
			if m, ok := instanceMethod(t, spec.Name); ok {
				scope.Members = append(scope.Members, m)
			}
		}
	}
	for i := 0; i < t.NumMethod(); i++ {
		meth := t.Method(i)
		if !slices.ContainsFunc(scope.Members, func(m *Member) bool { return m.Name == meth.Name }) {
			scope.Members = append(scope.Members, &Member{Name: meth.Name, Owner: name, Kind: MemberMethod, Value: meth.Func})
		}
	}
	return scope, nil
}

func instanceMethod(t reflect.Type, name string) (*Member, bool) {
	for _, candidate := range []reflect.Type{t, reflect.PointerTo(t)} {
		if m, ok := candidate.MethodByName(name); ok {
			return &Member{Name: name, Owner: t.Name(), Kind: MemberMethod, Value: m.Func}, true
		}
	}
	return nil, false
}

func (c *Catalog) lookupHolders(name string) []*Holder {
	if hs, ok := c.holders[name]; ok {
		return hs
	}
	var out []*Holder
	for key, hs := range c.holders {
		if strings.EqualFold(key, name) {
			for _, h := range hs {
				if !slices.Contains(out, h) {
					out = append(out, h)
				}
			}
		}
	}
	return out
}

// TypeName returns the registered qualified name of t, or its Go spelling.
func (c *Catalog) TypeName(t reflect.Type) string {
	if def, ok := c.typeOf[t]; ok {
		return def.QualifiedName()
	}
	return TypeString(t)
}

func derefType(t reflect.Type) reflect.Type {
	if t.Kind() == reflect.Pointer {
		return t.Elem()
	}
	return t
}

func containsFold(names []string, name string) bool {
	for _, n := range names {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}
