package catalog

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/GoCodeAlone/configprocessor/dyntype"
)

var builtinTypes = map[string]reflect.Type{
	"string":        reflect.TypeOf(""),
	"bool":          reflect.TypeOf(false),
	"int":           reflect.TypeOf(0),
	"int8":          reflect.TypeOf(int8(0)),
	"int16":         reflect.TypeOf(int16(0)),
	"int32":         reflect.TypeOf(int32(0)),
	"int64":         reflect.TypeOf(int64(0)),
	"uint":          reflect.TypeOf(uint(0)),
	"uint8":         reflect.TypeOf(uint8(0)),
	"uint16":        reflect.TypeOf(uint16(0)),
	"uint32":        reflect.TypeOf(uint32(0)),
	"uint64":        reflect.TypeOf(uint64(0)),
	"byte":          reflect.TypeOf(byte(0)),
	"rune":          reflect.TypeOf(rune(0)),
	"float32":       reflect.TypeOf(float32(0)),
	"float64":       reflect.TypeOf(float64(0)),
	"any":           reflect.TypeOf((*any)(nil)).Elem(),
	"error":         reflect.TypeOf((*error)(nil)).Elem(),
	"duration":      reflect.TypeOf(time.Duration(0)),
	"time.duration": reflect.TypeOf(time.Duration(0)),
	"time.time":     reflect.TypeOf(time.Time{}),
	"decimal":       reflect.TypeOf(decimal.Decimal{}),
}

// ResolveType resolves a type name. The grammar is:
//
//	builtin           string, int, float64, duration, time.Time, decimal, ...
//	[]T  *T  map[K]V  composite types
//	Name<A|B>         generic type instantiation (',' also separates)
//	@name  !name      synthesized type
//	@name@Parent      synthesized type with a parent
//	pkg.Name          registered type by qualified, full or short name
func (c *Catalog) ResolveType(name string) (reflect.Type, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrTypeSyntax)
	}

	if dynName, parentName, ok := dyntype.ParseSigil(name); ok {
		dt, err := c.Dynamic(dynName, parentName)
		if err != nil {
			return nil, err
		}
		return dt.Type, nil
	}

	switch {
	case strings.HasPrefix(name, "[]"):
		elem, err := c.ResolveType(name[2:])
		if err != nil {
			return nil, err
		}
		return reflect.SliceOf(elem), nil
	case strings.HasPrefix(name, "*"):
		elem, err := c.ResolveType(name[1:])
		if err != nil {
			return nil, err
		}
		return reflect.PointerTo(elem), nil
	case strings.HasPrefix(name, "map["):
		return c.resolveMap(name)
	case strings.HasSuffix(name, ">"):
		return c.resolveGeneric(name)
	}

	if t, ok := builtinTypes[strings.ToLower(name)]; ok {
		return t, nil
	}
	return c.lookupType(name)
}

// Dynamic returns the synthesized type for a sigil name and optional parent
// type name. A parent naming a single-parameter generic type is closed over
// the synthesized type.
func (c *Catalog) Dynamic(name, parentName string) (*dyntype.Type, error) {
	if parentName == "" {
		return c.factory.Create(name, nil) //nolint:wrapcheck // dyntype errors are descriptive
	}
	if gs := c.lookupGeneric(parentName); len(gs) == 1 {
		if open, ok := gs[0].Open(); ok {
			return c.factory.Create(name, open) //nolint:wrapcheck // dyntype errors are descriptive
		}
	}
	parent, err := c.ResolveType(parentName)
	if err != nil {
		return nil, fmt.Errorf("parent of @%s: %w", name, err)
	}
	return c.factory.Create(name, parent) //nolint:wrapcheck // dyntype errors are descriptive
}

func (c *Catalog) resolveMap(name string) (reflect.Type, error) {
	depth := 0
	for i := len("map["); i < len(name); i++ {
		switch name[i] {
		case '[', '<':
			depth++
		case '>':
			depth--
		case ']':
			if depth > 0 {
				depth--
				continue
			}
			key, err := c.ResolveType(name[len("map["):i])
			if err != nil {
				return nil, err
			}
			if !key.Comparable() {
				return nil, fmt.Errorf("%w: map key %s is not comparable", ErrTypeSyntax, key)
			}
			elem, err := c.ResolveType(name[i+1:])
			if err != nil {
				return nil, err
			}
			return reflect.MapOf(key, elem), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrTypeSyntax, name)
}

func (c *Catalog) resolveGeneric(name string) (reflect.Type, error) {
	open := strings.IndexByte(name, '<')
	if open <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrTypeSyntax, name)
	}
	base := name[:open]
	args, err := SplitTypeArgs(name[open+1 : len(name)-1])
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, name)
	}
	gs := c.lookupGeneric(base)
	if len(gs) == 0 {
		return nil, &TypeNotFoundError{Name: name}
	}
	var def *GenericTypeDef
	for _, g := range gs {
		if g.Arity == len(args) {
			if def != nil {
				return nil, fmt.Errorf("%w: %s", ErrAmbiguousType, name)
			}
			def = g
		}
	}
	if def == nil {
		return nil, fmt.Errorf("%w: %s", ErrTypeArgumentCount, name)
	}
	types := make([]reflect.Type, len(args))
	for i, a := range args {
		if types[i], err = c.ResolveType(a); err != nil {
			return nil, err
		}
	}
	t, _, err := def.Instantiate(types)
	if err != nil {
		return nil, fmt.Errorf("instantiating %s: %w", name, err)
	}
	return t, nil
}

// SplitTypeArgs splits a type argument list on top-level '|' or ','.
func SplitTypeArgs(s string) ([]string, error) {
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
				return nil, ErrTypeSyntax
			}
		case '|', ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, ErrTypeSyntax
	}
	out = append(out, strings.TrimSpace(s[start:]))
	for _, a := range out {
		if a == "" {
			return nil, ErrTypeSyntax
		}
	}
	return out, nil
}

func (c *Catalog) lookupType(name string) (reflect.Type, error) {
	if defs := uniqueDefs(c.typeNames[name]); len(defs) > 0 {
		if len(defs) > 1 {
			return nil, fmt.Errorf("%w: %s matches %s", ErrAmbiguousType, name, describeDefs(defs))
		}
		return defs[0].Type, nil
	}
	var found []*TypeDef
	for key, defs := range c.typeNames {
		if strings.EqualFold(key, name) {
			found = append(found, defs...)
		}
	}
	found = uniqueDefs(found)
	switch len(found) {
	case 0:
		return nil, &TypeNotFoundError{Name: name}
	case 1:
		return found[0].Type, nil
	}
	return nil, fmt.Errorf("%w: %s matches %s", ErrAmbiguousType, name, describeDefs(found))
}

func (c *Catalog) lookupGeneric(name string) []*GenericTypeDef {
	if gs, ok := c.genericTypes[name]; ok {
		return gs
	}
	var out []*GenericTypeDef
	for key, gs := range c.genericTypes {
		if strings.EqualFold(key, name) {
			for _, g := range gs {
				dup := false
				for _, o := range out {
					dup = dup || o == g
				}
				if !dup {
					out = append(out, g)
				}
			}
		}
	}
	return out
}

func uniqueDefs(defs []*TypeDef) []*TypeDef {
	var out []*TypeDef
	for _, d := range defs {
		dup := false
		for _, o := range out {
			if o == d || o.Type == d.Type {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, d)
		}
	}
	return out
}

func describeDefs(defs []*TypeDef) string {
	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.FullName()
	}
	return strings.Join(names, ", ")
}
