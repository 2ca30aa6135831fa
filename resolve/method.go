package resolve

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/GoCodeAlone/configprocessor/catalog"
)

// MethodKind says how a candidate is called.
type MethodKind int

// Method kinds
const (
	// MethodInstance is a method of the target type or of an interface it implements.
	MethodInstance MethodKind = iota
	// MethodSetter assigns an exported struct field, the set_X form.
	MethodSetter
	// MethodExtension is a registered function taking the target first.
	MethodExtension
)

func (k MethodKind) String() string {
	switch k {
	case MethodInstance:
		return "instance"
	case MethodSetter:
		return "setter"
	case MethodExtension:
		return "extension"
	}
	return "unknown"
}

// SetterPrefix marks the property setter form of a name candidate.
const SetterPrefix = "set_"

type selfMode int

const (
	selfDirect selfMode = iota
	selfElem
	selfTuple
)

// Method is a candidate method. Params never include the receiver or the
// self parameter of an extension function.
type Method struct {
	Name   string
	Owner  string
	Kind   MethodKind
	Params []catalog.Param
	// Self is the type of the first parameter of an extension function.
	Self reflect.Type
	// Func is the registered function of an extension.
	Func *catalog.Func
	// Field is the field index path of a setter.
	Field []int
	// Target is the type the candidate was gathered for.
	Target reflect.Type

	self selfMode
}

// Static reports whether the method is called without a receiver.
func (m *Method) Static() bool { return m.Kind == MethodExtension }

// TypeArgs returns the type arguments of a closed generic extension.
func (m *Method) TypeArgs() []reflect.Type {
	if m.Func == nil {
		return nil
	}
	return m.Func.TypeArgs
}

// Required counts the parameters that must be supplied, including the self
// parameter of static methods.
func (m *Method) Required() int {
	n := 0
	if m.Static() {
		n++
	}
	for _, p := range m.Params {
		if !p.HasDefault && !isImplicitType(p.Type) {
			n++
		}
	}
	return n
}

// Signature renders the candidate for diagnostics.
func (m *Method) Signature() string {
	switch m.Kind {
	case MethodExtension:
		return m.Func.Signature()
	case MethodSetter:
		return m.Owner + "." + SetterPrefix + m.Name + catalog.FormatParams(m.Params)
	}
	return m.Owner + "." + m.Name + catalog.FormatParams(m.Params)
}

// Param returns the parameter called name, case-insensitively.
func (m *Method) Param(name string) (catalog.Param, int, bool) {
	for i, p := range m.Params {
		if strings.EqualFold(p.Name, name) {
			return p, i, true
		}
	}
	return catalog.Param{}, -1, false
}

// NameCandidates returns the method names tried for a directive name: the
// name, Add plus the name, each prefix plus the name, each of those with
// every suffix, and the setter form. Duplicates are removed
// case-insensitively.
func NameCandidates(name string, prefixes, suffixes []string) []string {
	base := []string{name, "Add" + name}
	for _, p := range prefixes {
		base = append(base, p+name)
	}
	out := append([]string(nil), base...)
	for _, s := range suffixes {
		for _, b := range base {
			out = append(out, b+s)
		}
	}
	out = append(out, SetterPrefix+name)

	seen := make(map[string]bool, len(out))
	unique := out[:0]
	for _, n := range out {
		key := strings.ToLower(n)
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, n)
	}
	return unique
}

// MethodFilter decides whether a gathered candidate is kept.
type MethodFilter func(m *Method) bool

// gatherRequest describes one candidate search.
type gatherRequest struct {
	catalog  *catalog.Catalog
	target   reflect.Type
	names    []string
	generic  bool
	typeArgs func() ([]reflect.Type, error)
	arity    int
	filter   MethodFilter
	log      Logger
}

// gather collects the candidates for a directive. Generic directives only
// consider generic extensions of matching arity; candidates failing to close
// are discarded.
func gather(req gatherRequest) ([]*Method, error) {
	var out []*Method
	if !req.generic {
		out = append(out, instanceMethods(req.catalog, req.target, req.names)...)
		out = append(out, setters(req.target, req.names)...)
		if req.catalog != nil {
			for _, f := range req.catalog.Funcs(req.names) {
				if m, ok := extension(f, req.target); ok {
					out = append(out, m)
				}
			}
		}
	} else if req.catalog != nil {
		var (
			types    []reflect.Type
			resolved bool
		)
		for _, g := range req.catalog.Generics(req.names) {
			if g.Arity != req.arity {
				continue
			}
			if !resolved {
				var err error
				if types, err = req.typeArgs(); err != nil {
					return nil, err
				}
				resolved = true
			}
			f, err := g.Close(types)
			if err != nil {
				req.log.Debug("Generic candidate discarded", "method", g.Name, "error", err)
				continue
			}
			if m, ok := extension(f, req.target); ok {
				out = append(out, m)
			}
		}
	}
	if req.filter == nil {
		return out, nil
	}
	kept := out[:0]
	for _, m := range out {
		if req.filter(m) {
			kept = append(kept, m)
		}
	}
	return kept, nil
}

func instanceMethods(cat *catalog.Catalog, target reflect.Type, names []string) []*Method {
	var out []*Method
	owner := catalog.TypeString(target)
	isInterface := target.Kind() == reflect.Interface
	for i := 0; i < target.NumMethod(); i++ {
		rm := target.Method(i)
		if !containsFold(names, rm.Name) {
			continue
		}
		ft := rm.Type
		first := 1
		if isInterface {
			first = 0
		}
		n := ft.NumIn() - first
		if ft.IsVariadic() {
			continue
		}
		params := make([]catalog.Param, n)
		var spec *catalog.MethodSpec
		if cat != nil {
			if s, ok := cat.MethodSpec(target, rm.Name); ok && len(s.Params) == n {
				spec = s
			}
		}
		for j := range params {
			params[j] = catalog.Param{Name: positional(j), Type: ft.In(first + j)}
			if spec != nil {
				params[j].Name = spec.Params[j]
				if def, ok := spec.Defaults[spec.Params[j]]; ok {
					params[j].HasDefault = true
					params[j].Default = def
				}
			}
		}
		out = append(out, &Method{Name: rm.Name, Owner: owner, Kind: MethodInstance, Params: params, Target: target})
	}
	return out
}

func setters(target reflect.Type, names []string) []*Method {
	if target.Kind() != reflect.Pointer || target.Elem().Kind() != reflect.Struct {
		return nil
	}
	st := target.Elem()
	var out []*Method
	for _, n := range names {
		if len(n) <= len(SetterPrefix) || !strings.EqualFold(n[:len(SetterPrefix)], SetterPrefix) {
			continue
		}
		fieldName := n[len(SetterPrefix):]
		f, ok := st.FieldByNameFunc(func(s string) bool { return strings.EqualFold(s, fieldName) })
		if !ok || !f.IsExported() {
			continue
		}
		out = append(out, &Method{
			Name:   f.Name,
			Owner:  catalog.TypeString(st),
			Kind:   MethodSetter,
			Params: []catalog.Param{{Name: "value", Type: f.Type}},
			Field:  f.Index,
			Target: target,
		})
	}
	return out
}

// extension makes a candidate of f when its first parameter accepts target.
func extension(f *catalog.Func, target reflect.Type) (*Method, bool) {
	if len(f.Params) == 0 || f.Type().IsVariadic() {
		return nil, false
	}
	self := f.Params[0].Type
	mode, ok := selfCompatible(target, self)
	if !ok {
		return nil, false
	}
	owner := f.Holder
	if owner == "" {
		owner = f.Library
	}
	return &Method{
		Name:   f.Name,
		Owner:  owner,
		Kind:   MethodExtension,
		Params: f.Params[1:],
		Self:   self,
		Func:   f,
		Target: target,
		self:   mode,
	}, true
}

// selfCompatible reports whether a target of type target can be passed as
// the self parameter. Structs of equal arity with element-wise assignable
// fields are accepted as tuple shapes.
func selfCompatible(target, self reflect.Type) (selfMode, bool) {
	if target.AssignableTo(self) {
		return selfDirect, true
	}
	if target.Kind() == reflect.Pointer && target.Elem().AssignableTo(self) {
		return selfElem, true
	}
	st := target
	if st.Kind() == reflect.Pointer {
		st = st.Elem()
	}
	if st.Kind() != reflect.Struct || self.Kind() != reflect.Struct || st.NumField() != self.NumField() || st.NumField() == 0 {
		return 0, false
	}
	for i := 0; i < st.NumField(); i++ {
		if !st.Field(i).Type.AssignableTo(self.Field(i).Type) {
			return 0, false
		}
	}
	return selfTuple, true
}

// selfValue converts target for the self parameter of m.
func (m *Method) selfValue(target reflect.Value) reflect.Value {
	switch m.self {
	case selfElem:
		return target.Elem()
	case selfTuple:
		src := target
		if src.Kind() == reflect.Pointer {
			src = src.Elem()
		}
		out := reflect.New(m.Self).Elem()
		for i := 0; i < src.NumField(); i++ {
			out.Field(i).Set(src.Field(i))
		}
		return out
	}
	if target.Type() != m.Self {
		out := reflect.New(m.Self).Elem()
		out.Set(target)
		return out
	}
	return target
}

func positional(i int) string {
	return "arg" + strconv.Itoa(i)
}

func containsFold(names []string, name string) bool {
	for _, n := range names {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}
