package resolve

import (
	"reflect"
	"strings"

	"github.com/GoCodeAlone/configprocessor/catalog"
	"github.com/GoCodeAlone/configprocessor/config"
	"github.com/GoCodeAlone/configprocessor/convert"
	"github.com/GoCodeAlone/configprocessor/directive"
)

var (
	rootType      = reflect.TypeOf((*config.Root)(nil))
	sectionType   = reflect.TypeOf((*config.Section)(nil)).Elem()
	processorType = reflect.TypeOf((*Processor)(nil)).Elem()
)

// Selection stages, reported in matches and ambiguity errors.
const (
	StageCollection = "collection"
	StageBlank      = "single value"
	StageNamed      = "named arguments"
	StageDictionary = "dictionary"
	StageTypes      = "argument types"
)

// isImplicitType reports parameter types satisfied without configuration.
func isImplicitType(t reflect.Type) bool {
	return t == rootType || t == sectionType || t == processorType
}

// Match is the outcome of SelectMethod.
type Match struct {
	Method *Method
	Stage  string
	// Dictionary reports that the whole argument section binds to the single
	// map parameter.
	Dictionary bool
}

// SelectMethod picks the single candidate for d. It returns nil without an
// error when nothing matches and an *AmbiguousMethodError when the
// tie-breaks leave more than one candidate. conv is used for trial
// conversions of a single blank value.
func SelectMethod(candidates []*Method, d *directive.Directive, conv *convert.Converter) (*Match, error) {
	names := d.ArgumentNames()
	positional := directive.IsPositionalSequence(names)

	if positional {
		var list []*Method
		for _, m := range candidates {
			if len(m.Params) == 1 && isCollection(m.Params[0].Type) {
				list = append(list, m)
			}
		}
		switch len(list) {
		case 1:
			return &Match{Method: list[0], Stage: StageCollection}, nil
		case 0:
		default:
			return nil, ambiguous(d, StageCollection, list)
		}
	}

	if len(d.Arguments) == 1 && d.Arguments[0].Name == "" && !config.HasChildren(d.Arguments[0].Section) {
		m, err := selectBlank(candidates, d, conv)
		if err != nil || m != nil {
			return m, err
		}
	}

	if m, err := selectNamed(candidates, d); err != nil || m != nil {
		return m, err
	}

	if !positional {
		var dicts []*Method
		for _, m := range candidates {
			if len(m.Params) == 1 && m.Params[0].Type.Kind() == reflect.Map {
				dicts = append(dicts, m)
			}
		}
		switch len(dicts) {
		case 1:
			return &Match{Method: dicts[0], Stage: StageDictionary, Dictionary: true}, nil
		case 0:
		default:
			return nil, ambiguous(d, StageDictionary, dicts)
		}
	}
	return nil, nil
}

func ambiguous(d *directive.Directive, stage string, candidates []*Method) error {
	return &AmbiguousMethodError{MethodName: d.MethodName, Path: d.Source.Path(), Stage: stage, Candidates: candidates}
}

// isCollection reports arrays, slices and containers with a one argument
// Add method.
func isCollection(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Array, reflect.Slice:
		return true
	}
	add, ok := convert.AddMethod(t)
	return ok && add.Type.NumIn() == 2
}

// blankParam returns the parameter a single blank value binds to: the only
// parameter without an implicit value, else the only one of those without a
// default.
func blankParam(m *Method) (int, bool) {
	var explicit []int
	for i, p := range m.Params {
		if !isImplicitType(p.Type) {
			explicit = append(explicit, i)
		}
	}
	if len(explicit) == 1 {
		return explicit[0], true
	}
	found := -1
	for _, i := range explicit {
		if m.Params[i].HasDefault {
			continue
		}
		if found >= 0 {
			return -1, false
		}
		found = i
	}
	return found, found >= 0
}

func selectBlank(candidates []*Method, d *directive.Directive, conv *convert.Converter) (*Match, error) {
	arg := d.Arguments[0]
	var viable []*Method
	for _, m := range candidates {
		i, ok := blankParam(m)
		if !ok {
			continue
		}
		p := m.Params[i]
		if conv.CanConvert(convert.Argument{Name: p.Name, Key: d.MethodName, Section: arg.Section}, p.Type) {
			viable = append(viable, m)
		}
	}
	switch len(viable) {
	case 1:
		return &Match{Method: viable[0], Stage: StageBlank}, nil
	case 0:
	default:
		return nil, ambiguous(d, StageBlank, viable)
	}

	var minimal []*Method
	for _, m := range candidates {
		self := 0
		if m.Static() {
			self = 1
		}
		if m.Required() == self {
			minimal = append(minimal, m)
		}
	}
	if len(minimal) == 1 {
		return &Match{Method: minimal[0], Stage: StageBlank}, nil
	}
	return nil, nil
}

type score struct {
	matched int
	overlap int
}

func (s score) less(o score) bool {
	if s.matched != o.matched {
		return s.matched < o.matched
	}
	return s.overlap < o.overlap
}

// scoreMethod reports whether m can be called with the supplied names and
// how well it matches. The key is the number of parameters matched by name
// or shape, then string typed name matches plus the names a builder
// parameter's type exposes.
func scoreMethod(m *Method, supplied []string) (score, bool) {
	var s score
	for _, p := range m.Params {
		switch {
		case containsFold(supplied, p.Name):
			s.matched++
			if p.Type.Kind() == reflect.String {
				s.overlap++
			}
		case isBuilder(p.Type):
			elem, _ := convert.BuilderElem(p.Type)
			s.overlap += propertyOverlap(elem, supplied)
		case propertyOverlap(p.Type, supplied) > 0:
			s.matched++
		case p.HasDefault || isImplicitType(p.Type):
		default:
			return score{}, false
		}
	}
	return s, true
}

func isBuilder(t reflect.Type) bool {
	_, ok := convert.BuilderElem(t)
	return ok
}

// propertyOverlap counts the supplied names matching exported fields of t.
func propertyOverlap(t reflect.Type, supplied []string) int {
	st := structType(t)
	if st == nil {
		return 0
	}
	n := 0
	for _, name := range supplied {
		if name == "" {
			continue
		}
		if f, ok := st.FieldByNameFunc(func(s string) bool { return strings.EqualFold(s, name) }); ok && f.IsExported() {
			n++
		}
	}
	return n
}

// structType returns the struct behind t or *t.
func structType(t reflect.Type) reflect.Type {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	return t
}

func selectNamed(candidates []*Method, d *directive.Directive) (*Match, error) {
	supplied := d.ArgumentNames()
	var (
		best  []*Method
		bestS score
	)
	for _, m := range candidates {
		s, ok := scoreMethod(m, supplied)
		if !ok {
			continue
		}
		switch {
		case len(best) == 0 || bestS.less(s):
			best, bestS = []*Method{m}, s
		case !s.less(bestS):
			best = append(best, m)
		}
	}
	if len(best) == 0 {
		return nil, nil
	}
	best = narrow(best, func(m *Method) bool {
		self := 0
		if m.Static() {
			self = 1
		}
		return m.Required() <= len(supplied)+self
	})
	best = narrow(best, func(m *Method) bool { return !m.Static() })
	if len(best) > 1 && len(supplied) == 0 {
		var empty []*Method
		for _, m := range best {
			if len(m.Params) == 0 {
				empty = append(empty, m)
			}
		}
		if len(empty) == 1 {
			return &Match{Method: empty[0], Stage: StageNamed}, nil
		}
	}
	if len(best) > 1 {
		most := 0
		for _, m := range best {
			most = max(most, len(m.Params))
		}
		best = narrow(best, func(m *Method) bool { return len(m.Params) == most })
	}
	if len(best) > 1 {
		return nil, ambiguous(d, StageNamed, best)
	}
	return &Match{Method: best[0], Stage: StageNamed}, nil
}

// narrow keeps the candidates satisfying keep unless none do.
func narrow(ms []*Method, keep func(*Method) bool) []*Method {
	if len(ms) <= 1 {
		return ms
	}
	var out []*Method
	for _, m := range ms {
		if keep(m) {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return ms
	}
	return out
}

// SelectMethodByTypes picks the candidate whose parameters accept values of
// the given types. A nil type stands for an untyped nil. Exact type matches
// win over assignable ones.
func SelectMethodByTypes(candidates []*Method, types []reflect.Type) (*Method, error) {
	var (
		best  []*Method
		exact = -1
	)
	for _, m := range candidates {
		if len(m.Params) != len(types) {
			continue
		}
		n, ok := typeMatch(m.Params, types)
		if !ok {
			continue
		}
		switch {
		case n > exact:
			best, exact = []*Method{m}, n
		case n == exact:
			best = append(best, m)
		}
	}
	switch len(best) {
	case 0:
		return nil, nil
	case 1:
		return best[0], nil
	}
	best = narrow(best, func(m *Method) bool { return !m.Static() })
	if len(best) > 1 {
		return nil, &AmbiguousMethodError{MethodName: best[0].Name, Stage: StageTypes, Candidates: best}
	}
	return best[0], nil
}

func typeMatch(params []catalog.Param, types []reflect.Type) (int, bool) {
	exact := 0
	for i, p := range params {
		t := types[i]
		if t == nil {
			if !nillable(p.Type) {
				return 0, false
			}
			continue
		}
		if t == p.Type {
			exact++
			continue
		}
		if !t.AssignableTo(p.Type) {
			return 0, false
		}
	}
	return exact, true
}

func nillable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return true
	}
	return false
}
