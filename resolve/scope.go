// Package resolve binds configuration directives to method calls.
//
// A Scope walks a configuration section, gathers candidate methods for every
// directive, selects one with SelectMethod and binds its arguments into a
// Plan. Plans are applied by the Invoker at runtime or rendered as Go source
// by the emit package.
package resolve

import (
	"encoding"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/GoCodeAlone/configprocessor/catalog"
	"github.com/GoCodeAlone/configprocessor/config"
	"github.com/GoCodeAlone/configprocessor/convert"
	"github.com/GoCodeAlone/configprocessor/directive"
	"github.com/GoCodeAlone/configprocessor/dyntype"
)

// Logger is the logging interface used during resolution.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Hooks observe resolution.
type Hooks struct {
	// Resolved is called for every directive bound to a method.
	Resolved func(c *Call, stage string)
	// Unresolved is called for every not-found notification that reaches
	// the top scope, after the NotFound handler ran.
	Unresolved func(n *NotFound)
}

// Options configure resolution.
type Options struct {
	Catalog *catalog.Catalog
	// Root is the root configuration. It defaults to the root of the
	// section being resolved.
	Root *config.Root
	// NotFound may handle directives no method accepts.
	NotFound NotFoundHandler
	// Prefixes and Suffixes extend the method name candidates.
	Prefixes []string
	Suffixes []string
	// Filter drops gathered candidates.
	Filter MethodFilter
	// Excluded keys are ignored at the top level.
	Excluded []string
	// LookupEnv resolves environment references in string values.
	LookupEnv func(string) (string, bool)
	Logger    Logger
	Hooks     Hooks
	// Deferred receives the failures of builders that run after the call
	// they were passed to has returned. They are logged when nil.
	Deferred func(error)
}

// Scope resolves one configuration subtree. Child scopes are created for
// builder and object arguments; they defer not-found notifications and hand
// the ones never matched in the child to the parent when done.
type Scope struct {
	opts    *Options
	conv    *convert.Converter
	walker  directive.Walker
	section config.Section
	parent  *Scope

	deferred []*NotFound
	matched  map[string]bool
}

// NewScope creates the top scope for section.
func NewScope(opts Options, section config.Section) *Scope {
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}
	if opts.Root == nil && section != nil {
		opts.Root = section.Root()
	}
	s := &Scope{opts: &opts, section: section, matched: make(map[string]bool)}
	s.walker = directive.Walker{Logger: opts.Logger}
	s.conv = &convert.Converter{Root: opts.Root, LookupEnv: opts.LookupEnv, Binder: s.bindObject}
	if opts.Catalog != nil {
		s.conv.Catalog = opts.Catalog
	}
	return s
}

// Converter returns the converter used by the scope.
func (s *Scope) Converter() *convert.Converter { return s.conv }

// Section returns the section of the scope.
func (s *Scope) Section() config.Section { return s.section }

func (s *Scope) child(section config.Section) *Scope {
	return &Scope{
		opts:    s.opts,
		conv:    s.conv,
		walker:  s.walker,
		section: section,
		parent:  s,
		matched: make(map[string]bool),
	}
}

// Plan resolves the scope section against target. With recurse the
// children of the section are the directives; otherwise the section itself
// is the only one.
func (s *Scope) Plan(target reflect.Type, recurse bool) (*Plan, error) {
	if target == nil {
		return nil, ErrNilTarget
	}
	if s.section == nil {
		return nil, config.ErrSectionNil
	}
	groups, err := s.walker.GetDirectives(s.section, recurse, s.opts.Excluded)
	if err != nil {
		return nil, err //nolint:wrapcheck // directive errors carry the path
	}
	plan := &Plan{Target: target, Section: s.section}
	if err := s.planDirectives(plan, groups.Directives()); err != nil {
		return nil, err
	}
	return plan, s.reconcile()
}

func (s *Scope) planDirectives(plan *Plan, directives []*directive.Directive) error {
	for _, d := range directives {
		call, err := s.resolveDirective(plan.Target, d)
		if err != nil {
			return err
		}
		if call != nil {
			plan.Calls = append(plan.Calls, call)
		}
	}
	return nil
}

// ResolveDirective selects and binds the method for a single directive. A nil
// call without an error means a handled not-found notification.
func (s *Scope) ResolveDirective(target reflect.Type, d *directive.Directive) (*Call, error) {
	call, err := s.resolveDirective(target, d)
	if err != nil {
		return nil, err
	}
	return call, s.reconcile()
}

func (s *Scope) resolveDirective(target reflect.Type, d *directive.Directive) (*Call, error) {
	names := NameCandidates(d.MethodName, s.opts.Prefixes, s.opts.Suffixes)
	candidates, err := gather(gatherRequest{
		catalog:  s.opts.Catalog,
		target:   target,
		names:    names,
		generic:  d.IsGeneric(),
		typeArgs: func() ([]reflect.Type, error) { return s.typeArguments(d) },
		arity:    len(d.TypeArguments),
		filter:   s.opts.Filter,
		log:      s.opts.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", d.Source.Path(), err)
	}
	s.opts.Logger.Debug("Candidates gathered", "path", d.Source.Path(), "method", d.MethodName, "candidates", len(candidates))

	match, err := SelectMethod(candidates, d, s.conv)
	if err != nil {
		return nil, err
	}
	if match == nil {
		return nil, s.report(s.notFound(target, d, names, candidates))
	}
	s.matched[strings.ToLower(d.MethodName)] = true

	call, err := s.bind(match, d)
	if err != nil {
		return nil, fmt.Errorf("binding %s at %q: %w", match.Method.Signature(), d.Source.Path(), err)
	}
	s.opts.Logger.Debug("Method resolved", "path", d.Source.Path(), "method", match.Method.Signature(), "stage", match.Stage)
	if s.opts.Hooks.Resolved != nil {
		s.opts.Hooks.Resolved(call, match.Stage)
	}
	return call, nil
}

func (s *Scope) typeArguments(d *directive.Directive) ([]reflect.Type, error) {
	if s.opts.Catalog == nil {
		return nil, convert.ErrCatalogUnavailable
	}
	return d.ResolveTypeArguments(s.opts.Catalog)
}

func (s *Scope) notFound(target reflect.Type, d *directive.Directive, names []string, candidates []*Method) *NotFound {
	args := make(map[string]string, len(d.Arguments))
	supplied := make([]string, len(d.Arguments))
	for i, a := range d.Arguments {
		v, _ := a.Section.Value()
		args[a.Name] = v
		supplied[i] = a.Name
	}
	return &NotFound{
		MethodName:     d.MethodName,
		Path:           d.Source.Path(),
		Target:         target,
		NameCandidates: names,
		Arguments:      args,
		Candidates:     candidates,
		err: &MethodNotFoundError{
			MethodName:     d.MethodName,
			Path:           d.Source.Path(),
			Target:         target,
			NameCandidates: names,
			Arguments:      supplied,
			Candidates:     candidates,
		},
	}
}

// report defers n in child scopes and raises it in the top scope.
func (s *Scope) report(n *NotFound) error {
	if s.parent != nil {
		s.deferred = append(s.deferred, n)
		return nil
	}
	if s.opts.NotFound != nil {
		s.opts.NotFound(n)
	}
	if s.opts.Hooks.Unresolved != nil {
		s.opts.Hooks.Unresolved(n)
	}
	if n.Handled {
		s.opts.Logger.Warn("Unresolved configuration entry ignored", "path", n.Path, "method", n.MethodName)
		return nil
	}
	return n.err
}

// reconcile hands the notifications for names never matched in this scope
// to the parent.
func (s *Scope) reconcile() error {
	if s.parent == nil {
		return nil
	}
	pending := s.deferred
	s.deferred = nil
	for _, n := range pending {
		if s.matched[strings.ToLower(n.MethodName)] {
			continue
		}
		if err := s.parent.report(n); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scope) bind(match *Match, d *directive.Directive) (*Call, error) {
	m := match.Method
	call := &Call{Directive: d, Method: m, Args: make([]BoundArg, len(m.Params))}

	if match.Dictionary || match.Stage == StageCollection {
		p := m.Params[0]
		v, err := s.conv.Convert(convert.Argument{Name: p.Name, Key: d.MethodName, Section: d.ArgsSection}, p.Type)
		if err != nil {
			return nil, err //nolint:wrapcheck // conversion errors carry the path
		}
		kind := ArgValue
		if match.Dictionary {
			kind = ArgDictionary
		}
		call.Args[0] = BoundArg{Name: p.Name, Type: p.Type, Kind: kind, Value: v, Section: d.ArgsSection, Key: d.MethodName}
		return call, nil
	}

	blank := -1
	var blankArg directive.Argument
	if len(d.Arguments) == 1 && d.Arguments[0].Name == "" {
		if i, ok := blankParam(m); ok {
			blank, blankArg = i, d.Arguments[0]
		}
	}

	for i, p := range m.Params {
		var (
			arg BoundArg
			err error
		)
		switch a, ok := d.Argument(p.Name); {
		case ok && p.Name != "":
			arg, err = s.bindSupplied(p, a.Section, d)
		case i == blank:
			arg, err = s.bindSupplied(p, blankArg.Section, d)
		default:
			arg, err = s.bindImplicit(p, m, d)
		}
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", p.Name, err)
		}
		call.Args[i] = arg
	}
	return call, nil
}

func (s *Scope) bindSupplied(p catalog.Param, section config.Section, d *directive.Directive) (BoundArg, error) {
	arg := BoundArg{Name: p.Name, Type: p.Type, Section: section, Key: d.MethodName}
	if config.HasChildren(section) {
		if elem, ok := convert.BuilderElem(p.Type); ok {
			nested, err := s.planNested(objectTarget(elem), section, nil, false)
			if err != nil {
				return arg, err
			}
			arg.Kind, arg.Nested = ArgBuilder, nested
			return arg, nil
		}
		if isComplex(p.Type) {
			nested, err := s.planNested(objectTarget(p.Type), section, nil, true)
			if err != nil {
				return arg, err
			}
			arg.Kind, arg.Nested = ArgObject, nested
			return arg, nil
		}
	}
	v, err := s.conv.Convert(convert.Argument{Name: p.Name, Key: d.MethodName, Section: section}, p.Type)
	if err != nil {
		return arg, err //nolint:wrapcheck // conversion errors carry the path
	}
	arg.Kind, arg.Value = ArgValue, v
	return arg, nil
}

func (s *Scope) bindImplicit(p catalog.Param, m *Method, d *directive.Directive) (BoundArg, error) {
	arg := BoundArg{Name: p.Name, Type: p.Type, Section: d.ArgsSection}
	switch {
	case isBuilder(p.Type):
		elem, _ := convert.BuilderElem(p.Type)
		nested, err := s.planNested(objectTarget(elem), d.ArgsSection, otherParams(m, p), false)
		if err != nil {
			return arg, err
		}
		arg.Kind, arg.Nested = ArgBuilder, nested
	case p.Type == rootType:
		switch {
		case s.opts.Root != nil:
			arg.Kind, arg.Value = ArgRoot, reflect.ValueOf(s.opts.Root)
		case p.HasDefault:
			arg.Kind, arg.Value = ArgDefault, p.DefaultValue()
		default:
			return arg, ErrRootUnavailable
		}
	case p.Type == sectionType:
		section := d.Source
		arg.Kind, arg.Value, arg.Section = ArgSection, reflect.ValueOf(&section).Elem(), d.Source
	case p.Type == processorType:
		var h Processor = &handle{scope: s, section: d.Source}
		arg.Kind, arg.Value, arg.Section = ArgProcessor, reflect.ValueOf(&h).Elem(), d.Source
	case isComplex(p.Type) && !(p.HasDefault && propertyOverlap(p.Type, d.ArgumentNames()) == 0):
		excluded := append([]string{p.Name}, otherParams(m, p)...)
		nested, err := s.planNested(objectTarget(p.Type), d.ArgsSection, excluded, true)
		if err != nil {
			return arg, err
		}
		arg.Kind, arg.Nested = ArgObject, nested
	case p.HasDefault:
		arg.Kind, arg.Value = ArgDefault, p.DefaultValue()
	default:
		return arg, fmt.Errorf("%w: %s %s", ErrCannotSatisfy, p.Name, catalog.TypeString(p.Type))
	}
	return arg, nil
}

// otherParams returns the names of the parameters of m other than p.
func otherParams(m *Method, p catalog.Param) []string {
	var out []string
	for _, q := range m.Params {
		if q.Name != p.Name {
			out = append(out, q.Name)
		}
	}
	return out
}

// planNested resolves section against a new object or builder argument in a
// child scope. Simple properties are bound first; the remaining children
// become calls. For objects every exported field name is excluded from the
// calls.
func (s *Scope) planNested(target reflect.Type, section config.Section, excluded []string, object bool) (*Plan, error) {
	c := s.child(section)
	plan, err := c.planObject(target, section, excluded, object)
	if err != nil {
		return nil, err
	}
	return plan, c.reconcile()
}

func (s *Scope) planObject(target reflect.Type, section config.Section, excluded []string, object bool) (*Plan, error) {
	plan := &Plan{Target: target, Section: section}
	if s.opts.Catalog != nil {
		plan.Constructor = zeroArgConstructor(s.opts.Catalog.Constructors(target))
	}
	if config.IsIndex(section.Key()) {
		excluded = append(excluded, directive.NameKey)
	}
	st := structType(target)
	if st != nil && target.Kind() == reflect.Pointer {
		for _, child := range section.Children() {
			if containsFold(excluded, child.Key()) {
				continue
			}
			prop, ok, err := s.bindProperty(st, child)
			if err != nil {
				return nil, err
			}
			if ok {
				plan.Properties = append(plan.Properties, prop)
				excluded = append(excluded, child.Key())
			}
		}
		if object {
			for i := 0; i < st.NumField(); i++ {
				if f := st.Field(i); f.IsExported() {
					excluded = append(excluded, f.Name)
				}
			}
		}
	}
	groups, err := s.walker.GetDirectives(section, true, excluded)
	if err != nil {
		return nil, err //nolint:wrapcheck // directive errors carry the path
	}
	if err := s.planDirectives(plan, groups.Directives()); err != nil {
		return nil, err
	}
	return plan, nil
}

// bindProperty binds child to the exported field of st with the same name.
// Builder fields are left to method resolution.
func (s *Scope) bindProperty(st reflect.Type, child config.Section) (Property, bool, error) {
	key := child.Key()
	f, ok := st.FieldByNameFunc(func(n string) bool { return strings.EqualFold(n, key) })
	if !ok || !f.IsExported() || isBuilder(f.Type) {
		return Property{}, false, nil
	}
	prop := Property{Name: f.Name, Field: f.Index, Type: f.Type, Section: child, Key: key}
	if config.HasChildren(child) && isComplex(f.Type) {
		nested, err := s.planNested(objectTarget(f.Type), child, nil, true)
		if err != nil {
			return prop, false, err
		}
		prop.Nested = nested
		return prop, true, nil
	}
	v, err := s.conv.Convert(convert.Argument{Name: f.Name, Key: key, Section: child}, f.Type)
	if err != nil {
		return prop, false, err //nolint:wrapcheck // conversion errors carry the path
	}
	prop.Value = v
	return prop, true, nil
}

// runner applies plans built by the scope.
func (s *Scope) runner() runner {
	if s.opts.Deferred != nil {
		return runner{deferred: s.opts.Deferred}
	}
	log := s.opts.Logger
	return runner{deferred: func(err error) {
		log.Error("Builder failed after its call returned", "error", err)
	}}
}

// bindObject is the converter's object binder: sections converting to plain
// structs are resolved like object arguments and applied at once.
func (s *Scope) bindObject(arg convert.Argument, target reflect.Type) (reflect.Value, bool, error) {
	if !isComplex(target) || !config.HasChildren(arg.Section) {
		return reflect.Value{}, false, nil
	}
	plan, err := s.planNested(objectTarget(target), arg.Section, nil, true)
	if err != nil {
		return reflect.Value{}, true, err
	}
	v, err := instantiate(plan)
	if err != nil {
		return reflect.Value{}, true, err
	}
	if err := s.runner().applyPlan(plan, v); err != nil {
		return reflect.Value{}, true, err
	}
	return adapt(v, target), true, nil
}

var (
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
	timeType            = reflect.TypeOf(time.Time{})
	decimalType         = reflect.TypeOf(decimal.Decimal{})
)

// isComplex reports struct types bound property by property.
func isComplex(t reflect.Type) bool {
	st := structType(t)
	if st == nil || st == timeType || st == decimalType || dyntype.IsDynamic(st) {
		return false
	}
	if reflect.PointerTo(st).Implements(textUnmarshalerType) {
		return false
	}
	if _, ok := convert.AddMethod(t); ok {
		return false
	}
	return true
}

// objectTarget returns the pointer type nested plans use for t.
func objectTarget(t reflect.Type) reflect.Type {
	if t.Kind() == reflect.Pointer || t.Kind() == reflect.Interface {
		return t
	}
	return reflect.PointerTo(t)
}

func zeroArgConstructor(ctors []reflect.Value) reflect.Value {
	for _, c := range ctors {
		if c.Type().NumIn() == 0 && c.Type().NumOut() > 0 {
			return c
		}
	}
	return reflect.Value{}
}
