package resolve

import (
	"fmt"
	"reflect"

	"github.com/GoCodeAlone/configprocessor/config"
	"github.com/GoCodeAlone/configprocessor/directive"
)

// Processor is handed to methods declaring a parameter of this type. It
// lets the method call further configured methods itself.
type Processor interface {
	// Section returns the section the calling directive came from.
	Section() config.Section
	// Invoke calls the method of target matching name and the types of args.
	Invoke(target any, name string, args ...any) error
	// Apply resolves section against target and runs the result.
	Apply(target any, section config.Section) error
}

type handle struct {
	scope   *Scope
	section config.Section
}

// NewProcessor returns a Processor bound to the scope section.
func (s *Scope) NewProcessor() Processor {
	return &handle{scope: s, section: s.section}
}

func (h *handle) Section() config.Section { return h.section }

func (h *handle) Invoke(target any, name string, args ...any) error {
	tv := reflect.ValueOf(target)
	if !tv.IsValid() {
		return ErrNilTarget
	}
	names := NameCandidates(name, h.scope.opts.Prefixes, h.scope.opts.Suffixes)
	candidates, err := gather(gatherRequest{
		catalog: h.scope.opts.Catalog,
		target:  tv.Type(),
		names:   names,
		filter:  h.scope.opts.Filter,
		log:     h.scope.opts.Logger,
	})
	if err != nil {
		return err
	}
	types := make([]reflect.Type, len(args))
	values := make([]reflect.Value, len(args))
	for i, a := range args {
		types[i] = reflect.TypeOf(a)
		values[i] = reflect.ValueOf(a)
	}
	m, err := SelectMethodByTypes(candidates, types)
	if err != nil {
		return err
	}
	if m == nil {
		argNames := make([]string, len(types))
		for i, t := range types {
			argNames[i] = fmt.Sprint(t)
		}
		return &MethodNotFoundError{
			MethodName:     name,
			Path:           h.section.Path(),
			Target:         tv.Type(),
			NameCandidates: names,
			Arguments:      argNames,
			Candidates:     candidates,
		}
	}
	call := &Call{
		Directive: &directive.Directive{MethodName: name, Key: name, Source: h.section, ArgsSection: h.section},
		Method:    m,
		Args:      make([]BoundArg, len(args)),
	}
	for i, p := range m.Params {
		v := values[i]
		if !v.IsValid() {
			v = reflect.Zero(p.Type)
		}
		call.Args[i] = BoundArg{Name: p.Name, Type: p.Type, Kind: ArgValue, Value: v}
	}
	return h.scope.runner().invoke(call, tv)
}

func (h *handle) Apply(target any, section config.Section) error {
	if section == nil {
		section = h.section
	}
	tv := reflect.ValueOf(target)
	if !tv.IsValid() {
		return ErrNilTarget
	}
	// the calling plan is complete, so not-found notifications are raised
	// directly instead of being deferred
	top := h.scope.child(section)
	top.parent = nil
	plan, err := top.planObject(tv.Type(), section, nil, false)
	if err != nil {
		return err
	}
	return h.scope.runner().applyPlan(plan, tv)
}
