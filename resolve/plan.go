package resolve

import (
	"reflect"

	"github.com/GoCodeAlone/configprocessor/config"
	"github.com/GoCodeAlone/configprocessor/directive"
)

// ArgKind says where a bound argument comes from.
type ArgKind int

// Argument kinds
const (
	// ArgValue is a value converted from configuration.
	ArgValue ArgKind = iota
	// ArgDefault is the parameter default.
	ArgDefault
	// ArgRoot is the root configuration.
	ArgRoot
	// ArgSection is the section the directive came from.
	ArgSection
	// ArgProcessor is a processor handle scoped to the section.
	ArgProcessor
	// ArgBuilder is a builder function running a nested plan.
	ArgBuilder
	// ArgObject is a new instance configured by a nested plan.
	ArgObject
	// ArgDictionary is the whole argument section converted to a map.
	ArgDictionary
)

func (k ArgKind) String() string {
	switch k {
	case ArgValue:
		return "value"
	case ArgDefault:
		return "default"
	case ArgRoot:
		return "root"
	case ArgSection:
		return "section"
	case ArgProcessor:
		return "processor"
	case ArgBuilder:
		return "builder"
	case ArgObject:
		return "object"
	case ArgDictionary:
		return "dictionary"
	}
	return "unknown"
}

// BoundArg is one argument of a planned call.
type BoundArg struct {
	Name string
	Type reflect.Type
	Kind ArgKind
	// Value is set for every kind except ArgBuilder and ArgObject.
	Value reflect.Value
	// Section is the configuration the argument was read from, if any.
	Section config.Section
	// Key is the configuration key the value was converted for.
	Key string
	// Nested configures the builder argument or the new object.
	Nested *Plan
}

// Call is one resolved directive.
type Call struct {
	Directive *directive.Directive
	Method    *Method
	Args      []BoundArg
}

// Property is a field assignment made before the calls of a nested plan.
// A struct valued field is configured by Nested instead of Value.
type Property struct {
	Name    string
	Field   []int
	Type    reflect.Type
	Value   reflect.Value
	Section config.Section
	Key     string
	Nested  *Plan
}

// Plan is the resolved form of a configuration section against a target
// type. It holds no reference to a target instance and can be applied by
// any Applier.
type Plan struct {
	// Target is the type the plan applies to. Nested plans over structs
	// target a pointer so fields are settable.
	Target  reflect.Type
	Section config.Section
	// Constructor creates the instance of a nested object plan when the
	// type registers one without parameters.
	Constructor reflect.Value
	// Properties are assigned before Calls run.
	Properties []Property
	Calls      []*Call
}

// Len returns the number of calls and property assignments, nested plans
// included.
func (p *Plan) Len() int {
	if p == nil {
		return 0
	}
	n := len(p.Properties)
	for _, prop := range p.Properties {
		n += prop.Nested.Len()
	}
	for _, c := range p.Calls {
		n++
		for _, a := range c.Args {
			n += a.Nested.Len()
		}
	}
	return n
}

// Walk visits every call depth first, nested plans before the call that
// owns them.
func (p *Plan) Walk(fn func(c *Call, depth int)) {
	p.walk(fn, 0)
}

func (p *Plan) walk(fn func(c *Call, depth int), depth int) {
	if p == nil {
		return
	}
	for _, c := range p.Calls {
		for _, a := range c.Args {
			a.Nested.walk(fn, depth+1)
		}
		fn(c, depth)
	}
}

// Applier consumes a plan: the Invoker runs it against a target instance and
// the emitter renders it as Go source.
type Applier interface {
	Apply(plan *Plan) error
}
