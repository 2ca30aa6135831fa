package resolve

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Invoker applies plans to a target instance with reflection.
type Invoker struct {
	Target reflect.Value
	// OnDeferred receives the failures of builders without an error result
	// that the callee kept and ran after the call returned.
	OnDeferred func(error)

	mu       sync.Mutex
	deferred []error
}

// NewInvoker returns an Invoker for target, normally a pointer.
func NewInvoker(target any) *Invoker {
	return &Invoker{Target: reflect.ValueOf(target)}
}

// Apply runs every property assignment and call of plan against the target.
func (iv *Invoker) Apply(plan *Plan) error {
	return runner{deferred: iv.report}.applyPlan(plan, iv.Target)
}

// DeferredErr joins the failures of builders that ran after their call
// returned.
func (iv *Invoker) DeferredErr() error {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	return errors.Join(iv.deferred...)
}

func (iv *Invoker) report(err error) {
	iv.mu.Lock()
	iv.deferred = append(iv.deferred, err)
	iv.mu.Unlock()
	if iv.OnDeferred != nil {
		iv.OnDeferred(err)
	}
}

// runner carries the sink for builder failures that outlive their call.
type runner struct {
	deferred func(error)
}

func (r runner) applyPlan(plan *Plan, target reflect.Value) error {
	if !target.IsValid() {
		return ErrNilTarget
	}
	if (target.Kind() == reflect.Pointer || target.Kind() == reflect.Interface) && target.IsNil() {
		return ErrNilTarget
	}
	for _, prop := range plan.Properties {
		if err := r.setProperty(target, prop); err != nil {
			return err
		}
	}
	for _, call := range plan.Calls {
		if err := r.invoke(call, target); err != nil {
			return err
		}
	}
	return nil
}

func (r runner) setProperty(target reflect.Value, prop Property) error {
	obj := target
	for obj.Kind() == reflect.Pointer || obj.Kind() == reflect.Interface {
		obj = obj.Elem()
	}
	if !obj.CanSet() {
		return fmt.Errorf("%w: property %s", ErrTargetNotAddressable, prop.Name)
	}
	field, err := obj.FieldByIndexErr(prop.Field)
	if err != nil {
		return fmt.Errorf("property %s: %w", prop.Name, err)
	}
	if prop.Nested == nil {
		field.Set(prop.Value)
		return nil
	}
	v, err := instantiate(prop.Nested)
	if err != nil {
		return fmt.Errorf("property %s: %w", prop.Name, err)
	}
	if err := r.applyPlan(prop.Nested, v); err != nil {
		return fmt.Errorf("property %s: %w", prop.Name, err)
	}
	field.Set(adapt(v, prop.Type))
	return nil
}

// builderSink collects the failures of builders without an error result.
// Once the call has returned they go to the runner's deferred sink.
type builderSink struct {
	call     *Call
	returned atomic.Bool
	errs     []error
	deferred func(error)
}

func (b *builderSink) add(err error) {
	if b.returned.Load() {
		if b.deferred != nil {
			b.deferred(callError(b.call, err))
		}
		return
	}
	b.errs = append(b.errs, err)
}

func (r runner) invoke(call *Call, target reflect.Value) error {
	sink := &builderSink{call: call, deferred: r.deferred}
	defer sink.returned.Store(true)

	args := make([]reflect.Value, len(call.Args))
	for i, a := range call.Args {
		v, err := r.materialize(a, sink)
		if err != nil {
			return callError(call, err)
		}
		args[i] = v
	}

	m := call.Method
	var out []reflect.Value
	switch m.Kind {
	case MethodSetter:
		obj := target
		for obj.Kind() == reflect.Pointer {
			obj = obj.Elem()
		}
		field, err := obj.FieldByIndexErr(m.Field)
		if err != nil {
			return callError(call, err)
		}
		if !field.CanSet() {
			return callError(call, ErrTargetNotAddressable)
		}
		field.Set(args[0])
	case MethodInstance:
		fn := target.MethodByName(m.Name)
		if !fn.IsValid() {
			return callError(call, fmt.Errorf("%w: %s has no method %s", ErrMethodNotFound, target.Type(), m.Name))
		}
		out = fn.Call(args)
	case MethodExtension:
		out = m.Func.Value.Call(append([]reflect.Value{m.selfValue(target)}, args...))
	}

	if err := errors.Join(sink.errs...); err != nil {
		return callError(call, err)
	}
	if n := len(out); n > 0 && out[n-1].Type() == errorType && !out[n-1].IsNil() {
		return callError(call, out[n-1].Interface().(error)) //nolint:forcetypeassert // checked above
	}
	return nil
}

func callError(call *Call, err error) error {
	return fmt.Errorf("%s at %q: %w", call.Method.Signature(), call.Directive.Source.Path(), err)
}

// materialize produces the reflect value of a bound argument.
func (r runner) materialize(a BoundArg, sink *builderSink) (reflect.Value, error) {
	switch a.Kind {
	case ArgBuilder:
		return r.builderFunc(a, sink), nil
	case ArgObject:
		v, err := instantiate(a.Nested)
		if err != nil {
			return reflect.Value{}, err
		}
		if err := r.applyPlan(a.Nested, v); err != nil {
			return reflect.Value{}, err
		}
		return adapt(v, a.Type), nil
	}
	if !a.Value.IsValid() {
		return reflect.Zero(a.Type), nil
	}
	return adapt(a.Value, a.Type), nil
}

func (r runner) builderFunc(a BoundArg, sink *builderSink) reflect.Value {
	ft := a.Type
	returnsErr := ft.NumOut() == 1
	return reflect.MakeFunc(ft, func(in []reflect.Value) []reflect.Value {
		err := r.applyBuilder(a.Nested, in[0])
		if returnsErr {
			errValue := reflect.Zero(errorType)
			if err != nil {
				errValue = reflect.ValueOf(&err).Elem()
			}
			return []reflect.Value{errValue}
		}
		if err != nil {
			sink.add(err)
		}
		return nil
	})
}

// applyBuilder applies plan to the builder argument. A value argument is
// applied through a pointer copy.
func (r runner) applyBuilder(plan *Plan, arg reflect.Value) error {
	if arg.Type() == plan.Target || arg.Kind() == reflect.Interface {
		return r.applyPlan(plan, arg)
	}
	ptr := reflect.New(arg.Type())
	ptr.Elem().Set(arg)
	return r.applyPlan(plan, ptr)
}

// instantiate creates the instance a nested plan configures.
func instantiate(plan *Plan) (reflect.Value, error) {
	t := plan.Target
	if plan.Constructor.IsValid() {
		out := plan.Constructor.Call(nil)
		if len(out) == 2 && out[1].Type() == errorType && !out[1].IsNil() {
			return reflect.Value{}, out[1].Interface().(error) //nolint:forcetypeassert // checked above
		}
		v := out[0]
		switch {
		case v.Type() == t:
			return v, nil
		case t.Kind() == reflect.Pointer && v.Type() == t.Elem():
			p := reflect.New(t.Elem())
			p.Elem().Set(v)
			return p, nil
		}
	}
	if t.Kind() != reflect.Pointer {
		return reflect.Value{}, fmt.Errorf("%w: %s", ErrNoInstance, t)
	}
	return reflect.New(t.Elem()), nil
}

// adapt converts v, or the value v points to, to t.
func adapt(v reflect.Value, t reflect.Type) reflect.Value {
	switch {
	case v.Type() == t:
		return v
	case v.Kind() == reflect.Pointer && v.Type().Elem() == t:
		return v.Elem()
	case v.Type().AssignableTo(t):
		out := reflect.New(t).Elem()
		out.Set(v)
		return out
	case v.Type().ConvertibleTo(t):
		return v.Convert(t)
	}
	return v
}
