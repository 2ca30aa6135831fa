// Package emit renders resolution plans as Go source.
//
// The generated statements perform the calls of a plan directly. Values are
// still read from the configuration when the generated code runs, through
// the runtime helpers of the configprocessor package, so the generated code
// follows configuration changes without being regenerated. Calls whose
// callee cannot be spelled in Go, such as closures registered as generic
// instantiations, fall back to resolving their single directive at runtime.
package emit

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"golang.org/x/tools/imports"

	"github.com/GoCodeAlone/configprocessor/catalog"
	"github.com/GoCodeAlone/configprocessor/convert"
	"github.com/GoCodeAlone/configprocessor/resolve"
)

// Import paths referenced by generated code.
const (
	RuntimePath = "github.com/GoCodeAlone/configprocessor"
	ConfigPath  = "github.com/GoCodeAlone/configprocessor/config"
)

var (
	// ErrUnrenderable is returned for types and values with no Go spelling.
	ErrUnrenderable = errors.New("cannot be rendered as Go source")
	// ErrNoPlan is returned by Apply for a nil plan.
	ErrNoPlan = errors.New("no plan to emit")
	// ErrNotApplied is returned by Source before a successful Apply.
	ErrNotApplied = errors.New("emitter has not been applied")
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Options control the generated text.
type Options struct {
	// Target names the variable holding the configured instance.
	Target string
	// Config names the configuration root variable, a config.Section.
	Config string
	// Func wraps the statements in a function taking the target and the
	// configuration and returning an error.
	Func string
	// Package turns the output into a complete file of that package. Func
	// defaults to "Configure" when Package is set.
	Package string
	// PackagePath is the import path of the generated file's package. Types
	// declared there are not qualified.
	PackagePath string
}

// Stats counts what the last Apply produced.
type Stats struct {
	Calls      int
	Properties int
	Fallbacks  int
}

// Emitter is the plan applier that writes Go source instead of invoking.
type Emitter struct {
	opts    Options
	imports *importSet
	tmp     int
	stats   Stats
	source  []byte
}

// New returns an Emitter for opts.
func New(opts Options) *Emitter {
	if opts.Target == "" {
		opts.Target = "target"
	}
	if opts.Config == "" {
		opts.Config = "cfg"
	}
	if opts.Package != "" && opts.Func == "" {
		opts.Func = "Configure"
	}
	return &Emitter{opts: opts}
}

// Emit renders plan with opts.
func Emit(plan *resolve.Plan, opts Options) ([]byte, error) {
	e := New(opts)
	if err := e.Apply(plan); err != nil {
		return nil, err
	}
	return e.Source()
}

// Apply renders plan. The statements assume the enclosing function returns
// an error unless Func is set.
func (e *Emitter) Apply(plan *resolve.Plan) error {
	if plan == nil {
		return ErrNoPlan
	}
	e.imports = newImportSet(e.opts.PackagePath)
	e.tmp = 0
	e.stats = Stats{}
	e.source = nil

	top := target{name: e.opts.Target, typ: plan.Target}
	var body bytes.Buffer
	if err := e.writePlan(&body, plan, top, returnErr); err != nil {
		return err
	}

	var out bytes.Buffer
	switch {
	case e.opts.Func != "":
		tt, err := e.imports.typeExpr(plan.Target)
		if err != nil {
			return fmt.Errorf("target type: %w", err)
		}
		cfgType := e.imports.qualify(ConfigPath) + "Section"
		if e.opts.Package != "" {
			fmt.Fprintf(&out, "// Code generated by cfgproc. DO NOT EDIT.\n\npackage %s\n\n", e.opts.Package)
			if specs := e.imports.specs(); len(specs) > 0 {
				fmt.Fprintf(&out, "import (\n%s\n)\n\n", strings.Join(specs, "\n"))
			}
		}
		fmt.Fprintf(&out, "// %s applies the configuration at %q to %s.\n", e.opts.Func, plan.Section.Path(), e.opts.Target)
		fmt.Fprintf(&out, "func %s(%s %s, %s %s) error {\n", e.opts.Func, e.opts.Target, tt, e.opts.Config, cfgType)
		out.Write(body.Bytes())
		out.WriteString("return nil\n}\n")
	default:
		out.Write(body.Bytes())
	}

	src, err := imports.Process("", out.Bytes(), &imports.Options{
		Fragment:   e.opts.Package == "",
		FormatOnly: true,
		Comments:   true,
		TabIndent:  true,
		TabWidth:   8,
	})
	if err != nil {
		return fmt.Errorf("formatting generated code: %w\n%s", err, out.Bytes())
	}
	e.source = src
	return nil
}

// Source returns the formatted output of the last Apply.
func (e *Emitter) Source() ([]byte, error) {
	if e.source == nil {
		return nil, ErrNotApplied
	}
	return e.source, nil
}

// Imports returns the import specs the generated statements need.
func (e *Emitter) Imports() []string {
	if e.imports == nil {
		return nil
	}
	return e.imports.specs()
}

// Stats reports the counts of the last Apply.
func (e *Emitter) Stats() Stats { return e.stats }

// target is a variable that calls are made on.
type target struct {
	name string
	typ  reflect.Type
}

// as returns the expression passing the target as a value of type want.
func (t target) as(want reflect.Type) string {
	switch {
	case t.typ == want || t.typ.AssignableTo(want):
		return t.name
	case t.typ.Kind() == reflect.Pointer && t.typ.Elem().AssignableTo(want):
		return "*" + t.name
	case want.Kind() == reflect.Pointer && t.typ.AssignableTo(want.Elem()):
		return "&" + t.name
	}
	return t.name
}

// pointer returns an expression through which the target can be modified.
func (t target) pointer() string {
	if t.typ.Kind() == reflect.Pointer || t.typ.Kind() == reflect.Interface {
		return t.name
	}
	return "&" + t.name
}

// errReturn renders the statement returning err from the current function.
type errReturn func(err string) string

func returnErr(err string) string { return "return " + err }

func (e *Emitter) next(prefix string) string {
	e.tmp++
	return prefix + strconv.Itoa(e.tmp)
}

func (e *Emitter) runtime(name string) string {
	return e.imports.qualify(RuntimePath) + name
}

func (e *Emitter) writePlan(w *bytes.Buffer, plan *resolve.Plan, t target, ret errReturn) error {
	for _, prop := range plan.Properties {
		if err := e.writeProperty(w, prop, t, ret); err != nil {
			return err
		}
	}
	for _, call := range plan.Calls {
		var buf bytes.Buffer
		mark, stats, tmp := e.imports.mark(), e.stats, e.tmp
		err := e.writeCall(&buf, call, t, ret)
		switch {
		case errors.Is(err, ErrUnrenderable):
			e.imports.rollback(mark)
			e.stats, e.tmp = stats, tmp
			e.writeFallback(w, call, t, ret)
		case err != nil:
			return err
		default:
			w.Write(buf.Bytes())
			e.stats.Calls++
		}
	}
	return nil
}

func (e *Emitter) writeProperty(w *bytes.Buffer, prop resolve.Property, t target, ret errReturn) error {
	var value string
	if prop.Nested != nil {
		v, err := e.writeObject(w, prop.Nested, prop.Type, ret)
		if err != nil {
			return fmt.Errorf("property %s: %w", prop.Name, err)
		}
		value = v
	} else {
		v, err := e.writeValue(w, prop.Type, prop.Section.Path(), prop.Name, prop.Key, ret)
		if err != nil {
			return fmt.Errorf("property %s: %w", prop.Name, err)
		}
		value = v
	}
	fmt.Fprintf(w, "%s.%s = %s\n", t.name, prop.Name, value)
	e.stats.Properties++
	return nil
}

// writeFallback resolves and runs the directive of call when the generated
// code runs.
func (e *Emitter) writeFallback(w *bytes.Buffer, call *resolve.Call, t target, ret errReturn) {
	fmt.Fprintf(w, "if err := %s(%s, %s, %s); err != nil {\n%s\n}\n",
		e.runtime("Bind"), t.pointer(), e.opts.Config, strconv.Quote(call.Directive.Source.Path()), ret("err"))
	e.stats.Fallbacks++
}

func (e *Emitter) writeValue(w *bytes.Buffer, typ reflect.Type, path, name, key string, ret errReturn) (string, error) {
	te, err := e.imports.typeExpr(typ)
	if err != nil {
		return "", err
	}
	v := e.next("v")
	fmt.Fprintf(w, "%s, err := %s[%s](%s, %s, %s, %s)\nif err != nil {\n%s\n}\n",
		v, e.runtime("Value"), te, e.opts.Config, strconv.Quote(path), strconv.Quote(name), strconv.Quote(key), ret("err"))
	return v, nil
}

func (e *Emitter) writeCall(w *bytes.Buffer, call *resolve.Call, t target, ret errReturn) error {
	m := call.Method
	path := call.Directive.Source.Path()
	wrapped := func(err string) string {
		return ret(fmt.Sprintf("%s(%s, %s, %s)", e.runtime("Err"), strconv.Quote(m.Signature()), strconv.Quote(path), err))
	}

	var captured []builderVars
	args := make([]string, len(call.Args))
	for i, a := range call.Args {
		expr, bv, err := e.writeArg(w, call, a, ret)
		if err != nil {
			return fmt.Errorf("%s at %q: %w", m.Signature(), path, err)
		}
		args[i] = expr
		if bv.err != "" {
			captured = append(captured, bv)
		}
	}

	var (
		callee string
		ft     reflect.Type
	)
	switch m.Kind {
	case resolve.MethodSetter:
		fmt.Fprintf(w, "%s.%s = %s\n", t.name, m.Name, args[0])
		// a builder stored in a field runs later, outside this call
		for _, bv := range captured {
			fmt.Fprintf(w, "%s = true\n_ = %s\n", bv.done, bv.err)
		}
		return nil
	case resolve.MethodInstance:
		callee = t.name + "." + m.Name
		if rm, ok := m.Target.MethodByName(m.Name); ok {
			ft = rm.Type
		}
	case resolve.MethodExtension:
		fn, err := e.funcExpr(m)
		if err != nil {
			return err
		}
		self, err := e.selfExpr(m, t)
		if err != nil {
			return err
		}
		callee = fn
		args = append([]string{self}, args...)
		ft = m.Func.Type()
	}

	expr := callee + "(" + strings.Join(args, ", ") + ")"
	if ft != nil && ft.NumOut() > 0 && ft.Out(ft.NumOut()-1) == errorType {
		lhs := strings.Repeat("_, ", ft.NumOut()-1) + "err"
		fmt.Fprintf(w, "if %s := %s; err != nil {\n%s\n}\n", lhs, expr, wrapped("err"))
	} else {
		fmt.Fprintf(w, "%s\n", expr)
	}
	for _, bv := range captured {
		fmt.Fprintf(w, "%s = true\nif %s != nil {\n%s\n}\n", bv.done, bv.err, wrapped(bv.err))
	}
	return nil
}

// funcExpr spells the function of an extension, type arguments included.
func (e *Emitter) funcExpr(m *resolve.Method) (string, error) {
	path, name, ok := splitQualified(m.Func.Expr)
	if !ok {
		return "", fmt.Errorf("%w: function %s has no Go expression", ErrUnrenderable, m.Func.Name)
	}
	expr := e.imports.qualify(path) + name
	if targs := m.TypeArgs(); len(targs) > 0 {
		rendered := make([]string, len(targs))
		for i, ta := range targs {
			r, err := e.imports.typeExpr(ta)
			if err != nil {
				return "", err
			}
			rendered[i] = r
		}
		expr += "[" + strings.Join(rendered, ", ") + "]"
	}
	return expr, nil
}

// selfExpr passes the target as the first parameter of an extension. Tuple
// shaped parameters are built field by field.
func (e *Emitter) selfExpr(m *resolve.Method, t target) (string, error) {
	src := t.typ
	if src.Kind() == reflect.Pointer {
		src = src.Elem()
	}
	tupleShape := src.Kind() == reflect.Struct && m.Self.Kind() == reflect.Struct &&
		src != m.Self && !src.AssignableTo(m.Self) && src.NumField() == m.Self.NumField()
	if !tupleShape {
		return t.as(m.Self), nil
	}
	st, err := e.imports.typeExpr(m.Self)
	if err != nil {
		return "", err
	}
	fields := make([]string, src.NumField())
	for i := range fields {
		f := src.Field(i)
		if !f.IsExported() {
			return "", fmt.Errorf("%w: unexported field %s", ErrUnrenderable, f.Name)
		}
		fields[i] = t.name + "." + f.Name
	}
	return st + "{" + strings.Join(fields, ", ") + "}", nil
}

// builderVars name the variables of a builder closure without an error
// result: err holds its failure while the call runs and done is set once
// the call has returned, after which failures go to the runtime's deferred
// handler.
type builderVars struct {
	err  string
	done string
}

// writeArg renders one argument of call.
func (e *Emitter) writeArg(w *bytes.Buffer, call *resolve.Call, a resolve.BoundArg, ret errReturn) (string, builderVars, error) {
	switch a.Kind {
	case resolve.ArgValue, resolve.ArgDictionary:
		if a.Section == nil {
			return "", builderVars{}, fmt.Errorf("%w: argument %s has no section", ErrUnrenderable, a.Name)
		}
		expr, err := e.writeValue(w, a.Type, a.Section.Path(), a.Name, a.Key, ret)
		return expr, builderVars{}, err
	case resolve.ArgDefault:
		expr, err := e.literal(a.Value, a.Type)
		return expr, builderVars{}, err
	case resolve.ArgRoot:
		return e.opts.Config + ".Root()", builderVars{}, nil
	case resolve.ArgSection:
		if a.Section.Path() == "" {
			return e.opts.Config, builderVars{}, nil
		}
		return fmt.Sprintf("%s.Section(%s)", e.opts.Config, strconv.Quote(a.Section.Path())), builderVars{}, nil
	case resolve.ArgProcessor:
		return fmt.Sprintf("%s(%s, %s)", e.runtime("ProcessorFor"), e.opts.Config, strconv.Quote(a.Section.Path())), builderVars{}, nil
	case resolve.ArgBuilder:
		return e.writeBuilder(w, call, a)
	case resolve.ArgObject:
		expr, err := e.writeObject(w, a.Nested, a.Type, ret)
		return expr, builderVars{}, err
	}
	return "", builderVars{}, fmt.Errorf("%w: argument kind %s", ErrUnrenderable, a.Kind)
}

func (e *Emitter) writeBuilder(w *bytes.Buffer, call *resolve.Call, a resolve.BoundArg) (string, builderVars, error) {
	var bv builderVars
	elem, ok := convert.BuilderElem(a.Type)
	if !ok {
		return "", bv, fmt.Errorf("%w: %s is not a builder", ErrUnrenderable, a.Type)
	}
	et, err := e.imports.typeExpr(elem)
	if err != nil {
		return "", bv, err
	}
	param := e.next("b")
	returnsErr := a.Type.NumOut() == 1

	var (
		body bytes.Buffer
		ret  errReturn = returnErr
	)
	if !returnsErr {
		bv = builderVars{err: e.next("err"), done: e.next("done")}
		sig := strconv.Quote(call.Method.Signature())
		path := strconv.Quote(call.Directive.Source.Path())
		ret = func(err string) string {
			return fmt.Sprintf("if %s {\n%s(%s, %s, %s)\n} else {\n%s = %s\n}\nreturn",
				bv.done, e.runtime("Deferred"), sig, path, err, bv.err, err)
		}
	}
	if err := e.writePlan(&body, a.Nested, target{name: param, typ: elem}, ret); err != nil {
		return "", builderVars{}, err
	}
	switch {
	case body.Len() == 0 && returnsErr:
		return "func(" + et + ") error { return nil }", builderVars{}, nil
	case body.Len() == 0:
		return "func(" + et + ") {}", builderVars{}, nil
	case returnsErr:
		return fmt.Sprintf("func(%s %s) error {\n%sreturn nil\n}", param, et, body.String()), builderVars{}, nil
	}
	fmt.Fprintf(w, "var %s error\nvar %s bool\n", bv.err, bv.done)
	return fmt.Sprintf("func(%s %s) {\n%s}", param, et, body.String()), bv, nil
}

// writeObject constructs and configures the instance of a nested plan and
// returns the expression passing it as want.
func (e *Emitter) writeObject(w *bytes.Buffer, plan *resolve.Plan, want reflect.Type, ret errReturn) (string, error) {
	pt := plan.Target
	v := e.next("o")
	switch {
	case plan.Constructor.IsValid():
		path, name, ok := splitQualified(catalog.FuncExpr(plan.Constructor))
		if !ok {
			return "", fmt.Errorf("%w: constructor of %s", ErrUnrenderable, pt)
		}
		ctor := e.imports.qualify(path) + name + "()"
		ct := plan.Constructor.Type()
		made := v
		if ct.Out(0) != pt {
			made = e.next("o")
		}
		if ct.NumOut() == 2 && ct.Out(1) == errorType {
			fmt.Fprintf(w, "%s, err := %s\nif err != nil {\n%s\n}\n", made, ctor, ret("err"))
		} else {
			fmt.Fprintf(w, "%s := %s\n", made, ctor)
		}
		if made != v {
			fmt.Fprintf(w, "%s := &%s\n", v, made)
		}
	case pt.Kind() == reflect.Pointer:
		et, err := e.imports.typeExpr(pt.Elem())
		if err != nil {
			return "", err
		}
		fmt.Fprintf(w, "%s := new(%s)\n", v, et)
	default:
		return "", fmt.Errorf("%w: no way to create %s", ErrUnrenderable, pt)
	}
	t := target{name: v, typ: pt}
	if err := e.writePlan(w, plan, t, ret); err != nil {
		return "", err
	}
	return t.as(want), nil
}

// literal spells a default value.
func (e *Emitter) literal(v reflect.Value, typ reflect.Type) (string, error) {
	if !v.IsValid() || v.IsZero() {
		switch typ.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return "nil", nil
		}
		te, err := e.imports.typeExpr(typ)
		if err != nil {
			return "", err
		}
		return "*new(" + te + ")", nil
	}
	var lit string
	switch v.Kind() {
	case reflect.Bool:
		lit = strconv.FormatBool(v.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		lit = strconv.FormatInt(v.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		lit = strconv.FormatUint(v.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		lit = strconv.FormatFloat(v.Float(), 'g', -1, 64)
	case reflect.String:
		lit = strconv.Quote(v.String())
	default:
		return "", fmt.Errorf("%w: default value of %s", ErrUnrenderable, typ)
	}
	if typ.Name() == "" || typ.PkgPath() == "" {
		return lit, nil
	}
	te, err := e.imports.typeExpr(typ)
	if err != nil {
		return "", err
	}
	return te + "(" + lit + ")", nil
}
