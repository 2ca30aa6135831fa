package resolve

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/configprocessor/catalog"
	"github.com/GoCodeAlone/configprocessor/config"
	"github.com/GoCodeAlone/configprocessor/feeders"
)

type Callback func(string) string

type TimeHolder struct {
	Time time.Duration
}

type ComplexObject struct {
	Name  string
	Value *TimeHolder
}

type ActionBuilder struct {
	Items []string
}

type FailingBuilder struct{}

func (FailingBuilder) Fail(reason string) error { return errors.New(reason) }

type Services struct {
	Level     int
	Strings   []string
	Ints      []int
	Callbacks []Callback
	Complex   []ComplexObject
	Actions   []string
	Conn      string
	Tags      map[string]string
	Paths     []string
	Pending   []func(FailingBuilder)
}

func (s *Services) AddSimpleString(value string) { s.Strings = append(s.Strings, value) }

func prefixDelegate(s string) string { return "delegate:" + s }

const resolveLib = "example.com/resolvetest"

func servicesCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	lib := catalog.NewLibrary(resolveLib)
	lib.Type(Services{}).Method("AddSimpleString", "value")
	lib.Type(ComplexObject{})
	lib.Holder("DelegateMembers").Func("TestDelegate", prefixDelegate).Params("s")

	ext := lib.Holder("ServiceExtensions")
	ext.Func("AddDummyDelegate", func(s *Services, cb Callback) { s.Callbacks = append(s.Callbacks, cb) }).
		Params("services", "dummyDelegate")
	ext.Func("AddComplexObject", func(s *Services, o ComplexObject) { s.Complex = append(s.Complex, o) }).
		Params("services", "complexObject")
	ext.Func("AddDummyArray", func(s *Services, values []int) { s.Ints = append(s.Ints, values...) }).
		Params("services", "values")
	ext.Func("AddDummyArray", func(s *Services, value int) { s.Ints = append(s.Ints, value*100) }).
		Params("services", "value")
	ext.Func("AddConfigurationAction", func(s *Services, configure func(*ActionBuilder)) {
		b := &ActionBuilder{}
		configure(b)
		s.Actions = append(s.Actions, b.Items...)
	}).Params("services", "configure")
	ext.Func("AddDbConnection", func(s *Services, cs string) { s.Conn = cs }).
		Params("services", "connectionString")
	ext.Func("AddFailing", func(s *Services, configure func(FailingBuilder)) { configure(FailingBuilder{}) }).
		Params("services", "configure")
	ext.Func("AddLater", func(s *Services, configure func(FailingBuilder)) { s.Pending = append(s.Pending, configure) }).
		Params("services", "configure")
	ext.Func("AddManual", func(s *Services, p Processor) error {
		return p.Invoke(s, "SimpleString", "manual:"+p.Section().Key())
	}).Params("services", "processor")
	ext.Func("AddContext", func(s *Services, root *config.Root, section config.Section) {
		v, _ := root.Section("Marker").Value()
		s.Paths = append(s.Paths, section.Path()+"="+v)
	}).Params("services", "root", "section")
	ext.Func("Labels", func(s *Services, labels map[string]string) { s.Tags = labels }).
		Params("services", "labels")

	lib.Holder("ActionExtensions").Generic("Append", 1, func(types []reflect.Type) (any, error) {
		name := catalog.TypeString(types[0])
		return func(b *ActionBuilder, value string) {
			b.Items = append(b.Items, name+"="+value)
		}, nil
	}).Params("builder", "value")
	require.NoError(t, lib.Err())
	return catalog.New(lib)
}

func process(t *testing.T, doc, path string, opts Options) (*Services, error) {
	t.Helper()
	root, err := config.New(feeders.JSON(doc))
	require.NoError(t, err)
	if opts.Catalog == nil {
		opts.Catalog = servicesCatalog(t)
	}
	scope := NewScope(opts, root.Section(path))
	plan, err := scope.Plan(reflect.TypeOf(&Services{}), true)
	if err != nil {
		return nil, err
	}
	s := &Services{}
	return s, NewInvoker(s).Apply(plan)
}

func TestNameCandidates(t *testing.T) {
	assert.Equal(t, []string{"Console", "AddConsole", "set_Console"}, NameCandidates("Console", nil, nil))
	assert.Equal(t,
		[]string{"Otlp", "AddOtlp", "UseOtlp", "OtlpExporter", "AddOtlpExporter", "UseOtlpExporter", "set_Otlp"},
		NameCandidates("Otlp", []string{"Use", "add"}, []string{"Exporter"}))
}

func TestScenario_SimpleString(t *testing.T) {
	s, err := process(t, `{"S": {"SimpleString": "hello"}}`, "S", Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, s.Strings)
}

func TestScenario_DelegateMember(t *testing.T) {
	s, err := process(t, `{"S": [{"Name": "AddDummyDelegate", "DummyDelegate": "resolvetest.DelegateMembers::TestDelegate"}]}`, "S", Options{})
	require.NoError(t, err)
	require.Len(t, s.Callbacks, 1)
	assert.Equal(t, "delegate:x", s.Callbacks[0]("x"))
}

func TestScenario_ComplexObject(t *testing.T) {
	s, err := process(t, `{"S": {"ComplexObject": {"Name": "hello", "Value": {"Time": "13:00:10"}}}}`, "S", Options{})
	require.NoError(t, err)
	require.Len(t, s.Complex, 1)
	assert.Equal(t, "hello", s.Complex[0].Name)
	require.NotNil(t, s.Complex[0].Value)
	assert.Equal(t, 13*time.Hour+10*time.Second, s.Complex[0].Value.Time)
}

func TestScenario_CollectionShortcut(t *testing.T) {
	s, err := process(t, `{"S": {"DummyArray": [1, 2]}}`, "S", Options{})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, s.Ints)

	s, err = process(t, `{"S": {"DummyArray": {"value": "3"}}}`, "S", Options{})
	require.NoError(t, err)
	assert.Equal(t, []int{300}, s.Ints, "a named value picks the single value overload")
}

func TestScenario_GenericDynamicTypes(t *testing.T) {
	s, err := process(t, `{"S": {"ConfigurationAction": {"Append<@x>": {"value": "1"}, "Append<@a>": {"value": "2"}}}}`, "S", Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"@a=2", "@x=1"}, s.Actions)
}

func TestScenario_ConnectionString(t *testing.T) {
	s, err := process(t, `{"ConnectionStrings": {"Conn1": "abcd"}, "S": {"DbConnection": "Conn1"}}`, "S", Options{})
	require.NoError(t, err)
	assert.Equal(t, "abcd", s.Conn)
}

func TestSetterAndDictionary(t *testing.T) {
	s, err := process(t, `{"S": {"Level": "5", "Labels": {"env": "prod", "tier": "web"}}}`, "S", Options{})
	require.NoError(t, err)
	assert.Equal(t, 5, s.Level)
	assert.Equal(t, map[string]string{"env": "prod", "tier": "web"}, s.Tags)
}

func TestImplicitParameters(t *testing.T) {
	s, err := process(t, `{"Marker": "m", "S": {"Context": true, "Manual": true}}`, "S", Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"S:Context=m"}, s.Paths)
	assert.Equal(t, []string{"manual:Manual"}, s.Strings)
}

func TestBuilderFailureAfterCallReturns(t *testing.T) {
	root, err := config.New(feeders.JSON(`{"S": {"Later": {"Fail": "boom"}}}`))
	require.NoError(t, err)
	plan, err := NewScope(Options{Catalog: servicesCatalog(t)}, root.Section("S")).Plan(reflect.TypeOf(&Services{}), true)
	require.NoError(t, err)

	s := &Services{}
	iv := NewInvoker(s)
	var reported []error
	iv.OnDeferred = func(err error) { reported = append(reported, err) }
	require.NoError(t, iv.Apply(plan), "the builder has not run yet")
	require.NoError(t, iv.DeferredErr())
	require.Len(t, s.Pending, 1)

	s.Pending[0](FailingBuilder{})
	err = iv.DeferredErr()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Contains(t, err.Error(), "AddLater")
	assert.Contains(t, err.Error(), `"S:Later"`)
	require.Len(t, reported, 1)
	assert.Equal(t, err.Error(), reported[0].Error())
}

func TestBuilderErrorSurfacesFromCall(t *testing.T) {
	_, err := process(t, `{"S": {"Failing": {"Fail": "boom"}}}`, "S", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Contains(t, err.Error(), "AddFailing")
}

func TestNotFound(t *testing.T) {
	_, err := process(t, `{"S": {"Unknown": "x"}}`, "S", Options{})
	var nf *MethodNotFoundError
	require.ErrorAs(t, err, &nf)
	require.ErrorIs(t, err, ErrMethodNotFound)
	assert.Equal(t, "Unknown", nf.MethodName)
	assert.Equal(t, []string{"Unknown", "AddUnknown", "set_Unknown"}, nf.NameCandidates)

	var seen []*NotFound
	s, err := process(t, `{"S": {"Unknown": "x", "SimpleString": "ok"}}`, "S", Options{
		NotFound: func(n *NotFound) {
			seen = append(seen, n)
			n.Handled = true
		},
	})
	require.NoError(t, err)
	require.Len(t, seen, 1)
	assert.Equal(t, "S:Unknown", seen[0].Path)
	assert.Equal(t, map[string]string{"": "x"}, seen[0].Arguments)
	assert.Equal(t, []string{"ok"}, s.Strings)
}

func TestNotFoundListsCandidates(t *testing.T) {
	_, err := process(t, `{"S": {"DbConnection": {"other": "x"}}}`, "S", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ServiceExtensions.AddDbConnection(services *resolve.Services, connectionString string)")
}

func TestNestedScopeReconciliation(t *testing.T) {
	var raised []string
	_, err := process(t, `{"S": {"ConfigurationAction": {"Append<@x>": {"value": "1"}, "Append": "plain", "Missing": true}}}`, "S", Options{
		NotFound: func(n *NotFound) {
			raised = append(raised, n.MethodName)
			n.Handled = true
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Missing"}, raised, "Append was matched in the child scope")

	_, err = process(t, `{"S": {"ConfigurationAction": {"Missing": true}}}`, "S", Options{})
	var nf *MethodNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "S:ConfigurationAction:Missing", nf.Path)
}

type Picker struct {
	Picked string
}

func (p *Picker) Choose(name string) { p.Picked = "instance:" + name }

func pickerCatalog(t *testing.T, register func(h *catalog.Holder)) *catalog.Catalog {
	t.Helper()
	lib := catalog.NewLibrary("example.com/pickers")
	lib.Type(Picker{}).Method("Choose", "name")
	register(lib.Holder("PickerExtensions"))
	require.NoError(t, lib.Err())
	return catalog.New(lib)
}

func pick(t *testing.T, cat *catalog.Catalog, doc string) (string, error) {
	t.Helper()
	root, err := config.New(feeders.JSON(doc))
	require.NoError(t, err)
	plan, err := NewScope(Options{Catalog: cat}, root).Plan(reflect.TypeOf(&Picker{}), true)
	if err != nil {
		return "", err
	}
	p := &Picker{}
	if err := NewInvoker(p).Apply(plan); err != nil {
		return "", err
	}
	return p.Picked, nil
}

// The tie-break order below is pinned behavior, not a derived rule.
func TestSelectMethod_PinnedTieBreaks(t *testing.T) {
	t.Run("string typed match wins equal name matches", func(t *testing.T) {
		cat := pickerCatalog(t, func(h *catalog.Holder) {
			h.Func("Pick", func(p *Picker, a int) { p.Picked = "int" }).Params("p", "a")
			h.Func("Pick", func(p *Picker, a string) { p.Picked = "string" }).Params("p", "a")
		})
		got, err := pick(t, cat, `{"Pick": {"a": "1"}}`)
		require.NoError(t, err)
		assert.Equal(t, "string", got)
	})

	t.Run("matched count wins string overlap", func(t *testing.T) {
		cat := pickerCatalog(t, func(h *catalog.Holder) {
			h.Func("Tune", func(p *Picker, a string) { p.Picked = "one" }).Params("p", "a")
			h.Func("Tune", func(p *Picker, a, b int) { p.Picked = "two" }).Params("p", "a", "b")
		})
		got, err := pick(t, cat, `{"Tune": {"a": "1", "b": "2"}}`)
		require.NoError(t, err)
		assert.Equal(t, "two", got)
	})

	t.Run("instance wins static", func(t *testing.T) {
		cat := pickerCatalog(t, func(h *catalog.Holder) {
			h.Func("Choose", func(p *Picker, name string) { p.Picked = "static:" + name }).Params("p", "name")
		})
		got, err := pick(t, cat, `{"Choose": {"name": "x"}}`)
		require.NoError(t, err)
		assert.Equal(t, "instance:x", got)
	})

	t.Run("zero parameter fallback when nothing is supplied", func(t *testing.T) {
		cat := pickerCatalog(t, func(h *catalog.Holder) {
			h.Func("Reset", func(p *Picker, force bool) { p.Picked = "force" }).Params("p", "force").Default("force", false)
			h.Func("Reset", func(p *Picker) { p.Picked = "plain" }).Params("p")
		})
		got, err := pick(t, cat, `{"Reset": true}`)
		require.NoError(t, err)
		assert.Equal(t, "plain", got)
	})

	t.Run("most parameters", func(t *testing.T) {
		cat := pickerCatalog(t, func(h *catalog.Holder) {
			h.Func("Configure", func(p *Picker, a string) { p.Picked = "short" }).Params("p", "a")
			h.Func("Configure", func(p *Picker, a string, b int) { p.Picked = "long" }).Params("p", "a", "b").Default("b", 1)
		})
		got, err := pick(t, cat, `{"Configure": {"a": "x"}}`)
		require.NoError(t, err)
		assert.Equal(t, "long", got)
	})

	t.Run("equal candidates are ambiguous", func(t *testing.T) {
		cat := pickerCatalog(t, func(h *catalog.Holder) {
			h.Func("Pick", func(p *Picker, a string, b int) {}).Params("p", "a", "b").Default("b", 0)
			h.Func("Pick", func(p *Picker, a string, c int) {}).Params("p", "a", "c").Default("c", 0)
		})
		_, err := pick(t, cat, `{"Pick": {"a": "x"}}`)
		var amb *AmbiguousMethodError
		require.ErrorAs(t, err, &amb)
		assert.Equal(t, StageNamed, amb.Stage)
		assert.Len(t, amb.Candidates, 2)
		assert.Contains(t, err.Error(), "PickerExtensions.Pick(p *resolve.Picker, a string, c int = 0)")
	})

	t.Run("ambiguous single value", func(t *testing.T) {
		cat := pickerCatalog(t, func(h *catalog.Holder) {
			h.Func("Value", func(p *Picker, a string) {}).Params("p", "a")
			h.Func("Value", func(p *Picker, b string) {}).Params("p", "b")
		})
		_, err := pick(t, cat, `{"Value": "x"}`)
		var amb *AmbiguousMethodError
		require.ErrorAs(t, err, &amb)
		assert.Equal(t, StageBlank, amb.Stage)
	})
}

func TestSelectMethod_Deterministic(t *testing.T) {
	cat := servicesCatalog(t)
	root, err := config.New(feeders.JSON(`{"S": {"DummyArray": [3], "ComplexObject": {"Name": "n"}, "SimpleString": "s"}}`))
	require.NoError(t, err)
	scope := NewScope(Options{Catalog: cat}, root.Section("S"))

	first, err := scope.Plan(reflect.TypeOf(&Services{}), true)
	require.NoError(t, err)
	for range 5 {
		again, err := scope.Plan(reflect.TypeOf(&Services{}), true)
		require.NoError(t, err)
		require.Len(t, again.Calls, len(first.Calls))
		for i := range first.Calls {
			assert.Equal(t, first.Calls[i].Method.Signature(), again.Calls[i].Method.Signature())
		}
	}
}

func TestSelectMethodByTypes(t *testing.T) {
	target := reflect.TypeOf(&Picker{})
	lib := catalog.NewLibrary("example.com/bytypes")
	h := lib.Holder("H")
	h.Func("Set", func(p *Picker, v any) {}).Params("p", "v")
	h.Func("Set", func(p *Picker, v string) {}).Params("p", "v")
	h.Func("Set", func(p *Picker, v *int) {}).Params("p", "v")
	require.NoError(t, lib.Err())
	cat := catalog.New(lib)
	candidates, err := gather(gatherRequest{catalog: cat, target: target, names: []string{"Set"}, log: nopLogger{}})
	require.NoError(t, err)
	require.Len(t, candidates, 3)

	m, err := SelectMethodByTypes(candidates, []reflect.Type{reflect.TypeOf("")})
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeOf(""), m.Params[0].Type)

	m, err = SelectMethodByTypes(candidates, []reflect.Type{reflect.TypeOf(1.5)})
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeOf((*any)(nil)).Elem(), m.Params[0].Type)

	_, err = SelectMethodByTypes(candidates, []reflect.Type{nil})
	require.ErrorIs(t, err, ErrAmbiguousMethod)

	m, err = SelectMethodByTypes(candidates, []reflect.Type{reflect.TypeOf(1), reflect.TypeOf(1)})
	require.NoError(t, err)
	assert.Nil(t, m)
}

type pair struct {
	A string
	B int
}

type tuple struct {
	X string
	Y int
}

func TestSelfCompatibility(t *testing.T) {
	mode, ok := selfCompatible(reflect.TypeOf(&Picker{}), reflect.TypeOf(&Picker{}))
	assert.True(t, ok)
	assert.Equal(t, selfDirect, mode)

	mode, ok = selfCompatible(reflect.TypeOf(&Picker{}), reflect.TypeOf(Picker{}))
	assert.True(t, ok)
	assert.Equal(t, selfElem, mode)

	mode, ok = selfCompatible(reflect.TypeOf(&pair{}), reflect.TypeOf(tuple{}))
	assert.True(t, ok)
	assert.Equal(t, selfTuple, mode)

	_, ok = selfCompatible(reflect.TypeOf(&Picker{}), reflect.TypeOf(tuple{}))
	assert.False(t, ok)

	m := &Method{Self: reflect.TypeOf(tuple{}), self: selfTuple}
	v := m.selfValue(reflect.ValueOf(&pair{A: "a", B: 2}))
	assert.Equal(t, tuple{X: "a", Y: 2}, v.Interface())
}

func TestPlanWalkAndLen(t *testing.T) {
	root, err := config.New(feeders.JSON(`{"S": {"ConfigurationAction": {"Append<@a>": {"value": "1"}}, "SimpleString": "x"}}`))
	require.NoError(t, err)
	plan, err := NewScope(Options{Catalog: servicesCatalog(t)}, root.Section("S")).Plan(reflect.TypeOf(&Services{}), true)
	require.NoError(t, err)

	var visited []string
	plan.Walk(func(c *Call, depth int) {
		visited = append(visited, strings.Repeat(">", depth)+c.Method.Name)
	})
	assert.Equal(t, []string{">Append", "AddConfigurationAction", "AddSimpleString"}, visited)
	assert.Equal(t, 3, plan.Len())
}
