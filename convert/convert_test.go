package convert

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/configprocessor/catalog"
	"github.com/GoCodeAlone/configprocessor/config"
	"github.com/GoCodeAlone/configprocessor/feeders"
)

type Level int

const (
	Debug Level = iota
	Info
	Warn
)

type Transform func(int) int

type Shape interface {
	Area() float64
}

type Square struct {
	Side float64
}

func (s *Square) Area() float64 { return s.Side * s.Side }

type Settings struct {
	Host    string
	Port    int
	Timeout time.Duration
	Tags    []string
}

type Bag struct {
	items []string
}

func (b *Bag) Add(item string) { b.items = append(b.items, item) }

type Index struct {
	entries map[string]int
}

func (i *Index) Add(key string, value int) error {
	if i.entries == nil {
		i.entries = make(map[string]int)
	}
	if value < 0 {
		return errors.New("negative")
	}
	i.entries[key] = value
	return nil
}

type Widget struct{}

func (Widget) Double(n int) int { return n * 2 }

func Double(n int) int { return n * 2 }
func Triple(n int) int { return n * 3 }

var Identity Transform = func(n int) int { return n }

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	lib := catalog.NewLibrary("example.com/convtest")
	lib.Enum(Debug, map[string]any{"Debug": Debug, "Info": Info, "Warn": Warn})
	lib.Type(Square{})
	lib.Type(Settings{})
	lib.Type(Widget{}).Method("Double", "n")
	lib.Interface((*Shape)(nil))
	lib.Holder("Transforms").
		Func("Double", Double).Params("n").
		Func("Triple", Triple).Params("n")
	lib.Holder("Transforms").Var("Identity", &Identity)
	require.NoError(t, lib.Err())
	return catalog.New(lib)
}

func newConverter(t *testing.T, doc string) (*Converter, *config.Root) {
	t.Helper()
	root, err := config.New(feeders.JSON(doc))
	require.NoError(t, err)
	return &Converter{
		Catalog: testCatalog(t),
		Root:    root,
		LookupEnv: func(name string) (string, bool) {
			if name == "HOME_DIR" {
				return "/home/app", true
			}
			return "", false
		},
	}, root
}

func convertAt[T any](t *testing.T, c *Converter, root *config.Root, path string) (T, error) {
	t.Helper()
	var zero T
	v, err := c.Convert(Argument{Name: config.LastSegment(path), Section: root.Section(path)}, reflect.TypeOf(&zero).Elem())
	if err != nil {
		return zero, err
	}
	return v.Interface().(T), nil
}

func TestConvert_Scalars(t *testing.T) {
	c, root := newConverter(t, `{
		"Int": "42", "Bool": "true", "Float": "2.5", "Uint": "7",
		"Clock": "13:00:10", "Days": "1.02:03:04", "GoDuration": "1h30m", "Weeks": "1w",
		"Decimal": "12.345", "When": "2024-01-02T03:04:05Z", "Empty": ""
	}`)

	i, err := convertAt[int](t, c, root, "Int")
	require.NoError(t, err)
	assert.Equal(t, 42, i)

	b, err := convertAt[bool](t, c, root, "Bool")
	require.NoError(t, err)
	assert.True(t, b)

	f, err := convertAt[float64](t, c, root, "Float")
	require.NoError(t, err)
	assert.InDelta(t, 2.5, f, 0.0001)

	u, err := convertAt[uint16](t, c, root, "Uint")
	require.NoError(t, err)
	assert.Equal(t, uint16(7), u)

	d, err := convertAt[time.Duration](t, c, root, "Clock")
	require.NoError(t, err)
	assert.Equal(t, 13*time.Hour+10*time.Second, d)

	d, err = convertAt[time.Duration](t, c, root, "Days")
	require.NoError(t, err)
	assert.Equal(t, 26*time.Hour+3*time.Minute+4*time.Second, d)

	d, err = convertAt[time.Duration](t, c, root, "GoDuration")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, d)

	d, err = convertAt[time.Duration](t, c, root, "Weeks")
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, d)

	dec, err := convertAt[decimal.Decimal](t, c, root, "Decimal")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("12.345").Equal(dec))

	when, err := convertAt[time.Time](t, c, root, "When")
	require.NoError(t, err)
	assert.Equal(t, 2024, when.Year())

	zero, err := convertAt[int](t, c, root, "Empty")
	require.NoError(t, err)
	assert.Zero(t, zero)

	missing, err := convertAt[time.Duration](t, c, root, "Missing")
	require.NoError(t, err)
	assert.Zero(t, missing)
}

func TestConvert_ScalarErrors(t *testing.T) {
	c, root := newConverter(t, `{"Number": 90, "Text": "abc", "Level": "Verbose"}`)

	_, err := convertAt[time.Duration](t, c, root, "Number")
	require.ErrorIs(t, err, ErrNumericDuration)
	var ce *ConversionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "Number", ce.Path)
	assert.Equal(t, "90", ce.Value)

	_, err = convertAt[int](t, c, root, "Text")
	require.Error(t, err)

	_, err = convertAt[Level](t, c, root, "Level")
	require.ErrorIs(t, err, ErrUnknownEnumValue)
	assert.Contains(t, err.Error(), "Debug, Info, Warn")
}

func TestConvert_Strings(t *testing.T) {
	c, root := newConverter(t, `{
		"Path": "${HOME_DIR}/data",
		"Unset": "%NOT_SET%",
		"ConnectionStrings": {"Main": "Server=db;Database=app"},
		"ConnectionString": "Main",
		"Other": "Other"
	}`)

	s, err := convertAt[string](t, c, root, "Path")
	require.NoError(t, err)
	assert.Equal(t, "/home/app/data", s)

	s, err = convertAt[string](t, c, root, "Unset")
	require.NoError(t, err)
	assert.Equal(t, "%NOT_SET%", s)

	s, err = convertAt[string](t, c, root, "ConnectionString")
	require.NoError(t, err)
	assert.Equal(t, "Server=db;Database=app", s)

	// unknown connection string names pass through unchanged
	v, err := c.Convert(Argument{Name: ConnectionStringName, Section: root.Section("Other")}, stringType)
	require.NoError(t, err)
	assert.Equal(t, "Other", v.String())
}

func TestConvert_PointersAndEnums(t *testing.T) {
	c, root := newConverter(t, `{"Port": "8080", "Level": "warn", "Numeric": "1"}`)

	p, err := convertAt[*int](t, c, root, "Port")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 8080, *p)

	l, err := convertAt[Level](t, c, root, "Level")
	require.NoError(t, err)
	assert.Equal(t, Warn, l)

	l, err = convertAt[Level](t, c, root, "Numeric")
	require.NoError(t, err)
	assert.Equal(t, Info, l)
}

func TestConvert_TypesAndLibraries(t *testing.T) {
	c, root := newConverter(t, `{"Type": "convtest.Square", "Slice": "[]Settings", "Library": "convtest", "Unknown": "nope"}`)

	rt, err := convertAt[reflect.Type](t, c, root, "Type")
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeOf(Square{}), rt)

	rt, err = convertAt[reflect.Type](t, c, root, "Slice")
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeOf([]Settings{}), rt)

	lib, err := convertAt[*catalog.Library](t, c, root, "Library")
	require.NoError(t, err)
	assert.Equal(t, "example.com/convtest", lib.Name)

	_, err = convertAt[*catalog.Library](t, c, root, "Unknown")
	require.ErrorIs(t, err, ErrLibraryNotFound)
}

func TestConvert_Collections(t *testing.T) {
	c, root := newConverter(t, `{
		"List": ["a", "b"],
		"Single": "only",
		"Pair": [1, 2],
		"Ports": {"http": 80, "https": 443},
		"Bag": ["x", "y"],
		"Index": {"a": 1, "b": 2},
		"BadIndex": {"a": -1},
		"Any": {"a": ["1", "2"], "b": "c"}
	}`)

	list, err := convertAt[[]string](t, c, root, "List")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, list)

	single, err := convertAt[[]string](t, c, root, "Single")
	require.NoError(t, err)
	assert.Equal(t, []string{"only"}, single)

	pair, err := convertAt[[2]int](t, c, root, "Pair")
	require.NoError(t, err)
	assert.Equal(t, [2]int{1, 2}, pair)

	_, err = convertAt[[1]int](t, c, root, "Pair")
	require.ErrorIs(t, err, ErrUnsupportedTarget)

	ports, err := convertAt[map[string]int](t, c, root, "Ports")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"http": 80, "https": 443}, ports)

	bag, err := convertAt[*Bag](t, c, root, "Bag")
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, bag.items)

	byValue, err := convertAt[Bag](t, c, root, "Bag")
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, byValue.items)

	idx, err := convertAt[*Index](t, c, root, "Index")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 1, "b": 2}, idx.entries)

	_, err = convertAt[*Index](t, c, root, "BadIndex")
	require.Error(t, err)

	anyValue, err := convertAt[any](t, c, root, "Any")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": []any{"1", "2"}, "b": "c"}, anyValue)
}

func TestConvert_Builders(t *testing.T) {
	c, root := newConverter(t, `{"On": true, "Off": false}`)

	on, err := convertAt[func(*Settings)](t, c, root, "On")
	require.NoError(t, err)
	require.NotNil(t, on)
	s := &Settings{Host: "h"}
	on(s)
	assert.Equal(t, "h", s.Host)

	withErr, err := convertAt[func(*Settings) error](t, c, root, "On")
	require.NoError(t, err)
	assert.NoError(t, withErr(s))

	off, err := convertAt[func(*Settings)](t, c, root, "Off")
	require.NoError(t, err)
	assert.Nil(t, off)
}

func TestConvert_MemberReferences(t *testing.T) {
	c, root := newConverter(t, `{
		"Exact": "convtest.Transforms::Double",
		"Named": "Transforms::Triple",
		"Var": "Transforms::Identity",
		"Missing": "Transforms::Square",
		"Instance": "Widget::Double",
		"Shape": "Square",
		"NotShape": "Settings"
	}`)

	fn, err := convertAt[func(int) int](t, c, root, "Exact")
	require.NoError(t, err)
	assert.Equal(t, 8, fn(4))

	named, err := convertAt[Transform](t, c, root, "Named")
	require.NoError(t, err)
	assert.Equal(t, 12, named(4))

	id, err := convertAt[Transform](t, c, root, "Var")
	require.NoError(t, err)
	assert.Equal(t, 4, id(4))

	_, err = convertAt[Transform](t, c, root, "Missing")
	require.ErrorIs(t, err, ErrMemberNotFound)

	_, err = convertAt[func(Widget, int) int](t, c, root, "Instance")
	require.ErrorIs(t, err, ErrNonStaticMember)

	shape, err := convertAt[Shape](t, c, root, "Shape")
	require.NoError(t, err)
	assert.IsType(t, &Square{}, shape)

	_, err = convertAt[Shape](t, c, root, "NotShape")
	require.ErrorIs(t, err, ErrNotInstantiable)

	ref, err := c.ResolveReference("Transforms::Double", reflect.TypeOf(Transform(nil)))
	require.NoError(t, err)
	require.NotNil(t, ref.Member)
	assert.Equal(t, "Double", ref.Member.Name)
	assert.Equal(t, "convtest.Transforms", ref.Scope.Name)
}

func TestSplitMemberReference(t *testing.T) {
	typeName, member, ok := SplitMemberReference("a.b::C::D")
	assert.True(t, ok)
	assert.Equal(t, "a.b::C", typeName)
	assert.Equal(t, "D", member)

	_, _, ok = SplitMemberReference("::D")
	assert.False(t, ok)
	_, _, ok = SplitMemberReference("Plain")
	assert.False(t, ok)
}

func TestConvert_ObjectBinding(t *testing.T) {
	c, root := newConverter(t, `{"Settings": {"host": "db", "PORT": "5432", "Timeout": "00:00:30", "Tags": ["a", "b"]}}`)

	s, err := convertAt[Settings](t, c, root, "Settings")
	require.NoError(t, err)
	assert.Equal(t, Settings{Host: "db", Port: 5432, Timeout: 30 * time.Second, Tags: []string{"a", "b"}}, s)

	ptr, err := convertAt[*Settings](t, c, root, "Settings")
	require.NoError(t, err)
	assert.Equal(t, "db", ptr.Host)

	var called bool
	c.Binder = func(arg Argument, target reflect.Type) (reflect.Value, bool, error) {
		called = true
		if target != reflect.TypeOf(Settings{}) {
			return reflect.Value{}, false, nil
		}
		return reflect.ValueOf(Settings{Host: "bound"}), true, nil
	}
	s, err = convertAt[Settings](t, c, root, "Settings")
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "bound", s.Host)
}

func TestConvert_SectionTargets(t *testing.T) {
	c, root := newConverter(t, `{"Raw": {"a": "1"}}`)

	s, err := convertAt[config.Section](t, c, root, "Raw")
	require.NoError(t, err)
	assert.Equal(t, "Raw", s.Path())

	r, err := convertAt[*config.Root](t, c, root, "Raw")
	require.NoError(t, err)
	assert.Same(t, root, r)
}

func TestConvert_MixedValue(t *testing.T) {
	root, err := config.New(
		feeders.NewMapFeeder(map[string]string{"A": "scalar"}),
		feeders.NewMapFeeder(map[string]string{"A:B": "child"}),
	)
	require.NoError(t, err)
	c := &Converter{Root: root}
	_, err = c.Convert(Argument{Section: root.Section("A")}, stringType)
	require.ErrorIs(t, err, config.ErrMixedValue)
}

func TestConvert_NoCatalog(t *testing.T) {
	root := config.MustNew(feeders.NewMapFeeder(map[string]string{"T": "int"}))
	c := &Converter{Root: root}
	_, err := c.Convert(Argument{Section: root.Section("T")}, reflectTypeType)
	require.ErrorIs(t, err, ErrCatalogUnavailable)
	assert.False(t, c.CanConvert(Argument{Section: root.Section("T")}, reflectTypeType))
}

func TestDuration_RoundTrip(t *testing.T) {
	for _, d := range []time.Duration{
		0,
		90 * time.Second,
		13*time.Hour + 10*time.Second,
		49*time.Hour + 30*time.Minute,
		-(5 * time.Minute),
		1500 * time.Millisecond,
	} {
		parsed, err := ParseDuration(FormatDuration(d))
		require.NoError(t, err, FormatDuration(d))
		assert.Equal(t, d, parsed)
	}

	_, err := ParseDuration("25:00")
	require.ErrorIs(t, err, ErrInvalidDuration)
	_, err = ParseDuration("1.5")
	require.ErrorIs(t, err, ErrNumericDuration)
	_, err = ParseDuration("soon")
	require.ErrorIs(t, err, ErrInvalidDuration)
}
