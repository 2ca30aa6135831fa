package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"runtime/debug"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/configprocessor/dyntype"
)

type Widget struct {
	Name string
	Size int
}

func (w *Widget) Resize(size int) { w.Size = size }

type Registry interface {
	Add(name string, size int)
}

type Color int

const (
	Red Color = iota
	Green
)

type Box[T any] struct {
	Item T
}

type Greeter func(name string) string

func Hello(name string) string { return "hello " + name }

func AddWidget(r Registry, name string, size int) {}

var DefaultGreeter Greeter = Hello

const (
	widgetsLib = "example.com/catalogtest/widgets"
	gadgetsLib = "example.com/catalogtest/gadgets"
	extrasLib  = "example.com/catalogtest/extras"
)

func registerTestLibraries(t *testing.T) {
	t.Helper()
	widgets := NewLibrary(widgetsLib).DependsOn(gadgetsLib, "example.com/missing")
	widgets.Type(Widget{}).Method("Resize", "size").Static("Default", func() Widget { return Widget{} })
	widgets.Interface((*Registry)(nil)).Method("Add", "name", "size")
	widgets.Enum(Red, map[string]any{"Red": Red, "Green": Green})
	widgets.GenericType("Box", 1, func(types []reflect.Type) (reflect.Type, []any, error) {
		if types[0] == reflect.TypeOf(Widget{}) {
			return reflect.TypeOf(Box[Widget]{}), []any{func() *Box[Widget] { return &Box[Widget]{} }}, nil
		}
		return reflect.TypeOf(Box[struct{}]{}), nil, nil
	})
	widgets.Holder("Extensions").
		Func("AddWidget", AddWidget).Params("registry", "name", "size").Default("size", 1)
	widgets.Holder("Greeters").
		Func("Hello", Hello).Params("name")
	widgets.Holder("Greeters").Var("DefaultGreeter", &DefaultGreeter).Property("Now", time.Now)
	widgets.Holder("Extensions").Generic("AddBox", 1, func(types []reflect.Type) (any, error) {
		return func(r Registry) {}, nil
	}).Params("registry")

	gadgets := NewLibrary(gadgetsLib)
	gadgets.TypeAs("Widget", struct{ Gadget bool }{})

	extras := NewLibrary(extrasLib)

	for _, lib := range []*Library{widgets, gadgets, extras} {
		require.NoError(t, Register(lib))
	}
	t.Cleanup(func() {
		Unregister(widgetsLib)
		Unregister(gadgetsLib)
		Unregister(extrasLib)
		PurgeCache()
	})
}

func noBuildInfo() (*debug.BuildInfo, bool) { return nil, false }

func buildTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Build(ManifestStrategy{Manifest: &Manifest{Libraries: []ManifestLibrary{{Name: widgetsLib}}}},
		BuildOptions{NoCache: true, ExcludeEntry: true})
	require.NoError(t, err)
	return c
}

func libraryNames(c *Catalog) []string {
	var out []string
	for _, lib := range c.Libraries() {
		out = append(out, lib.Name)
	}
	return out
}

func TestRegister_Errors(t *testing.T) {
	lib := NewLibrary("")
	lib.Holder("H").Func("NotFunc", 42)
	lib.Holder("H").Func("F", Hello).Params("a", "b")
	lib.Enum(Red, map[string]any{"Bad": "red"})
	err := Register(lib)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLibraryNameEmpty)
	assert.ErrorIs(t, err, ErrNotAFunction)
	assert.ErrorIs(t, err, ErrParamCount)
	assert.ErrorIs(t, err, ErrEnumValueType)

	registerTestLibraries(t)
	require.ErrorIs(t, Register(NewLibrary(widgetsLib)), ErrLibraryRegistered)
}

func TestBuild_ManifestIncludesDependencies(t *testing.T) {
	registerTestLibraries(t)
	c := buildTestCatalog(t)
	assert.Equal(t, []string{gadgetsLib, widgetsLib}, libraryNames(c))
}

func TestBuild_UsingAndMarkers(t *testing.T) {
	registerTestLibraries(t)
	c, err := Build(ManifestStrategy{}, BuildOptions{
		NoCache:      true,
		ExcludeEntry: true,
		Using:        []string{"extras", "does.not/exist"},
		Markers:      []any{Widget{}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{extrasLib, gadgetsLib, widgetsLib}, libraryNames(c))
}

func TestBuild_LoadedStrategy(t *testing.T) {
	registerTestLibraries(t)
	info := func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{Main: debug.Module{Path: "example.com/catalogtest/extras"}}, true
	}
	names, err := LoadedStrategy{readBuildInfo: info}.Discover()
	require.NoError(t, err)
	assert.Equal(t, []string{extrasLib}, names)

	names, err = LoadedStrategy{readBuildInfo: noBuildInfo}.Discover()
	require.NoError(t, err)
	assert.Contains(t, names, widgetsLib)
	assert.Contains(t, names, gadgetsLib)

	c, err := Build(LoadedStrategy{readBuildInfo: info}, BuildOptions{NoCache: true, readBuildInfo: info})
	require.NoError(t, err)
	assert.Equal(t, []string{extrasLib}, libraryNames(c))
}

func TestBuild_IsMemoized(t *testing.T) {
	registerTestLibraries(t)
	strategy := ManifestStrategy{Manifest: &Manifest{Libraries: []ManifestLibrary{{Name: widgetsLib}}}}
	a, err := Build(strategy, BuildOptions{ExcludeEntry: true})
	require.NoError(t, err)
	b, err := Build(strategy, BuildOptions{ExcludeEntry: true})
	require.NoError(t, err)
	assert.Same(t, a, b)

	c, err := Build(strategy, BuildOptions{ExcludeEntry: true, Using: []string{extrasLib}})
	require.NoError(t, err)
	assert.NotSame(t, a, c)
}

func TestBuild_NilStrategy(t *testing.T) {
	_, err := Build(nil, BuildOptions{})
	require.ErrorIs(t, err, ErrNoStrategy)
}

func TestManifestStrategy_File(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"deps.json": `{"libraries":[{"name":"a","dependencies":["b"]}]}`,
		"deps.yaml": "libraries:\n  - name: a\n    dependencies: [b]\n",
		"deps.toml": "[[libraries]]\nname = \"a\"\ndependencies = [\"b\"]\n",
	}
	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
			names, err := ManifestStrategy{Path: path}.Discover()
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, names)
		})
	}
	_, err := LoadManifest(filepath.Join(dir, "deps.ini"))
	require.Error(t, err)
}

func TestDirectoryStrategy_Discover(t *testing.T) {
	dir := t.TempDir()
	exe, err := os.Executable()
	require.NoError(t, err)
	binary, err := os.ReadFile(exe)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "libwidgets.so"), binary, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "testify.so"), binary, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "garbage.so"), []byte("not a binary"), 0o600))

	names, err := DirectoryStrategy{Dirs: []string{dir}}.Discover()
	require.NoError(t, err)
	assert.Equal(t, []string{"widgets"}, names)

	_, err = DirectoryStrategy{Dirs: []string{filepath.Join(dir, "missing")}}.Discover()
	require.Error(t, err)
}

func TestResolveType(t *testing.T) {
	registerTestLibraries(t)
	c := buildTestCatalog(t)

	tests := []struct {
		name string
		want reflect.Type
	}{
		{"string", reflect.TypeOf("")},
		{"Duration", reflect.TypeOf(time.Duration(0))},
		{"decimal", reflect.TypeOf(decimal.Decimal{})},
		{"[]int", reflect.TypeOf([]int{})},
		{"*widgets.Widget", reflect.TypeOf(&Widget{})},
		{"map[string][]int", reflect.TypeOf(map[string][]int{})},
		{"example.com/catalogtest/widgets.Widget", reflect.TypeOf(Widget{})},
		{"widgets.widget", reflect.TypeOf(Widget{})},
		{"Registry", reflect.TypeOf((*Registry)(nil)).Elem()},
		{"Box<widgets.Widget>", reflect.TypeOf(Box[Widget]{})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.ResolveType(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveType_Errors(t *testing.T) {
	registerTestLibraries(t)
	c := buildTestCatalog(t)

	_, err := c.ResolveType("Widget")
	require.ErrorIs(t, err, ErrAmbiguousType)

	_, err = c.ResolveType("Nope")
	var notFound *TypeNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "Nope", notFound.Name)

	_, err = c.ResolveType("Box<int|string>")
	require.ErrorIs(t, err, ErrTypeArgumentCount)

	_, err = c.ResolveType("map[[]int]string")
	require.ErrorIs(t, err, ErrTypeSyntax)
}

func TestResolveType_Dynamic(t *testing.T) {
	registerTestLibraries(t)
	c := buildTestCatalog(t)

	x1, err := c.ResolveType("@x")
	require.NoError(t, err)
	x2, err := c.ResolveType("!x")
	require.NoError(t, err)
	assert.Equal(t, x1, x2)
	name, ok := dyntype.NameOf(x1)
	require.True(t, ok)
	assert.Equal(t, "x", name)

	dt, err := c.Dynamic("w", "Box")
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeOf(Box[struct{}]{}), dt.Parent)

	withParent, err := c.ResolveType("@y@widgets.Widget")
	require.NoError(t, err)
	base, ok := withParent.FieldByName(dyntype.BaseField)
	require.True(t, ok)
	assert.Equal(t, reflect.TypeOf(Widget{}), base.Type)
}

func TestSplitTypeArgs(t *testing.T) {
	args, err := SplitTypeArgs("int|Box<a|b>|map[string]int")
	require.NoError(t, err)
	assert.Equal(t, []string{"int", "Box<a|b>", "map[string]int"}, args)

	_, err = SplitTypeArgs("int|")
	require.ErrorIs(t, err, ErrTypeSyntax)
	_, err = SplitTypeArgs("Box<int")
	require.ErrorIs(t, err, ErrTypeSyntax)
}

func TestCatalog_Lookups(t *testing.T) {
	registerTestLibraries(t)
	c := buildTestCatalog(t)

	funcs := c.Funcs([]string{"addwidget", "AddX"})
	require.Len(t, funcs, 1)
	assert.Equal(t, "Extensions.AddWidget(registry catalog.Registry, name string, size int = 1)", funcs[0].Signature())
	assert.Equal(t, "github.com/GoCodeAlone/configprocessor/catalog.AddWidget", funcs[0].Expr)

	generics := c.Generics([]string{"AddBox"})
	require.Len(t, generics, 1)
	closed, err := generics[0].Close([]reflect.Type{reflect.TypeOf(Widget{})})
	require.NoError(t, err)
	assert.Equal(t, "registry", closed.Params[0].Name)
	_, err = generics[0].Close(nil)
	require.ErrorIs(t, err, ErrTypeArgumentCount)

	spec, ok := c.MethodSpec(reflect.TypeOf(&Widget{}), "resize")
	require.True(t, ok)
	assert.Equal(t, []string{"size"}, spec.Params)

	enum, ok := c.Enum(reflect.TypeOf(Red))
	require.True(t, ok)
	v, ok := enum.Parse("green")
	require.True(t, ok)
	assert.Equal(t, Green, v.Interface())
	name, ok := enum.Name(reflect.ValueOf(Red))
	require.True(t, ok)
	assert.Equal(t, "Red", name)

	lib, ok := c.Library("WIDGETS")
	require.True(t, ok)
	assert.Equal(t, widgetsLib, lib.Name)
}

func TestCatalog_LookupMembers(t *testing.T) {
	registerTestLibraries(t)
	c := buildTestCatalog(t)

	_, members, err := c.LookupMembers("widgets.Greeters", "Hello")
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, MemberFunc, members[0].Kind)

	_, members, err = c.LookupMembers("Greeters", "DefaultGreeter")
	require.NoError(t, err)
	require.Len(t, members, 1)
	got := members[0].Get().Interface().(Greeter)
	assert.Equal(t, "hello x", got("x"))

	_, members, err = c.LookupMembers("Greeters", "Now")
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, reflect.TypeOf(time.Time{}), members[0].Type())

	_, members, err = c.LookupMembers("widgets.Widget", "Resize")
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.False(t, members[0].Static())

	scope, members, err := c.LookupMembers("example.com/catalogtest/widgets.Widget", "Default")
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeOf(Widget{}), scope.Type)
	require.Len(t, members, 1)
	assert.True(t, members[0].Static())

	_, _, err = c.LookupMembers("Unknown", "X")
	require.ErrorIs(t, err, ErrStaticScopeMissing)
	assert.True(t, errors.Is(err, ErrTypeNotFound))
}

func TestParam_DefaultValue(t *testing.T) {
	p := Param{Name: "size", Type: reflect.TypeOf(int64(0)), HasDefault: true, Default: 3}
	assert.Equal(t, int64(3), p.DefaultValue().Interface())
	p = Param{Name: "size", Type: reflect.TypeOf("")}
	assert.Equal(t, "", p.DefaultValue().Interface())
}
