package dyntype

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Pipeline[T any] struct {
	Stage string
	Count int
}

func pipelineGeneric(ctors func(arg reflect.Type) []any) *OpenGeneric {
	return &OpenGeneric{
		Name: "Pipeline",
		Close: func(arg reflect.Type) (reflect.Type, []any, error) {
			return reflect.TypeOf(Pipeline[struct{}]{}), ctors(arg), nil
		},
	}
}

type Parent struct {
	Label string
}

func TestFactory_CreateIsMemoized(t *testing.T) {
	f := NewFactory()
	a1, err := f.Create("x", nil)
	require.NoError(t, err)
	a2, err := f.Create("x", nil)
	require.NoError(t, err)
	b, err := f.Create("a", nil)
	require.NoError(t, err)

	assert.Same(t, a1, a2)
	assert.NotEqual(t, a1.Type, b.Type)

	name, ok := NameOf(a1.Type)
	require.True(t, ok)
	assert.Equal(t, "x", name)
	assert.True(t, IsDynamic(reflect.PointerTo(b.Type)))
	assert.False(t, IsDynamic(reflect.TypeOf(Parent{})))
}

func TestFactory_ClosedParent(t *testing.T) {
	f := NewFactory()
	parent := reflect.TypeOf(Parent{})
	dt, err := f.Create("child", parent)
	require.NoError(t, err)

	assert.Equal(t, parent, dt.Parent)
	field, ok := dt.Type.FieldByName(BaseField)
	require.True(t, ok)
	assert.Equal(t, parent, field.Type)

	v, err := dt.New()
	require.NoError(t, err)
	assert.Equal(t, dt.Type, v.Type())

	_, err = dt.New("unexpected")
	require.ErrorIs(t, err, ErrNoConstructor)
}

func TestFactory_OpenGenericForwardsConstructors(t *testing.T) {
	f := NewFactory()
	var closedOver reflect.Type
	open := pipelineGeneric(func(arg reflect.Type) []any {
		closedOver = arg
		return []any{
			func() *Pipeline[struct{}] { return &Pipeline[struct{}]{Stage: "default"} },
			func(stage string, count int) (*Pipeline[struct{}], error) {
				if count < 0 {
					return nil, errors.New("negative count")
				}
				return &Pipeline[struct{}]{Stage: stage, Count: count}, nil
			},
		}
	})

	dt, err := f.Create("x", open)
	require.NoError(t, err)
	assert.Equal(t, dt.Type, closedOver)
	require.Len(t, dt.Constructors(), 2)

	v, err := dt.New()
	require.NoError(t, err)
	assert.Equal(t, "default", v.Interface().(*Pipeline[struct{}]).Stage)

	v, err = dt.New("build", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, v.Interface().(*Pipeline[struct{}]).Count)

	_, err = dt.New("build", -1)
	require.Error(t, err)

	_, err = dt.New(1.5)
	require.ErrorIs(t, err, ErrNoConstructor)
}

func TestFactory_RejectsVariadicConstructor(t *testing.T) {
	f := NewFactory()
	open := pipelineGeneric(func(reflect.Type) []any {
		return []any{func(stages ...string) *Pipeline[struct{}] { return nil }}
	})
	_, err := f.Create("v", open)
	require.ErrorIs(t, err, ErrVariadicConstructor)

	// failures are not cached
	_, err = f.Create("v", open)
	require.ErrorIs(t, err, ErrVariadicConstructor)
}

func TestFactory_Errors(t *testing.T) {
	f := NewFactory()
	_, err := f.Create("", nil)
	require.ErrorIs(t, err, ErrEmptyName)

	_, err = f.Create("x", "not a type")
	require.ErrorIs(t, err, ErrParentType)

	bad := pipelineGeneric(func(reflect.Type) []any { return []any{func() string { return "" }} })
	_, err = f.Create("x", bad)
	require.ErrorIs(t, err, ErrConstructorShape)
}

func TestParseSigil(t *testing.T) {
	tests := []struct {
		in, name, parent string
		ok               bool
	}{
		{"@x", "x", "", true},
		{"!x", "x", "", true},
		{"@x@Parent", "x", "Parent", true},
		{"!x!pkg.Parent", "x", "pkg.Parent", true},
		{"plain", "", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			name, parent, ok := ParseSigil(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.parent, parent)
		})
	}
}

func TestFactory_OpenGenericParentIsPartOfTheType(t *testing.T) {
	f := NewFactory()
	plain, err := f.Create("x", nil)
	require.NoError(t, err)
	derived, err := f.Create("x", pipelineGeneric(func(reflect.Type) []any { return nil }))
	require.NoError(t, err)

	assert.NotEqual(t, plain.Type, derived.Type)
	assert.Equal(t, `dynamic:"x" parent:"Pipeline"`, string(derived.Type.Field(0).Tag))

	name, ok := NameOf(derived.Type)
	require.True(t, ok)
	assert.Equal(t, "x", name)
}
