package config

import (
	"errors"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapSource struct {
	name string
	data map[string]string
	err  error
}

func (m *mapSource) Name() string { return m.name }

func (m *mapSource) Load() (map[string]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	return maps.Clone(m.data), nil
}

type fileSource struct {
	path string
}

func (f *fileSource) Name() string    { return "file:" + f.path }
func (f *fileSource) Paths() []string { return []string{f.path} }

func (f *fileSource) Load() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, err
	}
	key, value, _ := strings.Cut(strings.TrimSpace(string(data)), "=")
	return map[string]string{key: value}, nil
}

func keysOf(sections []Section) []string {
	out := make([]string, 0, len(sections))
	for _, s := range sections {
		out = append(out, s.Key())
	}
	return out
}

func TestCompareKeys(t *testing.T) {
	tests := []struct {
		x, y string
		want int
	}{
		{"2", "10", -1},
		{"10", "2", 1},
		{"0", "a", -1},
		{"a", "0", 1},
		{"Append<@x>", "Append<@a>", 1},
		{"abc", "ABC", 0},
		{"a:b", "a", 1},
	}
	for _, tt := range tests {
		t.Run(tt.x+"_"+tt.y, func(t *testing.T) {
			got := CompareKeys(tt.x, tt.y)
			switch {
			case tt.want < 0:
				assert.Negative(t, got)
			case tt.want > 0:
				assert.Positive(t, got)
			default:
				assert.Zero(t, got)
			}
		})
	}
}

func TestPathHelpers(t *testing.T) {
	assert.Equal(t, "a:b:c", CombinePath("a", "", "b", "c"))
	assert.Equal(t, "c", LastSegment("a:b:c"))
	assert.Equal(t, "a:b", ParentPath("a:b:c"))
	assert.Equal(t, "", ParentPath("a"))
	assert.True(t, IsIndex("12"))
	assert.False(t, IsIndex("1a"))
	assert.False(t, IsIndex(""))
}

func TestRoot_MergesSourcesCaseInsensitively(t *testing.T) {
	root, err := New(
		&mapSource{name: "base", data: map[string]string{
			"Logging:Level":   "info",
			"Logging:Enabled": "true",
			"Items:1":         "b",
			"Items:0":         "a",
			"Items:10":        "k",
		}},
		&mapSource{name: "override", data: map[string]string{"LOGGING:LEVEL": "debug"}},
	)
	require.NoError(t, err)

	v, ok := root.Section("logging:level").Value()
	require.True(t, ok)
	assert.Equal(t, "debug", v)
	assert.Equal(t, "Logging:Level", root.Section("LOGGING:LEVEL").Path())

	prov, ok := root.Provenance("logging:level")
	require.True(t, ok)
	assert.Equal(t, "override", prov.Source)

	assert.Equal(t, []string{"Items", "Logging"}, keysOf(root.Children()))
	assert.Equal(t, []string{"0", "1", "10"}, keysOf(root.Section("items").Children()))
	assert.Equal(t, []string{"Enabled", "Level"}, keysOf(root.Section("Logging").Children()))

	assert.True(t, root.Section("Logging").Exists())
	assert.False(t, root.Section("Missing").Exists())
	_, ok = root.Section("Logging").Value()
	assert.False(t, ok)
}

func TestRoot_ConnectionString(t *testing.T) {
	root := MustNew(&mapSource{name: "m", data: map[string]string{"ConnectionStrings:Conn1": "abcd"}})
	cs, ok := root.ConnectionString("conn1")
	require.True(t, ok)
	assert.Equal(t, "abcd", cs)
	_, ok = root.ConnectionString("Conn2")
	assert.False(t, ok)
}

func TestCheckMixed(t *testing.T) {
	root := MustNew(
		&mapSource{name: "a", data: map[string]string{"Node": "scalar"}},
		&mapSource{name: "b", data: map[string]string{"Node:Child": "x"}},
	)
	require.ErrorIs(t, CheckMixed(root.Section("Node")), ErrMixedValue)
	require.NoError(t, CheckMixed(root.Section("Node:Child")))
	require.ErrorIs(t, CheckMixed(nil), ErrSectionNil)
}

func TestNew_Errors(t *testing.T) {
	_, err := New(nil)
	require.ErrorIs(t, err, ErrNilSource)

	src := &mapSource{name: "broken", err: errors.New("boom")}
	_, err = New(src)
	require.ErrorIs(t, err, ErrSourceLoad)
}

func TestRoot_ReloadNotifies(t *testing.T) {
	src := &mapSource{name: "m", data: map[string]string{"A": "1"}}
	root := MustNew(src)
	var calls int32
	root.OnReload(func() { atomic.AddInt32(&calls, 1) })

	src.data = map[string]string{"A": "2"}
	require.NoError(t, root.Reload())
	v, _ := root.Section("A").Value()
	assert.Equal(t, "2", v)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	infos := root.Sources()
	require.Len(t, infos, 1)
	assert.True(t, infos[0].Loaded)
	assert.Equal(t, 1, infos[0].Keys)
}

func TestExpandWith(t *testing.T) {
	lookup := func(name string) (string, bool) {
		if name == "HOME_DIR" {
			return "/home/app", true
		}
		return "", false
	}
	assert.Equal(t, "/home/app/logs", ExpandWith("${HOME_DIR}/logs", lookup))
	assert.Equal(t, "/home/app/logs", ExpandWith("%HOME_DIR%/logs", lookup))
	assert.Equal(t, "${UNSET}/x", ExpandWith("${UNSET}/x", lookup))
	assert.Equal(t, "100%", ExpandWith("100%", lookup))
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.conf")
	require.NoError(t, os.WriteFile(path, []byte("Level=info"), 0o600))

	root := MustNew(&fileSource{path: path})
	reloaded := make(chan struct{}, 1)
	root.OnReload(func() {
		select {
		case reloaded <- struct{}{}:
		default:
		}
	})

	w, err := NewWatcher(root)
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Start(t.Context()))

	require.NoError(t, os.WriteFile(path, []byte("Level=debug"), 0o600))

	select {
	case <-reloaded:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
	require.Eventually(t, func() bool {
		v, _ := root.Section("Level").Value()
		return v == "debug"
	}, 5*time.Second, 20*time.Millisecond)
}

func TestNewWatcher_NilRoot(t *testing.T) {
	_, err := NewWatcher(nil)
	require.ErrorIs(t, err, ErrRootMissing)
}
