package catalog

import (
	"fmt"
	"reflect"
	"runtime/debug"
	"slices"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the number of memoized catalog snapshots.
const DefaultCacheSize = 64

// BuildOptions select libraries in addition to those a Strategy discovers.
type BuildOptions struct {
	// Markers are values or reflect.Types whose libraries are included.
	Markers []any

	// Using names additional libraries. Unknown names are skipped.
	Using []string

	// ExcludeEntry leaves out the libraries of the main module.
	ExcludeEntry bool

	// NoCache bypasses the snapshot cache.
	NoCache bool

	Logger interface {
		Debug(msg string, args ...any)
	}

	readBuildInfo func() (*debug.BuildInfo, bool)
}

func (o BuildOptions) debug(msg string, args ...any) {
	if o.Logger != nil {
		o.Logger.Debug(msg, args...)
	}
}

var snapshots = mustCache(DefaultCacheSize)

func mustCache(size int) *lru.Cache[string, *Catalog] {
	c, err := lru.New[string, *Catalog](size)
	if err != nil {
		panic(err)
	}
	return c
}

// Build discovers libraries with strategy, unions in markers, the entry
// module, the Using list and every transitive dependency, and returns the
// resulting snapshot. Snapshots are memoized per strategy, marker set and
// Using list until the registration table changes.
func Build(strategy Strategy, opts BuildOptions) (*Catalog, error) {
	if strategy == nil {
		return nil, ErrNoStrategy
	}
	key := cacheKey(strategy, opts)
	if !opts.NoCache {
		if c, ok := snapshots.Get(key); ok {
			opts.debug("Catalog snapshot reused", "strategy", strategy.Name(), "libraries", len(c.libraries))
			return c, nil
		}
	}

	names, err := strategy.Discover()
	if err != nil {
		return nil, fmt.Errorf("catalog strategy %s: %w", strategy.Name(), err)
	}

	selected := make(map[string]*Library)
	var queue []*Library
	include := func(lib *Library, reason string) {
		if _, ok := selected[lib.Name]; ok {
			return
		}
		selected[lib.Name] = lib
		queue = append(queue, lib)
		opts.debug("Catalog library selected", "library", lib.Name, "reason", reason)
	}

	for _, n := range names {
		if lib, ok := resolveLibrary(n); ok {
			include(lib, strategy.Name())
		} else {
			opts.debug("Catalog skipped unresolvable library", "library", n, "source", strategy.Name())
		}
	}
	for _, m := range opts.Markers {
		t, ok := m.(reflect.Type)
		if !ok {
			t = reflect.TypeOf(m)
		}
		if t == nil {
			continue
		}
		if lib, ok := libraryOf(t); ok {
			include(lib, "marker")
		} else {
			opts.debug("Catalog skipped marker without library", "type", t.String())
		}
	}
	if !opts.ExcludeEntry {
		if entry := entryModule(opts.readBuildInfo); entry != "" {
			for _, lib := range Registered() {
				if inModules(lib.Name, []string{entry}) {
					include(lib, "entry")
				}
			}
		}
	}
	for _, n := range opts.Using {
		if lib, ok := resolveLibrary(n); ok {
			include(lib, "using")
		} else {
			opts.debug("Catalog skipped unresolvable library", "library", n, "source", "using")
		}
	}
	for len(queue) > 0 {
		lib := queue[0]
		queue = queue[1:]
		for _, dep := range lib.Dependencies {
			if d, ok := resolveLibrary(dep); ok {
				include(d, "dependency of "+lib.Name)
			} else {
				opts.debug("Catalog skipped unresolvable dependency", "library", dep, "dependent", lib.Name)
			}
		}
	}

	libs := make([]*Library, 0, len(selected))
	for _, lib := range selected {
		libs = append(libs, lib)
	}
	c := New(libs...)
	if !opts.NoCache {
		snapshots.Add(key, c)
	}
	opts.debug("Catalog built", "strategy", strategy.Name(), "libraries", len(c.libraries))
	return c, nil
}

// resolveLibrary finds a registered library by full name, then by unique
// case-insensitive package name.
func resolveLibrary(name string) (*Library, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false
	}
	if lib, ok := Lookup(name); ok {
		return lib, true
	}
	var found *Library
	for _, lib := range Registered() {
		if strings.EqualFold(lib.Name, name) || strings.EqualFold(lib.Package(), name) {
			if found != nil {
				return nil, false
			}
			found = lib
		}
	}
	return found, found != nil
}

func cacheKey(strategy Strategy, opts BuildOptions) string {
	markers := make([]string, 0, len(opts.Markers))
	for _, m := range opts.Markers {
		t, ok := m.(reflect.Type)
		if !ok {
			t = reflect.TypeOf(m)
		}
		if t != nil {
			markers = append(markers, t.PkgPath()+"."+t.String())
		}
	}
	slices.Sort(markers)
	return fmt.Sprintf("%d|%s|%s|%s|%t",
		generation(), strategy.Name(), strings.Join(markers, ","), strings.Join(opts.Using, ","), opts.ExcludeEntry)
}

// PurgeCache drops every memoized snapshot.
func PurgeCache() {
	snapshots.Purge()
}
