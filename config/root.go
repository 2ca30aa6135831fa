package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Static errors for the configuration tree
var (
	ErrNilSource   = errors.New("config source is nil")
	ErrSourceLoad  = errors.New("config source failed to load")
	ErrMixedValue  = errors.New("configuration section has both a value and child sections")
	ErrSectionNil  = errors.New("configuration section is nil")
	ErrRootMissing = errors.New("configuration root is not available")
)

// connectionStringsKey is the section holding named connection strings.
const connectionStringsKey = "ConnectionStrings"

type entry struct {
	key    string
	value  string
	source string
}

// snapshot is an immutable view of merged configuration data.
type snapshot struct {
	values   map[string]entry
	children map[string][]string
}

// Root is the top of a configuration tree built from one or more sources.
// Reads are lock-free; Reload swaps in a freshly built snapshot.
type Root struct {
	sources  []Source
	data     atomic.Pointer[snapshot]
	mu       sync.Mutex
	infos    []SourceInfo
	onReload []func()
}

// New builds a configuration root from the given sources.
// Sources are applied in order; later sources override earlier ones.
func New(sources ...Source) (*Root, error) {
	for _, s := range sources {
		if s == nil {
			return nil, ErrNilSource
		}
	}
	r := &Root{sources: sources}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// MustNew is like New but panics on error. Intended for tests and examples.
func MustNew(sources ...Source) *Root {
	r, err := New(sources...)
	if err != nil {
		panic(err)
	}
	return r
}

// Reload reads every source again and atomically replaces the tree.
func (r *Root) Reload() error {
	callbacks, err := r.rebuild()
	if err != nil {
		return err
	}
	for _, cb := range callbacks {
		cb()
	}
	return nil
}

func (r *Root) rebuild() ([]func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := &snapshot{
		values:   make(map[string]entry),
		children: make(map[string][]string),
	}
	infos := make([]SourceInfo, 0, len(r.sources))
	for i, src := range r.sources {
		info := SourceInfo{Name: src.Name(), Priority: i}
		data, err := src.Load()
		if err != nil {
			info.Error = err.Error()
			r.infos = append(infos, info)
			return nil, fmt.Errorf("%w: %s: %w", ErrSourceLoad, src.Name(), err)
		}
		now := time.Now()
		info.Loaded = true
		info.LastLoaded = &now
		info.Keys = len(data)
		infos = append(infos, info)

		keys := make([]string, 0, len(data))
		for k := range data {
			keys = append(keys, k)
		}
		slices.SortFunc(keys, CompareKeys)
		for _, k := range keys {
			snap.set(k, data[k], src.Name())
		}
	}
	for parent := range snap.children {
		slices.SortFunc(snap.children[parent], CompareKeys)
	}

	r.data.Store(snap)
	r.infos = infos
	return slices.Clone(r.onReload), nil
}

func (s *snapshot) set(key, value, source string) {
	key = strings.Trim(key, KeyDelimiter)
	if key == "" {
		return
	}
	norm := normalize(key)
	if existing, ok := s.values[norm]; ok {
		s.values[norm] = entry{key: existing.key, value: value, source: source}
		return
	}
	s.values[norm] = entry{key: key, value: value, source: source}

	segments := strings.Split(key, KeyDelimiter)
	parent := ""
	for _, seg := range segments {
		if !s.hasChild(parent, seg) {
			s.children[normalize(parent)] = append(s.children[normalize(parent)], seg)
		}
		parent = CombinePath(parent, seg)
	}
}

func (s *snapshot) hasChild(parent, seg string) bool {
	for _, c := range s.children[normalize(parent)] {
		if strings.EqualFold(c, seg) {
			return true
		}
	}
	return false
}

func (r *Root) snap() *snapshot {
	return r.data.Load()
}

// OnReload registers a callback invoked after every successful reload.
func (r *Root) OnReload(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onReload = append(r.onReload, fn)
}

// Sources returns load information for every attached source.
func (r *Root) Sources() []SourceInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.infos)
}

// FilePaths returns the paths of all file-backed sources.
func (r *Root) FilePaths() []string {
	var paths []string
	for _, s := range r.sources {
		if fs, ok := s.(FileSource); ok {
			paths = append(paths, fs.Paths()...)
		}
	}
	return paths
}

// Provenance reports which source supplied the value at path.
func (r *Root) Provenance(path string) (Provenance, bool) {
	e, ok := r.snap().values[normalize(path)]
	if !ok {
		return Provenance{}, false
	}
	return Provenance{Path: e.key, Source: e.source, Value: e.value}, true
}

// ConnectionString resolves a named entry of the ConnectionStrings section.
func (r *Root) ConnectionString(name string) (string, bool) {
	return r.Section(CombinePath(connectionStringsKey, name)).Value()
}

// AsMap returns the flattened key/value pairs of the whole tree.
func (r *Root) AsMap() map[string]string {
	snap := r.snap()
	out := make(map[string]string, len(snap.values))
	for _, e := range snap.values {
		out[e.key] = e.value
	}
	return out
}

// Root implements Section for the top of the tree.

func (r *Root) Key() string                { return "" }
func (r *Root) Path() string               { return "" }
func (r *Root) Value() (string, bool)      { return "", false }
func (r *Root) Exists() bool               { return len(r.snap().values) > 0 }
func (r *Root) Root() *Root                { return r }
func (r *Root) Children() []Section        { return childrenOf(r, "") }
func (r *Root) Section(key string) Section { return &section{root: r, path: key} }

func childrenOf(r *Root, path string) []Section {
	keys := r.snap().children[normalize(path)]
	out := make([]Section, 0, len(keys))
	for _, k := range keys {
		out = append(out, &section{root: r, path: CombinePath(path, k)})
	}
	return out
}

// section is a live view of a path within a Root.
type section struct {
	root *Root
	path string
}

func (s *section) Key() string  { return LastSegment(s.path) }
func (s *section) Path() string { return s.canonicalPath() }
func (s *section) Root() *Root  { return s.root }

// canonicalPath returns the path using the casing stored in the tree when the
// section exists, falling back to the requested casing.
func (s *section) canonicalPath() string {
	snap := s.root.snap()
	segments := strings.Split(s.path, KeyDelimiter)
	parent := ""
	for _, seg := range segments {
		found := seg
		for _, c := range snap.children[normalize(parent)] {
			if strings.EqualFold(c, seg) {
				found = c
				break
			}
		}
		parent = CombinePath(parent, found)
	}
	return parent
}

func (s *section) Value() (string, bool) {
	e, ok := s.root.snap().values[normalize(s.path)]
	if !ok {
		return "", false
	}
	return e.value, true
}

func (s *section) Children() []Section {
	return childrenOf(s.root, s.canonicalPath())
}

func (s *section) Section(key string) Section {
	return &section{root: s.root, path: CombinePath(s.path, key)}
}

func (s *section) Exists() bool {
	snap := s.root.snap()
	norm := normalize(s.path)
	if _, ok := snap.values[norm]; ok {
		return true
	}
	return len(snap.children[norm]) > 0
}

func (s *section) String() string {
	return s.canonicalPath()
}

// HasChildren reports whether s has at least one child section.
func HasChildren(s Section) bool {
	return len(s.Children()) > 0
}

// CheckMixed returns ErrMixedValue when s has both a non-empty value and
// children. Merging sources of different shapes is the usual cause.
func CheckMixed(s Section) error {
	if s == nil {
		return ErrSectionNil
	}
	v, ok := s.Value()
	if ok && v != "" && HasChildren(s) {
		return fmt.Errorf("%w: %s", ErrMixedValue, s.Path())
	}
	return nil
}
