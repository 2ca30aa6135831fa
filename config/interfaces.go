// Package config provides the hierarchical configuration tree consumed by the
// configuration processor.
//
// Keys are case-insensitive and use ":" as the path separator, so
// "Services:Logging:Level" addresses the Level value of the Logging section
// nested under Services. Arrays are represented by sequential numeric keys
// ("0", "1", ...). A Root merges any number of Sources; later sources override
// earlier ones key by key.
package config

import (
	"time"
)

// KeyDelimiter separates the segments of a configuration path.
const KeyDelimiter = ":"

// Section is a read-only view of one position in the configuration tree.
type Section interface {
	// Key returns the last segment of the section path.
	Key() string

	// Path returns the fully qualified path of the section.
	Path() string

	// Value returns the scalar value stored at this path, if any.
	Value() (string, bool)

	// Children returns the immediate child sections ordered by the
	// configuration key comparer.
	Children() []Section

	// Section returns the descendant section at the given relative path.
	// The returned section may not exist.
	Section(key string) Section

	// Exists reports whether the section has a value or any children.
	Exists() bool

	// Root returns the configuration root the section belongs to.
	Root() *Root
}

// Source supplies flattened configuration data.
// Keys use KeyDelimiter to express nesting.
type Source interface {
	// Name identifies the source in provenance and diagnostics.
	Name() string

	// Load reads the source and returns its flattened key/value pairs.
	Load() (map[string]string, error)
}

// FileSource is implemented by sources backed by files so they can be watched.
type FileSource interface {
	Source
	Paths() []string
}

// SourceInfo describes a configuration source attached to a Root.
type SourceInfo struct {
	Name       string     `json:"name"`
	Priority   int        `json:"priority"` // higher priority overrides lower
	Loaded     bool       `json:"loaded"`
	Keys       int        `json:"keys"`
	LastLoaded *time.Time `json:"last_loaded,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Provenance records which source supplied the value of a key.
type Provenance struct {
	Path   string `json:"path"`
	Source string `json:"source"`
	Value  string `json:"value"`
}
