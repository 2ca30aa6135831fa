package config

import (
	"slices"
	"strings"
	"time"
)

// ChangeType represents the type of change that occurred to a configuration key.
type ChangeType string

const (
	// ChangeTypeAdded indicates a key was added to the configuration
	ChangeTypeAdded ChangeType = "added"

	// ChangeTypeModified indicates a value was changed
	ChangeTypeModified ChangeType = "modified"

	// ChangeTypeRemoved indicates a key was removed from the configuration
	ChangeTypeRemoved ChangeType = "removed"
)

// String returns the string representation of the change type
func (c ChangeType) String() string {
	return string(c)
}

// Redacted replaces the values of sensitive keys in diffs.
const Redacted = "[REDACTED]"

// Change describes one key that differs between two trees.
type Change struct {
	// Path is the full path of the key, spelled as in the newer tree when
	// it exists there.
	Path string

	// Type indicates what kind of change this represents
	Type ChangeType

	// OldValue is the previous value, empty for added keys
	OldValue string

	// NewValue is the new value, empty for removed keys
	NewValue string

	// IsSensitive indicates whether the values should be redacted from
	// logs and events
	IsSensitive bool
}

// Diff represents the differences between two configuration trees.
//
// Keys are compared case-insensitively, the same way sections are looked up,
// so re-spelling a key without changing its value is not a change.
type Diff struct {
	Changes   []Change
	Timestamp time.Time
}

// DiffOptions tunes Compare.
type DiffOptions struct {
	// IgnorePrefixes lists path prefixes whose keys are left out.
	IgnorePrefixes []string

	// SensitivePrefixes lists path prefixes whose values are marked
	// sensitive. The ConnectionStrings section is always sensitive.
	SensitivePrefixes []string
}

// Compare computes the changes needed to go from before to after. Both maps
// are flattened trees as returned by Root.AsMap. Changes are ordered by path.
func Compare(before, after map[string]string, opts DiffOptions) *Diff {
	d := &Diff{Timestamp: time.Now()}

	old := normalized(before)
	cur := normalized(after)
	sensitive := append([]string{connectionStringsKey}, opts.SensitivePrefixes...)

	for key, n := range cur {
		if hasPrefix(key, opts.IgnorePrefixes) {
			continue
		}
		o, existed := old[key]
		switch {
		case !existed:
			d.Changes = append(d.Changes, Change{Path: n.path, Type: ChangeTypeAdded, NewValue: n.value})
		case o.value != n.value:
			d.Changes = append(d.Changes, Change{Path: n.path, Type: ChangeTypeModified, OldValue: o.value, NewValue: n.value})
		default:
			continue
		}
		d.Changes[len(d.Changes)-1].IsSensitive = hasPrefix(key, sensitive)
	}
	for key, o := range old {
		if _, ok := cur[key]; ok || hasPrefix(key, opts.IgnorePrefixes) {
			continue
		}
		d.Changes = append(d.Changes, Change{
			Path:        o.path,
			Type:        ChangeTypeRemoved,
			OldValue:    o.value,
			IsSensitive: hasPrefix(key, sensitive),
		})
	}
	slices.SortFunc(d.Changes, func(a, b Change) int { return CompareKeys(a.Path, b.Path) })
	return d
}

type keyed struct {
	path  string
	value string
}

func normalized(m map[string]string) map[string]keyed {
	out := make(map[string]keyed, len(m))
	for k, v := range m {
		out[normalize(k)] = keyed{path: k, value: v}
	}
	return out
}

func hasPrefix(key string, prefixes []string) bool {
	for _, p := range prefixes {
		p = normalize(p)
		if key == p || strings.HasPrefix(key, p+KeyDelimiter) {
			return true
		}
	}
	return false
}

// HasChanges returns true if the diff contains any changes
func (d *Diff) HasChanges() bool {
	return d != nil && len(d.Changes) > 0
}

// Paths returns the paths of every change of type t, or of every change
// when t is empty.
func (d *Diff) Paths(t ChangeType) []string {
	var paths []string
	for _, c := range d.Changes {
		if t == "" || c.Type == t {
			paths = append(paths, c.Path)
		}
	}
	return paths
}

// FilterByPrefix returns the changes below prefix.
func (d *Diff) FilterByPrefix(prefix string) *Diff {
	filtered := &Diff{Timestamp: d.Timestamp}
	for _, c := range d.Changes {
		if hasPrefix(normalize(c.Path), []string{prefix}) {
			filtered.Changes = append(filtered.Changes, c)
		}
	}
	return filtered
}

// RedactSensitive returns a copy of the diff with sensitive values replaced.
func (d *Diff) RedactSensitive() *Diff {
	redacted := &Diff{Timestamp: d.Timestamp, Changes: slices.Clone(d.Changes)}
	for i, c := range redacted.Changes {
		if !c.IsSensitive {
			continue
		}
		if c.OldValue != "" {
			redacted.Changes[i].OldValue = Redacted
		}
		if c.NewValue != "" {
			redacted.Changes[i].NewValue = Redacted
		}
	}
	return redacted
}

// Summary counts changes by type.
func (d *Diff) Summary() map[ChangeType]int {
	counts := map[ChangeType]int{}
	for _, c := range d.Changes {
		counts[c.Type]++
	}
	return counts
}
