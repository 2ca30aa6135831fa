package config

import (
	"strconv"
	"strings"
)

// CombinePath joins path segments with KeyDelimiter, skipping empty segments.
func CombinePath(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, KeyDelimiter)
}

// LastSegment returns the final segment of a configuration path.
func LastSegment(path string) string {
	if i := strings.LastIndex(path, KeyDelimiter); i >= 0 {
		return path[i+1:]
	}
	return path
}

// ParentPath returns the path without its final segment.
func ParentPath(path string) string {
	if i := strings.LastIndex(path, KeyDelimiter); i >= 0 {
		return path[:i]
	}
	return ""
}

// CompareKeys orders configuration keys segment by segment. Numeric segments
// sort numerically and before non-numeric ones; everything else compares
// case-insensitively.
func CompareKeys(x, y string) int {
	xs := strings.Split(x, KeyDelimiter)
	ys := strings.Split(y, KeyDelimiter)
	for i := 0; i < len(xs) && i < len(ys); i++ {
		if c := compareSegment(xs[i], ys[i]); c != 0 {
			return c
		}
	}
	return len(xs) - len(ys)
}

func compareSegment(a, b string) int {
	ai, aErr := strconv.Atoi(a)
	bi, bErr := strconv.Atoi(b)
	switch {
	case aErr == nil && bErr == nil:
		return ai - bi
	case aErr == nil:
		return -1
	case bErr == nil:
		return 1
	}
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

// IsIndex reports whether key is a non-negative array index.
func IsIndex(key string) bool {
	if key == "" {
		return false
	}
	for _, r := range key {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func normalize(path string) string {
	return strings.ToLower(path)
}
