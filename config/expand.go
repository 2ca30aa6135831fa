package config

import (
	"os"
	"regexp"
)

var envReference = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}|%([A-Za-z_][A-Za-z0-9_]*)%`)

// ExpandEnv replaces ${VAR} and %VAR% references with the value of the
// environment variable. References to unset variables are left untouched.
func ExpandEnv(s string) string {
	return ExpandWith(s, os.LookupEnv)
}

// ExpandWith is ExpandEnv with a custom lookup function.
func ExpandWith(s string, lookup func(string) (string, bool)) string {
	return envReference.ReplaceAllStringFunc(s, func(ref string) string {
		m := envReference.FindStringSubmatch(ref)
		name := m[1]
		if name == "" {
			name = m[2]
		}
		if v, ok := lookup(name); ok {
			return v
		}
		return ref
	})
}
