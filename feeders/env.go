package feeders

import (
	"os"
	"strings"

	"github.com/GoCodeAlone/configprocessor/config"
)

// EnvKeySeparator is the environment variable spelling of a nested key.
// LOGGING__LEVEL maps to Logging:Level.
const EnvKeySeparator = "__"

// EnvFeeder reads environment variables, optionally limited to those starting
// with Prefix. The prefix is stripped from the resulting keys.
type EnvFeeder struct {
	verbose
	Prefix string
	lookup func() []string
}

// NewEnvFeeder creates a new EnvFeeder for the given prefix
func NewEnvFeeder(prefix string) *EnvFeeder {
	return &EnvFeeder{Prefix: prefix}
}

// Name identifies the feeder in provenance output.
func (e *EnvFeeder) Name() string { return "env:" + e.Prefix }

// Load collects the matching environment variables.
func (e *EnvFeeder) Load() (map[string]string, error) {
	e.debug("EnvFeeder: Starting load", "prefix", e.Prefix)
	out := envToKeys(e.environ(), e.Prefix, "")
	e.debug("EnvFeeder: Load completed", "prefix", e.Prefix, "keys", len(out))
	return out, nil
}

func (e *EnvFeeder) environ() []string {
	if e.lookup != nil {
		return e.lookup()
	}
	return os.Environ()
}

// AffixedEnvFeeder reads environment variables that carry both a prefix and a
// suffix, e.g. APP_LOGGING__LEVEL_PROD with prefix APP_ and suffix _PROD.
// Matching is case-insensitive.
type AffixedEnvFeeder struct {
	verbose
	Prefix string
	Suffix string
	lookup func() []string
}

// NewAffixedEnvFeeder creates a new AffixedEnvFeeder with the specified prefix and suffix
func NewAffixedEnvFeeder(prefix, suffix string) *AffixedEnvFeeder {
	return &AffixedEnvFeeder{Prefix: prefix, Suffix: suffix}
}

// Name identifies the feeder in provenance output.
func (a *AffixedEnvFeeder) Name() string { return "env:" + a.Prefix + "*" + a.Suffix }

// Load collects the matching environment variables.
func (a *AffixedEnvFeeder) Load() (map[string]string, error) {
	if a.Prefix == "" && a.Suffix == "" {
		return nil, ErrEnvEmptyPrefixAndSuffix
	}
	env := os.Environ()
	if a.lookup != nil {
		env = a.lookup()
	}
	out := envToKeys(env, a.Prefix, a.Suffix)
	a.debug("AffixedEnvFeeder: Load completed", "prefix", a.Prefix, "suffix", a.Suffix, "keys", len(out))
	return out, nil
}

func envToKeys(environ []string, prefix, suffix string) map[string]string {
	out := make(map[string]string)
	upperPrefix := strings.ToUpper(prefix)
	upperSuffix := strings.ToUpper(suffix)
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		key, matched := stripAffixes(name, upperPrefix, upperSuffix)
		if !matched || key == "" {
			continue
		}
		out[envKey(key)] = value
	}
	return out
}

func stripAffixes(name, prefix, suffix string) (string, bool) {
	upper := strings.ToUpper(name)
	if !strings.HasPrefix(upper, prefix) || !strings.HasSuffix(upper, suffix) {
		return "", false
	}
	if len(prefix)+len(suffix) > len(name) {
		return "", false
	}
	return name[len(prefix) : len(name)-len(suffix)], true
}

func envKey(name string) string {
	return strings.ReplaceAll(name, EnvKeySeparator, config.KeyDelimiter)
}
