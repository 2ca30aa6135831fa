package feeders

import (
	"github.com/BurntSushi/toml"
)

// TomlFeeder is a configuration source that reads a TOML file
type TomlFeeder struct {
	verbose
	Path     string
	Optional bool
}

// NewTomlFeeder creates a new TomlFeeder that reads from the specified TOML file
func NewTomlFeeder(filePath string) *TomlFeeder {
	return &TomlFeeder{Path: filePath}
}

// Name identifies the feeder in provenance output.
func (t *TomlFeeder) Name() string { return "toml:" + t.Path }

// Paths returns the watched file.
func (t *TomlFeeder) Paths() []string { return []string{t.Path} }

// Load reads and flattens the TOML document.
func (t *TomlFeeder) Load() (map[string]string, error) {
	t.debug("TomlFeeder: Starting load", "filePath", t.Path)
	data, err := readOptional("TomlFeeder", t.Path, t.Optional)
	if err != nil {
		t.debug("TomlFeeder: Failed to read file", "filePath", t.Path, "error", err)
		return nil, err
	}
	out, err := decodeTOML(data)
	if err != nil {
		return nil, wrapDecodeError("TomlFeeder", t.Path, err)
	}
	t.debug("TomlFeeder: Load completed", "filePath", t.Path, "keys", len(out))
	return out, nil
}

func decodeTOML(data []byte) (map[string]string, error) {
	out := make(map[string]string)
	doc := make(map[string]any)
	if _, err := toml.Decode(string(data), &doc); err != nil {
		return nil, err //nolint:wrapcheck // wrapped by caller
	}
	for k, v := range doc {
		if err := Flatten(k, v, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}
