package feeders

import (
	"fmt"
	"maps"
	"strings"

	"github.com/GoCodeAlone/configprocessor/config"
)

// MapFeeder serves a fixed set of flattened key/value pairs.
type MapFeeder struct {
	Label string
	Data  map[string]string
}

// NewMapFeeder creates a MapFeeder over data.
func NewMapFeeder(data map[string]string) *MapFeeder {
	return &MapFeeder{Label: "memory", Data: data}
}

// Name identifies the feeder in provenance output.
func (m *MapFeeder) Name() string { return m.Label }

// Load returns a copy of the data.
func (m *MapFeeder) Load() (map[string]string, error) {
	return maps.Clone(m.Data), nil
}

// ContentFeeder decodes an in-memory document in one of the supported formats.
// It is used for configuration passed on stdin and in tests.
type ContentFeeder struct {
	Label   string
	Format  string
	Content []byte
}

// NewContentFeeder creates a feeder over content in the given format
// ("json", "yaml", "yml", "toml" or "hcl").
func NewContentFeeder(format string, content []byte) *ContentFeeder {
	return &ContentFeeder{Label: format + ":inline", Format: format, Content: content}
}

// JSON is shorthand for NewContentFeeder("json", []byte(doc)).
func JSON(doc string) *ContentFeeder {
	return NewContentFeeder("json", []byte(doc))
}

// Name identifies the feeder in provenance output.
func (c *ContentFeeder) Name() string { return c.Label }

// Load decodes the content.
func (c *ContentFeeder) Load() (map[string]string, error) {
	var (
		out map[string]string
		err error
	)
	switch strings.ToLower(c.Format) {
	case "json":
		out, err = decodeJSON(c.Content)
	case "yaml", "yml":
		out, err = decodeYAML(c.Content)
	case "toml":
		out, err = decodeTOML(c.Content)
	case "hcl":
		out, err = decodeHCL(c.Label, c.Content)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, c.Format)
	}
	if err != nil {
		return nil, wrapDecodeError("ContentFeeder", c.Label, err)
	}
	return out, nil
}

// ForFile picks a file feeder by extension.
func ForFile(path string) (config.FileSource, error) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".json"):
		return NewJSONFeeder(path), nil
	case strings.HasSuffix(lower, ".yaml"), strings.HasSuffix(lower, ".yml"):
		return NewYamlFeeder(path), nil
	case strings.HasSuffix(lower, ".toml"):
		return NewTomlFeeder(path), nil
	case strings.HasSuffix(lower, ".hcl"):
		return NewHCLFeeder(path), nil
	case strings.HasSuffix(lower, ".env"):
		return NewDotEnvFeeder(path), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
}
