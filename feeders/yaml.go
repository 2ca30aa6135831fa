package feeders

import (
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/GoCodeAlone/configprocessor/config"
)

// YamlFeeder is a configuration source that reads a YAML file.
// Scalars keep their literal text so "13:00:10" is not reinterpreted.
type YamlFeeder struct {
	verbose
	Path     string
	Optional bool
}

// NewYamlFeeder creates a new YamlFeeder that reads from the specified YAML file
func NewYamlFeeder(filePath string) *YamlFeeder {
	return &YamlFeeder{Path: filePath}
}

// Name identifies the feeder in provenance output.
func (y *YamlFeeder) Name() string { return "yaml:" + y.Path }

// Paths returns the watched file.
func (y *YamlFeeder) Paths() []string { return []string{y.Path} }

// Load reads and flattens the YAML document.
func (y *YamlFeeder) Load() (map[string]string, error) {
	y.debug("YamlFeeder: Starting load", "filePath", y.Path)
	data, err := readOptional("YamlFeeder", y.Path, y.Optional)
	if err != nil {
		y.debug("YamlFeeder: Failed to read file", "filePath", y.Path, "error", err)
		return nil, err
	}
	out, err := decodeYAML(data)
	if err != nil {
		return nil, wrapDecodeError("YamlFeeder", y.Path, err)
	}
	y.debug("YamlFeeder: Load completed", "filePath", y.Path, "keys", len(out))
	return out, nil
}

func decodeYAML(data []byte) (map[string]string, error) {
	out := make(map[string]string)
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err //nolint:wrapcheck // wrapped by caller
	}
	if doc.Kind == 0 {
		return out, nil
	}
	flattenNode("", &doc, out)
	delete(out, "")
	return out, nil
}

func flattenNode(prefix string, n *yaml.Node, out map[string]string) {
	switch n.Kind {
	case yaml.DocumentNode:
		for _, c := range n.Content {
			flattenNode(prefix, c, out)
		}
	case yaml.MappingNode:
		if len(n.Content) == 0 {
			out[prefix] = ""
			return
		}
		for i := 0; i+1 < len(n.Content); i += 2 {
			flattenNode(config.CombinePath(prefix, n.Content[i].Value), n.Content[i+1], out)
		}
	case yaml.SequenceNode:
		if len(n.Content) == 0 {
			out[prefix] = ""
			return
		}
		for i, c := range n.Content {
			flattenNode(config.CombinePath(prefix, strconv.Itoa(i)), c, out)
		}
	case yaml.AliasNode:
		if n.Alias != nil {
			flattenNode(prefix, n.Alias, out)
		}
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			out[prefix] = ""
			return
		}
		out[prefix] = n.Value
	}
}
