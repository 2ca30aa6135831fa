package feeders

import (
	"bytes"
	"encoding/json"
)

// JSONFeeder is a configuration source that reads a JSON file
type JSONFeeder struct {
	verbose
	Path     string
	Optional bool
}

// NewJSONFeeder creates a new JSONFeeder that reads from the specified JSON file
func NewJSONFeeder(filePath string) *JSONFeeder {
	return &JSONFeeder{Path: filePath}
}

// Name identifies the feeder in provenance output.
func (j *JSONFeeder) Name() string { return "json:" + j.Path }

// Paths returns the watched file.
func (j *JSONFeeder) Paths() []string { return []string{j.Path} }

// Load reads and flattens the JSON document.
func (j *JSONFeeder) Load() (map[string]string, error) {
	j.debug("JSONFeeder: Starting load", "filePath", j.Path)
	data, err := readOptional("JSONFeeder", j.Path, j.Optional)
	if err != nil {
		j.debug("JSONFeeder: Failed to read file", "filePath", j.Path, "error", err)
		return nil, err
	}
	out, err := decodeJSON(data)
	if err != nil {
		return nil, wrapDecodeError("JSONFeeder", j.Path, err)
	}
	j.debug("JSONFeeder: Load completed", "filePath", j.Path, "keys", len(out))
	return out, nil
}

func decodeJSON(data []byte) (map[string]string, error) {
	out := make(map[string]string)
	if len(bytes.TrimSpace(data)) == 0 {
		return out, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err //nolint:wrapcheck // wrapped by caller
	}
	if err := Flatten("", doc, out); err != nil {
		return nil, err
	}
	delete(out, "")
	return out, nil
}
