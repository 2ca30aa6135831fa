package feeders

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/GoCodeAlone/configprocessor/config"
)

// HCLFeeder is a configuration source that reads the top-level attributes of
// an HCL file. Blocks are not supported; nest objects as attribute values:
//
//	Logging = { Level = "debug" }
type HCLFeeder struct {
	verbose
	Path     string
	Optional bool
}

// NewHCLFeeder creates a new HCLFeeder that reads from the specified HCL file
func NewHCLFeeder(filePath string) *HCLFeeder {
	return &HCLFeeder{Path: filePath}
}

// Name identifies the feeder in provenance output.
func (h *HCLFeeder) Name() string { return "hcl:" + h.Path }

// Paths returns the watched file.
func (h *HCLFeeder) Paths() []string { return []string{h.Path} }

// Load parses the file and flattens every attribute value.
func (h *HCLFeeder) Load() (map[string]string, error) {
	h.debug("HCLFeeder: Starting load", "filePath", h.Path)
	data, err := readOptional("HCLFeeder", h.Path, h.Optional)
	if err != nil {
		return nil, err
	}
	out, err := decodeHCL(h.Path, data)
	if err != nil {
		h.debug("HCLFeeder: Failed to decode file", "filePath", h.Path, "error", err)
		return nil, err
	}
	h.debug("HCLFeeder: Load completed", "filePath", h.Path, "keys", len(out))
	return out, nil
}

func decodeHCL(filename string, data []byte) (map[string]string, error) {
	out := make(map[string]string)
	if data == nil {
		return out, nil
	}
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w %s: %w", ErrHCLParse, filename, diags)
	}
	attrs, diags := file.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w %s: %w", ErrHCLParse, filename, diags)
	}
	for name, attr := range attrs {
		val, diags := attr.Expr.Value(&hcl.EvalContext{})
		if diags.HasErrors() {
			return nil, fmt.Errorf("%w %q: %w", ErrHCLEval, name, diags)
		}
		if err := flattenCty(name, val, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func flattenCty(prefix string, val cty.Value, out map[string]string) error {
	if val.IsNull() {
		out[prefix] = ""
		return nil
	}
	if !val.IsKnown() {
		return wrapValueTypeError(prefix, val)
	}
	ty := val.Type()
	switch {
	case ty == cty.String:
		out[prefix] = val.AsString()
	case ty == cty.Number:
		out[prefix] = val.AsBigFloat().Text('f', -1)
	case ty == cty.Bool:
		out[prefix] = strconv.FormatBool(val.True())
	case ty.IsObjectType() || ty.IsMapType():
		if val.LengthInt() == 0 {
			out[prefix] = ""
			return nil
		}
		m := val.AsValueMap()
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := flattenCty(config.CombinePath(prefix, k), m[k], out); err != nil {
				return err
			}
		}
	case ty.IsTupleType() || ty.IsListType() || ty.IsSetType():
		if val.LengthInt() == 0 {
			out[prefix] = ""
			return nil
		}
		for i, elem := range val.AsValueSlice() {
			if err := flattenCty(config.CombinePath(prefix, strconv.Itoa(i)), elem, out); err != nil {
				return err
			}
		}
	default:
		return wrapValueTypeError(prefix, val)
	}
	return nil
}
