// Package feeders provides configuration sources for reading data from various
// formats including JSON, YAML, TOML and HCL files, environment variables,
// .env files and in-memory maps.
//
// Every feeder implements config.Source and returns flattened key/value pairs
// using ":" to express nesting and numeric segments for array elements.
package feeders

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/GoCodeAlone/configprocessor/config"
)

// debugLogger is the narrow logger used by feeders for verbose output.
type debugLogger interface {
	Debug(msg string, args ...any)
}

// verbose holds the verbose debug state shared by feeders.
type verbose struct {
	verboseDebug bool
	logger       debugLogger
}

// SetVerboseDebug enables or disables verbose debug logging
func (v *verbose) SetVerboseDebug(enabled bool, logger interface{ Debug(msg string, args ...any) }) {
	v.verboseDebug = enabled
	v.logger = logger
	if enabled && logger != nil {
		v.logger.Debug("Verbose feeder debugging enabled")
	}
}

func (v *verbose) debug(msg string, args ...any) {
	if v.verboseDebug && v.logger != nil {
		v.logger.Debug(msg, args...)
	}
}

// Flatten converts a decoded document into configuration key/value pairs.
// Maps become nested sections, slices become numerically indexed sections and
// scalars are rendered in their invariant text form. Null values and empty
// containers become empty strings so the key still exists.
func Flatten(prefix string, value any, out map[string]string) error {
	switch v := value.(type) {
	case nil:
		out[prefix] = ""
	case map[string]any:
		if len(v) == 0 {
			out[prefix] = ""
			return nil
		}
		for k, child := range v {
			if err := Flatten(config.CombinePath(prefix, k), child, out); err != nil {
				return err
			}
		}
	case map[any]any:
		if len(v) == 0 {
			out[prefix] = ""
			return nil
		}
		for k, child := range v {
			if err := Flatten(config.CombinePath(prefix, fmt.Sprint(k)), child, out); err != nil {
				return err
			}
		}
	case []any:
		if len(v) == 0 {
			out[prefix] = ""
			return nil
		}
		for i, child := range v {
			if err := Flatten(config.CombinePath(prefix, strconv.Itoa(i)), child, out); err != nil {
				return err
			}
		}
	case []map[string]any:
		for i, child := range v {
			if err := Flatten(config.CombinePath(prefix, strconv.Itoa(i)), child, out); err != nil {
				return err
			}
		}
	case string:
		out[prefix] = v
	case bool:
		out[prefix] = strconv.FormatBool(v)
	case json.Number:
		out[prefix] = v.String()
	case int:
		out[prefix] = strconv.Itoa(v)
	case int64:
		out[prefix] = strconv.FormatInt(v, 10)
	case uint64:
		out[prefix] = strconv.FormatUint(v, 10)
	case float64:
		out[prefix] = formatFloat(v)
	case time.Time:
		out[prefix] = v.Format(time.RFC3339Nano)
	case fmt.Stringer:
		out[prefix] = v.String()
	default:
		return wrapValueTypeError(prefix, value)
	}
	return nil
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// readOptional reads path, returning nil data when the file is missing and
// optional is set.
func readOptional(feeder, path string, optional bool) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("%s: %w", feeder, ErrFeederPathEmpty)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return nil, nil
		}
		return nil, wrapReadError(feeder, path, err)
	}
	return data, nil
}
