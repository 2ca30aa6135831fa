package configprocessor

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/golobby/cast"
	"gopkg.in/yaml.v3"

	"github.com/GoCodeAlone/configprocessor/convert"
)

const (
	// Struct tag keys
	tagDefault  = "default"
	tagRequired = "required"
	tagDesc     = "desc" // Used for generating sample config and documentation
)

// ConfigValidator is implemented by configuration structs that validate
// themselves beyond required field checking. ValidateConfig calls Validate
// after defaults were applied and required fields were checked.
//
// Example implementation:
//
//	type ProbeConfig struct {
//	    Dirs []string `yaml:"dirs" required:"true"`
//	}
//
//	func (c *ProbeConfig) Validate() error {
//	    if len(c.Dirs) > 8 {
//	        return fmt.Errorf("too many probe directories")
//	    }
//	    return nil
//	}
type ConfigValidator interface {
	// Validate validates the configuration and returns an error if invalid.
	Validate() error
}

// ProcessConfigDefaults applies default values to a config struct based on
// `default:"value"` tags. Only fields still holding their zero value are
// set. Durations accept every spelling configuration values accept, for
// example "00:00:30" or "30s".
//
//	type Config struct {
//	    Strategy string        `default:"loaded"`
//	    Patterns []string      `default:"[\"*.so\"]"`
//	    Timeout  time.Duration `default:"00:00:30"`
//	}
func ProcessConfigDefaults(cfg any) error {
	v, err := structValue(cfg)
	if err != nil {
		return err
	}
	return processStructDefaults(v)
}

func structValue(cfg any) (reflect.Value, error) {
	if cfg == nil {
		return reflect.Value{}, ErrConfigNil
	}
	v := reflect.ValueOf(cfg)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return reflect.Value{}, ErrConfigNotPointer
	}
	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return reflect.Value{}, ErrConfigNotStruct
	}
	return v, nil
}

// processStructDefaults recursively processes struct fields for default values
func processStructDefaults(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.CanSet() {
			continue
		}

		if field.Kind() == reflect.Struct {
			if err := processStructDefaults(field); err != nil {
				return err
			}
			continue
		}

		// nil struct pointers stay nil
		if field.Kind() == reflect.Pointer && field.Type().Elem().Kind() == reflect.Struct {
			if !field.IsNil() {
				if err := processStructDefaults(field.Elem()); err != nil {
					return err
				}
			}
			continue
		}

		defaultVal, hasDefault := fieldType.Tag.Lookup(tagDefault)
		if !hasDefault || !isZeroValue(field) {
			continue
		}

		if err := setDefaultValue(field, defaultVal); err != nil {
			return fmt.Errorf("failed to set default value for %s: %w", fieldType.Name, err)
		}
	}

	return nil
}

// ValidateConfigRequired checks all struct fields with `required:"true"` tag
// and verifies they are not zero/empty values
func ValidateConfigRequired(cfg any) error {
	v, err := structValue(cfg)
	if err != nil {
		return err
	}

	var missing []string
	validateRequiredFields(v, "", &missing)

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrConfigRequiredFieldMissing, strings.Join(missing, ", "))
	}
	return nil
}

func validateRequiredFields(v reflect.Value, prefix string, missing *[]string) {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)
		fieldName := fieldType.Name
		if prefix != "" {
			fieldName = prefix + "." + fieldName
		}

		if !field.CanSet() {
			continue
		}

		if field.Kind() == reflect.Struct {
			validateRequiredFields(field, fieldName, missing)
			continue
		}

		if field.Kind() == reflect.Pointer && field.Type().Elem().Kind() == reflect.Struct {
			if !field.IsNil() {
				validateRequiredFields(field.Elem(), fieldName, missing)
			} else if isFieldRequired(&fieldType) {
				*missing = append(*missing, fieldName)
			}
			continue
		}

		if isFieldRequired(&fieldType) && isZeroValue(field) {
			*missing = append(*missing, fieldName)
		}
	}
}

func isFieldRequired(field *reflect.StructField) bool {
	required, exists := field.Tag.Lookup(tagRequired)
	return exists && required == "true"
}

// isZeroValue determines if a field contains its zero value. Empty
// collections count as zero.
func isZeroValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Interface, reflect.Pointer:
		return v.IsNil()
	case reflect.Invalid:
		return true
	case reflect.Chan, reflect.Func, reflect.Struct, reflect.UnsafePointer:
		return false
	default:
		return v.IsZero()
	}
}

var durationType = reflect.TypeOf(time.Duration(0))

// setDefaultValue sets a default value from a string to the proper field type
func setDefaultValue(field reflect.Value, defaultVal string) error {
	if field.Type() == durationType {
		d, err := convert.ParseDuration(defaultVal)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrDefaultValueParseError, err)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return setDefaultScalar(field, defaultVal)
	case reflect.Slice, reflect.Map:
		return setDefaultJSON(field, defaultVal)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedTypeForDefault, field.Kind())
	}
}

// setDefaultScalar parses with the cast rules used for configuration values
// and checks the result fits the field.
func setDefaultScalar(field reflect.Value, defaultVal string) error {
	switch field.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v, err := cast.FromType(defaultVal, reflect.TypeOf(int64(0)))
		if err != nil {
			return fmt.Errorf("%w: %w", ErrDefaultValueParseError, err)
		}
		if field.OverflowInt(v.(int64)) {
			return fmt.Errorf("%w: %s overflows %s", ErrDefaultValueOverflowsInt, defaultVal, field.Type())
		}
		field.SetInt(v.(int64))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v, err := cast.FromType(defaultVal, reflect.TypeOf(uint64(0)))
		if err != nil {
			return fmt.Errorf("%w: %w", ErrDefaultValueParseError, err)
		}
		if field.OverflowUint(v.(uint64)) {
			return fmt.Errorf("%w: %s overflows %s", ErrDefaultValueOverflowsUint, defaultVal, field.Type())
		}
		field.SetUint(v.(uint64))
	case reflect.Float32, reflect.Float64:
		v, err := cast.FromType(defaultVal, reflect.TypeOf(float64(0)))
		if err != nil {
			return fmt.Errorf("%w: %w", ErrDefaultValueParseError, err)
		}
		if field.OverflowFloat(v.(float64)) {
			return fmt.Errorf("%w: %s overflows %s", ErrDefaultValueOverflowsFloat, defaultVal, field.Type())
		}
		field.SetFloat(v.(float64))
	default:
		v, err := cast.FromType(defaultVal, field.Type())
		if err != nil {
			return fmt.Errorf("%w: %w", ErrDefaultValueParseError, err)
		}
		field.Set(reflect.ValueOf(v).Convert(field.Type()))
	}
	return nil
}

// setDefaultJSON sets a slice or map default written as JSON.
func setDefaultJSON(field reflect.Value, defaultVal string) error {
	ptr := reflect.New(field.Type())
	if err := json.Unmarshal([]byte(defaultVal), ptr.Interface()); err != nil {
		return fmt.Errorf("%w: %w", ErrDefaultValueParseError, err)
	}
	field.Set(ptr.Elem())
	return nil
}

// GenerateSampleConfig renders the defaults of a config struct as "yaml",
// "json" or "toml".
func GenerateSampleConfig(cfg any, format string) ([]byte, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}
	t := reflect.TypeOf(cfg)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	sampleConfig := reflect.New(t).Interface()
	if err := ProcessConfigDefaults(sampleConfig); err != nil {
		return nil, err
	}

	switch strings.ToLower(format) {
	case "yaml":
		data, err := yaml.Marshal(sampleConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal to YAML: %w", err)
		}
		return data, nil
	case "json":
		data, err := json.MarshalIndent(mapStructFieldsForJSON(sampleConfig), "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal to JSON: %w", err)
		}
		return data, nil
	case "toml":
		var buf strings.Builder
		if err := toml.NewEncoder(&buf).Encode(sampleConfig); err != nil {
			return nil, fmt.Errorf("failed to marshal to TOML: %w", err)
		}
		return []byte(buf.String()), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormatType, format)
	}
}

// mapStructFieldsForJSON creates a map keyed by json names, falling back to
// yaml names. Durations are written in the configuration spelling.
func mapStructFieldsForJSON(cfg any) map[string]any {
	result := make(map[string]any)
	v := reflect.ValueOf(cfg)
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)
		if !fieldType.IsExported() {
			continue
		}

		fieldName := fieldType.Name
		if tag := tagName(fieldType, "json"); tag != "" {
			fieldName = tag
		} else if tag := tagName(fieldType, "yaml"); tag != "" {
			fieldName = tag
		}
		if fieldName == "-" {
			continue
		}

		switch {
		case field.Type() == durationType:
			result[fieldName] = time.Duration(field.Int()).String()
		case field.Kind() == reflect.Struct:
			result[fieldName] = mapStructFieldsForJSON(field.Interface())
		case field.Kind() == reflect.Pointer && !field.IsNil() && field.Elem().Kind() == reflect.Struct:
			result[fieldName] = mapStructFieldsForJSON(field.Interface())
		default:
			result[fieldName] = field.Interface()
		}
	}

	return result
}

func tagName(f reflect.StructField, key string) string {
	tag := f.Tag.Get(key)
	if tag == "" {
		return ""
	}
	return strings.Split(tag, ",")[0]
}

// DescribeConfig lists the `desc` tag of every documented field, keyed by
// the dotted field path.
func DescribeConfig(cfg any) map[string]string {
	out := make(map[string]string)
	t := reflect.TypeOf(cfg)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return out
	}
	describeFields(t, "", out)
	return out
}

func describeFields(t reflect.Type, prefix string, out map[string]string) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag := tagName(f, "yaml"); tag != "" && tag != "-" {
			name = tag
		}
		if prefix != "" {
			name = prefix + "." + name
		}
		if desc, ok := f.Tag.Lookup(tagDesc); ok {
			out[name] = desc
		}
		if f.Type.Kind() == reflect.Struct && f.Type != durationType {
			describeFields(f.Type, name, out)
		}
	}
}

// SaveSampleConfig generates and saves a sample configuration file
func SaveSampleConfig(cfg any, format, filePath string) error {
	data, err := GenerateSampleConfig(cfg, format)
	if err != nil {
		return err
	}

	if err := os.WriteFile(filePath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file to %s: %w", filePath, err)
	}
	return nil
}

// ValidateConfig applies defaults, checks required fields and then runs the
// ConfigValidator of cfg when it has one.
func ValidateConfig(cfg any) error {
	if cfg == nil {
		return ErrConfigNil
	}

	if err := ProcessConfigDefaults(cfg); err != nil {
		return err
	}

	if err := ValidateConfigRequired(cfg); err != nil {
		return err
	}

	if validator, ok := cfg.(ConfigValidator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrConfigValidationFailed, err)
		}
	}

	return nil
}
