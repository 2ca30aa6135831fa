package configprocessor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type ValidationTestConfig struct {
	Name      string            `yaml:"name" default:"Default Name" desc:"Name of the config"`
	Port      int               `yaml:"port" default:"8080" required:"true" desc:"Port to listen on"`
	Debug     bool              `yaml:"debug" default:"false" desc:"Enable debug mode"`
	Tags      []string          `yaml:"tags" default:"[\"tag1\", \"tag2\"]" desc:"List of tags"`
	Timeout   time.Duration     `yaml:"timeout" default:"00:00:30" desc:"Request timeout"`
	Ratio     float32           `yaml:"ratio" default:"0.5"`
	Env       string            `yaml:"env" required:"true" desc:"Environment (dev, test, prod)"`
	Options   map[string]string `yaml:"options" default:"{\"key1\":\"value1\"}"`
	NestedCfg *NestedTestConfig `yaml:"nested" desc:"Nested configuration"`
}

type NestedTestConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	APIKey  string `yaml:"apiKey" required:"true"`
}

func (c *ValidationTestConfig) Validate() error {
	if c.Port < 1024 {
		return ErrConfigValidationFailed
	}
	return nil
}

func TestProcessConfigDefaults(t *testing.T) {
	cfg := &ValidationTestConfig{Port: 9000}
	require.NoError(t, ProcessConfigDefaults(cfg))

	assert.Equal(t, "Default Name", cfg.Name)
	assert.Equal(t, 9000, cfg.Port, "set fields keep their value")
	assert.False(t, cfg.Debug)
	assert.Equal(t, []string{"tag1", "tag2"}, cfg.Tags)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.InDelta(t, 0.5, cfg.Ratio, 0.0001)
	assert.Equal(t, map[string]string{"key1": "value1"}, cfg.Options)
	assert.Nil(t, cfg.NestedCfg, "nil struct pointers stay nil")

	cfg = &ValidationTestConfig{NestedCfg: &NestedTestConfig{}}
	require.NoError(t, ProcessConfigDefaults(cfg))
	assert.True(t, cfg.NestedCfg.Enabled)
}

func TestProcessConfigDefaults_Errors(t *testing.T) {
	require.ErrorIs(t, ProcessConfigDefaults(nil), ErrConfigNil)
	require.ErrorIs(t, ProcessConfigDefaults(ValidationTestConfig{}), ErrConfigNotPointer)
	s := "x"
	require.ErrorIs(t, ProcessConfigDefaults(&s), ErrConfigNotStruct)

	type overflow struct {
		Small int8 `default:"300"`
	}
	require.ErrorIs(t, ProcessConfigDefaults(&overflow{}), ErrDefaultValueOverflowsInt)

	type badDuration struct {
		D time.Duration `default:"soon"`
	}
	require.ErrorIs(t, ProcessConfigDefaults(&badDuration{}), ErrDefaultValueParseError)

	type unsupported struct {
		C complex64 `default:"1"`
	}
	require.ErrorIs(t, ProcessConfigDefaults(&unsupported{}), ErrUnsupportedTypeForDefault)
}

func TestValidateConfigRequired(t *testing.T) {
	err := ValidateConfigRequired(&ValidationTestConfig{})
	require.ErrorIs(t, err, ErrConfigRequiredFieldMissing)
	assert.Contains(t, err.Error(), "Port")
	assert.Contains(t, err.Error(), "Env")

	err = ValidateConfigRequired(&ValidationTestConfig{Port: 1, Env: "dev", NestedCfg: &NestedTestConfig{}})
	require.ErrorIs(t, err, ErrConfigRequiredFieldMissing)
	assert.Contains(t, err.Error(), "NestedCfg.APIKey")

	require.NoError(t, ValidateConfigRequired(&ValidationTestConfig{Port: 1, Env: "dev"}))
}

func TestValidateConfig(t *testing.T) {
	require.NoError(t, ValidateConfig(&ValidationTestConfig{Env: "dev"}))

	err := ValidateConfig(&ValidationTestConfig{Env: "dev", Port: 80})
	require.ErrorIs(t, err, ErrConfigValidationFailed)

	require.ErrorIs(t, ValidateConfig(nil), ErrConfigNil)
}

func TestGenerateSampleConfig(t *testing.T) {
	t.Run("yaml", func(t *testing.T) {
		data, err := GenerateSampleConfig(&ProcessorConfig{}, "yaml")
		require.NoError(t, err)
		var out map[string]any
		require.NoError(t, yaml.Unmarshal(data, &out))
		assert.Equal(t, "loaded", out["strategy"])
		assert.Equal(t, true, out["strict"])
	})

	t.Run("json", func(t *testing.T) {
		data, err := GenerateSampleConfig(&ValidationTestConfig{}, "json")
		require.NoError(t, err)
		var out map[string]any
		require.NoError(t, json.Unmarshal(data, &out))
		assert.Equal(t, "Default Name", out["name"])
		assert.Equal(t, "30s", out["timeout"])
	})

	t.Run("toml", func(t *testing.T) {
		data, err := GenerateSampleConfig(ProcessorConfig{}, "toml")
		require.NoError(t, err)
		assert.Contains(t, string(data), `strategy = "loaded"`)
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := GenerateSampleConfig(&ProcessorConfig{}, "xml")
		require.ErrorIs(t, err, ErrUnsupportedFormatType)
	})
}

func TestSaveSampleConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processor.yaml")
	require.NoError(t, SaveSampleConfig(&ProcessorConfig{}, "yaml", path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "strategy: loaded")
}

func TestDescribeConfig(t *testing.T) {
	desc := DescribeConfig(&ValidationTestConfig{})
	assert.Equal(t, "Port to listen on", desc["port"])
	assert.Equal(t, "Nested configuration", desc["nested"])
	assert.NotContains(t, desc, "ratio")
	assert.Empty(t, DescribeConfig(nil))
}

func TestLoadProcessorConfig(t *testing.T) {
	root := newRoot(t, `{"Processor": {
		"Strategy": "directory",
		"ProbeDirs": ["/opt/plugins"],
		"Patterns": ["*.so"],
		"Using": "a,b",
		"Strict": false
	}}`)
	cfg, err := LoadProcessorConfig(root.Section("Processor"))
	require.NoError(t, err)
	assert.Equal(t, StrategyDirectory, cfg.Strategy)
	assert.Equal(t, []string{"/opt/plugins"}, cfg.ProbeDirs)
	assert.Equal(t, []string{"*.so"}, cfg.Patterns, "configured lists replace defaults")
	assert.Equal(t, []string{"testify", "godog", "ginkgo", "gomega", ".test"}, cfg.Exclusions)
	assert.Equal(t, []string{"a", "b"}, cfg.Using)
	assert.False(t, cfg.Strict)

	cfg, err = LoadProcessorConfig(root.Section("Missing"))
	require.NoError(t, err)
	assert.Equal(t, DefaultProcessorConfig(), cfg)

	_, err = LoadProcessorConfig(newRoot(t, `{"P": {"Strategy": "manifest"}}`).Section("P"))
	require.ErrorIs(t, err, ErrConfigValidationFailed)
	require.ErrorIs(t, err, ErrNoManifest)
}

func TestDefaultProcessorConfig_TagDefaultsParse(t *testing.T) {
	require.NoError(t, ProcessConfigDefaults(&ProcessorConfig{}))

	var cfg *ProcessorConfig
	require.NotPanics(t, func() { cfg = DefaultProcessorConfig() })
	assert.Equal(t, StrategyLoaded, cfg.Strategy)
	assert.Equal(t, []string{"*.so", "*.dylib", "*.dll"}, cfg.Patterns)
	assert.True(t, cfg.Strict)
}

func TestProcessorConfig_CatalogStrategy(t *testing.T) {
	cfg := DefaultProcessorConfig()
	s, err := cfg.CatalogStrategy()
	require.NoError(t, err)
	assert.Equal(t, "loaded", s.Name())

	cfg = &ProcessorConfig{Strategy: StrategyManifest, Manifest: "deps.yaml"}
	s, err = cfg.CatalogStrategy()
	require.NoError(t, err)
	assert.Equal(t, "manifest:deps.yaml", s.Name())
}
