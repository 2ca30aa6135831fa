package configprocessor

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/GoCodeAlone/configprocessor/catalog"
	"github.com/GoCodeAlone/configprocessor/config"
	"github.com/GoCodeAlone/configprocessor/convert"
)

// Catalog strategies selectable by ProcessorConfig.Strategy.
const (
	StrategyLoaded    = "loaded"
	StrategyDirectory = "directory"
	StrategyManifest  = "manifest"
)

// UsingKey names the configuration entry listing additional libraries. It
// is never treated as a directive.
const UsingKey = "Using"

// ConnectionStringsKey is the section holding named connection strings.
const ConnectionStringsKey = "ConnectionStrings"

// ProcessorConfig configures catalog discovery and method name matching.
type ProcessorConfig struct {
	Strategy   string   `yaml:"strategy" json:"strategy" toml:"strategy" default:"loaded" desc:"Catalog strategy: loaded, directory or manifest"`
	ProbeDirs  []string `yaml:"probeDirs" json:"probeDirs" toml:"probeDirs" desc:"Directories scanned by the directory strategy"`
	Patterns   []string `yaml:"patterns" json:"patterns" toml:"patterns" default:"[\"*.so\",\"*.dylib\",\"*.dll\"]" desc:"File patterns of the directory strategy"`
	Exclusions []string `yaml:"exclusions" json:"exclusions" toml:"exclusions" default:"[\"testify\",\"godog\",\"ginkgo\",\"gomega\",\".test\"]" desc:"File name substrings skipped by the directory strategy"`
	Manifest   string   `yaml:"manifest" json:"manifest" toml:"manifest" desc:"Dependency manifest file of the manifest strategy"`
	Using      []string `yaml:"using" json:"using" toml:"using" desc:"Libraries added to every catalog"`
	Prefixes   []string `yaml:"prefixes" json:"prefixes" toml:"prefixes" desc:"Extra method name prefixes"`
	Suffixes   []string `yaml:"suffixes" json:"suffixes" toml:"suffixes" desc:"Extra method name suffixes"`
	Strict     bool     `yaml:"strict" json:"strict" toml:"strict" default:"true" desc:"Fail on entries no method accepts"`
}

// Validate implements ConfigValidator.
func (c *ProcessorConfig) Validate() error {
	switch strings.ToLower(c.Strategy) {
	case StrategyLoaded:
	case StrategyDirectory:
		if len(c.ProbeDirs) == 0 {
			return ErrNoProbeDirs
		}
	case StrategyManifest:
		if c.Manifest == "" {
			return ErrNoManifest
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStrategy, c.Strategy)
	}
	return nil
}

// CatalogStrategy returns the catalog strategy the config selects.
func (c *ProcessorConfig) CatalogStrategy() (catalog.Strategy, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	switch strings.ToLower(c.Strategy) {
	case StrategyDirectory:
		return catalog.DirectoryStrategy{Dirs: c.ProbeDirs, Patterns: c.Patterns, Exclusions: c.Exclusions}, nil
	case StrategyManifest:
		return catalog.ManifestStrategy{Path: c.Manifest}, nil
	default:
		return catalog.LoadedStrategy{}, nil
	}
}

// DefaultProcessorConfig returns a config holding the tag defaults.
func DefaultProcessorConfig() *ProcessorConfig {
	cfg := &ProcessorConfig{}
	if err := ProcessConfigDefaults(cfg); err != nil {
		panic(fmt.Sprintf("processor config defaults: %v", err))
	}
	return cfg
}

// LoadProcessorConfig decodes section over the defaults and validates the
// result. A missing section yields the defaults. Defaults are applied before
// decoding so an explicit false or empty value is kept.
func LoadProcessorConfig(section config.Section) (*ProcessorConfig, error) {
	cfg := DefaultProcessorConfig()
	if section != nil && section.Exists() {
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           cfg,
			TagName:          "yaml",
			WeaklyTypedInput: true,
			ZeroFields:       true,
			DecodeHook:       mapstructure.StringToSliceHookFunc(","),
		})
		if err != nil {
			return nil, fmt.Errorf("processor config: %w", err)
		}
		if err := decoder.Decode(convert.Plain(section)); err != nil {
			return nil, fmt.Errorf("processor config at %q: %w", section.Path(), err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigValidationFailed, err)
	}
	return cfg, nil
}
