package cmd

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/configprocessor"
	"github.com/GoCodeAlone/configprocessor/config"
	"github.com/GoCodeAlone/configprocessor/feeders"
)

// Version information
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// PrintVersion prints version information
func PrintVersion() string {
	return fmt.Sprintf("cfgproc v%s (commit: %s, built on: %s)", Version, Commit, Date)
}

// globalFlags are shared by every command that reads configuration.
type globalFlags struct {
	configFiles     []string
	envPrefix       string
	processorConfig string
	processorKey    string
	lenient         bool
	verbose         bool
}

// NewRootCommand creates the root command for the cfgproc application
func NewRootCommand() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:   "cfgproc",
		Short: "cfgproc - inspect and compile configuration driven method calls",
		Long: `cfgproc reads configuration files and shows how their entries bind to the
methods of the libraries linked into the binary. It can list the directives a
section produces, the calls they resolve to, the catalog of known libraries,
and emit the equivalent Go code.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringSliceVarP(&flags.configFiles, "config", "c", nil, "Configuration file (json, yaml, toml, hcl, .env); repeat to layer files")
	pf.StringVar(&flags.envPrefix, "env-prefix", "", "Also read environment variables with this prefix")
	pf.StringVar(&flags.processorConfig, "processor-config", "", "File holding the processor settings")
	pf.StringVar(&flags.processorKey, "processor-key", "Processor", "Section of --processor-config holding the settings")
	pf.BoolVar(&flags.lenient, "lenient", false, "Skip entries no method accepts instead of failing")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Log resolution details to stderr")

	cmd.AddCommand(
		NewDirectivesCommand(flags),
		NewPlanCommand(flags),
		NewCatalogCommand(flags),
		NewEmitCommand(flags),
		NewConfigCommand(),
		NewVersionCommand(),
	)
	return cmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), PrintVersion())
		},
	}
}

// loadRoot builds the configuration tree from the --config files and the
// environment.
func (f *globalFlags) loadRoot() (*config.Root, error) {
	if len(f.configFiles) == 0 && f.envPrefix == "" {
		return nil, ErrNoConfig
	}
	sources := make([]config.Source, 0, len(f.configFiles)+1)
	for _, path := range f.configFiles {
		src, err := feeders.ForFile(path)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	if f.envPrefix != "" {
		sources = append(sources, feeders.NewEnvFeeder(f.envPrefix))
	}
	root, err := config.New(sources...)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	return root, nil
}

// section returns the section named by the first argument, or the whole tree.
func section(root *config.Root, args []string) (config.Section, error) {
	if len(args) == 0 || args[0] == "" {
		return root, nil
	}
	s := root.Section(args[0])
	if !s.Exists() {
		return nil, fmt.Errorf("%w: %s", ErrSectionMissing, args[0])
	}
	return s, nil
}

// newProcessor creates a processor honoring --processor-config, --lenient
// and --verbose. using adds libraries to the configured Using list.
func (f *globalFlags) newProcessor(stderr io.Writer, using ...string) (*configprocessor.Processor, error) {
	cfg := configprocessor.DefaultProcessorConfig()
	if f.processorConfig != "" {
		src, err := feeders.ForFile(f.processorConfig)
		if err != nil {
			return nil, err
		}
		root, err := config.New(src)
		if err != nil {
			return nil, fmt.Errorf("loading processor config: %w", err)
		}
		if cfg, err = configprocessor.LoadProcessorConfig(root.Section(f.processorKey)); err != nil {
			return nil, err
		}
	}
	if f.lenient {
		cfg.Strict = false
	}
	cfg.Using = append(cfg.Using, using...)

	level := slog.LevelWarn
	if f.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	return configprocessor.New(
		configprocessor.WithConfig(cfg),
		configprocessor.WithLogger(logger),
	)
}
