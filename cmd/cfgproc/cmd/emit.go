package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/configprocessor/emit"
)

// NewEmitCommand creates the emit command
func NewEmitCommand(flags *globalFlags) *cobra.Command {
	var (
		target      string
		outputFile  string
		opts        emit.Options
		showSummary bool
	)

	cmd := &cobra.Command{
		Use:   "emit [section]",
		Short: "Generate Go code making the calls a configuration section asks for",
		Long: `Resolve a section exactly like processing does and write the calls as Go
source instead of invoking them. Values are still read from the configuration
at run time, so the generated code follows later configuration changes that
keep the same shape.

Examples:
  cfgproc emit -c app.json -t fixtures.Services Services
  cfgproc emit -c app.json -t fixtures.Services --package wiring -o wiring/configure.go Services`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := flags.loadRoot()
			if err != nil {
				return err
			}
			s, err := section(root, args)
			if err != nil {
				return err
			}
			p, err := flags.newProcessor(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			t, err := resolveTarget(cmd.Context(), p, s, target)
			if err != nil {
				return err
			}
			src, e, err := p.Emit(cmd.Context(), t, s, opts)
			if err != nil {
				return err
			}
			if err := writeOutput(cmd.OutOrStdout(), outputFile, src); err != nil {
				return err
			}
			if showSummary {
				stats := e.Stats()
				fmt.Fprintf(cmd.ErrOrStderr(), "calls: %d, properties: %d, fallbacks: %d\n", stats.Calls, stats.Properties, stats.Fallbacks)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&target, "target", "t", "", "Type the section configures, e.g. fixtures.Services")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVar(&opts.Package, "package", "", "Write a complete file of this package")
	cmd.Flags().StringVar(&opts.PackagePath, "package-path", "", "Import path of --package, so its own types are not qualified")
	cmd.Flags().StringVar(&opts.Func, "func", "", "Wrap the statements in a function of this name")
	cmd.Flags().StringVar(&opts.Target, "target-var", "", "Name of the configured instance variable")
	cmd.Flags().StringVar(&opts.Config, "config-var", "", "Name of the configuration variable")
	cmd.Flags().BoolVar(&showSummary, "summary", false, "Print call counts to stderr")
	return cmd
}
