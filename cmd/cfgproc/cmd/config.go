package cmd

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/configprocessor"
)

// NewConfigCommand creates the config command
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Work with the processor settings file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newConfigSampleCommand(), newConfigDescribeCommand())
	return cmd
}

func newConfigSampleCommand() *cobra.Command {
	var (
		format     string
		outputFile string
	)
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Print processor settings with their defaults",
		Long: `Print a processor settings file holding every option at its default value.

Examples:
  cfgproc config sample
  cfgproc config sample --format toml -o processor.toml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputFile != "" {
				return configprocessor.SaveSampleConfig(&configprocessor.ProcessorConfig{}, format, outputFile)
			}
			data, err := configprocessor.GenerateSampleConfig(&configprocessor.ProcessorConfig{}, format)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), "", data)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "Format: yaml, json, toml")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	return cmd
}

func newConfigDescribeCommand() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Explain every processor setting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			desc := configprocessor.DescribeConfig(&configprocessor.ProcessorConfig{})
			keys := make([]string, 0, len(desc))
			for k := range desc {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			return render(cmd.OutOrStdout(), format, desc, func(w io.Writer) error {
				for _, k := range keys {
					fmt.Fprintf(w, "%-12s %s\n", k, desc[k])
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", FormatText, "Output format: text, yaml, json")
	return cmd
}
