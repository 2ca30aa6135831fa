package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/configprocessor/resolve"
)

type callView struct {
	Depth     int    `yaml:"depth" json:"depth"`
	Path      string `yaml:"path" json:"path"`
	Signature string `yaml:"signature" json:"signature"`
	Kind      string `yaml:"kind" json:"kind"`
}

// NewPlanCommand creates the plan command
func NewPlanCommand(flags *globalFlags) *cobra.Command {
	var (
		target string
		format string
	)

	cmd := &cobra.Command{
		Use:   "plan [section]",
		Short: "Show the method every configuration entry resolves to",
		Long: `Resolve the directives of a section against the catalog and print the
selected method of every call, nested calls indented below the call that
receives them.

Examples:
  cfgproc plan -c app.json --target fixtures.Services Services`,
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
			plan, err := p.Plan(cmd.Context(), t, s)
			if err != nil {
				return err
			}

			var calls []callView
			plan.Walk(func(c *resolve.Call, depth int) {
				calls = append(calls, callView{
					Depth:     depth,
					Path:      c.Directive.Source.Path(),
					Signature: c.Method.Signature(),
					Kind:      c.Method.Kind.String(),
				})
			})
			return render(cmd.OutOrStdout(), format, calls, func(w io.Writer) error {
				fmt.Fprintf(w, "%s: %d steps\n", t, plan.Len())
				for _, c := range calls {
					fmt.Fprintf(w, "%s%s  [%s]\n", strings.Repeat("  ", c.Depth+1), c.Signature, c.Path)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&target, "target", "t", "", "Type the section configures, e.g. fixtures.Services")
	cmd.Flags().StringVar(&format, "format", FormatText, "Output format: text, yaml, json")
	return cmd
}
