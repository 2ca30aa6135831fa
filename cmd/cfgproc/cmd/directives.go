package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/configprocessor"
	"github.com/GoCodeAlone/configprocessor/directive"
)

type argumentView struct {
	Name  string `yaml:"name,omitempty" json:"name,omitempty"`
	Path  string `yaml:"path" json:"path"`
	Value string `yaml:"value,omitempty" json:"value,omitempty"`
}

type directiveView struct {
	Method        string         `yaml:"method" json:"method"`
	Key           string         `yaml:"key" json:"key"`
	Path          string         `yaml:"path" json:"path"`
	TypeArguments []string       `yaml:"typeArguments,omitempty" json:"typeArguments,omitempty"`
	Arguments     []argumentView `yaml:"arguments,omitempty" json:"arguments,omitempty"`
	ArrayElement  bool           `yaml:"arrayElement,omitempty" json:"arrayElement,omitempty"`
	Text          string         `yaml:"-" json:"-"`
}

type groupView struct {
	Group      string          `yaml:"group" json:"group"`
	Directives []directiveView `yaml:"directives" json:"directives"`
}

// NewDirectivesCommand creates the directives command
func NewDirectivesCommand(flags *globalFlags) *cobra.Command {
	var (
		format    string
		noRecurse bool
	)

	cmd := &cobra.Command{
		Use:   "directives [section]",
		Short: "List the method calls a configuration section asks for",
		Long: `List the directives of a section: the method name, type arguments and
supplied arguments of every entry, grouped by method name. No library is
consulted, so this shows how the configuration is read before any method is
selected.

Examples:
  cfgproc directives -c app.json Services
  cfgproc directives -c app.yaml --format yaml`,
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
			groups, err := directive.GetDirectives(s, !noRecurse, []string{configprocessor.UsingKey, configprocessor.ConnectionStringsKey})
			if err != nil {
				return err
			}
			views := directiveViews(groups)
			return render(cmd.OutOrStdout(), format, views, func(w io.Writer) error {
				for _, g := range views {
					fmt.Fprintf(w, "%s\n", g.Group)
					for _, d := range g.Directives {
						fmt.Fprintf(w, "  %s  [%s]\n", d.Text, d.Path)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", FormatText, "Output format: text, yaml, json")
	cmd.Flags().BoolVar(&noRecurse, "no-recurse", false, "Only read the direct children of the section")
	return cmd
}

func directiveViews(groups *directive.Groups) []groupView {
	views := make([]groupView, 0, groups.Len())
	for _, g := range groups.All() {
		gv := groupView{Group: g.Name}
		for _, d := range g.Directives {
			dv := directiveView{
				Method:        d.MethodName,
				Key:           d.Key,
				Path:          d.Source.Path(),
				TypeArguments: d.TypeNames,
				ArrayElement:  d.ArrayElement,
				Text:          d.String(),
			}
			for _, a := range d.Arguments {
				av := argumentView{Name: a.Name, Path: a.Section.Path()}
				if v, ok := a.Section.Value(); ok {
					av.Value = v
				}
				dv.Arguments = append(dv.Arguments, av)
			}
			gv.Directives = append(gv.Directives, dv)
		}
		views = append(views, gv)
	}
	return views
}
