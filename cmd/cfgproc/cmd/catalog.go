package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/configprocessor/catalog"
	"github.com/GoCodeAlone/configprocessor/config"
)

type typeView struct {
	Name    string   `yaml:"name" json:"name"`
	Kind    string   `yaml:"kind" json:"kind"`
	Methods []string `yaml:"methods,omitempty" json:"methods,omitempty"`
}

type holderView struct {
	Name     string   `yaml:"name" json:"name"`
	Funcs    []string `yaml:"funcs,omitempty" json:"funcs,omitempty"`
	Generics []string `yaml:"generics,omitempty" json:"generics,omitempty"`
	Members  []string `yaml:"members,omitempty" json:"members,omitempty"`
}

type libraryView struct {
	Name         string       `yaml:"name" json:"name"`
	Types        []typeView   `yaml:"types,omitempty" json:"types,omitempty"`
	GenericTypes []string     `yaml:"genericTypes,omitempty" json:"genericTypes,omitempty"`
	Holders      []holderView `yaml:"holders,omitempty" json:"holders,omitempty"`
}

// NewCatalogCommand creates the catalog command
func NewCatalogCommand(flags *globalFlags) *cobra.Command {
	var (
		format  string
		using   []string
		library string
	)

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the libraries, types and functions methods are selected from",
		Long: `Build the catalog the processor would use and list its contents. The
discovery strategy comes from --processor-config. A --config file's Using
section is honored the same way processing does.

Examples:
  cfgproc catalog
  cfgproc catalog --library fixtures --format yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var s config.Section
			if len(flags.configFiles) > 0 || flags.envPrefix != "" {
				root, err := flags.loadRoot()
				if err != nil {
					return err
				}
				s = root
			}
			p, err := flags.newProcessor(cmd.ErrOrStderr(), using...)
			if err != nil {
				return err
			}
			c, err := p.Catalog(cmd.Context(), s)
			if err != nil {
				return err
			}

			libs := c.Libraries()
			if library != "" {
				lib, ok := c.Library(library)
				if !ok {
					return fmt.Errorf("%w: %s", ErrLibraryNotFound, library)
				}
				libs = []*catalog.Library{lib}
			}
			views := libraryViews(libs)
			return render(cmd.OutOrStdout(), format, views, func(w io.Writer) error {
				for _, l := range views {
					fmt.Fprintln(w, l.Name)
					for _, t := range l.Types {
						fmt.Fprintf(w, "  %s %s\n", t.Kind, t.Name)
						for _, m := range t.Methods {
							fmt.Fprintf(w, "    %s\n", m)
						}
					}
					for _, g := range l.GenericTypes {
						fmt.Fprintf(w, "  generic %s\n", g)
					}
					for _, h := range l.Holders {
						fmt.Fprintf(w, "  holder %s\n", h.Name)
						for _, f := range append(append(h.Funcs, h.Generics...), h.Members...) {
							fmt.Fprintf(w, "    %s\n", f)
						}
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", FormatText, "Output format: text, yaml, json")
	cmd.Flags().StringSliceVar(&using, "using", nil, "Additional libraries to include")
	cmd.Flags().StringVar(&library, "library", "", "Only list this library")
	return cmd
}

func libraryViews(libs []*catalog.Library) []libraryView {
	views := make([]libraryView, 0, len(libs))
	for _, lib := range libs {
		lv := libraryView{Name: lib.Name}
		for _, t := range lib.Types() {
			tv := typeView{Name: t.QualifiedName(), Kind: t.Kind.String()}
			for _, m := range t.Methods {
				tv.Methods = append(tv.Methods, fmt.Sprintf("%s(%s)", m.Name, strings.Join(m.Params, ", ")))
			}
			sort.Strings(tv.Methods)
			lv.Types = append(lv.Types, tv)
		}
		for _, g := range lib.GenericTypes() {
			lv.GenericTypes = append(lv.GenericTypes, fmt.Sprintf("%s`%d", g.Name, g.Arity))
		}
		for _, h := range lib.Holders() {
			hv := holderView{Name: h.QualifiedName()}
			for _, f := range h.Funcs() {
				hv.Funcs = append(hv.Funcs, f.Signature())
			}
			for _, g := range h.Generics() {
				hv.Generics = append(hv.Generics, fmt.Sprintf("%s`%d(%s)", g.Name, g.Arity, strings.Join(g.ParamNames, ", ")))
			}
			for _, m := range h.Members() {
				hv.Members = append(hv.Members, m.Kind.String()+" "+m.Name)
			}
			lv.Holders = append(lv.Holders, hv)
		}
		views = append(views, lv)
	}
	return views
}
