package directive

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/GoCodeAlone/configprocessor/config"
)

// Group holds the directives sharing a bare method name.
type Group struct {
	Name       string
	Directives []*Directive
}

// Groups is an ordered grouping of directives by method name. Group order
// is the order in which each name first appears.
type Groups struct {
	groups []*Group
	index  map[string]int
}

func newGroups() *Groups {
	return &Groups{index: make(map[string]int)}
}

func (g *Groups) add(d *Directive) {
	key := strings.ToLower(d.MethodName)
	if i, ok := g.index[key]; ok {
		g.groups[i].Directives = append(g.groups[i].Directives, d)
		return
	}
	g.index[key] = len(g.groups)
	g.groups = append(g.groups, &Group{Name: d.MethodName, Directives: []*Directive{d}})
}

// All returns the groups in order.
func (g *Groups) All() []*Group { return g.groups }

// Len returns the number of groups.
func (g *Groups) Len() int { return len(g.groups) }

// Get returns the group for a method name, case-insensitively.
func (g *Groups) Get(name string) (*Group, bool) {
	i, ok := g.index[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	return g.groups[i], true
}

// Names returns the group names in order.
func (g *Groups) Names() []string {
	out := make([]string, len(g.groups))
	for i, grp := range g.groups {
		out[i] = grp.Name
	}
	return out
}

// Directives returns every directive in order.
func (g *Groups) Directives() []*Directive {
	var out []*Directive
	for _, grp := range g.groups {
		out = append(out, grp.Directives...)
	}
	return out
}

func (g *Groups) without(excluded []string) *Groups {
	if len(excluded) == 0 {
		return g
	}
	out := newGroups()
	for _, grp := range g.groups {
		if isExcluded(grp.Name, excluded) {
			continue
		}
		for _, d := range grp.Directives {
			out.add(d)
		}
	}
	return out
}

// Walker builds directives from configuration sections.
type Walker struct {
	Logger interface {
		Debug(msg string, args ...any)
	}
}

// GetDirectives walks section with a default Walker.
func GetDirectives(section config.Section, recurse bool, excluded []string) (*Groups, error) {
	return Walker{}.GetDirectives(section, recurse, excluded)
}

// GetDirectives returns the directives of section grouped by method name.
// With recurse the children of section are the entries; otherwise section
// itself is the only entry. Keys in excluded are ignored case-insensitively,
// both as entries and as resulting method names.
func (w Walker) GetDirectives(section config.Section, recurse bool, excluded []string) (*Groups, error) {
	if section == nil {
		return nil, config.ErrSectionNil
	}
	groups := newGroups()

	if !recurse {
		if isExcluded(section.Key(), excluded) {
			return groups, nil
		}
		var (
			d   *Directive
			err error
		)
		if config.IsIndex(section.Key()) {
			d, err = w.arrayElement(section)
		} else {
			d, err = w.objectEntry(section)
		}
		if err != nil {
			return nil, err
		}
		if d != nil {
			groups.add(d)
		}
		return groups.without(excluded), nil
	}

	children := section.Children()
	inArray := false
	for i, child := range children {
		if isExcluded(child.Key(), excluded) {
			w.debug("Directive entry excluded", "path", child.Path())
			continue
		}
		// the leading 0..n run is array notation; numeric keys after it stay
		// array elements because the parent is an array
		if child.Key() == strconv.Itoa(i) || (inArray && config.IsIndex(child.Key())) {
			inArray = true
			d, err := w.arrayElement(child)
			if err != nil {
				return nil, err
			}
			if d != nil {
				groups.add(d)
			}
			continue
		}
		d, err := w.objectEntry(child)
		if err != nil {
			return nil, err
		}
		if d != nil {
			groups.add(d)
		}
	}
	result := groups.without(excluded)
	w.debug("Directives built", "path", section.Path(), "groups", result.Len())
	return result, nil
}

func (w Walker) arrayElement(child config.Section) (*Directive, error) {
	if err := config.CheckMixed(child); err != nil {
		return nil, err
	}
	if !config.HasChildren(child) {
		value, _ := child.Value()
		// only plain strings are shorthand; booleans never disable an element
		trimmed := strings.TrimSpace(value)
		if _, err := strconv.ParseBool(trimmed); err == nil || trimmed == "" {
			return nil, &MissingNameError{Path: child.Path()}
		}
		// string shorthand
		return w.newDirective(child, value, child, nil, true)
	}

	name, ok := child.Section(NameKey).Value()
	if !ok || strings.TrimSpace(name) == "" {
		return nil, &MissingNameError{Path: child.Path()}
	}
	argsSection, args, err := collectArguments(child, true)
	if err != nil {
		return nil, err
	}
	return w.newDirective(child, name, argsSection, args, true)
}

func (w Walker) objectEntry(child config.Section) (*Directive, error) {
	if err := config.CheckMixed(child); err != nil {
		return nil, err
	}
	if !config.HasChildren(child) {
		value, _ := child.Value()
		trimmed := strings.TrimSpace(value)
		if b, err := strconv.ParseBool(trimmed); err == nil {
			if !b {
				w.debug("Directive disabled", "path", child.Path())
				return nil, nil
			}
			return w.newDirective(child, child.Key(), child, nil, false)
		}
		if trimmed == "" {
			return w.newDirective(child, child.Key(), child, nil, false)
		}
		return w.newDirective(child, child.Key(), child, []Argument{{Name: "", Section: child}}, false)
	}
	argsSection, args, err := collectArguments(child, false)
	if err != nil {
		return nil, err
	}
	return w.newDirective(child, child.Key(), argsSection, args, false)
}

// collectArguments reads the Args sub-section when present, else the
// remaining children. Array elements do not pass their Name as an argument.
func collectArguments(child config.Section, arrayElement bool) (config.Section, []Argument, error) {
	argsSection := child.Section(ArgsKey)
	if argsSection.Exists() {
		if err := config.CheckMixed(argsSection); err != nil {
			return nil, nil, err
		}
		if !config.HasChildren(argsSection) {
			if v, _ := argsSection.Value(); v == "" {
				return argsSection, nil, nil
			}
			return argsSection, []Argument{{Name: "", Section: argsSection}}, nil
		}
		return argsSection, sectionArguments(argsSection, nil), nil
	}
	var skip []string
	if arrayElement {
		skip = []string{NameKey}
	}
	return child, sectionArguments(child, skip), nil
}

func sectionArguments(s config.Section, skip []string) []Argument {
	children := s.Children()
	out := make([]Argument, 0, len(children))
	for _, c := range children {
		if isExcluded(c.Key(), skip) {
			continue
		}
		out = append(out, Argument{Name: c.Key(), Section: c})
	}
	return out
}

func (w Walker) newDirective(source config.Section, rawName string, argsSection config.Section, args []Argument, array bool) (*Directive, error) {
	name, typeNames, arity, err := ParseMethodName(rawName)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source.Path(), err)
	}
	if arity > 0 && len(typeNames) == 0 {
		typeNames, args, err = takeTypeArguments(source, args)
		if err != nil {
			return nil, err
		}
		if len(typeNames) != arity {
			return nil, fmt.Errorf("%w: %s expects %d, got %d at %s", ErrTypeArgumentCount, name, arity, len(typeNames), source.Path())
		}
	}
	d := &Directive{
		MethodName:   name,
		Key:          rawName,
		TypeNames:    typeNames,
		Source:       source,
		ArgsSection:  argsSection,
		Arguments:    args,
		ArrayElement: array,
	}
	for _, tn := range typeNames {
		d.TypeArguments = append(d.TypeArguments, NamedType(tn))
	}
	w.debug("Directive parsed", "path", source.Path(), "method", name, "typeArguments", len(typeNames), "arguments", len(args))
	return d, nil
}

// takeTypeArguments removes the TypeArguments argument and returns its type
// names. The value is either a '|' separated list or a list of children.
func takeTypeArguments(source config.Section, args []Argument) ([]string, []Argument, error) {
	var (
		names []string
		rest  []Argument
	)
	for _, a := range args {
		if !strings.EqualFold(a.Name, TypeArgumentsKey) {
			rest = append(rest, a)
			continue
		}
		if config.HasChildren(a.Section) {
			for _, c := range a.Section.Children() {
				v, _ := c.Value()
				names = append(names, strings.TrimSpace(v))
			}
			continue
		}
		v, _ := a.Section.Value()
		list, err := splitTypeList(v)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %s at %s", ErrMethodNameSyntax, v, source.Path())
		}
		names = append(names, list...)
	}
	return names, rest, nil
}

func (w Walker) debug(msg string, args ...any) {
	if w.Logger != nil {
		w.Logger.Debug(msg, args...)
	}
}

func isExcluded(key string, excluded []string) bool {
	for _, e := range excluded {
		if strings.EqualFold(e, key) {
			return true
		}
	}
	return false
}
