package emit

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// importSet assigns package aliases to import paths.
type importSet struct {
	local   string
	byPath  map[string]string
	byAlias map[string]string
	order   []string
}

func newImportSet(local string) *importSet {
	return &importSet{local: local, byPath: make(map[string]string), byAlias: make(map[string]string)}
}

// qualify returns the selector prefix for path, "" for the local package.
func (s *importSet) qualify(path string) string {
	if path == "" || path == s.local {
		return ""
	}
	return s.alias(path) + "."
}

func (s *importSet) alias(path string) string {
	if a, ok := s.byPath[path]; ok {
		return a
	}
	base := packageName(path)
	a := base
	for i := 2; ; i++ {
		if _, taken := s.byAlias[a]; !taken {
			break
		}
		a = base + strconv.Itoa(i)
	}
	s.byPath[path] = a
	s.byAlias[a] = path
	s.order = append(s.order, path)
	return a
}

// mark and rollback drop the imports added by an abandoned rendering.
func (s *importSet) mark() int { return len(s.order) }

func (s *importSet) rollback(mark int) {
	for _, p := range s.order[mark:] {
		delete(s.byAlias, s.byPath[p])
		delete(s.byPath, p)
	}
	s.order = s.order[:mark]
}

// specs renders the import block lines in path order.
func (s *importSet) specs() []string {
	paths := make([]string, 0, len(s.byPath))
	for p := range s.byPath {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	out := make([]string, len(paths))
	for i, p := range paths {
		a := s.byPath[p]
		if a == lastSegment(p) {
			out[i] = strconv.Quote(p)
			continue
		}
		out[i] = a + " " + strconv.Quote(p)
	}
	return out
}

func lastSegment(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

// packageName guesses the package name of an import path: the last segment
// without a major version suffix, reduced to identifier characters.
func packageName(path string) string {
	seg := lastSegment(path)
	if len(seg) > 1 && seg[0] == 'v' && isDigits(seg[1:]) {
		if i := strings.LastIndex(path, "/"); i > 0 {
			seg = lastSegment(path[:i])
		}
	}
	seg = strings.TrimPrefix(seg, "go-")
	if i := strings.IndexByte(seg, '.'); i > 0 {
		seg = seg[:i]
	}
	var b strings.Builder
	for _, r := range seg {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
		}
	}
	name := b.String()
	if name == "" || unicode.IsDigit(rune(name[0])) {
		name = "pkg" + name
	}
	return name
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// splitQualified splits "import/path.Name" at the last dot.
func splitQualified(expr string) (path, name string, ok bool) {
	i := strings.LastIndex(expr, ".")
	if i <= 0 || i == len(expr)-1 || i < strings.LastIndex(expr, "/") {
		return "", "", false
	}
	path, name = expr[:i], expr[i+1:]
	if strings.ContainsAny(name, "()*[]") || strings.ContainsAny(path, "()*[] ") {
		return "", "", false
	}
	return path, name, true
}

// typeExpr renders t as Go source.
func (s *importSet) typeExpr(t reflect.Type) (string, error) {
	if t == nil {
		return "", fmt.Errorf("%w: nil type", ErrUnrenderable)
	}
	if t.Name() != "" {
		return s.namedType(t)
	}
	switch t.Kind() {
	case reflect.Pointer:
		elem, err := s.typeExpr(t.Elem())
		return "*" + elem, err
	case reflect.Slice:
		elem, err := s.typeExpr(t.Elem())
		return "[]" + elem, err
	case reflect.Array:
		elem, err := s.typeExpr(t.Elem())
		return "[" + strconv.Itoa(t.Len()) + "]" + elem, err
	case reflect.Map:
		key, err := s.typeExpr(t.Key())
		if err != nil {
			return "", err
		}
		elem, err := s.typeExpr(t.Elem())
		return "map[" + key + "]" + elem, err
	case reflect.Chan:
		elem, err := s.typeExpr(t.Elem())
		switch t.ChanDir() {
		case reflect.RecvDir:
			return "<-chan " + elem, err
		case reflect.SendDir:
			return "chan<- " + elem, err
		}
		return "chan " + elem, err
	case reflect.Func:
		return s.funcType(t)
	case reflect.Interface:
		if t.NumMethod() == 0 {
			return "any", nil
		}
	case reflect.Struct:
		return s.structType(t)
	}
	return "", fmt.Errorf("%w: %s", ErrUnrenderable, t)
}

func (s *importSet) namedType(t reflect.Type) (string, error) {
	name := t.Name()
	if t.PkgPath() == "" {
		return name, nil
	}
	if i := strings.IndexByte(name, '['); i > 0 && strings.HasSuffix(name, "]") {
		args, err := splitTypeList(name[i+1 : len(name)-1])
		if err != nil {
			return "", err
		}
		rendered := make([]string, len(args))
		for j, a := range args {
			if rendered[j], err = s.typeString(a); err != nil {
				return "", err
			}
		}
		return s.qualify(t.PkgPath()) + name[:i] + "[" + strings.Join(rendered, ", ") + "]", nil
	}
	return s.qualify(t.PkgPath()) + name, nil
}

func (s *importSet) funcType(t reflect.Type) (string, error) {
	var b strings.Builder
	b.WriteString("func(")
	for i := 0; i < t.NumIn(); i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		in := t.In(i)
		if t.IsVariadic() && i == t.NumIn()-1 {
			b.WriteString("...")
			in = in.Elem()
		}
		r, err := s.typeExpr(in)
		if err != nil {
			return "", err
		}
		b.WriteString(r)
	}
	b.WriteString(")")
	outs := make([]string, t.NumOut())
	for i := range outs {
		r, err := s.typeExpr(t.Out(i))
		if err != nil {
			return "", err
		}
		outs[i] = r
	}
	switch len(outs) {
	case 0:
	case 1:
		b.WriteString(" " + outs[0])
	default:
		b.WriteString(" (" + strings.Join(outs, ", ") + ")")
	}
	return b.String(), nil
}

// structType renders an unnamed struct, tags included, so synthesized types
// are spelled as identical struct literal types.
func (s *importSet) structType(t reflect.Type) (string, error) {
	if t.NumField() == 0 {
		return "struct{}", nil
	}
	fields := make([]string, t.NumField())
	for i := range fields {
		f := t.Field(i)
		if !f.IsExported() {
			return "", fmt.Errorf("%w: unexported field %s in %s", ErrUnrenderable, f.Name, t)
		}
		ft, err := s.typeExpr(f.Type)
		if err != nil {
			return "", err
		}
		field := f.Name + " " + ft
		if f.Anonymous {
			field = ft
		}
		if f.Tag != "" {
			field += " " + quoteTag(string(f.Tag))
		}
		fields[i] = field
	}
	return "struct{ " + strings.Join(fields, "; ") + " }", nil
}

func quoteTag(tag string) string {
	if !strings.Contains(tag, "`") {
		return "`" + tag + "`"
	}
	return strconv.Quote(tag)
}

// typeString renders a type spelled the way reflect names type arguments of
// generic instantiations, for example "[]example.com/pkg.Widget".
func (s *importSet) typeString(ts string) (string, error) {
	ts = strings.TrimSpace(ts)
	switch {
	case ts == "":
		return "", fmt.Errorf("%w: empty type argument", ErrUnrenderable)
	case strings.HasPrefix(ts, "*"):
		elem, err := s.typeString(ts[1:])
		return "*" + elem, err
	case strings.HasPrefix(ts, "[]"):
		elem, err := s.typeString(ts[2:])
		return "[]" + elem, err
	case strings.HasPrefix(ts, "["):
		end := strings.IndexByte(ts, ']')
		if end < 0 || !isDigits(ts[1:end]) {
			return "", fmt.Errorf("%w: %s", ErrUnrenderable, ts)
		}
		elem, err := s.typeString(ts[end+1:])
		return ts[:end+1] + elem, err
	case strings.HasPrefix(ts, "map["):
		end := matchBracket(ts, len("map"))
		if end < 0 {
			return "", fmt.Errorf("%w: %s", ErrUnrenderable, ts)
		}
		key, err := s.typeString(ts[len("map["):end])
		if err != nil {
			return "", err
		}
		elem, err := s.typeString(ts[end+1:])
		return "map[" + key + "]" + elem, err
	case strings.ContainsAny(ts, " {}()"):
		if ts == "interface {}" {
			return "any", nil
		}
		return "", fmt.Errorf("%w: %s", ErrUnrenderable, ts)
	}

	base, args := ts, ""
	if i := strings.IndexByte(ts, '['); i > 0 && strings.HasSuffix(ts, "]") {
		base, args = ts[:i], ts[i+1:len(ts)-1]
	}
	out := base
	if path, name, ok := splitQualified(base); ok {
		out = s.qualify(path) + name
	}
	if args == "" {
		return out, nil
	}
	list, err := splitTypeList(args)
	if err != nil {
		return "", err
	}
	rendered := make([]string, len(list))
	for i, a := range list {
		if rendered[i], err = s.typeString(a); err != nil {
			return "", err
		}
	}
	return out + "[" + strings.Join(rendered, ", ") + "]", nil
}

// matchBracket returns the index of the bracket closing the one at open.
func matchBracket(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitTypeList splits a comma separated type list at the top level.
func splitTypeList(s string) ([]string, error) {
	var (
		out   []string
		depth int
		start int
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[', '{', '(':
			depth++
		case ']', '}', ')':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("%w: unbalanced %q", ErrUnrenderable, s)
			}
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("%w: unbalanced %q", ErrUnrenderable, s)
	}
	return append(out, strings.TrimSpace(s[start:])), nil
}
