package catalog

import (
	"debug/elf"
	"debug/macho"
	"debug/pe"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// Strategy discovers the names of candidate libraries.
type Strategy interface {
	// Name identifies the strategy in logs and cache keys.
	Name() string

	// Discover returns library names. Names that do not match a registered
	// library are skipped by Build.
	Discover() ([]string, error)
}

// LoadedStrategy selects registered libraries that belong to a module of
// the running binary's dependency graph.
type LoadedStrategy struct {
	readBuildInfo func() (*debug.BuildInfo, bool)
}

// Name implements Strategy.
func (LoadedStrategy) Name() string { return "loaded" }

// Discover implements Strategy. When the binary carries no build information
// every registered library is returned.
func (s LoadedStrategy) Discover() ([]string, error) {
	modules := buildModules(s.readBuildInfo)
	var out []string
	for _, lib := range Registered() {
		if len(modules) == 0 || inModules(lib.Name, modules) {
			out = append(out, lib.Name)
		}
	}
	return out, nil
}

func buildModules(read func() (*debug.BuildInfo, bool)) []string {
	if read == nil {
		read = debug.ReadBuildInfo
	}
	info, ok := read()
	if !ok || info == nil || info.Main.Path == "" {
		return nil
	}
	modules := []string{info.Main.Path}
	for _, dep := range info.Deps {
		modules = append(modules, dep.Path)
	}
	return modules
}

// entryModule returns the main module path of the running binary.
func entryModule(read func() (*debug.BuildInfo, bool)) string {
	if read == nil {
		read = debug.ReadBuildInfo
	}
	if info, ok := read(); ok && info != nil {
		return info.Main.Path
	}
	return ""
}

func inModules(name string, modules []string) bool {
	for _, m := range modules {
		if name == m || strings.HasPrefix(name, m+"/") {
			return true
		}
	}
	return false
}

// DefaultFilePatterns are probed by DirectoryStrategy when none are given.
var DefaultFilePatterns = []string{"*.so", "*.dylib", "*.dll"}

// DefaultExclusions are substrings of test framework file names.
var DefaultExclusions = []string{"testify", "godog", "ginkgo", "gomega", ".test"}

// DirectoryStrategy scans probe directories for shared libraries. Only the
// binary header is read to obtain the declared name; files that are not valid
// binaries are skipped. I/O errors are returned.
type DirectoryStrategy struct {
	Dirs       []string
	Patterns   []string
	Exclusions []string
}

// Name implements Strategy.
func (s DirectoryStrategy) Name() string {
	return "directory:" + strings.Join(s.Dirs, ",") + ":" + strings.Join(s.patterns(), ",")
}

func (s DirectoryStrategy) patterns() []string {
	if len(s.Patterns) == 0 {
		return DefaultFilePatterns
	}
	return s.Patterns
}

func (s DirectoryStrategy) exclusions() []string {
	if s.Exclusions == nil {
		return DefaultExclusions
	}
	return s.Exclusions
}

// Discover implements Strategy.
func (s DirectoryStrategy) Discover() ([]string, error) {
	var out []string
	for _, dir := range s.Dirs {
		if _, err := os.Stat(dir); err != nil {
			return nil, fmt.Errorf("probe directory %s: %w", dir, err)
		}
		for _, pattern := range s.patterns() {
			matches, err := doublestar.FilepathGlob(filepath.Join(dir, pattern), doublestar.WithFailOnIOErrors())
			if err != nil {
				return nil, fmt.Errorf("scanning %s for %s: %w", dir, pattern, err)
			}
			for _, path := range matches {
				if s.excluded(path) {
					continue
				}
				name, ok, err := libraryName(path)
				if err != nil {
					return nil, err
				}
				if ok && !slices.Contains(out, name) {
					out = append(out, name)
				}
			}
		}
	}
	return out, nil
}

func (s DirectoryStrategy) excluded(path string) bool {
	base := strings.ToLower(filepath.Base(path))
	for _, ex := range s.exclusions() {
		if strings.Contains(base, strings.ToLower(ex)) {
			return true
		}
	}
	return false
}

// libraryName reads the declared name of a shared library. ok is false when
// the file is not a recognized binary.
func libraryName(path string) (string, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", false, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	stem := trimLibraryName(filepath.Base(path))
	if ef, err := elf.NewFile(f); err == nil {
		defer ef.Close()
		if names, err := ef.DynString(elf.DT_SONAME); err == nil && len(names) > 0 && names[0] != "" {
			return trimLibraryName(names[0]), true, nil
		}
		return stem, true, nil
	}
	if mf, err := macho.NewFile(f); err == nil {
		defer mf.Close()
		return stem, true, nil
	}
	if pf, err := pe.NewFile(f); err == nil {
		defer pf.Close()
		return stem, true, nil
	}
	return "", false, nil
}

// trimLibraryName turns "libwidgets.so.1" into "widgets".
func trimLibraryName(name string) string {
	if i := strings.Index(name, "."); i > 0 {
		name = name[:i]
	}
	return strings.TrimPrefix(name, "lib")
}

// ManifestLibrary is one entry of a dependency manifest.
type ManifestLibrary struct {
	Name         string   `json:"name" yaml:"name" toml:"name"`
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty" toml:"dependencies,omitempty"`
}

// Manifest is an explicit dependency graph.
type Manifest struct {
	Libraries []ManifestLibrary `json:"libraries" yaml:"libraries" toml:"libraries"`
}

// LoadManifest reads a manifest from a JSON, YAML or TOML file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	m := &Manifest{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, m)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, m)
	case ".toml":
		err = toml.Unmarshal(data, m)
	default:
		return nil, fmt.Errorf("%w: %s", ErrManifestFormat, path)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding manifest %s: %w", path, err)
	}
	return m, nil
}

// ManifestStrategy uses an explicit dependency manifest, given inline or as
// a file path.
type ManifestStrategy struct {
	Manifest *Manifest
	Path     string
}

// Name implements Strategy.
func (s ManifestStrategy) Name() string {
	if s.Path != "" {
		return "manifest:" + s.Path
	}
	if s.Manifest == nil {
		return "manifest:"
	}
	names := make([]string, len(s.Manifest.Libraries))
	for i, l := range s.Manifest.Libraries {
		names[i] = l.Name
	}
	return "manifest:" + strings.Join(names, ",")
}

// Discover implements Strategy.
func (s ManifestStrategy) Discover() ([]string, error) {
	m := s.Manifest
	if s.Path != "" {
		loaded, err := LoadManifest(s.Path)
		if err != nil {
			return nil, err
		}
		m = loaded
	}
	if m == nil {
		return nil, nil
	}
	var out []string
	add := func(name string) {
		if name != "" && !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	for _, l := range m.Libraries {
		add(l.Name)
		for _, d := range l.Dependencies {
			add(d)
		}
	}
	return out, nil
}
