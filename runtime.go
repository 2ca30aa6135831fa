package configprocessor

import (
	"fmt"
	"log/slog"
	"reflect"
	"sync/atomic"

	"github.com/GoCodeAlone/configprocessor/catalog"
	"github.com/GoCodeAlone/configprocessor/config"
	"github.com/GoCodeAlone/configprocessor/convert"
	"github.com/GoCodeAlone/configprocessor/resolve"
)

// The helpers in this file are called by generated code. cfg is the
// configuration root the generated function received and paths are
// absolute.

var (
	runtimeCatalog  atomic.Pointer[catalog.Catalog]
	deferredHandler atomic.Pointer[func(error)]
)

// SetRuntimeCatalog fixes the catalog used by generated code. A nil catalog
// restores the default, a catalog of every registered library.
func SetRuntimeCatalog(c *catalog.Catalog) {
	runtimeCatalog.Store(c)
}

// SetDeferredHandler sets the function receiving the failures of builders
// that run after the generated call they were passed to has returned. A nil
// handler restores the default, which logs through slog.Default.
func SetDeferredHandler(fn func(error)) {
	if fn == nil {
		deferredHandler.Store(nil)
		return
	}
	deferredHandler.Store(&fn)
}

func reportDeferred(err error) {
	if h := deferredHandler.Load(); h != nil {
		(*h)(err)
		return
	}
	slog.Default().Error("Builder failed after its call returned", "error", err)
}

// registeredStrategy discovers every registered library.
type registeredStrategy struct{}

func (registeredStrategy) Name() string { return "registered" }

func (registeredStrategy) Discover() ([]string, error) {
	libs := catalog.Registered()
	names := make([]string, len(libs))
	for i, lib := range libs {
		names[i] = lib.Name
	}
	return names, nil
}

func currentCatalog() (*catalog.Catalog, error) {
	if c := runtimeCatalog.Load(); c != nil {
		return c, nil
	}
	c, err := catalog.Build(registeredStrategy{}, catalog.BuildOptions{ExcludeEntry: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRuntimeCatalog, err)
	}
	return c, nil
}

func runtimeScope(cfg config.Section, path string) (*resolve.Scope, config.Section, error) {
	if cfg == nil {
		return nil, nil, ErrSectionNil
	}
	c, err := currentCatalog()
	if err != nil {
		return nil, nil, err
	}
	root := cfg.Root()
	section := root.Section(path)
	scope := resolve.NewScope(resolve.Options{
		Catalog:  c,
		Root:     root,
		Excluded: []string{UsingKey, ConnectionStringsKey},
		Deferred: reportDeferred,
	}, section)
	return scope, section, nil
}

// Value converts the configuration value at path to T with the conversion
// rules used when methods are invoked directly. name is the parameter or
// property the value is bound to and key the configuration key of the
// entry that selected it.
func Value[T any](cfg config.Section, path, name, key string) (T, error) {
	var out T
	scope, section, err := runtimeScope(cfg, path)
	if err != nil {
		return out, err
	}
	t := reflect.TypeOf(&out).Elem()
	v, err := scope.Converter().Convert(convert.Argument{
		Name:    name,
		Key:     key,
		Section: section,
	}, t)
	if err != nil {
		return out, fmt.Errorf("value at %q: %w", path, err)
	}
	if !v.IsValid() {
		return out, nil
	}
	if !v.Type().AssignableTo(t) {
		return out, fmt.Errorf("%w: %s at %q, want %s", ErrValueType, v.Type(), path, t)
	}
	reflect.ValueOf(&out).Elem().Set(v)
	return out, nil
}

// ProcessorFor returns the processor handle for the section at path.
func ProcessorFor(cfg config.Section, path string) resolve.Processor {
	scope, _, err := runtimeScope(cfg, path)
	if err != nil {
		return failedProcessor{err: err, section: cfg}
	}
	return scope.NewProcessor()
}

// failedProcessor reports the error that prevented a real handle.
type failedProcessor struct {
	err     error
	section config.Section
}

func (f failedProcessor) Section() config.Section { return f.section }

func (f failedProcessor) Invoke(any, string, ...any) error { return f.err }

func (f failedProcessor) Apply(any, config.Section) error { return f.err }

// Err wraps the failure of a generated call the way direct invocation does.
func Err(signature, path string, err error) error {
	return fmt.Errorf("%s at %q: %w", signature, path, err)
}

// Deferred reports the failure of a generated builder that ran after its
// call returned.
func Deferred(signature, path string, err error) {
	reportDeferred(Err(signature, path, err))
}

// Bind resolves the single configuration entry at path against target and
// runs it. Generated code uses it for calls it cannot spell out.
func Bind(target any, cfg config.Section, path string) error {
	if target == nil {
		return ErrTargetNil
	}
	scope, section, err := runtimeScope(cfg, path)
	if err != nil {
		return err
	}
	if !section.Exists() {
		return fmt.Errorf("%w: %q", ErrValueMissing, path)
	}
	plan, err := scope.Plan(reflect.TypeOf(target), false)
	if err != nil {
		return err
	}
	if len(plan.Calls) == 0 && len(plan.Properties) == 0 {
		return fmt.Errorf("%w: %q", ErrNoDirective, path)
	}
	iv := resolve.NewInvoker(target)
	iv.OnDeferred = reportDeferred
	return iv.Apply(plan)
}
