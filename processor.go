package configprocessor

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/GoCodeAlone/configprocessor/catalog"
	"github.com/GoCodeAlone/configprocessor/config"
	"github.com/GoCodeAlone/configprocessor/emit"
	"github.com/GoCodeAlone/configprocessor/resolve"
)

// Processor applies configuration sections to targets. It is safe for
// concurrent use; every pass gets its own resolution scope.
type Processor struct {
	cfg       *ProcessorConfig
	logger    Logger
	catalog   *catalog.Catalog
	markers   []any
	notFound  resolve.NotFoundHandler
	filter    resolve.MethodFilter
	lookupEnv func(string) (string, bool)

	observers     map[string]*observerRegistration // key is observer ID
	observerMutex sync.RWMutex
}

// Config returns a copy of the processor configuration.
func (p *Processor) Config() ProcessorConfig { return *p.cfg }

// Catalog returns the catalog used for section. A fixed catalog is returned
// as is; otherwise one is built with the configured strategy, the markers,
// the configured Using list and the Using entry of section.
func (p *Processor) Catalog(ctx context.Context, section config.Section, markers ...any) (*catalog.Catalog, error) {
	if p.catalog != nil {
		return p.catalog, nil
	}
	strategy, err := p.cfg.CatalogStrategy()
	if err != nil {
		return nil, err
	}
	using := append(append([]string(nil), p.cfg.Using...), UsingList(section)...)
	c, err := catalog.Build(strategy, catalog.BuildOptions{
		Markers: append(append([]any(nil), p.markers...), markers...),
		Using:   using,
		Logger:  p.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("building catalog: %w", err)
	}
	p.emitEvent(ctx, EventTypeCatalogBuilt, map[string]any{
		"strategy":  strategy.Name(),
		"libraries": libraryNames(c),
	})
	return c, nil
}

func libraryNames(c *catalog.Catalog) []string {
	names := make([]string, 0, len(c.Libraries()))
	for _, lib := range c.Libraries() {
		names = append(names, lib.Name)
	}
	return names
}

// UsingList returns the library names listed under the Using entry of
// section, either as children or as one comma separated value.
func UsingList(section config.Section) []string {
	if section == nil {
		return nil
	}
	using := section.Section(UsingKey)
	var out []string
	if children := using.Children(); len(children) > 0 {
		for _, c := range children {
			if v, ok := c.Value(); ok && strings.TrimSpace(v) != "" {
				out = append(out, strings.TrimSpace(v))
			}
		}
		return out
	}
	if v, ok := using.Value(); ok {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				out = append(out, name)
			}
		}
	}
	return out
}

// Plan resolves section against the type of target without invoking
// anything. target may be a value, a typed nil pointer or a reflect.Type.
func (p *Processor) Plan(ctx context.Context, target any, section config.Section) (*resolve.Plan, error) {
	t, err := targetType(target)
	if err != nil {
		return nil, err
	}
	if section == nil {
		return nil, ErrSectionNil
	}
	c, err := p.Catalog(ctx, section, t)
	if err != nil {
		return nil, err
	}
	plan, err := resolve.NewScope(p.scopeOptions(ctx, c), section).Plan(t, true)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("Plan built", "section", section.Path(), "target", t.String(), "steps", plan.Len())
	return plan, nil
}

// Process resolves section against target and invokes the selected methods
// in configuration order. target must be a non-nil pointer when properties
// are assigned; extension methods accept whatever their first parameter
// accepts.
func (p *Processor) Process(ctx context.Context, target any, section config.Section) error {
	if target == nil {
		return ErrTargetNil
	}
	if v := reflect.ValueOf(target); v.Kind() == reflect.Pointer && v.IsNil() {
		return ErrTargetNotPtr
	}
	err := p.process(ctx, target, section)
	if err != nil {
		p.emitEvent(ctx, EventTypeProcessFailed, map[string]any{"section": sectionPath(section), "error": err.Error()})
		return err
	}
	p.emitEvent(ctx, EventTypeProcessCompleted, map[string]any{"section": sectionPath(section)})
	return nil
}

func (p *Processor) process(ctx context.Context, target any, section config.Section) error {
	plan, err := p.Plan(ctx, target, section)
	if err != nil {
		return err
	}
	iv := resolve.NewInvoker(target)
	iv.OnDeferred = p.deferredSink(ctx, section)
	return p.apply(plan, iv)
}

// deferredSink reports builder failures raised after Process returned.
func (p *Processor) deferredSink(ctx context.Context, section config.Section) func(error) {
	path := sectionPath(section)
	return func(err error) {
		p.logger.Error("Builder failed after its call returned", "section", path, "error", err)
		p.emitEvent(context.WithoutCancel(ctx), EventTypeProcessFailed, map[string]any{
			"section":  path,
			"error":    err.Error(),
			"deferred": true,
		})
	}
}

func (p *Processor) apply(plan *resolve.Plan, applier resolve.Applier) error {
	return applier.Apply(plan)
}

// Emit renders the plan for section against the type of target as Go
// source. See emit.Options for the shape of the output.
func (p *Processor) Emit(ctx context.Context, target any, section config.Section, opts emit.Options) ([]byte, *emit.Emitter, error) {
	plan, err := p.Plan(ctx, target, section)
	if err != nil {
		return nil, nil, err
	}
	e := emit.New(opts)
	if err := p.apply(plan, e); err != nil {
		return nil, nil, err
	}
	src, err := e.Source()
	if err != nil {
		return nil, nil, err
	}
	stats := e.Stats()
	p.emitEvent(ctx, EventTypeEmitCompleted, map[string]any{
		"section":    section.Path(),
		"calls":      stats.Calls,
		"properties": stats.Properties,
		"fallbacks":  stats.Fallbacks,
	})
	return src, e, nil
}

// Watch reloads root whenever one of its files changes and calls onReload
// with the reloaded root when the reload changed at least one value. Errors
// of onReload and of the watcher are logged. The watch stops when ctx is
// done or the returned watcher is closed.
func (p *Processor) Watch(ctx context.Context, root *config.Root, onReload func(*config.Root) error) (*config.Watcher, error) {
	w, err := config.NewWatcher(root)
	if err != nil {
		return nil, fmt.Errorf("watching configuration: %w", err)
	}
	w.OnError(func(err error) {
		p.logger.Error("Configuration watch error", "error", err)
	})

	var mu sync.Mutex
	last := root.AsMap()
	root.OnReload(func() {
		mu.Lock()
		current := root.AsMap()
		diff := config.Compare(last, current, config.DiffOptions{IgnorePrefixes: []string{UsingKey}})
		last = current
		mu.Unlock()

		if !diff.HasChanges() {
			p.logger.Debug("Configuration reloaded without changes", "files", root.FilePaths())
			return
		}
		p.logger.Info("Configuration reloaded", "files", root.FilePaths(), "changed", diff.Paths(""))
		p.emitEvent(ctx, EventTypeConfigReloaded, reloadEventData(root, diff))
		if onReload == nil {
			return
		}
		if err := onReload(root); err != nil {
			p.logger.Error("Reload handler failed", "error", err)
		}
	})
	if err := w.Start(ctx); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watching configuration: %w", err)
	}
	return w, nil
}

func reloadEventData(root *config.Root, diff *config.Diff) map[string]any {
	changes := make([]map[string]string, 0, len(diff.Changes))
	for _, c := range diff.RedactSensitive().Changes {
		changes = append(changes, map[string]string{
			"path": c.Path,
			"type": c.Type.String(),
			"old":  c.OldValue,
			"new":  c.NewValue,
		})
	}
	summary := diff.Summary()
	return map[string]any{
		"files":    root.FilePaths(),
		"added":    summary[config.ChangeTypeAdded],
		"modified": summary[config.ChangeTypeModified],
		"removed":  summary[config.ChangeTypeRemoved],
		"changes":  changes,
	}
}

func (p *Processor) scopeOptions(ctx context.Context, c *catalog.Catalog) resolve.Options {
	return resolve.Options{
		Catalog:   c,
		NotFound:  p.handleNotFound,
		Prefixes:  p.cfg.Prefixes,
		Suffixes:  p.cfg.Suffixes,
		Filter:    p.filter,
		Excluded:  []string{UsingKey, ConnectionStringsKey},
		LookupEnv: p.lookupEnv,
		Logger:    p.logger,
		Deferred:  p.deferredSink(ctx, nil),
		Hooks: resolve.Hooks{
			Resolved: func(call *resolve.Call, stage string) {
				p.emitEvent(ctx, EventTypeMethodResolved, map[string]any{
					"path":   call.Directive.Source.Path(),
					"method": call.Method.Signature(),
					"stage":  stage,
				})
			},
			Unresolved: func(n *resolve.NotFound) {
				data := map[string]any{"path": n.Path, "method": n.MethodName, "handled": n.Handled}
				p.emitEvent(ctx, EventTypeMethodNotFound, data)
				if n.Handled {
					p.emitEvent(ctx, EventTypeDirectiveSkipped, data)
				}
			},
		},
	}
}

// handleNotFound runs the user handler, then skips what is left when the
// processor is lenient.
func (p *Processor) handleNotFound(n *resolve.NotFound) {
	if p.notFound != nil {
		p.notFound(n)
	}
	if n.Handled || p.cfg.Strict {
		return
	}
	n.Handled = true
	p.logger.Warn("No method accepts configuration entry", "path", n.Path, "method", n.MethodName, "candidates", len(n.Candidates))
}

func targetType(target any) (reflect.Type, error) {
	switch t := target.(type) {
	case nil:
		return nil, ErrTargetNil
	case reflect.Type:
		return t, nil
	default:
		return reflect.TypeOf(target), nil
	}
}

func sectionPath(s config.Section) string {
	if s == nil {
		return ""
	}
	return s.Path()
}
