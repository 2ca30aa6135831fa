package configprocessor

import (
	"context"
	"strconv"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/GoCodeAlone/configprocessor/catalog"
	"github.com/GoCodeAlone/configprocessor/resolve"
)

// Option represents a functional option for configuring processors
type Option func(*Processor) error

// ObserverFunc is a functional observer registered for all events
type ObserverFunc func(ctx context.Context, event cloudevents.Event) error

// New creates a processor with the provided options. Without options the
// processor discovers libraries with the loaded strategy, fails on entries
// no method accepts and discards logs.
func New(opts ...Option) (*Processor, error) {
	p := &Processor{
		cfg:       DefaultProcessorConfig(),
		logger:    NoopLogger{},
		observers: make(map[string]*observerRegistration),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	if p.catalog == nil {
		if err := p.cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// WithLogger sets the logger for the processor
func WithLogger(logger Logger) Option {
	return func(p *Processor) error {
		if logger == nil {
			logger = NoopLogger{}
		}
		p.logger = logger
		return nil
	}
}

// WithConfig replaces the processor configuration. The config is validated
// when the processor is built.
func WithConfig(cfg *ProcessorConfig) Option {
	return func(p *Processor) error {
		if cfg == nil {
			return ErrConfigNil
		}
		copied := *cfg
		p.cfg = &copied
		return nil
	}
}

// WithCatalog uses a fixed catalog instead of discovering one per pass.
func WithCatalog(c *catalog.Catalog) Option {
	return func(p *Processor) error {
		if c == nil {
			return ErrCatalogNil
		}
		p.catalog = c
		return nil
	}
}

// WithLibraries uses a fixed catalog made of libs.
func WithLibraries(libs ...*catalog.Library) Option {
	return func(p *Processor) error {
		for _, lib := range libs {
			if err := lib.Err(); err != nil {
				return err
			}
		}
		p.catalog = catalog.New(libs...)
		return nil
	}
}

// WithMarkers adds the libraries owning the given values or reflect.Types to
// every discovered catalog.
func WithMarkers(markers ...any) Option {
	return func(p *Processor) error {
		p.markers = append(p.markers, markers...)
		return nil
	}
}

// WithUsing names libraries added to every discovered catalog.
func WithUsing(libraries ...string) Option {
	return func(p *Processor) error {
		p.cfg.Using = append(p.cfg.Using, libraries...)
		return nil
	}
}

// WithAffixes adds method name prefixes and suffixes.
func WithAffixes(prefixes, suffixes []string) Option {
	return func(p *Processor) error {
		p.cfg.Prefixes = append(p.cfg.Prefixes, prefixes...)
		p.cfg.Suffixes = append(p.cfg.Suffixes, suffixes...)
		return nil
	}
}

// WithStrict controls whether entries no method accepts fail the pass.
// Lenient processors log and skip them.
func WithStrict(strict bool) Option {
	return func(p *Processor) error {
		p.cfg.Strict = strict
		return nil
	}
}

// WithNotFoundHandler installs a handler for entries no method accepts. It
// runs before the strict setting is applied.
func WithNotFoundHandler(handler resolve.NotFoundHandler) Option {
	return func(p *Processor) error {
		p.notFound = handler
		return nil
	}
}

// WithMethodFilter drops gathered candidates the filter rejects.
func WithMethodFilter(filter resolve.MethodFilter) Option {
	return func(p *Processor) error {
		p.filter = filter
		return nil
	}
}

// WithLookupEnv sets the environment lookup used for references in values.
func WithLookupEnv(lookup func(string) (string, bool)) Option {
	return func(p *Processor) error {
		p.lookupEnv = lookup
		return nil
	}
}

// WithObserver registers observer functions for all events
func WithObserver(observers ...ObserverFunc) Option {
	return func(p *Processor) error {
		for _, fn := range observers {
			id := "observer-func-" + strconv.Itoa(len(p.observers)+1)
			if err := p.RegisterObserver(NewFunctionalObserver(id, fn)); err != nil {
				return err
			}
		}
		return nil
	}
}
