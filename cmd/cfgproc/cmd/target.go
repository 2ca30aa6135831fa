package cmd

import (
	"context"
	"fmt"
	"reflect"

	"github.com/GoCodeAlone/configprocessor"
	"github.com/GoCodeAlone/configprocessor/config"
)

// resolveTarget looks name up in the catalog the processor builds for s.
// Struct types are returned as pointers so methods with pointer receivers
// and field assignments are planned.
func resolveTarget(ctx context.Context, p *configprocessor.Processor, s config.Section, name string) (reflect.Type, error) {
	if name == "" {
		return nil, ErrTargetRequired
	}
	c, err := p.Catalog(ctx, s)
	if err != nil {
		return nil, err
	}
	t, err := c.ResolveType(name)
	if err != nil {
		return nil, fmt.Errorf("resolving target: %w", err)
	}
	if t.Kind() == reflect.Struct {
		t = reflect.PointerTo(t)
	}
	return t, nil
}
