package convert

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/GoCodeAlone/configprocessor/catalog"
)

// MemberSeparator separates a type name from a static member name.
const MemberSeparator = "::"

// SplitMemberReference splits "Type::Member". ok is false when the value has
// no separator or either side is empty.
func SplitMemberReference(value string) (typeName, member string, ok bool) {
	i := strings.LastIndex(value, MemberSeparator)
	if i <= 0 {
		return "", "", false
	}
	typeName = strings.TrimSpace(value[:i])
	member = strings.TrimSpace(value[i+len(MemberSeparator):])
	return typeName, member, typeName != "" && member != ""
}

// Reference is the resolved form of an interface or func value: either a
// static member or a type to instantiate.
type Reference struct {
	Member *catalog.Member
	Scope  *catalog.StaticScope
	Type   reflect.Type
}

// ResolveReference resolves value for target without producing the value.
func (c *Converter) ResolveReference(value string, target reflect.Type) (*Reference, error) {
	if c.Catalog == nil {
		return nil, ErrCatalogUnavailable
	}
	value = strings.TrimSpace(value)
	if typeName, member, ok := SplitMemberReference(value); ok {
		scope, m, err := c.resolveMember(typeName, member, target)
		if err != nil {
			return nil, err
		}
		return &Reference{Member: m, Scope: scope}, nil
	}
	t, err := c.resolveInstanceType(value, target)
	if err != nil {
		return nil, err
	}
	return &Reference{Type: t}, nil
}

func (c *Converter) resolveReference(value string, target reflect.Type) (reflect.Value, error) {
	ref, err := c.ResolveReference(value, target)
	if err != nil {
		return reflect.Value{}, err
	}
	if ref.Member != nil {
		return assignTo(ref.Member.Get(), target), nil
	}
	v, err := c.Instantiate(ref.Type)
	if err != nil {
		return reflect.Value{}, err
	}
	return assignTo(v, target), nil
}

// resolveMember finds the single static member of typeName assignable to
// target. Exact type matches win over convertible ones.
func (c *Converter) resolveMember(typeName, member string, target reflect.Type) (*catalog.StaticScope, *catalog.Member, error) {
	scope, members, err := c.Catalog.LookupMembers(typeName, member)
	if err != nil {
		return nil, nil, err //nolint:wrapcheck // catalog errors name the scope
	}
	if len(members) == 0 {
		return nil, nil, fmt.Errorf("%w: %s%s%s", ErrMemberNotFound, typeName, MemberSeparator, member)
	}
	var exact, compatible, instance []*catalog.Member
	for _, m := range members {
		mt := m.Type()
		if mt == nil {
			continue
		}
		if !m.Static() {
			instance = append(instance, m)
			continue
		}
		switch {
		case mt == target:
			exact = append(exact, m)
		case mt.AssignableTo(target) || (target.Kind() == reflect.Func && mt.ConvertibleTo(target)):
			compatible = append(compatible, m)
		}
	}
	pick := exact
	if len(pick) == 0 {
		pick = compatible
	}
	switch len(pick) {
	case 1:
		return scope, pick[0], nil
	case 0:
		if len(instance) > 0 {
			return nil, nil, fmt.Errorf("%w: %s%s%s is an instance method", ErrNonStaticMember, typeName, MemberSeparator, member)
		}
		return nil, nil, fmt.Errorf("%w: %s%s%s is not assignable to %s", ErrMemberNotFound, typeName, MemberSeparator, member, catalog.TypeString(target))
	}
	return nil, nil, fmt.Errorf("%w: %s%s%s matches %d members for %s", ErrAmbiguousMember, typeName, MemberSeparator, member, len(pick), catalog.TypeString(target))
}

// resolveInstanceType resolves a concrete type name whose value, or pointer
// to value, satisfies target.
func (c *Converter) resolveInstanceType(name string, target reflect.Type) (reflect.Type, error) {
	t, err := c.Catalog.ResolveType(name)
	if err != nil {
		return nil, err //nolint:wrapcheck // catalog errors name the type
	}
	for _, candidate := range []reflect.Type{t, reflect.PointerTo(t)} {
		if candidate.Kind() == reflect.Interface {
			continue
		}
		if candidate.AssignableTo(target) {
			return candidate, nil
		}
	}
	return nil, fmt.Errorf("%w: %s does not implement %s", ErrNotInstantiable, catalog.TypeString(t), catalog.TypeString(target))
}

func assignTo(v reflect.Value, target reflect.Type) reflect.Value {
	if v.Type() == target {
		return v
	}
	if v.Type().AssignableTo(target) {
		out := reflect.New(target).Elem()
		out.Set(v)
		return out
	}
	return v.Convert(target)
}
