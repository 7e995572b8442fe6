package storage

import (
	"slices"

	"github.com/diwise/cloud-datastore/pkg/datastore/keys"
	"github.com/diwise/cloud-datastore/pkg/datastore/values"
	"github.com/diwise/cloud-datastore/pkg/datastore/wire"
)

type condition struct {
	property string
	operator wire.PropertyFilterOperator
	value    any
}

type matcher struct {
	kinds      []string
	conditions []condition
}

func newMatcher(q *wire.Query) (*matcher, error) {
	m := &matcher{}

	for _, k := range q.Kind {
		m.kinds = append(m.kinds, k.Name)
	}

	if q.Filter != nil {
		if err := m.add(q.Filter); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *matcher) add(f *wire.Filter) error {
	if f.CompositeFilter != nil {
		if f.CompositeFilter.Operator != wire.And {
			return NewInvalidRequestError("only AND composite filters are supported")
		}
		for _, sub := range f.CompositeFilter.Filter {
			if err := m.add(sub); err != nil {
				return err
			}
		}
		return nil
	}

	pf := f.PropertyFilter
	if pf == nil {
		return nil
	}

	if pf.Property == nil || pf.Property.Name == "" {
		return NewInvalidRequestError("property filter without a property name")
	}

	switch pf.Operator {
	case wire.LessThan, wire.LessThanOrEqual, wire.GreaterThan, wire.GreaterThanOrEqual, wire.Equal:
	default:
		return NewInvalidRequestError("unsupported filter operator " + pf.Operator.String())
	}

	m.conditions = append(m.conditions, condition{
		property: pf.Property.Name,
		operator: pf.Operator,
		value:    values.FromWire(pf.Value),
	})

	return nil
}

func (m *matcher) matches(k *keys.Key, e *wire.Entity) bool {
	if len(m.kinds) > 0 && !slices.Contains(m.kinds, k.Kind()) {
		return false
	}

	if len(m.conditions) == 0 {
		return true
	}

	properties := values.PropertiesFromWire(e.Property)

	for _, c := range m.conditions {
		v, ok := properties[c.property]
		if !ok {
			return false
		}

		result, comparable := values.Compare(v, c.value)
		if !comparable {
			return false
		}

		if !c.satisfiedBy(result) {
			return false
		}
	}

	return true
}

func (c condition) satisfiedBy(result int) bool {
	switch c.operator {
	case wire.LessThan:
		return result < 0
	case wire.LessThanOrEqual:
		return result <= 0
	case wire.GreaterThan:
		return result > 0
	case wire.GreaterThanOrEqual:
		return result >= 0
	case wire.Equal:
		return result == 0
	}
	return false
}
