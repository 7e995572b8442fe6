package datastore

import (
	"context"
	"math"
	"slices"
	"strings"

	"github.com/diwise/cloud-datastore/pkg/datastore/errors"
	"github.com/diwise/cloud-datastore/pkg/datastore/values"
	"github.com/diwise/cloud-datastore/pkg/datastore/wire"
)

// Query is an immutable query builder. Every builder method returns a new
// query and leaves the receiver unchanged.
type Query struct {
	dataset   *Dataset
	kind      string
	filters   []propertyFilter
	limit     int32
	namespace string
}

type propertyFilter struct {
	property string
	operator wire.PropertyFilterOperator
	value    any
}

// Operators are matched against the end of a filter expression in this
// order, so that "<=" wins over "<" and "=".
var operators = []struct {
	token    string
	operator wire.PropertyFilterOperator
}{
	{"<=", wire.LessThanOrEqual},
	{">=", wire.GreaterThanOrEqual},
	{"<", wire.LessThan},
	{">", wire.GreaterThan},
	{"=", wire.Equal},
}

// NewQuery creates a query over a single kind. An empty kind matches
// entities of every kind.
func NewQuery(kind string) *Query {
	return &Query{kind: kind}
}

func (q *Query) clone() *Query {
	return &Query{
		dataset:   q.dataset,
		kind:      q.kind,
		filters:   slices.Clone(q.filters),
		limit:     q.limit,
		namespace: q.namespace,
	}
}

// Kind replaces the kind the query runs over. The service accepts at most
// one kind per query.
func (q *Query) Kind(kind string) *Query {
	clone := q.clone()
	clone.kind = kind
	return clone
}

// Filter adds a property filter from an expression such as "age >=". All
// filters on a query are combined with AND.
func (q *Query) Filter(expression string, value any) (*Query, error) {
	expression = strings.TrimSpace(expression)

	var property string
	var operator wire.PropertyFilterOperator
	found := false

	for _, op := range operators {
		if strings.HasSuffix(expression, op.token) {
			property = strings.TrimSpace(strings.TrimSuffix(expression, op.token))
			operator = op.operator
			found = true
			break
		}
	}

	if !found || property == "" {
		return nil, errors.NewInvalidExpressionError(expression)
	}

	v, err := values.Normalize(value)
	if err != nil {
		return nil, err
	}

	clone := q.clone()
	clone.filters = append(clone.filters, propertyFilter{property: property, operator: operator, value: v})
	return clone, nil
}

// Limit caps the number of results. Zero removes the limit.
func (q *Query) Limit(limit int) *Query {
	clone := q.clone()
	clone.limit = int32(min(max(limit, 0), math.MaxInt32))
	return clone
}

func (q *Query) Namespace(namespace string) *Query {
	clone := q.clone()
	clone.namespace = namespace
	return clone
}

func (q *Query) WithDataset(dataset *Dataset) *Query {
	clone := q.clone()
	clone.dataset = dataset
	return clone
}

func (q *Query) Dataset() *Dataset {
	return q.dataset
}

func (q *Query) KindName() string {
	return q.kind
}

func (q *Query) ToWire() (*wire.Query, error) {
	pb := &wire.Query{}

	if q.kind != "" {
		pb.Kind = []*wire.KindExpression{{Name: q.kind}}
	}

	if len(q.filters) > 0 {
		composite := &wire.CompositeFilter{Operator: wire.And}

		for _, f := range q.filters {
			v, err := values.ToWire(f.value)
			if err != nil {
				return nil, err
			}

			composite.Filter = append(composite.Filter, &wire.Filter{
				PropertyFilter: &wire.PropertyFilter{
					Property: &wire.PropertyReference{Name: f.property},
					Operator: f.operator,
					Value:    v,
				},
			})
		}

		pb.Filter = &wire.Filter{CompositeFilter: composite}
	}

	if q.limit > 0 {
		limit := q.limit
		pb.Limit = &limit
	}

	return pb, nil
}

type fetchOptions struct {
	limit   int
	dataset *Dataset
}

// WithLimit overrides the query limit for a single fetch.
func WithLimit(limit int) func(*fetchOptions) {
	return func(fo *fetchOptions) {
		fo.limit = limit
	}
}

// Using runs the fetch against the given dataset instead of the one the
// query is bound to.
func Using(dataset *Dataset) func(*fetchOptions) {
	return func(fo *fetchOptions) {
		fo.dataset = dataset
	}
}

// Fetch runs the query and returns the matching entities in the order the
// service returned them.
func (q *Query) Fetch(ctx context.Context, options ...func(*fetchOptions)) ([]*Entity, error) {
	fo := &fetchOptions{dataset: q.dataset}
	for _, option := range options {
		option(fo)
	}

	if err := fo.dataset.valid(); err != nil {
		return nil, err
	}

	query := q
	if fo.limit > 0 {
		query = q.Limit(fo.limit)
	}

	pb, err := query.ToWire()
	if err != nil {
		return nil, err
	}

	found, err := fo.dataset.conn.RunQuery(ctx, fo.dataset.id, pb, q.namespace)
	if err != nil {
		return nil, err
	}

	entities := make([]*Entity, 0, len(found))
	for _, e := range found {
		entities = append(entities, EntityFromWire(e, fo.dataset))
	}

	return entities, nil
}
