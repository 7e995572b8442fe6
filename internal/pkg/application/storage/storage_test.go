package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/diwise/cloud-datastore/pkg/datastore/keys"
	"github.com/diwise/cloud-datastore/pkg/datastore/values"
	"github.com/diwise/cloud-datastore/pkg/datastore/wire"
	"github.com/matryer/is"
)

func TestInsertAutoIDAllocatesIDsInOrder(t *testing.T) {
	is, ctx, s := setupStoreTest(t)

	resp, err := s.Commit(ctx, "dataset", &wire.CommitRequest{
		Mode: wire.NonTransactional,
		Mutation: &wire.Mutation{
			InsertAutoID: []*wire.Entity{
				thing(is, keys.Incomplete("Thing"), map[string]any{"n": 1}),
				thing(is, keys.Incomplete("Thing"), map[string]any{"n": 2}),
			},
		},
	})
	is.NoErr(err)

	allocated := resp.MutationResult.InsertAutoIDKey
	is.Equal(len(allocated), 2)
	is.Equal(*allocated[0].PathElement[0].ID, FirstAllocatedID)
	is.Equal(*allocated[1].PathElement[0].ID, FirstAllocatedID+1)
	is.Equal(allocated[0].PartitionID.DatasetID, "s~dataset")

	is.Equal(len(s.Entities("dataset")), 2)
}

func TestLookupReportsFoundAndMissing(t *testing.T) {
	is, ctx, s := setupStoreTest(t)

	is.NoErr(s.Put("dataset", thing(is, keys.ID("Thing", 1), map[string]any{"name": "one"})))

	resp, err := s.Lookup(ctx, "dataset", &wire.LookupRequest{
		Key: []*wire.Key{
			keys.ToWire(keys.MustNew("dataset", keys.ID("Thing", 1))),
			keys.ToWire(keys.MustNew("dataset", keys.ID("Thing", 2))),
		},
	})
	is.NoErr(err)
	is.Equal(len(resp.Found), 1)
	is.Equal(len(resp.Missing), 1)

	props := values.PropertiesFromWire(resp.Found[0].Entity.Property)
	is.Equal(props["name"], "one")
}

func TestInsertOfExistingEntityFailsWithoutApplyingAnything(t *testing.T) {
	is, ctx, s := setupStoreTest(t)

	is.NoErr(s.Put("dataset", thing(is, keys.ID("Thing", 1), nil)))

	_, err := s.Commit(ctx, "dataset", &wire.CommitRequest{
		Mode: wire.NonTransactional,
		Mutation: &wire.Mutation{
			Upsert: []*wire.Entity{thing(is, keys.ID("Thing", 2), nil)},
			Insert: []*wire.Entity{thing(is, keys.ID("Thing", 1), nil)},
		},
	})

	var aee AlreadyExistsError
	is.True(errors.As(err, &aee))
	is.Equal(len(s.Entities("dataset")), 1)
}

func TestQueryAppliesKindFiltersAndLimit(t *testing.T) {
	is, ctx, s := setupStoreTest(t)

	is.NoErr(s.Put("dataset",
		thing(is, keys.ID("Thing", 1), map[string]any{"age": 5}),
		thing(is, keys.ID("Thing", 2), map[string]any{"age": 10}),
		thing(is, keys.ID("Thing", 3), map[string]any{"age": 15}),
		thing(is, keys.ID("Thing", 4), map[string]any{"age": 20}),
		thing(is, keys.ID("Other", 5), map[string]any{"age": 12}),
	))

	query := &wire.Query{
		Kind: []*wire.KindExpression{{Name: "Thing"}},
		Filter: &wire.Filter{CompositeFilter: &wire.CompositeFilter{
			Operator: wire.And,
			Filter: []*wire.Filter{
				propertyFilter(is, "age", wire.GreaterThanOrEqual, 10),
				propertyFilter(is, "age", wire.LessThan, 20),
			},
		}},
	}

	resp, err := s.RunQuery(ctx, "dataset", &wire.RunQueryRequest{Query: query})
	is.NoErr(err)
	is.Equal(len(resp.Batch.EntityResult), 2)
	is.Equal(*resp.Batch.EntityResult[0].Entity.Key.PathElement[0].ID, int64(2))
	is.Equal(*resp.Batch.EntityResult[1].Entity.Key.PathElement[0].ID, int64(3))
	is.Equal(resp.Batch.MoreResults, wire.NoMoreResults)

	limit := int32(1)
	query.Limit = &limit

	resp, err = s.RunQuery(ctx, "dataset", &wire.RunQueryRequest{Query: query})
	is.NoErr(err)
	is.Equal(len(resp.Batch.EntityResult), 1)
	is.Equal(resp.Batch.MoreResults, wire.MoreResultsAfterLimit)
}

func TestQueryIsScopedToNamespace(t *testing.T) {
	is, ctx, s := setupStoreTest(t)

	k := keys.MustNew("dataset", keys.ID("Thing", 1)).WithNamespace("north")
	is.NoErr(s.Put("dataset", &wire.Entity{Key: keys.ToWire(k)}))
	is.NoErr(s.Put("dataset", thing(is, keys.ID("Thing", 2), nil)))

	query := &wire.Query{Kind: []*wire.KindExpression{{Name: "Thing"}}}

	resp, err := s.RunQuery(ctx, "dataset", &wire.RunQueryRequest{
		PartitionID: &wire.PartitionID{Namespace: "north"},
		Query:       query,
	})
	is.NoErr(err)
	is.Equal(len(resp.Batch.EntityResult), 1)
	is.Equal(*resp.Batch.EntityResult[0].Entity.Key.PathElement[0].ID, int64(1))
}

func TestTransactionalCommitRequiresKnownTransaction(t *testing.T) {
	is, ctx, s := setupStoreTest(t)

	_, err := s.Commit(ctx, "dataset", &wire.CommitRequest{
		Mode:        wire.Transactional,
		Transaction: []byte("nope"),
		Mutation:    &wire.Mutation{},
	})

	var ute UnknownTransactionError
	is.True(errors.As(err, &ute))
}

func TestTransactionEndsOnCommitOrRollback(t *testing.T) {
	is, ctx, s := setupStoreTest(t)

	first, err := s.BeginTransaction(ctx, "dataset", &wire.BeginTransactionRequest{})
	is.NoErr(err)
	second, err := s.BeginTransaction(ctx, "dataset", &wire.BeginTransactionRequest{})
	is.NoErr(err)
	is.Equal(s.OpenTransactions(), 2)

	_, err = s.Commit(ctx, "dataset", &wire.CommitRequest{
		Mode:        wire.Transactional,
		Transaction: first.Transaction,
		Mutation:    &wire.Mutation{Upsert: []*wire.Entity{thing(is, keys.ID("Thing", 1), nil)}},
	})
	is.NoErr(err)

	_, err = s.Rollback(ctx, "dataset", &wire.RollbackRequest{Transaction: second.Transaction})
	is.NoErr(err)

	is.Equal(s.OpenTransactions(), 0)
	is.Equal(len(s.Entities("dataset")), 1)

	_, err = s.Rollback(ctx, "dataset", &wire.RollbackRequest{Transaction: second.Transaction})
	is.True(err != nil) // a finished transaction can not be rolled back again
}

func TestCommitListenersAreCalled(t *testing.T) {
	is := is.New(t)

	calls := 0
	s := New(func(ctx context.Context, datasetID string, req *wire.CommitRequest, resp *wire.CommitResponse) {
		calls++
		is.Equal(datasetID, "dataset")
	})

	_, err := s.Commit(context.Background(), "dataset", &wire.CommitRequest{
		Mode:     wire.NonTransactional,
		Mutation: &wire.Mutation{Delete: []*wire.Key{keys.ToWire(keys.MustNew("dataset", keys.ID("Thing", 9)))}},
	})
	is.NoErr(err)
	is.Equal(calls, 1)
}

func setupStoreTest(t *testing.T) (*is.I, context.Context, Store) {
	return is.New(t), context.Background(), New()
}

func thing(is *is.I, pe keys.PathElement, properties map[string]any) *wire.Entity {
	props, err := values.PropertiesToWire(properties)
	is.NoErr(err)
	return &wire.Entity{Key: keys.ToWire(keys.MustNew("dataset", pe)), Property: props}
}

func propertyFilter(is *is.I, name string, op wire.PropertyFilterOperator, value any) *wire.Filter {
	v, err := values.ToWire(value)
	is.NoErr(err)
	return &wire.Filter{PropertyFilter: &wire.PropertyFilter{
		Property: &wire.PropertyReference{Name: name},
		Operator: op,
		Value:    v,
	}}
}
