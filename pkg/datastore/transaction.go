package datastore

import (
	"context"

	"github.com/diwise/cloud-datastore/pkg/datastore/client"
	"github.com/diwise/cloud-datastore/pkg/datastore/errors"
	"github.com/diwise/cloud-datastore/pkg/datastore/keys"
	"github.com/diwise/cloud-datastore/pkg/datastore/values"
	"github.com/diwise/cloud-datastore/pkg/datastore/wire"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
)

type TransactionState int

const (
	Idle TransactionState = iota
	Active
	Committed
	RolledBack
	Failed
)

func (s TransactionState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Active:
		return "active"
	case Committed:
		return "committed"
	case RolledBack:
		return "rolled back"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Transaction batches the writes made through its dataset's connection into
// a single transactional commit. A transaction is used once: it goes from
// idle to active on Begin and ends when committed or rolled back.
type Transaction struct {
	dataset  *Dataset
	id       []byte
	state    TransactionState
	mutation *wire.Mutation

	// entities waiting for an allocated id, in the order they were saved
	pending []*Entity
}

var _ client.Transaction = (*Transaction)(nil)

// ID returns the handle issued by the service while the transaction is
// active, nil otherwise.
func (tx *Transaction) ID() []byte {
	if tx.state != Active {
		return nil
	}
	return tx.id
}

func (tx *Transaction) State() TransactionState {
	return tx.state
}

func (tx *Transaction) IsActive() bool {
	return tx.state == Active
}

func (tx *Transaction) Dataset() *Dataset {
	return tx.dataset
}

// Mutation returns the writes batched so far.
func (tx *Transaction) Mutation() *wire.Mutation {
	return tx.mutation
}

func (tx *Transaction) Begin(ctx context.Context) error {
	if tx.state != Idle {
		return errors.NewTransactionClosedError("transaction has already been " + tx.state.String())
	}

	if err := tx.dataset.valid(); err != nil {
		return err
	}

	conn := tx.dataset.Connection()
	if conn.Transaction() != nil {
		return errors.NewTransactionInProgressError(tx.dataset.ID())
	}

	id, err := conn.BeginTransaction(ctx, tx.dataset.ID())
	if err != nil {
		return err
	}

	tx.id = id
	tx.state = Active
	conn.SetTransaction(tx)

	logging.GetFromContext(ctx).Debug("transaction started", "dataset", tx.dataset.ID())

	return nil
}

// Commit sends every batched write in one transactional commit. Entities
// saved with partial keys get their allocated ids once the commit succeeds.
func (tx *Transaction) Commit(ctx context.Context) error {
	if tx.state != Active {
		return errors.NewTransactionClosedError("cannot commit a transaction that is " + tx.state.String())
	}

	defer tx.release()

	response, err := tx.dataset.Connection().Commit(ctx, tx.dataset.ID(), tx.mutation, tx.id)
	if err != nil {
		tx.state = Failed
		return err
	}

	tx.state = Committed

	var allocated []*wire.Key
	if response.MutationResult != nil {
		allocated = response.MutationResult.InsertAutoIDKey
	}

	if len(allocated) < len(tx.pending) {
		logging.GetFromContext(ctx).Warn("commit returned fewer allocated keys than expected", "expected", len(tx.pending), "got", len(allocated))
	}

	for i, e := range tx.pending {
		if i >= len(allocated) {
			break
		}
		e.key = e.key.WithPath(keys.FromWire(allocated[i]).Path())
	}

	tx.pending = nil

	return nil
}

// Rollback discards every batched write.
func (tx *Transaction) Rollback(ctx context.Context) error {
	if tx.state != Active {
		return errors.NewTransactionClosedError("cannot roll back a transaction that is " + tx.state.String())
	}

	defer tx.release()

	tx.state = RolledBack
	tx.mutation = &wire.Mutation{}
	tx.pending = nil

	return tx.dataset.Connection().RollbackTransaction(ctx, tx.dataset.ID(), tx.id)
}

func (tx *Transaction) release() {
	conn := tx.dataset.Connection()
	if conn.Transaction() == client.Transaction(tx) {
		conn.SetTransaction(nil)
	}
}

func (tx *Transaction) save(e *Entity) error {
	props, err := values.PropertiesToWire(e.properties)
	if err != nil {
		return err
	}

	pb := &wire.Entity{Key: keys.ToWire(e.key), Property: props}

	if e.key.IsPartial() {
		tx.mutation.InsertAutoID = append(tx.mutation.InsertAutoID, pb)
		tx.pending = append(tx.pending, e)
	} else {
		tx.mutation.Upsert = append(tx.mutation.Upsert, pb)
	}

	return nil
}

func (tx *Transaction) delete(key *keys.Key) error {
	tx.mutation.Delete = append(tx.mutation.Delete, keys.ToWire(key))
	return nil
}
