package datastore

import (
	"context"

	"github.com/diwise/cloud-datastore/pkg/datastore/client"
	"github.com/diwise/cloud-datastore/pkg/datastore/credentials"
	"github.com/diwise/cloud-datastore/pkg/datastore/errors"
	"github.com/diwise/cloud-datastore/pkg/datastore/keys"
	"github.com/diwise/cloud-datastore/pkg/datastore/wire"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
)

// Dataset binds a dataset id to the connection used to reach it.
type Dataset struct {
	id   string
	conn client.Connection
}

func NewDataset(id string, conn client.Connection) *Dataset {
	return &Dataset{id: id, conn: conn}
}

// GetConnection returns a connection to the public service authorized as the
// given service account.
func GetConnection(ctx context.Context, clientEmail, privateKeyPath string) (client.Connection, error) {
	authorizer, err := credentials.ForServiceAccount(ctx, clientEmail, privateKeyPath)
	if err != nil {
		return nil, err
	}

	return client.NewConnection(client.WithCredentials(authorizer)), nil
}

func GetDataset(ctx context.Context, datasetID, clientEmail, privateKeyPath string) (*Dataset, error) {
	conn, err := GetConnection(ctx, clientEmail, privateKeyPath)
	if err != nil {
		return nil, err
	}

	return NewDataset(datasetID, conn), nil
}

func (d *Dataset) ID() string {
	return d.id
}

func (d *Dataset) Connection() client.Connection {
	return d.conn
}

// Key creates a key in this dataset.
func (d *Dataset) Key(path ...keys.PathElement) (*keys.Key, error) {
	return keys.New(d.id, path...)
}

func (d *Dataset) Query(kind string) *Query {
	return NewQuery(kind).WithDataset(d)
}

// Entity returns a new, unsaved entity of the given kind with a partial key.
func (d *Dataset) Entity(kind string) *Entity {
	e := NewEntity(nil)
	e.dataset = d
	if kind != "" {
		e.key, _ = keys.New(d.id, keys.Incomplete(kind))
	}
	return e
}

// GetEntity looks up a single entity and returns nil if it does not exist.
func (d *Dataset) GetEntity(ctx context.Context, key *keys.Key) (*Entity, error) {
	if key == nil {
		return nil, errors.NewInvalidArgumentError("get entity requires a key")
	}

	if err := d.valid(); err != nil {
		return nil, err
	}

	pb, err := d.conn.Lookup(ctx, d.id, keys.ToWire(key))
	if err != nil {
		return nil, err
	}

	if pb == nil {
		return nil, nil
	}

	return EntityFromWire(pb, d), nil
}

// GetEntities looks up all keys in one request. Keys that do not exist are
// left out of the result.
func (d *Dataset) GetEntities(ctx context.Context, ks []*keys.Key) ([]*Entity, error) {
	if err := d.valid(); err != nil {
		return nil, err
	}

	pbs := make([]*wire.Key, 0, len(ks))
	for _, k := range ks {
		if k == nil {
			return nil, errors.NewInvalidArgumentError("get entities requires non nil keys")
		}
		pbs = append(pbs, keys.ToWire(k))
	}

	found, err := d.conn.LookupMulti(ctx, d.id, pbs)
	if err != nil {
		return nil, err
	}

	entities := make([]*Entity, 0, len(found))
	for _, pb := range found {
		entities = append(entities, EntityFromWire(pb, d))
	}

	return entities, nil
}

// Transaction returns a new, not yet begun, transaction on this dataset.
func (d *Dataset) Transaction() *Transaction {
	return &Transaction{
		dataset:  d,
		mutation: &wire.Mutation{},
	}
}

// RunInTransaction begins a transaction and calls fn. When fn returns nil the
// transaction is committed, unless fn already committed or rolled it back.
// When fn returns an error or panics the transaction is rolled back.
func (d *Dataset) RunInTransaction(ctx context.Context, fn func(tx *Transaction) error) error {
	tx := d.Transaction()

	err := tx.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			rollbackIfActive(ctx, tx)
			panic(r)
		}
	}()

	err = fn(tx)
	if err != nil {
		rollbackIfActive(ctx, tx)
		return err
	}

	if tx.IsActive() {
		return tx.Commit(ctx)
	}

	return nil
}

func rollbackIfActive(ctx context.Context, tx *Transaction) {
	if !tx.IsActive() {
		return
	}

	if err := tx.Rollback(ctx); err != nil {
		logging.GetFromContext(ctx).Warn("failed to roll back transaction", "err", err.Error())
	}
}

func (d *Dataset) valid() error {
	if d == nil || d.conn == nil {
		return errors.NewInvalidArgumentError("no dataset connection available")
	}
	return nil
}

// activeTransaction returns the transaction currently batching writes for
// this dataset. A transaction begun by another dataset sharing the
// connection is ignored, since its commit is addressed to that dataset.
func (d *Dataset) activeTransaction() *Transaction {
	tx, ok := d.conn.Transaction().(*Transaction)
	if ok && tx.IsActive() && tx.dataset.ID() == d.ID() {
		return tx
	}
	return nil
}
