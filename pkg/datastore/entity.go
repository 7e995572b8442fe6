package datastore

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/diwise/cloud-datastore/pkg/datastore/errors"
	"github.com/diwise/cloud-datastore/pkg/datastore/keys"
	"github.com/diwise/cloud-datastore/pkg/datastore/values"
	"github.com/diwise/cloud-datastore/pkg/datastore/wire"
)

// Properties maps property names to canonical values, see values.Normalize.
type Properties map[string]any

// Entity is a key and a bag of properties. The key may be partial until the
// entity has been saved.
type Entity struct {
	dataset    *Dataset
	key        *keys.Key
	properties Properties
}

func NewEntity(key *keys.Key, decorators ...EntityDecoratorFunc) *Entity {
	e := &Entity{
		key:        key,
		properties: Properties{},
	}

	for _, decorator := range decorators {
		decorator(e)
	}

	return e
}

// EntityFromWire decodes an entity and binds it to dataset, which may be nil.
func EntityFromWire(pb *wire.Entity, dataset *Dataset) *Entity {
	e := NewEntity(nil)
	e.dataset = dataset

	if pb == nil {
		return e
	}

	if pb.Key != nil {
		e.key = keys.FromWire(pb.Key)
	}

	e.properties = values.PropertiesFromWire(pb.Property)
	return e
}

func (e *Entity) ToWire() (*wire.Entity, error) {
	pb := &wire.Entity{}

	if e.key != nil {
		pb.Key = keys.ToWire(e.key)
	}

	props, err := values.PropertiesToWire(e.properties)
	if err != nil {
		return nil, err
	}
	pb.Property = props

	return pb, nil
}

func (e *Entity) Key() *keys.Key {
	return e.key
}

// SetKey replaces the key of the entity and returns the entity.
func (e *Entity) SetKey(key *keys.Key) *Entity {
	e.key = key
	return e
}

func (e *Entity) Dataset() *Dataset {
	return e.dataset
}

// SetDataset binds the entity to a dataset and returns the entity.
func (e *Entity) SetDataset(dataset *Dataset) *Entity {
	e.dataset = dataset
	return e
}

func (e *Entity) Kind() string {
	if e.key == nil {
		return ""
	}
	return e.key.Kind()
}

// DatasetID returns the dataset id of the key, falling back to the bound
// dataset when the key has none.
func (e *Entity) DatasetID() string {
	if e.key != nil && e.key.DatasetID() != "" {
		return e.key.DatasetID()
	}
	if e.dataset != nil {
		return e.dataset.ID()
	}
	return ""
}

func (e *Entity) Get(name string) (any, bool) {
	v, ok := e.properties[name]
	return v, ok
}

// Set stores a property value. Values of unsupported types are rejected
// immediately.
func (e *Entity) Set(name string, value any) error {
	if name == "" {
		return errors.NewInvalidArgumentError("property name must not be empty")
	}

	v, err := values.Normalize(value)
	if err != nil {
		return err
	}

	e.properties[name] = v
	return nil
}

// Unset removes a property locally.
func (e *Entity) Unset(name string) {
	delete(e.properties, name)
}

func (e *Entity) Has(name string) bool {
	_, ok := e.properties[name]
	return ok
}

func (e *Entity) Len() int {
	return len(e.properties)
}

// Names returns the property names in sorted order.
func (e *Entity) Names() []string {
	return slices.Sorted(maps.Keys(e.properties))
}

// Properties returns a copy of the property map.
func (e *Entity) Properties() Properties {
	return maps.Clone(e.properties)
}

func (e *Entity) String(name string) (string, bool) {
	v, ok := e.properties[name].(string)
	return v, ok
}

func (e *Entity) Int(name string) (int64, bool) {
	v, ok := e.properties[name].(int64)
	return v, ok
}

func (e *Entity) Float(name string) (float64, bool) {
	v, ok := e.properties[name].(float64)
	return v, ok
}

func (e *Entity) Bool(name string) (bool, bool) {
	v, ok := e.properties[name].(bool)
	return v, ok
}

func (e *Entity) Time(name string) (time.Time, bool) {
	v, ok := e.properties[name].(time.Time)
	return v, ok
}

func (e *Entity) KeyRef(name string) (*keys.Key, bool) {
	v, ok := e.properties[name].(*keys.Key)
	return v, ok
}

// Save persists the entity in the dataset it is bound to. A partial key is
// completed in place with the id allocated by the service. Within an active
// transaction of the same dataset the write is queued and the id is assigned
// when the transaction commits.
func (e *Entity) Save(ctx context.Context) error {
	if err := e.writable(); err != nil {
		return err
	}

	conn := e.dataset.Connection()

	if tx := e.dataset.activeTransaction(); tx != nil {
		return tx.save(e)
	}

	pb, err := conn.SaveEntity(ctx, e.dataset.ID(), keys.ToWire(e.key), e.properties)
	if err != nil {
		return err
	}

	e.key = e.key.WithPath(keys.FromWire(pb).Path())
	return nil
}

// Delete removes the entity stored under the entity's key. The local entity
// is left untouched.
func (e *Entity) Delete(ctx context.Context) error {
	if err := e.writable(); err != nil {
		return err
	}

	conn := e.dataset.Connection()

	if tx := e.dataset.activeTransaction(); tx != nil {
		return tx.delete(e.key)
	}

	_, err := conn.DeleteEntity(ctx, e.dataset.ID(), keys.ToWire(e.key))
	return err
}

// Reload fetches the stored entity and copies its properties onto this one.
// Properties that only exist locally are kept.
func (e *Entity) Reload(ctx context.Context) (*Entity, error) {
	if err := e.writable(); err != nil {
		return nil, err
	}

	stored, err := e.dataset.GetEntity(ctx, e.key)
	if err != nil {
		return nil, err
	}

	if stored != nil {
		maps.Copy(e.properties, stored.properties)
	}

	return e, nil
}

func (e *Entity) GoString() string {
	if e.key == nil {
		return fmt.Sprintf("<Entity %v>", map[string]any(e.properties))
	}
	return fmt.Sprintf("<Entity %s %v>", e.key.String(), map[string]any(e.properties))
}

func (e *Entity) writable() error {
	if e.key == nil {
		return errors.NewInvalidArgumentError("entity has no key")
	}
	if e.dataset == nil || e.dataset.Connection() == nil {
		return errors.NewInvalidArgumentError("entity is not bound to a dataset with a connection")
	}
	return nil
}
