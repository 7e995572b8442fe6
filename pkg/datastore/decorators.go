package datastore

import (
	"time"

	"github.com/diwise/cloud-datastore/pkg/datastore/keys"
)

// EntityDecoratorFunc sets a property on a new entity. The typed decorators
// below only accept values that are valid property types.
type EntityDecoratorFunc func(e *Entity)

func Text(name, value string) EntityDecoratorFunc {
	return func(e *Entity) {
		e.properties[name] = value
	}
}

func Integer(name string, value int64) EntityDecoratorFunc {
	return func(e *Entity) {
		e.properties[name] = value
	}
}

func Number(name string, value float64) EntityDecoratorFunc {
	return func(e *Entity) {
		e.properties[name] = value
	}
}

func Boolean(name string, value bool) EntityDecoratorFunc {
	return func(e *Entity) {
		e.properties[name] = value
	}
}

// DateTime stores the timestamp in UTC with microsecond precision.
func DateTime(name string, value time.Time) EntityDecoratorFunc {
	return func(e *Entity) {
		e.properties[name] = value.UTC().Truncate(time.Microsecond)
	}
}

func Ref(name string, key *keys.Key) EntityDecoratorFunc {
	return func(e *Entity) {
		if key == nil {
			e.properties[name] = nil
			return
		}
		e.properties[name] = key
	}
}

func InDataset(dataset *Dataset) EntityDecoratorFunc {
	return func(e *Entity) {
		e.dataset = dataset
	}
}
