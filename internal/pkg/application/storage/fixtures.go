package storage

import (
	"fmt"
	"io"

	"github.com/diwise/cloud-datastore/pkg/datastore/keys"
	"github.com/diwise/cloud-datastore/pkg/datastore/values"
	"github.com/diwise/cloud-datastore/pkg/datastore/wire"
	yaml "gopkg.in/yaml.v2"
)

type EntityFixture struct {
	Kind       string         `yaml:"kind"`
	ID         int64          `yaml:"id"`
	Name       string         `yaml:"name"`
	Namespace  string         `yaml:"namespace"`
	Properties map[string]any `yaml:"properties"`
}

type DatasetFixture struct {
	ID       string          `yaml:"id"`
	Entities []EntityFixture `yaml:"entities"`
}

type Fixtures struct {
	Datasets []DatasetFixture `yaml:"datasets"`
}

func LoadFixtures(data io.Reader) (*Fixtures, error) {

	buf, err := io.ReadAll(data)
	if err != nil {
		return nil, err
	}

	f := &Fixtures{}
	err = yaml.Unmarshal(buf, &f)

	return f, err
}

// Apply stores every fixture entity. Entities must have either an id or a
// name.
func (f *Fixtures) Apply(s Store) error {
	for _, ds := range f.Datasets {
		for _, ef := range ds.Entities {
			pe := keys.PathElement{Kind: ef.Kind, ID: ef.ID, Name: ef.Name}
			if !pe.IsComplete() {
				return fmt.Errorf("fixture of kind %s in dataset %s has neither id nor name", ef.Kind, ds.ID)
			}

			k, err := keys.New(ds.ID, pe)
			if err != nil {
				return err
			}

			props, err := values.PropertiesToWire(ef.Properties)
			if err != nil {
				return fmt.Errorf("fixture %s in dataset %s: %w", k.String(), ds.ID, err)
			}

			entity := &wire.Entity{Key: keys.ToWire(k.WithNamespace(ef.Namespace)), Property: props}
			if err := s.Put(ds.ID, entity); err != nil {
				return err
			}
		}
	}

	return nil
}
