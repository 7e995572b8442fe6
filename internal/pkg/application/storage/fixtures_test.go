package storage

import (
	"bytes"
	"testing"

	"github.com/diwise/cloud-datastore/pkg/datastore/values"
	"github.com/matryer/is"
)

func TestLoadFixtures(t *testing.T) {
	is, fixtures := setupFixturesTest(t)

	is.Equal(len(fixtures.Datasets), 1) // should have a single dataset
	is.Equal(fixtures.Datasets[0].ID, "demo")
	is.Equal(len(fixtures.Datasets[0].Entities), 2)
}

func TestApplyFixtures(t *testing.T) {
	is, fixtures := setupFixturesTest(t)

	s := New()
	is.NoErr(fixtures.Apply(s))

	entities := s.Entities("demo")
	is.Equal(len(entities), 2)

	props := values.PropertiesFromWire(entities[0].Property)
	is.Equal(props["name"], "Sample thing")
	is.Equal(props["age"], int64(10))
	is.Equal(props["active"], true)

	is.Equal(*entities[1].Key.PathElement[0].Name, "north-gate")
	is.Equal(entities[1].Key.PartitionID.Namespace, "sites")
}

func TestApplyFixtureWithoutIDFails(t *testing.T) {
	is := is.New(t)

	fixtures, err := LoadFixtures(bytes.NewBufferString("datasets:\n  - id: demo\n    entities:\n      - kind: Thing\n"))
	is.NoErr(err)
	is.True(fixtures.Apply(New()) != nil)
}

func setupFixturesTest(t *testing.T) (*is.I, *Fixtures) {
	is := is.New(t)
	fixtures, err := LoadFixtures(bytes.NewBufferString(fixtureFile))
	is.NoErr(err)

	return is, fixtures
}

var fixtureFile string = `
datasets:
  - id: demo
    entities:
    - kind: Thing
      id: 1
      properties:
        name: Sample thing
        age: 10
        active: true
    - kind: Site
      name: north-gate
      namespace: sites
      properties:
        height: 2.5
`
