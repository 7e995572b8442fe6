package main

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/diwise/cloud-datastore/pkg/datastore/dstest"
	"github.com/matryer/is"
)

func TestRunAgainstFakeDatastore(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	s, err := dstest.NewServer(ctx, dstest.WithFixtures(bytes.NewBufferString(fixtures)))
	is.NoErr(err)
	defer s.Close()

	out := &bytes.Buffer{}
	err = run(ctx, s.Dataset("demo"), DefaultProfile(), slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)), out)
	is.NoErr(err)

	output := out.String()
	is.True(strings.Contains(output, `"title": "created"`))
	is.True(strings.Contains(output, `"name": "Toy"`))
	is.True(strings.Contains(output, `"title": "Computers with my_int_value 1234"`))
	is.True(strings.Contains(output, `"key": "Thing,2"`))

	is.Equal(len(s.Entities("demo")), 3) // the created Toy should have been deleted again
	is.Equal(s.RequestCount("commit"), 2)
	is.Equal(s.OpenTransactions(), 0)
}

func TestLoadProfile(t *testing.T) {
	is := is.New(t)

	p, err := LoadProfile(bytes.NewBufferString(profileFile))
	is.NoErr(err)

	is.Equal(p.Kind, "Gadget")
	is.Equal(p.Limit, 2) // default limit is kept when not overridden
	is.Equal(len(p.Entities), 1)
	is.Equal(p.Entities[0]["name"], "Widget")
	is.Equal(len(p.Queries), 1)
	is.Equal(p.Queries[0].Filters[0].Expression, "weight >")
}

func TestDefaultProfileWhenNoPathIsGiven(t *testing.T) {
	is := is.New(t)

	p, err := loadProfileFromPath("")
	is.NoErr(err)
	is.Equal(p.Kind, "Thing")
	is.Equal(len(p.Queries), 2)
}

func TestConnectWithoutCredentials(t *testing.T) {
	is := is.New(t)

	conn, err := connect(context.Background(), Config{datasetID: "demo", debug: "false"})
	is.NoErr(err)
	is.True(conn != nil)
}

const fixtures string = `
datasets:
  - id: demo
    entities:
    - kind: Thing
      id: 1
      properties:
        name: Computer
        my_int_value: 1
    - kind: Thing
      id: 2
      properties:
        name: Computer
        my_int_value: 1234
    - kind: Thing
      id: 3
      properties:
        name: Chair
`

const profileFile string = `
kind: Gadget
entities:
  - name: Widget
    weight: 12
queries:
  - name: heavy gadgets
    filters:
      - expression: weight >
        value: 10
`
