package datastore_test

import (
	"context"
	"testing"

	"github.com/diwise/cloud-datastore/pkg/datastore/dstest"
	"github.com/matryer/is"
)

func setupServer(t *testing.T) (*is.I, context.Context, *dstest.Server) {
	is := is.New(t)
	ctx := context.Background()

	s, err := dstest.NewServer(ctx)
	is.NoErr(err)

	return is, ctx, s
}
