package auth

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/matryer/is"
)

func TestAllowAllPolicyGrantsAccess(t *testing.T) {
	is, ctx := is.New(t), context.Background()

	a, err := NewAuthenticator(ctx, bytes.NewBufferString(allowAll))
	is.NoErr(err)

	err = a.CheckAccess(ctx, newRequest("/datastore/v1beta2/datasets/demo/lookup", ""), "demo", "lookup")
	is.NoErr(err)
}

func TestTokenPolicy(t *testing.T) {
	is, ctx := is.New(t), context.Background()

	a, err := NewAuthenticator(ctx, bytes.NewBufferString(requireToken))
	is.NoErr(err)

	err = a.CheckAccess(ctx, newRequest("/datastore/v1beta2/datasets/demo/commit", "Bearer secret"), "demo", "commit")
	is.NoErr(err)

	err = a.CheckAccess(ctx, newRequest("/datastore/v1beta2/datasets/demo/commit", "Bearer wrong"), "demo", "commit")
	is.True(errors.Is(err, ErrAccessDenied))
}

func TestReadOnlyPolicyDeniesCommit(t *testing.T) {
	is, ctx := is.New(t), context.Background()

	a, err := NewAuthenticator(ctx, bytes.NewBufferString(readOnly))
	is.NoErr(err)

	is.NoErr(a.CheckAccess(ctx, newRequest("/datastore/v1beta2/datasets/demo/runQuery", ""), "demo", "runQuery"))

	err = a.CheckAccess(ctx, newRequest("/datastore/v1beta2/datasets/demo/commit", ""), "demo", "commit")
	is.True(errors.Is(err, ErrAccessDenied))
}

func TestBrokenPolicyFails(t *testing.T) {
	is := is.New(t)

	_, err := NewAuthenticator(context.Background(), bytes.NewBufferString("package example.authz\n\nallow = {"))
	is.True(err != nil)
}

func newRequest(path, authorization string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, path, nil)
	if authorization != "" {
		r.Header.Set("Authorization", authorization)
	}
	return r
}

const allowAll string = `
package example.authz

default allow := false

allow = response {
    response := {
    }
}
`

const requireToken string = `
package example.authz

default allow := false

allow = response {
    input.token == "secret"
    response := {
        "dataset": input.dataset
    }
}
`

const readOnly string = `
package example.authz

default allow := false

allow = response {
    input.method != "commit"
    input.method != "beginTransaction"
    response := {}
}
`
