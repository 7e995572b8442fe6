// Package dstest runs an in memory datastore behind a local HTTP server so
// that code using the datastore client can be tested without the real
// service.
package dstest

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path"
	"sync"

	"github.com/diwise/cloud-datastore/internal/pkg/application/notifications"
	"github.com/diwise/cloud-datastore/internal/pkg/application/storage"
	"github.com/diwise/cloud-datastore/internal/pkg/infrastructure/router"
	api "github.com/diwise/cloud-datastore/internal/pkg/presentation/api/datastore"
	"github.com/diwise/cloud-datastore/pkg/datastore"
	"github.com/diwise/cloud-datastore/pkg/datastore/client"
	"github.com/diwise/cloud-datastore/pkg/datastore/wire"
)

// AllowAll is the default authorization policy.
const AllowAll string = `
package example.authz

default allow := false

allow = response {
    response := {
    }
}
`

type Server struct {
	ts       *httptest.Server
	store    storage.Store
	notifier notifications.Notifier

	mu       sync.Mutex
	requests map[string]int
}

type config struct {
	policy       io.Reader
	fixtures     io.Reader
	notifyTarget string
}

// WithPolicy replaces the authorization policy. The rego module must define
// data.example.authz.allow, see AllowAll.
func WithPolicy(policy io.Reader) func(*config) {
	return func(c *config) {
		c.policy = policy
	}
}

// WithFixtures seeds the store from a yaml document.
func WithFixtures(fixtures io.Reader) func(*config) {
	return func(c *config) {
		c.fixtures = fixtures
	}
}

// WithCommitNotifications posts a json summary of every commit to endpoint.
func WithCommitNotifications(endpoint string) func(*config) {
	return func(c *config) {
		c.notifyTarget = endpoint
	}
}

func NewServer(ctx context.Context, options ...func(*config)) (*Server, error) {
	cfg := &config{
		policy: bytes.NewBufferString(AllowAll),
	}

	for _, option := range options {
		option(cfg)
	}

	s := &Server{
		requests: map[string]int{},
	}

	var listeners []storage.CommitListener

	if cfg.notifyTarget != "" {
		n, err := notifications.NewNotifier(ctx, cfg.notifyTarget)
		if err != nil {
			return nil, err
		}

		if err = n.Start(); err != nil {
			return nil, err
		}

		s.notifier = n
		listeners = append(listeners, n.Committed)
	}

	s.store = storage.New(listeners...)

	if cfg.fixtures != nil {
		fixtures, err := storage.LoadFixtures(cfg.fixtures)
		if err != nil {
			return nil, err
		}

		if err = fixtures.Apply(s.store); err != nil {
			return nil, err
		}
	}

	r := router.New("datastore-fake")
	r.Use(s.countRequests)

	if err := api.RegisterHandlers(ctx, r, cfg.policy, s.store); err != nil {
		return nil, err
	}

	s.ts = httptest.NewServer(r)

	return s, nil
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests[path.Base(r.URL.Path)]++
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

// URL returns the base url to pass to client.BaseURL.
func (s *Server) URL() string {
	return s.ts.URL
}

// Close stops the server and waits for pending commit notifications.
func (s *Server) Close() {
	s.ts.Close()

	if s.notifier != nil {
		s.notifier.Stop()
	}
}

// Connection returns a new connection to this server.
func (s *Server) Connection() client.Connection {
	return client.NewConnection(client.BaseURL(s.URL()))
}

// Dataset returns a dataset bound to a new connection to this server.
func (s *Server) Dataset(datasetID string) *datastore.Dataset {
	return datastore.NewDataset(datasetID, s.Connection())
}

// RequestCount returns the number of requests received for an API method,
// e.g. "commit".
func (s *Server) RequestCount(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.requests[method]
}

// Entities returns the entities stored in a dataset in insertion order.
func (s *Server) Entities(datasetID string) []*datastore.Entity {
	pbs := s.store.Entities(datasetID)

	entities := make([]*datastore.Entity, 0, len(pbs))
	for _, pb := range pbs {
		entities = append(entities, datastore.EntityFromWire(pb, nil))
	}

	return entities
}

// Put stores entities directly without going through the API.
func (s *Server) Put(datasetID string, entities ...*datastore.Entity) error {
	pbs := make([]*wire.Entity, 0, len(entities))
	for _, e := range entities {
		pb, err := e.ToWire()
		if err != nil {
			return err
		}
		pbs = append(pbs, pb)
	}

	return s.store.Put(datasetID, pbs...)
}

// OpenTransactions returns the number of transactions begun but not yet
// committed or rolled back.
func (s *Server) OpenTransactions() int {
	return s.store.OpenTransactions()
}
