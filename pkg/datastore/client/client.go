package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"strings"
	"sync"

	"github.com/diwise/cloud-datastore/pkg/datastore/credentials"
	"github.com/diwise/cloud-datastore/pkg/datastore/errors"
	"github.com/diwise/cloud-datastore/pkg/datastore/values"
	"github.com/diwise/cloud-datastore/pkg/datastore/wire"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Connection talks to the datastore RPC API of a single service endpoint.
// It is meant to be used from one goroutine at a time and coordinates at
// most one active transaction.
type Connection interface {
	RunQuery(ctx context.Context, datasetID string, query *wire.Query, namespace string) ([]*wire.Entity, error)

	// Lookup fetches a single entity and returns nil if it does not exist.
	Lookup(ctx context.Context, datasetID string, key *wire.Key) (*wire.Entity, error)
	// LookupMulti fetches any number of entities and returns the ones found,
	// possibly none.
	LookupMulti(ctx context.Context, datasetID string, keys []*wire.Key) ([]*wire.Entity, error)

	SaveEntity(ctx context.Context, datasetID string, key *wire.Key, properties map[string]any) (*wire.Key, error)
	DeleteEntity(ctx context.Context, datasetID string, key *wire.Key) (*wire.CommitResponse, error)
	DeleteEntities(ctx context.Context, datasetID string, keys []*wire.Key) (*wire.CommitResponse, error)

	BeginTransaction(ctx context.Context, datasetID string) ([]byte, error)
	Commit(ctx context.Context, datasetID string, mutation *wire.Mutation, transaction []byte) (*wire.CommitResponse, error)
	RollbackTransaction(ctx context.Context, datasetID string, transaction []byte) error

	// Transaction returns the transaction currently installed on this
	// connection, if any.
	Transaction() Transaction
	SetTransaction(tx Transaction)
}

// Transaction is the part of a transaction the connection needs to know about
// to run reads inside it.
type Transaction interface {
	ID() []byte
}

const (
	DefaultAPIBaseURL string = "https://www.googleapis.com"
	DefaultAPIVersion string = "v1beta2"

	apiURLTemplate string = "%s/datastore/%s/datasets/%s/%s"
)

const (
	MethodRunQuery         string = "runQuery"
	MethodLookup           string = "lookup"
	MethodCommit           string = "commit"
	MethodBeginTransaction string = "beginTransaction"
	MethodRollback         string = "rollback"
)

// BuildAPIURL returns the endpoint for a single API method. Empty baseURL and
// apiVersion fall back to the public service defaults.
func BuildAPIURL(datasetID, method, baseURL, apiVersion string) string {
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	return fmt.Sprintf(apiURLTemplate, strings.TrimSuffix(baseURL, "/"), apiVersion, datasetID, method)
}

func BaseURL(baseURL string) func(*connection) {
	return func(c *connection) {
		c.baseURL = baseURL
	}
}

func APIVersion(version string) func(*connection) {
	return func(c *connection) {
		c.apiVersion = version
	}
}

func WithCredentials(authorizer credentials.Authorizer) func(*connection) {
	return func(c *connection) {
		c.authorizer = authorizer
	}
}

// WithHTTPClient replaces the default otelhttp instrumented client. The
// credentials, if any, are still applied on top of it.
func WithHTTPClient(httpClient *http.Client) func(*connection) {
	return func(c *connection) {
		c.httpClient = httpClient
	}
}

func Debug(enabled string) func(*connection) {
	return func(c *connection) {
		c.debug = (enabled == "true")
	}
}

func NewConnection(options ...func(*connection)) Connection {
	c := &connection{
		baseURL:    DefaultAPIBaseURL,
		apiVersion: DefaultAPIVersion,
	}

	for _, option := range options {
		option(c)
	}

	return c
}

const (
	TraceAttributeDatasetID string = "dataset-id"
	TraceAttributeRPCMethod string = "rpc-method"
)

var tracer = otel.Tracer("datastore-client")

type connection struct {
	baseURL    string
	apiVersion string
	debug      bool

	authorizer credentials.Authorizer

	once       sync.Once
	httpClient *http.Client

	transaction Transaction
}

func (c *connection) http() *http.Client {
	c.once.Do(func() {
		if c.httpClient == nil {
			c.httpClient = &http.Client{
				Transport: otelhttp.NewTransport(http.DefaultTransport),
			}
		}

		if c.authorizer != nil {
			c.httpClient = c.authorizer.Authorize(c.httpClient)
		}
	})

	return c.httpClient
}

func (c *connection) Transaction() Transaction {
	return c.transaction
}

func (c *connection) SetTransaction(tx Transaction) {
	c.transaction = tx
}

func (c *connection) readOptions() *wire.ReadOptions {
	if c.transaction == nil || c.transaction.ID() == nil {
		return nil
	}
	return &wire.ReadOptions{Transaction: c.transaction.ID()}
}

func (c *connection) RunQuery(ctx context.Context, datasetID string, query *wire.Query, namespace string) ([]*wire.Entity, error) {
	var err error

	ctx, span := tracer.Start(ctx, "run-query",
		trace.WithAttributes(attribute.String(TraceAttributeDatasetID, datasetID)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	if query == nil {
		err = errors.NewInvalidArgumentError("run query requires a query")
		return nil, err
	}

	request := &wire.RunQueryRequest{
		ReadOptions: c.readOptions(),
		Query:       query,
	}

	if namespace != "" {
		request.PartitionID = &wire.PartitionID{Namespace: namespace}
	}

	response := &wire.RunQueryResponse{}
	err = c.rpc(ctx, datasetID, MethodRunQuery, request, response)
	if err != nil {
		return nil, err
	}

	if response.Batch == nil {
		return []*wire.Entity{}, nil
	}

	result := make([]*wire.Entity, 0, len(response.Batch.EntityResult))
	for _, er := range response.Batch.EntityResult {
		result = append(result, er.Entity)
	}

	return result, nil
}

func (c *connection) Lookup(ctx context.Context, datasetID string, key *wire.Key) (*wire.Entity, error) {
	if key == nil {
		return nil, errors.NewInvalidArgumentError("lookup requires a key")
	}

	found, err := c.LookupMulti(ctx, datasetID, []*wire.Key{key})
	if err != nil {
		return nil, err
	}

	if len(found) == 0 {
		return nil, nil
	}

	return found[0], nil
}

func (c *connection) LookupMulti(ctx context.Context, datasetID string, keys []*wire.Key) ([]*wire.Entity, error) {
	var err error

	ctx, span := tracer.Start(ctx, "lookup",
		trace.WithAttributes(attribute.String(TraceAttributeDatasetID, datasetID)),
		trace.WithAttributes(attribute.Int("key-count", len(keys))),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	for _, k := range keys {
		if k == nil {
			err = errors.NewInvalidArgumentError("lookup keys must not be nil")
			return nil, err
		}
	}

	request := &wire.LookupRequest{
		ReadOptions: c.readOptions(),
		Key:         keys,
	}

	response := &wire.LookupResponse{}
	err = c.rpc(ctx, datasetID, MethodLookup, request, response)
	if err != nil {
		return nil, err
	}

	result := make([]*wire.Entity, 0, len(response.Found))
	for _, er := range response.Found {
		result = append(result, er.Entity)
	}

	return result, nil
}

// SaveEntity writes the entity in a non-transactional commit. A partial key
// is inserted with an automatically allocated id and the completed key is
// returned. A complete key is upserted and returned as is.
func (c *connection) SaveEntity(ctx context.Context, datasetID string, key *wire.Key, properties map[string]any) (*wire.Key, error) {
	var err error

	ctx, span := tracer.Start(ctx, "save-entity",
		trace.WithAttributes(attribute.String(TraceAttributeDatasetID, datasetID)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	if key == nil || len(key.PathElement) == 0 {
		err = errors.NewInvalidArgumentError("save requires a key with a path")
		return nil, err
	}

	props, err := values.PropertiesToWire(properties)
	if err != nil {
		return nil, err
	}

	entity := &wire.Entity{Key: key, Property: props}
	mutation := &wire.Mutation{}

	autoID := IsPartial(key)
	if autoID {
		mutation.InsertAutoID = append(mutation.InsertAutoID, entity)
	} else {
		mutation.Upsert = append(mutation.Upsert, entity)
	}

	response, err := c.commit(ctx, datasetID, mutation, nil)
	if err != nil {
		return nil, err
	}

	if !autoID {
		return key, nil
	}

	if response.MutationResult == nil || len(response.MutationResult.InsertAutoIDKey) == 0 {
		err = fmt.Errorf("commit response did not contain an allocated key (%w)", errors.ErrBadResponse)
		return nil, err
	}

	return response.MutationResult.InsertAutoIDKey[0], nil
}

func (c *connection) DeleteEntity(ctx context.Context, datasetID string, key *wire.Key) (*wire.CommitResponse, error) {
	if key == nil {
		return nil, errors.NewInvalidArgumentError("delete requires a key")
	}
	return c.DeleteEntities(ctx, datasetID, []*wire.Key{key})
}

func (c *connection) DeleteEntities(ctx context.Context, datasetID string, keys []*wire.Key) (*wire.CommitResponse, error) {
	var err error

	ctx, span := tracer.Start(ctx, "delete-entities",
		trace.WithAttributes(attribute.String(TraceAttributeDatasetID, datasetID)),
		trace.WithAttributes(attribute.Int("key-count", len(keys))),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	mutation := &wire.Mutation{}
	for _, k := range keys {
		if k == nil {
			err = errors.NewInvalidArgumentError("delete keys must not be nil")
			return nil, err
		}
		mutation.Delete = append(mutation.Delete, k)
	}

	response, err := c.commit(ctx, datasetID, mutation, nil)
	return response, err
}

func (c *connection) BeginTransaction(ctx context.Context, datasetID string) ([]byte, error) {
	var err error

	ctx, span := tracer.Start(ctx, "begin-transaction",
		trace.WithAttributes(attribute.String(TraceAttributeDatasetID, datasetID)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	response := &wire.BeginTransactionResponse{}
	err = c.rpc(ctx, datasetID, MethodBeginTransaction, &wire.BeginTransactionRequest{}, response)
	if err != nil {
		return nil, err
	}

	if len(response.Transaction) == 0 {
		err = fmt.Errorf("begin transaction response did not contain a transaction (%w)", errors.ErrBadResponse)
		return nil, err
	}

	return response.Transaction, nil
}

// Commit applies the mutation. A nil transaction makes it a non-transactional
// commit.
func (c *connection) Commit(ctx context.Context, datasetID string, mutation *wire.Mutation, transaction []byte) (*wire.CommitResponse, error) {
	var err error

	ctx, span := tracer.Start(ctx, "commit",
		trace.WithAttributes(attribute.String(TraceAttributeDatasetID, datasetID)),
		trace.WithAttributes(attribute.Bool("transactional", transaction != nil)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	response, err := c.commit(ctx, datasetID, mutation, transaction)
	return response, err
}

func (c *connection) commit(ctx context.Context, datasetID string, mutation *wire.Mutation, transaction []byte) (*wire.CommitResponse, error) {
	request := &wire.CommitRequest{
		Mutation: mutation,
		Mode:     wire.NonTransactional,
	}

	if transaction != nil {
		request.Transaction = transaction
		request.Mode = wire.Transactional
	}

	response := &wire.CommitResponse{}
	err := c.rpc(ctx, datasetID, MethodCommit, request, response)
	if err != nil {
		return nil, err
	}

	return response, nil
}

func (c *connection) RollbackTransaction(ctx context.Context, datasetID string, transaction []byte) error {
	var err error

	ctx, span := tracer.Start(ctx, "rollback",
		trace.WithAttributes(attribute.String(TraceAttributeDatasetID, datasetID)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	if transaction == nil {
		err = errors.NewInvalidArgumentError("rollback requires a transaction")
		return err
	}

	err = c.rpc(ctx, datasetID, MethodRollback, &wire.RollbackRequest{Transaction: transaction}, &wire.RollbackResponse{})
	return err
}

func (c *connection) rpc(ctx context.Context, datasetID, method string, request, response wire.Message) error {
	body, err := wire.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %s (%w)", method, err.Error(), errors.ErrInternal)
	}

	resp, respBody, err := c.callDatastore(ctx, datasetID, method, body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return errors.NewRequestFailedError(method, resp.StatusCode, respBody)
	}

	err = wire.Unmarshal(respBody, response)
	if err != nil {
		if c.debug && len(respBody) < 1000 {
			return fmt.Errorf("decoding of %s response %x failed: %s (%w)", method, respBody, err.Error(), errors.ErrBadResponse)
		}
		return fmt.Errorf("decoding of %s response failed: %s (%w)", method, err.Error(), errors.ErrBadResponse)
	}

	return nil
}

func (c *connection) callDatastore(ctx context.Context, datasetID, method string, body []byte) (*http.Response, []byte, error) {
	endpoint := BuildAPIURL(datasetID, method, c.baseURL, c.apiVersion)

	log := logging.GetFromContext(ctx)
	log.Debug("calling datastore", "method", method, "url", endpoint, "size", len(body))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %s (%w)", err.Error(), errors.ErrInternal)
	}

	req.Header.Set("Content-Type", wire.ContentType)

	resp, err := c.http().Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to send request: %s (%w)", err.Error(), errors.ErrRequest)
	}

	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %s (%w)", err.Error(), errors.ErrBadResponse)
	}

	if c.debug && resp.StatusCode != http.StatusOK {
		reqbytes, _ := httputil.DumpRequest(req, false)
		respbytes, _ := httputil.DumpResponse(resp, false)

		log.Error("request failed", "request", string(reqbytes), "response", string(respbytes), "body", string(respBody))
	}

	return resp, respBody, nil
}

// IsPartial reports whether the terminal element of the key lacks both id and
// name.
func IsPartial(key *wire.Key) bool {
	if key == nil || len(key.PathElement) == 0 {
		return true
	}
	last := key.PathElement[len(key.PathElement)-1]
	return last.ID == nil && last.Name == nil
}
