package storage

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/diwise/cloud-datastore/pkg/datastore/keys"
	"github.com/diwise/cloud-datastore/pkg/datastore/wire"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/google/uuid"
)

// Store is an in memory implementation of the datastore RPC methods.
type Store interface {
	Lookup(ctx context.Context, datasetID string, req *wire.LookupRequest) (*wire.LookupResponse, error)
	RunQuery(ctx context.Context, datasetID string, req *wire.RunQueryRequest) (*wire.RunQueryResponse, error)
	BeginTransaction(ctx context.Context, datasetID string, req *wire.BeginTransactionRequest) (*wire.BeginTransactionResponse, error)
	Commit(ctx context.Context, datasetID string, req *wire.CommitRequest) (*wire.CommitResponse, error)
	Rollback(ctx context.Context, datasetID string, req *wire.RollbackRequest) (*wire.RollbackResponse, error)

	// Put stores entities directly, bypassing transactions.
	Put(datasetID string, entities ...*wire.Entity) error
	// Entities returns every entity stored in the dataset, in insertion order.
	Entities(datasetID string) []*wire.Entity
	// OpenTransactions returns the number of transactions that have been
	// begun but not yet committed or rolled back.
	OpenTransactions() int
}

// CommitListener is told about every successful commit.
type CommitListener func(ctx context.Context, datasetID string, req *wire.CommitRequest, resp *wire.CommitResponse)

type record struct {
	seq    uint64
	entity *wire.Entity
}

type store struct {
	mu sync.Mutex

	datasets     map[string]map[string]record
	transactions map[string]string
	nextID       int64
	seq          uint64

	listeners []CommitListener
}

// FirstAllocatedID is the id handed out to the first entity inserted with a
// partial key.
const FirstAllocatedID int64 = 1001

func New(listeners ...CommitListener) Store {
	return &store{
		datasets:     map[string]map[string]record{},
		transactions: map[string]string{},
		nextID:       FirstAllocatedID,
		listeners:    listeners,
	}
}

func (s *store) dataset(datasetID string) map[string]record {
	datasetID = keys.NormalizeDatasetID(datasetID)

	ds, ok := s.datasets[datasetID]
	if !ok {
		ds = map[string]record{}
		s.datasets[datasetID] = ds
	}
	return ds
}

// storageKey places keys without a partition in the dataset the request was
// sent to.
func storageKey(datasetID string, pb *wire.Key) (*keys.Key, string, error) {
	if pb == nil || len(pb.PathElement) == 0 {
		return nil, "", NewInvalidRequestError("key must have a path")
	}

	k := keys.FromWire(pb)
	if k.DatasetID() == "" {
		k = k.WithDatasetID(datasetID)
	}

	return k, k.Encode(), nil
}

func (s *store) Lookup(ctx context.Context, datasetID string, req *wire.LookupRequest) (*wire.LookupResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkReadOptions(req.ReadOptions); err != nil {
		return nil, err
	}

	ds := s.dataset(datasetID)
	resp := &wire.LookupResponse{}

	for _, pb := range req.Key {
		k, encoded, err := storageKey(datasetID, pb)
		if err != nil {
			return nil, err
		}

		if k.IsPartial() {
			return nil, NewInvalidRequestError("lookup requires complete keys")
		}

		if r, ok := ds[encoded]; ok {
			resp.Found = append(resp.Found, &wire.EntityResult{Entity: r.entity})
		} else {
			resp.Missing = append(resp.Missing, &wire.EntityResult{Entity: &wire.Entity{Key: pb}})
		}
	}

	logging.GetFromContext(ctx).Debug("lookup", "dataset", datasetID, "found", len(resp.Found), "missing", len(resp.Missing))

	return resp, nil
}

func (s *store) RunQuery(ctx context.Context, datasetID string, req *wire.RunQueryRequest) (*wire.RunQueryResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkReadOptions(req.ReadOptions); err != nil {
		return nil, err
	}

	if req.Query == nil {
		return nil, NewInvalidRequestError("run query requires a query")
	}

	namespace := ""
	if req.PartitionID != nil {
		namespace = req.PartitionID.Namespace
	}

	matcher, err := newMatcher(req.Query)
	if err != nil {
		return nil, err
	}

	records := make([]record, 0)
	for _, r := range s.dataset(datasetID) {
		k := keys.FromWire(r.entity.Key)
		if k.Namespace() != namespace {
			continue
		}
		if matcher.matches(k, r.entity) {
			records = append(records, r)
		}
	}

	slices.SortFunc(records, func(a, b record) int {
		return cmp.Compare(a.seq, b.seq)
	})

	if req.Query.Offset != nil {
		offset := min(int(max(*req.Query.Offset, 0)), len(records))
		records = records[offset:]
	}

	more := wire.NoMoreResults
	if req.Query.Limit != nil && int(*req.Query.Limit) < len(records) {
		records = records[:max(*req.Query.Limit, 0)]
		more = wire.MoreResultsAfterLimit
	}

	batch := &wire.QueryResultBatch{
		EntityResultType: wire.ResultTypeFull,
		MoreResults:      more,
	}

	for _, r := range records {
		batch.EntityResult = append(batch.EntityResult, &wire.EntityResult{Entity: r.entity})
	}

	logging.GetFromContext(ctx).Debug("query", "dataset", datasetID, "results", len(records))

	return &wire.RunQueryResponse{Batch: batch}, nil
}

func (s *store) BeginTransaction(ctx context.Context, datasetID string, req *wire.BeginTransactionRequest) (*wire.BeginTransactionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	handle := uuid.New().String()
	s.transactions[handle] = keys.NormalizeDatasetID(datasetID)

	logging.GetFromContext(ctx).Debug("transaction started", "dataset", datasetID, "transaction", handle)

	return &wire.BeginTransactionResponse{Transaction: []byte(handle)}, nil
}

func (s *store) Commit(ctx context.Context, datasetID string, req *wire.CommitRequest) (*wire.CommitResponse, error) {
	resp, err := s.commit(datasetID, req)
	if err != nil {
		return nil, err
	}

	logging.GetFromContext(ctx).Debug("commit", "dataset", datasetID, "mode", req.Mode, "index_updates", resp.MutationResult.IndexUpdates)

	for _, listener := range s.listeners {
		listener(ctx, datasetID, req, resp)
	}

	return resp, nil
}

func (s *store) commit(datasetID string, req *wire.CommitRequest) (*wire.CommitResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch req.Mode {
	case wire.Transactional:
		if err := s.endTransaction(datasetID, req.Transaction); err != nil {
			return nil, err
		}
	case wire.NonTransactional:
		if req.Transaction != nil {
			return nil, NewInvalidRequestError("a non transactional commit can not carry a transaction")
		}
	default:
		return nil, NewInvalidRequestError("unknown commit mode")
	}

	result := &wire.MutationResult{}
	m := req.Mutation
	if m == nil {
		return &wire.CommitResponse{MutationResult: result}, nil
	}

	ds := s.dataset(datasetID)

	if err := s.validate(datasetID, ds, m); err != nil {
		return nil, err
	}

	for _, e := range slices.Concat(m.Upsert, m.Update, m.Insert) {
		_, encoded, _ := storageKey(datasetID, e.Key)
		s.put(ds, encoded, e)
		result.IndexUpdates += indexUpdates(e)
	}

	for _, e := range m.InsertAutoID {
		id := s.nextID
		s.nextID++

		allocated := completeKey(e.Key, id)
		_, encoded, _ := storageKey(datasetID, allocated)
		s.put(ds, encoded, &wire.Entity{Key: allocated, Property: e.Property})

		result.InsertAutoIDKey = append(result.InsertAutoIDKey, allocated)
		result.IndexUpdates += indexUpdates(e)
	}

	for _, pb := range m.Delete {
		_, encoded, _ := storageKey(datasetID, pb)
		if r, ok := ds[encoded]; ok {
			delete(ds, encoded)
			result.IndexUpdates += indexUpdates(r.entity)
		}
	}

	return &wire.CommitResponse{MutationResult: result}, nil
}

// validate checks the whole mutation before anything is applied so that a
// commit is all or nothing.
func (s *store) validate(datasetID string, ds map[string]record, m *wire.Mutation) error {
	for _, e := range slices.Concat(m.Upsert, m.Update, m.Insert) {
		k, _, err := storageKey(datasetID, e.Key)
		if err != nil {
			return err
		}
		if k.IsPartial() {
			return NewInvalidRequestError("upsert, update and insert require complete keys")
		}
	}

	for _, e := range m.Update {
		_, encoded, _ := storageKey(datasetID, e.Key)
		if _, ok := ds[encoded]; !ok && !m.Force {
			return NewNotFoundError("no entity to update with key " + encoded)
		}
	}

	for _, e := range m.Insert {
		_, encoded, _ := storageKey(datasetID, e.Key)
		if _, ok := ds[encoded]; ok {
			return NewAlreadyExistsError("an entity with key " + encoded + " already exists")
		}
	}

	for _, e := range m.InsertAutoID {
		k, _, err := storageKey(datasetID, e.Key)
		if err != nil {
			return err
		}
		if !k.IsPartial() {
			return NewInvalidRequestError("insert with auto id requires a partial key")
		}
	}

	for _, pb := range m.Delete {
		k, _, err := storageKey(datasetID, pb)
		if err != nil {
			return err
		}
		if k.IsPartial() {
			return NewInvalidRequestError("delete requires complete keys")
		}
	}

	return nil
}

func (s *store) put(ds map[string]record, encoded string, e *wire.Entity) {
	r, ok := ds[encoded]
	if !ok {
		s.seq++
		r.seq = s.seq
	}
	r.entity = e
	ds[encoded] = r
}

func (s *store) Rollback(ctx context.Context, datasetID string, req *wire.RollbackRequest) (*wire.RollbackResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.endTransaction(datasetID, req.Transaction); err != nil {
		return nil, err
	}

	logging.GetFromContext(ctx).Debug("transaction rolled back", "dataset", datasetID)

	return &wire.RollbackResponse{}, nil
}

func (s *store) endTransaction(datasetID string, handle []byte) error {
	owner, ok := s.transactions[string(handle)]
	if !ok || owner != keys.NormalizeDatasetID(datasetID) {
		return NewUnknownTransactionError(handle)
	}

	delete(s.transactions, string(handle))
	return nil
}

func (s *store) checkReadOptions(ro *wire.ReadOptions) error {
	if ro == nil || ro.Transaction == nil {
		return nil
	}

	if _, ok := s.transactions[string(ro.Transaction)]; !ok {
		return NewUnknownTransactionError(ro.Transaction)
	}

	return nil
}

func (s *store) Put(datasetID string, entities ...*wire.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ds := s.dataset(datasetID)

	for _, e := range entities {
		k, encoded, err := storageKey(datasetID, e.Key)
		if err != nil {
			return err
		}
		if k.IsPartial() {
			return NewInvalidRequestError("put requires complete keys")
		}
		s.put(ds, encoded, e)
	}

	return nil
}

func (s *store) Entities(datasetID string) []*wire.Entity {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]record, 0)
	for _, r := range s.dataset(datasetID) {
		records = append(records, r)
	}

	slices.SortFunc(records, func(a, b record) int {
		return cmp.Compare(a.seq, b.seq)
	})

	entities := make([]*wire.Entity, 0, len(records))
	for _, r := range records {
		entities = append(entities, r.entity)
	}

	return entities
}

func (s *store) OpenTransactions() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.transactions)
}

func completeKey(pb *wire.Key, id int64) *wire.Key {
	k := &wire.Key{PartitionID: pb.PartitionID}

	for i, pe := range pb.PathElement {
		element := &wire.PathElement{Kind: pe.Kind, ID: pe.ID, Name: pe.Name}
		if i == len(pb.PathElement)-1 {
			element.ID = &id
			element.Name = nil
		}
		k.PathElement = append(k.PathElement, element)
	}

	return k
}

// indexUpdates approximates the index writes of an entity as one per
// property plus one for the key.
func indexUpdates(e *wire.Entity) int32 {
	return int32(len(e.Property) + 1)
}
