// Package wire holds the protocol buffer messages exchanged with the datastore
// v1beta2 "datasets" API.
//
// The schema belongs to the remote service. The messages are encoded by hand
// with protowire so that only the fields this module reads or writes need to be
// described here. Optional scalars are pointers: a nil field was not present on
// the wire, which the value codec relies on when dispatching on the populated
// variant. Unknown fields are skipped when decoding.
//
// Field numbers used by this package:
//
//	PartitionId      dataset_id=3 namespace=4
//	Key              partition_id=1 path_element=2
//	Key.PathElement  kind=1 id=2 name=3
//	Value            boolean=1 integer=2 double=3 timestamp_microseconds=4
//	                 key=5 meaning=14 indexed=15 string=17 blob=18
//	Property         name=1 value=4
//	Entity           key=1 property=2
//	EntityResult     entity=1
//	Query            kind=3 filter=4 offset=10 limit=11
//	KindExpression   name=1
//	PropertyReference name=2
//	Filter           composite_filter=1 property_filter=2
//	CompositeFilter  operator=1 filter=2
//	PropertyFilter   property=1 operator=2 value=3
//	QueryResultBatch entity_result_type=1 entity_result=2 end_cursor=4
//	                 more_results=5 skipped_results=6
//	Mutation         upsert=1 update=2 insert=3 insert_auto_id=4 delete=5 force=6
//	MutationResult   index_updates=1 insert_auto_id_key=2
//	ReadOptions      read_consistency=1 transaction=2
//	LookupRequest    read_options=1 key=3
//	LookupResponse   found=1 missing=2 deferred=3
//	RunQueryRequest  read_options=1 partition_id=2 query=3
//	RunQueryResponse batch=1
//	BeginTransactionRequest  isolation_level=1
//	BeginTransactionResponse transaction=1
//	CommitRequest    transaction=1 mutation=5 mode=6
//	CommitResponse   mutation_result=1
//	RollbackRequest  transaction=1
package wire
