package wire

import (
	"errors"
	"testing"

	"github.com/matryer/is"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestPathElementEncoding(t *testing.T) {
	is := is.New(t)

	b, err := Marshal(&PathElement{Kind: "A"})

	is.NoErr(err)
	is.Equal(b, []byte{0x0a, 0x01, 'A'})
}

func TestCommitRequestSurvivesEncoding(t *testing.T) {
	is := is.New(t)

	id := int64(1234)
	name := "Toy"
	count := int64(-5)

	req := &CommitRequest{
		Mode: NonTransactional,
		Mutation: &Mutation{
			InsertAutoID: []*Entity{{
				Key: &Key{
					PartitionID: &PartitionID{DatasetID: "s~dataset"},
					PathElement: []*PathElement{{Kind: "Parent", ID: &id}, {Kind: "Thing"}},
				},
				Property: []*Property{
					{Name: "name", Value: &Value{StringValue: &name}},
					{Name: "count", Value: &Value{IntegerValue: &count}},
				},
			}},
			Delete: []*Key{{PathElement: []*PathElement{{Kind: "Thing", Name: &name}}}},
		},
	}

	b, err := Marshal(req)
	is.NoErr(err)

	decoded := &CommitRequest{}
	is.NoErr(Unmarshal(b, decoded))

	is.Equal(decoded.Mode, NonTransactional)
	is.Equal(decoded.Transaction, nil)
	is.Equal(decoded.Mutation.Len(), 2)

	e := decoded.Mutation.InsertAutoID[0]
	is.Equal(e.Key.PartitionID.DatasetID, "s~dataset")
	is.Equal(*e.Key.PathElement[0].ID, int64(1234))
	is.True(e.Key.PathElement[1].ID == nil)   // terminal element is partial
	is.True(e.Key.PathElement[1].Name == nil) // terminal element is partial
	is.Equal(*e.Property[0].Value.StringValue, "Toy")
	is.Equal(*e.Property[1].Value.IntegerValue, int64(-5))
	is.Equal(*decoded.Mutation.Delete[0].PathElement[0].Name, "Toy")
}

func TestUnknownFieldsAreSkipped(t *testing.T) {
	is := is.New(t)

	b, _ := Marshal(&KindExpression{Name: "Thing"})
	b = protowire.AppendTag(b, 99, protowire.VarintType)
	b = protowire.AppendVarint(b, 42)
	b = protowire.AppendTag(b, 98, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, 7)

	k := &KindExpression{}
	is.NoErr(Unmarshal(b, k))
	is.Equal(k.Name, "Thing")
}

func TestTruncatedMessageIsMalformed(t *testing.T) {
	is := is.New(t)

	b, _ := Marshal(&BeginTransactionResponse{Transaction: []byte("abcdef")})

	err := Unmarshal(b[:len(b)-2], &BeginTransactionResponse{})
	is.True(errors.Is(err, ErrMalformed))
}

func TestWrongWireTypeIsMalformed(t *testing.T) {
	is := is.New(t)

	b := protowire.AppendTag(nil, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, 1)

	err := Unmarshal(b, &KindExpression{})
	is.True(errors.Is(err, ErrMalformed))
}

func TestQueryResultBatchKeepsServerOrder(t *testing.T) {
	is := is.New(t)

	batch := &QueryResultBatch{EntityResultType: ResultTypeFull, MoreResults: NoMoreResults}
	for _, kind := range []string{"C", "A", "B"} {
		batch.EntityResult = append(batch.EntityResult, &EntityResult{
			Entity: &Entity{Key: &Key{PathElement: []*PathElement{{Kind: kind}}}},
		})
	}

	b, _ := Marshal(&RunQueryResponse{Batch: batch})
	resp := &RunQueryResponse{}
	is.NoErr(Unmarshal(b, resp))

	is.Equal(len(resp.Batch.EntityResult), 3)
	is.Equal(resp.Batch.EntityResult[0].Entity.Key.PathElement[0].Kind, "C")
	is.Equal(resp.Batch.EntityResult[2].Entity.Key.PathElement[0].Kind, "B")
	is.Equal(resp.Batch.MoreResults, NoMoreResults)
}
