package keys

import (
	"errors"
	"testing"

	dserrors "github.com/diwise/cloud-datastore/pkg/datastore/errors"
	"github.com/diwise/cloud-datastore/pkg/datastore/wire"
	"github.com/matryer/is"
)

func TestNewRequiresATerminalKind(t *testing.T) {
	is := is.New(t)

	_, err := New("dataset")
	is.True(errors.Is(err, dserrors.ErrInvalidArgument))

	_, err = New("dataset", ID("Parent", 1), Incomplete(""))
	is.True(errors.Is(err, dserrors.ErrInvalidArgument))

	k, err := New("dataset", Incomplete("Thing"))
	is.NoErr(err)
	is.Equal(k.Kind(), "Thing")
	is.True(k.IsPartial())
	is.Equal(k.IDOrName(), nil)
}

func TestDerivedAttributes(t *testing.T) {
	is := is.New(t)

	k := MustNew("dataset", Name("Shop", "north"), ID("Thing", 42))

	is.Equal(k.Kind(), "Thing")
	is.Equal(k.ID(), int64(42))
	is.Equal(k.IDOrName(), int64(42))
	is.True(!k.IsPartial())
	is.Equal(k.String(), `Shop,"north"/Thing,42`)

	parent := k.Parent()
	is.Equal(parent.Kind(), "Shop")
	is.Equal(parent.Name(), "north")
	is.Equal(parent.IDOrName(), "north")
	is.True(parent.Parent() == nil) // root key has no parent
}

func TestMutatorsReturnNewKeys(t *testing.T) {
	is := is.New(t)

	k := MustNew("dataset", ID("Parent", 1), Incomplete("Thing"))

	withID := k.WithID(99)
	withName := withID.WithName("toy")
	withKind := k.WithKind("Other")
	withNamespace := k.WithNamespace("ns")
	withDataset := k.WithDatasetID("other")

	is.True(k.IsPartial()) // receiver must not change
	is.Equal(k.Kind(), "Thing")
	is.Equal(k.Namespace(), "")
	is.Equal(k.DatasetID(), "dataset")

	is.Equal(withID.ID(), int64(99))
	is.Equal(withName.Name(), "toy")
	is.Equal(withName.ID(), int64(0)) // setting a name clears the id
	is.Equal(withKind.Kind(), "Other")
	is.Equal(withNamespace.Namespace(), "ns")
	is.Equal(withDataset.DatasetID(), "other")
}

func TestPathIsCopied(t *testing.T) {
	is := is.New(t)

	path := []PathElement{ID("Parent", 1), Incomplete("Thing")}
	k := MustNew("dataset", path...)

	path[1].Kind = "Changed"
	is.Equal(k.Kind(), "Thing")

	p := k.Path()
	p[1].Kind = "Changed"
	is.Equal(k.Kind(), "Thing")

	other := k.WithPath([]PathElement{Name("Root", "r")})
	is.Equal(other.Kind(), "Root")
	is.Equal(len(k.Path()), 2)
}

func TestDatasetPrefixIsApplied(t *testing.T) {
	is := is.New(t)

	pb := ToWire(MustNew("dataset", Incomplete("Thing")))
	is.Equal(pb.PartitionID.DatasetID, "s~dataset")

	pb = ToWire(MustNew("s~dataset", Incomplete("Thing")))
	is.Equal(pb.PartitionID.DatasetID, "s~dataset")
}

func TestWireRoundTrip(t *testing.T) {
	is := is.New(t)

	for _, k := range []*Key{
		MustNew("dataset", Incomplete("Thing")),
		MustNew("dataset", ID("Parent", 7), Name("Thing", "toy")).WithNamespace("ns"),
		MustNew("s~dataset", Name("A", "a"), ID("B", 2), Incomplete("C")),
	} {
		decoded := FromWire(ToWire(k))

		is.True(decoded.Equal(k.WithDatasetID(NormalizeDatasetID(k.DatasetID()))))
		is.Equal(decoded.Namespace(), k.Namespace())
		is.Equal(decoded.Path(), k.Path())
	}
}

func TestFromWireToleratesIncompleteAncestors(t *testing.T) {
	is := is.New(t)

	id := int64(5)
	k := FromWire(&wire.Key{
		PartitionID: &wire.PartitionID{DatasetID: "s~dataset"},
		PathElement: []*wire.PathElement{{Kind: "Ancestor"}, {Kind: "Thing", ID: &id}},
	})

	is.Equal(k.Kind(), "Thing")
	is.Equal(k.ID(), int64(5))
	is.True(!k.Path()[0].IsComplete())
	is.True(k.Parent().IsPartial())
}

func TestEncodeIsStable(t *testing.T) {
	is := is.New(t)

	a := MustNew("dataset", ID("Thing", 1))
	b := MustNew("s~dataset", ID("Thing", 1))

	is.Equal(a.Encode(), b.Encode())
	is.True(a.Encode() != a.WithNamespace("ns").Encode())
}
