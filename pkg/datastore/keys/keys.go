package keys

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/diwise/cloud-datastore/pkg/datastore/errors"
	"github.com/diwise/cloud-datastore/pkg/datastore/wire"
)

// DatasetPrefix is the storage tier prefix the service expects on dataset ids
// inside a partition.
const DatasetPrefix string = "s~"

// PathElement is a (kind, id or name) pair. An element with neither id nor
// name is incomplete and waits for the service to assign an id.
type PathElement struct {
	Kind string
	ID   int64
	Name string
}

func (pe PathElement) IsComplete() bool {
	return pe.ID != 0 || pe.Name != ""
}

func ID(kind string, id int64) PathElement {
	return PathElement{Kind: kind, ID: id}
}

func Name(kind, name string) PathElement {
	return PathElement{Kind: kind, Name: name}
}

func Incomplete(kind string) PathElement {
	return PathElement{Kind: kind}
}

// Key identifies an entity. Keys are immutable, every With* method returns a
// new key and leaves the receiver untouched.
type Key struct {
	datasetID string
	namespace string
	path      []PathElement
}

// New creates a key from path elements, ancestors first. The terminal element
// must have a kind.
func New(datasetID string, path ...PathElement) (*Key, error) {
	if len(path) == 0 {
		return nil, errors.NewInvalidArgumentError("a key requires at least one path element")
	}

	if path[len(path)-1].Kind == "" {
		return nil, errors.NewInvalidArgumentError("the terminal path element of a key requires a kind")
	}

	return &Key{
		datasetID: datasetID,
		path:      clonePath(path),
	}, nil
}

// MustNew is like New but panics on an invalid path.
func MustNew(datasetID string, path ...PathElement) *Key {
	k, err := New(datasetID, path...)
	if err != nil {
		panic(err)
	}
	return k
}

func clonePath(path []PathElement) []PathElement {
	if path == nil {
		return nil
	}
	return append(make([]PathElement, 0, len(path)), path...)
}

func (k *Key) clone() *Key {
	return &Key{
		datasetID: k.datasetID,
		namespace: k.namespace,
		path:      clonePath(k.path),
	}
}

func (k *Key) DatasetID() string {
	return k.datasetID
}

func (k *Key) Namespace() string {
	return k.namespace
}

// Path returns a copy of the key's path.
func (k *Key) Path() []PathElement {
	return clonePath(k.path)
}

func (k *Key) Kind() string {
	if len(k.path) == 0 {
		return ""
	}
	return k.path[len(k.path)-1].Kind
}

func (k *Key) ID() int64 {
	if len(k.path) == 0 {
		return 0
	}
	return k.path[len(k.path)-1].ID
}

func (k *Key) Name() string {
	if len(k.path) == 0 {
		return ""
	}
	return k.path[len(k.path)-1].Name
}

// IDOrName returns the numeric id, the name or nil for a partial key.
func (k *Key) IDOrName() any {
	if id := k.ID(); id != 0 {
		return id
	}
	if name := k.Name(); name != "" {
		return name
	}
	return nil
}

func (k *Key) IsPartial() bool {
	if len(k.path) == 0 {
		return true
	}
	return !k.path[len(k.path)-1].IsComplete()
}

// Parent returns the key of the closest ancestor or nil for a root key.
func (k *Key) Parent() *Key {
	if len(k.path) < 2 {
		return nil
	}

	parent := k.clone()
	parent.path = parent.path[:len(parent.path)-1]
	return parent
}

func (k *Key) WithDatasetID(datasetID string) *Key {
	c := k.clone()
	c.datasetID = datasetID
	return c
}

func (k *Key) WithNamespace(namespace string) *Key {
	c := k.clone()
	c.namespace = namespace
	return c
}

func (k *Key) WithPath(path []PathElement) *Key {
	c := k.clone()
	c.path = clonePath(path)
	return c
}

// WithKind replaces the kind of the terminal element, or appends a new
// incomplete element if the path is empty.
func (k *Key) WithKind(kind string) *Key {
	c := k.clone()
	if len(c.path) == 0 {
		c.path = append(c.path, Incomplete(kind))
		return c
	}
	c.path[len(c.path)-1].Kind = kind
	return c
}

func (k *Key) WithID(id int64) *Key {
	c := k.clone()
	if len(c.path) > 0 {
		c.path[len(c.path)-1].ID = id
		c.path[len(c.path)-1].Name = ""
	}
	return c
}

func (k *Key) WithName(name string) *Key {
	c := k.clone()
	if len(c.path) > 0 {
		c.path[len(c.path)-1].Name = name
		c.path[len(c.path)-1].ID = 0
	}
	return c
}

func (k *Key) Equal(other *Key) bool {
	if k == nil || other == nil {
		return k == other
	}

	if k.datasetID != other.datasetID || k.namespace != other.namespace || len(k.path) != len(other.path) {
		return false
	}

	for i := range k.path {
		if k.path[i] != other.path[i] {
			return false
		}
	}

	return true
}

// Encode returns a stable string form of the partition and path, suitable as
// a map key.
func (k *Key) Encode() string {
	var sb strings.Builder
	sb.WriteString(NormalizeDatasetID(k.datasetID))
	sb.WriteString("|")
	sb.WriteString(k.namespace)
	sb.WriteString("|")
	sb.WriteString(k.String())
	return sb.String()
}

func (k *Key) String() string {
	elements := make([]string, 0, len(k.path))
	for _, pe := range k.path {
		switch {
		case pe.ID != 0:
			elements = append(elements, pe.Kind+","+strconv.FormatInt(pe.ID, 10))
		case pe.Name != "":
			elements = append(elements, pe.Kind+","+strconv.Quote(pe.Name))
		default:
			elements = append(elements, pe.Kind)
		}
	}
	return strings.Join(elements, "/")
}

func (k *Key) GoString() string {
	return fmt.Sprintf("<Key %s %s>", k.datasetID, k.String())
}

// NormalizeDatasetID applies the storage tier prefix if it is missing.
func NormalizeDatasetID(datasetID string) string {
	if datasetID == "" || strings.HasPrefix(datasetID, DatasetPrefix) {
		return datasetID
	}
	return DatasetPrefix + datasetID
}

func ToWire(k *Key) *wire.Key {
	pb := &wire.Key{}

	if k.datasetID != "" || k.namespace != "" {
		pb.PartitionID = &wire.PartitionID{
			DatasetID: NormalizeDatasetID(k.datasetID),
			Namespace: k.namespace,
		}
	}

	for _, pe := range k.path {
		element := &wire.PathElement{Kind: pe.Kind}
		if pe.ID != 0 {
			id := pe.ID
			element.ID = &id
		} else if pe.Name != "" {
			name := pe.Name
			element.Name = &name
		}
		pb.PathElement = append(pb.PathElement, element)
	}

	return pb
}

// FromWire decodes a key. Elements that carry neither id nor name are kept as
// incomplete elements.
func FromWire(pb *wire.Key) *Key {
	k := &Key{}
	if pb == nil {
		return k
	}

	if pb.PartitionID != nil {
		k.datasetID = pb.PartitionID.DatasetID
		k.namespace = pb.PartitionID.Namespace
	}

	k.path = make([]PathElement, 0, len(pb.PathElement))
	for _, element := range pb.PathElement {
		pe := PathElement{Kind: element.Kind}
		if element.ID != nil {
			pe.ID = *element.ID
		}
		if element.Name != nil {
			pe.Name = *element.Name
		}
		k.path = append(k.path, pe)
	}

	return k
}
