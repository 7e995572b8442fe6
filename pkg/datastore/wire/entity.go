package wire

// PartitionID scopes keys and queries to a dataset and namespace.
type PartitionID struct {
	DatasetID string
	Namespace string
}

func (p *PartitionID) appendTo(b []byte) []byte {
	if p.DatasetID != "" {
		b = appendString(b, 3, p.DatasetID)
	}
	if p.Namespace != "" {
		b = appendString(b, 4, p.Namespace)
	}
	return b
}

func (p *PartitionID) unmarshal(b []byte) error {
	return walk(b, func(f field) (err error) {
		switch f.num {
		case 3:
			p.DatasetID, err = f.str()
		case 4:
			p.Namespace, err = f.str()
		}
		return
	})
}

// PathElement is one (kind, id or name) step of a key path. Both ID and Name
// are nil for the terminal element of a partial key.
type PathElement struct {
	Kind string
	ID   *int64
	Name *string
}

func (pe *PathElement) appendTo(b []byte) []byte {
	b = appendString(b, 1, pe.Kind)
	if pe.ID != nil {
		b = appendInt(b, 2, *pe.ID)
	}
	if pe.Name != nil {
		b = appendString(b, 3, *pe.Name)
	}
	return b
}

func (pe *PathElement) unmarshal(b []byte) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			kind, err := f.str()
			pe.Kind = kind
			return err
		case 2:
			id, err := f.int64()
			pe.ID = &id
			return err
		case 3:
			name, err := f.str()
			pe.Name = &name
			return err
		}
		return nil
	})
}

type Key struct {
	PartitionID *PartitionID
	PathElement []*PathElement
}

func (k *Key) appendTo(b []byte) []byte {
	if k.PartitionID != nil {
		b = appendMessage(b, 1, k.PartitionID)
	}
	for _, pe := range k.PathElement {
		b = appendMessage(b, 2, pe)
	}
	return b
}

func (k *Key) unmarshal(b []byte) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			k.PartitionID = &PartitionID{}
			return f.message(k.PartitionID)
		case 2:
			pe := &PathElement{}
			if err := f.message(pe); err != nil {
				return err
			}
			k.PathElement = append(k.PathElement, pe)
		}
		return nil
	})
}

// Value holds at most one populated variant. Blob values are decoded so that
// they survive a round trip through a fake server but are not produced by the
// value codec.
type Value struct {
	BooleanValue               *bool
	IntegerValue               *int64
	DoubleValue                *float64
	TimestampMicrosecondsValue *int64
	KeyValue                   *Key
	StringValue                *string
	BlobValue                  []byte
	Meaning                    *int32
	Indexed                    *bool
}

func (v *Value) appendTo(b []byte) []byte {
	if v.BooleanValue != nil {
		b = appendBool(b, 1, *v.BooleanValue)
	}
	if v.IntegerValue != nil {
		b = appendInt(b, 2, *v.IntegerValue)
	}
	if v.DoubleValue != nil {
		b = appendDouble(b, 3, *v.DoubleValue)
	}
	if v.TimestampMicrosecondsValue != nil {
		b = appendInt(b, 4, *v.TimestampMicrosecondsValue)
	}
	if v.KeyValue != nil {
		b = appendMessage(b, 5, v.KeyValue)
	}
	if v.Meaning != nil {
		b = appendInt(b, 14, int64(*v.Meaning))
	}
	if v.Indexed != nil {
		b = appendBool(b, 15, *v.Indexed)
	}
	if v.StringValue != nil {
		b = appendString(b, 17, *v.StringValue)
	}
	if v.BlobValue != nil {
		b = appendBlob(b, 18, v.BlobValue)
	}
	return b
}

func (v *Value) unmarshal(b []byte) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			x, err := f.boolean()
			v.BooleanValue = &x
			return err
		case 2:
			x, err := f.int64()
			v.IntegerValue = &x
			return err
		case 3:
			x, err := f.double()
			v.DoubleValue = &x
			return err
		case 4:
			x, err := f.int64()
			v.TimestampMicrosecondsValue = &x
			return err
		case 5:
			v.KeyValue = &Key{}
			return f.message(v.KeyValue)
		case 14:
			x, err := f.int32()
			v.Meaning = &x
			return err
		case 15:
			x, err := f.boolean()
			v.Indexed = &x
			return err
		case 17:
			x, err := f.str()
			v.StringValue = &x
			return err
		case 18:
			x, err := f.blob()
			v.BlobValue = x
			return err
		}
		return nil
	})
}

type Property struct {
	Name  string
	Value *Value
}

func (p *Property) appendTo(b []byte) []byte {
	b = appendString(b, 1, p.Name)
	if p.Value != nil {
		b = appendMessage(b, 4, p.Value)
	}
	return b
}

func (p *Property) unmarshal(b []byte) error {
	return walk(b, func(f field) (err error) {
		switch f.num {
		case 1:
			p.Name, err = f.str()
		case 4:
			p.Value = &Value{}
			err = f.message(p.Value)
		}
		return
	})
}

type Entity struct {
	Key      *Key
	Property []*Property
}

func (e *Entity) appendTo(b []byte) []byte {
	if e.Key != nil {
		b = appendMessage(b, 1, e.Key)
	}
	for _, p := range e.Property {
		b = appendMessage(b, 2, p)
	}
	return b
}

func (e *Entity) unmarshal(b []byte) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			e.Key = &Key{}
			return f.message(e.Key)
		case 2:
			p := &Property{}
			if err := f.message(p); err != nil {
				return err
			}
			e.Property = append(e.Property, p)
		}
		return nil
	})
}

type ResultType int32

const (
	ResultTypeFull       ResultType = 1
	ResultTypeProjection ResultType = 2
	ResultTypeKeyOnly    ResultType = 3
)

type EntityResult struct {
	Entity *Entity
}

func (er *EntityResult) appendTo(b []byte) []byte {
	if er.Entity != nil {
		b = appendMessage(b, 1, er.Entity)
	}
	return b
}

func (er *EntityResult) unmarshal(b []byte) error {
	return walk(b, func(f field) error {
		if f.num == 1 {
			er.Entity = &Entity{}
			return f.message(er.Entity)
		}
		return nil
	})
}
