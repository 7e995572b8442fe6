package wire

type Mutation struct {
	Upsert       []*Entity
	Update       []*Entity
	Insert       []*Entity
	InsertAutoID []*Entity
	Delete       []*Key
	Force        bool
}

// Len returns the number of individual operations in the mutation.
func (m *Mutation) Len() int {
	return len(m.Upsert) + len(m.Update) + len(m.Insert) + len(m.InsertAutoID) + len(m.Delete)
}

func (m *Mutation) appendTo(b []byte) []byte {
	for _, e := range m.Upsert {
		b = appendMessage(b, 1, e)
	}
	for _, e := range m.Update {
		b = appendMessage(b, 2, e)
	}
	for _, e := range m.Insert {
		b = appendMessage(b, 3, e)
	}
	for _, e := range m.InsertAutoID {
		b = appendMessage(b, 4, e)
	}
	for _, k := range m.Delete {
		b = appendMessage(b, 5, k)
	}
	if m.Force {
		b = appendBool(b, 6, true)
	}
	return b
}

func (m *Mutation) unmarshal(b []byte) error {
	entity := func(f field, dst *[]*Entity) error {
		e := &Entity{}
		if err := f.message(e); err != nil {
			return err
		}
		*dst = append(*dst, e)
		return nil
	}

	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			return entity(f, &m.Upsert)
		case 2:
			return entity(f, &m.Update)
		case 3:
			return entity(f, &m.Insert)
		case 4:
			return entity(f, &m.InsertAutoID)
		case 5:
			k := &Key{}
			if err := f.message(k); err != nil {
				return err
			}
			m.Delete = append(m.Delete, k)
		case 6:
			force, err := f.boolean()
			m.Force = force
			return err
		}
		return nil
	})
}

type MutationResult struct {
	IndexUpdates    int32
	InsertAutoIDKey []*Key
}

func (mr *MutationResult) appendTo(b []byte) []byte {
	b = appendInt(b, 1, int64(mr.IndexUpdates))
	for _, k := range mr.InsertAutoIDKey {
		b = appendMessage(b, 2, k)
	}
	return b
}

func (mr *MutationResult) unmarshal(b []byte) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			n, err := f.int32()
			mr.IndexUpdates = n
			return err
		case 2:
			k := &Key{}
			if err := f.message(k); err != nil {
				return err
			}
			mr.InsertAutoIDKey = append(mr.InsertAutoIDKey, k)
		}
		return nil
	})
}

type ReadConsistency int32

const (
	ReadConsistencyDefault  ReadConsistency = 0
	ReadConsistencyStrong   ReadConsistency = 1
	ReadConsistencyEventual ReadConsistency = 2
)

type ReadOptions struct {
	ReadConsistency ReadConsistency
	Transaction     []byte
}

func (ro *ReadOptions) appendTo(b []byte) []byte {
	if ro.ReadConsistency != ReadConsistencyDefault {
		b = appendInt(b, 1, int64(ro.ReadConsistency))
	}
	if ro.Transaction != nil {
		b = appendBlob(b, 2, ro.Transaction)
	}
	return b
}

func (ro *ReadOptions) unmarshal(b []byte) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			rc, err := f.int32()
			ro.ReadConsistency = ReadConsistency(rc)
			return err
		case 2:
			tx, err := f.blob()
			ro.Transaction = tx
			return err
		}
		return nil
	})
}

type LookupRequest struct {
	ReadOptions *ReadOptions
	Key         []*Key
}

func (r *LookupRequest) appendTo(b []byte) []byte {
	if r.ReadOptions != nil {
		b = appendMessage(b, 1, r.ReadOptions)
	}
	for _, k := range r.Key {
		b = appendMessage(b, 3, k)
	}
	return b
}

func (r *LookupRequest) unmarshal(b []byte) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			r.ReadOptions = &ReadOptions{}
			return f.message(r.ReadOptions)
		case 3:
			k := &Key{}
			if err := f.message(k); err != nil {
				return err
			}
			r.Key = append(r.Key, k)
		}
		return nil
	})
}

type LookupResponse struct {
	Found    []*EntityResult
	Missing  []*EntityResult
	Deferred []*Key
}

func (r *LookupResponse) appendTo(b []byte) []byte {
	for _, er := range r.Found {
		b = appendMessage(b, 1, er)
	}
	for _, er := range r.Missing {
		b = appendMessage(b, 2, er)
	}
	for _, k := range r.Deferred {
		b = appendMessage(b, 3, k)
	}
	return b
}

func (r *LookupResponse) unmarshal(b []byte) error {
	result := func(f field, dst *[]*EntityResult) error {
		er := &EntityResult{}
		if err := f.message(er); err != nil {
			return err
		}
		*dst = append(*dst, er)
		return nil
	}

	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			return result(f, &r.Found)
		case 2:
			return result(f, &r.Missing)
		case 3:
			k := &Key{}
			if err := f.message(k); err != nil {
				return err
			}
			r.Deferred = append(r.Deferred, k)
		}
		return nil
	})
}

type RunQueryRequest struct {
	ReadOptions *ReadOptions
	PartitionID *PartitionID
	Query       *Query
}

func (r *RunQueryRequest) appendTo(b []byte) []byte {
	if r.ReadOptions != nil {
		b = appendMessage(b, 1, r.ReadOptions)
	}
	if r.PartitionID != nil {
		b = appendMessage(b, 2, r.PartitionID)
	}
	if r.Query != nil {
		b = appendMessage(b, 3, r.Query)
	}
	return b
}

func (r *RunQueryRequest) unmarshal(b []byte) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			r.ReadOptions = &ReadOptions{}
			return f.message(r.ReadOptions)
		case 2:
			r.PartitionID = &PartitionID{}
			return f.message(r.PartitionID)
		case 3:
			r.Query = &Query{}
			return f.message(r.Query)
		}
		return nil
	})
}

type RunQueryResponse struct {
	Batch *QueryResultBatch
}

func (r *RunQueryResponse) appendTo(b []byte) []byte {
	if r.Batch != nil {
		b = appendMessage(b, 1, r.Batch)
	}
	return b
}

func (r *RunQueryResponse) unmarshal(b []byte) error {
	return walk(b, func(f field) error {
		if f.num == 1 {
			r.Batch = &QueryResultBatch{}
			return f.message(r.Batch)
		}
		return nil
	})
}

type IsolationLevel int32

const (
	Snapshot     IsolationLevel = 0
	Serializable IsolationLevel = 1
)

type BeginTransactionRequest struct {
	IsolationLevel IsolationLevel
}

func (r *BeginTransactionRequest) appendTo(b []byte) []byte {
	if r.IsolationLevel != Snapshot {
		b = appendInt(b, 1, int64(r.IsolationLevel))
	}
	return b
}

func (r *BeginTransactionRequest) unmarshal(b []byte) error {
	return walk(b, func(f field) error {
		if f.num == 1 {
			level, err := f.int32()
			r.IsolationLevel = IsolationLevel(level)
			return err
		}
		return nil
	})
}

type BeginTransactionResponse struct {
	Transaction []byte
}

func (r *BeginTransactionResponse) appendTo(b []byte) []byte {
	if r.Transaction != nil {
		b = appendBlob(b, 1, r.Transaction)
	}
	return b
}

func (r *BeginTransactionResponse) unmarshal(b []byte) error {
	return walk(b, func(f field) (err error) {
		if f.num == 1 {
			r.Transaction, err = f.blob()
		}
		return
	})
}

type CommitMode int32

const (
	Transactional    CommitMode = 1
	NonTransactional CommitMode = 2
)

type CommitRequest struct {
	Transaction []byte
	Mutation    *Mutation
	Mode        CommitMode
}

func (r *CommitRequest) appendTo(b []byte) []byte {
	if r.Transaction != nil {
		b = appendBlob(b, 1, r.Transaction)
	}
	if r.Mutation != nil {
		b = appendMessage(b, 5, r.Mutation)
	}
	if r.Mode != 0 {
		b = appendInt(b, 6, int64(r.Mode))
	}
	return b
}

func (r *CommitRequest) unmarshal(b []byte) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			tx, err := f.blob()
			r.Transaction = tx
			return err
		case 5:
			r.Mutation = &Mutation{}
			return f.message(r.Mutation)
		case 6:
			mode, err := f.int32()
			r.Mode = CommitMode(mode)
			return err
		}
		return nil
	})
}

type CommitResponse struct {
	MutationResult *MutationResult
}

func (r *CommitResponse) appendTo(b []byte) []byte {
	if r.MutationResult != nil {
		b = appendMessage(b, 1, r.MutationResult)
	}
	return b
}

func (r *CommitResponse) unmarshal(b []byte) error {
	return walk(b, func(f field) error {
		if f.num == 1 {
			r.MutationResult = &MutationResult{}
			return f.message(r.MutationResult)
		}
		return nil
	})
}

type RollbackRequest struct {
	Transaction []byte
}

func (r *RollbackRequest) appendTo(b []byte) []byte {
	if r.Transaction != nil {
		b = appendBlob(b, 1, r.Transaction)
	}
	return b
}

func (r *RollbackRequest) unmarshal(b []byte) error {
	return walk(b, func(f field) (err error) {
		if f.num == 1 {
			r.Transaction, err = f.blob()
		}
		return
	})
}

type RollbackResponse struct{}

func (r *RollbackResponse) appendTo(b []byte) []byte { return b }

func (r *RollbackResponse) unmarshal(b []byte) error {
	return walk(b, func(field) error { return nil })
}
