package wire

type PropertyFilterOperator int32

const (
	LessThan           PropertyFilterOperator = 1
	LessThanOrEqual    PropertyFilterOperator = 2
	GreaterThan        PropertyFilterOperator = 3
	GreaterThanOrEqual PropertyFilterOperator = 4
	Equal              PropertyFilterOperator = 5
	HasAncestor        PropertyFilterOperator = 11
)

func (o PropertyFilterOperator) String() string {
	switch o {
	case LessThan:
		return "<"
	case LessThanOrEqual:
		return "<="
	case GreaterThan:
		return ">"
	case GreaterThanOrEqual:
		return ">="
	case Equal:
		return "="
	case HasAncestor:
		return "HAS_ANCESTOR"
	}
	return "UNKNOWN"
}

type CompositeFilterOperator int32

const And CompositeFilterOperator = 1

type KindExpression struct {
	Name string
}

func (k *KindExpression) appendTo(b []byte) []byte {
	return appendString(b, 1, k.Name)
}

func (k *KindExpression) unmarshal(b []byte) error {
	return walk(b, func(f field) (err error) {
		if f.num == 1 {
			k.Name, err = f.str()
		}
		return
	})
}

type PropertyReference struct {
	Name string
}

func (p *PropertyReference) appendTo(b []byte) []byte {
	return appendString(b, 2, p.Name)
}

func (p *PropertyReference) unmarshal(b []byte) error {
	return walk(b, func(f field) (err error) {
		if f.num == 2 {
			p.Name, err = f.str()
		}
		return
	})
}

type PropertyFilter struct {
	Property *PropertyReference
	Operator PropertyFilterOperator
	Value    *Value
}

func (pf *PropertyFilter) appendTo(b []byte) []byte {
	if pf.Property != nil {
		b = appendMessage(b, 1, pf.Property)
	}
	b = appendInt(b, 2, int64(pf.Operator))
	if pf.Value != nil {
		b = appendMessage(b, 3, pf.Value)
	}
	return b
}

func (pf *PropertyFilter) unmarshal(b []byte) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			pf.Property = &PropertyReference{}
			return f.message(pf.Property)
		case 2:
			op, err := f.int32()
			pf.Operator = PropertyFilterOperator(op)
			return err
		case 3:
			pf.Value = &Value{}
			return f.message(pf.Value)
		}
		return nil
	})
}

type CompositeFilter struct {
	Operator CompositeFilterOperator
	Filter   []*Filter
}

func (cf *CompositeFilter) appendTo(b []byte) []byte {
	b = appendInt(b, 1, int64(cf.Operator))
	for _, f := range cf.Filter {
		b = appendMessage(b, 2, f)
	}
	return b
}

func (cf *CompositeFilter) unmarshal(b []byte) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			op, err := f.int32()
			cf.Operator = CompositeFilterOperator(op)
			return err
		case 2:
			child := &Filter{}
			if err := f.message(child); err != nil {
				return err
			}
			cf.Filter = append(cf.Filter, child)
		}
		return nil
	})
}

// Filter holds either a composite or a single property filter.
type Filter struct {
	CompositeFilter *CompositeFilter
	PropertyFilter  *PropertyFilter
}

func (f *Filter) appendTo(b []byte) []byte {
	if f.CompositeFilter != nil {
		b = appendMessage(b, 1, f.CompositeFilter)
	}
	if f.PropertyFilter != nil {
		b = appendMessage(b, 2, f.PropertyFilter)
	}
	return b
}

func (f *Filter) unmarshal(b []byte) error {
	return walk(b, func(fld field) error {
		switch fld.num {
		case 1:
			f.CompositeFilter = &CompositeFilter{}
			return fld.message(f.CompositeFilter)
		case 2:
			f.PropertyFilter = &PropertyFilter{}
			return fld.message(f.PropertyFilter)
		}
		return nil
	})
}

type Query struct {
	Kind   []*KindExpression
	Filter *Filter
	Offset *int32
	Limit  *int32
}

func (q *Query) appendTo(b []byte) []byte {
	for _, k := range q.Kind {
		b = appendMessage(b, 3, k)
	}
	if q.Filter != nil {
		b = appendMessage(b, 4, q.Filter)
	}
	if q.Offset != nil {
		b = appendInt(b, 10, int64(*q.Offset))
	}
	if q.Limit != nil {
		b = appendInt(b, 11, int64(*q.Limit))
	}
	return b
}

func (q *Query) unmarshal(b []byte) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 3:
			k := &KindExpression{}
			if err := f.message(k); err != nil {
				return err
			}
			q.Kind = append(q.Kind, k)
		case 4:
			q.Filter = &Filter{}
			return f.message(q.Filter)
		case 10:
			offset, err := f.int32()
			q.Offset = &offset
			return err
		case 11:
			limit, err := f.int32()
			q.Limit = &limit
			return err
		}
		return nil
	})
}

type MoreResultsType int32

const (
	NotFinished           MoreResultsType = 1
	MoreResultsAfterLimit MoreResultsType = 2
	NoMoreResults         MoreResultsType = 3
)

type QueryResultBatch struct {
	EntityResultType ResultType
	EntityResult     []*EntityResult
	EndCursor        []byte
	MoreResults      MoreResultsType
	SkippedResults   int32
}

func (qb *QueryResultBatch) appendTo(b []byte) []byte {
	b = appendInt(b, 1, int64(qb.EntityResultType))
	for _, er := range qb.EntityResult {
		b = appendMessage(b, 2, er)
	}
	if qb.EndCursor != nil {
		b = appendBlob(b, 4, qb.EndCursor)
	}
	b = appendInt(b, 5, int64(qb.MoreResults))
	if qb.SkippedResults != 0 {
		b = appendInt(b, 6, int64(qb.SkippedResults))
	}
	return b
}

func (qb *QueryResultBatch) unmarshal(b []byte) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			t, err := f.int32()
			qb.EntityResultType = ResultType(t)
			return err
		case 2:
			er := &EntityResult{}
			if err := f.message(er); err != nil {
				return err
			}
			qb.EntityResult = append(qb.EntityResult, er)
		case 4:
			cursor, err := f.blob()
			qb.EndCursor = cursor
			return err
		case 5:
			more, err := f.int32()
			qb.MoreResults = MoreResultsType(more)
			return err
		case 6:
			skipped, err := f.int32()
			qb.SkippedResults = skipped
			return err
		}
		return nil
	})
}
