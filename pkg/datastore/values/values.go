package values

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/diwise/cloud-datastore/pkg/datastore/errors"
	"github.com/diwise/cloud-datastore/pkg/datastore/keys"
	"github.com/diwise/cloud-datastore/pkg/datastore/wire"
)

// Normalize maps a native value onto one of the canonical property types:
// bool, int64, float64, string, time.Time (UTC, microsecond precision),
// *keys.Key or nil. Any other type is rejected.
//
// Timestamps are stored as microseconds since the epoch so anything below a
// microsecond is truncated.
func Normalize(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case bool:
		return v, nil
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case string:
		return v, nil
	case time.Time:
		return v.UTC().Truncate(time.Microsecond), nil
	case *keys.Key:
		if v == nil {
			return nil, nil
		}
		return v, nil
	}

	return nil, errors.NewUnsupportedTypeError(value)
}

// ToWire encodes a native value. A nil value encodes to a value message with
// no populated variant.
func ToWire(value any) (*wire.Value, error) {
	n, err := Normalize(value)
	if err != nil {
		return nil, err
	}

	pb := &wire.Value{}

	switch v := n.(type) {
	case bool:
		pb.BooleanValue = &v
	case int64:
		pb.IntegerValue = &v
	case float64:
		pb.DoubleValue = &v
	case string:
		pb.StringValue = &v
	case time.Time:
		us := v.UnixMicro()
		pb.TimestampMicrosecondsValue = &us
	case *keys.Key:
		pb.KeyValue = keys.ToWire(v)
	}

	return pb, nil
}

// FromWire decodes the first populated variant in the order timestamp, key,
// boolean, double, integer, string. A value with none of them populated
// decodes to nil.
func FromWire(pb *wire.Value) any {
	if pb == nil {
		return nil
	}

	switch {
	case pb.TimestampMicrosecondsValue != nil:
		return time.UnixMicro(*pb.TimestampMicrosecondsValue).UTC()
	case pb.KeyValue != nil:
		return keys.FromWire(pb.KeyValue)
	case pb.BooleanValue != nil:
		return *pb.BooleanValue
	case pb.DoubleValue != nil:
		return *pb.DoubleValue
	case pb.IntegerValue != nil:
		return *pb.IntegerValue
	case pb.StringValue != nil:
		return *pb.StringValue
	}

	return nil
}

// PropertiesToWire encodes a property map, ordered by property name.
func PropertiesToWire(properties map[string]any) ([]*wire.Property, error) {
	names := make([]string, 0, len(properties))
	for name := range properties {
		names = append(names, name)
	}
	slices.Sort(names)

	pbs := make([]*wire.Property, 0, len(names))
	for _, name := range names {
		v, err := ToWire(properties[name])
		if err != nil {
			return nil, err
		}
		pbs = append(pbs, &wire.Property{Name: name, Value: v})
	}

	return pbs, nil
}

func PropertiesFromWire(pbs []*wire.Property) map[string]any {
	properties := make(map[string]any, len(pbs))
	for _, p := range pbs {
		properties[p.Name] = FromWire(p.Value)
	}
	return properties
}

// Compare orders two canonical values of the same type. The boolean result is
// false when the values are not comparable with each other.
func Compare(a, b any) (int, bool) {
	switch x := a.(type) {
	case bool:
		y, ok := b.(bool)
		if !ok {
			return 0, false
		}
		if x == y {
			return 0, true
		}
		if !x {
			return -1, true
		}
		return 1, true
	case int64:
		y, ok := b.(int64)
		return cmp.Compare(x, y), ok
	case float64:
		y, ok := b.(float64)
		return cmp.Compare(x, y), ok
	case string:
		y, ok := b.(string)
		return strings.Compare(x, y), ok
	case time.Time:
		y, ok := b.(time.Time)
		return x.Compare(y), ok
	case *keys.Key:
		y, ok := b.(*keys.Key)
		if !ok {
			return 0, false
		}
		return strings.Compare(x.Encode(), y.Encode()), true
	case nil:
		return 0, b == nil
	}

	return 0, false
}
