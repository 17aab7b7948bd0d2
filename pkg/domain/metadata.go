package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
)

// MetaShots is the metadata key carrying the shot count of a measurement task.
const MetaShots = "shots"

type ValueKind uint8

const (
	KindString ValueKind = iota
	KindInt
	KindFloat
	KindBool
	// KindRaw holds any JSON the recorder did not produce itself (objects,
	// arrays, null). It round-trips untouched.
	KindRaw
)

var errInvalidValue = errors.New("invalid metadata value")

// Value is a primitive metadata value.
type Value struct {
	kind ValueKind
	s    string
	i    int64
	f    float64
	b    bool
	raw  json.RawMessage
}

func String(s string) Value     { return Value{kind: KindString, s: s} }
func Int(i int64) Value         { return Value{kind: KindInt, i: i} }
func Float(f float64) Value     { return Value{kind: KindFloat, f: f} }
func Bool(b bool) Value         { return Value{kind: KindBool, b: b} }
func (v Value) Kind() ValueKind { return v.kind }

// Int reports the value as an integer. Floats with no fractional part convert.
func (v Value) Int() (int64, bool) {
	switch v.kind {
	case KindInt:
		return v.i, true
	case KindFloat:
		// -2^63 is exact in float64; 2^63 is not representable as int64.
		if v.f == math.Trunc(v.f) && v.f >= math.MinInt64 && v.f < -math.MinInt64 {
			return int64(v.f), true
		}
	}
	return 0, false
}

func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	}
	return 0, false
}

func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return string(v.raw)
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.s)
	case KindInt:
		return []byte(strconv.FormatInt(v.i, 10)), nil
	case KindFloat:
		return json.Marshal(v.f)
	case KindBool:
		return json.Marshal(v.b)
	default:
		if len(v.raw) == 0 {
			return []byte("null"), nil
		}
		return v.raw, nil
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		*v = Value{kind: KindRaw, raw: json.RawMessage("null")}
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = String(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Bool(b)
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		if i, err := strconv.ParseInt(string(data), 10, 64); err == nil {
			*v = Int(i)
			return nil
		}
		f, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return err
		}
		*v = Float(f)
	default:
		if !json.Valid(data) {
			return errInvalidValue
		}
		*v = Value{kind: KindRaw, raw: append(json.RawMessage(nil), data...)}
	}
	return nil
}

// Metadata is the open key/value extension attached to a task. Unknown keys
// are carried through aggregation untouched.
type Metadata map[string]Value

// Shots returns the shot count recorded on a measurement task, if any.
func (m Metadata) Shots() (int64, bool) {
	v, ok := m[MetaShots]
	if !ok {
		return 0, false
	}
	return v.Int()
}
