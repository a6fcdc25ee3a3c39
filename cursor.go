package connpager

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"math"

	"github.com/pkg/errors"
)

var _encoder = base64.RawURLEncoding

// Cursor is the decoded position of a row inside a connection. It holds the
// cursor prefix values followed by exactly one more element:
//
//	[P1, P2, ... Pk, [V1, V2, ... Vn]]  - values of the n order keys of the row
//	[P1, P2, ... Pk, R]                 - row number R when there is no ordering
//
// The JSON form of a Cursor is identical to the "__cursor" value built by the
// database, so a cursor read from a page and a cursor decoded from a token are
// interchangeable.
type Cursor []any

// NewCursor builds a cursor for a row of an ordered connection.
func NewCursor(prefix []any, values ...any) Cursor {
	ret := make(Cursor, 0, len(prefix)+1)
	ret = append(ret, prefix...)

	return append(ret, append([]any(nil), values...))
}

// NewRowNumberCursor builds a cursor for a row of an unordered connection.
func NewRowNumberCursor(prefix []any, rowNumber int64) Cursor {
	ret := make(Cursor, 0, len(prefix)+1)
	ret = append(ret, prefix...)

	return append(ret, rowNumber)
}

// DecodeCursor attempts to parse a base64 encoded token into a Cursor. An
// empty token decodes into a nil cursor.
func DecodeCursor(token string) (Cursor, error) {
	if len(token) == 0 {
		return nil, nil
	}

	jsonData, err := _encoder.DecodeString(token)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode base64 encoded cursor")
	}

	decoded, err := decodeJSON(jsonData)
	if err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal json encoded cursor")
	}

	elems, ok := decoded.([]any)
	if !ok {
		return nil, errors.New("json encoded cursor is not a list")
	}

	return elems, nil
}

// String - implements fmt.Stringer. Returns the opaque token of the cursor.
func (c Cursor) String() string {
	if c.IsEmpty() {
		return ""
	}

	jTok, err := json.Marshal([]any(c))
	if err != nil {
		panic(errors.Wrap(err, "cannot marshal cursor value"))
	}

	var buf bytes.Buffer
	if err = json.Compact(&buf, jTok); err != nil {
		panic(errors.Wrap(err, "cannot compact cursor value"))
	}

	return _encoder.EncodeToString(buf.Bytes())
}

// IsEmpty reports whether the cursor carries no position at all.
func (c Cursor) IsEmpty() bool {
	return len(c) == 0
}

// decodeJSON unmarshals data keeping integers exact: integral numbers become
// int64, other numbers float64.
func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}

	return normalizeJSONValue(v), nil
}

func normalizeJSONValue(v any) any {
	switch vt := v.(type) {
	case json.Number:
		if i, err := vt.Int64(); err == nil {
			return i
		}
		if f, err := vt.Float64(); err == nil {
			return f
		}

		return vt.String()
	case []any:
		for i := range vt {
			vt[i] = normalizeJSONValue(vt[i])
		}

		return vt
	case map[string]any:
		for k := range vt {
			vt[k] = normalizeJSONValue(vt[k])
		}

		return vt
	default:
		return v
	}
}

// asRowNumber accepts any integral value that can be a row number.
func asRowNumber(v any) (int64, bool) {
	var n int64
	switch vt := v.(type) {
	case int:
		n = int64(vt)
	case int8:
		n = int64(vt)
	case int16:
		n = int64(vt)
	case int32:
		n = int64(vt)
	case int64:
		n = vt
	case uint:
		if uint64(vt) > math.MaxInt64 {
			return 0, false
		}
		n = int64(vt)
	case uint8:
		n = int64(vt)
	case uint16:
		n = int64(vt)
	case uint32:
		n = int64(vt)
	case uint64:
		if vt > math.MaxInt64 {
			return 0, false
		}
		n = int64(vt)
	case float64:
		if vt != math.Trunc(vt) || vt > math.MaxInt64 || math.IsNaN(vt) {
			return 0, false
		}
		n = int64(vt)
	default:
		return 0, false
	}

	return n, n >= 0
}

// isScalar reports whether v can be bound as a single comparison value.
func isScalar(v any) bool {
	switch v.(type) {
	case []any, map[string]any:
		return false
	default:
		return true
	}
}

// canonicalJSON is used to compare cursor prefix values independent of the Go
// numeric type they were decoded into.
func canonicalJSON(v any) string {
	data, err := json.Marshal(normalizeJSONValue(v))
	if err != nil {
		return ""
	}

	return string(data)
}
