// Package node implements the late-bound, lazily-evaluated property map
// ("PropertyMap") that carries per-visit context through the traversal
// engine, plus the [Node] wrapper that expression and scanner visitors
// actually see.
package node

import (
	"io"
	"time"
)

// Kind tags the variant held by a [Value].
type Kind int

// The closed set of property value variants (a tagged-union option).
const (
	KindUndefined Kind = iota
	KindString
	KindInteger
	KindLong
	KindDate
	KindBoolean
	KindStream
	KindByteArray
)

// Value is a single typed property value. Only the field matching Kind
// is meaningful; the others are zero.
type Value struct {
	Kind   Kind
	Str    string
	Int    int32
	Long   int64
	Date   time.Time
	Bool   bool
	Stream io.Reader
	Bytes  []byte
}

// String renders the value the way a template substitution or -printf
// would, regardless of its underlying Kind.
func (v Value) String() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindInteger:
		return itoa64(int64(v.Int))
	case KindLong:
		return itoa64(v.Long)
	case KindDate:
		return v.Date.Format(time.RFC3339)
	case KindBoolean:
		if v.Bool {
			return "true"
		}

		return "false"
	case KindByteArray:
		return string(v.Bytes)
	case KindStream, KindUndefined:
		return ""
	default:
		return ""
	}
}

// Truthy implements the property-boolean test (true iff the named
// property is truthy): strings are truthy unless empty or "false",
// numbers unless zero, booleans as themselves, everything else (streams,
// byte arrays, undefined) is truthy iff present and non-empty.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindString:
		return v.Str != "" && v.Str != "false"
	case KindInteger:
		return v.Int != 0
	case KindLong:
		return v.Long != 0
	case KindDate:
		return !v.Date.IsZero()
	case KindBoolean:
		return v.Bool
	case KindByteArray:
		return len(v.Bytes) > 0
	case KindStream:
		return v.Stream != nil
	case KindUndefined:
		return false
	default:
		return false
	}
}

func itoa64(n int64) string {
	if n == 0 {
		return "0"
	}

	neg := n < 0
	if neg {
		n = -n
	}

	var buf [20]byte

	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}

	return string(buf[i:])
}

// StringOf is a convenience constructor for a KindString [Value].
func StringOf(s string) Value { return Value{Kind: KindString, Str: s} }

// LongOf is a convenience constructor for a KindLong [Value].
func LongOf(n int64) Value { return Value{Kind: KindLong, Long: n} }

// BoolOf is a convenience constructor for a KindBoolean [Value].
func BoolOf(b bool) Value { return Value{Kind: KindBoolean, Bool: b} }

// DateOf is a convenience constructor for a KindDate [Value].
func DateOf(t time.Time) Value { return Value{Kind: KindDate, Date: t} }

// StreamOf is a convenience constructor for a KindStream [Value].
func StreamOf(r io.Reader) Value { return Value{Kind: KindStream, Stream: r} }
