package value

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/iancoleman/orderedmap"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	None Kind = iota
	Bool
	Int
	Long
	Float
	Double
	String
	Array
	Map
	Object
)

var kindNames = [...]string{
	None:   "none",
	Bool:   "bool",
	Int:    "int",
	Long:   "long",
	Float:  "float",
	Double: "double",
	String: "string",
	Array:  "array",
	Map:    "map",
	Object: "object",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// IsNumeric reports whether k is one of the four numeric variants.
func (k Kind) IsNumeric() bool {
	return k == Int || k == Long || k == Float || k == Double
}

// Value is the bridge's tagged union for data crossing the native/host
// boundary. The zero Value is None.
//
// Array and Map values share their backing storage when copied, the same
// way Go slices and maps do.
type Value struct {
	kind Kind
	num  uint64 // bool, int, long, float and double payloads
	str  string
	arr  []Value
	m    *orderedmap.OrderedMap // values are always Value
	obj  any
}

// Nil is the None value.
var Nil = Value{}

// ---------------------------------------------------------------------------
// Constructors
// ---------------------------------------------------------------------------

// FromBool creates a Bool value.
func FromBool(b bool) Value {
	v := Value{kind: Bool}
	if b {
		v.num = 1
	}
	return v
}

// FromInt creates an Int (32-bit) value.
func FromInt(n int32) Value {
	return Value{kind: Int, num: uint64(int64(n))}
}

// FromLong creates a Long (64-bit) value.
func FromLong(n int64) Value {
	return Value{kind: Long, num: uint64(n)}
}

// FromFloat creates a Float (32-bit) value.
func FromFloat(f float32) Value {
	return Value{kind: Float, num: uint64(math.Float32bits(f))}
}

// FromDouble creates a Double (64-bit) value.
func FromDouble(f float64) Value {
	return Value{kind: Double, num: math.Float64bits(f)}
}

// FromString creates a String value.
func FromString(s string) Value {
	return Value{kind: String, str: s}
}

// FromArray creates an Array value holding elems. A nil slice produces an
// empty array, not None.
func FromArray(elems ...Value) Value {
	if elems == nil {
		elems = []Value{}
	}
	return Value{kind: Array, arr: elems}
}

// Entry is a single key/value pair of a Map value.
type Entry struct {
	Key   string
	Value Value
}

// NewMap creates an empty Map value.
func NewMap() Value {
	return Value{kind: Map, m: orderedmap.New()}
}

// FromEntries creates a Map value with entries in the given order. A repeated
// key keeps its first position and takes the last value.
func FromEntries(entries ...Entry) Value {
	v := NewMap()
	for _, e := range entries {
		v.m.Set(e.Key, e.Value)
	}
	return v
}

// FromObject wraps an opaque handle. The handle is whatever stable reference
// the producer chose (the marshaler stores identity registry entries).
func FromObject(handle any) Value {
	if handle == nil {
		return Nil
	}
	return Value{kind: Object, obj: handle}
}

// ---------------------------------------------------------------------------
// Inspection
// ---------------------------------------------------------------------------

// Kind returns the variant held by v.
func (v Value) Kind() Kind {
	return v.kind
}

// IsNone returns true if v is the None value.
func (v Value) IsNone() bool {
	return v.kind == None
}

// Bool returns v as a bool.
// Panics if v is not a Bool.
func (v Value) Bool() bool {
	if v.kind != Bool {
		panic("Value.Bool: not a bool")
	}
	return v.num != 0
}

// Int returns v as an int32.
// Panics if v is not an Int.
func (v Value) Int() int32 {
	if v.kind != Int {
		panic("Value.Int: not an int")
	}
	return int32(int64(v.num))
}

// Long returns v as an int64.
// Panics if v is not a Long.
func (v Value) Long() int64 {
	if v.kind != Long {
		panic("Value.Long: not a long")
	}
	return int64(v.num)
}

// Float returns v as a float32.
// Panics if v is not a Float.
func (v Value) Float() float32 {
	if v.kind != Float {
		panic("Value.Float: not a float")
	}
	return math.Float32frombits(uint32(v.num))
}

// Double returns v as a float64.
// Panics if v is not a Double.
func (v Value) Double() float64 {
	if v.kind != Double {
		panic("Value.Double: not a double")
	}
	return math.Float64frombits(v.num)
}

// Str returns v as a string.
// Panics if v is not a String.
func (v Value) Str() string {
	if v.kind != String {
		panic("Value.Str: not a string")
	}
	return v.str
}

// Object returns the opaque handle held by an Object value.
func (v Value) Object() (any, bool) {
	if v.kind != Object {
		return nil, false
	}
	return v.obj, true
}

// AsInt64 returns any numeric variant widened to int64. Floating point
// variants are truncated toward zero.
func (v Value) AsInt64() (int64, bool) {
	switch v.kind {
	case Int:
		return int64(v.Int()), true
	case Long:
		return v.Long(), true
	case Float:
		return int64(v.Float()), true
	case Double:
		return int64(v.Double()), true
	}
	return 0, false
}

// AsFloat64 returns any numeric variant converted to float64.
func (v Value) AsFloat64() (float64, bool) {
	switch v.kind {
	case Int:
		return float64(v.Int()), true
	case Long:
		return float64(v.Long()), true
	case Float:
		return float64(v.Float()), true
	case Double:
		return v.Double(), true
	}
	return 0, false
}

// ---------------------------------------------------------------------------
// Collections
// ---------------------------------------------------------------------------

// Len returns the element count of an Array or the entry count of a Map,
// and 0 for every other kind.
func (v Value) Len() int {
	switch v.kind {
	case Array:
		return len(v.arr)
	case Map:
		return len(v.m.Keys())
	}
	return 0
}

// Index returns the i-th element of an Array.
// Panics if v is not an Array or i is out of range.
func (v Value) Index(i int) Value {
	if v.kind != Array {
		panic("Value.Index: not an array")
	}
	return v.arr[i]
}

// Elements returns the elements of an Array, or nil for other kinds.
func (v Value) Elements() []Value {
	if v.kind != Array {
		return nil
	}
	return v.arr
}

// Append returns an Array value with elems appended.
// Panics if v is not an Array.
func (v Value) Append(elems ...Value) Value {
	if v.kind != Array {
		panic("Value.Append: not an array")
	}
	return Value{kind: Array, arr: append(v.arr, elems...)}
}

// Keys returns the keys of a Map in insertion order, or nil for other kinds.
func (v Value) Keys() []string {
	if v.kind != Map {
		return nil
	}
	keys := v.m.Keys()
	out := make([]string, len(keys))
	copy(out, keys)
	return out
}

// Get looks up key in a Map.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != Map {
		return Nil, false
	}
	raw, ok := v.m.Get(key)
	if !ok {
		return Nil, false
	}
	return raw.(Value), true
}

// Set stores key in a Map, keeping the key's position if it already exists.
// Panics if v is not a Map.
func (v Value) Set(key string, val Value) {
	if v.kind != Map {
		panic("Value.Set: not a map")
	}
	v.m.Set(key, val)
}

// Entries returns the entries of a Map in insertion order.
func (v Value) Entries() []Entry {
	if v.kind != Map {
		return nil
	}
	keys := v.m.Keys()
	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		raw, _ := v.m.Get(k)
		out = append(out, Entry{Key: k, Value: raw.(Value)})
	}
	return out
}

// ---------------------------------------------------------------------------
// Equality and printing
// ---------------------------------------------------------------------------

// Equal reports whether a and b hold the same variant and the same data.
// Maps compare entry by entry in order. Objects compare their handles by
// identity; handles of non-comparable types are never equal.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case None:
		return true
	case Bool, Int, Long:
		return a.num == b.num
	case Float:
		return a.Float() == b.Float()
	case Double:
		return a.Double() == b.Double()
	case String:
		return a.str == b.str
	case Array:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case Map:
		ea, eb := a.Entries(), b.Entries()
		if len(ea) != len(eb) {
			return false
		}
		for i := range ea {
			if ea[i].Key != eb[i].Key || !Equal(ea[i].Value, eb[i].Value) {
				return false
			}
		}
		return true
	case Object:
		if a.obj == nil || b.obj == nil {
			return a.obj == b.obj
		}
		ta, tb := reflect.TypeOf(a.obj), reflect.TypeOf(b.obj)
		if ta != tb || !ta.Comparable() {
			return false
		}
		return a.obj == b.obj
	}
	return false
}

// String renders v for diagnostics.
func (v Value) String() string {
	var sb strings.Builder
	v.writeTo(&sb)
	return sb.String()
}

func (v Value) writeTo(sb *strings.Builder) {
	switch v.kind {
	case None:
		sb.WriteString("none")
	case Bool:
		sb.WriteString(strconv.FormatBool(v.Bool()))
	case Int:
		sb.WriteString(strconv.FormatInt(int64(v.Int()), 10))
	case Long:
		sb.WriteString(strconv.FormatInt(v.Long(), 10))
		sb.WriteByte('L')
	case Float:
		sb.WriteString(strconv.FormatFloat(float64(v.Float()), 'g', -1, 32))
		sb.WriteByte('f')
	case Double:
		sb.WriteString(strconv.FormatFloat(v.Double(), 'g', -1, 64))
	case String:
		sb.WriteString(strconv.Quote(v.str))
	case Array:
		sb.WriteByte('[')
		for i, e := range v.arr {
			if i > 0 {
				sb.WriteString(", ")
			}
			e.writeTo(sb)
		}
		sb.WriteByte(']')
	case Map:
		sb.WriteByte('{')
		for i, e := range v.Entries() {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(strconv.Quote(e.Key))
			sb.WriteString(": ")
			e.Value.writeTo(sb)
		}
		sb.WriteByte('}')
	case Object:
		fmt.Fprintf(sb, "object(%v)", v.obj)
	default:
		sb.WriteString(v.kind.String())
	}
}
