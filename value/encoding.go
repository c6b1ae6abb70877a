package value

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// objectTag is the CBOR "identifier" tag used for opaque object handles.
const objectTag = 39

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("value: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// handleString renders an opaque handle. Handles that know their own
// identifier (registry references do) implement fmt.Stringer.
func handleString(h any) string {
	if s, ok := h.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprint(h)
}

// MarshalJSON encodes v as JSON. Maps keep their entry order; objects become
// {"$object": "<handle>"}.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case None:
		return []byte("null"), nil
	case Bool:
		return json.Marshal(v.Bool())
	case Int:
		return json.Marshal(v.Int())
	case Long:
		return json.Marshal(v.Long())
	case Float:
		return json.Marshal(v.Float())
	case Double:
		return json.Marshal(v.Double())
	case String:
		return json.Marshal(v.str)
	case Array:
		return json.Marshal(v.arr)
	case Map:
		return json.Marshal(*v.m)
	case Object:
		return json.Marshal(map[string]string{"$object": handleString(v.obj)})
	}
	return nil, fmt.Errorf("value: cannot encode kind %s", v.kind)
}

// EncodeCBOR encodes v as canonical CBOR. Canonical mode sorts map keys, so
// entry order is not preserved on the wire. Opaque objects are encoded as
// tag 39 around the handle's string form.
func EncodeCBOR(v Value) ([]byte, error) {
	return cborEncMode.Marshal(plain(v))
}

// plain converts v into a tree of Go values that cbor can encode directly.
func plain(v Value) any {
	switch v.kind {
	case Bool:
		return v.Bool()
	case Int:
		return v.Int()
	case Long:
		return v.Long()
	case Float:
		return v.Float()
	case Double:
		return v.Double()
	case String:
		return v.str
	case Array:
		out := make([]any, len(v.arr))
		for i, e := range v.arr {
			out[i] = plain(e)
		}
		return out
	case Map:
		out := make(map[string]any, v.Len())
		for _, e := range v.Entries() {
			out[e.Key] = plain(e.Value)
		}
		return out
	case Object:
		return cbor.Tag{Number: objectTag, Content: handleString(v.obj)}
	}
	return nil
}
