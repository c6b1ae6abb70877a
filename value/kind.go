package value

import (
	"reflect"

	"github.com/iancoleman/orderedmap"
)

var orderedMapType = reflect.TypeFor[*orderedmap.OrderedMap]()

// KindOf maps a host parameter or field type to the Value kind used to
// describe it. Narrow integers widen to Int, wide integers to Long.
// Byte slices are arrays. Interfaces, pointers and structs are Object.
func KindOf(t reflect.Type) Kind {
	if t == nil {
		return None
	}
	if t == orderedMapType {
		return Map
	}
	switch t.Kind() {
	case reflect.Bool:
		return Bool
	case reflect.Int8, reflect.Uint8, reflect.Int16, reflect.Uint16, reflect.Int32:
		return Int
	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return Long
	case reflect.Float32:
		return Float
	case reflect.Float64:
		return Double
	case reflect.String:
		return String
	case reflect.Slice, reflect.Array:
		return Array
	case reflect.Map:
		return Map
	}
	return Object
}
