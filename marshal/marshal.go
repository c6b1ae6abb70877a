// Package marshal converts between bridge Values and host objects.
//
// ToValue picks a conversion in a fixed order: exact primitive types, slices
// and arrays of primitives, strings, other slices and arrays, maps, iterables,
// named scalar types, and finally opaque objects, which are registered in the
// identity registry and passed by reference.
package marshal

import (
	"cmp"
	"errors"
	"fmt"
	"iter"
	"reflect"
	"slices"

	"github.com/iancoleman/orderedmap"

	"github.com/chazu/hybridge/host"
	"github.com/chazu/hybridge/registry"
	"github.com/chazu/hybridge/value"
)

// ErrStaleReference is returned when an object Value refers to a host object
// that has been reclaimed.
var ErrStaleReference = errors.New("stale object reference")

// ErrTooDeep is returned for collections nested deeper than MaxDepth, which
// usually means a collection contains itself.
var ErrTooDeep = errors.New("nesting too deep")

// MaxDepth bounds collection nesting in both directions.
const MaxDepth = 64

// box converts a value of one exact primitive type.
type box func(reflect.Value) value.Value

func intBox(rv reflect.Value) value.Value   { return value.FromInt(int32(rv.Int())) }
func uintBox(rv reflect.Value) value.Value  { return value.FromInt(int32(rv.Uint())) }
func longBox(rv reflect.Value) value.Value  { return value.FromLong(rv.Int()) }
func ulongBox(rv reflect.Value) value.Value { return value.FromLong(int64(rv.Uint())) }

// boxes is keyed by exact type identity; named types are not found here.
var boxes = map[reflect.Type]box{
	reflect.TypeFor[bool]():    func(rv reflect.Value) value.Value { return value.FromBool(rv.Bool()) },
	reflect.TypeFor[int8]():    intBox,
	reflect.TypeFor[uint8]():   uintBox,
	reflect.TypeFor[int16]():   intBox,
	reflect.TypeFor[uint16]():  uintBox,
	reflect.TypeFor[int32]():   intBox,
	reflect.TypeFor[int]():     longBox,
	reflect.TypeFor[int64]():   longBox,
	reflect.TypeFor[uint]():    ulongBox,
	reflect.TypeFor[uint32]():  ulongBox,
	reflect.TypeFor[uint64]():  ulongBox,
	reflect.TypeFor[float32](): func(rv reflect.Value) value.Value { return value.FromFloat(float32(rv.Float())) },
	reflect.TypeFor[float64](): func(rv reflect.Value) value.Value { return value.FromDouble(rv.Float()) },
}

var (
	stringType     = reflect.TypeFor[string]()
	orderedMapType = reflect.TypeFor[*orderedmap.OrderedMap]()
)

// Marshaler converts Values to host objects and back. Opaque host objects
// are represented by identity registry references.
type Marshaler struct {
	reg *registry.Registry
}

// New creates a marshaler that registers opaque objects in reg.
func New(reg *registry.Registry) *Marshaler {
	return &Marshaler{reg: reg}
}

// Registry returns the identity registry.
func (m *Marshaler) Registry() *registry.Registry {
	return m.reg
}

// ---------------------------------------------------------------------------
// Host -> Value
// ---------------------------------------------------------------------------

// ToValue converts a host object to a Value. Nil pointers, funcs and
// channels become None; nil slices and maps become empty collections.
//
// Objects that match no structural rule are registered and returned as
// references. Registration fails, routinely, for values the host cannot
// reference weakly, such as struct values like time.Time or pointers to
// types the host does not know; ToValue then returns that error. The only
// other failure is runaway nesting.
func (m *Marshaler) ToValue(obj any) (value.Value, error) {
	return m.toValue(obj, 0)
}

func (m *Marshaler) toValue(obj any, depth int) (value.Value, error) {
	if obj == nil {
		return value.Nil, nil
	}
	if depth > MaxDepth {
		return value.Nil, ErrTooDeep
	}
	rv := reflect.ValueOf(obj)
	t := rv.Type()
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Func, reflect.Chan:
		if rv.IsNil() {
			return value.Nil, nil
		}
	}

	if b, ok := boxes[t]; ok {
		return b(rv), nil
	}
	if k := t.Kind(); k == reflect.Slice || k == reflect.Array {
		if b, ok := boxes[t.Elem()]; ok {
			return primitiveArray(rv, b), nil
		}
	}
	if t == stringType {
		return value.FromString(rv.String()), nil
	}

	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		elems := make([]value.Value, rv.Len())
		for i := range elems {
			ev, err := m.toValue(rv.Index(i).Interface(), depth+1)
			if err != nil {
				return value.Nil, err
			}
			elems[i] = ev
		}
		return value.FromArray(elems...), nil
	case reflect.Map:
		return m.goMap(rv, depth)
	}

	switch o := obj.(type) {
	case value.Value:
		return o, nil
	case *orderedmap.OrderedMap:
		return m.orderedMap(o, depth)
	case host.Mapping:
		return m.mapping(o.Entries(), depth)
	case iter.Seq2[any, any]:
		return m.mapping(o, depth)
	case host.Iterable:
		return m.sequence(o.All(), depth)
	case iter.Seq[any]:
		return m.sequence(o, depth)
	case func(func(any) bool):
		return m.sequence(o, depth)
	}

	if v, ok := namedScalar(rv); ok {
		return v, nil
	}
	return m.opaque(obj)
}

// primitiveArray unboxes every element with one converter.
func primitiveArray(rv reflect.Value, b box) value.Value {
	elems := make([]value.Value, rv.Len())
	for i := range elems {
		elems[i] = b(rv.Index(i))
	}
	return value.FromArray(elems...)
}

// goMap converts a Go map. Keys are stringified and entries sorted by key so
// the result is deterministic.
func (m *Marshaler) goMap(rv reflect.Value, depth int) (value.Value, error) {
	type entry struct {
		key string
		val reflect.Value
	}
	entries := make([]entry, 0, rv.Len())
	it := rv.MapRange()
	for it.Next() {
		entries = append(entries, entry{key: keyString(it.Key().Interface()), val: it.Value()})
	}
	slices.SortFunc(entries, func(a, b entry) int { return cmp.Compare(a.key, b.key) })

	out := value.NewMap()
	for _, e := range entries {
		ev, err := m.toValue(e.val.Interface(), depth+1)
		if err != nil {
			return value.Nil, err
		}
		out.Set(e.key, ev)
	}
	return out, nil
}

func (m *Marshaler) orderedMap(om *orderedmap.OrderedMap, depth int) (value.Value, error) {
	out := value.NewMap()
	for _, k := range om.Keys() {
		raw, _ := om.Get(k)
		ev, err := m.toValue(raw, depth+1)
		if err != nil {
			return value.Nil, err
		}
		out.Set(k, ev)
	}
	return out, nil
}

func (m *Marshaler) mapping(entries iter.Seq2[any, any], depth int) (value.Value, error) {
	out := value.NewMap()
	for k, v := range entries {
		ev, err := m.toValue(v, depth+1)
		if err != nil {
			return value.Nil, err
		}
		out.Set(keyString(k), ev)
	}
	return out, nil
}

func (m *Marshaler) sequence(items iter.Seq[any], depth int) (value.Value, error) {
	elems := []value.Value{}
	for item := range items {
		ev, err := m.toValue(item, depth+1)
		if err != nil {
			return value.Nil, err
		}
		elems = append(elems, ev)
	}
	return value.FromArray(elems...), nil
}

// keyString stringifies a map key with the key's own String method when it
// has one.
func keyString(k any) string {
	switch k := k.(type) {
	case string:
		return k
	case fmt.Stringer:
		return k.String()
	}
	return fmt.Sprint(k)
}

// namedScalar converts values of named types whose underlying type is a
// primitive, e.g. type Celsius float64.
func namedScalar(rv reflect.Value) (value.Value, bool) {
	switch value.KindOf(rv.Type()) {
	case value.Bool:
		return value.FromBool(rv.Bool()), true
	case value.Int:
		if rv.CanInt() {
			return value.FromInt(int32(rv.Int())), true
		}
		return value.FromInt(int32(rv.Uint())), true
	case value.Long:
		if rv.CanInt() {
			return value.FromLong(rv.Int()), true
		}
		return value.FromLong(int64(rv.Uint())), true
	case value.Float:
		return value.FromFloat(float32(rv.Float())), true
	case value.Double:
		return value.FromDouble(rv.Float()), true
	case value.String:
		return value.FromString(rv.String()), true
	}
	return value.Nil, false
}

func (m *Marshaler) opaque(obj any) (value.Value, error) {
	ref, err := m.reg.Register(obj)
	if err != nil {
		return value.Nil, fmt.Errorf("marshal: %T: %w", obj, err)
	}
	return value.FromObject(ref), nil
}

// ---------------------------------------------------------------------------
// Value -> Host
// ---------------------------------------------------------------------------

// FromValue converts v to its natural host representation: Int to int32,
// Long to int64, Float to float32, Double to float64, arrays to []any, maps
// to *orderedmap.OrderedMap, and object references to the referenced host
// object.
func (m *Marshaler) FromValue(v value.Value) (any, error) {
	return m.fromValue(v, 0)
}

func (m *Marshaler) fromValue(v value.Value, depth int) (any, error) {
	if depth > MaxDepth {
		return nil, ErrTooDeep
	}
	switch v.Kind() {
	case value.None:
		return nil, nil
	case value.Bool:
		return v.Bool(), nil
	case value.Int:
		return v.Int(), nil
	case value.Long:
		return v.Long(), nil
	case value.Float:
		return v.Float(), nil
	case value.Double:
		return v.Double(), nil
	case value.String:
		return v.Str(), nil
	case value.Array:
		out := make([]any, v.Len())
		for i, e := range v.Elements() {
			hv, err := m.fromValue(e, depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = hv
		}
		return out, nil
	case value.Map:
		out := orderedmap.New()
		for _, e := range v.Entries() {
			hv, err := m.fromValue(e.Value, depth+1)
			if err != nil {
				return nil, err
			}
			out.Set(e.Key, hv)
		}
		return out, nil
	case value.Object:
		return resolve(v)
	}
	return nil, fmt.Errorf("marshal: unknown kind %s", v.Kind())
}

// resolve returns the host object behind an object Value. Handles that are
// not registry references are returned as they are.
func resolve(v value.Value) (any, error) {
	h, _ := v.Object()
	ref, ok := h.(*registry.Ref)
	if !ok {
		return h, nil
	}
	obj, alive := ref.Object()
	if !alive {
		return nil, fmt.Errorf("marshal: %s: %w", ref, ErrStaleReference)
	}
	return obj, nil
}

// FromValueAs converts v for a slot of type t, such as a declared parameter
// or field type. Numbers are widened or narrowed to t with native
// truncation; arrays and maps are built as t when their elements convert.
// When v cannot be shaped as t, the natural FromValue result is returned and
// the host's own type check decides.
func (m *Marshaler) FromValueAs(v value.Value, t reflect.Type) (any, error) {
	if t == nil {
		return m.FromValue(v)
	}
	rv, ok, err := m.coerce(v, t, 0)
	if err != nil {
		return nil, err
	}
	if !ok {
		return m.FromValue(v)
	}
	return rv.Interface(), nil
}

func (m *Marshaler) coerce(v value.Value, t reflect.Type, depth int) (reflect.Value, bool, error) {
	if depth > MaxDepth {
		return reflect.Value{}, false, ErrTooDeep
	}
	if t.Kind() == reflect.Interface {
		hv, err := m.fromValue(v, depth)
		if err != nil {
			return reflect.Value{}, false, err
		}
		if hv == nil {
			return reflect.Zero(t), true, nil
		}
		rv := reflect.ValueOf(hv)
		if !rv.Type().AssignableTo(t) {
			return reflect.Value{}, false, nil
		}
		return rv, true, nil
	}

	switch v.Kind() {
	case value.None:
		switch t.Kind() {
		case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
			return reflect.Zero(t), true, nil
		}
	case value.Bool:
		if t.Kind() == reflect.Bool {
			return reflect.ValueOf(v.Bool()).Convert(t), true, nil
		}
	case value.Int, value.Long:
		n, _ := v.AsInt64()
		if isNumeric(t) {
			return reflect.ValueOf(n).Convert(t), true, nil
		}
	case value.Float, value.Double:
		f, _ := v.AsFloat64()
		if isNumeric(t) {
			return reflect.ValueOf(f).Convert(t), true, nil
		}
	case value.String:
		if t.Kind() == reflect.String {
			return reflect.ValueOf(v.Str()).Convert(t), true, nil
		}
	case value.Array:
		return m.coerceArray(v, t, depth)
	case value.Map:
		return m.coerceMap(v, t, depth)
	case value.Object:
		obj, err := resolve(v)
		if err != nil {
			return reflect.Value{}, false, err
		}
		rv := reflect.ValueOf(obj)
		if obj != nil && rv.Type().AssignableTo(t) {
			return rv, true, nil
		}
	}
	return reflect.Value{}, false, nil
}

func (m *Marshaler) coerceArray(v value.Value, t reflect.Type, depth int) (reflect.Value, bool, error) {
	var out reflect.Value
	switch t.Kind() {
	case reflect.Slice:
		out = reflect.MakeSlice(t, v.Len(), v.Len())
	case reflect.Array:
		if t.Len() != v.Len() {
			return reflect.Value{}, false, nil
		}
		out = reflect.New(t).Elem()
	default:
		return reflect.Value{}, false, nil
	}
	for i, e := range v.Elements() {
		ev, ok, err := m.coerce(e, t.Elem(), depth+1)
		if err != nil || !ok {
			return reflect.Value{}, false, err
		}
		out.Index(i).Set(ev)
	}
	return out, true, nil
}

func (m *Marshaler) coerceMap(v value.Value, t reflect.Type, depth int) (reflect.Value, bool, error) {
	if t == orderedMapType {
		hv, err := m.fromValue(v, depth)
		if err != nil {
			return reflect.Value{}, false, err
		}
		return reflect.ValueOf(hv), true, nil
	}
	if t.Kind() != reflect.Map || t.Key().Kind() != reflect.String {
		return reflect.Value{}, false, nil
	}
	out := reflect.MakeMapWithSize(t, v.Len())
	for _, e := range v.Entries() {
		ev, ok, err := m.coerce(e.Value, t.Elem(), depth+1)
		if err != nil || !ok {
			return reflect.Value{}, false, err
		}
		out.SetMapIndex(reflect.ValueOf(e.Key).Convert(t.Key()), ev)
	}
	return out, true, nil
}

func isNumeric(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
