// Package meta builds bridge-neutral descriptions of host classes. A
// MetaObject lists the properties and methods of one class and links to the
// MetaObject of its superclass, so member indices compose along the
// inheritance chain: a subclass's own members are numbered after all of its
// superclass's members.
package meta

import (
	"reflect"
	"slices"
	"strings"

	"github.com/chazu/hybridge/host"
	"github.com/chazu/hybridge/value"
)

// DestroyedSignal names the synthetic signal every class inherits from the
// root meta-object at method index 0.
const DestroyedSignal = "destroyed"

// ---------------------------------------------------------------------------
// MetaProperty
// ---------------------------------------------------------------------------

// MetaProperty describes a property synthesized from a host field and its
// bean-style accessor methods.
type MetaProperty struct {
	Name string
	// Type is the Value kind of the underlying field.
	Type value.Kind

	field  host.Field
	getter host.Method
	setter host.Method
}

// Field returns the host field backing the property.
func (p *MetaProperty) Field() host.Field { return p.field }

// Getter returns the folded getter method, or nil.
func (p *MetaProperty) Getter() host.Method { return p.getter }

// Setter returns the folded setter method, or nil.
func (p *MetaProperty) Setter() host.Method { return p.setter }

// IsReadable returns true if the property has a getter or a public field.
func (p *MetaProperty) IsReadable() bool {
	return p.getter != nil || p.fieldIsPublic()
}

// IsWritable returns true if the property has a setter or a public field.
func (p *MetaProperty) IsWritable() bool {
	return p.setter != nil || p.fieldIsPublic()
}

// HasNotifySignal is always false; change notification is not modeled.
func (p *MetaProperty) HasNotifySignal() bool {
	return false
}

func (p *MetaProperty) fieldIsPublic() bool {
	return p.field != nil && p.field.Modifiers().Has(host.Public)
}

func (p *MetaProperty) valid() bool {
	if p.field != nil && p.field.Modifiers().Has(host.Static) {
		return false
	}
	return p.IsReadable()
}

// ---------------------------------------------------------------------------
// MetaMethod
// ---------------------------------------------------------------------------

// MetaMethod describes an invocable host method or a signal.
type MetaMethod struct {
	Name string
	// Params are the parameter types resolved to Value kinds.
	Params []value.Kind
	// Return is None for methods that return nothing.
	Return value.Kind

	paramTypes []reflect.Type
	method     host.Method
}

func newMetaMethod(m host.Method) *MetaMethod {
	types := m.ParameterTypes()
	mm := &MetaMethod{
		Name:       m.Name(),
		Params:     make([]value.Kind, len(types)),
		Return:     value.KindOf(m.ReturnType()),
		paramTypes: types,
		method:     m,
	}
	for i, t := range types {
		mm.Params[i] = value.KindOf(t)
	}
	return mm
}

// ParamCount returns the number of parameters.
func (m *MetaMethod) ParamCount() int { return len(m.Params) }

// ParamTypes returns the declared host parameter types.
func (m *MetaMethod) ParamTypes() []reflect.Type { return m.paramTypes }

// Method returns the host method, or nil for a signal.
func (m *MetaMethod) Method() host.Method { return m.method }

// IsSignal returns true for signal entries, which have no host method.
func (m *MetaMethod) IsSignal() bool { return m.method == nil }

// Signature returns the method's name and parameter kinds.
func (m *MetaMethod) Signature() Signature {
	return Signature{Name: m.Name, Params: m.Params}
}

// Matches reports whether m has exactly the name and parameter kinds of sig.
func (m *MetaMethod) Matches(sig Signature) bool {
	return m.Signature().Equal(sig)
}

// ---------------------------------------------------------------------------
// MetaEnum
// ---------------------------------------------------------------------------

// MetaEnum describes an enumeration. Host enumerations are not reflected, so
// no MetaObject currently holds any.
type MetaEnum struct {
	Name   string
	Keys   []string
	Values []int64
}

// KeyCount returns the number of enumerators.
func (e *MetaEnum) KeyCount() int { return len(e.Keys) }

// ---------------------------------------------------------------------------
// Signature
// ---------------------------------------------------------------------------

// Signature identifies a method overload by name and parameter kinds.
type Signature struct {
	Name   string
	Params []value.Kind
}

// SignatureOf derives the signature a call with args would match.
func SignatureOf(name string, args []value.Value) Signature {
	sig := Signature{Name: name, Params: make([]value.Kind, len(args))}
	for i, a := range args {
		sig.Params[i] = a.Kind()
	}
	return sig
}

// Equal reports whether s and o have identical names and parameter kinds.
func (s Signature) Equal(o Signature) bool {
	return s.Name == o.Name && slices.Equal(s.Params, o.Params)
}

func (s Signature) String() string {
	var sb strings.Builder
	sb.WriteString(s.Name)
	sb.WriteByte('(')
	for i, k := range s.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(k.String())
	}
	sb.WriteByte(')')
	return sb.String()
}

// ---------------------------------------------------------------------------
// MetaObject
// ---------------------------------------------------------------------------

// MetaObject describes one host class. It is immutable once published by a
// Cache.
type MetaObject struct {
	className string
	super     *MetaObject

	properties []*MetaProperty
	methods    []*MetaMethod
	enums      []*MetaEnum

	propertyOffset int
	methodOffset   int
}

// newRoot creates the meta-object of the universal base class. It reflects
// no members and carries the destroyed signal.
func newRoot(className string) *MetaObject {
	return &MetaObject{
		className: className,
		methods:   []*MetaMethod{{Name: DestroyedSignal, Params: []value.Kind{}}},
	}
}

// ClassName returns the host class name.
func (mo *MetaObject) ClassName() string { return mo.className }

// Superclass returns the superclass meta-object, or nil at the root.
func (mo *MetaObject) Superclass() *MetaObject { return mo.super }

// PropertyOffset returns the composite index of the first own property.
func (mo *MetaObject) PropertyOffset() int { return mo.propertyOffset }

// PropertyCount returns the number of properties, inherited ones included.
func (mo *MetaObject) PropertyCount() int { return mo.propertyOffset + len(mo.properties) }

// OwnProperties returns the properties declared by this class.
func (mo *MetaObject) OwnProperties() []*MetaProperty { return mo.properties }

// Property returns the property at composite index i.
func (mo *MetaObject) Property(i int) (*MetaProperty, bool) {
	for cur := mo; cur != nil; cur = cur.super {
		if i >= cur.propertyOffset {
			j := i - cur.propertyOffset
			if j < len(cur.properties) {
				return cur.properties[j], true
			}
			return nil, false
		}
	}
	return nil, false
}

// IndexOfProperty returns the composite index of the first property named
// name, or -1. Indices are scanned in ascending order, so an inherited
// property wins over a same-named subclass property.
func (mo *MetaObject) IndexOfProperty(name string) int {
	for i := range mo.PropertyCount() {
		if p, _ := mo.Property(i); p.Name == name {
			return i
		}
	}
	return -1
}

// FindProperty returns the named property.
func (mo *MetaObject) FindProperty(name string) (*MetaProperty, bool) {
	if i := mo.IndexOfProperty(name); i >= 0 {
		return mo.Property(i)
	}
	return nil, false
}

// MethodOffset returns the composite index of the first own method.
func (mo *MetaObject) MethodOffset() int { return mo.methodOffset }

// MethodCount returns the number of methods and signals, inherited ones
// included.
func (mo *MetaObject) MethodCount() int { return mo.methodOffset + len(mo.methods) }

// OwnMethods returns the methods declared by this class.
func (mo *MetaObject) OwnMethods() []*MetaMethod { return mo.methods }

// Method returns the method at composite index i.
func (mo *MetaObject) Method(i int) (*MetaMethod, bool) {
	for cur := mo; cur != nil; cur = cur.super {
		if i >= cur.methodOffset {
			j := i - cur.methodOffset
			if j < len(cur.methods) {
				return cur.methods[j], true
			}
			return nil, false
		}
	}
	return nil, false
}

// IndexOfMethod returns the composite index of the first method matching
// sig, or -1. Like IndexOfProperty it scans in ascending order.
func (mo *MetaObject) IndexOfMethod(sig Signature) int {
	for i := range mo.MethodCount() {
		if m, _ := mo.Method(i); m.Matches(sig) {
			return i
		}
	}
	return -1
}

// FindMethod returns the method matching sig.
func (mo *MetaObject) FindMethod(sig Signature) (*MetaMethod, bool) {
	if i := mo.IndexOfMethod(sig); i >= 0 {
		return mo.Method(i)
	}
	return nil, false
}

// MethodsNamed returns every method called name, most derived first.
func (mo *MetaObject) MethodsNamed(name string) []*MetaMethod {
	var out []*MetaMethod
	for cur := mo; cur != nil; cur = cur.super {
		for _, m := range cur.methods {
			if m.Name == name {
				out = append(out, m)
			}
		}
	}
	return out
}

// EnumCount returns the number of enumerations, inherited ones included.
func (mo *MetaObject) EnumCount() int {
	n := 0
	for cur := mo; cur != nil; cur = cur.super {
		n += len(cur.enums)
	}
	return n
}

// Inherits returns true if mo is other or describes a subclass of it.
func (mo *MetaObject) Inherits(other *MetaObject) bool {
	for cur := mo; cur != nil; cur = cur.super {
		if cur == other {
			return true
		}
	}
	return false
}
