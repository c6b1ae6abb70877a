// Package host describes the reflection surface a managed host runtime must
// offer to the bridge: classes, declared fields and methods, modifier bits,
// reflective read/write/invoke, and non-owning references to host objects.
//
// Host objects are plain Go values (any). Primitive and string values are
// passed as the matching Go scalar types; class instances are whatever the
// runtime uses to represent them.
package host

import (
	"iter"
	"reflect"
	"strings"
)

// Modifier is the host's member modifier bit set.
type Modifier uint16

const (
	Public Modifier = 1 << iota
	Static
	Abstract
)

// Has reports whether all bits of flag are set.
func (m Modifier) Has(flag Modifier) bool {
	return m&flag == flag
}

func (m Modifier) String() string {
	var parts []string
	if m.Has(Public) {
		parts = append(parts, "public")
	}
	if m.Has(Static) {
		parts = append(parts, "static")
	}
	if m.Has(Abstract) {
		parts = append(parts, "abstract")
	}
	if len(parts) == 0 {
		return "package"
	}
	return strings.Join(parts, " ")
}

// Convention names the accessor method prefixes a host uses for bean-style
// properties. An empty Getter prefix means a getter is named after the
// property itself (Go's Count() style).
type Convention struct {
	Getter string
	Setter string
}

// Runtime is the entry point into a host's reflection API.
type Runtime interface {
	// Name identifies the runtime in logs and errors.
	Name() string
	// RootClass returns the universal base class that terminates every
	// superclass chain.
	RootClass() Class
	// ClassOf returns the runtime class of obj.
	ClassOf(obj any) (Class, error)
	// ClassForName resolves a class by its fully qualified name.
	ClassForName(name string) (Class, error)
	// MakeWeak creates a non-owning reference to obj.
	MakeWeak(obj any) (WeakRef, error)
	// Convention returns the accessor naming convention of this host.
	Convention() Convention
}

// Class is a host class handle.
type Class interface {
	Name() string
	// Superclass returns nil for the root class.
	Superclass() (Class, error)
	DeclaredFields() ([]Field, error)
	DeclaredMethods() ([]Method, error)
}

// Member is the common part of fields and methods.
type Member interface {
	Name() string
	Modifiers() Modifier
}

// Field is a declared host field.
type Field interface {
	Member
	Type() reflect.Type
	Get(obj any) (any, error)
	Set(obj any, v any) error
}

// Method is a declared host method.
type Method interface {
	Member
	ParameterTypes() []reflect.Type
	// ReturnType returns nil for methods that return nothing.
	ReturnType() reflect.Type
	Invoke(obj any, args []any) (any, error)
}

// WeakRef is a non-owning reference to a host object. It never keeps the
// object alive.
type WeakRef interface {
	// Value returns the referenced object, or false once the host has
	// reclaimed it.
	Value() (any, bool)
	// Key returns a comparable identity key. Two WeakRefs have equal keys
	// exactly when they refer to the same object, and the key stays valid
	// after the object is reclaimed.
	Key() any
}

// ExceptionState is implemented by hosts that keep a sticky error state after
// a reflective call fails, the way a JVM keeps a pending exception. Callers
// must drain it before issuing unrelated calls.
type ExceptionState interface {
	PendingException() error
	ClearException()
}

// Iterable is the host's generic iteration capability.
type Iterable interface {
	All() iter.Seq[any]
}

// Mapping is the host's key/value map capability.
type Mapping interface {
	Entries() iter.Seq2[any, any]
}
