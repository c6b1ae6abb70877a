// Package gohost is a host runtime backed by Go's own reflection. Bound
// struct types are classes and pointers to them are instances. A struct whose
// first field embeds another bound struct inherits from it.
package gohost

import (
	"fmt"
	"reflect"
	"sync"
	"weak"

	"github.com/chazu/hybridge/host"
)

// RootClassName names the universal base class. Every value that is not an
// instance of a bound type reports it.
const RootClassName = "any"

// ---------------------------------------------------------------------------
// Runtime: the bound type table
// ---------------------------------------------------------------------------

// Runtime maps bound Go struct types to classes and back.
// Safe for concurrent binding and lookup.
type Runtime struct {
	mu     sync.RWMutex
	byType map[reflect.Type]*Class
	byName map[string]*Class
	root   *Class
}

// NewRuntime creates a runtime with only the root class.
func NewRuntime() *Runtime {
	rt := &Runtime{
		byType: make(map[reflect.Type]*Class),
		byName: make(map[string]*Class),
	}
	rt.root = &Class{rt: rt, name: RootClassName}
	rt.byName[RootClassName] = rt.root
	return rt
}

// BindOption customizes a class binding.
type BindOption func(*Class)

// WithName overrides the class name. The default is the Go type name
// qualified by its package name, e.g. "inventory.Item".
func WithName(name string) BindOption {
	return func(c *Class) { c.name = name }
}

// Bind registers struct type T as a class. Binding the same type twice
// returns the existing class. The superclass, if any, must be bound first.
func Bind[T any](rt *Runtime, opts ...BindOption) (*Class, error) {
	t := reflect.TypeFor[T]()
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("gohost: cannot bind %s: not a struct type", t)
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	if c, ok := rt.byType[t]; ok {
		return c, nil
	}

	c := &Class{rt: rt, name: t.String(), typ: t, super: rt.root}
	for _, opt := range opts {
		opt(c)
	}
	if _, taken := rt.byName[c.name]; taken {
		return nil, fmt.Errorf("gohost: class name %s already bound", c.name)
	}
	if t.NumField() > 0 {
		if f := t.Field(0); f.Anonymous && f.Type.Kind() == reflect.Struct {
			if super, ok := rt.byType[f.Type]; ok {
				c.super = super
				c.embedsSuper = true
			}
		}
	}
	c.makeWeak = func(obj any) (host.WeakRef, error) {
		p, ok := obj.(*T)
		if !ok || p == nil {
			return nil, fmt.Errorf("%w: %T is not *%s", host.ErrNotWeakable, obj, t)
		}
		return weakRef[T]{p: weak.Make(p)}, nil
	}

	rt.byType[t] = c
	rt.byName[c.name] = c
	return c, nil
}

// MustBind is like Bind but panics on error.
func MustBind[T any](rt *Runtime, opts ...BindOption) *Class {
	c, err := Bind[T](rt, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Name returns the runtime name.
func (rt *Runtime) Name() string {
	return "gohost"
}

// RootClass returns the universal base class.
func (rt *Runtime) RootClass() host.Class {
	return rt.root
}

// Convention returns Go's accessor naming: Count() and SetCount(n).
func (rt *Runtime) Convention() host.Convention {
	return host.Convention{Getter: "", Setter: "Set"}
}

// ClassOf returns the class of obj. Pointers to bound structs report their
// class; every other value reports the root class.
func (rt *Runtime) ClassOf(obj any) (host.Class, error) {
	if obj == nil {
		return nil, host.ErrNilObject
	}
	if v := reflect.ValueOf(obj); v.Kind() == reflect.Pointer && v.IsNil() {
		return nil, host.ErrNilObject
	}
	if c := rt.lookupInstance(obj); c != nil {
		return c, nil
	}
	return rt.root, nil
}

// ClassForName looks up a bound class.
func (rt *Runtime) ClassForName(name string) (host.Class, error) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	c, ok := rt.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", host.ErrUnknownClass, name)
	}
	return c, nil
}

// Classes returns the bound class names, root excluded, in no particular
// order.
func (rt *Runtime) Classes() []string {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	names := make([]string, 0, len(rt.byType))
	for _, c := range rt.byType {
		names = append(names, c.name)
	}
	return names
}

// MakeWeak creates a weak reference to an instance of a bound class.
func (rt *Runtime) MakeWeak(obj any) (host.WeakRef, error) {
	c := rt.lookupInstance(obj)
	if c == nil {
		return nil, fmt.Errorf("%w: %T", host.ErrNotWeakable, obj)
	}
	return c.makeWeak(obj)
}

func (rt *Runtime) lookupInstance(obj any) *Class {
	t := reflect.TypeOf(obj)
	if t == nil || t.Kind() != reflect.Pointer {
		return nil
	}
	if reflect.ValueOf(obj).IsNil() {
		return nil
	}
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.byType[t.Elem()]
}

type weakRef[T any] struct {
	p weak.Pointer[T]
}

func (w weakRef[T]) Value() (any, bool) {
	if p := w.p.Value(); p != nil {
		return p, true
	}
	return nil, false
}

func (w weakRef[T]) Key() any {
	return w.p
}
