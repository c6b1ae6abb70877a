// Package dynhost is an in-memory host runtime whose classes are declared at
// run time. It models the parts of a managed runtime the bridge relies on:
// single inheritance, public/static/abstract modifiers, overloaded methods,
// and a sticky pending-exception state after a failed reflective call.
package dynhost

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"weak"

	"github.com/chazu/hybridge/host"
)

// RootClassName is the name of the universal base class.
const RootClassName = "Object"

// ErrPendingException is returned by reflective calls issued while an
// earlier failure is still pending.
var ErrPendingException = errors.New("exception pending")

// Common parameter and field types.
var (
	BoolType   = reflect.TypeFor[bool]()
	ByteType   = reflect.TypeFor[int8]()
	CharType   = reflect.TypeFor[uint16]()
	ShortType  = reflect.TypeFor[int16]()
	IntType    = reflect.TypeFor[int32]()
	LongType   = reflect.TypeFor[int64]()
	FloatType  = reflect.TypeFor[float32]()
	DoubleType = reflect.TypeFor[float64]()
	StringType = reflect.TypeFor[string]()
	ObjectType = reflect.TypeFor[*Object]()
	AnyType    = reflect.TypeFor[any]()
)

// Stats counts reflective enumeration calls made against one class.
type Stats struct {
	DeclaredFields  int
	DeclaredMethods int
}

// Runtime holds the class table and exception state.
type Runtime struct {
	mu      sync.RWMutex
	classes map[string]*Class
	root    *Class
	stats   map[string]*Stats
	failing map[string]error

	excMu   sync.Mutex
	pending error
}

// NewRuntime creates a runtime containing only the root class.
func NewRuntime() *Runtime {
	rt := &Runtime{
		classes: make(map[string]*Class),
		stats:   make(map[string]*Stats),
		failing: make(map[string]error),
	}
	rt.root = &Class{rt: rt, name: RootClassName}
	rt.classes[RootClassName] = rt.root
	return rt
}

// Name returns the runtime name.
func (rt *Runtime) Name() string {
	return "dynhost"
}

// RootClass returns the universal base class.
func (rt *Runtime) RootClass() host.Class {
	return rt.root
}

// Convention returns the bean accessor prefixes used by dynhost classes.
func (rt *Runtime) Convention() host.Convention {
	return host.Convention{Getter: "get", Setter: "set"}
}

// ClassOf returns the class of obj. Values that are not class instances
// (scalars, strings, collections) report the root class.
func (rt *Runtime) ClassOf(obj any) (host.Class, error) {
	switch o := obj.(type) {
	case nil:
		return nil, host.ErrNilObject
	case *Object:
		if o == nil {
			return nil, host.ErrNilObject
		}
		return o.class, nil
	}
	return rt.root, nil
}

// ClassForName looks up a defined class.
func (rt *Runtime) ClassForName(name string) (host.Class, error) {
	c := rt.Lookup(name)
	if c == nil {
		return nil, fmt.Errorf("%w: %s", host.ErrUnknownClass, name)
	}
	return c, nil
}

// Lookup returns the class with the given name, or nil.
func (rt *Runtime) Lookup(name string) *Class {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.classes[name]
}

// MakeWeak creates a weak reference to a class instance.
func (rt *Runtime) MakeWeak(obj any) (host.WeakRef, error) {
	o, ok := obj.(*Object)
	if !ok || o == nil {
		return nil, fmt.Errorf("%w: %T", host.ErrNotWeakable, obj)
	}
	return weakRef{p: weak.Make(o)}, nil
}

type weakRef struct {
	p weak.Pointer[Object]
}

func (w weakRef) Value() (any, bool) {
	if o := w.p.Value(); o != nil {
		return o, true
	}
	return nil, false
}

func (w weakRef) Key() any {
	return w.p
}

// ---------------------------------------------------------------------------
// Exception state
// ---------------------------------------------------------------------------

// PendingException returns the failure left by the last reflective call
// that failed, if it has not been cleared.
func (rt *Runtime) PendingException() error {
	rt.excMu.Lock()
	defer rt.excMu.Unlock()
	return rt.pending
}

// ClearException drops the pending failure.
func (rt *Runtime) ClearException() {
	rt.excMu.Lock()
	rt.pending = nil
	rt.excMu.Unlock()
}

// raise records err as pending and returns it.
func (rt *Runtime) raise(err error) error {
	rt.excMu.Lock()
	if rt.pending == nil {
		rt.pending = err
	}
	rt.excMu.Unlock()
	return err
}

// checkPending refuses reflective work while a failure is pending.
func (rt *Runtime) checkPending(op, class, member string) error {
	if err := rt.PendingException(); err != nil {
		return &host.ReflectionError{Op: op, Class: class, Member: member,
			Err: fmt.Errorf("%w: %v", ErrPendingException, err)}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Instrumentation
// ---------------------------------------------------------------------------

// Stats returns the enumeration call counts recorded for a class.
func (rt *Runtime) Stats(className string) Stats {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	if s, ok := rt.stats[className]; ok {
		return *s
	}
	return Stats{}
}

// FailReflection makes DeclaredMethods on the named class fail with err until
// cleared with a nil err. Injected failures are returned directly and are
// not left pending.
func (rt *Runtime) FailReflection(className string, err error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if err == nil {
		delete(rt.failing, className)
		return
	}
	rt.failing[className] = err
}

func (rt *Runtime) count(className string, fn func(*Stats)) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	s, ok := rt.stats[className]
	if !ok {
		s = &Stats{}
		rt.stats[className] = s
	}
	fn(s)
}

func (rt *Runtime) injected(className string) error {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.failing[className]
}
