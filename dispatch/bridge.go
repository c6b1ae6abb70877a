// Package dispatch routes named property, method and signal requests to host
// objects. A Bridge resolves names through the meta-object cache, converts
// arguments and results with the marshaler, and contains every host failure:
// host errors and panics come back as errors, and a host's pending error
// state is drained before any call returns.
package dispatch

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tliron/commonlog"

	"github.com/chazu/hybridge/host"
	"github.com/chazu/hybridge/marshal"
	"github.com/chazu/hybridge/meta"
	"github.com/chazu/hybridge/registry"
	"github.com/chazu/hybridge/value"
)

var log = commonlog.GetLogger("hybridge.dispatch")

// Lookup failures. They are routine results, not host errors.
var (
	ErrUnknownProperty = errors.New("unknown property")
	ErrUnknownMethod   = errors.New("unknown method")
	ErrNotSignal       = errors.New("not a signal")
	ErrReadOnly        = errors.New("property is read-only")
)

// Bridge is the dispatch facade over one host runtime.
type Bridge struct {
	rt    host.Runtime
	cache *meta.Cache
	reg   *registry.Registry
	m     *marshal.Marshaler

	mu      sync.Mutex
	conns   []connection
	objects map[string]*registry.Ref
}

type options struct {
	cacheOpts    []meta.CacheOption
	registryOpts []registry.Option
}

// Option configures a Bridge.
type Option func(*options)

// WithConvention overrides the host's accessor naming convention.
func WithConvention(conv host.Convention) Option {
	return func(o *options) { o.cacheOpts = append(o.cacheOpts, meta.WithConvention(conv)) }
}

// WithPruneThreshold sets the identity registry's automatic prune threshold.
func WithPruneThreshold(n int) Option {
	return func(o *options) { o.registryOpts = append(o.registryOpts, registry.WithPruneThreshold(n)) }
}

// New creates a bridge with its own meta-object cache and identity registry.
func New(rt host.Runtime, opts ...Option) *Bridge {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	reg := registry.New(rt, o.registryOpts...)
	return &Bridge{
		rt:      rt,
		cache:   meta.NewCache(rt, o.cacheOpts...),
		reg:     reg,
		m:       marshal.New(reg),
		objects: make(map[string]*registry.Ref),
	}
}

// Runtime returns the host runtime.
func (b *Bridge) Runtime() host.Runtime { return b.rt }

// Cache returns the meta-object cache.
func (b *Bridge) Cache() *meta.Cache { return b.cache }

// Registry returns the identity registry.
func (b *Bridge) Registry() *registry.Registry { return b.reg }

// Marshaler returns the value marshaler.
func (b *Bridge) Marshaler() *marshal.Marshaler { return b.m }

// ---------------------------------------------------------------------------
// Host call containment
// ---------------------------------------------------------------------------

// drain clears any pending host error. If the call itself succeeded, the
// pending error becomes its result.
func (b *Bridge) drain(err error) error {
	es, ok := b.rt.(host.ExceptionState)
	if !ok {
		return err
	}
	pending := es.PendingException()
	if pending == nil {
		return err
	}
	es.ClearException()
	log.Debugf("cleared pending host error: %s", pending)
	if err == nil {
		err = pending
	}
	return err
}

// guard runs fn, turning a panic into a ReflectionError, and drains the host
// error state afterwards.
func (b *Bridge) guard(op, class, member string, fn func() (any, error)) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = host.Recovered(op, class, member, r)
		}
		err = b.drain(err)
		if err != nil {
			log.Debugf("%s %s.%s failed: %s", op, class, member, err)
		}
	}()
	return fn()
}

// MetaObjectFor returns the meta-object of cls.
func (b *Bridge) MetaObjectFor(cls host.Class) (*meta.MetaObject, error) {
	mo, err := b.guard("reflect", cls.Name(), "", func() (any, error) {
		return b.cache.MetaObjectFor(cls)
	})
	if err != nil {
		return nil, err
	}
	return mo.(*meta.MetaObject), nil
}

// MetaObjectOf returns the meta-object of obj's runtime class.
func (b *Bridge) MetaObjectOf(obj any) (*meta.MetaObject, error) {
	mo, err := b.guard("reflect", fmt.Sprintf("%T", obj), "", func() (any, error) {
		return b.cache.MetaObjectOf(obj)
	})
	if err != nil {
		return nil, err
	}
	return mo.(*meta.MetaObject), nil
}

// Describe returns the class-info map of obj's class.
func (b *Bridge) Describe(obj any) (value.Value, error) {
	mo, err := b.MetaObjectOf(obj)
	if err != nil {
		return value.Nil, err
	}
	return meta.Describe(mo), nil
}

// DescribeClass returns the class-info map of the named class.
func (b *Bridge) DescribeClass(className string) (value.Value, error) {
	mo, err := b.guard("reflect", className, "", func() (any, error) {
		return b.cache.MetaObjectForName(className)
	})
	if err != nil {
		return value.Nil, err
	}
	return meta.Describe(mo.(*meta.MetaObject)), nil
}

// ---------------------------------------------------------------------------
// Properties
// ---------------------------------------------------------------------------

// ReadProperty reads the named property of obj through its getter, or its
// public field when there is no getter.
func (b *Bridge) ReadProperty(obj any, name string) (value.Value, error) {
	mo, err := b.MetaObjectOf(obj)
	if err != nil {
		return value.Nil, err
	}
	p, ok := mo.FindProperty(name)
	if !ok {
		return value.Nil, fmt.Errorf("%s.%s: %w", mo.ClassName(), name, ErrUnknownProperty)
	}

	raw, err := b.guard("read", mo.ClassName(), name, func() (any, error) {
		if g := p.Getter(); g != nil {
			return g.Invoke(obj, nil)
		}
		return p.Field().Get(obj)
	})
	if err != nil {
		return value.Nil, err
	}
	return b.m.ToValue(raw)
}

// WriteProperty writes v into the named property of obj through its setter,
// or its public field when there is no setter. v is converted to the
// declared parameter or field type first.
func (b *Bridge) WriteProperty(obj any, name string, v value.Value) error {
	mo, err := b.MetaObjectOf(obj)
	if err != nil {
		return err
	}
	p, ok := mo.FindProperty(name)
	if !ok {
		return fmt.Errorf("%s.%s: %w", mo.ClassName(), name, ErrUnknownProperty)
	}
	if !p.IsWritable() {
		return fmt.Errorf("%s.%s: %w", mo.ClassName(), name, ErrReadOnly)
	}

	_, err = b.guard("write", mo.ClassName(), name, func() (any, error) {
		if s := p.Setter(); s != nil {
			arg, err := b.m.FromValueAs(v, s.ParameterTypes()[0])
			if err != nil {
				return nil, err
			}
			return s.Invoke(obj, []any{arg})
		}
		arg, err := b.m.FromValueAs(v, p.Field().Type())
		if err != nil {
			return nil, err
		}
		return nil, p.Field().Set(obj, arg)
	})
	return err
}

// ---------------------------------------------------------------------------
// Methods
// ---------------------------------------------------------------------------

// InvokeMethod calls the method of obj whose name and parameter kinds equal
// sig. Arguments are converted to the declared parameter types. Invoking a
// signal emits it.
func (b *Bridge) InvokeMethod(obj any, sig meta.Signature, args []value.Value) (value.Value, error) {
	mo, err := b.MetaObjectOf(obj)
	if err != nil {
		return value.Nil, err
	}
	idx := mo.IndexOfMethod(sig)
	if idx < 0 {
		return value.Nil, fmt.Errorf("%s.%s: %w", mo.ClassName(), sig, ErrUnknownMethod)
	}
	mm, _ := mo.Method(idx)
	if len(args) != mm.ParamCount() {
		return value.Nil, fmt.Errorf("%s.%s: %w", mo.ClassName(), sig, host.ErrArgumentCount)
	}
	if mm.IsSignal() {
		_, err := b.emit(obj, mo, idx, args)
		return value.Nil, err
	}

	raw, err := b.guard("invoke", mo.ClassName(), mm.Name, func() (any, error) {
		in := make([]any, len(args))
		for i, a := range args {
			hv, err := b.m.FromValueAs(a, mm.ParamTypes()[i])
			if err != nil {
				return nil, err
			}
			in[i] = hv
		}
		return mm.Method().Invoke(obj, in)
	})
	if err != nil {
		return value.Nil, err
	}
	if mm.Return == value.None {
		return value.Nil, nil
	}
	return b.m.ToValue(raw)
}

// Invoke calls the method named name whose parameter kinds equal the kinds
// of args.
func (b *Bridge) Invoke(obj any, name string, args ...value.Value) (value.Value, error) {
	return b.InvokeMethod(obj, meta.SignatureOf(name, args), args)
}

// ---------------------------------------------------------------------------
// Channel-registered objects
// ---------------------------------------------------------------------------

// RegisterObject publishes obj under name, the way a channel exposes an
// object to its peer. The object's class is reflected eagerly.
func (b *Bridge) RegisterObject(name string, obj any) (*registry.Ref, error) {
	if _, err := b.MetaObjectOf(obj); err != nil {
		return nil, err
	}
	ref, err := b.reg.Register(obj)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if old, ok := b.objects[name]; ok && old != ref {
		return nil, fmt.Errorf("dispatch: object name %q already registered", name)
	}
	b.objects[name] = ref
	log.Infof("registered object %q as %s", name, ref)
	return ref, nil
}

// DeregisterObject withdraws the object published under name. The object
// stays in the identity registry while it has signal connections.
func (b *Bridge) DeregisterObject(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	ref, ok := b.objects[name]
	if !ok {
		return false
	}
	delete(b.objects, name)
	if obj, alive := ref.Object(); alive && !b.connectedLocked(ref) {
		b.reg.Deregister(obj)
	}
	log.Infof("deregistered object %q", name)
	return true
}

// Object returns the object published under name.
func (b *Bridge) Object(name string) (any, bool) {
	b.mu.Lock()
	ref, ok := b.objects[name]
	b.mu.Unlock()
	if !ok {
		return nil, false
	}
	return ref.Object()
}

// ObjectNames returns the names of published objects.
func (b *Bridge) ObjectNames() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.objects))
	for name := range b.objects {
		names = append(names, name)
	}
	return names
}

func (b *Bridge) publishedLocked(ref *registry.Ref) bool {
	for _, r := range b.objects {
		if r == ref {
			return true
		}
	}
	return false
}
