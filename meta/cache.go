package meta

import (
	"fmt"
	"sync"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/singleflight"

	"github.com/chazu/hybridge/host"
	"github.com/chazu/hybridge/value"
)

var log = commonlog.GetLogger("hybridge.meta")

// Cache builds MetaObjects on first use and keeps them for its lifetime.
// Each class name maps to exactly one MetaObject. Lookups of built classes
// take no lock; construction of any one class runs at most once at a time.
type Cache struct {
	rt   host.Runtime
	conv host.Convention
	root *MetaObject

	entries sync.Map // class name -> *MetaObject
	group   singleflight.Group
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithConvention overrides the runtime's accessor naming convention.
func WithConvention(conv host.Convention) CacheOption {
	return func(c *Cache) { c.conv = conv }
}

// NewCache creates a cache for classes of rt, seeded with the root
// meta-object.
func NewCache(rt host.Runtime, opts ...CacheOption) *Cache {
	c := &Cache{rt: rt, conv: rt.Convention()}
	for _, opt := range opts {
		opt(c)
	}
	c.root = newRoot(rt.RootClass().Name())
	c.entries.Store(c.root.className, c.root)
	return c
}

// Runtime returns the host runtime the cache reflects.
func (c *Cache) Runtime() host.Runtime {
	return c.rt
}

// Root returns the meta-object of the universal base class.
func (c *Cache) Root() *MetaObject {
	return c.root
}

// Lookup returns an already built meta-object without building it.
func (c *Cache) Lookup(className string) (*MetaObject, bool) {
	if v, ok := c.entries.Load(className); ok {
		return v.(*MetaObject), true
	}
	return nil, false
}

// Len returns the number of cached meta-objects, root included.
func (c *Cache) Len() int {
	n := 0
	c.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// MetaObjectFor returns the meta-object of cls, building it and any
// uncached superclasses first. A host reflection failure is returned and
// nothing is cached for the failing class.
func (c *Cache) MetaObjectFor(cls host.Class) (*MetaObject, error) {
	name := cls.Name()
	if mo, ok := c.Lookup(name); ok {
		return mo, nil
	}

	v, err, _ := c.group.Do(name, func() (any, error) {
		if mo, ok := c.Lookup(name); ok {
			return mo, nil
		}

		superCls, err := cls.Superclass()
		if err != nil {
			return nil, fmt.Errorf("meta: superclass of %s: %w", name, err)
		}
		super := c.root
		if superCls != nil {
			if super, err = c.MetaObjectFor(superCls); err != nil {
				return nil, err
			}
		}

		mo, err := c.build(cls, super)
		if err != nil {
			log.Warningf("building meta-object for %s: %s", name, err)
			return nil, err
		}
		c.entries.Store(name, mo)
		log.Debugf("built meta-object for %s: %d properties, %d methods", name, len(mo.properties), len(mo.methods))
		return mo, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*MetaObject), nil
}

// MetaObjectOf returns the meta-object of obj's runtime class.
func (c *Cache) MetaObjectOf(obj any) (*MetaObject, error) {
	cls, err := c.rt.ClassOf(obj)
	if err != nil {
		return nil, fmt.Errorf("meta: class of %T: %w", obj, err)
	}
	return c.MetaObjectFor(cls)
}

// MetaObjectForName resolves a class by name and returns its meta-object.
func (c *Cache) MetaObjectForName(className string) (*MetaObject, error) {
	if mo, ok := c.Lookup(className); ok {
		return mo, nil
	}
	cls, err := c.rt.ClassForName(className)
	if err != nil {
		return nil, fmt.Errorf("meta: %w", err)
	}
	return c.MetaObjectFor(cls)
}

// Warm builds the meta-objects of the named classes ahead of first use. It
// stops at the first failure.
func (c *Cache) Warm(classNames ...string) error {
	for _, name := range classNames {
		if _, err := c.MetaObjectForName(name); err != nil {
			return err
		}
	}
	return nil
}

// build reflects cls once and folds accessor methods into properties.
func (c *Cache) build(cls host.Class, super *MetaObject) (*MetaObject, error) {
	name := cls.Name()
	fields, err := cls.DeclaredFields()
	if err != nil {
		return nil, fmt.Errorf("meta: fields of %s: %w", name, err)
	}
	methods, err := cls.DeclaredMethods()
	if err != nil {
		return nil, fmt.Errorf("meta: methods of %s: %w", name, err)
	}

	mo := &MetaObject{
		className:      name,
		super:          super,
		propertyOffset: super.PropertyCount(),
		methodOffset:   super.MethodCount(),
	}

	candidates := make([]*MetaProperty, 0, len(fields))
	byName := make(map[string]*MetaProperty, len(fields))
	for _, f := range fields {
		p := &MetaProperty{Name: f.Name(), Type: value.KindOf(f.Type()), field: f}
		candidates = append(candidates, p)
		byName[p.Name] = p
	}

	for _, m := range methods {
		mods := m.Modifiers()
		if !mods.Has(host.Public) || mods.Has(host.Static) || mods.Has(host.Abstract) {
			continue
		}
		if c.fold(m, byName) {
			continue
		}
		mo.methods = append(mo.methods, newMetaMethod(m))
	}

	for _, p := range candidates {
		if p.valid() {
			mo.properties = append(mo.properties, p)
		}
	}
	return mo, nil
}

// fold attaches m to a candidate property as its getter or setter. It
// returns false if m is an ordinary method.
func (c *Cache) fold(m host.Method, props map[string]*MetaProperty) bool {
	switch len(m.ParameterTypes()) {
	case 0:
		if m.ReturnType() == nil {
			return false
		}
		name, ok := AccessorProperty(c.conv.Getter, m.Name())
		if !ok {
			return false
		}
		if p := props[name]; p != nil && p.getter == nil {
			p.getter = m
			return true
		}
	case 1:
		name, ok := AccessorProperty(c.conv.Setter, m.Name())
		if !ok {
			return false
		}
		if p := props[name]; p != nil && p.setter == nil {
			p.setter = m
			return true
		}
	}
	return false
}
