package dynhost

import (
	"errors"
	"fmt"
	"reflect"
	"slices"

	"github.com/chazu/hybridge/host"
)

// FieldDef declares a field. A nil Init starts the field at the zero value
// of Type.
type FieldDef struct {
	Name      string
	Type      reflect.Type
	Modifiers host.Modifier
	Init      any
}

// MethodDef declares a method. Abstract methods have no Body. A nil Return
// declares a method that returns nothing.
type MethodDef struct {
	Name      string
	Modifiers host.Modifier
	Params    []reflect.Type
	Return    reflect.Type
	Body      func(self *Object, args []any) (any, error)
}

// ClassDef declares a class. An empty Super extends the root class.
type ClassDef struct {
	Name    string
	Super   string
	Fields  []FieldDef
	Methods []MethodDef
}

// Class is a defined dynhost class.
type Class struct {
	rt      *Runtime
	name    string
	super   *Class
	fields  []*Field
	methods []*Method
	statics map[*Field]any
}

// Define adds a class to the runtime.
func (rt *Runtime) Define(def ClassDef) (*Class, error) {
	if def.Name == "" {
		return nil, errors.New("dynhost: class name is required")
	}
	superName := def.Super
	if superName == "" {
		superName = RootClassName
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	if _, exists := rt.classes[def.Name]; exists {
		return nil, fmt.Errorf("dynhost: class %s already defined", def.Name)
	}
	super, ok := rt.classes[superName]
	if !ok {
		return nil, fmt.Errorf("dynhost: superclass %s of %s: %w", superName, def.Name, host.ErrUnknownClass)
	}

	c := &Class{rt: rt, name: def.Name, super: super, statics: make(map[*Field]any)}
	seen := make(map[string]bool)
	for _, fd := range def.Fields {
		if fd.Name == "" || fd.Type == nil {
			return nil, fmt.Errorf("dynhost: %s: field needs a name and a type", def.Name)
		}
		if seen[fd.Name] {
			return nil, fmt.Errorf("dynhost: %s: duplicate field %s", def.Name, fd.Name)
		}
		seen[fd.Name] = true
		f := &Field{class: c, def: fd}
		c.fields = append(c.fields, f)
		if fd.Modifiers.Has(host.Static) {
			c.statics[f] = initialValue(fd)
		}
	}
	for _, md := range def.Methods {
		if md.Name == "" {
			return nil, fmt.Errorf("dynhost: %s: method needs a name", def.Name)
		}
		if md.Body == nil && !md.Modifiers.Has(host.Abstract) {
			return nil, fmt.Errorf("dynhost: %s.%s: concrete method needs a body", def.Name, md.Name)
		}
		for _, m := range c.methods {
			if m.def.Name == md.Name && slices.Equal(m.def.Params, md.Params) {
				return nil, fmt.Errorf("dynhost: %s: duplicate method %s", def.Name, md.Name)
			}
		}
		c.methods = append(c.methods, &Method{class: c, def: md})
	}

	rt.classes[def.Name] = c
	return c, nil
}

// MustDefine is like Define but panics on error. It is meant for fixtures.
func (rt *Runtime) MustDefine(def ClassDef) *Class {
	c, err := rt.Define(def)
	if err != nil {
		panic(err)
	}
	return c
}

func initialValue(fd FieldDef) any {
	if fd.Init != nil {
		return fd.Init
	}
	return reflect.Zero(fd.Type).Interface()
}

// Name returns the class name.
func (c *Class) Name() string {
	return c.name
}

// Superclass returns nil for the root class.
func (c *Class) Superclass() (host.Class, error) {
	if c.super == nil {
		return nil, nil
	}
	return c.super, nil
}

// DeclaredFields returns the fields declared by this class only.
func (c *Class) DeclaredFields() ([]host.Field, error) {
	c.rt.count(c.name, func(s *Stats) { s.DeclaredFields++ })
	if err := c.rt.checkPending("fields", c.name, ""); err != nil {
		return nil, err
	}
	out := make([]host.Field, len(c.fields))
	for i, f := range c.fields {
		out[i] = f
	}
	return out, nil
}

// DeclaredMethods returns the methods declared by this class only, in
// declaration order.
func (c *Class) DeclaredMethods() ([]host.Method, error) {
	c.rt.count(c.name, func(s *Stats) { s.DeclaredMethods++ })
	if err := c.rt.injected(c.name); err != nil {
		return nil, &host.ReflectionError{Op: "methods", Class: c.name, Err: err}
	}
	if err := c.rt.checkPending("methods", c.name, ""); err != nil {
		return nil, err
	}
	out := make([]host.Method, len(c.methods))
	for i, m := range c.methods {
		out[i] = m
	}
	return out, nil
}

// IsSubclassOf returns true if c is other or inherits from it.
func (c *Class) IsSubclassOf(other *Class) bool {
	for cur := c; cur != nil; cur = cur.super {
		if cur == other {
			return true
		}
	}
	return false
}

// New instantiates the class. Every instance field of the class chain starts
// at its declared initial value.
func (rt *Runtime) New(className string) (*Object, error) {
	c := rt.Lookup(className)
	if c == nil {
		return nil, fmt.Errorf("dynhost: %w: %s", host.ErrUnknownClass, className)
	}
	o := &Object{class: c, slots: make(map[*Field]any)}
	for cur := c; cur != nil; cur = cur.super {
		for _, f := range cur.fields {
			if !f.def.Modifiers.Has(host.Static) {
				o.slots[f] = initialValue(f.def)
			}
		}
	}
	return o, nil
}

// ---------------------------------------------------------------------------
// Object
// ---------------------------------------------------------------------------

// Object is an instance of a dynhost class.
type Object struct {
	class *Class
	slots map[*Field]any
}

// Class returns the object's class.
func (o *Object) Class() *Class {
	return o.class
}

// Get reads a field by name, searching from the object's class upward. It is
// the direct accessor method bodies use; it bypasses visibility.
func (o *Object) Get(name string) any {
	if f := o.class.findField(name); f != nil {
		if f.def.Modifiers.Has(host.Static) {
			return f.class.statics[f]
		}
		return o.slots[f]
	}
	return nil
}

// Set writes a field by name. Unknown names are ignored.
func (o *Object) Set(name string, v any) {
	if f := o.class.findField(name); f != nil {
		if f.def.Modifiers.Has(host.Static) {
			f.class.statics[f] = v
			return
		}
		o.slots[f] = v
	}
}

func (c *Class) findField(name string) *Field {
	for cur := c; cur != nil; cur = cur.super {
		for _, f := range cur.fields {
			if f.def.Name == name {
				return f
			}
		}
	}
	return nil
}

func (o *Object) String() string {
	return fmt.Sprintf("%s@%p", o.class.name, o)
}
