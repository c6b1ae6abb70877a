package dynhost

import (
	"errors"
	"fmt"
	"reflect"
	"slices"

	"github.com/chazu/hybridge/host"
)

// Field is a declared dynhost field.
type Field struct {
	class *Class
	def   FieldDef
}

func (f *Field) Name() string             { return f.def.Name }
func (f *Field) Modifiers() host.Modifier { return f.def.Modifiers }
func (f *Field) Type() reflect.Type       { return f.def.Type }

// Get reads the field of obj. Static fields ignore obj.
func (f *Field) Get(obj any) (any, error) {
	rt := f.class.rt
	if err := rt.checkPending("get", f.class.name, f.def.Name); err != nil {
		return nil, err
	}
	if f.def.Modifiers.Has(host.Static) {
		return f.class.statics[f], nil
	}
	o, err := f.receiver("get", obj)
	if err != nil {
		return nil, rt.raise(err)
	}
	return o.slots[f], nil
}

// Set writes v into the field of obj. v must be assignable to the field type.
func (f *Field) Set(obj any, v any) error {
	rt := f.class.rt
	if err := rt.checkPending("set", f.class.name, f.def.Name); err != nil {
		return err
	}
	if !assignable(v, f.def.Type) {
		return rt.raise(&host.ReflectionError{Op: "set", Class: f.class.name, Member: f.def.Name,
			Err: fmt.Errorf("%w: %T is not %s", host.ErrTypeMismatch, v, f.def.Type)})
	}
	if f.def.Modifiers.Has(host.Static) {
		f.class.statics[f] = v
		return nil
	}
	o, err := f.receiver("set", obj)
	if err != nil {
		return rt.raise(err)
	}
	o.slots[f] = v
	return nil
}

func (f *Field) receiver(op string, obj any) (*Object, error) {
	o, ok := obj.(*Object)
	if !ok || o == nil || !o.class.IsSubclassOf(f.class) {
		return nil, &host.ReflectionError{Op: op, Class: f.class.name, Member: f.def.Name,
			Err: fmt.Errorf("%w: receiver %v", host.ErrTypeMismatch, obj)}
	}
	return o, nil
}

// Method is a declared dynhost method.
type Method struct {
	class *Class
	def   MethodDef
}

func (m *Method) Name() string                   { return m.def.Name }
func (m *Method) Modifiers() host.Modifier       { return m.def.Modifiers }
func (m *Method) ParameterTypes() []reflect.Type { return m.def.Params }
func (m *Method) ReturnType() reflect.Type       { return m.def.Return }

// Invoke calls the method on obj. Argument count and types are checked
// strictly; any failure, including an error returned by the body, is left
// pending on the runtime.
func (m *Method) Invoke(obj any, args []any) (result any, err error) {
	rt := m.class.rt
	if err := rt.checkPending("invoke", m.class.name, m.def.Name); err != nil {
		return nil, err
	}
	fail := func(cause error) error {
		return rt.raise(&host.ReflectionError{Op: "invoke", Class: m.class.name, Member: m.def.Name, Err: cause})
	}
	if len(args) != len(m.def.Params) {
		return nil, fail(fmt.Errorf("%w: got %d, want %d", host.ErrArgumentCount, len(args), len(m.def.Params)))
	}
	for i, a := range args {
		if !assignable(a, m.def.Params[i]) {
			return nil, fail(fmt.Errorf("%w: argument %d is %T, want %s", host.ErrTypeMismatch, i, a, m.def.Params[i]))
		}
	}

	var self *Object
	if !m.def.Modifiers.Has(host.Static) {
		o, ok := obj.(*Object)
		if !ok || o == nil || !o.class.IsSubclassOf(m.class) {
			return nil, fail(fmt.Errorf("%w: receiver %v", host.ErrTypeMismatch, obj))
		}
		self = o
	}

	// Instance methods dispatch on the receiver's class, so an override
	// declared by a subclass runs in place of m.
	body := m
	if self != nil {
		body = self.class.resolve(m)
	}
	if body.def.Modifiers.Has(host.Abstract) || body.def.Body == nil {
		return nil, fail(errors.New("abstract method"))
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = rt.raise(host.Recovered("invoke", m.class.name, m.def.Name, r))
		}
	}()
	result, err = body.def.Body(self, args)
	if err != nil {
		return nil, fail(err)
	}
	return result, nil
}

func assignable(v any, t reflect.Type) bool {
	if v == nil {
		switch t.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Slice, reflect.Map, reflect.Func:
			return true
		}
		return false
	}
	return reflect.TypeOf(v).AssignableTo(t)
}

// resolve returns the most derived method of c's chain with m's name and
// parameter types. m itself is the fallback.
func (c *Class) resolve(m *Method) *Method {
	for cur := c; cur != nil && cur != m.class; cur = cur.super {
		for _, cand := range cur.methods {
			if cand.def.Name == m.def.Name && slices.Equal(cand.def.Params, m.def.Params) &&
				!cand.def.Modifiers.Has(host.Static) {
				return cand
			}
		}
	}
	return m
}
