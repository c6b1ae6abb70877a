package gohost

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/chazu/hybridge/host"
)

var errorType = reflect.TypeFor[error]()

// Class is a bound Go struct type, or the root class when typ is nil.
type Class struct {
	rt          *Runtime
	name        string
	typ         reflect.Type
	super       *Class
	embedsSuper bool
	makeWeak    func(any) (host.WeakRef, error)
}

// Name returns the class name.
func (c *Class) Name() string {
	return c.name
}

// Type returns the bound struct type, or nil for the root class.
func (c *Class) Type() reflect.Type {
	return c.typ
}

// Superclass returns nil for the root class.
func (c *Class) Superclass() (host.Class, error) {
	if c.super == nil {
		return nil, nil
	}
	return c.super, nil
}

// DeclaredFields returns the struct's own fields in declaration order. The
// embedded superclass field is not a declared field.
func (c *Class) DeclaredFields() ([]host.Field, error) {
	if c.typ == nil {
		return nil, nil
	}
	var out []host.Field
	for i := range c.typ.NumField() {
		if i == 0 && c.embedsSuper {
			continue
		}
		out = append(out, &Field{class: c, sf: c.typ.Field(i)})
	}
	return out, nil
}

// DeclaredMethods returns the methods of *T that are not inherited from the
// superclass, in reflect's (sorted by name) order. Methods overriding a
// superclass method are not declared again; invocation dispatches on the
// receiver's dynamic type, so the override still runs. Methods with more
// than one non-error result cannot be described and are skipped.
func (c *Class) DeclaredMethods() ([]host.Method, error) {
	if c.typ == nil {
		return nil, nil
	}
	pt := reflect.PointerTo(c.typ)
	var inherited reflect.Type
	if c.embedsSuper {
		inherited = reflect.PointerTo(c.super.typ)
	}

	var out []host.Method
	for i := range pt.NumMethod() {
		m := pt.Method(i)
		if inherited != nil {
			if _, ok := inherited.MethodByName(m.Name); ok {
				continue
			}
		}
		gm, ok := newMethod(c, m)
		if !ok {
			continue
		}
		out = append(out, gm)
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

// receiver resolves obj to the addressable struct value of class c, walking
// down through embedded superclass fields when obj is a subclass instance.
func (c *Class) receiver(op, member string, obj any) (reflect.Value, error) {
	fail := func() (reflect.Value, error) {
		return reflect.Value{}, &host.ReflectionError{Op: op, Class: c.name, Member: member,
			Err: fmt.Errorf("%w: receiver %T", host.ErrTypeMismatch, obj)}
	}
	oc := c.rt.lookupInstance(obj)
	if oc == nil || !oc.IsSubclassOf(c) {
		return fail()
	}
	v := reflect.ValueOf(obj).Elem()
	for cur := oc; cur != c; cur = cur.super {
		v = v.Field(0)
	}
	return v, nil
}

// ---------------------------------------------------------------------------
// Field
// ---------------------------------------------------------------------------

// Field is a struct field of a bound class. Exported fields are public.
// Unexported fields are described but cannot be read or written.
type Field struct {
	class *Class
	sf    reflect.StructField
}

func (f *Field) Name() string       { return f.sf.Name }
func (f *Field) Type() reflect.Type { return f.sf.Type }

func (f *Field) Modifiers() host.Modifier {
	if f.sf.IsExported() {
		return host.Public
	}
	return 0
}

// Get reads the field of obj.
func (f *Field) Get(obj any) (any, error) {
	fv, err := f.value("get", obj)
	if err != nil {
		return nil, err
	}
	return fv.Interface(), nil
}

// Set writes v into the field of obj. v must be assignable to the field type.
func (f *Field) Set(obj any, v any) error {
	fv, err := f.value("set", obj)
	if err != nil {
		return err
	}
	rv, err := argValue(v, f.sf.Type)
	if err != nil {
		return &host.ReflectionError{Op: "set", Class: f.class.name, Member: f.sf.Name, Err: err}
	}
	fv.Set(rv)
	return nil
}

func (f *Field) value(op string, obj any) (reflect.Value, error) {
	if !f.sf.IsExported() {
		return reflect.Value{}, &host.ReflectionError{Op: op, Class: f.class.name, Member: f.sf.Name,
			Err: errors.New("field is not exported")}
	}
	sv, err := f.class.receiver(op, f.sf.Name, obj)
	if err != nil {
		return reflect.Value{}, err
	}
	return sv.FieldByIndex(f.sf.Index), nil
}

// ---------------------------------------------------------------------------
// Method
// ---------------------------------------------------------------------------

// Method is a method of *T for a bound class T.
type Method struct {
	class    *Class
	name     string
	params   []reflect.Type
	ret      reflect.Type
	variadic bool
	errOut   bool
}

func newMethod(c *Class, m reflect.Method) (*Method, bool) {
	mt := m.Type
	gm := &Method{class: c, name: m.Name, variadic: mt.IsVariadic()}
	for i := 1; i < mt.NumIn(); i++ {
		gm.params = append(gm.params, mt.In(i))
	}

	outs := mt.NumOut()
	if outs > 0 && mt.Out(outs-1) == errorType {
		gm.errOut = true
		outs--
	}
	switch outs {
	case 0:
	case 1:
		gm.ret = mt.Out(0)
	default:
		return nil, false
	}
	return gm, true
}

func (m *Method) Name() string                   { return m.name }
func (m *Method) Modifiers() host.Modifier       { return host.Public }
func (m *Method) ParameterTypes() []reflect.Type { return m.params }
func (m *Method) ReturnType() reflect.Type       { return m.ret }

// Invoke calls the method on obj. Arguments must be assignable to the
// declared parameter types; a variadic method takes its trailing slice as a
// single argument. Panics and returned errors become ReflectionErrors.
func (m *Method) Invoke(obj any, args []any) (result any, err error) {
	fail := func(cause error) error {
		return &host.ReflectionError{Op: "invoke", Class: m.class.name, Member: m.name, Err: cause}
	}
	if len(args) != len(m.params) {
		return nil, fail(fmt.Errorf("%w: got %d, want %d", host.ErrArgumentCount, len(args), len(m.params)))
	}
	if _, err := m.class.receiver("invoke", m.name, obj); err != nil {
		return nil, err
	}
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		rv, err := argValue(a, m.params[i])
		if err != nil {
			return nil, fail(fmt.Errorf("argument %d: %w", i, err))
		}
		in[i] = rv
	}

	// Resolve on the receiver's dynamic type so subclass overrides run.
	fn := reflect.ValueOf(obj).MethodByName(m.name)

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = host.Recovered("invoke", m.class.name, m.name, r)
		}
	}()
	var out []reflect.Value
	if m.variadic {
		out = fn.CallSlice(in)
	} else {
		out = fn.Call(in)
	}

	if m.errOut {
		last := out[len(out)-1]
		if !last.IsNil() {
			return nil, fail(last.Interface().(error))
		}
		out = out[:len(out)-1]
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0].Interface(), nil
}

func argValue(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		switch t.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, fmt.Errorf("%w: nil is not %s", host.ErrTypeMismatch, t)
	}
	rv := reflect.ValueOf(v)
	if !rv.Type().AssignableTo(t) {
		return reflect.Value{}, fmt.Errorf("%w: %T is not %s", host.ErrTypeMismatch, v, t)
	}
	return rv, nil
}
