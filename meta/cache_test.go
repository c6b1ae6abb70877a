package meta

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/hybridge/host"
	"github.com/chazu/hybridge/host/dynhost"
	"github.com/chazu/hybridge/host/gohost"
	"github.com/chazu/hybridge/value"
)

func noop(*dynhost.Object, []any) (any, error) { return nil, nil }

// newFixture defines demo.Counter and its subclass demo.Derived.
func newFixture(t *testing.T) *dynhost.Runtime {
	t.Helper()
	rt := dynhost.NewRuntime()
	rt.MustDefine(dynhost.ClassDef{
		Name: "demo.Counter",
		Fields: []dynhost.FieldDef{
			{Name: "count", Type: dynhost.IntType},
			{Name: "secret", Type: dynhost.StringType},
			{Name: "label", Type: dynhost.StringType, Modifiers: host.Public},
			{Name: "instances", Type: dynhost.IntType, Modifiers: host.Public | host.Static},
			{Name: "name", Type: dynhost.StringType},
		},
		Methods: []dynhost.MethodDef{
			{Name: "getCount", Modifiers: host.Public, Return: dynhost.IntType, Body: noop},
			{Name: "reset", Modifiers: host.Public, Body: noop},
			{Name: "setCount", Modifiers: host.Public, Params: []reflect.Type{dynhost.IntType}, Body: noop},
			{Name: "get", Modifiers: host.Public, Return: dynhost.IntType, Body: noop},
			{Name: "helper", Body: noop},
			{Name: "create", Modifiers: host.Public | host.Static, Body: noop},
			{Name: "render", Modifiers: host.Public | host.Abstract},
			{Name: "setName", Modifiers: host.Public, Params: []reflect.Type{dynhost.StringType}, Body: noop},
		},
	})
	rt.MustDefine(dynhost.ClassDef{
		Name:  "demo.Derived",
		Super: "demo.Counter",
		Fields: []dynhost.FieldDef{
			{Name: "extra", Type: dynhost.LongType, Modifiers: host.Public},
			{Name: "label", Type: dynhost.StringType, Modifiers: host.Public},
		},
		Methods: []dynhost.MethodDef{
			{Name: "foo", Modifiers: host.Public, Params: []reflect.Type{dynhost.IntType}, Body: noop},
			{Name: "foo", Modifiers: host.Public, Params: []reflect.Type{dynhost.StringType}, Body: noop},
		},
	})
	return rt
}

func classNamed(t *testing.T, rt host.Runtime, name string) host.Class {
	t.Helper()
	c, err := rt.ClassForName(name)
	if err != nil {
		t.Fatalf("ClassForName(%s): %v", name, err)
	}
	return c
}

func propertyNames(ps []*MetaProperty) []string {
	var names []string
	for _, p := range ps {
		names = append(names, p.Name)
	}
	return names
}

func methodNames(ms []*MetaMethod) []string {
	var names []string
	for _, m := range ms {
		names = append(names, m.Name)
	}
	return names
}

func TestCacheIsIdempotent(t *testing.T) {
	rt := newFixture(t)
	c := NewCache(rt)
	cls := classNamed(t, rt, "demo.Derived")

	first, err := c.MetaObjectFor(cls)
	if err != nil {
		t.Fatalf("MetaObjectFor failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mo, err := c.MetaObjectFor(cls)
			if err != nil || mo != first {
				t.Errorf("lookup %d returned %p, %v; want %p", i, mo, err, first)
			}
		}()
	}
	wg.Wait()

	for _, name := range []string{"demo.Derived", "demo.Counter"} {
		if got := rt.Stats(name); got != (dynhost.Stats{DeclaredFields: 1, DeclaredMethods: 1}) {
			t.Errorf("%s reflected %+v, want once each", name, got)
		}
	}
	if c.Len() != 3 {
		t.Errorf("Len = %d, want 3 (root, Counter, Derived)", c.Len())
	}
}

func TestConcurrentFirstBuild(t *testing.T) {
	rt := newFixture(t)
	c := NewCache(rt)

	results := make([]*MetaObject, 8)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = c.MetaObjectForName("demo.Counter")
		}()
	}
	wg.Wait()

	for i, mo := range results {
		if mo == nil || mo != results[0] {
			t.Fatalf("result %d = %p, want %p", i, mo, results[0])
		}
	}
	if got := rt.Stats("demo.Counter").DeclaredMethods; got != 1 {
		t.Errorf("DeclaredMethods called %d times, want 1", got)
	}
}

func TestAccessorFolding(t *testing.T) {
	rt := newFixture(t)
	mo, err := NewCache(rt).MetaObjectForName("demo.Counter")
	if err != nil {
		t.Fatalf("MetaObjectForName failed: %v", err)
	}

	// secret has no accessors, instances is static, name has only a setter.
	if diff := cmp.Diff([]string{"count", "label"}, propertyNames(mo.OwnProperties())); diff != "" {
		t.Errorf("properties mismatch (-want +got):\n%s", diff)
	}
	count, ok := mo.FindProperty("count")
	if !ok {
		t.Fatal("count property missing")
	}
	if count.Getter() == nil || count.Getter().Name() != "getCount" {
		t.Errorf("count getter = %v", count.Getter())
	}
	if count.Setter() == nil || count.Setter().Name() != "setCount" {
		t.Errorf("count setter = %v", count.Setter())
	}
	if count.Type != value.Int || count.HasNotifySignal() {
		t.Errorf("count type = %s", count.Type)
	}

	label, _ := mo.FindProperty("label")
	if !label.IsReadable() || !label.IsWritable() || label.Getter() != nil {
		t.Error("label should be a public field property without accessors")
	}

	// Folded accessors are gone; non-public, static and abstract methods are
	// filtered; "get" has an empty remainder and stays a method.
	if diff := cmp.Diff([]string{"reset", "get"}, methodNames(mo.OwnMethods())); diff != "" {
		t.Errorf("methods mismatch (-want +got):\n%s", diff)
	}
}

func TestInheritanceComposition(t *testing.T) {
	rt := newFixture(t)
	c := NewCache(rt)
	base, _ := c.MetaObjectForName("demo.Counter")
	derived, err := c.MetaObjectForName("demo.Derived")
	if err != nil {
		t.Fatalf("MetaObjectForName failed: %v", err)
	}

	if derived.Superclass() != base || base.Superclass() != c.Root() {
		t.Fatal("meta-object chain does not mirror the class chain")
	}
	if !derived.Inherits(c.Root()) || base.Inherits(derived) {
		t.Error("Inherits is wrong")
	}

	if got, want := derived.PropertyCount(), len(derived.OwnProperties())+base.PropertyCount(); got != want {
		t.Errorf("PropertyCount = %d, want %d", got, want)
	}
	if got, want := derived.MethodCount(), len(derived.OwnMethods())+base.MethodCount(); got != want {
		t.Errorf("MethodCount = %d, want %d", got, want)
	}

	for i := 0; i < derived.PropertyCount(); i++ {
		p, ok := derived.Property(i)
		if !ok {
			t.Fatalf("Property(%d) missing", i)
		}
		if i < derived.PropertyOffset() {
			want, _ := base.Property(i)
			if p != want {
				t.Errorf("Property(%d) = %s, want inherited %s", i, p.Name, want.Name)
			}
		} else if p != derived.OwnProperties()[i-derived.PropertyOffset()] {
			t.Errorf("Property(%d) = %s, want own entry", i, p.Name)
		}
	}
	if _, ok := derived.Property(derived.PropertyCount()); ok {
		t.Error("index past the end should not resolve")
	}
	if _, ok := derived.Property(-1); ok {
		t.Error("negative index should not resolve")
	}

	// A same-named subclass property does not shadow the inherited one:
	// the first composite match wins.
	if i, want := derived.IndexOfProperty("label"), base.IndexOfProperty("label"); i != want || i >= derived.PropertyOffset() {
		t.Errorf("IndexOfProperty(label) = %d, want inherited index %d", i, want)
	}
	if i := derived.IndexOfProperty("count"); i != base.IndexOfProperty("count") {
		t.Errorf("inherited property index = %d", i)
	}
	if derived.IndexOfProperty("missing") != -1 {
		t.Error("unknown property should report -1")
	}
}

func TestRootCarriesDestroyedSignal(t *testing.T) {
	rt := newFixture(t)
	c := NewCache(rt)
	root := c.Root()

	if root.ClassName() != dynhost.RootClassName || root.PropertyCount() != 0 {
		t.Errorf("root = %s with %d properties", root.ClassName(), root.PropertyCount())
	}
	derived, _ := c.MetaObjectForName("demo.Derived")
	m, ok := derived.Method(0)
	if !ok || m.Name != DestroyedSignal || !m.IsSignal() || m.Method() != nil {
		t.Errorf("method 0 = %+v, want the destroyed signal", m)
	}
	if i := derived.IndexOfMethod(Signature{Name: DestroyedSignal}); i != 0 {
		t.Errorf("IndexOfMethod(destroyed) = %d, want 0", i)
	}
	for i := 1; i < derived.MethodCount(); i++ {
		if m, _ := derived.Method(i); m.IsSignal() {
			t.Errorf("method %d (%s) should not be a signal", i, m.Name)
		}
	}
}

func TestOverloadDisambiguation(t *testing.T) {
	rt := newFixture(t)
	derived, _ := NewCache(rt).MetaObjectForName("demo.Derived")

	sig := SignatureOf("foo", []value.Value{value.FromInt(3)})
	m, ok := derived.FindMethod(sig)
	if !ok {
		t.Fatalf("no method matches %s", sig)
	}
	if m.ParamTypes()[0] != dynhost.IntType {
		t.Errorf("selected %s, want the int overload", m.Signature())
	}

	overloads := derived.MethodsNamed("foo")
	if len(overloads) != 2 {
		t.Fatalf("MethodsNamed(foo) = %d entries, want 2", len(overloads))
	}
	for _, o := range overloads {
		if o.Params[0] == value.String && o.Matches(sig) {
			t.Error("int signature must not match the string overload")
		}
	}

	if derived.IndexOfMethod(SignatureOf("foo", []value.Value{value.FromLong(3)})) != -1 {
		t.Error("long argument should not match either overload")
	}
	if derived.IndexOfMethod(Signature{Name: "foo"}) != -1 {
		t.Error("name alone should not match")
	}
}

func TestReflectionFailureIsNotCached(t *testing.T) {
	rt := newFixture(t)
	c := NewCache(rt)
	boom := errors.New("class loader exploded")
	rt.FailReflection("demo.Counter", boom)

	if _, err := c.MetaObjectForName("demo.Derived"); !errors.Is(err, boom) {
		t.Fatalf("error = %v, want the reflection failure", err)
	}
	var rerr *host.ReflectionError
	if _, err := c.MetaObjectForName("demo.Counter"); !errors.As(err, &rerr) {
		t.Errorf("error should carry the ReflectionError, got %v", err)
	}
	for _, name := range []string{"demo.Counter", "demo.Derived"} {
		if _, ok := c.Lookup(name); ok {
			t.Errorf("%s should not be cached after a failure", name)
		}
	}

	rt.FailReflection("demo.Counter", nil)
	if _, err := c.MetaObjectForName("demo.Derived"); err != nil {
		t.Fatalf("build after recovery failed: %v", err)
	}
}

func TestWarm(t *testing.T) {
	rt := newFixture(t)
	c := NewCache(rt)

	if err := c.Warm("demo.Derived"); err != nil {
		t.Fatalf("Warm failed: %v", err)
	}
	if _, ok := c.Lookup("demo.Counter"); !ok {
		t.Error("warming a class should build its superclass")
	}
	if err := c.Warm("demo.Missing"); !errors.Is(err, host.ErrUnknownClass) {
		t.Errorf("Warm(missing) error = %v", err)
	}
}

func TestMetaObjectOf(t *testing.T) {
	rt := newFixture(t)
	c := NewCache(rt)
	obj, _ := rt.New("demo.Derived")

	mo, err := c.MetaObjectOf(obj)
	if err != nil || mo.ClassName() != "demo.Derived" {
		t.Errorf("MetaObjectOf = %v, %v", mo, err)
	}
	if _, err := c.MetaObjectOf(nil); !errors.Is(err, host.ErrNilObject) {
		t.Errorf("MetaObjectOf(nil) error = %v", err)
	}
}

type gauge struct {
	level  int32
	Unit   string
	hidden bool
}

func (g *gauge) Level() int32       { return g.level }
func (g *gauge) SetLevel(n int32)   { g.level = n }
func (g *gauge) Bump(n int32) int32 { g.level += n; return g.level }

func TestGoConvention(t *testing.T) {
	rt := gohost.NewRuntime()
	gohost.MustBind[gauge](rt, gohost.WithName("demo.Gauge"))
	mo, err := NewCache(rt).MetaObjectForName("demo.Gauge")
	if err != nil {
		t.Fatalf("MetaObjectForName failed: %v", err)
	}

	if diff := cmp.Diff([]string{"level", "Unit"}, propertyNames(mo.OwnProperties())); diff != "" {
		t.Errorf("properties mismatch (-want +got):\n%s", diff)
	}
	level, _ := mo.FindProperty("level")
	if level.Getter() == nil || level.Setter() == nil {
		t.Error("level should fold Level and SetLevel")
	}
	if diff := cmp.Diff([]string{"Bump"}, methodNames(mo.OwnMethods())); diff != "" {
		t.Errorf("methods mismatch (-want +got):\n%s", diff)
	}
}

func TestConventionOverride(t *testing.T) {
	rt := newFixture(t)
	c := NewCache(rt, WithConvention(host.Convention{Getter: "fetch", Setter: "store"}))
	mo, _ := c.MetaObjectForName("demo.Counter")

	// Under a foreign convention nothing folds, so only label survives.
	if diff := cmp.Diff([]string{"label"}, propertyNames(mo.OwnProperties())); diff != "" {
		t.Errorf("properties mismatch (-want +got):\n%s", diff)
	}
}

func TestSignature(t *testing.T) {
	sig := SignatureOf("move", []value.Value{value.FromInt(1), value.FromString("x")})
	if sig.String() != "move(int, string)" {
		t.Errorf("String() = %q", sig.String())
	}
	if !sig.Equal(Signature{Name: "move", Params: []value.Kind{value.Int, value.String}}) {
		t.Error("identical signatures should be equal")
	}
	if sig.Equal(Signature{Name: "move", Params: []value.Kind{value.String, value.Int}}) {
		t.Error("parameter order matters")
	}
}
