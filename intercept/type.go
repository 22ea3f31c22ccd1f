// Package intercept wraps the operations of a type so that every invocation
// is bracketed by an entry event and an exit event.
//
// Go cannot rewrite methods at run time, so a type takes part in
// interception through an explicit descriptor: a Type lists its operations
// and owns a replaceable implementation for each of them. Callers reach the
// operations through Type.Invoke, or through typed decorators that forward to
// an Instance.
package intercept

import (
	"fmt"
	"reflect"
	"sync/atomic"
)

// A Func is the implementation of an operation. The receiver is nil for
// type-level operations. A trailing non-nil error result, or a panic, is
// the failure of the operation.
type Func func(recv any, args []any) []any

// invoker is what a method slot holds. The error is reserved for failures of
// the instrumentation itself, never for failures of the operation.
type invoker func(recv any, args []any) ([]any, error)

func original(fn Func) invoker {
	return func(recv any, args []any) ([]any, error) {
		return fn(recv, args), nil
	}
}

// A Method describes one operation of a Type.
type Method struct {
	Name     string
	Static   bool
	Sealed   bool
	Arity    int
	Variadic bool

	// sig is the Go signature of reflection-built operations. Its first
	// recvIn parameters are bound to the receiver.
	sig    reflect.Type
	recvIn int

	impl atomic.Pointer[invoker]
}

func newMethod(name string, static bool, fn Func) *Method {
	m := &Method{Name: name, Static: static, Arity: -1}
	m.install(original(fn))

	return m
}

func (m *Method) install(inv invoker) {
	m.impl.Store(&inv)
}

func (m *Method) current() invoker {
	return *m.impl.Load()
}

func (m *Method) checkArgs(args []any) error {
	switch {
	case m.Arity < 0:
	case m.Variadic && len(args) >= m.Arity-1:
	case !m.Variadic && len(args) == m.Arity:
	default:
		return fmt.Errorf("%w: %s takes %d, got %d",
			ErrArity, m.Name, m.Arity, len(args))
	}

	if m.sig == nil {
		return nil
	}

	for i, a := range args {
		want := paramType(m.sig, i+m.recvIn)
		if !fits(want, a) {
			return fmt.Errorf("%w: %s argument %d: cannot use %T as %s",
				ErrArgument, m.Name, i, a, want)
		}
	}

	return nil
}

// A Type is the descriptor of an instrumentable type. The method table is
// fixed once the type is declared in a Catalog; only the implementations
// can be replaced afterwards.
type Type struct {
	name    string
	goType  reflect.Type
	unsafe  bool
	methods map[string]*Method
	order   []*Method
}

// NewType creates an empty descriptor.
func NewType(name string) *Type {
	if name == "" {
		panic("type name must not be empty")
	}

	return &Type{
		name:    name,
		methods: make(map[string]*Method),
	}
}

// Name returns the name of the type.
func (t *Type) Name() string {
	return t.name
}

// GoType returns the Go type the descriptor was built from, if any.
func (t *Type) GoType() reflect.Type {
	return t.goType
}

// WithMethod adds an instance operation.
func (t *Type) WithMethod(name string, fn Func) *Type {
	t.add(newMethod(name, false, fn))
	return t
}

// WithStaticMethod adds a type-level operation.
func (t *Type) WithStaticMethod(name string, fn Func) *Type {
	t.add(newMethod(name, true, fn))
	return t
}

// WithSealedMethod adds an instance operation whose implementation cannot be
// replaced. Wrapping reports an error for it.
func (t *Type) WithSealedMethod(name string, fn Func) *Type {
	m := newMethod(name, false, fn)
	m.Sealed = true
	t.add(m)

	return t
}

// WithFunc adds a type-level operation backed by a Go function.
func (t *Type) WithFunc(name string, fn any) *Type {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		panic(fmt.Sprintf("%s#%s: %T is not a function", t.name, name, fn))
	}

	m := newMethod(name, true, func(_ any, args []any) []any {
		return callReflect(v, nil, args)
	})
	m.Arity = v.Type().NumIn()
	m.Variadic = v.Type().IsVariadic()
	m.sig = v.Type()
	t.add(m)

	return t
}

// Unsafe marks the type as unsafe to wrap. Wrapping it is a no-op.
func (t *Type) Unsafe() *Type {
	t.unsafe = true
	return t
}

func (t *Type) add(m *Method) {
	if m.Name == "" {
		panic("operation name must not be empty")
	}

	if _, found := t.methods[m.Name]; found {
		panic(fmt.Sprintf("%s#%s is defined twice", t.name, m.Name))
	}

	t.methods[m.Name] = m
	t.order = append(t.order, m)
}

// Methods lists the instance operations followed by the type-level
// operations, each group in definition order.
func (t *Type) Methods() []*Method {
	out := make([]*Method, 0, len(t.order))

	for _, m := range t.order {
		if !m.Static {
			out = append(out, m)
		}
	}

	for _, m := range t.order {
		if m.Static {
			out = append(out, m)
		}
	}

	return out
}

// Method returns the operation with the given name.
func (t *Type) Method(name string) (*Method, bool) {
	m, ok := t.methods[name]
	return m, ok
}

// Invoke runs an instance operation on recv. The results are exactly the
// results of the operation. The error is only set when the instrumentation
// fails, for example when an observer rejects the call.
func (t *Type) Invoke(recv any, op string, args ...any) ([]any, error) {
	m, err := t.lookup(op, false)
	if err != nil {
		return nil, err
	}

	if err := t.checkReceiver(recv); err != nil {
		return nil, err
	}

	if err := m.checkArgs(args); err != nil {
		return nil, err
	}

	return m.current()(recv, args)
}

// InvokeStatic runs a type-level operation.
func (t *Type) InvokeStatic(op string, args ...any) ([]any, error) {
	m, err := t.lookup(op, true)
	if err != nil {
		return nil, err
	}

	if err := m.checkArgs(args); err != nil {
		return nil, err
	}

	return m.current()(nil, args)
}

func (t *Type) lookup(op string, static bool) (*Method, error) {
	m, ok := t.methods[op]
	if !ok {
		return nil, &OperationError{Type: t.name, Operation: op,
			Err: ErrNoSuchOperation}
	}

	if m.Static != static {
		return nil, &OperationError{Type: t.name, Operation: op,
			Err: ErrLevelMismatch}
	}

	return m, nil
}

func (t *Type) checkReceiver(recv any) error {
	if t.goType == nil {
		return nil
	}

	if recv == nil || reflect.TypeOf(recv) != t.goType {
		return fmt.Errorf("%w: %s wants %s, got %T",
			ErrReceiverMismatch, t.name, t.goType, recv)
	}

	return nil
}

// Bind returns an Instance that invokes operations on recv.
func (t *Type) Bind(recv any) *Instance {
	return &Instance{t: t, recv: recv}
}

// An Instance pairs a receiver with its descriptor. Typed decorators keep an
// Instance and forward every method to Call.
type Instance struct {
	t    *Type
	recv any
}

// Type returns the descriptor.
func (i *Instance) Type() *Type {
	return i.t
}

// Receiver returns the bound receiver.
func (i *Instance) Receiver() any {
	return i.recv
}

// Call invokes an instance operation on the bound receiver.
func (i *Instance) Call(op string, args ...any) ([]any, error) {
	return i.t.Invoke(i.recv, op, args...)
}

// Failure returns the trailing error result, if there is one and it is not
// nil.
func Failure(results []any) error {
	if len(results) == 0 {
		return nil
	}

	err, _ := results[len(results)-1].(error)

	return err
}

// Result splits the results of a two-valued operation.
func Result[T any](results []any, err error) (T, error) {
	var zero T

	if err != nil {
		return zero, err
	}

	if len(results) == 0 {
		return zero, nil
	}

	v, _ := results[0].(T)

	if len(results) > 1 {
		return v, Failure(results)
	}

	return v, nil
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// IsErrorType returns true if values of t can be used as errors.
func IsErrorType(t reflect.Type) bool {
	return t != nil && t.Implements(errorType)
}

func callReflect(fn reflect.Value, recv any, args []any) []any {
	ft := fn.Type()
	in := make([]reflect.Value, 0, len(args)+1)

	if recv != nil {
		in = append(in, reflect.ValueOf(recv))
	}

	for i, a := range args {
		in = append(in, argValue(paramType(ft, len(in)), a, i))
	}

	out := fn.Call(in)
	results := make([]any, len(out))
	for i, o := range out {
		results[i] = o.Interface()
	}

	return results
}

func paramType(ft reflect.Type, i int) reflect.Type {
	if ft.IsVariadic() && i >= ft.NumIn()-1 {
		return ft.In(ft.NumIn() - 1).Elem()
	}

	return ft.In(i)
}

// fits returns true if a can be passed where want is expected. Untyped nil
// fits any parameter and becomes its zero value. Numeric conversions are
// allowed, conversions between numbers and strings are not.
func fits(want reflect.Type, a any) bool {
	if a == nil {
		return true
	}

	at := reflect.TypeOf(a)

	return at.AssignableTo(want) ||
		(at.ConvertibleTo(want) &&
			(want.Kind() == reflect.String) == (at.Kind() == reflect.String))
}

func argValue(want reflect.Type, a any, i int) reflect.Value {
	if !fits(want, a) {
		panic(fmt.Sprintf("argument %d: cannot use %T as %s", i, a, want))
	}

	if a == nil {
		return reflect.Zero(want)
	}

	v := reflect.ValueOf(a)
	if v.Type().AssignableTo(want) {
		return v
	}

	return v.Convert(want)
}
