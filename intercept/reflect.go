package intercept

import (
	"reflect"
)

// TypeOf builds a descriptor from the exported methods of the sample's type.
// The descriptor is named after the Go type, without the package and
// without the pointer.
func TypeOf(sample any) *Type {
	return NamedTypeOf(ShortName(reflect.TypeOf(sample)), sample)
}

// NamedTypeOf is TypeOf with an explicit descriptor name. Receivers passed to
// Invoke must have exactly the sample's type.
func NamedTypeOf(name string, sample any) *Type {
	rt := reflect.TypeOf(sample)
	if rt == nil {
		panic("sample must not be nil")
	}

	t := NewType(name)
	t.goType = rt

	for i := 0; i < rt.NumMethod(); i++ {
		rm := rt.Method(i)
		fn := rm.Func

		m := newMethod(rm.Name, false, func(recv any, args []any) []any {
			return callReflect(fn, recv, args)
		})
		m.Arity = rm.Type.NumIn() - 1
		m.Variadic = rm.Type.IsVariadic()
		m.sig = rm.Type
		m.recvIn = 1

		t.add(m)
	}

	return t
}

// ShortName returns the name of a Go type without its package, looking
// through pointers.
func ShortName(rt reflect.Type) string {
	for rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}

	if rt.Name() != "" {
		return rt.Name()
	}

	return rt.String()
}
