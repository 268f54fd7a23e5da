package analysis

import (
	"errors"
	"fmt"
)

// ErrNotInvocation is returned when argument resolution is asked for a frame
// that is not a reached method invocation.
var ErrNotInvocation = errors.New("frame is not an invocation")

// MethodParam is one resolved call argument. Name and Type are set when the
// value was loaded from a declared local variable.
type MethodParam struct {
	Name  string
	Type  *Type
	Value Element
}

// Named reports whether the argument was bound to a variable.
func (p MethodParam) Named() bool {
	return p.Name != ""
}

func (p MethodParam) String() string {
	if p.Named() {
		return p.Name
	}
	return p.Value.String()
}

// MethodParams are the arguments of a call in declaration order. Varargs is
// nil unless the last argument is a tracked array, whose elements it holds.
type MethodParams struct {
	Params  []MethodParam
	Varargs []MethodParam
}

// Merge returns the arguments with the trailing array replaced by its
// elements. Params and Varargs are not modified.
func (mp MethodParams) Merge() []MethodParam {
	if mp.Varargs == nil || len(mp.Params) == 0 {
		return append([]MethodParam(nil), mp.Params...)
	}
	out := make([]MethodParam, 0, len(mp.Params)-1+len(mp.Varargs))
	out = append(out, mp.Params[:len(mp.Params)-1]...)
	return append(out, mp.Varargs...)
}

// ResolveParameters reconstructs the arguments of the invocation at f from
// the stack before it.
func ResolveParameters(f *Frame) (MethodParams, error) {
	op, ok := f.Op.(*InvokeOp)
	if !ok || !f.Reachable {
		return MethodParams{}, fmt.Errorf("%d %s: %w", f.Offset(), f.Inst.Name(), ErrNotInvocation)
	}
	var vars *LocalVariables
	if f.method != nil {
		vars = f.method.Vars
	}

	slots := f.Before.Elements()
	n := len(op.Params)
	params := make([]MethodParam, n)
	depth := 0
	for i := n - 1; i >= 0; i-- {
		w := int(op.Params[i].Width())
		if depth+w > len(slots) {
			return MethodParams{}, fmt.Errorf("%d %s: argument %d: %w", f.Offset(), f.Inst.Name(), i, ErrStackUnderflow)
		}
		// The value of a two-slot argument sits under its placeholder.
		params[i] = bind(slots[depth+w-1], vars)
		depth += w
	}

	mp := MethodParams{Params: params}
	if n > 0 {
		top := slots[0]
		if top.Kind == Placeholder && len(slots) > 1 {
			top = slots[1]
		}
		if top.Kind == TrackedArray {
			mp.Varargs = make([]MethodParam, len(top.Elements))
			for i, e := range top.Elements {
				mp.Varargs[i] = bind(e, vars)
			}
		}
	}
	return mp, nil
}

// ResolveParameterNames returns the argument names of the invocation at f,
// with varargs unpacked when varargs is set. Unbound arguments are "".
func ResolveParameterNames(f *Frame, varargs bool) ([]string, error) {
	mp, err := ResolveParameters(f)
	if err != nil {
		return nil, err
	}
	params := mp.Params
	if varargs {
		params = mp.Merge()
	}
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.Name
	}
	return names, nil
}

func bind(e Element, vars *LocalVariables) MethodParam {
	if e.Kind == FromLocal {
		if v, ok := vars.Get(e.Var); ok {
			return MethodParam{Name: v.Name, Type: v.Type, Value: e}
		}
	}
	return MethodParam{Value: e}
}
