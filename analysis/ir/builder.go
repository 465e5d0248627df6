// Copyright the rangeprop authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ir

import "fmt"

// A Builder constructs a Function programmatically. It owns the function until
// Build is called; afterwards the function ids are assigned and the builder must
// not be reused.
type Builder struct {
	fn      *Function
	current *Operation // loop whose body is being built, nil for top level
	nameSeq int
	built   bool
}

// NewBuilder returns a builder for a new function with the given name.
func NewBuilder(name string) *Builder {
	return &Builder{fn: &Function{Name: name}}
}

// Param appends an entry parameter to the function and returns its value.
func (b *Builder) Param(name string, typ Type) *Value {
	v := &Value{name: name, typ: typ}
	b.fn.Params = append(b.fn.Params, v)
	return v
}

func (b *Builder) freshName() string {
	b.nameSeq++
	return fmt.Sprintf("v%d", b.nameSeq)
}

// Op appends a generic operation with the given kind, result types, operands and
// attributes, and returns it. Most callers use the typed helpers below.
func (b *Builder) Op(kind string, resultTypes []Type, operands []*Value, attrs map[string]int64) *Operation {
	op := &Operation{
		Kind:     kind,
		Operands: operands,
		Attrs:    attrs,
		parent:   b.current,
		fn:       b.fn,
	}
	for _, typ := range resultTypes {
		op.Results = append(op.Results, &Value{name: b.freshName(), typ: typ, def: op})
	}
	for _, operand := range operands {
		operand.uses = append(operand.uses, op)
	}
	if b.current != nil {
		b.current.Body = append(b.current.Body, op)
	} else {
		b.fn.Body = append(b.fn.Body, op)
	}
	return op
}

// Constant emits an integer constant of the given type.
func (b *Builder) Constant(v int64, typ Type) *Value {
	op := b.Op(KindConstant, []Type{typ}, nil, map[string]int64{"value": v})
	return op.Results[0]
}

// Cmp emits an integer comparison producing an i1 (or tensor of i1).
func (b *Builder) Cmp(pred Predicate, lhs, rhs *Value) *Value {
	resTy := I1
	if !lhs.typ.IsScalar() {
		resTy = Tensor(I1, lhs.typ.Shape...)
	}
	op := b.Op(KindCmp, []Type{resTy}, []*Value{lhs, rhs}, map[string]int64{"predicate": int64(pred)})
	return op.Results[0]
}

// Assume emits an assumption anchored on the given boolean condition.
func (b *Builder) Assume(cond *Value) *Operation {
	return b.Op(KindAssume, nil, []*Value{cond}, nil)
}

// MakeRange emits the affine range generator producing [start, end).
func (b *Builder) MakeRange(start, end int64, width uint) *Value {
	typ := Tensor(Type{Width: width}, end-start)
	op := b.Op(KindMakeRange, []Type{typ}, nil, map[string]int64{"start": start, "end": end})
	return op.Results[0]
}

// ProgramID emits the lane-identifier producer.
func (b *Builder) ProgramID() *Value {
	return b.Op(KindProgramID, []Type{I32}, nil, nil).Results[0]
}

// NumPrograms emits the total-lane-count producer.
func (b *Builder) NumPrograms() *Value {
	return b.Op(KindNumPrograms, []Type{I32}, nil, nil).Results[0]
}

// Return emits the function terminator.
func (b *Builder) Return(operands ...*Value) *Operation {
	return b.Op(KindReturn, nil, operands, nil)
}

// For emits a loop with bounds lo and hi, the given step, and loop-carried values
// initialized from inits. The body callback receives the induction variable and the
// iteration arguments and returns the values yielded to the next iteration; the
// loop results mirror the init types.
func (b *Builder) For(lo, hi, step *Value, inits []*Value,
	body func(b *Builder, iv *Value, args []*Value) []*Value) *Operation {

	operands := append([]*Value{lo, hi, step}, inits...)
	resultTypes := make([]Type, len(inits))
	for i, init := range inits {
		resultTypes[i] = init.typ
	}
	op := b.Op(KindFor, resultTypes, operands, nil)

	iv := &Value{name: b.freshName(), typ: lo.typ, owner: op}
	op.BodyArgs = append(op.BodyArgs, iv)
	args := make([]*Value, len(inits))
	for i, init := range inits {
		args[i] = &Value{name: b.freshName(), typ: init.typ, owner: op}
		op.BodyArgs = append(op.BodyArgs, args[i])
	}

	outer := b.current
	b.current = op
	yielded := body(b, iv, args)
	if len(yielded) != len(inits) {
		panic(fmt.Sprintf("loop body yielded %d values, expected %d", len(yielded), len(inits)))
	}
	b.Op(KindYield, nil, yielded, nil)
	b.current = outer
	return op
}

// Build assigns dense ids to all operations and values and returns the function.
func (b *Builder) Build() *Function {
	if b.built {
		panic("Build called twice on the same builder")
	}
	b.built = true
	Finalize(b.fn)
	return b.fn
}

// Finalize assigns dense ids to every operation and value of the function in
// pre-order. It is idempotent and must be called after any structural change that
// adds values.
func Finalize(f *Function) {
	f.values = f.values[:0]
	f.ops = f.ops[:0]
	addValue := func(v *Value) {
		v.id = len(f.values)
		f.values = append(f.values, v)
	}
	for _, p := range f.Params {
		addValue(p)
	}
	f.Walk(func(op *Operation) {
		op.id = len(f.ops)
		f.ops = append(f.ops, op)
		for _, arg := range op.BodyArgs {
			addValue(arg)
		}
		for _, res := range op.Results {
			addValue(res)
		}
	})
}
