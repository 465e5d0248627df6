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

// Package ir defines the region-structured intermediate representation the range
// analysis operates on: SSA-style values, operations with an open set of kinds, and
// single-region loop operations with accessible bound and step operands. The analyses
// in analysis/rangeprop treat this package as a read-only program graph; only the
// comparison-folding rewriter mutates it, through the rewrite helpers defined here.
package ir

import (
	"fmt"
	"strings"
)

// A Type describes an integer value or a tensor of integers. Shape is nil for
// scalars. Only the element width matters to the range analysis.
type Type struct {
	Width uint
	Shape []int64
}

// Convenience scalar types.
var (
	I1  = Type{Width: 1}
	I8  = Type{Width: 8}
	I16 = Type{Width: 16}
	I32 = Type{Width: 32}
	I64 = Type{Width: 64}
)

// Tensor returns a tensor type with the given element type and dimensions.
func Tensor(elem Type, dims ...int64) Type {
	return Type{Width: elem.Width, Shape: dims}
}

// IsInteger reports whether the type carries integer elements.
func (t Type) IsInteger() bool { return t.Width > 0 }

// IsScalar reports whether the type is a scalar (not a tensor).
func (t Type) IsScalar() bool { return t.Shape == nil }

func (t Type) String() string {
	if t.Shape == nil {
		return fmt.Sprintf("i%d", t.Width)
	}
	parts := make([]string, len(t.Shape))
	for i, d := range t.Shape {
		parts[i] = fmt.Sprintf("%d", d)
	}
	return fmt.Sprintf("tensor<%sxi%d>", strings.Join(parts, "x"), t.Width)
}

// A Value is produced by exactly one operation, or is an entry parameter of a
// function or of a loop body. Values are identified by pointer; they additionally
// carry a dense id assigned when the enclosing function is built, so that analyses
// can use index-based tables instead of pointer-keyed maps.
type Value struct {
	id    int
	name  string
	typ   Type
	def   *Operation   // nil for function parameters and loop body arguments
	owner *Operation   // the loop op owning this body argument, nil otherwise
	uses  []*Operation // operations using this value as an operand
}

// ID returns the dense index of the value within its function.
func (v *Value) ID() int { return v.id }

// Name returns the SSA name of the value, without the leading sigil.
func (v *Value) Name() string { return v.name }

// Type returns the type of the value.
func (v *Value) Type() Type { return v.typ }

// DefiningOp returns the operation producing this value, or nil for entry
// parameters and loop body arguments.
func (v *Value) DefiningOp() *Operation { return v.def }

// OwnerLoop returns the loop operation this value is a body argument of, or nil.
func (v *Value) OwnerLoop() *Operation { return v.owner }

// Uses returns the operations consuming this value.
func (v *Value) Uses() []*Operation { return v.uses }

// An Operation is a node of the program graph: a kind drawn from an open set,
// ordered operands, zero or more results, integer attributes, and for loop kinds a
// single-block body region with entry arguments.
type Operation struct {
	id       int
	Kind     string
	Operands []*Value
	Results  []*Value
	Attrs    map[string]int64

	// Body and BodyArgs are populated for region-carrying kinds (KindFor). BodyArgs
	// holds the induction variable followed by the iteration arguments.
	Body     []*Operation
	BodyArgs []*Value

	parent *Operation // enclosing loop operation, nil at function top level
	fn     *Function
}

// ID returns the dense index of the operation within its function.
func (op *Operation) ID() int { return op.id }

// Attr returns the named integer attribute and whether it is present.
func (op *Operation) Attr(name string) (int64, bool) {
	v, ok := op.Attrs[name]
	return v, ok
}

// Parent returns the enclosing loop operation, or nil at function top level.
func (op *Operation) Parent() *Operation { return op.parent }

// Function returns the function owning the operation.
func (op *Operation) Function() *Function { return op.fn }

// ConstantValue returns the integer value of a constant operation's result, and
// whether v is in fact defined by a constant operation.
func ConstantValue(v *Value) (int64, bool) {
	if v == nil || v.def == nil || v.def.Kind != KindConstant {
		return 0, false
	}
	c, ok := v.def.Attr("value")
	return c, ok
}

// A Function holds a name, entry parameters, and a top-level operation list.
// Loops nest through operation bodies rather than through explicit blocks.
type Function struct {
	Name   string
	Params []*Value
	Body   []*Operation

	values []*Value
	ops    []*Operation
}

// Values returns every value of the function in definition order, indexable by
// Value.ID.
func (f *Function) Values() []*Value { return f.values }

// Ops returns every operation of the function in pre-order, indexable by
// Operation.ID.
func (f *Function) Ops() []*Operation { return f.ops }

// NumValues returns the number of values in the function.
func (f *Function) NumValues() int { return len(f.values) }

// NumOps returns the number of operations in the function.
func (f *Function) NumOps() int { return len(f.ops) }

// Walk visits every operation of the function in pre-order, entering loop bodies.
func (f *Function) Walk(visit func(*Operation)) {
	var rec func(ops []*Operation)
	rec = func(ops []*Operation) {
		for _, op := range ops {
			visit(op)
			if len(op.Body) > 0 {
				rec(op.Body)
			}
		}
	}
	rec(f.Body)
}

// ReplaceAllUses rewires every use of old to new and updates the use lists of both
// values. The defining operation of old is left in place; dead operations are
// removed by EraseIfDead.
func (f *Function) ReplaceAllUses(old, new *Value) {
	for _, user := range old.uses {
		for i, operand := range user.Operands {
			if operand == old {
				user.Operands[i] = new
			}
		}
		new.uses = append(new.uses, user)
	}
	old.uses = nil
}

// EraseIfDead removes op from its operation list if none of its results have uses.
// It reports whether the operation was removed. Region-carrying operations are never
// erased.
func (f *Function) EraseIfDead(op *Operation) bool {
	if len(op.Body) > 0 {
		return false
	}
	for _, res := range op.Results {
		if len(res.uses) > 0 {
			return false
		}
	}
	list := &f.Body
	if op.parent != nil {
		list = &op.parent.Body
	}
	for i, o := range *list {
		if o == op {
			*list = append((*list)[:i], (*list)[i+1:]...)
			for _, operand := range op.Operands {
				operand.removeUse(op)
			}
			return true
		}
	}
	return false
}

// InsertConstantBefore creates a new constant operation immediately before op, in
// the same operation list, and returns its result value. Intended for rewriters
// running on an already-built function; the new value and operation receive fresh
// dense ids at the end of the function's tables.
func (f *Function) InsertConstantBefore(op *Operation, v int64, typ Type) *Value {
	c := &Operation{
		id:     len(f.ops),
		Kind:   KindConstant,
		Attrs:  map[string]int64{"value": v},
		parent: op.parent,
		fn:     f,
	}
	res := &Value{
		id:    len(f.values),
		name:  fmt.Sprintf("v%d", len(f.values)),
		typ:   typ,
		def:   c,
		owner: op.parent,
	}
	c.Results = []*Value{res}
	f.ops = append(f.ops, c)
	f.values = append(f.values, res)

	list := &f.Body
	if op.parent != nil {
		list = &op.parent.Body
	}
	for i, o := range *list {
		if o == op {
			*list = append((*list)[:i], append([]*Operation{c}, (*list)[i:]...)...)
			break
		}
	}
	return res
}

func (v *Value) removeUse(op *Operation) {
	for i, u := range v.uses {
		if u == op {
			v.uses = append(v.uses[:i], v.uses[i+1:]...)
			return
		}
	}
}

// String renders the function in the textual form accepted by Parse.
func (f *Function) String() string {
	var b strings.Builder
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = fmt.Sprintf("%%%s: %s", p.name, p.typ)
	}
	fmt.Fprintf(&b, "func @%s(%s) {\n", f.Name, strings.Join(params, ", "))
	printOps(&b, f.Body, "  ")
	b.WriteString("}\n")
	return b.String()
}

func printOps(b *strings.Builder, ops []*Operation, indent string) {
	for _, op := range ops {
		b.WriteString(indent)
		b.WriteString(formatOp(op, indent))
		b.WriteString("\n")
	}
}

func formatOp(op *Operation, indent string) string {
	var b strings.Builder
	if len(op.Results) > 0 {
		names := make([]string, len(op.Results))
		for i, r := range op.Results {
			names[i] = "%" + r.name
		}
		fmt.Fprintf(&b, "%s = ", strings.Join(names, ", "))
	}
	switch op.Kind {
	case KindFor:
		fmt.Fprintf(&b, "%s %%%s = %%%s to %%%s step %%%s", KindFor,
			op.BodyArgs[0].name, op.Operands[0].name, op.Operands[1].name, op.Operands[2].name)
		if len(op.Operands) > 3 {
			pairs := make([]string, len(op.Operands)-3)
			for i, init := range op.Operands[3:] {
				pairs[i] = fmt.Sprintf("%%%s = %%%s", op.BodyArgs[i+1].name, init.name)
			}
			fmt.Fprintf(&b, " iter_args(%s)", strings.Join(pairs, ", "))
		}
		b.WriteString(" {\n")
		var inner strings.Builder
		printOps(&inner, op.Body, indent+"  ")
		b.WriteString(inner.String())
		b.WriteString(indent)
		b.WriteString("}")
	case KindCmp:
		pred := Predicate(op.Attrs["predicate"])
		fmt.Fprintf(&b, "%s %s, %%%s, %%%s", KindCmp, pred, op.Operands[0].name, op.Operands[1].name)
	case KindConstant:
		fmt.Fprintf(&b, "%s %d : %s", KindConstant, op.Attrs["value"], op.Results[0].typ)
	default:
		b.WriteString(op.Kind)
		if len(op.Attrs) > 0 {
			b.WriteString(" " + formatAttrs(op.Attrs))
		}
		for i, operand := range op.Operands {
			if i == 0 {
				b.WriteString(" ")
			} else {
				b.WriteString(", ")
			}
			b.WriteString("%" + operand.name)
		}
		if len(op.Results) > 0 {
			types := make([]string, len(op.Results))
			for i, r := range op.Results {
				types[i] = r.typ.String()
			}
			fmt.Fprintf(&b, " : %s", strings.Join(types, ", "))
		}
	}
	return b.String()
}

func formatAttrs(attrs map[string]int64) string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	// Deterministic output for the two-attribute case we have in practice.
	for i := 0; i < len(keys); i++ {
		for j := i + 1; j < len(keys); j++ {
			if keys[j] < keys[i] {
				keys[i], keys[j] = keys[j], keys[i]
			}
		}
	}
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s = %d", k, attrs[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
