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

import (
	"testing"
)

func TestTypeString(t *testing.T) {
	tests := []struct {
		typ  Type
		want string
	}{
		{I1, "i1"},
		{I32, "i32"},
		{Tensor(I32, 128), "tensor<128xi32>"},
		{Tensor(I16, 4, 8), "tensor<4x8xi16>"},
	}
	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("Type.String() = %q, want %q", got, tt.want)
		}
	}
}

func buildLoopFn(t *testing.T) *Function {
	t.Helper()
	b := NewBuilder("acc")
	n := b.Param("n", I32)
	lo := b.Constant(0, I32)
	step := b.Constant(1, I32)
	init := b.Constant(0, I32)
	loop := b.For(lo, n, step, []*Value{init},
		func(b *Builder, iv *Value, args []*Value) []*Value {
			sum := b.Op(KindAddI, []Type{I32}, []*Value{args[0], iv}, nil)
			return []*Value{sum.Results[0]}
		})
	b.Return(loop.Results[0])
	return b.Build()
}

func TestBuilderAssignsDenseIDs(t *testing.T) {
	fn := buildLoopFn(t)
	for i, v := range fn.Values() {
		if v.ID() != i {
			t.Errorf("value %q has id %d at index %d", v.Name(), v.ID(), i)
		}
	}
	for i, op := range fn.Ops() {
		if op.ID() != i {
			t.Errorf("op %q has id %d at index %d", op.Kind, op.ID(), i)
		}
	}
	// 3 constants + for + addi + yield + return.
	if fn.NumOps() != 7 {
		t.Errorf("expected 7 ops, got %d", fn.NumOps())
	}
}

func TestLoopAccessors(t *testing.T) {
	fn := buildLoopFn(t)
	var loop *Operation
	fn.Walk(func(op *Operation) {
		if op.IsLoop() {
			loop = op
		}
	})
	if loop == nil {
		t.Fatal("no loop found")
	}
	if loop.InductionVar() == nil {
		t.Error("loop has no induction variable")
	}
	if got := len(loop.IterArgs()); got != 1 {
		t.Errorf("expected 1 iter arg, got %d", got)
	}
	if v, ok := ConstantValue(loop.LowerBound()); !ok || v != 0 {
		t.Errorf("lower bound = %v, %v; want 0", v, ok)
	}
	if v, ok := ConstantValue(loop.Step()); !ok || v != 1 {
		t.Errorf("step = %v, %v; want 1", v, ok)
	}
	if loop.UpperBound().Name() != "n" {
		t.Errorf("upper bound = %%%s, want %%n", loop.UpperBound().Name())
	}
	if loop.YieldOp() == nil {
		t.Error("loop has no yield")
	}
	if got := len(loop.InductionVar().OwnerLoop().Body); got != 2 {
		t.Errorf("expected 2 body ops, got %d", got)
	}
}

func TestLoopEdges(t *testing.T) {
	fn := buildLoopFn(t)
	var loop *Operation
	fn.Walk(func(op *Operation) {
		if op.IsLoop() {
			loop = op
		}
	})

	entry := loop.EntryEdges()
	if len(entry) != 1 {
		t.Fatalf("expected 1 entry edge, got %d", len(entry))
	}
	if entry[0].Dst != loop.IterArgs()[0] {
		t.Error("entry edge should target the iteration argument")
	}
	if _, ok := ConstantValue(entry[0].Src); !ok {
		t.Error("entry edge should come from the init constant")
	}

	back := loop.BackEdges()
	if len(back) != 1 {
		t.Fatalf("expected 1 back edge, got %d", len(back))
	}
	if back[0].Src.DefiningOp() == nil || back[0].Src.DefiningOp().Kind != KindAddI {
		t.Error("back edge should come from the yielded add")
	}
	if back[0].Dst != loop.IterArgs()[0] {
		t.Error("back edge should target the iteration argument")
	}

	exit := loop.ExitEdges()
	if len(exit) != 1 {
		t.Fatalf("expected 1 exit edge, got %d", len(exit))
	}
	if exit[0].Dst != loop.Results[0] {
		t.Error("exit edge should target the loop result")
	}
}

func TestEnclosingLoops(t *testing.T) {
	b := NewBuilder("nest")
	lo := b.Constant(0, I32)
	hi := b.Constant(4, I32)
	step := b.Constant(1, I32)
	var inner *Operation
	b.For(lo, hi, step, nil, func(b *Builder, iv *Value, _ []*Value) []*Value {
		inner = b.For(lo, hi, step, nil, func(b *Builder, iv2 *Value, _ []*Value) []*Value {
			return nil
		})
		return nil
	})
	b.Return()
	b.Build()

	loops := inner.EnclosingLoops()
	if len(loops) != 1 {
		t.Fatalf("inner loop should have 1 enclosing loop, got %d", len(loops))
	}
	if !loops[0].IsLoop() {
		t.Error("enclosing operation is not a loop")
	}
}

func TestReplaceAllUsesAndErase(t *testing.T) {
	b := NewBuilder("rewrite")
	x := b.Param("x", I32)
	ten := b.Constant(10, I32)
	cmp := b.Op(KindCmp, []Type{I1}, []*Value{x, ten}, map[string]int64{"predicate": int64(PredSLT)})
	b.Assume(cmp.Results[0])
	fn := b.Build()

	truth := fn.InsertConstantBefore(cmp, 1, I1)
	fn.ReplaceAllUses(cmp.Results[0], truth)
	if len(cmp.Results[0].Uses()) != 0 {
		t.Error("replaced value still has uses")
	}
	if len(truth.Uses()) != 1 {
		t.Errorf("replacement should have 1 use, got %d", len(truth.Uses()))
	}
	if !fn.EraseIfDead(cmp) {
		t.Error("dead cmp should be erased")
	}
	if len(ten.Uses()) != 0 {
		t.Error("erasing the cmp should drop its operand uses")
	}
	// The assume must now consume the constant.
	for _, op := range fn.Body {
		if op.Kind == KindAssume && op.Operands[0] != truth {
			t.Error("assume does not consume the inserted constant")
		}
	}
}

func TestEraseIfDeadKeepsLiveOps(t *testing.T) {
	b := NewBuilder("live")
	x := b.Param("x", I32)
	y := b.Constant(2, I32)
	sum := b.Op(KindAddI, []Type{I32}, []*Value{x, y}, nil)
	b.Return(sum.Results[0])
	fn := b.Build()

	if fn.EraseIfDead(sum) {
		t.Error("live op must not be erased")
	}
}

func TestPredicates(t *testing.T) {
	for _, p := range []Predicate{PredEQ, PredNE, PredSLT, PredSLE, PredSGT, PredSGE,
		PredULT, PredULE, PredUGT, PredUGE} {
		back, err := ParsePredicate(p.String())
		if err != nil {
			t.Errorf("ParsePredicate(%q): %v", p.String(), err)
		}
		if back != p {
			t.Errorf("predicate %q round-trips to %q", p, back)
		}
	}
	signed := map[Predicate]bool{
		PredEQ: true, PredNE: true, PredSLT: true, PredSLE: true, PredSGT: true, PredSGE: true,
		PredULT: false, PredULE: false, PredUGT: false, PredUGE: false,
	}
	for p, want := range signed {
		if p.IsSigned() != want {
			t.Errorf("%s.IsSigned() = %v, want %v", p, p.IsSigned(), want)
		}
	}
}
