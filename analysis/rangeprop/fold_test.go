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

package rangeprop

import (
	"testing"

	"github.com/regionir/rangeprop/analysis/interval"
	"github.com/regionir/rangeprop/analysis/ir"
)

func TestEvaluatePredicate(t *testing.T) {
	low := interval.FromSigned(0, 10, 32)
	high := interval.FromSigned(20, 30, 32)
	overlap := interval.FromSigned(5, 15, 32)
	c5 := interval.Constant(5, 32)
	neg := interval.FromSigned(-10, -1, 32)

	tests := []struct {
		name          string
		pred          ir.Predicate
		a, b          interval.Interval
		want, decided bool
	}{
		{"slt disjoint", ir.PredSLT, low, high, true, true},
		{"slt reversed", ir.PredSLT, high, low, false, true},
		{"slt overlap", ir.PredSLT, low, overlap, false, false},
		{"sle equal bound", ir.PredSLE, interval.FromSigned(0, 5, 32), interval.FromSigned(5, 9, 32), true, true},
		{"sgt", ir.PredSGT, high, low, true, true},
		{"sge", ir.PredSGE, high, low, true, true},
		{"eq constants", ir.PredEQ, c5, interval.Constant(5, 32), true, true},
		{"eq disjoint", ir.PredEQ, low, high, false, true},
		{"eq overlap", ir.PredEQ, low, overlap, false, false},
		{"ne disjoint", ir.PredNE, low, high, true, true},
		{"ne same constant", ir.PredNE, c5, interval.Constant(5, 32), false, true},
		{"ult", ir.PredULT, low, high, true, true},
		{"ule", ir.PredULE, interval.FromUnsigned(0, 5, 32), interval.FromUnsigned(5, 9, 32), true, true},
		{"ugt negative wraps high", ir.PredUGT, neg, low, true, true},
		{"uge", ir.PredUGE, high, low, true, true},
		{"uninitialized", ir.PredSLT, interval.Interval{}, low, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, decided := EvaluatePredicate(tt.pred, tt.a, tt.b)
			if decided != tt.decided || (decided && got != tt.want) {
				t.Errorf("EvaluatePredicate(%s, %s, %s) = %v, %v; want %v, %v",
					tt.pred, tt.a, tt.b, got, decided, tt.want, tt.decided)
			}
		})
	}
}

func TestFoldTrueCmps(t *testing.T) {
	fn := mustParse(t, `
func @f() {
  %a = rir.make_range {end = 10, start = 0} : tensor<10xi32>
  %lo = arith.constant 0 : i32
  %hi = arith.constant 20 : i32
  %c30 = arith.constant 30 : i32
  %inrange = arith.cmpi slt, %lo, %hi
  rir.assume %inrange
  %maybe = arith.cmpi slt, %hi, %c30
  rir.assume %maybe
  func.return
}
`)
	s := newTestSolver(t, fn)
	s.Solve()

	if n := FoldTrueCmps(s); n != 2 {
		t.Errorf("folded %d comparisons, want 2", n)
	}
	var cmps, consts int
	fn.Walk(func(op *ir.Operation) {
		switch op.Kind {
		case ir.KindCmp:
			cmps++
		case ir.KindConstant:
			consts++
		}
	})
	if cmps != 0 {
		t.Errorf("%d comparisons left, want 0", cmps)
	}
	// Three original constants plus two inserted true constants.
	if consts != 5 {
		t.Errorf("%d constants, want 5", consts)
	}
	// Every assume must now consume a constant true.
	fn.Walk(func(op *ir.Operation) {
		if op.Kind != ir.KindAssume {
			return
		}
		v, ok := ir.ConstantValue(op.Operands[0])
		if !ok || v != 1 {
			t.Errorf("assume does not consume a constant true")
		}
	})
}

func TestFoldKeepsUndecidedCmps(t *testing.T) {
	fn := mustParse(t, `
func @f(%x: i32) {
  %c10 = arith.constant 10 : i32
  %undecided = arith.cmpi slt, %x, %c10
  func.return %undecided
}
`)
	s := newTestSolver(t, fn)
	s.Solve()

	if n := FoldTrueCmps(s); n != 0 {
		t.Errorf("folded %d comparisons, want 0", n)
	}
	var cmps int
	fn.Walk(func(op *ir.Operation) {
		if op.Kind == ir.KindCmp {
			cmps++
		}
	})
	if cmps != 1 {
		t.Errorf("the undecided comparison should survive, found %d cmps", cmps)
	}
}

func TestFoldAssumedComparison(t *testing.T) {
	// An assumed comparison is true by construction once the assumption has
	// refined its operand, so the rewrite can discharge it.
	fn := mustParse(t, `
func @f(%x: i32) {
  %c10 = arith.constant 10 : i32
  %bound = arith.cmpi slt, %x, %c10
  rir.assume %bound
  func.return
}
`)
	s := newTestSolver(t, fn)
	s.Solve()

	if n := FoldTrueCmps(s); n != 1 {
		t.Errorf("folded %d comparisons, want 1", n)
	}
}

func TestFoldIgnoresFalseAndTensorCmps(t *testing.T) {
	fn := mustParse(t, `
func @f() {
  %t = rir.make_range {end = 8, start = 0} : tensor<8xi32>
  %u = rir.make_range {end = 8, start = 0} : tensor<8xi32>
  %tensorcmp = arith.cmpi slt, %t, %u
  rir.assume %tensorcmp
  %lo = arith.constant 0 : i32
  %hi = arith.constant 20 : i32
  %false = arith.cmpi sgt, %lo, %hi
  rir.assume %false
  func.return
}
`)
	s := newTestSolver(t, fn)
	s.Solve()

	if n := FoldTrueCmps(s); n != 0 {
		t.Errorf("folded %d comparisons, want 0", n)
	}
	var cmps int
	fn.Walk(func(op *ir.Operation) {
		if op.Kind == ir.KindCmp {
			cmps++
		}
	})
	if cmps != 2 {
		t.Errorf("tensor and always-false comparisons should survive, found %d cmps", cmps)
	}
}
