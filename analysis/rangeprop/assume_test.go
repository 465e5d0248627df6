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
	"strings"
	"testing"

	"github.com/regionir/rangeprop/analysis/interval"
	"github.com/regionir/rangeprop/analysis/ir"
)

// assumeFn builds a function asserting `x pred k` (or `k pred x` when swapped).
func assumeFn(t *testing.T, pred ir.Predicate, k int64, swapped bool) (*ir.Function, *ir.Value) {
	t.Helper()
	b := ir.NewBuilder("f")
	x := b.Param("x", ir.I32)
	c := b.Constant(k, ir.I32)
	var cond *ir.Value
	if swapped {
		cond = b.Cmp(pred, c, x)
	} else {
		cond = b.Cmp(pred, x, c)
	}
	b.Assume(cond)
	b.Return(x)
	return b.Build(), x
}

func TestAssumedRangeSingleFact(t *testing.T) {
	tests := []struct {
		name    string
		pred    ir.Predicate
		k       int64
		swapped bool
		want    interval.Interval
	}{
		{"x >= 5", ir.PredSGE, 5, false, interval.FromSigned(5, interval.SignedMax(32), 32)},
		{"x > 5", ir.PredSGT, 5, false, interval.FromSigned(6, interval.SignedMax(32), 32)},
		{"x <= 5", ir.PredSLE, 5, false, interval.FromSigned(interval.SignedMin(32), 5, 32)},
		{"x < 5", ir.PredSLT, 5, false, interval.FromSigned(interval.SignedMin(32), 4, 32)},
		{"x == 5", ir.PredEQ, 5, false, interval.Constant(5, 32)},
		{"5 >= x", ir.PredSGE, 5, true, interval.FromSigned(interval.SignedMin(32), 5, 32)},
		{"5 < x", ir.PredSLT, 5, true, interval.FromSigned(6, interval.SignedMax(32), 32)},
		{"x uge 5", ir.PredUGE, 5, false,
			interval.Full(32).Intersect(interval.FromUnsigned(5, interval.UnsignedMax(32), 32))},
		{"x ult 5", ir.PredULT, 5, false, interval.FromUnsigned(0, 4, 32)},
		{"x ule 5", ir.PredULE, 5, false, interval.FromUnsigned(0, 5, 32)},
		{"5 ugt x", ir.PredUGT, 5, true, interval.FromUnsigned(0, 4, 32)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, x := assumeFn(t, tt.pred, tt.k, tt.swapped)
			set := CollectAssumptions(fn)
			if !set.HasAssumptions(x) {
				t.Fatal("x should carry an assumption")
			}
			got, ok := set.AssumedRange(x)
			if !ok {
				t.Fatal("AssumedRange returned no range")
			}
			want := interval.Full(32).Intersect(tt.want)
			if !got.Equal(want) {
				t.Errorf("AssumedRange = %s, want %s", got, want)
			}
		})
	}
}

func TestAssumedRangeIntersectsFacts(t *testing.T) {
	b := ir.NewBuilder("f")
	x := b.Param("x", ir.I32)
	c5 := b.Constant(5, ir.I32)
	c10 := b.Constant(10, ir.I32)
	b.Assume(b.Cmp(ir.PredSGE, x, c5))
	b.Assume(b.Cmp(ir.PredSLE, x, c10))
	b.Return(x)
	fn := b.Build()

	set := CollectAssumptions(fn)
	got, ok := set.AssumedRange(x)
	if !ok {
		t.Fatal("AssumedRange returned no range")
	}
	want := interval.FromSigned(5, 10, 32)
	if !got.Equal(want) {
		t.Errorf("AssumedRange = %s, want %s", got, want)
	}
}

func TestAssumeUnsupportedPredicate(t *testing.T) {
	fn, x := assumeFn(t, ir.PredNE, 5, false)
	set := CollectAssumptions(fn)
	got, ok := set.AssumedRange(x)
	if !ok {
		t.Fatal("x is still anchored by the comparison")
	}
	// An uninterpretable predicate only costs precision.
	if !got.Equal(interval.Full(32)) {
		t.Errorf("ne assumption should not constrain x, got %s", got)
	}
	found := false
	for _, r := range set.Remarks() {
		if strings.Contains(r, "ne") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a remark about the ne predicate, got %v", set.Remarks())
	}
}

func TestAssumeNonComparisonCondition(t *testing.T) {
	b := ir.NewBuilder("f")
	cond := b.Param("cond", ir.I1)
	b.Assume(cond)
	b.Return()
	fn := b.Build()

	set := CollectAssumptions(fn)
	if len(set.Remarks()) != 1 {
		t.Errorf("expected 1 remark for the opaque condition, got %v", set.Remarks())
	}
}

func TestAssumeBothOperandsNonConstant(t *testing.T) {
	b := ir.NewBuilder("f")
	x := b.Param("x", ir.I32)
	y := b.Param("y", ir.I32)
	b.Assume(b.Cmp(ir.PredSLE, x, y))
	b.Return(x, y)
	fn := b.Build()

	set := CollectAssumptions(fn)
	// Both sides are anchored, but neither yields a range without a constant bound.
	if !set.HasAssumptions(x) || !set.HasAssumptions(y) {
		t.Fatal("both comparison operands should be anchored")
	}
	for _, v := range []*ir.Value{x, y} {
		got, ok := set.AssumedRange(v)
		if !ok {
			t.Fatalf("AssumedRange(%%%s) returned no range", v.Name())
		}
		if !got.Equal(interval.Full(32)) {
			t.Errorf("AssumedRange(%%%s) = %s, want the full range", v.Name(), got)
		}
	}
}
