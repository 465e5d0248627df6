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
	"github.com/regionir/rangeprop/analysis/interval"
	"github.com/regionir/rangeprop/analysis/ir"
)

// resolveLoopBound produces a concrete integer for one loop bound or step value:
// the literal of a defining constant when there is one, otherwise the pessimistic
// end of the value's current lattice range (smallest signed value for a lower
// bound, largest for an upper bound). Returns false when nothing is known yet.
func (s *Solver) resolveLoopBound(v *ir.Value, upper bool) (int64, bool) {
	if v == nil {
		return 0, false
	}
	if k, ok := ir.ConstantValue(v); ok {
		return k, true
	}
	iv := s.cells[v.ID()]
	if iv.IsUninitialized() {
		return 0, false
	}
	if upper {
		return iv.SMax, true
	}
	return iv.SMin, true
}

// maybeTripCount estimates how many iterations a single loop performs, from its
// lower bound, upper bound and step. The estimate is conservative: when a bound is
// only known as a range, the widest combination is used. Returns false when the
// bounds are not resolved at all, or when the upper bound sits below the lower
// bound so no iteration estimate exists.
func (s *Solver) maybeTripCount(loop *ir.Operation) (int64, bool) {
	lo, okLo := s.resolveLoopBound(loop.LowerBound(), false)
	hi, okHi := s.resolveLoopBound(loop.UpperBound(), true)
	if !okLo || !okHi {
		return 0, false
	}
	step, okStep := s.resolveLoopBound(loop.Step(), false)
	if !okStep {
		step = 1
	}
	if step < 0 {
		lo, hi = hi, lo
		step = -step
	}
	if step == 0 {
		step = 1
	}
	if hi < lo {
		return 0, false
	}
	span := interval.SubSat(hi, lo)
	return ceilDivSigned(span, step), true
}

// totalTripCount multiplies the trip-count estimates of the loop and all its
// enclosing loops, substituting one more than the configured ceiling for any loop
// whose bounds are unresolved. Crossing the ceiling is therefore sticky: a single
// unknown loop forces the maximal-range join everywhere inside it. The second
// return value is false when any loop of the nest had no estimate, so callers can
// tell a genuine total from a substituted one.
func (s *Solver) totalTripCount(loop *ir.Operation) (int64, bool) {
	total := int64(1)
	resolved := true
	loops := append([]*ir.Operation{loop}, loop.EnclosingLoops()...)
	for _, l := range loops {
		tc, ok := s.maybeTripCount(l)
		if !ok {
			tc = s.cfg.MaxTripCount + 1
			resolved = false
		}
		total = interval.MulSat(total, tc)
	}
	return total, resolved
}

// inductionRange is the interval the induction variable ranges over, derived from
// the current lattice state of the loop bounds: [smin(lower), smax(upper)-1]. Falls
// back to the full range of the variable's width while either bound is unknown.
func (s *Solver) inductionRange(loop *ir.Operation) interval.Interval {
	iv := loop.InductionVar()
	width := iv.Type().Width
	lower := loop.LowerBound()
	upper := loop.UpperBound()
	if lower == nil || upper == nil {
		return interval.Full(width)
	}
	lb := s.cells[lower.ID()]
	ub := s.cells[upper.ID()]
	if lb.IsUninitialized() || ub.IsUninitialized() {
		return interval.Full(width)
	}
	lo := lb.SMin
	hi := interval.SubSat(ub.SMax, 1)
	if hi < lo {
		hi = lo
	}
	return interval.FromSigned(lo, hi, width)
}

// ceilDivSigned divides a by b rounding away from zero, for positive b.
func ceilDivSigned(a, b int64) int64 {
	if b == 0 {
		return a
	}
	q := a / b
	if a%b != 0 && (a > 0) == (b > 0) {
		q++
	}
	return q
}
