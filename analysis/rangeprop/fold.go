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

// EvaluatePredicate decides a comparison between two intervals. It returns
// the comparison's outcome and true when every pair of concrete values drawn from
// a and b yields that same outcome; otherwise the second return value is false and
// the comparison cannot be decided statically.
func EvaluatePredicate(pred ir.Predicate, a, b interval.Interval) (bool, bool) {
	if a.IsUninitialized() || b.IsUninitialized() {
		return false, false
	}
	switch pred {
	case ir.PredEQ:
		if a.IsConstant() && b.IsConstant() && a.SMin == b.SMin {
			return true, true
		}
		if disjoint(a, b) {
			return false, true
		}
	case ir.PredNE:
		if disjoint(a, b) {
			return true, true
		}
		if a.IsConstant() && b.IsConstant() && a.SMin == b.SMin {
			return false, true
		}
	case ir.PredSLT:
		if a.SMax < b.SMin {
			return true, true
		}
		if a.SMin >= b.SMax {
			return false, true
		}
	case ir.PredSLE:
		if a.SMax <= b.SMin {
			return true, true
		}
		if a.SMin > b.SMax {
			return false, true
		}
	case ir.PredSGT:
		if a.SMin > b.SMax {
			return true, true
		}
		if a.SMax <= b.SMin {
			return false, true
		}
	case ir.PredSGE:
		if a.SMin >= b.SMax {
			return true, true
		}
		if a.SMax < b.SMin {
			return false, true
		}
	case ir.PredULT:
		if a.UMax < b.UMin {
			return true, true
		}
		if a.UMin >= b.UMax {
			return false, true
		}
	case ir.PredULE:
		if a.UMax <= b.UMin {
			return true, true
		}
		if a.UMin > b.UMax {
			return false, true
		}
	case ir.PredUGT:
		if a.UMin > b.UMax {
			return true, true
		}
		if a.UMax <= b.UMin {
			return false, true
		}
	case ir.PredUGE:
		if a.UMin >= b.UMax {
			return true, true
		}
		if a.UMax < b.UMin {
			return false, true
		}
	}
	return false, false
}

// disjoint reports whether the two intervals share no concrete value, in either
// interpretation.
func disjoint(a, b interval.Interval) bool {
	signed := a.SMax < b.SMin || b.SMax < a.SMin
	unsigned := a.UMax < b.UMin || b.UMax < a.UMin
	return signed || unsigned
}

// FoldTrueCmps rewrites every scalar comparison the solved ranges prove to be
// always true into the constant true, then erases the comparisons left without
// uses. It returns the number of comparisons folded. Comparisons that are always
// false, or tensor-shaped comparisons, are left alone.
func FoldTrueCmps(s *Solver) int {
	fn := s.fn
	var toFold []*ir.Operation
	fn.Walk(func(op *ir.Operation) {
		if op.Kind != ir.KindCmp || len(op.Results) != 1 || !op.Results[0].Type().IsScalar() {
			return
		}
		predRaw, ok := op.Attr("predicate")
		if !ok {
			return
		}
		lhs, okL := s.Range(op.Operands[0])
		rhs, okR := s.Range(op.Operands[1])
		if !okL || !okR {
			return
		}
		outcome, decided := EvaluatePredicate(ir.Predicate(predRaw), lhs, rhs)
		if decided && outcome {
			toFold = append(toFold, op)
		}
	})

	for _, op := range toFold {
		s.logger.Debugf("folding %s#%d to true", op.Kind, op.ID())
		truth := fn.InsertConstantBefore(op, 1, ir.I1)
		fn.ReplaceAllUses(op.Results[0], truth)
		fn.EraseIfDead(op)
	}
	return len(toFold)
}
