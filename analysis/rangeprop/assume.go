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
	"fmt"

	"github.com/regionir/rangeprop/analysis/interval"
	"github.com/regionir/rangeprop/analysis/ir"
)

// An AssumptionSet indexes the assertion constructs of one function by the values
// they constrain. It is built once before solving and immutable afterwards.
type AssumptionSet struct {
	// anchors maps a value to the comparison operations asserting a fact about it.
	anchors map[*ir.Value][]*ir.Operation

	// remarks records the assertion constructs the collector could not interpret.
	// These are diagnostics, never errors: an uninterpreted assumption only costs
	// precision.
	remarks []string
}

// CollectAssumptions walks the function once and gathers, for every non-constant
// operand of an assertion's defining comparison, the comparisons constraining it.
func CollectAssumptions(fn *ir.Function) *AssumptionSet {
	set := &AssumptionSet{anchors: map[*ir.Value][]*ir.Operation{}}
	fn.Walk(func(op *ir.Operation) {
		if op.Kind != ir.KindAssume {
			return
		}
		if len(op.Operands) != 1 {
			set.remarkf("assumption with %d operands skipped", len(op.Operands))
			return
		}
		def := op.Operands[0].DefiningOp()
		if def == nil || def.Kind != ir.KindCmp {
			set.remarkf("unsupported assumption operation on %%%s", op.Operands[0].Name())
			return
		}
		for _, operand := range def.Operands {
			if _, isConst := ir.ConstantValue(operand); isConst {
				continue
			}
			set.anchors[operand] = append(set.anchors[operand], def)
		}
	})
	return set
}

// Remarks returns the diagnostics accumulated while collecting and refining.
func (a *AssumptionSet) Remarks() []string {
	return a.remarks
}

// HasAssumptions reports whether any assertion constrains v.
func (a *AssumptionSet) HasAssumptions(v *ir.Value) bool {
	return len(a.anchors[v]) > 0
}

// AssumedRange returns the intersection of all assumption-derived ranges for v,
// starting from the full range of v's width. The second return value is false when
// no assertion constrains v.
func (a *AssumptionSet) AssumedRange(v *ir.Value) (interval.Interval, bool) {
	cmps := a.anchors[v]
	if len(cmps) == 0 {
		return interval.Interval{}, false
	}
	width := v.Type().Width
	r := interval.Full(width)
	for _, cmp := range cmps {
		if fact, ok := a.assumedRangeFor(cmp, v); ok {
			r = r.Intersect(fact)
		}
	}
	return r, true
}

// assumedRangeFor converts one comparison `anchor pred K` (or `K pred anchor`) into
// a range constraint on anchor. Comparisons against non-constants and predicates
// with no interval encoding are skipped.
func (a *AssumptionSet) assumedRangeFor(cmp *ir.Operation, anchor *ir.Value) (interval.Interval, bool) {
	pred := ir.Predicate(cmp.Attrs["predicate"])
	anchorIsLHS := cmp.Operands[0] == anchor
	other := cmp.Operands[1]
	if !anchorIsLHS {
		other = cmp.Operands[0]
	}
	k, ok := ir.ConstantValue(other)
	if !ok {
		return interval.Interval{}, false
	}
	width := anchor.Type().Width
	if width == 0 {
		panic(fmt.Sprintf("expected non-zero bitwidth for %%%s", anchor.Name()))
	}

	if pred.IsSigned() {
		min, max := interval.SignedMin(width), interval.SignedMax(width)
		switch pred {
		case ir.PredEQ:
			return interval.Constant(k, width), true
		case ir.PredSGE:
			if anchorIsLHS {
				return interval.FromSigned(k, max, width), true
			}
			return interval.FromSigned(min, k, width), true
		case ir.PredSGT:
			if anchorIsLHS {
				return interval.FromSigned(interval.AddSat(k, 1), max, width), true
			}
			return interval.FromSigned(min, interval.SubSat(k, 1), width), true
		case ir.PredSLE:
			if anchorIsLHS {
				return interval.FromSigned(min, k, width), true
			}
			return interval.FromSigned(k, max, width), true
		case ir.PredSLT:
			if anchorIsLHS {
				return interval.FromSigned(min, interval.SubSat(k, 1), width), true
			}
			return interval.FromSigned(interval.AddSat(k, 1), max, width), true
		}
		a.remarkf("unsupported cmp predicate %s for assumption", pred)
		return interval.Interval{}, false
	}

	uk := uint64(k) & interval.UnsignedMax(width)
	umax := interval.UnsignedMax(width)
	switch pred {
	case ir.PredUGE:
		if anchorIsLHS {
			return interval.FromUnsigned(uk, umax, width), true
		}
		return interval.FromUnsigned(0, uk, width), true
	case ir.PredUGT:
		if anchorIsLHS {
			return interval.FromUnsigned(addSatU(uk, 1, umax), umax, width), true
		}
		return interval.FromUnsigned(0, subSatU(uk, 1), width), true
	case ir.PredULE:
		if anchorIsLHS {
			return interval.FromUnsigned(0, uk, width), true
		}
		return interval.FromUnsigned(uk, umax, width), true
	case ir.PredULT:
		if anchorIsLHS {
			return interval.FromUnsigned(0, subSatU(uk, 1), width), true
		}
		return interval.FromUnsigned(addSatU(uk, 1, umax), umax, width), true
	}
	a.remarkf("unsupported cmp predicate %s for assumption", pred)
	return interval.Interval{}, false
}

func (a *AssumptionSet) remarkf(format string, args ...any) {
	a.remarks = append(a.remarks, fmt.Sprintf(format, args...))
}

func addSatU(a, b, max uint64) uint64 {
	if a > max-b {
		return max
	}
	return a + b
}

func subSatU(a, b uint64) uint64 {
	if a < b {
		return 0
	}
	return a - b
}
