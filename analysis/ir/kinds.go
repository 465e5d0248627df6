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
	"fmt"

	"github.com/regionir/rangeprop/analysis/interval"
)

// Operation kinds of the reference dialect. The set is open: analyses must treat
// any kind not listed here as opaque.
const (
	KindConstant = "arith.constant"
	KindAddI     = "arith.addi"
	KindSubI     = "arith.subi"
	KindMulI     = "arith.muli"
	KindCmp      = "arith.cmpi"

	KindAssume = "rir.assume"

	KindProgramID   = "rir.program_id"
	KindNumPrograms = "rir.num_programs"
	KindMakeRange   = "rir.make_range"
	KindHistogram   = "rir.histogram"

	KindTranspose     = "rir.transpose"
	KindBroadcast     = "rir.broadcast"
	KindReshape       = "rir.reshape"
	KindSplat         = "rir.splat"
	KindExpandDims    = "rir.expand_dims"
	KindConvertLayout = "rir.convert_layout"
	KindSplit         = "rir.split"

	KindJoin = "rir.join"
	KindCat  = "rir.cat"

	KindGather = "rir.gather"

	KindFor    = "scf.for"
	KindYield  = "scf.yield"
	KindReturn = "func.return"
)

// A Predicate is one of the integer comparison predicates of KindCmp operations,
// stored in the "predicate" attribute.
type Predicate int64

// Comparison predicates. The s-prefixed predicates compare the signed
// interpretation of the operands, the u-prefixed ones the unsigned interpretation.
const (
	PredEQ Predicate = iota
	PredNE
	PredSLT
	PredSLE
	PredSGT
	PredSGE
	PredULT
	PredULE
	PredUGT
	PredUGE
)

var predicateNames = map[Predicate]string{
	PredEQ:  "eq",
	PredNE:  "ne",
	PredSLT: "slt",
	PredSLE: "sle",
	PredSGT: "sgt",
	PredSGE: "sge",
	PredULT: "ult",
	PredULE: "ule",
	PredUGT: "ugt",
	PredUGE: "uge",
}

func (p Predicate) String() string {
	if s, ok := predicateNames[p]; ok {
		return s
	}
	return fmt.Sprintf("predicate(%d)", int64(p))
}

// IsSigned reports whether the predicate compares signed interpretations.
// Equality predicates compare bits and count as signed here, matching the
// assumption-refinement rules.
func (p Predicate) IsSigned() bool {
	switch p {
	case PredULT, PredULE, PredUGT, PredUGE:
		return false
	}
	return true
}

// ParsePredicate parses a textual predicate name.
func ParsePredicate(s string) (Predicate, error) {
	for p, name := range predicateNames {
		if name == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown comparison predicate %q", s)
}

// IsLoop reports whether op is a loop construct the analysis understands.
func (op *Operation) IsLoop() bool { return op.Kind == KindFor }

// InductionVar returns the single induction variable of a loop, or nil.
func (op *Operation) InductionVar() *Value {
	if !op.IsLoop() || len(op.BodyArgs) == 0 {
		return nil
	}
	return op.BodyArgs[0]
}

// LowerBound returns the loop's lower bound operand.
func (op *Operation) LowerBound() *Value { return op.loopOperand(0) }

// UpperBound returns the loop's upper bound operand.
func (op *Operation) UpperBound() *Value { return op.loopOperand(1) }

// Step returns the loop's step operand.
func (op *Operation) Step() *Value { return op.loopOperand(2) }

func (op *Operation) loopOperand(i int) *Value {
	if !op.IsLoop() || len(op.Operands) <= i {
		return nil
	}
	return op.Operands[i]
}

// IterArgs returns the loop-carried body arguments, excluding the induction
// variable.
func (op *Operation) IterArgs() []*Value {
	if !op.IsLoop() || len(op.BodyArgs) == 0 {
		return nil
	}
	return op.BodyArgs[1:]
}

// YieldOp returns the terminator of the loop body, or nil if the body is empty.
func (op *Operation) YieldOp() *Operation {
	if !op.IsLoop() || len(op.Body) == 0 {
		return nil
	}
	last := op.Body[len(op.Body)-1]
	if last.Kind != KindYield {
		return nil
	}
	return last
}

// EnclosingLoops returns the chain of loop operations containing op, innermost
// first. op itself is not included.
func (op *Operation) EnclosingLoops() []*Operation {
	var loops []*Operation
	for cur := op.parent; cur != nil; cur = cur.parent {
		if cur.IsLoop() {
			loops = append(loops, cur)
		}
	}
	return loops
}

// An Edge pairs a predecessor-provided value with the entry value or result it
// flows into along one region-control-flow edge.
type Edge struct {
	Src, Dst *Value
}

// EntryEdges returns the edges taken when control first enters the loop body: each
// init operand flows into the matching iteration argument.
func (op *Operation) EntryEdges() []Edge {
	if !op.IsLoop() {
		return nil
	}
	iterArgs := op.IterArgs()
	inits := op.Operands[3:]
	edges := make([]Edge, 0, len(inits))
	for i := range inits {
		if i < len(iterArgs) {
			edges = append(edges, Edge{Src: inits[i], Dst: iterArgs[i]})
		}
	}
	return edges
}

// BackEdges returns the edges from the body terminator back to the iteration
// arguments.
func (op *Operation) BackEdges() []Edge {
	yield := op.YieldOp()
	if yield == nil {
		return nil
	}
	iterArgs := op.IterArgs()
	edges := make([]Edge, 0, len(yield.Operands))
	for i, src := range yield.Operands {
		if i < len(iterArgs) {
			edges = append(edges, Edge{Src: src, Dst: iterArgs[i]})
		}
	}
	return edges
}

// ExitEdges returns the edges from the body terminator to the loop results.
func (op *Operation) ExitEdges() []Edge {
	yield := op.YieldOp()
	if yield == nil {
		return nil
	}
	edges := make([]Edge, 0, len(yield.Operands))
	for i, src := range yield.Operands {
		if i < len(op.Results) {
			edges = append(edges, Edge{Src: src, Dst: op.Results[i]})
		}
	}
	return edges
}

// An InferFunc is the generic range-inference capability an operation kind can
// expose: given conservative operand intervals it returns one interval per result.
// Implementations must be monotonic in their inputs.
type InferFunc func(op *Operation, args []interval.Interval) []interval.Interval

var inferFns = map[string]InferFunc{}

// RegisterInference attaches a generic range-inference rule to an operation kind.
// Later registrations for the same kind replace earlier ones.
func RegisterInference(kind string, fn InferFunc) {
	inferFns[kind] = fn
}

// Inference returns the generic range-inference capability of the operation's
// kind, if any.
func (op *Operation) Inference() (InferFunc, bool) {
	fn, ok := inferFns[op.Kind]
	return fn, ok
}

func init() {
	RegisterInference(KindAddI, func(op *Operation, args []interval.Interval) []interval.Interval {
		return binaryArith(op, args, interval.AddSat)
	})
	RegisterInference(KindSubI, func(op *Operation, args []interval.Interval) []interval.Interval {
		return []interval.Interval{inferBounds(op, interval.SubSat(args[0].SMin, args[1].SMax),
			interval.SubSat(args[0].SMax, args[1].SMin))}
	})
	RegisterInference(KindMulI, func(op *Operation, args []interval.Interval) []interval.Interval {
		a, b := args[0], args[1]
		products := []int64{
			interval.MulSat(a.SMin, b.SMin),
			interval.MulSat(a.SMin, b.SMax),
			interval.MulSat(a.SMax, b.SMin),
			interval.MulSat(a.SMax, b.SMax),
		}
		lo, hi := products[0], products[0]
		for _, p := range products[1:] {
			if p < lo {
				lo = p
			}
			if p > hi {
				hi = p
			}
		}
		return []interval.Interval{inferBounds(op, lo, hi)}
	})
}

func binaryArith(op *Operation, args []interval.Interval, f func(a, b int64) int64) []interval.Interval {
	return []interval.Interval{inferBounds(op, f(args[0].SMin, args[1].SMin), f(args[0].SMax, args[1].SMax))}
}

// inferBounds converts raw signed bounds into a result interval, falling back to
// the full range when the computation may exceed the result width. Widening here
// is what keeps the rules monotonic under modular arithmetic.
func inferBounds(op *Operation, lo, hi int64) interval.Interval {
	width := op.Results[0].Type().Width
	if lo < interval.SignedMin(width) || hi > interval.SignedMax(width) {
		return interval.Full(width)
	}
	return interval.FromSigned(lo, hi, width)
}
