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

	"github.com/regionir/rangeprop/analysis/config"
	"github.com/regionir/rangeprop/analysis/interval"
	"github.com/regionir/rangeprop/analysis/ir"
)

// A TransferFunc maps the operand ranges of one operation to its result ranges.
// A nil return means some operand range the rule needs is still uninitialized; the
// solver then leaves the results untouched and revisits the operation when an
// operand cell changes. Every registered rule must be monotonic: widening an
// operand range never narrows a result range.
type TransferFunc func(cfg *config.Config, op *ir.Operation, args []interval.Interval) []interval.Interval

var transferFns = map[string]TransferFunc{}

// RegisterTransfer attaches a transfer rule to an operation kind. Kinds without a
// rule and without a generic inference capability default to the maximal range.
func RegisterTransfer(kind string, fn TransferFunc) {
	transferFns[kind] = fn
}

// LookupTransfer returns the transfer rule for a kind, if one is registered.
func LookupTransfer(kind string) (TransferFunc, bool) {
	fn, ok := transferFns[kind]
	return fn, ok
}

func init() {
	// Fixed-range producers. These ignore operand ranges entirely.
	RegisterTransfer(ir.KindConstant, transferConstant)
	RegisterTransfer(ir.KindProgramID, func(cfg *config.Config, op *ir.Operation, _ []interval.Interval) []interval.Interval {
		return identifierRange(op, cfg.MaxPrograms-1)
	})
	RegisterTransfer(ir.KindNumPrograms, func(cfg *config.Config, op *ir.Operation, _ []interval.Interval) []interval.Interval {
		return identifierRange(op, cfg.MaxPrograms)
	})
	RegisterTransfer(ir.KindMakeRange, transferMakeRange)
	RegisterTransfer(ir.KindHistogram, transferMaxNonNegSigned)

	// Layout- and shape-changing operations leave element values untouched.
	for _, kind := range []string{
		ir.KindTranspose, ir.KindBroadcast, ir.KindReshape, ir.KindSplat,
		ir.KindExpandDims, ir.KindConvertLayout, ir.KindSplit,
	} {
		RegisterTransfer(kind, transferForwardOperand)
	}

	// Joining constructs cover the values of both operands.
	RegisterTransfer(ir.KindJoin, transferUnionOperands)
	RegisterTransfer(ir.KindCat, transferUnionOperands)

	// A gather selects elements of its data operand; the index ranges do not
	// contribute to the value domain.
	RegisterTransfer(ir.KindGather, transferGather)
}

func transferConstant(_ *config.Config, op *ir.Operation, _ []interval.Interval) []interval.Interval {
	v, ok := op.Attr("value")
	if !ok {
		panic(fmt.Sprintf("constant operation %q without value attribute", op.Kind))
	}
	return []interval.Interval{interval.Constant(v, resultWidth(op))}
}

// identifierRange is the [0, max] range of the lane-identifier producers.
func identifierRange(op *ir.Operation, max int64) []interval.Interval {
	if len(op.Results) != 1 {
		panic(fmt.Sprintf("expected %s to have one result", op.Kind))
	}
	if !op.Results[0].Type().IsInteger() {
		panic(fmt.Sprintf("expected %s result type to be int", op.Kind))
	}
	return []interval.Interval{interval.FromSigned(0, max, resultWidth(op))}
}

func transferMakeRange(_ *config.Config, op *ir.Operation, _ []interval.Interval) []interval.Interval {
	start, okStart := op.Attr("start")
	end, okEnd := op.Attr("end")
	if !okStart || !okEnd {
		panic(fmt.Sprintf("%s without start/end attributes", op.Kind))
	}
	return []interval.Interval{interval.FromSigned(start, end, resultWidth(op))}
}

func transferMaxNonNegSigned(_ *config.Config, op *ir.Operation, _ []interval.Interval) []interval.Interval {
	out := make([]interval.Interval, len(op.Results))
	for i, res := range op.Results {
		w := res.Type().Width
		out[i] = interval.FromSigned(0, interval.SignedMax(w), w)
	}
	return out
}

func transferForwardOperand(_ *config.Config, op *ir.Operation, args []interval.Interval) []interval.Interval {
	if anyUninitialized(args) {
		return nil
	}
	out := make([]interval.Interval, len(op.Results))
	for i := range op.Results {
		out[i] = args[0]
	}
	return out
}

func transferUnionOperands(_ *config.Config, op *ir.Operation, args []interval.Interval) []interval.Interval {
	if len(op.Operands) != 2 {
		panic(fmt.Sprintf("expected %s to have two operands", op.Kind))
	}
	if anyUninitialized(args) {
		return nil
	}
	joined := args[0].Union(args[1])
	out := make([]interval.Interval, len(op.Results))
	for i := range op.Results {
		out[i] = joined
	}
	return out
}

func transferGather(_ *config.Config, op *ir.Operation, args []interval.Interval) []interval.Interval {
	if anyUninitialized(args) {
		return nil
	}
	return []interval.Interval{args[0]}
}

func anyUninitialized(args []interval.Interval) bool {
	for _, a := range args {
		if a.IsUninitialized() {
			return true
		}
	}
	return false
}

func resultWidth(op *ir.Operation) uint {
	return op.Results[0].Type().Width
}
