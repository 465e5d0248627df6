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

// Package rangestats aggregates the results of one range-propagation run into a
// precision report: how many values resolved, how many collapsed to constants,
// and how tight the solved intervals are.
package rangestats

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/regionir/rangeprop/analysis/interval"
	"github.com/regionir/rangeprop/analysis/ir"
	"github.com/regionir/rangeprop/analysis/rangeprop"
	"github.com/regionir/rangeprop/internal/funcutil"
	"github.com/regionir/rangeprop/internal/graphutil"
)

// Summary reports the precision of a solved function.
type Summary struct {
	// TotalValues counts the integer values of the function.
	TotalValues int
	// Resolved counts values whose cell was initialized by the solver.
	Resolved int
	// Constants counts values whose interval collapsed to a single point.
	Constants int
	// FullRanges counts values whose interval is the entire range of their width.
	FullRanges int

	// MeanBits, MedianBits and StdDevBits describe the distribution of interval
	// tightness, measured in effective bits (log2 of the interval cardinality).
	MeanBits   float64
	MedianBits float64
	StdDevBits float64

	// Loops counts the loops of the function, BoundedLoops those with a finite
	// trip-count estimate, and LoopCarriedCycles the elementary def-use cycles
	// closed through loop yields.
	Loops             int
	BoundedLoops      int
	LoopCarriedCycles int
}

// Collect computes the precision summary for a solved function. The solver must
// have run to a fixed point already.
func Collect(fn *ir.Function, s *rangeprop.Solver) Summary {
	var sum Summary
	var bits []float64
	for _, v := range fn.Values() {
		if !v.Type().IsInteger() {
			continue
		}
		sum.TotalValues++
		iv, ok := s.Range(v)
		if !ok {
			continue
		}
		sum.Resolved++
		if iv.IsConstant() {
			sum.Constants++
		}
		if iv.IsFull() {
			sum.FullRanges++
		}
		bits = append(bits, effectiveBits(iv))
	}
	if len(bits) > 0 {
		sort.Float64s(bits)
		sum.MeanBits = stat.Mean(bits, nil)
		sum.MedianBits = stat.Quantile(0.5, stat.Empirical, bits, nil)
		sum.StdDevBits = stat.StdDev(bits, nil)
	}

	for _, op := range fn.Ops() {
		if !op.IsLoop() {
			continue
		}
		sum.Loops++
		if _, ok := s.TripCount(op); ok {
			sum.BoundedLoops++
		}
	}
	sum.LoopCarriedCycles = len(graphutil.FindAllElementaryCycles(graphutil.NewDefUseIterator(fn)))
	return sum
}

// effectiveBits measures the cardinality of an interval on a log2 scale: 0 for a
// constant, the value's bitwidth for a full range.
func effectiveBits(iv interval.Interval) float64 {
	span := float64(iv.SMax) - float64(iv.SMin) + 1
	if u := float64(iv.UMax) - float64(iv.UMin) + 1; u < span {
		span = u
	}
	if span <= 1 {
		return 0
	}
	return math.Log2(span)
}

// Lines renders the summary as printable report lines.
func (s Summary) Lines() []string {
	lines := []string{
		fmt.Sprintf("integer values: %d (resolved %d, constant %d, full-range %d)",
			s.TotalValues, s.Resolved, s.Constants, s.FullRanges),
		fmt.Sprintf("interval tightness: mean %.2f bits, median %.2f bits, stddev %.2f",
			s.MeanBits, s.MedianBits, s.StdDevBits),
	}
	if s.Loops > 0 {
		lines = append(lines, fmt.Sprintf("loops: %d (%d with bounded trip counts, %d loop-carried cycles)",
			s.Loops, s.BoundedLoops, s.LoopCarriedCycles))
	}
	return lines
}

// String renders the summary as a single block of text.
func (s Summary) String() string {
	var out string
	funcutil.Iter(s.Lines(), func(l string) { out += l + "\n" })
	return out
}
