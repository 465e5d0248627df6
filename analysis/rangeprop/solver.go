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
	"container/heap"
	"math"

	"golang.org/x/tools/container/intsets"

	"github.com/regionir/rangeprop/analysis/config"
	"github.com/regionir/rangeprop/analysis/interval"
	"github.com/regionir/rangeprop/analysis/ir"
	"github.com/regionir/rangeprop/internal/graphutil"
)

// unknownTripCount is the sentinel a loop's trip-count estimate is seeded with
// before any finite estimate has been observed.
const unknownTripCount = int64(math.MaxInt64)

// visitKey identifies a per-(loop, lattice cell) visit counter. Both components are
// dense function-local ids, so the counter table is index-based rather than keyed
// on pointers into the program graph.
type visitKey struct {
	loop, cell int
}

// A Solver computes, for every integer value of one function, a conservative
// interval covering all values it can take at runtime. A Solver is single-use and
// single-threaded: it owns its lattice tables exclusively for the duration of one
// Solve call.
type Solver struct {
	cfg    *config.Config
	logger *config.LogGroup
	fn     *ir.Function

	assumptions *AssumptionSet

	// cells is the lattice-cell table, indexed by Value.ID.
	cells []interval.Interval

	// loopTripCounts holds, per loop operation id, the minimum total trip-count
	// estimate ever observed for that loop.
	loopTripCounts map[int]int64

	// loopVisits counts, per (loop, cell), how many back-edge propagations have
	// changed that cell. Monotonic for the lifetime of the solver.
	loopVisits map[visitKey]int64

	queue  opQueue
	queued intsets.Sparse

	solved bool
}

// opQueue is the worklist: a priority queue ordering operations by the SCC rank of
// the def-use graph, so defs drain before their uses. Within one strongly connected
// component the most deeply nested operations drain first, which lets an inner
// loop's cycle reach its fixed point before the enclosing loop's edges consume
// their visit counters on intermediate states.
type opQueue struct {
	ops  []*ir.Operation
	rank map[int]int
}

func (q *opQueue) Len() int { return len(q.ops) }

func (q *opQueue) Less(i, j int) bool {
	a, b := q.ops[i], q.ops[j]
	if ra, rb := q.rank[a.ID()], q.rank[b.ID()]; ra != rb {
		return ra < rb
	}
	if da, db := loopDepth(a), loopDepth(b); da != db {
		return da > db
	}
	return a.ID() < b.ID()
}

func (q *opQueue) Swap(i, j int) { q.ops[i], q.ops[j] = q.ops[j], q.ops[i] }

func (q *opQueue) Push(x any) { q.ops = append(q.ops, x.(*ir.Operation)) }

func (q *opQueue) Pop() any {
	op := q.ops[len(q.ops)-1]
	q.ops = q.ops[:len(q.ops)-1]
	return op
}

// loopDepth is the scheduling depth of an operation: the number of loops enclosing
// it, counting a loop operation as inside its own body.
func loopDepth(op *ir.Operation) int {
	d := len(op.EnclosingLoops())
	if op.IsLoop() {
		d++
	}
	return d
}

// NewSolver builds a solver for fn. Assumptions are collected immediately; solving
// is deferred to Solve.
func NewSolver(fn *ir.Function, cfg *config.Config, logger *config.LogGroup) *Solver {
	s := &Solver{
		cfg:            cfg,
		logger:         logger,
		fn:             fn,
		assumptions:    CollectAssumptions(fn),
		cells:          make([]interval.Interval, fn.NumValues()),
		loopTripCounts: map[int]int64{},
		loopVisits:     map[visitKey]int64{},
	}
	for _, remark := range s.assumptions.Remarks() {
		logger.Warnf("assumption skipped: %s", remark)
	}
	return s
}

// Assumptions returns the assumption set collected for the function.
func (s *Solver) Assumptions() *AssumptionSet { return s.assumptions }

// Range returns the solved interval for v. The second return value is false while
// the cell is uninitialized (the value was unreachable or not yet solved).
func (s *Solver) Range(v *ir.Value) (interval.Interval, bool) {
	iv := s.cells[v.ID()]
	return iv, !iv.IsUninitialized()
}

// TripCount returns the minimum trip-count estimate observed for a loop during
// solving, and false if no finite estimate was ever available.
func (s *Solver) TripCount(loop *ir.Operation) (int64, bool) {
	tc, ok := s.loopTripCounts[loop.ID()]
	if !ok || tc == unknownTripCount {
		return 0, false
	}
	return tc, true
}

// Solve runs the worklist iteration to a global fixed point. It is idempotent:
// calling it again performs no further changes.
func (s *Solver) Solve() {
	if !s.solved {
		s.initializeEntryState()
		s.seedWorklist()
		s.solved = true
	}
	for s.queue.Len() > 0 {
		op := heap.Pop(&s.queue).(*ir.Operation)
		s.queued.Remove(op.ID())
		s.visit(op)
	}
}

// initializeEntryState installs the entry ranges of the function parameters:
// the full range of their width, narrowed by any assumptions about them.
func (s *Solver) initializeEntryState() {
	for _, param := range s.fn.Params {
		if !param.Type().IsInteger() {
			continue
		}
		s.joinCell(param, s.entryRange(param))
	}
}

// entryRange is the default state of a cell with no operand-based derivation.
func (s *Solver) entryRange(v *ir.Value) interval.Interval {
	r := interval.Full(v.Type().Width)
	if assumed, ok := s.assumptions.AssumedRange(v); ok {
		r = assumed
	}
	return r
}

// seedWorklist enqueues the operations that can make progress with nothing but the
// entry state: operations without integer operands, and the consumers of the
// function parameters. Everything else is reached through def-use propagation,
// which keeps operand cells initialized in dependency order.
func (s *Solver) seedWorklist() {
	s.queue.rank = graphutil.SCCRanks(graphutil.NewDefUseIterator(s.fn))
	for _, op := range s.fn.Ops() {
		hasIntOperand := false
		for _, operand := range op.Operands {
			if operand.Type().IsInteger() {
				hasIntOperand = true
				break
			}
		}
		if !hasIntOperand && len(op.Results) > 0 {
			s.enqueue(op)
		}
	}
	for _, param := range s.fn.Params {
		for _, user := range param.Uses() {
			s.enqueue(user)
		}
	}
}

func (s *Solver) enqueue(op *ir.Operation) {
	if s.queued.Has(op.ID()) {
		return
	}
	s.queued.Insert(op.ID())
	heap.Push(&s.queue, op)
}

// enqueueUsers schedules every consumer of v for (re-)visitation.
func (s *Solver) enqueueUsers(v *ir.Value) {
	for _, user := range v.Uses() {
		s.enqueue(user)
	}
}

// joinCell unions iv into v's lattice cell and reports whether the cell changed.
func (s *Solver) joinCell(v *ir.Value, iv interval.Interval) bool {
	old := s.cells[v.ID()]
	joined := old.Union(iv)
	if joined.Equal(old) {
		return false
	}
	s.cells[v.ID()] = joined
	s.logger.Tracef("range of %%%s -> %s", v.Name(), joined)
	return true
}

func (s *Solver) visit(op *ir.Operation) {
	switch {
	case op.IsLoop():
		s.visitLoop(op)
	case op.Kind == ir.KindYield:
		// A yield only matters through its enclosing loop's edges.
		if parent := op.Parent(); parent != nil {
			s.enqueue(parent)
		}
	case op.Kind == ir.KindAssume || op.Kind == ir.KindReturn:
		// No results to infer.
	default:
		s.visitOperation(op)
	}
}

// visitOperation applies the transfer rule of a plain operation and joins the
// results into the lattice.
func (s *Solver) visitOperation(op *ir.Operation) {
	if !hasIntegerResult(op) {
		return
	}
	s.logger.Tracef("inferring ranges for %s", op.Kind)

	// If a result already carries assumption-derived information and nothing has
	// been inferred for it yet, the assumption wins over symbolic derivation.
	for _, res := range op.Results {
		if s.cells[res.ID()].IsUninitialized() && s.assumptions.HasAssumptions(res) {
			s.setToEntryState(res)
			return
		}
	}

	args := make([]interval.Interval, len(op.Operands))
	for i, operand := range op.Operands {
		args[i] = s.cells[operand.ID()]
	}

	if tf, ok := LookupTransfer(op.Kind); ok {
		results := tf(s.cfg, op, args)
		if results == nil {
			// Operands not ready; the op is revisited when a cell changes.
			return
		}
		s.joinResults(op, results)
		return
	}

	if infer, ok := op.Inference(); ok {
		if anyUninitialized(args) {
			return
		}
		s.joinResults(op, infer(op, args))
		return
	}

	// Unknown kind: sound but imprecise.
	s.setAllToEntryStates(op)
}

// joinResults joins the inferred intervals into the result cells, narrowing each by
// any assumption about that result.
func (s *Solver) joinResults(op *ir.Operation, results []interval.Interval) {
	for i, res := range op.Results {
		if i >= len(results) || !res.Type().IsInteger() {
			continue
		}
		iv := results[i]
		if assumed, ok := s.assumptions.AssumedRange(res); ok {
			iv = iv.Intersect(assumed)
		}
		if s.joinCell(res, iv) {
			s.enqueueUsers(res)
		}
	}
}

func (s *Solver) setToEntryState(v *ir.Value) {
	if !v.Type().IsInteger() {
		return
	}
	if s.joinCell(v, s.entryRange(v)) {
		s.enqueueUsers(v)
	}
}

func (s *Solver) setAllToEntryStates(op *ir.Operation) {
	for _, res := range op.Results {
		s.setToEntryState(res)
	}
}

// visitLoop re-estimates the loop's trip count and propagates ranges across the
// loop's region-control-flow edges, bounded by the per-cell visit counters.
func (s *Solver) visitLoop(loop *ir.Operation) {
	s.logger.Tracef("inferring ranges for %s", loop.Kind)
	if _, seen := s.loopTripCounts[loop.ID()]; !seen {
		s.loopTripCounts[loop.ID()] = unknownTripCount
	}

	// Bound ranges may have tightened since the last visit; keep the minimum of
	// all genuine estimates ever computed for this loop. A substituted total (some
	// loop of the nest had no estimate) still bounds propagation through the
	// sentinel, but is never recorded as a finite trip count.
	tc, resolved := s.totalTripCount(loop)
	if resolved && tc < s.loopTripCounts[loop.ID()] {
		s.loopTripCounts[loop.ID()] = tc
		s.logger.Debugf("trip count for %s#%d -> %d", loop.Kind, loop.ID(), tc)
	}

	var edges []ir.Edge
	edges = append(edges, loop.EntryEdges()...)
	edges = append(edges, loop.BackEdges()...)
	edges = append(edges, loop.ExitEdges()...)
	for _, edge := range edges {
		s.propagateLoopEdge(loop, edge.Dst, func() interval.Interval {
			return s.cells[edge.Src.ID()]
		})
	}

	// The induction variable has no predecessor-provided value; its range comes
	// from the loop bounds under the same bounded-visit discipline.
	if iv := loop.InductionVar(); iv != nil {
		s.propagateLoopEdge(loop, iv, func() interval.Interval {
			return s.inductionRange(loop)
		})
	}
}

// propagateLoopEdge joins an incoming range into dst, subject to the loop's visit
// counter: once a cell has been updated as many times as the loop can iterate,
// further propagation is skipped. If the loop's estimate exceeds the configured
// ceiling the maximal range is joined instead, which ends refinement for the cell
// after a single extra visit.
func (s *Solver) propagateLoopEdge(loop *ir.Operation, dst *ir.Value, incoming func() interval.Interval) {
	if !dst.Type().IsInteger() {
		return
	}
	key := visitKey{loop: loop.ID(), cell: dst.ID()}
	tc := s.loopTripCounts[loop.ID()]
	if s.loopVisits[key] >= tc {
		// The cell has "run the loop" as many times as it can actually iterate;
		// joining further would only lose precision.
		return
	}
	var changed bool
	if tc > s.cfg.MaxTripCount {
		changed = s.joinCell(dst, interval.Full(dst.Type().Width))
	} else {
		changed = s.joinCell(dst, incoming())
	}
	if changed {
		// Only joins that move the lattice consume a visit.
		s.loopVisits[key]++
		s.enqueueUsers(dst)
	}
}

func hasIntegerResult(op *ir.Operation) bool {
	for _, res := range op.Results {
		if res.Type().IsInteger() {
			return true
		}
	}
	return false
}
