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

// Package rangeprop computes, for every integer value of a function, a
// conservative interval covering the values it can take at runtime.
//
// The analysis is a forward dataflow fixed point over the function's def-use
// graph. Each integer value owns one lattice cell holding an interval
// ([interval.Interval]); operations are visited from a worklist and their transfer
// functions join new information into the cells of their results. Joins only
// widen, so the iteration is monotone and terminates.
//
// Loops are handled without widening to top: the solver estimates each loop's
// trip count from its bounds and allows ranges to flow around the back edge at
// most that many times. Loops whose total trip count exceeds the configured
// ceiling have the maximal range joined into every cell they feed, which ends
// refinement for those cells after one extra visit.
//
// User-provided facts (comparisons consumed by assume operations) narrow the
// entry state of the values they mention and every interval subsequently joined
// into those values' cells.
//
// Typical use:
//
//	s := rangeprop.NewSolver(fn, cfg, logger)
//	s.Solve()
//	r, ok := s.Range(v)
//
// After solving, [FoldTrueCmps] rewrites comparisons the ranges prove to be
// always true into the constant true.
package rangeprop
