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

package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/regionir/rangeprop/analysis/config"
	"github.com/regionir/rangeprop/analysis/ir"
	"github.com/regionir/rangeprop/analysis/rangeprop"
	"github.com/regionir/rangeprop/analysis/rangestats"
	"github.com/regionir/rangeprop/internal/formatutil"
	"github.com/regionir/rangeprop/internal/graphutil"
)

var (
	configPath = flag.String("config", "", "Config file path for the analysis")
	showStats  = flag.Bool("stats", false, "Print a precision summary after solving")
	fold       = flag.Bool("fold", false, "Fold provably-true comparisons and print the rewritten function")
)

const usage = `Compute integer value ranges for a function.
Usage:
    rangeprop [options] <file.rir>
Examples:
% rangeprop -config config.yaml -stats kernel.rir
Run with -fold to also rewrite provably-true comparisons.
`

func main() {
	if err := doMain(); err != nil {
		fmt.Fprintf(os.Stderr, "rangeprop: %s\n", err)
		os.Exit(1)
	}
}

func doMain() error {
	var err error
	flag.Parse()

	if flag.NArg() != 1 {
		_, _ = fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg := config.NewDefault()
	if *configPath != "" {
		config.SetGlobalConfig(*configPath)
		cfg, err = config.LoadGlobal()
		if err != nil {
			return fmt.Errorf("could not load config %s: %w", *configPath, err)
		}
	}
	if *fold {
		cfg.FoldComparisons = true
	}
	if *showStats {
		cfg.ReportStats = true
	}
	logger := config.NewLogGroup(cfg)

	fmt.Fprintln(os.Stderr, formatutil.Faint("Reading sources"))
	src, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		return err
	}
	fn, err := ir.Parse(string(src))
	if err != nil {
		return fmt.Errorf("could not parse %s: %w", flag.Arg(0), err)
	}

	fmt.Fprintln(os.Stderr, formatutil.Faint("Solving"))
	start := time.Now()
	solver := rangeprop.NewSolver(fn, cfg, logger)
	solver.Solve()
	logger.Infof("Solving took %3.4f s", time.Since(start).Seconds())

	printRanges(fn, solver)
	printLoops(fn, solver)

	if cfg.FoldComparisons {
		if n := rangeprop.FoldTrueCmps(solver); n > 0 {
			fmt.Printf("\n%s (%d folded):\n%s", formatutil.Bold("Rewritten function"), n, fn)
		} else {
			fmt.Printf("\n%s\n", "No comparison could be folded.")
		}
	}

	if cfg.ReportStats {
		fmt.Printf("\n%s\n", formatutil.Bold("Precision summary"))
		fmt.Print(rangestats.Collect(fn, solver))
	}
	return nil
}

func printRanges(fn *ir.Function, solver *rangeprop.Solver) {
	fmt.Printf("%s\n", formatutil.Bold("Value ranges"))
	for _, v := range fn.Values() {
		if !v.Type().IsInteger() {
			continue
		}
		r, ok := solver.Range(v)
		if !ok {
			fmt.Printf("  %%%-12s %s\n", v.Name(), formatutil.Yellow("unreachable"))
			continue
		}
		s := r.String()
		if r.IsConstant() {
			s = formatutil.Green(s)
		}
		fmt.Printf("  %%%-12s %s\n", v.Name(), s)
	}
}

// printLoops renders the loop nest as an indented tree with each loop's trip-count
// estimate.
func printLoops(fn *ir.Function, solver *rangeprop.Solver) {
	root := graphutil.NewTree[*ir.Operation](nil)
	nodes := map[*ir.Operation]*graphutil.Tree[*ir.Operation]{nil: root}
	fn.Walk(func(op *ir.Operation) {
		if op.IsLoop() {
			nodes[op] = nodes[op.Parent()].AddChild(op)
		}
	})
	if len(nodes) == 1 {
		return
	}

	fmt.Printf("%s\n", formatutil.Bold("Loops"))
	var print func(t *graphutil.Tree[*ir.Operation])
	print = func(t *graphutil.Tree[*ir.Operation]) {
		if t.Label != nil {
			depth := len(t.Ancestors(-1)) - 1
			indent := strings.Repeat("  ", depth)
			if tc, ok := solver.TripCount(t.Label); ok {
				fmt.Printf("%s%s#%d: %d iterations\n", indent, t.Label.Kind, t.Label.ID(), tc)
			} else {
				fmt.Printf("%s%s#%d: %s\n", indent, t.Label.Kind, t.Label.ID(),
					formatutil.Red("unbounded"))
			}
		}
		for _, c := range t.Children {
			print(c)
		}
	}
	print(root)
}
