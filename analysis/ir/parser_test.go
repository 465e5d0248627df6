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
	"strings"
	"testing"
)

const kernelSrc = `
// A small kernel exercising most of the dialect.
func @kernel(%n: i32) {
  %pid = rir.program_id : i32
  %c0 = arith.constant 0 : i32
  %c1 = arith.constant 1 : i32
  %r = rir.make_range {end = 16, start = 0} : tensor<16xi32>
  %acc = scf.for %i = %c0 to %n step %c1 iter_args(%a = %c0) {
    %next = arith.addi %a, %i : i32
    scf.yield %next
  }
  %ok = arith.cmpi slt, %acc, %n
  rir.assume %ok
  func.return %acc
}
`

func TestParseKernel(t *testing.T) {
	fn, err := Parse(kernelSrc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if fn.Name != "kernel" {
		t.Errorf("name = %q, want kernel", fn.Name)
	}
	if len(fn.Params) != 1 || fn.Params[0].Name() != "n" {
		t.Fatalf("unexpected params: %v", fn.Params)
	}

	kinds := map[string]int{}
	fn.Walk(func(op *Operation) { kinds[op.Kind]++ })
	for kind, want := range map[string]int{
		KindProgramID: 1, KindConstant: 2, KindMakeRange: 1, KindFor: 1,
		KindAddI: 1, KindYield: 1, KindCmp: 1, KindAssume: 1, KindReturn: 1,
	} {
		if kinds[kind] != want {
			t.Errorf("found %d %s ops, want %d", kinds[kind], kind, want)
		}
	}

	var loop *Operation
	fn.Walk(func(op *Operation) {
		if op.IsLoop() {
			loop = op
		}
	})
	if loop.UpperBound().Name() != "n" {
		t.Errorf("loop upper bound = %%%s, want %%n", loop.UpperBound().Name())
	}
	if len(loop.IterArgs()) != 1 || loop.IterArgs()[0].Name() != "a" {
		t.Errorf("unexpected iter args")
	}

	var mr *Operation
	fn.Walk(func(op *Operation) {
		if op.Kind == KindMakeRange {
			mr = op
		}
	})
	if v, ok := mr.Attr("end"); !ok || v != 16 {
		t.Errorf("make_range end attr = %d, %v", v, ok)
	}
	if ty := mr.Results[0].Type(); ty.Width != 32 || len(ty.Shape) != 1 || ty.Shape[0] != 16 {
		t.Errorf("make_range type = %s", ty)
	}
}

func TestParsePrintRoundTrip(t *testing.T) {
	fn, err := Parse(kernelSrc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	printed := fn.String()
	fn2, err := Parse(printed)
	if err != nil {
		t.Fatalf("Parse of printed form failed: %v\n%s", err, printed)
	}
	printed2 := fn2.String()
	if printed != printed2 {
		t.Errorf("print/parse/print not stable:\n%s\nvs\n%s", printed, printed2)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"empty", "", "empty input"},
		{"no header", "%x = arith.constant 0 : i32", "expected 'func"},
		{"undefined value", "func @f() {\n  func.return %x\n}", "undefined value"},
		{"missing brace", "func @f(%x: i32) {\n  func.return %x", "missing closing brace"},
		{"bad type", "func @f(%x: f32) {\n}", "malformed type"},
		{"missing yield", "func @f() {\n  %c = arith.constant 0 : i32\n  scf.for %i = %c to %c step %c {\n  }\n  func.return\n}", "must end in"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src)
			if err == nil {
				t.Fatalf("expected error containing %q, got none", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}
