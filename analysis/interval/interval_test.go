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

package interval

import (
	"math"
	"testing"
)

func TestFullBounds(t *testing.T) {
	tests := []struct {
		width uint
		smin  int64
		smax  int64
		umax  uint64
	}{
		{1, -1, 0, 1},
		{8, -128, 127, 255},
		{16, -32768, 32767, 65535},
		{32, math.MinInt32, math.MaxInt32, math.MaxUint32},
		{64, math.MinInt64, math.MaxInt64, math.MaxUint64},
	}
	for _, tt := range tests {
		f := Full(tt.width)
		if f.SMin != tt.smin || f.SMax != tt.smax || f.UMin != 0 || f.UMax != tt.umax {
			t.Errorf("Full(%d) = %s", tt.width, f)
		}
		if !f.IsFull() {
			t.Errorf("Full(%d) should report IsFull", tt.width)
		}
	}
}

func TestConstant(t *testing.T) {
	tests := []struct {
		v     int64
		width uint
		umin  uint64
	}{
		{0, 32, 0},
		{42, 32, 42},
		{-1, 32, math.MaxUint32},
		{-1, 8, 255},
		{-128, 8, 128},
	}
	for _, tt := range tests {
		c := Constant(tt.v, tt.width)
		if !c.IsConstant() {
			t.Errorf("Constant(%d, %d) should be constant, got %s", tt.v, tt.width, c)
		}
		if c.SMin != tt.v || c.UMin != tt.umin {
			t.Errorf("Constant(%d, %d) = %s, want unsigned %d", tt.v, tt.width, c, tt.umin)
		}
	}
}

func TestFromSigned(t *testing.T) {
	tests := []struct {
		name   string
		lo, hi int64
		width  uint
		want   Interval
	}{
		{"non-negative", 3, 10, 32,
			Interval{SMin: 3, SMax: 10, UMin: 3, UMax: 10, Width: 32}},
		{"negative", -10, -3, 8,
			Interval{SMin: -10, SMax: -3, UMin: 246, UMax: 253, Width: 8}},
		{"straddles zero", -1, 1, 8,
			Interval{SMin: -1, SMax: 1, UMin: 0, UMax: 255, Width: 8}},
		{"clamped to width", -1000, 1000, 8,
			Interval{SMin: -128, SMax: 127, UMin: 0, UMax: 255, Width: 8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromSigned(tt.lo, tt.hi, tt.width)
			if !got.Equal(tt.want) {
				t.Errorf("FromSigned(%d, %d, %d) = %s, want %s", tt.lo, tt.hi, tt.width, got, tt.want)
			}
		})
	}
}

func TestFromUnsigned(t *testing.T) {
	tests := []struct {
		name   string
		lo, hi uint64
		width  uint
		want   Interval
	}{
		{"small", 3, 10, 32,
			Interval{SMin: 3, SMax: 10, UMin: 3, UMax: 10, Width: 32}},
		{"high half", 250, 255, 8,
			Interval{SMin: -6, SMax: -1, UMin: 250, UMax: 255, Width: 8}},
		{"spans sign bit", 100, 200, 8,
			Interval{SMin: -128, SMax: 127, UMin: 100, UMax: 200, Width: 8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromUnsigned(tt.lo, tt.hi, tt.width)
			if !got.Equal(tt.want) {
				t.Errorf("FromUnsigned(%d, %d, %d) = %s, want %s", tt.lo, tt.hi, tt.width, got, tt.want)
			}
		})
	}
}

func TestUnion(t *testing.T) {
	a := FromSigned(0, 10, 32)
	b := FromSigned(5, 20, 32)
	u := a.Union(b)
	want := FromSigned(0, 20, 32)
	if !u.Equal(want) {
		t.Errorf("Union = %s, want %s", u, want)
	}
	if !u.Equal(b.Union(a)) {
		t.Errorf("Union is not commutative: %s vs %s", u, b.Union(a))
	}

	// Joining with bottom returns the other operand.
	var bottom Interval
	if !bottom.Union(a).Equal(a) || !a.Union(bottom).Equal(a) {
		t.Errorf("Union with bottom should be identity")
	}

	// Union only widens.
	if u.SMin > a.SMin || u.SMax < a.SMax || u.SMin > b.SMin || u.SMax < b.SMax {
		t.Errorf("Union %s does not contain both operands", u)
	}
}

func TestIntersect(t *testing.T) {
	a := FromSigned(0, 10, 32)
	b := FromSigned(5, 20, 32)
	got := a.Intersect(b)
	want := FromSigned(5, 10, 32)
	if !got.Equal(want) {
		t.Errorf("Intersect = %s, want %s", got, want)
	}

	// Disjoint operands clamp to a consistent singleton rather than going empty.
	c := FromSigned(100, 200, 32)
	d := a.Intersect(c)
	if d.SMin > d.SMax || d.UMin > d.UMax {
		t.Errorf("Intersect of disjoint ranges produced inconsistent bounds: %s", d)
	}

	// Intersecting with bottom returns the other operand.
	var bottom Interval
	if !bottom.Intersect(a).Equal(a) {
		t.Errorf("Intersect with bottom should return the other operand")
	}
}

func TestIntersectCrossTightens(t *testing.T) {
	// Once one view pins the sign bit, the other view of the same bits must
	// narrow with it.
	tests := []struct {
		name string
		a, b Interval
		want Interval
	}{
		{"non-negative signed narrows unsigned",
			Full(32),
			Interval{SMin: 0, SMax: 63, UMin: 0, UMax: math.MaxUint32, Width: 32},
			Interval{SMin: 0, SMax: 63, UMin: 0, UMax: 63, Width: 32}},
		{"negative signed narrows unsigned",
			Full(8),
			Interval{SMin: -6, SMax: -1, UMin: 0, UMax: 255, Width: 8},
			Interval{SMin: -6, SMax: -1, UMin: 250, UMax: 255, Width: 8}},
		{"high unsigned narrows signed",
			Full(8),
			Interval{SMin: -128, SMax: 127, UMin: 250, UMax: 255, Width: 8},
			Interval{SMin: -6, SMax: -1, UMin: 250, UMax: 255, Width: 8}},
		{"low unsigned narrows signed",
			Full(16),
			Interval{SMin: -32768, SMax: 32767, UMin: 5, UMax: 10, Width: 16},
			Interval{SMin: 5, SMax: 10, UMin: 5, UMax: 10, Width: 16}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.a.Intersect(tt.b)
			if !got.Equal(tt.want) {
				t.Errorf("Intersect = %s, want %s", got, tt.want)
			}
			if rev := tt.b.Intersect(tt.a); !rev.Equal(tt.want) {
				t.Errorf("Intersect is not commutative: %s vs %s", rev, tt.want)
			}
		})
	}
}

func TestUnionIdempotentAtFixedPoint(t *testing.T) {
	ivs := []Interval{
		Constant(7, 32),
		FromSigned(-5, 5, 16),
		Full(8),
	}
	for _, iv := range ivs {
		if got := iv.Union(iv); !got.Equal(iv) {
			t.Errorf("Union(%s, same) = %s, want unchanged", iv, got)
		}
	}
}

func TestSaturatingArithmetic(t *testing.T) {
	tests := []struct {
		name string
		got  int64
		want int64
	}{
		{"add", AddSat(2, 3), 5},
		{"add overflow", AddSat(math.MaxInt64, 1), math.MaxInt64},
		{"add underflow", AddSat(math.MinInt64, -1), math.MinInt64},
		{"sub", SubSat(2, 5), -3},
		{"sub overflow", SubSat(math.MaxInt64, -1), math.MaxInt64},
		{"sub min", SubSat(0, math.MinInt64), math.MaxInt64},
		{"mul", MulSat(-4, 5), -20},
		{"mul overflow", MulSat(math.MaxInt64, 2), math.MaxInt64},
		{"mul underflow", MulSat(math.MinInt64, 2), math.MinInt64},
		{"mul zero", MulSat(math.MinInt64, 0), 0},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %d, want %d", tt.name, tt.got, tt.want)
		}
	}
}

func TestWidthClamping(t *testing.T) {
	f := Full(128)
	if f.Width != MaxWidth {
		t.Errorf("width should clamp to %d, got %d", MaxWidth, f.Width)
	}
	if f.SMin != math.MinInt64 || f.SMax != math.MaxInt64 {
		t.Errorf("clamped full range wrong: %s", f)
	}
}
