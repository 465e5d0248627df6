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

// Package interval implements the bounded-integer interval lattice used by the range
// analysis. An Interval tracks the signed and the unsigned interpretation of the same
// bits separately, so that both signed and unsigned comparisons can be decided from
// one lattice element.
package interval

import (
	"fmt"
	"math"
)

// MaxWidth is the largest bit width an Interval can track. Wider element types are
// clamped to MaxWidth, which is sound since the bounds only widen.
const MaxWidth = 64

// An Interval is a conservative approximation of the values an integer program value
// can take at runtime. The zero Interval (Width == 0) is the bottom element of the
// lattice: no information has been joined into it yet.
//
// A well-formed non-bottom Interval satisfies SMin <= SMax and UMin <= UMax.
type Interval struct {
	SMin, SMax int64
	UMin, UMax uint64
	Width      uint
}

// SignedMin returns the smallest signed value representable in width bits.
func SignedMin(width uint) int64 {
	if width >= MaxWidth {
		return math.MinInt64
	}
	return -(int64(1) << (width - 1))
}

// SignedMax returns the largest signed value representable in width bits.
func SignedMax(width uint) int64 {
	if width >= MaxWidth {
		return math.MaxInt64
	}
	return (int64(1) << (width - 1)) - 1
}

// UnsignedMax returns the largest unsigned value representable in width bits.
func UnsignedMax(width uint) uint64 {
	if width >= MaxWidth {
		return math.MaxUint64
	}
	return (uint64(1) << width) - 1
}

func clampWidth(width uint) uint {
	if width > MaxWidth {
		return MaxWidth
	}
	return width
}

// Full returns the top element for the given bit width: the entire representable
// domain, both signed and unsigned.
func Full(width uint) Interval {
	width = clampWidth(width)
	return Interval{
		SMin:  SignedMin(width),
		SMax:  SignedMax(width),
		UMin:  0,
		UMax:  UnsignedMax(width),
		Width: width,
	}
}

// Constant returns the singleton interval holding v truncated to width bits. The
// unsigned bounds are the modular reinterpretation of the same bits.
func Constant(v int64, width uint) Interval {
	width = clampWidth(width)
	lo, hi := SignedMin(width), SignedMax(width)
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	u := uint64(v) & UnsignedMax(width)
	return Interval{SMin: v, SMax: v, UMin: u, UMax: u, Width: width}
}

// FromSigned builds the interval [lo, hi] from signed bounds, deriving conservative
// unsigned bounds. Bounds are clamped to the representable domain of width.
func FromSigned(lo, hi int64, width uint) Interval {
	width = clampWidth(width)
	smin, smax := SignedMin(width), SignedMax(width)
	if lo < smin {
		lo = smin
	}
	if hi > smax {
		hi = smax
	}
	if lo > hi {
		hi = lo
	}
	iv := Interval{SMin: lo, SMax: hi, Width: width}
	mask := UnsignedMax(width)
	switch {
	case lo >= 0:
		// Non-negative range, unsigned view is identical.
		iv.UMin, iv.UMax = uint64(lo), uint64(hi)
	case hi < 0:
		// Entirely negative, the unsigned view is the wrapped window.
		iv.UMin, iv.UMax = uint64(lo)&mask, uint64(hi)&mask
	default:
		// Straddles zero: the unsigned reinterpretation wraps around.
		iv.UMin, iv.UMax = 0, mask
	}
	return iv
}

// FromUnsigned builds the interval [lo, hi] from unsigned bounds, deriving
// conservative signed bounds.
func FromUnsigned(lo, hi uint64, width uint) Interval {
	width = clampWidth(width)
	umax := UnsignedMax(width)
	if lo > umax {
		lo = umax
	}
	if hi > umax {
		hi = umax
	}
	if lo > hi {
		hi = lo
	}
	iv := Interval{UMin: lo, UMax: hi, Width: width}
	smaxU := uint64(SignedMax(width))
	switch {
	case hi <= smaxU:
		// Fits in the non-negative signed half.
		iv.SMin, iv.SMax = int64(lo), int64(hi)
	case lo > smaxU:
		// Entirely in the negative signed half.
		iv.SMin, iv.SMax = reinterpretSigned(lo, width), reinterpretSigned(hi, width)
	default:
		iv.SMin, iv.SMax = SignedMin(width), SignedMax(width)
	}
	return iv
}

// reinterpretSigned sign-extends the low width bits of u.
func reinterpretSigned(u uint64, width uint) int64 {
	if width >= MaxWidth {
		return int64(u)
	}
	u &= UnsignedMax(width)
	if u >= uint64(1)<<(width-1) {
		return int64(u) - (int64(1) << width)
	}
	return int64(u)
}

// IsUninitialized reports whether the interval is the bottom element.
func (iv Interval) IsUninitialized() bool {
	return iv.Width == 0
}

// IsFull reports whether the interval is the top element for its width.
func (iv Interval) IsFull() bool {
	return !iv.IsUninitialized() && iv == Full(iv.Width)
}

// IsConstant reports whether the interval contains exactly one value.
func (iv Interval) IsConstant() bool {
	return !iv.IsUninitialized() && iv.SMin == iv.SMax && iv.UMin == iv.UMax
}

// Equal is structural equality. Two bottom elements are equal regardless of bounds.
func (iv Interval) Equal(other Interval) bool {
	if iv.IsUninitialized() || other.IsUninitialized() {
		return iv.IsUninitialized() == other.IsUninitialized()
	}
	return iv == other
}

// Union returns the smallest interval containing both operands. This is the lattice
// join, used when merging information from alternative program paths. Joining with
// bottom returns the other operand.
func (iv Interval) Union(other Interval) Interval {
	if iv.IsUninitialized() {
		return other
	}
	if other.IsUninitialized() {
		return iv
	}
	width := iv.Width
	if other.Width > width {
		width = other.Width
	}
	return Interval{
		SMin:  minInt64(iv.SMin, other.SMin),
		SMax:  maxInt64(iv.SMax, other.SMax),
		UMin:  minUint64(iv.UMin, other.UMin),
		UMax:  maxUint64(iv.UMax, other.UMax),
		Width: width,
	}
}

// Intersect combines two independently-derived facts about the same value. If the
// bounds cross, the result is clamped to a consistent singleton rather than an empty
// range: crossing bounds mean the code is unreachable, and an empty range would
// poison downstream joins.
func (iv Interval) Intersect(other Interval) Interval {
	if iv.IsUninitialized() {
		return other
	}
	if other.IsUninitialized() {
		return iv
	}
	width := iv.Width
	if other.Width > width {
		width = other.Width
	}
	out := Interval{
		SMin:  maxInt64(iv.SMin, other.SMin),
		SMax:  minInt64(iv.SMax, other.SMax),
		UMin:  maxUint64(iv.UMin, other.UMin),
		UMax:  minUint64(iv.UMax, other.UMax),
		Width: width,
	}
	if out.SMin > out.SMax {
		out.SMax = out.SMin
	}
	if out.UMin > out.UMax {
		out.UMax = out.UMin
	}
	return out.tighten()
}

// tighten narrows each view of the interval using a sign pin established by the
// other view. Once the signed bounds pin the sign bit, the unsigned
// reinterpretation of the same bits is confined to one window, and vice versa.
func (iv Interval) tighten() Interval {
	mask := UnsignedMax(iv.Width)
	smaxU := uint64(SignedMax(iv.Width))
	switch {
	case iv.SMin >= 0:
		iv.UMin = maxUint64(iv.UMin, uint64(iv.SMin))
		iv.UMax = minUint64(iv.UMax, uint64(iv.SMax))
	case iv.SMax < 0:
		iv.UMin = maxUint64(iv.UMin, uint64(iv.SMin)&mask)
		iv.UMax = minUint64(iv.UMax, uint64(iv.SMax)&mask)
	}
	switch {
	case iv.UMax <= smaxU:
		iv.SMin = maxInt64(iv.SMin, int64(iv.UMin))
		iv.SMax = minInt64(iv.SMax, int64(iv.UMax))
	case iv.UMin > smaxU:
		iv.SMin = maxInt64(iv.SMin, reinterpretSigned(iv.UMin, iv.Width))
		iv.SMax = minInt64(iv.SMax, reinterpretSigned(iv.UMax, iv.Width))
	}
	if iv.SMin > iv.SMax {
		iv.SMax = iv.SMin
	}
	if iv.UMin > iv.UMax {
		iv.UMax = iv.UMin
	}
	return iv
}

// AddSat adds two signed values, saturating at the 64-bit limits instead of wrapping.
func AddSat(a, b int64) int64 {
	s := a + b
	if (a > 0 && b > 0 && s < a) || (a < 0 && b < 0 && s > a) {
		if a > 0 {
			return math.MaxInt64
		}
		return math.MinInt64
	}
	return s
}

// SubSat subtracts two signed values, saturating at the 64-bit limits.
func SubSat(a, b int64) int64 {
	if b == math.MinInt64 {
		if a >= 0 {
			return math.MaxInt64
		}
		return AddSat(AddSat(a, math.MaxInt64), 1)
	}
	return AddSat(a, -b)
}

// MulSat multiplies two signed values, saturating at the 64-bit limits.
func MulSat(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	p := a * b
	if p/b != a {
		if (a > 0) == (b > 0) {
			return math.MaxInt64
		}
		return math.MinInt64
	}
	return p
}

func (iv Interval) String() string {
	if iv.IsUninitialized() {
		return "<uninitialized>"
	}
	return fmt.Sprintf("i%d [%d, %d] u[%d, %d]", iv.Width, iv.SMin, iv.SMax, iv.UMin, iv.UMax)
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func minUint64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

func maxUint64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}
