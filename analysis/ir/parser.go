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
	"regexp"
	"strconv"
	"strings"
)

// Parse reads a function in the textual form produced by Function.String. The
// format is line-oriented: one operation per line, loop bodies between the loop
// header and a closing brace. Line comments start with "//".
func Parse(src string) (*Function, error) {
	p := &parser{values: map[string]*Value{}}
	lines := strings.Split(src, "\n")
	i := 0
	for i < len(lines) && p.cleanLine(lines[i]) == "" {
		i++
	}
	if i == len(lines) {
		return nil, fmt.Errorf("empty input")
	}
	if err := p.parseHeader(p.cleanLine(lines[i]), i+1); err != nil {
		return nil, err
	}
	i++
	for ; i < len(lines); i++ {
		line := p.cleanLine(lines[i])
		if line == "" {
			continue
		}
		done, err := p.parseLine(line, i+1)
		if err != nil {
			return nil, err
		}
		if done {
			Finalize(p.b.fn)
			return p.b.fn, nil
		}
	}
	return nil, fmt.Errorf("missing closing brace for func @%s", p.b.fn.Name)
}

type parser struct {
	b      *Builder
	values map[string]*Value
	depth  int
}

func (p *parser) cleanLine(line string) string {
	if idx := strings.Index(line, "//"); idx >= 0 {
		line = line[:idx]
	}
	return strings.TrimSpace(line)
}

var headerRe = regexp.MustCompile(`^func\s+@(\w+)\s*\((.*)\)\s*\{$`)

func (p *parser) parseHeader(line string, lineno int) error {
	m := headerRe.FindStringSubmatch(line)
	if m == nil {
		return fmt.Errorf("line %d: expected 'func @name(...) {', got %q", lineno, line)
	}
	p.b = NewBuilder(m[1])
	for _, part := range splitArgs(m[2]) {
		nameType := strings.SplitN(part, ":", 2)
		if len(nameType) != 2 {
			return fmt.Errorf("line %d: malformed parameter %q", lineno, part)
		}
		name := strings.TrimSpace(nameType[0])
		if !strings.HasPrefix(name, "%") {
			return fmt.Errorf("line %d: parameter name %q must start with %%", lineno, name)
		}
		typ, err := parseType(strings.TrimSpace(nameType[1]))
		if err != nil {
			return fmt.Errorf("line %d: %w", lineno, err)
		}
		v := p.b.Param(name[1:], typ)
		p.values[name[1:]] = v
	}
	return nil
}

// parseLine handles one operation line. It returns true once the function's
// closing brace has been consumed.
func (p *parser) parseLine(line string, lineno int) (bool, error) {
	if line == "}" {
		if p.depth == 0 {
			return true, nil
		}
		if err := p.endFor(lineno); err != nil {
			return false, err
		}
		return false, nil
	}

	var resultNames []string
	rhs := line
	if idx := strings.Index(line, " = "); idx >= 0 && strings.HasPrefix(line, "%") {
		for _, r := range strings.Split(line[:idx], ",") {
			r = strings.TrimSpace(r)
			if !strings.HasPrefix(r, "%") {
				return false, fmt.Errorf("line %d: malformed result name %q", lineno, r)
			}
			resultNames = append(resultNames, r[1:])
		}
		rhs = strings.TrimSpace(line[idx+3:])
	}

	kind := rhs
	if idx := strings.IndexAny(rhs, " \t"); idx >= 0 {
		kind = rhs[:idx]
	}
	rest := strings.TrimSpace(strings.TrimPrefix(rhs, kind))

	var op *Operation
	var err error
	switch kind {
	case KindConstant:
		op, err = p.parseConstant(rest, lineno)
	case KindCmp:
		op, err = p.parseCmp(rest, lineno)
	case KindFor:
		err = p.beginFor(rest, lineno)
		if err != nil {
			return false, err
		}
		// Result names are bound when the loop is closed; record them now.
		return false, p.bindResults(p.b.current, resultNames, lineno)
	default:
		op, err = p.parseGeneric(kind, rest, lineno)
	}
	if err != nil {
		return false, err
	}
	return false, p.bindResults(op, resultNames, lineno)
}

func (p *parser) bindResults(op *Operation, names []string, lineno int) error {
	if len(names) == 0 {
		return nil
	}
	if len(names) != len(op.Results) {
		return fmt.Errorf("line %d: %s produces %d results, %d names given",
			lineno, op.Kind, len(op.Results), len(names))
	}
	for i, name := range names {
		op.Results[i].name = name
		p.values[name] = op.Results[i]
	}
	return nil
}

var constantRe = regexp.MustCompile(`^(-?\d+)\s*:\s*(\S+)$`)

func (p *parser) parseConstant(rest string, lineno int) (*Operation, error) {
	m := constantRe.FindStringSubmatch(rest)
	if m == nil {
		return nil, fmt.Errorf("line %d: malformed constant %q", lineno, rest)
	}
	v, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("line %d: %w", lineno, err)
	}
	typ, err := parseType(m[2])
	if err != nil {
		return nil, fmt.Errorf("line %d: %w", lineno, err)
	}
	return p.b.Op(KindConstant, []Type{typ}, nil, map[string]int64{"value": v}), nil
}

func (p *parser) parseCmp(rest string, lineno int) (*Operation, error) {
	parts := splitArgs(rest)
	if len(parts) != 3 {
		return nil, fmt.Errorf("line %d: expected 'arith.cmpi pred, %%a, %%b'", lineno)
	}
	pred, err := ParsePredicate(strings.TrimSpace(parts[0]))
	if err != nil {
		return nil, fmt.Errorf("line %d: %w", lineno, err)
	}
	lhs, err := p.lookup(parts[1], lineno)
	if err != nil {
		return nil, err
	}
	rhs, err := p.lookup(parts[2], lineno)
	if err != nil {
		return nil, err
	}
	resTy := I1
	if !lhs.typ.IsScalar() {
		resTy = Tensor(I1, lhs.typ.Shape...)
	}
	return p.b.Op(KindCmp, []Type{resTy}, []*Value{lhs, rhs},
		map[string]int64{"predicate": int64(pred)}), nil
}

var forRe = regexp.MustCompile(`^%(\w+)\s*=\s*%(\w+)\s+to\s+%(\w+)\s+step\s+%(\w+)\s*(?:iter_args\((.*)\))?\s*\{$`)

func (p *parser) beginFor(rest string, lineno int) error {
	m := forRe.FindStringSubmatch(rest)
	if m == nil {
		return fmt.Errorf("line %d: malformed loop header %q", lineno, rest)
	}
	lo, err := p.lookup("%"+m[2], lineno)
	if err != nil {
		return err
	}
	hi, err := p.lookup("%"+m[3], lineno)
	if err != nil {
		return err
	}
	step, err := p.lookup("%"+m[4], lineno)
	if err != nil {
		return err
	}
	var inits []*Value
	var argNames []string
	if m[5] != "" {
		for _, pair := range splitArgs(m[5]) {
			kv := strings.SplitN(pair, "=", 2)
			if len(kv) != 2 {
				return fmt.Errorf("line %d: malformed iter_args pair %q", lineno, pair)
			}
			name := strings.TrimSpace(kv[0])
			if !strings.HasPrefix(name, "%") {
				return fmt.Errorf("line %d: malformed iter_args name %q", lineno, name)
			}
			init, err := p.lookup(strings.TrimSpace(kv[1]), lineno)
			if err != nil {
				return err
			}
			argNames = append(argNames, name[1:])
			inits = append(inits, init)
		}
	}

	operands := append([]*Value{lo, hi, step}, inits...)
	resultTypes := make([]Type, len(inits))
	for i, init := range inits {
		resultTypes[i] = init.typ
	}
	op := p.b.Op(KindFor, resultTypes, operands, nil)

	iv := &Value{name: m[1], typ: lo.typ, owner: op}
	op.BodyArgs = append(op.BodyArgs, iv)
	p.values[m[1]] = iv
	for i, name := range argNames {
		arg := &Value{name: name, typ: inits[i].typ, owner: op}
		op.BodyArgs = append(op.BodyArgs, arg)
		p.values[name] = arg
	}
	p.b.current = op
	p.depth++
	return nil
}

func (p *parser) endFor(lineno int) error {
	loop := p.b.current
	if loop == nil {
		return fmt.Errorf("line %d: unbalanced closing brace", lineno)
	}
	if loop.YieldOp() == nil {
		return fmt.Errorf("line %d: loop body must end in %s", lineno, KindYield)
	}
	if len(loop.YieldOp().Operands) != len(loop.Results) {
		return fmt.Errorf("line %d: loop yields %d values but has %d results",
			lineno, len(loop.YieldOp().Operands), len(loop.Results))
	}
	p.b.current = loop.parent
	p.depth--
	return nil
}

var attrRe = regexp.MustCompile(`^\{([^}]*)\}\s*`)

func (p *parser) parseGeneric(kind, rest string, lineno int) (*Operation, error) {
	attrs := map[string]int64{}
	if m := attrRe.FindStringSubmatch(rest); m != nil {
		for _, pair := range splitArgs(m[1]) {
			kv := strings.SplitN(pair, "=", 2)
			if len(kv) != 2 {
				return nil, fmt.Errorf("line %d: malformed attribute %q", lineno, pair)
			}
			v, err := strconv.ParseInt(strings.TrimSpace(kv[1]), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineno, err)
			}
			attrs[strings.TrimSpace(kv[0])] = v
		}
		rest = strings.TrimSpace(rest[len(m[0]):])
	}
	if len(attrs) == 0 {
		attrs = nil
	}

	var resultTypes []Type
	if idx := strings.LastIndex(rest, ":"); idx >= 0 {
		for _, t := range splitArgs(rest[idx+1:]) {
			typ, err := parseType(strings.TrimSpace(t))
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineno, err)
			}
			resultTypes = append(resultTypes, typ)
		}
		rest = strings.TrimSpace(rest[:idx])
	}

	var operands []*Value
	if rest != "" {
		for _, o := range splitArgs(rest) {
			v, err := p.lookup(strings.TrimSpace(o), lineno)
			if err != nil {
				return nil, err
			}
			operands = append(operands, v)
		}
	}
	return p.b.Op(kind, resultTypes, operands, attrs), nil
}

func (p *parser) lookup(name string, lineno int) (*Value, error) {
	name = strings.TrimSpace(name)
	if !strings.HasPrefix(name, "%") {
		return nil, fmt.Errorf("line %d: expected value reference, got %q", lineno, name)
	}
	v, ok := p.values[name[1:]]
	if !ok {
		return nil, fmt.Errorf("line %d: undefined value %%%s", lineno, name[1:])
	}
	return v, nil
}

var tensorRe = regexp.MustCompile(`^tensor<((?:\d+x)*)i(\d+)>$`)

func parseType(s string) (Type, error) {
	if strings.HasPrefix(s, "i") {
		w, err := strconv.ParseUint(s[1:], 10, 32)
		if err != nil || w == 0 {
			return Type{}, fmt.Errorf("malformed type %q", s)
		}
		return Type{Width: uint(w)}, nil
	}
	if m := tensorRe.FindStringSubmatch(s); m != nil {
		w, err := strconv.ParseUint(m[2], 10, 32)
		if err != nil || w == 0 {
			return Type{}, fmt.Errorf("malformed type %q", s)
		}
		var dims []int64
		for _, d := range strings.Split(strings.TrimSuffix(m[1], "x"), "x") {
			if d == "" {
				continue
			}
			n, err := strconv.ParseInt(d, 10, 64)
			if err != nil {
				return Type{}, fmt.Errorf("malformed type %q", s)
			}
			dims = append(dims, n)
		}
		return Type{Width: uint(w), Shape: dims}, nil
	}
	return Type{}, fmt.Errorf("malformed type %q", s)
}

// splitArgs splits a comma-separated list at the top level, ignoring commas inside
// angle brackets and parentheses.
func splitArgs(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '<', '(':
			depth++
		case '>', ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if last := strings.TrimSpace(s[start:]); last != "" {
		parts = append(parts, last)
	}
	return parts
}
