// Copyright 2020-2021 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rewrite

import (
	"github.com/cds-go/cqn4sql/cqn"
	"github.com/cds-go/cqn4sql/csn"
)

// rewriteTokens rewrites a where/having/on token stream (spec §4.6.3):
// every ref flattens to its two-step table.column form, `exists` followed
// by a ref becomes an `exists` subquery chain, `in ()`/`not in ()` become
// `= null`/`is not null`, structural
// comparisons against structured elements expand into a conjunction/
// disjunction of leaf comparisons, and nested subqueries recurse through
// the full Rewrite pipeline.
func rewriteTokens(s *scope, toks []cqn.Token) ([]cqn.Token, error) {
	var out []cqn.Token
	for i := 0; i < len(toks); i++ {
		t := toks[i]

		if t.Kind == cqn.TokKeyword && t.Keyword == "exists" && i+1 < len(toks) && toks[i+1].Kind == cqn.TokRef {
			chain, err := rewriteExistsRef(s, toks[i+1].Ref)
			if err != nil {
				return nil, err
			}
			out = append(out, chain...)
			i++
			continue
		}

		if t.Kind == cqn.TokRef && i+2 < len(toks) && isEqNe(toks[i+1]) {
			res, err := resolveRef(s, t.Ref, nil, "", modeNormal)
			if err != nil {
				return nil, err
			}
			if res.FinalDef != nil && res.FinalDef.IsStructured() {
				expanded, consumed, err := expandStructuralComparison(s, res, toks[i+1], toks[i+2])
				if err != nil {
					return nil, err
				}
				out = append(out, expanded...)
				i += consumed
				continue
			}
		}

		if t.Kind == cqn.TokKeyword && (t.Keyword == "in" || t.Keyword == "not in") && i+1 < len(toks) && toks[i+1].Kind == cqn.TokList && len(toks[i+1].List) == 0 {
			if t.Keyword == "in" {
				out = append(out, cqn.Token{Kind: cqn.TokKeyword, Keyword: "="}, cqn.Token{Kind: cqn.TokLiteral, Val: nil})
			} else {
				out = append(out, cqn.Token{Kind: cqn.TokKeyword, Keyword: "is not null"})
			}
			i++
			continue
		}

		rt, err := rewriteToken(s, t)
		if err != nil {
			return nil, err
		}
		out = append(out, rt)
	}
	return out, nil
}

func isEqNe(t cqn.Token) bool {
	return t.Kind == cqn.TokKeyword && (t.Keyword == "=" || t.Keyword == "<>" || t.Keyword == "!=")
}

// rewriteToken rewrites one token in place: refs flatten (a ref ending
// on an association or a structured element is rejected), nested
// structures recurse.
func rewriteToken(s *scope, t cqn.Token) (cqn.Token, error) {
	switch t.Kind {
	case cqn.TokRef:
		res, err := resolveRef(s, t.Ref, nil, "", modeNormal)
		if err != nil {
			return t, err
		}
		if res.Pseudo {
			return cqn.Token{Kind: cqn.TokRef, Ref: t.Ref, Cast: t.Cast}, nil
		}
		if res.FinalDef != nil && res.FinalDef.Kind == csn.KindAssociation {
			return t, ErrAssocInExpression.New(dottedPath(t.Ref))
		}
		if res.FinalDef != nil && res.FinalDef.IsStructured() {
			return t, ErrStructInExpression.New(dottedPath(t.Ref))
		}
		return cqn.Token{Kind: cqn.TokRef, Ref: cqn.Ref{{Name: res.FinalAlias}, {Name: res.FlatName}}, Cast: t.Cast}, nil

	case cqn.TokFunc:
		args := make([]cqn.Token, len(t.FuncArgs))
		for i, a := range t.FuncArgs {
			rt, err := rewriteToken(s, a)
			if err != nil {
				return t, err
			}
			args[i] = rt
		}
		return cqn.Token{Kind: cqn.TokFunc, Func: t.Func, FuncArgs: args, Cast: t.Cast}, nil

	case cqn.TokXpr:
		xpr, err := rewriteTokens(s, t.Xpr)
		if err != nil {
			return t, err
		}
		return cqn.Token{Kind: cqn.TokXpr, Xpr: xpr, Cast: t.Cast}, nil

	case cqn.TokList:
		if len(t.List) == 0 {
			// An empty list right after `in`/`not in` is normalized by
			// rewriteTokens; anywhere else it is replaced by the keyword
			// `1=0`.
			return cqn.Token{Kind: cqn.TokKeyword, Keyword: "1=0"}, nil
		}
		list := make([]cqn.Token, len(t.List))
		for i, x := range t.List {
			rt, err := rewriteToken(s, x)
			if err != nil {
				return t, err
			}
			list[i] = rt
		}
		return cqn.Token{Kind: cqn.TokList, List: list, Cast: t.Cast}, nil

	case cqn.TokSubquery:
		inner := newScope(s.model, s, s.opts)
		if err := populateFrom(inner, t.Select.From); err != nil {
			return t, err
		}
		sub, err := rewriteSelect(inner, t.Select, false)
		if err != nil {
			return t, err
		}
		return cqn.Token{Kind: cqn.TokSubquery, Select: sub, Cast: t.Cast}, nil

	default:
		return t, nil
	}
}

// rewriteExistsRef lowers `exists assoc.path[filter]` into a nested
// `exists (select 1 from ... where ...)` chain (spec §4.6.3).
func rewriteExistsRef(s *scope, ref cqn.Ref) ([]cqn.Token, error) {
	res, err := resolveRef(s, ref, nil, "", modeExists)
	if err != nil {
		return nil, err
	}
	startAlias := res.Steps[0].Alias
	if startAlias == "" {
		if src := s.soleSource(); src != nil {
			startAlias = src.Alias
		}
	}
	chain := existsChain(s, s.model, res.Steps, startAlias)
	if chain == nil {
		return nil, ErrFilterOnNonAssoc.New(dottedPath(ref))
	}
	return chain, nil
}

// expandStructuralComparison expands `struct = struct|null` (and `<>`)
// into a parenthesized conjunction/disjunction of leaf comparisons, a
// null right-hand side giving `leaf is null` (`leaf is not null`) (spec
// §4.6.4), returning the number of extra tokens (operator + rhs) it
// consumed beyond the initial ref.
func expandStructuralComparison(s *scope, lhs *refResolution, op, rhs cqn.Token) ([]cqn.Token, int, error) {
	leaves := lhs.FinalDef.Elements
	if len(leaves) == 0 {
		return nil, 0, ErrUnsupportedStructuralComparison.New(op.Keyword, dottedPath(nil))
	}

	var rhsRes *refResolution
	rhsIsNull := rhs.Kind == cqn.TokLiteral && rhs.Val == nil
	if !rhsIsNull {
		if rhs.Kind != cqn.TokRef {
			return nil, 0, ErrCannotCompareStructWithValue.New(lhs.FlatName)
		}
		r, err := resolveRef(s, rhs.Ref, nil, "", modeNormal)
		if err != nil {
			return nil, 0, err
		}
		if r.FinalDef == nil || !r.FinalDef.IsStructured() {
			return nil, 0, ErrCannotCompareStructWithValue.New(lhs.FlatName)
		}
		rhsRes = r
	}

	joiner := "and"
	if op.Keyword == "<>" || op.Keyword == "!=" {
		joiner = "or"
	}

	var xpr []cqn.Token
	first := true
	for _, leaf := range leaves {
		if leaf.Kind == csn.KindAssociation || leaf.IsStructured() {
			continue
		}
		if !first {
			xpr = append(xpr, cqn.Token{Kind: cqn.TokKeyword, Keyword: joiner})
		}
		first = false
		lname := lhs.FlatName + "_" + leaf.Name
		xpr = append(xpr, cqn.Token{Kind: cqn.TokRef, Ref: cqn.Ref{{Name: lhs.FinalAlias}, {Name: lname}}})
		if rhsIsNull {
			nullKw := "is null"
			if joiner == "or" {
				nullKw = "is not null"
			}
			xpr = append(xpr, cqn.Token{Kind: cqn.TokKeyword, Keyword: nullKw})
		} else {
			rname := rhsRes.FlatName + "_" + leaf.Name
			xpr = append(xpr, op, cqn.Token{Kind: cqn.TokRef, Ref: cqn.Ref{{Name: rhsRes.FinalAlias}, {Name: rname}}})
		}
	}
	return []cqn.Token{{Kind: cqn.TokXpr, Xpr: xpr}}, 2, nil
}

// rewriteOrderOrGroupBy rewrites an orderBy/groupBy column list: each
// entry must flatten to exactly one physical column (spec §4.6.4
// "ambiguous orderBy").
func rewriteOrderOrGroupBy(s *scope, cols []*cqn.Column) ([]*cqn.Column, error) {
	var out []*cqn.Column
	for _, col := range cols {
		if len(col.Ref) == 0 {
			if len(col.Xpr) > 0 {
				xpr, err := rewriteTokens(s, col.Xpr)
				if err != nil {
					return nil, err
				}
				out = append(out, &cqn.Column{Xpr: xpr, Sort: col.Sort, Nulls: col.Nulls})
				continue
			}
			out = append(out, col)
			continue
		}
		res, err := resolveRef(s, col.Ref, nil, "", modeNormal)
		if err != nil {
			return nil, err
		}
		if res.FinalDef != nil && res.FinalDef.IsStructured() {
			return nil, ErrAmbiguousOrderBy.New(dottedPath(col.Ref))
		}
		out = append(out, &cqn.Column{
			Ref:   cqn.Ref{{Name: res.FinalAlias}, {Name: res.FlatName}},
			Sort:  col.Sort,
			Nulls: col.Nulls,
		})
	}
	return out, nil
}

// rewriteSearch lowers a `search` clause into a disjunction of `contains`
// predicates over the target's searchable string elements (spec §4.6.5),
// deferring to Options.SearchableColumns when the caller supplied one.
func rewriteSearch(s *scope, search []cqn.Token, target *csn.Definition) []cqn.Token {
	if len(search) == 0 || target == nil {
		return nil
	}
	var cols []string
	if s.opts.SearchableColumns != nil {
		cols = s.opts.SearchableColumns(target.Name)
	} else {
		for _, el := range target.Elements {
			if el.Kind != csn.KindAssociation && !el.IsStructured() && elementType(el) == typeString {
				cols = append(cols, el.Name)
			}
		}
	}
	if len(cols) == 0 {
		return nil
	}
	alias := ""
	if src := s.soleSource(); src != nil {
		alias = src.Alias
	}
	var out []cqn.Token
	for i, c := range cols {
		if i > 0 {
			out = append(out, cqn.Token{Kind: cqn.TokKeyword, Keyword: "or"})
		}
		out = append(out,
			cqn.Token{Kind: cqn.TokFunc, Func: "contains", FuncArgs: []cqn.Token{
				{Kind: cqn.TokRef, Ref: cqn.Ref{{Name: alias}, {Name: c}}},
				{Kind: cqn.TokXpr, Xpr: search},
			}},
		)
	}
	return []cqn.Token{{Kind: cqn.TokXpr, Xpr: out}}
}

// materializeJoins walks the scope's join tree and builds the SQL-shaped
// left-join chain rooted at the base from (spec §4.6.6).
func materializeJoins(s *scope, base *cqn.From) *cqn.From {
	if s.jt.empty() {
		return base
	}
	cur := base
	for _, root := range s.jt.rootsList() {
		for _, child := range root.Children() {
			cur = appendJoinNode(s, cur, child)
		}
	}
	return cur
}

func appendJoinNode(s *scope, left *cqn.From, node *JoinNode) *cqn.From {
	on := associationCondition(s.model, node.Assoc, node.Parent.Alias, node.Alias)
	if len(node.Filter) > 0 {
		filter, err := rewriteTokens(s, node.Filter)
		if err == nil {
			on = append(on, cqn.Token{Kind: cqn.TokKeyword, Keyword: "and"})
			on = append(on, filter...)
		}
	}
	joined := &cqn.From{
		Join: "left",
		Args: []*cqn.From{left, {Ref: cqn.Ref{{Name: node.Target.FlatName()}}, As: node.Alias}},
		On:   on,
	}
	for _, child := range node.Children() {
		joined = appendJoinNode(s, joined, child)
	}
	return joined
}
