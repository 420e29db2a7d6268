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

// associationCondition builds the join/correlation predicate for one
// association step, shared by from-rewrite (§4.6.1), `exists` lowering
// (§4.6.3), join materialization (§4.6.6) and expand subqueries (§4.5):
// for a managed association it pairs each foreign key with the matching
// key of the target aliased outerAlias/innerAlias; for an unmanaged
// association it clones the modeled on-condition, rewriting `$self` to
// outerAlias and prefixing every other reference with innerAlias.
func associationCondition(model *csn.Model, assoc *csn.Definition, outerAlias, innerAlias string) []cqn.Token {
	if model.IsManaged(assoc) {
		return managedCondition(assoc, outerAlias, innerAlias)
	}
	return unmanagedCondition(assoc, outerAlias, innerAlias)
}

func managedCondition(assoc *csn.Definition, outerAlias, innerAlias string) []cqn.Token {
	var toks []cqn.Token
	for i, fk := range assoc.Assoc.ForeignKeys {
		if i > 0 {
			toks = append(toks, cqn.Token{Kind: cqn.TokKeyword, Keyword: "and"})
		}
		leftName := fk.As
		if leftName == "" {
			leftName = fk.Ref
		}
		outerCol := assoc.Name + "_" + leftName
		toks = append(toks,
			cqn.Token{Kind: cqn.TokRef, Ref: cqn.Ref{{Name: outerAlias}, {Name: outerCol}}},
			cqn.Token{Kind: cqn.TokKeyword, Keyword: "="},
			cqn.Token{Kind: cqn.TokRef, Ref: cqn.Ref{{Name: innerAlias}, {Name: fk.Ref}}},
		)
	}
	if len(toks) == 0 {
		// An association declared managed with no foreign keys modeled
		// (should not normally occur) never matches.
		return []cqn.Token{{Kind: cqn.TokKeyword, Keyword: "1"}, {Kind: cqn.TokKeyword, Keyword: "="}, {Kind: cqn.TokKeyword, Keyword: "0"}}
	}
	return toks
}

// unmanagedCondition rewrites the modeled on-condition: `$self` becomes
// outerAlias, and the association's own target element names become
// innerAlias-qualified refs.
func unmanagedCondition(assoc *csn.Definition, outerAlias, innerAlias string) []cqn.Token {
	return rewriteOnCondition(assoc.Assoc.OnCondition, outerAlias, innerAlias)
}

func rewriteOnCondition(toks []cqn.Token, outerAlias, innerAlias string) []cqn.Token {
	out := make([]cqn.Token, len(toks))
	for i, t := range toks {
		out[i] = rewriteOnToken(t, outerAlias, innerAlias)
	}
	return out
}

func rewriteOnToken(t cqn.Token, outerAlias, innerAlias string) cqn.Token {
	switch t.Kind {
	case cqn.TokRef:
		if t.IsRefToSelf() {
			rest := t.Ref[1:]
			return cqn.Token{Kind: cqn.TokRef, Ref: prependStep(outerAlias, rest)}
		}
		return cqn.Token{Kind: cqn.TokRef, Ref: prependStep(innerAlias, t.Ref)}
	case cqn.TokFunc:
		args := make([]cqn.Token, len(t.FuncArgs))
		for i, a := range t.FuncArgs {
			args[i] = rewriteOnToken(a, outerAlias, innerAlias)
		}
		return cqn.Token{Kind: cqn.TokFunc, Func: t.Func, FuncArgs: args}
	case cqn.TokXpr:
		xpr := make([]cqn.Token, len(t.Xpr))
		for i, x := range t.Xpr {
			xpr[i] = rewriteOnToken(x, outerAlias, innerAlias)
		}
		return cqn.Token{Kind: cqn.TokXpr, Xpr: xpr}
	case cqn.TokList:
		list := make([]cqn.Token, len(t.List))
		for i, x := range t.List {
			list[i] = rewriteOnToken(x, outerAlias, innerAlias)
		}
		return cqn.Token{Kind: cqn.TokList, List: list}
	default:
		return t
	}
}

// prependStep replaces a one-step ref's implicit table with alias, or
// qualifies a bare leaf name with alias.
func prependStep(alias string, ref cqn.Ref) cqn.Ref {
	if len(ref) == 0 {
		return ref
	}
	if len(ref) == 1 {
		return cqn.Ref{{Name: alias}, ref[0]}
	}
	return append(cqn.Ref{{Name: alias}}, ref...)
}

// existsChain builds the nested `exists` token stream for a multi-step
// navigation used in a from-rewrite or where/having exists (§4.6.1,
// §4.6.3): innermost step first, each wrapping the next in a correlated
// subquery against the step's target, with the step's own inline filter
// (if any) conjoined into that subquery's where.
func existsChain(s *scope, model *csn.Model, steps []stepLink, startAlias string) []cqn.Token {
	if len(steps) == 0 {
		return nil
	}
	prevAlias := startAlias
	var innermost *cqn.Select
	var result *cqn.Select
	for _, step := range steps {
		if step.Def == nil || step.Def.Kind != csn.KindAssociation {
			continue
		}
		innerAlias := step.Alias
		if innerAlias == "" {
			innerAlias = step.Def.Name
		}
		where := associationCondition(model, step.Def, prevAlias, innerAlias)
		sel := &cqn.Select{
			From:    &cqn.From{Ref: cqn.Ref{{Name: step.Target.FlatName()}}, As: innerAlias},
			Columns: []*cqn.Column{cqn.NewVal(1)},
			Where:   where,
		}
		if innermost == nil {
			innermost = sel
		} else {
			result.Where = append(result.Where, cqn.Token{Kind: cqn.TokKeyword, Keyword: "and"}, cqn.Token{Kind: cqn.TokKeyword, Keyword: "exists"}, cqn.Token{Kind: cqn.TokSubquery, Select: sel})
		}
		result = sel
		prevAlias = innerAlias
	}
	if innermost == nil {
		return nil
	}
	return []cqn.Token{{Kind: cqn.TokKeyword, Keyword: "exists"}, {Kind: cqn.TokSubquery, Select: innermost}}
}

// buildExpandSubquery turns an `{ref, expand}` projection column into a
// correlated scalar/array subquery (spec §4.5 "expand"): a SELECT over
// the association's target, correlated back to the enclosing alias,
// projecting the expand column list, respecting persistence-skip
// omission on the target side via the normal projection expansion.
func buildExpandSubquery(s *scope, col *cqn.Column, res *refResolution) (*cqn.Column, *OutputElement, error) {
	assoc := res.FinalDef
	tgt, err := s.model.Target(assoc)
	if err != nil {
		return nil, nil, err
	}
	innerAlias := s.jt.addAlias(assoc.Name)
	inner := newScope(s.model, s, s.opts)
	if err := inner.addSource(innerAlias, tgt); err != nil {
		return nil, nil, err
	}

	cols, _, err := expandProjection(inner, col.Expand, nil, "")
	if err != nil {
		return nil, nil, err
	}

	where := associationCondition(s.model, assoc, res.FinalAlias, innerAlias)

	sel := &cqn.Select{
		From:    &cqn.From{Ref: cqn.Ref{{Name: tgt.FlatName()}}, As: innerAlias},
		Columns: cols,
		Where:   where,
		Expand:  true,
		One:     !assoc.Assoc.ToMany,
	}
	name := col.As
	if name == "" {
		name = res.FlatName
	}
	return &cqn.Column{Select: sel, As: name}, &OutputElement{Name: name, Def: assoc, Type: "cds.Association"}, nil
}
