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

// Package rewrite flattens a CQN query written against an ER-aware CSN
// model into a SQL-shaped CQN query: every association path becomes a
// join or a correlated `exists`, every structured/wildcard projection
// becomes a flat column list, and every clause is rewritten in terms of
// the resulting table aliases (the "inference" and "rewriting" passes of
// the query-normalization compiler).
package rewrite

import (
	"context"
	"time"

	"github.com/cds-go/cqn4sql/csn"

	"github.com/cds-go/cqn4sql/cqn"
)

// Result is the outcome of a Rewrite call: the flattened query plus the
// metadata the rewriter derived along the way (spec §6 "hidden
// properties"), exposed here as ordinary fields rather than mutated onto
// the AST so the same *cqn.Query can be reused or re-rewritten safely.
type Result struct {
	Query    *cqn.Query
	Target   *csn.Definition
	Sources  map[string]*csn.Definition
	Elements []*OutputElement
	JoinTree []*JoinNode
}

// Rewrite flattens q against model m. q is never mutated; the returned
// Result wraps a deep clone (spec §4.7 entry point).
func Rewrite(ctx context.Context, q *cqn.Query, m *csn.Model, opts *Options) (result *Result, err error) {
	o := opts.orDefault()
	span, ctx := startSpan(ctx, o, "cqn4sql.Rewrite")
	defer span.Finish()
	start := time.Now()
	defer func() {
		o.Metrics.RewriteTime.Observe(time.Since(start).Seconds())
		if err != nil {
			o.Metrics.Errors.Add(1)
		} else {
			o.Metrics.Rewrites.Add(1)
		}
	}()

	if q.IsUnion() {
		return nil, ErrUnionNotSupported.New()
	}

	clone := cqn.Clone(q)

	switch clone.Kind {
	case cqn.SELECT:
		s := newScope(m, nil, o)
		if err := populateFrom(s, clone.Select.From); err != nil {
			return nil, err
		}
		sel, err := rewriteSelect(s, clone.Select, true)
		if err != nil {
			return nil, err
		}
		clone.Select = sel
		return &Result{
			Query:    clone,
			Target:   primaryTarget(s),
			Sources:  sourceDefs(s),
			Elements: s.lastElements,
			JoinTree: s.jt.rootsList(),
		}, nil

	case cqn.INSERT:
		if err := rewriteFrom(m, clone.Insert.Into); err != nil {
			return nil, err
		}
		return &Result{Query: clone}, nil

	case cqn.UPSERT:
		if err := rewriteFrom(m, clone.Upsert.Into); err != nil {
			return nil, err
		}
		return &Result{Query: clone}, nil

	case cqn.UPDATE:
		s := newScope(m, nil, o)
		if err := populateFrom(s, clone.Update.Entity); err != nil {
			return nil, err
		}
		where, err := rewriteTokens(s, clone.Update.Where)
		if err != nil {
			return nil, err
		}
		clone.Update.Where = where
		clone.Update.Entity = materializeJoins(s, clone.Update.Entity)
		return &Result{Query: clone, Target: primaryTarget(s)}, nil

	case cqn.DELETE:
		s := newScope(m, nil, o)
		if err := populateFrom(s, clone.Delete.From); err != nil {
			return nil, err
		}
		where, err := rewriteTokens(s, clone.Delete.Where)
		if err != nil {
			return nil, err
		}
		clone.Delete.Where = where
		return &Result{Query: clone, Target: primaryTarget(s)}, nil

	case cqn.STREAM:
		s := newScope(m, nil, o)
		if err := populateFrom(s, clone.Stream.From); err != nil {
			return nil, err
		}
		where, err := rewriteTokens(s, clone.Stream.Where)
		if err != nil {
			return nil, err
		}
		clone.Stream.Where = where
		return &Result{Query: clone, Target: primaryTarget(s)}, nil
	}

	return &Result{Query: clone}, nil
}

// rewriteSelect runs the full clause pipeline for one SELECT, including
// nested subqueries, each rewritten in a scope of its own. isTop is not
// read.
func rewriteSelect(s *scope, sel *cqn.Select, isTop bool) (*cqn.Select, error) {
	if err := s.applyLocalization(sel.Localized, s.opts.Locale); err != nil {
		return nil, err
	}

	cols, elems, err := expandProjection(s, sel.Columns, nil, "")
	if err != nil {
		return nil, err
	}
	s.lastElements = elems

	where, err := rewriteTokens(s, sel.Where)
	if err != nil {
		return nil, err
	}
	having, err := rewriteTokens(s, sel.Having)
	if err != nil {
		return nil, err
	}
	groupBy, err := rewriteOrderOrGroupBy(s, sel.GroupBy)
	if err != nil {
		return nil, err
	}
	orderBy, err := rewriteOrderOrGroupBy(s, sel.OrderBy)
	if err != nil {
		return nil, err
	}

	from, err := rewriteSelectFrom(s, sel.From)
	if err != nil {
		return nil, err
	}
	from = materializeJoins(s, from)

	search := rewriteSearch(s, sel.Search, primaryTarget(s))
	if len(search) > 0 {
		where = appendAnd(where, search)
	}

	return &cqn.Select{
		From:      from,
		Columns:   cols,
		Where:     where,
		GroupBy:   groupBy,
		Having:    having,
		OrderBy:   orderBy,
		Limit:     sel.Limit,
		Distinct:  sel.Distinct,
		Localized: sel.Localized,
		Expand:    sel.Expand,
		One:       sel.One,
	}, nil
}

func appendAnd(where, extra []cqn.Token) []cqn.Token {
	if len(where) == 0 {
		return extra
	}
	out := append([]cqn.Token{}, where...)
	out = append(out, cqn.Token{Kind: cqn.TokKeyword, Keyword: "and"})
	return append(out, extra...)
}

// rewriteSelectFrom rewrites the base `from` per spec §4.6.1: a
// multi-step navigation (`from.ref` longer than one step) becomes a
// reverse `exists` chain narrowing the last step's target, bound as the
// query's base table; a single-step ref or an already-flat join/derived
// table passes through unchanged (join materialization handles any
// further association steps named by the query's own columns/filters).
func rewriteSelectFrom(s *scope, f *cqn.From) (*cqn.From, error) {
	if f == nil {
		return nil, nil
	}
	if f.Select != nil {
		inner := newScope(s.model, nil, s.opts)
		if err := populateFrom(inner, f.Select.From); err != nil {
			return nil, err
		}
		sub, err := rewriteSelect(inner, f.Select, false)
		if err != nil {
			return nil, err
		}
		return &cqn.From{Select: sub, As: f.As}, nil
	}
	if !f.IsRef() {
		args := make([]*cqn.From, len(f.Args))
		for i, a := range f.Args {
			rf, err := rewriteSelectFrom(s, a)
			if err != nil {
				return nil, err
			}
			args[i] = rf
		}
		on, err := rewriteTokens(s, f.On)
		if err != nil {
			return nil, err
		}
		return &cqn.From{Join: f.Join, Args: args, On: on}, nil
	}

	base, err := baseSourceFor(s, f)
	if err != nil {
		return nil, err
	}

	if len(f.Ref) == 1 {
		return base, nil
	}

	steps, err := fromNavigationSteps(s.model, f.Ref)
	if err != nil {
		return nil, err
	}
	chain := existsChain(s, s.model, steps, base.As)
	if len(chain) == 0 {
		return base, nil
	}
	return &cqn.From{
		Ref: cqn.Ref{{Name: base.As}},
		As:  base.As,
		On:  chain,
	}, nil
}

func baseSourceFor(s *scope, f *cqn.From) (*cqn.From, error) {
	alias := f.As
	if alias == "" {
		alias = f.Ref[len(f.Ref)-1].Name
	}
	if src, ok := s.sources[alias]; ok {
		return &cqn.From{Ref: cqn.Ref{{Name: src.Def.FlatName()}}, As: alias}, nil
	}
	return &cqn.From{Ref: f.Ref, As: alias}, nil
}

// rewriteFrom validates an INSERT/UPSERT target names a known entity;
// these statements carry no projections or navigations to flatten.
func rewriteFrom(m *csn.Model, f *cqn.From) error {
	if f == nil || !f.IsRef() {
		return nil
	}
	_, err := resolveFromRef(m, f.Ref)
	return err
}
