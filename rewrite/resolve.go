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
	"strings"

	"github.com/cds-go/cqn4sql/cqn"
	"github.com/cds-go/cqn4sql/csn"
)

// refMode controls which navigations an inline filter is allowed to make
// while resolving a reference (spec §4.3 step 4).
type refMode int

const (
	modeNormal refMode = iota
	modeInfixFilter
	modeExists
	modeExpand
)

// stepLink is the resolution metadata attached to one step of a path
// (spec §3 "$refLink"), kept as a plain return value rather than AST
// metadata (see design notes on ownership discipline). Alias is the
// table alias the step's value is read from; LocalName is that value's
// column name relative to Alias's own table (it resets to a single
// segment whenever the step crosses onto a different table, and
// accumulates with an underscore for plain struct navigation that stays
// on the same table).
type stepLink struct {
	Def       *csn.Definition
	Target    *csn.Definition
	Alias     string
	LocalName string
	Node      *JoinNode
}

// refResolution is the resolver's full answer for one reference.
type refResolution struct {
	Steps        []stepLink
	FlatName     string
	JoinRelevant bool
	Pseudo       bool
	Outer        bool // resolved against the enclosing query's scope (correlation)
	FinalDef     *csn.Definition
	FinalAlias   string
}

// dottedPath renders a ref for error messages.
func dottedPath(ref cqn.Ref) string {
	parts := make([]string, len(ref))
	for i, s := range ref {
		parts[i] = s.Name
	}
	return strings.Join(parts, ".")
}

// resolveRef resolves ref against s per spec §4.3. base is the enclosing
// step's definition when resolving a sibling of an `inline` projection
// (nil otherwise); baseAlias is the table alias that base's own value
// lives on, needed since inline flattening stays on the same row. mode
// governs which navigations are legal.
func resolveRef(s *scope, ref cqn.Ref, base *csn.Definition, baseAlias string, mode refMode) (*refResolution, error) {
	if len(ref) == 0 {
		return nil, ErrUnknownName.New("<empty path>")
	}

	res := &refResolution{}
	var cur stepLink

	// Step 0: priority order — pseudo, base link, source alias, self,
	// outer alias, combined elements.
	name0 := ref[0].Name
	switch {
	case isPseudoRoot(name0):
		def, _ := csn.PseudoRoot(name0)
		cur = stepLink{Def: def, Target: def, Alias: name0, LocalName: name0}
		res.Pseudo = true

	case base != nil && base.Element(name0) != nil:
		el := base.Element(name0)
		cur = stepLink{Def: el, Target: targetOrSelf(s.model, el), Alias: baseAlias, LocalName: name0}

	case s.sources[name0] != nil:
		src := s.sources[name0]
		if len(ref) == 1 {
			// A bare source alias used as a column, e.g. `ref:["Books"]`
			// referring to the whole row; callers treat this specially.
			cur = stepLink{Def: src.Def, Target: src.Def, Alias: src.Alias}
			res.Steps = []stepLink{cur}
			res.FinalDef = src.Def
			res.FinalAlias = src.Alias
			res.FlatName = src.Alias
			return res, nil
		}
		cur = stepLink{Def: src.Def, Target: src.Def, Alias: src.Alias}

	case s.self[name0]:
		// Self-referencing projection alias (design note: two-pass
		// scheme for cyclic references). Treated as join-irrelevant and
		// resolved with no further element type information.
		res.Steps = []stepLink{{Alias: name0}}
		res.FlatName = name0
		res.FinalAlias = name0
		return res, nil

	case s.outer != nil && s.outer.sources[name0] != nil:
		src := s.outer.sources[name0]
		cur = stepLink{Def: src.Def, Target: src.Def, Alias: src.Alias}
		res.Outer = true

	default:
		matches := s.combined[name0]
		if len(matches) == 0 {
			return nil, ErrUnknownName.New(name0)
		}
		if len(matches) > 1 {
			return nil, ErrAmbiguousName.New(name0, qualifiedAlternatives(matches))
		}
		m := matches[0]
		cur = stepLink{Def: m.Def, Target: targetOrSelf(s.model, m.Def), Alias: m.Alias, LocalName: name0}
	}

	res.Steps = append(res.Steps, cur)

	if err := checkStepFilter(s, ref, 0, cur.Def, mode, res); err != nil {
		return nil, err
	}

	// Steps 1..n: resolve within the previous step's target elements,
	// crossing a join whenever the previous step was an association and
	// this step is not one of its own foreign keys.
	for i := 1; i < len(ref); i++ {
		name := ref[i].Name
		if cur.Target == nil {
			return nil, ErrUnknownName.New(name)
		}
		el := cur.Target.Element(name)
		if el == nil {
			return nil, ErrUnknownName.New(dottedPath(ref[:i+1]))
		}
		next := stepLink{Def: el, Target: targetOrSelf(s.model, el)}

		prevWasAssoc := cur.Def != nil && cur.Def.Kind == csn.KindAssociation && !res.Pseudo
		switch {
		case !prevWasAssoc:
			next.Alias = cur.Alias
			next.LocalName = joinLocalName(cur.LocalName, name)

		case s.model.IsManaged(cur.Def) && isForeignKeyLeaf(cur.Def, name) && i == len(ref)-1 && len(ref[i-1].Where) == 0:
			// Foreign-key shortcut: the value is a plain column on the
			// table that already holds the association itself.
			next.Alias = cur.Alias
			next.Node = cur.Node
			next.LocalName = cur.Def.Name + "_" + name

		default:
			node := s.jt.mergeStep(cur.nodeOrRoot(s), cur.Def.Name, ref[i-1].Where, cur.Def, cur.Target)
			next.Alias = node.Alias
			next.Node = node
			next.LocalName = name
			res.JoinRelevant = true
		}

		res.Steps = append(res.Steps, next)
		cur = next

		if err := checkStepFilter(s, ref, i, el, mode, res); err != nil {
			return nil, err
		}
	}

	res.FinalDef = cur.Def
	res.FlatName = cur.LocalName
	res.FinalAlias = cur.Alias
	return res, nil
}

// joinLocalName extends a same-table local path with one more segment,
// used for plain structured-element navigation (no association crossed).
func joinLocalName(base, seg string) string {
	if base == "" {
		return seg
	}
	return base + "_" + seg
}

// checkStepFilter validates an inline filter attached to ref[idx] (spec
// §4.3 step 4): it is only legal on an entity/association step, it must
// be followed by a further navigation unless the surrounding context is
// itself `exists`/`expand`, and its own token stream may only navigate
// managed, foreign-key-only associations unless that context says
// otherwise.
func checkStepFilter(s *scope, ref cqn.Ref, idx int, el *csn.Definition, mode refMode, res *refResolution) error {
	where := ref[idx].Where
	if len(where) == 0 {
		return nil
	}
	if el == nil || (el.Kind != csn.KindEntity && el.Kind != csn.KindAssociation) {
		return ErrFilterOnNonAssoc.New(dottedPath(ref[:idx+1]))
	}
	filterMode := modeInfixFilter
	if mode == modeExists || mode == modeExpand {
		filterMode = mode
	}
	if err := validateInfixFilter(s, el, where, filterMode); err != nil {
		return err
	}
	if filterMode != modeExpand {
		res.JoinRelevant = true
	}
	if idx == len(ref)-1 && mode != modeExists && mode != modeExpand {
		return ErrFilterWithoutNavigation.New(dottedPath(ref[:idx+1]))
	}
	return nil
}

// targetOrSelf returns the entity an association points to, or def
// itself when def is not an association (a scalar or structured element
// resolves "into" itself for the purpose of the next step's base).
func targetOrSelf(m *csn.Model, def *csn.Definition) *csn.Definition {
	if def == nil {
		return nil
	}
	if def.Kind == csn.KindAssociation {
		tgt, err := m.Target(def)
		if err != nil {
			return nil
		}
		return tgt
	}
	return def
}

func isPseudoRoot(name string) bool {
	_, ok := csn.PseudoRoot(name)
	return ok
}

// nodeOrRoot returns the join-tree node a step should be merged under:
// the running node if one exists for the path so far, else the root for
// this reference's base source alias.
func (l stepLink) nodeOrRoot(s *scope) *JoinNode {
	if l.Node != nil {
		return l.Node
	}
	if l.Alias != "" {
		if src, ok := s.sources[l.Alias]; ok {
			return s.jt.ensureRoot(src.Alias, src.Def)
		}
	}
	return s.jt.ensureRoot(l.Alias, l.Target)
}

func qualifiedAlternatives(matches []combinedSrc) string {
	parts := make([]string, len(matches))
	for i, m := range matches {
		parts[i] = m.Alias + "." + m.Def.Name
	}
	return strings.Join(parts, ", ")
}

// validateInfixFilter enforces spec §4.3 step 4's restriction: within a
// non-exists/expand filter, only managed, foreign-key-only navigation is
// permitted past the filtered step.
func validateInfixFilter(s *scope, base *csn.Definition, where []cqn.Token, mode refMode) error {
	if mode == modeExists || mode == modeExpand {
		return nil
	}
	return walkTokenRefs(where, func(ref cqn.Ref) error {
		cur := base
		for i, step := range ref {
			el := cur.Element(step.Name)
			if el == nil {
				return nil // unknown names inside filters are reported by the later full resolve pass
			}
			if el.Kind == csn.KindAssociation {
				if !s.model.IsManaged(el) {
					return ErrUnmanagedInInfixFilter.New(el.Name)
				}
				if i != len(ref)-1 {
					// Navigating past this association's own foreign
					// keys (there's a further step) is disallowed.
					if !isForeignKeyLeaf(el, ref[i+1].Name) {
						return ErrNonFkInInfixFilter.New(el.Name)
					}
				}
			}
			cur = targetOrSelf(s.model, el)
		}
		return nil
	})
}

func isForeignKeyLeaf(assoc *csn.Definition, name string) bool {
	if assoc.Assoc == nil {
		return false
	}
	for _, fk := range assoc.Assoc.ForeignKeys {
		leaf := fk.Ref
		if fk.As != "" {
			leaf = fk.As
		}
		if leaf == name {
			return true
		}
	}
	return false
}

// walkTokenRefs invokes fn for every Ref found in a token stream,
// including inside function args, xpr, lists and filter steps.
// Subqueries are not descended into; they form their own scope.
func walkTokenRefs(toks []cqn.Token, fn func(cqn.Ref) error) error {
	for _, t := range toks {
		switch t.Kind {
		case cqn.TokRef:
			if err := fn(t.Ref); err != nil {
				return err
			}
			for _, step := range t.Ref {
				if len(step.Where) > 0 {
					if err := walkTokenRefs(step.Where, fn); err != nil {
						return err
					}
				}
			}
		case cqn.TokFunc:
			if err := walkTokenRefs(t.FuncArgs, fn); err != nil {
				return err
			}
		case cqn.TokXpr:
			if err := walkTokenRefs(t.Xpr, fn); err != nil {
				return err
			}
		case cqn.TokList:
			if err := walkTokenRefs(t.List, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

