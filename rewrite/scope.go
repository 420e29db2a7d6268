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

// source is one named contributor to a query's FROM: a table alias bound
// to the entity (or structured type, inside an expand) it resolves
// against.
type source struct {
	Alias string
	Def   *csn.Definition
}

// combinedSrc is one (alias, definition) pair contributing a given
// unqualified element name; see spec §3 "Combined elements".
type combinedSrc struct {
	Alias string
	Def   *csn.Definition
}

// scope is the reference resolver's environment: the table-alias map for
// the enclosing query, the combined-elements index used for unqualified
// first-step resolution, and a link to the outer query's scope (for
// correlated subqueries).
type scope struct {
	model *csn.Model

	sources     map[string]*source
	sourceOrder []string

	combined map[string][]combinedSrc

	// self holds output column names added through registerSelfName;
	// resolveRef resolves a first step found here to a bare alias. No
	// code path in this package calls registerSelfName, so the set stays
	// empty and a projection's own column names are not resolvable.
	self map[string]bool

	outer *scope
	jt    *joinTree
	opts  *Options

	// lastElements records the output-element metadata computed for this
	// scope's own projection, so Rewrite can surface it on Result without
	// threading an extra return value through rewriteSelect's recursion.
	lastElements []*OutputElement
}

func newScope(model *csn.Model, outer *scope, opts *Options) *scope {
	return &scope{
		model:    model,
		sources:  map[string]*source{},
		combined: map[string][]combinedSrc{},
		self:     map[string]bool{},
		outer:    outer,
		jt:       newJoinTree(),
		opts:     opts,
	}
}

// addSource registers one FROM contributor and indexes its elements into
// the combined-elements map. Returns ErrDuplicateAlias if the alias
// collides with an already-registered source.
func (s *scope) addSource(alias string, def *csn.Definition) error {
	if _, exists := s.sources[alias]; exists {
		return ErrDuplicateAlias.New(alias)
	}
	s.sources[alias] = &source{Alias: alias, Def: def}
	s.sourceOrder = append(s.sourceOrder, alias)
	for _, el := range s.model.Elements(def) {
		s.combined[el.Name] = append(s.combined[el.Name], combinedSrc{Alias: alias, Def: el})
	}
	return nil
}

// soleSource returns the single registered source when there is exactly
// one, else nil. Used to decide the implicit alias-less qualification for
// single-source queries.
func (s *scope) soleSource() *source {
	if len(s.sourceOrder) != 1 {
		return nil
	}
	return s.sources[s.sourceOrder[0]]
}

// applyLocalization swaps each registered source for its localized view
// (spec §4.1 `localizedViewFor`) when the query requests it, then rebuilds
// the combined-elements index against the swapped definitions.
func (s *scope) applyLocalization(localized bool, locale string) error {
	if !localized {
		return nil
	}
	changed := false
	for _, alias := range s.sourceOrder {
		src := s.sources[alias]
		v, err := s.model.LocalizedViewFor(src.Def, true, locale)
		if err != nil {
			return err
		}
		if v != src.Def {
			src.Def = v
			changed = true
		}
	}
	if !changed {
		return nil
	}
	s.combined = map[string][]combinedSrc{}
	for _, alias := range s.sourceOrder {
		def := s.sources[alias].Def
		for _, el := range s.model.Elements(def) {
			s.combined[el.Name] = append(s.combined[el.Name], combinedSrc{Alias: alias, Def: el})
		}
	}
	return nil
}

// registerSelfName records the name of a non-ref output column so that
// sibling ref columns in the same projection may resolve to it (spec §9
// design notes: cyclic/self-referential references, two-pass scheme).
func (s *scope) registerSelfName(name string) {
	if name != "" {
		s.self[name] = true
	}
}
