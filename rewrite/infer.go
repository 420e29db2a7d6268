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

// populateFrom registers every source contributed by a query's `from`
// into scope s, recursing through explicit joins and derived tables
// (spec §4.2 "sources").
func populateFrom(s *scope, f *cqn.From) error {
	if f == nil {
		return nil
	}
	if f.Select != nil {
		alias := f.As
		if alias == "" {
			alias = "__derived"
		}
		return s.addSource(alias, &csn.Definition{Kind: csn.KindEntity, Name: alias})
	}
	if !f.IsRef() {
		for _, arg := range f.Args {
			if err := populateFrom(s, arg); err != nil {
				return err
			}
		}
		return nil
	}

	target, err := resolveFromRef(s.model, f.Ref)
	if err != nil {
		return err
	}
	alias := f.As
	if alias == "" {
		alias = f.Ref[len(f.Ref)-1].Name
	}
	return s.addSource(alias, target)
}

// resolveFromRef walks a `from.ref` path (an entity name followed by
// zero or more association steps) to the entity it ultimately denotes.
func resolveFromRef(model *csn.Model, ref cqn.Ref) (*csn.Definition, error) {
	cur, err := model.Lookup(ref[0].Name)
	if err != nil {
		return nil, err
	}
	for i, step := range ref[1:] {
		el := cur.Element(step.Name)
		if el == nil {
			return nil, ErrUnknownName.New(dottedPath(ref[:i+2]))
		}
		cur = targetOrSelf(model, el)
	}
	return cur, nil
}

// fromNavigationSteps mirrors resolveFromRef but returns the full
// stepLink chain so existsChain can build the narrowing `exists` chain
// for a multi-step `from.ref` (spec §4.6.1).
func fromNavigationSteps(model *csn.Model, ref cqn.Ref) ([]stepLink, error) {
	first, err := model.Lookup(ref[0].Name)
	if err != nil {
		return nil, err
	}
	steps := []stepLink{{Def: first, Target: first}}
	cur := first
	for i, step := range ref[1:] {
		el := cur.Element(step.Name)
		if el == nil {
			return nil, ErrUnknownName.New(dottedPath(ref[:i+2]))
		}
		tgt := targetOrSelf(model, el)
		steps = append(steps, stepLink{Def: el, Target: tgt})
		cur = tgt
	}
	return steps, nil
}

// primaryTarget returns the entity a query's output is considered rooted
// on: the sole source when there is exactly one, else the first source
// registered (spec §3 "Target").
func primaryTarget(s *scope) *csn.Definition {
	if src := s.soleSource(); src != nil {
		return src.Def
	}
	if len(s.sourceOrder) > 0 {
		return s.sources[s.sourceOrder[0]].Def
	}
	return nil
}

// sourceDefs snapshots a scope's alias-to-entity map for Result.Sources.
func sourceDefs(s *scope) map[string]*csn.Definition {
	out := make(map[string]*csn.Definition, len(s.sources))
	for alias, src := range s.sources {
		out[alias] = src.Def
	}
	return out
}
