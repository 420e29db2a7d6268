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
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/cds-go/cqn4sql/cqn"
	"github.com/cds-go/cqn4sql/csn"
)

// OutputElement describes one column of a query's result shape (spec §3
// "Output elements"): its projected name, the model element it is
// grounded on (nil for literals/expressions with no backing element),
// and a best-effort scalar type tag.
type OutputElement struct {
	Name string
	Def  *csn.Definition
	Type string
}

const (
	typeString  = "cds.String"
	typeBoolean = "cds.Boolean"
	typeInteger = "cds.Integer"
	typeDecimal = "cds.Decimal"
	typeOpaque  = "cds.Opaque"
)

// inferLiteralType classifies a literal value (spec §4.5 "Literal type
// inference"): integers that fit an int64 stay cds.Integer, wider or
// fractional numbers become cds.Decimal (the check runs through
// shopspring/decimal; only the type tag is decided here, the literal
// value itself is carried unchanged), strings and bools map directly,
// everything else is opaque.
func inferLiteralType(v interface{}) string {
	switch n := v.(type) {
	case nil:
		return typeOpaque
	case bool:
		return typeBoolean
	case string:
		return typeString
	case int, int32, int64:
		return typeInteger
	case float32, float64:
		d := decimal.NewFromFloat(toFloat(n))
		if d.Exponent() >= 0 && fitsInt64(d) {
			return typeInteger
		}
		return typeDecimal
	case decimal.Decimal:
		if fitsInt64(n) {
			return typeInteger
		}
		return typeDecimal
	default:
		return typeOpaque
	}
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float32:
		return float64(n)
	case float64:
		return n
	default:
		return 0
	}
}

func fitsInt64(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(0)) &&
		d.GreaterThanOrEqual(decimal.New(math.MinInt64, 0)) &&
		d.LessThanOrEqual(decimal.New(math.MaxInt64, 0))
}

// elementType returns the best-effort scalar type tag for a resolved
// model element.
func elementType(def *csn.Definition) string {
	if def == nil {
		return typeOpaque
	}
	if t, ok := def.Annotations["type"].(string); ok && t != "" {
		return t
	}
	return typeOpaque
}

// expandProjection resolves and flattens a column list against scope s,
// rooted at base when resolving within a nested expand/inline (nil for
// the top-level SELECT). It returns the flattened, SQL-shaped column
// list plus the output-element metadata describing it (spec §4.5).
func expandProjection(s *scope, cols []*cqn.Column, base *csn.Definition, baseAlias string) ([]*cqn.Column, []*OutputElement, error) {
	var out []*cqn.Column
	var elems []*OutputElement
	seen := map[string]bool{}

	emit := func(c *cqn.Column, el *OutputElement) error {
		if el != nil && el.Name != "" {
			if seen[el.Name] {
				return ErrDuplicateElement.New(el.Name)
			}
			seen[el.Name] = true
		}
		out = append(out, c)
		if el != nil {
			elems = append(elems, el)
		}
		return nil
	}

	for _, col := range cols {
		switch {
		case col.Star:
			wc, we, err := expandWildcard(s, base, col.Excluding, seen)
			if err != nil {
				return nil, nil, err
			}
			for i := range wc {
				if err := emit(wc[i], we[i]); err != nil {
					return nil, nil, err
				}
			}

		case len(col.Ref) > 0:
			if err := expandRefColumn(s, col, base, baseAlias, emit); err != nil {
				return nil, nil, err
			}

		case col.Expand != nil || col.Inline != nil:
			return nil, nil, ErrExpectingAlias.New("expand/inline requires a leading ref")

		case col.IsVal:
			name := col.As
			if err := emit(&cqn.Column{Val: col.Val, IsVal: true, As: name, Cast: col.Cast}, &OutputElement{Name: name, Type: inferLiteralType(col.Val)}); err != nil {
				return nil, nil, err
			}

		case col.IsParam:
			name := col.As
			if err := emit(&cqn.Column{Param: col.Param, IsParam: true, As: name, Cast: col.Cast}, &OutputElement{Name: name, Type: typeOpaque}); err != nil {
				return nil, nil, err
			}

		case len(col.Xpr) > 0:
			if col.As == "" {
				return nil, nil, ErrExpectingAlias.New("<expression>")
			}
			if err := walkTokenRefs(col.Xpr, func(ref cqn.Ref) error {
				_, err := resolveRef(s, ref, base, baseAlias, modeNormal)
				return err
			}); err != nil {
				return nil, nil, err
			}
			if err := emit(&cqn.Column{Xpr: col.Xpr, As: col.As, Cast: col.Cast}, &OutputElement{Name: col.As, Type: typeOpaque}); err != nil {
				return nil, nil, err
			}

		case col.Func != "":
			name := col.As
			if name == "" {
				name = col.Func
			}
			for _, a := range col.Args {
				if len(a.Ref) > 0 {
					if _, err := resolveRef(s, a.Ref, base, baseAlias, modeNormal); err != nil {
						return nil, nil, err
					}
				}
			}
			if err := emit(&cqn.Column{Func: col.Func, Args: col.Args, As: name, Cast: col.Cast}, &OutputElement{Name: name, Type: typeOpaque}); err != nil {
				return nil, nil, err
			}

		case col.Select != nil:
			name := col.As
			if name == "" {
				return nil, nil, ErrExpectingAlias.New("<subquery>")
			}
			inner := newScope(s.model, s, s.opts)
			if err := populateFrom(inner, col.Select.From); err != nil {
				return nil, nil, err
			}
			sub, err := rewriteSelect(inner, col.Select, false)
			if err != nil {
				return nil, nil, err
			}
			if err := emit(&cqn.Column{Select: sub, As: name, Cast: col.Cast}, &OutputElement{Name: name, Type: typeOpaque}); err != nil {
				return nil, nil, err
			}

		default:
			return nil, nil, ErrExpectingAlias.New("<column>")
		}
	}

	if len(out) == 0 {
		return nil, nil, ErrEmptyProjection.New()
	}
	return out, elems, nil
}

// expandRefColumn resolves a single ref-shaped column and emits one or
// more flat columns for it, handling the structured/expand/inline cases
// of spec §4.5.
func expandRefColumn(s *scope, col *cqn.Column, base *csn.Definition, baseAlias string, emit func(*cqn.Column, *OutputElement) error) error {
	res, err := resolveRef(s, col.Ref, base, baseAlias, modeNormal)
	if err != nil {
		return err
	}

	if res.FinalDef != nil && res.FinalDef.Kind == csn.KindAssociation {
		if col.Expand == nil && col.Inline == nil {
			return ErrAssocInExpression.New(dottedPath(col.Ref))
		}
	}

	switch {
	case col.Expand != nil:
		sub, el, err := buildExpandSubquery(s, col, res)
		if err != nil {
			return err
		}
		return emit(sub, el)

	case col.Inline != nil:
		return expandInline(s, col, res, emit)

	case res.FinalDef != nil && res.FinalDef.IsStructured():
		return expandStructLeaves(s, col, res, emit)

	default:
		name := col.As
		if name == "" {
			name = res.FlatName
		}
		ref := cqn.Ref{{Name: res.FinalAlias}, {Name: res.FlatName}}
		if res.Pseudo {
			ref = col.Ref
		}
		flat := &cqn.Column{
			Ref:  ref,
			As:   name,
			Cast: col.Cast,
			Key:  col.Key,
			Sort: col.Sort, Nulls: col.Nulls,
			Annotations: col.Annotations,
		}
		return emit(flat, &OutputElement{Name: name, Def: res.FinalDef, Type: elementType(res.FinalDef)})
	}
}

// expandStructLeaves flattens a bare reference to a structured element
// into one flat column per leaf scalar, prefixing output names with the
// struct's own name (spec §4.5 "structured elements implicitly inline").
func expandStructLeaves(s *scope, col *cqn.Column, res *refResolution, emit func(*cqn.Column, *OutputElement) error) error {
	for _, leaf := range res.FinalDef.Elements {
		if leaf.Kind == csn.KindAssociation || leaf.IsStructured() {
			continue
		}
		name := res.FlatName + "_" + leaf.Name
		flat := &cqn.Column{
			Ref: cqn.Ref{{Name: res.FinalAlias}, {Name: name}},
			As:  name,
		}
		if err := emit(flat, &OutputElement{Name: name, Def: leaf, Type: elementType(leaf)}); err != nil {
			return err
		}
	}
	return nil
}

// expandInline flattens an `{ref: [...], inline: [...]}` projection:
// the referenced element's own sub-columns are resolved as siblings in
// the enclosing query, each renamed with the base ref's flat name as
// prefix.
func expandInline(s *scope, col *cqn.Column, res *refResolution, emit func(*cqn.Column, *OutputElement) error) error {
	base := res.FinalDef
	if base == nil {
		return ErrUnknownName.New(dottedPath(col.Ref))
	}
	cols, elems, err := expandProjection(s, col.Inline, base, res.FinalAlias)
	if err != nil {
		return err
	}
	for i, c := range cols {
		c.As = res.FlatName + "_" + elems[i].Name
		if err := emit(c, &OutputElement{Name: c.As, Def: elems[i].Def, Type: elems[i].Type}); err != nil {
			return err
		}
	}
	return nil
}

// expandWildcard expands a `*` projection into one flat column per
// element reachable from scope s (or from base, inside a nested
// expand/inline), a structured element contributing one column per
// scalar leaf, honoring excluding and detecting cross-source
// ambiguity (spec §4.5 "wildcard expansion").
func expandWildcard(s *scope, base *csn.Definition, excluding []string, seen map[string]bool) ([]*cqn.Column, []*OutputElement, error) {
	excl := map[string]bool{}
	for _, e := range excluding {
		excl[e] = true
	}

	var names []string
	perName := map[string][]combinedSrc{}

	if base != nil {
		for _, el := range base.Elements {
			if el.Kind == csn.KindAssociation || el.PersistenceSkip {
				continue
			}
			names = append(names, el.Name)
			perName[el.Name] = []combinedSrc{{Def: el}}
		}
	} else {
		for _, alias := range s.sourceOrder {
			src := s.sources[alias]
			for _, el := range s.model.Elements(src.Def) {
				if el.Kind == csn.KindAssociation || el.PersistenceSkip {
					continue
				}
				if _, ok := perName[el.Name]; !ok {
					names = append(names, el.Name)
				}
				perName[el.Name] = append(perName[el.Name], combinedSrc{Alias: alias, Def: el})
			}
		}
	}
	sort.Strings(names)

	var cols []*cqn.Column
	var elems []*OutputElement
	for _, name := range names {
		if excl[name] || seen[name] {
			continue
		}
		matches := perName[name]
		if len(matches) > 1 {
			return nil, nil, ErrAmbiguousWildcard.New(name, qualifiedAlternatives(matches))
		}
		m := matches[0]
		alias := m.Alias
		if alias == "" {
			if src := s.soleSource(); src != nil {
				alias = src.Alias
			}
		}
		if m.Def.IsStructured() {
			for _, leaf := range m.Def.Elements {
				if leaf.Kind == csn.KindAssociation || leaf.IsStructured() {
					continue
				}
				leafName := name + "_" + leaf.Name
				cols = append(cols, &cqn.Column{Ref: cqn.Ref{{Name: alias}, {Name: leafName}}, As: leafName})
				elems = append(elems, &OutputElement{Name: leafName, Def: leaf, Type: elementType(leaf)})
			}
			continue
		}
		cols = append(cols, &cqn.Column{Ref: cqn.Ref{{Name: alias}, {Name: name}}, As: name})
		elems = append(elems, &OutputElement{Name: name, Def: m.Def, Type: elementType(m.Def)})
	}
	return cols, elems, nil
}
