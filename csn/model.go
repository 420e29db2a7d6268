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

// Package csn is a read-only view over an entity-relationship schema model:
// named definitions (entities, structured types), their elements, keys and
// association metadata. It performs no I/O; callers are responsible for
// constructing the Model (e.g. by unmarshalling a CSN document).
package csn

import (
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	goerrors "gopkg.in/src-d/go-errors.v1"
	"golang.org/x/text/language"

	"github.com/cds-go/cqn4sql/cqn"
)

// Kind classifies a Definition.
type Kind int

const (
	KindEntity Kind = iota
	KindElement
	KindAssociation
	KindStruct
)

func (k Kind) String() string {
	switch k {
	case KindEntity:
		return "entity"
	case KindElement:
		return "element"
	case KindAssociation:
		return "association"
	case KindStruct:
		return "structured type"
	default:
		return "unknown"
	}
}

// ForeignKey is one managed foreign key of an association, with an optional
// rename ("as") so the flattened column can differ from the target key name.
type ForeignKey struct {
	Ref string
	As  string
}

// Association carries the metadata that distinguishes an association
// element from a plain scalar or structured one.
type Association struct {
	// Target is the qualified name of the target entity.
	Target string
	// ToMany is true for a to-many cardinality, false for to-one.
	ToMany bool
	// ForeignKeys is non-nil only for a managed association.
	ForeignKeys []ForeignKey
	// OnCondition is non-nil only for an unmanaged association: the
	// recorded on-condition as a token stream, possibly containing a
	// $self reference to be resolved at materialization time (see
	// cqn.Token.IsRefToSelf).
	OnCondition []cqn.Token
}

// Managed reports whether the association is declared via foreign keys
// (true) or an on-condition (false).
func (a *Association) Managed() bool {
	return a != nil && a.ForeignKeys != nil
}

// Definition is one named entry of the model: an entity, a structured
// type, a scalar element, or an association element. Structured elements
// recursively contain child Elements; Parent lets a leaf compute its flat,
// underscore-joined name.
type Definition struct {
	Kind   Kind
	Name   string
	Parent *Definition

	// Elements holds the ordered child elements of an entity or a
	// structured type/element. Empty for scalar elements and for
	// associations (whose shape lives in Assoc).
	Elements []*Definition

	// Keys holds the key elements of an entity, in declaration order.
	Keys []*Definition

	// Assoc is non-nil exactly when Kind == KindAssociation.
	Assoc *Association

	// PersistenceSkip marks a definition that never materializes a
	// column/table (e.g. a calculated-on-read element or a CAP
	// @cds.persistence.skip entity).
	PersistenceSkip bool

	// Localized marks an element/entity that participates in text
	// localization; see Model.LocalizedViewFor.
	Localized bool

	// Annotations carries arbitrary @-annotations from the source model,
	// keyed by annotation name without the leading '@'.
	Annotations map[string]interface{}

	elementIndex map[string]*Definition
	indexOnce    sync.Once
}

// FlatName returns the underscore-joined path from the first non-entity
// ancestor to this element, e.g. for `address.city` it returns
// "address_city". Entities and top-level elements return their own Name.
func (d *Definition) FlatName() string {
	if d.Parent == nil || d.Parent.Kind == KindEntity {
		return d.Name
	}
	return d.Parent.FlatName() + "_" + d.Name
}

// Element returns the named child element, or nil if absent.
func (d *Definition) Element(name string) *Definition {
	if d == nil {
		return nil
	}
	d.indexOnce.Do(func() {
		d.elementIndex = make(map[string]*Definition, len(d.Elements))
		for _, e := range d.Elements {
			d.elementIndex[e.Name] = e
		}
	})
	return d.elementIndex[name]
}

// IsStructured reports whether the definition has child elements that are
// not an association's foreign key shape, i.e. a struct or an entity.
func (d *Definition) IsStructured() bool {
	return d != nil && d.Kind != KindAssociation && len(d.Elements) > 0
}

var (
	// ErrUnknownName is raised when a definition cannot be found.
	ErrUnknownName = goerrors.NewKind("unknown definition: %s")
)

// Model is a read-only mapping from qualified name to Definition.
type Model struct {
	defs  map[string]*Definition
	cache *lru.Cache
}

// lookupCacheSize bounds the memoized-lookup LRU; it exists purely to
// avoid repeated map probing for the same qualified name within and across
// rewrites of a read-only model, not to cache rewrite results (Non-goal).
const lookupCacheSize = 256

// NewModel builds a Model over the given definitions, keyed by qualified
// name. The caller owns construction (e.g. from a decoded CSN document);
// Model performs no I/O.
func NewModel(defs map[string]*Definition) *Model {
	c, _ := lru.New(lookupCacheSize)
	return &Model{defs: defs, cache: c}
}

// Lookup resolves a qualified name to its Definition.
func (m *Model) Lookup(name string) (*Definition, error) {
	if v, ok := m.cache.Get(name); ok {
		return v.(*Definition), nil
	}
	d, ok := m.defs[name]
	if !ok {
		return nil, ErrUnknownName.New(name)
	}
	m.cache.Add(name, d)
	return d, nil
}

// Elements returns the ordered child elements of def.
func (m *Model) Elements(def *Definition) []*Definition {
	if def == nil {
		return nil
	}
	return def.Elements
}

// Keys returns the key elements of def, in declaration order.
func (m *Model) Keys(def *Definition) []*Definition {
	if def == nil {
		return nil
	}
	return def.Keys
}

// Target resolves the entity an association points to.
func (m *Model) Target(assoc *Definition) (*Definition, error) {
	if assoc == nil || assoc.Assoc == nil {
		return nil, ErrUnknownName.New("<nil association>")
	}
	return m.Lookup(assoc.Assoc.Target)
}

// IsManaged reports whether assoc is declared via foreign keys.
func (m *Model) IsManaged(assoc *Definition) bool {
	return assoc != nil && assoc.Assoc != nil && assoc.Assoc.Managed()
}

// IsToOne reports whether assoc has to-one cardinality.
func (m *Model) IsToOne(assoc *Definition) bool {
	return assoc != nil && assoc.Assoc != nil && !assoc.Assoc.ToMany
}

// PersistenceSkip reports whether def never materializes persistently.
func (m *Model) PersistenceSkip(def *Definition) bool {
	return def != nil && def.PersistenceSkip
}

// LocalizedViewFor returns the localized variant of def when localized is
// requested and def permits it, else def itself. A localized variant may be
// modeled either as a single unqualified sibling named "localized."+def.Name,
// or as one sibling per BCP-47 locale tag, named "localized.<tag>."+def.Name,
// in which case locale (a BCP-47 tag, e.g. "de-DE"; the empty string means no
// preference) picks the best match via golang.org/x/text/language. A
// malformed locale tag is reported rather than silently ignored; any other
// case (nothing localized, no matching sibling) falls back to def itself,
// never an error.
func (m *Model) LocalizedViewFor(def *Definition, localized bool, locale string) (*Definition, error) {
	if def == nil || !localized || !def.Localized {
		return def, nil
	}

	prefix := "localized." + def.Name
	var keys []string
	for key := range m.defs {
		if key == prefix {
			continue
		}
		if strings.HasPrefix(key, "localized.") && strings.HasSuffix(key, "."+def.Name) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	var tags []language.Tag
	var views []*Definition
	for _, key := range keys {
		tagStr := strings.TrimSuffix(strings.TrimPrefix(key, "localized."), "."+def.Name)
		tag, err := language.Parse(tagStr)
		if err != nil {
			continue // not a locale-tagged sibling, just an unrelated name collision
		}
		tags = append(tags, tag)
		views = append(views, m.defs[key])
	}

	if locale != "" {
		want, err := language.Parse(locale)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid locale tag %q", locale)
		}
		if len(tags) > 0 {
			_, idx, conf := language.NewMatcher(tags).Match(want)
			if conf != language.No {
				return views[idx], nil
			}
		}
	}

	if v, ok := m.defs[prefix]; ok {
		return v, nil
	}
	return def, nil
}
