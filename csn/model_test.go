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

package csn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authorEntity() *Definition {
	id := &Definition{Kind: KindElement, Name: "ID"}
	name := &Definition{Kind: KindElement, Name: "name"}
	author := &Definition{Kind: KindEntity, Name: "Authors", Elements: []*Definition{id, name}, Keys: []*Definition{id}}
	id.Parent, name.Parent = author, author
	return author
}

func bookEntity(author *Definition) *Definition {
	id := &Definition{Kind: KindElement, Name: "ID"}
	title := &Definition{Kind: KindElement, Name: "title"}
	authorID := &Definition{Kind: KindElement, Name: "author_ID"}
	assoc := &Definition{
		Kind: KindAssociation, Name: "author",
		Assoc: &Association{Target: "Authors", ForeignKeys: []ForeignKey{{Ref: "ID"}}},
	}
	book := &Definition{Kind: KindEntity, Name: "Books", Elements: []*Definition{id, title, authorID, assoc}, Keys: []*Definition{id}}
	for _, e := range book.Elements {
		e.Parent = book
	}
	return book
}

func testModel() *Model {
	author := authorEntity()
	book := bookEntity(author)
	return NewModel(map[string]*Definition{
		"Authors": author,
		"Books":   book,
	})
}

func TestModelLookup(t *testing.T) {
	m := testModel()

	books, err := m.Lookup("Books")
	require.NoError(t, err)
	assert.Equal(t, "Books", books.Name)

	_, err = m.Lookup("Missing")
	assert.True(t, ErrUnknownName.Is(err))
}

func TestDefinitionFlatName(t *testing.T) {
	books := testModel()
	b, err := books.Lookup("Books")
	require.NoError(t, err)

	assert.Equal(t, "Books", b.FlatName())
	assert.Equal(t, "title", b.Element("title").FlatName())
}

func TestAssociationTargetAndManaged(t *testing.T) {
	m := testModel()
	books, err := m.Lookup("Books")
	require.NoError(t, err)

	author := books.Element("author")
	require.NotNil(t, author)
	assert.True(t, m.IsManaged(author))

	tgt, err := m.Target(author)
	require.NoError(t, err)
	assert.Equal(t, "Authors", tgt.Name)
}

func TestLocalizedViewForFallsBackWithoutSibling(t *testing.T) {
	m := testModel()
	books, _ := m.Lookup("Books")
	books.Localized = true

	got, err := m.LocalizedViewFor(books, true, "")
	require.NoError(t, err)
	assert.Same(t, books, got)
}

func TestLocalizedViewForPrefersSibling(t *testing.T) {
	author := authorEntity()
	book := bookEntity(author)
	book.Localized = true
	localized := &Definition{Kind: KindEntity, Name: "localized.Books"}

	m := NewModel(map[string]*Definition{
		"Authors":         author,
		"Books":           book,
		"localized.Books": localized,
	})

	got, err := m.LocalizedViewFor(book, true, "")
	require.NoError(t, err)
	assert.Same(t, localized, got)
}

func TestLocalizedViewForMatchesBestLocaleTag(t *testing.T) {
	author := authorEntity()
	book := bookEntity(author)
	book.Localized = true
	de := &Definition{Kind: KindEntity, Name: "localized.de.Books"}
	fr := &Definition{Kind: KindEntity, Name: "localized.fr.Books"}

	m := NewModel(map[string]*Definition{
		"Authors":            author,
		"Books":              book,
		"localized.de.Books": de,
		"localized.fr.Books": fr,
	})

	got, err := m.LocalizedViewFor(book, true, "de-DE")
	require.NoError(t, err)
	assert.Same(t, de, got)
}

func TestLocalizedViewForRejectsMalformedLocale(t *testing.T) {
	m := testModel()
	books, _ := m.Lookup("Books")
	books.Localized = true

	_, err := m.LocalizedViewFor(books, true, "!!!not-a-tag!!!")
	assert.Error(t, err)
}
