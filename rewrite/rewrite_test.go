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
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cds-go/cqn4sql/cqn"
	"github.com/cds-go/cqn4sql/csn"
)

// testModel builds a tiny Books/Authors/Genres model: Books.author is a
// managed to-one association, Books.genre is managed to-one, Authors has
// a structured `address` element, to exercise navigation, structural
// comparison and join materialization without a full CSN loader.
func testModel() *csn.Model {
	addrStreet := &csn.Definition{Kind: csn.KindElement, Name: "street"}
	addrCity := &csn.Definition{Kind: csn.KindElement, Name: "city"}
	address := &csn.Definition{Kind: csn.KindStruct, Name: "address", Elements: []*csn.Definition{addrStreet, addrCity}}
	addrStreet.Parent, addrCity.Parent = address, address

	authorID := &csn.Definition{Kind: csn.KindElement, Name: "ID"}
	authorName := &csn.Definition{Kind: csn.KindElement, Name: "name"}
	authors := &csn.Definition{
		Kind: csn.KindEntity, Name: "Authors",
		Elements: []*csn.Definition{authorID, authorName, address},
		Keys:     []*csn.Definition{authorID},
	}
	authorID.Parent, authorName.Parent, address.Parent = authors, authors, authors

	genreID := &csn.Definition{Kind: csn.KindElement, Name: "ID"}
	genres := &csn.Definition{Kind: csn.KindEntity, Name: "Genres", Elements: []*csn.Definition{genreID}, Keys: []*csn.Definition{genreID}}
	genreID.Parent = genres

	bookID := &csn.Definition{Kind: csn.KindElement, Name: "ID"}
	bookTitle := &csn.Definition{Kind: csn.KindElement, Name: "title"}
	bookAuthorFK := &csn.Definition{Kind: csn.KindElement, Name: "author_ID"}
	bookGenreFK := &csn.Definition{Kind: csn.KindElement, Name: "genre_ID"}
	authorAssoc := &csn.Definition{
		Kind: csn.KindAssociation, Name: "author",
		Assoc: &csn.Association{Target: "Authors", ForeignKeys: []csn.ForeignKey{{Ref: "ID"}}},
	}
	genreAssoc := &csn.Definition{
		Kind: csn.KindAssociation, Name: "genre",
		Assoc: &csn.Association{Target: "Genres", ForeignKeys: []csn.ForeignKey{{Ref: "ID"}}},
	}
	books := &csn.Definition{
		Kind: csn.KindEntity, Name: "Books",
		Elements: []*csn.Definition{bookID, bookTitle, bookAuthorFK, bookGenreFK, authorAssoc, genreAssoc},
		Keys:     []*csn.Definition{bookID},
	}
	for _, e := range books.Elements {
		e.Parent = books
	}

	return csn.NewModel(map[string]*csn.Definition{
		"Books":   books,
		"Authors": authors,
		"Genres":  genres,
	})
}

func mustRewrite(t *testing.T, q *cqn.Query) *Result {
	t.Helper()
	res, err := Rewrite(context.Background(), q, testModel(), nil)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func TestRewriteFlattensSimpleProjection(t *testing.T) {
	q := &cqn.Query{Kind: cqn.SELECT, Select: &cqn.Select{
		From:    &cqn.From{Ref: cqn.Ref{{Name: "Books"}}, As: "Books"},
		Columns: []*cqn.Column{{Ref: cqn.Ref{{Name: "title"}}}},
	}}
	res := mustRewrite(t, q)
	require.Len(t, res.Query.Select.Columns, 1)
	assert.Equal(t, "Books", res.Query.Select.Columns[0].Ref[0].Name)
	assert.Equal(t, "title", res.Query.Select.Columns[0].Ref[1].Name)
}

func TestRewriteForeignKeyOnlyDoesNotJoin(t *testing.T) {
	q := &cqn.Query{Kind: cqn.SELECT, Select: &cqn.Select{
		From:    &cqn.From{Ref: cqn.Ref{{Name: "Books"}}, As: "Books"},
		Columns: []*cqn.Column{{Ref: cqn.Ref{{Name: "author"}, {Name: "ID"}}, As: "authorID"}},
	}}
	res := mustRewrite(t, q)
	assert.True(t, res.Query.Select.From.IsRef(), "a foreign-key-only path must not force a join")
}

func TestRewriteNavigationMaterializesJoin(t *testing.T) {
	q := &cqn.Query{Kind: cqn.SELECT, Select: &cqn.Select{
		From: &cqn.From{Ref: cqn.Ref{{Name: "Books"}}, As: "Books"},
		Columns: []*cqn.Column{
			{Ref: cqn.Ref{{Name: "title"}}},
			{Ref: cqn.Ref{{Name: "author"}, {Name: "name"}}, As: "authorName"},
		},
	}}
	res := mustRewrite(t, q)
	assert.Equal(t, "left", res.Query.Select.From.Join)
	require.Len(t, res.JoinTree, 1)
	assert.Equal(t, "Books", res.JoinTree[0].Alias)
	require.Len(t, res.JoinTree[0].Children(), 1)
	assert.Equal(t, "author", res.JoinTree[0].Children()[0].Alias)
}

func TestRewriteSharesJoinNodeAcrossColumns(t *testing.T) {
	q := &cqn.Query{Kind: cqn.SELECT, Select: &cqn.Select{
		From: &cqn.From{Ref: cqn.Ref{{Name: "Books"}}, As: "Books"},
		Columns: []*cqn.Column{
			{Ref: cqn.Ref{{Name: "author"}, {Name: "name"}}, As: "a"},
		},
		OrderBy: []*cqn.Column{
			{Ref: cqn.Ref{{Name: "author"}, {Name: "name"}}},
		},
	}}
	res := mustRewrite(t, q)
	require.Len(t, res.JoinTree[0].Children(), 1, "both references to author.name must share one join node")
}

func TestRewriteRejectsUnknownColumn(t *testing.T) {
	q := &cqn.Query{Kind: cqn.SELECT, Select: &cqn.Select{
		From:    &cqn.From{Ref: cqn.Ref{{Name: "Books"}}, As: "Books"},
		Columns: []*cqn.Column{{Ref: cqn.Ref{{Name: "nope"}}}},
	}}
	_, err := Rewrite(context.Background(), q, testModel(), nil)
	require.Error(t, err)
	assert.True(t, ErrUnknownName.Is(err))
}

func TestRewriteRejectsAssociationInExpression(t *testing.T) {
	q := &cqn.Query{Kind: cqn.SELECT, Select: &cqn.Select{
		From:    &cqn.From{Ref: cqn.Ref{{Name: "Books"}}, As: "Books"},
		Columns: []*cqn.Column{{Ref: cqn.Ref{{Name: "author"}}}},
	}}
	_, err := Rewrite(context.Background(), q, testModel(), nil)
	require.Error(t, err)
	assert.True(t, ErrAssocInExpression.Is(err))
}

func TestRewriteStructuredRefFlattens(t *testing.T) {
	q := &cqn.Query{Kind: cqn.SELECT, Select: &cqn.Select{
		From:    &cqn.From{Ref: cqn.Ref{{Name: "Authors"}}, As: "Authors"},
		Columns: []*cqn.Column{{Ref: cqn.Ref{{Name: "address"}}}},
	}}
	res := mustRewrite(t, q)
	names := make([]string, len(res.Query.Select.Columns))
	for i, c := range res.Query.Select.Columns {
		names[i] = c.As
	}
	assert.ElementsMatch(t, []string{"address_street", "address_city"}, names)
}

func TestRewriteStructuralComparisonExpands(t *testing.T) {
	q := &cqn.Query{Kind: cqn.SELECT, Select: &cqn.Select{
		From:    &cqn.From{Ref: cqn.Ref{{Name: "Authors"}}, As: "Authors"},
		Columns: []*cqn.Column{{Ref: cqn.Ref{{Name: "name"}}}},
		Where: []cqn.Token{
			{Kind: cqn.TokRef, Ref: cqn.Ref{{Name: "address"}}},
			{Kind: cqn.TokKeyword, Keyword: "="},
			{Kind: cqn.TokLiteral, Val: nil},
		},
	}}
	res := mustRewrite(t, q)
	require.Len(t, res.Query.Select.Where, 1)
	assert.Equal(t, cqn.TokXpr, res.Query.Select.Where[0].Kind)
	assert.Len(t, res.Query.Select.Where[0].Xpr, 5) // street is null and city is null
}

func TestRewriteRejectsUnion(t *testing.T) {
	q := &cqn.Query{Kind: cqn.SET, Set: &cqn.SetOp{Op: "union"}}
	_, err := Rewrite(context.Background(), q, testModel(), nil)
	require.Error(t, err)
	assert.True(t, ErrUnionNotSupported.Is(err))
}

func TestRewriteDoesNotMutateInput(t *testing.T) {
	q := &cqn.Query{Kind: cqn.SELECT, Select: &cqn.Select{
		From:    &cqn.From{Ref: cqn.Ref{{Name: "Books"}}, As: "Books"},
		Columns: []*cqn.Column{{Ref: cqn.Ref{{Name: "title"}}}},
	}}
	_, err := Rewrite(context.Background(), q, testModel(), nil)
	require.NoError(t, err)
	assert.Equal(t, "title", q.Select.Columns[0].Ref[0].Name, "input ref must remain unflattened")
}

func TestRewriteSwapsLocalizedView(t *testing.T) {
	m := testModel()
	books, err := m.Lookup("Books")
	require.NoError(t, err)
	books.Localized = true
	localizedBooks := &csn.Definition{Kind: csn.KindEntity, Name: "localized.de.Books", Elements: books.Elements, Keys: books.Keys}
	m2 := csn.NewModel(map[string]*csn.Definition{
		"Books":              books,
		"Authors":            mustLookup(t, m, "Authors"),
		"Genres":             mustLookup(t, m, "Genres"),
		"localized.de.Books": localizedBooks,
	})

	q := &cqn.Query{Kind: cqn.SELECT, Select: &cqn.Select{
		From:      &cqn.From{Ref: cqn.Ref{{Name: "Books"}}, As: "Books"},
		Columns:   []*cqn.Column{{Ref: cqn.Ref{{Name: "title"}}}},
		Localized: true,
	}}
	res, err := Rewrite(context.Background(), q, m2, &Options{Locale: "de-DE"})
	require.NoError(t, err)
	assert.Equal(t, "localized.de.Books", res.Query.Select.From.Ref[0].Name)
}

func mustLookup(t *testing.T, m *csn.Model, name string) *csn.Definition {
	t.Helper()
	d, err := m.Lookup(name)
	require.NoError(t, err)
	return d
}

func TestRewriteIsDeterministic(t *testing.T) {
	build := func() *cqn.Query {
		return &cqn.Query{Kind: cqn.SELECT, Select: &cqn.Select{
			From: &cqn.From{Ref: cqn.Ref{{Name: "Books"}}, As: "Books"},
			Columns: []*cqn.Column{
				{Ref: cqn.Ref{{Name: "title"}}},
				{Ref: cqn.Ref{{Name: "author"}, {Name: "name"}}, As: "a"},
			},
		}}
	}
	r1 := mustRewrite(t, build())
	r2 := mustRewrite(t, build())
	assert.Equal(t, r1.JoinTree[0].Children()[0].Alias, r2.JoinTree[0].Children()[0].Alias)
}
