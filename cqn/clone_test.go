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

package cqn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSelectQuery() *Query {
	return &Query{
		Kind: SELECT,
		Select: &Select{
			From: &From{Ref: Ref{{Name: "Books"}}, As: "Books"},
			Columns: []*Column{
				{Ref: Ref{{Name: "title"}}},
				{Ref: Ref{{Name: "author"}, {Name: "name"}}, As: "authorName"},
			},
			Where: []Token{
				{Kind: TokRef, Ref: Ref{{Name: "stock"}}},
				{Kind: TokKeyword, Keyword: ">"},
				{Kind: TokLiteral, Val: 0},
			},
		},
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig := sampleSelectQuery()
	clone := Clone(orig)

	require.NotNil(t, clone.Select)
	assert.NotSame(t, orig.Select, clone.Select)
	assert.NotSame(t, orig.Select.From, clone.Select.From)
	assert.NotSame(t, orig.Select.Columns[0], clone.Select.Columns[0])

	clone.Select.Columns[0].As = "mutated"
	assert.Empty(t, orig.Select.Columns[0].As)

	clone.Select.Where[2].Val = 99
	assert.Equal(t, 0, orig.Select.Where[2].Val)
}

func TestCloneNilQuery(t *testing.T) {
	assert.Nil(t, Clone(nil))
}

func TestCloneRoundTripsStructure(t *testing.T) {
	orig := sampleSelectQuery()
	clone := Clone(orig)

	assert.Equal(t, orig.Kind, clone.Kind)
	assert.Equal(t, orig.Select.From.As, clone.Select.From.As)
	assert.Len(t, clone.Select.Columns, len(orig.Select.Columns))
	assert.Equal(t, orig.Select.Columns[1].As, clone.Select.Columns[1].As)
}

func TestCloneSubqueryColumn(t *testing.T) {
	orig := &Query{
		Kind: SELECT,
		Select: &Select{
			From: &From{Ref: Ref{{Name: "Books"}}, As: "Books"},
			Columns: []*Column{
				{As: "cnt", Select: &Select{
					From:    &From{Ref: Ref{{Name: "Orders"}}, As: "Orders"},
					Columns: []*Column{{Func: "count", Args: []*Column{{Star: true}}}},
				}},
			},
		},
	}
	clone := Clone(orig)
	require.NotNil(t, clone.Select.Columns[0].Select)
	assert.NotSame(t, orig.Select.Columns[0].Select, clone.Select.Columns[0].Select)
	clone.Select.Columns[0].Select.From.As = "O2"
	assert.Equal(t, "Orders", orig.Select.Columns[0].Select.From.As)
}
