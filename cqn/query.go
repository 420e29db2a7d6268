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

// Package cqn defines the query object notation: a JSON-shaped AST for
// queries written against a CSN model, in both object-graph and flat
// SQL-shaped form. It carries no model awareness and performs no
// resolution; see package rewrite for that.
package cqn

// Kind tags the top-level variant a Query holds.
type Kind string

const (
	SELECT Kind = "SELECT"
	INSERT Kind = "INSERT"
	UPSERT Kind = "UPSERT"
	UPDATE Kind = "UPDATE"
	DELETE Kind = "DELETE"
	STREAM Kind = "STREAM"
	SET    Kind = "SET"
)

// Query is a tagged variant over {SELECT, INSERT, UPSERT, UPDATE, DELETE,
// STREAM} plus SET (a union query, rejected by the rewriter).
type Query struct {
	Kind Kind `json:"-"`

	Select *Select `json:"SELECT,omitempty"`
	Insert *Insert `json:"INSERT,omitempty"`
	Upsert *Upsert `json:"UPSERT,omitempty"`
	Update *Update `json:"UPDATE,omitempty"`
	Delete *Delete `json:"DELETE,omitempty"`
	Stream *Stream `json:"STREAM,omitempty"`
	Set    *SetOp  `json:"SET,omitempty"`
}

// IsUnion reports whether this query is a SET/union query.
func (q *Query) IsUnion() bool { return q != nil && q.Kind == SET }

// Step is one segment of a path reference, optionally carrying an inline
// filter (only legal when the step names an entity or association).
type Step struct {
	Name  string  `json:"id"`
	Where []Token `json:"where,omitempty"`
}

// Ref is a path expression: an ordered sequence of steps.
type Ref []Step

// CastSpec overrides the inferred type of a column.
type CastSpec struct {
	Type      string `json:"type"`
	Length    int    `json:"length,omitempty"`
	Precision int    `json:"precision,omitempty"`
	Scale     int    `json:"scale,omitempty"`
}

// Column is one projected value: a literal, a bind parameter, a path
// reference, an expression, a function call, a subquery, a wildcard, or a
// nested projection (expand/inline).
type Column struct {
	Val   interface{} `json:"val,omitempty"`
	IsVal bool        `json:"-"` // disambiguates Val==nil from "no val at all"

	Param   string `json:"param,omitempty"`
	IsParam bool   `json:"-"`

	Ref Ref `json:"ref,omitempty"`

	Xpr []Token `json:"xpr,omitempty"`

	Func string    `json:"func,omitempty"`
	Args []*Column `json:"args,omitempty"`

	Select *Select `json:"SELECT,omitempty"`

	Star bool `json:"-"`

	Expand []*Column `json:"expand,omitempty"`
	Inline []*Column `json:"inline,omitempty"`

	As        string    `json:"as,omitempty"`
	Cast      *CastSpec `json:"cast,omitempty"`
	Excluding []string  `json:"excluding,omitempty"`

	// Sort/Nulls are only meaningful for orderBy entries.
	Sort  string `json:"sort,omitempty"`
	Nulls string `json:"nulls,omitempty"`

	Key bool `json:"key,omitempty"`

	Annotations map[string]interface{} `json:"-"`
}

// TokenKind tags the variant a Token holds in a where/having/xpr/on stream.
type TokenKind int

const (
	TokKeyword TokenKind = iota
	TokRef
	TokLiteral
	TokParam
	TokFunc
	TokXpr
	TokSubquery
	TokList
)

// Token is one element of a where/having/on/xpr token stream: a tagged
// variant avoiding string-sniffing at rewrite time (see design notes).
type Token struct {
	Kind TokenKind

	// TokKeyword: the literal operator/keyword text, e.g. "=", "and",
	// "exists", "not", "in", "is null".
	Keyword string

	// TokRef
	Ref Ref

	// TokLiteral
	Val interface{}

	// TokParam
	Param string

	// TokFunc
	Func     string
	FuncArgs []Token

	// TokXpr: a parenthesized sub-expression.
	Xpr []Token

	// TokSubquery
	Select *Select

	// TokList: e.g. the operand list of `IN (...)`.
	List []Token

	Cast *CastSpec
}

// IsRefToSelf reports whether t is the literal `$self` pseudo-reference
// used inside unmanaged on-conditions.
func (t Token) IsRefToSelf() bool {
	return t.Kind == TokRef && len(t.Ref) > 0 && t.Ref[0].Name == "$self"
}

// From is either a path reference, a join node, or a nested SELECT.
type From struct {
	Ref Ref    `json:"ref,omitempty"`
	As  string `json:"as,omitempty"`

	Join string  `json:"join,omitempty"`
	Args []*From `json:"args,omitempty"`
	On   []Token `json:"on,omitempty"`

	Select *Select `json:"SELECT,omitempty"`
}

// IsRef reports whether f is a plain path reference (not a join, not a
// nested SELECT).
func (f *From) IsRef() bool { return f != nil && f.Join == "" && f.Select == nil }

// Limit carries the row/offset bounds of a SELECT.
type Limit struct {
	Rows   *Token `json:"rows,omitempty"`
	Offset *Token `json:"offset,omitempty"`
}

// Select is the SELECT-kind query body.
type Select struct {
	From      *From     `json:"from,omitempty"`
	Columns   []*Column `json:"columns,omitempty"`
	Where     []Token   `json:"where,omitempty"`
	GroupBy   []*Column `json:"groupBy,omitempty"`
	Having    []Token   `json:"having,omitempty"`
	OrderBy   []*Column `json:"orderBy,omitempty"`
	Limit     *Limit    `json:"limit,omitempty"`
	Search    []Token   `json:"search,omitempty"`
	Excluding []string  `json:"excluding,omitempty"`
	Localized bool      `json:"localized,omitempty"`
	Distinct  bool      `json:"distinct,omitempty"`

	// Expand marks this SELECT as generated from an `expand` projection
	// column; One mirrors the association's to-one/to-many cardinality.
	Expand bool `json:"expand,omitempty"`
	One    bool `json:"one,omitempty"`
}

// Insert is the INSERT-kind query body.
type Insert struct {
	Into    *From           `json:"into"`
	Columns []string        `json:"columns,omitempty"`
	Rows    [][]interface{} `json:"rows,omitempty"`
	Entries []map[string]interface{} `json:"entries,omitempty"`
}

// Upsert is the UPSERT-kind query body.
type Upsert struct {
	Into    *From           `json:"into"`
	Columns []string        `json:"columns,omitempty"`
	Rows    [][]interface{} `json:"rows,omitempty"`
}

// Update is the UPDATE-kind query body.
type Update struct {
	Entity *From                  `json:"entity,omitempty"`
	With   map[string][]Token     `json:"with,omitempty"`
	Data   map[string]interface{} `json:"data,omitempty"`
	Where  []Token                `json:"where,omitempty"`
}

// Delete is the DELETE-kind query body.
type Delete struct {
	From  *From   `json:"from,omitempty"`
	Where []Token `json:"where,omitempty"`
}

// Stream is the STREAM-kind query body; its handling is vestigial (see
// design notes) and threads through the same where rewrite as DELETE
// without further guaranteed semantics.
type Stream struct {
	Into  string  `json:"into,omitempty"`
	From  *From   `json:"from,omitempty"`
	Where []Token `json:"where,omitempty"`
}

// SetOp represents a SET/union query. The rewriter rejects these
// (UnionNotSupported); this type exists so the AST can represent the
// input long enough to detect and report that.
type SetOp struct {
	Op   string   `json:"op,omitempty"`
	Args []*Query `json:"args,omitempty"`
	All  bool     `json:"all,omitempty"`
}

// NewVal builds a literal value column/token payload, disambiguating a
// present nil value from "no literal at all".
func NewVal(v interface{}) *Column {
	return &Column{Val: v, IsVal: true}
}
