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

// Clone returns a deep, subquery-aware copy of q. The rewriter clones the
// inferred query before rewriting any clause so the input AST is never
// mutated (see design notes on ownership discipline); Clone is the single
// routine responsible for that, rather than ad-hoc per-clause copying.
func Clone(q *Query) *Query {
	if q == nil {
		return nil
	}
	out := &Query{Kind: q.Kind}
	out.Select = cloneSelect(q.Select)
	out.Insert = cloneInsert(q.Insert)
	out.Upsert = cloneUpsert(q.Upsert)
	out.Update = cloneUpdate(q.Update)
	out.Delete = cloneDelete(q.Delete)
	out.Stream = cloneStream(q.Stream)
	out.Set = cloneSet(q.Set)
	return out
}

func cloneSelect(s *Select) *Select {
	if s == nil {
		return nil
	}
	out := *s
	out.From = cloneFrom(s.From)
	out.Columns = cloneColumns(s.Columns)
	out.Where = cloneTokens(s.Where)
	out.GroupBy = cloneColumns(s.GroupBy)
	out.Having = cloneTokens(s.Having)
	out.OrderBy = cloneColumns(s.OrderBy)
	out.Search = cloneTokens(s.Search)
	out.Excluding = cloneStrings(s.Excluding)
	if s.Limit != nil {
		lim := *s.Limit
		lim.Rows = cloneTokenPtr(s.Limit.Rows)
		lim.Offset = cloneTokenPtr(s.Limit.Offset)
		out.Limit = &lim
	}
	return &out
}

func cloneFrom(f *From) *From {
	if f == nil {
		return nil
	}
	out := *f
	out.Ref = cloneRef(f.Ref)
	out.On = cloneTokens(f.On)
	out.Select = cloneSelect(f.Select)
	if f.Args != nil {
		out.Args = make([]*From, len(f.Args))
		for i, a := range f.Args {
			out.Args[i] = cloneFrom(a)
		}
	}
	return &out
}

func cloneRef(r Ref) Ref {
	if r == nil {
		return nil
	}
	out := make(Ref, len(r))
	for i, s := range r {
		out[i] = Step{Name: s.Name, Where: cloneTokens(s.Where)}
	}
	return out
}

func cloneColumns(cols []*Column) []*Column {
	if cols == nil {
		return nil
	}
	out := make([]*Column, len(cols))
	for i, c := range cols {
		out[i] = cloneColumn(c)
	}
	return out
}

func cloneColumn(c *Column) *Column {
	if c == nil {
		return nil
	}
	out := *c
	out.Ref = cloneRef(c.Ref)
	out.Xpr = cloneTokens(c.Xpr)
	out.Args = cloneColumns(c.Args)
	out.Select = cloneSelect(c.Select)
	out.Expand = cloneColumns(c.Expand)
	out.Inline = cloneColumns(c.Inline)
	out.Excluding = cloneStrings(c.Excluding)
	if c.Cast != nil {
		cast := *c.Cast
		out.Cast = &cast
	}
	if c.Annotations != nil {
		out.Annotations = make(map[string]interface{}, len(c.Annotations))
		for k, v := range c.Annotations {
			out.Annotations[k] = v
		}
	}
	return &out
}

func cloneTokens(toks []Token) []Token {
	if toks == nil {
		return nil
	}
	out := make([]Token, len(toks))
	for i, t := range toks {
		out[i] = cloneToken(t)
	}
	return out
}

func cloneTokenPtr(t *Token) *Token {
	if t == nil {
		return nil
	}
	ct := cloneToken(*t)
	return &ct
}

func cloneToken(t Token) Token {
	out := t
	out.Ref = cloneRef(t.Ref)
	out.FuncArgs = cloneTokens(t.FuncArgs)
	out.Xpr = cloneTokens(t.Xpr)
	out.Select = cloneSelect(t.Select)
	out.List = cloneTokens(t.List)
	if t.Cast != nil {
		cast := *t.Cast
		out.Cast = &cast
	}
	return out
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

func cloneInsert(in *Insert) *Insert {
	if in == nil {
		return nil
	}
	out := *in
	out.Into = cloneFrom(in.Into)
	out.Columns = cloneStrings(in.Columns)
	if in.Rows != nil {
		out.Rows = make([][]interface{}, len(in.Rows))
		for i, r := range in.Rows {
			out.Rows[i] = append([]interface{}(nil), r...)
		}
	}
	if in.Entries != nil {
		out.Entries = make([]map[string]interface{}, len(in.Entries))
		for i, e := range in.Entries {
			m := make(map[string]interface{}, len(e))
			for k, v := range e {
				m[k] = v
			}
			out.Entries[i] = m
		}
	}
	return &out
}

func cloneUpsert(up *Upsert) *Upsert {
	if up == nil {
		return nil
	}
	out := *up
	out.Into = cloneFrom(up.Into)
	out.Columns = cloneStrings(up.Columns)
	if up.Rows != nil {
		out.Rows = make([][]interface{}, len(up.Rows))
		for i, r := range up.Rows {
			out.Rows[i] = append([]interface{}(nil), r...)
		}
	}
	return &out
}

func cloneUpdate(u *Update) *Update {
	if u == nil {
		return nil
	}
	out := *u
	out.Entity = cloneFrom(u.Entity)
	out.Where = cloneTokens(u.Where)
	if u.With != nil {
		out.With = make(map[string][]Token, len(u.With))
		for k, v := range u.With {
			out.With[k] = cloneTokens(v)
		}
	}
	if u.Data != nil {
		out.Data = make(map[string]interface{}, len(u.Data))
		for k, v := range u.Data {
			out.Data[k] = v
		}
	}
	return &out
}

func cloneDelete(d *Delete) *Delete {
	if d == nil {
		return nil
	}
	out := *d
	out.From = cloneFrom(d.From)
	out.Where = cloneTokens(d.Where)
	return &out
}

func cloneStream(s *Stream) *Stream {
	if s == nil {
		return nil
	}
	out := *s
	out.From = cloneFrom(s.From)
	out.Where = cloneTokens(s.Where)
	return &out
}

func cloneSet(s *SetOp) *SetOp {
	if s == nil {
		return nil
	}
	out := *s
	if s.Args != nil {
		out.Args = make([]*Query, len(s.Args))
		for i, a := range s.Args {
			out.Args[i] = Clone(a)
		}
	}
	return &out
}
