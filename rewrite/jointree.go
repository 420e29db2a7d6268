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
	"strconv"

	"github.com/cds-go/cqn4sql/cqn"
	"github.com/cds-go/cqn4sql/csn"
)

// JoinNode is one node of the join tree: a root corresponds to a query
// source, a non-root node corresponds to one association-valued step.
type JoinNode struct {
	// Alias is the unique table alias assigned to this node.
	Alias string
	// Assoc is nil for a root node, else the association Definition that
	// was traversed to reach this node.
	Assoc *csn.Definition
	// Target is the entity this node's alias refers to.
	Target *csn.Definition
	// Filter is the inline filter token stream attached to the step that
	// produced this node, if any.
	Filter []cqn.Token
	// Parent is nil for a root.
	Parent *JoinNode

	key      string
	children map[string]*JoinNode
	childOrd []string
}

// Children returns this node's children in deterministic insertion order.
func (n *JoinNode) Children() []*JoinNode {
	out := make([]*JoinNode, len(n.childOrd))
	for i, k := range n.childOrd {
		out[i] = n.children[k]
	}
	return out
}

// joinTree is the deduplicating forest of association traversals that
// must be materialized as joins (spec §4.4).
type joinTree struct {
	roots   map[string]*JoinNode
	rootOrd []string
	aliases map[string]int // short id -> count seen, for addAlias collision handling
}

func newJoinTree() *joinTree {
	return &joinTree{
		roots:   map[string]*JoinNode{},
		aliases: map[string]int{},
	}
}

// rootsList enumerates the top-level nodes in deterministic insertion order.
func (jt *joinTree) rootsList() []*JoinNode {
	out := make([]*JoinNode, len(jt.rootOrd))
	for i, k := range jt.rootOrd {
		out[i] = jt.roots[k]
	}
	return out
}

// addAlias returns a unique alias derived from shortID: the plain shortID
// the first time, then a monotonic numeric suffix on every further
// collision, so aliasing stays fully deterministic for a fixed input and
// model (spec §6 "MUST be deterministic for a fixed input and model") no
// matter how many times a given shortID repeats within one query.
func (jt *joinTree) addAlias(shortID string) string {
	n := jt.aliases[shortID]
	jt.aliases[shortID] = n + 1
	if n == 0 {
		return shortID
	}
	return shortID + "_" + strconv.Itoa(n)
}

// empty reports whether the tree has no root yet.
func (jt *joinTree) empty() bool {
	return len(jt.rootOrd) == 0
}

// ensureRoot returns the join tree's node for a query source, creating it
// on first use. Roots are keyed by the alias itself (roots are never
// deduplicated against each other by anything but alias identity).
func (jt *joinTree) ensureRoot(alias string, def *csn.Definition) *JoinNode {
	if n, ok := jt.roots[alias]; ok {
		return n
	}
	n := &JoinNode{
		Alias:    alias,
		Target:   def,
		key:      alias,
		children: map[string]*JoinNode{},
	}
	jt.roots[alias] = n
	jt.rootOrd = append(jt.rootOrd, alias)
	return n
}

// mergeStep inserts (or reuses) the child node for one join-relevant
// association step under parent, keyed by the canonical (path, filter)
// key so two references sharing the same prefix share the same node and
// alias (spec §4.4 invariant).
func (jt *joinTree) mergeStep(parent *JoinNode, stepName string, filter []cqn.Token, assoc, target *csn.Definition) *JoinNode {
	fp := filterFingerprint(filter)
	key := canonicalKey(parent.key, stepName, fp)
	if child, ok := parent.children[key]; ok {
		return child
	}
	alias := jt.addAlias(stepName)
	child := &JoinNode{
		Alias:    alias,
		Assoc:    assoc,
		Target:   target,
		Filter:   filter,
		Parent:   parent,
		key:      key,
		children: map[string]*JoinNode{},
	}
	parent.children[key] = child
	parent.childOrd = append(parent.childOrd, key)
	return child
}
