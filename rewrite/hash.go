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
	"fmt"
	"strconv"

	"github.com/cespare/xxhash"
	"github.com/mitchellh/hashstructure"

	"github.com/cds-go/cqn4sql/cqn"
)

// filterFingerprint computes a stable fingerprint for an inline filter's
// token stream, used to distinguish two join-tree nodes that share a
// dotted path prefix but carry different filters (spec §4.4
// "Canonicalization includes the inline filter"). A nil/empty filter
// fingerprints to the empty string so unfiltered steps share one node.
func filterFingerprint(where []cqn.Token) string {
	if len(where) == 0 {
		return ""
	}
	h, err := hashstructure.Hash(where, nil)
	if err != nil {
		// hashstructure only fails on unsupported types (channels,
		// funcs), neither of which appear in a token stream; fall back
		// to a fixed marker so two un-hashable filters are still
		// treated as distinct from "no filter" (never equal to each
		// other, which is conservative but safe).
		return fmt.Sprintf("unhashable:%p", &where)
	}
	return strconv.FormatUint(h, 36)
}

// canonicalKey builds the join-tree's per-node dedup key: the dotted path
// from the root plus the step's filter fingerprint, compacted through
// xxhash so it is cheap to use as a map key even for long paths.
func canonicalKey(parentKey, step string, filter string) string {
	raw := parentKey + "." + step
	if filter != "" {
		raw += "#" + filter
	}
	sum := xxhash.Sum64String(raw)
	return strconv.FormatUint(sum, 36)
}
