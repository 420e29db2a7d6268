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

// pseudoAnnotation marks a Definition as belonging to the fixed
// pseudo-namespace: $user, $now, $session. Any path rooted in one of
// these bypasses join-tree merging and table-alias prepending entirely;
// it is rendered in the output exactly as resolved.
const pseudoAnnotation = "cqn4sql.pseudo"

func pseudoDef(name string, elements ...*Definition) *Definition {
	d := &Definition{
		Kind:        KindStruct,
		Name:        name,
		Elements:    elements,
		Annotations: map[string]interface{}{pseudoAnnotation: true},
	}
	for _, e := range elements {
		e.Parent = d
	}
	return d
}

func pseudoScalar(name string) *Definition {
	return &Definition{
		Kind:        KindElement,
		Name:        name,
		Annotations: map[string]interface{}{pseudoAnnotation: true},
	}
}

// pseudoRoots is the fixed mapping of reserved path roots to synthetic
// definitions. Built once; Definitions here are never looked up through a
// Model (they precede and short-circuit ordinary resolution).
var pseudoRoots = map[string]*Definition{
	"$user": pseudoDef("$user",
		pseudoScalar("id"),
		pseudoScalar("locale"),
	),
	"$now": pseudoScalar("$now"),
	"$session": pseudoDef("$session",
		pseudoScalar("context"),
	),
}

// PseudoRoot returns the synthetic Definition for a reserved path root
// (e.g. "$user"), and whether it exists.
func PseudoRoot(name string) (*Definition, bool) {
	d, ok := pseudoRoots[name]
	return d, ok
}

// IsPseudo reports whether d (or any of its ancestors) is part of the
// pseudo-namespace.
func IsPseudo(d *Definition) bool {
	for cur := d; cur != nil; cur = cur.Parent {
		if cur.Annotations != nil {
			if v, ok := cur.Annotations[pseudoAnnotation]; ok {
				if b, _ := v.(bool); b {
					return true
				}
			}
		}
	}
	return false
}
