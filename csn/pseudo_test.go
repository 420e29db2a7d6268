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
)

func TestPseudoRootKnownNames(t *testing.T) {
	user, ok := PseudoRoot("$user")
	assert.True(t, ok)
	assert.NotNil(t, user.Element("id"))
	assert.NotNil(t, user.Element("locale"))

	now, ok := PseudoRoot("$now")
	assert.True(t, ok)
	assert.Equal(t, KindElement, now.Kind)

	session, ok := PseudoRoot("$session")
	assert.True(t, ok)
	assert.NotNil(t, session.Element("context"))
}

func TestPseudoRootUnknownName(t *testing.T) {
	_, ok := PseudoRoot("$unknown")
	assert.False(t, ok)
}

func TestIsPseudoTrueForRootAndChildren(t *testing.T) {
	user, _ := PseudoRoot("$user")
	assert.True(t, IsPseudo(user))
	assert.True(t, IsPseudo(user.Element("id")))
}

func TestIsPseudoFalseForOrdinaryDefinition(t *testing.T) {
	ordinary := &Definition{Kind: KindElement, Name: "title"}
	assert.False(t, IsPseudo(ordinary))
}

func TestIsPseudoFalseForNil(t *testing.T) {
	assert.False(t, IsPseudo(nil))
}
