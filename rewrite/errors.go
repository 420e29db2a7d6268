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
	goerrors "gopkg.in/src-d/go-errors.v1"
)

// Error kinds, one per row of the error table. Each carries the offending
// dotted path and, where available, a suggested qualified alternative.
var (
	ErrUnknownName      = goerrors.NewKind("could not find a definition for %q")
	ErrAmbiguousName    = goerrors.NewKind("%q is ambiguous, found in: %s")
	ErrFilterOnNonAssoc = goerrors.NewKind("a filter can only be applied after an entity or association, not %q")

	ErrUnmanagedInInfixFilter = goerrors.NewKind("unmanaged association %q cannot be navigated in an infix filter")
	ErrNonFkInInfixFilter     = goerrors.NewKind("navigation past the foreign keys of %q is not allowed in an infix filter")
	ErrFilterWithoutNavigation = goerrors.NewKind("filter on %q is not followed by exists or expand")

	ErrDuplicateAlias   = goerrors.NewKind("duplicate table alias %q")
	ErrDuplicateElement = goerrors.NewKind("duplicate element %q in the query result")
	ErrEmptyProjection  = goerrors.NewKind("the query is not projecting any columns")

	ErrUnionNotSupported = goerrors.NewKind("union queries are not supported")

	ErrUnsupportedStructuralComparison = goerrors.NewKind("operator %q is not supported for structured comparison of %q")
	ErrStructuralShapeMismatch         = goerrors.NewKind("structural comparison shape mismatch between %q and %q: unmatched paths %v")
	ErrCannotCompareStructWithValue    = goerrors.NewKind("cannot compare structured element %q with a non-null value")

	ErrAmbiguousOrderBy = goerrors.NewKind("%q expands to multiple columns and cannot be used in orderBy")

	ErrAssocInExpression = goerrors.NewKind("association %q cannot be used in an expression")
	ErrStructInExpression = goerrors.NewKind("structured element %q cannot be used in an expression")

	ErrAmbiguousWildcard = goerrors.NewKind("wildcard expansion of %q is ambiguous, found in: %s")

	ErrExpectingAlias = goerrors.NewKind("expecting an explicit alias for %q")
)
