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

	"github.com/opentracing/opentracing-go"
)

// startSpan opens a child span under o.Tracer, following the same
// ctx.Span()/defer span.Finish() idiom used around subquery resolution
// elsewhere in this stack.
func startSpan(ctx context.Context, o *Options, name string) (opentracing.Span, context.Context) {
	span := o.Tracer.StartSpan(name)
	return span, opentracing.ContextWithSpan(ctx, span)
}
