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
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"
)

// Options configures one Rewrite call. The zero value is usable: it logs
// nothing, traces nothing, counts nothing, and resolves unknown names
// strictly.
type Options struct {
	// Logger is carried for callers; Rewrite does not write to it.
	// Defaults to an entry on logrus's standard logger.
	Logger *logrus.Entry

	// Tracer opens one span per Rewrite call. Defaults to opentracing's
	// no-op tracer.
	Tracer opentracing.Tracer

	// Metrics records counters for the shapes of query rewritten.
	// Defaults to discard metrics.
	Metrics *Metrics

	// StrictUnknownName is reserved: Rewrite does not read it, and an
	// unresolvable name always fails the rewrite whatever its value.
	// DefaultOptions sets it to true.
	StrictUnknownName bool

	// SearchableColumns customizes which string-typed elements a
	// `search` clause lowers against (spec §4.6.5). When nil, every
	// string-typed element of the query's target is searched.
	SearchableColumns func(target string) []string

	// Locale is the BCP-47 tag used to pick a query's localized view
	// (spec §4.1 `localizedViewFor`) when the query sets `localized`.
	// Empty means no locale preference: an unqualified "localized."
	// sibling is used if the model has one.
	Locale string
}

// DefaultOptions returns an Options with discard metrics, the no-op
// tracer, an entry on logrus's standard logger, and StrictUnknownName set.
func DefaultOptions() *Options {
	return &Options{
		Logger:            logrus.NewEntry(logrus.StandardLogger()),
		Tracer:            opentracing.NoopTracer{},
		Metrics:           NewDiscardMetrics(),
		StrictUnknownName: true,
	}
}

func (o *Options) orDefault() *Options {
	if o == nil {
		return DefaultOptions()
	}
	cp := *o
	if cp.Logger == nil {
		cp.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if cp.Tracer == nil {
		cp.Tracer = opentracing.NoopTracer{}
	}
	if cp.Metrics == nil {
		cp.Metrics = NewDiscardMetrics()
	}
	return &cp
}

// Metrics groups the rewriter's counters and histograms (SPEC_FULL §1
// ambient stack). Built on go-kit's metrics facade so any backend
// (prometheus, statsd, ...) can be plugged in by the caller. Rewrite
// observes Rewrites, Errors and RewriteTime; JoinNodes is not observed.
type Metrics struct {
	Rewrites    metrics.Counter
	Errors      metrics.Counter
	JoinNodes   metrics.Histogram
	RewriteTime metrics.Histogram
}

// NewDiscardMetrics returns a Metrics whose instruments drop every
// observation, used when the caller does not wire a real backend.
func NewDiscardMetrics() *Metrics {
	return &Metrics{
		Rewrites:    discard.NewCounter(),
		Errors:      discard.NewCounter(),
		JoinNodes:   discard.NewHistogram(),
		RewriteTime: discard.NewHistogram(),
	}
}
