// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package retrieve

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/FilingsAgent/services/filings/plan"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	retrievalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "filings",
		Subsystem: "retrieve",
		Name:      "retrievals_total",
		Help:      "Retrievals executed, by search_type and outcome",
	}, []string{"search_type", "outcome"})

	storeFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "filings",
		Subsystem: "retrieve",
		Name:      "store_failures_total",
		Help:      "Absorbed per-store failures, by store",
	}, []string{"store"})

	retrievalDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "filings",
		Subsystem: "retrieve",
		Name:      "duration_seconds",
		Help:      "End-to-end retrieval latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"search_type"})
)

// =============================================================================
// OTel Tracer
// =============================================================================

var retrieveTracer = otel.Tracer("aleutian.filings.retrieve")

const (
	// comprehensiveLimit caps a Comprehensive retrieval at the most recent
	// documents; without it a broad filter would pull the whole corpus into
	// the synthesis prompt.
	comprehensiveLimit = 10

	// hybridTopK is the similarity-store result budget for Hybrid retrieval.
	hybridTopK = 20
)

// Orchestrator executes Plans against the graph and vector stores.
//
// # Thread Safety
//
// Safe for concurrent use. Each Retrieve call builds a fresh EvidenceSet;
// no state is shared across calls.
type Orchestrator struct {
	graph        GraphStore
	vector       VectorStore
	storeTimeout time.Duration
	logger       *slog.Logger
}

// NewOrchestrator creates an Orchestrator.
//
// # Inputs
//
//   - graph - The structured store. Must not be nil.
//   - vector - The similarity store. Must not be nil.
//   - storeTimeout - Per-store call budget. Non-positive falls back to 15s.
//   - logger - Logger instance. Nil falls back to slog.Default().
func NewOrchestrator(graph GraphStore, vector VectorStore, storeTimeout time.Duration, logger *slog.Logger) *Orchestrator {
	if storeTimeout <= 0 {
		storeTimeout = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		graph:        graph,
		vector:       vector,
		storeTimeout: storeTimeout,
		logger:       logger,
	}
}

// Retrieve executes one validated Plan and returns its evidence.
//
// # Description
//
//	The plan is validated first; a malformed plan is rejected outright and
//	never reaches a store. Strategy dispatch is exhaustive over the three
//	SearchType values. Store failures (timeout, unavailability) are
//	absorbed: the failing store contributes zero results plus a recorded
//	StoreFailure, and retrieval still succeeds with whatever the surviving
//	store returned. Result order is exactly the store order; nothing is
//	re-sorted here.
//
//	Retrieval is repeatable: the same plan against unchanged stores yields
//	the same evidence, which is what makes the loop's empty-evidence
//	counting meaningful.
//
// # Inputs
//
//   - ctx - Context for cancellation and tracing. Must not be nil.
//   - p - The plan to execute. Must not be nil.
//
// # Outputs
//
//   - *plan.EvidenceSet: The combined evidence. Nil only alongside an error.
//   - error: *plan.MalformedPlanError for an invalid plan, or ctx.Err()
//     when the caller's context ended. Store failures are not errors.
func (o *Orchestrator) Retrieve(ctx context.Context, p *plan.Plan) (*plan.EvidenceSet, error) {
	ctx, span := retrieveTracer.Start(ctx, "retrieve.Retrieve")
	defer span.End()
	span.SetAttributes(
		attribute.String("search_type", string(p.SearchType)),
		attribute.Int("filter.companies", len(p.Companies)),
	)

	if err := p.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed plan")
		retrievalsTotal.WithLabelValues(string(p.SearchType), "malformed").Inc()
		return nil, err
	}

	start := time.Now()
	ev := &plan.EvidenceSet{SourcePlan: *p.Clone()}

	switch p.SearchType {
	case plan.SearchDirect:
		o.queryGraph(ctx, ev, func(sctx context.Context) ([]plan.SectionRecord, error) {
			return o.graph.Query(sctx, filterFromPlan(p, true))
		})

	case plan.SearchComprehensive:
		o.queryGraph(ctx, ev, func(sctx context.Context) ([]plan.SectionRecord, error) {
			return o.graph.MostRecent(sctx, filterFromPlan(p, false), comprehensiveLimit)
		})

	case plan.SearchHybrid:
		o.queryHybrid(ctx, ev, p)
	}

	if err := ctx.Err(); err != nil {
		retrievalsTotal.WithLabelValues(string(p.SearchType), "canceled").Inc()
		return nil, err
	}

	retrievalDuration.WithLabelValues(string(p.SearchType)).Observe(time.Since(start).Seconds())
	retrievalsTotal.WithLabelValues(string(p.SearchType), "ok").Inc()
	span.SetAttributes(
		attribute.Int("evidence.graph", len(ev.GraphResults)),
		attribute.Int("evidence.vector", len(ev.VectorResults)),
		attribute.Int("evidence.failures", len(ev.Failures)),
	)
	o.logger.Debug("retrieval complete",
		slog.String("search_type", string(p.SearchType)),
		slog.Int("graph_results", len(ev.GraphResults)),
		slog.Int("vector_results", len(ev.VectorResults)),
		slog.Int("failures", len(ev.Failures)),
	)
	return ev, nil
}

// queryGraph runs one graph-store call under the per-store timeout and
// records either its results or an absorbed failure.
func (o *Orchestrator) queryGraph(ctx context.Context, ev *plan.EvidenceSet, call func(context.Context) ([]plan.SectionRecord, error)) {
	sctx, cancel := context.WithTimeout(ctx, o.storeTimeout)
	defer cancel()

	records, err := call(sctx)
	if err != nil {
		o.recordFailure(ev, "graph", err)
		return
	}
	ev.GraphResults = records
}

// queryHybrid fans out to both stores concurrently. Each branch writes only
// its own locals; the evidence set is assembled after Wait so there is no
// shared mutation between goroutines.
func (o *Orchestrator) queryHybrid(ctx context.Context, ev *plan.EvidenceSet, p *plan.Plan) {
	var (
		hits      []plan.VectorHit
		records   []plan.SectionRecord
		vectorErr error
		graphErr  error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sctx, cancel := context.WithTimeout(gctx, o.storeTimeout)
		defer cancel()
		hits, vectorErr = o.vector.Search(sctx, p.Concept, hybridTopK, filterFromPlan(p, false))
		return nil
	})
	g.Go(func() error {
		sctx, cancel := context.WithTimeout(gctx, o.storeTimeout)
		defer cancel()
		records, graphErr = o.graph.Query(sctx, filterFromPlan(p, false))
		return nil
	})
	// Branches never return errors, so Wait only synchronizes.
	_ = g.Wait()

	if vectorErr != nil {
		o.recordFailure(ev, "vector", vectorErr)
	} else {
		ev.VectorResults = hits
	}
	if graphErr != nil {
		o.recordFailure(ev, "graph", graphErr)
	} else {
		ev.GraphResults = records
	}
}

// recordFailure appends an absorbed store failure to the evidence set.
func (o *Orchestrator) recordFailure(ev *plan.EvidenceSet, store string, err error) {
	storeFailuresTotal.WithLabelValues(store).Inc()
	o.logger.Warn("evidence store failed, degrading",
		slog.String("store", store),
		slog.String("error", err.Error()),
	)
	ev.Failures = append(ev.Failures, plan.StoreFailure{
		Store:  store,
		Reason: fmt.Sprintf("%s store: %v", store, err),
	})
}
