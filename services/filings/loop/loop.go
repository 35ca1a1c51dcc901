// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package loop runs the self-correction cycle for one user query: plan,
// retrieve, synthesize, critique, and either accept the answer or revise
// the plan and try again. The loop is bounded — a fixed attempt cap plus
// an empty-evidence cap — and every terminal outcome is explicit: it
// either accepts an answer or declares the information unavailable with
// the accumulated reasons.
package loop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/FilingsAgent/services/filings/answer"
	"github.com/AleutianAI/FilingsAgent/services/filings/catalog"
	"github.com/AleutianAI/FilingsAgent/services/filings/plan"
	"github.com/AleutianAI/FilingsAgent/services/filings/planner"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	loopOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "filings",
		Subsystem: "loop",
		Name:      "outcomes_total",
		Help:      "Terminal loop outcomes",
	}, []string{"outcome"})

	loopAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "filings",
		Subsystem: "loop",
		Name:      "attempts_per_query",
		Help:      "Attempts consumed per query",
		Buckets:   []float64{1, 2, 3, 4, 5},
	})
)

var loopTracer = otel.Tracer("aleutian.filings.loop")

// =============================================================================
// States and Collaborator Interfaces
// =============================================================================

// State names a position in the self-correction cycle. The transient
// states appear in logs and traces; Accepted and Unavailable are the only
// terminal ones.
type State string

const (
	StatePlanning     State = "PLANNING"
	StateRetrieving   State = "RETRIEVING"
	StateSynthesizing State = "SYNTHESIZING"
	StateCritiquing   State = "CRITIQUING"
	StateReplanning   State = "REPLANNING"
	StateAccepted     State = "ACCEPTED"
	StateUnavailable  State = "UNAVAILABLE"
)

// Planner produces the next plan for a query given the attempt history.
type Planner interface {
	Analyze(ctx context.Context, rawQuery string, history *plan.History) (*plan.Plan, error)
}

// Retriever executes a plan against the evidence stores.
type Retriever interface {
	Retrieve(ctx context.Context, p *plan.Plan) (*plan.EvidenceSet, error)
}

// Synthesizer produces an answer from evidence.
type Synthesizer interface {
	Synthesize(ctx context.Context, rawQuery string, ev *plan.EvidenceSet) (string, error)
}

// Critic judges an answer's sufficiency.
type Critic interface {
	Critique(ctx context.Context, rawQuery, answerText string, ev *plan.EvidenceSet) (plan.Verdict, error)
}

// =============================================================================
// Loop
// =============================================================================

// Config bounds the loop.
type Config struct {
	// MaxAttempts caps full plan→critique cycles per query.
	MaxAttempts int

	// EmptyEvidenceLimit ends the query after this many consecutive
	// attempts that retrieved nothing. It must leave room for the full
	// revision ladder: an early cutoff forfeits strategies that could
	// still find evidence.
	EmptyEvidenceLimit int
}

// DefaultConfig returns the production bounds.
func DefaultConfig() Config {
	return Config{MaxAttempts: 3, EmptyEvidenceLimit: 3}
}

// Result is the terminal outcome of one query.
type Result struct {
	// State is StateAccepted or StateUnavailable.
	State State `json:"state"`

	// Answer is the accepted answer text, or an explanation of
	// unavailability.
	Answer string `json:"answer"`

	// Reason summarizes why the loop ended (critic acceptance, exhausted
	// strategies, repeated empty evidence).
	Reason string `json:"reason"`

	// Attempts is the full audit log for the query.
	Attempts []plan.Attempt `json:"attempts"`
}

// Loop drives the self-correction cycle.
//
// # Thread Safety
//
// Safe for concurrent use: each Run owns its history and result; the
// collaborators are required to be concurrency-safe.
type Loop struct {
	planner     Planner
	retriever   Retriever
	synthesizer Synthesizer
	critic      Critic
	catalog     *catalog.Catalog
	cfg         Config
	logger      *slog.Logger
}

// New creates a Loop. Zero Config fields take the defaults.
func New(p Planner, r Retriever, s Synthesizer, c Critic, cat *catalog.Catalog, cfg Config, logger *slog.Logger) *Loop {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.EmptyEvidenceLimit <= 0 {
		cfg.EmptyEvidenceLimit = def.EmptyEvidenceLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		planner:     p,
		retriever:   r,
		synthesizer: s,
		critic:      c,
		catalog:     cat,
		cfg:         cfg,
		logger:      logger,
	}
}

// Run processes one user query to a terminal state.
//
// # Description
//
//	Each attempt walks PLANNING → RETRIEVING → SYNTHESIZING → CRITIQUING.
//	An accepted critique ends the loop; anything else records the attempt
//	and re-plans. Empty evidence short-circuits synthesis: the attempt is
//	recorded as insufficient without a model call. Synthesis and critic
//	failures degrade the attempt (recorded with the failure as the
//	reason) instead of aborting the query. The loop always terminates:
//	by acceptance, by the attempt cap, by the consecutive-empty-evidence
//	cap, or because the planner has no strategy left.
//
// # Inputs
//
//   - ctx - Context for cancellation; checked at every state transition.
//   - rawQuery - The user's question. Must not be empty.
//
// # Outputs
//
//   - *Result: The terminal outcome with the full attempt log. Nil only
//     alongside an error.
//   - error: Context cancellation or a malformed plan escaping the
//     planner. Store and model failures never surface here.
func (l *Loop) Run(ctx context.Context, rawQuery string) (*Result, error) {
	ctx, span := loopTracer.Start(ctx, "loop.Run")
	defer span.End()

	history := plan.NewHistory()

	for attempt := 1; attempt <= l.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		l.logState(StatePlanning, attempt)

		p, err := l.planner.Analyze(ctx, rawQuery, history)
		if errors.Is(err, planner.ErrExhausted) {
			return l.unavailable(span, history, "every retrieval strategy was tried without producing a sufficient answer"), nil
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "planning failed")
			return nil, fmt.Errorf("loop: planning attempt %d: %w", attempt, err)
		}

		l.logState(StateRetrieving, attempt)
		ev, err := l.retriever.Retrieve(ctx, p)
		if err != nil {
			span.RecordError(err)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// Malformed plans are a contract violation, not a retryable
			// condition.
			span.SetStatus(codes.Error, "retrieval rejected plan")
			return nil, fmt.Errorf("loop: retrieval attempt %d: %w", attempt, err)
		}

		if ev.Empty() {
			// The synthesizer is total on empty evidence, so the audit
			// attempt carries its fixed answer without a model call.
			history.Append(plan.Attempt{
				Plan:     *p,
				Evidence: *ev,
				Answer:   answer.NoInformationAnswer,
				Verdict:  plan.Verdict{Sufficient: false, Reason: "no matching evidence found"},
			})
			l.logger.Info("attempt found no evidence",
				slog.Int("attempt", attempt),
				slog.String("search_type", string(p.SearchType)),
			)
			if history.TrailingEmptyEvidence() >= l.cfg.EmptyEvidenceLimit {
				return l.unavailable(span, history, "repeated retrievals found no matching evidence"), nil
			}
			l.logState(StateReplanning, attempt)
			continue
		}

		l.logState(StateSynthesizing, attempt)
		answerText, err := l.synthesizer.Synthesize(ctx, rawQuery, ev)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			history.Append(plan.Attempt{
				Plan:     *p,
				Evidence: *ev,
				Verdict:  plan.Verdict{Sufficient: false, Reason: fmt.Sprintf("synthesis error: %v", err)},
			})
			l.logState(StateReplanning, attempt)
			continue
		}

		l.logState(StateCritiquing, attempt)
		verdict, err := l.critic.Critique(ctx, rawQuery, answerText, ev)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// An unjudged answer counts as insufficient; silently
			// accepting it would defeat the critique stage.
			verdict = plan.Verdict{Sufficient: false, Reason: fmt.Sprintf("critic error: %v", err)}
		}

		history.Append(plan.Attempt{
			Plan:     *p,
			Evidence: *ev,
			Answer:   answerText,
			Verdict:  verdict,
		})

		if verdict.Sufficient {
			loopOutcomesTotal.WithLabelValues("accepted").Inc()
			loopAttempts.Observe(float64(history.Len()))
			span.SetAttributes(
				attribute.String("outcome", string(StateAccepted)),
				attribute.Int("attempts", history.Len()),
			)
			l.logger.Info("answer accepted",
				slog.Int("attempts", history.Len()),
			)
			return &Result{
				State:    StateAccepted,
				Answer:   answerText,
				Reason:   verdict.Reason,
				Attempts: history.Attempts(),
			}, nil
		}
		l.logState(StateReplanning, attempt)
	}

	return l.unavailable(span, history, fmt.Sprintf("no sufficient answer after %d attempts", l.cfg.MaxAttempts)), nil
}

// unavailable builds the terminal not-available result, folding in the
// per-attempt reasons and any entities the user named that the catalog
// does not hold.
func (l *Loop) unavailable(span trace.Span, history *plan.History, summary string) *Result {
	loopOutcomesTotal.WithLabelValues("unavailable").Inc()
	loopAttempts.Observe(float64(history.Len()))
	span.SetAttributes(
		attribute.String("outcome", string(StateUnavailable)),
		attribute.Int("attempts", history.Len()),
	)

	var b strings.Builder
	b.WriteString("The requested information is not available in the indexed filings. ")
	b.WriteString(summary)
	b.WriteString(".")

	if misses := l.catalogMisses(history); len(misses) > 0 {
		fmt.Fprintf(&b, " Not covered by the corpus: %s.", strings.Join(misses, ", "))
	}
	if reasons := history.Reasons(); len(reasons) > 0 {
		fmt.Fprintf(&b, " Attempt outcomes: %s.", strings.Join(reasons, "; "))
	}

	l.logger.Info("query concluded unavailable",
		slog.Int("attempts", history.Len()),
		slog.String("summary", summary),
	)
	return &Result{
		State:    StateUnavailable,
		Answer:   b.String(),
		Reason:   summary,
		Attempts: history.Attempts(),
	}
}

// catalogMisses collects entities mentioned across all attempted plans
// that the catalog does not contain.
func (l *Loop) catalogMisses(history *plan.History) []string {
	if l.catalog == nil {
		return nil
	}
	var companies []string
	var years []int
	var quarters []string
	seenC := map[string]struct{}{}
	seenY := map[int]struct{}{}
	seenQ := map[string]struct{}{}
	for _, a := range history.Attempts() {
		for _, c := range a.Plan.Companies {
			if _, ok := seenC[c]; !ok {
				seenC[c] = struct{}{}
				companies = append(companies, c)
			}
		}
		for _, y := range a.Plan.Years {
			if _, ok := seenY[y]; !ok {
				seenY[y] = struct{}{}
				years = append(years, y)
			}
		}
		for _, q := range a.Plan.Quarters {
			if _, ok := seenQ[q]; !ok {
				seenQ[q] = struct{}{}
				quarters = append(quarters, q)
			}
		}
	}
	return l.catalog.Misses(companies, years, quarters)
}

func (l *Loop) logState(s State, attempt int) {
	l.logger.Debug("state transition",
		slog.String("state", string(s)),
		slog.Int("attempt", attempt),
	)
}
