// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package filings wires the query-answering pipeline — analyzer,
// retrieval orchestrator, synthesizer, critic, and the self-correction
// loop — behind one Service, and exposes it over HTTP.
package filings

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/FilingsAgent/services/filings/answer"
	"github.com/AleutianAI/FilingsAgent/services/filings/catalog"
	"github.com/AleutianAI/FilingsAgent/services/filings/config"
	"github.com/AleutianAI/FilingsAgent/services/filings/loop"
	"github.com/AleutianAI/FilingsAgent/services/filings/planner"
	"github.com/AleutianAI/FilingsAgent/services/filings/retrieve"
	"github.com/AleutianAI/FilingsAgent/services/llm"
)

// queryRunner is the loop surface the service depends on. Narrowed to an
// interface so handler tests can substitute a scripted loop.
type queryRunner interface {
	Run(ctx context.Context, rawQuery string) (*loop.Result, error)
}

// ServiceConfig carries the collaborators and bounds for a Service.
type ServiceConfig struct {
	// Graph is the structured store. Must not be nil.
	Graph retrieve.GraphStore

	// Vector is the similarity store. Must not be nil.
	Vector retrieve.VectorStore

	// LLM is the generation client shared by synthesis and critique.
	LLM llm.LLMClient

	// Catalog is the entity catalog snapshot source. Most callers derive
	// it from the graph store at startup; tests inject one directly.
	Catalog *catalog.Catalog

	// StoreTimeout bounds each evidence-store call. Zero takes the default.
	StoreTimeout time.Duration

	// Loop bounds the self-correction cycle. Zero fields take defaults.
	Loop loop.Config

	// Logger is the service logger. Nil falls back to slog.Default().
	Logger *slog.Logger
}

// Service owns one wired query pipeline and its entity catalog.
//
// # Thread Safety
//
// Safe for concurrent use. The catalog is immutable after construction
// and every query runs on its own history.
type Service struct {
	catalog *catalog.Catalog
	runner  queryRunner
	logger  *slog.Logger
}

// NewService wires the full pipeline from a config.
//
// # Description
//
//	The analyzer grounds on the supplied catalog, the orchestrator on the
//	two stores, and synthesis plus critique on the shared LLM client. An
//	empty catalog is allowed at construction (the corpus may be ingested
//	later); queries against an empty catalog are refused at Ask time.
//
// # Outputs
//
//   - *Service: The wired service.
//   - error: A missing required collaborator.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Graph == nil || cfg.Vector == nil {
		return nil, fmt.Errorf("filings: both evidence stores are required")
	}
	if cfg.LLM == nil {
		return nil, fmt.Errorf("filings: an LLM client is required")
	}
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("filings: a catalog is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	analyzer := planner.NewAnalyzer(cfg.Catalog, config.MustLoadSectionSynonyms(), logger)
	orchestrator := retrieve.NewOrchestrator(cfg.Graph, cfg.Vector, cfg.StoreTimeout, logger)
	synthesizer := answer.NewSynthesizer(cfg.LLM, logger)
	critic := answer.NewCritic(cfg.LLM, logger)

	runner := loop.New(analyzer, orchestrator, synthesizer, critic, cfg.Catalog, cfg.Loop, logger)

	if cfg.Catalog.Empty() {
		logger.Warn("service starting with an empty entity catalog; queries will be refused until the corpus is ingested")
	} else {
		logger.Info("service wired",
			slog.Int("catalog_companies", len(cfg.Catalog.Companies())),
			slog.Int("catalog_sections", len(cfg.Catalog.Sections())),
		)
	}
	return &Service{
		catalog: cfg.Catalog,
		runner:  runner,
		logger:  logger,
	}, nil
}

// QueryResult is the service-level outcome for one question.
type QueryResult struct {
	SessionID string         `json:"session_id"`
	State     loop.State     `json:"state"`
	Answer    string         `json:"answer"`
	Reason    string         `json:"reason"`
	Attempts  []AttemptBrief `json:"attempts"`
}

// AttemptBrief is the audit view of one attempt: what was searched and
// how the critic judged it, without the evidence payloads.
type AttemptBrief struct {
	Plan       string `json:"plan"`
	SearchType string `json:"search_type"`
	Evidence   int    `json:"evidence_count"`
	Sufficient bool   `json:"sufficient"`
	Reason     string `json:"reason,omitempty"`
}

// ErrCatalogEmpty is returned by Ask when the corpus holds nothing.
var ErrCatalogEmpty = fmt.Errorf("filings: entity catalog is empty; ingest a corpus first")

// Ask answers one natural-language question about the indexed filings.
//
// # Inputs
//
//   - ctx - Context for cancellation; bounds the whole query lifetime.
//   - rawQuery - The user's question. Must not be empty.
//
// # Outputs
//
//   - *QueryResult: The terminal outcome with a per-attempt audit trail.
//   - error: ErrCatalogEmpty, context cancellation, or an internal
//     pipeline failure.
func (s *Service) Ask(ctx context.Context, rawQuery string) (*QueryResult, error) {
	if s.catalog.Empty() {
		return nil, ErrCatalogEmpty
	}
	sessionID := uuid.NewString()
	s.logger.Info("query received",
		slog.String("session_id", sessionID),
		slog.Int("query_len", len(rawQuery)),
	)

	res, err := s.runner.Run(ctx, rawQuery)
	if err != nil {
		s.logger.Error("query failed",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	out := &QueryResult{
		SessionID: sessionID,
		State:     res.State,
		Answer:    res.Answer,
		Reason:    res.Reason,
	}
	for _, a := range res.Attempts {
		out.Attempts = append(out.Attempts, AttemptBrief{
			Plan:       NarratePlan(&a.Plan),
			SearchType: string(a.Plan.SearchType),
			Evidence:   len(a.Evidence.GraphResults) + len(a.Evidence.VectorResults),
			Sufficient: a.Verdict.Sufficient,
			Reason:     a.Verdict.Reason,
		})
	}
	s.logger.Info("query concluded",
		slog.String("session_id", sessionID),
		slog.String("state", string(res.State)),
		slog.Int("attempts", len(res.Attempts)),
	)
	return out, nil
}

// Catalog exposes the immutable entity catalog for the HTTP surface.
func (s *Service) Catalog() *catalog.Catalog {
	return s.catalog
}
