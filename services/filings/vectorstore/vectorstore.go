// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package vectorstore implements the similarity store on Weaviate. Filing
// text chunks live in the FilingChunk class with company/year/quarter
// metadata properties; Search runs a nearText query scoped by a
// conjunction of entity filters and returns hits in Weaviate's
// descending-certainty order.
package vectorstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/AleutianAI/FilingsAgent/services/filings/plan"
	"github.com/AleutianAI/FilingsAgent/services/filings/retrieve"
)

// ClassName is the Weaviate class holding filing chunks.
const ClassName = "FilingChunk"

// Store is the Weaviate-backed similarity store.
//
// # Thread Safety
//
// Safe for concurrent use; the Weaviate client is stateless per request.
type Store struct {
	client *weaviate.Client
	logger *slog.Logger
}

// New wraps an existing Weaviate client.
func New(client *weaviate.Client, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{client: client, logger: logger}
}

// Connect builds a Weaviate client for host ("localhost:8080") and wraps it.
func Connect(scheme, host string, logger *slog.Logger) (*Store, error) {
	client, err := weaviate.NewClient(weaviate.Config{Scheme: scheme, Host: host})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: creating weaviate client for %s://%s: %w", scheme, host, err)
	}
	return New(client, logger), nil
}

// Search runs a semantic nearText query over filing chunks.
//
// # Description
//
//	The query text goes to Weaviate verbatim as the nearText concept.
//	Entity filters become a conjunction of per-field disjunctions
//	(company IN ..., AND year IN ..., AND quarter IN ...); empty fields
//	impose no constraint. Results preserve Weaviate's order: descending
//	certainty, reported here as Score.
//
// # Inputs
//
//   - ctx - Context for cancellation. Must not be nil.
//   - query - The verbatim semantic probe. Must not be empty.
//   - topK - Maximum number of hits. Must be positive.
//   - f - Entity constraints. Sections are ignored (chunks are sub-section).
//
// # Outputs
//
//   - []plan.VectorHit: Hits in descending-score order, possibly empty.
//   - error: Transport or GraphQL-level failure.
func (s *Store) Search(ctx context.Context, query string, topK int, f retrieve.Filter) ([]plan.VectorHit, error) {
	nearText := s.client.GraphQL().NearTextArgBuilder().
		WithConcepts([]string{query})

	builder := s.client.GraphQL().Get().
		WithClassName(ClassName).
		WithFields(
			graphql.Field{Name: "chunkId"},
			graphql.Field{Name: "text"},
			graphql.Field{Name: "_additional", Fields: []graphql.Field{{Name: "certainty"}}},
		).
		WithNearText(nearText).
		WithLimit(topK)

	if where := buildWhere(f); where != nil {
		builder = builder.WithWhere(where)
	}

	resp, err := builder.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: nearText query: %w", err)
	}
	hits, err := parseHits(resp)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("vector search complete",
		slog.Int("top_k", topK),
		slog.Int("hits", len(hits)),
	)
	return hits, nil
}

// buildWhere translates a Filter into a Weaviate where clause. Returns nil
// when the filter imposes no constraint.
func buildWhere(f retrieve.Filter) *filters.WhereBuilder {
	var groups []*filters.WhereBuilder

	if len(f.Companies) > 0 {
		ors := make([]*filters.WhereBuilder, 0, len(f.Companies))
		for _, c := range f.Companies {
			ors = append(ors, filters.Where().
				WithPath([]string{"company"}).
				WithOperator(filters.Equal).
				WithValueString(c))
		}
		groups = append(groups, anyOf(ors))
	}
	if len(f.Years) > 0 {
		ors := make([]*filters.WhereBuilder, 0, len(f.Years))
		for _, y := range f.Years {
			ors = append(ors, filters.Where().
				WithPath([]string{"year"}).
				WithOperator(filters.Equal).
				WithValueInt(int64(y)))
		}
		groups = append(groups, anyOf(ors))
	}
	if len(f.Quarters) > 0 {
		ors := make([]*filters.WhereBuilder, 0, len(f.Quarters))
		for _, q := range f.Quarters {
			ors = append(ors, filters.Where().
				WithPath([]string{"quarter"}).
				WithOperator(filters.Equal).
				WithValueString(q))
		}
		groups = append(groups, anyOf(ors))
	}

	switch len(groups) {
	case 0:
		return nil
	case 1:
		return groups[0]
	default:
		return filters.Where().WithOperator(filters.And).WithOperands(groups)
	}
}

// anyOf collapses a single-operand disjunction to the operand itself.
func anyOf(ors []*filters.WhereBuilder) *filters.WhereBuilder {
	if len(ors) == 1 {
		return ors[0]
	}
	return filters.Where().WithOperator(filters.Or).WithOperands(ors)
}

// parseHits extracts ordered hits from a GraphQL Get response.
func parseHits(resp *models.GraphQLResponse) ([]plan.VectorHit, error) {
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("vectorstore: graphql error: %s", resp.Errors[0].Message)
	}
	get, ok := resp.Data["Get"].(map[string]interface{})
	if !ok {
		return nil, nil
	}
	rows, ok := get[ClassName].([]interface{})
	if !ok {
		return nil, nil
	}

	hits := make([]plan.VectorHit, 0, len(rows))
	for _, row := range rows {
		obj, ok := row.(map[string]interface{})
		if !ok {
			continue
		}
		var hit plan.VectorHit
		if v, ok := obj["chunkId"].(string); ok {
			hit.ChunkID = v
		}
		if v, ok := obj["text"].(string); ok {
			hit.Text = v
		}
		if add, ok := obj["_additional"].(map[string]interface{}); ok {
			if c, ok := add["certainty"].(float64); ok {
				hit.Score = c
			}
		}
		hits = append(hits, hit)
	}
	return hits, nil
}
