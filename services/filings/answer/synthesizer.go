// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package answer turns retrieved evidence into a user-facing answer and
// judges that answer's sufficiency. Both halves run on the shared LLM
// client; the synthesizer is total (empty evidence yields a fixed
// no-information answer without a model call), while the critic returns a
// structured sufficiency verdict.
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/FilingsAgent/services/filings/plan"
	"github.com/AleutianAI/FilingsAgent/services/llm"
)

var answerTracer = otel.Tracer("aleutian.filings.answer")

// NoInformationAnswer is the fixed response for empty evidence. Produced
// without a model call so synthesis never hallucinates on nothing.
const NoInformationAnswer = "No information matching this request was found in the indexed filings."

const synthesizerSystemPrompt = `You are a financial filings analyst. Answer the user's question using ONLY the evidence provided. Quote figures exactly as they appear. If the evidence does not contain the answer, say so plainly. Cite the source filing (company, period, section or chunk) for every claim.`

// Synthesizer produces an answer from one attempt's evidence.
//
// # Thread Safety
//
// Safe for concurrent use when the underlying client is.
type Synthesizer struct {
	client llm.LLMClient
	logger *slog.Logger
}

// NewSynthesizer creates a Synthesizer on the given client.
func NewSynthesizer(client llm.LLMClient, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{client: client, logger: logger}
}

// Synthesize generates the answer text for one retrieval attempt.
//
// # Description
//
//	Empty evidence returns NoInformationAnswer immediately. Otherwise the
//	prompt carries the original question, the plan's presentation
//	guidance, and every evidence item with its provenance, and the model
//	response is returned verbatim.
//
// # Inputs
//
//   - ctx - Context for cancellation. Must not be nil.
//   - rawQuery - The user's original question.
//   - ev - This attempt's evidence. Must not be nil.
//
// # Outputs
//
//   - string: The answer text. Never empty on success.
//   - error: Model failure; the caller decides how the attempt degrades.
func (s *Synthesizer) Synthesize(ctx context.Context, rawQuery string, ev *plan.EvidenceSet) (string, error) {
	ctx, span := answerTracer.Start(ctx, "answer.Synthesize")
	defer span.End()
	span.SetAttributes(
		attribute.Int("evidence.graph", len(ev.GraphResults)),
		attribute.Int("evidence.vector", len(ev.VectorResults)),
	)

	if ev.Empty() {
		span.SetAttributes(attribute.Bool("no_information", true))
		return NoInformationAnswer, nil
	}

	out, err := s.client.Chat(ctx, []llm.Message{
		{Role: "system", Content: synthesizerSystemPrompt},
		{Role: "user", Content: buildSynthesisPrompt(rawQuery, ev)},
	}, llm.GenerationParams{})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("answer: synthesis failed: %w", err)
	}
	s.logger.Debug("answer synthesized",
		slog.Int("answer_len", len(out)),
	)
	return out, nil
}

// buildSynthesisPrompt renders the question, guidance, and evidence into
// one user message. Evidence items keep their store order.
func buildSynthesisPrompt(rawQuery string, ev *plan.EvidenceSet) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Question: %s\n\n", rawQuery)
	if ev.SourcePlan.OutputFormat != "" {
		fmt.Fprintf(&b, "Desired answer shape: %s\n\n", ev.SourcePlan.OutputFormat)
	}

	if len(ev.GraphResults) > 0 {
		b.WriteString("Filing sections:\n")
		for i, rec := range ev.GraphResults {
			fmt.Fprintf(&b, "[S%d] %s %d %s — %s (%s)\n%s\n\n",
				i+1, rec.Company, rec.Year, rec.Quarter, rec.Section, rec.Filename, rec.Text)
		}
	}
	if len(ev.VectorResults) > 0 {
		b.WriteString("Relevant passages:\n")
		for i, hit := range ev.VectorResults {
			fmt.Fprintf(&b, "[P%d] chunk %s (similarity %.2f)\n%s\n\n",
				i+1, hit.ChunkID, hit.Score, hit.Text)
		}
	}
	if len(ev.Failures) > 0 {
		b.WriteString("Note: some evidence sources were unavailable for this attempt:\n")
		for _, f := range ev.Failures {
			fmt.Fprintf(&b, "- %s\n", f.Reason)
		}
	}
	return b.String()
}
