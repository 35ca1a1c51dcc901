// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package answer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/FilingsAgent/services/filings/plan"
	"github.com/AleutianAI/FilingsAgent/services/llm"
)

const criticSystemPrompt = `You are a strict quality reviewer for answers about financial filings. Judge whether the answer fully and accurately addresses the question given the evidence. Respond with ONLY a JSON object of the form {"decision": "ACCEPT" or "REFINE", "feedback": "one or two sentences"}. ACCEPT only if the answer is complete, grounded in the evidence, and directly responsive. Otherwise REFINE and say what is missing.`

// criticVerdict is the model's wire format.
type criticVerdict struct {
	Decision string `json:"decision"`
	Feedback string `json:"feedback"`
}

// jsonObjectPattern salvages a JSON object from a response that wraps it
// in prose or a code fence.
var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// Critic judges answer sufficiency.
//
// # Thread Safety
//
// Safe for concurrent use when the underlying client is.
type Critic struct {
	client llm.LLMClient
	logger *slog.Logger
}

// NewCritic creates a Critic on the given client.
func NewCritic(client llm.LLMClient, logger *slog.Logger) *Critic {
	if logger == nil {
		logger = slog.Default()
	}
	return &Critic{client: client, logger: logger}
}

// Critique evaluates one synthesized answer.
//
// # Description
//
//	Sends the question, answer, and an evidence summary to the model and
//	parses its {"decision", "feedback"} verdict. A decision of ACCEPT maps
//	to a sufficient verdict; REFINE maps to insufficient with the model's
//	feedback as the reason. A response that cannot be parsed, or any model
//	failure, is returned as an error — the loop treats that as an
//	insufficient attempt rather than silently accepting an unjudged
//	answer.
//
// # Inputs
//
//   - ctx - Context for cancellation. Must not be nil.
//   - rawQuery - The user's original question.
//   - answerText - The synthesized answer under review.
//   - ev - The evidence the answer was built from. Must not be nil.
//
// # Outputs
//
//   - plan.Verdict: The sufficiency judgment.
//   - error: Model failure or an unparseable verdict.
func (c *Critic) Critique(ctx context.Context, rawQuery, answerText string, ev *plan.EvidenceSet) (plan.Verdict, error) {
	ctx, span := answerTracer.Start(ctx, "answer.Critique")
	defer span.End()

	out, err := c.client.Chat(ctx, []llm.Message{
		{Role: "system", Content: criticSystemPrompt},
		{Role: "user", Content: buildCritiquePrompt(rawQuery, answerText, ev)},
	}, llm.GenerationParams{})
	if err != nil {
		span.RecordError(err)
		return plan.Verdict{}, fmt.Errorf("answer: critique failed: %w", err)
	}

	verdict, err := parseVerdict(out)
	if err != nil {
		span.RecordError(err)
		return plan.Verdict{}, err
	}
	span.SetAttributes(attribute.Bool("sufficient", verdict.Sufficient))
	c.logger.Debug("answer critiqued",
		slog.Bool("sufficient", verdict.Sufficient),
		slog.String("reason", verdict.Reason),
	)
	return verdict, nil
}

// parseVerdict extracts the decision from a model response.
func parseVerdict(response string) (plan.Verdict, error) {
	raw := jsonObjectPattern.FindString(response)
	if raw == "" {
		return plan.Verdict{}, fmt.Errorf("answer: critic response contains no JSON object: %q", truncate(response, 120))
	}

	var cv criticVerdict
	if err := json.Unmarshal([]byte(raw), &cv); err != nil {
		return plan.Verdict{}, fmt.Errorf("answer: parsing critic verdict: %w", err)
	}

	switch strings.ToUpper(strings.TrimSpace(cv.Decision)) {
	case "ACCEPT":
		return plan.Verdict{Sufficient: true, Reason: cv.Feedback}, nil
	case "REFINE":
		reason := cv.Feedback
		if reason == "" {
			reason = "critic requested refinement"
		}
		return plan.Verdict{Sufficient: false, Reason: reason}, nil
	default:
		return plan.Verdict{}, fmt.Errorf("answer: unknown critic decision %q", cv.Decision)
	}
}

func buildCritiquePrompt(rawQuery, answerText string, ev *plan.EvidenceSet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nAnswer under review:\n%s\n\n", rawQuery, answerText)
	fmt.Fprintf(&b, "Evidence available: %d filing sections, %d passages.\n",
		len(ev.GraphResults), len(ev.VectorResults))
	for i, rec := range ev.GraphResults {
		fmt.Fprintf(&b, "[S%d] %s %d %s — %s\n", i+1, rec.Company, rec.Year, rec.Quarter, rec.Section)
	}
	for i, hit := range ev.VectorResults {
		fmt.Fprintf(&b, "[P%d] %s: %s\n", i+1, hit.ChunkID, truncate(hit.Text, 200))
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
