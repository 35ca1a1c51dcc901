// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides the language-model clients used by answer synthesis
// and critique. Backends are reached via raw net/http: any OpenAI-compatible
// chat completions endpoint (OpenAI itself, or a local Ollama server), the
// Anthropic Messages API, and the Gemini generateContent API.
package llm

import "context"

// Message is one turn of a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerationParams are optional sampling controls. Nil pointer fields are
// omitted from the request so the backend's defaults apply.
type GenerationParams struct {
	Temperature   *float32
	MaxTokens     *int
	TopP          *float32
	Stop          []string
	ModelOverride string
}

// LLMClient is the generation interface consumed by the answer pipeline.
//
// Implementations must be safe for concurrent use.
type LLMClient interface {
	// Generate wraps a single prompt in a minimal conversation and returns
	// the assistant's text.
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)

	// Chat sends a full conversation and returns the assistant's text.
	Chat(ctx context.Context, messages []Message, params GenerationParams) (string, error)
}
