// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// NewClientFromEnv selects and constructs a backend from the LLM_PROVIDER
// environment variable.
//
// Description:
//
//	Recognized providers are "openai" (the default; also covers local
//	Ollama via OPENAI_BASE_URL), "anthropic", and "gemini". Each provider
//	reads its own credential and model variables.
//
// Outputs:
//   - LLMClient: The configured client.
//   - error: Non-nil if the provider is unknown or its configuration is
//     incomplete.
func NewClientFromEnv() (LLMClient, error) {
	provider := strings.ToLower(strings.TrimSpace(os.Getenv("LLM_PROVIDER")))
	if provider == "" {
		provider = "openai"
	}
	slog.Info("Selecting LLM provider", slog.String("provider", provider))

	switch provider {
	case "openai", "ollama":
		return NewOpenAIClient()
	case "anthropic":
		return NewAnthropicClient()
	case "gemini":
		return NewGeminiClient()
	default:
		return nil, fmt.Errorf("llm: unknown provider %q (expected openai, anthropic, or gemini)", provider)
	}
}
