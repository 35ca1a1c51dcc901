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
	"context"
	"log/slog"
	"time"
)

// RetryClient wraps an LLMClient with a per-call timeout and one bounded
// retry.
//
// Description:
//
//	Model calls fail transiently (connection resets, 5xx, slow cold
//	starts). One immediate retry recovers most of those without hiding a
//	real outage behind a long backoff loop. A failure after the retry is
//	returned to the caller, who decides how to degrade.
//
// Thread Safety: RetryClient is safe for concurrent use when the wrapped
// client is.
type RetryClient struct {
	inner       LLMClient
	callTimeout time.Duration
	logger      *slog.Logger
}

// NewRetryClient wraps inner. A non-positive callTimeout defaults to 60s.
func NewRetryClient(inner LLMClient, callTimeout time.Duration, logger *slog.Logger) *RetryClient {
	if callTimeout <= 0 {
		callTimeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryClient{inner: inner, callTimeout: callTimeout, logger: logger}
}

// Generate implements LLMClient.
func (r *RetryClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	return r.do(ctx, func(cctx context.Context) (string, error) {
		return r.inner.Generate(cctx, prompt, params)
	})
}

// Chat implements LLMClient.
func (r *RetryClient) Chat(ctx context.Context, messages []Message, params GenerationParams) (string, error) {
	return r.do(ctx, func(cctx context.Context) (string, error) {
		return r.inner.Chat(cctx, messages, params)
	})
}

func (r *RetryClient) do(ctx context.Context, call func(context.Context) (string, error)) (string, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		cctx, cancel := context.WithTimeout(ctx, r.callTimeout)
		out, err := call(cctx)
		cancel()
		if err == nil {
			return out, nil
		}
		lastErr = err
		// The caller's context ending is not retryable.
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if attempt == 0 {
			r.logger.Warn("LLM call failed, retrying once",
				slog.String("error", SafeLogString(err.Error())),
			)
		}
	}
	return "", lastErr
}
