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
	"errors"
	"testing"
	"time"
)

// stubClient implements LLMClient with a scripted sequence of results.
type stubClient struct {
	calls   int
	results []string
	errs    []error
}

func (s *stubClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	return s.next()
}

func (s *stubClient) Chat(ctx context.Context, messages []Message, params GenerationParams) (string, error) {
	return s.next()
}

func (s *stubClient) next() (string, error) {
	i := s.calls
	s.calls++
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	return s.results[i], s.errs[i]
}

func TestRetryClient_SucceedsFirstTry(t *testing.T) {
	stub := &stubClient{results: []string{"ok"}, errs: []error{nil}}
	rc := NewRetryClient(stub, time.Second, nil)

	out, err := rc.Generate(context.Background(), "p", GenerationParams{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "ok" || stub.calls != 1 {
		t.Errorf("out = %q, calls = %d", out, stub.calls)
	}
}

func TestRetryClient_RecoverOnSecondTry(t *testing.T) {
	stub := &stubClient{
		results: []string{"", "recovered"},
		errs:    []error{errors.New("connection reset"), nil},
	}
	rc := NewRetryClient(stub, time.Second, nil)

	out, err := rc.Chat(context.Background(), []Message{{Role: "user", Content: "q"}}, GenerationParams{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "recovered" || stub.calls != 2 {
		t.Errorf("out = %q, calls = %d", out, stub.calls)
	}
}

func TestRetryClient_GivesUpAfterOneRetry(t *testing.T) {
	boom := errors.New("backend down")
	stub := &stubClient{results: []string{"", ""}, errs: []error{boom, boom}}
	rc := NewRetryClient(stub, time.Second, nil)

	_, err := rc.Generate(context.Background(), "p", GenerationParams{})
	if !errors.Is(err, boom) {
		t.Errorf("expected backend error, got: %v", err)
	}
	if stub.calls != 2 {
		t.Errorf("calls = %d, want 2", stub.calls)
	}
}

func TestRetryClient_CanceledContextNotRetried(t *testing.T) {
	stub := &stubClient{
		results: []string{"", ""},
		errs:    []error{errors.New("canceled mid-flight"), nil},
	}
	rc := NewRetryClient(stub, time.Second, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := rc.Generate(ctx, "p", GenerationParams{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got: %v", err)
	}
	if stub.calls != 1 {
		t.Errorf("calls = %d, want 1", stub.calls)
	}
}
