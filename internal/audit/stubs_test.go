package audit

import (
	"context"
	"sync"

	"github.com/wolfman30/love-auditor/internal/inference"
)

type scriptedReply struct {
	text string
	err  error
}

// scriptedLLM replays replies in order and repeats the last one.
type scriptedLLM struct {
	mu       sync.Mutex
	replies  []scriptedReply
	requests []inference.LLMRequest
}

func (s *scriptedLLM) Complete(_ context.Context, req inference.LLMRequest) (inference.LLMResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := len(s.requests)
	s.requests = append(s.requests, req)
	if len(s.replies) == 0 {
		return inference.LLMResponse{}, nil
	}
	if idx >= len(s.replies) {
		idx = len(s.replies) - 1
	}
	r := s.replies[idx]
	return inference.LLMResponse{Text: r.text}, r.err
}

func (s *scriptedLLM) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

type countingTranscriber struct {
	mu         sync.Mutex
	transcript string
	images     []string
}

func (c *countingTranscriber) Transcribe(_ context.Context, image string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.images = append(c.images, image)
	return c.transcript
}

func (c *countingTranscriber) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.images)
}
