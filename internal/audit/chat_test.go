package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/love-auditor/internal/inference"
	"github.com/wolfman30/love-auditor/pkg/logging"
)

func testRoast() RoastResult {
	analysis := "He replies once a fortnight."
	return RoastResult{ToxicityScore: 81, Verdict: "GHOST MODE", ShortAnalysis: "Boo.", HiddenRedFlagsCount: 3, DetailedAnalysis: &analysis}
}

func TestChatClient_ReplyBuildsFullContext(t *testing.T) {
	llm := &scriptedLLM{replies: []scriptedReply{{text: "<think>be mean</think> Bestie, he said \"k\"."}}}
	vision := &countingTranscriber{transcript: "[Partner]: k"}
	client := NewChatClient(llm, vision, ChatConfig{Model: "text-model"}, logging.New("error"), nil)

	history := []ChatTurn{
		{Role: ChatRoleUser, Text: "is he into me?"},
		{Role: ChatRoleAuditor, Text: "no."},
		{Role: ChatRoleUser, Text: "  "},
	}
	input := AuditInput{Gender: GenderMale, Status: StatusDating, ChatText: "wyd", Screenshot: "aGVsbG8="}

	reply, err := client.Reply(context.Background(), history, "what did he say?", testRoast(), input)
	require.NoError(t, err)
	assert.Equal(t, "Bestie, he said \"k\".", reply)
	assert.Equal(t, 1, vision.calls())

	require.Equal(t, 1, llm.calls())
	req := llm.requests[0]
	require.Len(t, req.System, 1)
	assert.Contains(t, req.System[0], "GHOST MODE")
	assert.Contains(t, req.System[0], "He replies once a fortnight.")
	assert.Contains(t, req.System[0], `Text Evidence: "wyd"`)
	assert.Contains(t, req.System[0], `Screenshot Transcript: "[Partner]: k"`)
	assert.Less(t, req.Temperature, float32(0))

	require.Len(t, req.Messages, 3)
	assert.Equal(t, inference.ChatMessage{Role: inference.ChatRoleUser, Content: "is he into me?"}, req.Messages[0])
	assert.Equal(t, inference.ChatMessage{Role: inference.ChatRoleAssistant, Content: "no."}, req.Messages[1])
	assert.Equal(t, inference.ChatMessage{Role: inference.ChatRoleUser, Content: "what did he say?"}, req.Messages[2])
}

func TestChatClient_TwoFailuresReturnApology(t *testing.T) {
	llm := &scriptedLLM{replies: []scriptedReply{{err: errors.New("reset by peer")}, {err: errors.New("502")}}}
	client := NewChatClient(llm, nil, ChatConfig{Model: "m"}, logging.New("error"), nil)

	reply, err := client.Reply(context.Background(), nil, "hello?", testRoast(), AuditInput{ChatText: "x"})
	require.NoError(t, err)
	assert.Equal(t, ChatApology, reply)
	assert.Equal(t, 2, llm.calls())
}

func TestChatClient_RetryRecomputesContext(t *testing.T) {
	llm := &scriptedLLM{replies: []scriptedReply{{text: "<think>only thinking</think>"}, {text: "fine."}}}
	vision := &countingTranscriber{transcript: "[Me]: hi"}
	client := NewChatClient(llm, vision, ChatConfig{Model: "m"}, nil, nil)

	reply, err := client.Reply(context.Background(), nil, "hello?", testRoast(), AuditInput{Screenshot: "aGVsbG8="})
	require.NoError(t, err)
	assert.Equal(t, "fine.", reply)
	assert.Equal(t, 2, llm.calls())
	assert.Equal(t, 2, vision.calls())
}

func TestChatClient_Misconfigured(t *testing.T) {
	llm := &scriptedLLM{replies: []scriptedReply{{err: inference.ErrNoCredentials}}}
	client := NewChatClient(llm, nil, ChatConfig{Model: "m"}, nil, nil)

	reply, err := client.Reply(context.Background(), nil, "hello?", testRoast(), AuditInput{ChatText: "x"})
	require.ErrorIs(t, err, ErrMisconfigured)
	assert.Equal(t, ChatApology, reply)
	assert.Equal(t, 1, llm.calls())
}
