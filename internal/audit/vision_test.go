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

func TestVisionClient_Transcribe(t *testing.T) {
	llm := &scriptedLLM{replies: []scriptedReply{{text: " [Me]: hey\n[Partner]: k "}}}
	client := NewVisionClient(llm, VisionConfig{Model: "vision-model"}, logging.New("error"), nil)

	got := client.Transcribe(context.Background(), "aGVsbG8=")
	assert.Equal(t, "[Me]: hey\n[Partner]: k", got)

	require.Equal(t, 1, llm.calls())
	req := llm.requests[0]
	assert.Equal(t, "vision-model", req.Model)
	assert.InDelta(t, 0.1, req.Temperature, 0.0001)
	require.Len(t, req.System, 1)
	assert.Contains(t, req.System[0], "transcription tool")
	require.Len(t, req.Messages, 1)
	assert.Equal(t, inference.ChatRoleUser, req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content, "[Me]:")
	assert.Contains(t, req.Messages[0].Content, "[Partner]:")
	assert.Equal(t, "data:image/png;base64,aGVsbG8=", req.Messages[0].ImageURL)
}

func TestVisionClient_FailureSentinels(t *testing.T) {
	t.Run("transport error", func(t *testing.T) {
		llm := &scriptedLLM{replies: []scriptedReply{{err: errors.New("502 bad gateway")}}}
		client := NewVisionClient(llm, VisionConfig{Model: "m"}, logging.New("error"), nil)
		got := client.Transcribe(context.Background(), "data:image/jpeg;base64,aGVsbG8=")
		assert.Equal(t, VisionFailedSentinel, got)
		assert.True(t, IsSentinel(got))
	})

	t.Run("no credentials", func(t *testing.T) {
		llm := &scriptedLLM{replies: []scriptedReply{{err: inference.ErrNoCredentials}}}
		client := NewVisionClient(llm, VisionConfig{Model: "m"}, nil, nil)
		assert.Equal(t, VisionFailedSentinel, client.Transcribe(context.Background(), "aGVsbG8="))
	})

	t.Run("empty content", func(t *testing.T) {
		llm := &scriptedLLM{replies: []scriptedReply{{text: "   "}}}
		client := NewVisionClient(llm, VisionConfig{Model: "m"}, nil, nil)
		got := client.Transcribe(context.Background(), "aGVsbG8=")
		assert.Equal(t, VisionEmptySentinel, got)
		assert.True(t, IsSentinel(got))
	})
}

func TestImageDataURL(t *testing.T) {
	assert.Equal(t, "data:image/webp;base64,AA==", imageDataURL("data:image/webp;base64,AA=="))
	assert.Equal(t, "https://cdn.example.com/a.png", imageDataURL("https://cdn.example.com/a.png"))
	assert.Equal(t, "data:image/png;base64,AA==", imageDataURL(" AA== "))
}
