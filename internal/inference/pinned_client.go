package inference

import "context"

// PinnedModelClient forces every request to a fixed model. It lets one
// FallbackClient span providers whose model identifiers differ.
type PinnedModelClient struct {
	next  LLMClient
	model string
}

// PinModel wraps next so requests use model. An empty model returns next.
func PinModel(next LLMClient, model string) LLMClient {
	if next == nil || model == "" {
		return next
	}
	return &PinnedModelClient{next: next, model: model}
}

func (c *PinnedModelClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	req.Model = c.model
	return c.next.Complete(ctx, req)
}
