package agents

import (
	"context"
	"errors"
	"io"

	"github.com/cloudwego/eino/schema"
)

// toolCallChecker reads a streamed model reply until it finds a tool call.
// Gemini and DeepSeek may stream text before the tool call chunk, so the
// first frame alone is not enough.
func toolCallChecker(_ context.Context, sr *schema.StreamReader[*schema.Message]) (bool, error) {
	defer sr.Close()
	for {
		msg, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if len(msg.ToolCalls) > 0 {
			return true, nil
		}
	}
}
