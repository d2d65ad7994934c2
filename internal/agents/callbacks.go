package agents

import (
	"context"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	ecmodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
)

type startKey struct{}

// newLogHandler logs tool calls, model token usage and component errors.
func newLogHandler(logger *zap.Logger) callbacks.Handler {
	return callbacks.NewHandlerBuilder().
		OnStartFn(func(ctx context.Context, info *callbacks.RunInfo, input callbacks.CallbackInput) context.Context {
			if info == nil {
				return ctx
			}
			if info.Component == components.ComponentOfTool {
				if in := tool.ConvCallbackInput(input); in != nil {
					logger.Info("tool call", zap.String("tool", info.Name), zap.String("args", in.ArgumentsInJSON))
				}
			}
			return context.WithValue(ctx, startKey{}, time.Now())
		}).
		OnEndFn(func(ctx context.Context, info *callbacks.RunInfo, output callbacks.CallbackOutput) context.Context {
			if info == nil {
				return ctx
			}
			fields := []zap.Field{zap.String("name", info.Name), zap.String("component", string(info.Component))}
			if start, ok := ctx.Value(startKey{}).(time.Time); ok {
				fields = append(fields, zap.Duration("took", time.Since(start)))
			}
			if info.Component == components.ComponentOfChatModel {
				if out := ecmodel.ConvCallbackOutput(output); out != nil && out.TokenUsage != nil {
					fields = append(fields,
						zap.Int("prompt_tokens", out.TokenUsage.PromptTokens),
						zap.Int("completion_tokens", out.TokenUsage.CompletionTokens))
				}
			}
			logger.Debug("component done", fields...)
			return ctx
		}).
		OnErrorFn(func(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
			name := ""
			if info != nil {
				name = info.Name
			}
			logger.Error("component failed", zap.String("name", name), zap.Error(err))
			return ctx
		}).
		OnStartWithStreamInputFn(func(ctx context.Context, _ *callbacks.RunInfo, input *schema.StreamReader[callbacks.CallbackInput]) context.Context {
			input.Close()
			return ctx
		}).
		OnEndWithStreamOutputFn(func(ctx context.Context, _ *callbacks.RunInfo, output *schema.StreamReader[callbacks.CallbackOutput]) context.Context {
			output.Close()
			return ctx
		}).
		Build()
}
