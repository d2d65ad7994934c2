// Package agents runs the broker chat agent: a ReAct loop over the broker
// tools with per-session history.
package agents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/dyike/BrokerGo/internal/storage/sqlite"
)

const titleLength = 60

var ErrEmptyMessage = errors.New("message is empty")

// SessionStore keeps chat history.
type SessionStore interface {
	CreateSession(ctx context.Context, session sqlite.SessionRecord) error
	AppendMessage(ctx context.Context, msg sqlite.MessageRecord) (int, error)
	ListMessages(ctx context.Context, sessionID string) ([]sqlite.MessageRecord, error)
	UpdateSessionStatus(ctx context.Context, sessionID, status string) error
	DeleteSession(ctx context.Context, sessionID string) error
}

var _ SessionStore = (*sqlite.Store)(nil)

// runner is the part of react.Agent the broker uses.
type runner interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...agent.AgentOption) (*schema.Message, error)
	Stream(ctx context.Context, input []*schema.Message, opts ...agent.AgentOption) (*schema.StreamReader[*schema.Message], error)
}

type Broker struct {
	runner   runner
	sessions SessionStore
	handler  callbacks.Handler
	logger   *zap.Logger

	locks sync.Map // session id -> *sync.Mutex
}

// Config wires a Broker.
type Config struct {
	Model    model.ToolCallingChatModel
	Tools    []tool.BaseTool
	MaxStep  int
	Sessions SessionStore
	Logger   *zap.Logger
}

func NewBroker(ctx context.Context, cfg Config) (*Broker, error) {
	if cfg.Model == nil {
		return nil, errors.New("chat model is required")
	}
	maxStep := cfg.MaxStep
	if maxStep <= 0 {
		maxStep = 12
	}
	ra, err := react.NewAgent(ctx, &react.AgentConfig{
		ToolCallingModel: cfg.Model,
		ToolsConfig: compose.ToolsNodeConfig{
			Tools: cfg.Tools,
		},
		MaxStep: maxStep,
		MessageModifier: func(_ context.Context, input []*schema.Message) []*schema.Message {
			return append([]*schema.Message{schema.SystemMessage(systemPrompt)}, input...)
		},
		StreamToolCallChecker: toolCallChecker,
	})
	if err != nil {
		return nil, fmt.Errorf("create react agent: %w", err)
	}
	return newBroker(ra, cfg.Sessions, cfg.Logger), nil
}

func newBroker(r runner, sessions SessionStore, logger *zap.Logger) *Broker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broker{
		runner:   r,
		sessions: sessions,
		handler:  newLogHandler(logger),
		logger:   logger,
	}
}

func (b *Broker) lock(sessionID string) func() {
	v, _ := b.locks.LoadOrStore(sessionID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// history loads the session's user and assistant turns and appends the new
// user message. The session is created on first use.
func (b *Broker) history(ctx context.Context, sessionID, message string) ([]*schema.Message, error) {
	if err := b.sessions.CreateSession(ctx, sqlite.SessionRecord{
		ID:     sessionID,
		Title:  title(message),
		Status: sqlite.StatusActive,
	}); err != nil {
		return nil, err
	}
	records, err := b.sessions.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	msgs := make([]*schema.Message, 0, len(records)+1)
	for _, r := range records {
		switch r.Role {
		case string(schema.User):
			msgs = append(msgs, schema.UserMessage(r.Content))
		case string(schema.Assistant):
			msgs = append(msgs, schema.AssistantMessage(r.Content, nil))
		}
	}
	return append(msgs, schema.UserMessage(message)), nil
}

func title(message string) string {
	message = strings.Join(strings.Fields(message), " ")
	if utf8.RuneCountInString(message) <= titleLength {
		return message
	}
	return string([]rune(message)[:titleLength])
}

// Chat answers message within sessionID and stores both turns.
func (b *Broker) Chat(ctx context.Context, sessionID, message string) (string, error) {
	return b.run(ctx, sessionID, message, func(msgs []*schema.Message) (string, error) {
		reply, err := b.runner.Generate(ctx, msgs, agent.WithComposeOptions(compose.WithCallbacks(b.handler)))
		if err != nil {
			return "", err
		}
		return reply.Content, nil
	})
}

// Stream is Chat with the reply delivered in chunks to onChunk. An error
// from onChunk stops the stream.
func (b *Broker) Stream(ctx context.Context, sessionID, message string, onChunk func(string) error) (string, error) {
	return b.run(ctx, sessionID, message, func(msgs []*schema.Message) (string, error) {
		sr, err := b.runner.Stream(ctx, msgs, agent.WithComposeOptions(compose.WithCallbacks(b.handler)))
		if err != nil {
			return "", err
		}
		defer sr.Close()

		var reply strings.Builder
		for {
			chunk, err := sr.Recv()
			if errors.Is(err, io.EOF) {
				return reply.String(), nil
			}
			if err != nil {
				return reply.String(), err
			}
			if chunk == nil || chunk.Content == "" {
				continue
			}
			reply.WriteString(chunk.Content)
			if err := onChunk(chunk.Content); err != nil {
				return reply.String(), err
			}
		}
	})
}

func (b *Broker) run(ctx context.Context, sessionID, message string, generate func([]*schema.Message) (string, error)) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", ErrEmptyMessage
	}
	if sessionID == "" {
		return "", errors.New("session id is required")
	}
	unlock := b.lock(sessionID)
	defer unlock()

	msgs, err := b.history(ctx, sessionID, message)
	if err != nil {
		return "", fmt.Errorf("load history: %w", err)
	}
	b.logger.Info("chat turn", zap.String("session", sessionID), zap.Int("history", len(msgs)-1))

	reply, genErr := generate(msgs)
	if genErr != nil {
		b.logger.Error("agent failed", zap.String("session", sessionID), zap.Error(genErr))
		if err := b.sessions.UpdateSessionStatus(ctx, sessionID, sqlite.StatusError); err != nil {
			b.logger.Warn("update session status", zap.Error(err))
		}
		return "", fmt.Errorf("agent: %w", genErr)
	}

	for _, m := range []sqlite.MessageRecord{
		{SessionID: sessionID, Role: string(schema.User), Content: message},
		{SessionID: sessionID, Role: string(schema.Assistant), Content: reply},
	} {
		if _, err := b.sessions.AppendMessage(ctx, m); err != nil {
			return reply, fmt.Errorf("save %s message: %w", m.Role, err)
		}
	}
	if err := b.sessions.UpdateSessionStatus(ctx, sessionID, sqlite.StatusActive); err != nil {
		b.logger.Warn("update session status", zap.Error(err))
	}
	return reply, nil
}

// Reset forgets the history of sessionID.
func (b *Broker) Reset(ctx context.Context, sessionID string) error {
	unlock := b.lock(sessionID)
	defer unlock()
	if err := b.sessions.DeleteSession(ctx, sessionID); err != nil {
		return err
	}
	// A reset session needs no lock until it is used again.
	b.locks.Delete(sessionID)
	b.logger.Info("session reset", zap.String("session", sessionID))
	return nil
}
