package usecase

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"time"

	"go.uber.org/zap"

	"echoe-api/internal/domain"
	"echoe-api/internal/secrets"
)

// Reply sources.
const (
	SourceModel    = "model"
	SourceDemo     = "demo"
	SourceFallback = "fallback"
)

const (
	minDemoDelay   = 1000 * time.Millisecond
	demoDelaySpan  = 1500 * time.Millisecond
	emptyModelText = "I'm optimizing the connection. Ask me again in a second?"
)

type TextGenerator interface {
	Generate(ctx context.Context, systemInstruction, message string) (string, error)
}

type ChatService struct {
	llm    TextGenerator
	logger *zap.Logger
	delay  func() time.Duration
	sleep  func(ctx context.Context, d time.Duration)
}

type ChatOutput struct {
	Text   string
	Source string
}

func NewChatService(llm TextGenerator, logger *zap.Logger) (*ChatService, error) {
	if llm == nil {
		return nil, errors.New("usecase: text generator must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{
		llm:    llm,
		logger: logger.Named("chat"),
		delay:  demoDelay,
		sleep:  sleepContext,
	}, nil
}

// Reply answers one chat turn. Apart from a missing message it never fails:
// without a model key it answers from the demo table, and model errors
// degrade to the generic demo reply. Both paths wait a simulated latency.
func (s *ChatService) Reply(ctx context.Context, in domain.ChatTurn) (ChatOutput, error) {
	if in.Message == "" {
		return ChatOutput{}, newError(ErrorInvalidInput, ReasonMissingMessage, nil)
	}

	text, err := s.llm.Generate(ctx, buildSystemInstruction(in.Context), in.Message)
	if err != nil {
		if errors.Is(err, secrets.ErrNotFound) {
			s.sleep(ctx, s.delay())
			return ChatOutput{Text: DemoReply(in.Message), Source: SourceDemo}, nil
		}
		s.logger.Error("gemini api error", zap.Error(err))
		return s.Fallback(ctx), nil
	}
	if strings.TrimSpace(text) == "" {
		text = emptyModelText
	}
	return ChatOutput{Text: text, Source: SourceModel}, nil
}

// Fallback is the reply for a turn that could not be read at all: the
// generic demo text after the simulated latency.
func (s *ChatService) Fallback(ctx context.Context) ChatOutput {
	s.sleep(ctx, s.delay())
	return ChatOutput{Text: DemoReply(""), Source: SourceFallback}
}

func buildSystemInstruction(dashboard string) string {
	if strings.TrimSpace(dashboard) == "" {
		dashboard = "No context provided"
	}
	return strings.Join([]string{
		`You are "echoe", a hyper-efficient, friendly AI commerce assistant for a solopreneur in the year 2026.`,
		"",
		"Role: You manage the user's online store (inventory, orders, customer chats) from a single chat interface.",
		"Tone: Professional, succinct, slightly witty, and reassuring. Avoid technical jargon.",
		"",
		"Current Dashboard State (Context):",
		dashboard,
		"",
		"Task: Respond to the user's message based on the context. If they ask to do something (like process an order), confirm it's done. If they ask for info, provide it clearly.",
	}, "\n")
}

// demoDelay returns a duration in [1s, 2.5s).
func demoDelay() time.Duration {
	return minDemoDelay + rand.N(demoDelaySpan)
}

func sleepContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
