// Package app wires configuration, secrets, integrations and usecases into
// the proxy handler shared by the Lambda and dev server entry points.
package app

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"go.uber.org/zap"

	"echoe-api/handler"
	"echoe-api/internal/analytics"
	"echoe-api/internal/config"
	"echoe-api/internal/integrations/gemini"
	"echoe-api/internal/integrations/paramstore"
	"echoe-api/internal/integrations/resend"
	"echoe-api/internal/integrations/turnstile"
	"echoe-api/internal/secrets"
	"echoe-api/internal/usecase"
)

// ParamStore returns an SSM-backed parameter getter when prefix is set and
// nil otherwise, so secrets come from the environment only.
func ParamStore(ctx context.Context, prefix string) (secrets.ParamGetter, error) {
	if prefix == "" {
		return nil, nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	client, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("create SSM client: %w", err)
	}
	return client, nil
}

func NewHandler(cfg config.Config, getenv func(string) string, params secrets.ParamGetter, logger *zap.Logger) (*handler.Handler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	resolver, err := secrets.NewResolver(getenv, params, cfg.ParamPrefix)
	if err != nil {
		return nil, fmt.Errorf("create secrets resolver: %w", err)
	}

	mailer, err := resend.NewClient(resolver)
	if err != nil {
		return nil, fmt.Errorf("create resend client: %w", err)
	}
	verifier, err := turnstile.NewClient(resolver)
	if err != nil {
		return nil, fmt.Errorf("create turnstile client: %w", err)
	}
	llm, err := gemini.NewClient(resolver, gemini.WithModel(cfg.GeminiModel))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	tracker := analytics.NewClient(cfg.PostHogKey, cfg.PostHogHost, logger)

	waitlist, err := usecase.NewWaitlistService(mailer, verifier, tracker, cfg.EmailFrom, logger)
	if err != nil {
		return nil, fmt.Errorf("create waitlist service: %w", err)
	}
	chat, err := usecase.NewChatService(llm, logger)
	if err != nil {
		return nil, fmt.Errorf("create chat service: %w", err)
	}
	return handler.NewHandler(waitlist, chat, logger)
}
