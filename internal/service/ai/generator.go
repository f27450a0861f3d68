package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/ledastudio/tablehost/backend/internal/config"
)

// ErrProviderUnavailable is returned when every configured provider failed.
var ErrProviderUnavailable = errors.New("all text-generation providers failed")

// Message is one transcript entry passed to the model.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// Request describes one generation call.
type Request struct {
	System  string
	History []Message
	Prompt  string
}

// Generator is the capability the dialogue components consume. Implementations
// must be time-boxed; callers rely on calls never hanging.
type Generator interface {
	// Generate produces free text.
	Generate(ctx context.Context, req Request) (string, error)
	// GenerateJSON produces structured output decoded into out.
	GenerateJSON(ctx context.Context, req Request, out any) error
}

// Disabled is a Generator for deployments without model credentials. Every
// call fails with ErrProviderUnavailable, which pushes the dialogue components
// onto their deterministic fallbacks.
type Disabled struct{}

func (Disabled) Generate(context.Context, Request) (string, error) {
	return "", ErrProviderUnavailable
}

func (Disabled) GenerateJSON(context.Context, Request, any) error {
	return ErrProviderUnavailable
}

type provider struct {
	name  string
	chain compose.Runnable[map[string]any, *schema.Message]
}

// Service implements Generator over an ordered provider chain. Providers are
// tried in sequence under a uniform per-attempt timeout; the first success
// wins.
type Service struct {
	providers []provider
	timeout   time.Duration
}

// NewService builds the provider chain from configuration: the primary model
// followed by any fallback models.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	names := append([]string{cfg.Model}, cfg.FallbackModels...)

	svc := &Service{timeout: cfg.CallTimeout}
	if svc.timeout <= 0 {
		svc.timeout = 20 * time.Second
	}

	for _, name := range names {
		chatModel, err := cfg.NewChatModel(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to create chat model %s: %w", name, err)
		}

		promptTemplate := prompt.FromMessages(
			schema.FString,
			schema.SystemMessage("{system}"),
			schema.MessagesPlaceholder("history", true),
			schema.UserMessage("{query}"),
		)

		chain := compose.NewChain[map[string]any, *schema.Message]()
		chain.AppendChatTemplate(promptTemplate)
		chain.AppendChatModel(chatModel)

		runnable, err := chain.Compile(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to compile chain for %s: %w", name, err)
		}

		svc.providers = append(svc.providers, provider{name: name, chain: runnable})
	}

	return svc, nil
}

// Generate implements Generator.
func (s *Service) Generate(ctx context.Context, req Request) (string, error) {
	input := map[string]any{
		"system":  req.System,
		"history": historyMessages(req.History),
		"query":   req.Prompt,
	}

	var lastErr error
	for _, p := range s.providers {
		attemptCtx, cancel := context.WithTimeout(ctx, s.timeout)
		msg, err := p.chain.Invoke(attemptCtx, input)
		cancel()
		if err != nil {
			log.Printf("[ai] provider %s failed: %v", p.name, err)
			lastErr = err
			continue
		}
		if msg == nil || strings.TrimSpace(msg.Content) == "" {
			lastErr = fmt.Errorf("provider %s returned empty content", p.name)
			continue
		}
		return msg.Content, nil
	}

	if lastErr != nil {
		return "", fmt.Errorf("%w: %v", ErrProviderUnavailable, lastErr)
	}
	return "", ErrProviderUnavailable
}

// GenerateJSON implements Generator. Models wrap JSON in code fences often
// enough that the fences are stripped before decoding.
func (s *Service) GenerateJSON(ctx context.Context, req Request, out any) error {
	raw, err := s.Generate(ctx, req)
	if err != nil {
		return err
	}

	cleaned := StripCodeFences(raw)
	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return fmt.Errorf("failed to decode model output as JSON: %w", err)
	}
	return nil
}

func historyMessages(history []Message) []*schema.Message {
	if len(history) == 0 {
		return nil
	}
	msgs := make([]*schema.Message, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case "user":
			msgs = append(msgs, schema.UserMessage(m.Content))
		case "assistant":
			msgs = append(msgs, schema.AssistantMessage(m.Content, nil))
		}
	}
	return msgs
}

// StripCodeFences removes a surrounding ``` block, with or without a language
// tag, and trims whitespace.
func StripCodeFences(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		// Drop the language tag line ("json", "JSON", ...).
		first := strings.TrimSpace(trimmed[:idx])
		if len(first) <= 8 && !strings.ContainsAny(first, "{}[]") {
			trimmed = trimmed[idx+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
