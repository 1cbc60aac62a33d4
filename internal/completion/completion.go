// Package completion wraps the hosted language model that writes assistant
// replies. Callers get a Reply in every case: when the model is slow,
// unreachable or returns nothing, the configured fallback text is used.
package completion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cogi/internal/config"
	"cogi/internal/logger"
)

// Role is the author of a message in a completion request.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of conversation context.
type Message struct {
	Role    Role
	Content string
}

// Request is a provider-neutral completion request.
type Request struct {
	SystemPrompt string
	Messages     []Message
	MaxTokens    int
	Temperature  float64
}

// Client calls a completion provider.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ErrNotConfigured is returned by the client used when no API key is set.
var ErrNotConfigured = errors.New("completion provider not configured")

type unconfiguredClient struct{}

func (unconfiguredClient) Complete(context.Context, Request) (string, error) {
	return "", ErrNotConfigured
}

// NewClient builds the Client selected by cfg.Provider. A missing API key
// yields a client that always fails, so every reply is the fallback.
func NewClient(ctx context.Context, cfg config.CompletionConfig) (Client, error) {
	if cfg.APIKey == "" {
		logger.Get().Warnw("completion API key not set; assistant replies will use the fallback text",
			"provider", cfg.Provider)
		return unconfiguredClient{}, nil
	}

	switch cfg.Provider {
	case "together":
		return NewTogetherClient(TogetherConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}), nil
	case "gemini":
		return NewGeminiClient(ctx, cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown completion provider %q", cfg.Provider)
	}
}

// Reply is the outcome of a generation. Fallback marks the canned text used
// when the provider failed.
type Reply struct {
	Text     string `json:"text"`
	Fallback bool   `json:"fallback"`
}

// Options tune a Generator.
type Options struct {
	SystemPrompt  string
	MaxTokens     int
	Temperature   float64
	Timeout       time.Duration
	FallbackReply string
	// MaxHistory keeps only the most recent messages of prior history; 0 keeps all.
	MaxHistory int
}

// OptionsFromConfig maps configuration onto generator options.
func OptionsFromConfig(cfg config.CompletionConfig) Options {
	return Options{
		SystemPrompt:  cfg.SystemPrompt,
		MaxTokens:     cfg.MaxTokens,
		Temperature:   cfg.Temperature,
		Timeout:       cfg.Timeout,
		FallbackReply: cfg.FallbackReply,
		MaxHistory:    cfg.MaxHistory,
	}
}

// Generator produces assistant replies from conversation history.
type Generator struct {
	client Client
	opts   Options
}

// NewGenerator creates a Generator over client.
func NewGenerator(client Client, opts Options) *Generator {
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.FallbackReply == "" {
		opts.FallbackReply = "⚠️ I couldn't generate a response right now."
	}
	return &Generator{client: client, opts: opts}
}

// Generate asks the provider for a reply to newMessage given the prior
// history, oldest first. It never fails; see Reply.Fallback.
func (g *Generator) Generate(ctx context.Context, history []Message, newMessage string) Reply {
	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	if g.opts.MaxHistory > 0 && len(history) > g.opts.MaxHistory {
		history = history[len(history)-g.opts.MaxHistory:]
	}

	messages := make([]Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, Message{Role: RoleUser, Content: newMessage})

	start := time.Now()
	text, err := g.client.Complete(ctx, Request{
		SystemPrompt: g.opts.SystemPrompt,
		Messages:     messages,
		MaxTokens:    g.opts.MaxTokens,
		Temperature:  g.opts.Temperature,
	})
	if err == nil && strings.TrimSpace(text) == "" {
		err = errors.New("empty completion")
	}
	if err != nil {
		logger.Get().Warnw("completion failed, using fallback reply",
			"error", err,
			"history_len", len(history),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return Reply{Text: g.opts.FallbackReply, Fallback: true}
	}

	return Reply{Text: strings.TrimSpace(text)}
}
