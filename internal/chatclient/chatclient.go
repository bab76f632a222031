// Package chatclient wraps an external chat-completion provider as a dumb
// adapter: it makes no decisions about prompt content, only message
// marshaling and response unwrapping.
package chatclient

import (
	"context"
	"fmt"

	"github.com/pkoukk/tiktoken-go"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/ragdocs/docuqa/internal/apperr"
)

// Role is one of the three message roles the contract allows.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one ordered turn in a conversation.
type Message struct {
	Role    Role
	Content string
}

// Completion is the result of a single completion call.
type Completion struct {
	Text       string
	TokensUsed int
	ModelTag   string
}

// Config configures a Client.
type Config struct {
	Model  string
	APIKey string
}

// Client produces completions from an ordered message list.
type Client struct {
	model string
	llm   llms.Model
	enc   *tiktoken.Tiktoken
}

// New builds a provider-backed Client.
func New(cfg Config) (*Client, error) {
	opts := []openai.Option{openai.WithModel(cfg.Model)}
	if cfg.APIKey != "" {
		opts = append(opts, openai.WithToken(cfg.APIKey))
	}
	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("chatclient: init openai client: %w", err)
	}
	enc, _ := tiktoken.GetEncoding("cl100k_base")
	return &Client{model: cfg.Model, llm: model, enc: enc}, nil
}

// Complete issues a single chat completion call.
func (c *Client) Complete(ctx context.Context, messages []Message, temperature float64, maxTokens int) (Completion, error) {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		content = append(content, llms.TextParts(toLangchainRole(m.Role), m.Content))
	}
	resp, err := c.llm.GenerateContent(ctx, content,
		llms.WithTemperature(temperature),
		llms.WithMaxTokens(maxTokens),
	)
	if err != nil {
		return Completion{}, apperr.Provider("chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return Completion{}, apperr.Provider("chat completion returned no choices", nil)
	}
	text := resp.Choices[0].Content
	tokens := resp.Choices[0].GenerationInfo["TotalTokens"]
	used, ok := tokens.(int)
	if !ok || used == 0 {
		used = c.estimateTokens(messages, text)
	}
	return Completion{Text: text, TokensUsed: used, ModelTag: c.model}, nil
}

// estimateTokens provides a tokenizer-based fallback when the provider
// response does not carry usage information. It returns 0 when no tokenizer
// encoding could be loaded at construction time.
func (c *Client) estimateTokens(messages []Message, answer string) int {
	if c.enc == nil {
		return 0
	}
	total := len(c.enc.Encode(answer, nil, nil))
	for _, m := range messages {
		total += len(c.enc.Encode(m.Content, nil, nil))
	}
	return total
}

func toLangchainRole(r Role) llms.ChatMessageType {
	switch r {
	case RoleSystem:
		return llms.ChatMessageTypeSystem
	case RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}
