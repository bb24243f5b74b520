package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	ctxpkg "github.com/stupiduntilnot/meditalk/internal/context"
	"github.com/stupiduntilnot/meditalk/internal/model"
)

// Fixed request parameters. They are not caller-configurable.
const (
	Model       = "meta-llama/llama-4-scout-17b-16e-instruct"
	MaxTokens   = 2048
	Temperature = 0.7
)

const (
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultTimeout = 60 * time.Second
)

// Options configures a Client.
type Options struct {
	// BaseURL of an OpenAI-compatible API, without the /chat/completions suffix.
	BaseURL string
	// APIKey is resolved on every call.
	APIKey func() string
	// Timeout bounds a single round-trip.
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client is a chat completions client for OpenAI-compatible backends.
type Client struct {
	baseURL    string
	apiKey     func() string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient creates a Client, filling unset options with defaults.
func NewClient(opts Options) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		timeout:    opts.Timeout,
		httpClient: opts.HTTPClient,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	return c
}

// CheckCredential reports ErrMissingCredential when no key is configured.
func (c *Client) CheckCredential() error {
	if c.credential() == "" {
		return model.ErrMissingCredential
	}
	return nil
}

func (c *Client) credential() string {
	if c.apiKey == nil {
		return ""
	}
	return strings.TrimSpace(c.apiKey())
}

// Complete sends one chat completion request and returns the first choice.
// An empty reply degrades to model.FallbackReply.
func (c *Client) Complete(ctx context.Context, messages []ctxpkg.Turn) (model.Completion, error) {
	key := c.credential()
	if key == "" {
		return model.Completion{}, model.ErrMissingCredential
	}

	req, err := buildRequest(messages)
	if err != nil {
		return model.Completion{}, fmt.Errorf("failed to build chat request: %w", err)
	}

	cfg := goopenai.DefaultConfig(key)
	cfg.BaseURL = c.baseURL
	cfg.HTTPClient = c.httpClient
	client := goopenai.NewClientWithConfig(cfg)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := client.CreateChatCompletion(ctx, req)
	if err != nil {
		return model.Completion{}, classify(ctx, err)
	}

	result := model.Completion{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	if len(resp.Choices) == 0 {
		result.Content = model.FallbackReply
		return result, nil
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		result.Content = model.FallbackReply
		return result, nil
	}
	result.Content = content
	return result, nil
}

func buildRequest(messages []ctxpkg.Turn) (goopenai.ChatCompletionRequest, error) {
	converted, err := toMessages(messages)
	if err != nil {
		return goopenai.ChatCompletionRequest{}, err
	}
	return goopenai.ChatCompletionRequest{
		Model:       Model,
		Messages:    converted,
		MaxTokens:   MaxTokens,
		Temperature: Temperature,
	}, nil
}

func toMessages(turns []ctxpkg.Turn) ([]goopenai.ChatCompletionMessage, error) {
	out := make([]goopenai.ChatCompletionMessage, 0, len(turns))
	for i, t := range turns {
		msg := goopenai.ChatCompletionMessage{Role: string(t.Role)}
		switch c := t.Content.(type) {
		case nil:
		case ctxpkg.Text:
			msg.Content = string(c)
		case ctxpkg.Parts:
			parts := make([]goopenai.ChatMessagePart, 0, len(c))
			for _, p := range c {
				switch p := p.(type) {
				case ctxpkg.TextPart:
					parts = append(parts, goopenai.ChatMessagePart{
						Type: goopenai.ChatMessagePartTypeText,
						Text: p.Text,
					})
				case ctxpkg.ImagePart:
					parts = append(parts, goopenai.ChatMessagePart{
						Type:     goopenai.ChatMessagePartTypeImageURL,
						ImageURL: &goopenai.ChatMessageImageURL{URL: p.URL()},
					})
				default:
					return nil, fmt.Errorf("message %d: unsupported content part %T", i, p)
				}
			}
			msg.MultiContent = parts
		default:
			return nil, fmt.Errorf("message %d: unsupported content %T", i, c)
		}
		out = append(out, msg)
	}
	return out, nil
}
