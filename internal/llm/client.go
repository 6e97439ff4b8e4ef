package llm

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/clio-labs/chronotex/internal/domain"
)

// GenerateRequest is one model call. SystemPrompt may be empty.
type GenerateRequest struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
	Temperature  float32
	MaxTokens    int
}

// GenerateResult is the synchronous call's outcome. Reasoning is empty for
// models without a reasoning channel.
type GenerateResult struct {
	Text      string
	Reasoning string
	Usage     domain.TokenUsage
}

// Client is the language-model endpoint consumed by analysis and
// reranking.
type Client interface {
	// Generate performs a synchronous completion.
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)

	// GenerateStream performs a streaming completion. The returned channel
	// is closed after a terminal event (completed or error); cancelling
	// ctx tears the stream down.
	GenerateStream(ctx context.Context, req GenerateRequest) (<-chan Event, error)
}

// OpenAIClient adapts the OpenAI-compatible chat completions API to the
// Client interface. A custom base URL lets the same adapter serve any
// compatible provider.
type OpenAIClient struct {
	api *openai.Client
}

func NewOpenAIClient(apiKey string) *OpenAIClient {
	return &OpenAIClient{api: openai.NewClient(apiKey)}
}

func NewOpenAIClientWithBaseURL(apiKey, baseURL string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{api: openai.NewClientWithConfig(cfg)}
}

func chatRequest(req GenerateRequest) openai.ChatCompletionRequest {
	var messages []openai.ChatCompletionMessage
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.UserPrompt,
	})

	return openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
}

// Generate performs a synchronous chat completion.
func (c *OpenAIClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	resp, err := c.api.CreateChatCompletion(ctx, chatRequest(req))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrLLMUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: model returned no choices", domain.ErrLLMUnavailable)
	}

	choice := resp.Choices[0].Message
	return &GenerateResult{
		Text:      choice.Content,
		Reasoning: choice.ReasoningContent,
		Usage: domain.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// GenerateStream performs a streaming chat completion and translates the
// wire chunks into typed events. Reasoning fragments and answer fragments
// are routed to separate event kinds; done events carry the full
// concatenation of their channel's deltas.
func (c *OpenAIClient) GenerateStream(ctx context.Context, req GenerateRequest) (<-chan Event, error) {
	chatReq := chatRequest(req)
	chatReq.Stream = true
	chatReq.StreamOptions = &openai.StreamOptions{IncludeUsage: true}

	stream, err := c.api.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrLLMUnavailable, err)
	}

	events := make(chan Event, 16)
	go func() {
		defer close(events)
		defer stream.Close()

		// send drops the event when the caller has gone away, so an
		// abandoned stream never leaks this goroutine.
		send := func(ev Event) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		var reasoning, answer string
		var usage *domain.TokenUsage
		for {
			chunk, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				if !send(Event{Kind: EventReasoningDone, Text: reasoning}) {
					return
				}
				if !send(Event{Kind: EventOutputDone, Text: answer}) {
					return
				}
				send(Event{Kind: EventCompleted, Usage: usage})
				return
			}
			if err != nil {
				send(Event{Kind: EventError, Err: fmt.Errorf("%w: %v", domain.ErrLLMUnavailable, err)})
				return
			}

			if chunk.Usage != nil {
				usage = &domain.TokenUsage{
					PromptTokens:     chunk.Usage.PromptTokens,
					CompletionTokens: chunk.Usage.CompletionTokens,
					TotalTokens:      chunk.Usage.TotalTokens,
				}
			}
			if len(chunk.Choices) == 0 {
				continue
			}

			delta := chunk.Choices[0].Delta
			if delta.ReasoningContent != "" {
				reasoning += delta.ReasoningContent
				if !send(Event{Kind: EventReasoningDelta, Text: delta.ReasoningContent}) {
					return
				}
			}
			if delta.Content != "" {
				answer += delta.Content
				if !send(Event{Kind: EventOutputDelta, Text: delta.Content}) {
					return
				}
			}
		}
	}()
	return events, nil
}
