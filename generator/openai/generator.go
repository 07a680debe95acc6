package openai

import (
	"context"
	"errors"
	"net/http"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/finrelay/concierge/generator"
)

type openAIGenerator struct {
	options generator.Options
	client  *openai.Client
}

func (g *openAIGenerator) Complete(ctx context.Context, systemPrompt string, userPrompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: g.options.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: userPrompt,
			},
		},
	}

	rsp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}

	if len(rsp.Choices) == 0 || len(rsp.Choices[0].Message.Content) == 0 {
		return "", errors.New("no response from OpenAI")
	}

	return rsp.Choices[0].Message.Content, nil
}

func NewGenerator(opts ...generator.Option) generator.Generator {
	options := generator.NewOptions(opts...)

	g := &openAIGenerator{
		options: options,
	}

	config := openai.DefaultConfig(options.ApiKey)
	config.HTTPClient = &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	g.client = openai.NewClientWithConfig(config)

	return g
}
