// Package vision produces a short description of the uploaded dog that is
// appended to the inpainting prompt. Description is an enhancement: any
// failure falls back to a generic description and never fails the request.
package vision

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

// FallbackDescription is used when no vision provider is configured or the
// call fails.
const FallbackDescription = "A friendly, well-groomed dog with a beautiful coat, looking happy and energetic"

const describeInstruction = "Describe the dog in this photo in one sentence: breed (if recognizable), coat color, size and posture. Mention nothing but the dog."

// Describer resolves a one-sentence dog description for prompt building.
type Describer interface {
	Describe(ctx context.Context, image []byte, format string) string
}

// OpenAIDescriber asks an OpenAI vision model to look at the uploaded photo.
type OpenAIDescriber struct {
	client *openai.Client
	model  string
	logger zerolog.Logger
}

// Options configures the describer.
type Options struct {
	APIKey  string
	BaseURL string
	Model   string
	Logger  *zerolog.Logger
}

// NewOpenAIDescriber builds a describer; with no API key it degrades to the
// static fallback without remote calls.
func NewOpenAIDescriber(opts Options) *OpenAIDescriber {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = openai.GPT4oMini
	}
	d := &OpenAIDescriber{model: model, logger: logger}
	if key := strings.TrimSpace(opts.APIKey); key != "" {
		cfg := openai.DefaultConfig(key)
		if base := strings.TrimSpace(opts.BaseURL); base != "" {
			cfg.BaseURL = base
		}
		d.client = openai.NewClientWithConfig(cfg)
	}
	return d
}

// Describe returns a one-sentence description of the dog in the image.
func (d *OpenAIDescriber) Describe(ctx context.Context, image []byte, format string) string {
	if d == nil || d.client == nil || len(image) == 0 {
		return FallbackDescription
	}
	if format == "" {
		format = "png"
	}
	dataURI := fmt.Sprintf("data:image/%s;base64,%s", format, base64.StdEncoding.EncodeToString(image))

	resp, err := d.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     d.model,
		MaxTokens: 120,
		Messages: []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: describeInstruction},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
					URL:    dataURI,
					Detail: openai.ImageURLDetailLow,
				}},
			},
		}},
	})
	if err != nil {
		d.logger.Warn().Err(err).Msg("vision: describe failed, using fallback description")
		return FallbackDescription
	}
	if len(resp.Choices) == 0 {
		return FallbackDescription
	}
	description := strings.TrimSpace(resp.Choices[0].Message.Content)
	if description == "" {
		return FallbackDescription
	}
	return description
}

// Static always returns the fallback description. Useful in tests and when
// vision is disabled explicitly.
type Static struct{}

// Describe implements Describer.
func (Static) Describe(context.Context, []byte, string) string {
	return FallbackDescription
}
