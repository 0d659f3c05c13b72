package inference

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"vqa-bot/internal/domain/entity"
	"vqa-bot/internal/domain/port"
)

const (
	BackendGemini = "gemini"

	DefaultGeminiModel = "gemini-2.5-flash"
)

const geminiInstruction = `You answer questions about the attached image.
Reply with a short answer of a few words, the way a visual question answering model does.
Do not explain and do not use markdown.`

// GeminiClient отвечает на вопросы через Gemini
type GeminiClient struct {
	client *genai.Client
	model  string
}

// GeminiOptions параметры клиента. BaseURL нужен для тестов.
type GeminiOptions struct {
	APIKey  string
	Model   string
	BaseURL string
}

// NewGeminiClient создаёт клиента Gemini API
func NewGeminiClient(ctx context.Context, opts GeminiOptions) (*GeminiClient, error) {
	cfg := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiClient{client: client, model: model}, nil
}

// Answer отправляет изображение inline вместе с вопросом
func (g *GeminiClient) Answer(ctx context.Context, image entity.Image, question string) (*entity.Answer, error) {
	parts := []*genai.Part{
		{InlineData: &genai.Blob{Data: image.Data, MIMEType: image.MIMEType}},
		genai.NewPartFromText(question),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(geminiInstruction, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.1),
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, errors.New("no response from Gemini")
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		return nil, errors.New("empty response from Gemini")
	}

	return &entity.Answer{Text: text, Backend: BackendGemini}, nil
}

var _ port.Answerer = (*GeminiClient)(nil)
