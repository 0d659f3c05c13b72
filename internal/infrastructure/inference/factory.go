package inference

import (
	"context"
	"fmt"

	"vqa-bot/internal/domain/port"
)

// Options выбор бэкенда и обёрток
type Options struct {
	Backend     string // blip | gemini
	BLIP        BLIPOptions
	Gemini      GeminiOptions
	Concurrency int
	Cache       port.AnswerCache // nil отключает кэш
}

// New собирает цепочку: лог -> кэш -> лимит -> бэкенд.
// Попадания в кэш не занимают слот модели.
func New(ctx context.Context, opts Options) (port.Answerer, error) {
	var backend port.Answerer
	var namespace string
	switch opts.Backend {
	case "", BackendBLIP:
		b := NewBLIPClient(opts.BLIP)
		backend = b
		opts.Backend = BackendBLIP
		namespace = BackendBLIP + ":" + b.url
	case BackendGemini:
		g, err := NewGeminiClient(ctx, opts.Gemini)
		if err != nil {
			return nil, err
		}
		backend = g
		namespace = BackendGemini + ":" + g.model
	default:
		return nil, fmt.Errorf("unknown inference backend %q", opts.Backend)
	}

	var answerer port.Answerer = NewLimitedAnswerer(backend, opts.Concurrency)
	if opts.Cache != nil {
		answerer = NewCachedAnswerer(answerer, opts.Cache, namespace)
	}
	return NewLoggingAnswerer(answerer, opts.Backend), nil
}
