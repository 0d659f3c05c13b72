package port

import (
	"context"

	"vqa-bot/internal/domain/entity"
)

// Answerer граница с внешней моделью VQA
type Answerer interface {
	// Answer отвечает на вопрос по изображению
	Answer(ctx context.Context, image entity.Image, question string) (*entity.Answer, error)
}

// ImagePreprocessor нормализует изображение перед сохранением в сессию
type ImagePreprocessor interface {
	Prepare(ctx context.Context, image *entity.Image) (*entity.Image, error)
}

// AnswerCache кэш ответов. Промах возвращает nil, nil.
type AnswerCache interface {
	GetAnswer(ctx context.Context, key string) (*entity.Answer, error)
	SetAnswer(ctx context.Context, key string, answer *entity.Answer) error
}
