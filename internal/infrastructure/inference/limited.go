package inference

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"

	"vqa-bot/internal/domain/entity"
	"vqa-bot/internal/domain/port"
)

// LimitedAnswerer ограничивает число одновременных запросов к модели.
// Модель одна на процесс, сессий много.
type LimitedAnswerer struct {
	inner port.Answerer
	sem   *semaphore.Weighted
}

// NewLimitedAnswerer создаёт обёртку, limit < 1 считается за 1
func NewLimitedAnswerer(inner port.Answerer, limit int) *LimitedAnswerer {
	if limit < 1 {
		limit = 1
	}
	return &LimitedAnswerer{inner: inner, sem: semaphore.NewWeighted(int64(limit))}
}

// Answer ждёт свободный слот с учётом отмены контекста
func (l *LimitedAnswerer) Answer(ctx context.Context, image entity.Image, question string) (*entity.Answer, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("wait for model slot: %w", err)
	}
	defer l.sem.Release(1)

	return l.inner.Answer(ctx, image, question)
}

var _ port.Answerer = (*LimitedAnswerer)(nil)
