package inference

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"vqa-bot/internal/domain/entity"
	"vqa-bot/internal/domain/port"
)

// LoggingAnswerer пишет в лог время и исход каждого запроса
type LoggingAnswerer struct {
	inner   port.Answerer
	backend string
}

func NewLoggingAnswerer(inner port.Answerer, backend string) *LoggingAnswerer {
	return &LoggingAnswerer{inner: inner, backend: backend}
}

func (l *LoggingAnswerer) Answer(ctx context.Context, image entity.Image, question string) (*entity.Answer, error) {
	start := time.Now()
	answer, err := l.inner.Answer(ctx, image, question)
	elapsed := time.Since(start)

	if err != nil {
		log.Error().Err(err).
			Str("backend", l.backend).
			Dur("elapsed", elapsed).
			Int("imageBytes", len(image.Data)).
			Msg("inference failed")
		return nil, err
	}

	log.Info().
		Str("backend", l.backend).
		Dur("elapsed", elapsed).
		Bool("cached", answer.Cached).
		Str("question", question).
		Str("answer", answer.Text).
		Msg("inference done")
	return answer, nil
}

var _ port.Answerer = (*LoggingAnswerer)(nil)
