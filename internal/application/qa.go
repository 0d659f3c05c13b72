package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vqa-bot/internal/domain/entity"
	"vqa-bot/internal/domain/port"
)

// DefaultInferenceTimeout сколько ждём модель по умолчанию
const DefaultInferenceTimeout = 60 * time.Second

type QAService struct {
	sessions *SessionService
	answerer port.Answerer
	timeout  time.Duration
	now      func() time.Time
}

// AskResult содержит ответ и состояние сессии после него.
type AskResult struct {
	Session *entity.Session
	Answer  *entity.Answer
}

// NewQAService создаёт сервис, который задаёт вопросы модели.
func NewQAService(sessions *SessionService, answerer port.Answerer, timeout time.Duration) *QAService {
	if timeout <= 0 {
		timeout = DefaultInferenceTimeout
	}
	return &QAService{
		sessions: sessions,
		answerer: answerer,
		timeout:  timeout,
		now:      time.Now,
	}
}

// Ask проверяет вопрос, вызывает модель и записывает ответ в сессию.
// При ошибке валидации или модели сессия не меняется.
func (s *QAService) Ask(ctx context.Context, sessionID, question string) (*AskResult, error) {
	var answer *entity.Answer

	session, err := s.sessions.update(ctx, sessionID, func(session *entity.Session) (*entity.Session, error) {
		tr := entity.Reduce(*session, entity.QuestionSubmitted{Question: question})
		if tr.Err != nil {
			return nil, tr.Err
		}
		if !tr.NeedsInference {
			return &tr.Session, nil
		}

		a, err := s.infer(ctx, *tr.Session.Image, tr.Question)
		if err != nil {
			return nil, err
		}
		answer = a

		done := entity.Reduce(tr.Session, entity.AnswerReceived{
			Question: tr.Question,
			Answer:   a.Text,
			At:       s.now(),
		})
		return &done.Session, nil
	})
	if err != nil {
		return nil, err
	}

	return &AskResult{Session: session, Answer: answer}, nil
}

// AskOnce отвечает на вопрос без сессии (одноразовый режим API)
func (s *QAService) AskOnce(ctx context.Context, data []byte, question string) (*entity.Answer, error) {
	tr := entity.Reduce(entity.Session{}, entity.QuestionSubmitted{Question: question})
	if errors.Is(tr.Err, entity.ErrEmptyQuestion) {
		return nil, tr.Err
	}
	if len(data) == 0 {
		return nil, entity.ErrNoImage
	}

	img, err := s.sessions.prepareImage(ctx, data, entity.SourceUpload)
	if err != nil {
		return nil, err
	}

	session := entity.NewSession("", entity.ModeSingleShot, s.now())
	session.Image = img
	tr = entity.Reduce(*session, entity.QuestionSubmitted{Question: question})
	if tr.Err != nil {
		return nil, tr.Err
	}

	return s.infer(ctx, *img, tr.Question)
}

// infer вызывает модель с таймаутом. Любой сбой, включая панику адаптера,
// превращается в entity.ErrInferenceFailed.
func (s *QAService) infer(ctx context.Context, img entity.Image, question string) (answer *entity.Answer, err error) {
	if s.answerer == nil {
		return nil, fmt.Errorf("%w: answerer is not configured", entity.ErrInferenceFailed)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			answer = nil
			err = fmt.Errorf("%w: panic: %v", entity.ErrInferenceFailed, r)
		}
	}()

	answer, err = s.answerer.Answer(ctx, img, question)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", entity.ErrInferenceFailed, err)
	}
	if answer == nil || answer.Text == "" {
		return nil, fmt.Errorf("%w: empty answer", entity.ErrInferenceFailed)
	}
	return answer, nil
}
