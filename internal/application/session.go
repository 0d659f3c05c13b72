package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"vqa-bot/internal/domain/entity"
	"vqa-bot/internal/domain/port"
)

// SessionOptions настройки сессий
type SessionOptions struct {
	Mode          entity.Mode
	TTL           time.Duration // 0 отключает удаление неактивных сессий
	MaxImageBytes int64
}

type SessionService struct {
	repo         port.SessionRepository
	preprocessor port.ImagePreprocessor
	opts         SessionOptions
	locks        *sessionLocks
	now          func() time.Time
}

func NewSessionService(repo port.SessionRepository, preprocessor port.ImagePreprocessor, opts SessionOptions) *SessionService {
	if opts.MaxImageBytes <= 0 {
		opts.MaxImageBytes = entity.DefaultMaxImageBytes
	}
	return &SessionService{
		repo:         repo,
		preprocessor: preprocessor,
		opts:         opts,
		locks:        newSessionLocks(),
		now:          time.Now,
	}
}

// NewID выдаёт идентификатор для новой сессии
func (s *SessionService) NewID() string {
	return uuid.NewString()
}

// Mode режим, в котором создаются сессии
func (s *SessionService) Mode() entity.Mode {
	return s.opts.Mode
}

func (s *SessionService) Get(ctx context.Context, id string) (*entity.Session, error) {
	return s.repo.GetOrCreate(ctx, id, s.opts.Mode)
}

// AcceptImage проверяет и нормализует изображение, затем кладёт его в сессию
func (s *SessionService) AcceptImage(ctx context.Context, id string, data []byte, source entity.ImageSource) (*entity.Session, error) {
	img, err := s.prepareImage(ctx, data, source)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var ev entity.Event = entity.ImageUploaded{Image: img, At: now}
	if img.Source == entity.SourceCamera {
		ev = entity.ImageCaptured{Image: img, At: now}
	}
	return s.apply(ctx, id, ev)
}

// ClearHistory очищает историю вопросов, изображение остаётся
func (s *SessionService) ClearHistory(ctx context.Context, id string) (*entity.Session, error) {
	return s.apply(ctx, id, entity.HistoryCleared{})
}

// Reset завершает сессию
func (s *SessionService) Reset(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()
	return s.repo.Delete(ctx, id)
}

// Sweep удаляет сессии, неактивные дольше TTL
func (s *SessionService) Sweep(ctx context.Context) ([]string, error) {
	if s.opts.TTL <= 0 {
		return nil, nil
	}
	return s.repo.DeleteIdle(ctx, s.now().Add(-s.opts.TTL))
}

// RunJanitor периодически вызывает Sweep, пока не отменён контекст
func (s *SessionService) RunJanitor(ctx context.Context, interval time.Duration) error {
	if s.opts.TTL <= 0 {
		return nil
	}
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			removed, err := s.Sweep(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("failed to sweep idle sessions")
				continue
			}
			if len(removed) > 0 {
				log.Info().Int("count", len(removed)).Msg("idle sessions removed")
			}
		}
	}
}

func (s *SessionService) prepareImage(ctx context.Context, data []byte, source entity.ImageSource) (*entity.Image, error) {
	img, err := entity.NewImage(data, source, s.opts.MaxImageBytes)
	if err != nil {
		return nil, err
	}
	if s.preprocessor == nil {
		return img, nil
	}

	prepared, err := s.preprocessor.Prepare(ctx, img)
	if err != nil {
		if errors.Is(err, entity.ErrUnsupportedImage) {
			return nil, err
		}
		return nil, fmt.Errorf("preprocess image: %v: %w", err, entity.ErrUnsupportedImage)
	}
	return prepared, nil
}

func (s *SessionService) apply(ctx context.Context, id string, ev entity.Event) (*entity.Session, error) {
	return s.update(ctx, id, func(session *entity.Session) (*entity.Session, error) {
		tr := entity.Reduce(*session, ev)
		if tr.Err != nil {
			return nil, tr.Err
		}
		return &tr.Session, nil
	})
}

// update выполняет fn под мьютексом сессии и сохраняет результат.
// Если fn вернула ошибку, состояние не меняется.
func (s *SessionService) update(ctx context.Context, id string, fn func(*entity.Session) (*entity.Session, error)) (*entity.Session, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	session, err := s.repo.GetOrCreate(ctx, id, s.opts.Mode)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	next, err := fn(session)
	if err != nil {
		return nil, err
	}

	next.Touch(s.now())
	if err := s.repo.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return next, nil
}
