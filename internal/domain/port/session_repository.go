package port

import (
	"context"
	"time"

	"vqa-bot/internal/domain/entity"
)

// SessionRepository интерфейс хранилища сессий
type SessionRepository interface {
	// Get возвращает копию сессии или entity.ErrSessionNotFound
	Get(ctx context.Context, id string) (*entity.Session, error)

	// GetOrCreate возвращает сессию, создаёт новую если не найдена
	GetOrCreate(ctx context.Context, id string, mode entity.Mode) (*entity.Session, error)

	// Save сохраняет состояние сессии
	Save(ctx context.Context, session *entity.Session) error

	// Delete удаляет сессию
	Delete(ctx context.Context, id string) error

	// DeleteIdle удаляет сессии без активности с момента before
	DeleteIdle(ctx context.Context, before time.Time) ([]string, error)
}
