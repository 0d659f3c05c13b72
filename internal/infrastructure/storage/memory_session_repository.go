package storage

import (
	"context"
	"sync"
	"time"

	"vqa-bot/internal/domain/entity"
	"vqa-bot/internal/domain/port"
)

// MemorySessionRepository in-memory хранилище сессий.
// Наружу отдаются только копии, чтобы вызывающий код не менял состояние в обход Save.
type MemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*entity.Session
	now      func() time.Time
}

// NewMemorySessionRepository создаёт новое in-memory хранилище
func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{
		sessions: make(map[string]*entity.Session),
		now:      time.Now,
	}
}

// Get возвращает сессию по ID
func (r *MemorySessionRepository) Get(ctx context.Context, id string) (*entity.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, exists := r.sessions[id]
	if !exists {
		return nil, entity.ErrSessionNotFound
	}
	return session.Clone(), nil
}

// GetOrCreate возвращает сессию, создаёт новую если не найдена
func (r *MemorySessionRepository) GetOrCreate(ctx context.Context, id string, mode entity.Mode) (*entity.Session, error) {
	r.mu.RLock()
	session, exists := r.sessions[id]
	r.mu.RUnlock()

	if exists {
		return session.Clone(), nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Могли создать, пока ждали блокировку
	if session, exists := r.sessions[id]; exists {
		return session.Clone(), nil
	}

	newSession := entity.NewSession(id, mode, r.now())
	r.sessions[id] = newSession

	return newSession.Clone(), nil
}

// Save сохраняет состояние сессии
func (r *MemorySessionRepository) Save(ctx context.Context, session *entity.Session) error {
	r.mu.Lock()
	r.sessions[session.ID] = session.Clone()
	r.mu.Unlock()

	return nil
}

// Delete удаляет сессию
func (r *MemorySessionRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()

	return nil
}

// DeleteIdle удаляет сессии без активности с момента before
func (r *MemorySessionRepository) DeleteIdle(ctx context.Context, before time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []string
	for id, session := range r.sessions {
		if session.IdleSince(before) {
			delete(r.sessions, id)
			removed = append(removed, id)
		}
	}

	return removed, nil
}

// Len количество активных сессий
func (r *MemorySessionRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Проверка реализации интерфейса
var _ port.SessionRepository = (*MemorySessionRepository)(nil)
