package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"vqa-bot/internal/domain/entity"
	"vqa-bot/internal/domain/port"
)

// SQLiteAnswerCache хранит ответы модели между перезапусками
type SQLiteAnswerCache struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteAnswerCache открывает (или создаёт) базу по пути dbPath
func NewSQLiteAnswerCache(dbPath string) (*SQLiteAnswerCache, error) {
	// WAL и busy_timeout, чтобы параллельные запросы не падали на блокировке
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	cache := &SQLiteAnswerCache{db: db, now: time.Now}
	if err := cache.init(); err != nil {
		db.Close()
		return nil, err
	}

	log.Info().Str("dbPath", dbPath).Msg("answer cache initialized")
	return cache, nil
}

func (c *SQLiteAnswerCache) init() error {
	query := `
	CREATE TABLE IF NOT EXISTS answer_cache (
		cache_key TEXT PRIMARY KEY,
		answer TEXT NOT NULL,
		score REAL NOT NULL DEFAULT 0,
		backend TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	`
	if _, err := c.db.Exec(query); err != nil {
		return fmt.Errorf("create answer_cache table: %w", err)
	}
	return nil
}

// GetAnswer возвращает ответ из кэша, nil, nil если записи нет
func (c *SQLiteAnswerCache) GetAnswer(ctx context.Context, key string) (*entity.Answer, error) {
	var answer entity.Answer
	err := c.db.QueryRowContext(ctx,
		"SELECT answer, score, backend FROM answer_cache WHERE cache_key = ?",
		key,
	).Scan(&answer.Text, &answer.Score, &answer.Backend)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query answer cache: %w", err)
	}

	answer.Cached = true
	return &answer, nil
}

// SetAnswer сохраняет ответ, повторная запись заменяет старую
func (c *SQLiteAnswerCache) SetAnswer(ctx context.Context, key string, answer *entity.Answer) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO answer_cache (cache_key, answer, score, backend, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			answer = excluded.answer,
			score = excluded.score,
			backend = excluded.backend,
			created_at = excluded.created_at`,
		key, answer.Text, answer.Score, answer.Backend, c.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("write answer cache: %w", err)
	}
	return nil
}

// Prune удаляет записи старше olderThan
func (c *SQLiteAnswerCache) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	res, err := c.db.ExecContext(ctx,
		"DELETE FROM answer_cache WHERE created_at < ?",
		c.now().Add(-olderThan).Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("prune answer cache: %w", err)
	}
	return res.RowsAffected()
}

// Close закрывает базу
func (c *SQLiteAnswerCache) Close() error {
	return c.db.Close()
}

var _ port.AnswerCache = (*SQLiteAnswerCache)(nil)
