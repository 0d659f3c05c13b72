package inference

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strings"

	"github.com/rs/zerolog/log"

	"vqa-bot/internal/domain/entity"
	"vqa-bot/internal/domain/port"
)

// CachedAnswerer оборачивает Answerer кэшем ответов
type CachedAnswerer struct {
	inner     port.Answerer
	cache     port.AnswerCache
	namespace string
}

// NewCachedAnswerer создаёт обёртку. Без кэша запросы идут напрямую.
// namespace отделяет ответы разных бэкендов и моделей в одном кэше.
func NewCachedAnswerer(inner port.Answerer, cache port.AnswerCache, namespace string) *CachedAnswerer {
	return &CachedAnswerer{inner: inner, cache: cache, namespace: namespace}
}

// CacheKey хэш от пространства имён, изображения и нормализованного вопроса.
// Длины пишутся префиксом, чтобы границы не склеивались.
func CacheKey(namespace string, image []byte, question string) string {
	h := sha256.New()
	binary.Write(h, binary.LittleEndian, int64(len(namespace)))
	h.Write([]byte(namespace))
	binary.Write(h, binary.LittleEndian, int64(len(image)))
	h.Write(image)
	h.Write([]byte(strings.ToLower(strings.Join(strings.Fields(question), " "))))
	return hex.EncodeToString(h.Sum(nil))
}

// Answer отдаёт ответ из кэша или спрашивает модель и кэширует результат.
// Ошибки кэша только логируются.
func (c *CachedAnswerer) Answer(ctx context.Context, image entity.Image, question string) (*entity.Answer, error) {
	if c.cache == nil {
		return c.inner.Answer(ctx, image, question)
	}

	key := CacheKey(c.namespace, image.Data, question)

	cached, err := c.cache.GetAnswer(ctx, key)
	if err != nil {
		log.Warn().Err(err).Msg("failed to check answer cache")
	} else if cached != nil {
		log.Debug().Str("key", key[:16]).Msg("answer cache hit")
		return cached, nil
	}

	answer, err := c.inner.Answer(ctx, image, question)
	if err != nil {
		return nil, err
	}

	if err := c.cache.SetAnswer(ctx, key, answer); err != nil {
		log.Warn().Err(err).Msg("failed to cache answer")
	} else {
		log.Debug().Str("key", key[:16]).Msg("cached answer")
	}

	return answer, nil
}

var _ port.Answerer = (*CachedAnswerer)(nil)
