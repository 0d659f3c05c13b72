package inference

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vqa-bot/internal/domain/entity"
)

type fakeAnswerer struct {
	calls  atomic.Int32
	active atomic.Int32
	peak   atomic.Int32
	delay  time.Duration
	err    error
	answer string
}

func (f *fakeAnswerer) Answer(ctx context.Context, image entity.Image, question string) (*entity.Answer, error) {
	f.calls.Add(1)
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &entity.Answer{Text: f.answer, Backend: "fake"}, nil
}

type mapCache struct {
	mu      sync.Mutex
	entries map[string]entity.Answer
	getErr  error
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string]entity.Answer)}
}

func (m *mapCache) GetAnswer(ctx context.Context, key string) (*entity.Answer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	a, ok := m.entries[key]
	if !ok {
		return nil, nil
	}
	a.Cached = true
	return &a, nil
}

func (m *mapCache) SetAnswer(ctx context.Context, key string, answer *entity.Answer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = *answer
	return nil
}

func TestCacheKey_NormalizesQuestion(t *testing.T) {
	img := []byte("abc")
	require.Equal(t, CacheKey("blip", img, "What  color?"), CacheKey("blip", img, " what color? "))
	require.NotEqual(t, CacheKey("blip", img, "what color?"), CacheKey("blip", []byte("abd"), "what color?"))
	require.NotEqual(t, CacheKey("blip", img, "what color?"), CacheKey("blip", img, "what shape?"))
	require.NotEqual(t, CacheKey("blip", img, "what color?"), CacheKey("gemini:gemini-2.5-flash", img, "what color?"))
}

func TestCachedAnswerer_HitSkipsModel(t *testing.T) {
	inner := &fakeAnswerer{answer: "red"}
	cached := NewCachedAnswerer(inner, newMapCache(), "blip")
	ctx := context.Background()

	first, err := cached.Answer(ctx, testImage, "what color?")
	require.NoError(t, err)
	require.False(t, first.Cached)

	second, err := cached.Answer(ctx, testImage, "What color?")
	require.NoError(t, err)
	require.True(t, second.Cached)
	require.Equal(t, "red", second.Text)
	require.Equal(t, int32(1), inner.calls.Load())
}

func TestCachedAnswerer_CacheErrorFallsThrough(t *testing.T) {
	inner := &fakeAnswerer{answer: "red"}
	cache := newMapCache()
	cache.getErr = errors.New("disk full")

	answer, err := NewCachedAnswerer(inner, cache, "blip").Answer(context.Background(), testImage, "q")
	require.NoError(t, err)
	require.Equal(t, "red", answer.Text)
}

func TestCachedAnswerer_ErrorNotCached(t *testing.T) {
	inner := &fakeAnswerer{err: errors.New("oom")}
	cache := newMapCache()

	_, err := NewCachedAnswerer(inner, cache, "blip").Answer(context.Background(), testImage, "q")
	require.Error(t, err)
	require.Empty(t, cache.entries)
}

func TestLimitedAnswerer_BoundsConcurrency(t *testing.T) {
	inner := &fakeAnswerer{answer: "ok", delay: 20 * time.Millisecond}
	limited := NewLimitedAnswerer(inner, 2)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := limited.Answer(context.Background(), testImage, "q")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.Equal(t, int32(8), inner.calls.Load())
	require.LessOrEqual(t, inner.peak.Load(), int32(2))
}

func TestLimitedAnswerer_CancelWhileWaiting(t *testing.T) {
	inner := &fakeAnswerer{answer: "ok", delay: 200 * time.Millisecond}
	limited := NewLimitedAnswerer(inner, 1)

	go limited.Answer(context.Background(), testImage, "busy")
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := limited.Answer(ctx, testImage, "q")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNew_UnknownBackend(t *testing.T) {
	_, err := New(context.Background(), Options{Backend: "llava"})
	require.Error(t, err)
}

func TestNew_DefaultsToBLIP(t *testing.T) {
	answerer, err := New(context.Background(), Options{})
	require.NoError(t, err)
	logging, ok := answerer.(*LoggingAnswerer)
	require.True(t, ok)
	require.Equal(t, BackendBLIP, logging.backend)
}

func TestCachedAnswerer_NamespacesDoNotShareAnswers(t *testing.T) {
	cache := newMapCache()
	ctx := context.Background()

	blip := &fakeAnswerer{answer: "red"}
	_, err := NewCachedAnswerer(blip, cache, "blip:http://model").Answer(ctx, testImage, "what color?")
	require.NoError(t, err)

	gemini := &fakeAnswerer{answer: "crimson"}
	answer, err := NewCachedAnswerer(gemini, cache, "gemini:gemini-2.5-flash").Answer(ctx, testImage, "what color?")
	require.NoError(t, err)
	require.False(t, answer.Cached)
	require.Equal(t, "crimson", answer.Text)
	require.Equal(t, int32(1), gemini.calls.Load())
}
