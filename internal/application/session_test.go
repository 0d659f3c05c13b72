package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vqa-bot/internal/domain/entity"
	"vqa-bot/internal/infrastructure/storage"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type failingPreprocessor struct{}

func (failingPreprocessor) Prepare(ctx context.Context, img *entity.Image) (*entity.Image, error) {
	return nil, errors.New("opencv exploded")
}

func newSessionService(mode entity.Mode) *SessionService {
	return NewSessionService(storage.NewMemorySessionRepository(), nil, SessionOptions{Mode: mode, TTL: time.Minute})
}

func TestSessionService_GetCreatesEmptySession(t *testing.T) {
	svc := newSessionService(entity.ModeConversation)
	ctx := context.Background()

	session, err := svc.Get(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, entity.ModeConversation, session.Mode)
	require.Equal(t, entity.StateNoImagePrompt, session.RenderState())
}

func TestSessionService_AcceptImage(t *testing.T) {
	svc := newSessionService(entity.ModeConversation)
	ctx := context.Background()

	session, err := svc.AcceptImage(ctx, "s1", pngBytes, entity.SourceCamera)
	require.NoError(t, err)
	require.Equal(t, entity.StateImageShownNoHistory, session.RenderState())
	require.Equal(t, entity.SourceCamera, session.Image.Source)

	stored, err := svc.Get(ctx, "s1")
	require.NoError(t, err)
	require.True(t, stored.HasImage())
}

func TestSessionService_AcceptImage_Rejects(t *testing.T) {
	svc := newSessionService(entity.ModeConversation)
	ctx := context.Background()

	_, err := svc.AcceptImage(ctx, "s1", []byte("plain text"), entity.SourceUpload)
	require.ErrorIs(t, err, entity.ErrUnsupportedImage)

	session, err := svc.Get(ctx, "s1")
	require.NoError(t, err)
	require.False(t, session.HasImage())
}

func TestSessionService_PreprocessorFailureIsUnsupportedImage(t *testing.T) {
	svc := NewSessionService(storage.NewMemorySessionRepository(), failingPreprocessor{}, SessionOptions{})
	_, err := svc.AcceptImage(context.Background(), "s1", pngBytes, entity.SourceUpload)
	require.ErrorIs(t, err, entity.ErrUnsupportedImage)
}

func TestSessionService_ClearAndReset(t *testing.T) {
	svc := newSessionService(entity.ModeConversation)
	ctx := context.Background()

	_, err := svc.AcceptImage(ctx, "s1", pngBytes, entity.SourceUpload)
	require.NoError(t, err)

	session, err := svc.ClearHistory(ctx, "s1")
	require.NoError(t, err)
	require.True(t, session.HasImage())
	require.Empty(t, session.Conversation)

	require.NoError(t, svc.Reset(ctx, "s1"))
	session, err = svc.Get(ctx, "s1")
	require.NoError(t, err)
	require.False(t, session.HasImage())
}

func TestSessionService_Sweep(t *testing.T) {
	svc := newSessionService(entity.ModeSingleShot)
	ctx := context.Background()

	base := time.Now()
	svc.now = func() time.Time { return base }
	_, err := svc.AcceptImage(ctx, "old", pngBytes, entity.SourceUpload)
	require.NoError(t, err)

	svc.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, err = svc.AcceptImage(ctx, "fresh", pngBytes, entity.SourceUpload)
	require.NoError(t, err)

	removed, err := svc.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"old"}, removed)
}

func TestSessionService_NewIDIsUnique(t *testing.T) {
	svc := newSessionService(entity.ModeSingleShot)
	require.NotEqual(t, svc.NewID(), svc.NewID())
}
