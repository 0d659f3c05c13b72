package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var (
	pngBytes  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	jpegBytes = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}
)

func TestNewSession_DefaultState(t *testing.T) {
	now := time.Unix(100, 0)
	s := NewSession("abc", ModeConversation, now)
	require.Equal(t, "abc", s.ID)
	require.Equal(t, ModeConversation, s.Mode)
	require.Equal(t, StateNoImagePrompt, s.RenderState())
	require.Equal(t, now, s.UpdatedAt)
}

func TestNewSession_UnknownModeFallsBackToSingleShot(t *testing.T) {
	s := NewSession("abc", Mode("weird"), time.Now())
	require.Equal(t, ModeSingleShot, s.Mode)
}

func TestSession_RenderStates(t *testing.T) {
	s := NewSession("abc", ModeConversation, time.Now())
	require.Equal(t, StateNoImagePrompt, s.RenderState())

	s.Image = &Image{Data: pngBytes, MIMEType: MIMEPNG}
	require.Equal(t, StateImageShownNoHistory, s.RenderState())

	s.Conversation = append(s.Conversation, QAPair{Question: "q", Answer: "a"})
	require.Equal(t, StateImageShownWithHistory, s.RenderState())
}

func TestSession_CloneDoesNotShareHistory(t *testing.T) {
	s := NewSession("abc", ModeConversation, time.Now())
	s.Conversation = []QAPair{{Question: "q1", Answer: "a1"}}

	c := s.Clone()
	c.Conversation = append(c.Conversation, QAPair{Question: "q2", Answer: "a2"})
	c.Conversation[0].Answer = "changed"

	require.Len(t, s.Conversation, 1)
	require.Equal(t, "a1", s.Conversation[0].Answer)
}

func TestSession_IdleSince(t *testing.T) {
	s := NewSession("abc", ModeSingleShot, time.Unix(100, 0))
	require.True(t, s.IdleSince(time.Unix(100, 0)))
	require.False(t, s.IdleSince(time.Unix(99, 0)))
}

func TestNewImage(t *testing.T) {
	img, err := NewImage(pngBytes, SourceCamera, 0)
	require.NoError(t, err)
	require.Equal(t, MIMEPNG, img.MIMEType)
	require.Equal(t, SourceCamera, img.Source)

	img, err = NewImage(jpegBytes, "", 0)
	require.NoError(t, err)
	require.Equal(t, MIMEJPEG, img.MIMEType)
	require.Equal(t, SourceUpload, img.Source)
}

func TestNewImage_Rejects(t *testing.T) {
	_, err := NewImage(nil, SourceUpload, 0)
	require.ErrorIs(t, err, ErrUnsupportedImage)

	_, err = NewImage([]byte("GIF89a......"), SourceUpload, 0)
	require.ErrorIs(t, err, ErrUnsupportedImage)

	_, err = NewImage(pngBytes, SourceUpload, 4)
	require.ErrorIs(t, err, ErrImageTooLarge)
}

func TestNotice(t *testing.T) {
	require.Equal(t, "", Notice(nil))
	require.Equal(t, NoticeEmptyQuestion, Notice(ErrEmptyQuestion))
	require.Equal(t, NoticeNoImage, Notice(ErrNoImage))
	require.Equal(t, NoticeInferenceFailed, Notice(ErrInferenceFailed))
	require.Equal(t, NoticeGenericError, Notice(ErrSessionNotFound))
}
