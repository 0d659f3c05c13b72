//go:build gocv
// +build gocv

package vision

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"vqa-bot/internal/domain/entity"
)

func TestGoCVPreprocessor_DownscalesLongSide(t *testing.T) {
	p := NewGoCVPreprocessor(100)
	data := encodePNG(t, 400, 200)

	out, err := p.Prepare(context.Background(), &entity.Image{Data: data, MIMEType: entity.MIMEPNG})
	require.NoError(t, err)
	require.Equal(t, 100, out.Width)
	require.Equal(t, 50, out.Height)
	require.Equal(t, entity.MIMEJPEG, out.MIMEType)
}

func TestGoCVPreprocessor_KeepsSmallImage(t *testing.T) {
	p := NewGoCVPreprocessor(1000)
	data := encodePNG(t, 64, 40)

	out, err := p.Prepare(context.Background(), &entity.Image{Data: data, MIMEType: entity.MIMEPNG})
	require.NoError(t, err)
	require.Equal(t, data, out.Data)
	require.Equal(t, entity.MIMEPNG, out.MIMEType)
}

func TestGoCVPreprocessor_RejectsUndecodable(t *testing.T) {
	p := NewGoCVPreprocessor(0)
	_, err := p.Prepare(context.Background(), &entity.Image{Data: []byte("\x89PNG\r\n\x1a\nbroken"), MIMEType: entity.MIMEPNG})
	require.ErrorIs(t, err, entity.ErrUnsupportedImage)
}
