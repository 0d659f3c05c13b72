//go:build gocv && matprofile
// +build gocv,matprofile

package vision

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"vqa-bot/internal/domain/entity"
)

func TestGoCVPreprocessor_NoMatsLeftOpen(t *testing.T) {
	p := NewGoCVPreprocessor(100)
	before := gocv.MatProfile.Count()

	for i := 0; i < 5; i++ {
		_, err := p.Prepare(context.Background(), &entity.Image{Data: []byte("\x89PNG\r\n\x1a\nbroken"), MIMEType: entity.MIMEPNG})
		require.ErrorIs(t, err, entity.ErrUnsupportedImage)
	}
	_, err := p.Prepare(context.Background(), &entity.Image{Data: encodePNG(t, 400, 200), MIMEType: entity.MIMEPNG})
	require.NoError(t, err)

	require.Equal(t, before, gocv.MatProfile.Count())
}
