//go:build !gocv
// +build !gocv

package vision

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/rs/zerolog/log"

	"vqa-bot/internal/domain/entity"
	"vqa-bot/internal/domain/port"
)

// GoCVPreprocessor без OpenCV: читает только заголовок и не меняет байты.
// Уменьшение изображений доступно в сборке с тегом gocv.
type GoCVPreprocessor struct {
	MinSide int
}

// NewGoCVPreprocessor создаёт препроцессор-заглушку (без OpenCV).
// maxSide здесь не применяется, об этом пишется предупреждение.
func NewGoCVPreprocessor(maxSide int) *GoCVPreprocessor {
	if maxSide <= 0 {
		maxSide = DefaultMaxSide
	}
	log.Warn().
		Int("maxSide", maxSide).
		Msg("built without gocv tag, images are not resized")
	return &GoCVPreprocessor{MinSide: DefaultMinSide}
}

// Prepare проверяет, что изображение декодируется, и заполняет размеры.
func (p *GoCVPreprocessor) Prepare(ctx context.Context, img *entity.Image) (*entity.Image, error) {
	_ = ctx
	cfg, _, err := image.DecodeConfig(bytes.NewReader(img.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %v: %w", err, entity.ErrUnsupportedImage)
	}
	if err := checkSides(cfg.Width, cfg.Height, p.MinSide); err != nil {
		return nil, err
	}

	out := *img
	out.Width, out.Height = cfg.Width, cfg.Height
	return &out, nil
}

var _ port.ImagePreprocessor = (*GoCVPreprocessor)(nil)
