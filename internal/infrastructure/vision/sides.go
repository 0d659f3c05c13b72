package vision

import (
	"fmt"

	"vqa-bot/internal/domain/entity"
)

const (
	DefaultMaxSide = 768
	DefaultMinSide = 16
)

func checkSides(width, height, minSide int) error {
	if width < minSide || height < minSide {
		return fmt.Errorf("image is too small (%dx%d): %w", width, height, entity.ErrUnsupportedImage)
	}
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
