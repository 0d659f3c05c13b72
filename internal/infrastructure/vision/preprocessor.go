//go:build gocv
// +build gocv

package vision

import (
	"context"
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"vqa-bot/internal/domain/entity"
	"vqa-bot/internal/domain/port"
)

// GoCVPreprocessor уменьшает большие изображения перед отправкой в модель
type GoCVPreprocessor struct {
	MaxSide     int
	MinSide     int
	JPEGQuality int
}

// NewGoCVPreprocessor создаёт препроцессор с ограничением по длинной стороне
func NewGoCVPreprocessor(maxSide int) *GoCVPreprocessor {
	if maxSide <= 0 {
		maxSide = DefaultMaxSide
	}
	return &GoCVPreprocessor{
		MaxSide:     maxSide,
		MinSide:     DefaultMinSide,
		JPEGQuality: 90,
	}
}

// Prepare декодирует изображение, проверяет размер и при необходимости уменьшает.
// Изображение в пределах MaxSide возвращается без перекодирования.
func (p *GoCVPreprocessor) Prepare(ctx context.Context, img *entity.Image) (*entity.Image, error) {
	_ = ctx
	mat, err := decodeToMat(img.Data)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, entity.ErrUnsupportedImage)
	}
	defer mat.Close()

	width, height := mat.Cols(), mat.Rows()
	if err := checkSides(width, height, p.MinSide); err != nil {
		return nil, err
	}

	out := *img
	out.Width, out.Height = width, height
	if maxInt(width, height) <= p.MaxSide {
		return &out, nil
	}

	// Приводим длинную сторону к MaxSide, пропорции сохраняем
	scale := float64(p.MaxSide) / float64(maxInt(width, height))
	newW := maxInt(1, int(float64(width)*scale))
	newH := maxInt(1, int(float64(height)*scale))

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(mat, &resized, image.Pt(newW, newH), 0, 0, gocv.InterpolationArea)

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, resized, []int{int(gocv.IMWriteJpegQuality), p.JPEGQuality})
	if err != nil {
		return nil, fmt.Errorf("encode resized image: %w", err)
	}
	defer buf.Close()

	// Буфер живёт в памяти OpenCV, копируем до Close
	data := append([]byte(nil), buf.GetBytes()...)

	out.Data = data
	out.MIMEType = entity.MIMEJPEG
	out.Width, out.Height = newW, newH
	return &out, nil
}

// decodeToMat превращает байты изображения в gocv.Mat.
// При ошибке ничего не аллоцировано, закрывать нечего.
func decodeToMat(imageData []byte) (gocv.Mat, error) {
	mat, err := gocv.IMDecode(imageData, gocv.IMReadColor)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("failed to decode image: %w", err)
	}
	if mat.Empty() {
		mat.Close()
		return gocv.Mat{}, errors.New("failed to decode image")
	}
	return mat, nil
}

var _ port.ImagePreprocessor = (*GoCVPreprocessor)(nil)
