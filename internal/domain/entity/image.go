package entity

import (
	"fmt"
	"net/http"
)

// ImageSource откуда пришло изображение
type ImageSource string

const (
	SourceUpload ImageSource = "upload" // Файл с диска
	SourceCamera ImageSource = "camera" // Снимок с камеры
)

const (
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
)

// DefaultMaxImageBytes ограничение размера по умолчанию (10MB)
const DefaultMaxImageBytes = 10 * 1024 * 1024

// Image изображение, по которому задают вопросы
type Image struct {
	Data     []byte
	MIMEType string
	Source   ImageSource
	Width    int // 0 пока не известно
	Height   int
}

// ParseImageSource разбирает источник из формы, по умолчанию upload
func ParseImageSource(s string) ImageSource {
	if ImageSource(s) == SourceCamera {
		return SourceCamera
	}
	return SourceUpload
}

// NewImage проверяет содержимое и создаёт изображение.
// Тип определяется по байтам, а не по имени файла.
func NewImage(data []byte, source ImageSource, maxBytes int64) (*Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image: %w", ErrUnsupportedImage)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("image is %d bytes, limit %d: %w", len(data), maxBytes, ErrImageTooLarge)
	}

	mimeType := http.DetectContentType(data)
	if !IsSupportedMIME(mimeType) {
		return nil, fmt.Errorf("content type %q: %w", mimeType, ErrUnsupportedImage)
	}

	return &Image{
		Data:     data,
		MIMEType: mimeType,
		Source:   ParseImageSource(string(source)),
	}, nil
}

// IsSupportedMIME jpg/jpeg/png
func IsSupportedMIME(mimeType string) bool {
	return mimeType == MIMEJPEG || mimeType == MIMEPNG
}
