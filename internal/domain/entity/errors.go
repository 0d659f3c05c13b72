package entity

import "errors"

var (
	ErrEmptyQuestion    = errors.New("question is empty")
	ErrNoImage          = errors.New("no image provided")
	ErrUnsupportedImage = errors.New("unsupported image")
	ErrImageTooLarge    = errors.New("image is too large")
	ErrInferenceFailed  = errors.New("inference failed")
	ErrSessionNotFound  = errors.New("session not found")
)

// Сообщения для пользователя
const (
	NoticeEmptyQuestion    = "Please enter a question."
	NoticeNoImage          = "Please provide an image."
	NoticeUnsupportedImage = "Unsupported image. Please use a JPG or PNG file."
	NoticeImageTooLarge    = "The image is too large."
	NoticeInferenceFailed  = "Inference failed. Please try again."
	NoticeGenericError     = "Something went wrong. Please try again."
)

// Notice переводит ошибку в сообщение для пользователя.
// Внутренние детали наружу не выходят.
func Notice(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyQuestion):
		return NoticeEmptyQuestion
	case errors.Is(err, ErrNoImage):
		return NoticeNoImage
	case errors.Is(err, ErrUnsupportedImage):
		return NoticeUnsupportedImage
	case errors.Is(err, ErrImageTooLarge):
		return NoticeImageTooLarge
	case errors.Is(err, ErrInferenceFailed):
		return NoticeInferenceFailed
	default:
		return NoticeGenericError
	}
}
