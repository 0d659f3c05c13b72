package entity

import (
	"strings"
	"time"
)

// Event действие пользователя или результат модели
type Event interface {
	isEvent()
}

// ImageUploaded файл загружен
type ImageUploaded struct {
	Image *Image
	At    time.Time
}

// ImageCaptured снимок с камеры
type ImageCaptured struct {
	Image *Image
	At    time.Time
}

// QuestionSubmitted пользователь отправил вопрос
type QuestionSubmitted struct{ Question string }

// AnswerReceived модель ответила на вопрос
type AnswerReceived struct {
	Question string
	Answer   string
	At       time.Time
}

// HistoryCleared пользователь очистил историю
type HistoryCleared struct{}

func (ImageUploaded) isEvent()     {}
func (ImageCaptured) isEvent()     {}
func (QuestionSubmitted) isEvent() {}
func (AnswerReceived) isEvent()    {}
func (HistoryCleared) isEvent()    {}

// Transition результат применения события
type Transition struct {
	Session        Session
	Err            error  // ошибка валидации, состояние при этом не меняется
	Notice         string // сообщение для пользователя
	NeedsInference bool   // нужно вызвать модель
	Question       string // вопрос без пробелов по краям
}

// Reduce применяет событие к сессии и возвращает новое состояние.
// Функция чистая: исходная сессия не меняется.
func Reduce(s Session, ev Event) Transition {
	next := *s.Clone()

	switch e := ev.(type) {
	case ImageUploaded:
		return withImage(next, e.Image, SourceUpload, e.At)

	case ImageCaptured:
		return withImage(next, e.Image, SourceCamera, e.At)

	case QuestionSubmitted:
		q := strings.TrimSpace(e.Question)
		if q == "" {
			return rejected(next, ErrEmptyQuestion)
		}
		if !next.HasImage() {
			return rejected(next, ErrNoImage)
		}
		return Transition{Session: next, NeedsInference: true, Question: q}

	case AnswerReceived:
		pair := QAPair{Question: e.Question, Answer: e.Answer, AskedAt: e.At}
		next.LastAnswer = &pair
		if next.Mode == ModeConversation {
			next.Conversation = append(next.Conversation, pair)
		}
		return Transition{Session: next}

	case HistoryCleared:
		next.Conversation = nil
		next.LastAnswer = nil
		return Transition{Session: next}
	}

	return Transition{Session: next}
}

func withImage(s Session, img *Image, source ImageSource, at time.Time) Transition {
	if img == nil || len(img.Data) == 0 {
		return rejected(s, ErrNoImage)
	}
	c := *img
	c.Source = source
	s.Image = &c
	s.ImageAt = at
	// Прошлый ответ относится к старому изображению, история остаётся
	s.LastAnswer = nil
	return Transition{Session: s}
}

func rejected(s Session, err error) Transition {
	return Transition{Session: s, Err: err, Notice: Notice(err)}
}
