package entity

import "time"

// Mode режим работы сессии
type Mode string

const (
	ModeSingleShot   Mode = "single_shot"  // Показываем только последний ответ
	ModeConversation Mode = "conversation" // Копим историю вопросов и ответов
)

// RenderState что показывать пользователю
type RenderState string

const (
	StateNoImagePrompt         RenderState = "no_image_prompt"          // Просим прислать изображение
	StateImageShownNoHistory   RenderState = "image_shown_no_history"   // Изображение есть, истории нет
	StateImageShownWithHistory RenderState = "image_shown_with_history" // Изображение и история
)

// Session представляет сессию пользователя
type Session struct {
	ID           string
	Mode         Mode
	Image        *Image    // Текущее изображение, nil если не загружено
	Conversation []QAPair  // История, только в ModeConversation
	LastAnswer   *QAPair   // Последний ответ
	ImageAt      time.Time // Когда принято текущее изображение
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewSession создаёт пустую сессию
func NewSession(id string, mode Mode, now time.Time) *Session {
	if mode != ModeConversation {
		mode = ModeSingleShot
	}
	return &Session{
		ID:        id,
		Mode:      mode,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// HasImage сообщает, загружено ли изображение
func (s *Session) HasImage() bool {
	return s.Image != nil && len(s.Image.Data) > 0
}

// RenderState выбирает одно из трёх представлений
func (s *Session) RenderState() RenderState {
	switch {
	case !s.HasImage():
		return StateNoImagePrompt
	case len(s.Conversation) == 0:
		return StateImageShownNoHistory
	default:
		return StateImageShownWithHistory
	}
}

// History возвращает копию истории
func (s *Session) History() []QAPair {
	if len(s.Conversation) == 0 {
		return nil
	}
	out := make([]QAPair, len(s.Conversation))
	copy(out, s.Conversation)
	return out
}

// Touch обновляет время последней активности
func (s *Session) Touch(now time.Time) {
	s.UpdatedAt = now
}

// IdleSince сообщает, что сессия не менялась с момента t
func (s *Session) IdleSince(t time.Time) bool {
	return !s.UpdatedAt.After(t)
}

// Clone возвращает копию сессии, срез истории не разделяется
func (s *Session) Clone() *Session {
	c := *s
	c.Conversation = s.History()
	if s.LastAnswer != nil {
		last := *s.LastAnswer
		c.LastAnswer = &last
	}
	return &c
}
