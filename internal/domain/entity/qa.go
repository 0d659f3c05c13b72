package entity

import "time"

// QAPair пара вопрос-ответ. После создания не меняется.
type QAPair struct {
	Question string
	Answer   string
	AskedAt  time.Time
}

// Answer результат модели
type Answer struct {
	Text    string
	Score   float64 // уверенность модели, 0 если бэкенд её не отдаёт
	Backend string  // какой бэкенд ответил
	Cached  bool    // ответ взят из кэша
}
