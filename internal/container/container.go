package container

import (
	"time"

	app "vqa-bot/internal/application"
	"vqa-bot/internal/domain/port"
)

type Container struct {
	SessionService *app.SessionService
	QAService      *app.QAService
}

// Deps зависимости из инфраструктуры
type Deps struct {
	Sessions     port.SessionRepository
	Preprocessor port.ImagePreprocessor
	Answerer     port.Answerer
}

func New(deps Deps, sessionOpts app.SessionOptions, inferenceTimeout time.Duration) *Container {
	sessionService := app.NewSessionService(deps.Sessions, deps.Preprocessor, sessionOpts)
	qaService := app.NewQAService(sessionService, deps.Answerer, inferenceTimeout)

	return &Container{
		SessionService: sessionService,
		QAService:      qaService,
	}
}
