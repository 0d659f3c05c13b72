package web

import (
	"embed"
	"html/template"
	"io"

	"vqa-bot/internal/domain/entity"
)

//go:embed templates/index.html
var templatesFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templatesFS, "templates/index.html"))

const (
	pageTitle  = "Visual Question Answering"
	pageFooter = "Answers are generated by a pretrained visual question answering model."
)

// pageData то, что видит шаблон
type pageData struct {
	Title        string
	Footer       string
	Prompt       string
	Notice       string
	State        entity.RenderState
	ImageVersion int64
	Width        int
	Height       int
	LastAnswer   *entity.QAPair
	History      []entity.QAPair
}

func newPageData(session *entity.Session, notice string) pageData {
	data := pageData{
		Title:      pageTitle,
		Footer:     pageFooter,
		Prompt:     entity.NoticeNoImage,
		Notice:     notice,
		State:      session.RenderState(),
		LastAnswer: session.LastAnswer,
		History:    session.History(),
	}
	if session.HasImage() {
		// Меняется только с новым изображением, вопросы кэш картинки не сбрасывают
		data.ImageVersion = session.ImageAt.UnixNano()
		data.Width, data.Height = previewSize(session.Image.Width, session.Image.Height)
	}
	return data
}

// previewSize вписывает картинку в 640px по ширине
func previewSize(w, h int) (int, int) {
	const maxWidth = 640
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	if w <= maxWidth {
		return w, h
	}
	return maxWidth, h * maxWidth / w
}

func renderPage(w io.Writer, data pageData) error {
	return pageTemplate.Execute(w, data)
}
