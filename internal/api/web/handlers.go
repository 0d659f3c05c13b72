package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"vqa-bot/internal/domain/entity"
)

const sessionCookie = "vqa_session"

// Запас на служебные части multipart-формы
const formOverhead = 64 * 1024

// Коды уведомлений для редиректа. В URL попадает код, а не текст.
var noticeCodes = map[string]string{
	"empty_question":    entity.NoticeEmptyQuestion,
	"no_image":          entity.NoticeNoImage,
	"unsupported_image": entity.NoticeUnsupportedImage,
	"image_too_large":   entity.NoticeImageTooLarge,
	"inference_failed":  entity.NoticeInferenceFailed,
	"error":             entity.NoticeGenericError,
}

func noticeCode(err error) string {
	switch {
	case errors.Is(err, entity.ErrEmptyQuestion):
		return "empty_question"
	case errors.Is(err, entity.ErrNoImage):
		return "no_image"
	case errors.Is(err, entity.ErrUnsupportedImage):
		return "unsupported_image"
	case errors.Is(err, entity.ErrImageTooLarge):
		return "image_too_large"
	case errors.Is(err, entity.ErrInferenceFailed):
		return "inference_failed"
	default:
		return "error"
	}
}

// sessionID берёт идентификатор из cookie или выдаёт новый
func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}

	id := s.sessions.NewID()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	id := s.sessionID(w, r)

	session, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Str("session", id).Msg("failed to load session")
		http.Error(w, entity.NoticeGenericError, http.StatusInternalServerError)
		return
	}

	notice := noticeCodes[r.URL.Query().Get("n")]

	var buf bytes.Buffer
	if err := renderPage(&buf, newPageData(session, notice)); err != nil {
		log.Error().Err(err).Msg("failed to render page")
		http.Error(w, entity.NoticeGenericError, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	id := s.sessionID(w, r)

	data, source, err := s.readImage(w, r)
	if err != nil {
		s.redirectWithError(w, r, id, err)
		return
	}

	if _, err := s.sessions.AcceptImage(r.Context(), id, data, source); err != nil {
		s.redirectWithError(w, r, id, err)
		return
	}

	log.Info().Str("session", id).Str("source", string(source)).Int("bytes", len(data)).Msg("image accepted")
	redirectHome(w, r, "")
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	id := s.sessionID(w, r)

	if err := r.ParseForm(); err != nil {
		redirectHome(w, r, "error")
		return
	}

	if _, err := s.qa.Ask(r.Context(), id, r.PostFormValue("question")); err != nil {
		s.redirectWithError(w, r, id, err)
		return
	}
	redirectHome(w, r, "")
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	id := s.sessionID(w, r)

	if _, err := s.sessions.ClearHistory(r.Context(), id); err != nil {
		s.redirectWithError(w, r, id, err)
		return
	}
	redirectHome(w, r, "")
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	id := s.sessionID(w, r)

	if err := s.sessions.Reset(r.Context(), id); err != nil {
		s.redirectWithError(w, r, id, err)
		return
	}
	redirectHome(w, r, "")
}

// handleImage отдаёт текущее изображение сессии
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	id := s.sessionID(w, r)

	session, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		http.Error(w, entity.NoticeGenericError, http.StatusInternalServerError)
		return
	}
	if !session.HasImage() {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", session.Image.MIMEType)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	http.ServeContent(w, r, "", session.ImageAt, bytes.NewReader(session.Image.Data))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type apiAnswer struct {
	Answer  string  `json:"answer"`
	Score   float64 `json:"score,omitempty"`
	Backend string  `json:"backend,omitempty"`
	Cached  bool    `json:"cached"`
}

type apiError struct {
	Error string `json:"error"`
}

// handleAPIAsk одноразовый вопрос: изображение и вопрос в одной форме, без сессии
func (s *Server) handleAPIAsk(w http.ResponseWriter, r *http.Request) {
	data, _, err := s.readImage(w, r)
	if err != nil && !errors.Is(err, entity.ErrNoImage) {
		writeJSON(w, apiStatus(err), apiError{Error: entity.Notice(err)})
		return
	}

	answer, err := s.qa.AskOnce(r.Context(), data, r.FormValue("question"))
	if err != nil {
		log.Warn().Err(err).Str("requestID", requestID(r)).Msg("api ask failed")
		writeJSON(w, apiStatus(err), apiError{Error: entity.Notice(err)})
		return
	}

	writeJSON(w, http.StatusOK, apiAnswer{
		Answer:  answer.Text,
		Score:   answer.Score,
		Backend: answer.Backend,
		Cached:  answer.Cached,
	})
}

type apiQAPair struct {
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	AskedAt  time.Time `json:"asked_at"`
}

type apiSession struct {
	ID         string      `json:"id"`
	Mode       string      `json:"mode"`
	State      string      `json:"state"`
	HasImage   bool        `json:"has_image"`
	LastAnswer *apiQAPair  `json:"last_answer,omitempty"`
	History    []apiQAPair `json:"history"`
}

func (s *Server) handleAPISession(w http.ResponseWriter, r *http.Request) {
	id := s.sessionID(w, r)

	session, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, apiError{Error: entity.NoticeGenericError})
		return
	}

	out := apiSession{
		ID:       session.ID,
		Mode:     string(session.Mode),
		State:    string(session.RenderState()),
		HasImage: session.HasImage(),
		History:  []apiQAPair{},
	}
	if p := session.LastAnswer; p != nil {
		out.LastAnswer = &apiQAPair{Question: p.Question, Answer: p.Answer, AskedAt: p.AskedAt}
	}
	for _, p := range session.History() {
		out.History = append(out.History, apiQAPair{Question: p.Question, Answer: p.Answer, AskedAt: p.AskedAt})
	}

	writeJSON(w, http.StatusOK, out)
}

// readImage читает поле image из multipart-формы с ограничением размера
func (s *Server) readImage(w http.ResponseWriter, r *http.Request) ([]byte, entity.ImageSource, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxImageBytes+formOverhead)

	if err := r.ParseMultipartForm(s.maxImageBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", fmt.Errorf("request body: %w", entity.ErrImageTooLarge)
		}
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, "", entity.ErrNoImage
		}
		return nil, "", fmt.Errorf("parse form: %w", err)
	}

	source := entity.ParseImageSource(r.FormValue("source"))

	file, _, err := r.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, source, entity.ErrNoImage
		}
		return nil, source, fmt.Errorf("read image field: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.maxImageBytes+1))
	if err != nil {
		return nil, source, fmt.Errorf("read image: %w", err)
	}
	if len(data) == 0 {
		return nil, source, entity.ErrNoImage
	}
	return data, source, nil
}

func (s *Server) redirectWithError(w http.ResponseWriter, r *http.Request, id string, err error) {
	code := noticeCode(err)
	if code == "error" || code == "inference_failed" {
		log.Error().Err(err).Str("session", id).Str("requestID", requestID(r)).Msg("request failed")
	} else {
		log.Debug().Err(err).Str("session", id).Msg("request rejected")
	}
	redirectHome(w, r, code)
}

// redirectHome Post/Redirect/Get: обновление страницы не повторяет запрос
func redirectHome(w http.ResponseWriter, r *http.Request, code string) {
	target := "/"
	if code != "" {
		target += "?n=" + url.QueryEscape(code)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func apiStatus(err error) int {
	switch {
	case errors.Is(err, entity.ErrEmptyQuestion),
		errors.Is(err, entity.ErrNoImage),
		errors.Is(err, entity.ErrUnsupportedImage):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, entity.ErrInferenceFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to write json response")
	}
}
