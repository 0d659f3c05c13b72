package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/lithammer/dedent"
	"github.com/rs/zerolog/log"

	app "vqa-bot/internal/application"
	"vqa-bot/internal/container"
	"vqa-bot/internal/domain/entity"
)

const (
	msgStart = `
		👋 Hi! Send me a picture and ask questions about it.

		📸 Send a photo or an image file (JPG or PNG)
		❓ Then type a question, for example "What color is the car?"

		📋 Commands:
		/help — how to use the bot
		/history — questions and answers for the current image
		/clear — clear the history
		/reset — start over`

	msgHelp = `
		ℹ️ How to use the bot:

		1️⃣ Send a photo, or an image as a file to keep the original quality
		2️⃣ Ask a question about it in plain text
		3️⃣ A photo with a caption is treated as an image and a question

		A new image replaces the previous one. %s`

	msgHelpConversation = "Your questions and answers are kept, see /history."
	msgHelpSingleShot   = "Only the latest answer is kept."

	msgImageAccepted   = "🖼 Got it. Now ask a question about the image."
	msgHistoryCleared  = "🧹 History cleared. The image is still here."
	msgReset           = "🔄 Session reset. Send a new image."
	msgHistoryEmpty    = "No questions yet."
	msgHistoryDisabled = "History is turned off, only the latest answer is kept."
	msgUnknownCommand  = "❓ Unknown command. Use /help."
)

// Предел длины текста одного сообщения Telegram (в символах)
const maxMessageLen = 4096

// BotAPI часть клиента Telegram, которой пользуется бот
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Options параметры бота
type Options struct {
	MaxImageBytes int64
	HTTPClient    *resty.Client // для скачивания файлов, по умолчанию resty.New()
}

// Bot Telegram-бот: чат это сессия
type Bot struct {
	tg       BotAPI
	sessions *app.SessionService
	qa       *app.QAService
	http     *resty.Client
	maxBytes int64
	wg       sync.WaitGroup

	mu     sync.Mutex
	queues map[int64]*chatQueue
}

// chatQueue очередь сообщений одного чата, её разбирает одна горутина
type chatQueue struct {
	pending []*tgbotapi.Message
	running bool
}

// NewBot создаёт бота поверх готового клиента Telegram
func NewBot(tg BotAPI, c *container.Container, opts Options) *Bot {
	if opts.MaxImageBytes <= 0 {
		opts.MaxImageBytes = entity.DefaultMaxImageBytes
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = resty.New().SetTimeout(30 * time.Second)
	}

	return &Bot{
		tg:       tg,
		sessions: c.SessionService,
		qa:       c.QAService,
		http:     opts.HTTPClient,
		maxBytes: opts.MaxImageBytes,
		queues:   make(map[int64]*chatQueue),
	}
}

// Connect авторизуется в Telegram
func Connect(token string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	log.Info().Str("username", api.Self.UserName).Msg("authorized on telegram")
	return api, nil
}

// Run читает обновления, пока не отменён контекст.
// Чаты обрабатываются параллельно, сообщения одного чата строго по очереди.
func (b *Bot) Run(ctx context.Context, api *tgbotapi.BotAPI) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	err := b.dispatch(ctx, api.GetUpdatesChan(u))
	api.StopReceivingUpdates()
	log.Info().Msg("telegram bot stopped")
	return err
}

// dispatch раскладывает обновления по очередям чатов.
// Возвращается после отмены контекста или закрытия канала, дождавшись обработчиков.
func (b *Bot) dispatch(ctx context.Context, updates <-chan tgbotapi.Update) error {
	defer b.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || update.Message.Chat == nil {
				continue
			}
			b.enqueue(ctx, update.Message)
		}
	}
}

func (b *Bot) enqueue(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.queues[chatID]
	if !ok {
		q = &chatQueue{}
		b.queues[chatID] = q
	}
	q.pending = append(q.pending, msg)
	if q.running {
		return
	}
	q.running = true

	b.wg.Add(1)
	go b.drain(ctx, chatID, q)
}

// drain обрабатывает очередь чата, пока она не опустеет
func (b *Bot) drain(ctx context.Context, chatID int64, q *chatQueue) {
	defer b.wg.Done()

	for {
		b.mu.Lock()
		if len(q.pending) == 0 {
			q.running = false
			delete(b.queues, chatID)
			b.mu.Unlock()
			return
		}
		msg := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		b.mu.Unlock()

		if ctx.Err() != nil {
			log.Debug().Int64("chatID", chatID).Msg("dropping message after shutdown")
			continue
		}
		b.HandleMessage(ctx, msg)
	}
}

// HandleMessage обрабатывает одно входящее сообщение
func (b *Bot) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID
	id := sessionKey(chatID)

	if msg.IsCommand() {
		b.handleCommand(ctx, msg, id)
		return
	}

	if fileID, source, ok := imageFromMessage(msg); ok {
		b.handleImage(ctx, msg, id, fileID, source)
		return
	}

	if msg.Document != nil {
		b.replyError(chatID, id, entity.ErrUnsupportedImage)
		return
	}

	b.handleQuestion(ctx, chatID, id, msg.Text)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, id string) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		b.reply(chatID, formatReplyText(msgStart))

	case "help":
		note := msgHelpSingleShot
		if b.sessions.Mode() == entity.ModeConversation {
			note = msgHelpConversation
		}
		b.reply(chatID, formatReplyText(msgHelp, note))

	case "history":
		if b.sessions.Mode() != entity.ModeConversation {
			b.reply(chatID, msgHistoryDisabled)
			return
		}
		session, err := b.sessions.Get(ctx, id)
		if err != nil {
			b.replyError(chatID, id, err)
			return
		}
		for _, chunk := range formatHistory(session) {
			b.reply(chatID, chunk)
		}

	case "clear":
		if _, err := b.sessions.ClearHistory(ctx, id); err != nil {
			b.replyError(chatID, id, err)
			return
		}
		b.reply(chatID, msgHistoryCleared)

	case "reset":
		if err := b.sessions.Reset(ctx, id); err != nil {
			b.replyError(chatID, id, err)
			return
		}
		b.reply(chatID, msgReset)

	default:
		b.reply(chatID, msgUnknownCommand)
	}
}

func (b *Bot) handleImage(ctx context.Context, msg *tgbotapi.Message, id, fileID string, source entity.ImageSource) {
	chatID := msg.Chat.ID

	data, err := b.downloadFile(ctx, fileID)
	if err != nil {
		b.replyError(chatID, id, err)
		return
	}

	if _, err := b.sessions.AcceptImage(ctx, id, data, source); err != nil {
		b.replyError(chatID, id, err)
		return
	}
	log.Info().Str("session", id).Str("source", string(source)).Int("bytes", len(data)).Msg("image accepted")

	if caption := strings.TrimSpace(msg.Caption); caption != "" {
		b.handleQuestion(ctx, chatID, id, caption)
		return
	}
	b.reply(chatID, msgImageAccepted)
}

func (b *Bot) handleQuestion(ctx context.Context, chatID int64, id, question string) {
	if _, err := b.tg.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		log.Debug().Err(err).Msg("failed to send chat action")
	}

	result, err := b.qa.Ask(ctx, id, question)
	if err != nil {
		b.replyError(chatID, id, err)
		return
	}
	b.reply(chatID, result.Answer.Text)
}

// downloadFile скачивает файл из Telegram с ограничением размера
func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.tg.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("get file url: %w", err)
	}

	res, err := b.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("download file: %s", res.Status())
	}

	data := res.Body()
	if int64(len(data)) > b.maxBytes {
		return nil, fmt.Errorf("file is %d bytes: %w", len(data), entity.ErrImageTooLarge)
	}
	return data, nil
}

func (b *Bot) replyError(chatID int64, id string, err error) {
	if errors.Is(err, entity.ErrInferenceFailed) || entity.Notice(err) == entity.NoticeGenericError {
		log.Error().Err(err).Str("session", id).Msg("telegram request failed")
	} else {
		log.Debug().Err(err).Str("session", id).Msg("telegram request rejected")
	}
	b.reply(chatID, "⚠️ "+entity.Notice(err))
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, truncate(text, maxMessageLen))
	if _, err := b.tg.Send(msg); err != nil {
		log.Error().Err(err).Int64("chatID", chatID).Msg("failed to send message")
	}
}

func sessionKey(chatID int64) string {
	return fmt.Sprintf("tg:%d", chatID)
}

// imageFromMessage находит изображение в сообщении.
// Фото считается снимком с камеры, файл с картинкой загрузкой.
func imageFromMessage(msg *tgbotapi.Message) (string, entity.ImageSource, bool) {
	if len(msg.Photo) > 0 {
		// Последний размер самый большой
		return msg.Photo[len(msg.Photo)-1].FileID, entity.SourceCamera, true
	}
	if doc := msg.Document; doc != nil && entity.IsSupportedMIME(doc.MimeType) {
		return doc.FileID, entity.SourceUpload, true
	}
	return "", "", false
}

// formatHistory собирает историю в сообщения не длиннее maxMessageLen.
// Пары не разрываются между сообщениями, слишком длинная пара обрезается.
func formatHistory(session *entity.Session) []string {
	history := session.History()
	if len(history) == 0 {
		return []string{msgHistoryEmpty}
	}

	var (
		chunks []string
		sb     strings.Builder
		size   int
	)
	for i, p := range history {
		entry := truncate(fmt.Sprintf("%d. Q: %s\n   A: %s", i+1, p.Question, p.Answer), maxMessageLen)
		n := utf8.RuneCountInString(entry)

		if size > 0 && size+2+n > maxMessageLen {
			chunks = append(chunks, sb.String())
			sb.Reset()
			size = 0
		}
		if size > 0 {
			sb.WriteString("\n\n")
			size += 2
		}
		sb.WriteString(entry)
		size += n
	}
	return append(chunks, sb.String())
}

// truncate обрезает текст до limit символов
func truncate(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit-1]) + "…"
}

func formatReplyText(text string, a ...any) string {
	return fmt.Sprintf(strings.TrimSpace(dedent.Dedent(text)), a...)
}
