package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/example/wordmate/internal/ai"
	"github.com/example/wordmate/internal/importer"
	"github.com/example/wordmate/internal/logger"
	"github.com/example/wordmate/internal/notify"
	"github.com/example/wordmate/internal/quiz"
	"github.com/example/wordmate/internal/selection"
	"github.com/example/wordmate/internal/vocab"
	"github.com/example/wordmate/pkg/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// telegramAPI is the part of *tgbotapi.BotAPI the bot uses
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetFileDirectURL(fileID string) (string, error)
	StopReceivingUpdates()
}

// MenuButton represents a button in the menu
type MenuButton struct {
	Text         string
	CallbackData string
}

// createKeyboard creates a keyboard from menu buttons
func createKeyboard(buttons [][]MenuButton) tgbotapi.InlineKeyboardMarkup {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, row := range buttons {
		var keyboardRow []tgbotapi.InlineKeyboardButton
		for _, button := range row {
			keyboardRow = append(keyboardRow, tgbotapi.NewInlineKeyboardButtonData(button.Text, button.CallbackData))
		}
		keyboard = append(keyboard, keyboardRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}

// cardSession is a running flashcard session
type cardSession struct {
	Words   []models.Word
	Current int
	Mode    selection.Mode
	Known   int
}

// Bot is the Telegram frontend. Updates are handled one at a time; AI calls
// and bulk imports run in background goroutines.
type Bot struct {
	api        telegramAPI
	vocab      *vocab.Vocabulary
	ai         *ai.Service
	log        *logger.Logger
	config     *BotConfig
	httpClient *http.Client

	chatMu sync.RWMutex
	chatID int64

	sessions map[int64]*cardSession
	quizzes  map[int64]*quiz.Quiz
	pending  map[int64][]string

	importing atomic.Bool
	wg        sync.WaitGroup
}

// New connects to Telegram with token and creates the bot
func New(token string, words *vocab.Vocabulary, service *ai.Service, log *logger.Logger, config *BotConfig) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("unable to create bot: %w", err)
	}
	if log != nil {
		log.Info("Authorized on Telegram", "account", api.Self.UserName)
	}
	return newWithAPI(api, words, service, log, config), nil
}

func newWithAPI(api telegramAPI, words *vocab.Vocabulary, service *ai.Service, log *logger.Logger, config *BotConfig) *Bot {
	if log == nil {
		log = logger.NewNop()
	}
	if config == nil {
		config = DefaultConfig()
	}
	return &Bot{
		api:        api,
		vocab:      words,
		ai:         service,
		log:        log,
		config:     config,
		httpClient: &http.Client{Timeout: time.Minute},
		chatID:     config.ChatID,
		sessions:   make(map[int64]*cardSession),
		quizzes:    make(map[int64]*quiz.Quiz),
		pending:    make(map[int64][]string),
	}
}

// Run polls for updates until ctx is cancelled, then waits for background
// work to finish
func (b *Bot) Run(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = b.config.PollTimeout
	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.Info("Bot started")
	defer b.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

// Notify sends a notice to the learner's chat
func (b *Bot) Notify(n notify.Notice) {
	chatID := b.currentChat()
	if chatID == 0 {
		b.log.Info("Notice without an active chat", "level", string(n.Level), "message", n.Message)
		return
	}
	b.send(tgbotapi.NewMessage(chatID, noticeIcon(n.Level)+" "+n.Message))
}

func noticeIcon(level notify.Level) string {
	switch level {
	case notify.Success:
		return "✅"
	case notify.Warning:
		return "⚠️"
	case notify.Error:
		return "❌"
	default:
		return "ℹ️"
	}
}

func (b *Bot) currentChat() int64 {
	b.chatMu.RLock()
	defer b.chatMu.RUnlock()
	return b.chatID
}

// accept reports whether updates from chatID are handled, binding the bot to
// the first chat when none is configured
func (b *Bot) accept(chatID int64) bool {
	b.chatMu.Lock()
	defer b.chatMu.Unlock()
	if b.chatID == 0 {
		b.chatID = chatID
		b.log.Info("Bound to chat", "chat_id", chatID)
	}
	return b.chatID == chatID
}

// HandleUpdate dispatches a single update
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		if !b.accept(update.Message.Chat.ID) {
			b.log.Warn("Ignoring message from another chat", "chat_id", update.Message.Chat.ID)
			return
		}
		if err := b.handleMessage(ctx, update.Message); err != nil {
			b.log.Error("Failed to handle message", "error", err)
		}
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil:
		if !b.accept(update.CallbackQuery.Message.Chat.ID) {
			return
		}
		if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
			b.log.Error("Failed to handle callback", "data", update.CallbackQuery.Data, "error", err)
		}
	}
}

// background runs fn outside the update loop; Run waits for it on shutdown
func (b *Bot) background(fn func()) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		fn()
	}()
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		b.log.Error("Failed to send message", "error", err)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) replyWithKeyboard(chatID int64, text string, buttons [][]MenuButton) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = createKeyboard(buttons)
	b.send(msg)
}

// download fetches an uploaded document, refusing anything over the limit
func (b *Bot) download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve file: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download file: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, int64(b.config.MaxUploadBytes)+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) > b.config.MaxUploadBytes {
		return nil, errFileTooLarge
	}
	return data, nil
}

func (b *Bot) bulkAdder() *importer.BulkAdder {
	return importer.NewBulkAdder(b.ai, b.vocab, b.log, b.config.ImportDelay)
}
