package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/example/wordmate/internal/ai"
	"github.com/example/wordmate/internal/importer"
	"github.com/example/wordmate/internal/quiz"
	"github.com/example/wordmate/internal/selection"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Card actions carried in callback data as "card:<action>:<index>"
const (
	cardKnown   = "known"
	cardMaster  = "master"
	cardExample = "example"
	cardSkip    = "skip"
)

func (b *Bot) handleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	if _, err := b.api.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		b.log.Warn("Failed to answer callback", "error", err)
	}
	chatID := callback.Message.Chat.ID
	parts := strings.Split(callback.Data, ":")

	switch parts[0] {
	case "menu":
		if len(parts) < 2 {
			return nil
		}
		switch parts[1] {
		case "learn":
			b.startSession(chatID, selection.Daily)
		case "review":
			b.startSession(chatID, selection.Review)
		case "quiz":
			b.startQuiz(chatID, "")
		case "stats":
			b.handleStats(chatID)
		}
	case "card":
		if len(parts) != 3 {
			return fmt.Errorf("malformed card callback %q", callback.Data)
		}
		index, err := strconv.Atoi(parts[2])
		if err != nil {
			return fmt.Errorf("malformed card callback %q: %w", callback.Data, err)
		}
		return b.handleCard(ctx, callback.Message, parts[1], index)
	case "quiz":
		if len(parts) != 3 {
			return fmt.Errorf("malformed quiz callback %q", callback.Data)
		}
		index, err1 := strconv.Atoi(parts[1])
		choice, err2 := strconv.Atoi(parts[2])
		if err := errors.Join(err1, err2); err != nil {
			return fmt.Errorf("malformed quiz callback %q: %w", callback.Data, err)
		}
		return b.handleQuizAnswer(ctx, callback.Message, index, choice)
	case "import":
		if len(parts) == 2 && parts[1] == "start" {
			b.startImport(ctx, chatID)
		} else {
			delete(b.pending, chatID)
			b.reply(chatID, "가져오기를 취소했어요.")
		}
	}
	return nil
}

// clearKeyboard removes the inline buttons from an answered message
func (b *Bot) clearKeyboard(message *tgbotapi.Message) {
	edit := tgbotapi.NewEditMessageReplyMarkup(message.Chat.ID, message.MessageID,
		tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}})
	if _, err := b.api.Request(edit); err != nil {
		b.log.Debug("Failed to clear keyboard", "error", err)
	}
}

func (b *Bot) startSession(chatID int64, mode selection.Mode) {
	settings, ok := b.vocab.Settings()
	if !ok {
		b.reply(chatID, msgNeedSetup)
		return
	}
	words := selection.Select(b.vocab.Words(), b.vocab.Stat, selection.Request{
		Grade: settings.Grade,
		Count: settings.DailyGoal,
		Mode:  mode,
		Now:   b.vocab.Now(),
	})
	if len(words) == 0 {
		if mode == selection.Review {
			b.reply(chatID, "복습할 단어가 없어요. 먼저 /learn 으로 새 단어를 학습해 보세요.")
		} else {
			b.reply(chatID, "🎉 오늘 학습할 단어를 모두 끝냈어요! /review 로 복습하거나 /fill 로 단어를 추가해 보세요.")
		}
		return
	}

	b.sessions[chatID] = &cardSession{Words: words, Mode: mode}
	title := "📖 오늘의 학습"
	if mode == selection.Review {
		title = "🔁 복습"
	}
	b.reply(chatID, fmt.Sprintf("%s: %d개의 단어를 준비했어요.", title, len(words)))
	b.showCard(chatID)
}

func (b *Bot) showCard(chatID int64) {
	session := b.sessions[chatID]
	word := session.Words[session.Current]
	i := strconv.Itoa(session.Current)
	text := fmt.Sprintf("(%d/%d) %s", session.Current+1, len(session.Words), formatWord(word))
	b.replyWithKeyboard(chatID, text, [][]MenuButton{
		{{Text: "✅ 외웠어요", CallbackData: "card:" + cardKnown + ":" + i}, {Text: "⭐ 완벽히 암기", CallbackData: "card:" + cardMaster + ":" + i}},
		{{Text: "🔄 새 예문", CallbackData: "card:" + cardExample + ":" + i}, {Text: "⏭ 건너뛰기", CallbackData: "card:" + cardSkip + ":" + i}},
	})
}

func (b *Bot) handleCard(ctx context.Context, message *tgbotapi.Message, action string, index int) error {
	chatID := message.Chat.ID
	session, ok := b.sessions[chatID]
	if !ok || index != session.Current {
		b.clearKeyboard(message)
		return nil
	}
	word := session.Words[session.Current]

	switch action {
	case cardExample:
		b.sendAlternateExample(ctx, chatID, word)
		return nil
	case cardKnown, cardMaster:
		if action == cardMaster {
			if err := b.vocab.SetMastered(ctx, word.ID, true); err != nil {
				return err
			}
		}
		if err := b.vocab.MarkReviewed(ctx, word.ID); err != nil {
			return err
		}
		if session.Mode == selection.Daily {
			b.vocab.RecordLearned(ctx, 1)
		}
		session.Known++
	case cardSkip:
	default:
		return fmt.Errorf("unknown card action %q", action)
	}

	b.clearKeyboard(message)
	session.Current++
	if session.Current < len(session.Words) {
		b.showCard(chatID)
		return nil
	}

	delete(b.sessions, chatID)
	text := fmt.Sprintf("🎉 끝! %d개 중 %d개를 익혔어요.", len(session.Words), session.Known)
	if session.Mode == selection.Daily {
		settings, _ := b.vocab.Settings()
		text += fmt.Sprintf("\n오늘 학습: %d / %d", b.vocab.LearnedToday(), settings.DailyGoal)
	}
	b.replyWithKeyboard(chatID, text, b.MainMenuButtons())
	return nil
}

func (b *Bot) startQuiz(chatID int64, args string) {
	settings, ok := b.vocab.Settings()
	if !ok {
		b.reply(chatID, msgNeedSetup)
		return
	}
	qtype := quiz.MultipleChoice
	if strings.EqualFold(strings.TrimSpace(args), "context") {
		qtype = quiz.ContextTest
	}
	q, err := quiz.New(b.vocab.Words(), b.vocab.Stat, quiz.Request{
		Grade: settings.Grade,
		Count: quiz.DefaultQuestionCount,
		Type:  qtype,
	})
	if err != nil {
		b.reply(chatID, "퀴즈를 낼 단어가 없어요. 다른 학년으로 바꾸거나 단어를 추가해 보세요.")
		return
	}
	b.quizzes[chatID] = q
	b.reply(chatID, fmt.Sprintf("📝 퀴즈 시작! 모두 %d문제예요.", q.Total()))
	b.showQuestion(chatID)
}

func (b *Bot) showQuestion(chatID int64) {
	q := b.quizzes[chatID]
	question, index, ok := q.Current()
	if !ok {
		return
	}
	var text string
	if question.Type == quiz.ContextTest {
		text = fmt.Sprintf("Q%d/%d. 빈칸에 알맞은 단어는?\n\n%s", index+1, q.Total(), question.Prompt)
	} else {
		text = fmt.Sprintf("Q%d/%d. '%s' 의 뜻은?", index+1, q.Total(), question.Prompt)
	}
	buttons := make([][]MenuButton, 0, len(question.Options))
	for i, option := range question.Options {
		buttons = append(buttons, []MenuButton{{Text: option, CallbackData: fmt.Sprintf("quiz:%d:%d", index, i)}})
	}
	b.replyWithKeyboard(chatID, text, buttons)
}

func (b *Bot) handleQuizAnswer(ctx context.Context, message *tgbotapi.Message, index, choice int) error {
	chatID := message.Chat.ID
	q, ok := b.quizzes[chatID]
	if !ok {
		b.clearKeyboard(message)
		return nil
	}
	question, _, _ := q.Current()
	correct, err := q.Answer(ctx, b.vocab, index, choice)
	if errors.Is(err, quiz.ErrStaleAnswer) || errors.Is(err, quiz.ErrFinished) {
		return nil
	}
	b.clearKeyboard(message)
	if err != nil {
		b.log.Warn("Quiz answer not recorded", "error", err)
	}

	if correct {
		b.reply(chatID, "⭕ 정답!")
	} else {
		b.reply(chatID, fmt.Sprintf("❌ 오답! 정답은 '%s' 예요.", question.Options[question.CorrectIndex]))
	}

	if !q.Done() {
		b.showQuestion(chatID)
		return nil
	}

	delete(b.quizzes, chatID)
	entry := q.Finish(ctx, b.vocab)
	text := fmt.Sprintf("🏁 퀴즈 끝! %d / %d (%d%%)", entry.Score, entry.Total, percent(entry.Score, entry.Total))
	if wrong := q.Wrong(); len(wrong) > 0 {
		text += "\n\n틀린 단어"
		for _, w := range wrong {
			text += fmt.Sprintf("\n%s - %s", w.Term, w.Meaning)
		}
	}
	b.replyWithKeyboard(chatID, text, b.MainMenuButtons())
	return nil
}

func (b *Bot) handleDocument(ctx context.Context, message *tgbotapi.Message) error {
	chatID := message.Chat.ID
	doc := message.Document
	if !importer.Supported(doc.FileName) {
		b.reply(chatID, "PDF, TXT, CSV, XLSX, XLS 파일만 읽을 수 있어요.")
		return nil
	}
	if doc.FileSize > b.config.MaxUploadBytes {
		b.reply(chatID, fmt.Sprintf("파일이 너무 커요. %dMB 이하로 보내 주세요.", b.config.MaxUploadBytes>>20))
		return nil
	}

	data, err := b.download(ctx, doc.FileID)
	if errors.Is(err, errFileTooLarge) {
		b.reply(chatID, fmt.Sprintf("파일이 너무 커요. %dMB 이하로 보내 주세요.", b.config.MaxUploadBytes>>20))
		return nil
	}
	if err != nil {
		b.reply(chatID, "파일을 받지 못했어요. 다시 보내 주세요.")
		return err
	}
	text, err := importer.ExtractText(doc.FileName, data)
	if err != nil {
		b.reply(chatID, "파일에서 글자를 읽지 못했어요.")
		return err
	}

	candidates := importer.ExtractCandidates(text, b.vocab.KnownTerms())
	if len(candidates) == 0 {
		b.reply(chatID, "새로운 단어를 찾지 못했어요.")
		return nil
	}
	b.pending[chatID] = candidates

	preview := candidates
	if len(preview) > b.config.PreviewCandidates {
		preview = preview[:b.config.PreviewCandidates]
	}
	text = fmt.Sprintf("📄 %s 에서 새 단어 %d개를 찾았어요.\n%s", doc.FileName, len(candidates), strings.Join(preview, ", "))
	if len(preview) < len(candidates) {
		text += fmt.Sprintf(" ... 외 %d개", len(candidates)-len(preview))
	}
	text += fmt.Sprintf("\n\nAI로 뜻과 예문을 채워 추가할까요? 단어마다 약 %d초가 걸려요.", int(b.config.ImportDelay.Seconds()))
	b.replyWithKeyboard(chatID, text, [][]MenuButton{
		{{Text: fmt.Sprintf("➕ 모두 추가 (%d개)", len(candidates)), CallbackData: "import:start"}, {Text: "취소", CallbackData: "import:cancel"}},
	})
	return nil
}

func (b *Bot) startImport(ctx context.Context, chatID int64) {
	terms, ok := b.pending[chatID]
	if !ok {
		b.reply(chatID, "가져올 단어가 없어요. 파일을 다시 보내 주세요.")
		return
	}
	if !b.ai.Enabled() {
		b.reply(chatID, "AI 기능이 꺼져 있어서 단어를 채울 수 없어요.")
		return
	}
	if !b.ai.Gate().IsAvailable() {
		b.aiFailure(chatID, ai.ErrQuotaCoolingDown)
		return
	}
	if !b.importing.CompareAndSwap(false, true) {
		b.reply(chatID, "이미 단어를 추가하는 중이에요. 끝날 때까지 기다려 주세요.")
		return
	}
	delete(b.pending, chatID)

	settings, _ := b.vocab.Settings()
	b.reply(chatID, fmt.Sprintf("🤖 %d개 단어를 하나씩 추가할게요. 끝나면 알려 드릴게요.", len(terms)))
	b.background(func() {
		defer b.importing.Store(false)
		result := b.bulkAdder().Run(ctx, terms, settings.Grade, func(done, total int, term string, err error) {
			if done%10 == 0 && done < total {
				b.reply(chatID, fmt.Sprintf("⏳ %d / %d 처리했어요.", done, total))
			}
		})
		b.reply(chatID, importSummary(result, len(terms)))
	})
}

func importSummary(result importer.Result, total int) string {
	text := fmt.Sprintf("📥 단어 추가 결과\n추가: %d개\n이미 있음: %d개\n실패: %d개", len(result.Added), len(result.Skipped), len(result.Failed))
	if result.Stopped {
		remaining := result.Remaining(total)
		switch {
		case ai.Skipped(result.Reason):
			text += fmt.Sprintf("\n\nAI 사용량 한도로 %d개는 추가하지 못했어요. 잠시 후 파일을 다시 보내 주세요.", remaining)
		case errors.Is(result.Reason, context.Canceled):
			text += fmt.Sprintf("\n\n중단되어 %d개는 추가하지 못했어요.", remaining)
		default:
			text += fmt.Sprintf("\n\n%d개는 추가하지 못했어요.", remaining)
		}
	}
	if len(result.Added) > 0 {
		terms := make([]string, 0, len(result.Added))
		for _, w := range result.Added {
			terms = append(terms, w.Term)
		}
		text += "\n\n" + strings.Join(terms, ", ")
	}
	return text
}
