package bot

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/example/wordmate/internal/ai"
	"github.com/example/wordmate/internal/selection"
	"github.com/example/wordmate/internal/vocab"
	"github.com/example/wordmate/pkg/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var errFileTooLarge = errors.New("file is too large")

const msgNeedSetup = "먼저 설정을 해 주세요: /start 이름 학년 목표\n예) /start 민지 중2 10"

const helpText = `📚 영어 단어 학습 봇

/start 이름 학년 목표 - 처음 설정 (예: /start 민지 중2 10)
/settings - 설정 보기, /settings 이름 학년 목표 - 설정 변경
/learn - 오늘의 단어 학습
/review - 복습
/quiz - 뜻 고르기 퀴즈, /quiz context - 빈칸 퀴즈
/words - 내 단어 목록, /words 중1 - 학년별 목록
/add 단어|품사|뜻|예문|예문해석 - 단어 직접 추가
/fill 단어 - AI로 단어 정보를 채워 추가
/edit ID|단어|품사|뜻|예문|예문해석 - 내 단어 수정
/delete ID - 내 단어 삭제
/example ID - AI 새 예문
/summary 영어 글 - AI 한국어 요약
/stats - 학습 통계
/theme - 화면 테마 전환

PDF, TXT, CSV, XLSX, XLS 파일을 보내면 새 단어를 찾아 추가할 수 있어요.`

var fieldNames = map[string]string{
	"Term":            "단어",
	"PartOfSpeech":    "품사",
	"Meaning":         "뜻",
	"ExampleSentence": "예문",
	"Grade":           "학년",
	"Username":        "이름",
	"DailyGoal":       "하루 목표(1~100)",
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) error {
	chatID := message.Chat.ID
	if message.Document != nil {
		return b.handleDocument(ctx, message)
	}
	if !message.IsCommand() {
		b.reply(chatID, "명령어를 입력해 주세요. /help 로 사용법을 볼 수 있어요.")
		return nil
	}

	args := strings.TrimSpace(message.CommandArguments())
	switch message.Command() {
	case "start":
		return b.handleStart(ctx, chatID, args)
	case "help", "menu":
		b.showMainMenu(chatID)
	case "settings":
		return b.handleSettings(ctx, chatID, args)
	case "learn":
		b.startSession(chatID, selection.Daily)
	case "review":
		b.startSession(chatID, selection.Review)
	case "quiz":
		b.startQuiz(chatID, args)
	case "words":
		b.handleWords(chatID, args)
	case "add":
		return b.handleAdd(ctx, chatID, args)
	case "fill":
		b.handleFill(ctx, chatID, args)
	case "edit":
		return b.handleEdit(ctx, chatID, args)
	case "delete":
		return b.handleDelete(ctx, chatID, args)
	case "example":
		b.handleExample(ctx, chatID, args)
	case "summary":
		b.handleSummary(ctx, chatID, args)
	case "stats":
		b.handleStats(chatID)
	case "theme":
		return b.handleTheme(ctx, chatID, args)
	default:
		b.reply(chatID, "알 수 없는 명령어예요. /help 로 사용법을 확인해 주세요.")
	}
	return nil
}

// showMainMenu shows the command overview with shortcut buttons
func (b *Bot) showMainMenu(chatID int64) {
	b.replyWithKeyboard(chatID, helpText, b.MainMenuButtons())
}

// MainMenuButtons returns the buttons for the main menu
func (b *Bot) MainMenuButtons() [][]MenuButton {
	return [][]MenuButton{
		{{Text: "📖 오늘의 학습", CallbackData: "menu:learn"}, {Text: "🔁 복습", CallbackData: "menu:review"}},
		{{Text: "📝 퀴즈", CallbackData: "menu:quiz"}, {Text: "📊 통계", CallbackData: "menu:stats"}},
	}
}

func (b *Bot) handleStart(ctx context.Context, chatID int64, args string) error {
	settings, ok := b.vocab.Settings()
	if args == "" {
		if !ok {
			b.reply(chatID, "안녕하세요! 영어 단어 학습을 시작해 볼까요?\n\n"+msgNeedSetup)
			return nil
		}
		b.replyWithKeyboard(chatID, fmt.Sprintf("다시 오신 걸 환영해요, %s님! 오늘도 %d개 목표로 달려 봐요.", settings.Username, settings.DailyGoal), b.MainMenuButtons())
		return nil
	}
	return b.saveSettings(ctx, chatID, args, settings)
}

func (b *Bot) handleSettings(ctx context.Context, chatID int64, args string) error {
	settings, ok := b.vocab.Settings()
	if args == "" {
		if !ok {
			b.reply(chatID, msgNeedSetup)
			return nil
		}
		b.reply(chatID, fmt.Sprintf("⚙️ 현재 설정\n이름: %s\n학년: %s\n하루 목표: %d개\n테마: %s\n\n변경: /settings 이름 학년 목표",
			settings.Username, settings.Grade, settings.DailyGoal, b.vocab.Theme()))
		return nil
	}
	return b.saveSettings(ctx, chatID, args, settings)
}

func (b *Bot) saveSettings(ctx context.Context, chatID int64, args string, current models.UserSettings) error {
	settings, err := parseSettings(args, current)
	if err != nil {
		b.reply(chatID, err.Error()+"\n"+msgNeedSetup)
		return nil
	}
	if err := b.vocab.SaveSettings(ctx, settings); err != nil {
		b.reply(chatID, describeError(err))
		return nil
	}
	b.replyWithKeyboard(chatID, fmt.Sprintf("✅ 설정 완료! %s님, %s 단어를 하루 %d개씩 학습해요.", settings.Username, settings.Grade, settings.DailyGoal), b.MainMenuButtons())
	return nil
}

// parseSettings reads "name grade [goal]"; a missing goal keeps the current one
func parseSettings(args string, current models.UserSettings) (models.UserSettings, error) {
	fields := strings.Fields(args)
	if len(fields) < 2 || len(fields) > 3 {
		return current, errors.New("이름과 학년을 입력해 주세요.")
	}
	grade, err := models.ParseGrade(fields[1])
	if err != nil {
		return current, errors.New("학년은 중1, 중2, 중3 중 하나예요.")
	}
	goal := current.DailyGoal
	if goal == 0 {
		goal = models.DefaultDailyGoal
	}
	if len(fields) == 3 {
		goal, err = strconv.Atoi(fields[2])
		if err != nil {
			return current, errors.New("하루 목표는 숫자로 입력해 주세요.")
		}
	}
	return models.UserSettings{Username: fields[0], Grade: grade, DailyGoal: goal}, nil
}

func (b *Bot) handleWords(chatID int64, args string) {
	var (
		words []models.Word
		title string
	)
	if args == "" {
		words = b.vocab.CustomWords()
		title = "🏷 내 단어"
	} else {
		grade, err := models.ParseGrade(args)
		if err != nil {
			b.reply(chatID, "학년은 중1, 중2, 중3 중 하나예요.")
			return
		}
		for _, w := range b.vocab.Words() {
			if w.Grade == grade {
				words = append(words, w)
			}
		}
		title = fmt.Sprintf("📚 %s 단어", grade)
	}
	if len(words) == 0 {
		b.reply(chatID, "아직 단어가 없어요. /add 또는 /fill 로 추가해 보세요.")
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%d개)\n", title, len(words))
	for i, w := range words {
		if i == b.config.WordListLimit {
			fmt.Fprintf(&sb, "... 외 %d개", len(words)-i)
			break
		}
		mark := ""
		if b.vocab.Stat(w.ID).IsMastered {
			mark = " ⭐"
		}
		fmt.Fprintf(&sb, "\n%s - %s (%s)%s\n   ID: %s", w.Term, w.Meaning, w.Grade, mark, w.ID)
	}
	b.reply(chatID, sb.String())
}

func (b *Bot) handleAdd(ctx context.Context, chatID int64, args string) error {
	word, ok := parseWordFields(args)
	if !ok {
		b.reply(chatID, "형식: /add 단어|품사|뜻|예문|예문해석\n예) /add brave|형용사|용감한|She is brave.|그녀는 용감하다.")
		return nil
	}
	saved, err := b.vocab.AddCustomWord(ctx, word)
	if err != nil {
		b.reply(chatID, describeError(err))
		return nil
	}
	b.reply(chatID, "✅ 단어를 추가했어요!\n\n"+formatWord(saved))
	return nil
}

// parseWordFields reads "term|pos|meaning|example[|translation]"
func parseWordFields(args string) (models.Word, bool) {
	parts := strings.Split(args, "|")
	if len(parts) < 4 || len(parts) > 5 {
		return models.Word{}, false
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	w := models.Word{
		Term:            parts[0],
		PartOfSpeech:    parts[1],
		Meaning:         parts[2],
		ExampleSentence: parts[3],
	}
	if len(parts) == 5 {
		w.ExampleSentenceMeaning = parts[4]
	}
	return w, true
}

func (b *Bot) handleEdit(ctx context.Context, chatID int64, args string) error {
	id, rest, found := strings.Cut(args, "|")
	id = strings.TrimSpace(id)
	updated, ok := parseWordFields(rest)
	if !found || id == "" || !ok {
		b.reply(chatID, "형식: /edit ID|단어|품사|뜻|예문|예문해석")
		return nil
	}
	existing, exists := b.vocab.WordByID(id)
	if !exists {
		b.reply(chatID, describeError(vocab.ErrWordNotFound))
		return nil
	}
	updated.ID = existing.ID
	updated.Grade = existing.Grade
	updated.Pronunciation = existing.Pronunciation
	if err := b.vocab.UpdateCustomWord(ctx, updated); err != nil {
		b.reply(chatID, describeError(err))
		return nil
	}
	saved, _ := b.vocab.WordByID(id)
	b.reply(chatID, "✏️ 수정했어요!\n\n"+formatWord(saved))
	return nil
}

func (b *Bot) handleDelete(ctx context.Context, chatID int64, args string) error {
	if args == "" {
		b.reply(chatID, "형식: /delete ID (ID는 /words 에서 확인할 수 있어요)")
		return nil
	}
	word, _ := b.vocab.WordByID(args)
	if err := b.vocab.DeleteCustomWord(ctx, args); err != nil {
		b.reply(chatID, describeError(err))
		return nil
	}
	b.reply(chatID, fmt.Sprintf("🗑 '%s' 단어를 삭제했어요.", word.Term))
	return nil
}

func (b *Bot) handleFill(ctx context.Context, chatID int64, args string) {
	term := strings.TrimSpace(args)
	if term == "" {
		b.reply(chatID, "형식: /fill 단어\n예) /fill curious")
		return
	}
	if _, known := b.vocab.KnownTerms()[strings.ToLower(term)]; known {
		b.reply(chatID, describeError(vocab.ErrDuplicateTerm))
		return
	}
	b.reply(chatID, fmt.Sprintf("🤖 '%s' 정보를 찾고 있어요...", term))
	b.background(func() {
		details, err := b.ai.WordDetails(ctx, term)
		if err != nil {
			b.aiFailure(chatID, err)
			return
		}
		saved, err := b.vocab.AddCustomWord(ctx, details.ToWord(term, ""))
		if err != nil {
			b.reply(chatID, describeError(err))
			return
		}
		b.reply(chatID, "✅ AI가 채운 단어를 추가했어요!\n\n"+formatWord(saved))
	})
}

func (b *Bot) handleExample(ctx context.Context, chatID int64, args string) {
	word, ok := b.vocab.WordByID(strings.TrimSpace(args))
	if !ok {
		b.reply(chatID, "형식: /example ID (ID는 /words 에서 확인할 수 있어요)")
		return
	}
	b.sendAlternateExample(ctx, chatID, word)
}

func (b *Bot) sendAlternateExample(ctx context.Context, chatID int64, word models.Word) {
	b.background(func() {
		example, err := b.ai.AlternateExample(ctx, word)
		if err != nil {
			b.aiFailure(chatID, err)
			return
		}
		text := fmt.Sprintf("📝 %s 새 예문\n%s", word.Term, example.NewExampleSentence)
		if example.NewExampleSentenceMeaning != "" {
			text += "\n" + example.NewExampleSentenceMeaning
		}
		b.reply(chatID, text)
	})
}

func (b *Bot) handleSummary(ctx context.Context, chatID int64, args string) {
	if args == "" {
		b.reply(chatID, "형식: /summary 요약할 영어 글")
		return
	}
	b.reply(chatID, "🤖 요약하고 있어요...")
	b.background(func() {
		summary, err := b.ai.Summarize(ctx, args)
		if err != nil {
			b.aiFailure(chatID, err)
			return
		}
		b.reply(chatID, "📄 요약\n"+summary)
	})
}

func (b *Bot) handleStats(chatID int64) {
	settings, ok := b.vocab.Settings()
	if !ok {
		b.reply(chatID, msgNeedSetup)
		return
	}

	var total, mastered, reviewed, custom int
	for _, w := range b.vocab.Words() {
		if w.Grade != settings.Grade {
			continue
		}
		total++
		stat := b.vocab.Stat(w.ID)
		if stat.IsMastered {
			mastered++
		}
		if stat.LastReviewed != nil {
			reviewed++
		}
		if w.IsCustom {
			custom++
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 %s님의 학습 통계 (%s)\n\n", settings.Username, settings.Grade)
	fmt.Fprintf(&sb, "오늘 학습: %d / %d\n", b.vocab.LearnedToday(), settings.DailyGoal)
	fmt.Fprintf(&sb, "전체 단어: %d (내 단어 %d)\n", total, custom)
	fmt.Fprintf(&sb, "학습한 단어: %d\n", reviewed)
	fmt.Fprintf(&sb, "완벽히 암기: %d\n", mastered)

	history := b.vocab.LearningHistory()
	if len(history) > 7 {
		history = history[len(history)-7:]
	}
	if len(history) > 0 {
		sb.WriteString("\n최근 학습 기록\n")
		for _, e := range history {
			fmt.Fprintf(&sb, "%s: %d개\n", e.Date, e.Count)
		}
	}

	quizzes := b.vocab.QuizHistory()
	if len(quizzes) > 0 {
		var score, questions int
		for _, q := range quizzes {
			score += q.Score
			questions += q.Total
		}
		fmt.Fprintf(&sb, "\n퀴즈 %d회, 평균 정답률 %d%%\n", len(quizzes), percent(score, questions))
		recent := quizzes
		if len(recent) > 5 {
			recent = recent[len(recent)-5:]
		}
		for _, q := range recent {
			date := q.Date
			if t, err := time.Parse(time.RFC3339, q.Date); err == nil {
				date = t.Format("01-02 15:04")
			}
			fmt.Fprintf(&sb, "%s: %d/%d\n", date, q.Score, q.Total)
		}
	}
	b.reply(chatID, sb.String())
}

func percent(part, whole int) int {
	if whole == 0 {
		return 0
	}
	return int(math.Round(float64(part) * 100 / float64(whole)))
}

func (b *Bot) handleTheme(ctx context.Context, chatID int64, args string) error {
	theme := models.Theme(strings.ToLower(args))
	if args == "" {
		theme = models.ThemeDark
		if b.vocab.Theme() == models.ThemeDark {
			theme = models.ThemeLight
		}
	}
	if err := b.vocab.SetTheme(ctx, theme); err != nil {
		b.reply(chatID, "테마는 light 또는 dark 예요.")
		return nil
	}
	b.reply(chatID, fmt.Sprintf("🎨 테마를 %s 로 바꿨어요.", theme))
	return nil
}

// aiFailure tells the learner about a failed AI call. Cooldown, disabled and
// final-failure notices are already sent by the service, so only a skipped
// call gets its own reply.
func (b *Bot) aiFailure(chatID int64, err error) {
	b.log.Warn("AI request failed", "error", err)
	if !errors.Is(err, ai.ErrQuotaCoolingDown) {
		return
	}
	minutes := 1
	if until := b.ai.Gate().CoolingDownUntil(); !until.IsZero() {
		if m := int(math.Ceil(time.Until(until).Minutes())); m > minutes {
			minutes = m
		}
	}
	b.reply(chatID, fmt.Sprintf("⏳ AI 사용량 한도로 잠시 쉬는 중이에요. 약 %d분 후에 다시 시도해 주세요.", minutes))
}

// describeError turns vocabulary errors into a learner-facing sentence
func describeError(err error) string {
	var verr *vocab.ValidationError
	switch {
	case errors.As(err, &verr):
		names := make([]string, 0, len(verr.Fields))
		for _, f := range verr.Fields {
			if name, ok := fieldNames[f]; ok {
				names = append(names, name)
			} else {
				names = append(names, f)
			}
		}
		return "⚠️ 다음 항목을 확인해 주세요: " + strings.Join(names, ", ")
	case errors.Is(err, vocab.ErrDuplicateTerm):
		return "⚠️ 이미 있는 단어예요."
	case errors.Is(err, vocab.ErrBuiltinWord):
		return "⚠️ 기본 단어는 수정하거나 삭제할 수 없어요."
	case errors.Is(err, vocab.ErrWordNotFound):
		return "⚠️ 해당 ID의 단어를 찾을 수 없어요."
	default:
		return "❌ 처리하지 못했어요: " + err.Error()
	}
}

func formatWord(w models.Word) string {
	var sb strings.Builder
	sb.WriteString(w.Term)
	if w.Pronunciation != "" {
		fmt.Fprintf(&sb, " [%s]", w.Pronunciation)
	}
	fmt.Fprintf(&sb, "\n%s · %s", w.PartOfSpeech, w.Meaning)
	if w.ExampleSentence != "" {
		fmt.Fprintf(&sb, "\n\n📖 %s", w.ExampleSentence)
		if w.ExampleSentenceMeaning != "" {
			fmt.Fprintf(&sb, "\n%s", w.ExampleSentenceMeaning)
		}
	}
	if w.IsCustom {
		fmt.Fprintf(&sb, "\n\n🏷 내 단어 · %s · ID: %s", w.Grade, w.ID)
	}
	return sb.String()
}
