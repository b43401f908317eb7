package vocab

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/wordmate/internal/logger"
	"github.com/example/wordmate/internal/notify"
	"github.com/example/wordmate/pkg/models"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

//go:embed seed_words.json
var seedWords []byte

// Persisted state keys
const (
	KeyCustomWords     = "customWords"
	KeyWordStats       = "wordStats"
	KeyUserSettings    = "userSettings"
	KeyLearningHistory = "learningHistory"
	KeyQuizHistory     = "quizHistory"
	KeyTheme           = "theme"
)

// StateKeys lists every key the vocabulary persists
var StateKeys = []string{
	KeyCustomWords,
	KeyWordStats,
	KeyUserSettings,
	KeyLearningHistory,
	KeyQuizHistory,
	KeyTheme,
}

const customIDPrefix = "custom-"

var (
	ErrWordNotFound  = errors.New("word not found")
	ErrBuiltinWord   = errors.New("built-in words cannot be changed")
	ErrDuplicateTerm = errors.New("a word with this term already exists")
)

// Store persists JSON documents by key
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
}

// ValidationError lists the required fields missing from a word or settings
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "missing or invalid fields: " + strings.Join(e.Fields, ", ")
}

// Vocabulary is the learner's whole state: the word pool, per-word stats,
// settings and history. Reads come from memory; every mutation is written
// through to the store.
type Vocabulary struct {
	mu       sync.Mutex
	store    Store
	notifier notify.Notifier
	log      *logger.Logger
	now      func() time.Time
	validate *validator.Validate

	builtins []models.Word
	custom   []models.Word
	stats    map[string]models.WordStat
	settings *models.UserSettings
	learning []models.LearningHistoryEntry
	quizzes  []models.QuizHistoryEntry
	theme    models.Theme
}

// Option customizes a Vocabulary
type Option func(*Vocabulary)

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(v *Vocabulary) {
		if now != nil {
			v.now = now
		}
	}
}

// WithBuiltins replaces the embedded seed words
func WithBuiltins(words []models.Word) Option {
	return func(v *Vocabulary) {
		v.builtins = append([]models.Word(nil), words...)
	}
}

// Open loads every persisted key once. Missing or corrupt values fall back
// to empty defaults.
func Open(ctx context.Context, store Store, notifier notify.Notifier, log *logger.Logger, opts ...Option) (*Vocabulary, error) {
	if notifier == nil {
		notifier = notify.Discard
	}
	if log == nil {
		log = logger.NewNop()
	}
	v := &Vocabulary{
		store:    store,
		notifier: notifier,
		log:      log,
		now:      time.Now,
		validate: validator.New(),
		stats:    make(map[string]models.WordStat),
		theme:    models.ThemeLight,
	}
	if err := json.Unmarshal(seedWords, &v.builtins); err != nil {
		return nil, fmt.Errorf("failed to decode seed words: %w", err)
	}
	for _, opt := range opts {
		opt(v)
	}

	v.load(ctx, KeyCustomWords, &v.custom)
	v.load(ctx, KeyWordStats, &v.stats)
	v.load(ctx, KeyLearningHistory, &v.learning)
	v.load(ctx, KeyQuizHistory, &v.quizzes)

	var settings models.UserSettings
	if v.load(ctx, KeyUserSettings, &settings) {
		if err := v.checkSettings(settings); err != nil {
			v.log.Warn("Invalid persisted settings, starting over", "key", KeyUserSettings, "error", err)
		} else {
			v.settings = &settings
		}
	}
	var theme models.Theme
	if v.load(ctx, KeyTheme, &theme) && (theme == models.ThemeLight || theme == models.ThemeDark) {
		v.theme = theme
	}

	for i := range v.custom {
		v.custom[i].IsCustom = true
	}
	if v.stats == nil {
		v.stats = make(map[string]models.WordStat)
	}
	return v, nil
}

// load decodes key into dst and reports whether a usable value was found.
// On corrupt data dst is reset to its zero value.
func (v *Vocabulary) load(ctx context.Context, key string, dst interface{}) bool {
	data, err := v.store.Load(ctx, key)
	if err != nil {
		v.log.Warn("Failed to read persisted state, using default", "key", key, "error", err)
		return false
	}
	if len(data) == 0 {
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		v.log.Warn("Corrupt persisted state, resetting", "key", key, "error", err)
		resetJSON(dst)
		return false
	}
	return true
}

func resetJSON(dst interface{}) {
	switch d := dst.(type) {
	case *[]models.Word:
		*d = nil
	case *map[string]models.WordStat:
		*d = make(map[string]models.WordStat)
	case *[]models.LearningHistoryEntry:
		*d = nil
	case *[]models.QuizHistoryEntry:
		*d = nil
	case *models.UserSettings:
		*d = models.UserSettings{}
	case *models.Theme:
		*d = ""
	}
}

// persist writes value under key. A failed write is surfaced to the user and
// the in-memory state stays authoritative.
func (v *Vocabulary) persist(ctx context.Context, key string, value interface{}) {
	data, err := json.Marshal(value)
	if err == nil {
		err = v.store.Save(ctx, key, data)
	}
	if err != nil {
		v.log.Error("Failed to persist state", "key", key, "error", err)
		v.notifier.Notify(notify.Notice{
			Level:   notify.Error,
			Message: "데이터를 저장하지 못했습니다. 변경 내용은 이번 실행 동안만 유지됩니다.",
		})
	}
}

// Words returns the full pool: built-in words followed by custom words
func (v *Vocabulary) Words() []models.Word {
	v.mu.Lock()
	defer v.mu.Unlock()
	words := make([]models.Word, 0, len(v.builtins)+len(v.custom))
	words = append(words, v.builtins...)
	words = append(words, v.custom...)
	return words
}

// CustomWords returns only the user's own words
func (v *Vocabulary) CustomWords() []models.Word {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]models.Word(nil), v.custom...)
}

// WordByID looks a word up in the whole pool
func (v *Vocabulary) WordByID(id string) (models.Word, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if i := v.customIndex(id); i >= 0 {
		return v.custom[i], true
	}
	for _, w := range v.builtins {
		if w.ID == id {
			return w, true
		}
	}
	return models.Word{}, false
}

func (v *Vocabulary) customIndex(id string) int {
	for i, w := range v.custom {
		if w.ID == id {
			return i
		}
	}
	return -1
}

func (v *Vocabulary) hasTerm(term, exceptID string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	for _, list := range [][]models.Word{v.builtins, v.custom} {
		for _, w := range list {
			if w.ID != exceptID && strings.ToLower(w.Term) == term {
				return true
			}
		}
	}
	return false
}

// Stat returns the stat for id, or the default stat if the word was never touched
func (v *Vocabulary) Stat(id string) models.WordStat {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.statLocked(id)
}

func (v *Vocabulary) statLocked(id string) models.WordStat {
	if s, ok := v.stats[id]; ok {
		return s
	}
	return models.DefaultWordStat()
}

// ValidateWord checks the fields required for manual entry
func (v *Vocabulary) ValidateWord(w models.Word) error {
	return v.validateStruct(w)
}

func (v *Vocabulary) validateStruct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		verr := &ValidationError{}
		for _, fe := range fieldErrs {
			verr.Fields = append(verr.Fields, fe.Field())
		}
		return verr
	}
	return err
}

func normalizeWord(w models.Word) models.Word {
	w.Term = strings.TrimSpace(w.Term)
	w.Pronunciation = strings.TrimSpace(w.Pronunciation)
	w.PartOfSpeech = strings.TrimSpace(w.PartOfSpeech)
	w.Meaning = strings.TrimSpace(w.Meaning)
	w.ExampleSentence = strings.TrimSpace(w.ExampleSentence)
	w.ExampleSentenceMeaning = strings.TrimSpace(w.ExampleSentenceMeaning)
	return w
}

// AddCustomWord validates and stores a new custom word. An empty grade
// defaults to the learner's grade.
func (v *Vocabulary) AddCustomWord(ctx context.Context, w models.Word) (models.Word, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	w = normalizeWord(w)
	if w.Grade == "" && v.settings != nil {
		w.Grade = v.settings.Grade
	}
	if err := v.validateStruct(w); err != nil {
		return models.Word{}, err
	}
	if !w.Grade.Valid() {
		return models.Word{}, &ValidationError{Fields: []string{"Grade"}}
	}
	if v.hasTerm(w.Term, "") {
		return models.Word{}, ErrDuplicateTerm
	}
	w.ID = customIDPrefix + uuid.NewString()
	w.IsCustom = true

	v.custom = append(v.custom, w)
	v.persist(ctx, KeyCustomWords, v.custom)
	return w, nil
}

// UpdateCustomWord replaces an existing custom word, keeping its id
func (v *Vocabulary) UpdateCustomWord(ctx context.Context, w models.Word) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	i := v.customIndex(w.ID)
	if i < 0 {
		if v.isBuiltin(w.ID) {
			return ErrBuiltinWord
		}
		return ErrWordNotFound
	}
	w = normalizeWord(w)
	if w.Grade == "" {
		w.Grade = v.custom[i].Grade
	}
	if err := v.validateStruct(w); err != nil {
		return err
	}
	if !w.Grade.Valid() {
		return &ValidationError{Fields: []string{"Grade"}}
	}
	if v.hasTerm(w.Term, w.ID) {
		return ErrDuplicateTerm
	}
	w.IsCustom = true
	v.custom[i] = w
	v.persist(ctx, KeyCustomWords, v.custom)
	return nil
}

// DeleteCustomWord removes a custom word together with its stat
func (v *Vocabulary) DeleteCustomWord(ctx context.Context, id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	i := v.customIndex(id)
	if i < 0 {
		if v.isBuiltin(id) {
			return ErrBuiltinWord
		}
		return ErrWordNotFound
	}
	v.custom = append(v.custom[:i], v.custom[i+1:]...)
	v.persist(ctx, KeyCustomWords, v.custom)
	if _, ok := v.stats[id]; ok {
		delete(v.stats, id)
		v.persist(ctx, KeyWordStats, v.stats)
	}
	return nil
}

func (v *Vocabulary) isBuiltin(id string) bool {
	for _, w := range v.builtins {
		if w.ID == id {
			return true
		}
	}
	return false
}

func (v *Vocabulary) mutateStat(ctx context.Context, id string, fn func(*models.WordStat)) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.customIndex(id) < 0 && !v.isBuiltin(id) {
		return ErrWordNotFound
	}
	stat := v.statLocked(id)
	fn(&stat)
	v.stats[id] = stat
	v.persist(ctx, KeyWordStats, v.stats)
	return nil
}

// MarkReviewed stamps the word as reviewed now
func (v *Vocabulary) MarkReviewed(ctx context.Context, id string) error {
	now := v.now()
	return v.mutateStat(ctx, id, func(s *models.WordStat) {
		s.LastReviewed = &now
	})
}

// SetMastered flags or unflags a word as mastered
func (v *Vocabulary) SetMastered(ctx context.Context, id string, mastered bool) error {
	return v.mutateStat(ctx, id, func(s *models.WordStat) {
		s.IsMastered = mastered
	})
}

// RecordQuizAnswer counts wrong answers; correct answers leave the stat alone
func (v *Vocabulary) RecordQuizAnswer(ctx context.Context, id string, correct bool) error {
	if correct {
		v.mu.Lock()
		defer v.mu.Unlock()
		if v.customIndex(id) < 0 && !v.isBuiltin(id) {
			return ErrWordNotFound
		}
		return nil
	}
	return v.mutateStat(ctx, id, func(s *models.WordStat) {
		s.QuizIncorrectCount++
	})
}

// RecordLearned adds n to today's learned count
func (v *Vocabulary) RecordLearned(ctx context.Context, n int) {
	if n <= 0 {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	today := v.now().Format(models.DateLayout)
	merged := false
	for i := range v.learning {
		if v.learning[i].Date == today {
			v.learning[i].Count += n
			merged = true
			break
		}
	}
	if !merged {
		v.learning = append(v.learning, models.LearningHistoryEntry{Date: today, Count: n})
	}
	v.persist(ctx, KeyLearningHistory, v.learning)
}

// LearnedToday returns today's learned count
func (v *Vocabulary) LearnedToday() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	today := v.now().Format(models.DateLayout)
	for _, e := range v.learning {
		if e.Date == today {
			return e.Count
		}
	}
	return 0
}

// LearningHistory returns the per-date counts sorted by date
func (v *Vocabulary) LearningHistory() []models.LearningHistoryEntry {
	v.mu.Lock()
	defer v.mu.Unlock()
	history := append([]models.LearningHistoryEntry(nil), v.learning...)
	sort.Slice(history, func(i, j int) bool { return history[i].Date < history[j].Date })
	return history
}

// RecordQuizAttempt appends a finished quiz to the history
func (v *Vocabulary) RecordQuizAttempt(ctx context.Context, score, total int) models.QuizHistoryEntry {
	v.mu.Lock()
	defer v.mu.Unlock()
	entry := models.QuizHistoryEntry{
		Date:  v.now().Format(time.RFC3339),
		Score: score,
		Total: total,
	}
	v.quizzes = append(v.quizzes, entry)
	v.persist(ctx, KeyQuizHistory, v.quizzes)
	return entry
}

// QuizHistory returns every recorded attempt in insertion order
func (v *Vocabulary) QuizHistory() []models.QuizHistoryEntry {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]models.QuizHistoryEntry(nil), v.quizzes...)
}

// Settings returns the learner's settings and whether first-run setup happened
func (v *Vocabulary) Settings() (models.UserSettings, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.settings == nil {
		return models.UserSettings{Grade: models.Grade1, DailyGoal: models.DefaultDailyGoal}, false
	}
	return *v.settings, true
}

// DailyGoal returns the learner's goal; false before first-run setup
func (v *Vocabulary) DailyGoal() (int, bool) {
	s, ok := v.Settings()
	return s.DailyGoal, ok
}

// SaveSettings validates and stores the settings
func (v *Vocabulary) SaveSettings(ctx context.Context, s models.UserSettings) error {
	s.Username = strings.TrimSpace(s.Username)
	if err := v.checkSettings(s); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.settings = &s
	v.persist(ctx, KeyUserSettings, s)
	return nil
}

func (v *Vocabulary) checkSettings(s models.UserSettings) error {
	if err := v.validateStruct(s); err != nil {
		return err
	}
	if !s.Grade.Valid() {
		return &ValidationError{Fields: []string{"Grade"}}
	}
	return nil
}

// Theme returns the display preference
func (v *Vocabulary) Theme() models.Theme {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.theme
}

// SetTheme stores the display preference
func (v *Vocabulary) SetTheme(ctx context.Context, theme models.Theme) error {
	if theme != models.ThemeLight && theme != models.ThemeDark {
		return fmt.Errorf("unknown theme %q", theme)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.theme = theme
	v.persist(ctx, KeyTheme, theme)
	return nil
}

// KnownTerms returns every term in the pool, lower-cased
func (v *Vocabulary) KnownTerms() map[string]struct{} {
	v.mu.Lock()
	defer v.mu.Unlock()
	known := make(map[string]struct{}, len(v.builtins)+len(v.custom))
	for _, list := range [][]models.Word{v.builtins, v.custom} {
		for _, w := range list {
			known[strings.ToLower(w.Term)] = struct{}{}
		}
	}
	return known
}

// Now exposes the vocabulary clock so callers agree on "today"
func (v *Vocabulary) Now() time.Time {
	return v.now()
}
