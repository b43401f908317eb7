package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/example/wordmate/internal/logger"
	"github.com/example/wordmate/internal/notify"
	"github.com/example/wordmate/pkg/models"
)

// Retry policy per call site
const (
	DefaultRetries            = 2
	WordDetailsBaseDelay      = 7 * time.Second
	AlternateExampleBaseDelay = 7 * time.Second
	SummaryBaseDelay          = 5 * time.Second

	maxSummaryInput = 8000
)

var (
	// ErrQuotaCoolingDown means the call was skipped without network I/O
	ErrQuotaCoolingDown = errors.New("ai: skipped, quota cooldown in progress")
	// ErrQuotaExhausted means this call hit the quota and started a cooldown
	ErrQuotaExhausted = errors.New("ai: quota exhausted")
	// ErrNoResult means every attempt failed
	ErrNoResult = errors.New("ai: no result")
)

const (
	msgAIDisabled     = "AI 기능을 사용하려면 GEMINI_API_KEY 를 설정해야 합니다."
	msgFinalRateLimit = "AI 서버가 혼잡해서 요청을 처리하지 못했습니다. 잠시 후 다시 시도해 주세요."
	msgFinalFailure   = "AI 요청에 실패했습니다. 잠시 후 다시 시도해 주세요."
)

// Skipped reports whether err means the AI was not (or no longer) reachable
// because of the quota.
func Skipped(err error) bool {
	return errors.Is(err, ErrQuotaCoolingDown) || errors.Is(err, ErrQuotaExhausted)
}

// Generator produces a JSON reply for a prompt
type Generator interface {
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

// IncompleteError is a parsed reply that lacks required fields. It is retried
// like a transport error.
type IncompleteError struct {
	Fields []string
}

func (e *IncompleteError) Error() string {
	return "ai reply is missing " + strings.Join(e.Fields, ", ")
}

// WordDetails is the reply to a word-detail lookup
type WordDetails struct {
	Term                   string `json:"term"`
	Pronunciation          string `json:"pronunciation"`
	PartOfSpeech           string `json:"partOfSpeech"`
	Meaning                string `json:"meaning"`
	ExampleSentence        string `json:"exampleSentence"`
	ExampleSentenceMeaning string `json:"exampleSentenceMeaning"`
}

func (d WordDetails) check() error {
	var missing []string
	if strings.TrimSpace(d.Meaning) == "" {
		missing = append(missing, "meaning")
	}
	if strings.TrimSpace(d.PartOfSpeech) == "" {
		missing = append(missing, "partOfSpeech")
	}
	if strings.TrimSpace(d.ExampleSentence) == "" {
		missing = append(missing, "exampleSentence")
	}
	if len(missing) > 0 {
		return &IncompleteError{Fields: missing}
	}
	return nil
}

// ToWord turns the reply into a custom word of the given grade. The reply's
// term wins only when the caller passed none.
func (d WordDetails) ToWord(term string, grade models.Grade) models.Word {
	if strings.TrimSpace(term) == "" {
		term = d.Term
	}
	return models.Word{
		Term:                   strings.TrimSpace(term),
		Pronunciation:          strings.TrimSpace(d.Pronunciation),
		PartOfSpeech:           strings.TrimSpace(d.PartOfSpeech),
		Meaning:                strings.TrimSpace(d.Meaning),
		ExampleSentence:        strings.TrimSpace(d.ExampleSentence),
		ExampleSentenceMeaning: strings.TrimSpace(d.ExampleSentenceMeaning),
		Grade:                  grade,
		IsCustom:               true,
	}
}

// AlternateExample is the reply to an alternate-example request
type AlternateExample struct {
	NewExampleSentence        string `json:"newExampleSentence"`
	NewExampleSentenceMeaning string `json:"newExampleSentenceMeaning"`
}

func (a AlternateExample) check() error {
	if strings.TrimSpace(a.NewExampleSentence) == "" {
		return &IncompleteError{Fields: []string{"newExampleSentence"}}
	}
	return nil
}

type summaryReply struct {
	Summary string `json:"summary"`
}

// Service runs the three AI call sites through one retry policy and one gate
type Service struct {
	gen      Generator
	gate     *Gate
	notifier notify.Notifier
	log      *logger.Logger
	retries  int
	sleep    func(ctx context.Context, d time.Duration) error
}

// ServiceOption customizes a Service
type ServiceOption func(*Service)

// WithRetries overrides the number of retries after the first attempt
func WithRetries(retries int) ServiceOption {
	return func(s *Service) {
		if retries >= 0 {
			s.retries = retries
		}
	}
}

// WithSleeper overrides how backoff waits are performed (useful for tests)
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) ServiceOption {
	return func(s *Service) {
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// NewService wires a generator to the shared gate
func NewService(gen Generator, gate *Gate, notifier notify.Notifier, log *logger.Logger, opts ...ServiceOption) *Service {
	if notifier == nil {
		notifier = notify.Discard
	}
	if log == nil {
		log = logger.NewNop()
	}
	if gate == nil {
		gate = NewGate(DefaultCooldown, notifier, log)
	}
	s := &Service{
		gen:      gen,
		gate:     gate,
		notifier: notifier,
		log:      log,
		retries:  DefaultRetries,
		sleep:    SleepWithContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Gate returns the shared quota gate
func (s *Service) Gate() *Gate {
	return s.gate
}

// Enabled reports whether an API key is configured
func (s *Service) Enabled() bool {
	if s.gen == nil {
		return false
	}
	if e, ok := s.gen.(interface{ Enabled() bool }); ok {
		return e.Enabled()
	}
	return true
}

// WordDetails looks up meaning, part of speech and an example for term
func (s *Service) WordDetails(ctx context.Context, term string) (WordDetails, error) {
	term = strings.TrimSpace(term)
	prompt := fmt.Sprintf(`You help Korean middle-school students learn English vocabulary.
Describe the English word %q. Reply with a single JSON object and nothing else:
{"term": "<the word>", "pronunciation": "<IPA without slashes>", "partOfSpeech": "<part of speech in Korean, e.g. 명사, 동사, 형용사>", "meaning": "<short Korean meaning>", "exampleSentence": "<simple English example sentence>", "exampleSentenceMeaning": "<Korean translation of the example>"}`, term)

	var details WordDetails
	err := s.call(ctx, "word details", WordDetailsBaseDelay, prompt, func(raw string) error {
		var parsed WordDetails
		if err := DecodeJSON(raw, &parsed); err != nil {
			return err
		}
		if err := parsed.check(); err != nil {
			return err
		}
		details = parsed
		return nil
	})
	return details, err
}

// AlternateExample asks for a different example sentence for word
func (s *Service) AlternateExample(ctx context.Context, word models.Word) (AlternateExample, error) {
	prompt := fmt.Sprintf(`You help Korean middle-school students learn English vocabulary.
Write a new, simple example sentence for the English word %q (%s, meaning %q) that differs from: %q.
Reply with a single JSON object and nothing else:
{"newExampleSentence": "<English sentence>", "newExampleSentenceMeaning": "<Korean translation>"}`,
		word.Term, word.PartOfSpeech, word.Meaning, word.ExampleSentence)

	var example AlternateExample
	err := s.call(ctx, "alternate example", AlternateExampleBaseDelay, prompt, func(raw string) error {
		var parsed AlternateExample
		if err := DecodeJSON(raw, &parsed); err != nil {
			return err
		}
		if err := parsed.check(); err != nil {
			return err
		}
		example = parsed
		return nil
	})
	return example, err
}

// Summarize returns a short Korean summary of an English text
func (s *Service) Summarize(ctx context.Context, text string) (string, error) {
	text = truncate(strings.TrimSpace(text), maxSummaryInput)
	prompt := fmt.Sprintf(`Summarize the following English text for a Korean middle-school student in 3 to 5 Korean sentences.
Reply with a single JSON object and nothing else: {"summary": "<Korean summary>"}

Text:
%s`, text)

	var summary string
	err := s.call(ctx, "summary", SummaryBaseDelay, prompt, func(raw string) error {
		var parsed summaryReply
		if err := DecodeJSON(raw, &parsed); err != nil {
			return err
		}
		if strings.TrimSpace(parsed.Summary) == "" {
			return &IncompleteError{Fields: []string{"summary"}}
		}
		summary = strings.TrimSpace(parsed.Summary)
		return nil
	})
	return summary, err
}

// truncate cuts s to at most n bytes without splitting a rune
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// call runs one logical request: up to retries+1 attempts with a doubling
// delay, bypassed entirely while the gate is cooling down.
func (s *Service) call(ctx context.Context, op string, baseDelay time.Duration, prompt string, accept func(raw string) error) error {
	if !s.Enabled() {
		s.notifier.Notify(notify.Notice{Level: notify.Warning, Message: msgAIDisabled})
		return ErrAIDisabled
	}
	if !s.gate.IsAvailable() {
		s.log.Info("AI call skipped during quota cooldown", "op", op)
		return fmt.Errorf("%s: %w", op, ErrQuotaCoolingDown)
	}

	attempts := s.retries + 1
	delay := baseDelay
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := s.sleep(ctx, delay); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
			delay *= 2
			// another call site may have tripped the gate while we waited
			if !s.gate.IsAvailable() {
				return fmt.Errorf("%s: %w", op, ErrQuotaCoolingDown)
			}
		}

		raw, err := s.gen.GenerateJSON(ctx, prompt)
		if err == nil {
			err = accept(raw)
		}
		if err == nil {
			return nil
		}
		lastErr = err

		switch ClassifyError(err) {
		case QuotaExhausted:
			s.gate.RecordExhaustion()
			return fmt.Errorf("%s: %w: %v", op, ErrQuotaExhausted, err)
		case Fatal:
			return fmt.Errorf("%s: %w", op, err)
		}
		s.log.Warn("AI call attempt failed", "op", op, "attempt", attempt, "of", attempts, "error", err)
	}

	message := msgFinalFailure
	if rateLimited(lastErr) {
		message = msgFinalRateLimit
	}
	s.notifier.Notify(notify.Notice{Level: notify.Error, Message: message})
	return fmt.Errorf("%s: %w after %d attempts: %w", op, ErrNoResult, attempts, lastErr)
}

// SleepWithContext blocks for d, returning early if ctx is cancelled
func SleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
