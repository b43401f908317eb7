package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/wordmate/internal/notify"
	"github.com/example/wordmate/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGemini serves generateContent with a scripted sequence of replies
type fakeGemini struct {
	calls   atomic.Int32
	replies []func(w http.ResponseWriter)

	mu      sync.Mutex
	prompts []string
}

func (f *fakeGemini) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil && len(req.Contents) > 0 && len(req.Contents[0].Parts) > 0 {
		f.mu.Lock()
		f.prompts = append(f.prompts, req.Contents[0].Parts[0].Text)
		f.mu.Unlock()
	}
	n := int(f.calls.Add(1)) - 1
	if n >= len(f.replies) {
		n = len(f.replies) - 1
	}
	f.replies[n](w)
}

func (f *fakeGemini) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

func textReply(text string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		body := map[string]interface{}{
			"candidates": []map[string]interface{}{
				{"content": map[string]interface{}{"role": "model", "parts": []map[string]string{{"text": text}}}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}
}

func errorReply(status int, code int, grpcStatus, message string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprintf(w, `{"error":{"code":%d,"message":%q,"status":%q}}`, code, message, grpcStatus)
	}
}

const completeDetails = `{"term":"curious","pronunciation":"ˈkjʊriəs","partOfSpeech":"형용사","meaning":"호기심이 많은","exampleSentence":"She is curious about space.","exampleSentenceMeaning":"그녀는 우주에 호기심이 많다."}`

type recordedSleeps struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordedSleeps) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return nil
}

type harness struct {
	server  *httptest.Server
	fake    *fakeGemini
	service *Service
	gate    *Gate
	sched   *fakeScheduler
	rec     *notify.Recorder
	sleeps  *recordedSleeps
}

func newHarness(t *testing.T, apiKey string, replies ...func(w http.ResponseWriter)) *harness {
	t.Helper()
	fake := &fakeGemini{replies: replies}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	rec := &notify.Recorder{}
	sched := &fakeScheduler{}
	gate := NewGate(DefaultCooldown, rec, nil, WithAfterFunc(sched.AfterFunc))
	sleeps := &recordedSleeps{}
	gen := NewGemini(Config{APIKey: apiKey, BaseURL: server.URL, Model: "test-model"}, server.Client())
	service := NewService(gen, gate, rec, nil, WithSleeper(sleeps.sleep))
	return &harness{server: server, fake: fake, service: service, gate: gate, sched: sched, rec: rec, sleeps: sleeps}
}

func TestWordDetails_Success(t *testing.T) {
	h := newHarness(t, "key", textReply("```json\n"+completeDetails+"\n```"))

	details, err := h.service.WordDetails(context.Background(), " curious ")
	require.NoError(t, err)
	assert.Equal(t, "호기심이 많은", details.Meaning)
	assert.Equal(t, int32(1), h.fake.calls.Load())
	assert.Empty(t, h.sleeps.delays)
	assert.Empty(t, h.rec.Notices())

	word := details.ToWord("curious", models.Grade2)
	assert.True(t, word.IsCustom)
	assert.Equal(t, models.Grade2, word.Grade)
	assert.Equal(t, "형용사", word.PartOfSpeech)
}

func TestWordDetails_IncompleteRepliesAreRetried(t *testing.T) {
	h := newHarness(t, "key", textReply(`{"term":"curious","pronunciation":"ˈkjʊriəs"}`))

	_, err := h.service.WordDetails(context.Background(), "curious")
	require.ErrorIs(t, err, ErrNoResult)
	var incomplete *IncompleteError
	require.ErrorAs(t, err, &incomplete)
	assert.Contains(t, incomplete.Fields, "meaning")

	assert.Equal(t, int32(3), h.fake.calls.Load())
	assert.Equal(t, []time.Duration{7 * time.Second, 14 * time.Second}, h.sleeps.delays)
	assert.Equal(t, 1, h.rec.Count(msgFinalFailure))
	assert.True(t, h.gate.IsAvailable())
}

func TestWordDetails_RecoversOnSecondAttempt(t *testing.T) {
	h := newHarness(t, "key",
		errorReply(http.StatusInternalServerError, 500, "INTERNAL", "backend error"),
		textReply(completeDetails),
	)

	details, err := h.service.WordDetails(context.Background(), "curious")
	require.NoError(t, err)
	assert.Equal(t, "She is curious about space.", details.ExampleSentence)
	assert.Equal(t, int32(2), h.fake.calls.Load())
	assert.Equal(t, []time.Duration{7 * time.Second}, h.sleeps.delays)
	assert.Empty(t, h.rec.Notices())
}

func TestSummarize_BusyServerNotice(t *testing.T) {
	h := newHarness(t, "key", errorReply(http.StatusServiceUnavailable, 503, "UNAVAILABLE", "The model is overloaded."))

	_, err := h.service.Summarize(context.Background(), "Some long English text.")
	require.ErrorIs(t, err, ErrNoResult)
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, h.sleeps.delays)
	assert.Equal(t, 1, h.rec.Count(msgFinalRateLimit))
	assert.Equal(t, 0, h.rec.Count(msgFinalFailure))
}

func TestQuotaExhaustionStopsEveryCallSite(t *testing.T) {
	h := newHarness(t, "key", errorReply(http.StatusTooManyRequests, 429, "RESOURCE_EXHAUSTED", "Quota exceeded"))
	ctx := context.Background()

	_, err := h.service.WordDetails(ctx, "curious")
	require.ErrorIs(t, err, ErrQuotaExhausted)
	assert.True(t, Skipped(err))
	assert.Equal(t, int32(1), h.fake.calls.Load(), "quota errors are not retried")
	assert.Empty(t, h.sleeps.delays)
	assert.False(t, h.gate.IsAvailable())

	_, err = h.service.AlternateExample(ctx, models.Word{Term: "apple", Meaning: "사과"})
	assert.ErrorIs(t, err, ErrQuotaCoolingDown)
	_, err = h.service.Summarize(ctx, "text")
	assert.ErrorIs(t, err, ErrQuotaCoolingDown)
	assert.Equal(t, int32(1), h.fake.calls.Load(), "no request goes out while cooling down")

	assert.Equal(t, 1, h.rec.Count(msgCooldownStarted))
	assert.Equal(t, 0, h.rec.Count(msgFinalFailure))

	h.sched.fire(0)
	assert.True(t, h.gate.IsAvailable())
	assert.Equal(t, 1, h.rec.Count(msgCooldownEnded))
}

func TestQuotaDetectedFromBodyWithoutHTTPStatus(t *testing.T) {
	h := newHarness(t, "key", errorReply(http.StatusOK, 429, "RESOURCE_EXHAUSTED", "quota"))

	_, err := h.service.AlternateExample(context.Background(), models.Word{Term: "apple"})
	require.ErrorIs(t, err, ErrQuotaExhausted)
	assert.False(t, h.gate.IsAvailable())
}

func TestGateTrippedDuringBackoffAbortsRetry(t *testing.T) {
	h := newHarness(t, "key", errorReply(http.StatusInternalServerError, 500, "INTERNAL", "boom"))
	h.service.sleep = func(context.Context, time.Duration) error {
		h.gate.RecordExhaustion()
		return nil
	}

	_, err := h.service.WordDetails(context.Background(), "curious")
	require.ErrorIs(t, err, ErrQuotaCoolingDown)
	assert.Equal(t, int32(1), h.fake.calls.Load())
	assert.Equal(t, 0, h.rec.Count(msgFinalFailure))
}

func TestDisabledServiceNotifiesAndSkipsNetwork(t *testing.T) {
	h := newHarness(t, "", textReply(completeDetails))

	assert.False(t, h.service.Enabled())
	_, err := h.service.WordDetails(context.Background(), "curious")
	require.ErrorIs(t, err, ErrAIDisabled)
	assert.Equal(t, int32(0), h.fake.calls.Load())
	assert.Equal(t, 1, h.rec.Count(msgAIDisabled))
}

func TestCancelledContextStopsBackoff(t *testing.T) {
	h := newHarness(t, "key", errorReply(http.StatusInternalServerError, 500, "INTERNAL", "boom"))
	h.service.sleep = SleepWithContext

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.service.Summarize(ctx, "text")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, h.rec.Count(msgFinalFailure))
}

func TestGemini_SendsKeyAndJSONMode(t *testing.T) {
	var got struct {
		path   string
		key    string
		config generationConfig
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		got.path = r.URL.Path
		got.key = r.Header.Get("x-goog-api-key")
		got.config = req.GenerationConfig
		textReply(`{"summary":"ok"}`)(w)
	}))
	defer server.Close()

	client := NewGemini(Config{APIKey: "secret", BaseURL: server.URL + "/", Model: "gemini-test"}, server.Client())
	out, err := client.GenerateJSON(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, `{"summary":"ok"}`, out)
	assert.Equal(t, "/models/gemini-test:generateContent", got.path)
	assert.Equal(t, "secret", got.key)
	assert.Equal(t, "application/json", got.config.ResponseMimeType)
}

func TestGemini_NoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer server.Close()

	client := NewGemini(Config{APIKey: "secret", BaseURL: server.URL}, server.Client())
	_, err := client.GenerateJSON(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, Transient, ClassifyError(err))
}

func TestSummarize_LongInputIsCutOnRuneBoundary(t *testing.T) {
	h := newHarness(t, "key", textReply(`{"summary":"요약"}`))
	text := strings.Repeat("a", maxSummaryInput-1) + "한국어 text"

	summary, err := h.service.Summarize(context.Background(), text)
	require.NoError(t, err)
	assert.Equal(t, "요약", summary)

	prompts := h.fake.Prompts()
	require.Len(t, prompts, 1)
	prompt := prompts[0]
	assert.NotContains(t, prompt, "\uFFFD")
	assert.NotContains(t, prompt, "한")
	assert.Contains(t, prompt, strings.Repeat("a", maxSummaryInput-1))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "ab", truncate("ab한", 3))
	assert.Equal(t, "ab", truncate("ab한", 4))
	assert.Equal(t, "ab한", truncate("ab한", 5))
	assert.Equal(t, "", truncate("한", 2))
}
