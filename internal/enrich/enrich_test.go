package enrich

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/JakeFAU/autonews-pipeline/internal/article"
)

type fakeGenerator struct {
	mu      sync.Mutex
	replies []reply
	prompts []string
}

type reply struct {
	text string
	err  error
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if len(f.replies) == 0 {
		return "", errors.New("no scripted reply")
	}
	r := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return r.text, r.err
}

func (f *fakeGenerator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type fakeSleeper struct {
	waits []time.Duration
	err   error
}

func (s *fakeSleeper) Sleep(_ context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return s.err
}

func retryConfig(max int, s *fakeSleeper) RetryConfig {
	return RetryConfig{MaxRetries: max, InitialWait: 5 * time.Second, Sleep: s.Sleep}
}

func TestTranslateSuccessStripsMarkup(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{replies: []reply{{text: "  **The \"Mayor\"** `spoke` \n"}}}
	tr := NewTranslator(gen, retryConfig(3, &fakeSleeper{}), Languages{}, nil)

	require.Equal(t, "The Mayor spoke", tr.Translate(context.Background(), "تحدث العمدة"))
	require.Equal(t, 1, gen.calls())
	require.Contains(t, gen.prompts[0], "Translate this Arabic text to English")
	require.Contains(t, gen.prompts[0], "تحدث العمدة")
}

func TestTranslateBlankMakesNoCall(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{}
	tr := NewTranslator(gen, retryConfig(3, &fakeSleeper{}), Languages{}, nil)

	require.Empty(t, tr.Translate(context.Background(), ""))
	require.Empty(t, tr.Translate(context.Background(), " \n\t "))
	require.Zero(t, gen.calls())
}

func TestTranslateRetriesWithBackoff(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{replies: []reply{
		{err: errors.New("googleapi: Error 429: Resource has been exhausted")},
		{err: errors.New("transient")},
		{text: "ok"},
	}}
	sleeper := &fakeSleeper{}
	tr := NewTranslator(gen, retryConfig(3, sleeper), Languages{}, nil)

	require.Equal(t, "ok", tr.Translate(context.Background(), "نص"))
	require.Equal(t, 3, gen.calls())
	require.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, sleeper.waits)
}

func TestTranslateRetriesEmptyResponse(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{replies: []reply{{err: ErrEmptyResponse}, {text: "Recovered"}}}
	sleeper := &fakeSleeper{}
	tr := NewTranslator(gen, retryConfig(3, sleeper), Languages{}, nil)

	require.Equal(t, "Recovered", tr.Translate(context.Background(), "نص"))
	require.Equal(t, 2, gen.calls())
	require.Equal(t, []time.Duration{5 * time.Second}, sleeper.waits)
}

func TestTranslateExhaustedReturnsEmpty(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{replies: []reply{{err: errors.New("boom")}}}
	sleeper := &fakeSleeper{}
	tr := NewTranslator(gen, retryConfig(3, sleeper), Languages{}, nil)

	require.Empty(t, tr.Translate(context.Background(), "نص"))
	require.Equal(t, 3, gen.calls())
	// No wait after the final attempt.
	require.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, sleeper.waits)
}

func TestTranslateCancelledDuringBackoff(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{replies: []reply{{err: errors.New("boom")}}}
	sleeper := &fakeSleeper{err: context.Canceled}
	tr := NewTranslator(gen, retryConfig(3, sleeper), Languages{}, nil)

	require.Empty(t, tr.Translate(context.Background(), "نص"))
	require.Equal(t, 1, gen.calls())
}

func newCategorizer(gen Generator, s *fakeSleeper) *Categorizer {
	cats := article.NewCategories([]string{
		"Politics", "Sports", "Technology", "Business", "Entertainment",
		"Health", "Science", "World", "Local", "Other",
	}, "Other")
	return NewCategorizer(gen, retryConfig(2, s), cats, nil)
}

func TestCategorize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		reply reply
		want  string
	}{
		{"exact member", reply{text: "Sports"}, "Sports"},
		{"sanitized member", reply{text: " **Technology.**\n"}, "Technology"},
		{"unknown label", reply{text: "Weather"}, "Other"},
		{"wrong case", reply{text: "sports"}, "Other"},
		{"extra words", reply{text: "Category: Sports"}, "Other"},
		{"empty answer", reply{text: ""}, "Other"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			gen := &fakeGenerator{replies: []reply{tc.reply}}
			require.Equal(t, tc.want, newCategorizer(gen, &fakeSleeper{}).Categorize(context.Background(), "body"))
		})
	}
}

func TestCategorizeBlankAndFailures(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{}
	require.Equal(t, "Other", newCategorizer(gen, &fakeSleeper{}).Categorize(context.Background(), "   "))
	require.Zero(t, gen.calls())

	failing := &fakeGenerator{replies: []reply{{err: errors.New("quota exceeded")}}}
	sleeper := &fakeSleeper{}
	require.Equal(t, "Other", newCategorizer(failing, sleeper).Categorize(context.Background(), "body"))
	require.Equal(t, 2, failing.calls())
	require.Equal(t, []time.Duration{5 * time.Second}, sleeper.waits)
}

func TestCategorizePromptListsVocabulary(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{replies: []reply{{text: "World"}}}
	newCategorizer(gen, &fakeSleeper{}).Categorize(context.Background(), "body")
	require.Contains(t, gen.prompts[0], "Choose from: Politics, Sports, Technology")
}

func TestBackoff(t *testing.T) {
	t.Parallel()

	require.Equal(t, 5*time.Second, Backoff(5*time.Second, 0))
	require.Equal(t, 10*time.Second, Backoff(5*time.Second, 1))
	require.Equal(t, 40*time.Second, Backoff(5*time.Second, 3))
}

func TestIsQuotaError(t *testing.T) {
	t.Parallel()

	require.True(t, IsQuotaError(errors.New("HTTP 429 Too Many Requests")))
	require.True(t, IsQuotaError(errors.New("Quota exceeded for metric")))
	require.True(t, IsQuotaError(errors.New("rpc error: code = ResourceExhausted desc = Resource exhausted")))
	require.True(t, IsQuotaError(fmt.Errorf("wrap: %w", &googleapi.Error{Code: http.StatusTooManyRequests})))
	require.False(t, IsQuotaError(errors.New("connection reset")))
	require.False(t, IsQuotaError(nil))
}
