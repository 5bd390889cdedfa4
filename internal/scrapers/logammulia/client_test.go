package logammulia

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"goldwatch/internal/components/chrono"
	"goldwatch/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

// recordingSleep skips all waits and records what was asked for, so backoff
// schedules can be asserted without slowing the test down.
type recordingSleep struct {
	delays []time.Duration
}

func (s *recordingSleep) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.delays = append(s.delays, d)
	return nil
}

const purchasePageBody = `<html><body>
<meta name="_token" content="tok-123">
<div><input price="5.500.000" weight="5" max="10"></div>
</body></html>`

func newTestClient(t testing.TB, serverUrl string, maxAttempts int) (*Client, *recordingSleep) {
	sleep := &recordingSleep{}
	client, err := NewClient(serverUrl, nil, maxAttempts, chrono.StandardTime{}, sleep, telemetry.SlogAPI{})
	require.NoError(t, err)
	return client, sleep
}

func TestFetchRetriesThroughForbidden(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := requests.Add(1)
		if n < 3 {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte("<html>Attention Required! | Cloudflare</html>"))
			return
		}
		w.Write([]byte(purchasePageBody))
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL, 5)
	doc, err := client.Fetch(context.Background(), PurchasePagePath, 0)
	require.NoError(t, err)
	require.NotNil(t, doc)
	require.Equal(t, int64(3), requests.Load())

	attempts := client.LastAttempts()
	require.Len(t, attempts, 3)

	require.Equal(t, OUTCOME_HTTP_ERROR, attempts[0].Outcome)
	require.Equal(t, 403, attempts[0].StatusCode)
	require.Equal(t, time.Duration(0), attempts[0].DelayBeforeAttempt)

	// scheduled backoff: 5s*2^(n-1) with 0.5x-1.5x jitter
	require.Equal(t, OUTCOME_HTTP_ERROR, attempts[1].Outcome)
	require.GreaterOrEqual(t, attempts[1].DelayBeforeAttempt, 2500*time.Millisecond)
	require.LessOrEqual(t, attempts[1].DelayBeforeAttempt, 7500*time.Millisecond)

	require.Equal(t, OUTCOME_SUCCESS, attempts[2].Outcome)
	require.Equal(t, 200, attempts[2].StatusCode)
	require.GreaterOrEqual(t, attempts[2].DelayBeforeAttempt, 5*time.Second)
	require.LessOrEqual(t, attempts[2].DelayBeforeAttempt, 15*time.Second)
}

func TestFetchBackoffCapsAtMax(t *testing.T) {
	for attempt := 5; attempt < 20; attempt++ {
		d := retryDelay(attempt)
		require.GreaterOrEqual(t, d, 30*time.Second, "attempt %d", attempt)
		require.LessOrEqual(t, d, 90*time.Second, "attempt %d", attempt)
	}
}

func TestFetchExhaustsThroughRateLimiting(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, sleep := newTestClient(t, server.URL, 3)
	_, err := client.Fetch(context.Background(), PurchasePagePath, 0)
	require.ErrorIs(t, err, ErrExhausted)

	// 3 scheduled attempts, then one pass over the alternative pool
	require.Equal(t, int64(3+AlternativePoolSize()), requests.Load())
	require.Len(t, client.LastAttempts(), 3+AlternativePoolSize())

	// every 429 adds an extended cooldown on top of the schedule
	cooldowns := 0
	for _, d := range sleep.delays {
		if d >= 30*time.Second && d <= 60*time.Second {
			cooldowns++
		}
	}
	require.GreaterOrEqual(t, cooldowns, 3)
}

func TestFetchRetriesEmptyBody(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			// interstitial page: 200 with nothing in it
			return
		}
		w.Write([]byte(purchasePageBody))
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL, 5)
	doc, err := client.Fetch(context.Background(), PurchasePagePath, 0)
	require.NoError(t, err)
	require.NotNil(t, doc)

	attempts := client.LastAttempts()
	require.Len(t, attempts, 2)
	require.Equal(t, OUTCOME_HTTP_ERROR, attempts[0].Outcome)
	require.Equal(t, OUTCOME_SUCCESS, attempts[1].Outcome)
}

func TestFetchAlternativeAccessPromotesSession(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) <= 2 {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte(purchasePageBody))
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL, 2)
	doc, err := client.Fetch(context.Background(), PurchasePagePath, 0)
	require.NoError(t, err)
	require.NotNil(t, doc)

	// 2 scheduled attempts failed, the first alternative identity succeeded
	require.Equal(t, int64(3), requests.Load())
	attempts := client.LastAttempts()
	require.Len(t, attempts, 3)
	require.Equal(t, OUTCOME_SUCCESS, attempts[2].Outcome)
	require.Contains(t, attempts[2].Profile, "alt:")

	// the promoted session discards any branch scoping
	_, scoped := client.CurrentBranch()
	require.False(t, scoped)
}

func TestFetchThenExtract(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><meta name="_token" content="tok"></head><body>
			<div class="item"><input price="5.500.000" weight="5" max="10"></div>
			<div class="item"><input price="10.800.000" weight="10" disabled></div>
		</body></html>`))
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL, 5)
	doc, err := client.Fetch(context.Background(), PurchasePagePath, 0)
	require.NoError(t, err)

	branch := Branch{Code: "ASB1", Name: "Surabaya 1", City: "Surabaya"}
	snapshot := NewExtractor(telemetry.SlogAPI{}).Extract(doc, branch, time.Now(), nil)

	require.Equal(t, 2, snapshot.TotalScanned)
	require.Len(t, snapshot.Variants, 2)
	require.Equal(t, STOCK_AVAILABLE, snapshot.Variants[0].Availability)
	require.Equal(t, float64(5), snapshot.Variants[0].WeightGrams)
	require.Equal(t, STOCK_OUT, snapshot.Variants[1].Availability)
	require.Equal(t, float64(10), snapshot.Variants[1].WeightGrams)
}

func TestLastAttemptsSurvivesLaterFetch(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1)%2 == 1 {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte(purchasePageBody))
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL, 5)
	_, err := client.Fetch(context.Background(), PurchasePagePath, 0)
	require.NoError(t, err)

	first := client.LastAttempts()
	require.Len(t, first, 2)
	require.Equal(t, OUTCOME_HTTP_ERROR, first[0].Outcome)

	// another Fetch must not rewrite records a caller already holds
	_, err = client.Fetch(context.Background(), PurchasePagePath, 0)
	require.NoError(t, err)
	require.Equal(t, OUTCOME_HTTP_ERROR, first[0].Outcome)
	require.Equal(t, 403, first[0].StatusCode)
}

func TestFetchHonorsContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client, _ := newTestClient(t, server.URL, 5)
	_, err := client.Fetch(ctx, PurchasePagePath, 0)
	require.ErrorIs(t, err, context.Canceled)
}

func TestResetSessionDiscardsBranchScope(t *testing.T) {
	client, _ := newTestClient(t, "https://www.example.com", 1)

	branch := Branch{Code: "ASB1", Name: "Surabaya 1", City: "Surabaya"}
	client.currentBranch = &branch
	generation := client.generation

	client.ResetSession()

	_, scoped := client.CurrentBranch()
	require.False(t, scoped)
	require.Equal(t, generation+1, client.generation)
}

func TestProfileScheduleCycles(t *testing.T) {
	size := CatalogueSize()
	require.Equal(t, ProfileForAttempt(0).Name, ProfileForAttempt(size).Name)
	require.Equal(t, ProfileForAttempt(3).Name, ProfileForAttempt(size+3).Name)
}

func TestClassifyBlock(t *testing.T) {
	cases := []struct {
		body   string
		expect string
	}{
		{body: "Attention Required! | Cloudflare", expect: "cloudflare challenge"},
		{body: "please complete the CAPTCHA to continue", expect: "captcha challenge"},
		{body: "your IP has been blocked", expect: "ip block"},
		{body: "forbidden", expect: "generic block"},
	}
	for _, test := range cases {
		require.Equal(t, test.expect, classifyBlock([]byte(test.body)), test.body)
	}
}
