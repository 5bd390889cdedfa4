// client.go contains the adaptive retrieval controller: the bounded
// retry/backoff state machine that obtains a usable page from a server that
// varies its blocking behavior. Callers get a parsed document or an error;
// they never need to know why individual attempts failed.

package logammulia

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"goldwatch/internal/components/assert"
	"goldwatch/internal/components/chrono"
	"goldwatch/internal/components/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/mazen160/go-random"
	"golang.org/x/time/rate"
)

const (
	report_client_fetch       = "client.fetch"
	report_client_alternative = "client.alternative-access"
	report_client_session     = "client.session"
)

const (
	// PurchasePagePath is the catalogue/stock document for the selected branch.
	PurchasePagePath = "/id/purchase/gold"
	// ChangeLocationPath is the branch-selection endpoint.
	ChangeLocationPath = "/do-change-location"

	DefaultMaxAttempts = 10

	requestTimeout = 45 * time.Second
	baseRetryDelay = 5 * time.Second
	maxRetryDelay  = 60 * time.Second
)

// Client owns exactly one HTTP session (cookies, default headers) at a time.
// A session reset atomically replaces it; nothing else may touch session
// state concurrently with that replacement. All methods are for use from a
// single goroutine.
type Client struct {
	baseUrl   *url.URL
	http      *resty.Client
	directory *Directory

	// generation increments on every session replacement, so workflows that
	// depend on session continuity (token extraction then submission) can
	// fail fast instead of retrying with state from a discarded session.
	generation uint64

	currentBranch *Branch
	lastAttempts  []RetrievalAttempt

	maxAttempts int
	time        chrono.TimeAPI
	sleep       chrono.SleepAPI
	tel         telemetry.API
}

func NewClient(
	baseUrl string,
	directory *Directory,
	maxAttempts int,
	time chrono.TimeAPI,
	sleep chrono.SleepAPI,
	tel telemetry.API,
) (*Client, error) {
	assert.NotEmptyStr(baseUrl)
	assert.NotNil(time)
	assert.NotNil(sleep)
	assert.NotNil(tel)

	parsed, err := url.Parse(baseUrl)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if directory == nil {
		// LoadDirectory can fill it from the live page later
		directory = &Directory{byCode: map[string]Branch{}}
	}

	c := &Client{
		baseUrl:     parsed,
		directory:   directory,
		maxAttempts: maxAttempts,
		time:        time,
		sleep:       sleep,
		tel:         telemetry.NewScopedAPI("logammulia", tel),
	}
	c.http = c.newSession(requestTimeout, baseHeaders())
	return c, nil
}

// newSession builds a fresh resty session: empty cookie jar, the given
// default headers, cloudflare-bypass transport and an outbound rate limit.
func (c *Client) newSession(timeout time.Duration, headers map[string]string) *resty.Client {
	httpClient := resty.New()
	httpClient.SetBaseURL(c.baseUrl.String())

	jar, err := cookiejar.New(nil)
	if err != nil {
		// cookiejar.New(nil) cannot fail, the error return is vestigial
		panic(err)
	}
	httpClient.SetCookieJar(jar)
	httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(
		httpClient.GetClient().Transport,
		cloudflarebp.Options{
			AddMissingHeaders: true,
			Headers: map[string]string{
				"Accept":          acceptValues[0],
				"Accept-Language": "id-ID,id;q=0.9,en;q=0.8",
				"User-Agent":      pick(desktopUserAgents),
			},
		},
	)

	httpClient.SetHeaders(headers)
	httpClient.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(c.baseUrl.Hostname()))
	httpClient.SetTimeout(timeout)

	// 2 requests max per second
	// max burst >= 2 just means that no requests will be dropped
	rateLimiter := rate.NewLimiter(2, 2)
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(httpClient, c.tel)

	return httpClient
}

// ResetSession discards all accumulated cookies and headers and begins a
// fresh session. Any token or branch scoping tied to the old session is gone.
func (c *Client) ResetSession() {
	c.http = c.newSession(requestTimeout, baseHeaders())
	c.generation++
	c.currentBranch = nil
	c.tel.ReportDebug("session reset", c.generation)
}

// CurrentBranch returns the branch the session is scoped to, if any.
func (c *Client) CurrentBranch() (Branch, bool) {
	if c.currentBranch == nil {
		return Branch{}, false
	}
	return *c.currentBranch, true
}

// LastAttempts returns the attempt records of the most recent Fetch.
// The returned slice is a copy, a later Fetch does not mutate it.
func (c *Client) LastAttempts() []RetrievalAttempt {
	attempts := make([]RetrievalAttempt, len(c.lastAttempts))
	copy(attempts, c.lastAttempts)
	return attempts
}

// Directory returns the branch directory the client resolves codes against.
func (c *Client) Directory() *Directory {
	return c.directory
}

// LoadDirectory fetches the purchase page and replaces the client's branch
// directory with the location selector parsed from it. Used at startup when
// no saved location document is available.
func (c *Client) LoadDirectory(ctx context.Context) (*Directory, error) {
	doc, err := c.Fetch(ctx, PurchasePagePath, 0)
	if err != nil {
		return nil, err
	}
	dir, err := parseDirectoryDocument(doc)
	if err != nil {
		return nil, err
	}
	c.directory = dir
	return dir, nil
}

// Fetch retrieves path until a 200 response with a non-empty, parseable body
// arrives, escalating through the profile catalogue with exponential backoff
// between attempts. After maxAttempts failures it makes one pass over the
// alternative-access pool, then fails with ErrExhausted.
func (c *Client) Fetch(ctx context.Context, path string, maxAttempts int) (*goquery.Document, error) {
	if maxAttempts <= 0 {
		maxAttempts = c.maxAttempts
	}
	c.lastAttempts = c.lastAttempts[:0]

	for attempt := 0; attempt < maxAttempts; attempt++ {
		var delay time.Duration
		if attempt > 0 {
			delay = retryDelay(attempt)
		}
		if err := c.sleep.Sleep(ctx, delay); err != nil {
			return nil, err
		}

		profile := ProfileForAttempt(attempt)
		c.tel.ReportDebug("fetch attempt", attempt, profile.Name, path)
		if err := c.applyProfile(ctx, profile); err != nil {
			return nil, err
		}

		record := RetrievalAttempt{
			Index:              attempt,
			Profile:            profile.Name,
			DelayBeforeAttempt: delay,
		}

		res, err := c.http.R().SetContext(ctx).Get(path)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			record.Outcome = OUTCOME_CONNECTION_FAILURE
			cooldownMin, cooldownMax := 5*time.Second, 10*time.Second
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				record.Outcome = OUTCOME_TIMEOUT
				cooldownMin, cooldownMax = 10*time.Second, 20*time.Second
			}
			c.tel.ReportWarning(
				report_client_fetch,
				fmt.Errorf("attempt %d: %w", attempt, err),
				record.Outcome.String(),
			)
			c.lastAttempts = append(c.lastAttempts, record)
			if err := c.sleep.Sleep(ctx, jitterDuration(cooldownMin, cooldownMax)); err != nil {
				return nil, err
			}
			continue
		}

		record.StatusCode = res.StatusCode()
		switch {
		case res.StatusCode() == 200 && len(res.Body()) > 0:
			record.Outcome = OUTCOME_SUCCESS
			c.lastAttempts = append(c.lastAttempts, record)
			doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
			if err != nil {
				c.tel.ReportBroken(
					report_client_fetch,
					fmt.Errorf("parse html: %w", err),
				)
				return nil, err
			}
			return doc, nil

		case res.StatusCode() == 200:
			// interstitial "please wait" pages return 200 with nothing in
			// them, treat like any other failed attempt
			record.Outcome = OUTCOME_HTTP_ERROR
			c.tel.ReportWarning(report_client_fetch, "empty 200 body", attempt)

		case res.StatusCode() == 403:
			record.Outcome = OUTCOME_HTTP_ERROR
			// classification is diagnostic only, it never changes the
			// retry schedule
			c.tel.ReportWarning(
				report_client_fetch,
				"403 forbidden",
				attempt,
				classifyBlock(res.Body()),
			)

		case res.StatusCode() == 429:
			record.Outcome = OUTCOME_HTTP_ERROR
			c.tel.ReportWarning(report_client_fetch, "rate limited", attempt)
			c.lastAttempts = append(c.lastAttempts, record)
			// extended cooldown on top of the next scheduled delay
			if err := c.sleep.Sleep(ctx, jitterDuration(30*time.Second, 60*time.Second)); err != nil {
				return nil, err
			}
			continue

		default:
			record.Outcome = OUTCOME_HTTP_ERROR
			c.tel.ReportWarning(report_client_fetch, "unexpected status", attempt, res.StatusCode())
		}
		c.lastAttempts = append(c.lastAttempts, record)
	}

	return c.alternativeAccess(ctx, path)
}

// applyProfile mutates the current session (or replaces it) according to the
// profile, then performs any decoy behavior the profile calls for.
func (c *Client) applyProfile(ctx context.Context, profile RequestProfile) error {
	if profile.ResetSession {
		c.ResetSession()
	}
	if profile.PreDelayMax > 0 {
		if err := c.sleep.Sleep(ctx, jitterDuration(profile.PreDelayMin, profile.PreDelayMax)); err != nil {
			return err
		}
	}

	pool := desktopUserAgents
	if len(profile.UserAgents) > 0 {
		pool = profile.UserAgents
	}
	c.http.SetHeader("User-Agent", pick(pool))
	c.http.SetHeaders(randomizedHeaders())
	if profile.Referer != "" {
		c.http.SetHeader("Referer", profile.Referer)
	}
	for k, v := range profile.Headers {
		c.http.SetHeader(k, v)
	}

	if profile.DecoyCookies {
		sessionId, err := random.String(32)
		if err != nil {
			c.tel.ReportWarning(report_client_session, fmt.Errorf("decoy session id: %w", err))
			sessionId = "0"
		}
		c.http.SetCookie(&http.Cookie{Name: "visited", Value: "true"})
		c.http.SetCookie(&http.Cookie{Name: "session_id", Value: sessionId})
	}

	for _, decoy := range profile.DecoyPaths {
		// failures here do not matter, the decoys exist only to make the
		// session's history look organic
		_, err := c.http.R().SetContext(ctx).Get(decoy)
		if err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		if err := c.sleep.Sleep(ctx, jitterDuration(time.Second, 4*time.Second)); err != nil {
			return err
		}
	}
	return nil
}

// alternativeAccess is the final pass: a small pool of minimal,
// maximally-divergent identities tried once each on throwaway sessions. A
// success promotes its session to the client's current session.
func (c *Client) alternativeAccess(ctx context.Context, path string) (*goquery.Document, error) {
	for _, alt := range alternativeProfiles {
		if err := c.sleep.Sleep(ctx, jitterDuration(2*time.Second, 5*time.Second)); err != nil {
			return nil, err
		}

		c.tel.ReportDebug("alternative access", alt.Name, path)
		session := c.newSession(alt.Timeout, alt.Headers)

		res, err := session.R().SetContext(ctx).Get(path)
		record := RetrievalAttempt{
			Index:   len(c.lastAttempts),
			Profile: fmt.Sprintf("alt:%s", alt.Name),
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			record.Outcome = OUTCOME_CONNECTION_FAILURE
			c.lastAttempts = append(c.lastAttempts, record)
			c.tel.ReportWarning(report_client_alternative, fmt.Errorf("%s: %w", alt.Name, err))
			continue
		}

		record.StatusCode = res.StatusCode()
		if res.StatusCode() == 200 && len(res.Body()) > 0 {
			record.Outcome = OUTCOME_SUCCESS
			c.lastAttempts = append(c.lastAttempts, record)

			doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
			if err != nil {
				c.tel.ReportBroken(
					report_client_alternative,
					fmt.Errorf("parse html: %w", err),
				)
				return nil, err
			}

			c.http = session
			c.generation++
			c.currentBranch = nil
			return doc, nil
		}

		record.Outcome = OUTCOME_HTTP_ERROR
		c.lastAttempts = append(c.lastAttempts, record)
		c.tel.ReportWarning(report_client_alternative, alt.Name, res.StatusCode())
	}

	c.tel.ReportBroken(report_client_fetch, ErrExhausted, path)
	return nil, fmt.Errorf("fetch %s: %w", path, ErrExhausted)
}

// retryDelay computes the scheduled wait before the given attempt:
// min(60s, 5s * 2^(attempt-1)) with uniform 0.5x-1.5x jitter.
func retryDelay(attempt int) time.Duration {
	base := maxRetryDelay
	if attempt <= 4 {
		base = baseRetryDelay << uint(attempt-1)
		if base > maxRetryDelay {
			base = maxRetryDelay
		}
	}
	return jitterDuration(base/2, base*3/2)
}

// jitterDuration draws uniformly from [min, max].
func jitterDuration(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	ms, err := random.IntRange(int(min/time.Millisecond), int(max/time.Millisecond)+1)
	if err != nil {
		return min
	}
	return time.Duration(ms) * time.Millisecond
}

// classifyBlock guesses what kind of protection produced a 403 body.
func classifyBlock(body []byte) string {
	lower := strings.ToLower(string(body))
	switch {
	case strings.Contains(lower, "cloudflare"):
		return "cloudflare challenge"
	case strings.Contains(lower, "captcha"):
		return "captcha challenge"
	case strings.Contains(lower, "blocked"):
		return "ip block"
	}
	return "generic block"
}
