// profiles.go is the declarative catalogue of request disguises. The
// escalation policy is data: attempt index n is served by the n-th profile
// (cycling when the budget exceeds the catalogue), each profile diverging
// further from a plain browser session than the one before it.

package logammulia

import (
	"time"

	"github.com/mazen160/go-random"
)

// RequestProfile is one complete set of headers/behavior used for a single
// retrieval attempt. Profiles are immutable; the catalogue is consulted by
// attempt index.
type RequestProfile struct {
	Name string
	// Referer, when set, tells a story about where the visitor came from.
	Referer string
	// Headers are applied on top of the randomized bands and persist on the
	// session like everything else, so later attempts inherit them unless a
	// reset intervenes.
	Headers map[string]string
	// ResetSession discards all accumulated cookies and headers and starts a
	// fresh session before the attempt.
	ResetSession bool
	// DecoyCookies plants returning-visitor cookies on the session.
	DecoyCookies bool
	// DecoyPaths are navigated (errors ignored) before the real request.
	DecoyPaths []string
	// PreDelayMin/Max bound an extra human-like pause before the attempt,
	// on top of the retry schedule.
	PreDelayMin time.Duration
	PreDelayMax time.Duration
	// UserAgents overrides the desktop pool when set.
	UserAgents []string
}

var desktopUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:120.0) Gecko/20100101 Firefox/120.0",
}

var mobileUserAgents = []string{
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15",
	"Mozilla/5.0 (Linux; Android 14; SM-G991B) AppleWebKit/537.36",
}

// header bands sampled per attempt so consecutive requests never share an
// exact fingerprint
var (
	acceptValues = []string{
		"text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
		"text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	}
	acceptLanguageValues = []string{
		"en-US,en;q=0.9,id;q=0.8",
		"id-ID,id;q=0.9,en;q=0.8",
		"en-US,en;q=0.9",
	}
	acceptEncodingValues = []string{
		"gzip, deflate, br",
		"gzip, deflate",
		"br",
	}
	dntValues          = []string{"1", "0"}
	connectionValues   = []string{"keep-alive", "close"}
	upgradeValues      = []string{"1", "0"}
	secFetchDestValues = []string{"document", "empty"}
	secFetchModeValues = []string{"navigate", "cors"}
	secFetchSiteValues = []string{"none", "same-origin", "cross-site"}
	cacheControlValues = []string{"max-age=0", "no-cache", "no-store"}
	pragmaValues       = []string{"no-cache", ""}
)

// profileCatalogue is ordered by divergence from a plain browsing session.
var profileCatalogue = []RequestProfile{
	{
		Name: "baseline",
	},
	{
		Name:    "search-referrer",
		Referer: "https://www.google.com/",
		Headers: map[string]string{
			"Sec-Ch-Ua":          `"Not_A Brand";v="8", "Chromium";v="120", "Google Chrome";v="120"`,
			"Sec-Ch-Ua-Mobile":   "?0",
			"Sec-Ch-Ua-Platform": `"Windows"`,
		},
	},
	{
		Name:    "social-referrer",
		Referer: "https://www.facebook.com/",
		Headers: map[string]string{
			"Sec-Fetch-Site": "cross-site",
		},
	},
	{
		Name:         "fresh-session",
		ResetSession: true,
		PreDelayMin:  2 * time.Second,
		PreDelayMax:  4 * time.Second,
	},
	{
		Name:       "mobile",
		UserAgents: mobileUserAgents,
		Headers: map[string]string{
			"Accept":           "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Sec-Ch-Ua-Mobile": "?1",
		},
	},
	{
		Name:         "returning-visitor",
		ResetSession: true,
		DecoyCookies: true,
	},
	{
		Name:        "human-pause",
		PreDelayMin: 8 * time.Second,
		PreDelayMax: 15 * time.Second,
		DecoyPaths:  []string{"/id/about", "/id/contact"},
	},
	{
		Name: "full-fingerprint",
		Headers: map[string]string{
			"Sec-Ch-Ua":                   `"Google Chrome";v="120", "Chromium";v="120", "Not_A Brand";v="24"`,
			"Sec-Ch-Ua-Full-Version-List": `"Not_A Brand";v="24.0.0.0", "Chromium";v="120.0.6099.109", "Google Chrome";v="120.0.6099.109"`,
			"Sec-Ch-Ua-Platform":          `"Windows"`,
			"Sec-Ch-Ua-Platform-Version":  `"15.0.0"`,
			"Sec-Ch-Ua-Wow64":             "?0",
		},
	},
}

// ProfileForAttempt maps an attempt index to its profile. The mapping is
// total: indices past the catalogue cycle back through it.
func ProfileForAttempt(attempt int) RequestProfile {
	return profileCatalogue[attempt%len(profileCatalogue)]
}

// CatalogueSize is the number of distinct profiles in the main schedule.
func CatalogueSize() int {
	return len(profileCatalogue)
}

// alternativeProfile is a maximally-divergent last-resort identity, tried on
// a throwaway session after the main schedule is exhausted.
type alternativeProfile struct {
	Name    string
	Headers map[string]string
	Timeout time.Duration
}

var alternativeProfiles = []alternativeProfile{
	{
		Name: "minimal headers",
		Headers: map[string]string{
			"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language": "id-ID,id;q=0.9,en;q=0.8",
		},
		Timeout: 60 * time.Second,
	},
	{
		Name: "safari",
		Headers: map[string]string{
			"User-Agent":      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
			"Accept-Encoding": "gzip, deflate, br",
		},
		Timeout: 45 * time.Second,
	},
	{
		Name: "edge",
		Headers: map[string]string{
			"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,image/apng,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
			"Referer":         "https://www.bing.com/",
		},
		Timeout: 50 * time.Second,
	},
	{
		Name: "mobile device",
		Headers: map[string]string{
			"User-Agent":      "Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1",
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
		},
		Timeout: 40 * time.Second,
	},
}

// AlternativePoolSize is the number of last-resort profiles tried after the
// main schedule fails.
func AlternativePoolSize() int {
	return len(alternativeProfiles)
}

func pick(options []string) string {
	if len(options) == 1 {
		return options[0]
	}
	i, err := random.IntRange(0, len(options))
	if err != nil {
		return options[0]
	}
	return options[i]
}

// randomizedHeaders samples one value from every header band.
func randomizedHeaders() map[string]string {
	headers := map[string]string{
		"Accept":                    pick(acceptValues),
		"Accept-Language":           pick(acceptLanguageValues),
		"Accept-Encoding":           pick(acceptEncodingValues),
		"DNT":                       pick(dntValues),
		"Connection":                pick(connectionValues),
		"Upgrade-Insecure-Requests": pick(upgradeValues),
		"Sec-Fetch-Dest":            pick(secFetchDestValues),
		"Sec-Fetch-Mode":            pick(secFetchModeValues),
		"Sec-Fetch-Site":            pick(secFetchSiteValues),
		"Cache-Control":             pick(cacheControlValues),
	}
	if pragma := pick(pragmaValues); pragma != "" {
		headers["Pragma"] = pragma
	}
	return headers
}

// baseHeaders is the realistic browser fingerprint every fresh session
// starts from.
func baseHeaders() map[string]string {
	return map[string]string{
		"User-Agent":                desktopUserAgents[0],
		"Accept":                    acceptValues[0],
		"Accept-Language":           "id-ID,id;q=0.9,en;q=0.8",
		"Accept-Encoding":           "gzip, deflate, br",
		"DNT":                       "1",
		"Connection":                "keep-alive",
		"Upgrade-Insecure-Requests": "1",
		"Sec-Fetch-Dest":            "document",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Site":            "none",
		"Sec-Fetch-User":            "?1",
		"Cache-Control":             "max-age=0",
		"Sec-Ch-Ua":                 `"Not_A Brand";v="8", "Chromium";v="120", "Google Chrome";v="120"`,
		"Sec-Ch-Ua-Mobile":          "?0",
		"Sec-Ch-Ua-Platform":        `"Windows"`,
	}
}
