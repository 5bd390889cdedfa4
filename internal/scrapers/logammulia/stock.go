// stock.go recovers structured availability records from the purchase page.
// Availability is never exposed by the site as machine-readable state; it has
// to be inferred from disabled form controls, a tagged no-stock marker,
// status text and vocabulary, which may be partially missing or contradict
// each other. A fixed precedence resolves disagreements.

package logammulia

import (
	"strconv"
	"strings"
	"time"

	"goldwatch/internal/components/assert"
	"goldwatch/internal/components/telemetry"

	"github.com/PuerkitoBio/goquery"
)

const (
	report_extract_variant = "extract.variant"
)

const (
	// unavailablePhrase is the site's "not yet available" status text.
	unavailablePhrase = "Belum tersedia"

	priceInputSelector = "input[price]"
	noStockSelector    = "span.no-stock"
	defaultMaxQuantity = 999
)

// generic sold-out/empty vocabulary, checked lowercased
var emptyVocabulary = []string{"habis", "kosong"}

// limited-stock vocabulary, checked lowercased
var limitedVocabulary = []string{"terbatas", "limited"}

// Extractor turns a fetched purchase-page document into a StockSnapshot.
type Extractor struct {
	tel telemetry.API
}

func NewExtractor(tel telemetry.API) Extractor {
	assert.NotNil(tel)
	return Extractor{tel: telemetry.NewScopedAPI("logammulia", tel)}
}

// Extract produces the snapshot for one branch from a document fetched after
// that branch was selected. Elements that fail to parse are skipped, never
// fatal; a document with no price-bearing inputs yields an empty variant
// list (whether that means "no catalogue" or "page changed" is for the
// caller to decide against history). When targetWeights is non-empty,
// variants outside it are dropped from the output but still counted in
// TotalScanned.
func (e Extractor) Extract(
	doc *goquery.Document,
	branch Branch,
	checkedAt time.Time,
	targetWeights []float64,
) StockSnapshot {
	targets := map[float64]bool{}
	for _, w := range targetWeights {
		targets[w] = true
	}

	snapshot := StockSnapshot{
		Branch:    branch,
		CheckedAt: checkedAt,
	}

	doc.Find(priceInputSelector).Each(func(_ int, input *goquery.Selection) {
		snapshot.TotalScanned++

		weightAttr := input.AttrOr("weight", "")
		weight, err := strconv.ParseFloat(weightAttr, 64)
		if err != nil || weight <= 0 {
			e.tel.ReportWarning(
				report_extract_variant,
				"unparseable weight, skipping element",
				weightAttr,
			)
			return
		}
		// raw weight is in kilograms when fractional, grams otherwise
		grams := weight
		if weight < 1 {
			grams = weight * 1000
		}

		price, err := parsePrice(input.AttrOr("price", ""))
		if err != nil {
			e.tel.ReportWarning(
				report_extract_variant,
				"unparseable price, skipping element",
				input.AttrOr("price", ""),
			)
			return
		}

		group := productGroup(input, doc)
		availability := e.classify(input, group, grams)

		maxQuantity := int64(defaultMaxQuantity)
		if maxAttr := input.AttrOr("max", ""); maxAttr != "" {
			if parsed, err := strconv.ParseInt(maxAttr, 10, 64); err == nil {
				maxQuantity = parsed
			}
		}

		if len(targets) > 0 && !targets[grams] {
			return
		}

		snapshot.Variants = append(snapshot.Variants, ProductVariant{
			WeightGrams:  grams,
			PriceIdr:     price,
			MaxQuantity:  maxQuantity,
			Availability: availability,
			InputId:      input.AttrOr("id", ""),
		})
	})

	return snapshot
}

// parsePrice strips thousands separators from the raw price attribute.
func parsePrice(raw string) (int64, error) {
	cleaned := strings.NewReplacer(".", "", ",", "").Replace(strings.TrimSpace(raw))
	return strconv.ParseInt(cleaned, 10, 64)
}

// productGroup finds the widest enclosing grouping whose status text still
// describes only the given input: ancestors are walked outward and the walk
// stops just below the first one containing more than one price-bearing
// element (or at the document root). The predicate, not a fixed depth,
// bounds the ascent so the walk survives markup reflow and keeps sibling
// variants' status text from being attributed to this one.
func productGroup(input *goquery.Selection, doc *goquery.Document) *goquery.Selection {
	group := input.Parent()
	if group.Length() == 0 {
		return doc.Selection
	}
	for {
		parent := group.Parent()
		if parent.Length() == 0 || parent.Find(priceInputSelector).Length() > 1 {
			return group
		}
		group = parent
	}
}

// classify evaluates every availability signal in the group and resolves
// them by precedence: disabled control, then the tagged no-stock marker,
// then the unavailability phrase or empty vocabulary, then limited
// vocabulary. Every signal is computed so that disagreements are visible in
// debug output even when a higher-precedence signal decides the state.
func (e Extractor) classify(input, group *goquery.Selection, grams float64) Availability {
	_, disabled := input.Attr("disabled")

	noStockMarker := false
	group.Find(noStockSelector).Each(func(_ int, marker *goquery.Selection) {
		if strings.Contains(marker.Text(), unavailablePhrase) {
			noStockMarker = true
		}
	})

	text := group.Text()
	lower := strings.ToLower(text)
	unavailableText := strings.Contains(text, unavailablePhrase) || containsAny(lower, emptyVocabulary)
	limitedText := containsAny(lower, limitedVocabulary)

	e.tel.ReportDebug(
		"availability signals",
		grams,
		disabled,
		noStockMarker,
		unavailableText,
		limitedText,
	)

	switch {
	case disabled:
		return STOCK_OUT
	case noStockMarker:
		return STOCK_OUT
	case unavailableText:
		return STOCK_OUT
	case limitedText:
		return STOCK_LIMITED
	}
	return STOCK_AVAILABLE
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
