package telegram

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var formatNow = time.Date(2026, time.August, 30, 14, 30, 0, 0, time.UTC)

func TestFormatPrice(t *testing.T) {
	cases := []struct {
		price  int64
		expect string
	}{
		{price: 242800000, expect: "Rp 242.8M"},
		{price: 5500000, expect: "Rp 5.5M"},
		{price: 1000000, expect: "Rp 1.0M"},
		{price: 985000, expect: "Rp 985K"},
		{price: 1500, expect: "Rp 2K"},
		{price: 999, expect: "Rp 999"},
	}
	for _, test := range cases {
		require.Equal(t, test.expect, formatPrice(test.price))
	}
}

func TestFormatStockAlertGroupsByBranch(t *testing.T) {
	items := []StockItem{
		{BranchCode: "ASB1", BranchName: "Surabaya 1", City: "Surabaya", WeightGrams: 5, PriceIdr: 5500000, Status: "Available"},
		{BranchCode: "ABDG", BranchName: "Bandung", City: "Bandung", WeightGrams: 10, PriceIdr: 10800000, Status: "Limited Stock"},
		{BranchCode: "ASB1", BranchName: "Surabaya 1", City: "Surabaya", WeightGrams: 10, PriceIdr: 10800000, Status: "Available"},
	}

	text := FormatStockAlert(items, formatNow)

	require.Contains(t, text, "LOGAM MULIA STOCK ALERT")
	require.Contains(t, text, "2026-08-30 14:30:00")
	require.Contains(t, text, "1. 🏪 *Surabaya 1* (Surabaya)")
	require.Contains(t, text, "2. 🏪 *Bandung* (Bandung)")
	require.Contains(t, text, "• 5g - Rp 5.5M - Available")
	require.Contains(t, text, "• 10g - Rp 10.8M - Limited Stock")
	require.Contains(t, text, "Checked 2 branches")
	require.Contains(t, text, "Items available: 3")
	require.Contains(t, text, "#stockalert")

	// both Surabaya items render under the one Surabaya section
	require.Equal(t, 1, strings.Count(text, "*Surabaya 1*"))
}

func TestFormatStockAlertEmpty(t *testing.T) {
	require.Equal(t, "", FormatStockAlert(nil, formatNow))
}

func TestFormatErrorNotification(t *testing.T) {
	text := FormatErrorNotification("fetch /id/purchase/gold: exhausted all retrieval attempts", "Branch check failed - ASB1", formatNow)
	require.Contains(t, text, "LogamMulia Checker Error")
	require.Contains(t, text, "Branch check failed - ASB1")
	require.Contains(t, text, "exhausted all retrieval attempts")
	require.Contains(t, text, "#debug #error")

	// the context line is dropped entirely when there is none
	text = FormatErrorNotification("boom", "", formatNow)
	require.NotContains(t, text, "🔧")
}

func TestFormatSummaryReport(t *testing.T) {
	text := FormatSummaryReport(5, 40, 10, 93*time.Second, formatNow)
	require.Contains(t, text, "Branches checked: 5")
	require.Contains(t, text, "Products scanned: 40")
	require.Contains(t, text, "Available: 10")
	require.Contains(t, text, "Out of stock: 30")
	require.Contains(t, text, "Availability rate: 25.0%")
	require.Contains(t, text, "Duration: 1m33s")

	// no rate line when nothing was scanned
	text = FormatSummaryReport(0, 0, 0, 0, formatNow)
	require.NotContains(t, text, "Availability rate")
	require.NotContains(t, text, "Duration")
}
