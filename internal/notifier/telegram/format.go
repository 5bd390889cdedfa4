package telegram

import (
	"fmt"
	"strings"
	"time"
)

// StockItem is one purchasable variant worth alerting about, flattened for
// rendering.
type StockItem struct {
	BranchCode  string
	BranchName  string
	City        string
	WeightGrams float64
	PriceIdr    int64
	Status      string
}

const timestampLayout = "2006-01-02 15:04:05"

// FormatStockAlert renders the availability alert, grouping items by branch.
func FormatStockAlert(items []StockItem, now time.Time) string {
	if len(items) == 0 {
		return ""
	}

	var out strings.Builder
	fmt.Fprintf(&out, "🏆 *LOGAM MULIA STOCK ALERT* 🏆\n")
	fmt.Fprintf(&out, "📅 %s\n\n", now.Format(timestampLayout))
	out.WriteString("🎯 *Available Gold Items Found:*\n")

	// group by branch, preserving first-seen order
	var branchOrder []string
	grouped := map[string][]StockItem{}
	for _, item := range items {
		if _, seen := grouped[item.BranchName]; !seen {
			branchOrder = append(branchOrder, item.BranchName)
		}
		grouped[item.BranchName] = append(grouped[item.BranchName], item)
	}

	branchCodes := map[string]bool{}
	for i, branchName := range branchOrder {
		group := grouped[branchName]
		fmt.Fprintf(&out, "\n%d. 🏪 *%s* (%s)\n", i+1, branchName, group[0].City)
		for _, item := range group {
			branchCodes[item.BranchCode] = true
			fmt.Fprintf(
				&out,
				"   • %gg - %s - %s\n",
				item.WeightGrams,
				formatPrice(item.PriceIdr),
				item.Status,
			)
		}
	}

	out.WriteString("\n🔔 *Quick Actions:*\n")
	out.WriteString("• Visit: https://logammulia.com/id/purchase/gold\n")
	out.WriteString("• Check location: Select your preferred branch\n")
	out.WriteString("• Act fast: Limited stock available!\n\n")
	fmt.Fprintf(&out, "📊 Checked %d branches\n", len(branchCodes))
	fmt.Fprintf(&out, "💰 Items available: %d\n\n", len(items))
	out.WriteString("#logammulia #gold #investment #stockalert")

	return out.String()
}

// FormatErrorNotification renders a monitoring failure message.
func FormatErrorNotification(message, errContext string, now time.Time) string {
	var out strings.Builder
	out.WriteString("⚠️ *LogamMulia Checker Error*\n")
	fmt.Fprintf(&out, "📅 %s\n", now.Format(timestampLayout))
	if errContext != "" {
		fmt.Fprintf(&out, "🔧 %s\n", errContext)
	}
	fmt.Fprintf(&out, "\n%s\n\n#debug #error", message)
	return out.String()
}

// FormatSummaryReport renders run totals.
func FormatSummaryReport(totalBranches, totalProducts, availableCount int, duration time.Duration, now time.Time) string {
	var out strings.Builder
	out.WriteString("📊 *LogamMulia Stock Summary*\n")
	fmt.Fprintf(&out, "📅 %s\n", now.Format(timestampLayout))
	if duration > 0 {
		fmt.Fprintf(&out, "⏱️ Duration: %s\n", duration.Round(time.Second))
	}
	out.WriteString("\n📈 *Summary:*\n")
	fmt.Fprintf(&out, "• Branches checked: %d\n", totalBranches)
	fmt.Fprintf(&out, "• Products scanned: %d\n", totalProducts)
	fmt.Fprintf(&out, "• ✅ Available: %d\n", availableCount)
	fmt.Fprintf(&out, "• ❌ Out of stock: %d\n", totalProducts-availableCount)
	if totalProducts > 0 {
		fmt.Fprintf(
			&out,
			"• 📊 Availability rate: %.1f%%\n",
			float64(availableCount)/float64(totalProducts)*100,
		)
	}
	out.WriteString("\n💰 *Investment opportunities found!*\n\n#summary #logammulia #goldreport")
	return out.String()
}

// formatPrice renders rupiah compactly: millions as M, thousands as K.
func formatPrice(price int64) string {
	switch {
	case price >= 1_000_000:
		return fmt.Sprintf("Rp %.1fM", float64(price)/1_000_000)
	case price >= 1_000:
		return fmt.Sprintf("Rp %.0fK", float64(price)/1_000)
	}
	return fmt.Sprintf("Rp %d", price)
}
