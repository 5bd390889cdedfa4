// directory.go parses the static location selector document into branch
// records. Pure extraction, no session state involved.

package logammulia

import (
	"fmt"
	"io"
	"strings"

	"goldwatch/internal/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// sentinelOptionText is the "please choose" option, excluded from the
// parsed list.
const sentinelOptionText = "Pilih lokasi Butik Emas Logam Mulia"

const branchNamePrefix = "BELM - "

// Directory is the read-only list of branches parsed at startup.
type Directory struct {
	branches []Branch
	byCode   map[string]Branch
}

// ParseDirectory extracts branch records from the location selector
// document: the option children of the select element with id "location".
func ParseDirectory(r io.Reader) (*Directory, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse location document: %w", err)
	}
	return parseDirectoryDocument(doc)
}

func parseDirectoryDocument(doc *goquery.Document) (*Directory, error) {
	sel := doc.Find("select#location")
	if sel.Length() == 0 {
		return nil, fmt.Errorf("no location select element found")
	}

	dir := &Directory{byCode: map[string]Branch{}}
	sel.Find("option").Each(func(_ int, option *goquery.Selection) {
		value := strings.TrimSpace(option.AttrOr("value", ""))
		text := htmlutil.CleanText(htmlutil.GetText(option.Get(0)))
		if value == "" || text == sentinelOptionText {
			return
		}
		branch := parseBranchOption(value, text)
		dir.branches = append(dir.branches, branch)
		dir.byCode[branch.Code] = branch
	})

	return dir, nil
}

// parseBranchOption turns one (code, displayText) pair into a Branch.
// Display text looks like "BELM - Bandung, Bandung" with optional
// pickup/shipping phrases embedded in the name part.
func parseBranchOption(code, text string) Branch {
	parts := strings.Split(text, ",")

	name := strings.TrimSpace(parts[0])
	name = strings.TrimPrefix(name, branchNamePrefix)

	city := name
	if len(parts) > 1 {
		city = strings.TrimSpace(parts[len(parts)-1])
	}

	branchType := BRANCH_REGULAR
	canShip := true
	// the site is inconsistent about capitalizing the pickup phrase
	if strings.Contains(name, "Pengambilan Di Butik") || strings.Contains(name, "pengambilan Di Butik") {
		branchType = BRANCH_PICKUP_ONLY
		canShip = false
	} else if strings.Contains(name, "Pengiriman Ekspedisi") {
		branchType = BRANCH_SHIPPING_ONLY
	}

	if idx := strings.Index(name, " ("); idx >= 0 {
		name = strings.TrimSpace(name[:idx])
	}

	return Branch{
		Code:        code,
		Name:        name,
		City:        city,
		Type:        branchType,
		CanShip:     canShip,
		FullAddress: text,
	}
}

// Branches returns every branch in document order.
func (d *Directory) Branches() []Branch {
	return d.branches
}

// ByCode looks a branch up by its unique code.
func (d *Directory) ByCode(code string) (Branch, bool) {
	b, ok := d.byCode[code]
	return b, ok
}

// ByCity groups branches by city.
func (d *Directory) ByCity() map[string][]Branch {
	cities := map[string][]Branch{}
	for _, b := range d.branches {
		cities[b.City] = append(cities[b.City], b)
	}
	return cities
}

// ShippingBranches returns branches that can ship via courier.
func (d *Directory) ShippingBranches() []Branch {
	var out []Branch
	for _, b := range d.branches {
		if b.CanShip {
			out = append(out, b)
		}
	}
	return out
}

// PickupOnlyBranches returns branches without any shipping capability.
func (d *Directory) PickupOnlyBranches() []Branch {
	var out []Branch
	for _, b := range d.branches {
		if b.Type == BRANCH_PICKUP_ONLY {
			out = append(out, b)
		}
	}
	return out
}
