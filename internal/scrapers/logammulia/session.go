// session.go contains the branch selection workflow: establishing a
// server-side session whose subsequent fetches reflect one branch's
// catalogue.

package logammulia

import (
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

const (
	report_client_select_branch = "client.select-branch"
)

// ExtractToken pulls the anti-forgery token out of a fetched document,
// preferring the named meta tag and falling back to the hidden form field.
// Returns "" when neither is present.
func ExtractToken(doc *goquery.Document) string {
	token := doc.Find("meta[name=_token]").AttrOr("content", "")
	if token != "" {
		return token
	}
	return doc.Find("input[name=_token]").AttrOr("value", "")
}

// SelectBranch scopes the client's session to the given branch: it fetches
// the catalogue landing page, extracts the anti-forgery token and submits a
// location-change request over the same session. On success, subsequent
// fetches of the purchase page reflect the branch's catalogue.
//
// The token is only valid on the session that produced it. If the session
// was replaced between extraction and submission, SelectBranch fails rather
// than submitting a stale token.
func (c *Client) SelectBranch(ctx context.Context, branchCode string) error {
	branch, ok := c.directory.ByCode(branchCode)
	if !ok {
		c.tel.ReportWarning(report_client_select_branch, branchCode, "not in directory")
		return fmt.Errorf("select branch %s: %w", branchCode, ErrUnknownBranch)
	}

	c.tel.ReportDebug("selecting branch", branch.Code, branch.Name, branch.City)

	doc, err := c.Fetch(ctx, PurchasePagePath, c.maxAttempts)
	if err != nil {
		return fmt.Errorf("select branch %s: %w", branchCode, err)
	}
	generation := c.generation

	token := ExtractToken(doc)
	if token == "" {
		c.tel.ReportBroken(report_client_select_branch, ErrMissingToken, branchCode)
		return fmt.Errorf("select branch %s: %w", branchCode, ErrMissingToken)
	}

	if c.generation != generation {
		c.tel.ReportBroken(
			report_client_select_branch,
			fmt.Errorf("token belongs to a discarded session"),
			branchCode,
		)
		return fmt.Errorf("select branch %s: stale token: %w", branchCode, ErrSelectionFailed)
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"_token":   token,
			"location": branchCode,
		}).
		Post(ChangeLocationPath)
	if err != nil {
		c.tel.ReportBroken(
			report_client_select_branch,
			fmt.Errorf("location change request: %w", err),
			branchCode,
		)
		return fmt.Errorf("select branch %s: %w", branchCode, ErrSelectionFailed)
	}
	if res.StatusCode() != 200 {
		c.tel.ReportBroken(
			report_client_select_branch,
			fmt.Errorf("location change status %d", res.StatusCode()),
			branchCode,
		)
		return fmt.Errorf("select branch %s: status %d: %w", branchCode, res.StatusCode(), ErrSelectionFailed)
	}

	c.currentBranch = &branch
	c.tel.ReportDebug("selected branch", branch.Code, branch.Name)
	return nil
}
