// Package extract parses source listing HTML into raw announcement rows.
package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/nsefi/policy-harvester/internal/types"
)

// Listing pages put the serial number in column 0, the publication date in
// column 1, and the linked title in column 2.
const (
	dateColumn  = 1
	titleColumn = 2
	minColumns  = 3
)

var whitespaceRuns = regexp.MustCompile(`\s+`)

// Rows locates the first table in the HTML fragment and extracts one RawRow
// per well-formed data row. The header row is skipped, as is any row with
// fewer than three cells. A fragment with no table yields an empty slice and
// no error; the caller proceeds with zero items from that source.
func Rows(htmlContent string, pageURL string) ([]types.RawRow, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, &Error{
			Message: "failed to parse HTML",
			Cause:   err,
		}
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return []types.RawRow{}, nil
	}

	rows := make([]types.RawRow, 0)
	table.Find("tr").Each(func(i int, tr *goquery.Selection) {
		if i == 0 {
			// Header row.
			return
		}

		cells := tr.Find("td")
		if cells.Length() < minColumns {
			return
		}

		titleCell := cells.Eq(titleColumn)
		link := ""
		if href, exists := titleCell.Find("a[href]").First().Attr("href"); exists {
			link = resolveLink(href, pageURL)
		}

		rows = append(rows, types.RawRow{
			DateText:  CleanText(cells.Eq(dateColumn).Text()),
			TitleText: CleanText(titleCell.Text()),
			Link:      link,
		})
	})

	return rows, nil
}

// CleanText collapses whitespace runs to single spaces and trims the result.
func CleanText(text string) string {
	return strings.TrimSpace(whitespaceRuns.ReplaceAllString(text, " "))
}

// resolveLink makes relative hrefs absolute against the listing page URL.
// Malformed hrefs are kept as-is; the normalizer substitutes a default for
// empty links only.
func resolveLink(href, pageURL string) string {
	base, err := url.Parse(pageURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return href
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
