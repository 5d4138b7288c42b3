package cmd

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

func normalizeHeaderText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// extractTableByHeader scans the document for the first table whose header
// cells carry exactly the expected labels, compared case- and
// whitespace-insensitively and without regard to column order. Rows are
// returned as maps keyed by the expected (human-readable) labels, with each
// cell mapped through the column its own header names, so a reordered table
// still yields correctly-keyed rows. Rows whose cell count differs from the
// header count are dropped. No matching table yields an empty slice; a
// detail page without the section is a common, valid outcome.
func extractTableByHeader(doc *goquery.Document, expected []string) []map[string]string {
	labelFor := make(map[string]string, len(expected))
	wanted := make(map[string]int, len(expected))
	for _, h := range expected {
		n := normalizeHeaderText(h)
		labelFor[n] = h
		wanted[n]++
	}

	var rows []map[string]string
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		headers := table.Find("th")
		if headers.Length() != len(expected) {
			return true
		}

		remaining := make(map[string]int, len(wanted))
		for k, v := range wanted {
			remaining[k] = v
		}
		labels := make([]string, 0, headers.Length())
		matched := true
		headers.Each(func(_ int, th *goquery.Selection) {
			n := normalizeHeaderText(th.Text())
			if remaining[n] > 0 {
				remaining[n]--
				labels = append(labels, labelFor[n])
			} else {
				matched = false
			}
		})
		if !matched {
			return true
		}

		table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			cells := tr.Find("td")
			if cells.Length() != len(expected) {
				return
			}
			row := make(map[string]string, len(expected))
			cells.Each(func(i int, td *goquery.Selection) {
				row[labels[i]] = strings.TrimSpace(td.Text())
			})
			rows = append(rows, row)
		})
		return false
	})
	return rows
}
