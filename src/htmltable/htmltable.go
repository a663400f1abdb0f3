package htmltable

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// -----------------------------------------------------------------------------
// HTML table extraction. The finance site exposes its data as plain <table>
// markup with an undocumented column layout, so everything here works on
// header names rather than cell positions.
// -----------------------------------------------------------------------------

// Table is one extracted <table>: a header row plus string cell rows.
type Table struct {
	Header []string
	Rows   [][]string
}

// -----------------------------------------------------------------------------

// ParseAll extracts every <table> element from an HTML document.
func ParseAll(doc []byte) ([]Table, error) {
	root, err := html.Parse(bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("html parse failed: %w", err)
	}

	var tables []Table
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "table" {
			tables = append(tables, extractTable(n))
			// Nested tables are rare on the target pages, don't descend
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return tables, nil
}

// -----------------------------------------------------------------------------

// First returns the first table of the document, mirroring the common
// "read_html(...)[0]" access pattern.
func First(doc []byte) (Table, error) {
	tables, err := ParseAll(doc)
	if err != nil {
		return Table{}, err
	}
	if len(tables) == 0 {
		return Table{}, fmt.Errorf("no tables found in document")
	}
	return tables[0], nil
}

// -----------------------------------------------------------------------------

func extractTable(tableNode *html.Node) Table {
	var rows [][]string
	var headerIdx = -1

	var collectRows func(n *html.Node)
	collectRows = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			cells, hasTH := extractCells(n)
			if len(cells) > 0 {
				if hasTH && headerIdx < 0 {
					headerIdx = len(rows)
				}
				rows = append(rows, cells)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collectRows(c)
		}
	}
	collectRows(tableNode)

	if len(rows) == 0 {
		return Table{}
	}

	// A th-bearing row becomes the header, otherwise the first row does.
	if headerIdx < 0 {
		headerIdx = 0
	}

	t := Table{Header: rows[headerIdx]}
	for i, r := range rows {
		if i != headerIdx {
			t.Rows = append(t.Rows, r)
		}
	}
	return t
}

// -----------------------------------------------------------------------------

func extractCells(tr *html.Node) ([]string, bool) {
	var cells []string
	hasTH := false

	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.Data {
		case "th":
			hasTH = true
			cells = append(cells, cellText(c))
		case "td":
			cells = append(cells, cellText(c))
		}
	}
	return cells, hasTH
}

// -----------------------------------------------------------------------------

// cellText flattens all text content of a cell into a single
// whitespace-collapsed string, ignoring nested markup.
func cellText(n *html.Node) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// -----------------------------------------------------------------------------
// Column access and numeric coercion
// -----------------------------------------------------------------------------

// ColumnIndex finds a column by header name. Matching is case-insensitive
// and prefix-based because the site appends tooltip text to header cells
// ("Close Close price adjusted for splits").
func (t Table) ColumnIndex(name string) int {
	want := strings.ToLower(strings.TrimSpace(name))
	for i, h := range t.Header {
		got := strings.ToLower(strings.TrimSpace(h))
		if got == want || strings.HasPrefix(got, want+" ") {
			return i
		}
	}
	return -1
}

// -----------------------------------------------------------------------------

// Column returns the raw string cells of a column, empty string for short rows.
func (t Table) Column(name string) ([]string, error) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, fmt.Errorf("column %q not found in header %v", name, t.Header)
	}

	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		if idx < len(row) {
			out[i] = row[idx]
		}
	}
	return out, nil
}

// -----------------------------------------------------------------------------

// NumericColumn coerces a column to float64 with invalid cells becoming NaN.
func (t Table) NumericColumn(name string) ([]float64, error) {
	cells, err := t.Column(name)
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(cells))
	for i, c := range cells {
		out[i] = ParseNumber(c)
	}
	return out, nil
}

// -----------------------------------------------------------------------------

// ParseNumber converts a display value ("1,234.56", "-0.5%", "2.1M") to a
// float64. Unparseable cells yield NaN rather than an error.
func ParseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" || s == "N/A" {
		return math.NaN()
	}

	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimPrefix(s, "+")
	s = strings.TrimSuffix(s, "%")

	// Volume shorthand used on listing pages
	multiplier := 1.0
	switch {
	case strings.HasSuffix(s, "B"):
		multiplier = 1e9
		s = strings.TrimSuffix(s, "B")
	case strings.HasSuffix(s, "M"):
		multiplier = 1e6
		s = strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "K"):
		multiplier = 1e3
		s = strings.TrimSuffix(s, "K")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v * multiplier
}
