package scraper

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const pdfLinkSelector = "a:has(i.fa.fa-file-pdf-o)"

var yearPattern = regexp.MustCompile(`20\d{2}`)

// ReportLink is a PDF link on a company's quarterly reports tab.
type ReportLink struct {
	URL     string
	RowText string
}

// ParseReportLinks finds the PDF icon links in html. Relative hrefs are
// resolved against pageURL and the enclosing table row text is kept for
// year filtering.
func ParseReportLinks(html, pageURL string) ([]ReportLink, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse report page: %w", err)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}

	var links []ReportLink
	doc.Find(pdfLinkSelector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		href = strings.TrimSpace(href)
		if !ok || href == "" || strings.HasPrefix(href, "javascript:") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		row := s.Closest("tr")
		if row.Length() == 0 {
			row = s.Parent()
		}
		links = append(links, ReportLink{
			URL:     base.ResolveReference(ref).String(),
			RowText: strings.Join(strings.Fields(row.Text()), " "),
		})
	})
	return links, nil
}

// YearsIn returns the distinct 20xx years mentioned in text.
func YearsIn(text string) map[string]bool {
	years := make(map[string]bool)
	for _, y := range yearPattern.FindAllString(text, -1) {
		years[y] = true
	}
	return years
}

// FilterByYears drops links whose row mentions years but none of the
// targets. Rows without a year are kept. An empty target list keeps all.
func FilterByYears(links []ReportLink, targets []string) []ReportLink {
	if len(targets) == 0 {
		return links
	}
	want := make(map[string]bool, len(targets))
	for _, t := range targets {
		want[strings.TrimSpace(t)] = true
	}
	var kept []ReportLink
	for _, link := range links {
		years := YearsIn(link.RowText)
		if len(years) == 0 {
			kept = append(kept, link)
			continue
		}
		for y := range years {
			if want[y] {
				kept = append(kept, link)
				break
			}
		}
	}
	return kept
}

// CompanyDirName is the per-symbol download folder, e.g. "JKH_N0000".
func CompanyDirName(symbol string) string {
	return strings.ReplaceAll(symbol, ".", "_")
}

// ReportFileName names the n-th (1-based) download of symbol after the last
// path segment of rawURL.
func ReportFileName(symbol string, n int, rawURL string) string {
	base := "report.pdf"
	if u, err := url.Parse(rawURL); err == nil {
		if name := path.Base(u.Path); name != "" && name != "." && name != "/" {
			base = name
		}
	}
	if !strings.HasSuffix(strings.ToLower(base), ".pdf") {
		base += ".pdf"
	}
	return fmt.Sprintf("%s_%02d_%s", symbol, n, base)
}
