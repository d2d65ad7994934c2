package analyzer

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const unknownDate = "UNKNOWN_DATE"

var (
	unsafeFileChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	leadingYear     = regexp.MustCompile(`^(\d{4})`)
	quarterLabel    = regexp.MustCompile(`(?i)\bQ([1-4])\b`)
)

// SymbolFromFileName returns the part of a downloaded report name before
// the first underscore, e.g. "JKH.N0000" for "JKH.N0000_01_interim.pdf".
func SymbolFromFileName(name string) string {
	base := filepath.Base(name)
	if symbol, _, found := strings.Cut(base, "_"); found {
		return symbol
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// AnalysisFileName builds "<symbol>_<end date>_analysis.json" with
// characters that are unsafe on common file systems replaced by "_".
func AnalysisFileName(symbol, reportEndDate string) string {
	date := strings.TrimSpace(reportEndDate)
	if date == "" {
		date = unknownDate
	}
	return unsafeFileChars.ReplaceAllString(symbol+"_"+date, "_") + "_analysis.json"
}

// YearFromDate returns the leading four digit year of a date string, or ""
// when there is none.
func YearFromDate(date string) string {
	m := leadingYear.FindStringSubmatch(strings.TrimSpace(date))
	if m == nil {
		return ""
	}
	return m[1]
}

// QuarterOf prefers an explicit "Qn" in the report period and otherwise
// derives the calendar quarter from the end date.
func QuarterOf(reportPeriod, reportEndDate string) string {
	if m := quarterLabel.FindStringSubmatch(reportPeriod); m != nil {
		return "Q" + m[1]
	}
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(reportEndDate))
	if err != nil {
		return ""
	}
	return "Q" + strconv.Itoa((int(t.Month())-1)/3+1)
}

func stripMarkdownFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
