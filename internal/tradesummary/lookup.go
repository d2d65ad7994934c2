package tradesummary

import (
	"errors"
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	DefaultTopN       = 50
	CompanyMatchLimit = 3
	normalShareMarker = ".N"
	prefixSeparator   = "."
)

var ErrNoSymbolColumn = errors.New("could not find a symbol column in the trade summary")

// ResolveIn maps a ticker fragment to the canonical symbol in snap.
// Precedence: exact, then "<input>.", then case-insensitive substring.
// The first matching row wins at each stage. Without a match or a symbol
// column the trimmed, upper-cased input is returned. Blank input is a
// substring of every symbol and so resolves to the first row.
func ResolveIn(snap *Snapshot, cols Columns, input string) string {
	query := strings.ToUpper(strings.TrimSpace(input))
	symCol, ok := snap.SymbolColumn(cols)
	if !ok {
		return query
	}

	for _, row := range snap.Rows {
		if row[symCol] == query {
			return row[symCol]
		}
	}
	prefix := query + prefixSeparator
	for _, row := range snap.Rows {
		if strings.HasPrefix(row[symCol], prefix) {
			return row[symCol]
		}
	}
	lowerQuery := strings.ToLower(query)
	for _, row := range snap.Rows {
		if strings.Contains(strings.ToLower(row[symCol]), lowerQuery) {
			return row[symCol]
		}
	}
	return query
}

// Result is a filtered, volume-ordered view of a snapshot.
type Result struct {
	Headers      []string
	Rows         []Row
	SymbolColumn string
	VolumeColumn string
	// Filters holds the non-blank tickers that were applied.
	Filters []string
	// TopN is the row cap applied when no filter was given.
	TopN int
}

func (r *Result) Empty() bool {
	return r == nil || len(r.Rows) == 0
}

// Symbols lists the symbol cell of every row in order.
func (r *Result) Symbols() []string {
	if r == nil || r.SymbolColumn == "" {
		return nil
	}
	out := make([]string, 0, len(r.Rows))
	for _, row := range r.Rows {
		out = append(out, row[r.SymbolColumn])
	}
	return out
}

// ParseVolume strips thousands separators and parses the cell. ok is false
// for blank or non-numeric cells.
func ParseVolume(cell string) (decimal.Decimal, bool) {
	cleaned := strings.TrimSpace(strings.ReplaceAll(cell, ",", ""))
	if cleaned == "" {
		return decimal.Zero, false
	}
	v, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return v, true
}

// SortByVolume returns the rows ordered by volume descending. Unparseable
// volumes go last. Equal volumes keep their snapshot order.
func SortByVolume(rows []Row, volCol string) []Row {
	sorted := make([]Row, len(rows))
	copy(sorted, rows)
	if volCol == "" {
		return sorted
	}

	type keyed struct {
		vol decimal.Decimal
		ok  bool
	}
	keys := make([]keyed, len(sorted))
	idx := make([]int, len(sorted))
	for i, row := range sorted {
		v, ok := ParseVolume(row[volCol])
		keys[i] = keyed{vol: v, ok: ok}
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ka, kb := keys[idx[a]], keys[idx[b]]
		if ka.ok != kb.ok {
			return ka.ok
		}
		return ka.ok && ka.vol.GreaterThan(kb.vol)
	})

	out := make([]Row, len(sorted))
	for i, j := range idx {
		out[i] = sorted[j]
	}
	return out
}

// FilterIn sorts snap by volume and keeps the rows whose symbol matches any
// of symbols (case-insensitive substring). With no usable filters the first
// topN rows are returned. A snapshot without a symbol column is not
// filtered.
func FilterIn(snap *Snapshot, cols Columns, symbols []string, topN int) *Result {
	if topN <= 0 {
		topN = DefaultTopN
	}
	res := &Result{TopN: topN}
	if snap == nil {
		return res
	}
	res.Headers = snap.Headers
	res.SymbolColumn, _ = snap.SymbolColumn(cols)
	res.VolumeColumn, _ = snap.VolumeColumn(cols)

	rows := SortByVolume(snap.Rows, res.VolumeColumn)

	pattern := symbolPattern(symbols)
	if pattern == nil {
		if len(rows) > topN {
			rows = rows[:topN]
		}
		res.Rows = rows
		return res
	}

	res.Filters = nonBlank(symbols)
	if res.SymbolColumn == "" {
		res.Rows = rows
		return res
	}
	for _, row := range rows {
		if pattern.MatchString(row[res.SymbolColumn]) {
			res.Rows = append(res.Rows, row)
		}
	}
	return res
}

func nonBlank(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// symbolPattern ORs the quoted tickers into one case-insensitive pattern.
func symbolPattern(symbols []string) *regexp.Regexp {
	terms := nonBlank(symbols)
	if len(terms) == 0 {
		return nil
	}
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = regexp.QuoteMeta(t)
	}
	return regexp.MustCompile("(?i)" + strings.Join(quoted, "|"))
}

// CompanyMatches is the outcome of a company search.
type CompanyMatches struct {
	Query        string
	SymbolColumn string
	NameColumn   string
	Rows         []Row
	Total        int
}

// SearchIn looks for query in the symbol column and the company name
// column, case-insensitively. At most limit rows are kept, in snapshot
// order; Total counts every match.
func SearchIn(snap *Snapshot, cols Columns, query string, limit int) (*CompanyMatches, error) {
	symCol, ok := snap.SymbolColumn(cols)
	if !ok {
		return nil, ErrNoSymbolColumn
	}
	if limit <= 0 {
		limit = CompanyMatchLimit
	}
	nameCol, _ := snap.NameColumn(cols)

	res := &CompanyMatches{Query: query, SymbolColumn: symCol, NameColumn: nameCol}
	needle := strings.ToLower(query)
	for _, row := range snap.Rows {
		match := strings.Contains(strings.ToLower(row[symCol]), needle)
		if !match && nameCol != "" {
			match = strings.Contains(strings.ToLower(row[nameCol]), needle)
		}
		if !match {
			continue
		}
		res.Total++
		if len(res.Rows) < limit {
			res.Rows = append(res.Rows, row)
		}
	}
	return res, nil
}

// NormalShares lists the distinct ".N" symbols ordered by volume.
func NormalShares(snap *Snapshot, cols Columns) []string {
	symCol, ok := snap.SymbolColumn(cols)
	if !ok {
		return nil
	}
	volCol, _ := snap.VolumeColumn(cols)

	seen := make(map[string]bool)
	var out []string
	for _, row := range SortByVolume(snap.Rows, volCol) {
		sym := strings.TrimSpace(row[symCol])
		if sym == "" || seen[sym] {
			continue
		}
		if !strings.Contains(strings.ToUpper(sym), normalShareMarker) {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	return out
}
