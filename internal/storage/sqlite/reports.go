package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dyike/BrokerGo/models"
)

// SaveReport inserts a report or replaces the content of the row with the
// same file name.
func (s *Store) SaveReport(ctx context.Context, report models.Report) error {
	if strings.TrimSpace(report.FileName) == "" {
		return fmt.Errorf("report file name is required")
	}
	if len(report.Content) == 0 {
		return fmt.Errorf("report content is required")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO financial_reports (symbol, year, quarter, file_name, content, created_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(file_name) DO UPDATE SET
    content=excluded.content,
    created_at=excluded.created_at
`, strings.ToUpper(report.Symbol), report.Year, report.Quarter, report.FileName, string(report.Content), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

// GetReports returns the analyses for symbol and year, newest first.
func (s *Store) GetReports(ctx context.Context, symbol, year string) ([]models.Report, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, symbol, year, quarter, file_name, content, created_at
FROM financial_reports
WHERE symbol = ? AND year = ?
ORDER BY created_at DESC, id DESC
`, strings.ToUpper(symbol), year)
	if err != nil {
		return nil, fmt.Errorf("get reports: %w", err)
	}
	defer rows.Close()

	var reports []models.Report
	for rows.Next() {
		var (
			rec     models.Report
			content string
		)
		if err := rows.Scan(&rec.ID, &rec.Symbol, &rec.Year, &rec.Quarter, &rec.FileName, &content, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		rec.Content = []byte(content)
		reports = append(reports, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get reports rows: %w", err)
	}
	return reports, nil
}
