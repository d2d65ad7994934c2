package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/dyike/BrokerGo/models"
)

// ReportRecord is the gorm model of the financial_reports table.
type ReportRecord struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	Symbol    string    `gorm:"type:varchar(32);not null;index:idx_reports_symbol_year"`
	Year      string    `gorm:"type:varchar(8);not null;index:idx_reports_symbol_year"`
	Quarter   string    `gorm:"type:varchar(16);not null;default:''"`
	FileName  string    `gorm:"type:text;not null;uniqueIndex"`
	Content   string    `gorm:"type:jsonb;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (ReportRecord) TableName() string {
	return "financial_reports"
}

// Store keeps report analyses in Postgres.
type Store struct {
	DB *gorm.DB
}

// Open connects to dsn and migrates the reports table.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	store := &Store{DB: db}
	if err := store.DB.WithContext(ctx).AutoMigrate(&ReportRecord{}); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("auto-migrate financial_reports: %w", err)
	}
	return store, nil
}

func (s *Store) SaveReport(ctx context.Context, report models.Report) error {
	if strings.TrimSpace(report.FileName) == "" {
		return fmt.Errorf("report file name is required")
	}
	rec := ReportRecord{
		Symbol:    strings.ToUpper(report.Symbol),
		Year:      report.Year,
		Quarter:   report.Quarter,
		FileName:  report.FileName,
		Content:   string(report.Content),
		CreatedAt: time.Now().UTC(),
	}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "file_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"content", "created_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

func (s *Store) GetReports(ctx context.Context, symbol, year string) ([]models.Report, error) {
	var recs []ReportRecord
	err := s.DB.WithContext(ctx).
		Where("symbol = ? AND year = ?", strings.ToUpper(symbol), year).
		Order("created_at DESC").Order("id DESC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("get reports: %w", err)
	}
	reports := make([]models.Report, 0, len(recs))
	for _, r := range recs {
		reports = append(reports, models.Report{
			ID:        r.ID,
			Symbol:    r.Symbol,
			Year:      r.Year,
			Quarter:   r.Quarter,
			FileName:  r.FileName,
			Content:   []byte(r.Content),
			CreatedAt: r.CreatedAt,
		})
	}
	return reports, nil
}

func (s *Store) IsHealthy(ctx context.Context) bool {
	db, err := s.DB.DB()
	if err != nil {
		return false
	}
	return db.PingContext(ctx) == nil
}

func (s *Store) Close() error {
	db, err := s.DB.DB()
	if err != nil {
		return fmt.Errorf("retrieve raw db: %w", err)
	}
	return db.Close()
}
