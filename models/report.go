package models

import (
	"encoding/json"
	"time"
)

// Report is one persisted financial report analysis. FileName is unique;
// saving the same file again replaces its content.
type Report struct {
	ID        int64           `json:"id"`
	Symbol    string          `json:"symbol"`
	Year      string          `json:"year"`
	Quarter   string          `json:"quarter"`
	FileName  string          `json:"file_name"`
	Content   json.RawMessage `json:"content"`
	CreatedAt time.Time       `json:"created_at"`
}
