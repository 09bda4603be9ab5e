// Package store keeps submitted report rows in a SQL database. Both backends
// implement sink.Sink and ignore a second insert of the same report id, so a
// retried delivery never produces a duplicate.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MikeSquared-Agency/safety-intake/internal/report"
)

var ErrNotFound = errors.New("report not found")

// record is the indexed projection of a row plus its full JSON encoding.
type record struct {
	ReportID       string
	SchemaVersion  int
	SubmittedAt    *time.Time
	Make           string
	Model          string
	State          string
	RiskLevel      string
	SuspicionScore int
	Data           []byte
}

func newRecord(row report.Row) (record, error) {
	id, _ := row.Get(report.ColumnReportID)
	if id == "" {
		return record{}, errors.New("row has no report id")
	}
	data, err := json.Marshal(row)
	if err != nil {
		return record{}, fmt.Errorf("marshal row: %w", err)
	}

	rec := record{ReportID: id, SchemaVersion: report.SchemaVersion, Data: data}
	if ts, _ := row.Get(report.ColumnTimestamp); ts != "" {
		if t, err := time.ParseInLocation(report.TimestampLayout, ts, time.Local); err == nil {
			rec.SubmittedAt = &t
		}
	}
	rec.Make, _ = row.Get("Make")
	rec.Model, _ = row.Get("Model")
	rec.State, _ = row.Get("State")
	rec.RiskLevel, _ = row.Get(report.ColumnRiskLevel)
	if s, _ := row.Get(report.ColumnSuspicionScore); s != "" {
		rec.SuspicionScore, _ = strconv.Atoi(s)
	}
	return rec, nil
}

func decodeRow(data []byte) (report.Row, error) {
	var row report.Row
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, fmt.Errorf("unmarshal row: %w", err)
	}
	return row, nil
}
