package report

import (
	"strconv"
	"strings"
	"time"
)

// SchemaVersion identifies the sheet column contract. Version 1 is the first
// 22 columns; version 2 appends Report_ID.
const SchemaVersion = 2

// V1Columns is the number of columns in schema version 1.
const V1Columns = 22

const TimestampLayout = "2006-01-02 15:04:05"

const (
	ColumnTimestamp      = "Timestamp"
	ColumnInputLength    = "Input_Length"
	ColumnSuspicionScore = "Suspicion_Score"
	ColumnRiskLevel      = "User_Risk_Level"
	ColumnReportID       = "Report_ID"
)

var columns = []string{
	ColumnTimestamp,
	"Make", "Model", "Model_Year", "VIN", "City", "State",
	"Speed", "Crash", "Fire", "Injured", "Deaths", "Description",
	"Component", "Mileage", "Technician_Notes",
	"Brake_Condition", "Engine_Temperature", "Date_Complaint",
	ColumnInputLength, ColumnSuspicionScore, ColumnRiskLevel,
	ColumnReportID,
}

var fieldByColumn = func() map[string]string {
	m := make(map[string]string, len(fields))
	for _, f := range fields {
		m[f.Column] = f.Name
	}
	return m
}()

// Columns returns the column names in sheet order.
func Columns() []string {
	out := make([]string, len(columns))
	copy(out, columns)
	return out
}

// Meta carries the per-submission columns that are not report fields.
type Meta struct {
	ReportID       string
	SubmittedAt    time.Time
	InputLength    int
	SuspicionScore int
	RiskLevel      string
}

// Cell is one (column, rendered value) pair.
type Cell struct {
	Column string `json:"column"`
	Value  string `json:"value"`
}

// Row is a report rendered in schema column order.
type Row []Cell

// Values returns the rendered cells in column order.
func (r Row) Values() []string {
	out := make([]string, len(r))
	for i, c := range r {
		out[i] = c.Value
	}
	return out
}

// Get returns the cell for a column.
func (r Row) Get(column string) (string, bool) {
	for _, c := range r {
		if c.Column == column {
			return c.Value, true
		}
	}
	return "", false
}

// BuildRow renders rep and meta in schema order. Unset fields are empty cells.
func BuildRow(meta Meta, rep Report) Row {
	row := make(Row, 0, len(columns))
	for _, col := range columns {
		var val string
		switch col {
		case ColumnTimestamp:
			if !meta.SubmittedAt.IsZero() {
				val = meta.SubmittedAt.Format(TimestampLayout)
			}
		case ColumnInputLength:
			val = strconv.Itoa(meta.InputLength)
		case ColumnSuspicionScore:
			val = strconv.Itoa(meta.SuspicionScore)
		case ColumnRiskLevel:
			val = strings.ToUpper(meta.RiskLevel)
		case ColumnReportID:
			val = meta.ReportID
		default:
			if v, ok := rep.Get(fieldByColumn[col]); ok {
				val = v.String()
			}
		}
		row = append(row, Cell{Column: col, Value: val})
	}
	return row
}
