package sink

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/MikeSquared-Agency/safety-intake/internal/report"
)

// Sheets appends rows to a Google Sheets range. Delivery is at-least-once: a
// retry after an ambiguous failure can add a second row with the same
// Report_ID.
type Sheets struct {
	svc           *sheets.Service
	spreadsheetID string
	rng           string
}

// Credentials builds the client options for a service account given as a file
// path or inline JSON. Inline JSON wins when both are set.
func Credentials(file, inline string) []option.ClientOption {
	opts := []option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}
	switch {
	case inline != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(inline)))
	case file != "":
		opts = append(opts, option.WithCredentialsFile(file))
	}
	return opts
}

// NewSheets returns a sink writing to rng (for example "Safety_Reports!A1")
// of the given spreadsheet.
func NewSheets(ctx context.Context, spreadsheetID, rng string, opts ...option.ClientOption) (*Sheets, error) {
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Sheets{svc: svc, spreadsheetID: spreadsheetID, rng: rng}, nil
}

func (s *Sheets) Name() string { return "sheets" }

func (s *Sheets) Append(ctx context.Context, row report.Row) error {
	_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, s.rng, &sheets.ValueRange{
		Values: [][]interface{}{cells(row.Values())},
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return Wrap(s.Name(), fmt.Errorf("append row: %w", err))
	}
	return nil
}

// EnsureHeader writes the column header into an empty sheet and reports an
// error when an existing header does not match the schema. A header holding
// only the version 1 columns is accepted.
func (s *Sheets) EnsureHeader(ctx context.Context) error {
	headerRange := s.sheetName() + "!1:1"
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, headerRange).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}

	cols := report.Columns()
	if len(resp.Values) == 0 || len(resp.Values[0]) == 0 {
		_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, s.sheetName()+"!A1", &sheets.ValueRange{
			Values: [][]interface{}{cells(cols)},
		}).ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		return nil
	}

	got := make([]string, len(resp.Values[0]))
	for i, v := range resp.Values[0] {
		got[i] = fmt.Sprint(v)
	}
	if !slices.Equal(got, cols) && !slices.Equal(got, cols[:report.V1Columns]) {
		return fmt.Errorf("sheet header %v does not match schema version %d", got, report.SchemaVersion)
	}
	return nil
}

func (s *Sheets) sheetName() string {
	name, _, _ := strings.Cut(s.rng, "!")
	return name
}

func cells(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
