// Package export renders the admin's entry list as CSV, JSON or plain text.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/leadkeeper/internal/models"
	"github.com/dmitrijs2005/leadkeeper/internal/validation"
)

type Format string

const (
	CSV  Format = "csv"
	JSON Format = "json"
	Text Format = "txt"
)

const timeLayout = "2006-01-02 15:04:05"

// utf8BOM lets spreadsheet applications detect the encoding of Hangul names.
const utf8BOM = "\xEF\xBB\xBF"

// Record is one exported row.
type Record struct {
	No          int       `json:"no"`
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Phone       string    `json:"phone"`
	RawPhone    string    `json:"phone_raw"`
	CollectedAt time.Time `json:"collected_at"`
	SessionID   *int64    `json:"session_id,omitempty"`
}

// FromEntries numbers entries in the given order and formats their phones
// for display.
func FromEntries(list []models.Entry) []Record {
	rows := make([]Record, 0, len(list))
	for i, e := range list {
		rows = append(rows, Record{
			No:          i + 1,
			ID:          e.ID,
			Name:        e.Name,
			Phone:       validation.FormatPhone(e.Phone),
			RawPhone:    e.Phone,
			CollectedAt: e.CreatedAt,
			SessionID:   e.SessionID,
		})
	}
	return rows
}

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case CSV, JSON, Text:
		return f, nil
	case "text":
		return Text, nil
	default:
		return "", fmt.Errorf("unknown export format %q", s)
	}
}

func (f Format) ContentType() string {
	switch f {
	case CSV:
		return "text/csv; charset=utf-8"
	case JSON:
		return "application/json"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Filename is the download name for an export taken at t.
func Filename(f Format, t time.Time) string {
	return fmt.Sprintf("entries_%s.%s", t.Format("20060102_150405"), f)
}

// Write renders records in format f. loc is the zone timestamps are shown
// in.
func Write(w io.Writer, f Format, records []Record, exportedAt time.Time, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}
	switch f {
	case CSV:
		return writeCSV(w, records, loc)
	case JSON:
		return writeJSON(w, records, exportedAt)
	case Text:
		return writeText(w, records, exportedAt, loc)
	default:
		return fmt.Errorf("unknown export format %q", f)
	}
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func writeCSV(w io.Writer, records []Record, loc *time.Location) error {
	var b strings.Builder
	b.WriteString(utf8BOM)
	b.WriteString("No,Name,Phone,Collected At\r\n")
	for _, r := range records {
		fields := []string{
			strconv.Itoa(r.No),
			quote(r.Name),
			quote(r.Phone),
			quote(r.CollectedAt.In(loc).Format(timeLayout)),
		}
		b.WriteString(strings.Join(fields, ","))
		b.WriteString("\r\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

type jsonExport struct {
	ExportDate time.Time `json:"export_date"`
	TotalCount int       `json:"total_count"`
	Data       []Record  `json:"data"`
}

func writeJSON(w io.Writer, records []Record, exportedAt time.Time) error {
	if records == nil {
		records = []Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jsonExport{ExportDate: exportedAt.UTC(), TotalCount: len(records), Data: records})
}

func writeText(w io.Writer, records []Record, exportedAt time.Time, loc *time.Location) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Collected entries (exported %s, total %d)\n\n", exportedAt.In(loc).Format(timeLayout), len(records))
	for _, r := range records {
		fmt.Fprintf(&b, "%d. %s  %s  %s\n", r.No, r.Name, r.Phone, r.CollectedAt.In(loc).Format(timeLayout))
	}
	_, err := io.WriteString(w, b.String())
	return err
}
