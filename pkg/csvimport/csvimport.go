// Package csvimport turns uploaded spreadsheets into planning records.
//
// Every parser follows the same policy: the first non-blank row is the
// header, unknown columns are ignored, a missing required column fails the
// whole file, and a bad data row is reported and skipped while the rest of
// the batch is still imported.
package csvimport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/planpulse/compass-api/pkg/models"
	"github.com/shopspring/decimal"
)

var (
	// ErrEmptyFile is returned when the input has no header row
	ErrEmptyFile = errors.New("file is empty")
	// ErrMissingHeader is returned when a required column cannot be recognised
	ErrMissingHeader = errors.New("missing required column")
)

// Record is one row of a source file. Line is 1-based.
type Record struct {
	Line   int
	Fields []string
	Err    error
}

// RowError describes a skipped row
type RowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e RowError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("row %d: %s: %s", e.Row, e.Field, e.Message)
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// ReadCSV reads every row of r. Malformed rows are kept with Err set so the
// parsers can report them without stopping.
func ReadCSV(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var records []Record
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				return nil, fmt.Errorf("failed to read csv: %w", err)
			}
			records = append(records, Record{Line: perr.StartLine, Err: perr.Err})
			continue
		}
		line, _ := reader.FieldPos(0)
		records = append(records, Record{Line: line, Fields: fields})
	}
	return records, nil
}

// field describes one recognised column
type field struct {
	id       string
	pattern  *regexp.Regexp
	required bool
}

// columns maps field ids to column positions
type columns map[string]int

var (
	headerSeparators = regexp.MustCompile(`[_\-./]+`)
	headerSpaces     = regexp.MustCompile(`\s+`)
)

// NormalizeHeader lowercases a header and collapses separators to single spaces
func NormalizeHeader(name string) string {
	name = strings.TrimPrefix(name, "\ufeff")
	name = strings.ToLower(strings.TrimSpace(name))
	name = headerSeparators.ReplaceAllString(name, " ")
	name = headerSpaces.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// splitHeader finds the header row and maps it onto fields. The returned
// records are the data rows that follow the header.
func splitHeader(records []Record, fields []field) (columns, []Record, error) {
	start := -1
	for i, rec := range records {
		if rec.Err == nil && !isBlank(rec.Fields) {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, nil, ErrEmptyFile
	}

	cols := make(columns)
	for idx, raw := range records[start].Fields {
		name := NormalizeHeader(raw)
		if name == "" {
			continue
		}
		for _, f := range fields {
			if _, taken := cols[f.id]; taken {
				continue
			}
			if f.pattern.MatchString(name) {
				cols[f.id] = idx
				break
			}
		}
	}

	var missing []string
	for _, f := range fields {
		if _, ok := cols[f.id]; f.required && !ok {
			missing = append(missing, f.id)
		}
	}
	if len(missing) > 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrMissingHeader, strings.Join(missing, ", "))
	}
	return cols, records[start+1:], nil
}

// get returns the trimmed value of a field, or "" when the column is absent or short
func (c columns) get(rec Record, id string) string {
	idx, ok := c[id]
	if !ok || idx >= len(rec.Fields) {
		return ""
	}
	return strings.TrimSpace(rec.Fields[idx])
}

func (c columns) has(id string) bool {
	_, ok := c[id]
	return ok
}

func isBlank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// rowFailure converts a reader error on a record into a RowError
func rowFailure(rec Record) RowError {
	return RowError{Row: rec.Line, Message: rec.Err.Error()}
}

var dateLayouts = []string{
	models.DateLayout,
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"2 Jan 2006",
	"Jan 2, 2006",
	time.RFC3339,
}

// parseDate tries the accepted layouts; ok is false for empty or unparseable input
func parseDate(s string) (models.Date, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return models.Date{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return models.NewDate(y, m, d), true
		}
	}
	return models.Date{}, false
}

var amountNoise = regexp.MustCompile(`[\s,$€£¥]`)

// parseAmount reads a money or rate value such as "$1,200.50". present is
// false for an empty cell.
func parseAmount(s string) (value float64, present bool, err error) {
	s = amountNoise.ReplaceAllString(strings.TrimSpace(s), "")
	if s == "" {
		return 0, false, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, true, fmt.Errorf("invalid amount %q", s)
	}
	return d.InexactFloat64(), true, nil
}

// parseBool reads yes/no style flags; empty means def
func parseBool(s string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return def
	case "false", "no", "n", "0", "inactive":
		return false
	default:
		return true
	}
}

var (
	teamNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("planpulse:team"))
	roleNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("planpulse:role"))
)

// TeamID derives the stable id used for a team that is only known by name
func TeamID(name string) string {
	return uuid.NewSHA1(teamNamespace, []byte(nameKey(name))).String()
}

// RoleID derives the stable id used for a role that is only known by name
func RoleID(name string) string {
	return uuid.NewSHA1(roleNamespace, []byte(nameKey(name))).String()
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func newID() string {
	return uuid.NewString()
}
