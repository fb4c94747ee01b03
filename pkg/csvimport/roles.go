package csvimport

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/planpulse/compass-api/pkg/models"
)

var roleFields = []field{
	{id: "name", pattern: regexp.MustCompile(`^(role( name)?|name|title)$`), required: true},
	{id: "rate_type", pattern: regexp.MustCompile(`^(rate )?(type|basis)$`)},
	{id: "hourly_rate", pattern: regexp.MustCompile(`^(default )?hourly rate$`)},
	{id: "daily_rate", pattern: regexp.MustCompile(`^(default )?daily rate$`)},
	{id: "annual_salary", pattern: regexp.MustCompile(`^(default )?annual (salary|rate)$`)},
	{id: "default_rate", pattern: regexp.MustCompile(`^(default )?rate$`)},
}

// RolesImport is the result of a roles import
type RolesImport struct {
	Roles  []models.Role `json:"roles"`
	Errors []RowError    `json:"errors"`
}

// Imported is the number of roles accepted
func (p *RolesImport) Imported() int { return len(p.Roles) }

// Failed is the number of rows skipped
func (p *RolesImport) Failed() int { return len(p.Errors) }

// ParseRolesCSV parses a roles CSV file
func ParseRolesCSV(r io.Reader) (*RolesImport, error) {
	records, err := ReadCSV(r)
	if err != nil {
		return nil, err
	}
	return ParseRoles(records)
}

// ParseRoles maps role rows. Role ids are RoleID(name) so people imported with
// the same role name link up. A rate that is present but unreadable, an
// unknown rate type, or a repeated role name fails the row.
func ParseRoles(records []Record) (*RolesImport, error) {
	cols, rows, err := splitHeader(records, roleFields)
	if err != nil {
		return nil, err
	}

	result := &RolesImport{Roles: []models.Role{}, Errors: []RowError{}}
	seen := make(map[string]int)

	for _, rec := range rows {
		if rec.Err != nil {
			result.Errors = append(result.Errors, rowFailure(rec))
			continue
		}
		if isBlank(rec.Fields) {
			continue
		}

		name := cols.get(rec, "name")
		if name == "" {
			result.Errors = append(result.Errors, RowError{Row: rec.Line, Field: "name", Message: "role name is required"})
			continue
		}
		if first, dup := seen[nameKey(name)]; dup {
			result.Errors = append(result.Errors, RowError{Row: rec.Line, Field: "name", Message: fmt.Sprintf("duplicate of row %d", first)})
			continue
		}

		rateType, ok := ParseRateType(cols.get(rec, "rate_type"))
		if !ok {
			result.Errors = append(result.Errors, RowError{Row: rec.Line, Field: "rate_type", Message: fmt.Sprintf("unknown rate type %q", cols.get(rec, "rate_type"))})
			continue
		}

		role := models.Role{ID: RoleID(name), Name: name, RateType: rateType}
		rates := []struct {
			id  string
			dst *float64
		}{
			{"default_rate", &role.DefaultRate},
			{"hourly_rate", &role.DefaultHourlyRate},
			{"daily_rate", &role.DefaultDailyRate},
			{"annual_salary", &role.DefaultAnnualSalary},
		}
		var rateErr *RowError
		for _, r := range rates {
			v, _, err := parseAmount(cols.get(rec, r.id))
			if err != nil {
				rateErr = &RowError{Row: rec.Line, Field: r.id, Message: err.Error()}
				break
			}
			*r.dst = v
		}
		if rateErr != nil {
			result.Errors = append(result.Errors, *rateErr)
			continue
		}

		seen[nameKey(name)] = rec.Line
		result.Roles = append(result.Roles, role)
	}
	return result, nil
}

// ParseRateType reads a rate basis; empty defaults to hourly
func ParseRateType(s string) (models.RateType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "hourly", "hour", "per hour":
		return models.RateHourly, true
	case "daily", "day", "per day":
		return models.RateDaily, true
	case "annual", "annually", "yearly", "salary":
		return models.RateAnnual, true
	default:
		return "", false
	}
}
