package csvimport

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/planpulse/compass-api/pkg/models"
)

// WritePeopleCSV writes people in the layout ParsePeopleCSV reads back.
// Team and role ids are resolved to names where the records are known.
func WritePeopleCSV(w io.Writer, people []models.Person, teams []models.Team, roles []models.Role) error {
	teamNames := make(map[string]string, len(teams))
	for _, t := range teams {
		teamNames[t.ID] = t.Name
	}
	roleNames := make(map[string]string, len(roles))
	for _, r := range roles {
		roleNames[r.ID] = r.Name
	}

	writer := csv.NewWriter(w)
	writer.Write([]string{"name", "email", "role", "team_name", "team_id", "is_active", "employment_type", "start_date"})
	for _, p := range people {
		writer.Write([]string{
			p.Name,
			p.Email,
			roleNames[p.RoleID],
			teamNames[p.TeamID],
			p.TeamID,
			strconv.FormatBool(p.IsActive),
			p.EmploymentType,
			p.StartDate.String(),
		})
	}
	writer.Flush()
	return writer.Error()
}

// WriteRolesCSV writes roles in the layout ParseRolesCSV reads back
func WriteRolesCSV(w io.Writer, roles []models.Role) error {
	writer := csv.NewWriter(w)
	writer.Write([]string{"role_name", "rate_type", "default_rate", "hourly_rate", "daily_rate", "annual_salary"})
	for _, r := range roles {
		writer.Write([]string{
			r.Name,
			string(r.RateType),
			formatAmount(r.DefaultRate),
			formatAmount(r.DefaultHourlyRate),
			formatAmount(r.DefaultDailyRate),
			formatAmount(r.DefaultAnnualSalary),
		})
	}
	writer.Flush()
	return writer.Error()
}

func formatAmount(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
