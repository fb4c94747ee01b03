package csvimport

import (
	"io"
	"regexp"
	"strings"

	"github.com/planpulse/compass-api/pkg/models"
)

var projectFields = []field{
	{id: "name", pattern: regexp.MustCompile(`^(project )?name$`), required: true},
	{id: "description", pattern: regexp.MustCompile(`^(description|summary)$`)},
	{id: "status", pattern: regexp.MustCompile(`^(project )?status$`)},
	{id: "start_date", pattern: regexp.MustCompile(`^start( date)?$`)},
	{id: "end_date", pattern: regexp.MustCompile(`^(end|target end|due)( date)?$`)},
	{id: "budget", pattern: regexp.MustCompile(`^budget( amount)?$`)},
}

var projectStatuses = map[string]string{
	"planning":    models.StatusPlanning,
	"planned":     models.StatusPlanning,
	"not started": models.StatusPlanning,
	"active":      models.StatusActive,
	"in progress": models.StatusActive,
	"ongoing":     models.StatusActive,
	"completed":   models.StatusCompleted,
	"complete":    models.StatusCompleted,
	"done":        models.StatusCompleted,
	"cancelled":   models.StatusCancelled,
	"canceled":    models.StatusCancelled,
	"on hold":     models.StatusOnHold,
	"paused":      models.StatusOnHold,
}

// ProjectsImport is the result of a projects import
type ProjectsImport struct {
	Projects []models.Project `json:"projects"`
	Errors   []RowError       `json:"errors"`
}

// Imported is the number of projects accepted
func (p *ProjectsImport) Imported() int { return len(p.Projects) }

// Failed is the number of rows skipped
func (p *ProjectsImport) Failed() int { return len(p.Errors) }

// ParseProjectsCSV parses a projects CSV file
func ParseProjectsCSV(r io.Reader) (*ProjectsImport, error) {
	records, err := ReadCSV(r)
	if err != nil {
		return nil, err
	}
	return ParseProjects(records)
}

// ParseProjects maps project rows. Dates and budgets that cannot be read are
// left unset rather than failing the row.
func ParseProjects(records []Record) (*ProjectsImport, error) {
	cols, rows, err := splitHeader(records, projectFields)
	if err != nil {
		return nil, err
	}

	result := &ProjectsImport{Projects: []models.Project{}, Errors: []RowError{}}
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
			result.Errors = append(result.Errors, RowError{Row: rec.Line, Field: "name", Message: "project name is required"})
			continue
		}

		project := models.Project{
			ID:          newID(),
			Name:        name,
			Description: cols.get(rec, "description"),
			Status:      NormalizeStatus(cols.get(rec, "status")),
		}
		if d, ok := parseDate(cols.get(rec, "start_date")); ok {
			project.StartDate = d
		}
		if d, ok := parseDate(cols.get(rec, "end_date")); ok {
			project.EndDate = d
		}
		if v, present, err := parseAmount(cols.get(rec, "budget")); present && err == nil {
			budget := v
			project.Budget = &budget
		}

		result.Projects = append(result.Projects, project)
	}
	return result, nil
}

// NormalizeStatus maps free-form status text to a project status; unknown values are planning
func NormalizeStatus(s string) string {
	key := strings.Join(strings.Fields(strings.ToLower(strings.ReplaceAll(s, "-", " "))), " ")
	if status, ok := projectStatuses[key]; ok {
		return status
	}
	return models.StatusPlanning
}
