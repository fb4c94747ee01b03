package csvimport

import (
	"io"
	"regexp"

	"github.com/planpulse/compass-api/pkg/models"
)

// DefaultMemberCapacity is the iteration capacity each imported member adds to their team
const DefaultMemberCapacity = 80.0

var peopleFields = []field{
	{id: "name", pattern: regexp.MustCompile(`^((full|person|employee) )?name$`), required: true},
	{id: "email", pattern: regexp.MustCompile(`^e ?mail( address)?$`)},
	{id: "role", pattern: regexp.MustCompile(`^(role( name)?|job title)$`)},
	{id: "team_id", pattern: regexp.MustCompile(`^team ?id$`)},
	{id: "team_name", pattern: regexp.MustCompile(`^team( name)?$`)},
	{id: "is_active", pattern: regexp.MustCompile(`^(is )?active$`)},
	{id: "employment_type", pattern: regexp.MustCompile(`^employment( type)?$`)},
	{id: "start_date", pattern: regexp.MustCompile(`^start ?date$`)},
}

// PeopleImport is the result of a people import
type PeopleImport struct {
	People []models.Person `json:"people"`
	Teams  []models.Team   `json:"teams"`
	Errors []RowError      `json:"errors"`
}

// Imported is the number of people accepted
func (p *PeopleImport) Imported() int { return len(p.People) }

// Failed is the number of rows skipped
func (p *PeopleImport) Failed() int { return len(p.Errors) }

// ParsePeopleCSV parses a people CSV file
func ParsePeopleCSV(r io.Reader) (*PeopleImport, error) {
	records, err := ReadCSV(r)
	if err != nil {
		return nil, err
	}
	return ParsePeople(records)
}

// ParsePeople maps people rows to Person records and collects the teams they
// reference. Teams are deduplicated by explicit id, else by case-insensitive
// name; a team without an id gets TeamID(name). The role column is a role
// name and is linked through RoleID(name).
func ParsePeople(records []Record) (*PeopleImport, error) {
	cols, rows, err := splitHeader(records, peopleFields)
	if err != nil {
		return nil, err
	}

	result := &PeopleImport{People: []models.Person{}, Teams: []models.Team{}, Errors: []RowError{}}
	teams := newTeamIndex()
	// team ids are settled after all rows are read, a later row may give
	// an explicit id to a team first seen by name only
	personTeams := []*models.Team{}

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
			result.Errors = append(result.Errors, RowError{Row: rec.Line, Field: "name", Message: "name is required"})
			continue
		}

		person := models.Person{
			ID:             newID(),
			Name:           name,
			Email:          cols.get(rec, "email"),
			IsActive:       parseBool(cols.get(rec, "is_active"), true),
			EmploymentType: cols.get(rec, "employment_type"),
		}
		if role := cols.get(rec, "role"); role != "" {
			person.RoleID = RoleID(role)
		}
		if d, ok := parseDate(cols.get(rec, "start_date")); ok {
			person.StartDate = d
		}

		result.People = append(result.People, person)
		personTeams = append(personTeams, teams.resolve(cols.get(rec, "team_id"), cols.get(rec, "team_name")))
	}

	members := make(map[*models.Team]int)
	for i, t := range personTeams {
		if t == nil {
			continue
		}
		result.People[i].TeamID = t.ID
		members[t]++
	}
	for _, t := range teams.ordered {
		t.Capacity = float64(members[t]) * DefaultMemberCapacity
		result.Teams = append(result.Teams, *t)
	}
	return result, nil
}

// teamIndex deduplicates teams in first-seen order
type teamIndex struct {
	byID     map[string]*models.Team
	byName   map[string]*models.Team
	explicit map[*models.Team]bool
	ordered  []*models.Team
}

func newTeamIndex() *teamIndex {
	return &teamIndex{
		byID:     make(map[string]*models.Team),
		byName:   make(map[string]*models.Team),
		explicit: make(map[*models.Team]bool),
	}
}

func (ix *teamIndex) resolve(id, name string) *models.Team {
	switch {
	case id != "":
		if t, ok := ix.byID[id]; ok {
			return t
		}
		if name == "" {
			name = id
		}
		// a team seen by name only takes the first explicit id given for it
		if t, ok := ix.byName[nameKey(name)]; ok && !ix.explicit[t] {
			delete(ix.byID, t.ID)
			t.ID = id
			ix.byID[id] = t
			ix.explicit[t] = true
			return t
		}
		t := ix.add(&models.Team{ID: id, Name: name})
		ix.explicit[t] = true
		return t
	case name != "":
		if t, ok := ix.byName[nameKey(name)]; ok {
			return t
		}
		return ix.add(&models.Team{ID: TeamID(name), Name: name})
	default:
		return nil
	}
}

func (ix *teamIndex) add(t *models.Team) *models.Team {
	ix.byID[t.ID] = t
	if _, ok := ix.byName[nameKey(t.Name)]; !ok {
		ix.byName[nameKey(t.Name)] = t
	}
	ix.ordered = append(ix.ordered, t)
	return t
}
