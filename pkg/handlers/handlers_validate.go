package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/planpulse/compass-api/pkg/models"
)

// Issue is one problem found in a planning snapshot
type Issue struct {
	Kind   string `json:"kind"`
	Entity string `json:"entity"`
	ID     string `json:"id"`
	Detail string `json:"detail"`
}

// ValidateSnapshot reports duplicate ids and references to records that are
// not in the snapshot
func ValidateSnapshot(s models.PlanningSnapshot) []Issue {
	issues := []Issue{}
	dup := func(entity string, ids []string) map[string]bool {
		seen := make(map[string]bool, len(ids))
		for _, id := range ids {
			if id == "" {
				issues = append(issues, Issue{Kind: "missing_id", Entity: entity, Detail: entity + " without id"})
				continue
			}
			if seen[id] {
				issues = append(issues, Issue{Kind: "duplicate_id", Entity: entity, ID: id, Detail: "Duplicate " + entity + " ID: " + id})
			}
			seen[id] = true
		}
		return seen
	}
	dangling := func(entity, id, field, ref string, known map[string]bool) {
		if ref != "" && !known[ref] {
			issues = append(issues, Issue{Kind: "dangling_reference", Entity: entity, ID: id, Detail: fmt.Sprintf("%s %q not found", field, ref)})
		}
	}

	roles := dup("role", collect(s.Roles, func(r models.Role) string { return r.ID }))
	people := collect(s.People, func(p models.Person) string { return p.ID })
	dup("person", people)
	teams := dup("team", collect(s.Teams, func(t models.Team) string { return t.ID }))
	cycles := dup("cycle", collect(s.Cycles, func(c models.Cycle) string { return c.ID }))
	dup("allocation", collect(s.Allocations, func(a models.Allocation) string { return a.ID }))
	epics := dup("epic", collect(s.Epics, func(e models.Epic) string { return e.ID }))
	projects := dup("project", collect(s.Projects, func(p models.Project) string { return p.ID }))

	for _, p := range s.People {
		dangling("person", p.ID, "roleId", p.RoleID, roles)
		dangling("person", p.ID, "teamId", p.TeamID, teams)
	}
	for _, c := range s.Cycles {
		dangling("cycle", c.ID, "parentCycleId", c.ParentCycleID, cycles)
		if !c.StartDate.IsZero() && !c.EndDate.IsZero() && c.EndDate.Before(c.StartDate.Time) {
			issues = append(issues, Issue{Kind: "invalid_range", Entity: "cycle", ID: c.ID, Detail: "endDate before startDate"})
		}
	}
	for _, a := range s.Allocations {
		dangling("allocation", a.ID, "teamId", a.TeamID, teams)
		dangling("allocation", a.ID, "epicId", a.EpicID, epics)
		dangling("allocation", a.ID, "cycleId", a.CycleID, cycles)
		if a.Percentage < 0 {
			issues = append(issues, Issue{Kind: "invalid_value", Entity: "allocation", ID: a.ID, Detail: "percentage is negative"})
		}
	}
	for _, e := range s.Epics {
		dangling("epic", e.ID, "projectId", e.ProjectID, projects)
		dangling("epic", e.ID, "assignedTeamId", e.AssignedTeamID, teams)
	}
	return issues
}

func collect[T any](items []T, id func(T) string) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = id(it)
	}
	return out
}

// ValidateInput handles the JSON-based validation request
func (h *Handler) ValidateInput(c *gin.Context) {
	var input models.PlanningSnapshot
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"valid": false,
			"error": err.Error(),
		})
		return
	}

	issues := ValidateSnapshot(input)
	c.JSON(http.StatusOK, gin.H{
		"valid":  len(issues) == 0,
		"issues": issues,
		"stats": gin.H{
			"role_count":       len(input.Roles),
			"person_count":     len(input.People),
			"team_count":       len(input.Teams),
			"cycle_count":      len(input.Cycles),
			"allocation_count": len(input.Allocations),
			"epic_count":       len(input.Epics),
			"project_count":    len(input.Projects),
		},
	})
}
