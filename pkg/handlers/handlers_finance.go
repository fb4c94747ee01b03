package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/planpulse/compass-api/pkg/finance"
	"github.com/planpulse/compass-api/pkg/models"
)

type teamCostRequest struct {
	Members []models.Person `json:"members"`
	Roles   []models.Role   `json:"roles"`
}

type personCostLine struct {
	PersonID string `json:"personId"`
	Name     string `json:"name"`
	finance.PersonCost
}

// TeamCost prices a set of team members at every granularity
func (h *Handler) TeamCost(c *gin.Context) {
	var req teamCostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	lines := make([]personCostLine, 0, len(req.Members))
	for _, p := range req.Members {
		lines = append(lines, personCostLine{PersonID: p.ID, Name: p.Name, PersonCost: finance.CalculatePersonCost(p, req.Roles)})
	}

	h.RecordUsage(c, len(req.Members), 0)
	c.JSON(http.StatusOK, gin.H{
		"weekly":    finance.RoundCurrency(finance.TeamWeeklyCost(req.Members, req.Roles)),
		"monthly":   finance.RoundCurrency(finance.TeamMonthlyCost(req.Members, req.Roles)),
		"quarterly": finance.RoundCurrency(finance.TeamQuarterlyCost(req.Members, req.Roles)),
		"annual":    finance.RoundCurrency(finance.TeamAnnualCost(req.Members, req.Roles)),
		"people":    lines,
	})
}

type teamCapacityRequest struct {
	Team            *models.Team        `json:"team"`
	Teams           []models.Team       `json:"teams"`
	IterationNumber int                 `json:"iterationNumber"`
	Allocations     []models.Allocation `json:"allocations"`
	Iterations      []models.Cycle      `json:"iterations"`
}

type capacityView struct {
	finance.TeamCapacity
	AllocatedHours     float64 `json:"allocatedHours"`
	OverAllocatedHours float64 `json:"overAllocatedHours"`
	IsOverAllocated    bool    `json:"isOverAllocated"`
}

func viewCapacity(tc finance.TeamCapacity) capacityView {
	return capacityView{
		TeamCapacity:       tc,
		AllocatedHours:     tc.AllocatedHours(),
		OverAllocatedHours: tc.OverAllocatedHours(),
		IsOverAllocated:    tc.IsOverAllocated(),
	}
}

// TeamCapacity reports the load of one team, or of every team in "teams",
// for an iteration
func (h *Handler) TeamCapacity(c *gin.Context) {
	var req teamCapacityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Team == nil && len(req.Teams) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "team or teams is required"})
		return
	}
	if req.IterationNumber < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "iterationNumber must be 1 or greater"})
		return
	}

	h.RecordUsage(c, len(req.Teams), len(req.Allocations))

	if req.Team != nil {
		tc := finance.CalculateTeamCapacity(*req.Team, req.IterationNumber, req.Allocations, req.Iterations)
		c.JSON(http.StatusOK, viewCapacity(tc))
		return
	}

	all := finance.CalculateIterationCapacity(req.Teams, req.IterationNumber, req.Allocations, req.Iterations)
	views := make([]capacityView, 0, len(all))
	for _, tc := range all {
		views = append(views, viewCapacity(tc))
	}
	c.JSON(http.StatusOK, gin.H{"teams": views})
}

type projectCostRequest struct {
	models.PlanningSnapshot
	// ProjectID limits the rollup to one project; empty means all
	ProjectID string                  `json:"projectId"`
	Config    *models.FinancialConfig `json:"config"`
}

func (r projectCostRequest) selected() ([]models.Project, bool) {
	if r.ProjectID == "" {
		return r.Projects, true
	}
	for _, p := range r.Projects {
		if p.ID == r.ProjectID {
			return []models.Project{p}, true
		}
	}
	return nil, false
}

type projectCostView struct {
	ProjectID       string                  `json:"projectId"`
	ProjectName     string                  `json:"projectName"`
	TotalCost       float64                 `json:"totalCost"`
	MonthlyBurnRate float64                 `json:"monthlyBurnRate"`
	BudgetVariance  *float64                `json:"budgetVariance"`
	Teams           []finance.TeamCostShare `json:"teams"`
}

// ProjectCost forecasts total cost and burn rate per project
func (h *Handler) ProjectCost(c *gin.Context) {
	var req projectCostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	projects, ok := req.selected()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "project not found: " + req.ProjectID})
		return
	}

	s := req.PlanningSnapshot
	views := make([]projectCostView, 0, len(projects))
	for _, p := range projects {
		cost := finance.CalculateProjectCost(p, s.Epics, s.Allocations, s.Cycles, s.People, s.Roles, s.Teams)
		view := projectCostView{
			ProjectID:       p.ID,
			ProjectName:     p.Name,
			TotalCost:       finance.RoundCurrency(cost.TotalCost),
			MonthlyBurnRate: finance.RoundCurrency(cost.MonthlyBurnRate),
			Teams:           finance.CalculateProjectTeamBreakdown(p, s.Epics, s.Allocations, s.Cycles, s.People, s.Roles, s.Teams),
		}
		if p.Budget != nil {
			v := finance.RoundCurrency(finance.BudgetVariance(p, cost))
			view.BudgetVariance = &v
		}
		views = append(views, view)
	}

	h.RecordUsage(c, len(projects), len(s.Allocations))
	c.JSON(http.StatusOK, gin.H{"projects": views})
}

type projectYearView struct {
	ProjectID   string `json:"projectId"`
	ProjectName string `json:"projectName"`
	finance.ProjectYearCost
}

// ProjectCostForYear buckets project cost into the quarters of a financial
// year, the request's own or the server's
func (h *Handler) ProjectCostForYear(c *gin.Context) {
	var req projectCostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	projects, ok := req.selected()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "project not found: " + req.ProjectID})
		return
	}

	cfg := h.Planning
	if req.Config != nil {
		cfg = *req.Config
	}
	if len(cfg.Quarters) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no quarters configured"})
		return
	}

	s := req.PlanningSnapshot
	views := make([]projectYearView, 0, len(projects))
	for _, p := range projects {
		year := finance.CalculateProjectCostForYear(p, s.Epics, s.Allocations, s.Cycles, s.People, s.Roles, s.Teams, cfg).Rounded()
		views = append(views, projectYearView{ProjectID: p.ID, ProjectName: p.Name, ProjectYearCost: year})
	}

	h.RecordUsage(c, len(projects), len(s.Allocations))
	c.JSON(http.StatusOK, gin.H{
		"financialYear": cfg.FinancialYear,
		"quarters":      cfg.Quarters,
		"projects":      views,
	})
}
