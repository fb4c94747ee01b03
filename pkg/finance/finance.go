package finance

import (
	"math"
	"sort"
	"time"

	"github.com/planpulse/compass-api/pkg/models"
	"github.com/shopspring/decimal"
)

// Conversion constants shared by every cost function
const (
	HoursPerWeek          = 40.0
	DaysPerWeek           = 5.0
	WeeksPerYear          = 52.0
	WeeksPerMonth         = 4.33
	WeeksPerQuarter       = 13.0
	DaysPerMonth          = 30.44
	DefaultIterationWeeks = 2.0
)

const day = 24 * time.Hour

// WeeklyRate returns the weekly-equivalent cost of one person holding role.
// The field selected by RateType wins; otherwise the first populated of the
// hourly, daily and annual defaults is used. A bare DefaultRate without a
// RateType is read as hourly.
func WeeklyRate(role models.Role) float64 {
	switch role.RateType {
	case models.RateHourly:
		if v := nonNegative(role.DefaultRate); v > 0 {
			return v * HoursPerWeek
		}
	case models.RateDaily:
		if v := nonNegative(role.DefaultRate); v > 0 {
			return v * DaysPerWeek
		}
	case models.RateAnnual:
		if v := nonNegative(role.DefaultRate); v > 0 {
			return v / WeeksPerYear
		}
	case "":
		if v := nonNegative(role.DefaultRate); v > 0 {
			return v * HoursPerWeek
		}
	}

	if v := nonNegative(role.DefaultHourlyRate); v > 0 {
		return v * HoursPerWeek
	}
	if v := nonNegative(role.DefaultDailyRate); v > 0 {
		return v * DaysPerWeek
	}
	if v := nonNegative(role.DefaultAnnualSalary); v > 0 {
		return v / WeeksPerYear
	}
	return 0
}

// TeamWeeklyCost sums the weekly cost of every active member. Members whose
// role cannot be resolved contribute nothing.
func TeamWeeklyCost(members []models.Person, roles []models.Role) float64 {
	return teamWeeklyCost(members, indexRoles(roles))
}

func teamWeeklyCost(members []models.Person, roles map[string]models.Role) float64 {
	var total float64
	for _, m := range members {
		if !m.IsActive {
			continue
		}
		role, ok := roles[m.RoleID]
		if !ok {
			continue
		}
		total += WeeklyRate(role)
	}
	return total
}

// TeamMonthlyCost is the weekly cost scaled to a month
func TeamMonthlyCost(members []models.Person, roles []models.Role) float64 {
	return TeamWeeklyCost(members, roles) * WeeksPerMonth
}

// TeamQuarterlyCost is the weekly cost scaled to a quarter
func TeamQuarterlyCost(members []models.Person, roles []models.Role) float64 {
	return TeamWeeklyCost(members, roles) * WeeksPerQuarter
}

// TeamAnnualCost is the weekly cost scaled to a year
func TeamAnnualCost(members []models.Person, roles []models.Role) float64 {
	return TeamWeeklyCost(members, roles) * WeeksPerYear
}

// PersonCost holds one person's cost at every granularity
type PersonCost struct {
	Weekly    float64 `json:"weekly"`
	Monthly   float64 `json:"monthly"`
	Quarterly float64 `json:"quarterly"`
	Annual    float64 `json:"annual"`
}

// CalculatePersonCost returns the cost of a single person. Inactive people cost nothing.
func CalculatePersonCost(person models.Person, roles []models.Role) PersonCost {
	weekly := TeamWeeklyCost([]models.Person{person}, roles)
	return PersonCost{
		Weekly:    weekly,
		Monthly:   weekly * WeeksPerMonth,
		Quarterly: weekly * WeeksPerQuarter,
		Annual:    weekly * WeeksPerYear,
	}
}

// TeamCapacity is a team's load for one iteration
type TeamCapacity struct {
	TeamID              string        `json:"teamId"`
	TeamName            string        `json:"teamName"`
	IterationNumber     int           `json:"iterationNumber"`
	Iteration           *models.Cycle `json:"iteration,omitempty"`
	CapacityHours       float64       `json:"capacityHours"`
	AllocatedPercentage float64       `json:"allocatedPercentage"`
}

// AllocatedHours is the part of capacity covered by allocations, capped at capacity
func (c TeamCapacity) AllocatedHours() float64 {
	return c.CapacityHours * math.Min(c.AllocatedPercentage, 100) / 100
}

// OverAllocatedHours is the load beyond capacity
func (c TeamCapacity) OverAllocatedHours() float64 {
	return c.CapacityHours * math.Max(c.AllocatedPercentage-100, 0) / 100
}

// IsOverAllocated reports whether the team is committed beyond 100%
func (c TeamCapacity) IsOverAllocated() bool {
	return c.AllocatedPercentage > 100
}

// CalculateTeamCapacity sums the allocation percentages of team in the given
// iteration. The result is not clamped. iterations, when supplied, resolves
// the iteration record by 1-based position in start-date order.
func CalculateTeamCapacity(team models.Team, iterationNumber int, allocations []models.Allocation, iterations []models.Cycle) TeamCapacity {
	capacity := TeamCapacity{
		TeamID:          team.ID,
		TeamName:        team.Name,
		IterationNumber: iterationNumber,
		CapacityHours:   team.Capacity,
	}

	for _, a := range allocations {
		if a.TeamID == team.ID && a.IterationNumber == iterationNumber {
			capacity.AllocatedPercentage += a.Percentage
		}
	}

	ordered := sortedByStart(iterations)
	if iterationNumber >= 1 && iterationNumber <= len(ordered) {
		it := ordered[iterationNumber-1]
		capacity.Iteration = &it
	}
	return capacity
}

// CalculateIterationCapacity returns the capacity of every team for one iteration, ordered by team name
func CalculateIterationCapacity(teams []models.Team, iterationNumber int, allocations []models.Allocation, iterations []models.Cycle) []TeamCapacity {
	result := make([]TeamCapacity, 0, len(teams))
	for _, t := range teams {
		result = append(result, CalculateTeamCapacity(t, iterationNumber, allocations, iterations))
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].TeamName < result[j].TeamName
	})
	return result
}

// ProjectCost is the forecast cost of a project
type ProjectCost struct {
	TotalCost       float64 `json:"totalCost"`
	MonthlyBurnRate float64 `json:"monthlyBurnRate"`
}

// ProjectYearCost is a project's cost bucketed into the quarters of a financial year
type ProjectYearCost struct {
	TotalAnnualCost float64            `json:"totalAnnualCost"`
	QuarterlyCosts  map[string]float64 `json:"quarterlyCosts"`
	// UnassignedCost is the cost of allocations outside every configured quarter.
	// It is not part of TotalAnnualCost.
	UnassignedCost float64 `json:"unassignedCost"`
}

// Rounded returns a copy rounded to cents. Quarters are rounded first and the
// annual total is their exact sum, so the two always agree.
func (y ProjectYearCost) Rounded() ProjectYearCost {
	out := ProjectYearCost{
		QuarterlyCosts: make(map[string]float64, len(y.QuarterlyCosts)),
		UnassignedCost: RoundCurrency(y.UnassignedCost),
	}
	total := decimal.Zero
	for q, v := range y.QuarterlyCosts {
		r := decimal.NewFromFloat(RoundCurrency(v))
		out.QuarterlyCosts[q] = r.InexactFloat64()
		total = total.Add(r)
	}
	out.TotalAnnualCost = total.InexactFloat64()
	return out
}

// TeamCostShare is one team's part of a project's cost
type TeamCostShare struct {
	TeamID   string  `json:"teamId"`
	TeamName string  `json:"teamName"`
	Cost     float64 `json:"cost"`
	Share    float64 `json:"share"`
}

// CalculateProjectCost prices every allocation against the project's epics
// and derives a monthly burn rate over the project's span.
func CalculateProjectCost(project models.Project, epics []models.Epic, allocations []models.Allocation, cycles []models.Cycle, people []models.Person, roles []models.Role, teams []models.Team) ProjectCost {
	l := newLedger(epics, cycles, people, roles, teams)

	var total float64
	var first, last time.Time
	for _, c := range l.projectAllocations(project.ID, allocations) {
		total += c.cost
		if !c.start.IsZero() && (first.IsZero() || c.start.Before(first)) {
			first = c.start.Time
		}
		if !c.end.IsZero() && c.end.After(last) {
			last = c.end.Time
		}
	}

	var months float64
	if !project.StartDate.IsZero() && !project.EndDate.IsZero() {
		months = spanMonths(project.StartDate.Time, project.EndDate.Time)
	} else if !first.IsZero() && !last.IsZero() {
		months = spanMonths(first, last)
	}

	return ProjectCost{
		TotalCost:       total,
		MonthlyBurnRate: safeDiv(total, months),
	}
}

// CalculateProjectCostForYear prices allocations like CalculateProjectCost and
// buckets each into the configured quarter containing its iteration's start date.
// Quarters sharing a name are summed.
func CalculateProjectCostForYear(project models.Project, epics []models.Epic, allocations []models.Allocation, cycles []models.Cycle, people []models.Person, roles []models.Role, teams []models.Team, config models.FinancialConfig) ProjectYearCost {
	l := newLedger(epics, cycles, people, roles, teams)

	result := ProjectYearCost{QuarterlyCosts: make(map[string]float64, len(config.Quarters))}
	for _, q := range config.Quarters {
		if _, ok := result.QuarterlyCosts[q.Name]; !ok {
			result.QuarterlyCosts[q.Name] = 0
		}
	}

	for _, c := range l.projectAllocations(project.ID, allocations) {
		q, ok := quarterFor(config.Quarters, c.start)
		if !ok {
			result.UnassignedCost += c.cost
			continue
		}
		result.QuarterlyCosts[q.Name] += c.cost
		result.TotalAnnualCost += c.cost
	}
	return result
}

// CalculateProjectTeamBreakdown splits a project's cost by team, highest cost first
func CalculateProjectTeamBreakdown(project models.Project, epics []models.Epic, allocations []models.Allocation, cycles []models.Cycle, people []models.Person, roles []models.Role, teams []models.Team) []TeamCostShare {
	l := newLedger(epics, cycles, people, roles, teams)

	byTeam := make(map[string]float64)
	var total float64
	for _, c := range l.projectAllocations(project.ID, allocations) {
		byTeam[c.teamID] += c.cost
		total += c.cost
	}

	shares := make([]TeamCostShare, 0, len(byTeam))
	for id, cost := range byTeam {
		name := id
		if t, ok := l.teams[id]; ok {
			name = t.Name
		}
		shares = append(shares, TeamCostShare{
			TeamID:   id,
			TeamName: name,
			Cost:     cost,
			Share:    safeDiv(cost, total) * 100,
		})
	}
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].Cost != shares[j].Cost {
			return shares[i].Cost > shares[j].Cost
		}
		return shares[i].TeamName < shares[j].TeamName
	})
	return shares
}

// BudgetVariance is budget minus forecast cost; 0 when the project has no budget
func BudgetVariance(project models.Project, cost ProjectCost) float64 {
	if project.Budget == nil {
		return 0
	}
	return *project.Budget - cost.TotalCost
}

// RoundCurrency rounds to cents, half away from zero
func RoundCurrency(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// ledger indexes a planning snapshot for repeated allocation pricing
type ledger struct {
	epicProject map[string]string
	cycles      map[string]models.Cycle
	iterations  map[string][]models.Cycle // parent cycle ID -> children by start date
	members     map[string][]models.Person
	roles       map[string]models.Role
	teams       map[string]models.Team
	weekly      map[string]float64
}

type allocationCost struct {
	teamID string
	cost   float64
	start  models.Date
	end    models.Date
}

func newLedger(epics []models.Epic, cycles []models.Cycle, people []models.Person, roles []models.Role, teams []models.Team) *ledger {
	l := &ledger{
		epicProject: make(map[string]string, len(epics)),
		cycles:      make(map[string]models.Cycle, len(cycles)),
		iterations:  make(map[string][]models.Cycle),
		members:     make(map[string][]models.Person),
		roles:       indexRoles(roles),
		teams:       make(map[string]models.Team, len(teams)),
		weekly:      make(map[string]float64),
	}
	for _, e := range epics {
		l.epicProject[e.ID] = e.ProjectID
	}
	for _, c := range cycles {
		l.cycles[c.ID] = c
		if c.Type == models.CycleIteration && c.ParentCycleID != "" {
			l.iterations[c.ParentCycleID] = append(l.iterations[c.ParentCycleID], c)
		}
	}
	for parent, children := range l.iterations {
		l.iterations[parent] = sortedByStart(children)
	}
	for _, p := range people {
		l.members[p.TeamID] = append(l.members[p.TeamID], p)
	}
	for _, t := range teams {
		l.teams[t.ID] = t
	}
	return l
}

func (l *ledger) teamWeekly(teamID string) float64 {
	if v, ok := l.weekly[teamID]; ok {
		return v
	}
	v := teamWeeklyCost(l.members[teamID], l.roles)
	l.weekly[teamID] = v
	return v
}

// projectAllocations prices every allocation whose epic belongs to projectID
func (l *ledger) projectAllocations(projectID string, allocations []models.Allocation) []allocationCost {
	var out []allocationCost
	for _, a := range allocations {
		if a.EpicID == "" {
			continue
		}
		if pid, ok := l.epicProject[a.EpicID]; !ok || pid != projectID {
			continue
		}
		start, end, weeks := l.iterationSpan(a)
		out = append(out, allocationCost{
			teamID: a.TeamID,
			cost:   l.teamWeekly(a.TeamID) * (a.Percentage / 100) * weeks,
			start:  start,
			end:    end,
		})
	}
	return out
}

// iterationSpan resolves the dates and length in weeks of an allocation's iteration.
// Explicit iteration children of the cycle win, then the cycle itself when it is an
// iteration, then a default-length slot carved out of the cycle.
func (l *ledger) iterationSpan(a models.Allocation) (models.Date, models.Date, float64) {
	if children := l.iterations[a.CycleID]; a.IterationNumber >= 1 && a.IterationNumber <= len(children) {
		it := children[a.IterationNumber-1]
		return it.StartDate, it.EndDate, durationWeeks(it.StartDate, it.EndDate)
	}

	cycle, ok := l.cycles[a.CycleID]
	if !ok {
		return models.Date{}, models.Date{}, DefaultIterationWeeks
	}
	if cycle.Type == models.CycleIteration {
		return cycle.StartDate, cycle.EndDate, durationWeeks(cycle.StartDate, cycle.EndDate)
	}
	if cycle.StartDate.IsZero() {
		return models.Date{}, models.Date{}, DefaultIterationWeeks
	}

	n := a.IterationNumber
	if n < 1 {
		n = 1
	}
	slot := time.Duration(DefaultIterationWeeks*7) * day
	start := cycle.StartDate.Add(time.Duration(n-1) * slot)
	end := start.Add(slot - day)
	return models.Date{Time: start}, models.Date{Time: end}, DefaultIterationWeeks
}

func quarterFor(quarters []models.Quarter, d models.Date) (models.Quarter, bool) {
	for _, q := range quarters {
		if q.Contains(d) {
			return q, true
		}
	}
	return models.Quarter{}, false
}

// durationWeeks counts both end dates; unset dates fall back to the default length
func durationWeeks(start, end models.Date) float64 {
	if start.IsZero() || end.IsZero() {
		return DefaultIterationWeeks
	}
	days := end.Sub(start.Time).Hours()/24 + 1
	if days <= 0 {
		return 0
	}
	return days / 7
}

func spanMonths(start, end time.Time) float64 {
	days := end.Sub(start).Hours()/24 + 1
	if days <= 0 {
		return 0
	}
	return days / DaysPerMonth
}

func sortedByStart(cycles []models.Cycle) []models.Cycle {
	out := make([]models.Cycle, len(cycles))
	copy(out, cycles)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartDate.Before(out[j].StartDate.Time)
	})
	return out
}

func indexRoles(roles []models.Role) map[string]models.Role {
	m := make(map[string]models.Role, len(roles))
	for _, r := range roles {
		m[r.ID] = r
	}
	return m
}

func nonNegative(v float64) float64 {
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func safeDiv(a, b float64) float64 {
	if b == 0 || math.IsNaN(b) || math.IsInf(b, 0) {
		return 0
	}
	return a / b
}
