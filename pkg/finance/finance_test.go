package finance

import (
	"math"
	"testing"
	"time"

	"github.com/planpulse/compass-api/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRoles() []models.Role {
	return []models.Role{
		{ID: "dev", Name: "Developer", RateType: models.RateHourly, DefaultRate: 50},
		{ID: "pm", Name: "Product Manager", RateType: models.RateDaily, DefaultRate: 400},
		{ID: "arch", Name: "Architect", RateType: models.RateAnnual, DefaultRate: 104000},
		{ID: "unpaid", Name: "Volunteer", RateType: models.RateHourly},
	}
}

func TestWeeklyRate(t *testing.T) {
	cases := []struct {
		name string
		role models.Role
		want float64
	}{
		{"hourly", models.Role{RateType: models.RateHourly, DefaultRate: 50}, 2000},
		{"daily", models.Role{RateType: models.RateDaily, DefaultRate: 400}, 2000},
		{"annual", models.Role{RateType: models.RateAnnual, DefaultRate: 104000}, 2000},
		{"hourly falls back to hourly field", models.Role{RateType: models.RateHourly, DefaultHourlyRate: 25}, 1000},
		{"annual type without rate uses daily field", models.Role{RateType: models.RateAnnual, DefaultDailyRate: 100}, 500},
		{"untyped default rate is hourly", models.Role{DefaultRate: 10}, 400},
		{"no rates", models.Role{RateType: models.RateDaily}, 0},
		{"negative rate", models.Role{RateType: models.RateHourly, DefaultRate: -5}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, WeeklyRate(tc.role), 1e-9)
		})
	}
}

func TestTeamWeeklyCost(t *testing.T) {
	members := []models.Person{
		{ID: "p1", RoleID: "dev", IsActive: true},
		{ID: "p2", RoleID: "pm", IsActive: true},
		{ID: "p3", RoleID: "arch", IsActive: false},
		{ID: "p4", RoleID: "missing", IsActive: true},
		{ID: "p5", RoleID: "unpaid", IsActive: true},
	}

	assert.InDelta(t, 4000, TeamWeeklyCost(members, testRoles()), 1e-9)
	assert.Equal(t, 0.0, TeamWeeklyCost(nil, testRoles()))
	assert.Equal(t, 0.0, TeamWeeklyCost(members, nil))
}

func TestTeamCostGranularitiesAgree(t *testing.T) {
	members := []models.Person{
		{ID: "p1", RoleID: "dev", IsActive: true},
		{ID: "p2", RoleID: "arch", IsActive: true},
	}
	roles := testRoles()

	weekly := TeamWeeklyCost(members, roles)
	require.Greater(t, weekly, 0.0)
	assert.InDelta(t, weekly*4.33, TeamMonthlyCost(members, roles), 1e-6)
	assert.InDelta(t, weekly*13, TeamQuarterlyCost(members, roles), 1e-6)
	assert.InDelta(t, weekly*52, TeamAnnualCost(members, roles), 1e-6)
}

func TestCalculatePersonCost(t *testing.T) {
	cost := CalculatePersonCost(models.Person{ID: "p1", RoleID: "pm", IsActive: true}, testRoles())
	assert.InDelta(t, 2000, cost.Weekly, 1e-9)
	assert.InDelta(t, 104000, cost.Annual, 1e-9)

	inactive := CalculatePersonCost(models.Person{ID: "p1", RoleID: "pm"}, testRoles())
	assert.Equal(t, PersonCost{}, inactive)
}

func TestCalculateTeamCapacity_OverAllocation(t *testing.T) {
	team := models.Team{ID: "fe", Name: "Frontend", Capacity: 320}
	allocations := []models.Allocation{
		{ID: "a1", TeamID: "fe", IterationNumber: 3, Percentage: 60},
		{ID: "a2", TeamID: "fe", IterationNumber: 3, Percentage: 70},
		{ID: "a3", TeamID: "fe", IterationNumber: 2, Percentage: 90},
		{ID: "a4", TeamID: "be", IterationNumber: 3, Percentage: 40},
	}

	c := CalculateTeamCapacity(team, 3, allocations, nil)

	assert.Equal(t, 320.0, c.CapacityHours)
	assert.Equal(t, 130.0, c.AllocatedPercentage)
	assert.True(t, c.IsOverAllocated())
	assert.InDelta(t, 320, c.AllocatedHours(), 1e-9)
	assert.InDelta(t, 96, c.OverAllocatedHours(), 1e-9)
	assert.Nil(t, c.Iteration)
}

func TestCalculateTeamCapacity_ResolvesIteration(t *testing.T) {
	iterations := []models.Cycle{
		{ID: "it2", Name: "Sprint 2", StartDate: models.NewDate(2025, 1, 15), EndDate: models.NewDate(2025, 1, 28), Type: models.CycleIteration},
		{ID: "it1", Name: "Sprint 1", StartDate: models.NewDate(2025, 1, 1), EndDate: models.NewDate(2025, 1, 14), Type: models.CycleIteration},
	}

	c := CalculateTeamCapacity(models.Team{ID: "fe", Capacity: 80}, 1, nil, iterations)

	require.NotNil(t, c.Iteration)
	assert.Equal(t, "it1", c.Iteration.ID)
	assert.Equal(t, 0.0, c.AllocatedPercentage)
	assert.Equal(t, 0.0, c.OverAllocatedHours())
}

func TestCalculateIterationCapacity_SortedByName(t *testing.T) {
	teams := []models.Team{{ID: "2", Name: "Platform"}, {ID: "1", Name: "Frontend"}}
	got := CalculateIterationCapacity(teams, 1, []models.Allocation{{TeamID: "2", IterationNumber: 1, Percentage: 50}}, nil)

	require.Len(t, got, 2)
	assert.Equal(t, "Frontend", got[0].TeamName)
	assert.Equal(t, 50.0, got[1].AllocatedPercentage)
}

// fixture: one team costing 2000/week, two explicit two-week iterations in Q1 2025
type projectFixture struct {
	project     models.Project
	epics       []models.Epic
	allocations []models.Allocation
	cycles      []models.Cycle
	people      []models.Person
	roles       []models.Role
	teams       []models.Team
}

func newProjectFixture() projectFixture {
	return projectFixture{
		project: models.Project{
			ID:        "p1",
			Name:      "Checkout",
			StartDate: models.NewDate(2025, 1, 1),
			EndDate:   models.NewDate(2025, 3, 31),
		},
		epics: []models.Epic{
			{ID: "e1", ProjectID: "p1"},
			{ID: "e2", ProjectID: "p1"},
			{ID: "other", ProjectID: "p2"},
		},
		allocations: []models.Allocation{
			{ID: "a1", TeamID: "t1", EpicID: "e1", CycleID: "q1", IterationNumber: 1, Percentage: 50},
			{ID: "a2", TeamID: "t1", EpicID: "e2", CycleID: "q1", IterationNumber: 2, Percentage: 100},
			{ID: "a3", TeamID: "t1", EpicID: "other", CycleID: "q1", IterationNumber: 1, Percentage: 50},
			{ID: "a4", TeamID: "t1", RunWorkCategoryID: "bau", CycleID: "q1", IterationNumber: 1, Percentage: 20},
		},
		cycles: []models.Cycle{
			{ID: "q1", Name: "Q1 2025", StartDate: models.NewDate(2025, 1, 1), EndDate: models.NewDate(2025, 3, 31), Type: models.CycleQuarterly},
			{ID: "q1-i2", Name: "Sprint 2", StartDate: models.NewDate(2025, 1, 15), EndDate: models.NewDate(2025, 1, 28), Type: models.CycleIteration, ParentCycleID: "q1"},
			{ID: "q1-i1", Name: "Sprint 1", StartDate: models.NewDate(2025, 1, 1), EndDate: models.NewDate(2025, 1, 14), Type: models.CycleIteration, ParentCycleID: "q1"},
		},
		people: []models.Person{
			{ID: "alice", TeamID: "t1", RoleID: "dev", IsActive: true},
			{ID: "bob", TeamID: "t1", RoleID: "dev", IsActive: false},
		},
		roles: testRoles(),
		teams: []models.Team{{ID: "t1", Name: "Payments", Capacity: 80}},
	}
}

func calendarQuarters(year int) models.FinancialConfig {
	cfg := models.FinancialConfig{}
	for i := 0; i < 4; i++ {
		start := models.NewDate(year, time.Month(i*3+1), 1)
		end := models.Date{Time: start.AddDate(0, 3, -1)}
		cfg.Quarters = append(cfg.Quarters, models.Quarter{Name: "Q" + string(rune('1'+i)), StartDate: start, EndDate: end})
	}
	return cfg
}

func TestCalculateProjectCost(t *testing.T) {
	f := newProjectFixture()

	cost := CalculateProjectCost(f.project, f.epics, f.allocations, f.cycles, f.people, f.roles, f.teams)

	// 2000/week * (0.5 * 2 weeks + 1.0 * 2 weeks)
	assert.InDelta(t, 6000, cost.TotalCost, 1e-6)
	assert.InDelta(t, 6000/(90/DaysPerMonth), cost.MonthlyBurnRate, 1e-6)
}

func TestCalculateProjectCost_SpanFromAllocationsWithoutEndDate(t *testing.T) {
	f := newProjectFixture()
	f.project.EndDate = models.Date{}

	cost := CalculateProjectCost(f.project, f.epics, f.allocations, f.cycles, f.people, f.roles, f.teams)

	// iterations cover Jan 1 - Jan 28
	assert.InDelta(t, 6000/(28/DaysPerMonth), cost.MonthlyBurnRate, 1e-6)
}

func TestCalculateProjectCost_Degenerate(t *testing.T) {
	cost := CalculateProjectCost(models.Project{ID: "empty"}, nil, nil, nil, nil, nil, nil)
	assert.Equal(t, ProjectCost{}, cost)

	f := newProjectFixture()
	f.project.StartDate = models.Date{}
	f.project.EndDate = models.Date{}
	f.cycles = nil
	cost = CalculateProjectCost(f.project, f.epics, f.allocations, f.cycles, f.people, f.roles, f.teams)
	// unknown cycles use the default two-week iteration and leave no span to burn against
	assert.InDelta(t, 6000, cost.TotalCost, 1e-6)
	assert.Equal(t, 0.0, cost.MonthlyBurnRate)
	assert.False(t, math.IsNaN(cost.MonthlyBurnRate))
}

func TestCalculateProjectCost_SlotsCarvedFromQuarter(t *testing.T) {
	f := newProjectFixture()
	f.cycles = f.cycles[:1]

	cost := CalculateProjectCost(f.project, f.epics, f.allocations, f.cycles, f.people, f.roles, f.teams)
	assert.InDelta(t, 6000, cost.TotalCost, 1e-6)

	year := CalculateProjectCostForYear(f.project, f.epics, f.allocations, f.cycles, f.people, f.roles, f.teams, calendarQuarters(2025))
	assert.InDelta(t, 6000, year.QuarterlyCosts["Q1"], 1e-6)
}

func TestCalculateProjectCostForYear_MatchesTotal(t *testing.T) {
	f := newProjectFixture()

	total := CalculateProjectCost(f.project, f.epics, f.allocations, f.cycles, f.people, f.roles, f.teams)
	year := CalculateProjectCostForYear(f.project, f.epics, f.allocations, f.cycles, f.people, f.roles, f.teams, calendarQuarters(2025))

	assert.InDelta(t, total.TotalCost, year.TotalAnnualCost, 1e-6)
	assert.Equal(t, 0.0, year.UnassignedCost)
	require.Len(t, year.QuarterlyCosts, 4)

	var sum float64
	for _, v := range year.QuarterlyCosts {
		sum += v
	}
	assert.InDelta(t, year.TotalAnnualCost, sum, 1e-6)
	assert.InDelta(t, 6000, year.QuarterlyCosts["Q1"], 1e-6)
	assert.Equal(t, 0.0, year.QuarterlyCosts["Q4"])
}

func TestCalculateProjectCostForYear_UnassignedAndDuplicateNames(t *testing.T) {
	f := newProjectFixture()
	f.cycles = append(f.cycles, models.Cycle{
		ID: "q1-2026", StartDate: models.NewDate(2026, 1, 1), EndDate: models.NewDate(2026, 3, 31), Type: models.CycleQuarterly,
	})
	f.allocations = append(f.allocations, models.Allocation{
		ID: "late", TeamID: "t1", EpicID: "e1", CycleID: "q1-2026", IterationNumber: 1, Percentage: 100,
	})

	cfg := models.FinancialConfig{Quarters: []models.Quarter{
		{Name: "H1", StartDate: models.NewDate(2025, 1, 1), EndDate: models.NewDate(2025, 1, 14)},
		{Name: "H1", StartDate: models.NewDate(2025, 1, 15), EndDate: models.NewDate(2025, 6, 30)},
	}}
	year := CalculateProjectCostForYear(f.project, f.epics, f.allocations, f.cycles, f.people, f.roles, f.teams, cfg)

	assert.InDelta(t, 6000, year.QuarterlyCosts["H1"], 1e-6)
	assert.InDelta(t, 6000, year.TotalAnnualCost, 1e-6)
	assert.InDelta(t, 4000, year.UnassignedCost, 1e-6)
}

func TestCalculateProjectTeamBreakdown(t *testing.T) {
	f := newProjectFixture()
	f.people = append(f.people, models.Person{ID: "carol", TeamID: "t2", RoleID: "pm", IsActive: true})
	f.teams = append(f.teams, models.Team{ID: "t2", Name: "Design"})
	f.allocations = append(f.allocations, models.Allocation{
		ID: "a5", TeamID: "t2", EpicID: "e1", CycleID: "q1", IterationNumber: 1, Percentage: 25,
	})

	shares := CalculateProjectTeamBreakdown(f.project, f.epics, f.allocations, f.cycles, f.people, f.roles, f.teams)

	require.Len(t, shares, 2)
	assert.Equal(t, "Payments", shares[0].TeamName)
	assert.InDelta(t, 6000, shares[0].Cost, 1e-6)
	assert.InDelta(t, 1000, shares[1].Cost, 1e-6)
	assert.InDelta(t, 100, shares[0].Share+shares[1].Share, 1e-9)
}

func TestBudgetVariance(t *testing.T) {
	budget := 10000.0
	p := models.Project{Budget: &budget}
	assert.Equal(t, 4000.0, BudgetVariance(p, ProjectCost{TotalCost: 6000}))
	assert.Equal(t, 0.0, BudgetVariance(models.Project{}, ProjectCost{TotalCost: 6000}))
}

func TestRoundCurrency(t *testing.T) {
	assert.Equal(t, 2029.33, RoundCurrency(2029.3296))
	assert.Equal(t, 0.13, RoundCurrency(0.125))
	assert.Equal(t, 0.0, RoundCurrency(math.Inf(1)))
}

func TestProjectYearCostRounded(t *testing.T) {
	y := ProjectYearCost{
		TotalAnnualCost: 0.01,
		QuarterlyCosts:  map[string]float64{"Q1": 0.005, "Q2": 0.005, "Q3": 100.333},
		UnassignedCost:  1.006,
	}
	r := y.Rounded()

	assert.Equal(t, map[string]float64{"Q1": 0.01, "Q2": 0.01, "Q3": 100.33}, r.QuarterlyCosts)
	assert.Equal(t, 100.35, r.TotalAnnualCost)
	assert.Equal(t, 1.01, r.UnassignedCost)
	// the receiver is left alone
	assert.Equal(t, 0.005, y.QuarterlyCosts["Q1"])
}
