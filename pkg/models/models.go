package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format for calendar dates
const DateLayout = "2006-01-02"

// Date is a calendar date without a time component. The zero value means "unset"
// and is encoded as JSON null.
type Date struct {
	time.Time
}

// NewDate returns the date for the given year, month and day in UTC
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

// String formats the date as YYYY-MM-DD, or "" when unset
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// MarshalJSON implements json.Marshaler
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(DateLayout) + `"`), nil
}

// UnmarshalJSON accepts null, "", YYYY-MM-DD and RFC 3339 timestamps
func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*d = Date{}
		return nil
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		*d = Date{t}
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("invalid date %q", s)
	}
	y, m, day := t.Date()
	*d = NewDate(y, m, day)
	return nil
}

// RateType is the basis a role's default rate is expressed in
type RateType string

const (
	RateHourly RateType = "hourly"
	RateDaily  RateType = "daily"
	RateAnnual RateType = "annual"
)

// Role is a job role and its cost basis
type Role struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	RateType            RateType `json:"rateType"`
	DefaultRate         float64  `json:"defaultRate"`
	DefaultHourlyRate   float64  `json:"defaultHourlyRate,omitempty"`
	DefaultDailyRate    float64  `json:"defaultDailyRate,omitempty"`
	DefaultAnnualSalary float64  `json:"defaultAnnualSalary,omitempty"`
}

// Person is a member of exactly one team with exactly one role
type Person struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email,omitempty"`
	RoleID         string `json:"roleId"`
	TeamID         string `json:"teamId"`
	IsActive       bool   `json:"isActive"`
	EmploymentType string `json:"employmentType,omitempty"`
	StartDate      Date   `json:"startDate"`
}

// Team is a delivery team. Capacity is in hours per iteration.
type Team struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Capacity float64 `json:"capacity"`
}

// CycleType distinguishes planning time-boxes
type CycleType string

const (
	CycleAnnual    CycleType = "annual"
	CycleQuarterly CycleType = "quarterly"
	CycleIteration CycleType = "iteration"
)

// Cycle is a scheduling time-box. Iterations point at their quarter via ParentCycleID.
type Cycle struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	StartDate     Date      `json:"startDate"`
	EndDate       Date      `json:"endDate"`
	Type          CycleType `json:"type"`
	ParentCycleID string    `json:"parentCycleId,omitempty"`
}

// Allocation commits a percentage of a team's capacity to an epic (or run work)
// within one iteration of a cycle. Percentages above 100 are over-allocation.
type Allocation struct {
	ID                string  `json:"id"`
	TeamID            string  `json:"teamId"`
	EpicID            string  `json:"epicId,omitempty"`
	RunWorkCategoryID string  `json:"runWorkCategoryId,omitempty"`
	CycleID           string  `json:"cycleId"`
	IterationNumber   int     `json:"iterationNumber"`
	Percentage        float64 `json:"percentage"`
}

// Epic is a unit of project work
type Epic struct {
	ID              string  `json:"id"`
	ProjectID       string  `json:"projectId"`
	Name            string  `json:"name"`
	EstimatedEffort float64 `json:"estimatedEffort,omitempty"`
	Status          string  `json:"status,omitempty"`
	StartDate       Date    `json:"startDate"`
	TargetEndDate   Date    `json:"targetEndDate"`
	AssignedTeamID  string  `json:"assignedTeamId,omitempty"`
}

// ProjectStatus values accepted on import
const (
	StatusPlanning  = "planning"
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusOnHold    = "on-hold"
)

// Project groups epics
type Project struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Status      string   `json:"status"`
	StartDate   Date     `json:"startDate"`
	EndDate     Date     `json:"endDate"`
	Budget      *float64 `json:"budget,omitempty"`
}

// Quarter is one bucket of a financial year
type Quarter struct {
	Name      string `json:"name" toml:"name"`
	StartDate Date   `json:"startDate" toml:"-"`
	EndDate   Date   `json:"endDate" toml:"-"`
}

// Contains reports whether d falls within the quarter, inclusive of both ends
func (q Quarter) Contains(d Date) bool {
	if d.IsZero() || q.StartDate.IsZero() || q.EndDate.IsZero() {
		return false
	}
	return !d.Before(q.StartDate.Time) && !d.After(q.EndDate.Time)
}

// FinancialConfig is the financial year a project cost rollup is bucketed into
type FinancialConfig struct {
	FinancialYear string    `json:"financialYear,omitempty"`
	Quarters      []Quarter `json:"quarters"`
}

// ValueMapping translates a raw import value to a canonical system value.
// (ImportType, FieldID, CSVValue) is unique.
type ValueMapping struct {
	ImportType  string `json:"importType"`
	FieldID     string `json:"fieldId"`
	CSVValue    string `json:"csvValue"`
	SystemValue string `json:"systemValue"`
}

// PlanningSnapshot is the in-memory planning state a client sends for computation
type PlanningSnapshot struct {
	Roles       []Role       `json:"roles"`
	People      []Person     `json:"people"`
	Teams       []Team       `json:"teams"`
	Cycles      []Cycle      `json:"cycles"`
	Allocations []Allocation `json:"allocations"`
	Epics       []Epic       `json:"epics"`
	Projects    []Project    `json:"projects"`
}
