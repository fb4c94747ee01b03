package csvimport

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/planpulse/compass-api/pkg/models"
)

// Import type and field ids under which allocation value mappings are stored
const (
	AllocationsImportType = "allocations"
	IterationField        = "iteration"
)

// DefaultIterationsPerCycle is used when a cycle has no explicit iterations
const DefaultIterationsPerCycle = 6

var allocationFields = []field{
	{id: "team", pattern: regexp.MustCompile(`^team( name| id)?$`), required: true},
	{id: "epic", pattern: regexp.MustCompile(`^(epic|work item)( name| id)?$`)},
	{id: "run_work", pattern: regexp.MustCompile(`^(run work|category|run work category)( name| id)?$`)},
	{id: "cycle", pattern: regexp.MustCompile(`^(cycle|quarter)( name| id)?$`), required: true},
	{id: "iteration", pattern: regexp.MustCompile(`^(iteration|sprint)( number| name)?$`), required: true},
	{id: "percentage", pattern: regexp.MustCompile(`^(percentage|percent|allocation|%)$`), required: true},
}

// Translator turns a raw import value into one of options
type Translator interface {
	Translate(importType, fieldID, raw string, options []string) (string, bool)
}

// AllocationRefs are the records allocation rows are resolved against
type AllocationRefs struct {
	Teams  []models.Team  `json:"teams"`
	Epics  []models.Epic  `json:"epics"`
	Cycles []models.Cycle `json:"cycles"`
}

// AllocationsImport is the result of an allocations import
type AllocationsImport struct {
	Allocations []models.Allocation `json:"allocations"`
	Errors      []RowError          `json:"errors"`
}

// Imported is the number of allocations accepted
func (p *AllocationsImport) Imported() int { return len(p.Allocations) }

// Failed is the number of rows skipped
func (p *AllocationsImport) Failed() int { return len(p.Errors) }

// ParseAllocationsCSV parses an allocations CSV file
func ParseAllocationsCSV(r io.Reader, refs AllocationRefs, translator Translator) (*AllocationsImport, error) {
	records, err := ReadCSV(r)
	if err != nil {
		return nil, err
	}
	return ParseAllocations(records, refs, translator)
}

// ParseAllocations maps allocation rows. Team, epic and cycle cells may hold
// an id or a name. Iteration cells that are not plain numbers go through
// translator, which may be nil.
func ParseAllocations(records []Record, refs AllocationRefs, translator Translator) (*AllocationsImport, error) {
	cols, rows, err := splitHeader(records, allocationFields)
	if err != nil {
		return nil, err
	}
	if !cols.has("epic") && !cols.has("run_work") {
		return nil, fmt.Errorf("%w: epic", ErrMissingHeader)
	}

	ix := newRefIndex(refs)
	result := &AllocationsImport{Allocations: []models.Allocation{}, Errors: []RowError{}}

	for _, rec := range rows {
		if rec.Err != nil {
			result.Errors = append(result.Errors, rowFailure(rec))
			continue
		}
		if isBlank(rec.Fields) {
			continue
		}

		alloc, rowErr := ix.allocation(cols, rec, translator)
		if rowErr != nil {
			result.Errors = append(result.Errors, *rowErr)
			continue
		}
		result.Allocations = append(result.Allocations, alloc)
	}
	return result, nil
}

type refIndex struct {
	teams      map[string]string
	epics      map[string]string
	cycles     map[string]string
	iterations map[string]int
}

func newRefIndex(refs AllocationRefs) *refIndex {
	ix := &refIndex{
		teams:      make(map[string]string),
		epics:      make(map[string]string),
		cycles:     make(map[string]string),
		iterations: make(map[string]int),
	}
	for _, t := range refs.Teams {
		ix.teams[t.ID] = t.ID
		ix.teams[nameKey(t.Name)] = t.ID
	}
	for _, e := range refs.Epics {
		ix.epics[e.ID] = e.ID
		ix.epics[nameKey(e.Name)] = e.ID
	}
	for _, c := range refs.Cycles {
		if c.Type == models.CycleIteration && c.ParentCycleID != "" {
			ix.iterations[c.ParentCycleID]++
			continue
		}
		ix.cycles[c.ID] = c.ID
		ix.cycles[nameKey(c.Name)] = c.ID
	}
	return ix
}

func lookup(m map[string]string, raw string) (string, bool) {
	if id, ok := m[raw]; ok {
		return id, true
	}
	id, ok := m[nameKey(raw)]
	return id, ok
}

func (ix *refIndex) allocation(cols columns, rec Record, translator Translator) (models.Allocation, *RowError) {
	fail := func(field, format string, args ...any) (models.Allocation, *RowError) {
		return models.Allocation{}, &RowError{Row: rec.Line, Field: field, Message: fmt.Sprintf(format, args...)}
	}

	alloc := models.Allocation{ID: newID()}

	teamRaw := cols.get(rec, "team")
	teamID, ok := lookup(ix.teams, teamRaw)
	if !ok {
		return fail("team", "unknown team %q", teamRaw)
	}
	alloc.TeamID = teamID

	if epicRaw := cols.get(rec, "epic"); epicRaw != "" {
		epicID, ok := lookup(ix.epics, epicRaw)
		if !ok {
			return fail("epic", "unknown epic %q", epicRaw)
		}
		alloc.EpicID = epicID
	} else if runWork := cols.get(rec, "run_work"); runWork != "" {
		alloc.RunWorkCategoryID = runWork
	} else {
		return fail("epic", "epic or run work category is required")
	}

	cycleRaw := cols.get(rec, "cycle")
	cycleID, ok := lookup(ix.cycles, cycleRaw)
	if !ok {
		return fail("cycle", "unknown cycle %q", cycleRaw)
	}
	alloc.CycleID = cycleID

	iterRaw := cols.get(rec, "iteration")
	n, ok := ix.iterationNumber(cycleID, iterRaw, translator)
	if !ok {
		return fail("iteration", "cannot map %q to an iteration", iterRaw)
	}
	alloc.IterationNumber = n

	pctRaw := strings.TrimSuffix(cols.get(rec, "percentage"), "%")
	pct, err := strconv.ParseFloat(strings.TrimSpace(pctRaw), 64)
	if err != nil || pct < 0 {
		return fail("percentage", "invalid percentage %q", cols.get(rec, "percentage"))
	}
	alloc.Percentage = pct

	return alloc, nil
}

// iterationNumber accepts an in-range number directly and otherwise asks translator
func (ix *refIndex) iterationNumber(cycleID, raw string, translator Translator) (int, bool) {
	count := ix.iterations[cycleID]
	if count == 0 {
		count = DefaultIterationsPerCycle
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n, n >= 1 && n <= count
	}
	if translator == nil || raw == "" {
		return 0, false
	}

	options := make([]string, count)
	for i := range options {
		options[i] = strconv.Itoa(i + 1)
	}
	mapped, ok := translator.Translate(AllocationsImportType, IterationField, raw, options)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(mapped)
	if err != nil || n < 1 || n > count {
		return 0, false
	}
	return n, true
}
