package csvimport

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// ErrUnsupportedType is returned for an import type or file extension that
// has no parser
var ErrUnsupportedType = errors.New("unsupported import type")

// Import types accepted by Import
const (
	PeopleImportType   = "people"
	ProjectsImportType = "projects"
	RolesImportType    = "roles"
)

// Result is the common view of an import outcome
type Result interface {
	Imported() int
	Failed() int
	RowErrors() []RowError
}

// RowErrors lists the skipped rows
func (p *PeopleImport) RowErrors() []RowError { return p.Errors }

// RowErrors lists the skipped rows
func (p *ProjectsImport) RowErrors() []RowError { return p.Errors }

// RowErrors lists the skipped rows
func (p *RolesImport) RowErrors() []RowError { return p.Errors }

// RowErrors lists the skipped rows
func (p *AllocationsImport) RowErrors() []RowError { return p.Errors }

// ReadFile reads records from a .csv or .xlsx file, chosen by name
func ReadFile(name string, r io.Reader) ([]Record, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt", "":
		return ReadCSV(r)
	case ".xlsx":
		return ReadXLSX(r)
	default:
		return nil, fmt.Errorf("%w: file %q", ErrUnsupportedType, name)
	}
}

// Import parses records as the given import type. Allocations need
// reference data and go through ParseAllocations instead.
func Import(importType string, records []Record) (Result, error) {
	var (
		res Result
		err error
	)
	switch importType {
	case PeopleImportType:
		res, err = ParsePeople(records)
	case ProjectsImportType:
		res, err = ParseProjects(records)
	case RolesImportType:
		res, err = ParseRoles(records)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, importType)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}
