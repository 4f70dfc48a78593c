// Package roster loads membership rosters from YAML or CSV files so a fresh
// record store can be seeded. The CSV layout is the membership log, so an
// exported log can be loaded back.
package roster

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/eyc/invoicing/internal/domain/membership"
	"github.com/eyc/invoicing/internal/domain/shared/valueobject"
)

// CSV column names, matching the membership log export.
const (
	ColumnName               = "Member Name"
	ColumnType               = "Member Type"
	ColumnAnnualDues         = "Annual dues"
	ColumnBuildingAssessment = "Building assessment"
)

// Entry is one member as written in a roster file. Charges are strings so
// that "" (absent) and "0" stay distinguishable.
type Entry struct {
	Name               string `yaml:"name"`
	Type               string `yaml:"type"`
	AnnualDues         string `yaml:"annual_dues"`
	BuildingAssessment string `yaml:"building_assessment"`
}

type yamlFile struct {
	Members []Entry `yaml:"members"`
}

// LoadFile reads a roster, choosing the format from the file extension.
func LoadFile(path string) ([]*membership.Member, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open roster: %w", err)
	}
	defer f.Close()
	return Load(filepath.Base(path), f)
}

// Load reads a roster from r, choosing the format from the extension of
// name. Used for uploads, where only the client's file name is known.
func Load(name string, r io.Reader) ([]*membership.Member, error) {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".yaml", ".yml":
		return LoadYAML(r)
	case ".csv":
		return LoadCSV(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// LoadYAML reads a roster of the form
//
//	members:
//	  - name: Alice
//	    type: Regular
//	    annual_dues: "500"
//	    building_assessment: "100"
//
// Unknown keys are rejected.
func LoadYAML(r io.Reader) ([]*membership.Member, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var file yamlFile
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parse roster yaml: %w", err)
	}

	rows := make([]int, len(file.Members))
	for i := range rows {
		rows[i] = i + 1
	}
	return toMembers(file.Members, rows)
}

// LoadCSV reads a roster with the columns Member Name, Member Type, Annual
// dues and Building assessment. Other columns are ignored.
func LoadCSV(r io.Reader) ([]*membership.Member, error) {
	parser, err := newCSVParser(r)
	if err != nil {
		return nil, err
	}
	if err := parser.parseHeader(); err != nil {
		return nil, err
	}
	if missing := parser.missingHeaders([]string{ColumnName, ColumnType, ColumnAnnualDues, ColumnBuildingAssessment}); len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing columns %s", ErrMissingHeader, strings.Join(missing, ", "))
	}

	rows, err := parser.readAllRows()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(rows))
	lines := make([]int, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, Entry{
			Name:               row.Get(ColumnName),
			Type:               row.Get(ColumnType),
			AnnualDues:         row.Get(ColumnAnnualDues),
			BuildingAssessment: row.Get(ColumnBuildingAssessment),
		})
		lines = append(lines, row.LineNumber)
	}
	return toMembers(entries, lines)
}

func toMembers(entries []Entry, rows []int) ([]*membership.Member, error) {
	if len(entries) == 0 {
		return nil, ErrNoMembers
	}

	var errs errorCollection
	seen := make(map[string]int, len(entries))
	members := make([]*membership.Member, 0, len(entries))

	for i, e := range entries {
		row := rows[i]
		name := strings.TrimSpace(e.Name)
		if name == "" {
			errs.add(RowError{Row: row, Column: ColumnName, Code: ErrCodeRequiredField, Message: "member name is required"})
			continue
		}
		if first, dup := seen[name]; dup {
			errs.add(RowError{Row: row, Column: ColumnName, Code: ErrCodeDuplicateInFile,
				Message: fmt.Sprintf("duplicate member, first listed at row %d", first), Value: name})
			continue
		}
		seen[name] = row

		dues, err := parseCharge(e.AnnualDues)
		if err != nil {
			errs.add(RowError{Row: row, Column: ColumnAnnualDues, Code: ErrCodeInvalidAmount, Message: err.Error(), Value: e.AnnualDues})
		}
		assessment, err := parseCharge(e.BuildingAssessment)
		if err != nil {
			errs.add(RowError{Row: row, Column: ColumnBuildingAssessment, Code: ErrCodeInvalidAmount, Message: err.Error(), Value: e.BuildingAssessment})
		}

		m := &membership.Member{
			Name:               name,
			AnnualDues:         dues,
			BuildingAssessment: assessment,
		}
		if t := strings.TrimSpace(e.Type); t != "" {
			m.MemberType = &membership.MemberType{Name: t}
		}
		members = append(members, m)
	}

	if err := errs.err(); err != nil {
		return nil, err
	}
	return members, nil
}

// parseCharge returns nil for an empty cell.
func parseCharge(raw string) (*valueobject.Money, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	m, err := valueobject.ParseMoney(raw)
	if err != nil {
		return nil, errors.New("not a number")
	}
	if m.IsNegative() {
		return nil, errors.New("must not be negative")
	}
	return &m, nil
}
