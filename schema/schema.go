package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
)

// ColumnType is a sync engine value type
type ColumnType string

const (
	TypeString  ColumnType = "string"
	TypeNumber  ColumnType = "number"
	TypeBoolean ColumnType = "boolean"
	TypeJSON    ColumnType = "json"
)

// Cardinality of a relationship
type Cardinality string

const (
	One  Cardinality = "one"
	Many Cardinality = "many"
)

type Column struct {
	Type     ColumnType `json:"type" validate:"oneof=string number boolean json"`
	Optional bool       `json:"optional"`
}

// Relationship joins SourceField of the owning table to DestField of DestSchema
type Relationship struct {
	SourceField []string    `json:"sourceField" validate:"min=1"`
	DestField   []string    `json:"destField" validate:"min=1"`
	DestSchema  string      `json:"destSchema" validate:"required"`
	Cardinality Cardinality `json:"cardinality" validate:"oneof=one many"`
}

type Table struct {
	Name          string                  `json:"tableName" validate:"required"`
	Columns       map[string]Column       `json:"columns" validate:"min=1,dive"`
	PrimaryKey    []string                `json:"primaryKey" validate:"min=1"`
	Relationships map[string]Relationship `json:"relationships,omitempty" validate:"dive"`
}

// Schema is the table set the sync engine replicates to clients
type Schema struct {
	Version int               `json:"version" validate:"gte=1"`
	Tables  map[string]*Table `json:"tables" validate:"min=1,dive,required"`
}

func timestamps(columns map[string]Column) map[string]Column {
	columns["time_created"] = Column{Type: TypeNumber}
	columns["time_deleted"] = Column{Type: TypeNumber, Optional: true}
	return columns
}

// Default returns the workspace and user tables of the application
func Default() *Schema {
	return &Schema{
		Version: 1,
		Tables: map[string]*Table{
			"workspace": {
				Name: "workspace",
				Columns: timestamps(map[string]Column{
					"id":   {Type: TypeString},
					"slug": {Type: TypeString},
					"name": {Type: TypeString},
				}),
				PrimaryKey: []string{"id"},
				Relationships: map[string]Relationship{
					"users": {
						SourceField: []string{"id"},
						DestField:   []string{"workspace_id"},
						DestSchema:  "user",
						Cardinality: Many,
					},
				},
			},
			"user": {
				Name: "user",
				Columns: timestamps(map[string]Column{
					"id":           {Type: TypeString},
					"workspace_id": {Type: TypeString},
					"email":        {Type: TypeString},
					"time_seen":    {Type: TypeNumber, Optional: true},
				}),
				PrimaryKey: []string{"workspace_id", "id"},
				Relationships: map[string]Relationship{
					"workspace": {
						SourceField: []string{"workspace_id"},
						DestField:   []string{"id"},
						DestSchema:  "workspace",
						Cardinality: One,
					},
				},
			},
		},
	}
}

var validate = validator.New()

// Validate checks field values and that keys and relationships only name existing columns
func (s *Schema) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}

	var errs []error
	for _, name := range s.tableNames() {
		table := s.Tables[name]
		if table.Name != name {
			errs = append(errs, fmt.Errorf("table %q is registered as %q", table.Name, name))
		}

		for _, col := range table.PrimaryKey {
			c, ok := table.Columns[col]
			if !ok {
				errs = append(errs, fmt.Errorf("%s: primary key column %q does not exist", name, col))
				continue
			}
			if c.Optional {
				errs = append(errs, fmt.Errorf("%s: primary key column %q can not be optional", name, col))
			}
		}

		for relName, rel := range table.Relationships {
			dest, ok := s.Tables[rel.DestSchema]
			if !ok {
				errs = append(errs, fmt.Errorf("%s.%s: unknown table %q", name, relName, rel.DestSchema))
				continue
			}
			if len(rel.SourceField) != len(rel.DestField) {
				errs = append(errs, fmt.Errorf("%s.%s: %d source fields for %d destination fields",
					name, relName, len(rel.SourceField), len(rel.DestField)))
			}
			for _, f := range rel.SourceField {
				if _, ok := table.Columns[f]; !ok {
					errs = append(errs, fmt.Errorf("%s.%s: source field %q does not exist", name, relName, f))
				}
			}
			for _, f := range rel.DestField {
				if _, ok := dest.Columns[f]; !ok {
					errs = append(errs, fmt.Errorf("%s.%s: destination field %q does not exist in %s", name, relName, f, rel.DestSchema))
				}
			}
		}
	}

	return errors.Join(errs...)
}

type rowRules struct {
	Row map[string]any `json:"row"`
}

type document struct {
	Permissions map[string]rowRules `json:"permissions"`
	Schema      *Schema             `json:"schema"`
}

// JSON renders the zero-schema.json document. Every table gets an empty rule set.
func (s *Schema) JSON() ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	doc := document{
		Permissions: make(map[string]rowRules, len(s.Tables)),
		Schema:      s,
	}
	for name := range s.Tables {
		doc.Permissions[name] = rowRules{Row: map[string]any{}}
	}

	return json.Marshal(doc)
}

func (s *Schema) tableNames() []string {
	names := make([]string, 0, len(s.Tables))
	for name := range s.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
