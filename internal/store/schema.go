package store

import (
	"encoding/json"
	"sort"
	"strings"
)

// Column describes one column of a table in the Schema Document.
type Column struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Nullable   bool    `json:"nullable"`
	Default    *string `json:"default"`
	PrimaryKey bool    `json:"primaryKey,omitempty"`
	References string  `json:"references,omitempty"` // "table.column" for foreign keys
}

// Schema is the Schema Document: table name mapped to its ordered columns.
// It is read-only once introspected and safe to share across goroutines.
type Schema map[string][]Column

// ForeignKey is a single column-level reference between two tables.
type ForeignKey struct {
	Table     string `json:"table"`
	Column    string `json:"column"`
	RefTable  string `json:"refTable"`
	RefColumn string `json:"refColumn"`
}

// TableNames returns the table names in sorted order.
func (s Schema) TableNames() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ForeignKeys derives the foreign keys recorded on columns, sorted by table
// then column.
func (s Schema) ForeignKeys() []ForeignKey {
	var fks []ForeignKey
	for _, table := range s.TableNames() {
		for _, col := range s[table] {
			if col.References == "" {
				continue
			}
			refTable, refCol, ok := strings.Cut(col.References, ".")
			if !ok {
				continue
			}
			fks = append(fks, ForeignKey{
				Table:     table,
				Column:    col.Name,
				RefTable:  refTable,
				RefColumn: refCol,
			})
		}
	}
	return fks
}

// Document returns the JSON serialization used verbatim in generation
// prompts. Table keys are sorted, column order is preserved.
func (s Schema) Document() string {
	if s == nil {
		return "{}"
	}
	data, err := json.Marshal(map[string][]Column(s))
	if err != nil {
		return "{}"
	}
	return string(data)
}
