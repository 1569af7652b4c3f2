package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// SchemaVersion identifies the revision of AllFields. Bump it whenever a
// field is added, removed or reordered.
const SchemaVersion = 3

// Field names one column of the dataset.
type Field string

const (
	FieldLink               Field = "link"
	FieldArea               Field = "area"
	FieldPrice              Field = "price"
	FieldDistrict           Field = "district"
	FieldRent               Field = "rent"
	FieldMarket             Field = "market"
	FieldRoomsNum           Field = "rooms_num"
	FieldFloorsNum          Field = "floors_num"
	FieldFloorNo            Field = "floor_no"
	FieldBuildYear          Field = "build_year"
	FieldConstructionStatus Field = "construction_status"
	FieldGarage             Field = "garage"
	FieldLift               Field = "lift"
	FieldBasement           Field = "basement"
	FieldBalcony            Field = "balcony"
	FieldGarden             Field = "garden"
	FieldTerrace            Field = "terrace"
	FieldLatitude           Field = "latitude"
	FieldLongitude          Field = "longitude"
)

// Kind is the value type a field holds.
type Kind int

const (
	KindText Kind = iota
	KindReal
	KindInteger
	KindTristate
)

// FieldSpec declares a field's type, optionality and where it comes from.
type FieldSpec struct {
	Field    Field
	Kind     Kind
	Required bool
	Source   string
}

// fieldSpecs is the canonical field list, in column order.
var fieldSpecs = []FieldSpec{
	{FieldLink, KindText, true, "listing URL"},
	{FieldArea, KindReal, true, "target.Area"},
	{FieldPrice, KindReal, true, "target.Price"},
	{FieldDistrict, KindText, false, "district polygon containing the coordinates"},
	{FieldRent, KindReal, false, "target.Rent"},
	{FieldMarket, KindText, false, `characteristics[key="market"].value`},
	{FieldRoomsNum, KindInteger, false, "target.Rooms_num[0]"},
	{FieldFloorsNum, KindInteger, false, "target.Building_floors_num"},
	{FieldFloorNo, KindInteger, false, "target.Floor_no[0] decoded"},
	{FieldBuildYear, KindInteger, false, "target.Build_year"},
	{FieldConstructionStatus, KindText, false, "target.Construction_status[0]"},
	{FieldGarage, KindTristate, false, `"garage" in target.Extras_types`},
	{FieldLift, KindTristate, false, `"lift" in target.Extras_types`},
	{FieldBasement, KindTristate, false, `"basement" in target.Extras_types`},
	{FieldBalcony, KindTristate, false, `"balcony" in target.Extras_types`},
	{FieldGarden, KindTristate, false, `"garden" in target.Extras_types`},
	{FieldTerrace, KindTristate, false, `"terrace" in target.Extras_types`},
	{FieldLatitude, KindReal, false, "location.coordinates.latitude"},
	{FieldLongitude, KindReal, false, "location.coordinates.longitude"},
}

var (
	AllFields  []Field
	fieldIndex = map[Field]int{}
)

func init() {
	for i, spec := range fieldSpecs {
		AllFields = append(AllFields, spec.Field)
		fieldIndex[spec.Field] = i
	}
}

// Spec returns the declaration of f.
func (f Field) Spec() (FieldSpec, bool) {
	i, ok := fieldIndex[f]
	if !ok {
		return FieldSpec{}, false
	}
	return fieldSpecs[i], true
}

// Header is the capitalized column name written to the dataset.
func (f Field) Header() string {
	s := string(f)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// ParseField resolves a field name or header cell, ignoring case.
func ParseField(name string) (Field, error) {
	f := Field(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := fieldIndex[f]; !ok {
		return "", fmt.Errorf("unknown field %q", name)
	}
	return f, nil
}

// Schema is an ordered, duplicate-free list of fields.
type Schema []Field

// NewSchema validates the requested fields, drops duplicates and orders them
// canonically. The link column is always included, first.
func NewSchema(fields []Field) (Schema, error) {
	seen := map[Field]bool{FieldLink: true}
	schema := Schema{FieldLink}
	for _, f := range fields {
		if _, ok := fieldIndex[f]; !ok {
			return nil, fmt.Errorf("unknown field %q", f)
		}
		if seen[f] {
			continue
		}
		seen[f] = true
		schema = append(schema, f)
	}
	sort.SliceStable(schema, func(i, j int) bool {
		return fieldIndex[schema[i]] < fieldIndex[schema[j]]
	})
	return schema, nil
}

// ParseSchema builds a Schema from names such as "area,price,district".
func ParseSchema(names []string) (Schema, error) {
	fields := make([]Field, 0, len(names))
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		f, err := ParseField(n)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return NewSchema(fields)
}

// DefaultSchema holds every known field.
func DefaultSchema() Schema {
	return append(Schema(nil), AllFields...)
}

// SchemaFromHeader reads a dataset header row back into a Schema, keeping
// the file's column order.
func SchemaFromHeader(header []string) (Schema, error) {
	schema := make(Schema, 0, len(header))
	seen := make(map[Field]bool, len(header))
	for _, cell := range header {
		f, err := ParseField(cell)
		if err != nil {
			return nil, err
		}
		if seen[f] {
			return nil, fmt.Errorf("duplicate column %q", cell)
		}
		seen[f] = true
		schema = append(schema, f)
	}
	return schema, nil
}

// Headers returns the header row.
func (s Schema) Headers() []string {
	out := make([]string, len(s))
	for i, f := range s {
		out[i] = f.Header()
	}
	return out
}

// Index returns the column position of f, or -1.
func (s Schema) Index(f Field) int {
	for i, sf := range s {
		if sf == f {
			return i
		}
	}
	return -1
}

// Project returns l's values in schema order; absent values are nil.
func (s Schema) Project(l *Listing) []any {
	out := make([]any, len(s))
	for i, f := range s {
		if v, ok := l.Value(f); ok {
			out[i] = v
		}
	}
	return out
}

func (s Schema) String() string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = string(f)
	}
	return strings.Join(names, ",")
}

// FormatValue renders one dataset cell. Absent values become empty cells.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case bool:
		if x {
			return Yes.String()
		}
		return No.String()
	case Tristate:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
