// Package fields holds the static catalog of every queryable field: its
// data source, value type, allowed operators, applicable media types, and
// unit. The catalog is the single source of truth for rule validation and
// for generating the rule-authoring surface.
package fields

import "github.com/mchestr/plex-wrapped-sub005/internal/media"

// Type is the value type of a field.
type Type string

const (
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeDate    Type = "date"
	TypeBoolean Type = "boolean"
	TypeArray   Type = "array"
	TypeEnum    Type = "enum"
)

// DataSource identifies which provider supplies a field's value.
type DataSource string

const (
	SourceCatalog        DataSource = "catalog"
	SourcePlaybackStats  DataSource = "playback-stats"
	SourceMovieManager   DataSource = "movie-manager"
	SourceSeriesManager  DataSource = "series-manager"
	SourceRequestManager DataSource = "request-manager"
)

// Operator is a comparison operator applicable to one or more field types.
type Operator string

const (
	OpEquals     Operator = "equals"
	OpNotEquals  Operator = "notEquals"
	OpContains   Operator = "contains"
	OpStartsWith Operator = "startsWith"
	OpEndsWith   Operator = "endsWith"
	OpRegex      Operator = "regex"
	OpIn         Operator = "in"
	OpNotIn      Operator = "notIn"

	OpGreaterThan    Operator = "greaterThan"
	OpGreaterOrEqual Operator = "greaterOrEqual"
	OpLessThan       Operator = "lessThan"
	OpLessOrEqual    Operator = "lessOrEqual"
	OpBetween        Operator = "between"

	OpBefore    Operator = "before"
	OpAfter     Operator = "after"
	OpOlderThan Operator = "olderThan"
	OpNewerThan Operator = "newerThan"

	OpContainsAny Operator = "containsAny"
	OpContainsAll Operator = "containsAll"
	OpIsEmpty     Operator = "isEmpty"
	OpIsNotEmpty  Operator = "isNotEmpty"

	// Null checks are type-agnostic: they are the only operators that
	// distinguish "field absent" from "present with falsy value".
	OpIsNull    Operator = "isNull"
	OpIsNotNull Operator = "isNotNull"
)

// Unit qualifies a numeric condition value, primarily for duration-style
// operators (olderThan/newerThan).
type Unit string

const (
	UnitHours  Unit = "hours"
	UnitDays   Unit = "days"
	UnitWeeks  Unit = "weeks"
	UnitMonths Unit = "months"
	UnitYears  Unit = "years"
)

// OperatorsForType returns every operator legal for a field type. A field's
// allowed operators must always be a subset of this set.
func OperatorsForType(t Type) []Operator {
	nullOps := []Operator{OpIsNull, OpIsNotNull}
	switch t {
	case TypeString:
		return append([]Operator{
			OpEquals, OpNotEquals, OpContains, OpStartsWith, OpEndsWith,
			OpRegex, OpIn, OpNotIn,
		}, nullOps...)
	case TypeNumber:
		return append([]Operator{
			OpEquals, OpNotEquals, OpGreaterThan, OpGreaterOrEqual,
			OpLessThan, OpLessOrEqual, OpBetween, OpIn, OpNotIn,
		}, nullOps...)
	case TypeDate:
		return append([]Operator{
			OpBefore, OpAfter, OpBetween, OpOlderThan, OpNewerThan,
		}, nullOps...)
	case TypeBoolean:
		return append([]Operator{OpEquals, OpNotEquals}, nullOps...)
	case TypeArray:
		return append([]Operator{
			OpContains, OpContainsAny, OpContainsAll, OpIsEmpty, OpIsNotEmpty,
		}, nullOps...)
	case TypeEnum:
		return append([]Operator{OpEquals, OpNotEquals, OpIn, OpNotIn}, nullOps...)
	default:
		return nil
	}
}

// OperatorLegalForType reports whether op is legal for fields of type t.
func OperatorLegalForType(op Operator, t Type) bool {
	for _, legal := range OperatorsForType(t) {
		if legal == op {
			return true
		}
	}
	return false
}

// Field describes one queryable field.
type Field struct {
	Key        string       `yaml:"key" json:"key"`
	Label      string       `yaml:"label" json:"label"`
	Type       Type         `yaml:"type" json:"type"`
	Source     DataSource   `yaml:"source" json:"source"`
	MediaTypes []media.Type `yaml:"mediaTypes" json:"mediaTypes"`
	Operators  []Operator   `yaml:"operators,omitempty" json:"operators"`
	EnumValues []string     `yaml:"enumValues,omitempty" json:"enumValues,omitempty"`
	Unit       string       `yaml:"unit,omitempty" json:"unit,omitempty"`
	Category   string       `yaml:"category" json:"category"`
	Computed   bool         `yaml:"computed,omitempty" json:"computed,omitempty"`

	// Namespace and Name are derived from Key at load time so evaluation
	// never string-splits dotted keys. Namespace is empty for direct fields.
	Namespace string `yaml:"-" json:"-"`
	Name      string `yaml:"-" json:"-"`
}

// AppliesTo reports whether the field is queryable for the given media type.
func (f *Field) AppliesTo(mt media.Type) bool {
	for _, t := range f.MediaTypes {
		if t == mt {
			return true
		}
	}
	return false
}

// AllowsOperator reports whether op is in the field's allowed operator set.
func (f *Field) AllowsOperator(op Operator) bool {
	for _, allowed := range f.Operators {
		if allowed == op {
			return true
		}
	}
	return false
}
