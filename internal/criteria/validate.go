package criteria

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/mchestr/plex-wrapped-sub005/internal/fields"
	"github.com/mchestr/plex-wrapped-sub005/internal/media"
)

// Validate checks a criteria tree against the field catalog for the given
// media type. Empty groups, unknown fields, fields inapplicable to the
// media type, disallowed operators, and malformed condition values are all
// validation errors.
func Validate(n Node, mt media.Type, reg *fields.Registry) error {
	switch v := n.(type) {
	case *Group:
		return validateGroup(v, mt, reg)
	case *Condition:
		return validateCondition(v, mt, reg)
	default:
		return fmt.Errorf("unknown criteria node type %T", n)
	}
}

func validateGroup(g *Group, mt media.Type, reg *fields.Registry) error {
	if g.Operator != GroupAnd && g.Operator != GroupOr {
		return fmt.Errorf("group %q has invalid operator %q", g.ID, g.Operator)
	}
	if len(g.Conditions) == 0 {
		return fmt.Errorf("group %q has no conditions", g.ID)
	}
	for _, child := range g.Conditions {
		if err := Validate(child, mt, reg); err != nil {
			return err
		}
	}
	return nil
}

func validateCondition(c *Condition, mt media.Type, reg *fields.Registry) error {
	def, ok := reg.Definition(c.Field)
	if !ok {
		return fmt.Errorf("condition %q references unknown field %q", c.ID, c.Field)
	}
	if !def.AppliesTo(mt) {
		return fmt.Errorf("field %q does not apply to media type %q", c.Field, mt)
	}
	if !def.AllowsOperator(c.Operator) {
		return fmt.Errorf("operator %q not allowed for field %q", c.Operator, c.Field)
	}
	return validateValue(c, def)
}

func validateValue(c *Condition, def *fields.Field) error {
	switch c.Operator {
	case fields.OpIsNull, fields.OpIsNotNull, fields.OpIsEmpty, fields.OpIsNotEmpty:
		return nil

	case fields.OpBetween:
		vals, ok := c.Value.([]any)
		if !ok || len(vals) != 2 {
			return fmt.Errorf("between on field %q requires a two-element [min, max] value", c.Field)
		}
		return nil

	case fields.OpIn, fields.OpNotIn, fields.OpContainsAny, fields.OpContainsAll:
		if _, ok := c.Value.([]any); !ok {
			return fmt.Errorf("operator %q on field %q requires an array value", c.Operator, c.Field)
		}
		if def.Type == fields.TypeEnum {
			return validateEnumValues(c, def)
		}
		return nil

	case fields.OpRegex:
		pattern, ok := c.Value.(string)
		if !ok {
			return fmt.Errorf("regex on field %q requires a string pattern", c.Field)
		}
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("invalid regex on field %q: %w", c.Field, err)
		}
		return nil

	case fields.OpOlderThan, fields.OpNewerThan:
		if _, ok := numericValue(c.Value); !ok {
			return fmt.Errorf("operator %q on field %q requires a numeric value", c.Operator, c.Field)
		}
		switch c.ValueUnit {
		case fields.UnitHours, fields.UnitDays, fields.UnitWeeks, fields.UnitMonths, fields.UnitYears:
			return nil
		default:
			return fmt.Errorf("operator %q on field %q requires a duration unit", c.Operator, c.Field)
		}
	}

	if c.Value == nil {
		return fmt.Errorf("operator %q on field %q requires a value", c.Operator, c.Field)
	}
	if def.Type == fields.TypeEnum {
		return validateEnumValues(c, def)
	}
	return nil
}

func validateEnumValues(c *Condition, def *fields.Field) error {
	check := func(v any) error {
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("enum field %q requires string values", c.Field)
		}
		for _, allowed := range def.EnumValues {
			if allowed == s {
				return nil
			}
		}
		return fmt.Errorf("value %q not valid for enum field %q", s, c.Field)
	}

	if vals, ok := c.Value.([]any); ok {
		for _, v := range vals {
			if err := check(v); err != nil {
				return err
			}
		}
		return nil
	}
	return check(c.Value)
}

func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
