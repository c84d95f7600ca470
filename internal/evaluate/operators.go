package evaluate

import (
	"regexp"
	"strings"
	"time"

	"github.com/mchestr/plex-wrapped-sub005/internal/fields"
)

func applyString(op fields.Operator, value Value, condValue any) bool {
	if value.Kind != KindString {
		return false
	}
	subject := value.Str

	switch op {
	case fields.OpEquals:
		want, ok := condValue.(string)
		return ok && subject == want
	case fields.OpNotEquals:
		want, ok := condValue.(string)
		return ok && subject != want
	case fields.OpContains:
		want, ok := condValue.(string)
		return ok && strings.Contains(strings.ToLower(subject), strings.ToLower(want))
	case fields.OpStartsWith:
		want, ok := condValue.(string)
		return ok && strings.HasPrefix(strings.ToLower(subject), strings.ToLower(want))
	case fields.OpEndsWith:
		want, ok := condValue.(string)
		return ok && strings.HasSuffix(strings.ToLower(subject), strings.ToLower(want))
	case fields.OpRegex:
		pattern, ok := condValue.(string)
		if !ok {
			return false
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		return re.MatchString(subject)
	case fields.OpIn:
		return stringInSet(subject, condValue)
	case fields.OpNotIn:
		return isSet(condValue) && !stringInSet(subject, condValue)
	default:
		return false
	}
}

func stringInSet(subject string, condValue any) bool {
	set, ok := condValue.([]any)
	if !ok {
		return false
	}
	for _, v := range set {
		if s, ok := v.(string); ok && s == subject {
			return true
		}
	}
	return false
}

func isSet(condValue any) bool {
	_, ok := condValue.([]any)
	return ok
}

func applyNumber(op fields.Operator, value Value, condValue any) bool {
	if value.Kind != KindNumber {
		return false
	}
	subject := value.Num

	switch op {
	case fields.OpBetween:
		lo, hi, ok := toRange(condValue)
		return ok && subject >= lo && subject <= hi
	case fields.OpIn:
		return numberInSet(subject, condValue)
	case fields.OpNotIn:
		return isSet(condValue) && !numberInSet(subject, condValue)
	}

	want, ok := toNumber(condValue)
	if !ok {
		return false
	}
	switch op {
	case fields.OpEquals:
		return subject == want
	case fields.OpNotEquals:
		return subject != want
	case fields.OpGreaterThan:
		return subject > want
	case fields.OpGreaterOrEqual:
		return subject >= want
	case fields.OpLessThan:
		return subject < want
	case fields.OpLessOrEqual:
		return subject <= want
	default:
		return false
	}
}

func numberInSet(subject float64, condValue any) bool {
	set, ok := condValue.([]any)
	if !ok {
		return false
	}
	for _, v := range set {
		if n, ok := toNumber(v); ok && n == subject {
			return true
		}
	}
	return false
}

func applyDate(op fields.Operator, value Value, condValue any) bool {
	if value.Kind != KindTime {
		return false
	}
	subject := value.Time

	switch op {
	case fields.OpBefore:
		want, ok := toTime(condValue)
		return ok && subject.Before(want)
	case fields.OpAfter:
		want, ok := toTime(condValue)
		return ok && subject.After(want)
	case fields.OpBetween:
		bounds, ok := condValue.([]any)
		if !ok || len(bounds) != 2 {
			return false
		}
		lo, okLo := toTime(bounds[0])
		hi, okHi := toTime(bounds[1])
		return okLo && okHi && !subject.Before(lo) && !subject.After(hi)
	default:
		return false
	}
}

func applyBool(op fields.Operator, value Value, condValue any) bool {
	if value.Kind != KindBool {
		return false
	}
	want, ok := condValue.(bool)
	if !ok {
		return false
	}
	switch op {
	case fields.OpEquals:
		return value.Bool == want
	case fields.OpNotEquals:
		return value.Bool != want
	default:
		return false
	}
}

func applyArray(op fields.Operator, value Value, condValue any) bool {
	if value.Kind != KindStrings {
		return false
	}
	subject := value.Strs

	switch op {
	case fields.OpIsEmpty:
		return len(subject) == 0
	case fields.OpIsNotEmpty:
		return len(subject) > 0
	case fields.OpContains:
		want, ok := condValue.(string)
		return ok && arrayHas(subject, want)
	case fields.OpContainsAny:
		set, ok := condValue.([]any)
		if !ok {
			return false
		}
		for _, v := range set {
			if s, ok := v.(string); ok && arrayHas(subject, s) {
				return true
			}
		}
		return false
	case fields.OpContainsAll:
		set, ok := condValue.([]any)
		if !ok {
			return false
		}
		for _, v := range set {
			s, ok := v.(string)
			if !ok || !arrayHas(subject, s) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// arrayHas is case-insensitive: providers disagree on the casing of genres
// and labels.
func arrayHas(values []string, want string) bool {
	for _, v := range values {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func toRange(v any) (float64, float64, bool) {
	bounds, ok := v.([]any)
	if !ok || len(bounds) != 2 {
		return 0, 0, false
	}
	lo, okLo := toNumber(bounds[0])
	hi, okHi := toNumber(bounds[1])
	if !okLo || !okHi {
		return 0, 0, false
	}
	return lo, hi, true
}

// toTime accepts RFC 3339 timestamps, bare dates, and unix-epoch seconds.
func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed, true
		}
		if parsed, err := time.Parse("2006-01-02", t); err == nil {
			return parsed, true
		}
		return time.Time{}, false
	case float64:
		return time.Unix(int64(t), 0).UTC(), true
	case int64:
		return time.Unix(t, 0).UTC(), true
	default:
		return time.Time{}, false
	}
}
