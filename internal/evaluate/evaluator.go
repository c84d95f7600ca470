package evaluate

import (
	"time"

	"github.com/mchestr/plex-wrapped-sub005/internal/criteria"
	"github.com/mchestr/plex-wrapped-sub005/internal/fields"
	"github.com/mchestr/plex-wrapped-sub005/internal/media"
)

// ConditionResult records the outcome of one leaf condition during a traced
// evaluation.
type ConditionResult struct {
	ConditionID string          `json:"conditionId"`
	Field       string          `json:"field"`
	Operator    fields.Operator `json:"operator"`
	Matched     bool            `json:"matched"`
	Resolved    any             `json:"resolved"`
}

// Trace is the detailed result of EvaluateWithTrace.
type Trace struct {
	Matches    bool              `json:"matches"`
	Conditions []ConditionResult `json:"conditions"`
}

// Evaluator evaluates criteria trees against media item snapshots. It is
// immutable after construction and safe for concurrent use.
type Evaluator struct {
	registry *fields.Registry
	now      func() time.Time
}

// New creates an evaluator over the given field catalog.
func New(registry *fields.Registry) *Evaluator {
	return &Evaluator{registry: registry, now: time.Now}
}

// NewAt creates an evaluator with a fixed clock, for tests.
func NewAt(registry *fields.Registry, now time.Time) *Evaluator {
	return &Evaluator{registry: registry, now: func() time.Time { return now }}
}

// Evaluate reports whether the item matches the criteria tree. Group
// evaluation short-circuits; use EvaluateWithTrace when every leaf result
// is needed.
func (e *Evaluator) Evaluate(item *media.Item, node criteria.Node) bool {
	now := e.now()
	switch n := node.(type) {
	case *criteria.Group:
		return e.evaluateGroup(item, n, now)
	case *criteria.Condition:
		return e.evaluateCondition(item, n, now)
	default:
		return false
	}
}

// EvaluateWithTrace evaluates the tree without short-circuiting so the
// trace contains one result per leaf condition, in depth-first order.
func (e *Evaluator) EvaluateWithTrace(item *media.Item, node criteria.Node) Trace {
	trace := Trace{}
	trace.Matches = e.traced(item, node, e.now(), &trace.Conditions)
	return trace
}

func (e *Evaluator) evaluateGroup(item *media.Item, g *criteria.Group, now time.Time) bool {
	if g.Operator == criteria.GroupOr {
		for _, child := range g.Conditions {
			if e.evaluateNode(item, child, now) {
				return true
			}
		}
		return false
	}
	for _, child := range g.Conditions {
		if !e.evaluateNode(item, child, now) {
			return false
		}
	}
	return true
}

func (e *Evaluator) evaluateNode(item *media.Item, node criteria.Node, now time.Time) bool {
	switch n := node.(type) {
	case *criteria.Group:
		return e.evaluateGroup(item, n, now)
	case *criteria.Condition:
		return e.evaluateCondition(item, n, now)
	default:
		return false
	}
}

func (e *Evaluator) traced(item *media.Item, node criteria.Node, now time.Time, results *[]ConditionResult) bool {
	switch n := node.(type) {
	case *criteria.Group:
		// All children are evaluated so the trace is complete.
		matched := n.Operator != criteria.GroupOr
		for _, child := range n.Conditions {
			childMatched := e.traced(item, child, now, results)
			if n.Operator == criteria.GroupOr {
				matched = matched || childMatched
			} else {
				matched = matched && childMatched
			}
		}
		return matched
	case *criteria.Condition:
		value, matched := e.applyCondition(item, n, now)
		*results = append(*results, ConditionResult{
			ConditionID: n.ID,
			Field:       n.Field,
			Operator:    n.Operator,
			Matched:     matched,
			Resolved:    value.Interface(),
		})
		return matched
	default:
		return false
	}
}

func (e *Evaluator) evaluateCondition(item *media.Item, c *criteria.Condition, now time.Time) bool {
	_, matched := e.applyCondition(item, c, now)
	return matched
}

// applyCondition resolves the condition's field and applies its operator.
// Malformed data never raises; it resolves to no match.
func (e *Evaluator) applyCondition(item *media.Item, c *criteria.Condition, now time.Time) (Value, bool) {
	def, ok := e.registry.Definition(c.Field)
	if !ok {
		return undefined(), false
	}

	value := Resolve(item, def, now)

	switch c.Operator {
	case fields.OpIsNull:
		return value, value.Absent()
	case fields.OpIsNotNull:
		return value, !value.Absent()
	case fields.OpOlderThan, fields.OpNewerThan:
		return value, applyAge(c, value, now)
	}

	if value.Kind == KindUndefined {
		return value, false
	}

	switch def.Type {
	case fields.TypeString, fields.TypeEnum:
		return value, applyString(c.Operator, value, c.Value)
	case fields.TypeNumber:
		return value, applyNumber(c.Operator, value, c.Value)
	case fields.TypeDate:
		return value, applyDate(c.Operator, value, c.Value)
	case fields.TypeBoolean:
		return value, applyBool(c.Operator, value, c.Value)
	case fields.TypeArray:
		return value, applyArray(c.Operator, value, c.Value)
	default:
		return value, false
	}
}

// applyAge handles olderThan/newerThan. A null date is treated as
// infinitely old: never-watched items satisfy staleness conditions. This
// polarity is deliberate; an undefined value (integration missing) still
// never matches.
func applyAge(c *criteria.Condition, value Value, now time.Time) bool {
	if value.Kind == KindUndefined {
		return false
	}
	if value.Kind == KindNull {
		return c.Operator == fields.OpOlderThan
	}
	if value.Kind != KindTime {
		return false
	}

	amount, ok := toNumber(c.Value)
	if !ok {
		return false
	}
	cutoff := now.Add(-durationFor(amount, c.ValueUnit))

	if c.Operator == fields.OpOlderThan {
		return value.Time.Before(cutoff)
	}
	return value.Time.After(cutoff)
}

func durationFor(amount float64, unit fields.Unit) time.Duration {
	hours := amount
	switch unit {
	case fields.UnitHours:
	case fields.UnitDays:
		hours *= 24
	case fields.UnitWeeks:
		hours *= 24 * 7
	case fields.UnitMonths:
		hours *= 24 * 30
	case fields.UnitYears:
		hours *= 24 * 365
	default:
		hours *= 24
	}
	return time.Duration(hours * float64(time.Hour))
}
