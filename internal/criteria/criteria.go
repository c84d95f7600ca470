// Package criteria models the condition/group tree that defines a rule's
// matching logic, including its JSON wire form and validation against the
// field catalog.
package criteria

import (
	"encoding/json"
	"fmt"

	"github.com/mchestr/plex-wrapped-sub005/internal/fields"
)

// GroupOperator combines the results of a group's children.
type GroupOperator string

const (
	GroupAnd GroupOperator = "AND"
	GroupOr  GroupOperator = "OR"
)

// Node is either a Condition or a Group.
type Node interface {
	node()
}

// Condition is a single field comparison.
type Condition struct {
	ID        string          `json:"id"`
	Field     string          `json:"field"`
	Operator  fields.Operator `json:"operator"`
	Value     any             `json:"value,omitempty"`
	ValueUnit fields.Unit     `json:"valueUnit,omitempty"`
}

func (*Condition) node() {}

// Group combines child nodes with AND or OR semantics.
type Group struct {
	ID         string        `json:"id"`
	Operator   GroupOperator `json:"operator"`
	Conditions []Node        `json:"conditions"`
}

func (*Group) node() {}

// UnmarshalJSON decodes a group, dispatching each child to the right
// concrete type.
func (g *Group) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID         string            `json:"id"`
		Operator   GroupOperator     `json:"operator"`
		Conditions []json.RawMessage `json:"conditions"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	g.ID = raw.ID
	g.Operator = raw.Operator
	g.Conditions = make([]Node, 0, len(raw.Conditions))
	for _, child := range raw.Conditions {
		node, err := Parse(child)
		if err != nil {
			return err
		}
		g.Conditions = append(g.Conditions, node)
	}
	return nil
}

// Parse decodes a criteria node from JSON. A node with a "conditions" key
// is a group; anything else is a condition.
func Parse(data []byte) (Node, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("invalid criteria node: %w", err)
	}

	if _, isGroup := probe["conditions"]; isGroup {
		group := &Group{}
		if err := json.Unmarshal(data, group); err != nil {
			return nil, err
		}
		return group, nil
	}

	cond := &Condition{}
	if err := json.Unmarshal(data, cond); err != nil {
		return nil, err
	}
	return cond, nil
}

// Marshal encodes a criteria node to JSON.
func Marshal(n Node) ([]byte, error) {
	return json.Marshal(n)
}

// Leaves returns every leaf condition in the tree, in depth-first order.
func Leaves(n Node) []*Condition {
	switch v := n.(type) {
	case *Condition:
		return []*Condition{v}
	case *Group:
		var out []*Condition
		for _, child := range v.Conditions {
			out = append(out, Leaves(child)...)
		}
		return out
	default:
		return nil
	}
}
