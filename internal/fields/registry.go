package fields

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mchestr/plex-wrapped-sub005/internal/media"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Registry provides read-only lookups over the field catalog.
type Registry struct {
	fields []Field
	byKey  map[string]*Field
}

// Load parses the embedded catalog and validates it. Called once at process
// start; the returned registry is immutable and safe for concurrent use.
func Load() (*Registry, error) {
	var defs []Field
	if err := yaml.Unmarshal(catalogYAML, &defs); err != nil {
		return nil, fmt.Errorf("failed to parse field catalog: %w", err)
	}

	r := &Registry{
		fields: defs,
		byKey:  make(map[string]*Field, len(defs)),
	}

	for i := range r.fields {
		f := &r.fields[i]
		if err := prepareField(f); err != nil {
			return nil, err
		}
		if _, exists := r.byKey[f.Key]; exists {
			return nil, fmt.Errorf("duplicate field key %q in catalog", f.Key)
		}
		r.byKey[f.Key] = f
	}

	return r, nil
}

// prepareField derives the namespace/name pair, defaults the operator set,
// and checks catalog invariants.
func prepareField(f *Field) error {
	if f.Key == "" {
		return fmt.Errorf("field with empty key in catalog")
	}
	if len(f.MediaTypes) == 0 {
		return fmt.Errorf("field %q has no applicable media types", f.Key)
	}

	if ns, name, ok := strings.Cut(f.Key, "."); ok {
		f.Namespace = ns
		f.Name = name
	} else {
		f.Name = f.Key
	}

	legal := OperatorsForType(f.Type)
	if legal == nil {
		return fmt.Errorf("field %q has unknown type %q", f.Key, f.Type)
	}

	if len(f.Operators) == 0 {
		f.Operators = legal
	} else {
		for _, op := range f.Operators {
			if !OperatorLegalForType(op, f.Type) {
				return fmt.Errorf("field %q allows operator %q, illegal for type %q", f.Key, op, f.Type)
			}
		}
	}

	if f.Type == TypeEnum && len(f.EnumValues) == 0 {
		return fmt.Errorf("enum field %q has no enum values", f.Key)
	}

	return nil
}

// Definition returns the field with the given key, or false if unknown.
func (r *Registry) Definition(key string) (*Field, bool) {
	f, ok := r.byKey[key]
	return f, ok
}

// All returns every field in catalog order.
func (r *Registry) All() []Field {
	return r.fields
}

// ForMediaType returns the fields queryable for the given media type, in
// catalog order.
func (r *Registry) ForMediaType(mt media.Type) []Field {
	var out []Field
	for i := range r.fields {
		if r.fields[i].AppliesTo(mt) {
			out = append(out, r.fields[i])
		}
	}
	return out
}

// GroupedByCategory returns the applicable fields keyed by category, with
// Categories listing the keys in first-seen catalog order.
func (r *Registry) GroupedByCategory(mt media.Type) (map[string][]Field, []string) {
	groups := make(map[string][]Field)
	var order []string
	for i := range r.fields {
		f := &r.fields[i]
		if !f.AppliesTo(mt) {
			continue
		}
		if _, seen := groups[f.Category]; !seen {
			order = append(order, f.Category)
		}
		groups[f.Category] = append(groups[f.Category], *f)
	}
	return groups, order
}

// GroupedBySource returns the applicable fields keyed by data source.
func (r *Registry) GroupedBySource(mt media.Type) map[DataSource][]Field {
	groups := make(map[DataSource][]Field)
	for i := range r.fields {
		f := &r.fields[i]
		if f.AppliesTo(mt) {
			groups[f.Source] = append(groups[f.Source], *f)
		}
	}
	return groups
}

// Sources returns every data source present in the catalog, sorted.
func (r *Registry) Sources() []DataSource {
	seen := make(map[DataSource]bool)
	for i := range r.fields {
		seen[r.fields[i].Source] = true
	}
	out := make([]DataSource, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
