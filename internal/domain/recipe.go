package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Scalar is a JSON string or number carried as display text. Truthy mirrors
// how the assistant's payloads are meant to be read: absent, null, "" and 0
// are all "not provided".
type Scalar struct {
	text   string
	truthy bool
}

// Text builds a Scalar from a string.
func Text(s string) Scalar {
	return Scalar{text: s, truthy: s != ""}
}

// Number builds a Scalar from a number, formatted in its shortest form.
func Number(f float64) Scalar {
	return Scalar{text: strconv.FormatFloat(f, 'f', -1, 64), truthy: f != 0}
}

func (s Scalar) String() string { return s.text }

// Truthy reports whether the value was provided and non-empty.
func (s Scalar) Truthy() bool { return s.truthy }

// UnmarshalJSON accepts strings and numbers; anything else decodes to the
// zero Scalar.
func (s *Scalar) UnmarshalJSON(data []byte) error {
	v, _ := decodeScalar(data)
	*s = v
	return nil
}

// decodeScalar reports ok=false when raw holds an object, array or boolean.
func decodeScalar(raw json.RawMessage) (Scalar, bool) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return Scalar{}, false
	}
	switch t := v.(type) {
	case nil:
		return Scalar{}, true
	case string:
		return Text(t), true
	case float64:
		return Number(t), true
	default:
		return Scalar{}, false
	}
}

// Ingredient is one line of a recipe's ingredient list.
type Ingredient struct {
	Name            Scalar
	QuantityGrams   Scalar
	BakerPercentage Scalar
}

// BakersPercentages keeps the order in which the assistant listed them.
type BakersPercentages = *orderedmap.OrderedMap[string, Scalar]

// Recipe is the structured result of a successful conversation. Nil slices
// and maps mean the field was absent. Notes holds every other scalar field
// (equipment_notes, storage_tips, ...) keyed by its wire name.
type Recipe struct {
	Dish              Scalar
	Ingredients       []Ingredient
	BakersPercentages BakersPercentages
	Hydration         Scalar
	Timeline          []string
	Notes             map[string]Scalar

	// Dropped lists fields whose shape did not match and were ignored.
	Dropped []string
}

// ParseRecipe decodes a recipe payload. Only a non-object payload is an
// error; individual fields with an unexpected shape are dropped.
func ParseRecipe(data []byte) (*Recipe, error) {
	var r Recipe
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *Recipe) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("domain: recipe must be a JSON object: %w", err)
	}
	if fields == nil {
		return fmt.Errorf("domain: recipe must be a JSON object")
	}

	out := Recipe{Notes: map[string]Scalar{}}
	for key, raw := range fields {
		switch key {
		case "dish":
			out.Dish = out.scalarField(key, raw)
		case "hydration":
			out.Hydration = out.scalarField(key, raw)
		case "ingredients":
			out.Ingredients = out.ingredientsField(raw)
		case "bakers_percentages":
			out.BakersPercentages = out.percentagesField(raw)
		case "timeline":
			out.Timeline = out.timelineField(raw)
		default:
			if v, ok := decodeScalar(raw); ok {
				out.Notes[key] = v
			} else {
				out.Dropped = append(out.Dropped, key)
			}
		}
	}
	sort.Strings(out.Dropped)
	*r = out
	return nil
}

// Note returns the note stored under a wire field name.
func (r *Recipe) Note(field string) Scalar {
	if r == nil || r.Notes == nil {
		return Scalar{}
	}
	return r.Notes[field]
}

func (r *Recipe) scalarField(key string, raw json.RawMessage) Scalar {
	v, ok := decodeScalar(raw)
	if !ok {
		r.Dropped = append(r.Dropped, key)
	}
	return v
}

func (r *Recipe) ingredientsField(raw json.RawMessage) []Ingredient {
	if isNull(raw) {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		r.Dropped = append(r.Dropped, "ingredients")
		return nil
	}
	out := make([]Ingredient, 0, len(items))
	for i, item := range items {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(item, &fields); err != nil || fields == nil {
			r.Dropped = append(r.Dropped, fmt.Sprintf("ingredients[%d]", i))
			continue
		}
		var ing Ingredient
		ing.Name, _ = decodeScalar(fields["name"])
		ing.QuantityGrams, _ = decodeScalar(fields["quantity_grams"])
		ing.BakerPercentage, _ = decodeScalar(fields["baker_percentage"])
		out = append(out, ing)
	}
	return out
}

func (r *Recipe) percentagesField(raw json.RawMessage) BakersPercentages {
	if isNull(raw) {
		return nil
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		r.Dropped = append(r.Dropped, "bakers_percentages")
		return nil
	}
	om := orderedmap.New[string, Scalar]()
	if err := json.Unmarshal(trimmed, om); err != nil {
		r.Dropped = append(r.Dropped, "bakers_percentages")
		return nil
	}
	return om
}

func (r *Recipe) timelineField(raw json.RawMessage) []string {
	if isNull(raw) {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		r.Dropped = append(r.Dropped, "timeline")
		return nil
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		v, ok := decodeScalar(item)
		if !ok {
			r.Dropped = append(r.Dropped, fmt.Sprintf("timeline[%d]", i))
			continue
		}
		out = append(out, v.String())
	}
	return out
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
