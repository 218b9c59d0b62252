package render

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"bread-widget/internal/config"
	"bread-widget/internal/domain"
)

const (
	headingIngredients = "Ingredients"
	headingPercentages = "Baker's Percentages"
	headingTimeline    = "Timeline"
	labelHydration     = "Hydration:"
)

// RecipeRenderer turns a validated recipe into recipe panel content.
type RecipeRenderer struct {
	notes []config.NoteField
}

// NewRecipeRenderer renders the given note fields, in order, after the
// timeline.
func NewRecipeRenderer(notes []config.NoteField) *RecipeRenderer {
	return &RecipeRenderer{notes: append([]config.NoteField(nil), notes...)}
}

// Render returns fresh nodes for the recipe panel. Absent or empty fields
// are skipped; a nil recipe renders nothing.
func (r *RecipeRenderer) Render(rec *domain.Recipe) []*html.Node {
	if rec == nil {
		return nil
	}

	var out []*html.Node
	if rec.Dish.Truthy() {
		out = append(out, textElement(atom.H2, rec.Dish.String()))
	}

	if rec.Ingredients != nil {
		list := element(atom.Ul, attr("class", "ingredients"))
		for _, ing := range rec.Ingredients {
			withChildren(list, textElement(atom.Li, IngredientLine(ing)))
		}
		out = append(out, textElement(atom.H3, headingIngredients), list)
	}

	if rec.BakersPercentages != nil {
		list := element(atom.Ul, attr("class", "bakers-percentages"))
		for pair := rec.BakersPercentages.Oldest(); pair != nil; pair = pair.Next() {
			withChildren(list, textElement(atom.Li, pair.Key+": "+pair.Value.String()+"%"))
		}
		out = append(out, textElement(atom.H3, headingPercentages), list)
	}

	if rec.Hydration.Truthy() {
		out = append(out, withChildren(element(atom.P, attr("class", "hydration")),
			textElement(atom.Strong, labelHydration),
			text(" "+rec.Hydration.String()),
		))
	}

	if rec.Timeline != nil {
		list := element(atom.Ol, attr("class", "timeline"))
		for _, step := range rec.Timeline {
			withChildren(list, textElement(atom.Li, step))
		}
		out = append(out, textElement(atom.H3, headingTimeline), list)
	}

	for _, f := range r.notes {
		v := rec.Note(f.Key)
		if !v.Truthy() {
			continue
		}
		out = append(out, textElement(atom.H4, f.Heading), textElement(atom.P, v.String()))
	}
	return out
}

// IngredientLine formats one ingredient as "name[: Ng][ (P%)]".
func IngredientLine(ing domain.Ingredient) string {
	line := ing.Name.String()
	if ing.QuantityGrams.Truthy() {
		line += ": " + ing.QuantityGrams.String() + "g"
	}
	if ing.BakerPercentage.Truthy() {
		line += " (" + ing.BakerPercentage.String() + "%)"
	}
	return line
}
