package spoonacular

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/recipebox/backend/internal/domain"
)

// NutrientCalories is the nutrient name carrying the energy value
const NutrientCalories = "Calories"

const shareSummaryLength = 250

var htmlTagPattern = regexp.MustCompile(`<[^>]+>`)

// StripHTML removes markup from the catalog's free-text fields (summary, instructions)
func StripHTML(html string) string {
	if html == "" {
		return ""
	}
	text := htmlTagPattern.ReplaceAllString(html, "")
	text = strings.ReplaceAll(text, "&nbsp;", " ")
	text = strings.ReplaceAll(text, "&amp;", "&")
	return strings.TrimSpace(text)
}

// Calories returns the rounded calorie count, or nil when the recipe has no
// (or a zero) Calories nutrient.
func Calories(recipe *domain.RecipeDetail) *int {
	if recipe == nil || recipe.Nutrition == nil {
		return nil
	}
	amount := FindNutrientAmount(recipe.Nutrition.Nutrients, NutrientCalories)
	if amount == 0 {
		return nil
	}
	rounded := int(math.Round(amount))
	return &rounded
}

// FindNutrientAmount finds a nutrient amount by exact name
func FindNutrientAmount(nutrients []domain.Nutrient, name string) float64 {
	for _, nutrient := range nutrients {
		if nutrient.Name == name {
			return nutrient.Amount
		}
	}
	return 0.0
}

// Ingredients returns the display line of every ingredient, skipping blanks
func Ingredients(recipe *domain.RecipeDetail) []string {
	lines := []string{}
	if recipe == nil {
		return lines
	}
	for _, ingredient := range recipe.ExtendedIngredients {
		if line := strings.TrimSpace(ingredient.Original); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// Steps flattens all instruction groups into one ordered list of steps
func Steps(recipe *domain.RecipeDetail) []string {
	steps := []string{}
	if recipe == nil {
		return steps
	}
	for _, group := range recipe.AnalyzedInstructions {
		for _, step := range group.Steps {
			steps = append(steps, step.Step)
		}
	}
	return steps
}

// PrimaryTag picks the label shown on a recipe card: first dish type, else
// first diet, else first cuisine.
func PrimaryTag(dishTypes, diets, cuisines []string) string {
	for _, tags := range [][]string{dishTypes, diets, cuisines} {
		if len(tags) > 0 && tags[0] != "" {
			return tags[0]
		}
	}
	return ""
}

// FormatMinutes renders a preparation time, empty when unknown
func FormatMinutes(minutes int) string {
	if minutes == 0 {
		return ""
	}
	return fmt.Sprintf("%d min", minutes)
}

// ShareText builds the plain-text message used when sharing a recipe
func ShareText(recipe *domain.RecipeDetail) string {
	if recipe == nil {
		return ""
	}
	summary := []rune(StripHTML(recipe.Summary))
	if len(summary) > shareSummaryLength {
		summary = summary[:shareSummaryLength]
	}
	return fmt.Sprintf("%s\nReady in: %s • Servings: %d\n\n%s...\n\n%s",
		recipe.Title,
		FormatMinutes(recipe.ReadyInMinutes),
		recipe.Servings,
		string(summary),
		recipe.SourceURL,
	)
}

// BuildRecipeView attaches every derived display field to a recipe detail
func BuildRecipeView(recipe *domain.RecipeDetail) *domain.RecipeView {
	if recipe == nil {
		return nil
	}
	return &domain.RecipeView{
		RecipeDetail:     recipe,
		SummaryText:      StripHTML(recipe.Summary),
		InstructionsText: StripHTML(recipe.Instructions),
		Calories:         Calories(recipe),
		IngredientLines:  Ingredients(recipe),
		Steps:            Steps(recipe),
		ReadyIn:          FormatMinutes(recipe.ReadyInMinutes),
		PrimaryTag:       PrimaryTag(recipe.DishTypes, recipe.Diets, recipe.Cuisines),
		ShareText:        ShareText(recipe),
	}
}
