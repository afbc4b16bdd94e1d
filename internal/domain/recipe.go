package domain

// RecipeSummary is a recipe as returned by catalog search and random picks
// when recipe information is requested inline.
type RecipeSummary struct {
	ID             int      `json:"id"`
	Title          string   `json:"title"`
	Image          string   `json:"image,omitempty"`
	ImageType      string   `json:"imageType,omitempty"`
	ReadyInMinutes int      `json:"readyInMinutes,omitempty"`
	Servings       int      `json:"servings,omitempty"`
	SourceURL      string   `json:"sourceUrl,omitempty"`
	Summary        string   `json:"summary,omitempty"`
	HealthScore    float64  `json:"healthScore,omitempty"`
	AggregateLikes int      `json:"aggregateLikes,omitempty"`
	Vegetarian     bool     `json:"vegetarian,omitempty"`
	Vegan          bool     `json:"vegan,omitempty"`
	GlutenFree     bool     `json:"glutenFree,omitempty"`
	DairyFree      bool     `json:"dairyFree,omitempty"`
	DishTypes      []string `json:"dishTypes,omitempty"`
	Diets          []string `json:"diets,omitempty"`
	Cuisines       []string `json:"cuisines,omitempty"`
}

// RecipeDetail is the full recipe returned by the information endpoint
type RecipeDetail struct {
	RecipeSummary
	Instructions         string             `json:"instructions,omitempty"`
	ExtendedIngredients  []Ingredient       `json:"extendedIngredients,omitempty"`
	AnalyzedInstructions []InstructionGroup `json:"analyzedInstructions,omitempty"`
	Nutrition            *Nutrition         `json:"nutrition,omitempty"`
}

// Ingredient is one entry of a recipe's extended ingredient list
type Ingredient struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	Original string  `json:"original"`
	Amount   float64 `json:"amount"`
	Unit     string  `json:"unit"`
}

// InstructionGroup is a named block of ordered steps
type InstructionGroup struct {
	Name  string            `json:"name"`
	Steps []InstructionStep `json:"steps"`
}

// InstructionStep is a single numbered step
type InstructionStep struct {
	Number int    `json:"number"`
	Step   string `json:"step"`
}

// Nutrition holds the nutrient breakdown returned with includeNutrition=true
type Nutrition struct {
	Nutrients []Nutrient `json:"nutrients"`
}

// Nutrient is a single nutrient amount
type Nutrient struct {
	Name                string  `json:"name"`
	Amount              float64 `json:"amount"`
	Unit                string  `json:"unit"`
	PercentOfDailyNeeds float64 `json:"percentOfDailyNeeds,omitempty"`
}

// SearchOptions are the filters of a catalog search. Empty strings mean unset.
type SearchOptions struct {
	Query   string
	Diet    string
	Cuisine string
	Type    string
	Offset  int
	Limit   int
	Sort    string
}

// SearchResult is one page of search results
type SearchResult struct {
	Results      []RecipeSummary `json:"results"`
	TotalResults int             `json:"totalResults"`
}

// RecipeView is a recipe detail enriched with the derived display fields
// used by the detail screen.
type RecipeView struct {
	*RecipeDetail
	SummaryText      string   `json:"summaryText"`
	InstructionsText string   `json:"instructionsText"`
	Calories         *int     `json:"calories"`
	IngredientLines  []string `json:"ingredientLines"`
	Steps            []string `json:"steps"`
	ReadyIn          string   `json:"readyIn"`
	PrimaryTag       string   `json:"primaryTag"`
	ShareText        string   `json:"shareText"`
}
