package spoonacular

import (
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/recipebox/backend/internal/domain"
)

const untitled = "Untitled"

// ToFavoriteRecord normalizes a recipe object into the canonical favorite
// record. Two input shapes are understood: catalog recipes (id, title, image,
// readyInMinutes, servings, dishTypes, diets) and legacy meal-database
// entries (idMeal, strMeal, strMealThumb, strCategory). For each field the
// catalog name wins when present and non-null:
//
//	id        <- id, idMeal              (required; empty string, 0, null rejected)
//	title     <- title, strMeal, "Untitled"
//	image     <- image, strMealThumb, null
//	dishTypes <- dishTypes, [strCategory] when non-empty, []
//	diets     <- diets, []
//
// Inputs that are not JSON objects or carry no usable id yield ErrMissingRecipeID.
func ToFavoriteRecord(raw []byte) (domain.FavoriteRecord, error) {
	if !gjson.ValidBytes(raw) {
		return domain.FavoriteRecord{}, fmt.Errorf("%w: invalid JSON", domain.ErrMissingRecipeID)
	}
	item := gjson.ParseBytes(raw)
	if !item.IsObject() {
		return domain.FavoriteRecord{}, fmt.Errorf("%w: not an object", domain.ErrMissingRecipeID)
	}

	id, ok := recipeID(coalesce(item.Get("id"), item.Get("idMeal")))
	if !ok {
		return domain.FavoriteRecord{}, domain.ErrMissingRecipeID
	}

	record := domain.FavoriteRecord{
		ID:        id,
		DishTypes: []string{},
		Diets:     []string{},
	}

	record.Title = title(item, present)
	record.Image = image(item, present)
	record.ReadyInMinutes = optionalInt(item.Get("readyInMinutes"))
	record.Servings = optionalInt(item.Get("servings"))

	if dishTypes := item.Get("dishTypes"); dishTypes.IsArray() {
		record.DishTypes = stringList(dishTypes)
	} else if category := item.Get("strCategory"); truthy(category) {
		record.DishTypes = []string{category.String()}
	}
	if diets := item.Get("diets"); diets.IsArray() {
		record.Diets = stringList(diets)
	}

	return record, nil
}

// Title returns the display title of a recipe in either shape. Unlike
// ToFavoriteRecord, an empty title falls through to the next candidate.
func Title(raw []byte) string {
	return title(gjson.ParseBytes(raw), truthy)
}

// Image returns the image URL of a recipe in either shape, or nil. An empty
// image falls through like in Title.
func Image(raw []byte) *string {
	return image(gjson.ParseBytes(raw), truthy)
}

func title(item gjson.Result, usable func(gjson.Result) bool) string {
	if t := firstOf(usable, item.Get("title"), item.Get("strMeal")); usable(t) {
		return t.String()
	}
	return untitled
}

func image(item gjson.Result, usable func(gjson.Result) bool) *string {
	if i := firstOf(usable, item.Get("image"), item.Get("strMealThumb")); usable(i) {
		s := i.String()
		return &s
	}
	return nil
}

// present reports whether the field exists and is not null
func present(r gjson.Result) bool {
	return r.Exists() && r.Type != gjson.Null
}

// coalesce returns the first present result
func coalesce(results ...gjson.Result) gjson.Result {
	return firstOf(present, results...)
}

func firstOf(usable func(gjson.Result) bool, results ...gjson.Result) gjson.Result {
	for _, r := range results {
		if usable(r) {
			return r
		}
	}
	return gjson.Result{}
}

// truthy mirrors JSON-value truthiness: false, null, 0 and "" are false
func truthy(r gjson.Result) bool {
	switch r.Type {
	case gjson.String:
		return r.Str != ""
	case gjson.Number:
		return r.Num != 0
	case gjson.True, gjson.JSON:
		return true
	default:
		return false
	}
}

func recipeID(r gjson.Result) (domain.RecipeID, bool) {
	if !truthy(r) {
		return "", false
	}
	switch r.Type {
	case gjson.String:
		return domain.RecipeID(r.Str), true
	case gjson.Number:
		return domain.RecipeID(r.Raw), true
	default:
		// objects, arrays and booleans cannot key a favorite
		return "", false
	}
}

func optionalInt(r gjson.Result) *int {
	if r.Type != gjson.Number {
		return nil
	}
	n := int(r.Int())
	return &n
}

func stringList(r gjson.Result) []string {
	list := []string{}
	r.ForEach(func(_, value gjson.Result) bool {
		if value.Type == gjson.String {
			list = append(list, value.Str)
		}
		return true
	})
	return list
}
