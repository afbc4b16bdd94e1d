package domain

import (
	"encoding/json"
	"strings"
)

// RecipeID identifies a recipe. The catalog uses numeric ids while the legacy
// meal database used numeric strings, so the id is kept in textual form.
type RecipeID string

// IsZero reports whether the id is unusable (empty or the number zero).
func (id RecipeID) IsZero() bool {
	return id == "" || id == "0"
}

// String implements fmt.Stringer
func (id RecipeID) String() string {
	return string(id)
}

// MarshalJSON writes integer ids as JSON numbers and everything else as strings.
func (id RecipeID) MarshalJSON() ([]byte, error) {
	if isIntegerLiteral(string(id)) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// UnmarshalJSON accepts both JSON numbers and strings.
func (id *RecipeID) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	switch {
	case raw == "null":
		*id = ""
		return nil
	case strings.HasPrefix(raw, `"`):
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = RecipeID(s)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*id = RecipeID(n.String())
		return nil
	}
}

func isIntegerLiteral(s string) bool {
	s = strings.TrimPrefix(s, "-")
	if s == "" || (len(s) > 1 && s[0] == '0') {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// FavoriteRecord is the canonical minimal form a favorited recipe is stored in,
// whatever shape the recipe had when it was favorited.
type FavoriteRecord struct {
	ID             RecipeID `json:"id"`
	Title          string   `json:"title"`
	Image          *string  `json:"image"`
	ReadyInMinutes *int     `json:"readyInMinutes"`
	Servings       *int     `json:"servings"`
	DishTypes      []string `json:"dishTypes"`
	Diets          []string `json:"diets"`
}
