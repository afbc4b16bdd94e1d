package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/recipebox/backend/internal/domain"
	"github.com/recipebox/backend/internal/infrastructure/spoonacular"
	"github.com/recipebox/backend/internal/usecase"
)

// RecipeQuerier answers catalog queries
type RecipeQuerier interface {
	Search(ctx context.Context, opts domain.SearchOptions) domain.SearchResult
	GetDetails(ctx context.Context, id domain.RecipeID) *domain.RecipeDetail
	GetRandom(ctx context.Context, count int, tags []string) []domain.RecipeSummary
}

// FavoritesManager owns the user's favorites
type FavoritesManager interface {
	Favorites() []domain.FavoriteRecord
	IsFavorite(id domain.RecipeID) bool
	Toggle(item []byte) (usecase.ToggleResult, bool)
	Clear()
	Hydrated() bool
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	recipes     RecipeQuerier
	favorites   FavoritesManager
	storageType string
}

// NewHandler creates a new HTTP handler
func NewHandler(recipes RecipeQuerier, favorites FavoritesManager, storageType string) *Handler {
	return &Handler{
		recipes:     recipes,
		favorites:   favorites,
		storageType: storageType,
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "healthy",
		"service":         "recipebox-backend",
		"version":         "1.0.0",
		"storage":         h.storageType,
		"favoritesLoaded": h.favorites.Hydrated(),
	})
}

// SearchRecipes handles GET /recipes/search
func (h *Handler) SearchRecipes(c *gin.Context) {
	offset, err := intQuery(c, "offset")
	if err != nil {
		badRequest(c, err)
		return
	}
	number, err := intQuery(c, "number")
	if err != nil {
		badRequest(c, err)
		return
	}

	opts := usecase.PrepareSearchOptions(domain.SearchOptions{
		Query:   c.Query("query"),
		Diet:    c.Query("diet"),
		Cuisine: c.Query("cuisine"),
		Type:    c.Query("type"),
		Offset:  offset,
		Limit:   number,
		Sort:    c.Query("sort"),
	})

	result := h.recipes.Search(c.Request.Context(), opts)

	c.JSON(http.StatusOK, gin.H{
		"results":      result.Results,
		"totalResults": result.TotalResults,
		"offset":       opts.Offset,
		"number":       opts.Limit,
		"hasMore":      usecase.HasMore(opts.Offset+len(result.Results), result.TotalResults),
	})
}

// RandomRecipes handles GET /recipes/random
func (h *Handler) RandomRecipes(c *gin.Context) {
	number, err := intQuery(c, "number")
	if err != nil {
		badRequest(c, err)
		return
	}

	var tags []string
	if raw := c.Query("tags"); raw != "" {
		tags = strings.Split(raw, ",")
	}

	c.JSON(http.StatusOK, gin.H{
		"recipes": h.recipes.GetRandom(c.Request.Context(), number, tags),
	})
}

// ListDiets returns the diet filters the catalog understands
func (h *Handler) ListDiets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"diets": usecase.SupportedDiets()})
}

// ListTypes returns the recipe type filters the catalog understands
func (h *Handler) ListTypes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"types": usecase.SupportedTypes()})
}

// GetRecipe returns a recipe with its derived display fields
func (h *Handler) GetRecipe(c *gin.Context) {
	id := domain.RecipeID(strings.TrimSpace(c.Param("id")))

	detail := h.recipes.GetDetails(c.Request.Context(), id)
	if detail == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "recipe not available"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"recipe":   spoonacular.BuildRecipeView(detail),
		"favorite": h.favorites.IsFavorite(id),
	})
}

// ListFavorites returns the favorites in the order they were added
func (h *Handler) ListFavorites(c *gin.Context) {
	favorites := h.favorites.Favorites()
	c.JSON(http.StatusOK, gin.H{
		"favorites": favorites,
		"count":     len(favorites),
	})
}

// GetFavorite reports whether a recipe is a favorite
func (h *Handler) GetFavorite(c *gin.Context) {
	id := domain.RecipeID(c.Param("id"))
	c.JSON(http.StatusOK, usecase.ToggleResult{ID: id, Favorite: h.favorites.IsFavorite(id)})
}

// ToggleFavorite adds or removes the recipe sent as the request body.
// Both catalog recipes and legacy meal objects are accepted. The response
// echoes the display title and image so clients can confirm the change.
func (h *Handler) ToggleFavorite(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil || len(body) == 0 {
		badRequest(c, domain.ErrInvalidRequest)
		return
	}

	result, ok := h.favorites.Toggle(body)
	if !ok {
		badRequest(c, domain.ErrMissingRecipeID)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":       result.ID,
		"favorite": result.Favorite,
		"title":    spoonacular.Title(body),
		"image":    spoonacular.Image(body),
	})
}

// ClearFavorites removes every favorite
func (h *Handler) ClearFavorites(c *gin.Context) {
	h.favorites.Clear()
	c.Status(http.StatusNoContent)
}

// intQuery parses an optional integer query parameter; absent means 0
func intQuery(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer, got %q", domain.ErrInvalidRequest, name, raw)
	}
	return n, nil
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
