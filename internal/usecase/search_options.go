package usecase

import (
	"regexp"
	"strings"

	"github.com/recipebox/backend/internal/domain"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	DefaultSort     = "popularity"
)

var whitespaceRunPattern = regexp.MustCompile(`\s+`)

// PrepareSearchOptions cleans user input before it becomes request parameters:
// whitespace in the query is collapsed, blank filters become unset, the page
// size is clamped and the sort order defaults to popularity.
func PrepareSearchOptions(opts domain.SearchOptions) domain.SearchOptions {
	opts.Query = cleanFilter(opts.Query)
	opts.Diet = cleanFilter(opts.Diet)
	opts.Cuisine = cleanFilter(opts.Cuisine)
	opts.Type = cleanFilter(opts.Type)

	switch {
	case opts.Limit <= 0:
		opts.Limit = DefaultPageSize
	case opts.Limit > MaxPageSize:
		opts.Limit = MaxPageSize
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	opts.Sort = strings.TrimSpace(opts.Sort)
	if opts.Sort == "" {
		opts.Sort = DefaultSort
	}

	return opts
}

func cleanFilter(s string) string {
	return strings.TrimSpace(whitespaceRunPattern.ReplaceAllString(s, " "))
}

// HasMore reports whether another page can be requested after loaded results
func HasMore(loaded, total int) bool {
	return loaded < total
}
