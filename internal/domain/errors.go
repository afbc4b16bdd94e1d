package domain

import "errors"

var (
	// ErrRecipeNotFound is returned when the catalog has no recipe for the requested id
	ErrRecipeNotFound = errors.New("recipe not found in catalog")

	// ErrCatalogFailure is returned when a catalog request fails after all retries
	ErrCatalogFailure = errors.New("catalog request failed")

	// ErrMalformedResponse is returned when the catalog answers with a payload of the wrong shape
	ErrMalformedResponse = errors.New("malformed catalog response")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrKeyNotFound is returned by a KeyValueStore when the key has never been written
	ErrKeyNotFound = errors.New("key not found")

	// ErrStorageUnavailable is returned when the persistent store cannot be reached
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrMissingRecipeID is returned when a recipe object carries no usable id
	ErrMissingRecipeID = errors.New("recipe has no id")
)
