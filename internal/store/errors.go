package store

import "errors"

var (
	ErrNotFound      = errors.New("itinerary item not found")
	ErrDuplicateItem = errors.New("duplicate itinerary item")
	ErrNoSnapshot    = errors.New("no snapshot available")
)
