package pricecache

import "time"

// Point is one observed price for a symbol.
type Point struct {
	Price float64   `json:"price"`
	At    time.Time `json:"at"`
}

// Cache is the price-history store. The in-process implementation is a
// bounded per-key ring buffer; the redis implementation backs multi-instance
// deployments. Writers are single-per-key (the poller), readers are many.
type Cache interface {
	// Append records a new observation for the symbol.
	Append(key string, p Point) error
	// Latest returns the most recent observation, or nil when none exists.
	Latest(key string) (*Point, error)
	// History returns observations oldest-first.
	History(key string) ([]Point, error)
}
