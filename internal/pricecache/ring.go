package pricecache

import "sync"

// Ring is the in-process Cache: a bounded ring buffer per key owned by a
// single long-lived service instance.
type Ring struct {
	mu       sync.RWMutex
	capacity int
	buckets  map[string]*ringBucket
}

type ringBucket struct {
	points []Point
	next   int
	full   bool
}

// NewRing creates a ring cache keeping up to capacity points per key.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 288
	}
	return &Ring{capacity: capacity, buckets: make(map[string]*ringBucket)}
}

// Append records a new observation, evicting the oldest once full.
func (r *Ring) Append(key string, p Point) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.buckets[key]
	if b == nil {
		b = &ringBucket{points: make([]Point, r.capacity)}
		r.buckets[key] = b
	}
	b.points[b.next] = p
	b.next = (b.next + 1) % r.capacity
	if b.next == 0 {
		b.full = true
	}
	return nil
}

// Latest returns the most recent observation for the key.
func (r *Ring) Latest(key string) (*Point, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b := r.buckets[key]
	if b == nil || (!b.full && b.next == 0) {
		return nil, nil
	}
	idx := (b.next - 1 + r.capacity) % r.capacity
	p := b.points[idx]
	return &p, nil
}

// History returns observations oldest-first.
func (r *Ring) History(key string) ([]Point, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b := r.buckets[key]
	if b == nil {
		return nil, nil
	}

	var out []Point
	if b.full {
		out = append(out, b.points[b.next:]...)
	}
	out = append(out, b.points[:b.next]...)
	return out, nil
}
