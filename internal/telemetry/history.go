// Package telemetry records every simulation tick for display collaborators,
// independently of measurement sessions.
package telemetry

import "time"

// DefaultCapacity is the number of ticks retained before the oldest entry is
// evicted.
const DefaultCapacity = 2000

// Entry is one simulation tick.
type Entry struct {
	Timestamp time.Time
	Measured  float64 // °C, sensor reading for this tick
	Ambient   float64 // °C, ambient temperature at this tick
}

// History is a fixed-capacity FIFO ring buffer of ticks.
type History struct {
	entries  []Entry
	capacity int
	head     int // next write position
	size     int // current number of entries stored
}

// NewHistory creates a history with the given capacity. Non-positive values
// select DefaultCapacity.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &History{
		entries:  make([]Entry, capacity),
		capacity: capacity,
	}
}

// Add appends an entry, overwriting the oldest one when full.
func (h *History) Add(e Entry) {
	h.entries[h.head] = e
	h.head = (h.head + 1) % h.capacity
	if h.size < h.capacity {
		h.size++
	}
}

// Len returns the number of stored entries.
func (h *History) Len() int { return h.size }

// Cap returns the capacity.
func (h *History) Cap() int { return h.capacity }

// Latest returns the most recently added entry.
func (h *History) Latest() (Entry, bool) {
	if h.size == 0 {
		return Entry{}, false
	}
	return h.entries[(h.head-1+h.capacity)%h.capacity], true
}

// Entries returns the stored entries in insertion order, oldest first.
func (h *History) Entries() []Entry {
	out := make([]Entry, h.size)
	start := (h.head - h.size + h.capacity) % h.capacity
	for i := 0; i < h.size; i++ {
		out[i] = h.entries[(start+i)%h.capacity]
	}
	return out
}

// Clear drops all entries.
func (h *History) Clear() {
	for i := range h.entries {
		h.entries[i] = Entry{}
	}
	h.head = 0
	h.size = 0
}
