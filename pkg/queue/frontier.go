package queue

import (
	"github.com/sirupsen/logrus"

	"flora-crawler/pkg/models"
)

// Frontier is the FIFO queue of pending crawl entries.
// It is owned by a single scheduler and is not safe for concurrent use.
type Frontier struct {
	items  []models.FrontierEntry
	head   int
	closed bool
	log    *logrus.Entry
}

// NewFrontier creates an empty frontier
func NewFrontier(log *logrus.Entry) *Frontier {
	return &Frontier{log: log}
}

// Push appends an entry at the tail. Entries pushed after Close are dropped.
func (f *Frontier) Push(entry models.FrontierEntry) {
	if f.closed {
		f.log.Warnf("Attempted to push entry to closed frontier: %s", entry.Identity)
		return
	}
	f.items = append(f.items, entry)
}

// Pop removes and returns the entry at the head.
// Returns false once the frontier is empty.
func (f *Frontier) Pop() (models.FrontierEntry, bool) {
	if f.head >= len(f.items) {
		return models.FrontierEntry{}, false
	}
	entry := f.items[f.head]
	f.items[f.head] = models.FrontierEntry{}
	f.head++

	// Reclaim the consumed prefix once it dominates the backing array
	if f.head > 64 && f.head*2 >= len(f.items) {
		f.items = append(f.items[:0], f.items[f.head:]...)
		f.head = 0
	}
	return entry, true
}

// Len returns the number of pending entries
func (f *Frontier) Len() int {
	return len(f.items) - f.head
}

// Close stops the frontier from accepting new entries. Pending entries can still be popped.
func (f *Frontier) Close() {
	f.closed = true
}
