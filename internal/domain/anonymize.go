package domain

import (
	"strconv"
	"sync"
)

// AnonymizedPrefix prefixes every allocated participant identifier.
const AnonymizedPrefix = "anon_worker_"

// IDAllocator maps raw worker identifiers to anonymized identifiers in
// first-seen order, so decoding the same raw input twice yields the same
// ids. Create one allocator per pipeline run and pass it to the decoder.
type IDAllocator struct {
	mu  sync.Mutex
	ids map[string]string
}

// NewIDAllocator returns an empty allocator.
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{ids: make(map[string]string)}
}

// Anonymize returns the identifier allocated to workerID, allocating the
// next one if the worker has not been seen before.
func (a *IDAllocator) Anonymize(workerID string) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	if id, ok := a.ids[workerID]; ok {
		return id
	}
	id := AnonymizedPrefix + strconv.Itoa(len(a.ids))
	a.ids[workerID] = id
	return id
}

// Len returns the number of allocated identifiers.
func (a *IDAllocator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.ids)
}
