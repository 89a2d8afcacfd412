// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package intercept

import (
	"slices"
	"sync"

	"github.com/bureau-foundation/pipespy/lib/win32"
)

// Direction is the role a handle plays in a pipe.
type Direction uint8

const (
	// Read marks the read end of a pipe.
	Read Direction = iota + 1

	// Write marks the write end of a pipe.
	Write
)

// Directions lists every direction in propagation order.
var Directions = []Direction{Read, Write}

func (direction Direction) String() string {
	switch direction {
	case Read:
		return "read"
	case Write:
		return "write"
	default:
		return "unknown"
	}
}

// Registry tracks which handles are known pipe endpoints. Both sets
// only grow. Safe for concurrent use.
type Registry struct {
	mutex sync.RWMutex
	read  map[win32.Handle]struct{}
	write map[win32.Handle]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		read:  make(map[win32.Handle]struct{}),
		write: make(map[win32.Handle]struct{}),
	}
}

// set returns the map for direction. Callers hold the mutex.
func (registry *Registry) set(direction Direction) map[win32.Handle]struct{} {
	switch direction {
	case Read:
		return registry.read
	case Write:
		return registry.write
	}
	return nil
}

// Classify records handle as a pipe endpoint in direction. Repeated
// classification is a no-op.
func (registry *Registry) Classify(direction Direction, handle win32.Handle) {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()
	if set := registry.set(direction); set != nil {
		set[handle] = struct{}{}
	}
}

// IsClassified reports whether handle is a known endpoint in
// direction.
func (registry *Registry) IsClassified(direction Direction, handle win32.Handle) bool {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()
	_, ok := registry.set(direction)[handle]
	return ok
}

// PropagateDuplicate gives target every classification source has and
// returns the directions that were propagated, in Directions order.
// Call it only after the duplication succeeded.
func (registry *Registry) PropagateDuplicate(source, target win32.Handle) []Direction {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()

	var propagated []Direction
	for _, direction := range Directions {
		set := registry.set(direction)
		if _, ok := set[source]; ok {
			set[target] = struct{}{}
			propagated = append(propagated, direction)
		}
	}
	return propagated
}

// Snapshot is a point-in-time copy of the registry, sorted by handle
// value.
type Snapshot struct {
	Read  []win32.Handle
	Write []win32.Handle
}

// Snapshot copies both sets.
func (registry *Registry) Snapshot() Snapshot {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()
	return Snapshot{
		Read:  sortedHandles(registry.read),
		Write: sortedHandles(registry.write),
	}
}

func sortedHandles(set map[win32.Handle]struct{}) []win32.Handle {
	handles := make([]win32.Handle, 0, len(set))
	for handle := range set {
		handles = append(handles, handle)
	}
	slices.Sort(handles)
	return handles
}
