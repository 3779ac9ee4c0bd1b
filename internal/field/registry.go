package field

import (
	"fmt"
	"sort"
)

// Registry indexes a device's descriptors by register id and by name.
//
// Both indexes are built at registration time. Once sealed the registry
// is immutable.
//
// Thread Safety:
//   - Register is not safe for concurrent use.
//   - After Seal, all lookups are safe from any goroutine.
type Registry struct {
	ordered []Descriptor
	byID    map[ID]int
	byName  map[string]int
	sealed  bool
}

// NewRegistry registers ds in order and seals the result.
//
// Returns the first registration error encountered.
func NewRegistry(ds ...Descriptor) (*Registry, error) {
	r := &Registry{
		byID:   make(map[ID]int, len(ds)),
		byName: make(map[string]int, len(ds)),
	}
	for _, d := range ds {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	r.Seal()
	return r, nil
}

// Register adds a descriptor.
//
// Returns:
//   - ErrDuplicateID if the register id is already taken
//   - ErrDuplicateName if the property name is already taken
//   - ErrRegistrySealed after Seal
func (r *Registry) Register(d Descriptor) error {
	if r.sealed {
		return ErrRegistrySealed
	}
	if d.Name == "" {
		return fmt.Errorf("%w: register %s has no name", ErrInvalidDescriptor, d.ID)
	}
	if r.byID == nil {
		r.byID = make(map[ID]int)
		r.byName = make(map[string]int)
	}
	if _, exists := r.byID[d.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, d.ID)
	}
	if _, exists := r.byName[d.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateName, d.Name)
	}

	r.ordered = append(r.ordered, d)
	r.byID[d.ID] = len(r.ordered) - 1
	r.byName[d.Name] = len(r.ordered) - 1
	return nil
}

// Seal freezes the registry.
func (r *Registry) Seal() {
	r.sealed = true
}

// ByID returns the descriptor for a register id.
func (r *Registry) ByID(id ID) (Descriptor, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Descriptor{}, false
	}
	return r.ordered[i], true
}

// ByName returns the descriptor for a property name.
func (r *Registry) ByName(name string) (Descriptor, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Descriptor{}, false
	}
	return r.ordered[i], true
}

// Descriptors returns all descriptors in registration order.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Len returns the number of registered descriptors.
func (r *Registry) Len() int {
	return len(r.ordered)
}

// LongestStaticChain returns the number of cascade levels the longest
// acyclic path through static attachments needs. Edges closing a cycle and
// dynamic attachments are not counted.
func (r *Registry) LongestStaticChain() int {
	onPath := make(map[ID]bool, len(r.ordered))
	var walk func(id ID) int
	walk = func(id ID) int {
		d, ok := r.ByID(id)
		if !ok || d.Attach.IsDynamic() {
			return 0
		}
		onPath[id] = true
		defer delete(onPath, id)

		longest := 0
		for _, next := range d.Attach.Resolve(0, true) {
			if onPath[next] {
				continue
			}
			longest = max(longest, 1+walk(next))
		}
		return longest
	}

	longest := 0
	for _, d := range r.ordered {
		longest = max(longest, walk(d.ID))
	}
	return longest
}

// StaticCycles finds cycles in the static attachment graph.
//
// Dynamic attachments are skipped since their edges depend on runtime
// values. Each cycle is returned once, starting from its smallest id.
// The engine tolerates cycles by bounding cascade depth; this exists so a
// device can warn about them when it is built.
func (r *Registry) StaticCycles() [][]ID {
	const (
		unvisited = iota
		active
		done
	)

	state := make(map[ID]int, len(r.ordered))
	seen := make(map[string]bool)
	var (
		cycles [][]ID
		stack  []ID
		visit  func(id ID)
	)

	visit = func(id ID) {
		state[id] = active
		stack = append(stack, id)

		if d, ok := r.ByID(id); ok && !d.Attach.IsDynamic() {
			for _, next := range d.Attach.Resolve(0, true) {
				switch state[next] {
				case active:
					cycle := cycleFrom(stack, next)
					key := fmt.Sprint(cycle)
					if !seen[key] {
						seen[key] = true
						cycles = append(cycles, cycle)
					}
				case unvisited:
					visit(next)
				}
			}
		}

		stack = stack[:len(stack)-1]
		state[id] = done
	}

	ids := make([]ID, 0, len(r.ordered))
	for _, d := range r.ordered {
		ids = append(ids, d.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if state[id] == unvisited {
			visit(id)
		}
	}
	return cycles
}

// cycleFrom extracts the cycle closing at start from a DFS stack and
// rotates it so the smallest id comes first.
func cycleFrom(stack []ID, start ID) []ID {
	i := len(stack) - 1
	for i >= 0 && stack[i] != start {
		i--
	}
	cycle := append([]ID(nil), stack[i:]...)

	minAt := 0
	for j, id := range cycle {
		if id < cycle[minAt] {
			minAt = j
		}
	}
	rotated := make([]ID, 0, len(cycle))
	rotated = append(rotated, cycle[minAt:]...)
	return append(rotated, cycle[:minAt]...)
}
