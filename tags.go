package adblock

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// tagRegistry is the set of currently enabled rule-subset tags. It survives
// client swaps and is replayed onto every new client.
type tagRegistry struct {
	tags map[string]struct{}
}

func newTagRegistry() (r *tagRegistry) {
	return &tagRegistry{tags: map[string]struct{}{}}
}

// add inserts tag into the registry and reports whether it was not there
// before.
func (r *tagRegistry) add(tag string) (added bool) {
	if _, ok := r.tags[tag]; ok {
		return false
	}

	r.tags[tag] = struct{}{}

	return true
}

// remove deletes tag from the registry. Removing an absent tag is a no-op.
func (r *tagRegistry) remove(tag string) {
	delete(r.tags, tag)
}

// has reports whether tag is enabled.
func (r *tagRegistry) has(tag string) (ok bool) {
	_, ok = r.tags[tag]

	return ok
}

// list returns the enabled tags in a stable order.
func (r *tagRegistry) list() (tags []string) {
	tags = maps.Keys(r.tags)
	slices.Sort(tags)

	return tags
}
