package kb

import (
	"sort"
	"strings"

	"asmlsp/internal/schema"
)

// index maps case-folded names to ordered hit slices and keeps a sorted key
// table for prefix scans.
type index[H any] struct {
	hits   map[string][]H
	labels map[string]string
	keys   []string
}

func newIndex[H any]() *index[H] {
	return &index[H]{hits: make(map[string][]H), labels: make(map[string]string)}
}

func (ix *index[H]) add(name string, h H) {
	key := schema.Fold(name)
	if key == "" {
		return
	}
	if _, ok := ix.hits[key]; !ok {
		ix.labels[key] = strings.TrimSpace(name)
	}
	ix.hits[key] = append(ix.hits[key], h)
}

// seal builds the sorted key table. The index is read-only afterwards.
func (ix *index[H]) seal() {
	ix.keys = make([]string, 0, len(ix.hits))
	for k := range ix.hits {
		ix.keys = append(ix.keys, k)
	}
	sort.Strings(ix.keys)
}

func (ix *index[H]) get(name string) []H {
	return ix.hits[schema.Fold(name)]
}

// scan calls fn for every key starting with prefix, in key order.
func (ix *index[H]) scan(prefix string, fn func(label string, hits []H)) {
	p := schema.Fold(prefix)
	for i := sort.SearchStrings(ix.keys, p); i < len(ix.keys) && strings.HasPrefix(ix.keys[i], p); i++ {
		k := ix.keys[i]
		fn(ix.labels[k], ix.hits[k])
	}
}

func (ix *index[H]) len() int { return len(ix.keys) }
