// File: internal/graphstore/key.go
package graphstore

import (
	"sort"
	"strings"
)

// KeyDelimiter separates participant ids inside a canonical hyperedge key.
// Node ids are generated as "<kind>-<uuid>" and never contain a comma.
const KeyDelimiter = ","

// EncodeKey derives the canonical hyperedge key for a participant id set.
// The key is order-independent: ids are deduplicated, sorted
// lexicographically and joined with the delimiter, so every permutation of
// the same set produces the same key.
func EncodeKey(participantIDs []string) string {
	if len(participantIDs) == 0 {
		return ""
	}
	ids := make([]string, 0, len(participantIDs))
	seen := make(map[string]struct{}, len(participantIDs))
	for _, id := range participantIDs {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return strings.Join(ids, KeyDelimiter)
}

// HyperedgeKey derives the canonical key from a hyperedge's endpoint sets.
func HyperedgeKey(source, target, other []string) string {
	ids := make([]string, 0, len(source)+len(target)+len(other))
	ids = append(ids, source...)
	ids = append(ids, target...)
	ids = append(ids, other...)
	return EncodeKey(ids)
}
