package shift

import "strings"

// GroupResolver maps an operator-group label to its stored id.
type GroupResolver interface {
	ResolveGroup(label string) (int32, bool)
}

// GroupTable is a case-insensitive label -> id lookup.
// Keys are stored upper-cased; use NewGroupTable to build one.
type GroupTable map[string]int32

// NewGroupTable builds a table from label/id pairs.
func NewGroupTable(groups map[string]int32) GroupTable {
	t := make(GroupTable, len(groups))
	for label, id := range groups {
		t[normalizeGroup(label)] = id
	}
	return t
}

// ResolveGroup implements GroupResolver.
func (t GroupTable) ResolveGroup(label string) (int32, bool) {
	id, ok := t[normalizeGroup(label)]
	return id, ok
}

// DefaultGroupNames are the operator crews seeded for a new plant.
var DefaultGroupNames = []string{"BROMO", "SEMERU", "KRAKATAU"}

func normalizeGroup(label string) string {
	return strings.ToUpper(strings.TrimSpace(label))
}
