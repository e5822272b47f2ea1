package shift

import (
	"errors"
	"time"
)

var (
	ErrEmptySelection = errors.New("group_selections must not be empty")
	ErrInvalidRange   = errors.New("start must be before end")
)

// Segment is the slice of a run attributed to one shift/group pair.
type Segment struct {
	Start      time.Time `json:"actual_start"`
	End        time.Time `json:"actual_end"`
	Shift      Label     `json:"shift"`
	GroupLabel string    `json:"group"`
	GroupID    int32     `json:"group_id"`
}

// Skip is a shift slot whose group label could not be resolved.
// No segment is produced for it, but the slot still consumes a place
// in the rotation.
type Skip struct {
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Shift      Label     `json:"shift"`
	GroupLabel string    `json:"group"`
}

// Split is the outcome of partitioning one run.
type Split struct {
	Segments []Segment
	Skipped  []Skip
}

// Split partitions [start, end) along shift boundaries and assigns the groups in
// selections round-robin, one per shift slot. A label that groups cannot resolve
// is recorded in Skipped; its slot is not persisted but the rotation still moves on.
//
// The result is deterministic: identical inputs give identical output.
func (c Calendar) Split(start, end time.Time, selections []string, groups GroupResolver) (Split, error) {
	if len(selections) == 0 {
		return Split{}, ErrEmptySelection
	}
	if !start.Before(end) {
		return Split{}, ErrInvalidRange
	}

	var out Split
	cursor := start
	index := 0

	for cursor.Before(end) {
		window := c.WindowOf(cursor)
		label := selections[index%len(selections)]
		index++

		segStart := laterOf(cursor, window.Start)
		segEnd := earlierOf(end, window.End)

		groupID, ok := groups.ResolveGroup(label)
		if !ok {
			out.Skipped = append(out.Skipped, Skip{
				Start:      segStart,
				End:        segEnd,
				Shift:      window.Label,
				GroupLabel: label,
			})
			cursor = window.End
			continue
		}

		if segStart.Before(segEnd) {
			out.Segments = append(out.Segments, Segment{
				Start:      segStart,
				End:        segEnd,
				Shift:      window.Label,
				GroupLabel: label,
				GroupID:    groupID,
			})
		}

		// window.End is strictly after cursor, so the loop always progresses.
		cursor = window.End
	}

	return out, nil
}

func laterOf(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earlierOf(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
