package shift

import (
	"context"
	"fmt"
	"time"
)

// StartLookup returns the start instants of orders scheduled within [start, end).
type StartLookup func(ctx context.Context, start, end time.Time) ([]time.Time, error)

// ResolveEnd returns the end of the shift containing t, pulled in to the start of
// the earliest order that begins strictly between t and that shift end.
func (c Calendar) ResolveEnd(ctx context.Context, t time.Time, lookup StartLookup) (time.Time, error) {
	window := c.WindowOf(t)

	starts, err := lookup(ctx, window.Start, window.End)
	if err != nil {
		return time.Time{}, fmt.Errorf("lookup order starts: %w", err)
	}

	end := window.End
	for _, s := range starts {
		if s.After(t) && s.Before(end) {
			end = s
		}
	}
	return end, nil
}
