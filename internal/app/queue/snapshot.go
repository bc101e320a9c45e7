package queue

import (
	"github.com/osa030/tunebox/internal/domain/track"
)

// Snapshot is a read-only copy of the engine state.
type Snapshot struct {
	Immediate []track.ID
	Context   Context
	Order     []int // Context positions in traversal order
	Cursor    int   // Index into Order
	Primed    bool
	Current   track.ID
	Source    Source
	Loop      Loop
	Shuffle   bool
}

// Snapshot returns a copy of the engine state.
func (e *Engine) Snapshot() Snapshot {
	return Snapshot{
		Immediate: append([]track.ID(nil), e.immediate...),
		Context:   e.ctx.clone(),
		Order:     append([]int(nil), e.order...),
		Cursor:    e.cursor,
		Primed:    e.primed,
		Current:   e.current,
		Source:    e.source,
		Loop:      e.loop,
		Shuffle:   e.shuffle,
	}
}

// Position returns the context position under the cursor, or -1.
func (s Snapshot) Position() int {
	if len(s.Order) == 0 {
		return -1
	}
	return s.Order[s.Cursor]
}

// Upcoming lists up to limit tracks that Next would return in turn, assuming
// no mode changes and no wrap. A limit of zero or less means no limit.
func (s Snapshot) Upcoming(limit int) []track.ID {
	out := append([]track.ID(nil), s.Immediate...)
	if s.Loop == LoopTrack && !s.Primed && s.Current != track.None {
		return clip(out, limit)
	}
	start := s.Cursor + 1
	if s.Primed {
		start = s.Cursor
	}
	for i := start; i < len(s.Order); i++ {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, s.Context.Entries[s.Order[i]])
	}
	return clip(out, limit)
}

func clip(ids []track.ID, limit int) []track.ID {
	if limit > 0 && len(ids) > limit {
		return ids[:limit]
	}
	return ids
}
