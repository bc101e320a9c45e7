package queue

import (
	"github.com/samber/lo"

	"github.com/osa030/tunebox/internal/domain/playlist"
	"github.com/osa030/tunebox/internal/domain/track"
)

// ReconcileLibrary strips removed tracks from both queues. It reports true
// when the current track was removed; the caller must then stop playback.
func (e *Engine) ReconcileLibrary(removed []track.ID) bool {
	if len(removed) == 0 {
		return false
	}
	gone := lo.SliceToMap(removed, func(id track.ID) (track.ID, struct{}) {
		return id, struct{}{}
	})
	isGone := func(id track.ID) bool {
		_, ok := gone[id]
		return ok
	}

	e.immediate = lo.Reject(e.immediate, func(id track.ID, _ int) bool { return isGone(id) })
	e.dropPositions(func(pos int) bool { return isGone(e.ctx.Entries[pos]) })

	if e.current != track.None && isGone(e.current) {
		e.current = track.None
		e.source = SourceNone
		return true
	}
	return false
}

// ReconcileLibraryAdd appends a new library track to an open library context.
func (e *Engine) ReconcileLibraryAdd(id track.ID) {
	if e.ctx.Kind != KindLibrary {
		return
	}
	e.insertPosition(len(e.ctx.Entries), id)
}

// ReconcilePlaylist translates the cursor after an edit of the named playlist.
// Edits of playlists other than the open one are ignored.
func (e *Engine) ReconcilePlaylist(name string, edit playlist.Edit) {
	if e.ctx.Kind != KindPlaylist || e.ctx.Name != name {
		return
	}
	switch edit.Op {
	case playlist.OpInsert:
		if edit.Pos >= 0 && edit.Pos <= len(e.ctx.Entries) {
			e.insertPosition(edit.Pos, edit.ID)
		}
	case playlist.OpRemove:
		if edit.Pos >= 0 && edit.Pos < len(e.ctx.Entries) {
			e.dropPositions(func(pos int) bool { return pos == edit.Pos })
		}
	}
}

// ReconcilePlaylistMove follows the entry at from to its new index to. The
// cursor stays on the same entry, including when that entry is the one moved.
func (e *Engine) ReconcilePlaylistMove(name string, from, to int) {
	if e.ctx.Kind != KindPlaylist || e.ctx.Name != name {
		return
	}
	n := len(e.ctx.Entries)
	if from < 0 || from >= n || to < 0 || to >= n || from == to {
		return
	}

	moved := func(pos int) int {
		switch {
		case pos == from:
			return to
		case from < to && pos > from && pos <= to:
			return pos - 1
		case to < from && pos >= to && pos < from:
			return pos + 1
		default:
			return pos
		}
	}

	id := e.ctx.Entries[from]
	entries := append(e.ctx.Entries[:from:from], e.ctx.Entries[from+1:]...)
	entries = append(entries[:to], append([]track.ID{id}, entries[to:]...)...)
	e.ctx.Entries = entries

	if !e.shuffle {
		e.cursor = moved(e.order[e.cursor])
		return
	}
	for i, pos := range e.order {
		e.order[i] = moved(pos)
	}
}

// RenamePlaylist follows a rename of the open playlist.
func (e *Engine) RenamePlaylist(from, to string) {
	if e.ctx.Kind == KindPlaylist && e.ctx.Name == from {
		e.ctx.Name = to
	}
}

// DetachPlaylist turns the open playlist into an anonymous snapshot once the
// playlist is deleted. A later playlist reusing the name is not tied to it.
func (e *Engine) DetachPlaylist(name string) {
	if e.ctx.Kind == KindPlaylist && e.ctx.Name == name {
		e.ctx.Name = ""
	}
}

// dropPositions removes the context positions for which drop is true. The
// cursor stays on its entry, or moves primed to the nearest following
// survivor when its own entry is dropped.
func (e *Engine) dropPositions(drop func(pos int) bool) {
	n := len(e.ctx.Entries)
	if n == 0 {
		return
	}

	remap := make([]int, n)
	kept := make([]track.ID, 0, n)
	for pos, id := range e.ctx.Entries {
		if drop(pos) {
			remap[pos] = -1
			continue
		}
		remap[pos] = len(kept)
		kept = append(kept, id)
	}
	if len(kept) == n {
		return
	}

	anchorDropped := remap[e.order[e.cursor]] < 0
	order := make([]int, 0, len(kept))
	cursor := -1
	for i, pos := range e.order {
		if remap[pos] < 0 {
			continue
		}
		if cursor < 0 && i >= e.cursor {
			cursor = len(order)
		}
		order = append(order, remap[pos])
	}
	e.ctx.Entries = kept
	e.order = order

	switch {
	case len(order) == 0:
		e.cursor = 0
		e.primed = false
		if e.source == SourceContext {
			e.source = SourceNone
		}
	case !anchorDropped:
		e.cursor = cursor
	case cursor >= 0:
		e.cursor = cursor
		e.primed = true
	case e.loop == LoopPlaylist:
		if e.shuffle {
			e.order = e.reshuffle(len(order), -1)
		}
		e.cursor = 0
		e.primed = true
	default:
		// Nothing follows: rest on the last entry so Next reports the end.
		e.cursor = len(order) - 1
		e.primed = false
	}
}

// insertPosition inserts id at context position pos. The cursor keeps its
// entry. Under shuffle the new entry lands somewhere in the untraversed tail.
func (e *Engine) insertPosition(pos int, id track.ID) {
	wasEmpty := len(e.ctx.Entries) == 0

	e.ctx.Entries = append(e.ctx.Entries, track.None)
	copy(e.ctx.Entries[pos+1:], e.ctx.Entries[pos:])
	e.ctx.Entries[pos] = id

	if wasEmpty {
		e.order = []int{0}
		e.cursor = 0
		e.primed = true
		return
	}

	for i, p := range e.order {
		if p >= pos {
			e.order[i] = p + 1
		}
	}
	at := pos
	if e.shuffle {
		at = e.cursor + 1 + e.rng.IntN(len(e.order)-e.cursor)
	} else if e.cursor >= pos {
		e.cursor++
	}
	e.order = append(e.order, 0)
	copy(e.order[at+1:], e.order[at:])
	e.order[at] = pos
}
