// Package queue decides which track plays next.
//
// The Engine keeps two independent queues. The immediate queue is a FIFO of
// explicitly queued tracks; each entry is consumed once and is never reachable
// by Previous. The context queue is a cursor into the opened context (a single
// track, a playlist or the whole library) and moves in both directions.
package queue

import (
	"math/rand/v2"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"github.com/osa030/tunebox/internal/domain/playlist"
	"github.com/osa030/tunebox/internal/domain/track"
)

// Errors
var (
	ErrEmptyContext = errors.New("empty context")
	ErrEndOfQueue   = errors.New("end of queue") // Reported when loop is off and the context is exhausted
)

// Catalog tells the engine which tracks exist.
type Catalog interface {
	Has(id track.ID) bool
}

// Context is a playback context: the ordered track IDs to traverse.
type Context struct {
	Kind    Kind
	Name    string // Playlist name for KindPlaylist
	Entries []track.ID
}

// Len returns the number of entries.
func (c Context) Len() int {
	return len(c.Entries)
}

func (c Context) clone() Context {
	c.Entries = append([]track.ID(nil), c.Entries...)
	return c
}

// Option configures an Engine.
type Option func(*Engine)

// WithSeed makes shuffling deterministic.
func WithSeed(seed uint64) Option {
	return func(e *Engine) {
		e.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithLoop sets the initial loop mode.
func WithLoop(l Loop) Option {
	return func(e *Engine) { e.loop = l }
}

// WithShuffle sets the initial shuffle flag.
func WithShuffle(on bool) Option {
	return func(e *Engine) { e.shuffle = on }
}

// Engine is the playback ordering state machine.
//
// An Engine is not safe for concurrent use; the player loop owns it.
type Engine struct {
	catalog Catalog
	rng     *rand.Rand

	immediate []track.ID

	ctx    Context
	order  []int // Traversal order over context positions; identity unless shuffled
	cursor int   // Index into order
	primed bool  // Cursor item selected by Open but not loaded yet

	current track.ID
	source  Source

	loop    Loop
	shuffle bool
}

// New creates an engine with an empty context.
func New(catalog Catalog, opts ...Option) *Engine {
	e := &Engine{catalog: catalog}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return e
}

// Enqueue appends id to the immediate queue.
func (e *Engine) Enqueue(id track.ID) error {
	if !e.catalog.Has(id) {
		return errors.Wrapf(track.ErrUnknownTrack, "track %d", id)
	}
	e.immediate = append(e.immediate, id)
	return nil
}

// EnqueueNext puts ids, in order, at the head of the immediate queue so they
// play right after the current track.
func (e *Engine) EnqueueNext(ids ...track.ID) error {
	for _, id := range ids {
		if !e.catalog.Has(id) {
			return errors.Wrapf(track.ErrUnknownTrack, "track %d", id)
		}
	}
	e.immediate = append(append([]track.ID(nil), ids...), e.immediate...)
	return nil
}

// ClearQueue empties the immediate queue and returns how many entries it held.
func (e *Engine) ClearQueue() int {
	n := len(e.immediate)
	e.immediate = nil
	return n
}

// Open replaces the context and points the cursor at pos. Playback does not
// start; the next Play or Next loads the opened item.
func (e *Engine) Open(c Context, pos int) error {
	if c.Len() == 0 {
		return errors.Wrapf(ErrEmptyContext, "open %s %q", c.Kind, c.Name)
	}
	if pos < 0 || pos >= c.Len() {
		return errors.Wrapf(playlist.ErrIndexOutOfRange, "open at %d (len %d)", pos, c.Len())
	}

	e.ctx = c.clone()
	if e.shuffle {
		e.order = e.shuffledFrom(pos, c.Len())
		e.cursor = 0
	} else {
		e.order = identity(c.Len())
		e.cursor = pos
	}
	e.primed = true
	if e.source == SourceContext {
		e.source = SourceNone
	}
	return nil
}

// Play resolves an explicit play instruction. A primed cursor is loaded
// without advancing; otherwise the current track is returned. With nothing
// current, the immediate queue head or the cursor item is loaded.
func (e *Engine) Play() (track.ID, error) {
	if e.primed {
		return e.load(), nil
	}
	if e.current != track.None {
		return e.current, nil
	}
	if len(e.immediate) > 0 {
		return e.pop(), nil
	}
	if len(e.order) == 0 {
		return track.None, ErrEmptyContext
	}
	return e.load(), nil
}

// Next selects the following track.
func (e *Engine) Next() (track.ID, error) {
	if len(e.immediate) > 0 {
		return e.pop(), nil
	}
	if e.primed {
		return e.load(), nil
	}
	if e.loop == LoopTrack && e.current != track.None {
		return e.current, nil
	}

	n := len(e.order)
	if n == 0 {
		return track.None, ErrEmptyContext
	}
	if e.cursor+1 < n {
		e.cursor++
		return e.load(), nil
	}

	if e.loop != LoopPlaylist {
		e.current = track.None
		e.source = SourceNone
		return track.None, ErrEndOfQueue
	}
	last := e.order[e.cursor]
	if e.shuffle {
		e.order = e.reshuffle(n, last)
	}
	e.cursor = 0
	return e.load(), nil
}

// Previous steps the cursor back. The immediate queue is ignored; when the
// current track did not come from the cursor the cursor item is returned
// without moving.
func (e *Engine) Previous() (track.ID, error) {
	n := len(e.order)
	if n == 0 {
		return track.None, ErrEmptyContext
	}
	if e.primed || e.source != SourceContext {
		return e.load(), nil
	}
	switch {
	case e.cursor > 0:
		e.cursor--
	case e.loop == LoopPlaylist:
		e.cursor = n - 1
	}
	return e.load(), nil
}

// Current returns the current track, or track.None.
func (e *Engine) Current() track.ID {
	return e.current
}

// Primed reports whether an opened item is waiting to be loaded.
func (e *Engine) Primed() bool {
	return e.primed
}

// Loop returns the loop mode.
func (e *Engine) Loop() Loop {
	return e.loop
}

// SetLoop sets the loop mode.
func (e *Engine) SetLoop(l Loop) {
	e.loop = l
}

// CycleLoop advances the loop mode and returns the new one.
func (e *Engine) CycleLoop() Loop {
	e.loop = e.loop.Cycle()
	return e.loop
}

// Shuffle returns the shuffle flag.
func (e *Engine) Shuffle() bool {
	return e.shuffle
}

// SetShuffle turns shuffling on or off. The cursor keeps pointing at the
// same context entry; when turned on the rest of the context is permuted
// after it.
func (e *Engine) SetShuffle(on bool) {
	if on == e.shuffle {
		return
	}
	e.shuffle = on
	n := len(e.order)
	if n == 0 {
		return
	}
	pos := e.order[e.cursor]
	if on {
		e.order = e.shuffledFrom(pos, n)
		e.cursor = 0
		return
	}
	e.order = identity(n)
	e.cursor = pos
}

// ToggleShuffle flips the shuffle flag and returns the new value.
func (e *Engine) ToggleShuffle() bool {
	e.SetShuffle(!e.shuffle)
	return e.shuffle
}

// pop consumes the head of the immediate queue.
func (e *Engine) pop() track.ID {
	id := e.immediate[0]
	e.immediate = e.immediate[1:]
	e.current = id
	e.source = SourceImmediate
	return id
}

// load makes the cursor item current.
func (e *Engine) load() track.ID {
	e.primed = false
	e.current = e.ctx.Entries[e.order[e.cursor]]
	e.source = SourceContext
	return e.current
}

func identity(n int) []int {
	return lo.Range(n)
}

// shuffledFrom returns a random order of n positions starting with first.
func (e *Engine) shuffledFrom(first, n int) []int {
	rest := lo.Without(identity(n), first)
	e.rng.Shuffle(len(rest), func(i, j int) { rest[i], rest[j] = rest[j], rest[i] })
	return append([]int{first}, rest...)
}

// reshuffle returns a new random order whose first element differs from
// last whenever there is a choice.
func (e *Engine) reshuffle(n, last int) []int {
	order := e.rng.Perm(n)
	if n > 1 && order[0] == last {
		j := 1 + e.rng.IntN(n-1)
		order[0], order[j] = order[j], order[0]
	}
	return order
}
