package player

import (
	"github.com/cockroachdb/errors"

	"github.com/osa030/tunebox/internal/app/notification"
	"github.com/osa030/tunebox/internal/domain/playlist"
	"github.com/osa030/tunebox/internal/domain/track"
)

// CreatePlaylist creates an empty playlist.
func (p *Player) CreatePlaylist(name string) error {
	return p.do(func() error {
		pl, err := p.playlists.Create(name)
		if err != nil {
			return err
		}
		p.persist("playlist", p.store.PutPlaylist(p.ctx, pl))
		p.publish(notification.KindPlaylistChanged)
		return nil
	})
}

// DeletePlaylist deletes a playlist. An open context over it keeps playing
// its last known entries.
func (p *Player) DeletePlaylist(name string) error {
	return p.do(func() error {
		if err := p.playlists.Delete(name); err != nil {
			return err
		}
		p.queue.DetachPlaylist(name)
		p.persist("delete playlist", p.store.DeletePlaylist(p.ctx, name))
		p.publish(notification.KindPlaylistChanged)
		return nil
	})
}

// RenamePlaylist renames a playlist.
func (p *Player) RenamePlaylist(from, to string) error {
	return p.do(func() error {
		if err := p.playlists.Rename(from, to); err != nil {
			return err
		}
		p.queue.RenamePlaylist(from, to)
		p.persist("rename playlist", p.store.RenamePlaylist(p.ctx, from, to))
		p.publish(notification.KindPlaylistChanged)
		return nil
	})
}

// Playlist returns a pruned copy of a playlist.
func (p *Player) Playlist(name string) (*playlist.Playlist, error) {
	return call(p, func() (*playlist.Playlist, error) {
		pl, dropped, err := p.playlists.Get(name)
		if err != nil {
			return nil, err
		}
		if dropped > 0 {
			p.persist("playlist", p.store.PutPlaylist(p.ctx, pl))
		}
		return pl, nil
	})
}

// Playlists returns pruned copies of all playlists, sorted by name.
func (p *Player) Playlists() ([]*playlist.Playlist, error) {
	return call(p, func() ([]*playlist.Playlist, error) {
		names := p.playlists.Names()
		out := make([]*playlist.Playlist, 0, len(names))
		for _, name := range names {
			pl, dropped, err := p.playlists.Get(name)
			if err != nil {
				return nil, err
			}
			if dropped > 0 {
				p.persist("playlist", p.store.PutPlaylist(p.ctx, pl))
			}
			out = append(out, pl)
		}
		return out, nil
	})
}

// PlaylistAppend appends tracks to a playlist.
func (p *Player) PlaylistAppend(name string, ids ...track.ID) error {
	return p.do(func() error {
		if err := p.checkTracks(ids); err != nil {
			return err
		}
		pl, _, err := p.playlists.Get(name)
		if err != nil {
			return err
		}
		edits := make([]playlist.Edit, len(ids))
		for i, id := range ids {
			edits[i] = playlist.Insert(pl.Len()+i, id)
		}
		return p.edit(name, edits)
	})
}

// PlaylistInsert inserts a track before pos.
func (p *Player) PlaylistInsert(name string, pos int, id track.ID) error {
	return p.do(func() error {
		if err := p.checkTracks([]track.ID{id}); err != nil {
			return err
		}
		return p.edit(name, []playlist.Edit{playlist.Insert(pos, id)})
	})
}

// PlaylistRemove removes the entry at pos.
func (p *Player) PlaylistRemove(name string, pos int) error {
	return p.do(func() error {
		return p.edit(name, []playlist.Edit{playlist.Remove(pos)})
	})
}

// PlaylistMove moves the entry at from to to.
func (p *Player) PlaylistMove(name string, from, to int) error {
	return p.do(func() error {
		pl, _, err := p.playlists.Get(name)
		if err != nil {
			return err
		}
		edits, err := pl.MoveEdits(from, to)
		if err != nil {
			return err
		}
		for _, e := range edits {
			if _, pl, err = p.playlists.Apply(name, e); err != nil {
				return err
			}
		}
		p.queue.ReconcilePlaylistMove(name, from, to)
		p.persist("playlist", p.store.PutPlaylist(p.ctx, pl))
		p.publish(notification.KindPlaylistChanged)
		return nil
	})
}

func (p *Player) checkTracks(ids []track.ID) error {
	for _, id := range ids {
		if !p.library.Has(id) {
			return errors.Wrapf(track.ErrUnknownTrack, "track %d", id)
		}
	}
	return nil
}

// edit applies edits in order, reconciling the engine after each one, and
// persists the playlist once.
func (p *Player) edit(name string, edits []playlist.Edit) error {
	var last *playlist.Playlist
	for _, e := range edits {
		applied, pl, err := p.playlists.Apply(name, e)
		if err != nil {
			if last != nil {
				p.persist("playlist", p.store.PutPlaylist(p.ctx, last))
			}
			return err
		}
		p.queue.ReconcilePlaylist(name, applied)
		last = pl
	}
	if last != nil {
		p.persist("playlist", p.store.PutPlaylist(p.ctx, last))
		p.publish(notification.KindPlaylistChanged)
	}
	return nil
}
