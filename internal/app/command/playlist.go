package command

import (
	"context"

	"github.com/samber/lo"

	"github.com/osa030/tunebox/internal/domain/track"
)

func (e *Executor) playlist(_ context.Context, args []string) error {
	const help = "playlist new|rm|rename|add|insert|remove|move|show|list|play ..."
	if len(args) == 0 {
		return usage(help)
	}
	sub, args := args[0], args[1:]
	p := e.player

	switch sub {
	case "list":
		lists, err := p.Playlists()
		if err != nil {
			return err
		}
		renderPlaylists(e.out, lists)
		return nil
	case "new":
		if len(args) != 1 {
			return usage("playlist new <name>")
		}
		if err := p.CreatePlaylist(args[0]); err != nil {
			return err
		}
		e.printf("Created playlist %s\n", args[0])
		return nil
	case "rm":
		if len(args) != 1 {
			return usage("playlist rm <name>")
		}
		return p.DeletePlaylist(args[0])
	case "rename":
		if len(args) != 2 {
			return usage("playlist rename <from> <to>")
		}
		return p.RenamePlaylist(args[0], args[1])
	case "add":
		if len(args) < 2 {
			return usage("playlist add <name> <id...>")
		}
		ids, err := parseIDs(args[1:])
		if err != nil {
			return err
		}
		return p.PlaylistAppend(args[0], ids...)
	case "insert":
		if len(args) != 3 {
			return usage("playlist insert <name> <pos> <id>")
		}
		pos, err := parsePos(args[1])
		if err != nil {
			return err
		}
		ids, err := parseIDs(args[2:])
		if err != nil {
			return err
		}
		return p.PlaylistInsert(args[0], pos, ids[0])
	case "remove":
		if len(args) != 2 {
			return usage("playlist remove <name> <pos>")
		}
		pos, err := parsePos(args[1])
		if err != nil {
			return err
		}
		return p.PlaylistRemove(args[0], pos)
	case "move":
		if len(args) != 3 {
			return usage("playlist move <name> <from> <to>")
		}
		from, err := parsePos(args[1])
		if err != nil {
			return err
		}
		to, err := parsePos(args[2])
		if err != nil {
			return err
		}
		return p.PlaylistMove(args[0], from, to)
	case "show":
		if len(args) != 1 {
			return usage("playlist show <name>")
		}
		pl, err := p.Playlist(args[0])
		if err != nil {
			return err
		}
		all, err := p.Tracks()
		if err != nil {
			return err
		}
		byID := lo.SliceToMap(all, func(t track.Track) (track.ID, track.Track) { return t.ID, t })
		renderEntries(e.out, pl.Entries, byID)
		return nil
	case "play":
		if len(args) < 1 || len(args) > 2 {
			return usage("playlist play <name> [pos]")
		}
		pos := 0
		if len(args) == 2 {
			var err error
			if pos, err = parsePos(args[1]); err != nil {
				return err
			}
		}
		if err := p.OpenPlaylist(args[0], pos); err != nil {
			return err
		}
		return p.Play()
	default:
		return usage(help)
	}
}
