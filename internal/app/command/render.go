package command

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-runewidth"

	"github.com/osa030/tunebox/internal/app/playback"
	"github.com/osa030/tunebox/internal/app/player"
	"github.com/osa030/tunebox/internal/domain/playlist"
	"github.com/osa030/tunebox/internal/domain/track"
)

// StatusLine renders "▶ Title - Artist  mm:ss/mm:ss  vol%  loop  shuffle".
// The title part is truncated so the line fits width display columns.
func StatusLine(st player.Status, width int) string {
	icon := "■"
	switch st.State {
	case playback.StatePlaying:
		icon = "▶"
	case playback.StatePaused:
		icon = "⏸"
	}

	title := "(nothing)"
	if st.Track != nil {
		title = st.Track.Summary()
	}

	vol := fmt.Sprintf("%d%%", int(math.Round(st.Volume*100)))
	if st.Muted {
		vol = "muted"
	}
	tail := fmt.Sprintf("  %s/%s  %s  loop:%s  shuffle:%s",
		clock(st.Elapsed), clock(st.Duration), vol, st.Loop, onOff(st.Shuffle))

	head := icon + " " + title
	if width > 0 {
		head = truncate(head, width-runewidth.StringWidth(tail))
	}
	return head + tail
}

// truncate shortens text to width display columns, ending with an ellipsis.
func truncate(text string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(text) <= width {
		return text
	}
	return runewidth.Truncate(text, width, "…")
}

// clock formats d as mm:ss, or h:mm:ss past an hour.
func clock(d time.Duration) string {
	secs := int(d / time.Second)
	if secs >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", secs/3600, secs/60%60, secs%60)
	}
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

// progress renders "Ps / Ds (pct%)".
func progress(elapsed, length time.Duration) string {
	pct := 0.0
	if length > 0 {
		pct = float64(elapsed) / float64(length) * 100
	}
	return fmt.Sprintf("%ds / %ds (%.2f%%)", int(elapsed/time.Second), int(length/time.Second), pct)
}

func newTable(out io.Writer, header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(header)
	return t
}

func renderTracks(out io.Writer, tracks []track.Track) {
	t := newTable(out, table.Row{"ID", "Title", "Artist", "Album", "Year"})
	for _, tr := range tracks {
		t.AppendRow(table.Row{tr.ID, tr.Tag.DisplayTitle(), tr.Tag.DisplayArtist(), tr.Tag.DisplayAlbum(), tr.Tag.DisplayYear()})
	}
	t.Render()
}

func renderPlaylists(out io.Writer, lists []*playlist.Playlist) {
	t := newTable(out, table.Row{"Name", "Tracks"})
	for _, p := range lists {
		t.AppendRow(table.Row{p.Name, p.Len()})
	}
	t.Render()
}

func renderEntries(out io.Writer, entries []track.ID, byID map[track.ID]track.Track) {
	t := newTable(out, table.Row{"#", "ID", "Title", "Artist"})
	for i, id := range entries {
		tr := byID[id]
		t.AppendRow(table.Row{i + 1, id, tr.Tag.DisplayTitle(), tr.Tag.DisplayArtist()})
	}
	t.Render()
}

func renderQueue(out io.Writer, view player.QueueView) {
	if len(view.Immediate) == 0 && len(view.Upcoming) == 0 {
		_, _ = fmt.Fprintln(out, "Queue is empty")
		return
	}
	t := newTable(out, table.Row{"#", "From", "ID", "Title", "Artist"})
	n := 0
	add := func(from string, tracks []track.Track) {
		for _, tr := range tracks {
			n++
			t.AppendRow(table.Row{n, from, tr.ID, tr.Tag.DisplayTitle(), tr.Tag.DisplayArtist()})
		}
	}
	add("queue", view.Immediate)
	add("context", view.Upcoming)
	t.Render()
}
