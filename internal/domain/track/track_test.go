package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTag_Display(t *testing.T) {
	tests := []struct {
		name     string
		tag      Tag
		expected [4]string
	}{
		{
			name:     "empty tag",
			tag:      Tag{},
			expected: [4]string{"unknown", "unknown", "unknown", "unknown"},
		},
		{
			name:     "whitespace counts as absent",
			tag:      Tag{Title: "  ", Artist: "Queen"},
			expected: [4]string{"unknown", "unknown", "Queen", "unknown"},
		},
		{
			name:     "full tag",
			tag:      Tag{Title: "Yesterday", Album: "Help!", Artist: "The Beatles", Year: 1965},
			expected: [4]string{"Yesterday", "Help!", "The Beatles", "1965"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected[0], tt.tag.DisplayTitle())
			assert.Equal(t, tt.expected[1], tt.tag.DisplayAlbum())
			assert.Equal(t, tt.expected[2], tt.tag.DisplayArtist())
			assert.Equal(t, tt.expected[3], tt.tag.DisplayYear())
		})
	}
}

func TestTag_Set(t *testing.T) {
	var tag Tag

	require.NoError(t, tag.Set(FieldTitle, "Song"))
	require.NoError(t, tag.Set(FieldAlbum, "Album"))
	require.NoError(t, tag.Set(FieldArtist, "Artist"))
	require.NoError(t, tag.Set(FieldYear, "2001"))
	assert.Equal(t, Tag{Title: "Song", Album: "Album", Artist: "Artist", Year: 2001}, tag)

	assert.Error(t, tag.Set(FieldYear, "soon"))
	assert.Equal(t, 2001, tag.Year, "failed set keeps the old value")

	require.NoError(t, tag.Set(FieldYear, ""))
	assert.Equal(t, 0, tag.Year)

	assert.Error(t, tag.Set(Field("genre"), "rock"))
}

func TestParseID(t *testing.T) {
	id, err := ParseID(" 42 ")
	require.NoError(t, err)
	assert.Equal(t, ID(42), id)
	assert.Equal(t, "42", id.String())

	for _, in := range []string{"", "abc", "0", "-3"} {
		_, err := ParseID(in)
		assert.Error(t, err, in)
	}
}

func TestParseField(t *testing.T) {
	f, ok := ParseField("Title")
	assert.True(t, ok)
	assert.Equal(t, FieldTitle, f)

	_, ok = ParseField("genre")
	assert.False(t, ok)
}

func TestTrack_Metadata(t *testing.T) {
	trk := &Track{ID: 1, Path: "/music/a.mp3", Tag: Tag{Title: "A", Artist: "B"}}

	assert.Equal(t, "Title: A\nArtist: B\nAlbum: unknown\nYear: unknown", trk.Metadata())
	assert.Equal(t, "A - B", trk.Summary())
}
