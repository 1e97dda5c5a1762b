package video

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseYouTubeRef(t *testing.T) {
	const id = "dQw4w9WgXcQ"
	valid := []string{
		id,
		"  " + id + " ",
		"https://www.youtube.com/watch?v=" + id,
		"https://youtube.com/watch?v=" + id + "&t=42s",
		"http://m.youtube.com/watch?feature=share&v=" + id,
		"www.youtube.com/watch?v=" + id,
		"https://www.youtube.com/shorts/" + id,
		"https://youtube.com/shorts/" + id + "?si=abc",
		"https://youtu.be/" + id,
		"youtu.be/" + id + "?t=3",
		"https://www.youtube.com/embed/" + id,
		"https://www.youtube-nocookie.com/embed/" + id,
		"https://www.youtube.com/live/" + id,
	}
	for _, in := range valid {
		t.Run(in, func(t *testing.T) {
			got, err := ParseYouTubeRef(in)
			require.NoError(t, err)
			assert.Equal(t, id, got)
		})
	}
}

func TestParseYouTubeRef_Invalid(t *testing.T) {
	invalid := []string{
		"",
		"   ",
		"short",
		"dQw4w9WgXcQ-too-long",
		"https://vimeo.com/123456",
		"https://www.youtube.com/watch?v=bad",
		"https://www.youtube.com/watch",
		"https://www.youtube.com/channel/UC1234567890",
		"https://youtu.be/",
		"https://www.youtube.com/shorts/abc$def!ghi",
	}
	for _, in := range invalid {
		t.Run(in, func(t *testing.T) {
			_, err := ParseYouTubeRef(in)
			assert.ErrorIs(t, err, ErrInvalidRef)
		})
	}
}
