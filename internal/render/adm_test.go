package render

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickwarner/slotengine/internal/models"
)

func TestParseAdMarkup(t *testing.T) {
	adm := `<a href='https://x'><img src='https://y' onload="sendUrl('https://z')"></a>`
	markup, err := ParseAdMarkup(adm)
	require.NoError(t, err)
	assert.Equal(t, "https://x", markup.ClickURL)
	assert.Equal(t, "https://y", markup.ImageURL)
	assert.Equal(t, "https://z", markup.ImpressionURL)
}

func TestParseAdMarkup_NoOnload(t *testing.T) {
	markup, err := ParseAdMarkup(`<a href="https://x"><img src="https://y"></a>`)
	require.NoError(t, err)
	assert.Equal(t, "https://y", markup.ImageURL)
	assert.Empty(t, markup.ImpressionURL)
}

func TestParseAdMarkup_ImageOnly(t *testing.T) {
	markup, err := ParseAdMarkup(`<img src="https://y">`)
	require.NoError(t, err)
	assert.Empty(t, markup.ClickURL)
	assert.Equal(t, "https://y", markup.ImageURL)
}

func TestParseAdMarkup_Invalid(t *testing.T) {
	tests := []struct {
		name string
		adm  string
	}{
		{name: "empty", adm: ""},
		{name: "whitespace", adm: "   "},
		{name: "no image", adm: `<a href="https://x">text</a>`},
		{name: "image without src", adm: `<a href="https://x"><img alt="no src"></a>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAdMarkup(tt.adm)
			assert.True(t, errors.Is(err, models.ErrInvalidCreative))
		})
	}
}

func TestParseAdMarkup_UnquotedSendUrl(t *testing.T) {
	markup, err := ParseAdMarkup(`<img src="https://y" onload="sendUrl( 'https://z' )">`)
	require.NoError(t, err)
	assert.Equal(t, "https://z", markup.ImpressionURL)
}
