package assets

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDataURI(t *testing.T) {
	png := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes)
	p, err := decodeDataURI(png, 1<<20)
	require.NoError(t, err)
	assert.Equal(t, ".png", p.ext)
	assert.Equal(t, "image/png", p.declared)
	assert.Equal(t, pngBytes, p.data)

	svg := "data:image/svg+xml,%3Csvg%20xmlns%3D%22http%3A%2F%2Fwww.w3.org%2F2000%2Fsvg%22%3E%3C%2Fsvg%3E"
	p, err = decodeDataURI(svg, 1<<20)
	require.NoError(t, err)
	assert.Equal(t, ".svg", p.ext)

	unpadded := "DATA:image/png;BASE64," + base64.RawStdEncoding.EncodeToString(pngBytes)
	p, err = decodeDataURI(unpadded, 1<<20)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, p.data)
}

func TestDecodeDataURIRejects(t *testing.T) {
	cases := map[string]string{
		"missing comma": "data:image/png;base64",
		"bad base64":    "data:image/png;base64,%%%",
		"empty payload": "data:image/png;base64,",
		"not an image":  "data:text/plain,hello",
		"not data uri":  "https://example.com/a.png",
	}
	for name, ref := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := decodeDataURI(ref, 1<<20)
			assert.Error(t, err)
		})
	}

	_, err := decodeDataURI("data:image/png;base64,"+base64.StdEncoding.EncodeToString(pngBytes), 4)
	assert.ErrorContains(t, err, "exceeds")
}

func TestImageExtensionPrecedence(t *testing.T) {
	ext, err := imageExtension("/photos/cat.JPG", "image/jpeg", pngBytes)
	require.NoError(t, err)
	assert.Equal(t, ".jpg", ext, "known URL extension wins")

	ext, err = imageExtension("/photos/cat.php", "", pngBytes)
	require.NoError(t, err)
	assert.Equal(t, ".png", ext, "sniffed type beats unknown URL extension")

	ext, err = imageExtension("", "image/webp", []byte("opaque bytes"))
	require.NoError(t, err)
	assert.Equal(t, ".webp", ext, "declared type is the last resort")

	_, err = imageExtension("/a.png", "text/html", []byte("<!DOCTYPE html><html></html>"))
	assert.Error(t, err)
}
