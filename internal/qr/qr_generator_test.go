package qr_test

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-events/internal/qr"
)

func TestEventURL(t *testing.T) {
	gen := qr.NewQRGenerator("https://eventhub.example.com/")
	assert.Equal(t, "https://eventhub.example.com/events/abc-123", gen.EventURL("abc-123"))
	assert.Equal(t, "https://eventhub.example.com/events/a%2Fb", gen.EventURL("a/b"))
}

func TestGenerateEventQR(t *testing.T) {
	gen := qr.NewQRGenerator("http://localhost:8080")

	data, err := gen.GenerateEventQR("event-1", 0)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, qr.DefaultSize, img.Bounds().Dx())
}

func TestGenerateEventQRClampsSize(t *testing.T) {
	gen := qr.NewQRGenerator("http://localhost:8080")

	data, err := gen.GenerateEventQR("event-1", 5000)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 1024, img.Bounds().Dx())
}

func TestGenerateEventQRDiffersPerEvent(t *testing.T) {
	gen := qr.NewQRGenerator("http://localhost:8080")

	a, err := gen.GenerateEventQR("event-1", 128)
	require.NoError(t, err)
	b, err := gen.GenerateEventQR("event-2", 128)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	_, err = gen.GenerateEventQR("", 128)
	assert.Error(t, err)
}
