package transform

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wardrobehq/wardrobe/internal/config"
)

func encodePNG(t *testing.T, alpha uint8) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
		}
	}
	// One pixel carries the probe alpha.
	img.SetNRGBA(4, 4, color.NRGBA{R: 10, G: 20, B: 30, A: alpha})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestClient(url string) *Client {
	return NewClient(config.TransformConfig{BaseURL: url, Timeout: 5 * time.Second})
}

func TestHasTransparency(t *testing.T) {
	ok, err := HasTransparency(encodePNG(t, 0))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = HasTransparency(encodePNG(t, 255))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = HasTransparency([]byte("junk"))
	assert.Error(t, err)
}

func TestRemoveBackgroundPassesThroughTransparentOutput(t *testing.T) {
	out := encodePNG(t, 0)
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Contains(t, r.FormValue("spec"), "foreground-segment")
		w.Write(out)
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL).RemoveBackground(context.Background(), encodePNG(t, 255))
	require.NoError(t, err)
	assert.Equal(t, out, got)
	assert.Equal(t, int32(1), calls)
}

func TestRemoveBackgroundRetriesOpaqueOutputOnce(t *testing.T) {
	opaque := encodePNG(t, 255)
	transparent := encodePNG(t, 0)
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Write(opaque)
			return
		}
		w.Write(transparent)
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL).RemoveBackground(context.Background(), opaque)
	require.NoError(t, err)
	assert.Equal(t, transparent, got)
	assert.Equal(t, int32(2), calls)
}

func TestRemoveBackgroundAcceptsStillOpaqueRetry(t *testing.T) {
	opaque := encodePNG(t, 255)
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write(opaque)
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL).RemoveBackground(context.Background(), opaque)
	require.NoError(t, err)
	assert.Equal(t, opaque, got)
	assert.Equal(t, int32(2), calls)
}

func TestTransformSurfacesServiceErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "segmentation model unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).RemoveBackground(context.Background(), encodePNG(t, 255))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
