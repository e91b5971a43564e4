package camera

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeTestJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 16), G: uint8(y * 16), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestStoreFrameAndAcquire(t *testing.T) {
	src := New(Config{URL: "test", AcquireTimeout: time.Second})
	data := encodeTestJPEG(t, 8, 6)

	done := make(chan struct{})
	go func() {
		defer close(done)
		frame, err := src.AcquireFrame(context.Background())
		assert.NoError(t, err)
		if assert.NotNil(t, frame) {
			assert.Equal(t, 8, frame.Width)
			assert.Equal(t, 6, frame.Height)
			assert.Len(t, frame.Pix, 8*6*3)
		}
	}()

	// Give the acquirer a moment to grab the notify channel.
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, src.storeFrame(data))
	<-done

	jpegCopy := src.LatestJPEG()
	assert.Equal(t, data, jpegCopy)

	// The copy is detached from the internal buffer.
	jpegCopy[0] = 0x00
	assert.NotEqual(t, jpegCopy[0], src.LatestJPEG()[0])
}

func TestAcquireFrameTimeout(t *testing.T) {
	src := New(Config{URL: "test", AcquireTimeout: 20 * time.Millisecond})
	_, err := src.AcquireFrame(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestAcquireFrameInterrupted(t *testing.T) {
	src := New(Config{URL: "test", AcquireTimeout: time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := src.AcquireFrame(ctx)
	assert.ErrorIs(t, err, ErrInterrupted)
}

func TestStoreFrameRejectsBadData(t *testing.T) {
	src := New(Config{URL: "test"})
	err := src.storeFrame([]byte{0x01, 0x02, 0x03})
	assert.Error(t, err)
	assert.Nil(t, src.LatestJPEG())
}

func TestLatestJPEGEmpty(t *testing.T) {
	src := New(Config{URL: "test"})
	assert.Nil(t, src.LatestJPEG())
}
