package camera

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jpegFrame(payload ...byte) []byte {
	frame := []byte{0xFF, 0xD8}
	frame = append(frame, payload...)
	frame = append(frame, 0xFF, 0xD9)
	return frame
}

func TestReadJPEGFrames(t *testing.T) {
	f1 := jpegFrame(0x01, 0x02, 0x03)
	f2 := jpegFrame(0xAA, 0xBB)

	var stream []byte
	stream = append(stream, 0x00, 0x11, 0x22) // leading garbage before the first marker
	stream = append(stream, f1...)
	stream = append(stream, 0xDE, 0xAD) // inter-frame noise
	stream = append(stream, f2...)

	var frames [][]byte
	err := ReadJPEGFrames(context.Background(), bytes.NewReader(stream), func(data []byte) error {
		frames = append(frames, append([]byte(nil), data...))
		return nil
	})
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, f1, frames[0])
	assert.Equal(t, f2, frames[1])
}

func TestReadJPEGFramesTruncatedTail(t *testing.T) {
	var stream []byte
	stream = append(stream, jpegFrame(0x42)...)
	stream = append(stream, 0xFF, 0xD8, 0x01, 0x02) // frame cut off mid-stream

	count := 0
	err := ReadJPEGFrames(context.Background(), bytes.NewReader(stream), func([]byte) error {
		count++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestReadJPEGFramesCallbackErrorContinues(t *testing.T) {
	var stream []byte
	stream = append(stream, jpegFrame(0x01)...)
	stream = append(stream, jpegFrame(0x02)...)

	count := 0
	err := ReadJPEGFrames(context.Background(), bytes.NewReader(stream), func([]byte) error {
		count++
		return errors.New("drop")
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestReadJPEGFramesContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := ReadJPEGFrames(ctx, bytes.NewReader(nil), func([]byte) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
