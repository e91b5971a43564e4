package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"sync"
	"time"

	"github.com/phylony/mar-library/internal/observability"
	"github.com/phylony/mar-library/internal/track"
)

// Acquisition failures. Both are non-fatal: the engine skips the frame.
var (
	// ErrTimeout means no new frame arrived within the bounded wait.
	ErrTimeout = errors.New("camera: frame acquisition timed out")
	// ErrInterrupted means the acquiring context was cancelled mid-wait.
	ErrInterrupted = errors.New("camera: frame acquisition interrupted")
)

// DefaultAcquireTimeout bounds AcquireFrame when no timeout is configured.
const DefaultAcquireTimeout = time.Second

// Config describes a frame source.
type Config struct {
	URL            string        // stream URL or device path
	Type           string        // rtsp, http, device
	FPS            int           // frame extraction rate
	Width          int           // scaled frame width, 0 keeps source size
	AcquireTimeout time.Duration // bounded wait per AcquireFrame
}

// Source turns an FFmpeg-extracted MJPEG stream into RGB frames for the
// tracking engine. Frames are decoded as they arrive and kept in a
// single latest-frame slot; AcquireFrame hands out each new frame once.
type Source struct {
	cfg       Config
	extractor *FFmpegExtractor
	cancel    context.CancelFunc

	mu         sync.Mutex
	latest     *track.Frame
	latestJPEG []byte
	notify     chan struct{} // closed when a new frame lands
}

// New creates a source for the configured stream. Call Start before
// AcquireFrame.
func New(cfg Config) *Source {
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = DefaultAcquireTimeout
	}
	return &Source{
		cfg:       cfg,
		extractor: &FFmpegExtractor{},
		notify:    make(chan struct{}),
	}
}

// Start launches frame extraction in the background. Extraction errors
// after startup are logged and surface to callers as acquisition
// timeouts once frames stop arriving.
func (s *Source) Start(ctx context.Context) error {
	if s.cfg.URL == "" {
		return fmt.Errorf("camera: no stream URL configured")
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go func() {
		err := s.extractor.StartExtraction(ctx, s.cfg, s.storeFrame)
		if err != nil && ctx.Err() == nil {
			slog.Error("camera extraction stopped", "url", s.cfg.URL, "error", err)
		}
	}()
	return nil
}

// Stop terminates extraction.
func (s *Source) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.extractor.Stop()
}

// AcquireFrame blocks until the next frame arrives, the context is
// cancelled (ErrInterrupted) or the bounded wait elapses (ErrTimeout).
func (s *Source) AcquireFrame(ctx context.Context) (*track.Frame, error) {
	s.mu.Lock()
	ch := s.notify
	s.mu.Unlock()

	timer := time.NewTimer(s.cfg.AcquireTimeout)
	defer timer.Stop()

	select {
	case <-ch:
		s.mu.Lock()
		f := s.latest
		s.mu.Unlock()
		return f, nil
	case <-ctx.Done():
		return nil, ErrInterrupted
	case <-timer.C:
		return nil, ErrTimeout
	}
}

// storeFrame decodes one JPEG from the extractor and publishes it as the
// latest frame.
func (s *Source) storeFrame(frameData []byte) error {
	img, err := jpeg.Decode(bytes.NewReader(frameData))
	if err != nil {
		return fmt.Errorf("decode jpeg: %w", err)
	}
	frame := imageToFrame(img)

	s.mu.Lock()
	s.latest = frame
	s.latestJPEG = append(s.latestJPEG[:0], frameData...)
	close(s.notify)
	s.notify = make(chan struct{})
	s.mu.Unlock()

	observability.FramesCaptured.Inc()
	return nil
}

// LatestJPEG returns a copy of the most recent encoded frame, or nil if
// none has arrived yet. Used to archive frames alongside events.
func (s *Source) LatestJPEG() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.latestJPEG) == 0 {
		return nil
	}
	out := make([]byte, len(s.latestJPEG))
	copy(out, s.latestJPEG)
	return out
}

// imageToFrame converts a decoded image to packed RGB24.
func imageToFrame(img image.Image) *track.Frame {
	bounds := img.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	pix := make([]byte, 3*w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()
			i := (y*w + x) * 3
			pix[i] = byte(r >> 8)
			pix[i+1] = byte(g >> 8)
			pix[i+2] = byte(b >> 8)
		}
	}
	return &track.Frame{Pix: pix, Width: w, Height: h}
}
