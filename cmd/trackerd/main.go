package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"syscall"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/phylony/mar-library/internal/api"
	"github.com/phylony/mar-library/internal/api/ws"
	"github.com/phylony/mar-library/internal/camera"
	"github.com/phylony/mar-library/internal/config"
	"github.com/phylony/mar-library/internal/detect"
	"github.com/phylony/mar-library/internal/models"
	"github.com/phylony/mar-library/internal/observability"
	"github.com/phylony/mar-library/internal/queue"
	"github.com/phylony/mar-library/internal/storage"
	"github.com/phylony/mar-library/internal/track"
	"github.com/phylony/mar-library/pkg/dto"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting MAR tracker",
		"port", cfg.Server.Port,
		"camera", cfg.Camera.URL,
	)

	// Initialize ONNX Runtime
	ort.SetSharedLibraryPath(getONNXLibPath())
	if err := ort.InitializeEnvironment(); err != nil {
		slog.Error("init onnx runtime", "error", err)
		os.Exit(1)
	}
	defer ort.DestroyEnvironment()

	features, err := detect.NewFeatureDetector(
		filepath.Join(cfg.Detector.ModelsDir, "keypoints.onnx"),
		float32(cfg.Detector.KeypointThreshold),
		cfg.Detector.MaxKeypoints,
		nil,
	)
	if err != nil {
		slog.Error("load feature model", "error", err)
		os.Exit(1)
	}
	defer features.Close()

	regions, err := detect.NewRegionDetector(
		filepath.Join(cfg.Detector.ModelsDir, "regions.onnx"),
		float32(cfg.Detector.RegionThreshold),
		cfg.Detector.MinRegionArea,
		cfg.Detector.MaxRegionArea,
		nil,
	)
	if err != nil {
		slog.Error("load region model", "error", err)
		os.Exit(1)
	}
	defer regions.Close()

	// Camera
	source := camera.New(camera.Config{
		URL:            cfg.Camera.URL,
		Type:           cfg.Camera.Type,
		FPS:            cfg.Camera.FPS,
		Width:          cfg.Camera.Width,
		AcquireTimeout: time.Duration(cfg.Camera.AcquireTimeout),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := source.Start(ctx); err != nil {
		slog.Error("start camera", "error", err)
		os.Exit(1)
	}
	defer source.Stop()

	// Tracking session
	session := track.NewSession(track.Params{
		Uniqueness:       float32(cfg.Tracking.Uniqueness),
		MaxDiff:          float32(cfg.Tracking.MaxDiff),
		MinMatches:       cfg.Tracking.MinMatches,
		MaxMatches:       cfg.Tracking.MaxMatches,
		ModelCapacity:    cfg.Tracking.ModelCapacity,
		MinSeedKeypoints: cfg.Tracking.MinSeedKeypoints,
		MaxSurfaces:      cfg.Tracking.MaxSurfaces,
		MaxSkew:          cfg.Tracking.MaxSkew,
		MaxScaleRatio:    cfg.Tracking.MaxScaleRatio,
	}, source, features, regions)

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(context.Background()); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Remote control over NATS
	var paused atomic.Bool
	sub, err := producer.SubscribeControl(func(data []byte) {
		var cmd models.ControlCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			slog.Warn("unmarshal control command", "error", err)
			return
		}
		handleControl(session, hub, &paused, cmd)
	})
	if err != nil {
		slog.Warn("subscribe control", "error", err)
	} else {
		defer func() { _ = sub.Unsubscribe() }()
	}

	// Tracking loop
	loop := &trackLoop{
		session:  session,
		source:   source,
		minio:    minioStore,
		producer: producer,
		hub:      hub,
		paused:   &paused,
	}
	go loop.run(ctx)

	// Periodically report queue depth
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				depth, err := producer.QueueDepth(ctx)
				if err == nil {
					observability.EventQueueDepth.Set(float64(depth))
				}
			}
		}
	}()

	// Setup router
	router := api.NewRouter(api.RouterConfig{
		APIKey:   cfg.Server.APIKey,
		Session:  session,
		DB:       db,
		MinIO:    minioStore,
		Producer: producer,
		Hub:      hub,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down tracker...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("tracker stopped")
}

// trackLoop runs the per-frame update pass and fans results out to NATS,
// the WebSocket hub and metrics.
type trackLoop struct {
	session  *track.Session
	source   *camera.Source
	minio    *storage.MinIOStore
	producer *queue.Producer
	hub      *ws.Hub
	paused   *atomic.Bool

	// last observed status per handle, to archive a frame on transitions
	lastStatus map[int]track.Status
}

func (l *trackLoop) run(ctx context.Context) {
	l.lastStatus = make(map[int]track.Status)
	for ctx.Err() == nil {
		if l.paused.Load() {
			select {
			case <-ctx.Done():
				return
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}

		start := time.Now()
		results, err := l.session.UpdateAll(ctx)
		if err != nil {
			switch {
			case errors.Is(err, camera.ErrInterrupted):
				return
			case errors.Is(err, camera.ErrTimeout):
				observability.FramesSkipped.WithLabelValues("timeout").Inc()
			default:
				observability.FramesSkipped.WithLabelValues("error").Inc()
				slog.Warn("frame update failed", "error", err)
			}
			continue
		}

		observability.FramesProcessed.Inc()
		observability.UpdateDuration.WithLabelValues("frame").Observe(time.Since(start).Seconds())
		observability.SurfacesActive.Set(float64(l.session.ActiveCount()))
		// Keypoints are already cached for this frame when any surface
		// was updated; don't force detection on an idle session.
		if len(results) > 0 {
			if kps, err := l.session.Keypoints(); err == nil {
				observability.KeypointsDetected.Observe(float64(len(kps)))
			}
		}

		now := time.Now()
		for handle, res := range results {
			l.emit(ctx, handle, res, now)
		}
	}
}

func (l *trackLoop) emit(ctx context.Context, handle int, res track.UpdateResult, ts time.Time) {
	observability.SurfaceUpdates.WithLabelValues(string(res.Status)).Inc()
	observability.CorrespondenceCount.Observe(float64(res.Matches))
	if res.Err != nil {
		slog.Debug("surface update", "handle", handle, "status", res.Status, "error", res.Err)
	}

	ev := models.TrackEvent{
		SurfaceID: handle,
		Timestamp: ts,
		Status:    string(res.Status),
		Matches:   res.Matches,
	}

	wsEvent := dto.WSEvent{
		Type:      "surface_update",
		SurfaceID: handle,
		Status:    string(res.Status),
		Matches:   res.Matches,
	}

	if t, err := l.session.Transform(handle); err == nil {
		ev.M11, ev.M12 = t.M11, t.M12
		ev.M21, ev.M22 = t.M21, t.M22
		ev.TX, ev.TY = t.TX, t.TY
		wsEvent.Transform = &dto.TransformResponse{
			M11: t.M11, M12: t.M12,
			M21: t.M21, M22: t.M22,
			TX: t.TX, TY: t.TY,
			GL: t.Mat4(),
		}
	}

	if centroid, err := l.session.ModelCentroid(handle); err == nil {
		ev.Descriptor = centroid
	}

	// Archive the frame when a surface changes state, so lost/recovered
	// moments can be inspected later.
	if prev, ok := l.lastStatus[handle]; !ok || prev != res.Status {
		if jpegData := l.source.LatestJPEG(); jpegData != nil {
			key, err := l.minio.PutFrame(ctx, ts, jpegData)
			if err != nil {
				slog.Warn("archive frame", "error", err)
			} else {
				ev.FrameKey = key
			}
		}
	}
	l.lastStatus[handle] = res.Status

	if err := l.producer.PublishEvent(ctx, handle, ev); err != nil {
		slog.Warn("publish event", "handle", handle, "error", err)
	} else {
		observability.EventsPublished.Inc()
	}

	l.hub.BroadcastEvent(&wsEvent)
}

func handleControl(session *track.Session, hub *ws.Hub, paused *atomic.Bool, cmd models.ControlCommand) {
	switch cmd.Action {
	case "create":
		handle, err := session.CreateSurface(track.Ellipse{
			X: cmd.X, Y: cmd.Y, A: cmd.A, B: cmd.B, Angle: cmd.Angle,
		})
		if err != nil {
			slog.Warn("control create surface", "error", err)
			return
		}
		slog.Info("surface created via control", "handle", handle)
		hub.BroadcastEvent(&dto.WSEvent{Type: "surface_created", SurfaceID: handle})
	case "release":
		if err := session.ReleaseSurface(cmd.Handle); err != nil {
			slog.Warn("control release surface", "handle", cmd.Handle, "error", err)
			return
		}
		hub.BroadcastEvent(&dto.WSEvent{Type: "surface_released", SurfaceID: cmd.Handle})
	case "pause":
		paused.Store(true)
		slog.Info("tracking paused via control")
	case "resume":
		paused.Store(false)
		slog.Info("tracking resumed via control")
	default:
		slog.Warn("unknown control action", "action", cmd.Action)
	}
}

// getONNXLibPath returns the ONNX Runtime shared library path
// based on the operating system.
func getONNXLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "linux":
		return "libonnxruntime.so"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "onnxruntime.dll"
	}
}
