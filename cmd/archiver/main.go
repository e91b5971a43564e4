package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/phylony/mar-library/internal/config"
	"github.com/phylony/mar-library/internal/models"
	"github.com/phylony/mar-library/internal/observability"
	"github.com/phylony/mar-library/internal/queue"
	"github.com/phylony/mar-library/internal/storage"
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

	slog.Info("starting MAR archiver", "retention", cfg.Storage.FrameRetention)

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

	// Connect to NATS
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = consumer.ConsumeEvents(ctx, "archiver", func(ctx context.Context, msg jetstream.Msg) error {
		var ev models.TrackEvent
		if err := json.Unmarshal(msg.Data(), &ev); err != nil {
			slog.Error("unmarshal track event", "error", err)
			return nil // Don't retry on unmarshal errors
		}

		if err := db.InsertEvent(ctx, &ev); err != nil {
			return fmt.Errorf("store event for surface %d: %w", ev.SurfaceID, err)
		}
		observability.EventsArchived.Inc()
		return nil
	})
	if err != nil {
		slog.Error("start event consumer", "error", err)
		os.Exit(1)
	}

	// Frame retention cleanup
	if cfg.Storage.FrameRetention > 0 {
		go func() {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					n, err := minioStore.TrimFrames(ctx, cfg.Storage.FrameRetention)
					if err != nil {
						slog.Warn("trim frames", "error", err)
						continue
					}
					if n > 0 {
						observability.FramesTrimmed.Add(float64(n))
						slog.Debug("trimmed archived frames", "count", n)
					}
				}
			}
		}()
	}

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		slog.Info("archiver metrics listening", "addr", ":8082")
		if err := http.ListenAndServe(":8082", mux); err != nil {
			slog.Error("metrics server error", "error", err)
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down archiver...")
	cancel()
	time.Sleep(2 * time.Second)
	slog.Info("archiver stopped")
}
