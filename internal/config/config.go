package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Camera   CameraConfig   `yaml:"camera"`
	Detector DetectorConfig `yaml:"detector"`
	Tracking TrackingConfig `yaml:"tracking"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	MinIO    MinIOConfig    `yaml:"minio"`
	Storage  StorageConfig  `yaml:"storage"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type CameraConfig struct {
	URL            string   `yaml:"url"`
	Type           string   `yaml:"type"` // rtsp, http, device
	FPS            int      `yaml:"fps"`
	Width          int      `yaml:"width"`
	AcquireTimeout Duration `yaml:"acquire_timeout"`
}

// Duration is a time.Duration that unmarshals from YAML scalars in
// time.ParseDuration form ("500ms", "2s") or as integer nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("parse duration: %w", err)
	}
	*d = Duration(n)
	return nil
}

type DetectorConfig struct {
	ModelsDir         string  `yaml:"models_dir"`
	KeypointThreshold float64 `yaml:"keypoint_threshold"`
	MaxKeypoints      int     `yaml:"max_keypoints"`
	RegionThreshold   float64 `yaml:"region_threshold"`
	MinRegionArea     float64 `yaml:"min_region_area"`
	MaxRegionArea     float64 `yaml:"max_region_area"`
}

// TrackingConfig carries the engine tuning constants. Zero values fall
// back to the engine defaults.
type TrackingConfig struct {
	Uniqueness       float64 `yaml:"uniqueness"`
	MaxDiff          float64 `yaml:"max_diff"`
	MinMatches       int     `yaml:"min_matches"`
	MaxMatches       int     `yaml:"max_matches"`
	ModelCapacity    int     `yaml:"model_capacity"`
	MinSeedKeypoints int     `yaml:"min_seed_keypoints"`
	MaxSurfaces      int     `yaml:"max_surfaces"`
	MaxSkew          float64 `yaml:"max_skew"`
	MaxScaleRatio    float64 `yaml:"max_scale_ratio"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type StorageConfig struct {
	// FrameRetention is the number of frame objects kept per camera in
	// MinIO; 0 disables cleanup.
	FrameRetention int `yaml:"frame_retention"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Camera.Type == "" {
		cfg.Camera.Type = "device"
	}
	if cfg.Camera.URL == "" && cfg.Camera.Type == "device" {
		cfg.Camera.URL = "/dev/video0"
	}
	if cfg.Camera.FPS == 0 {
		cfg.Camera.FPS = 15
	}
	if cfg.Camera.Width == 0 {
		cfg.Camera.Width = 640
	}
	if cfg.Camera.AcquireTimeout == 0 {
		cfg.Camera.AcquireTimeout = Duration(time.Second)
	}
	if cfg.Detector.KeypointThreshold == 0 {
		cfg.Detector.KeypointThreshold = 0.015
	}
	if cfg.Detector.MaxKeypoints == 0 {
		cfg.Detector.MaxKeypoints = 1024
	}
	if cfg.Detector.RegionThreshold == 0 {
		cfg.Detector.RegionThreshold = 0.5
	}
	if cfg.Detector.MinRegionArea == 0 {
		cfg.Detector.MinRegionArea = 400
	}
	if cfg.Detector.MaxRegionArea == 0 {
		cfg.Detector.MaxRegionArea = 80000
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MAR_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("MAR_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("MAR_CAMERA_URL"); v != "" {
		cfg.Camera.URL = v
	}
	if v := os.Getenv("MAR_CAMERA_TYPE"); v != "" {
		cfg.Camera.Type = v
	}
	if v := os.Getenv("MAR_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("MAR_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("MAR_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("MAR_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("MAR_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("MAR_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("MAR_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("MAR_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("MAR_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("MAR_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("MAR_MODELS_DIR"); v != "" {
		cfg.Detector.ModelsDir = v
	}
}
