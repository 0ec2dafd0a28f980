package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration, shared by the gallery
// server and the console CLI.
type Config struct {
	ServerAddress string   `json:"serverAddress"`
	GalleryURL    string   `json:"galleryUrl"` // base URL the console talks to
	DatabasePath  string   `json:"databasePath"`
	DatabaseURL   string   `json:"databaseUrl"`
	Gallery       Gallery  `json:"gallery"`
	Security      Security `json:"security"`
}

// Gallery configuration
type Gallery struct {
	ImageDirectory         string `json:"imageDirectory"`
	RefreshIntervalSeconds int    `json:"refreshIntervalSeconds"`
	ThumbnailMaxDim        int    `json:"thumbnailMaxDim"`
	ThumbnailQuality       int    `json:"thumbnailQuality"`
}

// Security configuration
type Security struct {
	APIKey       string `json:"apiKey"`
	APIKeyHeader string `json:"apiKeyHeader"`
}

// UsePostgres returns true if the PostgreSQL tag backend should be used
func (c *Config) UsePostgres() bool {
	return c.DatabaseURL != ""
}

func defaultConfig() *Config {
	return &Config{
		ServerAddress: ":5000",
		GalleryURL:    "http://localhost:5000",
		DatabasePath:  "gallery.db",
		Gallery: Gallery{
			ImageDirectory:         "./captures",
			RefreshIntervalSeconds: 30,
			ThumbnailMaxDim:        200,
			ThumbnailQuality:       80,
		},
		Security: Security{
			APIKeyHeader: "X-API-Key",
		},
	}
}

// Load reads configuration from .env, an optional JSON config file and
// environment variable overrides, in that order.
func Load() (*Config, error) {
	// .env is optional; explicit env vars win over it either way.
	godotenv.Load()

	cfg := defaultConfig()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	if addr := os.Getenv("SERVER_ADDRESS"); addr != "" {
		cfg.ServerAddress = addr
	}
	if url := os.Getenv("GALLERY_URL"); url != "" {
		cfg.GalleryURL = url
	}
	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		cfg.DatabasePath = dbPath
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.DatabaseURL = dbURL
	}
	if dir := os.Getenv("IMAGE_DIRECTORY"); dir != "" {
		cfg.Gallery.ImageDirectory = dir
	}
	if apiKey := os.Getenv("API_KEY"); apiKey != "" {
		cfg.Security.APIKey = apiKey
	}
	if interval := os.Getenv("REFRESH_INTERVAL_SECONDS"); interval != "" {
		if secs, err := strconv.Atoi(interval); err == nil && secs > 0 {
			cfg.Gallery.RefreshIntervalSeconds = secs
		}
	}

	if err := os.MkdirAll(cfg.Gallery.ImageDirectory, 0755); err != nil {
		return nil, err
	}
	absPath, err := filepath.Abs(cfg.Gallery.ImageDirectory)
	if err != nil {
		return nil, err
	}
	cfg.Gallery.ImageDirectory = absPath

	return cfg, nil
}
