package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all environment-driven settings.
type Config struct {
	HTTPPort        string
	JSONSource      string
	CSVSource       string
	FloorPlanPath   string
	MapWidth        int
	MapHeight       int
	DBPath          string
	FetchTimeoutSec int
	EnableWatcher   bool
	WatchDebounceMS int
	ReloadQueueSize int
	PublicBaseURL   string
	LogLevel        string
	LogFormat       string
	StrictConfig    bool
}

type fileConfig struct {
	HTTPPort        string `json:"http_port" yaml:"http_port"`
	JSONSource      string `json:"json_source" yaml:"json_source"`
	CSVSource       string `json:"csv_source" yaml:"csv_source"`
	FloorPlanPath   string `json:"floorplan_path" yaml:"floorplan_path"`
	MapWidth        *int   `json:"map_width" yaml:"map_width"`
	MapHeight       *int   `json:"map_height" yaml:"map_height"`
	DBPath          string `json:"db_path" yaml:"db_path"`
	FetchTimeoutSec *int   `json:"fetch_timeout_sec" yaml:"fetch_timeout_sec"`
	EnableWatcher   *bool  `json:"enable_watcher" yaml:"enable_watcher"`
	PublicBaseURL   string `json:"public_base_url" yaml:"public_base_url"`
	LogLevel        string `json:"log_level" yaml:"log_level"`
	LogFormat       string `json:"log_format" yaml:"log_format"`
}

const (
	defaultPort            = ":8080"
	defaultJSONSource      = "data/fire-extinguishers.json"
	defaultCSVSource       = "data/backup.csv"
	defaultFloorPlan       = "data/map-layout.jpg"
	defaultDBPath          = "runtime/loads.db"
	defaultMapWidth        = 7972
	defaultMapHeight       = 5905
	defaultFetchTimeoutSec = 10
	maxFetchTimeoutSec     = 300
	defaultDebounceMS      = 250
	defaultReloadQueueSize = 4
	minReloadQueueSize     = 1
	maxReloadQueueSize     = 64
)

// Load reads configuration from an optional .env file, an optional config
// file and the environment, in increasing order of precedence.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		MapWidth:        defaultMapWidth,
		MapHeight:       defaultMapHeight,
		FetchTimeoutSec: defaultFetchTimeoutSec,
		WatchDebounceMS: clampInt(getenvInt("WATCH_DEBOUNCE_MS", defaultDebounceMS), 0, 10000),
		ReloadQueueSize: clampInt(getenvInt("RELOAD_QUEUE_SIZE", defaultReloadQueueSize), minReloadQueueSize, maxReloadQueueSize),
		StrictConfig:    getenvBool("STRICT_CONFIG", false),
	}

	configPath := getenv("CONFIG_PATH", filepath.Join("config", "config.yaml"))
	fileCfg, fileErr := loadFileConfig(configPath)
	if fileErr != nil {
		if cfg.StrictConfig {
			return cfg, fmt.Errorf("config load failed (%s): %w", configPath, fileErr)
		}
		if !errors.Is(fileErr, os.ErrNotExist) {
			log.Printf("config load failed (%s): %v (using defaults)", configPath, fileErr)
		}
	}

	cfg.HTTPPort = firstNonEmpty(os.Getenv("HTTP_PORT"), fileCfg.HTTPPort, defaultPort)
	if legacyPort := os.Getenv("PORT"); legacyPort != "" && cfg.HTTPPort == defaultPort {
		cfg.HTTPPort = legacyPort
	}
	if !strings.HasPrefix(cfg.HTTPPort, ":") {
		cfg.HTTPPort = ":" + cfg.HTTPPort
	}

	cfg.JSONSource = firstNonEmpty(os.Getenv("JSON_SOURCE"), fileCfg.JSONSource, defaultJSONSource)
	cfg.CSVSource = firstNonEmpty(os.Getenv("CSV_SOURCE"), fileCfg.CSVSource, defaultCSVSource)
	cfg.FloorPlanPath = firstNonEmpty(os.Getenv("FLOORPLAN_PATH"), fileCfg.FloorPlanPath, defaultFloorPlan)
	cfg.DBPath = firstNonEmpty(os.Getenv("DB_PATH"), fileCfg.DBPath, defaultDBPath)
	cfg.PublicBaseURL = strings.TrimRight(firstNonEmpty(os.Getenv("PUBLIC_BASE_URL"), fileCfg.PublicBaseURL, "http://localhost"+cfg.HTTPPort), "/")
	cfg.LogLevel = strings.ToLower(firstNonEmpty(os.Getenv("LOG_LEVEL"), fileCfg.LogLevel, "info"))
	cfg.LogFormat = strings.ToLower(firstNonEmpty(os.Getenv("LOG_FORMAT"), fileCfg.LogFormat, "json"))

	if fileCfg.MapWidth != nil {
		cfg.MapWidth = *fileCfg.MapWidth
	}
	if fileCfg.MapHeight != nil {
		cfg.MapHeight = *fileCfg.MapHeight
	}
	if fileCfg.FetchTimeoutSec != nil {
		cfg.FetchTimeoutSec = *fileCfg.FetchTimeoutSec
	}
	cfg.EnableWatcher = true
	if fileCfg.EnableWatcher != nil {
		cfg.EnableWatcher = *fileCfg.EnableWatcher
	}
	cfg.EnableWatcher = getenvBool("ENABLE_WATCHER", cfg.EnableWatcher)

	for key, dst := range map[string]*int{"MAP_WIDTH": &cfg.MapWidth, "MAP_HEIGHT": &cfg.MapHeight} {
		v, ok, err := parseIntEnv(key)
		if err != nil {
			if cfg.StrictConfig {
				return cfg, fmt.Errorf("invalid %s: %w", key, err)
			}
			log.Printf("invalid %s: %v (using %d)", key, err, *dst)
			continue
		}
		if ok {
			*dst = v
		}
	}

	if v, ok, err := parseIntEnv("FETCH_TIMEOUT_SEC"); err != nil {
		return cfg, fmt.Errorf("invalid FETCH_TIMEOUT_SEC: %w", err)
	} else if ok {
		if v <= 0 {
			return cfg, fmt.Errorf("FETCH_TIMEOUT_SEC must be positive")
		}
		cfg.FetchTimeoutSec = v
	}
	if cfg.FetchTimeoutSec > maxFetchTimeoutSec {
		log.Printf("FETCH_TIMEOUT_SEC capped at %d (was %d)", maxFetchTimeoutSec, cfg.FetchTimeoutSec)
		cfg.FetchTimeoutSec = maxFetchTimeoutSec
	}

	if err := validateConfig(cfg); err != nil {
		if cfg.StrictConfig {
			return cfg, err
		}
		log.Printf("config validation failed: %v (continuing)", err)
	}

	return cfg, nil
}

// FetchTimeout is the per-resource bound applied by the dataset loader.
func (c Config) FetchTimeout() time.Duration {
	if c.FetchTimeoutSec <= 0 {
		return defaultFetchTimeoutSec * time.Second
	}
	return time.Duration(c.FetchTimeoutSec) * time.Second
}

// WatchDebounce is the quiet period before a file change triggers a reload.
func (c Config) WatchDebounce() time.Duration {
	return time.Duration(c.WatchDebounceMS) * time.Millisecond
}

func loadFileConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if len(data) == 0 {
		return cfg, errors.New("empty config file")
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &cfg)
	default:
		err = yaml.Unmarshal(data, &cfg)
	}
	return cfg, err
}

func validateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.JSONSource) == "" && strings.TrimSpace(cfg.CSVSource) == "" {
		return errors.New("at least one of JSON_SOURCE or CSV_SOURCE is required")
	}
	if cfg.MapWidth <= 0 || cfg.MapHeight <= 0 {
		return fmt.Errorf("map size must be positive (got %dx%d)", cfg.MapWidth, cfg.MapHeight)
	}
	switch cfg.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console (got %q)", cfg.LogFormat)
	}
	return nil
}

// Now returns utc time helper for deterministic timestamps.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

func firstNonEmpty(values ...string) string {
	for _, val := range values {
		if strings.TrimSpace(val) != "" {
			return val
		}
	}
	return ""
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func parseIntEnv(key string) (int, bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, false, nil
	}
	val, err := strconv.Atoi(raw)
	return val, true, err
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
