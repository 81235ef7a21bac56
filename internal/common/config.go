package common

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/joseph-ayodele/court-captions/constants"
)

// Config holds all application configuration
type Config struct {
	Log       LogConfig       `toml:"log"`
	OCR       OCRConfig       `toml:"ocr"`
	PDF       PDFConfig       `toml:"pdf"`
	Pipeline  PipelineConfig  `toml:"pipeline"`
	Batch     BatchConfig     `toml:"batch"`
	Database  DatabaseConfig  `toml:"database"`
	Server    ServerConfig    `toml:"server"`
	Artifacts ArtifactsConfig `toml:"artifacts"`
}

// LogConfig controls the slog handler built by the binaries
type LogConfig struct {
	Level  string `toml:"level"`  // debug | info | warn | error
	Format string `toml:"format"` // json | text
}

// OCRConfig holds OCR engine configuration
type OCRConfig struct {
	Backend        string   `toml:"backend"`         // tesseract | gosseract
	ExecutablePath string   `toml:"executable_path"` // empty -> PATH lookup
	TessdataDir    string   `toml:"tessdata_dir"`
	Language       string   `toml:"language"`
	Timeout        Duration `toml:"timeout"` // per region; 0 keeps the preset value
}

// PDFConfig holds poppler tool locations
type PDFConfig struct {
	PdftotextPath string `toml:"pdftotext_path"`
	PdftoppmPath  string `toml:"pdftoppm_path"`
	DPI           int    `toml:"dpi"` // 0 keeps the preset value
	Layout        bool   `toml:"layout"`
}

// PipelineConfig selects a preset and the overrides applied on top of it.
// Zero values mean "keep the preset's value".
type PipelineConfig struct {
	Preset            string `toml:"preset"`
	PresetsFile       string `toml:"presets_file"`
	PageIndex         int    `toml:"page_index"` // -1 keeps the preset value
	Policy            string `toml:"policy"`
	BinarizeThreshold int    `toml:"binarize_threshold"` // 0 keeps the preset value
}

// BatchConfig holds worker pool settings
type BatchConfig struct {
	Workers         int      `toml:"workers"`
	QueueSize       int      `toml:"queue_size"`
	DocumentTimeout Duration `toml:"document_timeout"`
	Recursive       bool     `toml:"recursive"`
}

// DatabaseConfig holds optional result store configuration
type DatabaseConfig struct {
	Driver          string   `toml:"driver"` // "" | sqlite | postgres
	DSN             string   `toml:"dsn"`
	MaxConns        int32    `toml:"max_conns"`
	MinConns        int32    `toml:"min_conns"`
	MaxConnLifetime Duration `toml:"max_conn_lifetime"`
	DialTimeout     Duration `toml:"dial_timeout"`
}

// ServerConfig holds daemon settings
type ServerConfig struct {
	GRPCAddr string   `toml:"grpc_addr"`
	InboxDir string   `toml:"inbox_dir"`
	Debounce Duration `toml:"debounce"`
}

// ArtifactsConfig controls the diagnostic crop side channel
type ArtifactsConfig struct {
	Dir string `toml:"dir"` // empty disables it
}

// Duration is a time.Duration that decodes from "30s"-style TOML strings.
type Duration time.Duration

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// NewDefaultConfig returns the configuration used when nothing is set.
func NewDefaultConfig() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "json"},
		OCR: OCRConfig{
			Backend:  "tesseract",
			Language: constants.DefaultLanguage,
		},
		PDF: PDFConfig{
			PdftotextPath: "pdftotext",
			PdftoppmPath:  "pdftoppm",
		},
		Pipeline: PipelineConfig{
			Preset:    "caption-sparse",
			PageIndex: -1,
		},
		Batch: BatchConfig{
			Workers:         4,
			QueueSize:       256,
			DocumentTimeout: Duration(5 * time.Minute),
		},
		Database: DatabaseConfig{
			MaxConns:        10,
			MinConns:        1,
			MaxConnLifetime: Duration(30 * time.Minute),
			DialTimeout:     Duration(3 * time.Second),
		},
		Server: ServerConfig{
			GRPCAddr: ":8080",
			Debounce: Duration(2 * time.Second),
		},
	}
}

// LoadConfig loads .env (if present), the optional CONFIG_FILE, then applies
// environment overrides.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}
	cfg := NewDefaultConfig()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := LoadFromFile(cfg, path); err != nil {
			return nil, err
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// LoadFromFile decodes a TOML file over cfg.
func LoadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return NewAppError(CodeConfig, "read config file "+path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return NewAppError(CodeConfig, "parse config file "+path, err)
	}
	return nil
}

func applyEnvOverrides(c *Config) {
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)

	c.OCR.Backend = getEnv("OCR_BACKEND", c.OCR.Backend)
	c.OCR.ExecutablePath = getEnv("TESSERACT_PATH", c.OCR.ExecutablePath)
	c.OCR.TessdataDir = getEnv("TESSDATA_PREFIX", c.OCR.TessdataDir)
	c.OCR.Language = getEnv("OCR_LANG", c.OCR.Language)
	c.OCR.Timeout = Duration(getEnvAsDuration("OCR_TIMEOUT", c.OCR.Timeout.Std()))

	c.PDF.PdftotextPath = getEnv("PDFTOTEXT_PATH", c.PDF.PdftotextPath)
	c.PDF.PdftoppmPath = getEnv("PDFTOPPM_PATH", c.PDF.PdftoppmPath)
	c.PDF.DPI = getEnvAsInt("RASTER_DPI", c.PDF.DPI)
	c.PDF.Layout = getEnvAsBool("PDFTOTEXT_LAYOUT", c.PDF.Layout)

	c.Pipeline.Preset = getEnv("PIPELINE_PRESET", c.Pipeline.Preset)
	c.Pipeline.PresetsFile = getEnv("PRESETS_FILE", c.Pipeline.PresetsFile)
	c.Pipeline.PageIndex = getEnvAsInt("PAGE_INDEX", c.Pipeline.PageIndex)
	c.Pipeline.Policy = getEnv("OCR_POLICY", c.Pipeline.Policy)
	c.Pipeline.BinarizeThreshold = getEnvAsInt("BINARIZE_THRESHOLD", c.Pipeline.BinarizeThreshold)

	c.Batch.Workers = getEnvAsInt("WORKERS", c.Batch.Workers)
	c.Batch.QueueSize = getEnvAsInt("QUEUE_SIZE", c.Batch.QueueSize)
	c.Batch.DocumentTimeout = Duration(getEnvAsDuration("DOCUMENT_TIMEOUT", c.Batch.DocumentTimeout.Std()))

	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.DSN = getEnv("DB_URL", c.Database.DSN)
	c.Database.MaxConns = getEnvAsInt32("DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvAsInt32("DB_MIN_CONNS", c.Database.MinConns)
	c.Database.DialTimeout = Duration(getEnvAsDuration("DB_DIAL_TIMEOUT", c.Database.DialTimeout.Std()))

	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)
	c.Server.InboxDir = getEnv("INBOX_DIR", c.Server.InboxDir)

	c.Artifacts.Dir = getEnv("ARTIFACT_DIR", c.Artifacts.Dir)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator()
	v.Field("ocr.backend", c.OCR.Backend, OneOf("tesseract", "gosseract"))
	v.Field("ocr.language", c.OCR.Language, Required)
	if c.PDF.DPI != 0 {
		v.Field("pdf.dpi", c.PDF.DPI, IntRange(50, 1200))
	}
	v.Field("pipeline.preset", c.Pipeline.Preset, Required)
	v.Field("pipeline.page_index", c.Pipeline.PageIndex, IntRange(-1, 1<<16))
	v.Field("pipeline.binarize_threshold", c.Pipeline.BinarizeThreshold, IntRange(0, 255))
	if c.Pipeline.Policy != "" {
		v.Field("pipeline.policy", c.Pipeline.Policy, OneOf("fallback", "always", "never"))
	}
	v.Field("batch.workers", c.Batch.Workers, IntRange(1, 256))
	v.Field("database.driver", c.Database.Driver, OneOf("", "sqlite", "postgres"))
	if c.Database.Driver != "" {
		v.Field("database.dsn", c.Database.DSN, Required)
	}
	if err := v.Error(); err != nil {
		return NewAppError(CodeConfig, "invalid configuration", fmt.Errorf("%w: %v", ErrInvalidInput, err))
	}
	return nil
}

// NewLogger builds the slog logger described by LogConfig.
func NewLogger(c LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(c.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(c.Format) == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
