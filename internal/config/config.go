// Package config loads runtime settings from the environment.
//
// A .env file in the working directory is read first when present; real
// environment variables always win over it.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/meterscan/internal/detection"
	"github.com/ironsheep/meterscan/internal/pipeline"
)

// Config holds settings shared by the CLI, the HTTP service and the MCP
// server.
type Config struct {
	// HTTP service
	Port              string
	UploadDir         string
	MaxUploadBytes    int64
	AllowedExtensions []string
	AllowedOrigins    []string

	// Recognition
	Language       string
	TessdataPrefix string
	Whitelist      string

	// Detection and expansion
	Detector        string
	ExpansionX      int
	ExpansionY      int
	SaturationFloor int
	ValueFloor      int
	MinRectWidth    int
	MinRectHeight   int

	Workers  int
	DebugDir string
	LogLevel string
}

// Load reads the configuration and validates it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	defaults := pipeline.DefaultConfig()

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		UploadDir:         getEnv("UPLOAD_DIR", os.TempDir()),
		MaxUploadBytes:    getEnvInt64("MAX_UPLOAD_BYTES", 10<<20), // 10 MiB
		AllowedExtensions: getEnvList("ALLOWED_EXTENSIONS", []string{"png", "jpg", "jpeg", "gif", "webp"}),
		AllowedOrigins:    getEnvList("ALLOWED_ORIGINS", []string{"*"}),
		Language:          getEnv("OCR_LANGUAGE", defaults.Language),
		TessdataPrefix:    getEnv("TESSDATA_PREFIX", ""),
		Whitelist:         getEnv("OCR_WHITELIST", defaults.Whitelist),
		Detector:          getEnv("DETECTOR", defaults.Detector),
		ExpansionX:        getEnvInt("EXPANSION_X", defaults.ExpansionX),
		ExpansionY:        getEnvInt("EXPANSION_Y", defaults.ExpansionY),
		SaturationFloor:   getEnvInt("SATURATION_FLOOR", int(defaults.SaturationFloor)),
		ValueFloor:        getEnvInt("VALUE_FLOOR", int(defaults.ValueFloor)),
		MinRectWidth:      getEnvInt("MIN_RECT_WIDTH", defaults.MinRectWidth),
		MinRectHeight:     getEnvInt("MIN_RECT_HEIGHT", defaults.MinRectHeight),
		Workers:           getEnvInt("WORKERS", defaults.Workers),
		DebugDir:          getEnv("DEBUG_DIR", ""),
		LogLevel:          getEnv("METERSCAN_LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks that every setting is in range.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.MaxUploadBytes < 1024 || c.MaxUploadBytes > 1<<30 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be between 1KB and 1GB, got %d", c.MaxUploadBytes)
	}
	if len(c.AllowedExtensions) == 0 {
		return fmt.Errorf("ALLOWED_EXTENSIONS must list at least one extension")
	}
	if c.SaturationFloor < 0 || c.SaturationFloor > 255 {
		return fmt.Errorf("SATURATION_FLOOR must be between 0 and 255, got %d", c.SaturationFloor)
	}
	if c.ValueFloor < 0 || c.ValueFloor > 255 {
		return fmt.Errorf("VALUE_FLOOR must be between 0 and 255, got %d", c.ValueFloor)
	}
	if c.Workers < 1 || c.Workers > 64 {
		return fmt.Errorf("WORKERS must be between 1 and 64, got %d", c.Workers)
	}
	known := false
	for _, b := range detection.Backends() {
		if b == c.Detector {
			known = true
		}
	}
	if !known {
		return fmt.Errorf("DETECTOR %q is not available (have %s)", c.Detector, strings.Join(detection.Backends(), ", "))
	}
	return c.Pipeline().Validate()
}

// Pipeline maps the settings onto a pipeline configuration.
func (c *Config) Pipeline() pipeline.Config {
	p := pipeline.DefaultConfig()
	p.ExpansionX = c.ExpansionX
	p.ExpansionY = c.ExpansionY
	p.SaturationFloor = uint8(c.SaturationFloor)
	p.ValueFloor = uint8(c.ValueFloor)
	p.MinRectWidth = c.MinRectWidth
	p.MinRectHeight = c.MinRectHeight
	p.Whitelist = c.Whitelist
	p.Language = c.Language
	p.Workers = c.Workers
	p.Detector = c.Detector
	return p
}

// Extensions returns the allowed upload extensions as a lookup set with a
// leading dot, e.g. ".png".
func (c *Config) Extensions() map[string]bool {
	set := make(map[string]bool, len(c.AllowedExtensions))
	for _, ext := range c.AllowedExtensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			set["."+ext] = true
		}
	}
	return set
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		logrus.Warnf("%s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

func getEnvInt64(key string, def int64) int64 {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		logrus.Warnf("%s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

// getEnvList splits a comma separated value, dropping blanks.
func getEnvList(key string, def []string) []string {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
