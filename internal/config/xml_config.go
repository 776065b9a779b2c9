// Package config provides XML-based configuration with environment overrides.
package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"

	"github.com/quick-analysis/backend/internal/analysis"
	"github.com/quick-analysis/backend/internal/staging"
	"github.com/quick-analysis/backend/internal/storage"
)

// AppConfig represents the root XML configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"QuickAnalysis"`

	// Server configuration
	Server ServerConfig `xml:"Server"`

	// Storage configuration
	Storage StorageConfig `xml:"Storage"`

	// Analysis flow configuration
	Analysis AnalysisConfig `xml:"Analysis"`

	// Session lifecycle
	Session SessionConfig `xml:"Session"`

	// Advanced options
	Advanced AdvancedConfig `xml:"Advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `xml:"Port" validate:"min=1,max=65535"`
	BindAddress  string `xml:"BindAddress"`
	EnableCORS   bool   `xml:"EnableCORS"`
	AllowOrigins string `xml:"AllowOrigins"`
	ReadTimeout  int    `xml:"ReadTimeoutSeconds" validate:"min=0"`
	WriteTimeout int    `xml:"WriteTimeoutSeconds" validate:"min=0"`
	IdleTimeout  int    `xml:"IdleTimeoutSeconds" validate:"min=0"`
	BodyLimit    string `xml:"BodyLimit"`
}

// StorageConfig contains file storage settings
type StorageConfig struct {
	Backend           string      `xml:"Backend" validate:"oneof=local minio"`
	DataDirectory     string      `xml:"DataDirectory"`
	UploadsDirectory  string      `xml:"UploadsDirectory"`
	MaxFileSize       string      `xml:"MaxFileSize"`
	AllowedExtensions string      `xml:"AllowedExtensions"`
	Minio             MinioConfig `xml:"Minio"`
}

// MinioConfig contains object storage settings used when Backend is minio
type MinioConfig struct {
	Endpoint  string `xml:"Endpoint"`
	Region    string `xml:"Region"`
	Bucket    string `xml:"Bucket"`
	AccessKey string `xml:"AccessKey"`
	SecretKey string `xml:"SecretKey"`
	UseSSL    bool   `xml:"UseSSL"`
	Prefix    string `xml:"Prefix"`
}

// AnalysisConfig contains the simulated analysis timeline and flow options
type AnalysisConfig struct {
	CompletionDelayMs  int    `xml:"CompletionDelayMs" validate:"min=1"`
	RotationIntervalMs int    `xml:"RotationIntervalMs" validate:"min=1"`
	ErrorResetPolicy   string `xml:"ErrorResetPolicy" validate:"omitempty,oneof=always if-non-empty"`
	AllowStartOver     bool   `xml:"AllowStartOver"`
	DefaultLocale      string `xml:"DefaultLocale"`
}

// SessionConfig contains session lifecycle settings
type SessionConfig struct {
	MaxSessions           int    `xml:"MaxSessions" validate:"min=1"`
	SessionTimeoutMinutes int    `xml:"SessionTimeoutMinutes" validate:"min=1"`
	CleanupSchedule       string `xml:"CleanupSchedule"`
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	LogLevel                string `xml:"LogLevel"`
	EnableRequestLogging    bool   `xml:"EnableRequestLogging"`
	ProgressIntervalMs      int    `xml:"ProgressIntervalMs" validate:"min=0"`
	WebSocketMaxMessageSize int    `xml:"WebSocketMaxMessageSizeKB" validate:"min=0"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8089,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			WriteTimeout: 0,
			IdleTimeout:  120,
			BodyLimit:    "64M",
		},
		Storage: StorageConfig{
			Backend:           "local",
			DataDirectory:     "./data",
			UploadsDirectory:  "./data/uploads",
			MaxFileSize:       "10MiB",
			AllowedExtensions: strings.Join(staging.DefaultAllowedExtensions, ","),
			Minio: MinioConfig{
				Endpoint: "localhost:9000",
				Bucket:   "quick-analysis",
				Prefix:   "uploads/",
			},
		},
		Analysis: AnalysisConfig{
			CompletionDelayMs:  int(analysis.DefaultCompletionDelay / time.Millisecond),
			RotationIntervalMs: int(analysis.DefaultRotationInterval / time.Millisecond),
			ErrorResetPolicy:   string(staging.ResetIfNonEmpty),
			AllowStartOver:     false,
			DefaultLocale:      "Eng",
		},
		Session: SessionConfig{
			MaxSessions:           100,
			SessionTimeoutMinutes: 30,
			CleanupSchedule:       "@every 5m",
		},
		Advanced: AdvancedConfig{
			LogLevel:                "info",
			EnableRequestLogging:    true,
			ProgressIntervalMs:      500,
			WebSocketMaxMessageSize: 64,
		},
	}
}

// LoadConfig loads configuration from XML file, creating it with defaults
// on first run.
func LoadConfig(configPath string) (*AppConfig, error) {
	config := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := xml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Apply environment variable overrides
	config.applyEnvironmentOverrides()

	// Resolve relative paths
	config.resolvePaths(filepath.Dir(configPath))

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Save saves the configuration to XML file
func (c *AppConfig) Save(configPath string) error {
	output, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if dir := filepath.Dir(configPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	header := []byte(xml.Header + "\n<!-- Quick Analysis Configuration -->\n<!-- This file is auto-generated on first run -->\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks field constraints and parses the size strings.
func (c *AppConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.MaxFileSizeBytes(); err != nil {
		return err
	}
	if _, err := c.BodyLimitBytes(); err != nil {
		return err
	}
	if _, err := staging.ParseResetPolicy(c.Analysis.ErrorResetPolicy); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
		c.Storage.UploadsDirectory = filepath.Join(dataDir, "uploads")
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Advanced.LogLevel = level
	}

	if delay := os.Getenv("ANALYSIS_DELAY_MS"); delay != "" {
		if d, err := strconv.Atoi(delay); err == nil {
			c.Analysis.CompletionDelayMs = d
		}
	}

	if v := os.Getenv("ALLOW_START_OVER"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Analysis.AllowStartOver = b
		}
	}

	if backend := os.Getenv("STORAGE_BACKEND"); backend != "" {
		c.Storage.Backend = backend
	}

	m := &c.Storage.Minio
	for env, dst := range map[string]*string{
		"MINIO_ENDPOINT":   &m.Endpoint,
		"MINIO_REGION":     &m.Region,
		"MINIO_BUCKET":     &m.Bucket,
		"MINIO_ACCESS_KEY": &m.AccessKey,
		"MINIO_SECRET_KEY": &m.SecretKey,
	} {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			m.UseSSL = b
		}
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	if !filepath.IsAbs(c.Storage.DataDirectory) {
		c.Storage.DataDirectory = filepath.Join(configDir, c.Storage.DataDirectory)
	}
	if !filepath.IsAbs(c.Storage.UploadsDirectory) {
		c.Storage.UploadsDirectory = filepath.Join(configDir, c.Storage.UploadsDirectory)
	}
}

// GetUploadDir returns the absolute uploads directory path
func (c *AppConfig) GetUploadDir() string {
	return c.Storage.UploadsDirectory
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// MaxFileSizeBytes parses Storage.MaxFileSize ("10MiB", "10 MB").
func (c *AppConfig) MaxFileSizeBytes() (int64, error) {
	return parseSize("MaxFileSize", c.Storage.MaxFileSize)
}

// BodyLimitBytes parses Server.BodyLimit.
func (c *AppConfig) BodyLimitBytes() (int64, error) {
	return parseSize("BodyLimit", c.Server.BodyLimit)
}

func parseSize(field, s string) (int64, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, s, err)
	}
	return int64(n), nil
}

// AnalysisTimeline returns the simulator configuration.
func (c *AppConfig) AnalysisTimeline() analysis.Config {
	return analysis.Config{
		CompletionDelay:  time.Duration(c.Analysis.CompletionDelayMs) * time.Millisecond,
		RotationInterval: time.Duration(c.Analysis.RotationIntervalMs) * time.Millisecond,
	}
}

// StagingRules returns the validation rules for staged files.
func (c *AppConfig) StagingRules() staging.Rules {
	rules := staging.DefaultRules()
	if n, err := c.MaxFileSizeBytes(); err == nil {
		rules.MaxFileSize = n
	}
	if exts := splitList(c.Storage.AllowedExtensions); len(exts) > 0 {
		for i, e := range exts {
			if !strings.HasPrefix(e, ".") {
				exts[i] = "." + e
			}
		}
		rules.AllowedExtensions = exts
	}
	return rules
}

// ResetPolicy returns the error reset policy.
func (c *AppConfig) ResetPolicy() staging.ResetPolicy {
	p, err := staging.ParseResetPolicy(c.Analysis.ErrorResetPolicy)
	if err != nil {
		return staging.ResetIfNonEmpty
	}
	return p
}

// SessionMaxAge returns how long idle sessions survive.
func (c *AppConfig) SessionMaxAge() time.Duration {
	return time.Duration(c.Session.SessionTimeoutMinutes) * time.Minute
}

// MinioSettings returns the object storage connection settings.
func (c *AppConfig) MinioSettings() storage.MinioConfig {
	m := c.Storage.Minio
	return storage.MinioConfig{
		Endpoint:  m.Endpoint,
		Region:    m.Region,
		Bucket:    m.Bucket,
		AccessKey: m.AccessKey,
		SecretKey: m.SecretKey,
		UseSSL:    m.UseSSL,
		Prefix:    m.Prefix,
	}
}

// AllowOriginList splits AllowOrigins for the CORS middleware.
func (c *AppConfig) AllowOriginList() []string {
	origins := splitList(c.Server.AllowOrigins)
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.UploadsDirectory,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
