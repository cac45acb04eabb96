// Package config provides XML-based configuration management for air-gapped deployment.
package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ifc-viewer/backend/internal/loader"
	"github.com/ifc-viewer/backend/internal/models"
	"github.com/ifc-viewer/backend/internal/parser"
	"github.com/ifc-viewer/backend/internal/resolver"
	"github.com/ifc-viewer/backend/internal/viewer"
	"github.com/joho/godotenv"
)

// AppConfig represents the root XML configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"IFCViewer"`

	Server       ServerConfig       `xml:"Server"`
	Storage      StorageConfig      `xml:"Storage"`
	Viewer       ViewerConfig       `xml:"Viewer"`
	Requirements RequirementsConfig `xml:"Requirements"`
	Sessions     SessionsConfig     `xml:"Sessions"`
	S3           S3Config           `xml:"S3"`
	Advanced     AdvancedConfig     `xml:"Advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `xml:"Port"`
	BindAddress  string `xml:"BindAddress"`
	EnableCORS   bool   `xml:"EnableCORS"`
	AllowOrigins string `xml:"AllowOrigins"`
	ReadTimeout  int    `xml:"ReadTimeoutSeconds"`
	WriteTimeout int    `xml:"WriteTimeoutSeconds"`
	IdleTimeout  int    `xml:"IdleTimeoutSeconds"`
	BodyLimit    string `xml:"BodyLimit"`
}

// StorageConfig contains file storage settings
type StorageConfig struct {
	DataDirectory     string `xml:"DataDirectory"`
	UploadsDirectory  string `xml:"UploadsDirectory"`
	SnapshotDirectory string `xml:"SnapshotDirectory"`
	EnableSnapshots   bool   `xml:"EnableSnapshots"`
	SnapshotCacheSize int    `xml:"SnapshotCacheSize"`
}

// ViewerConfig holds the host-configuration surface of every viewer.
type ViewerConfig struct {
	HoverColor                     string  `xml:"HoverColor"`
	SelectColor                    string  `xml:"SelectColor"`
	EnableHover                    bool    `xml:"EnableHover"`
	EnableSelection                bool    `xml:"EnableSelection"`
	ClickThresholdPixels           float32 `xml:"ClickThresholdPixels"`
	IdleRenderDelayMs              int     `xml:"IdleRenderDelayMs"`
	TransparentOpacity             float32 `xml:"TransparentOpacity"`
	AlwaysVisibleWhenUnconstrained bool    `xml:"AlwaysVisibleWhenUnconstrained"`
	ShowBoundingSphere             bool    `xml:"ShowBoundingSphere"`
}

// RequirementsConfig points at the requirement file.
type RequirementsConfig struct {
	File  string `xml:"File"`
	Watch bool   `xml:"Watch"`
}

// SessionsConfig contains viewer session limits
type SessionsConfig struct {
	MaxSessions            int `xml:"MaxSessions"`
	SessionTimeoutMinutes  int `xml:"SessionTimeoutMinutes"`
	CleanupIntervalMinutes int `xml:"CleanupIntervalMinutes"`
}

// S3Config contains the object store used for s3:// model locations.
type S3Config struct {
	Enabled   bool   `xml:"Enabled"`
	Endpoint  string `xml:"Endpoint"`
	Region    string `xml:"Region"`
	AccessKey string `xml:"AccessKey"`
	SecretKey string `xml:"SecretKey"`
	UseSSL    bool   `xml:"UseSSL"`
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	EnableRequestLogging      bool    `xml:"EnableRequestLogging"`
	ProgressEventsPerSecond   float64 `xml:"ProgressEventsPerSecond"`
	FetchTimeoutSeconds       int     `xml:"FetchTimeoutSeconds"`
	WebSocketMaxMessageSizeKB int     `xml:"WebSocketMaxMessageSizeKB"`
	MaxModelSizeMB            int     `xml:"MaxModelSizeMB"`
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
			WriteTimeout: 30,
			IdleTimeout:  120,
			BodyLimit:    "2G",
		},
		Storage: StorageConfig{
			DataDirectory:     "./data",
			UploadsDirectory:  "./data/uploads",
			SnapshotDirectory: "./data/snapshots",
			EnableSnapshots:   true,
			SnapshotCacheSize: 16,
		},
		Viewer: ViewerConfig{
			HoverColor:           FormatHexColor(resolver.DefaultHoverColor),
			SelectColor:          FormatHexColor(resolver.DefaultSelectColor),
			EnableHover:          true,
			EnableSelection:      true,
			ClickThresholdPixels: viewer.DefaultClickThreshold,
			IdleRenderDelayMs:    int(viewer.DefaultIdleDelay / time.Millisecond),
			TransparentOpacity:   resolver.DefaultTransparentOpacity,
		},
		Requirements: RequirementsConfig{
			File:  "",
			Watch: true,
		},
		Sessions: SessionsConfig{
			MaxSessions:            10,
			SessionTimeoutMinutes:  30,
			CleanupIntervalMinutes: 5,
		},
		S3: S3Config{
			Region: "us-east-1",
		},
		Advanced: AdvancedConfig{
			EnableRequestLogging:      true,
			ProgressEventsPerSecond:   20,
			FetchTimeoutSeconds:       300,
			WebSocketMaxMessageSizeKB: 64,
			MaxModelSizeMB:            512,
		},
	}
}

// LoadConfig loads configuration from XML file. A .env file next to the
// config is loaded before environment overrides are applied.
func LoadConfig(configPath string) (*AppConfig, error) {
	configDir := filepath.Dir(configPath)
	_ = godotenv.Load(filepath.Join(configDir, ".env"))

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

	config.applyEnvironmentOverrides()
	config.resolvePaths(configDir)

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

	header := []byte(xml.Header + "\n<!-- IFC Viewer Configuration -->\n<!-- This file is auto-generated on first run -->\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks values the XML decoder cannot.
func (c *AppConfig) Validate() error {
	if _, err := ParseHexColor(c.Viewer.HoverColor); err != nil {
		return fmt.Errorf("Viewer.HoverColor: %w", err)
	}
	if _, err := ParseHexColor(c.Viewer.SelectColor); err != nil {
		return fmt.Errorf("Viewer.SelectColor: %w", err)
	}
	if c.Viewer.TransparentOpacity < 0 || c.Viewer.TransparentOpacity > 1 {
		return fmt.Errorf("Viewer.TransparentOpacity must be within [0, 1], got %v", c.Viewer.TransparentOpacity)
	}
	if c.Advanced.MaxModelSizeMB < 0 {
		return fmt.Errorf("Advanced.MaxModelSizeMB must not be negative, got %d", c.Advanced.MaxModelSizeMB)
	}
	if c.Requirements.File != "" {
		if _, err := parser.RequirementsFormat(c.Requirements.File); err != nil {
			return fmt.Errorf("Requirements.File: %w", err)
		}
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
	}
	if file := os.Getenv("REQUIREMENTS_FILE"); file != "" {
		c.Requirements.File = file
	}
	if n := os.Getenv("MAX_SESSIONS"); n != "" {
		if v, err := strconv.Atoi(n); err == nil {
			c.Sessions.MaxSessions = v
		}
	}
	if n := os.Getenv("MAX_MODEL_SIZE_MB"); n != "" {
		if v, err := strconv.Atoi(n); err == nil {
			c.Advanced.MaxModelSizeMB = v
		}
	}

	if endpoint := strings.TrimSpace(os.Getenv("S3_ENDPOINT")); endpoint != "" {
		c.S3.Enabled = true
		c.S3.Endpoint = endpoint
	}
	if region := strings.TrimSpace(os.Getenv("S3_REGION")); region != "" {
		c.S3.Region = region
	}
	c.S3.AccessKey = firstNonEmpty(os.Getenv("S3_ACCESS_KEY"), os.Getenv("MINIO_ROOT_USER"), c.S3.AccessKey)
	c.S3.SecretKey = firstNonEmpty(os.Getenv("S3_SECRET_KEY"), os.Getenv("MINIO_ROOT_PASSWORD"), c.S3.SecretKey)
	if ssl := os.Getenv("S3_USE_SSL"); ssl != "" {
		c.S3.UseSSL = strings.EqualFold(ssl, "true") || ssl == "1"
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	for _, p := range []*string{
		&c.Storage.DataDirectory,
		&c.Storage.UploadsDirectory,
		&c.Storage.SnapshotDirectory,
		&c.Requirements.File,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(configDir, *p)
		}
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

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.UploadsDirectory,
	}
	if c.Storage.EnableSnapshots {
		dirs = append(dirs, c.Storage.SnapshotDirectory)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// ViewerOptions converts the viewer section into options for new sessions.
// Requirements are loaded separately.
func (c *AppConfig) ViewerOptions() viewer.Options {
	opts := viewer.DefaultOptions()
	opts.EnableHover = c.Viewer.EnableHover
	opts.EnableSelection = c.Viewer.EnableSelection
	if c.Viewer.ClickThresholdPixels > 0 {
		opts.ClickThreshold = c.Viewer.ClickThresholdPixels
	}
	if c.Viewer.IdleRenderDelayMs > 0 {
		opts.IdleDelay = time.Duration(c.Viewer.IdleRenderDelayMs) * time.Millisecond
	}
	if color, err := ParseHexColor(c.Viewer.HoverColor); err == nil {
		opts.Palette.HoverColor = color
	}
	if color, err := ParseHexColor(c.Viewer.SelectColor); err == nil {
		opts.Palette.SelectColor = color
	}
	opts.Palette.TransparentOpacity = c.Viewer.TransparentOpacity
	opts.AlwaysVisibleWhenUnconstrained = c.Viewer.AlwaysVisibleWhenUnconstrained
	opts.ShowBoundingSphere = c.Viewer.ShowBoundingSphere
	return opts
}

// LoadRequirements reads the configured requirement file. No file yields an
// empty set.
func (c *AppConfig) LoadRequirements() (models.RequirementSet, error) {
	if c.Requirements.File == "" {
		return models.RequirementSet{}, nil
	}
	rs, err := parser.ParseRequirements(c.Requirements.File)
	if err != nil {
		return models.RequirementSet{}, err
	}
	return *rs, nil
}

// LoaderS3Config returns the S3 settings for the model fetcher, or nil when
// S3 is disabled.
func (c *AppConfig) LoaderS3Config() *loader.S3Config {
	if !c.S3.Enabled || c.S3.Endpoint == "" {
		return nil
	}
	return &loader.S3Config{
		Endpoint:  c.S3.Endpoint,
		Region:    c.S3.Region,
		AccessKey: c.S3.AccessKey,
		SecretKey: c.S3.SecretKey,
		UseSSL:    c.S3.UseSSL,
	}
}

// MaxModelBytes returns the model file size limit in bytes. Zero leaves
// the loader default in place.
func (c *AppConfig) MaxModelBytes() int64 {
	return int64(c.Advanced.MaxModelSizeMB) << 20
}

// ParseHexColor parses "#rrggbb", "rrggbb" or "0xrrggbb".
func ParseHexColor(s string) (uint32, error) {
	h := strings.TrimSpace(s)
	h = strings.TrimPrefix(h, "#")
	h = strings.TrimPrefix(strings.TrimPrefix(h, "0x"), "0X")
	if len(h) != 6 {
		return 0, fmt.Errorf("invalid hex color %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid hex color %q", s)
	}
	return uint32(v), nil
}

// FormatHexColor renders a color as "#rrggbb".
func FormatHexColor(c uint32) string {
	return fmt.Sprintf("#%06x", c&0xffffff)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
