package internal

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/cardring/internal/scene"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Source kinds.
const (
	SourceScrapbox = "scrapbox"
	SourceVault    = "vault"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Source SourceConfig      `yaml:"source"`
	Cache  CacheConfig       `yaml:"cache"`
	Static StaticConfig      `yaml:"static"`
	Auth   AuthConfig        `yaml:"auth"`
	Scene  SceneConfig       `yaml:"scene"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Source.Validate(); err != nil {
		return err
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	return c.Scene.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SourceConfig selects where pages come from.
//
// Kind is either "scrapbox" (pages fetched from BaseURL) or "vault"
// (Markdown files under VaultPath, exposed as Project).
type SourceConfig struct {
	Kind      string `yaml:"kind"`
	Project   string `yaml:"project"`
	BaseURL   string `yaml:"base_url"`
	VaultPath string `yaml:"vault_path"`
}

// Validate validates the source configuration.
func (c *SourceConfig) Validate() error {
	if c.Kind == "" {
		c.Kind = SourceScrapbox
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Kind, validation.Required, validation.In(SourceScrapbox, SourceVault)),
		validation.Field(&c.Project, validation.Required),
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.VaultPath, validation.When(c.Kind == SourceVault, validation.Required)),
	)
}

// CacheConfig holds the SQLite page cache configuration.
type CacheConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.SQLitePath, validation.Required),
	)
}

// StaticConfig points at the client files served at /. Empty disables it.
type StaticConfig struct {
	Dir string `yaml:"dir"`
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// SceneConfig tunes the card ring and its animations.
type SceneConfig struct {
	Radius              float64 `yaml:"radius"`
	BaseHeight          float64 `yaml:"base_height"`
	PreviewHalfAngleDeg float64 `yaml:"preview_half_angle_deg"`
	PreviewFrames       int     `yaml:"preview_frames"`
	RotationFrames      int     `yaml:"rotation_frames"`
	SpinFrames          int     `yaml:"spin_frames"`
	FPS                 int     `yaml:"fps"`
	LoadConcurrency     int     `yaml:"load_concurrency"`
	// FrameThrottle is the minimum gap between frames pushed to one SSE
	// topic. Zero forwards every frame.
	FrameThrottle time.Duration `yaml:"frame_throttle"`
}

// Validate validates the scene configuration.
func (c *SceneConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Radius, validation.Required, validation.Min(0.0).Exclusive()),
		validation.Field(&c.PreviewHalfAngleDeg, validation.Required,
			validation.Min(0.0).Exclusive(), validation.Max(180.0).Exclusive()),
		validation.Field(&c.PreviewFrames, validation.Required, validation.Min(1)),
		validation.Field(&c.RotationFrames, validation.Required, validation.Min(1)),
		validation.Field(&c.SpinFrames, validation.Required, validation.Min(1)),
		validation.Field(&c.FPS, validation.Required, validation.Min(1), validation.Max(1000)),
		validation.Field(&c.LoadConcurrency, validation.Required, validation.Min(1)),
		validation.Field(&c.FrameThrottle, validation.Min(time.Duration(0))),
	)
}

// Params converts the configuration to scheduler parameters.
func (c *SceneConfig) Params() scene.Params {
	return scene.Params{
		Radius:           c.Radius,
		BaseHeight:       c.BaseHeight,
		PreviewHalfAngle: c.PreviewHalfAngleDeg * math.Pi / 180,
		PreviewFrames:    c.PreviewFrames,
		RotationFrames:   c.RotationFrames,
		SpinFrames:       c.SpinFrames,
	}
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	p := scene.DefaultParams()
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8000,
			},
		},
		Source: SourceConfig{
			Kind:      SourceScrapbox,
			Project:   "help-jp",
			BaseURL:   "https://scrapbox.io",
			VaultPath: "./vault",
		},
		Cache: CacheConfig{
			SQLitePath: "./cardring.db",
		},
		Static: StaticConfig{
			Dir: "./web",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Scene: SceneConfig{
			Radius:              p.Radius,
			BaseHeight:          p.BaseHeight,
			PreviewHalfAngleDeg: 22.5,
			PreviewFrames:       p.PreviewFrames,
			RotationFrames:      p.RotationFrames,
			SpinFrames:          p.SpinFrames,
			FPS:                 60,
			LoadConcurrency:     8,
			FrameThrottle:       0,
		},
	}
}
