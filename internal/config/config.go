package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// NOTE: YAML 파일이 기본 설정 소스이고, DDAY_* 환경 변수가 그 위에 덮어쓴다.
// 정렬/자동 삭제/알림 같은 사용자 설정은 여기 두지 않고 DB app_state 에 저장한다.

// EnvPrefix is the prefix for environment overrides (DDAY_DATA_DIR, ...).
const EnvPrefix = "DDAY"

const (
	defaultSuite           = "group.com.SaebyeokD"
	defaultTimezone        = "Asia/Seoul"
	defaultLocale          = "ko"
	defaultRefresh         = "0 * * * *"
	defaultListen          = "127.0.0.1:8080"
	defaultTimelineMinutes = 15
	defaultCaptureWidth    = 360
	defaultCaptureHeight   = 170
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the widget host.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// CaptureConfig controls PNG rendering of widgets after a reload.
type CaptureConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// OutputDir receives {kind}-{family}.png. Empty means {data_dir}/preview.
	OutputDir string `yaml:"output_dir" json:"output_dir"`
	Width     int    `yaml:"width" json:"width"`
	Height    int    `yaml:"height" json:"height"`
}

// WidgetConfig describes the widget host.
type WidgetConfig struct {
	// Listen is the HTTP listen address of the widget host.
	Listen string `yaml:"listen" json:"listen"`

	// ReloadURL is where CLI commands send reload signals when the host runs
	// in another process. Empty derives it from Listen.
	ReloadURL string `yaml:"reload_url" json:"reload_url"`

	// TimelineMinutes is how long a rendered timeline stays valid before the
	// host re-reads the snapshot.
	TimelineMinutes int `yaml:"timeline_minutes" json:"timeline_minutes"`

	Capture CaptureConfig `yaml:"capture" json:"capture"`

	// BasicAuth, if non-nil, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// NotificationConfig models the OS-level permission of the local alert
// service: "granted" or "denied".
type NotificationConfig struct {
	Permission string `yaml:"permission" json:"permission"`
}

// Config is the top-level application configuration.
type Config struct {
	// DataDir holds the event database. Default: ~/.local/share/dday.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// SharedDir is the base directory of the cross-process store the widget
	// reads. Default: {data_dir}/shared.
	SharedDir string `yaml:"shared_dir" json:"shared_dir"`

	// Suite names the shared container inside SharedDir.
	Suite string `yaml:"suite" json:"suite"`

	// Timezone is the IANA zone in which dates and midnight are computed.
	Timezone string `yaml:"timezone" json:"timezone"`

	// Locale selects label and message text: "ko" (default) or "en".
	Locale string `yaml:"locale" json:"locale"`

	// RefreshCron is the periodic refresh schedule (standard 5-field cron).
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// LogLevel is DEBUG, INFO, WARN or ERROR.
	LogLevel string `yaml:"log_level" json:"log_level"`

	Widget        WidgetConfig       `yaml:"widget" json:"widget"`
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`
}

// envOverrides lists the settings that may come from the environment.
// Empty values leave the file setting alone.
type envOverrides struct {
	DataDir      string `envconfig:"DATA_DIR"`
	SharedDir    string `envconfig:"SHARED_DIR"`
	Suite        string `envconfig:"SUITE"`
	Timezone     string `envconfig:"TIMEZONE"`
	Locale       string `envconfig:"LOCALE"`
	RefreshCron  string `envconfig:"REFRESH"`
	LogLevel     string `envconfig:"LOG_LEVEL"`
	WidgetListen string `envconfig:"WIDGET_LISTEN"`
	ReloadURL    string `envconfig:"WIDGET_RELOAD_URL"`
	Permission   string `envconfig:"NOTIFICATIONS_PERMISSION"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{
		Suite:       defaultSuite,
		Timezone:    defaultTimezone,
		Locale:      defaultLocale,
		RefreshCron: defaultRefresh,
		LogLevel:    "INFO",
		Widget: WidgetConfig{
			Listen:          defaultListen,
			TimelineMinutes: defaultTimelineMinutes,
			Capture: CaptureConfig{
				Width:  defaultCaptureWidth,
				Height: defaultCaptureHeight,
			},
		},
		Notifications: NotificationConfig{Permission: "granted"},
	}
	c.Normalize()
	return c
}

// DefaultPath is ~/.config/dday/config.yaml, or ./dday.yaml without a home.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "dday.yaml"
	}
	return filepath.Join(dir, "dday", "config.yaml")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "data")
	}
	return filepath.Join(home, ".local", "share", "dday")
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.DataDir == "" {
		c.DataDir = defaultDataDir()
	}
	if c.SharedDir == "" {
		c.SharedDir = filepath.Join(c.DataDir, "shared")
	}
	if c.Suite == "" {
		c.Suite = defaultSuite
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	switch c.Locale {
	case "ko", "en":
	default:
		// 알 수 없는 값은 기본 한국어로
		c.Locale = defaultLocale
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefresh
	}
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}

	if c.Widget.Listen == "" {
		c.Widget.Listen = defaultListen
	}
	if c.Widget.TimelineMinutes <= 0 {
		c.Widget.TimelineMinutes = defaultTimelineMinutes
	}
	if c.Widget.Capture.Width <= 0 {
		c.Widget.Capture.Width = defaultCaptureWidth
	}
	if c.Widget.Capture.Height <= 0 {
		c.Widget.Capture.Height = defaultCaptureHeight
	}
	if c.Widget.Capture.OutputDir == "" {
		c.Widget.Capture.OutputDir = filepath.Join(c.DataDir, "preview")
	}

	switch c.Notifications.Permission {
	case "granted", "denied":
	default:
		c.Notifications.Permission = "granted"
	}
}

// DatabasePath is the SQLite file inside DataDir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "dday.db")
}

// ReloadEndpoint returns the base URL CLI commands use to reach the widget
// host.
func (c *Config) ReloadEndpoint() string {
	if c.Widget.ReloadURL != "" {
		return c.Widget.ReloadURL
	}
	return "http://" + c.Widget.Listen
}

// TimelinePolicy is the widget refresh interval as a duration.
func (c *Config) TimelinePolicy() time.Duration {
	return time.Duration(c.Widget.TimelineMinutes) * time.Minute
}

// NotificationsAuthorized reports the modelled OS permission.
func (c *Config) NotificationsAuthorized() bool {
	return c.Notifications.Permission != "denied"
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local, fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// ApplyEnv overlays DDAY_* environment variables.
func (c *Config) ApplyEnv() error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("config: env: %w", err)
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.DataDir, env.DataDir)
	set(&c.SharedDir, env.SharedDir)
	set(&c.Suite, env.Suite)
	set(&c.Timezone, env.Timezone)
	set(&c.Locale, env.Locale)
	set(&c.RefreshCron, env.RefreshCron)
	set(&c.LogLevel, env.LogLevel)
	set(&c.Widget.Listen, env.WidgetListen)
	set(&c.Widget.ReloadURL, env.ReloadURL)
	set(&c.Notifications.Permission, env.Permission)
	c.Normalize()
	return nil
}

// Load loads configuration from the given YAML path, then applies
// environment overrides.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
//
// Env overrides are never written back to the file.
func Load(path string) (*Config, error) {
	cfg, err := loadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadFile(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".dday-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	// rename 전에 0600 으로 맞춘다.
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method that delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
