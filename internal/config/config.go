// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/xkilldash9x/kintai-cli/api/schemas"
)

// Config holds the entire application configuration.
type Config struct {
	Logger      LoggerConfig      `mapstructure:"logger" yaml:"logger"`
	Browser     BrowserConfig     `mapstructure:"browser" yaml:"browser"`
	Target      TargetConfig      `mapstructure:"target" yaml:"target"`
	Login       LoginConfig       `mapstructure:"login" yaml:"login"`
	Widget      WidgetConfig      `mapstructure:"widget" yaml:"widget"`
	Buttons     ButtonsConfig     `mapstructure:"buttons" yaml:"buttons"`
	Resolver    ResolverConfig    `mapstructure:"resolver" yaml:"resolver"`
	Workflow    WorkflowConfig    `mapstructure:"workflow" yaml:"workflow"`
	Diagnostics DiagnosticsConfig `mapstructure:"diagnostics" yaml:"diagnostics"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	// LogFile may contain a {date} placeholder, expanded to YYYYMMDD at startup.
	LogFile    string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize    int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int         `mapstructure:"max_age" yaml:"max_age"`
	Compress   bool        `mapstructure:"compress" yaml:"compress"`
	Colors     ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the Chrome instance.
type BrowserConfig struct {
	Headless bool `mapstructure:"headless" yaml:"headless"`
	// AutoClose releases the browser when the workflow ends. When false the
	// browser stays open for inspection until the process is interrupted.
	AutoClose         bool           `mapstructure:"auto_close" yaml:"auto_close"`
	ExecPath          string         `mapstructure:"exec_path" yaml:"exec_path"`
	UserDataDir       string         `mapstructure:"user_data_dir" yaml:"user_data_dir"`
	DisableCache      bool           `mapstructure:"disable_cache" yaml:"disable_cache"`
	IgnoreTLSErrors   bool           `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Stealth           bool           `mapstructure:"stealth" yaml:"stealth"`
	Debug             bool           `mapstructure:"debug" yaml:"debug"`
	Args              []string       `mapstructure:"args" yaml:"args"`
	Viewport          map[string]int `mapstructure:"viewport" yaml:"viewport"`
	NavigationTimeout time.Duration  `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
}

// TargetConfig identifies the attendance application and the account.
type TargetConfig struct {
	URL      string `mapstructure:"url" yaml:"url"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"-"`
	// Location is the default work-location tab, overridable per invocation.
	Location string `mapstructure:"location" yaml:"location"`
}

// LoginConfig describes the login form and its timing.
type LoginConfig struct {
	UsernameSelector string        `mapstructure:"username_selector" yaml:"username_selector"`
	PasswordSelector string        `mapstructure:"password_selector" yaml:"password_selector"`
	SubmitSelector   string        `mapstructure:"submit_selector" yaml:"submit_selector"`
	FieldTimeout     time.Duration `mapstructure:"field_timeout" yaml:"field_timeout"`
	LoadDelay        time.Duration `mapstructure:"load_delay" yaml:"load_delay"`
	SettleDelay      time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	ReadyTimeout     time.Duration `mapstructure:"ready_timeout" yaml:"ready_timeout"`
}

// WidgetConfig locates the web-component host that embeds the attendance frame.
type WidgetConfig struct {
	HostSelector    string `mapstructure:"host_selector" yaml:"host_selector"`
	FrameNamePrefix string `mapstructure:"frame_name_prefix" yaml:"frame_name_prefix"`
}

// ButtonsConfig holds the Target Specifier of each action.
type ButtonsConfig struct {
	CheckIn  schemas.TargetSpecifier `mapstructure:"checkin" yaml:"checkin"`
	CheckOut schemas.TargetSpecifier `mapstructure:"checkout" yaml:"checkout"`
}

// For returns the Target Specifier of an action.
func (b ButtonsConfig) For(a schemas.Action) schemas.TargetSpecifier {
	if a == schemas.ActionCheckOut {
		return b.CheckOut
	}
	return b.CheckIn
}

// ResolverConfig bounds every step of the element search.
type ResolverConfig struct {
	ShadowTimeout     time.Duration `mapstructure:"shadow_timeout" yaml:"shadow_timeout"`
	MainTimeout       time.Duration `mapstructure:"main_timeout" yaml:"main_timeout"`
	DirectWait        time.Duration `mapstructure:"direct_wait" yaml:"direct_wait"`
	FrameBodyWait     time.Duration `mapstructure:"frame_body_wait" yaml:"frame_body_wait"`
	FramePollTimeout  time.Duration `mapstructure:"frame_poll_timeout" yaml:"frame_poll_timeout"`
	FramePollInterval time.Duration `mapstructure:"frame_poll_interval" yaml:"frame_poll_interval"`
	PollInterval      time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// WorkflowConfig holds the settle delays of the workflow engine.
type WorkflowConfig struct {
	ClickSettle     time.Duration `mapstructure:"click_settle" yaml:"click_settle"`
	LocationTimeout time.Duration `mapstructure:"location_timeout" yaml:"location_timeout"`
	LocationSettle  time.Duration `mapstructure:"location_settle" yaml:"location_settle"`
}

// DiagnosticsConfig controls the outcome screenshots.
type DiagnosticsConfig struct {
	Enabled       bool   `mapstructure:"enabled" yaml:"enabled"`
	ScreenshotDir string `mapstructure:"screenshot_dir" yaml:"screenshot_dir"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "kintai")
	v.SetDefault("logger.log_file", "logs/kintai_{date}.log")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 7)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", false)

	// -- Browser --
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.auto_close", true)
	v.SetDefault("browser.disable_cache", false)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.stealth", true)
	v.SetDefault("browser.debug", false)
	v.SetDefault("browser.viewport", map[string]int{"width": 1280, "height": 900})
	v.SetDefault("browser.navigation_timeout", "60s")

	// -- Login (Salesforce login form) --
	v.SetDefault("login.username_selector", "#username")
	v.SetDefault("login.password_selector", "#password")
	v.SetDefault("login.submit_selector", "#Login")
	v.SetDefault("login.field_timeout", "20s")
	v.SetDefault("login.load_delay", "2s")
	v.SetDefault("login.settle_delay", "5s")
	v.SetDefault("login.ready_timeout", "30s")

	// -- Widget --
	v.SetDefault("widget.host_selector", "force-aloha-page")
	v.SetDefault("widget.frame_name_prefix", "vfFrameId")

	// -- Buttons --
	v.SetDefault("buttons.checkin.name", "checkin")
	v.SetDefault("buttons.checkin.label", "出勤")
	v.SetDefault("buttons.checkin.id", "btnStInput")
	v.SetDefault("buttons.checkout.name", "checkout")
	v.SetDefault("buttons.checkout.label", "退勤")
	v.SetDefault("buttons.checkout.id", "btnEtInput")

	// -- Resolver --
	v.SetDefault("resolver.shadow_timeout", "15s")
	v.SetDefault("resolver.main_timeout", "5s")
	v.SetDefault("resolver.direct_wait", "3s")
	v.SetDefault("resolver.frame_body_wait", "5s")
	v.SetDefault("resolver.frame_poll_timeout", "10s")
	v.SetDefault("resolver.frame_poll_interval", "500ms")
	v.SetDefault("resolver.poll_interval", "500ms")

	// -- Workflow --
	v.SetDefault("workflow.click_settle", "3s")
	v.SetDefault("workflow.location_timeout", "10s")
	v.SetDefault("workflow.location_settle", "1s")

	// -- Diagnostics --
	v.SetDefault("diagnostics.enabled", true)
	v.SetDefault("diagnostics.screenshot_dir", "screenshots")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Credentials are usually supplied through the environment.
	_ = v.BindEnv("target.username", "KINTAI_TARGET_USERNAME")
	_ = v.BindEnv("target.password", "KINTAI_TARGET_PASSWORD")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// expandPaths resolves ~ in file system paths.
func (c *Config) expandPaths() error {
	paths := []*string{&c.Logger.LogFile, &c.Browser.UserDataDir, &c.Browser.ExecPath, &c.Diagnostics.ScreenshotDir}
	for _, p := range paths {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("could not expand path '%s': %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Target.URL) == "" {
		errs = append(errs, errors.New("target.url is required"))
	}
	if c.Target.Username == "" {
		errs = append(errs, errors.New("target.username is required"))
	}
	if c.Target.Password == "" {
		errs = append(errs, errors.New("target.password is required (or set KINTAI_TARGET_PASSWORD)"))
	}
	if err := c.Buttons.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Resolver.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Login.FieldTimeout <= 0 {
		errs = append(errs, errors.New("login.field_timeout must be a positive duration"))
	}
	if c.Login.ReadyTimeout <= 0 {
		errs = append(errs, errors.New("login.ready_timeout must be a positive duration"))
	}
	if c.Workflow.LocationTimeout <= 0 {
		errs = append(errs, errors.New("workflow.location_timeout must be a positive duration"))
	}
	return errors.Join(errs...)
}

// Validate checks that every action can be located somehow.
func (b ButtonsConfig) Validate() error {
	for _, a := range []schemas.Action{schemas.ActionCheckIn, schemas.ActionCheckOut} {
		spec := b.For(a)
		if spec.Label == "" && spec.ID == "" && spec.Selector == "" {
			return fmt.Errorf("buttons.%s needs a label, id or selector", a)
		}
	}
	return nil
}

// Validate checks that every search step is bounded.
func (r ResolverConfig) Validate() error {
	steps := []struct {
		name string
		d    time.Duration
	}{
		{"shadow_timeout", r.ShadowTimeout},
		{"main_timeout", r.MainTimeout},
		{"direct_wait", r.DirectWait},
		{"frame_body_wait", r.FrameBodyWait},
		{"frame_poll_timeout", r.FramePollTimeout},
		{"frame_poll_interval", r.FramePollInterval},
		{"poll_interval", r.PollInterval},
	}
	var errs []error
	for _, s := range steps {
		if s.d <= 0 {
			errs = append(errs, fmt.Errorf("resolver.%s must be a positive duration", s.name))
		}
	}
	return errors.Join(errs...)
}
