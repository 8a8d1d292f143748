package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"pd-docgen/internal/model"
)

const (
	EnvPrefix       = "PDDOC"
	DefaultFileName = "pd-docgen"

	DefaultBaseURL        = "https://pipedream-doc-tool.onrender.com"
	DefaultProjectLimit   = 100
	DefaultHTTPTimeout    = 60 * time.Second
	DefaultMaxBodyBytes   = 8 << 20
	DefaultExportDir      = "docs"
	DefaultExportInterval = 200 * time.Millisecond
	DefaultLogLevel       = "warn"
	DefaultLogFormat      = "text"
)

// Settings is the effective configuration after merging defaults, file, env and flags.
type Settings struct {
	BaseURL        string        `json:"base_url" mapstructure:"base_url" validate:"required,url"`
	APIKey         string        `json:"api_key,omitempty" mapstructure:"api_key"`
	OrgID          string        `json:"org_id,omitempty" mapstructure:"org_id"`
	ProjectLimit   int           `json:"project_limit" mapstructure:"project_limit" validate:"min=1,max=1000"`
	HTTPTimeout    time.Duration `json:"http_timeout" mapstructure:"http_timeout" validate:"min=0"`
	MaxBodyBytes   int64         `json:"max_body_bytes" mapstructure:"max_body_bytes" validate:"min=1"`
	ExportDir      string        `json:"export_dir" mapstructure:"export_dir" validate:"required"`
	ExportInterval time.Duration `json:"export_interval" mapstructure:"export_interval" validate:"min=0"`
	Mode           string        `json:"mode" mapstructure:"mode" validate:"oneof=raw enhanced"`
	LogLevel       string        `json:"log_level" mapstructure:"log_level" validate:"oneof=trace debug info warn error"`
	LogFormat      string        `json:"log_format" mapstructure:"log_format" validate:"oneof=text json"`

	// ConfigFile is the file that was read, if any.
	ConfigFile string `json:"config_file,omitempty" mapstructure:"-"`
}

// Overrides carries explicit flag values; empty fields leave lower layers alone.
type Overrides struct {
	BaseURL   string
	APIKey    string
	OrgID     string
	ExportDir string
	Mode      string
	LogLevel  string
}

type LoadOptions struct {
	ConfigPath string
	Overrides  Overrides
}

func Defaults() Settings {
	return Settings{
		BaseURL:        DefaultBaseURL,
		ProjectLimit:   DefaultProjectLimit,
		HTTPTimeout:    DefaultHTTPTimeout,
		MaxBodyBytes:   DefaultMaxBodyBytes,
		ExportDir:      DefaultExportDir,
		ExportInterval: DefaultExportInterval,
		Mode:           string(model.ModeRaw),
		LogLevel:       DefaultLogLevel,
		LogFormat:      DefaultLogFormat,
	}
}

// Load resolves settings with precedence flags > env > config file > defaults.
// A missing default config file is not an error; a missing explicit one is.
func Load(opts LoadOptions) (Settings, error) {
	v := viper.New()
	def := Defaults()
	v.SetDefault("base_url", def.BaseURL)
	v.SetDefault("api_key", "")
	v.SetDefault("org_id", "")
	v.SetDefault("project_limit", def.ProjectLimit)
	v.SetDefault("http_timeout", def.HTTPTimeout)
	v.SetDefault("max_body_bytes", def.MaxBodyBytes)
	v.SetDefault("export_dir", def.ExportDir)
	v.SetDefault("export_interval", def.ExportInterval)
	v.SetDefault("mode", def.Mode)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("log_format", def.LogFormat)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	explicit := strings.TrimSpace(opts.ConfigPath)
	if explicit != "" {
		v.SetConfigFile(explicit)
	} else {
		v.SetConfigName(DefaultFileName)
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, DefaultFileName))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit != "" || !errors.As(err, &notFound) {
			return Settings{}, fmt.Errorf("read config: %w", err)
		}
	}

	applyOverrides(v, opts.Overrides)

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("decode config: %w", err)
	}
	s.ConfigFile = v.ConfigFileUsed()
	s = Normalize(s)
	if err := Validate(s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func applyOverrides(v *viper.Viper, o Overrides) {
	set := func(key, val string) {
		if val = strings.TrimSpace(val); val != "" {
			v.Set(key, val)
		}
	}
	set("base_url", o.BaseURL)
	set("api_key", o.APIKey)
	set("org_id", o.OrgID)
	set("export_dir", o.ExportDir)
	set("mode", o.Mode)
	set("log_level", o.LogLevel)
}

// Normalize trims values and falls back to defaults for out-of-range numbers.
// Enumerations are lowercased but left for Validate to reject.
func Normalize(raw Settings) Settings {
	def := Defaults()
	norm := raw
	norm.BaseURL = strings.TrimRight(strings.TrimSpace(norm.BaseURL), "/")
	if norm.BaseURL == "" {
		norm.BaseURL = def.BaseURL
	}
	norm.APIKey = strings.TrimSpace(norm.APIKey)
	norm.OrgID = strings.TrimSpace(norm.OrgID)
	if norm.ProjectLimit <= 0 {
		norm.ProjectLimit = def.ProjectLimit
	}
	if norm.HTTPTimeout <= 0 {
		norm.HTTPTimeout = def.HTTPTimeout
	}
	if norm.MaxBodyBytes <= 0 {
		norm.MaxBodyBytes = def.MaxBodyBytes
	}
	norm.ExportDir = strings.TrimSpace(norm.ExportDir)
	if norm.ExportDir == "" {
		norm.ExportDir = def.ExportDir
	}
	if norm.ExportInterval <= 0 {
		norm.ExportInterval = def.ExportInterval
	}
	norm.Mode = strings.ToLower(strings.TrimSpace(norm.Mode))
	if norm.Mode == "" {
		norm.Mode = def.Mode
	}
	norm.LogLevel = strings.ToLower(strings.TrimSpace(norm.LogLevel))
	switch norm.LogLevel {
	case "":
		norm.LogLevel = def.LogLevel
	case "warning":
		norm.LogLevel = "warn"
	}
	norm.LogFormat = strings.ToLower(strings.TrimSpace(norm.LogFormat))
	if norm.LogFormat == "" {
		norm.LogFormat = def.LogFormat
	}
	return norm
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func Validate(s Settings) error {
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid setting %s=%v (%s)", settingKey(fe.Field()), fe.Value(), fe.Tag())
		}
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

func (s Settings) GenerationMode() model.GenerationMode {
	m, err := model.ParseGenerationMode(s.Mode)
	if err != nil {
		return model.ModeRaw
	}
	return m
}

// Redacted returns a copy safe to print.
func (s Settings) Redacted() Settings {
	out := s
	out.APIKey = MaskSecret(s.APIKey)
	return out
}

// MaskSecret keeps the last four characters of long secrets.
func MaskSecret(v string) string {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return ""
	case len(v) <= 8:
		return strings.Repeat("*", len(v))
	default:
		return strings.Repeat("*", len(v)-4) + v[len(v)-4:]
	}
}

func settingKey(field string) string {
	switch field {
	case "BaseURL":
		return "base_url"
	case "ProjectLimit":
		return "project_limit"
	case "HTTPTimeout":
		return "http_timeout"
	case "MaxBodyBytes":
		return "max_body_bytes"
	case "ExportDir":
		return "export_dir"
	case "ExportInterval":
		return "export_interval"
	case "LogLevel":
		return "log_level"
	case "LogFormat":
		return "log_format"
	default:
		return strings.ToLower(field)
	}
}
