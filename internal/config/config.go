package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// EnvBaseURL overrides api.baseUrl when set.
const EnvBaseURL = "AGENT_API_BASE_URL"

// Config is the root configuration for agentctl.
type Config struct {
	Log     LogConfig     `json:"log"`
	API     APIConfig     `json:"api"`
	Stream  StreamConfig  `json:"stream"`
	Session SessionConfig `json:"session"`
	Watch   WatchConfig   `json:"watch"`
	Metrics MetricsConfig `json:"metrics"`
}

type LogConfig struct {
	Level      string `json:"level" validate:"oneof=debug info warn error"`
	File       string `json:"file,omitempty"` // optional rotating log file
	MaxSizeMB  int    `json:"maxSizeMB" validate:"gte=1,lte=10240"`
	MaxBackups int    `json:"maxBackups" validate:"gte=0"`
	MaxAgeDays int    `json:"maxAgeDays" validate:"gte=0"`
	Compress   bool   `json:"compress"`
}

type APIConfig struct {
	BaseURL        string `json:"baseUrl" validate:"required,url"`
	TimeoutSeconds int    `json:"timeoutSeconds" validate:"gte=0,lte=3600"` // 0 = no timeout
	MaxRetries     int    `json:"maxRetries" validate:"gte=0,lte=10"`
	MaxPCAPoints   int    `json:"maxPcaPoints" validate:"gte=1,lte=100000"`
}

type StreamConfig struct {
	// CloseOnFirstEvent ends a streamed answer after the first event.
	CloseOnFirstEvent bool `json:"closeOnFirstEvent"`
}

type SessionConfig struct {
	Enabled     bool   `json:"enabled"`
	DBPath      string `json:"dbPath" validate:"required_if=Enabled true"`
	MaxMessages int    `json:"maxMessages" validate:"gte=0"` // 0 = unlimited
}

type WatchConfig struct {
	Extensions  ExtensionList `json:"extensions" validate:"dive,startswith=."`
	DebounceMs  int           `json:"debounceMs" validate:"gte=0,lte=60000"`
	AutoReindex bool          `json:"autoReindex"`
}

// ExtensionList is a []string of file extensions that unmarshals from a JSON
// array or a comma-separated string, lowercased with a leading dot
// (e.g. "PDF, csv" and [".pdf", "csv"] both become ".pdf", ".csv").
type ExtensionList []string

func (e *ExtensionList) UnmarshalJSON(data []byte) error {
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		var s string
		if err2 := json.Unmarshal(data, &s); err2 != nil {
			return err
		}
		items = strings.Split(s, ",")
	}
	result := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.ToLower(strings.TrimSpace(item))
		if item == "" {
			continue
		}
		if !strings.HasPrefix(item, ".") {
			item = "." + item
		}
		result = append(result, item)
	}
	*e = result
	return nil
}

type MetricsConfig struct {
	Enabled bool `json:"enabled"` // dump request metrics to stderr on exit
}

// DefaultConfigDir returns the default config directory (~/.agentctl).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".agentctl"
	}
	return filepath.Join(home, ".agentctl")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// LoadDotEnv loads .env files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("cannot load %s: %w", p, err)
		}
	}
	return nil
}

func Load(path string) (*Config, error) {
	cfg, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := finalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ReadFile parses path over Defaults with ${VAR} expansion only: no
// AGENT_API_BASE_URL override, no path expansion and no validation. Use it to
// edit and re-save a config file.
func ReadFile(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefaults is Load, except that a missing file yields Defaults.
func LoadOrDefaults(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = Defaults()
		if err := finalize(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return cfg, err
}

func finalize(cfg *Config) error {
	if v := strings.TrimSpace(os.Getenv(EnvBaseURL)); v != "" {
		cfg.API.BaseURL = v
	}
	cfg.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")
	cfg.Session.DBPath = ExpandPath(cfg.Session.DBPath)
	cfg.Log.File = ExpandPath(cfg.Log.File)

	if err := Validate(cfg); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	return nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// ${VAR:-default} uses "default" when VAR is unset or empty; an unset ${VAR}
// without a default is left as written.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		hasDefault := len(groups) >= 3 && groups[2] != ""

		val, exists := os.LookupEnv(groups[1])
		if !exists || val == "" {
			if hasDefault {
				return groups[2]
			}
			return match
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	path = ExpandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	errs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		errs = append(errs, fieldPath(fe.Namespace())+" "+describe(fe))
	}
	return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
}

// fieldPath turns "Config.api.baseUrl" into "api.baseUrl".
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "url":
		return "must be a valid URL"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "gte":
		return "must be >= " + fe.Param()
	case "lte":
		return "must be <= " + fe.Param()
	case "startswith":
		return fmt.Sprintf("must start with %q", fe.Param())
	}
	return "failed " + fe.Tag() + " check"
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
