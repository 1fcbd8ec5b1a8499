package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// ErrMissingToken is returned by RequireToken when no API token is configured.
var ErrMissingToken = errors.New("MONDAY_API_TOKEN is required")

var durationType = reflect.TypeOf(time.Duration(0))

// Load reads configuration from environment variables, applies defaults
// and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// RequireToken fails when the remote API cannot be authenticated.
// Commands that talk to the board call it after Load.
func (c *Config) RequireToken() error {
	if strings.TrimSpace(c.Monday.APIToken) == "" {
		return ErrMissingToken
	}
	return nil
}

// loadStruct walks nested structs and fills tagged fields from the environment.
func loadStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct {
			if err := loadStruct(fieldVal); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		if envName == "" {
			continue
		}

		value, ok := lookup(envName, field.Tag.Get("envAlt"))
		if !ok {
			if field.Tag.Get("required") == "true" {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = field.Tag.Get("default")
		}
		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// lookup returns the first non-empty value among the primary and alternate names.
func lookup(names ...string) (string, bool) {
	for _, name := range names {
		if name == "" {
			continue
		}
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v, true
		}
	}
	return "", false
}

func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		if field.Type() == durationType {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.SetInt(int64(d))
			return nil
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(n)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		var parts []string
		for _, p := range strings.Split(value, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		field.Set(reflect.ValueOf(parts))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks every section and reports all failures at once.
func (c *Config) Validate() error {
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		add("SERVER_PORT (%d) must be 1-65535", c.Server.Port)
	}
	if c.Server.ReadTimeout < 0 {
		add("SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		add("SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	if !strings.HasPrefix(c.Monday.APIURL, "http://") && !strings.HasPrefix(c.Monday.APIURL, "https://") {
		add("MONDAY_API_URL (%q) must be an http(s) URL", c.Monday.APIURL)
	}
	if c.Monday.Timeout <= 0 {
		add("MONDAY_TIMEOUT must be positive")
	}
	if strings.TrimSpace(c.Monday.KeyColumn) == "" {
		add("MONDAY_KEY_COLUMN must not be empty")
	}

	if c.Board.BoardID < 0 {
		add("BOARD_ID (%d) must be positive when set", c.Board.BoardID)
	}

	if c.Upload.MaxFileSize <= 0 {
		add("UPLOAD_MAX_FILE_SIZE must be positive")
	}
	if c.Upload.DrainTimeout <= 0 {
		add("UPLOAD_DRAIN_TIMEOUT must be positive")
	}

	if c.Database.HistoryEnabled() {
		if c.Database.MaxConns <= 0 {
			add("DB_MAX_CONNS must be positive")
		}
		if c.Database.MinConns < 0 {
			add("DB_MIN_CONNS must be non-negative")
		}
		if c.Database.MaxConns < c.Database.MinConns {
			add("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)", c.Database.MaxConns, c.Database.MinConns)
		}
	}

	if c.Watch.Debounce < 0 {
		add("WATCH_DEBOUNCE must be non-negative")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		add("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format)
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// String returns a loggable representation with secrets masked.
func (c *Config) String() string {
	token := ""
	if c.Monday.APIToken != "" {
		token = "[MASKED]"
	}
	history := "disabled"
	if c.Database.HistoryEnabled() {
		history = "[MASKED]"
	}
	return fmt.Sprintf(
		"Config{Server: {Addr: %q}, Monday: {URL: %q, Token: %q, KeyColumn: %q}, Board: {ID: %d}, Database: {URL: %s}, Watch: {Dir: %q}, Logging: {Level: %q, Format: %q, File: %q}}",
		c.Server.Addr(), c.Monday.APIURL, token, c.Monday.KeyColumn, c.Board.BoardID,
		history, c.Watch.Dir, c.Logging.Level, c.Logging.Format, c.Logging.File,
	)
}
