package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"jsoncal/internal/calendar"
	"jsoncal/internal/ics"
	"jsoncal/internal/jsonschema"
)

// ValidationConfig controls document validation.
type ValidationConfig struct {
	// FailFast stops at the first issue instead of collecting all of them.
	FailFast bool `yaml:"fail_fast" json:"fail_fast"`
}

// SchemaConfig controls JSON Schema export and the contract check.
type SchemaConfig struct {
	// Target is "draft-2020-12" (default) or "draft-07".
	Target string `yaml:"target" json:"target"`
	// Reused is "ref" (default) or "inline".
	Reused string `yaml:"reused" json:"reused"`
	// IO is "input" (default) or "output".
	IO string `yaml:"io" json:"io"`
	// Canonical is a path to the published contract. Empty uses the
	// embedded copy.
	Canonical string `yaml:"canonical" json:"canonical"`
}

// ICSConfig controls iCalendar export.
type ICSConfig struct {
	ProductID string `yaml:"product_id" json:"product_id"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	Validation ValidationConfig `yaml:"validation" json:"validation"`
	Schema     SchemaConfig     `yaml:"schema" json:"schema"`
	ICS        ICSConfig        `yaml:"ics" json:"ics"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:   "127.0.0.1:8080",
		LogLevel: "info",
		Schema: SchemaConfig{
			Target: string(jsonschema.Draft202012),
			Reused: string(jsonschema.ReusedRef),
			IO:     string(jsonschema.IOInput),
		},
		ICS: ICSConfig{ProductID: ics.DefaultProductID},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs (e.g., older versions) still behave correctly.
// Unknown enumerated values fall back to their defaults.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
		// ok
	default:
		c.LogLevel = "info"
	}

	switch jsonschema.Target(c.Schema.Target) {
	case jsonschema.Draft202012, jsonschema.Draft07:
	default:
		c.Schema.Target = string(jsonschema.Draft202012)
	}
	switch jsonschema.Reused(c.Schema.Reused) {
	case jsonschema.ReusedRef, jsonschema.ReusedInline:
	default:
		c.Schema.Reused = string(jsonschema.ReusedRef)
	}
	switch jsonschema.IO(c.Schema.IO) {
	case jsonschema.IOInput, jsonschema.IOOutput:
	default:
		c.Schema.IO = string(jsonschema.IOInput)
	}

	if c.ICS.ProductID == "" {
		c.ICS.ProductID = ics.DefaultProductID
	}
	if c.BasicAuth != nil && c.BasicAuth.Username == "" && c.BasicAuth.Password == "" {
		c.BasicAuth = nil
	}
}

// ValidationOptions returns the calendar options described by c.
func (c *Config) ValidationOptions() calendar.Options {
	return calendar.Options{FailFast: c.Validation.FailFast}
}

// ExportOptions returns the exporter options described by c.
func (c *Config) ExportOptions() jsonschema.Options {
	return jsonschema.Options{
		Target: jsonschema.Target(c.Schema.Target),
		Reused: jsonschema.Reused(c.Schema.Reused),
		IO:     jsonschema.IO(c.Schema.IO),
	}
}

// EncodeOptions returns the iCalendar encoder options described by c.
func (c *Config) EncodeOptions() ics.EncodeOptions {
	return ics.EncodeOptions{ProductID: c.ICS.ProductID}
}

// CanonicalSchema loads the contract named by Schema.Canonical, or the
// embedded one when unset.
func (c *Config) CanonicalSchema() (*jsonschema.Schema, error) {
	if c.Schema.Canonical == "" {
		return jsonschema.Canonical()
	}
	return jsonschema.LoadFile(c.Schema.Canonical)
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
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

	tmp, err := os.CreateTemp(dir, ".jsoncal-config-*.tmp")
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

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
