// Package config loads and persists chitchat's per-user configuration.
//
// The config lives in config.yaml inside the data directory. Missing files
// are created with defaults, missing fields are filled in and written back,
// and the result is checked against an embedded CUE schema before use.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"
)

const (
	// AppDirectoryName is the per-user application data directory name.
	AppDirectoryName = "chitchat"
	// DataDirEnv overrides the data directory when set.
	DataDirEnv = "CHITCHAT_DATA_DIR"
	// DefaultListen is the HTTP read API address used by serve.
	DefaultListen = "127.0.0.1:8787"

	configFileName = "config.yaml"
	databaseName   = "chitchat.db"
)

//go:embed schema.cue
var schemaCUE string

// Config contains persistent local settings.
type Config struct {
	Database string         `yaml:"database" json:"database"`
	Log      LogConfig      `yaml:"log" json:"log"`
	Identity IdentityConfig `yaml:"identity" json:"identity"`
	Serve    ServeConfig    `yaml:"serve" json:"serve"`
}

// LogConfig selects the slog handler installed by the CLI.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// IdentityConfig points at the caller's ed25519 key files.
type IdentityConfig struct {
	PrivateKey string `yaml:"private_key" json:"private_key"`
	PublicKey  string `yaml:"public_key" json:"public_key"`
}

// ServeConfig configures the HTTP read API.
type ServeConfig struct {
	Listen string `yaml:"listen" json:"listen"`
}

// SlogLevel maps Log.Level to a slog level. Unknown levels mean info.
func (c LogConfig) SlogLevel() slog.Level {
	switch c.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ResolveDataDir returns the OS-aware app data directory.
//
// If CHITCHAT_DATA_DIR is set, its value is used as an explicit override.
func ResolveDataDir() (string, error) {
	if override := os.Getenv(DataDirEnv); override != "" {
		return override, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}

	switch runtime.GOOS {
	case "windows":
		base := os.Getenv("APPDATA")
		if base == "" {
			base = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(base, AppDirectoryName), nil
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", AppDirectoryName), nil
	default:
		base := os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			base = filepath.Join(home, ".config")
		}
		return filepath.Join(base, AppDirectoryName), nil
	}
}

// ConfigPath returns the full path to config.yaml for a data directory.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, configFileName)
}

// EnsureDataDirectories creates the app data directory layout if needed.
func EnsureDataDirectories(dataDir string) error {
	for _, dir := range []string{dataDir, filepath.Join(dataDir, "keys")} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// Default returns the configuration written on first run.
func Default(dataDir string) *Config {
	keysDir := filepath.Join(dataDir, "keys")
	return &Config{
		Database: filepath.Join(dataDir, databaseName),
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Identity: IdentityConfig{
			PrivateKey: filepath.Join(keysDir, "ed25519_private.pem"),
			PublicKey:  filepath.Join(keysDir, "ed25519_public.pem"),
		},
		Serve: ServeConfig{
			Listen: DefaultListen,
		},
	}
}

// Load reads and decodes config.yaml from disk. Unknown fields are errors.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	return &cfg, nil
}

// Save encodes cfg as YAML and writes it to disk.
func Save(path string, cfg *Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// LoadOrCreate ensures the data directory and config exist, fills in
// missing fields, validates the result and returns it with its path.
// An empty dataDir means ResolveDataDir.
func LoadOrCreate(dataDir string) (*Config, string, error) {
	if dataDir == "" {
		var err error
		dataDir, err = ResolveDataDir()
		if err != nil {
			return nil, "", err
		}
	}
	if err := EnsureDataDirectories(dataDir); err != nil {
		return nil, "", err
	}

	cfgPath := ConfigPath(dataDir)
	cfg, err := Load(cfgPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cfg = Default(dataDir)
		if err := Save(cfgPath, cfg); err != nil {
			return nil, "", err
		}
		slog.Debug("config created", "path", cfgPath)
	case err != nil:
		return nil, "", err
	default:
		if normalizeDefaults(cfg, dataDir) {
			if err := Save(cfgPath, cfg); err != nil {
				return nil, "", err
			}
			slog.Debug("config normalized", "path", cfgPath)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("%s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}

// LoadFile reads an explicit config file. Missing fields take their
// defaults relative to the file's directory; the file is not rewritten.
func LoadFile(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	normalizeDefaults(cfg, filepath.Dir(path))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Abs resolves p against dataDir unless it is already absolute.
func Abs(dataDir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dataDir, p)
}

func normalizeDefaults(cfg *Config, dataDir string) bool {
	def := Default(dataDir)
	updated := false

	fill := func(field *string, value string) {
		if strings.TrimSpace(*field) == "" {
			*field = value
			updated = true
		}
	}

	fill(&cfg.Database, def.Database)
	fill(&cfg.Log.Level, def.Log.Level)
	fill(&cfg.Log.Format, def.Log.Format)
	fill(&cfg.Identity.PrivateKey, def.Identity.PrivateKey)
	fill(&cfg.Identity.PublicKey, def.Identity.PublicKey)
	fill(&cfg.Serve.Listen, def.Serve.Listen)

	if lower := strings.ToLower(cfg.Log.Level); lower != cfg.Log.Level {
		cfg.Log.Level = lower
		updated = true
	}
	if lower := strings.ToLower(cfg.Log.Format); lower != cfg.Log.Format {
		cfg.Log.Format = lower
		updated = true
	}

	return updated
}

// ValidationError is a schema violation with its source position, if known.
type ValidationError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *ValidationError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks cfg against the embedded CUE schema.
func (cfg *Config) Validate() error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	v := def.Unify(ctx.Encode(cfg))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}
	return nil
}

// formatCUEError reduces a CUE error list to its first violation.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	field := strings.Join(first.Path(), ".")
	format, args := first.Msg()
	ve := &ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		ve.Pos = positions[0]
	}
	return ve
}
