// Package config loads the Mirror Engine and CLI configuration surface,
// following the same defaults -> global config -> project config -> CLI
// flags precedence chain as the teacher ticket system's own config
// loader, parsed with hujson (JSON-with-comments-and-trailing-commas) so
// operators can annotate a checked-in config file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"
)

// ProviderKind selects which Range Provider implementation the engine
// uses.
type ProviderKind string

const (
	ProviderUpstream ProviderKind = "upstream"
	ProviderFile     ProviderKind = "file"
	ProviderMock     ProviderKind = "mock"
)

// BinaryLayout configures the compact binary Dataset Layout. A zero value
// (FileCodeLen == 0) means the binary layout is off and the text layout is
// used, the spec's stated default.
type BinaryLayout struct {
	FileCodeLen    int `json:"file_code_len,omitempty"`
	CountByteWidth int `json:"count_byte_width,omitempty"`
}

// Enabled reports whether the binary layout is selected.
func (b BinaryLayout) Enabled() bool {
	return b.FileCodeLen > 0
}

// Config holds every recognized option from spec.md's "Configuration"
// design note.
type Config struct {
	ResourceDir      string       `json:"resource_dir"`
	Workers          int          `json:"workers"`
	ProviderKind     ProviderKind `json:"provider"`
	ProviderFilePath string       `json:"provider_file_path,omitempty"`
	UpstreamBaseURL  string       `json:"upstream_base_url,omitempty"`
	BinaryLayout     BinaryLayout `json:"binary_layout,omitempty"`

	// Sources tracks which config files were loaded, for diagnostics.
	Sources Sources `json:"-"`
}

// Sources tracks which config files contributed to the final Config.
type Sources struct {
	Global  string
	Project string
}

const (
	// MinWorkers and MaxWorkers bound the operator-configurable worker
	// pool size.
	MinWorkers = 1
	MaxWorkers = 256

	defaultWorkers         = 64
	defaultUpstreamBaseURL = "https://api.pwnedpasswords.com/range"
)

var (
	ErrWorkersOutOfRange = errors.New("workers out of range")
	ErrResourceDirEmpty  = errors.New("resource_dir must not be empty")
)

// Default returns the Config before any file or flag overrides are
// applied.
func Default() Config {
	return Config{
		Workers:         defaultWorkers,
		ProviderKind:    ProviderUpstream,
		UpstreamBaseURL: defaultUpstreamBaseURL,
	}
}

// Overrides carries CLI-flag-level overrides, applied last and therefore
// highest precedence.
type Overrides struct {
	ResourceDir     string
	Workers         *int
	DataFilePath    string
	Mocked          bool
	ConfigPath      string // -c/--config flag value
	WorkDirOverride string // -C/--cwd flag value; empty means os.Getwd()
}

// Load resolves configuration with precedence (highest wins):
//  1. Defaults
//  2. Global user config ($XDG_CONFIG_HOME/pwned-mirror/config.jsonc or
//     ~/.config/pwned-mirror/config.jsonc)
//  3. Project config: the file at Overrides.ConfigPath if set, otherwise
//     .pwned-mirror.jsonc in the working directory (Overrides.WorkDirOverride,
//     or os.Getwd()); only one of the two is read
//  4. CLI overrides (ResourceDir, Workers, DataFilePath, Mocked)
func Load(env map[string]string, overrides Overrides) (Config, error) {
	cfg := Default()

	globalCfg, globalPath, err := loadGlobalConfig(env)
	if err != nil {
		return Config{}, err
	}
	cfg.Sources.Global = globalPath
	cfg = merge(cfg, globalCfg)

	workDir := overrides.WorkDirOverride
	if workDir == "" {
		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}
	}

	projectCfg, projectPath, err := loadProjectConfig(workDir, overrides.ConfigPath)
	if err != nil {
		return Config{}, err
	}
	cfg.Sources.Project = projectPath
	cfg = merge(cfg, projectCfg)

	if overrides.ResourceDir != "" {
		cfg.ResourceDir = overrides.ResourceDir
	}
	if overrides.Workers != nil {
		cfg.Workers = *overrides.Workers
	}
	if overrides.DataFilePath != "" {
		cfg.ProviderKind = ProviderFile
		cfg.ProviderFilePath = overrides.DataFilePath
	}
	if overrides.Mocked {
		cfg.ProviderKind = ProviderMock
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func validate(cfg Config) error {
	if cfg.ResourceDir == "" {
		return ErrResourceDirEmpty
	}

	if cfg.Workers < MinWorkers || cfg.Workers > MaxWorkers {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrWorkersOutOfRange, cfg.Workers, MinWorkers, MaxWorkers)
	}

	return nil
}

// merge overlays non-zero fields of override onto base.
func merge(base, override Config) Config {
	if override.ResourceDir != "" {
		base.ResourceDir = override.ResourceDir
	}
	if override.Workers != 0 {
		base.Workers = override.Workers
	}
	if override.ProviderKind != "" {
		base.ProviderKind = override.ProviderKind
	}
	if override.ProviderFilePath != "" {
		base.ProviderFilePath = override.ProviderFilePath
	}
	if override.UpstreamBaseURL != "" {
		base.UpstreamBaseURL = override.UpstreamBaseURL
	}
	if override.BinaryLayout.Enabled() {
		base.BinaryLayout = override.BinaryLayout
	}

	return base
}

func getGlobalConfigPath(env map[string]string) string {
	if xdg := env["XDG_CONFIG_HOME"]; xdg != "" {
		return filepath.Join(xdg, "pwned-mirror", "config.jsonc")
	}
	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "pwned-mirror", "config.jsonc")
	}
	return ""
}

func loadGlobalConfig(env map[string]string) (Config, string, error) {
	path := getGlobalConfigPath(env)
	if path == "" {
		return Config{}, "", nil
	}

	cfg, loaded, err := loadConfigFile(path)
	if err != nil || !loaded {
		return Config{}, "", err
	}

	return cfg, path, nil
}

func loadProjectConfig(workDir, explicitPath string) (Config, string, error) {
	path := explicitPath
	if path == "" {
		path = filepath.Join(workDir, ".pwned-mirror.jsonc")
	}

	cfg, loaded, err := loadConfigFile(path)
	if err != nil || !loaded {
		return Config{}, "", err
	}

	return cfg, path, nil
}

func loadConfigFile(path string) (Config, bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, false, nil
		}
		return Config{}, false, fmt.Errorf("reading config file %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(raw)
	if err != nil {
		return Config{}, false, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, false, fmt.Errorf("decoding config file %s: %w", path, err)
	}

	return cfg, true, nil
}
