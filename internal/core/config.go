package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tailscale/hujson"
)

const (
	ConfigFileName = "skillsource.jsonc"

	defaultLocalDir    = ".rulesync/skills"
	defaultCuratedDir  = ".rulesync/skills/.curated"
	defaultTimeout     = 60 * time.Second
	defaultConcurrency = 4
)

// AllowListPrecedence decides how per-source allow-lists interact with
// first-declared-wins.
type AllowListPrecedence string

const (
	// PrecedenceDeclaration: allow-lists only restrict their own source; the
	// earliest declared source that offers and admits a name wins.
	PrecedenceDeclaration AllowListPrecedence = "declaration"
	// PrecedenceExplicit: a source whose allow-list names a skill exactly
	// outranks sources that only offer it through an unfiltered listing or a
	// glob, regardless of declaration order.
	PrecedenceExplicit AllowListPrecedence = "explicit"
)

// Duration is a time.Duration written as a Go duration string ("45s") in JSON.
type Duration time.Duration

// UnmarshalJSON accepts "90s"-style strings or a number of seconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return fmt.Errorf("invalid duration %s", string(data))
	}
	*d = Duration(secs * float64(time.Second))
	return nil
}

// MarshalJSON writes the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// RetryConfig bounds retries of transient network failures.
type RetryConfig struct {
	Attempts     int      `json:"attempts,omitempty"`
	InitialDelay Duration `json:"initialDelay,omitempty"`
	MaxDelay     Duration `json:"maxDelay,omitempty"`
}

// Config is the project configuration stored in skillsource.jsonc.
type Config struct {
	Sources             []SourceSpec        `json:"sources"`
	LocalDir            string              `json:"localDir,omitempty"`
	CuratedDir          string              `json:"curatedDir,omitempty"`
	AllowListPrecedence AllowListPrecedence `json:"allowListPrecedence,omitempty"`
	Timeout             Duration            `json:"timeout,omitempty"`
	Concurrency         int                 `json:"concurrency,omitempty"`
	Retry               RetryConfig         `json:"retry,omitempty"`
	CloneURLOverrides   map[string]string   `json:"cloneURLOverrides,omitempty"`
	Systems             []string            `json:"systems,omitempty"`
}

// ConfigPath returns the config file path for a project directory.
func ConfigPath(dir string) string {
	return filepath.Join(dir, ConfigFileName)
}

// LoadConfig reads skillsource.jsonc from dir. Comments and trailing commas
// are allowed. A missing file yields the default config with no sources.
func LoadConfig(dir string) (*Config, error) {
	data, err := os.ReadFile(ConfigPath(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return defaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg := defaultConfig()
	if err := json.Unmarshal(std, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the installer cannot honor.
func (c *Config) Validate() error {
	switch c.AllowListPrecedence {
	case PrecedenceDeclaration, PrecedenceExplicit:
	default:
		return fmt.Errorf("config: allowListPrecedence must be %q or %q, got %q",
			PrecedenceDeclaration, PrecedenceExplicit, c.AllowListPrecedence)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("config: concurrency must be at least 1")
	}
	if c.Retry.Attempts < 1 {
		return fmt.Errorf("config: retry.attempts must be at least 1")
	}
	if filepath.IsAbs(c.LocalDir) || filepath.IsAbs(c.CuratedDir) {
		return fmt.Errorf("config: localDir and curatedDir must be project-relative")
	}
	if filepath.Clean(c.LocalDir) == filepath.Clean(c.CuratedDir) {
		return fmt.Errorf("config: localDir and curatedDir must differ")
	}
	return nil
}

// ParsedSources parses the declared sources in order.
func (c *Config) ParsedSources() ([]Source, error) {
	return ParseSources(c.Sources, c.CloneURLOverrides)
}

func (c *Config) applyDefaults() {
	if c.LocalDir == "" {
		c.LocalDir = defaultLocalDir
	}
	if c.CuratedDir == "" {
		c.CuratedDir = defaultCuratedDir
	}
	if c.AllowListPrecedence == "" {
		c.AllowListPrecedence = PrecedenceDeclaration
	}
	if c.Timeout <= 0 {
		c.Timeout = Duration(defaultTimeout)
	}
	if c.Concurrency == 0 {
		c.Concurrency = defaultConcurrency
	}
	if c.Retry.Attempts == 0 {
		c.Retry.Attempts = 3
	}
	if c.Retry.InitialDelay <= 0 {
		c.Retry.InitialDelay = Duration(500 * time.Millisecond)
	}
	if c.Retry.MaxDelay <= 0 {
		c.Retry.MaxDelay = Duration(5 * time.Second)
	}
}

func defaultConfig() *Config {
	cfg := &Config{Sources: []SourceSpec{}}
	cfg.applyDefaults()
	return cfg
}

// AddSource appends a source declaration to dir's config file, creating the
// file if needed. Existing comments and formatting are preserved.
func AddSource(dir string, spec SourceSpec) error {
	src, err := ParseSource(spec.Source)
	if err != nil {
		return err
	}

	root, err := readConfigAST(dir)
	if err != nil {
		return err
	}

	existing, err := specsFromAST(root)
	if err != nil {
		return err
	}
	for _, e := range existing {
		other, err := ParseSource(e.Source)
		if err == nil && strings.EqualFold(other.Repo, src.Repo) {
			return fmt.Errorf("source %s is already configured", src.Repo)
		}
	}

	if root.Find("/sources") == nil {
		if err := root.Patch([]byte(`[{"op":"add","path":"/sources","value":[]}]`)); err != nil {
			return fmt.Errorf("creating sources list: %w", err)
		}
	}

	value, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("marshaling source: %w", err)
	}
	patch := fmt.Sprintf(`[{"op":"add","path":"/sources/-","value":%s}]`, value)
	if err := root.Patch([]byte(patch)); err != nil {
		return fmt.Errorf("adding source: %w", err)
	}

	root.Format()
	return writeFileAtomic(ConfigPath(dir), root.Pack())
}

// RemoveSource deletes the declaration of repo ("owner/repo") from dir's
// config file. It reports whether a declaration was removed.
func RemoveSource(dir string, repo string) (bool, error) {
	root, err := readConfigAST(dir)
	if err != nil {
		return false, err
	}
	specs, err := specsFromAST(root)
	if err != nil {
		return false, err
	}

	for i, spec := range specs {
		src, err := ParseSource(spec.Source)
		if err != nil || !strings.EqualFold(src.Repo, repo) {
			continue
		}
		patch := fmt.Sprintf(`[{"op":"remove","path":"/sources/%d"}]`, i)
		if err := root.Patch([]byte(patch)); err != nil {
			return false, fmt.Errorf("removing source: %w", err)
		}
		root.Format()
		return true, writeFileAtomic(ConfigPath(dir), root.Pack())
	}
	return false, nil
}

func readConfigAST(dir string) (hujson.Value, error) {
	data, err := os.ReadFile(ConfigPath(dir))
	if err != nil {
		if !os.IsNotExist(err) {
			return hujson.Value{}, fmt.Errorf("reading config: %w", err)
		}
		data = []byte("{}")
	}
	root, err := hujson.Parse(data)
	if err != nil {
		return hujson.Value{}, fmt.Errorf("parsing config: %w", err)
	}
	return root, nil
}

func specsFromAST(root hujson.Value) ([]SourceSpec, error) {
	clone := root.Clone()
	clone.Standardize()
	var raw struct {
		Sources []SourceSpec `json:"sources"`
	}
	if err := json.Unmarshal(clone.Pack(), &raw); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return raw.Sources, nil
}
