package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Sources    Sources    `yaml:"sources"`
	Pipeline   Pipeline   `yaml:"pipeline"`
	Sentiment  Sentiment  `yaml:"sentiment"`
	Enrich     Enrich     `yaml:"enrich"`
	Cache      Cache      `yaml:"cache"`
	Categories []Category `yaml:"categories"`
	Output     Output     `yaml:"output"`
	Server     Server     `yaml:"server"`
	Logging    Logging    `yaml:"logging"`
}

type Sources struct {
	Naver NaverConfig `yaml:"naver"`
	Feeds []Feed      `yaml:"feeds"`
}

type NaverConfig struct {
	Enabled         bool   `yaml:"enabled"`
	ClientIDEnv     string `yaml:"client_id_env"`
	ClientSecretEnv string `yaml:"client_secret_env"`
	Sort            string `yaml:"sort"`
	BaseURL         string `yaml:"base_url"`
}

type Feed struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

type Pipeline struct {
	PerQueryLimit  int     `yaml:"per_query_limit"`
	DedupThreshold float64 `yaml:"dedup_threshold"`
	Concurrency    int     `yaml:"concurrency"`
}

type Sentiment struct {
	APIKeyEnv      string `yaml:"api_key_env"`
	Model          string `yaml:"model"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxInputChars  int    `yaml:"max_input_chars"`
}

type Enrich struct {
	Enabled         bool `yaml:"enabled"`
	TimeoutSeconds  int  `yaml:"timeout_seconds"`
	MaxSummaryChars int  `yaml:"max_summary_chars"`
}

type Cache struct {
	Backend        string `yaml:"backend"`
	TTLMinutes     int    `yaml:"ttl_minutes"`
	MaxItems       int    `yaml:"max_items"`
	PostgresDSNEnv string `yaml:"postgres_dsn_env"`
	RedisAddr      string `yaml:"redis_addr"`
}

// Category is a named news feed backed by a fixed set of search queries.
// Either Queries or Regions is set; Search holds optional templates used
// when a caller searches for a free-form term within the category.
type Category struct {
	Name    string   `yaml:"name"`
	Queries []string `yaml:"queries"`
	Regions []Region `yaml:"regions"`
	Search  []string `yaml:"search"`
}

type Region struct {
	Name    string   `yaml:"name"`
	Queries []string `yaml:"queries"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for newsgrade.
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, "newsgrade")
}

// DataDir returns the XDG data directory for newsgrade.
func DataDir() string {
	return filepath.Join(xdg.DataHome, "newsgrade")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > $XDG_CONFIG_HOME/newsgrade/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'newsgrade init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// Default returns the embedded default configuration.
func Default() (*Config, error) {
	return parse(DefaultConfigYAML)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Sources: Sources{
			Naver: NaverConfig{
				Enabled:         true,
				ClientIDEnv:     "NAVER_CLIENT_ID",
				ClientSecretEnv: "NAVER_CLIENT_SECRET",
				Sort:            "date",
			},
		},
		Pipeline: Pipeline{
			PerQueryLimit:  10,
			DedupThreshold: 0.4,
			Concurrency:    4,
		},
		Sentiment: Sentiment{
			APIKeyEnv:      "HUGGINGFACE_API_KEY",
			Model:          "nlptown/bert-base-multilingual-uncased-sentiment",
			BaseURL:        "https://api-inference.huggingface.co/models",
			TimeoutSeconds: 10,
			MaxInputChars:  512,
		},
		Enrich: Enrich{
			TimeoutSeconds:  15,
			MaxSummaryChars: 300,
		},
		Cache: Cache{
			Backend:        "sqlite",
			TTLMinutes:     60,
			MaxItems:       50,
			PostgresDSNEnv: "NEWSGRADE_POSTGRES_DSN",
			RedisAddr:      "localhost:6379",
		},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Cache.Backend {
	case "sqlite", "postgres", "redis":
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}

	seen := make(map[string]struct{}, len(c.Categories))
	for _, cat := range c.Categories {
		if cat.Name == "" {
			return fmt.Errorf("category without a name")
		}
		if _, dup := seen[cat.Name]; dup {
			return fmt.Errorf("duplicate category %q", cat.Name)
		}
		seen[cat.Name] = struct{}{}
		if len(cat.Queries) == 0 && len(cat.Regions) == 0 {
			return fmt.Errorf("category %q has no queries", cat.Name)
		}
	}
	if c.Pipeline.DedupThreshold <= 0 || c.Pipeline.DedupThreshold > 1 {
		return fmt.Errorf("dedup_threshold must be in (0, 1], got %v", c.Pipeline.DedupThreshold)
	}
	return nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// Category looks up a category by name.
func (c *Config) Category(name string) (Category, bool) {
	for _, cat := range c.Categories {
		if cat.Name == name {
			return cat, true
		}
	}
	return Category{}, false
}

// CategoryNames returns the configured category names in config order.
func (c *Config) CategoryNames() []string {
	names := make([]string, len(c.Categories))
	for i, cat := range c.Categories {
		names[i] = cat.Name
	}
	return names
}

// CacheTTL returns the cache freshness window.
func (c *Config) CacheTTL() time.Duration {
	if c.Cache.TTLMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(c.Cache.TTLMinutes) * time.Minute
}

// Debug reports whether verbose logging was requested in the config.
func (c *Config) Debug() bool {
	return strings.EqualFold(c.Logging.Level, "DEBUG")
}

// QueriesFor resolves the search queries for a request.
//
// A search term is expanded through the category's templates. A known
// region selects that region's queries; with regions defined but no
// (or an unknown) region, the first query of every region is used.
func (c Category) QueriesFor(region, search string) []string {
	if search = strings.TrimSpace(search); search != "" {
		if len(c.Search) == 0 {
			return []string{search}
		}
		out := make([]string, 0, len(c.Search))
		for _, tmpl := range c.Search {
			if strings.Contains(tmpl, "%s") {
				out = append(out, fmt.Sprintf(tmpl, search))
			} else {
				out = append(out, tmpl)
			}
		}
		return out
	}

	if len(c.Regions) == 0 {
		return append([]string(nil), c.Queries...)
	}

	for _, r := range c.Regions {
		if r.Name == region {
			return append([]string(nil), r.Queries...)
		}
	}

	var out []string
	for _, r := range c.Regions {
		if len(r.Queries) > 0 {
			out = append(out, r.Queries[0])
		}
	}
	return out
}
