package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/spektr-org/patrimonia/engine"
	"github.com/spektr-org/patrimonia/schema"
)

// DefaultTableURL is the public location of the scored disclosure table.
const DefaultTableURL = "https://www.dropbox.com/scl/fi/v7y2qfi7yee97i15fp78j/resultados_anticorrupcion.csv?rlkey=je634a217ga8a5psh4j2ulyum&st=liqyz188&dl=1"

// Config is the YAML document read by Load. Rules replaces the default
// rule registry when non-empty.
type Config struct {
	ListenAddr string          `yaml:"listen_addr"`
	Data       DataConfig      `yaml:"data"`
	Dashboard  DashboardConfig `yaml:"dashboard"`
	Rules      []schema.Rule   `yaml:"rules"`
	Log        LogConfig       `yaml:"log"`
}

// DataConfig locates the scored table and the metadata file and sets how
// long a loaded table is kept.
type DataConfig struct {
	TableURL        string        `yaml:"table_url"`
	MetadataPath    string        `yaml:"metadata_path"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	FetchTimeout    time.Duration `yaml:"fetch_timeout"`
}

// DashboardConfig holds the tunables of the dashboard views.
type DashboardConfig struct {
	TopDefault    int `yaml:"top_default"`
	RankingFloor  int `yaml:"ranking_floor"`
	RankingLimit  int `yaml:"ranking_limit"`
	HistogramBins int `yaml:"histogram_bins"`
}

// LogConfig selects the zap level and encoder.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the settings of the public dashboard. A zero cache TTL
// keeps the first load for the process lifetime.
func Default() Config {
	return Config{
		ListenAddr: ":8501",
		Data: DataConfig{
			TableURL:     DefaultTableURL,
			MetadataPath: "metadatos_analisis.json",
			FetchTimeout: 2 * time.Minute,
		},
		Dashboard: DashboardConfig{
			TopDefault:    20,
			RankingFloor:  5,
			RankingLimit:  15,
			HistogramBins: 50,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads a YAML file over the defaults. ${VAR} references are expanded
// from the environment before parsing. An empty path loads the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		// #nosec G304 -- path is operator-provided config path.
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}

		expanded := os.ExpandEnv(string(raw))
		expanded = strings.ReplaceAll(expanded, "\r\n", "\n")

		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides settings from PATRIMONIA_* variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) string {
		v, _ := lookup("PATRIMONIA_" + key)
		return strings.TrimSpace(v)
	}

	c.ListenAddr = firstNonEmpty(get("LISTEN_ADDR"), c.ListenAddr)
	c.Data.TableURL = firstNonEmpty(get("TABLE_URL"), c.Data.TableURL)
	c.Data.MetadataPath = firstNonEmpty(get("METADATA_PATH"), c.Data.MetadataPath)
	c.Log.Level = firstNonEmpty(get("LOG_LEVEL"), c.Log.Level)

	for key, dst := range map[string]*time.Duration{
		"CACHE_TTL":        &c.Data.CacheTTL,
		"REFRESH_INTERVAL": &c.Data.RefreshInterval,
		"FETCH_TIMEOUT":    &c.Data.FetchTimeout,
	} {
		v := get(key)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("PATRIMONIA_%s: %w", key, err)
		}
		*dst = d
	}

	if v := get("TOP_DEFAULT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PATRIMONIA_TOP_DEFAULT: %w", err)
		}
		c.Dashboard.TopDefault = n
	}
	return nil
}

// Validate reports the first missing or out-of-range setting.
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}
	if c.Data.TableURL == "" {
		return fmt.Errorf("data.table_url is required")
	}
	if c.Data.CacheTTL < 0 || c.Data.RefreshInterval < 0 || c.Data.FetchTimeout < 0 {
		return fmt.Errorf("data durations must not be negative")
	}
	if c.Dashboard.TopDefault < 10 || c.Dashboard.TopDefault > 50 {
		return fmt.Errorf("dashboard.top_default must be within [10, 50], got %d", c.Dashboard.TopDefault)
	}
	if c.Dashboard.RankingFloor < 1 {
		return fmt.Errorf("dashboard.ranking_floor must be positive")
	}
	if c.Dashboard.RankingLimit < 1 {
		return fmt.Errorf("dashboard.ranking_limit must be positive")
	}
	if c.Dashboard.HistogramBins < 1 {
		return fmt.Errorf("dashboard.histogram_bins must be positive")
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	if _, err := c.Registry(); err != nil {
		return fmt.Errorf("rules: %w", err)
	}
	return nil
}

// Registry builds the rule registry: the configured rules, or the default
// ten when none are configured.
func (c Config) Registry() (*schema.Registry, error) {
	if len(c.Rules) == 0 {
		return schema.DefaultRegistry(), nil
	}
	return schema.NewRegistry(c.Rules)
}

// EngineOptions translates the dashboard settings into engine options.
func (c Config) EngineOptions() ([]engine.Option, error) {
	reg, err := c.Registry()
	if err != nil {
		return nil, err
	}
	return []engine.Option{
		engine.WithRules(reg),
		engine.WithHistogramBins(c.Dashboard.HistogramBins),
		engine.WithRanking(c.Dashboard.RankingFloor, c.Dashboard.RankingLimit),
		engine.WithTopN(c.Dashboard.TopDefault, 10, 50),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
