// Package config holds application settings and the runtime config collaborator.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"marketfeed/internal/market"
)

// EnvPrefix namespaces environment overrides, e.g. MARKETFEED_SERVER_ADDR.
const EnvPrefix = "MARKETFEED"

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Server struct {
	Addr            string        `yaml:"addr"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type HTTP struct {
	Timeout      time.Duration `yaml:"timeout"`
	DrainTimeout time.Duration `yaml:"drain_timeout"`
	UserAgent    string        `yaml:"user_agent"`
}

type Cache struct {
	TTL      time.Duration `yaml:"ttl"`
	MaxItems int           `yaml:"max_items"`
}

type Fetch struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	BaseDelay      time.Duration `yaml:"base_delay"`
	MaxDelay       time.Duration `yaml:"max_delay"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`
	Priority       []string      `yaml:"priority"`
	Concurrency    int           `yaml:"concurrency"`
}

// Provider tunes one source adapter. Zero rate fields keep the adapter's defaults.
type Provider struct {
	Enabled           bool          `yaml:"enabled"`
	BaseURL           string        `yaml:"base_url"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	Burst             int           `yaml:"burst"`
	MinInterval       time.Duration `yaml:"min_interval"`
}

type Providers struct {
	AlphaVantage Provider `yaml:"alpha_vantage"`
	Polygon      Provider `yaml:"polygon"`
	Binance      Provider `yaml:"binance"`
	Yahoo        Provider `yaml:"yahoo"`
}

// Get returns the settings block for src.
func (p Providers) Get(src market.Source) Provider {
	switch src {
	case market.SourceAlphaVantage:
		return p.AlphaVantage
	case market.SourcePolygon:
		return p.Polygon
	case market.SourceBinance:
		return p.Binance
	case market.SourceYahoo:
		return p.Yahoo
	}
	return Provider{}
}

type Store struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type Warmer struct {
	Enabled   bool     `yaml:"enabled"`
	Spec      string   `yaml:"spec"`
	Symbols   []string `yaml:"symbols"`
	Intervals []string `yaml:"intervals"`
	Limit     int      `yaml:"limit"`
	Source    string   `yaml:"source"`
}

type Config struct {
	EnvFiles  []string  `yaml:"env_files"`
	Log       Log       `yaml:"log"`
	Server    Server    `yaml:"server"`
	HTTP      HTTP      `yaml:"http"`
	Cache     Cache     `yaml:"cache"`
	Fetch     Fetch     `yaml:"fetch"`
	Providers Providers `yaml:"providers"`
	Store     Store     `yaml:"store"`
	Warmer    Warmer    `yaml:"warmer"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env_files", []string{".env"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.request_timeout", "2m")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("http.timeout", "30s")
	v.SetDefault("http.drain_timeout", "5s")
	v.SetDefault("http.user_agent", "")
	v.SetDefault("cache.ttl", "300s")
	v.SetDefault("cache.max_items", 10000)
	v.SetDefault("fetch.max_attempts", 3)
	v.SetDefault("fetch.base_delay", "1s")
	v.SetDefault("fetch.max_delay", "30s")
	v.SetDefault("fetch.attempt_timeout", "30s")
	v.SetDefault("fetch.priority", []string{"alpha_vantage", "polygon", "binance", "yahoo"})
	v.SetDefault("fetch.concurrency", 4)
	for _, src := range market.Sources() {
		prefix := "providers." + string(src)
		v.SetDefault(prefix+".enabled", true)
		v.SetDefault(prefix+".base_url", "")
		v.SetDefault(prefix+".requests_per_minute", 0)
		v.SetDefault(prefix+".burst", 0)
		v.SetDefault(prefix+".min_interval", "0s")
	}
	v.SetDefault("store.enabled", true)
	v.SetDefault("store.path", "marketfeed.db")
	v.SetDefault("warmer.enabled", false)
	v.SetDefault("warmer.spec", "0 */5 * * * *")
	v.SetDefault("warmer.symbols", []string{})
	v.SetDefault("warmer.intervals", []string{"1d"})
	v.SetDefault("warmer.limit", 100)
	v.SetDefault("warmer.source", "auto")
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// Default returns the settings used when no file is present.
func Default() *Config {
	cfg, err := decode(newViper())
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads YAML settings from path. An empty path or a missing file yields
// defaults; MARKETFEED_* environment variables override both.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
		}
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
		dc.WeaklyTypedInput = true
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	return &cfg, nil
}

// Watch re-reads path whenever it changes and hands the new settings to fn.
// Invalid edits are reported through onErr and otherwise ignored.
func Watch(path string, fn func(*Config), onErr func(error)) error {
	if path == "" {
		return errors.New("config: watch needs a file path")
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("config: watch %s: %w", path, err)
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config file failed (%s): %w", path, err)
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := Load(path)
		if err != nil {
			if onErr != nil {
				onErr(err)
			}
			return
		}
		fn(cfg)
	})
	v.WatchConfig()
	return nil
}
