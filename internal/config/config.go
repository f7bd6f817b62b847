package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

type Config struct {
	Addr                 string        `mapstructure:"addr"`
	DBPath               string        `mapstructure:"db_path"`
	AniListEndpoint      string        `mapstructure:"anilist_endpoint"`
	PerPage              int           `mapstructure:"per_page"`
	MaxVisiblePages      int           `mapstructure:"max_visible_pages"`
	MaxConcurrentFetches int           `mapstructure:"max_concurrent_fetches"`
	HTTPTimeout          time.Duration `mapstructure:"http_timeout"`
	CacheFreshFor        time.Duration `mapstructure:"cache_fresh_for"`
	PrefetchNext         bool          `mapstructure:"prefetch_next"`
	LogLevel             string        `mapstructure:"log_level"`
}

func Default() Config {
	return Config{
		Addr:                 "127.0.0.1:8080",
		DBPath:               "catalog.db",
		AniListEndpoint:      "https://graphql.anilist.co",
		PerPage:              20,
		MaxVisiblePages:      5,
		MaxConcurrentFetches: 2,
		HTTPTimeout:          15 * time.Second,
		CacheFreshFor:        5 * time.Minute,
		PrefetchNext:         true,
		LogLevel:             "info",
	}
}

// Load lit les valeurs par défaut, puis le fichier (optionnel, YAML), puis
// les variables CATALOG_* (ex: CATALOG_DB_PATH).
func Load(path string) (Config, error) {
	v, err := newViper(path)
	if err != nil {
		return Config{}, err
	}
	return decode(v)
}

// Watch relit le fichier à chaque modification et passe la nouvelle config à
// onChange. Sans fichier il n'y a rien à surveiller.
func Watch(path string, onChange func(Config)) error {
	if path == "" {
		return nil
	}
	v, err := newViper(path)
	if err != nil {
		return err
	}
	v.OnConfigChange(func(fsnotify.Event) {
		cfg, err := decode(v)
		if err != nil {
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

func newViper(path string) (*viper.Viper, error) {
	v := viper.New()
	def := Default()
	v.SetDefault("addr", def.Addr)
	v.SetDefault("db_path", def.DBPath)
	v.SetDefault("anilist_endpoint", def.AniListEndpoint)
	v.SetDefault("per_page", def.PerPage)
	v.SetDefault("max_visible_pages", def.MaxVisiblePages)
	v.SetDefault("max_concurrent_fetches", def.MaxConcurrentFetches)
	v.SetDefault("http_timeout", def.HTTPTimeout)
	v.SetDefault("cache_fresh_for", def.CacheFreshFor)
	v.SetDefault("prefetch_next", def.PrefetchNext)
	v.SetDefault("log_level", def.LogLevel)

	v.SetEnvPrefix("CATALOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return v, nil
}

func decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg.normalized(), nil
}

func (c Config) normalized() Config {
	def := Default()
	if c.PerPage <= 0 || c.PerPage > 50 {
		// AniList plafonne perPage à 50.
		c.PerPage = def.PerPage
	}
	if c.MaxVisiblePages <= 0 {
		c.MaxVisiblePages = def.MaxVisiblePages
	}
	if c.MaxConcurrentFetches <= 0 {
		c.MaxConcurrentFetches = def.MaxConcurrentFetches
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = def.HTTPTimeout
	}
	return c
}
