package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"github.com/jacentio/docservice/query"
	"github.com/jacentio/docservice/service"
	"github.com/jacentio/docservice/store"
)

// envPrefix prefixes every environment variable, e.g. DOCSERVICE_TABLE.
const envPrefix = "DOCSERVICE"

// config is the process configuration.
type config struct {
	Table        string
	IDField      string
	TTLAttribute string
	PageSize     int32
	Segments     int

	Lean              bool
	Consistency       query.Consistency
	Paginate          query.Paginate
	Whitelist         []string
	Multi             []string
	CreateConcurrency int

	Region   string
	Endpoint string

	LogLevel  slog.Level
	LogFormat string
}

// loadConfig reads the configuration from environment variables through v.
func loadConfig(v *viper.Viper) (config, error) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := store.DefaultConfig()
	v.SetDefault("table", defaults.Table)
	v.SetDefault("id_field", defaults.IDField)
	v.SetDefault("ttl_attribute", defaults.TTLAttribute)
	v.SetDefault("page_size", 0)
	v.SetDefault("scan_segments", defaults.Segments)
	v.SetDefault("lean", true)
	v.SetDefault("consistency", string(query.ConsistencyNone))
	v.SetDefault("paginate_default", 0)
	v.SetDefault("paginate_max", 0)
	v.SetDefault("whitelist", "")
	v.SetDefault("multi", service.MultiAll)
	v.SetDefault("create_concurrency", 8)
	v.SetDefault("region", "")
	v.SetDefault("endpoint", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	cfg := config{
		Table:             v.GetString("table"),
		IDField:           v.GetString("id_field"),
		TTLAttribute:      v.GetString("ttl_attribute"),
		PageSize:          v.GetInt32("page_size"),
		Segments:          v.GetInt("scan_segments"),
		Lean:              v.GetBool("lean"),
		Consistency:       query.Consistency(strings.ToLower(v.GetString("consistency"))),
		Paginate:          query.Paginate{Default: v.GetInt("paginate_default"), Max: v.GetInt("paginate_max")},
		Whitelist:         list(v.GetString("whitelist")),
		Multi:             list(v.GetString("multi")),
		CreateConcurrency: v.GetInt("create_concurrency"),
		Region:            v.GetString("region"),
		Endpoint:          v.GetString("endpoint"),
		LogFormat:         strings.ToLower(v.GetString("log_format")),
	}

	switch cfg.Consistency {
	case query.ConsistencyNone, query.ConsistencyLocal, query.ConsistencyGlobal:
	default:
		return config{}, fmt.Errorf("consistency: unknown value %q", cfg.Consistency)
	}
	if cfg.Paginate.Default < 0 || cfg.Paginate.Max < 0 {
		return config{}, fmt.Errorf("paginate: default and max must not be negative")
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString("log_level"))); err != nil {
		return config{}, fmt.Errorf("log_level: %w", err)
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return config{}, fmt.Errorf("log_format: unknown value %q", cfg.LogFormat)
	}
	return cfg, nil
}

func (c config) storeConfig() store.Config {
	return store.Config{
		Table:        c.Table,
		IDField:      c.IDField,
		TTLAttribute: c.TTLAttribute,
		PageSize:     c.PageSize,
		Segments:     c.Segments,
	}
}

func (c config) serviceConfig() service.Config {
	return service.Config{
		IDField: c.IDField,
		Options: query.StaticOptions{
			Lean:        c.Lean,
			Consistency: c.Consistency,
		},
		Whitelist:         c.Whitelist,
		Multi:             c.Multi,
		Paginate:          c.Paginate,
		CreateConcurrency: c.CreateConcurrency,
	}
}

func (c config) logger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// list splits a comma- or space-separated value.
func list(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' '
	})
}
