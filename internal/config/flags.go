package config

import (
	"encoding/json"

	"github.com/spf13/pflag"
)

func decodeInto(cfg *Config, standardized []byte) error {
	return json.Unmarshal(standardized, cfg)
}

// BindFlags registers the subset of Config settable from the command
// line (SPEC_FULL.md §4.9: "pflag (bind address, config path,
// worker/resolver counts, log level/format)").
func BindFlags(flags *pflag.FlagSet) {
	flags.String("bind", "", "listen address, e.g. 0.0.0.0:10000")
	flags.String("advertise-addr", "", "host:port advertised by CLUSTER SLOTS (default: derived from --bind)")
	flags.String("node-id", "", "node identifier advertised by CLUSTER SLOTS")
	flags.Int("workers", 0, "worker goroutine count (0 = use config file value)")
	flags.Int("resolvers", 0, "resolver goroutine count (0 = use config file value)")
	flags.String("log-level", "", "debug|info|warning|error")
	flags.Bool("log-json", false, "emit structured JSON logs instead of console format")
	flags.Bool("admin", false, "enable the admin HTTP/WebSocket endpoint")
}

func applyFlags(cfg *Config, flags *pflag.FlagSet) {
	if v, _ := flags.GetString("bind"); v != "" {
		cfg.BindAddr = v
	}
	if v, _ := flags.GetString("advertise-addr"); v != "" {
		cfg.AdvertiseAddr = v
	}
	if v, _ := flags.GetString("node-id"); v != "" {
		cfg.NodeID = v
	}
	if v, _ := flags.GetInt("workers"); v > 0 {
		cfg.Workers = v
	}
	if v, _ := flags.GetInt("resolvers"); v > 0 {
		cfg.ResolverCount = v
	}
	if v, _ := flags.GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if v, _ := flags.GetBool("log-json"); v {
		cfg.LogJSON = true
	}
	if v, _ := flags.GetBool("admin"); v {
		cfg.AdminEnabled = true
	}
}
