// Package config loads and freezes the process-wide configuration
// (SPEC_FULL.md §4.9): a HuJSON file (tolerant of comments and trailing
// commas, via tailscale/hujson) merged with pflag command-line flags,
// producing one immutable *Config passed by explicit handle — no ambient
// mutable globals, per Design Notes §9.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/docker/go-units"
	"github.com/spf13/pflag"
	"github.com/tailscale/hujson"
)

// Config is the frozen, fully-resolved configuration. Shard/worker/
// resolver counts are fixed at boot; only LogLevel, LogJSON and
// AdminEnabled are reloadable (SPEC_FULL.md §9 Open Question 4).
type Config struct {
	BindAddr string `json:"bind_addr"`

	// AdvertiseAddr/NodeID are what `CLUSTER SLOTS` reports for this
	// node's shard range (spec.md §4.3/§6). AdvertiseAddr defaults to
	// BindAddr's host, substituting 127.0.0.1 for the unroutable
	// 0.0.0.0/:: wildcards.
	AdvertiseAddr string `json:"advertise_addr"`
	NodeID        string `json:"node_id"`

	Workers        int `json:"workers"`
	ResolverCount  int `json:"resolvers"`
	ResolverQueue  int `json:"resolver_queue_size"`

	MaxMemory     int64 `json:"maxmemory"`
	MaxQueryBuf   int64 `json:"max_query_buffer"`

	CompressionEnabled  bool    `json:"compression_enabled"`
	CompressionMinSize  int64   `json:"compression_min_size"`
	CompressionMaxRatio float64 `json:"compression_max_ratio"`

	DocStoreBackend string `json:"docstore_backend"` // memory, s3, sql
	PresenceAddr    string `json:"presence_addr"`

	LogLevel  string `json:"log_level"`
	LogPath   string `json:"log_path"`
	LogJSON   bool   `json:"log_json"`

	AdminEnabled bool   `json:"admin_enabled"`
	AdminAddr    string `json:"admin_addr"`

	ConfigPath string `json:"-"` // set by Load, used by the fsnotify watcher
}

// Default returns the baseline configuration before flags/file overrides.
func Default() *Config {
	return &Config{
		BindAddr:            "0.0.0.0:10000",
		Workers:             4,
		ResolverCount:       2,
		ResolverQueue:       1024,
		MaxMemory:           0,
		MaxQueryBuf:         512 * 1024 * 1024,
		CompressionEnabled:  false,
		CompressionMinSize:  1024,
		CompressionMaxRatio: 0.9,
		DocStoreBackend:     "memory",
		LogLevel:            "info",
		AdminEnabled:        false,
		AdminAddr:           "127.0.0.1:10001",
		NodeID:              "icache-1",
	}
}

// SelfAddrPort splits BindAddr (or AdvertiseAddr, if set) into the host/port
// pair `CLUSTER SLOTS` advertises, substituting 127.0.0.1 for an unroutable
// wildcard bind host.
func (c *Config) SelfAddrPort() (host string, port int) {
	addr := c.AdvertiseAddr
	if addr == "" {
		addr = c.BindAddr
	}
	h, p, err := net.SplitHostPort(addr)
	if err != nil {
		return "127.0.0.1", 0
	}
	if h == "" || h == "0.0.0.0" || h == "::" {
		h = "127.0.0.1"
	}
	port, _ = strconv.Atoi(p)
	return h, port
}

// Load reads and parses a HuJSON config file on top of Default(), then
// applies flags registered via BindFlags (flags always win).
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		std, err := hujson.Standardize(raw)
		if err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		if err := decodeInto(cfg, std); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
		cfg.ConfigPath = path
	}
	if flags != nil {
		applyFlags(cfg, flags)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("config: workers must be >= 1")
	}
	if c.ResolverCount < 1 {
		return fmt.Errorf("config: resolvers must be >= 1")
	}
	switch c.DocStoreBackend {
	case "memory", "s3", "sql":
	default:
		return fmt.Errorf("config: unknown docstore_backend %q", c.DocStoreBackend)
	}
	return nil
}

// ParseSize parses a human byte-size string ("512mb", "4gb") via
// docker/go-units, the way an operator writes it in the config file
// (SPEC_FULL.md §3).
func ParseSize(s string) (int64, error) {
	return units.RAMInBytes(s)
}

// reloadInterval is how often the fsnotify-driven watcher is willing to
// re-read the config file in response to a burst of filesystem events.
const reloadInterval = 500 * time.Millisecond
