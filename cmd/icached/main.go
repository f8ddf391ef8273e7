// Command icached wires together the shard store, protocol server,
// background rehasher, and async miss resolver into a running cache
// process (spec.md §2 System Overview; SPEC_FULL.md §4.9 Config & CLI).
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/launix-de/icache/internal/admin"
	"github.com/launix-de/icache/internal/command"
	"github.com/launix-de/icache/internal/config"
	"github.com/launix-de/icache/internal/console"
	"github.com/launix-de/icache/internal/docstore"
	"github.com/launix-de/icache/internal/lifecycle"
	"github.com/launix-de/icache/internal/logging"
	"github.com/launix-de/icache/internal/presence"
	"github.com/launix-de/icache/internal/rehash"
	"github.com/launix-de/icache/internal/resolver"
	"github.com/launix-de/icache/internal/server"
	"github.com/launix-de/icache/internal/store"
	"github.com/spf13/pflag"
)

func main() {
	fmt.Println("icached — in-memory document-backfill cache")

	flags := pflag.NewFlagSet("icached", pflag.ExitOnError)
	configPath := flags.String("config", "", "path to a HuJSON config file")
	config.BindFlags(flags)
	flags.Parse(os.Args[1:])

	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, closer, err := logging.New(logging.Options{Level: cfg.LogLevel, Path: cfg.LogPath, JSON: cfg.LogJSON})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}

	st := store.New()
	compression := store.CompressionPolicy{
		Enabled:  cfg.CompressionEnabled,
		MinSize:  int(cfg.CompressionMinSize),
		MaxRatio: cfg.CompressionMaxRatio,
	}

	docsFactory, err := buildDocStoreFactory(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build docstore backend")
	}
	docs, err := docsFactory.Open("projections")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open docstore collection")
	}

	var presenceClient presence.Client
	if cfg.PresenceAddr != "" {
		presenceClient = presence.NewRedisClient(cfg.PresenceAddr, 200*time.Millisecond)
	} else {
		presenceClient = presence.NewStaticClient()
	}

	resolverPool := resolver.New(cfg.ResolverCount, cfg.ResolverQueue, st, docs, presenceClient, compression, log)

	selfHost, selfPort := cfg.SelfAddrPort()
	ctx := &command.Context{
		Store:       st,
		Resolver:    resolverPool,
		Hashes:      store.DefaultHashThresholds,
		Compression: compression,
		MaxMemory:   cfg.MaxMemory,
		SelfAddr:    selfHost,
		SelfPort:    selfPort,
		NodeID:      cfg.NodeID,
	}

	rehasher := rehash.New(st, log)

	ln, err := server.NewListener(cfg.BindAddr, cfg.Workers, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to bind listener")
	}
	workers := make([]*server.Worker, cfg.Workers)
	for i := range workers {
		workers[i] = server.NewWorker(i, ctx, ln.Handoffs(i), int(cfg.MaxQueryBuf), log)
	}

	var adminSrv *admin.Server
	if cfg.AdminEnabled {
		adminSrv = admin.New(cfg.AdminAddr, st, log)
	}

	barrier := lifecycle.New(log)
	barrier.Add("listener", ln.Stop)
	for _, w := range workers {
		w := w
		barrier.Add("worker", w.Stop)
	}
	barrier.Add("rehasher", rehasher.Stop)
	barrier.Add("resolvers", resolverPool.Stop)
	if adminSrv != nil {
		barrier.Add("admin", func() { adminSrv.Stop() })
	}
	barrier.InstallSignalHandler()

	go rehasher.Run()
	go resolverPool.Run()
	for _, w := range workers {
		go w.Run()
	}
	if adminSrv != nil {
		go func() {
			if err := adminSrv.Run(); err != nil {
				log.Warn().Err(err).Msg("admin server exited")
			}
		}()
	}

	log.Info().Str("addr", ln.Addr().String()).Int("workers", cfg.Workers).Int("resolvers", cfg.ResolverCount).Msg("icached ready")

	if isTTY(os.Stdin) {
		repl := &console.Console{Store: st, Filter: resolverPool}
		go func() {
			if err := repl.Run(); err != nil {
				log.Warn().Err(err).Msg("console exited")
			}
		}()
	}

	ln.Run()
}

func buildDocStoreFactory(cfg *config.Config) (docstore.Factory, error) {
	switch cfg.DocStoreBackend {
	case "memory", "":
		return docstore.NewMemoryFactory(), nil
	case "s3":
		return docstore.NewS3Factory(docstore.S3Config{}), nil
	case "sql":
		return docstore.OpenSQLFactory(docstore.SQLConfig{})
	default:
		return nil, fmt.Errorf("unknown docstore backend %q", cfg.DocStoreBackend)
	}
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
