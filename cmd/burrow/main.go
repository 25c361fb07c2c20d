package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/burrowlabs/burrow/pkg/auth"
	"github.com/burrowlabs/burrow/pkg/config"
	"github.com/burrowlabs/burrow/pkg/gateway"
	"github.com/burrowlabs/burrow/pkg/log"
	"github.com/burrowlabs/burrow/pkg/ring"
	"github.com/burrowlabs/burrow/pkg/shard"
	"github.com/burrowlabs/burrow/pkg/shark"
	"github.com/burrowlabs/burrow/pkg/types"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "burrow",
	Short: "Burrow - front-door gateway for a distributed object store",
	Long: `Burrow is the HTTP front door of a distributed object store.

It authenticates requests, routes metadata operations to the right
shard via a consistent-hash placement ring, streams object bodies
between clients and replicated storage nodes with end-to-end MD5
verification, and merges per-vnode listings into sorted NDJSON
streams.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Burrow version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	serverCmd.Flags().StringP("config", "c", "burrow.yaml", "Path to the configuration file")
	rootCmd.AddCommand(serverCmd)
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the gateway server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfgPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		return runServer(cfg)
	},
}

func runServer(cfg *config.Config) error {
	log.Init(log.Config{
		Level:      log.Level(cfg.Log.Level),
		JSONOutput: cfg.Log.JSON,
	})
	logger := log.WithComponent("main")
	logger.Info().Str("version", Version).Str("commit", Commit).Msg("starting burrow")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cache *ring.Cache
	if cfg.Placement.CachePath != "" {
		var err error
		if cache, err = ring.OpenCache(cfg.Placement.CachePath); err != nil {
			return fmt.Errorf("failed to open placement cache: %w", err)
		}
		defer cache.Close()
	}

	r, err := ring.Bootstrap(ctx, ring.NewHTTPSource(cfg.Placement.URL), cache)
	if err != nil {
		return err
	}
	go r.Poll(ctx, cfg.Placement.PollInterval)

	inventory := make([]types.Shark, 0, len(cfg.Storage.Inventory))
	for _, entry := range cfg.Storage.Inventory {
		id := entry.Address
		if id == "" {
			id = entry.StorageID
		}
		inventory = append(inventory, types.Shark{
			Datacenter: entry.Datacenter,
			StorageID:  id,
		})
	}

	accounts := make([]auth.Entry, 0, len(cfg.Auth.Accounts))
	for _, a := range cfg.Auth.Accounts {
		accounts = append(accounts, auth.Entry{
			Login: a.Login, UUID: a.UUID, Token: a.Token, Roles: a.Roles,
		})
	}

	g := gateway.New(gateway.Options{
		Config: cfg,
		Ring:   r,
		Shards: shard.NewPool(r.Snapshot().Pnodes()),
		Agent: shark.NewAgent(shark.AgentConfig{
			ConnectTimeout: cfg.Storage.ConnectTimeout,
			ConnectRetries: cfg.Storage.ConnectRetries,
		}),
		Chooser: shark.NewInventoryChooser(inventory, cfg.Storage.NodeCapacity, time.Now().UnixNano()),
		Auth:    auth.NewStaticAuthenticator(accounts),
		Authz:   auth.OwnerAuthorizer{},
		Probes:  gateway.MetricsProbes{},
	})

	srv := gateway.NewServer(&cfg.Server, g.Handler())
	if err := srv.Run(ctx); err != nil {
		return err
	}
	logger.Info().Msg("shutdown complete")
	return nil
}
