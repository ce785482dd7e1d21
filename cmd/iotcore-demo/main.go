// Command iotcore-demo assembles a Container from a configuration
// source, starts it, and runs until interrupted.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"iotcore/internal/configsrc/file"
	"iotcore/internal/configsrc/memory"
	"iotcore/internal/configsrc/yamlkv"
	"iotcore/internal/container"
	"iotcore/internal/obslog"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "iotcore-demo",
		Short: "Run an iotcore component container from a configuration source",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Load, start, and run a container until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			name, _ := cmd.Flags().GetString("name")
			bootstrap, _ := cmd.Flags().GetBool("bootstrap")
			verbose, _ := cmd.Flags().GetBool("verbose")

			var log *slog.Logger
			if verbose {
				log = slog.New(slog.NewTextHandler(os.Stderr, nil))
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			return run(ctx, log, name, configDir, bootstrap)
		},
	}
	runCmd.Flags().String("config-dir", "", "directory of YAML configuration files (default: in-memory store, seeded only with --bootstrap)")
	runCmd.Flags().String("name", "demo", "container name")
	runCmd.Flags().Bool("bootstrap", false, "seed an in-memory Logger+Worker pool+Scheduler configuration (used only when --config-dir is not set)")
	runCmd.Flags().Bool("verbose", false, "emit the runtime's own wiring/lifecycle diagnostics to stderr")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}

	rootCmd.AddCommand(runCmd, versionCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, baseLog *slog.Logger, name, configDir string, bootstrap bool) error {
	log := obslog.Default(baseLog).With("container", name)

	container.RegisterBuiltinFactories()
	c := container.New(name)

	if configDir != "" {
		log.Info("wiring container from file configsrc", "dir", configDir)
		store := file.New()
		c.SetConfig(store, yamlkv.Parser{}, configDir, store)
	} else {
		log.Info("wiring container from in-memory configsrc", "bootstrap", bootstrap)
		store, err := bootstrapMemoryStore(ctx, name, bootstrap)
		if err != nil {
			return err
		}
		c.SetConfig(store, yamlkv.Parser{}, name, store)
	}

	if err := c.Init(ctx); err != nil {
		return fmt.Errorf("init container: %w", err)
	}
	log.Info("container initialized", "components", len(c.List()))

	if err := c.Start(); err != nil {
		return fmt.Errorf("start container: %w", err)
	}
	log.Info("container started")

	<-ctx.Done()

	log.Info("shutting down")
	return c.Free()
}

// bootstrapMemoryStore returns the in-memory configuration source used
// when no --config-dir is supplied. When bootstrap is true it seeds one
// Logger, one Worker pool bound to it, and one Scheduler bound to the
// pool — a minimal but complete S1-shaped container; otherwise the
// store is returned empty.
func bootstrapMemoryStore(ctx context.Context, name string, bootstrap bool) (*memory.Store, error) {
	store := memory.New()
	if !bootstrap {
		return store, nil
	}

	master, err := yamlkv.Encode(map[string]string{
		"log":  "Logger",
		"pool": "Worker pool",
		"sch":  "Scheduler",
	})
	if err != nil {
		return nil, err
	}
	logCfg, err := yamlkv.Encode(map[string]string{"Level": "Info", "Start": "true"})
	if err != nil {
		return nil, err
	}
	poolCfg, err := yamlkv.Encode(map[string]string{"Threads": "4", "MaxJobs": "64", "Logger": "log"})
	if err != nil {
		return nil, err
	}
	schCfg, err := yamlkv.Encode(map[string]string{"ThreadPool": "pool", "Logger": "log"})
	if err != nil {
		return nil, err
	}

	if err := store.Save(ctx, name, name, master); err != nil {
		return nil, err
	}
	if err := store.Save(ctx, "log", name, logCfg); err != nil {
		return nil, err
	}
	if err := store.Save(ctx, "pool", name, poolCfg); err != nil {
		return nil, err
	}
	if err := store.Save(ctx, "sch", name, schCfg); err != nil {
		return nil, err
	}
	return store, nil
}
