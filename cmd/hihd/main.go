// Command hihd is the high-interaction honeypot dispatcher's entrypoint: it
// loads and validates the configuration, pre-pulls configured images,
// starts one Connection Manager per honeypot, and blocks until a shutdown
// signal drains them all.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/dodancs/bit-hih-docker/pkg/config"
	"github.com/dodancs/bit-hih-docker/pkg/log"
	"github.com/dodancs/bit-hih-docker/pkg/metrics"
	"github.com/dodancs/bit-hih-docker/pkg/runtime"
	"github.com/dodancs/bit-hih-docker/pkg/supervisor"
)

// Version is set via -ldflags at build time and printed by --version as
// "hih-docker version X.Y.Z".
var Version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "hihd",
	Short:   "High-interaction honeypot dispatcher",
	Version: Version,
	RunE:    run,
	Args:    cobra.NoArgs,
	// Unknown args/flags print usage and exit 1, cobra's default
	// behavior for SilenceUsage=false.
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("hih-docker version %s\n", Version))

	// cobra's default -h/--help exits 0, but this CLI's help output must
	// exit 1. Wrap the default renderer instead of reimplementing it, then
	// exit 1 once it has printed.
	defaultHelp := rootCmd.HelpFunc()
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		defaultHelp(cmd, args)
		os.Exit(1)
	})

	flags := rootCmd.Flags()
	flags.BoolP("debug", "d", false, "enable debug logging")
	flags.StringP("config", "c", "config.json", "configuration file path")
	flags.String("bind", "", "override global bind IPv4 address")
	flags.Int("max-connections", 0, "override global connection budget")
	flags.Bool("force-pull", false, "pull every configured image even if locally present")
	flags.Int("metrics-port", 0, "expose Prometheus metrics on this port (0 disables)")
}

func run(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	debug, _ := flags.GetBool("debug")
	configPath, _ := flags.GetString("config")
	bindOverride, _ := flags.GetString("bind")
	maxConnOverride, _ := flags.GetInt("max-connections")
	forcePull, _ := flags.GetBool("force-pull")
	metricsPort, _ := flags.GetInt("metrics-port")

	level := log.InfoLevel
	if debug {
		level = log.DebugLevel
	}
	log.Init(log.Config{Level: level})

	overrides := config.Overrides{}
	if flags.Changed("bind") {
		if net.ParseIP(bindOverride) == nil || net.ParseIP(bindOverride).To4() == nil {
			return fmt.Errorf("--bind %q is not a valid IPv4 address", bindOverride)
		}
		overrides.Bind = bindOverride
		overrides.HasBind = true
	}
	if flags.Changed("max-connections") {
		if maxConnOverride < 1 {
			return fmt.Errorf("--max-connections must be a positive integer, got %d", maxConnOverride)
		}
		overrides.MaxConnections = maxConnOverride
		overrides.HasMaxConn = true
	}

	cfg, err := config.Load(configPath, overrides)
	if err != nil {
		log.Logger.Error().Err(err).Msg("configuration error")
		return err
	}

	rt, err := runtime.NewDockerRuntime()
	if err != nil {
		log.Logger.Error().Err(err).Msg("could not connect to container runtime")
		return err
	}
	defer rt.Close()

	collector := metrics.NewCollector()
	sup := supervisor.New(cfg, rt, collector, forcePull)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := sup.PrePullImages(ctx); err != nil {
		log.Logger.Error().Err(err).Msg("image pre-pull failed")
		return err
	}

	if metricsPort > 0 {
		go func() {
			addr := fmt.Sprintf(":%d", metricsPort)
			log.Logger.Info().Str("addr", addr).Msg("serving metrics")
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(addr, mux); err != nil {
				log.Logger.Warn().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	if err := sup.Start(ctx); err != nil {
		log.Logger.Error().Err(err).Msg("startup failed")
		return err
	}

	sup.Run(ctx)
	return nil
}
