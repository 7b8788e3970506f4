package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/hostdata/pkg/config"
	"github.com/openfroyo/hostdata/pkg/data"
	"github.com/openfroyo/hostdata/pkg/ffi"
	"github.com/openfroyo/hostdata/pkg/telemetry"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	a := &app{}
	return a.execute(ctx, newRootCommand(a, version, commit, buildDate))
}

// execute runs cmd and then shuts telemetry down. Cobra skips post-run
// hooks when RunE fails, so the shutdown cannot live in one.
func (a *app) execute(ctx context.Context, cmd *cobra.Command) error {
	defer a.close()
	return cmd.ExecuteContext(ctx)
}

// app holds what every data command needs, built once from the config file.
type app struct {
	cfg    *config.Config
	tel    *telemetry.Telemetry
	bridge *ffi.Bridge
	ctx    context.Context
}

func (a *app) init(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	tel, err := telemetry.NewTelemetry(&cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	a.tel = tel
	if err := tel.StartMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	loaderCfg, err := cfg.DataLoaderConfig(tel.Logger, tel.Tracer)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.ctx = tel.WithContext(ctx)
	a.bridge = ffi.NewBridge(&ffi.BridgeConfig{
		Loader:  data.NewLoader(loaderCfg),
		Logger:  tel.Logger,
		Metrics: tel.Metrics,
	})
	return nil
}

// close shuts telemetry down once. It is safe to call before init.
func (a *app) close() {
	if a.tel == nil {
		return
	}
	if err := a.tel.Shutdown(context.Background()); err != nil {
		log.Warn().Err(err).Msg("Telemetry shutdown failed")
	}
	a.tel = nil
}

func newRootCommand(a *app, version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "froyo",
		Short: "OpenFroyo - structured data access across language boundaries",
		Long: `froyo opens JSON, YAML and CUE documents and reads them through the same
handle-based boundary that WASM guests, Starlark scripts and C callers use.

Values are addressed with JSON Pointers (RFC 6901) and read with an explicit
type tag: null, bool, int, uint, float, string, array or object.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd.Context())
		},
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newDataCommand(a))

	return rootCmd
}
