package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cvlviz/cvld/pkg/api"
	"github.com/cvlviz/cvld/pkg/config"
	"github.com/cvlviz/cvld/pkg/coordinator"
	"github.com/cvlviz/cvld/pkg/log"
	"github.com/cvlviz/cvld/pkg/metrics"
	"github.com/cvlviz/cvld/pkg/object"
	"github.com/cvlviz/cvld/pkg/timeseries"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var (
	cfg        = config.Default()
	configFile string
	noSSL      bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cvld",
	Short: "CVL object server - publish/subscribe for geospatial artifacts",
	Long: `cvld is a lightweight publish/subscribe and shared-object service.

Producers PUT/POST binary data and JSON metadata under string keys;
subscribers attach via a server-sent event stream and receive a live feed of
updates, deletes, control messages and broadcast queries. Timeseries database
files can be served read-only alongside the object store.`,
	Version: Version,
	RunE:    runServer,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"cvld version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	flags := rootCmd.Flags()
	flags.BoolVar(&cfg.ReadOnly, "read-only", false, "Run in read-only mode")
	flags.StringVar(&cfg.PersistDir, "persist", "", "Path to directory where objects will be stored. If not specified, objects disappear when the server restarts.")
	flags.IntVar(&cfg.Port, "port", config.DefaultPort, "Port number the web server will listen on")
	flags.BoolVar(&cfg.AnyInterface, "any", false, "Allow connections from any interface")
	flags.StringSliceVar(&cfg.Timeseries, "timeseries", nil, "Timeseries databases to serve data from")
	flags.BoolVar(&cfg.SSL, "ssl", true, "Enable SSL support")
	flags.BoolVar(&noSSL, "no-ssl", false, "Disable SSL support")
	flags.StringVar(&cfg.CertFile, "cert", "cert.pem", "Path to certificate file for SSL")
	flags.StringVar(&cfg.KeyFile, "key", "key.pem", "Path to private key file for SSL")
	flags.StringVar(&configFile, "config", "", "Optional YAML config file; flags take precedence")
	flags.StringVar(&cfg.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flags.BoolVar(&cfg.LogJSON, "log-json", false, "Emit JSON logs instead of console output")
}

func runServer(cmd *cobra.Command, args []string) error {
	if configFile != "" {
		fileCfg := config.Default()
		if err := fileCfg.LoadFile(configFile); err != nil {
			return err
		}
		applyFileConfig(cmd, fileCfg)
	}
	if noSSL {
		cfg.SSL = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log.Init(log.Config{Level: log.Level(cfg.LogLevel), JSONOutput: cfg.LogJSON})
	metrics.Register()
	metrics.SetVersion(Version)

	store := object.NewStore(cfg.PersistDir)
	metrics.RegisterComponent("store", true, "")

	coord := coordinator.New(store, cfg.ReadOnly)
	coord.Start()
	defer coord.Stop()
	metrics.RegisterComponent("coordinator", true, "running")

	ts, err := timeseries.OpenSet(cfg.Timeseries)
	if err != nil {
		return fmt.Errorf("failed to open timeseries databases: %v", err)
	}
	defer ts.Close()
	metrics.RegisterComponent("timeseries", true, fmt.Sprintf("%d sources", ts.Len()))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := api.NewServer(cfg, coord, store, ts)
	return server.Start(ctx)
}

// applyFileConfig overlays file values for every flag the user did not set
// explicitly on the command line.
func applyFileConfig(cmd *cobra.Command, fileCfg *config.Config) {
	flags := cmd.Flags()
	if !flags.Changed("read-only") {
		cfg.ReadOnly = fileCfg.ReadOnly
	}
	if !flags.Changed("persist") {
		cfg.PersistDir = fileCfg.PersistDir
	}
	if !flags.Changed("port") {
		cfg.Port = fileCfg.Port
	}
	if !flags.Changed("any") {
		cfg.AnyInterface = fileCfg.AnyInterface
	}
	if !flags.Changed("timeseries") {
		cfg.Timeseries = fileCfg.Timeseries
	}
	if !flags.Changed("ssl") {
		cfg.SSL = fileCfg.SSL
	}
	if !flags.Changed("cert") {
		cfg.CertFile = fileCfg.CertFile
	}
	if !flags.Changed("key") {
		cfg.KeyFile = fileCfg.KeyFile
	}
	if !flags.Changed("log-level") {
		cfg.LogLevel = fileCfg.LogLevel
	}
	if !flags.Changed("log-json") {
		cfg.LogJSON = fileCfg.LogJSON
	}
}
