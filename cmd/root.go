package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luma/piconats/cmd/gen"
	"github.com/luma/piconats/internal/env"
)

var (
	// The path of an optional TOML config file
	configPath string

	server   string
	name     string
	logLevel string
	trace    bool
)

var RootCmd = &cobra.Command{
	Use:   "piconats",
	Short: "A tiny NATS client",
	Long: `A tiny NATS client for constrained devices, and a CLI to try it out with.

Configuration is read from PICONATS_* environment variables (and .env.local),
then from the file given with --config, then from flags.

Usage
	piconats pub sensors.kitchen.temp 21.5
	piconats sub 'sensors.>' --http :8222
	piconats request svc.time now
`,
	SilenceUsage: true,
}

func init() {
	flags := RootCmd.PersistentFlags()

	flags.StringVarP(&configPath, "config", "c", "", "A TOML config file")
	flags.StringVarP(&server, "server", "s", "nats://127.0.0.1:4222", "The server to connect to, nats://host:port or tls://host:port")
	flags.StringVar(&name, "name", "piconats", "The client name sent to the server")
	flags.StringVar(&logLevel, "log-level", "info", "One of debug, info, warn, error")
	flags.BoolVar(&trace, "trace", false, "Log every byte sent and received, needs --log-level debug")

	RootCmd.AddCommand(PubCmd)
	RootCmd.AddCommand(SubCmd)
	RootCmd.AddCommand(RequestCmd)
	RootCmd.AddCommand(VersionCmd)
	RootCmd.AddCommand(gen.RootCmd)
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the config, applies the flags that were set explicitly and builds the
// logger.
func setup(cmd *cobra.Command) (*env.Config, *zap.Logger, error) {
	conf, err := env.LoadConfig(cmd.Context(), configPath)
	if err != nil {
		return nil, nil, err
	}

	flags := cmd.Flags()

	if flags.Changed("server") {
		conf.Server = server
	}

	if flags.Changed("name") {
		conf.Name = name
	}

	if flags.Changed("log-level") {
		conf.LogLevel = logLevel
	}

	if flags.Changed("trace") {
		conf.Trace = trace
	}

	log, err := env.MakeLogger(conf.LogLevel)
	if err != nil {
		return nil, nil, err
	}

	return conf, log, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
