// Package app builds the fhub-relay command.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fleethub-io/fleethub/cmd/fhub-relay/app/options"
	"github.com/fleethub-io/fleethub/pkg/log"
)

const (
	commandName = "fhub-relay"
	commandDesc = `The FleetHub relay is the message exchange between vehicles and their
operators. Vehicles publish status batches over HTTP or MQTT; operators
send commands to connected vehicles and long-poll for fresh statuses. The
relay keeps a retention-bounded message log and an in-memory view of which
cars, modules and devices are currently connected.`
)

// NewRelayCommand creates the root cobra command.
func NewRelayCommand() *cobra.Command {
	opts := options.NewRelayOptions()
	var configFile string

	cmd := &cobra.Command{
		Use:          commandName,
		Short:        "Launch the FleetHub message relay",
		Long:         commandDesc,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(cmd, configFile, opts); err != nil {
				return err
			}
			if err := opts.Validate(); err != nil {
				return err
			}
			return run(opts)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to the configuration file (yaml).")
	opts.AddFlags(cmd.Flags())
	return cmd
}

// loadConfig layers the configuration: defaults, then the config file, then
// FHUB_* environment variables, then explicit flags.
func loadConfig(cmd *cobra.Command, configFile string, opts *options.RelayOptions) error {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	}
	viper.SetEnvPrefix("FHUB")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	if configFile != "" {
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return viper.Unmarshal(opts)
}

func run(opts *options.RelayOptions) error {
	log.Init(opts.Log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := opts.Config()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	server, err := cfg.NewRelayServer()
	if err != nil {
		return fmt.Errorf("failed to create relay server: %w", err)
	}

	// The long-poll timeouts follow config-file edits without a restart.
	// Everything else (addresses, store path) still needs one.
	if viper.ConfigFileUsed() != "" {
		viper.OnConfigChange(func(e fsnotify.Event) {
			log.Info("config file changed, reloading exchange timeouts", "file", e.Name)
			if err := viper.Unmarshal(opts); err != nil {
				log.Error(err, "failed to reload configuration, keeping previous values")
				return
			}
			server.Service().SetWaitTimeouts(
				opts.ExchangeOptions.StatusWaitTimeout,
				opts.ExchangeOptions.CommandWaitTimeout,
				opts.ExchangeOptions.CarWaitTimeout,
			)
		})
		viper.WatchConfig()
	}

	if err := server.Run(ctx); err != nil {
		log.Error(err, "relay server exited with error")
		return err
	}
	return nil
}

// Execute runs the command, exiting non-zero on failure.
func Execute() {
	if err := NewRelayCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
