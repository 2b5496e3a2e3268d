// Package cli wires trackload's cobra commands to the config, tracker and
// load runtime packages.
package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/rokkincat/trackload/internal/config"
	"github.com/rokkincat/trackload/internal/logging"
)

var version = "0.1.0"

var (
	// ErrThresholdsFailed is returned by run when any threshold fails.
	ErrThresholdsFailed = errors.New("thresholds failed")

	// ErrCheckFailed is returned by one-shot commands whose response
	// status is not 200 or 201.
	ErrCheckFailed = errors.New("status check failed")
)

// options is the state shared by every command.
type options struct {
	viper      *viper.Viper
	configFile string
}

// NewRootCmd builds the trackload command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{viper: config.NewViper()}

	root := &cobra.Command{
		Use:     "trackload",
		Short:   "Load generator for the location tracking API",
		Version: version,
		Long: `trackload drives the location tracking service the way its mobile
clients do: each virtual user logs in and submits a location point, over a
ramping or constant load profile, and every response is checked.

Settings come from defaults, then --config, then TRACKLOAD_* environment
variables, then flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configFile, "config", "c", "", "Configuration file (YAML or JSON)")
	pf.String(config.KeyHost, "", "Base URL of the tracking service")
	pf.String(config.KeyEmail, "", "Admin account email")
	pf.String(config.KeyPassword, "", "Admin account password")
	pf.String(config.KeyTimeout, "", "Per-request timeout (e.g. 30s)")
	pf.Bool(config.KeyInsecure, false, "Skip TLS certificate verification")
	pf.String(config.KeyPointUUID, "", "Send every point with this UUID instead of a fresh one")
	pf.Int64(config.KeyUserID, 0, "User id placed in points and queried by pay-performance")
	pf.String(config.KeyLogLevel, "", "Log level: debug, info, warn, error")
	pf.String(config.KeyLogFormat, "", "Log format: console or json")
	bindFlags(opts.viper, pf, config.KeyHost, config.KeyEmail, config.KeyPassword, config.KeyTimeout,
		config.KeyInsecure, config.KeyPointUUID, config.KeyUserID, config.KeyLogLevel, config.KeyLogFormat)

	root.AddCommand(newRunCmd(opts))
	root.AddCommand(newAPICmds(opts)...)

	return root
}

// Execute runs the root command. The error is printed before it is returned.
func Execute() error {
	root := NewRootCmd()
	err := root.Execute()
	if err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
	}
	return err
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet, keys ...string) {
	for _, key := range keys {
		if err := v.BindPFlag(key, fs.Lookup(key)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", key, err))
		}
	}
}

// load returns the effective configuration.
func (o *options) load() (*config.Config, error) {
	return config.Load(o.configFile, o.viper)
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}
