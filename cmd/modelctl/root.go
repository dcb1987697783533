package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/germanamz/modelkit/pkg/engine"
)

// app holds what every subcommand needs once the root command has loaded
// the configuration.
type app struct {
	v       *viper.Viper
	log     *zap.Logger
	engine  *engine.Engine
	verbose bool
}

// provider resolves the --provider flag against the engine.
func (a *app) provider() (*engine.Provider, error) {
	return a.engine.Provider(a.v.GetString("provider"))
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:           "modelctl",
		Short:         "Call configured model providers",
		Long:          "modelctl sends chat, embedding, image, speech and transcription requests to the providers declared in a YAML config, retrying transient failures.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			return a.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	flags := root.PersistentFlags()
	flags.StringP("config", "c", "modelctl.yaml", "path to configuration file")
	flags.StringP("provider", "p", "", "provider to use (default: the config's default, or the first provider)")
	flags.String("env", ".env", "path to .env file (ignored if missing)")
	flags.BoolP("verbose", "v", false, "debug logging, retry events and response metadata")

	_ = a.v.BindPFlag("config", flags.Lookup("config"))
	_ = a.v.BindPFlag("provider", flags.Lookup("provider"))
	_ = a.v.BindPFlag("env", flags.Lookup("env"))
	_ = a.v.BindPFlag("verbose", flags.Lookup("verbose"))

	a.v.SetEnvPrefix("MODELCTL")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	root.AddCommand(
		newChatCmd(a),
		newEmbedCmd(a),
		newImageCmd(a),
		newSpeakCmd(a),
		newTranscribeCmd(a),
		newProvidersCmd(a),
	)

	return root
}

// init loads the .env file and the configuration, then builds the engine.
func (a *app) init() error {
	if err := loadDotEnv(a.v.GetString("env")); err != nil {
		return err
	}

	a.verbose = a.v.GetBool("verbose")

	log, err := newLogger(a.verbose)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	a.log = log

	cfg, err := engine.LoadConfig(a.v.GetString("config"))
	if err != nil {
		return err
	}

	e, err := engine.New(cfg, engine.WithLogger(log))
	if err != nil {
		return err
	}
	a.engine = e

	return nil
}

// newLogger builds a production logger that only reports warnings, or a
// development logger at debug level when verbose is set.
func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

// loadDotEnv loads environment variables from path. Missing files are ignored.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}

	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
