package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"syncai-fusion/internal/config"
	"syncai-fusion/pkg/logging/logging"
)

var version = "dev"

// rootOptions are the flags every subcommand shares.
type rootOptions struct {
	configPath string
	envFile    string
}

func main() {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "fusiond",
		Short:         "Dual-model answer fusion service",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv("FUSIOND_CONFIG"), "path to YAML config")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the config")

	root.AddCommand(
		newServeCmd(opts),
		newAskCmd(opts),
		newChatCmd(opts),
		newWorkspaceCmd(opts),
		newCheckCmd(opts),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// load reads the dotenv file, the config and builds the process logger.
// Variables already in the environment win over the dotenv file.
func load(opts *rootOptions) (*config.Config, *zap.Logger, error) {
	if opts.envFile != "" {
		if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("load %s: %w", opts.envFile, err)
		}
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, err
	}

	logger, err := logging.Build(logging.Options{Env: cfg.Log.Env, Level: cfg.Log.Level})
	if err != nil {
		return nil, nil, fmt.Errorf("build logger: %w", err)
	}
	logging.SetDefault(logger)
	return cfg, logger, nil
}
