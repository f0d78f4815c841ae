// Package magecmd implements the mage command line tool.
package magecmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TheusHen/mage/mage/config"
	"github.com/TheusHen/mage/mage/observability"
)

func Execute() error {
	return NewRootCmd().Execute()
}

func NewRootCmd() *cobra.Command {
	c := &cobra.Command{
		Use:           "mage",
		Short:         "mage: encrypted channels over one connection",
		SilenceUsage: true,
	}
	configPath := c.PersistentFlags().StringP("config", "c", "", "path to a YAML config file")

	loadConfig := func() (config.Config, *zap.Logger, error) {
		cfg := config.Default()
		if *configPath != "" {
			var err error
			if cfg, err = config.Load(*configPath); err != nil {
				return config.Config{}, nil, err
			}
		}
		log, err := observability.SetupLogger(cfg.Log)
		if err != nil {
			return config.Config{}, nil, err
		}
		return cfg, log, nil
	}

	c.AddCommand(NewKeygenCmd())
	c.AddCommand(NewPubkeyCmd())
	c.AddCommand(NewCreateConfigCmd())
	c.AddCommand(NewDialCmd(loadConfig))
	c.AddCommand(NewListenCmd(loadConfig))
	return c
}

// ConfigLoader returns the effective configuration and a logger built from
// it.
type ConfigLoader = func() (config.Config, *zap.Logger, error)
