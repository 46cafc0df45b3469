package cmd

import (
	"fmt"
	"os"

	"github.com/sarchlab/evsim/config"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	var configPath string

	c := &cobra.Command{
		Use:   "validate",
		Short: "Check a scenario file without running it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "OK: %d flows, stop at %s\n",
				len(cfg.Flows), cfg.StopTime)

			return nil
		},
	}

	c.Flags().StringVarP(&configPath, "config", "c", "", "scenario file")
	cobra.CheckErr(c.MarkFlagRequired("config"))

	return c
}

// loadConfig reads .env, the scenario file, and the environment overrides,
// in that order. The result is not validated, since command line flags may
// still change it.
func loadConfig(path string) (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}

	cfg := config.Default()
	if path != "" {
		var err error

		cfg, err = config.Load(path)
		if err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	return cfg, nil
}
