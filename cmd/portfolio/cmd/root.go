package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/portfolio/config"
)

var rootCmd = &cobra.Command{
	Use:   "portfolio",
	Short: "Multi-contract target-position trading and backtesting",
	Long: `Portfolio runs strategies that trade several contracts at once by
declaring a target net position per contract. The engine turns targets into
open/close orders that respect today/yesterday inventory.

It provides tools for:
  - Backtesting strategies over CSV bar data
  - Grid optimisation of strategy parameters
  - Paper trading through the live execution engine
  - Querying the SQLite run journal
  - Inspecting persisted position snapshots`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.LoadEnv(envFile)
	},
}

var (
	cfgPath string
	envFile string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "portfolio.yaml", "path to config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file with PORTFOLIO_* overrides")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFromFile(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", cfgPath, err)
	}
	return cfg, nil
}
