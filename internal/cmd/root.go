// Package cmd implements the codepm command line interface: a thin shell
// over the execution engine for running and inspecting task manifests.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/taihochan/superclaude-code-pm-sub001/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "codepm",
	Short: "Parallel task execution engine",
	Long: `codepm executes task manifests with dependency-aware scheduling:
tasks are grouped into phases from their dependency graph and each phase
runs in parallel against a managed pool of workers and resource budgets.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/codepm/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("CODEPM")
	// CODEPM_WORKERS_MAX_WORKERS maps to workers.max_workers
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
