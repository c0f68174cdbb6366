package main

import (
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "jettag",
	Short: "Train quantum and classical jet-tagging models",
	Long: `jettag trains binary classifiers that separate signal fat jets from
background using either message-passing graph networks over jet
constituents or flat models over zero-padded constituent features. The
message function can be a classical MLP or a simulated quantum circuit.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default configs/default.yaml)")
	rootCmd.AddCommand(trainCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("default")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("configs")
		viper.AddConfigPath(".")
	}
	viper.SetEnvPrefix("JETTAG")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Fatalf("jettag: read config: %v", err)
		}
		// No config file is fine; flags and defaults carry the run.
	}
}
