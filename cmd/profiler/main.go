package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "emotion-profile-service"
	serviceVersion    = "1.0.0"
)

func main() {
	// a missing .env is fine, the environment may already be set
	_ = godotenv.Load()

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "profiler",
		Short:         "Time-segmented emotion profiles of recorded speech",
		Version:       serviceVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "Path to configuration file")

	root.AddCommand(
		newAnalyzeCommand(&configPath),
		newServeCommand(&configPath),
	)

	return root
}
