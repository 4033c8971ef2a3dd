package cmd

import (
	"errors"
	"io/fs"

	"github.com/code-sleuth/ike-wp/pkg/util"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "ike-wp",
	Short: "Turn WordPress sites into vector databases and chat with them",
	Long: `ike-wp ingests the public pages, posts and comments of WordPress sites into a
vector database, one namespace per host, and answers questions about a site
with retrieval augmented generation.`,
	SilenceUsage: true,
}

// Execute runs the root command and exits on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger := util.NewLogger(zerolog.ErrorLevel)
		logger.Fatal().Err(err).Msg("Command failed")
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file to load before reading configuration")
}

func initConfig() {
	logger := util.NewLogger(zerolog.ErrorLevel)
	err := godotenv.Load(envFile)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Debug().Str("env_file", envFile).Msg("No env file found, using process environment")
		return
	}
	if err != nil {
		logger.Fatal().Err(err).Str("env_file", envFile).Msg("Failed to load env file")
	}
}
