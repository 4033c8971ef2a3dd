package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	siteURL   string
	dbTimeout time.Duration
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage per-site vector databases",
	Long: `Check, build and delete the vector database of a WordPress site.

Examples:
  ike-wp db status --url "https://www.example.com"
  ike-wp db create --url "https://www.example.com"
  ike-wp db delete --url "https://www.example.com"`,
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether a site's database exists",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runEnsureDatabase(cmd, false)
	},
}

var dbCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Build a site's database unless it already exists",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runEnsureDatabase(cmd, true)
	},
}

var dbRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Ingest a site again, overwriting existing chunks",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(commandContext(cmd), dbTimeout)
		defer cancel()

		a, err := newApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.close()

		result, err := a.engine.BuildVectorDatabase(ctx, siteURL)
		if err != nil {
			return err
		}
		return printJSON(cmd, result)
	},
}

var dbDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a site's database",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(commandContext(cmd), dbTimeout)
		defer cancel()

		a, err := newApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.close()

		message, err := a.engine.DeleteDatabase(ctx, siteURL)
		if err != nil {
			return err
		}
		return printJSON(cmd, map[string]string{"message": message})
	},
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.PersistentFlags().StringVarP(&siteURL, "url", "u", "", "WordPress site URL (required)")
	dbCmd.PersistentFlags().DurationVar(&dbTimeout, "timeout", time.Hour, "Timeout for the entire operation")
	if err := dbCmd.MarkPersistentFlagRequired("url"); err != nil {
		return
	}

	dbCmd.AddCommand(dbStatusCmd, dbCreateCmd, dbRebuildCmd, dbDeleteCmd)
}

func runEnsureDatabase(cmd *cobra.Command, create bool) error {
	ctx, cancel := context.WithTimeout(commandContext(cmd), dbTimeout)
	defer cancel()

	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.close()

	status, err := a.engine.EnsureDatabase(ctx, siteURL, create)
	if err != nil {
		return err
	}
	return printJSON(cmd, status)
}

func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}
