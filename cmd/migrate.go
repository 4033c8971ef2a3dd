package cmd

import (
	"github.com/code-sleuth/ike-wp/internal/manager/vectorstores"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database schema",
	Long: `Create the sites registry and the vectors table in your Turso database.
The vectors column is sized to the configured embedding model.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := commandContext(cmd)

		a, err := newApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.close()

		if a.cfg.VectorStore != vectorstores.KindLibSQL {
			return ErrRegistryUnavailable
		}

		a.logger.Info().
			Str("embedding_model", a.embedder.GetModelName()).
			Int("dimension", a.embedder.GetDimension()).
			Msg("Database migration completed successfully!")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
