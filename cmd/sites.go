package cmd

import (
	"context"
	"errors"

	"github.com/code-sleuth/ike-wp/internal/manager/repository"
	"github.com/code-sleuth/ike-wp/internal/manager/vectorstores"
	"github.com/code-sleuth/ike-wp/pkg/config"
	"github.com/code-sleuth/ike-wp/pkg/db"
	"github.com/code-sleuth/ike-wp/pkg/util"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var ErrRegistryUnavailable = errors.New("the site registry needs VECTOR_STORE=libsql")

var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "Inspect the registry of ingested sites",
}

var sitesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingested sites, most recent first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := commandContext(cmd)

		sites, closeDB, err := openRegistry(ctx)
		if err != nil {
			return err
		}
		defer closeDB()

		list, err := sites.List(ctx)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			logger := util.NewLogger(zerolog.InfoLevel)
			logger.Info().Msg("No sites found")
			return nil
		}
		return printJSON(cmd, list)
	},
}

var sitesGetCmd = &cobra.Command{
	Use:   "get [host]",
	Short: "Show the last ingestion run of a host",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)

		sites, closeDB, err := openRegistry(ctx)
		if err != nil {
			return err
		}
		defer closeDB()

		site, err := sites.GetByHost(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, site)
	},
}

// openRegistry connects to the database holding the site registry without
// wiring the embedding pipeline.
func openRegistry(ctx context.Context) (*repository.SiteRepository, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if cfg.VectorStore != vectorstores.KindLibSQL {
		return nil, nil, ErrRegistryUnavailable
	}

	database, err := db.Open(cfg.TursoURL, cfg.TursoAuthToken)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		_ = database.Close()
	}

	sites := repository.NewSiteRepository(database)
	if err := sites.EnsureSchema(ctx); err != nil {
		closeDB()
		return nil, nil, err
	}
	return sites, closeDB, nil
}

func init() {
	rootCmd.AddCommand(sitesCmd)
	sitesCmd.AddCommand(sitesListCmd, sitesGetCmd)
}

