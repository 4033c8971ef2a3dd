package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/code-sleuth/ike-wp/internal/server"

	"github.com/spf13/cobra"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the database and chat HTTP API",
	Long: `Serve the HTTP API:

  POST   /db      check for, and optionally build, a site's vector database
  DELETE /db      delete a site's vector database
  POST   /chat    answer the last user message of a conversation
  GET    /healthz liveness probe

Every route except /healthz requires "Authorization: Bearer $AUTH_KEY".`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&listenAddr, "addr", "a", "", "Listen address (overrides HTTP_ADDR)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	if a.cfg.AuthKey == "" {
		a.logger.Warn().Msg("AUTH_KEY is not set, every authenticated route will answer 401")
	}

	addr := a.cfg.HTTPAddr
	if listenAddr != "" {
		addr = listenAddr
	}

	srv := server.New(a.engine, a.controller, a.cfg.AuthKey, a.logger)
	return srv.ListenAndServe(ctx, addr)
}

// commandContext returns the command's context, or a background one when
// the command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
