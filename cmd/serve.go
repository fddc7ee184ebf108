package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/subtasker/internal/logging"
	"github.com/danielolaszy/subtasker/internal/server"
)

// serveCmd runs the local HTTP API used by the browser extension.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the creation flow as a local HTTP API",
	Long: `Start the local HTTP API the browser extension talks to.

Endpoints:
  GET  /health                   liveness and whether a run is in flight
  GET  /context?url=...          issue and project of a JIRA page
  GET  /projects/{key}/metadata  creation metadata, per-field errors included
  POST /generate                 draft a breakdown for review
  POST /create                   create a reviewed breakdown

Only one creation run is accepted at a time. The OpenAPI document is served at
/openapi.json and interactive docs at /docs.

Example:
  subtasker serve --listen 127.0.0.1:8765`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, true)
		if err != nil {
			return err
		}

		listen, err := cmd.Flags().GetString("listen")
		if err != nil {
			return err
		}
		if listen == "" {
			listen = a.config.Server.Listen
		}

		parent := cmd.Context()
		if parent == nil {
			parent = context.Background()
		}
		ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := server.New(server.Config{
			Issues:       a.client,
			Generator:    a.generator,
			Schema:       a.resolver,
			Orchestrator: a.orchestrator,
			Browse:       a.client.BrowseURL,
		})

		logging.Info("starting api", "listen", listen, "jira_url", a.config.Jira.URL)
		return srv.ListenAndServe(ctx, listen)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", "", "address to listen on (default from SUBTASKER_LISTEN or 127.0.0.1:8765)")
}
