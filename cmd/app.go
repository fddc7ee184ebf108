// Package cmd provides the command-line interface for subtasker.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/subtasker/internal/config"
	"github.com/danielolaszy/subtasker/internal/generation"
	"github.com/danielolaszy/subtasker/internal/jira"
	"github.com/danielolaszy/subtasker/internal/logging"
	"github.com/danielolaszy/subtasker/internal/orchestrator"
	"github.com/danielolaszy/subtasker/internal/schema"
)

// app holds the collaborators a command needs, built once from configuration.
type app struct {
	config       *config.Config
	client       *jira.Client
	resolver     *schema.Resolver
	generator    *generation.Adapter
	orchestrator *orchestrator.Orchestrator
}

// newApp loads and validates configuration before any network call is made.
// Commands that never generate pass withAI=false and only need tracker settings.
func newApp(cmd *cobra.Command, withAI bool) (*app, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	if withAI {
		err = cfg.Validate()
	} else {
		err = cfg.ValidateJiraConfig()
	}
	if err != nil {
		return nil, err
	}

	gateway, err := jira.NewGateway(cfg.Jira.URL, cfg.Jira.Email, cfg.Jira.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize jira client: %w", err)
	}
	client := jira.NewClient(gateway)
	resolver := schema.NewResolver(client)

	a := &app{
		config:       cfg,
		client:       client,
		resolver:     resolver,
		orchestrator: orchestrator.New(client, resolver),
	}

	if withAI {
		completer, err := generation.NewCompleter(cfg.AI.Provider, cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.Model)
		if err != nil {
			return nil, err
		}
		a.generator = generation.NewAdapter(completer)
	}

	logging.Debug("application initialized",
		"jira_url", cfg.Jira.URL,
		"jira_email", cfg.Jira.Email,
		"jira_token", logging.MaskSensitive(cfg.Jira.Token),
		"ai_provider", cfg.AI.Provider,
		"ai_model", cfg.AI.Model)

	return a, nil
}
