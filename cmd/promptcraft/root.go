package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/cuongbtq/promptcraft/internal/bootstrap"
	"github.com/cuongbtq/promptcraft/internal/client"
	"github.com/cuongbtq/promptcraft/internal/config"
	"github.com/cuongbtq/promptcraft/shared/logger"
)

var errNoWorkflow = errors.New("no workflow selected: pass --workflow or set client.workflow_id")

// cloudKeySettings names the setting holding each cloud provider's key
var cloudKeySettings = map[string]string{
	"openai":    "openai_api_key",
	"google":    "google_api_key",
	"grok":      "grok_api_key",
	"anthropic": "anthropic_api_key",
}

// localURLSettings names the setting holding each local tool's base URL
var localURLSettings = map[string]string{
	"a1111":    "a1111_url",
	"comfyui":  "comfyui_url",
	"invokeai": "invokeai_url",
}

// app is the state shared by every subcommand of one invocation
type app struct {
	configPath   string
	apiURL       string
	settingsPath string
	workflowID   string
	verbose      bool

	cfg    *config.Config
	logger *logger.Logger
	state  *client.State
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "promptcraft",
		Short: "Prompt-driven image and video generation client",
		Long: `PromptCraft submits image and video generations to the bridge server,
follows their progress and organizes the results into scenes and workflows.

Without an API URL the client runs in web mode: only local settings are available.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return a.close()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", bootstrap.ConfigPath("PROMPTCRAFT_CONFIG_PATH", "promptcraft"), "Path to configuration file")
	flags.StringVar(&a.apiURL, "api-url", "", "Bridge server URL (overrides client.api_url)")
	flags.StringVar(&a.settingsPath, "settings", "", "Local settings file (overrides client.settings_path)")
	flags.StringVarP(&a.workflowID, "workflow", "w", "", "Workflow id (overrides client.workflow_id)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Log at debug level")

	root.AddCommand(
		newGenerateCmd(a),
		newRetryCmd(a),
		newEnhanceCmd(a),
		newJobsCmd(a),
		newScenesCmd(a),
		newWorkflowsCmd(a),
		newProvidersCmd(a),
		newSettingsCmd(a),
		newModeCmd(a),
		newOpenCmd(a),
		newPortCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	// a missing .env is normal
	_ = godotenv.Load()

	cfg, err := bootstrap.LoadConfig(a.configPath, cmd.Flags().Changed("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if a.apiURL != "" {
		cfg.Client.APIURL = a.apiURL
	}
	if a.settingsPath != "" {
		cfg.Client.SettingsPath = a.settingsPath
	}
	if a.workflowID != "" {
		cfg.Client.WorkflowID = a.workflowID
	}
	// stdout carries command output
	if cfg.Logging.Output == "stdout" {
		cfg.Logging.Output = "stderr"
	}
	if a.verbose {
		cfg.Logging.Level = "debug"
	}

	log, err := bootstrap.Logger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	local, err := client.OpenFileStore(cfg.Client.SettingsPath)
	if err != nil {
		log.Close()
		return err
	}

	var bridge client.Bridge
	if cfg.Client.APIURL != "" {
		bridge = client.NewHTTPBridge(cfg.Client.APIURL, client.WithLogger(log.Logger))
	}

	state := client.NewState(bridge, local)
	if err := state.Load(); err != nil {
		log.Close()
		return fmt.Errorf("failed to load settings: %w", err)
	}
	state.WorkflowID = cfg.Client.WorkflowID

	log.Debug("Client initialized",
		slog.String("capability", string(state.Capability())),
		slog.String("api_url", cfg.Client.APIURL),
		slog.String("settings", cfg.Client.SettingsPath),
	)

	a.cfg, a.logger, a.state = cfg, log, state
	return nil
}

func (a *app) close() error {
	if a.logger == nil {
		return nil
	}
	return a.logger.Close()
}

func (a *app) bridge() (client.Bridge, error) {
	return a.state.Bridge()
}

func (a *app) requireWorkflow() (string, error) {
	if a.state.WorkflowID == "" {
		return "", errNoWorkflow
	}
	return a.state.WorkflowID, nil
}

// restoreProviders pushes credentials saved in settings to the bridge so a
// restarted server picks them up before the first generation.
func (a *app) restoreProviders(ctx context.Context, provider string) {
	bridge, err := a.bridge()
	if err != nil {
		return
	}

	var configure func(context.Context, string, string) error
	key, ok := cloudKeySettings[provider]
	if ok {
		configure = bridge.ConfigureProvider
	} else if key, ok = localURLSettings[provider]; ok {
		configure = bridge.ConfigureLocalProvider
	} else {
		return
	}

	value, found, err := a.state.Setting(ctx, key)
	if err == nil && found && value != "" {
		err = configure(ctx, provider, value)
	}
	if err != nil {
		a.logger.Warn("Failed to restore provider settings",
			slog.String("provider", provider),
			slog.Any("error", err),
		)
	}
}
